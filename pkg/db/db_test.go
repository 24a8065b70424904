package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/pkg/contextx"
)

type counter struct {
	ID    uint `gorm:"primaryKey"`
	Value int
}

func setup(t *testing.T) *DB {
	t.Helper()
	d, err := Init(Config{
		Driver:       "sqlite",
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, d.AutoMigrate(&counter{}))
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestInit_UnsupportedDriver(t *testing.T) {
	_, err := Init(Config{Driver: "oracle"})
	assert.Error(t, err)
}

func TestWithTx_CommitAndRollback(t *testing.T) {
	d := setup(t)
	ctx := context.Background()
	assert.False(t, InTx(ctx))

	require.NoError(t, d.WithTx(ctx, func(ctx context.Context) error {
		assert.True(t, InTx(ctx))
		return d.Conn(ctx).Create(&counter{Value: 1}).Error
	}))

	boom := errors.New("boom")
	err := d.WithTx(ctx, func(ctx context.Context) error {
		if err := d.Conn(ctx).Create(&counter{Value: 2}).Error; err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int64
	require.NoError(t, d.Conn(ctx).Model(&counter{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestWithTx_NestedReusesOuter(t *testing.T) {
	d := setup(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := d.WithTx(ctx, func(outer context.Context) error {
		require.NoError(t, d.WithTx(outer, func(inner context.Context) error {
			assert.Same(t, d.Conn(outer), d.Conn(inner))
			return d.Conn(inner).Create(&counter{Value: 3}).Error
		}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int64
	require.NoError(t, d.Conn(ctx).Model(&counter{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestConn_UsesContextxTransaction(t *testing.T) {
	d := setup(t)
	ctx := context.Background()
	assert.False(t, InTx(ctx))

	tx := d.DB.Begin()
	require.NoError(t, tx.Error)
	txCtx := contextx.WithTx(ctx, tx)

	assert.True(t, InTx(txCtx))
	assert.Same(t, tx, d.Conn(txCtx))

	// 外部传入的事务同样被 WithTx 复用
	require.NoError(t, d.WithTx(txCtx, func(inner context.Context) error {
		assert.Same(t, tx, d.Conn(inner))
		return d.Conn(inner).Create(&counter{Value: 7}).Error
	}))
	require.NoError(t, tx.Rollback().Error)

	var n int64
	require.NoError(t, d.Conn(ctx).Model(&counter{}).Count(&n).Error)
	assert.Zero(t, n)
}
