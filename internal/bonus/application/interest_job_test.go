package application

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/jipatebonus/internal/bonus/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInterestAccrualJob_RunOnce(t *testing.T) {
	f := newFixture(t, monday)
	f.member(t, "alice", "")
	f.member(t, "bob", "")
	f.invest(t, "alice", "1000")
	f.invest(t, "bob", "500")

	job := NewInterestAccrualJob(f.ledger, f.clock, discardLogger(), "", nil)

	requireDecimal(t, "0", job.RunOnce(context.Background()))

	f.clock.Advance(domain.Day + time.Minute)
	requireDecimal(t, "150", job.RunOnce(context.Background()))
	requireDecimal(t, "0", job.RunOnce(context.Background()))
}

func TestInterestAccrualJob_StartStopsWithContext(t *testing.T) {
	f := newFixture(t, monday)
	job := NewInterestAccrualJob(f.ledger, f.clock, discardLogger(), "@every 1h", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- job.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not stop")
	}
}

func TestInterestAccrualJob_InvalidSchedule(t *testing.T) {
	f := newFixture(t, monday)
	job := NewInterestAccrualJob(f.ledger, f.clock, discardLogger(), "every now and then", nil)
	require.Error(t, job.Start(context.Background()))
}
