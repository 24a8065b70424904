package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/jipatebonus/pkg/clock"
	"github.com/wyfcoding/jipatebonus/pkg/metrics"
)

// InterestAccrualJob 按 cron 表达式定期执行全量计息。
// 计息按整天推进水位线，因此执行频率只影响入账延迟，不影响金额。
type InterestAccrualJob struct {
	ledger   *LedgerService
	clock    clock.Clock
	logger   *slog.Logger
	schedule string
	metrics  metrics.MetricsCollector
}

func NewInterestAccrualJob(
	ledger *LedgerService,
	clk clock.Clock,
	logger *slog.Logger,
	schedule string,
	collector metrics.MetricsCollector,
) *InterestAccrualJob {
	if schedule == "" {
		schedule = "@every 1h"
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &InterestAccrualJob{
		ledger:   ledger,
		clock:    clk,
		logger:   logger,
		schedule: schedule,
		metrics:  collector,
	}
}

// Start 阻塞运行直到 ctx 取消，返回前等待正在执行的任务结束
func (j *InterestAccrualJob) Start(ctx context.Context) error {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(j.logger.Handler(), slog.LevelInfo))
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	if _, err := c.AddFunc(j.schedule, func() { j.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid accrual schedule %q: %w", j.schedule, err)
	}

	j.logger.Info("Interest Accrual Job started", "schedule", j.schedule)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	j.logger.Info("Interest Accrual Job stopped")
	return nil
}

// RunOnce 以当前时间执行一次全量计息，返回入账合计
func (j *InterestAccrualJob) RunOnce(ctx context.Context) decimal.Decimal {
	now := j.clock.Now()
	credits, err := j.ledger.Accrue(ctx, now)

	total := decimal.Zero
	for _, c := range credits {
		total = total.Add(c.Amount)
	}

	if err != nil {
		j.metrics.RecordAccrualRun("partial")
		j.logger.Error("interest accrual finished with errors", "credited_owners", len(credits), "total", total.String(), "error", err)
		return total
	}
	j.metrics.RecordAccrualRun("ok")
	j.logger.Info("interest accrual finished", "credited_owners", len(credits), "total", total.String())
	return total
}
