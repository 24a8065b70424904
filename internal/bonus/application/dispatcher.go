package application

import (
	"context"
	"sync"

	"github.com/wyfcoding/jipatebonus/internal/bonus/domain"
	"github.com/wyfcoding/jipatebonus/pkg/logger"
	"github.com/wyfcoding/jipatebonus/pkg/metrics"
)

// Dispatcher 异步投递通知，失败只记日志，不影响业务结果。
// 同一账户的事件按 Dispatch 调用顺序串行投递，不同账户互不阻塞。
type Dispatcher struct {
	sink      domain.NotificationSink
	collector metrics.MetricsCollector
	wg        sync.WaitGroup

	mu    sync.Mutex
	tails map[string]chan struct{} // 每个账户最后一批事件的完成信号
}

// NewDispatcher sink 为 nil 时丢弃所有事件
func NewDispatcher(sink domain.NotificationSink, collector metrics.MetricsCollector) *Dispatcher {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Dispatcher{sink: sink, collector: collector, tails: make(map[string]chan struct{})}
}

// Dispatch 在独立 goroutine 中发送，调用方应已释放账户锁
func (d *Dispatcher) Dispatch(ctx context.Context, events ...domain.Event) {
	if d == nil || d.sink == nil || len(events) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)

	var accounts []string
	batches := make(map[string][]domain.Event)
	for _, ev := range events {
		if _, ok := batches[ev.AccountID]; !ok {
			accounts = append(accounts, ev.AccountID)
		}
		batches[ev.AccountID] = append(batches[ev.AccountID], ev)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, account := range accounts {
		prev := d.tails[account]
		done := make(chan struct{})
		d.tails[account] = done

		d.wg.Add(1)
		go d.deliver(ctx, account, batches[account], prev, done)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, account string, events []domain.Event, prev, done chan struct{}) {
	defer d.wg.Done()
	if prev != nil {
		<-prev
	}

	for _, ev := range events {
		if err := d.sink.Notify(ctx, ev); err != nil {
			d.collector.RecordNotification("failed")
			logger.Warn(ctx, "notification delivery failed",
				"type", ev.Type,
				"account_id", ev.AccountID,
				"error", err,
			)
			continue
		}
		d.collector.RecordNotification("sent")
	}

	close(done)
	d.mu.Lock()
	if d.tails[account] == done {
		delete(d.tails, account)
	}
	d.mu.Unlock()
}

// Wait 等待在途通知发送完毕
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
