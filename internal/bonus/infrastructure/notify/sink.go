// Package notify 通知出口：日志短信模拟器与 Kafka 投递
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wyfcoding/jipatebonus/internal/bonus/domain"
	"github.com/wyfcoding/jipatebonus/pkg/logger"
	"github.com/wyfcoding/jipatebonus/pkg/mq"
)

// LogSMSSink 以日志代替向运营人员发送短信
type LogSMSSink struct {
	operatorPhone string
}

func NewLogSMSSink(operatorPhone string) *LogSMSSink {
	return &LogSMSSink{operatorPhone: operatorPhone}
}

func (s *LogSMSSink) Notify(ctx context.Context, ev domain.Event) error {
	logger.Info(ctx, "Sending SMS notification",
		"sender", "LogSMSSink",
		"target", s.operatorPhone,
		"type", ev.Type,
		"account_id", ev.AccountID,
		"content", ev.Message,
	)
	return nil
}

// NotificationCommand 发送到 Kafka 的统一指令格式
type NotificationCommand struct {
	Target     string    `json:"target"`
	Type       string    `json:"type"`
	AccountID  string    `json:"account_id"`
	Reference  string    `json:"reference,omitempty"`
	Amount     string    `json:"amount"`
	Content    string    `json:"content"`
	OccurredAt time.Time `json:"occurred_at"`
}

// KafkaSink 将通知推送到消息队列，由下游短信服务消费
type KafkaSink struct {
	publisher mq.Publisher
	topic     string
	target    string
}

func NewKafkaSink(publisher mq.Publisher, topic, target string) *KafkaSink {
	return &KafkaSink{
		publisher: publisher,
		topic:     topic,
		target:    target,
	}
}

// Notify 以账户 ID 为 key，同一账户的事件落在同一分区，按投递顺序消费
func (s *KafkaSink) Notify(ctx context.Context, ev domain.Event) error {
	cmd := NotificationCommand{
		Target:     s.target,
		Type:       string(ev.Type),
		AccountID:  ev.AccountID,
		Reference:  ev.Reference,
		Amount:     ev.Amount.String(),
		Content:    ev.Message,
		OccurredAt: ev.OccurredAt,
	}
	if err := s.publisher.SendMessage(ctx, s.topic, ev.AccountID, cmd); err != nil {
		return fmt.Errorf("failed to publish %s notification: %w", ev.Type, err)
	}
	return nil
}

// Fanout 依次投递到多个出口，返回合并后的错误
type Fanout []domain.NotificationSink

func (f Fanout) Notify(ctx context.Context, ev domain.Event) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
