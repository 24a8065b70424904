// Package metrics 提供 Prometheus 指标定义与收集器
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/jipatebonus/pkg/logger"
)

const namespace = "jipate"

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec

	// 登录结果计数
	LoginsTotal *prometheus.CounterVec
	// 注册计数
	RegistrationsTotal prometheus.Counter
	// 投资事件计数：submitted, approved
	InvestmentsTotal *prometheus.CounterVec
	// 累计计提利息
	InterestAccrued prometheus.Counter
	// 计息任务执行次数
	AccrualRunsTotal *prometheus.CounterVec
	// 推荐奖励发放次数
	ReferralRewardsTotal prometheus.Counter
	// 提现次数
	WithdrawalsTotal prometheus.Counter
	// 累计提现手续费
	WithdrawalFees prometheus.Counter
	// 通知发送结果
	NotificationsTotal *prometheus.CounterVec
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		LoginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "logins_total",
			Help:      "Login attempts by result",
		}, []string{"result"}),
		RegistrationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "registrations_total",
			Help:      "Total accounts registered",
		}),
		InvestmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "investments_total",
			Help:      "Investment lifecycle events",
		}, []string{"event"}),
		InterestAccrued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "interest_accrued_total",
			Help:      "Total interest credited to balances",
		}),
		AccrualRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "accrual_runs_total",
			Help:      "Scheduled accrual sweeps by result",
		}, []string{"result"}),
		ReferralRewardsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "referral_rewards_total",
			Help:      "Referral rewards paid",
		}),
		WithdrawalsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "withdrawals_total",
			Help:      "Completed withdrawals",
		}),
		WithdrawalFees: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "withdrawal_fees_total",
			Help:      "Total withdrawal fees retained",
		}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "notifications_total",
			Help:      "Notification deliveries by result",
		}, []string{"result"}),
	}
}

// Register 将所有指标注册到 reg
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginsTotal,
		m.RegistrationsTotal,
		m.InvestmentsTotal,
		m.InterestAccrued,
		m.AccrualRunsTotal,
		m.ReferralRewardsTotal,
		m.WithdrawalsTotal,
		m.WithdrawalFees,
		m.NotificationsTotal,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}

	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// Handler 返回 reg 对应的 /metrics 处理器
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// MetricsCollector 指标收集器接口
type MetricsCollector interface {
	RecordHTTPRequest(method, path string, statusCode int, duration float64)
	RecordLogin(result string)
	RecordRegistration()
	RecordInvestment(event string)
	RecordInterest(amount float64)
	RecordAccrualRun(result string)
	RecordReferralReward()
	RecordWithdrawal(fee float64)
	RecordNotification(result string)
}

// DefaultMetricsCollector 默认指标收集器实现
type DefaultMetricsCollector struct {
	metrics *Metrics
}

// NewDefaultMetricsCollector 创建默认指标收集器
func NewDefaultMetricsCollector(metrics *Metrics) *DefaultMetricsCollector {
	return &DefaultMetricsCollector{
		metrics: metrics,
	}
}

func (dmc *DefaultMetricsCollector) RecordHTTPRequest(method, path string, statusCode int, duration float64) {
	dmc.metrics.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	dmc.metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func (dmc *DefaultMetricsCollector) RecordLogin(result string) {
	dmc.metrics.LoginsTotal.WithLabelValues(result).Inc()
}

func (dmc *DefaultMetricsCollector) RecordRegistration() {
	dmc.metrics.RegistrationsTotal.Inc()
}

func (dmc *DefaultMetricsCollector) RecordInvestment(event string) {
	dmc.metrics.InvestmentsTotal.WithLabelValues(event).Inc()
}

func (dmc *DefaultMetricsCollector) RecordInterest(amount float64) {
	if amount > 0 {
		dmc.metrics.InterestAccrued.Add(amount)
	}
}

func (dmc *DefaultMetricsCollector) RecordAccrualRun(result string) {
	dmc.metrics.AccrualRunsTotal.WithLabelValues(result).Inc()
}

func (dmc *DefaultMetricsCollector) RecordReferralReward() {
	dmc.metrics.ReferralRewardsTotal.Inc()
}

// RecordWithdrawal 记录一次提现及其手续费
func (dmc *DefaultMetricsCollector) RecordWithdrawal(fee float64) {
	dmc.metrics.WithdrawalsTotal.Inc()
	if fee > 0 {
		dmc.metrics.WithdrawalFees.Add(fee)
	}
}

func (dmc *DefaultMetricsCollector) RecordNotification(result string) {
	dmc.metrics.NotificationsTotal.WithLabelValues(result).Inc()
}

// NopCollector 丢弃所有指标
type NopCollector struct{}

func (NopCollector) RecordHTTPRequest(string, string, int, float64) {}
func (NopCollector) RecordLogin(string)                             {}
func (NopCollector) RecordRegistration()                            {}
func (NopCollector) RecordInvestment(string)                        {}
func (NopCollector) RecordInterest(float64)                         {}
func (NopCollector) RecordAccrualRun(string)                        {}
func (NopCollector) RecordReferralReward()                          {}
func (NopCollector) RecordWithdrawal(float64)                       {}
func (NopCollector) RecordNotification(string)                      {}
