package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/wyfcoding/jipatebonus/internal/bonus/application"
	"github.com/wyfcoding/jipatebonus/internal/bonus/domain"
	"github.com/wyfcoding/jipatebonus/internal/bonus/infrastructure/auth"
	"github.com/wyfcoding/jipatebonus/internal/bonus/infrastructure/notify"
	"github.com/wyfcoding/jipatebonus/internal/bonus/infrastructure/persistence"
	"github.com/wyfcoding/jipatebonus/internal/bonus/infrastructure/persistence/memory"
	"github.com/wyfcoding/jipatebonus/internal/bonus/infrastructure/persistence/mysql"
	"github.com/wyfcoding/jipatebonus/internal/bonus/infrastructure/persistence/redis"
	httpserver "github.com/wyfcoding/jipatebonus/internal/bonus/interfaces/http"
	"github.com/wyfcoding/jipatebonus/pkg/cache"
	"github.com/wyfcoding/jipatebonus/pkg/clock"
	"github.com/wyfcoding/jipatebonus/pkg/config"
	"github.com/wyfcoding/jipatebonus/pkg/db"
	"github.com/wyfcoding/jipatebonus/pkg/idgen"
	"github.com/wyfcoding/jipatebonus/pkg/logger"
	"github.com/wyfcoding/jipatebonus/pkg/metrics"
	"github.com/wyfcoding/jipatebonus/pkg/middleware"
	"github.com/wyfcoding/jipatebonus/pkg/mq"
	"github.com/wyfcoding/jipatebonus/pkg/ratelimit"
	"golang.org/x/sync/errgroup"
)

var configPath = flag.String("config", config.GetEnv("APP_CONFIG_FILE", "configs/bonus/config.toml"), "config file path")

// repositories 按存储驱动装配的仓储集合
type repositories struct {
	accounts    domain.AccountRepository
	investments domain.InvestmentRepository
	withdrawals domain.WithdrawalRepository
	tx          domain.Transactor
}

func main() {
	flag.Parse()

	// .env 仅用于本地开发
	_ = godotenv.Load()

	// 1. 初始化配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. 初始化日志
	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}); err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}
	slog.Info("starting service", "service", cfg.ServiceName, "version", cfg.Version, "environment", cfg.Environment)

	if err := run(cfg); err != nil {
		slog.Error("service exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	// 3. 初始化指标
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricsImpl := metrics.New(cfg.ServiceName)
	if err := metricsImpl.Register(registry); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	collector := metrics.NewDefaultMetricsCollector(metricsImpl)

	// 4. 初始化基础设施
	repos, closeDB, err := openRepositories(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	var limiter ratelimit.RateLimiter
	if cfg.Redis.Enabled() {
		redisCache, err := cache.New(cache.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			MaxPoolSize:  cfg.Redis.MaxPoolSize,
			ConnTimeout:  cfg.Redis.ConnTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to init redis: %w", err)
		}
		defer redisCache.Close()

		accountCache := redis.NewAccountCache(redisCache, time.Duration(cfg.Redis.CacheTTL)*time.Second)
		repos.accounts = persistence.NewCompositeAccountRepository(repos.accounts, accountCache)
		if cfg.RateLimit.Enabled {
			if limiter, err = ratelimit.NewRedisRateLimiter(redisCache.GetClient(), ratelimit.Config{
				QPS:    cfg.RateLimit.QPS,
				Burst:  cfg.RateLimit.Burst,
				Prefix: cfg.ServiceName + ":ratelimit",
			}); err != nil {
				return fmt.Errorf("failed to init rate limiter: %w", err)
			}
		}
	}

	sinks := notify.Fanout{notify.NewLogSMSSink(cfg.Notify.OperatorPhone)}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		if err != nil {
			return fmt.Errorf("failed to init kafka producer: %w", err)
		}
		defer producer.Close()
		sinks = append(sinks, notify.NewKafkaSink(producer, cfg.Notify.Topic, cfg.Notify.OperatorPhone))
	}

	ids, err := idgen.New(cfg.IDGen.NodeID)
	if err != nil {
		return err
	}
	policy, err := application.PolicyFromConfig(cfg.Policy)
	if err != nil {
		return err
	}

	// 5. 初始化应用服务
	clk := clock.System{}
	locks := application.NewKeyedMutex()
	dispatcher := application.NewDispatcher(sinks, collector)
	defer dispatcher.Wait()

	referrals := application.NewReferralEngine(repos.accounts, policy, clk, locks, dispatcher, collector)
	accountSvc := application.NewAccountService(repos.accounts, auth.NewBcryptHasher(cfg.Auth.BcryptCost), policy, clk, locks, dispatcher, collector)
	ledgerSvc := application.NewLedgerService(repos.accounts, repos.investments, repos.tx, ids, policy, clk, locks, referrals, dispatcher, collector)
	settlementSvc := application.NewSettlementService(repos.accounts, repos.investments, repos.withdrawals, repos.tx, ids, policy, locks, dispatcher, collector)
	querySvc := application.NewQueryService(repos.accounts, repos.investments, repos.withdrawals)
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTL)*time.Minute, clk.Now)

	// 6. 初始化接口层
	gin.SetMode(gin.ReleaseMode)
	if cfg.Environment == "dev" {
		gin.SetMode(gin.DebugMode)
	}
	r := gin.New()
	r.Use(
		middleware.GinLoggingMiddleware(),
		middleware.GinRecoveryMiddleware(),
		middleware.GinCORSMiddleware(),
		middleware.GinMetricsMiddleware(collector),
	)
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(metrics.Handler(registry)))
	}

	var throttle []gin.HandlerFunc
	if limiter != nil {
		throttle = append(throttle, middleware.RateLimitMiddleware(limiter))
	}
	handler := httpserver.NewHandler(accountSvc, ledgerSvc, settlementSvc, querySvc, tokens, clk)
	handler.RegisterRoutes(r, cfg.Auth.AdminSecret, throttle...)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	// 7. 启动服务
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("HTTP server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.Scheduler.Enabled {
		job := application.NewInterestAccrualJob(ledgerSvc, clk, logger.Get(), cfg.Scheduler.AccrualSchedule, collector)
		g.Go(func() error {
			return job.Start(ctx)
		})
	}

	// 8. 优雅关闭
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down servers...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openRepositories 按 database.driver 选择内存或 GORM 仓储
func openRepositories(cfg *config.Config) (*repositories, func(), error) {
	if cfg.Database.Driver == "memory" {
		slog.Warn("using in-memory storage, data will be lost on restart")
		return &repositories{
			accounts:    memory.NewAccountRepository(),
			investments: memory.NewInvestmentRepository(),
			withdrawals: memory.NewWithdrawalRepository(),
			tx:          memory.Transactor{},
		}, func() {}, nil
	}

	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := mysql.AutoMigrate(database.DB); err != nil {
			_ = database.Close()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	return &repositories{
		accounts:    mysql.NewAccountRepository(database),
		investments: mysql.NewInvestmentRepository(database),
		withdrawals: mysql.NewWithdrawalRepository(database),
		tx:          mysql.NewTransactor(database),
	}, func() { _ = database.Close() }, nil
}
