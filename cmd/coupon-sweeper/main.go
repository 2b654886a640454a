package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"bazaar/internal/pkg/config"
	"bazaar/internal/pkg/logger"
	"bazaar/internal/service/coupon/application"
	"bazaar/internal/service/coupon/infrastructure"
	"bazaar/internal/tracing"
	"bazaar/internal/zookeeper"
)

const (
	serviceName = "coupon-sweeper"
	// 多副本部署时用 zk 锁保证同一时刻只有一个实例在扫
	sweepLockResource = "coupon-expire-sweep"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: failed to load config: %v", err)
	}
	logger.Init(serviceName)

	tp, err := tracing.InitTracerProvider(serviceName, cfg.Jaeger.Endpoint)
	if err != nil {
		log.Fatalf("failed to initialize tracer provider: %v", err)
	}
	tracer := otel.Tracer(serviceName)

	db, err := infrastructure.NewMysqlDB(cfg.MySQL.DSN)
	if err != nil {
		log.Fatalf("FATAL: failed to connect to mysql: %v", err)
	}
	store := infrastructure.NewGormStore(db)

	zkConn, err := zookeeper.Connect(cfg.Zookeeper.Servers, 5*time.Second)
	if err != nil {
		log.Fatalf("FATAL: failed to connect to zookeeper: %v", err)
	}
	defer zkConn.Close()

	// 扫描只需要持久层, 配额闸门/规则引擎/事件流都用不到
	redemptionSvc := application.NewRedemptionService(store, nil, nil, nil, tracer)

	schedule := os.Getenv("SWEEP_CRON")
	if schedule == "" {
		schedule = "*/5 * * * *"
	}

	c := cron.New()
	_, err = c.AddFunc(schedule, func() {
		sweepOnce(zkConn, redemptionSvc)
	})
	if err != nil {
		log.Fatalf("FATAL: invalid cron schedule %q: %v", schedule, err)
	}
	c.Start()
	log.Printf("%s started, schedule=%q", serviceName, schedule)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutting down %s...", serviceName)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	g, _ := errgroup.WithContext(shutdownCtx)
	g.Go(func() error {
		// 等在途的扫描跑完再退出
		<-c.Stop().Done()
		return nil
	})
	g.Go(func() error {
		return tp.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	log.Printf("%s gracefully shut down.", serviceName)
}

// sweepOnce 抢到分布式锁才执行一轮过期扫描, 抢不到说明别的副本在扫。
func sweepOnce(zkConn *zookeeper.Conn, svc *application.RedemptionService) {
	lock, err := zookeeper.NewDistributedLock(zkConn, sweepLockResource, 0)
	if err != nil {
		logger.L().Printf("Failed to create sweep lock: %v", err)
		return
	}
	acquired, err := lock.TryLock()
	if err != nil {
		logger.L().Printf("Failed to acquire sweep lock: %v", err)
		return
	}
	if !acquired {
		logger.L().Printf("Sweep lock held by another instance, skipping this round")
		return
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.L().Printf("Failed to release sweep lock: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if _, err := svc.ExpireSweep(ctx); err != nil {
		logger.L().Printf("Expire sweep failed: %v", err)
	}
}
