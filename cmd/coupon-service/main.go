package main

import (
	"context"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"bazaar/internal/pkg/bootstrap"
	"bazaar/internal/pkg/httpclient"
	"bazaar/internal/pkg/mq"
	"bazaar/internal/pkg/redis"
	"bazaar/internal/service/coupon/application"
	"bazaar/internal/service/coupon/infrastructure"
	"bazaar/internal/service/coupon/infrastructure/adapter"
	"bazaar/internal/service/coupon/infrastructure/rule"
	"bazaar/internal/service/coupon/interfaces"
)

const (
	serviceName = "coupon-service"
	servicePort = 8085
)

func main() {
	var (
		kafkaWriter *kafka.Writer
		redisClient *redis.Client
	)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        servicePort,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			cfg := appCtx.Config
			tracer := otel.Tracer(serviceName)

			db, err := infrastructure.NewMysqlDB(cfg.MySQL.DSN)
			if err != nil {
				log.Fatalf("FATAL: failed to connect to mysql: %v", err)
			}
			store := infrastructure.NewGormStore(db)
			if err := store.AutoMigrate(); err != nil {
				log.Fatalf("FATAL: failed to migrate schema: %v", err)
			}

			redisClient, err = redis.NewClient(context.Background(), cfg.Redis.Addr)
			if err != nil {
				log.Fatalf("FATAL: failed to connect to redis: %v", err)
			}
			quotaGate, err := adapter.NewQuotaGateRedisAdapter(redisClient)
			if err != nil {
				log.Fatalf("FATAL: failed to init quota gate: %v", err)
			}

			kafkaWriter = mq.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
			events := adapter.NewEventKafkaAdapter(kafkaWriter)

			ruleEngine, err := rule.NewCELRuleEngine()
			if err != nil {
				log.Fatalf("FATAL: failed to init rule engine: %v", err)
			}

			shopClient := httpclient.NewClient(tracer)
			shops := adapter.NewShopHTTPAdapter(shopClient, cfg.ShopService.BaseURL)

			workflowSvc := application.NewWorkflowService(store, shops, events, tracer)
			campaignSvc := application.NewCampaignService(store, quotaGate, tracer)
			redemptionSvc := application.NewRedemptionService(store, quotaGate, ruleEngine, events, tracer)

			handler := interfaces.NewCouponHandler(workflowSvc, campaignSvc, redemptionSvc)
			handler.RegisterRoutes(appCtx.Mux)
			appCtx.Mux.Handle("/metrics", promhttp.Handler())
			appCtx.Mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
		},
		OnShutdown: func(ctx context.Context) {
			if kafkaWriter != nil {
				if err := kafkaWriter.Close(); err != nil {
					log.Printf("Error closing kafka writer: %v", err)
				}
			}
			if redisClient != nil {
				if err := redisClient.Close(); err != nil {
					log.Printf("Error closing redis client: %v", err)
				}
			}
		},
	})
}
