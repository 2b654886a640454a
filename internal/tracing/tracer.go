// internal/tracing/tracer.go
package tracing

import (
	"log"
	"os"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// InitTracerProvider 初始化并注册全局的 Jaeger TracerProvider。
func InitTracerProvider(serviceName, jaegerEndpoint string) (*sdktrace.TracerProvider, error) {
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(jaegerEndpoint)))
	if err != nil {
		return nil, err
	}

	// 默认全采样; 生产环境可通过 TRACE_SAMPLE_RATIO 调低
	sampler := sdktrace.AlwaysSample()
	if v := os.Getenv("TRACE_SAMPLE_RATIO"); v != "" {
		if ratio, perr := strconv.ParseFloat(v, 64); perr == nil {
			sampler = sdktrace.TraceIDRatioBased(ratio)
		}
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sampler),
		// 批处理 Span 处理器，避免每个 Span 一次网络往返
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		)),
	)

	otel.SetTracerProvider(tp)
	// TraceContext + Baggage，跨服务透传链路和业务上下文
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	log.Printf("Tracing initialized for service '%s' exporting to '%s'", serviceName, jaegerEndpoint)
	return tp, nil
}
