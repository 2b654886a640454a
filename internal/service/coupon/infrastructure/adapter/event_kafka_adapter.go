package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"bazaar/internal/pkg/mq"
	"bazaar/internal/service/coupon/domain/port"
)

// EventKafkaAdapter 实现 port.EventPublisher。
// 消息按用户 ID 分区，同一个用户的事件保持有序。
type EventKafkaAdapter struct {
	writer *kafka.Writer
}

// NewEventKafkaAdapter 创建领域事件生产者。
func NewEventKafkaAdapter(writer *kafka.Writer) *EventKafkaAdapter {
	return &EventKafkaAdapter{writer: writer}
}

// Publish 发送一条领域事件，追踪上下文随消息头透传。
func (a *EventKafkaAdapter) Publish(ctx context.Context, event *port.CouponEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal coupon event: %w", err)
	}
	key := []byte(strconv.FormatInt(event.UserID, 10))
	return mq.ProduceMessage(ctx, a.writer, key, eventBytes)
}

// Close 关闭底层的 Kafka writer。
func (a *EventKafkaAdapter) Close() error {
	return a.writer.Close()
}
