package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"EdgeRAG/backend/go/internal/config"
	"EdgeRAG/backend/go/internal/models"

	"github.com/segmentio/kafka-go"
)

// DiagnosticsPublisher 封装了向 Kafka 发送降级诊断事件的逻辑。
// 语言识别回退、实体识别失败、分块被跳过等降级路径都会经过它，
// 让静默降级在日志之外也可被监控系统观测到。
type DiagnosticsPublisher struct {
	writer *kafka.Writer
}

// NewDiagnosticsPublisher 创建一个新的 DiagnosticsPublisher 实例。
func NewDiagnosticsPublisher(cfg *config.KafkaConfig) *DiagnosticsPublisher {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	})
	return &DiagnosticsPublisher{writer: writer}
}

// Publish 将 DiagnosticEvent 序列化为 JSON 并发送到 Kafka。
func (p *DiagnosticsPublisher) Publish(ctx context.Context, event models.DiagnosticEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal diagnostic event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Stage),
		Value: jsonData,
	})
	if err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

// Close 关闭底层的 writer 连接。
func (p *DiagnosticsPublisher) Close() error {
	return p.writer.Close()
}
