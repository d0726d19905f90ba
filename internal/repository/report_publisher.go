package repository

import (
	"context"

	"CoilScan/internal/domain/models"
	"CoilScan/internal/domain/repository"
	pkgkafka "CoilScan/pkg/kafka"
)

// KafkaReportPublisher implements ReportPublisher for Kafka. Reports are
// keyed by symbol so per-symbol ordering is preserved with the hash balancer.
type KafkaReportPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaReportPublisher creates a Kafka report publisher.
func NewKafkaReportPublisher(producer *pkgkafka.Producer, topic string) repository.ReportPublisher {
	return &KafkaReportPublisher{producer: producer, topic: topic}
}

func (p *KafkaReportPublisher) Publish(ctx context.Context, r *models.ScanReport) error {
	return p.producer.Publish(ctx, p.topic, []byte(r.Symbol), r)
}

func (p *KafkaReportPublisher) PublishBatch(ctx context.Context, rs []*models.ScanReport) error {
	if len(rs) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(rs))
	for i, r := range rs {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(r.Symbol),
			Value: r,
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaReportPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopReportPublisher is used when Kafka is disabled.
type NopReportPublisher struct{}

func (NopReportPublisher) Publish(context.Context, *models.ScanReport) error        { return nil }
func (NopReportPublisher) PublishBatch(context.Context, []*models.ScanReport) error { return nil }
func (NopReportPublisher) Close() error                                             { return nil }
