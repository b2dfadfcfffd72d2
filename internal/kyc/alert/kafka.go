package alert

import (
	"context"
	"encoding/json"
	"fmt"

	"kyccase/internal/kyc/ports"
	"kyccase/internal/platform/kafka"
)

// Kafka produces alerts as JSON to a topic, keyed by subject ID.
type Kafka struct {
	producer kafka.Producer
	topic    string
}

var _ ports.AlertPublisher = (*Kafka)(nil)

func NewKafka(producer kafka.Producer, topic string) *Kafka {
	return &Kafka{producer: producer, topic: topic}
}

func (k *Kafka) Publish(ctx context.Context, a ports.Alert) error {
	value, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	return k.producer.Produce(ctx, k.topic, []byte(a.SubjectID.String()), value)
}
