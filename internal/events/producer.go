package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

var producer *kafka.Producer

func InitProducer(broker string) error {
	slog.Info("[Events] Initializing Kafka Producer...", slog.String("broker", broker))

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":   broker,
		"acks":                "all",
		"enable.idempotence":  true,
		"api.version.request": "true",
	})
	if err != nil {
		return fmt.Errorf("[Events] Failed to create producer: %w", err)
	}

	producer = p
	slog.Info("[Events] Kafka Producer initialized successfully")
	return nil
}

func CloseProducer() {
	if producer != nil {
		slog.Info("[Events] Flushing Kafka producer before shutdown...")
		if remaining := producer.Flush(5000); remaining > 0 {
			slog.Warn("[Events] Not all messages were delivered before shutdown",
				slog.Int("remaining", remaining))
		}
		producer.Close()
	}
}

// KafkaPublisher satisfies the collector's Publisher interface.
type KafkaPublisher struct{}

func (KafkaPublisher) PublishBatchRef(ref BatchRef) error {
	return PublishBatchRef(ref)
}

func PublishBatchRef(ref BatchRef) error {
	if producer == nil {
		return fmt.Errorf("[Events] Kafka producer has not been initialized")
	}

	if ref.ProducedAt == 0 {
		ref.ProducedAt = time.Now().Unix()
	}

	value, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("[Events] Failed to marshal batch ref: %w", err)
	}

	topic := KAFKA_TOPIC_RAW_BATCHES
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(ref.Key),
		Value:          value,
	}

	deliveryChan := make(chan kafka.Event, 1)
	var produceErr error
	for i := 0; i < 3; i++ {
		produceErr = producer.Produce(msg, deliveryChan)
		if produceErr == nil {
			break
		}
		slog.Warn("[Events] Failed to produce message, retrying...",
			slog.Int("attempt", i+1))
		time.Sleep(time.Second)
	}
	if produceErr != nil {
		return fmt.Errorf("[Events] Failed to produce batch ref: %w", produceErr)
	}

	ev := <-deliveryChan
	if m, ok := ev.(*kafka.Message); ok && m.TopicPartition.Error != nil {
		return fmt.Errorf("[Events] Delivery failed: %w", m.TopicPartition.Error)
	}

	slog.Info("[Events] Published batch ref",
		slog.String("key", ref.Key),
		slog.Int("items", ref.ItemCount))
	return nil
}
