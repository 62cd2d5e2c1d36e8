package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

var consumer *kafka.Consumer

const (
	consumerMaxRetries = 5
	consumerRetryDelay = 2 * time.Second
)

func InitConsumer(broker, groupID string) error {
	slog.Info("[Events] Initializing Kafka Consumer...",
		slog.String("broker", broker),
		slog.String("group_id", groupID),
		slog.String("topic", KAFKA_TOPIC_RAW_BATCHES))

	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  broker,
		"group.id":           groupID,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false,
	})
	if err != nil {
		return fmt.Errorf("[Events] Failed to create consumer: %w", err)
	}

	if err := c.SubscribeTopics([]string{KAFKA_TOPIC_RAW_BATCHES}, nil); err != nil {
		return fmt.Errorf("[Events] Failed to subscribe: %w", err)
	}

	consumer = c
	slog.Info("[Events] Kafka Consumer initialized successfully")
	return nil
}

func CloseConsumer() {
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			slog.Warn("[Events] Failed to close consumer", slog.String("error", err.Error()))
		}
	}
}

// NextBatchRef blocks until a batch ref arrives. The returned message must be
// committed with CommitMessage after the batch has been processed.
func NextBatchRef(ctx context.Context) (*BatchRef, *kafka.Message, error) {
	if consumer == nil {
		return nil, nil, errors.New("[Events] Kafka consumer has not been initialized")
	}

	for i := 0; i < consumerMaxRetries; i++ {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
			msg, err := consumer.ReadMessage(time.Second)
			if err != nil {
				var kafkaErr kafka.Error
				if errors.As(err, &kafkaErr) {
					if kafkaErr.Code() == kafka.ErrTimedOut {
						i--
						continue
					}
					if kafkaErr.Code() == kafka.ErrAllBrokersDown {
						slog.Error("[Events] All Kafka brokers are down. Aborting")
						return nil, nil, err
					}
				}

				slog.Warn("[Events] Failed to read message, retrying...",
					slog.Int("attempt", i+1),
					slog.String("error", err.Error()))
				time.Sleep(consumerRetryDelay)
				continue
			}

			var ref BatchRef
			if err := json.Unmarshal(msg.Value, &ref); err != nil {
				slog.Error("[Events] Skipping undecodable batch ref",
					slog.String("error", err.Error()))
				// Commit so a poison message is not redelivered forever.
				_, _ = consumer.CommitMessage(msg)
				continue
			}
			return &ref, msg, nil
		}
	}

	return nil, nil, errors.New("[Events] Failed to read message after retries")
}

func CommitMessage(msg *kafka.Message) error {
	if consumer == nil {
		return errors.New("[Events] Kafka consumer has not been initialized")
	}
	if _, err := consumer.CommitMessage(msg); err != nil {
		return fmt.Errorf("[Events] Failed to commit offset: %w", err)
	}
	return nil
}
