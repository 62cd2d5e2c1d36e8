// Package events carries batch references between the collector and the
// enricher over Kafka. Delivery is at-least-once; the enricher's output is
// idempotent per batch key, so redelivery only causes an overwrite.
package events

const KAFKA_TOPIC_RAW_BATCHES = "tickersent.raw-batches"

// BatchRef points at one raw batch object.
type BatchRef struct {
	Bucket     string `json:"bucket"`
	Key        string `json:"key"`
	ItemCount  int    `json:"item_count"`
	ProducedAt int64  `json:"produced_at,omitempty"`
}
