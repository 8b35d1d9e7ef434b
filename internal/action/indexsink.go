package action

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/DimaJoyti/defi-sentinel/internal/risk"
)

// IndexSink publishes every risk event to a Kafka topic so downstream
// consumers (a search index, a data warehouse loader) can pick it up
// without coupling to the detection pipeline itself.
type IndexSink struct {
	producer sarama.SyncProducer
	topic    string
}

// NewIndexSink builds an IndexSink backed by a synchronous producer over
// the given brokers.
func NewIndexSink(brokers []string, topic string) (*IndexSink, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &IndexSink{producer: producer, topic: topic}, nil
}

func (s *IndexSink) Name() string { return "index" }

func (s *IndexSink) Dispatch(_ context.Context, ev risk.Event) error {
	payload, err := json.Marshal(newRiskEventWire(ev))
	if err != nil {
		return fmt.Errorf("marshal risk event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(ev.Sender),
		Value: sarama.ByteEncoder(payload),
	}
	_, _, err = s.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publish risk event: %w", err)
	}
	return nil
}

// Close releases the underlying producer's connections.
func (s *IndexSink) Close() error {
	return s.producer.Close()
}
