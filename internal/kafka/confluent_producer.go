package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/elviDev/ls-internet-radio-sub002/pkg/log"
)

// ConfluentProducer implements EventProducer using confluent-kafka-go.
type ConfluentProducer struct {
	producer *kafka.Producer
	topic    string
	doneCh   chan struct{}
}

// NewConfluentProducer creates a Kafka producer for broadcast events.
func NewConfluentProducer(brokers, topic string, partitions int) (*ConfluentProducer, error) {
	if err := ensureTopic(brokers, topic, partitions); err != nil {
		log.L().Warn().Err(err).Str("topic", topic).Msg("failed to ensure topic, may already exist")
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"acks":              "1",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	cp := &ConfluentProducer{
		producer: p,
		topic:    topic,
		doneCh:   make(chan struct{}),
	}

	go cp.deliveryReportHandler()

	return cp, nil
}

func ensureTopic(brokers, topic string, partitions int) error {
	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{
		{
			Topic:             topic,
			NumPartitions:     partitions,
			ReplicationFactor: 1,
		},
	})
	if err != nil {
		return err
	}

	for _, result := range results {
		if result.Error.Code() != kafka.ErrNoError && result.Error.Code() != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("failed to create topic %s: %v", result.Topic, result.Error)
		}
	}

	return nil
}

func (cp *ConfluentProducer) deliveryReportHandler() {
	for e := range cp.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				log.L().Error().Err(ev.TopicPartition.Error).Msg("kafka delivery failed")
			}
		}
	}
	close(cp.doneCh)
}

func (cp *ConfluentProducer) produceEvent(event *BroadcastEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast event: %w", err)
	}

	// Key by broadcast id for consistent partition assignment.
	err = cp.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &cp.topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(event.BroadcastID),
		Value: value,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to produce event: %w", err)
	}
	return nil
}

// ProduceBroadcastStarted publishes a broadcast_started event.
func (cp *ConfluentProducer) ProduceBroadcastStarted(ctx context.Context, broadcastID, broadcasterID string) error {
	return cp.produceEvent(&BroadcastEvent{
		Type:          EventBroadcastStarted,
		BroadcastID:   broadcastID,
		BroadcasterID: broadcasterID,
		Timestamp:     time.Now().UTC(),
	})
}

// ProduceBroadcastStopped publishes a broadcast_stopped event.
func (cp *ConfluentProducer) ProduceBroadcastStopped(ctx context.Context, broadcastID, broadcasterID, reason string) error {
	return cp.produceEvent(&BroadcastEvent{
		Type:          EventBroadcastStopped,
		BroadcastID:   broadcastID,
		BroadcasterID: broadcasterID,
		Reason:        reason,
		Timestamp:     time.Now().UTC(),
	})
}

// ProduceCallAccepted publishes a call_accepted event.
func (cp *ConfluentProducer) ProduceCallAccepted(ctx context.Context, broadcastID, callID string) error {
	return cp.produceEvent(&BroadcastEvent{
		Type:        EventCallAccepted,
		BroadcastID: broadcastID,
		CallID:      callID,
		Timestamp:   time.Now().UTC(),
	})
}

// Close flushes pending events and shuts the producer down.
func (cp *ConfluentProducer) Close() error {
	cp.producer.Flush(5000)
	cp.producer.Close()
	<-cp.doneCh
	return nil
}
