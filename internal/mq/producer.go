package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

type ProduceMsg struct {
	Topic        string
	Headers      map[string]string
	Payload      []byte
	PartitionKey *string
}

type Producer interface {
	Produce(ctx context.Context, msg ProduceMsg) error
}

var _ Producer = (*KafkaProducer)(nil)

type KafkaProducer struct {
	cl *kgo.Client
}

// NewKafkaProducer connects to brokers and verifies reachability.
func NewKafkaProducer(ctx context.Context, brokers []string) (*KafkaProducer, error) {
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := cl.Ping(pingCtx); err != nil {
		cl.Close()
		return nil, fmt.Errorf("ping kafka: %w", err)
	}

	return &KafkaProducer{cl: cl}, nil
}

// Produce blocks until the broker acknowledges the record or ctx ends.
func (p *KafkaProducer) Produce(ctx context.Context, msg ProduceMsg) error {
	var msgErr error
	doneChan := make(chan struct{})
	promise := func(_ *kgo.Record, err error) {
		msgErr = err
		close(doneChan)
	}

	p.cl.Produce(ctx, BuildRecord(msg), promise)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-doneChan:
		return msgErr
	}
}

func (p *KafkaProducer) Close() {
	p.cl.Close()
}

// BuildRecord maps a message onto a Kafka record. The partition key keeps
// events of one sale in order.
func BuildRecord(msg ProduceMsg) *kgo.Record {
	headers := make([]kgo.RecordHeader, 0, len(msg.Headers))
	for k, v := range msg.Headers {
		headers = append(headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}

	r := &kgo.Record{
		Topic:   msg.Topic,
		Value:   msg.Payload,
		Headers: headers,
	}
	if msg.PartitionKey != nil {
		r.Key = []byte(*msg.PartitionKey)
	}
	return r
}
