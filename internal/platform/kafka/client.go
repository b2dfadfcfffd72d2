// Package kafka wraps a franz-go client for producing alert and audit
// records.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Config holds the broker connection and topic layout.
type Config struct {
	Brokers           []string
	ClientID          string
	AlertTopic        string
	AuditTopic        string
	Partitions        int32
	ReplicationFactor int16
}

// Client wraps the franz-go client with health checking capabilities.
type Client struct {
	*kgo.Client
}

// New creates a producing client. Returns nil if no brokers are configured.
func New(cfg Config) (*Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "kyccase"
	}
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(clientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5*time.Millisecond),
		kgo.RecordRetries(5),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cl.Ping(ctx); err != nil {
		cl.Close()
		return nil, fmt.Errorf("kafka ping failed: %w", err)
	}
	return &Client{Client: cl}, nil
}

// EnsureTopics creates the configured topics, ignoring ones that exist.
func (c *Client) EnsureTopics(ctx context.Context, cfg Config) error {
	partitions, rf := cfg.Partitions, cfg.ReplicationFactor
	if partitions <= 0 {
		partitions = 1
	}
	if rf <= 0 {
		rf = 1
	}
	var topics []string
	for _, t := range []string{cfg.AlertTopic, cfg.AuditTopic} {
		if t != "" {
			topics = append(topics, t)
		}
	}
	if len(topics) == 0 {
		return nil
	}

	resp, err := kadm.NewClient(c.Client).CreateTopics(ctx, partitions, rf, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, t := range resp {
		if t.Err != nil && !errors.Is(t.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", t.Topic, t.Err)
		}
	}
	return nil
}

// Produce writes one record and waits for the broker acknowledgement.
func (c *Client) Produce(ctx context.Context, topic string, key, value []byte) error {
	rec := &kgo.Record{Topic: topic, Key: key, Value: value}
	if err := c.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	return nil
}

// Health checks if a broker is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx)
}

// Producer is the write side used by publishers.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// TopicSink adapts a Producer to a single-topic keyed sink.
type TopicSink struct {
	Producer Producer
	Topic    string
}

func (s TopicSink) Publish(ctx context.Context, key string, value []byte) error {
	return s.Producer.Produce(ctx, s.Topic, []byte(key), value)
}
