// Package kafka provides the producer used by the audit event sink.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Config holds producer parameters.
type Config struct {
	Brokers  []string
	ClientID string
	Timeout  time.Duration
}

// Message is a record to publish. Re-exported so adapters do not import kafka-go.
type Message = kafka.Message

// Header is a record header.
type Header = kafka.Header

// NewWriter returns a synchronous writer that waits for the leader's ack.
// The topic is set per message.
func NewWriter(cfg Config, logger *slog.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		MaxAttempts:  3,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.Timeout,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		Transport: &kafka.Transport{
			ClientID: cfg.ClientID,
		},
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error("kafka writer", slog.String("detail", fmt.Sprintf(msg, args...)))
		}),
	}
}

// HealthCheck dials the first broker and reads its partition metadata.
func HealthCheck(ctx context.Context, cfg Config) error {
	if len(cfg.Brokers) == 0 {
		return fmt.Errorf("kafka: no brokers configured")
	}

	dialer := &kafka.Dialer{
		ClientID:  cfg.ClientID,
		Timeout:   5 * time.Second,
		DualStack: true,
	}

	conn, err := dialer.DialContext(ctx, "tcp", cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("dial kafka broker: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ReadPartitions(); err != nil {
		return fmt.Errorf("read kafka partitions: %w", err)
	}
	return nil
}
