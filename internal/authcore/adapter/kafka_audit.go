package adapter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/technotrac/authcore/internal/domain"
	"github.com/technotrac/authcore/internal/kafka"
)

// messageWriter is the narrow subset of *kafka.Writer used by the sink.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

const auditEventType = "otp.issued"

// auditEvent is the JSON body published per issuance.
type auditEvent struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone_e164"`
	CodeHash  string    `json:"code_hash"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}

// KafkaAuditSink publishes issuance records to a topic. Records are keyed by
// a digest of the phone so one phone's history stays on one partition.
type KafkaAuditSink struct {
	writer messageWriter
	topic  string
}

// NewKafkaAuditSink creates a sink publishing to topic.
func NewKafkaAuditSink(writer messageWriter, topic string) *KafkaAuditSink {
	return &KafkaAuditSink{writer: writer, topic: topic}
}

// RecordIssuance publishes one record and waits for the broker ack.
func (s *KafkaAuditSink) RecordIssuance(ctx context.Context, rec domain.OTPAuditRecord) error {
	ctx, span := tracer.Start(ctx, "kafka.audit.record_issuance")
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination.name", s.topic),
	)

	body, err := json.Marshal(auditEvent{
		ID:        rec.ID,
		Phone:     rec.Phone,
		CodeHash:  rec.CodeHash,
		ExpiresAt: rec.ExpiresAt.UTC(),
		Attempts:  rec.Attempts,
		CreatedAt: rec.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("audit sink: encode event: %w", err)
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Topic: s.topic,
		Key:   []byte(phoneDigest(rec.Phone)),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(auditEventType)},
		},
		Time: rec.CreatedAt,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("audit sink: publish: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func phoneDigest(phone string) string {
	sum := sha256.Sum256([]byte(phone))
	return hex.EncodeToString(sum[:16])
}
