package adapter

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/technotrac/authcore/internal/domain"
)

// pgExecer is the narrow subset of *pgxpool.Pool used by the audit sink.
type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditSchema creates the append-only issuance table. It is idempotent.
const AuditSchema = `
CREATE TABLE IF NOT EXISTS otp_codes (
	id          UUID PRIMARY KEY,
	phone_e164  TEXT NOT NULL,
	code_hash   TEXT NOT NULL,
	expires_at  TIMESTAMPTZ NOT NULL,
	attempts    SMALLINT NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS otp_codes_phone_e164_idx ON otp_codes (phone_e164);
`

const insertAuditSQL = `INSERT INTO otp_codes (id, phone_e164, code_hash, expires_at, attempts, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

// PostgresAuditSink appends issuance records to the otp_codes table.
// Rows are never updated or read back by the service.
type PostgresAuditSink struct {
	db pgExecer
}

// NewPostgresAuditSink creates a sink over db, normally a *pgxpool.Pool.
func NewPostgresAuditSink(db pgExecer) *PostgresAuditSink {
	return &PostgresAuditSink{db: db}
}

// EnsureSchema applies AuditSchema.
func (s *PostgresAuditSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, AuditSchema); err != nil {
		return fmt.Errorf("audit sink: ensure schema: %w", err)
	}
	return nil
}

// RecordIssuance inserts one audit row.
func (s *PostgresAuditSink) RecordIssuance(ctx context.Context, rec domain.OTPAuditRecord) error {
	ctx, span := tracer.Start(ctx, "postgres.audit.record_issuance")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
	)

	_, err := s.db.Exec(ctx, insertAuditSQL,
		rec.ID, rec.Phone, rec.CodeHash, rec.ExpiresAt, rec.Attempts, rec.CreatedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("audit sink: insert: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}
