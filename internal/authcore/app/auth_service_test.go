package app_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/technotrac/authcore/internal/auth"
	"github.com/technotrac/authcore/internal/authcore/app"
	"github.com/technotrac/authcore/internal/domain"
	"github.com/technotrac/authcore/internal/domain/domaintest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	testPhone  = "+919876543210"
	testIP     = "203.0.113.7"
	testIssuer = "technotrac-auth"
)

var testStart = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

// cheapArgon2 keeps hashing fast in tests.
var cheapArgon2 = auth.Argon2Params{Memory: 64, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

var testSigningKey = []byte(strings.Repeat("k", auth.MinSigningKeyLength))

// stubSecretStore implements app.SecretStore with function fields.
type stubSecretStore struct {
	putFn    func(ctx context.Context, secret domain.OTPSecret, ttl time.Duration) error
	verifyFn func(ctx context.Context, phone, code string, maxAttempts int) (domain.VerifyOutcome, error)
}

func (s *stubSecretStore) Put(ctx context.Context, secret domain.OTPSecret, ttl time.Duration) error {
	if s.putFn != nil {
		return s.putFn(ctx, secret, ttl)
	}
	return nil
}

func (s *stubSecretStore) Verify(ctx context.Context, phone, code string, maxAttempts int) (domain.VerifyOutcome, error) {
	if s.verifyFn != nil {
		return s.verifyFn(ctx, phone, code, maxAttempts)
	}
	return domain.OutcomeNoSecret, nil
}

// stubRateLimiter implements app.RateLimiter with function fields.
type stubRateLimiter struct {
	admitFn         func(ctx context.Context, rule domain.RateRule, subject string) error
	claimCooldownFn func(ctx context.Context, phone string, ttl time.Duration) error
}

func (s *stubRateLimiter) Admit(ctx context.Context, rule domain.RateRule, subject string) error {
	if s.admitFn != nil {
		return s.admitFn(ctx, rule, subject)
	}
	return nil
}

func (s *stubRateLimiter) ClaimCooldown(ctx context.Context, phone string, ttl time.Duration) error {
	if s.claimCooldownFn != nil {
		return s.claimCooldownFn(ctx, phone, ttl)
	}
	return nil
}

// stubUserStore implements app.UserStore with function fields.
type stubUserStore struct {
	findByPhoneFn func(ctx context.Context, phone domain.PhoneNumber) (*domain.User, error)
	createFn      func(ctx context.Context, user domain.User) error
}

func (s *stubUserStore) FindByPhone(ctx context.Context, phone domain.PhoneNumber) (*domain.User, error) {
	if s.findByPhoneFn != nil {
		return s.findByPhoneFn(ctx, phone)
	}
	return nil, domain.ErrNotFound
}

func (s *stubUserStore) Create(ctx context.Context, user domain.User) error {
	if s.createFn != nil {
		return s.createFn(ctx, user)
	}
	return nil
}

// stubAuditSink implements app.AuditSink with a function field.
type stubAuditSink struct {
	recordIssuanceFn func(ctx context.Context, rec domain.OTPAuditRecord) error
}

func (s *stubAuditSink) RecordIssuance(ctx context.Context, rec domain.OTPAuditRecord) error {
	if s.recordIssuanceFn != nil {
		return s.recordIssuanceFn(ctx, rec)
	}
	return nil
}

// stubDelivery implements auth.DeliveryChannel with a function field.
type stubDelivery struct {
	sendFn func(ctx context.Context, phone domain.PhoneNumber, message string) error
}

func (s *stubDelivery) Send(ctx context.Context, phone domain.PhoneNumber, message string) error {
	if s.sendFn != nil {
		return s.sendFn(ctx, phone, message)
	}
	return nil
}

// stubRevocations implements app.RevocationStore with function fields.
// By default it records revocations in memory.
type stubRevocations struct {
	mu          sync.Mutex
	revoked     map[string]time.Duration
	isRevokedFn func(ctx context.Context, jti string) (bool, error)
}

func (s *stubRevocations) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revoked == nil {
		s.revoked = make(map[string]time.Duration)
	}
	s.revoked[jti] = ttl
	return nil
}

func (s *stubRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if s.isRevokedFn != nil {
		return s.isRevokedFn(ctx, jti)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[jti]
	return ok, nil
}

// memoryUserStore is an in-memory app.UserStore keyed by phone.
type memoryUserStore struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{users: make(map[string]domain.User)}
}

func (m *memoryUserStore) FindByPhone(_ context.Context, phone domain.PhoneNumber) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[phone.String()]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (m *memoryUserStore) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Phone.String()]; ok {
		return domain.ErrAlreadyExists
	}
	m.users[user.Phone.String()] = user
	return nil
}

// testHarness holds all stubs and the constructed AuthService for a test.
type testHarness struct {
	svc         *app.AuthService
	clock       *domaintest.FakeClock
	secrets     *stubSecretStore
	rateLimiter *stubRateLimiter
	userStore   *stubUserStore
	audit       *stubAuditSink
	delivery    *stubDelivery
	revocations *stubRevocations
	hasher      *auth.CodeHasher
	logs        *bytes.Buffer
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	clock := domaintest.NewFakeClock(testStart)
	ring, err := auth.NewKeyRing(testSigningKey)
	require.NoError(t, err)

	h := &testHarness{
		clock:       clock,
		secrets:     &stubSecretStore{},
		rateLimiter: &stubRateLimiter{},
		userStore:   &stubUserStore{},
		audit:       &stubAuditSink{},
		delivery:    &stubDelivery{},
		revocations: &stubRevocations{},
		hasher:      auth.NewCodeHasher(cheapArgon2),
		logs:        &bytes.Buffer{},
	}

	h.svc = app.NewAuthService(app.AuthServiceConfig{
		Secrets:     h.secrets,
		RateLimiter: h.rateLimiter,
		UserStore:   h.userStore,
		Audit:       h.audit,
		Delivery:    h.delivery,
		Hasher:      h.hasher,
		Minter:      auth.NewMinter(auth.MinterConfig{Keys: ring, TTL: domain.SessionTokenLifetime, Issuer: testIssuer, Clock: clock}),
		Validator:   auth.NewValidator(auth.ValidatorConfig{Keys: ring, Issuer: testIssuer, Clock: clock}),
		Clock:       clock,
		Policy:      app.DefaultPolicy(),
		Logger:      slog.New(slog.NewJSONHandler(h.logs, &slog.HandlerOptions{ReplaceAttr: dropTime})),
		Revocations: h.revocations,
	})

	return h
}

// dropTime removes the record timestamp so log assertions only see attributes.
func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}
