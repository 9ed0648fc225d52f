package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/go-chi/chi/v5"

	"github.com/technotrac/authcore/internal/auth"
	"github.com/technotrac/authcore/internal/authcore/adapter"
	"github.com/technotrac/authcore/internal/authcore/app"
	"github.com/technotrac/authcore/internal/authcore/port"
	"github.com/technotrac/authcore/internal/awsx"
	"github.com/technotrac/authcore/internal/config"
	"github.com/technotrac/authcore/internal/domain"
	"github.com/technotrac/authcore/internal/dynamo"
	"github.com/technotrac/authcore/internal/kafka"
	"github.com/technotrac/authcore/internal/postgres"
	redisclient "github.com/technotrac/authcore/internal/redis"
)

// closers collects shutdown hooks and runs them in reverse order.
type closers []func()

func (c *closers) add(f func()) { *c = append(*c, f) }

func (c closers) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// setup is the authsvc composition root. It creates infrastructure clients,
// adapters and the auth service, and mounts the HTTP routes on r.
func setup(ctx context.Context, cfg *config.Config, logger *slog.Logger, r chi.Router) (cleanup func(), err error) {
	var cs closers
	defer func() {
		if err != nil {
			cs.run()
		}
	}()

	// 1. Infrastructure clients.
	redisClient := redisclient.NewClient(redisclient.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Timeout:  cfg.Redis.Timeout,
	})
	cs.add(func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			logger.Error("close redis", slog.String("error", closeErr.Error()))
		}
	})
	if err := redisClient.Ping(ctx); err != nil {
		return nil, fmt.Errorf("authsvc setup: %w", err)
	}

	awsCfg, err := awsx.Load(ctx, awsx.Config{
		Region:   cfg.AWS.Region,
		Endpoint: cfg.AWS.Endpoint,
		Timeout:  cfg.DynamoDB.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("authsvc setup: %w", err)
	}

	endpoint := cfg.DynamoDB.Endpoint
	if endpoint == "" {
		endpoint = cfg.AWS.Endpoint
	}
	dynamoClient := dynamo.NewClient(awsCfg, endpoint)

	// 2. Adapters.
	clock := domain.RealClock{}
	secretStore := adapter.NewSecretStore(redisClient.RDB)
	rateLimiter := adapter.NewRateLimiter(redisClient.RDB, logger)
	revocations := adapter.NewRevocationStore(redisClient.RDB)
	userStore := adapter.NewUserStore(dynamoClient.DB, cfg.DynamoDB.UsersTable, cfg.DynamoDB.PhonesTable)

	auditSink, err := createAuditSink(ctx, cfg, logger, &cs)
	if err != nil {
		return nil, fmt.Errorf("authsvc setup: create audit sink: %w", err)
	}

	delivery := createDeliveryChannel(cfg, awsCfg, logger)

	// 3. Session keys (environment-dependent).
	keys, err := createKeyRing(ctx, cfg, awsCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("authsvc setup: create key ring: %w", err)
	}

	// 4. Auth core.
	minter := auth.NewMinter(auth.MinterConfig{
		Keys:   keys,
		TTL:    cfg.Session.TTL(),
		Issuer: cfg.Session.Issuer,
		Clock:  clock,
	})
	validator := auth.NewValidator(auth.ValidatorConfig{
		Keys:   keys,
		Issuer: cfg.Session.Issuer,
		Clock:  clock,
	})

	// 5. Auth service.
	authSvc := app.NewAuthService(app.AuthServiceConfig{
		Secrets:     secretStore,
		RateLimiter: rateLimiter,
		UserStore:   userStore,
		Audit:       auditSink,
		Delivery:    delivery,
		Hasher:      auth.NewCodeHasher(auth.DefaultArgon2Params),
		Minter:      minter,
		Validator:   validator,
		Clock:       clock,
		Policy: app.Policy{
			CodeTTL:        cfg.OTP.TTL(),
			MaxAttempts:    cfg.OTP.MaxAttempts,
			IssueCooldown:  cfg.OTP.IssueCooldown(),
			HourlyCap:      cfg.OTP.HourlyCap,
			PhonePerMinute: cfg.RateLimit.PhonePerMinute,
			IPPerMinute:    cfg.RateLimit.IPPerMinute,
		},
		Logger:      logger,
		Revocations: revocations,
	})

	// 6. HTTP routes.
	trusted, err := cfg.HTTP.TrustedProxyPrefixes()
	if err != nil {
		return nil, fmt.Errorf("authsvc setup: %w", err)
	}
	port.Mount(r, port.NewAuthHandler(authSvc), port.RouterConfig{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		TrustedProxies: trusted,
		Logger:         logger,
	})

	logger.InfoContext(ctx, "authsvc initialized",
		slog.String("sms_provider", cfg.SMS.Provider),
		slog.String("audit_sink", cfg.Audit.Sink),
		slog.Int("signing_keys", len(keys.Keys())),
	)

	return cs.run, nil
}

// createAuditSink opens the configured durable sink for issuance records.
func createAuditSink(ctx context.Context, cfg *config.Config, logger *slog.Logger, cs *closers) (app.AuditSink, error) {
	switch cfg.Audit.Sink {
	case "kafka":
		kcfg := kafka.Config{
			Brokers:  cfg.Kafka.Brokers,
			ClientID: cfg.Kafka.ClientID,
			Timeout:  domain.KafkaProduceTimeout,
		}
		if err := kafka.HealthCheck(ctx, kcfg); err != nil {
			return nil, err
		}
		writer := kafka.NewWriter(kcfg, logger)
		cs.add(func() {
			if err := writer.Close(); err != nil {
				logger.Error("close kafka writer", slog.String("error", err.Error()))
			}
		})
		return adapter.NewKafkaAuditSink(writer, cfg.Audit.Topic), nil

	default:
		pool, err := postgres.NewPool(ctx, postgres.Config{
			URL:      cfg.Postgres.URL,
			MaxConns: cfg.Postgres.MaxConns,
			Timeout:  cfg.Postgres.Timeout,
		})
		if err != nil {
			return nil, err
		}
		cs.add(pool.Close)

		sink := adapter.NewPostgresAuditSink(pool)
		if err := sink.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return sink, nil
	}
}

// createDeliveryChannel returns the configured SMS channel. The log channel
// prints codes only in local development.
func createDeliveryChannel(cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) auth.DeliveryChannel {
	switch cfg.SMS.Provider {
	case "sns":
		client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
			if ep := awsx.BaseEndpoint(cfg.AWS.Endpoint); ep != nil {
				o.BaseEndpoint = ep
			}
		})
		return adapter.NewSNSChannel(client, cfg.SMS.SNSSenderID)

	case "msg91":
		return adapter.NewMSG91Channel(adapter.MSG91Config{
			BaseURL:    cfg.SMS.MSG91BaseURL,
			AuthKey:    domain.SecretString(cfg.SMS.MSG91AuthKey),
			SenderID:   cfg.SMS.MSG91SenderID,
			TemplateID: cfg.SMS.MSG91TemplateID,
		}, nil)

	default:
		if !cfg.IsLocal() {
			logger.Warn("log-only SMS provider outside local, codes will not reach users")
		}
		return adapter.NewLogChannel(logger, cfg.IsLocal())
	}
}

// createKeyRing resolves the session signing keys. Configured keys win, then
// Secrets Manager. Local development falls back to an ephemeral key, which
// invalidates every session on restart.
func createKeyRing(ctx context.Context, cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) (*auth.KeyRing, error) {
	if len(cfg.Session.SigningKeys) > 0 {
		return auth.NewKeyRingFromStrings(cfg.Session.SigningKeys)
	}

	if cfg.Session.SigningKeysSecretID != "" {
		client := secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
			if ep := awsx.BaseEndpoint(cfg.AWS.Endpoint); ep != nil {
				o.BaseEndpoint = ep
			}
		})
		return adapter.LoadKeyRing(ctx, client, cfg.Session.SigningKeysSecretID)
	}

	if cfg.IsLocal() {
		key, err := auth.GenerateEphemeralKey()
		if err != nil {
			return nil, err
		}
		logger.Info("using ephemeral signing key for local development")
		return auth.NewKeyRing(key)
	}

	return nil, auth.ErrNoSigningKeys
}
