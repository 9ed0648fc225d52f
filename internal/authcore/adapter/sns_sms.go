package adapter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/technotrac/authcore/internal/auth"
	"github.com/technotrac/authcore/internal/domain"
)

// snsPublisher is a narrow, consumer-defined interface for the subset of SNS
// operations required by the SMS channel. The real *sns.Client satisfies it.
type snsPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Compile-time interface satisfaction checks.
var _ auth.DeliveryChannel = (*SNSChannel)(nil)
var _ auth.DeliveryChannel = (*LogChannel)(nil)

// SNSChannel delivers messages as transactional SMS through Amazon SNS.
type SNSChannel struct {
	client   snsPublisher
	senderID string
}

// NewSNSChannel creates an SNSChannel backed by the given SNS client.
// An empty senderID leaves the sender to the account default.
func NewSNSChannel(client snsPublisher, senderID string) *SNSChannel {
	return &SNSChannel{client: client, senderID: senderID}
}

// Send publishes message to phone.
func (c *SNSChannel) Send(ctx context.Context, phone domain.PhoneNumber, message string) error {
	ctx, span := tracer.Start(ctx, "sns.sms.send")
	defer span.End()
	span.SetAttributes(attribute.String("messaging.system", "sns"))

	attrs := map[string]snstypes.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {
			DataType:    aws.String("String"),
			StringValue: aws.String("Transactional"),
		},
	}
	if c.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = snstypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(c.senderID),
		}
	}

	_, err := c.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(phone.String()),
		Message:           aws.String(message),
		MessageAttributes: attrs,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sns publish failed")
		return fmt.Errorf("sns sms: send to %s: %w", phone.Masked(), err)
	}

	return nil
}

// LogChannel is a development DeliveryChannel that writes deliveries to the
// log instead of sending SMS. The message body, which contains the code, is
// only logged when reveal is set.
type LogChannel struct {
	logger *slog.Logger
	reveal bool
}

// NewLogChannel creates a LogChannel. Pass reveal=true only in local
// environments.
func NewLogChannel(logger *slog.Logger, reveal bool) *LogChannel {
	return &LogChannel{logger: logger, reveal: reveal}
}

// Send logs the delivery with a masked phone number. It never fails.
func (c *LogChannel) Send(ctx context.Context, phone domain.PhoneNumber, message string) error {
	attrs := []any{slog.String("phone", phone.Masked())}
	if c.reveal {
		attrs = append(attrs, slog.String("body", message))
	}

	c.logger.InfoContext(ctx, "sms.delivery_logged", attrs...)
	return nil
}
