package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/technotrac/authcore/internal/auth"
	"github.com/technotrac/authcore/internal/domain"
)

const (
	msg91FlowPath = "/api/v5/flow/"
	msg91SendPath = "/api/v2/sendsms"
)

var _ auth.DeliveryChannel = (*MSG91Channel)(nil)

// MSG91Config configures the MSG91 channel. With a TemplateID the flow API
// is used; otherwise the plain send API with the sender ID.
type MSG91Config struct {
	BaseURL    string
	AuthKey    domain.SecretString
	SenderID   string
	TemplateID string
}

// MSG91Channel delivers SMS through the MSG91 HTTP API.
type MSG91Channel struct {
	cfg        MSG91Config
	httpClient *http.Client
}

type msg91FlowRequest struct {
	TemplateID string           `json:"template_id"`
	ShortURL   string           `json:"short_url"`
	Recipients []msg91Recipient `json:"recipients"`
}

type msg91Recipient struct {
	Mobiles string `json:"mobiles"`
	Message string `json:"message"`
}

type msg91SendRequest struct {
	Sender  string     `json:"sender"`
	Route   string     `json:"route"`
	Country string     `json:"country"`
	SMS     []msg91SMS `json:"sms"`
}

type msg91SMS struct {
	Message string   `json:"message"`
	To      []string `json:"to"`
}

// NewMSG91Channel creates a channel. A nil httpClient gets one with the
// delivery timeout.
func NewMSG91Channel(cfg MSG91Config, httpClient *http.Client) *MSG91Channel {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: domain.DeliveryTimeout}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &MSG91Channel{cfg: cfg, httpClient: httpClient}
}

// Send posts message to phone. Any non-2xx response is an error.
func (c *MSG91Channel) Send(ctx context.Context, phone domain.PhoneNumber, message string) error {
	ctx, span := tracer.Start(ctx, "msg91.sms.send")
	defer span.End()

	mobile := strings.TrimPrefix(phone.String(), "+")

	var (
		path    string
		payload any
	)
	if c.cfg.TemplateID != "" {
		path = msg91FlowPath
		payload = msg91FlowRequest{
			TemplateID: c.cfg.TemplateID,
			ShortURL:   "0",
			Recipients: []msg91Recipient{{Mobiles: mobile, Message: message}},
		}
	} else {
		path = msg91SendPath
		payload = msg91SendRequest{
			Sender:  c.cfg.SenderID,
			Route:   "4",
			Country: "91",
			SMS:     []msg91SMS{{Message: message, To: []string{mobile}}},
		}
	}
	span.SetAttributes(attribute.String("msg91.api", path))

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("msg91 sms: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("msg91 sms: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("authkey", c.cfg.AuthKey.Expose())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "msg91 request failed")
		return fmt.Errorf("msg91 sms: send to %s: %w", phone.Masked(), err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		span.SetStatus(codes.Error, resp.Status)
		return fmt.Errorf("msg91 sms: send to %s: status %d", phone.Masked(), resp.StatusCode)
	}

	return nil
}
