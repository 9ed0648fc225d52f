// Package port exposes the auth service over HTTP.
package port

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/technotrac/authcore/internal/auth"
	"github.com/technotrac/authcore/internal/authcore/app"
	"github.com/technotrac/authcore/internal/domain"
	"github.com/technotrac/authcore/internal/errmap"
	"github.com/technotrac/authcore/internal/observability"
)

// maxBodyBytes bounds request bodies; every auth payload is a few fields.
const maxBodyBytes = 4 << 10

// authService is a narrow, consumer-defined interface for the auth service
// operations the handler requires. The *app.AuthService satisfies this.
type authService interface {
	RequestOTP(ctx context.Context, rawPhone, clientIP string) (*app.RequestOTPResult, error)
	VerifyOTP(ctx context.Context, rawPhone, code, rawRole string) (*app.VerifyOTPResult, error)
	IssueSession(ctx context.Context, userID domain.UserID, role domain.Role) (auth.MintResult, error)
	Authenticate(ctx context.Context, token string) (auth.Session, error)
	Authorize(ctx context.Context, token string, op domain.Operation) (auth.Session, error)
	Logout(ctx context.Context, token string) error
}

// AuthHandler translates HTTP requests into app-layer calls and maps
// results and domain errors back to JSON responses.
type AuthHandler struct {
	svc authService
}

// NewAuthHandler creates an AuthHandler backed by the given AuthService.
func NewAuthHandler(svc *app.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// RegisterRoutes mounts the auth endpoints on r.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/otp/request", h.RequestOTP)
		r.Post("/otp/verify", h.VerifyOTP)
		r.Get("/me", h.Me)
		r.Get("/authorize/{operation}", h.Authorize)
		r.Post("/logout", h.Logout)
	})
}

type requestOTPBody struct {
	PhoneE164 string `json:"phone_e164"`
}

type requestOTPResponse struct {
	Message           string    `json:"message"`
	ExpiresAt         time.Time `json:"expires_at"`
	RetryAfterSeconds int       `json:"retry_after_seconds"`
}

type verifyOTPBody struct {
	PhoneE164 string `json:"phone_e164"`
	Code      string `json:"code"`
	Role      string `json:"role"`
}

type userResponse struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

type verifyOTPResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	NewUser     bool         `json:"new_user"`
	User        userResponse `json:"user"`
}

type meResponse struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type authorizeResponse struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	Operation string `json:"operation"`
}

// RequestOTP issues a code to the phone in the body.
func (h *AuthHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var body requestOTPBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.svc.RequestOTP(r.Context(), body.PhoneE164, clientIP(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, requestOTPResponse{
		Message:           "OTP sent",
		ExpiresAt:         result.ExpiresAt,
		RetryAfterSeconds: result.RetryAfterSeconds,
	})
}

// VerifyOTP checks the submitted code and, on success, returns a session token.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var body verifyOTPBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.svc.VerifyOTP(r.Context(), body.PhoneE164, body.Code, body.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}

	minted, err := h.svc.IssueSession(r.Context(), result.UserID, result.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, verifyOTPResponse{
		AccessToken: minted.Token,
		TokenType:   "bearer",
		ExpiresAt:   minted.ExpiresAt,
		NewUser:     result.NewUser,
		User: userResponse{
			ID:   result.UserID.String(),
			Role: string(result.Role),
		},
	})
}

// Me returns the identity carried by the bearer token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.Authenticate(r.Context(), bearerToken(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		UserID: session.UserID.String(),
		Role:   string(session.Role),
	})
}

// Authorize reports whether the bearer may perform the named operation.
// Operation names outside the policy table are 404s.
func (h *AuthHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	op := domain.Operation(chi.URLParam(r, "operation"))
	if !domain.KnownOperation(op) {
		writeError(w, r, fmt.Errorf("operation %q: %w", op, domain.ErrNotFound))
		return
	}

	session, err := h.svc.Authorize(r.Context(), bearerToken(r), op)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, authorizeResponse{
		UserID:    session.UserID.String(),
		Role:      string(session.Role),
		Operation: string(op),
	})
}

// Logout revokes the bearer token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context(), bearerToken(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeJSON reads a single bounded JSON object into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w: %w", domain.ErrInvalidInput, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error errmap.HTTPError `json:"error"`
}

// writeError maps err to its HTTP response. Server-side failures are logged
// with the full chain and reported to Sentry; clients only see the mapped message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	he := errmap.ToHTTPError(err)

	if he.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", he.RetryAfterSeconds))
	}
	if he.StatusCode >= http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error("http.request_failed",
			"path", r.URL.Path,
			"status", he.StatusCode,
			"error", err,
		)
		observability.CaptureError(r.Context(), err)
	}

	writeJSON(w, he.StatusCode, errorResponse{Error: he})
}

// bearerToken extracts the token from the Authorization header. A missing
// or malformed header yields "", which the validator rejects.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// clientIP returns the request's remote host. For requests relayed by a
// trusted proxy, RemoteAddr has already been rewritten from the forwarding
// headers; for everyone else those headers are ignored.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
