package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technotrac/authcore/internal/domain"
)

func TestIssueSessionAndAuthenticate(t *testing.T) {
	t.Run("token round-trips user and role", func(t *testing.T) {
		h := newTestHarness(t)
		userID := domain.MustUserID(existingUserID)

		minted, err := h.svc.IssueSession(context.Background(), userID, domain.RoleFarmer)
		require.NoError(t, err)
		assert.Equal(t, testStart.Add(24*time.Hour), minted.ExpiresAt)

		session, err := h.svc.Authenticate(context.Background(), minted.Token)

		require.NoError(t, err)
		assert.Equal(t, userID, session.UserID)
		assert.Equal(t, domain.RoleFarmer, session.Role)
	})

	t.Run("zero user ID cannot be issued", func(t *testing.T) {
		h := newTestHarness(t)

		_, err := h.svc.IssueSession(context.Background(), domain.UserID{}, domain.RoleOwner)

		assert.ErrorIs(t, err, domain.ErrEmptyID)
	})

	t.Run("expired token is invalid", func(t *testing.T) {
		h := newTestHarness(t)
		minted, err := h.svc.IssueSession(context.Background(), domain.MustUserID(existingUserID), domain.RoleOwner)
		require.NoError(t, err)

		h.clock.Advance(24*time.Hour + time.Second)

		_, err = h.svc.Authenticate(context.Background(), minted.Token)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("garbage token is invalid", func(t *testing.T) {
		h := newTestHarness(t)

		_, err := h.svc.Authenticate(context.Background(), "not.a.token")

		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})
}

func TestAuthorize(t *testing.T) {
	h := newTestHarness(t)
	owner, err := h.svc.IssueSession(context.Background(), domain.MustUserID(existingUserID), domain.RoleOwner)
	require.NoError(t, err)

	t.Run("permitted operation returns the session", func(t *testing.T) {
		session, err := h.svc.Authorize(context.Background(), owner.Token, domain.OpEquipmentCreate)

		require.NoError(t, err)
		assert.Equal(t, domain.RoleOwner, session.Role)
	})

	t.Run("operation outside the role is forbidden", func(t *testing.T) {
		_, err := h.svc.Authorize(context.Background(), owner.Token, domain.OpBookingCreate)

		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("unknown operation is forbidden", func(t *testing.T) {
		_, err := h.svc.Authorize(context.Background(), owner.Token, domain.Operation("equipment:purge"))

		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("invalid token is rejected before the policy check", func(t *testing.T) {
		_, err := h.svc.Authorize(context.Background(), "x", domain.OpProfileRead)

		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})
}

func TestLogout(t *testing.T) {
	t.Run("revoked token no longer authenticates", func(t *testing.T) {
		h := newTestHarness(t)
		minted, err := h.svc.IssueSession(context.Background(), domain.MustUserID(existingUserID), domain.RoleFarmer)
		require.NoError(t, err)
		h.clock.Advance(time.Hour)

		require.NoError(t, h.svc.Logout(context.Background(), minted.Token))

		_, err = h.svc.Authenticate(context.Background(), minted.Token)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
		require.Len(t, h.revocations.revoked, 1)
		for _, ttl := range h.revocations.revoked {
			assert.Equal(t, 23*time.Hour, ttl)
		}
	})

	t.Run("other sessions of the same user stay valid", func(t *testing.T) {
		h := newTestHarness(t)
		userID := domain.MustUserID(existingUserID)
		first, err := h.svc.IssueSession(context.Background(), userID, domain.RoleFarmer)
		require.NoError(t, err)
		second, err := h.svc.IssueSession(context.Background(), userID, domain.RoleFarmer)
		require.NoError(t, err)

		require.NoError(t, h.svc.Logout(context.Background(), first.Token))

		_, err = h.svc.Authenticate(context.Background(), second.Token)
		assert.NoError(t, err)
	})

	t.Run("invalid token cannot log out", func(t *testing.T) {
		h := newTestHarness(t)

		err := h.svc.Logout(context.Background(), "not.a.token")

		assert.ErrorIs(t, err, domain.ErrInvalidToken)
		assert.Empty(t, h.revocations.revoked)
	})

	t.Run("revocation store outage fails closed", func(t *testing.T) {
		h := newTestHarness(t)
		minted, err := h.svc.IssueSession(context.Background(), domain.MustUserID(existingUserID), domain.RoleOwner)
		require.NoError(t, err)
		h.revocations.isRevokedFn = func(context.Context, string) (bool, error) {
			return true, errors.Join(domain.ErrStoreUnavailable, errors.New("dial tcp: refused"))
		}

		_, err = h.svc.Authenticate(context.Background(), minted.Token)

		assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	})
}
