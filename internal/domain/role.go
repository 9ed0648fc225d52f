package domain

import (
	"fmt"
	"strings"
)

// Role is the marketplace role carried by a user and by their session token.
type Role string

const (
	RoleFarmer Role = "FARMER"
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
)

// ParseRole accepts a role name case-insensitively.
func ParseRole(raw string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(raw))); r {
	case RoleFarmer, RoleOwner, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("role %q: %w", raw, ErrInvalidRole)
	}
}

// ParseRegistrationRole parses a role a new user may choose for themselves.
// ADMIN is provisioned out of band and is rejected here.
func ParseRegistrationRole(raw string) (Role, error) {
	r, err := ParseRole(raw)
	if err != nil {
		return "", err
	}
	if r == RoleAdmin {
		return "", fmt.Errorf("role %q cannot be self-assigned: %w", raw, ErrInvalidRole)
	}
	return r, nil
}

func (r Role) String() string { return string(r) }

// Operation names an action the marketplace layer guards with a role check.
type Operation string

const (
	OpProfileRead     Operation = "profile:read"
	OpProfileUpdate   Operation = "profile:update"
	OpEquipmentCreate Operation = "equipment:create"
	OpEquipmentUpdate Operation = "equipment:update"
	OpAvailabilitySet Operation = "availability:set"
	OpBookingCreate   Operation = "booking:create"
	OpBookingRead     Operation = "booking:read"
	OpBookingRespond  Operation = "booking:respond"
	OpPaymentInitiate Operation = "payment:initiate"
	OpRatingSubmit    Operation = "rating:submit"
	OpListingApprove  Operation = "admin:listing_approve"
	OpAuditLogRead    Operation = "admin:audit_read"
	OpMediaUpload     Operation = "media:upload"
)

// operationPolicy is the single source of truth for role checks.
var operationPolicy = map[Operation][]Role{
	OpProfileRead:     {RoleFarmer, RoleOwner, RoleAdmin},
	OpProfileUpdate:   {RoleFarmer, RoleOwner},
	OpEquipmentCreate: {RoleOwner},
	OpEquipmentUpdate: {RoleOwner},
	OpAvailabilitySet: {RoleOwner},
	OpBookingCreate:   {RoleFarmer},
	OpBookingRead:     {RoleFarmer, RoleOwner},
	OpBookingRespond:  {RoleOwner},
	OpPaymentInitiate: {RoleFarmer},
	OpRatingSubmit:    {RoleFarmer, RoleOwner},
	OpListingApprove:  {RoleAdmin},
	OpAuditLogRead:    {RoleAdmin},
	OpMediaUpload:     {RoleOwner},
}

// Allowed reports whether role may perform op. Unknown operations are denied.
func Allowed(role Role, op Operation) bool {
	for _, r := range operationPolicy[op] {
		if r == role {
			return true
		}
	}
	return false
}

// Authorize returns ErrForbidden when role may not perform op.
func Authorize(role Role, op Operation) error {
	if !Allowed(role, op) {
		return fmt.Errorf("role %s on %s: %w", role, op, ErrForbidden)
	}
	return nil
}

// KnownOperation reports whether op appears in the policy table.
func KnownOperation(op Operation) bool {
	_, ok := operationPolicy[op]
	return ok
}
