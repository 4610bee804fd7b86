package models

import (
	"encoding/json"
	"errors"
)

type MemberSource string

const (
	MemberSourceManual  MemberSource = "manual"
	MemberSourceJotform MemberSource = "jotform"
)

type ImportLogStatus string

const (
	ImportLogStatusRunning ImportLogStatus = "running"
	ImportLogStatusSuccess ImportLogStatus = "success"
	ImportLogStatusPartial ImportLogStatus = "partial"
	ImportLogStatusError   ImportLogStatus = "error"
)

// IsTerminal reports whether a run in this status is finished history.
func (s ImportLogStatus) IsTerminal() bool {
	return s == ImportLogStatusSuccess || s == ImportLogStatusPartial || s == ImportLogStatusError
}

type ImportMode string

const (
	ImportModeFull        ImportMode = "full"
	ImportModeIncremental ImportMode = "incremental"
)

const ImportSourceJotform = "jotform"

type UserRole string

const (
	UserRoleAdmin  UserRole = "admin"
	UserRoleStaff  UserRole = "staff"
	UserRoleViewer UserRole = "viewer"
)

var ErrInvalidUserRole = errors.New("invalid user role")

// Rank orders roles so "at least staff" checks are a comparison.
func (r UserRole) Rank() int {
	switch r {
	case UserRoleAdmin:
		return 3
	case UserRoleStaff:
		return 2
	case UserRoleViewer:
		return 1
	}
	return 0
}

func (r UserRole) IsValid() bool {
	return r.Rank() > 0
}

func (r *UserRole) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("user role must be string")
	}
	role := UserRole(str)
	if !role.IsValid() {
		return ErrInvalidUserRole
	}
	*r = role
	return nil
}

type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodCheck  PaymentMethod = "check"
	PaymentMethodOther  PaymentMethod = "other"
	PaymentMethodStripe PaymentMethod = "stripe"
)

const (
	UnmatchedSourceStripe     = "stripe"
	UnmatchedSourceManual     = "manual"
	UnmatchedSourceUnassigned = "unassigned"
)
