package models

import "time"

// DecisionStatus is the acceptance state shared by registrations and their
// per-module records.
type DecisionStatus string

const (
	DecisionStatusPending  DecisionStatus = "pending"
	DecisionStatusAccepted DecisionStatus = "accepted"
	DecisionStatusRejected DecisionStatus = "rejected"
)

// Valid returns true when the status is a supported value.
func (s DecisionStatus) Valid() bool {
	switch s {
	case DecisionStatusPending, DecisionStatusAccepted, DecisionStatusRejected:
		return true
	default:
		return false
	}
}

// Decided reports whether the status is terminal.
func (s DecisionStatus) Decided() bool {
	return s == DecisionStatusAccepted || s == DecisionStatusRejected
}

// AggregateDecision derives a registration's status from its module records:
// accepted iff all accepted, rejected iff all rejected, pending otherwise.
func AggregateDecision(statuses []DecisionStatus) DecisionStatus {
	if len(statuses) == 0 {
		return DecisionStatusPending
	}
	allAccepted := true
	allRejected := true
	for _, s := range statuses {
		if s != DecisionStatusAccepted {
			allAccepted = false
		}
		if s != DecisionStatusRejected {
			allRejected = false
		}
	}
	switch {
	case allAccepted:
		return DecisionStatusAccepted
	case allRejected:
		return DecisionStatusRejected
	default:
		return DecisionStatusPending
	}
}

// Registration is one learner's enrollment attempt against a cycle program.
// Uniqueness per (cycle_program_id, user_id) is enforced by find-or-create in
// the sync path; the schema constraint is a backstop, not the source of truth.
type Registration struct {
	ID             string         `db:"id" json:"id"`
	CycleProgramID string         `db:"cycle_program_id" json:"cycle_program_id"`
	UserID         int64          `db:"user_id" json:"user_id"`
	Status         DecisionStatus `db:"status" json:"status"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// UserModule is the per-module acceptance record inside a registration.
type UserModule struct {
	ID             string         `db:"id" json:"id"`
	RegistrationID string         `db:"registration_id" json:"registration_id"`
	ModuleID       string         `db:"module_id" json:"module_id"`
	Status         DecisionStatus `db:"status" json:"status"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// RegistrationDetail bundles a registration with its module records.
type RegistrationDetail struct {
	Registration
	Modules []UserModule `json:"modules"`
}
