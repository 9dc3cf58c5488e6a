package models

import "time"

// PresenceStatus is the recorded attendance value for one scheduled date.
type PresenceStatus string

const (
	PresenceStatusPresent PresenceStatus = "present"
	PresenceStatusAbsent  PresenceStatus = "absent"
)

// Valid returns true when the status is a supported value.
func (s PresenceStatus) Valid() bool {
	return s == PresenceStatusPresent || s == PresenceStatusAbsent
}

// PresenceRecord is one (user module, date) attendance fact. The date must be
// a member of the owning module's computed date set.
type PresenceRecord struct {
	ID           string         `db:"id" json:"id"`
	UserModuleID string         `db:"user_module_id" json:"user_module_id"`
	Date         time.Time      `db:"date" json:"date"`
	Status       PresenceStatus `db:"status" json:"status"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// PresenceSummary reports attendance for one user module. DaysPresent is
// always a fresh recount, never a stored counter.
type PresenceSummary struct {
	UserModuleID  string  `json:"user_module_id"`
	DaysPresent   int     `json:"days_present"`
	DaysScheduled int     `json:"days_scheduled"`
	Percent       float64 `json:"percent"`
}
