package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Module is an atomic training unit with its own schedule. Modules live in
// the document store and are never removed while a registration references them.
type Module struct {
	ID            primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Name          string             `json:"name" bson:"name"`
	ProgramID     *string            `json:"programId,omitempty" bson:"programId,omitempty"`
	ProgramTitle  string             `json:"programTitle,omitempty" bson:"programTitle,omitempty"`
	Sessions      []Session          `json:"sessions" bson:"sessions"`
	AssignedUsers []int64            `json:"assignedUsers" bson:"assignedUsers"`
	// PresenceEntries carries the legacy per-user/day-index attendance form
	// still present on old documents. New attendance lives in the relational
	// store; this field is read-only compatibility data.
	PresenceEntries []LegacyPresenceEntry `json:"presenceEntries,omitempty" bson:"presenceEntries,omitempty"`
	Archived        bool                  `json:"archived" bson:"archived"`
	CreatedAt       time.Time             `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt" bson:"updatedAt"`
}

// Session is an instructor-led block within a module.
type Session struct {
	Name       string      `json:"name" bson:"name"`
	Instructor string      `json:"instructor,omitempty" bson:"instructor,omitempty"`
	Dates      []DateRange `json:"dates" bson:"dates"`
}

// DateRange is an inclusive (start, end) instant pair with sub-day precision.
type DateRange struct {
	Start time.Time `json:"start" bson:"start"`
	End   time.Time `json:"end" bson:"end"`
}

// IsZero reports whether either endpoint is unset.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() || r.End.IsZero()
}

// Overlaps reports whether two ranges share any instant. Endpoints are
// strict: a range ending exactly when the other begins does not overlap.
func (r DateRange) Overlaps(other DateRange) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

// LegacyPresenceEntry mirrors the old embedded attendance shape: one user
// with a status per day index of the module's computed date list.
type LegacyPresenceEntry struct {
	UserID      int64    `json:"userId" bson:"userId"`
	DayStatuses []string `json:"dayStatuses" bson:"dayStatuses"`
}

// ModuleSchedule is the duration calculator output for a module.
type ModuleSchedule struct {
	ModuleID string      `json:"module_id"`
	Count    int         `json:"count"`
	Dates    []time.Time `json:"dates"`
}

// ContainsDate reports whether the given instant falls on one of the
// schedule's calendar dates.
func (s ModuleSchedule) ContainsDate(t time.Time) bool {
	y, m, d := t.Date()
	for _, date := range s.Dates {
		dy, dm, dd := date.Date()
		if y == dy && m == dm && d == dd {
			return true
		}
	}
	return false
}

// ConflictReport is the pairwise conflict check output for two modules.
type ConflictReport struct {
	ModuleID      string `json:"module_id"`
	OtherModuleID string `json:"other_module_id"`
	Conflict      bool   `json:"conflict"`
}

// Eviction records a user silently removed from another module's roster
// because its schedule conflicts with a new assignment.
type Eviction struct {
	UserID       int64  `json:"user_id"`
	FromModuleID string `json:"from_module_id"`
}

// AssignmentFailure captures a per-user failure during the eviction scan so
// callers see partial outcomes instead of silent drops.
type AssignmentFailure struct {
	UserID   int64  `json:"user_id"`
	ModuleID string `json:"module_id"`
	Reason   string `json:"reason"`
}

// AssignmentResult summarises an assignUsers run.
type AssignmentResult struct {
	ModuleID      string              `json:"module_id"`
	AssignedUsers []int64             `json:"assigned_users"`
	Evicted       []Eviction          `json:"evicted"`
	Failures      []AssignmentFailure `json:"failures,omitempty"`
	SyncQueued    bool                `json:"sync_queued"`
}
