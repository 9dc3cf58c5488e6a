package models

import "time"

// CycleProgramType distinguishes containers that require every linked module
// from containers where the learner selects a subset.
type CycleProgramType string

const (
	CycleProgramTypeCycle   CycleProgramType = "cycle"
	CycleProgramTypeProgram CycleProgramType = "program"
)

// Valid returns true when the type is a supported value.
func (t CycleProgramType) Valid() bool {
	return t == CycleProgramTypeCycle || t == CycleProgramTypeProgram
}

// CycleProgram is a container of modules learners register against.
type CycleProgram struct {
	ID        string           `db:"id" json:"id"`
	Title     string           `db:"title" json:"title"`
	Type      CycleProgramType `db:"type" json:"type"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// CycleProgramModule links a module document to a program container.
type CycleProgramModule struct {
	CycleProgramID string `db:"cycle_program_id" json:"cycle_program_id"`
	ModuleID       string `db:"module_id" json:"module_id"`
	Position       int    `db:"position" json:"position"`
}
