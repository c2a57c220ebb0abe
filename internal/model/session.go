package model

import "time"

// SessionPhase is a state in the assembly state machine (C10):
//
//	Init -> Classify -> Plan -> Retrieve -> Fuse -> Expand -> Pack -> Explain -> Done|Error
type SessionPhase string

const (
	PhaseInit      SessionPhase = "init"
	PhaseClassify  SessionPhase = "classify"
	PhasePlan      SessionPhase = "plan"
	PhaseRetrieve  SessionPhase = "retrieve"
	PhaseFuse      SessionPhase = "fuse"
	PhaseExpand    SessionPhase = "expand"
	PhasePack      SessionPhase = "pack"
	PhaseExplain   SessionPhase = "explain"
	PhaseDone      SessionPhase = "done"
	PhaseError     SessionPhase = "error"
)

// SessionState is the mutable record of one in-flight (or completed)
// assembly run. The assembler owns the only writer; everything else
// reads a snapshot. At most one assembly may run per SessionID at a
// time — the assembler enforces this with a per-session latch.
type SessionState struct {
	SessionID  string
	Repo       string
	Query      string
	Budget     int
	Limit      int
	Phase      SessionPhase
	Intent     string
	Confidence float64
	Conditions []StopCondition
	StartedAt  time.Time
	UpdatedAt  time.Time
	EndedAt    time.Time
	Err        error
}

// Terminal reports whether the session has reached Done or Error and
// will not transition further.
func (s *SessionState) Terminal() bool {
	return s.Phase == PhaseDone || s.Phase == PhaseError
}
