// Package enforce turns moderation verdicts into account-level consequences: warnings, suspensions and bans, with a reputation score that decays on violations and recovers with good behavior.
package enforce

import (
	"errors"
	"time"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusBanned    Status = "banned"
)

type ActionTaken string

const (
	ActionNone      ActionTaken = "none"
	ActionWarn      ActionTaken = "warn"
	ActionSuspend3d ActionTaken = "suspend_3d"
	ActionBan       ActionTaken = "ban"
	ActionReverse   ActionTaken = "reverse"
)

const MaxReputation = 100

var (
	// a concurrent writer changed the account between read and write
	ErrConflict = errors.New("enforcement record update conflict")
	ErrNotFound = errors.New("enforcement record not found")
)

// Account is the per-user enforcement record. It is only modified inside Store.Update.
type Account struct {
	UserID          string     `json:"userId" gorm:"primaryKey"`
	Reputation      int        `json:"reputation"`
	WarningCount    int        `json:"warningCount"`
	Status          Status     `json:"status" gorm:"index"`
	SuspendedUntil  *time.Time `json:"suspendedUntil,omitempty" gorm:"index"`
	LastViolationAt *time.Time `json:"lastViolationAt,omitempty"`
	LastSuspendedAt *time.Time `json:"lastSuspendedAt,omitempty"`
	LastRecoveredAt *time.Time `json:"lastRecoveredAt,omitempty"`
	// incremented on every write; zero means the record has never been persisted
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Account) TableName() string {
	return "enforcement_accounts"
}

// Defaults for a user with no enforcement history.
func NewAccount(userID string) Account {
	return Account{
		UserID:     userID,
		Reputation: MaxReputation,
		Status:     StatusActive,
	}
}

// Result describes what a single enforcement (or reversal) did to an account.
type Result struct {
	UserID          string      `json:"userId"`
	ActionTaken     ActionTaken `json:"actionTaken"`
	PreviousStatus  Status      `json:"previousStatus"`
	NewStatus       Status      `json:"newStatus"`
	ReputationDelta int         `json:"reputationDelta"`
	WarningDelta    int         `json:"warningDelta"`
	EffectiveUntil  *time.Time  `json:"effectiveUntil,omitempty"`
	Reputation      int         `json:"reputation"`
	WarningCount    int         `json:"warningCount"`
	Reason          string      `json:"reason"`

	// state replaced by a suspension or ban, restored if the result is reversed
	PriorSuspendedUntil *time.Time `json:"priorSuspendedUntil,omitempty"`
	PriorSuspendedAt    *time.Time `json:"priorSuspendedAt,omitempty"`
}

func (r *Result) Changed() bool {
	return r != nil && r.ActionTaken != ActionNone
}

// StatusView is the answer to a status read, after any lazy expiry has been applied.
type StatusView struct {
	Account Account `json:"account"`
	// true only for the read which performed a suspended->active transition
	Transitioned bool `json:"transitioned"`
}

func timePtr(t time.Time) *time.Time {
	return &t
}
