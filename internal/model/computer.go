package model

import "time"

// ComputerState is the authoritative availability state of a computer.
type ComputerState string

const (
	StateAvailable   ComputerState = "Available"
	StateInUse       ComputerState = "InUse"
	StateMaintenance ComputerState = "Maintenance"
	StateReserved    ComputerState = "Reserved"
)

// Computer represents a single lab machine. State and StateReason are
// written only by the reconciliation sweeper (Available↔Reserved) or by
// explicit session/maintenance actions (InUse, Maintenance).
type Computer struct {
	ID     int64         `gorm:"primaryKey"`
	LabID  int64         `gorm:"index;not null"`
	Number int           `gorm:"not null"`
	State  ComputerState `gorm:"size:20;not null;default:Available"`

	// StateReason attributes the entity that last determined the state,
	// e.g. "hold:3", "session:12", "reservation:44". Empty for Available.
	StateReason string `gorm:"size:64"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Associations
	Lab Lab `gorm:"constraint:OnDelete:CASCADE"`
}
