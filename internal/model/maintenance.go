package model

import "time"

// MaintenanceHold marks a computer as withdrawn for maintenance. An open
// hold (EndedAt nil) keeps the computer in Maintenance until explicitly
// closed; the sweeper never clears it. At most one open hold per computer.
type MaintenanceHold struct {
	ID         int64     `gorm:"primaryKey"`
	ComputerID int64     `gorm:"index;not null"`
	Note       string    `gorm:"size:256"`
	StartedAt  time.Time `gorm:"not null"`
	EndedAt    *time.Time

	// Associations
	Computer Computer `gorm:"constraint:OnDelete:CASCADE"`
}
