package model

import "time"

// UsageSession records a student occupying a specific computer. An open
// session (EndedAt nil) keeps the computer in InUse until checkout; the
// sweeper never clears it.
type UsageSession struct {
	ID         int64  `gorm:"primaryKey"`
	ComputerID int64  `gorm:"index;not null"`
	StudentID  string `gorm:"size:20;index;not null"`
	SoftwareID *int64
	StartedAt  time.Time `gorm:"not null"`
	EndedAt    *time.Time

	// Associations
	Computer Computer  `gorm:"constraint:OnDelete:CASCADE"`
	Student  Student   `gorm:"constraint:OnDelete:CASCADE"`
	Software *Software `gorm:"foreignKey:SoftwareID;constraint:OnDelete:SET NULL"`
}
