package model

import "time"

// Lab represents a computer laboratory. Reservations are scoped to a lab,
// not to an individual computer: any free computer in the lab may be used
// during a reserved window.
type Lab struct {
	ID          int64  `gorm:"primaryKey"`
	Name        string `gorm:"uniqueIndex;size:128;not null"`
	Description string `gorm:"size:512"`

	// Timezone is the IANA name used to resolve recurring reservation
	// times to concrete instants. Empty means the configured default.
	Timezone  string    `gorm:"size:64"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	// Associations
	Computers []Computer `gorm:"foreignKey:LabID"`
}
