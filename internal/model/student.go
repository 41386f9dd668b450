package model

import "time"

// Student identifies who is using a computer. The ID is the institutional
// identifier, which may be alphanumeric (e.g. "A012345").
type Student struct {
	ID        string `gorm:"primaryKey;size:20"`
	FullName  string `gorm:"size:150;not null"`
	Email     string `gorm:"uniqueIndex;size:150;not null"`
	Phone     string `gorm:"size:15"`
	CreatedAt time.Time
}
