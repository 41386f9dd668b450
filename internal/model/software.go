package model

// Software is a package installed in one or more labs, referenced by usage
// sessions to record what the computer was used for.
type Software struct {
	ID      int64  `gorm:"primaryKey"`
	Name    string `gorm:"uniqueIndex;size:100;not null"`
	Version string `gorm:"size:50"`

	// Associations
	Labs []*Lab `gorm:"many2many:lab_software;"`
}
