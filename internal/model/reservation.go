package model

import "time"

// ReservationSeries is a template describing a recurring class reservation:
// for each matching weekday between StartDate and EndDate, the lab is
// reserved from StartMinute to EndMinute local time.
type ReservationSeries struct {
	ID        int64  `gorm:"primaryKey"`
	LabID     int64  `gorm:"index;not null"`
	Subject   string `gorm:"size:128"`
	Professor string `gorm:"size:128"`

	// StartDate and EndDate bound the expansion range, inclusive. Only the
	// calendar date component is significant.
	StartDate time.Time `gorm:"not null"`
	EndDate   time.Time `gorm:"not null"`

	// StartMinute and EndMinute are minutes since local midnight.
	StartMinute int `gorm:"not null"`
	EndMinute   int `gorm:"not null"`

	// WeekdayMask has bit i set when time.Weekday(i) is included
	// (bit 0 = Sunday).
	WeekdayMask int  `gorm:"not null"`
	Active      bool `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Associations
	Lab Lab `gorm:"constraint:OnDelete:CASCADE"`
}

// Includes reports whether the series recurs on the given weekday.
func (s *ReservationSeries) Includes(d time.Weekday) bool {
	return s.WeekdayMask&(1<<uint(d)) != 0
}

// Reservation is one concrete scheduled window for a lab. Rows owned by a
// series (SeriesID non-nil) are derived and regenerable; rows with no
// series are one-off reservations. The composite window index treats NULL
// series ids as distinct, so one-off windows carry their own partial
// unique index.
type Reservation struct {
	ID    int64 `gorm:"primaryKey;autoIncrement"`
	LabID int64 `gorm:"not null;uniqueIndex:idx_reservation_window;uniqueIndex:idx_oneoff_window,where:series_id IS NULL"`

	// StartsAt/EndsAt are stored in UTC.
	StartsAt  time.Time `gorm:"not null;uniqueIndex:idx_reservation_window;uniqueIndex:idx_oneoff_window,where:series_id IS NULL"`
	EndsAt    time.Time `gorm:"not null;uniqueIndex:idx_reservation_window;uniqueIndex:idx_oneoff_window,where:series_id IS NULL"`
	SeriesID  *int64    `gorm:"index;uniqueIndex:idx_reservation_window"`
	Subject   string    `gorm:"size:128"`
	Professor string    `gorm:"size:128"`
	CreatedAt time.Time

	// Associations
	Lab    Lab                `gorm:"constraint:OnDelete:CASCADE"`
	Series *ReservationSeries `gorm:"foreignKey:SeriesID;constraint:OnDelete:CASCADE"`
}

// Covers reports whether the reservation window contains t (inclusive on
// both ends, matching how active class reservations are queried).
func (r *Reservation) Covers(t time.Time) bool {
	return !r.StartsAt.After(t) && !r.EndsAt.Before(t)
}
