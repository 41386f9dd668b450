package recurrence

import (
	"errors"
	"time"

	"labreserve-backend/internal/model"
)

// ErrInvalidSeries is returned when a series violates the recurrence
// invariants: start date after end date, start minute not before end
// minute, or an empty weekday set.
var ErrInvalidSeries = errors.New("invalid reservation series")

// Window is one concrete reservation time window produced by expansion.
type Window struct {
	Start time.Time
	End   time.Time
}

// Validate checks the recurrence invariants without touching persistence.
func Validate(s *model.ReservationSeries) error {
	if s.WeekdayMask&0x7f == 0 {
		return ErrInvalidSeries
	}
	if s.StartMinute < 0 || s.EndMinute > 24*60 || s.StartMinute >= s.EndMinute {
		return ErrInvalidSeries
	}
	if dateOf(s.StartDate).After(dateOf(s.EndDate)) {
		return ErrInvalidSeries
	}
	return nil
}

// Expand turns a series into its concrete windows: one per calendar day in
// [StartDate, EndDate] whose weekday is in the series' set. Expansion is
// deterministic (windows are returned in ascending order) and pure; the
// caller is responsible for idempotent persistence. Times are resolved in
// loc once here, so daylight-saving transitions are not re-resolved on
// regeneration.
func Expand(s *model.ReservationSeries, loc *time.Location) ([]Window, error) {
	if err := Validate(s); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}

	var windows []Window
	first := dateOf(s.StartDate)
	last := dateOf(s.EndDate)
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
		if !s.Includes(day.Weekday()) {
			continue
		}
		windows = append(windows, Window{
			Start: combine(day, s.StartMinute),
			End:   combine(day, s.EndMinute),
		})
	}
	return windows, nil
}

// ExpandRange is Expand restricted to windows starting within [from, to].
// Zero bounds are open-ended.
func ExpandRange(s *model.ReservationSeries, loc *time.Location, from, to time.Time) ([]Window, error) {
	all, err := Expand(s, loc)
	if err != nil {
		return nil, err
	}
	var windows []Window
	for _, w := range all {
		if !from.IsZero() && w.Start.Before(from) {
			continue
		}
		if !to.IsZero() && w.Start.After(to) {
			continue
		}
		windows = append(windows, w)
	}
	return windows, nil
}

// combine resolves a local calendar day plus minutes-since-midnight into a
// UTC instant. Wall-clock resolution happens here, so a window keeps its
// local time of day across daylight-saving transitions.
func combine(day time.Time, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minute/60, minute%60, 0, 0, day.Location()).UTC()
}

// dateOf strips the time-of-day component, keeping only the calendar date.
func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
