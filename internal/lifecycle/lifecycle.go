// Package lifecycle owns the create/update/delete commands for reservation
// series, one-off reservations, usage sessions, and maintenance holds.
// Every mutation that changes a lab's active-reservation set publishes a
// reconciliation trigger for that lab before returning.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"labreserve-backend/internal/eventbus"
	"labreserve-backend/internal/model"
	"labreserve-backend/internal/recurrence"
	"labreserve-backend/internal/store"
)

var (
	// ErrSeriesInactive rejects regeneration of a deactivated series.
	// Reactivating and regenerating are separate, explicit steps.
	ErrSeriesInactive = errors.New("reservation series is inactive")
	// ErrInvalidWindow rejects a one-off reservation whose start is not
	// before its end.
	ErrInvalidWindow = errors.New("reservation start must be before end")
)

// ExpandResult reports the outcome of an expansion for observability:
// how many reservations were newly created and how many already existed.
type ExpandResult struct {
	Created        int `json:"created"`
	AlreadyPresent int `json:"alreadyPresent"`
}

// Service implements the reservation lifecycle commands on top of a store
// and an event bus.
type Service struct {
	store      store.Store
	bus        *eventbus.Bus
	defaultLoc *time.Location
}

// NewService creates the lifecycle service. defaultTimezone resolves
// recurrence times for labs without their own timezone.
func NewService(st store.Store, bus *eventbus.Bus, defaultTimezone string) (*Service, error) {
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load default timezone %q: %w", defaultTimezone, err)
	}
	return &Service{store: st, bus: bus, defaultLoc: loc}, nil
}

// CreateSeries validates and persists the series, expands it into concrete
// reservations, and triggers reconciliation for the lab.
func (s *Service) CreateSeries(ctx context.Context, series *model.ReservationSeries) (ExpandResult, error) {
	if err := recurrence.Validate(series); err != nil {
		return ExpandResult{}, err
	}
	loc, err := s.labLocation(ctx, series.LabID)
	if err != nil {
		return ExpandResult{}, err
	}
	series.Active = true
	if err := s.store.CreateSeries(ctx, series); err != nil {
		return ExpandResult{}, err
	}

	result, err := s.expand(ctx, series, loc, time.Time{}, time.Time{})
	if err != nil {
		return ExpandResult{}, err
	}
	s.bus.ReservationsChanged(series.LabID)
	return result, nil
}

// RegenerateOccurrences re-expands an existing series, optionally
// restricted to windows starting within [from, to] (zero bounds are
// open-ended). Expansion is idempotent: reservations that already exist
// are counted, not duplicated. An inactive series is an error, not a
// silent no-op.
func (s *Service) RegenerateOccurrences(ctx context.Context, seriesID int64, from, to time.Time) (ExpandResult, error) {
	series, err := s.store.GetSeries(ctx, seriesID)
	if err != nil {
		return ExpandResult{}, err
	}
	if !series.Active {
		return ExpandResult{}, ErrSeriesInactive
	}
	loc, err := s.labLocation(ctx, series.LabID)
	if err != nil {
		return ExpandResult{}, err
	}

	result, err := s.expand(ctx, series, loc, from, to)
	if err != nil {
		return ExpandResult{}, err
	}
	if result.Created > 0 {
		s.bus.ReservationsChanged(series.LabID)
	}
	return result, nil
}

// DeleteOccurrencesOf removes exactly the reservations owned by the
// series, leaving one-off reservations untouched, then triggers
// reconciliation so computers held Reserved by the deleted windows are
// released.
func (s *Service) DeleteOccurrencesOf(ctx context.Context, seriesID int64) (int64, error) {
	series, err := s.store.GetSeries(ctx, seriesID)
	if err != nil {
		return 0, err
	}
	deleted, err := s.store.DeleteReservationsOf(ctx, seriesID)
	if err != nil {
		return 0, err
	}
	s.bus.ReservationsChanged(series.LabID)
	return deleted, nil
}

// CreateOneOff creates a single reservation with no owning series.
// Creating an identical window twice is a no-op returning the existing
// reservation.
func (s *Service) CreateOneOff(ctx context.Context, labID int64, startsAt, endsAt time.Time, subject, professor string) (*model.Reservation, error) {
	if !startsAt.Before(endsAt) {
		return nil, ErrInvalidWindow
	}
	if _, err := s.store.GetLab(ctx, labID); err != nil {
		return nil, err
	}
	r := &model.Reservation{
		LabID:     labID,
		StartsAt:  startsAt.UTC(),
		EndsAt:    endsAt.UTC(),
		Subject:   subject,
		Professor: professor,
	}
	createdNew, err := s.store.CreateOneOffReservation(ctx, r)
	if err != nil {
		return nil, err
	}
	if createdNew {
		s.bus.ReservationsChanged(labID)
	} else {
		log.Printf("one-off reservation for lab %d at %s already exists (id %d)", labID, r.StartsAt.Format(time.RFC3339), r.ID)
	}
	return r, nil
}

// DeleteOccurrence removes one reservation and triggers reconciliation for
// its lab.
func (s *Service) DeleteOccurrence(ctx context.Context, id int64) error {
	var labID int64
	if err := s.store.DB().WithContext(ctx).Model(&model.Reservation{}).
		Where("id = ?", id).Pluck("lab_id", &labID).Error; err != nil {
		return err
	}
	if err := s.store.DeleteReservation(ctx, id); err != nil {
		return err
	}
	s.bus.ReservationsChanged(labID)
	return nil
}

// StartSession registers (or refreshes) the student and checks the
// computer out. The computer's state transition to InUse is committed in
// the same transaction as the session row, so no reconciliation trigger
// is needed.
func (s *Service) StartSession(ctx context.Context, student *model.Student, computerID int64, softwareID *int64) (*model.UsageSession, error) {
	if err := s.store.UpsertStudent(ctx, student); err != nil {
		return nil, err
	}
	return s.store.StartSession(ctx, computerID, student.ID, softwareID, time.Now().UTC())
}

// EndSession closes the session by id.
func (s *Service) EndSession(ctx context.Context, sessionID int64, now time.Time) (*model.UsageSession, error) {
	return s.store.EndSession(ctx, sessionID, now)
}

// EndSessionForStudent closes the student's most recent open session.
func (s *Service) EndSessionForStudent(ctx context.Context, studentID string, now time.Time) (*model.UsageSession, error) {
	return s.store.EndOpenSessionForStudent(ctx, studentID, now)
}

// StartMaintenance opens a maintenance hold on the computer.
func (s *Service) StartMaintenance(ctx context.Context, computerID int64, note string) (*model.MaintenanceHold, error) {
	return s.store.StartMaintenance(ctx, computerID, note, time.Now().UTC())
}

// EndMaintenance closes the hold.
func (s *Service) EndMaintenance(ctx context.Context, holdID int64, now time.Time) (*model.MaintenanceHold, error) {
	return s.store.EndMaintenance(ctx, holdID, now)
}

func (s *Service) expand(ctx context.Context, series *model.ReservationSeries, loc *time.Location, from, to time.Time) (ExpandResult, error) {
	windows, err := recurrence.ExpandRange(series, loc, from, to)
	if err != nil {
		return ExpandResult{}, err
	}
	reservations := make([]model.Reservation, len(windows))
	for i, w := range windows {
		reservations[i] = model.Reservation{
			LabID:     series.LabID,
			StartsAt:  w.Start,
			EndsAt:    w.End,
			SeriesID:  &series.ID,
			Subject:   series.Subject,
			Professor: series.Professor,
		}
	}
	created, err := s.store.InsertReservations(ctx, reservations)
	if err != nil {
		return ExpandResult{}, err
	}
	return ExpandResult{Created: created, AlreadyPresent: len(windows) - created}, nil
}

// labLocation resolves the lab's configured timezone, falling back to the
// service default.
func (s *Service) labLocation(ctx context.Context, labID int64) (*time.Location, error) {
	lab, err := s.store.GetLab(ctx, labID)
	if err != nil {
		return nil, err
	}
	if lab.Timezone == "" {
		return s.defaultLoc, nil
	}
	loc, err := time.LoadLocation(lab.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q for lab %d: %w", lab.Timezone, labID, err)
	}
	return loc, nil
}
