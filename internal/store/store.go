package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"labreserve-backend/internal/model"
	"labreserve-backend/internal/state"
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	// Labs and computers
	ListLabIDs(ctx context.Context) ([]int64, error)
	GetComputer(ctx context.Context, id int64) (*model.Computer, error)
	ListComputers(ctx context.Context, labID int64) ([]model.Computer, error)
	ListAvailableComputers(ctx context.Context, labID int64) ([]model.Computer, error)
	ListLabsFreeAt(ctx context.Context, now time.Time) ([]model.Lab, error)

	// Series and reservations
	CreateSeries(ctx context.Context, s *model.ReservationSeries) error
	GetSeries(ctx context.Context, id int64) (*model.ReservationSeries, error)
	GetLab(ctx context.Context, id int64) (*model.Lab, error)
	InsertReservations(ctx context.Context, reservations []model.Reservation) (int, error)
	DeleteReservationsOf(ctx context.Context, seriesID int64) (int64, error)
	CreateOneOffReservation(ctx context.Context, r *model.Reservation) (bool, error)
	DeleteReservation(ctx context.Context, id int64) error
	ActiveReservation(ctx context.Context, labID int64, now time.Time) (*model.Reservation, error)

	// Sessions and maintenance
	StartSession(ctx context.Context, computerID int64, studentID string, softwareID *int64, now time.Time) (*model.UsageSession, error)
	EndSession(ctx context.Context, sessionID int64, now time.Time) (*model.UsageSession, error)
	EndOpenSessionForStudent(ctx context.Context, studentID string, now time.Time) (*model.UsageSession, error)
	StartMaintenance(ctx context.Context, computerID int64, note string, now time.Time) (*model.MaintenanceHold, error)
	EndMaintenance(ctx context.Context, holdID int64, now time.Time) (*model.MaintenanceHold, error)

	// Students and software
	GetStudent(ctx context.Context, id string) (*model.Student, error)
	UpsertStudent(ctx context.Context, s *model.Student) error
	ListSoftware(ctx context.Context) ([]model.Software, error)

	// Reconciliation
	ReconcileLab(ctx context.Context, labID int64, now time.Time) (int, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// ReconcileLab re-evaluates the state of every computer in the lab against
// a consistent snapshot of open holds, open sessions, and the active
// reservation, all read inside one transaction. Only computers whose
// stored state is sweeper-owned (Available or Reserved) are touched, and
// only when the recomputed state differs. Returns the number of computers
// whose state changed.
func (s *gormStore) ReconcileLab(ctx context.Context, labID int64, now time.Time) (int, error) {
	changed := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		changed = 0

		var lab model.Lab
		if err := tx.First(&lab, labID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLabNotFound
			}
			return fmt.Errorf("failed to load lab %d: %w", labID, err)
		}

		var computers []model.Computer
		if err := tx.Where("lab_id = ?", labID).Find(&computers).Error; err != nil {
			return fmt.Errorf("failed to load computers for lab %d: %w", labID, err)
		}
		if len(computers) == 0 {
			return nil
		}

		ids := make([]int64, len(computers))
		for i, c := range computers {
			ids[i] = c.ID
		}

		holds, err := openHoldsByComputer(tx, ids)
		if err != nil {
			return err
		}
		sessions, err := openSessionsByComputer(tx, ids)
		if err != nil {
			return err
		}
		active, err := activeReservation(tx, labID, now)
		if err != nil {
			return err
		}

		for _, c := range computers {
			if !state.SweeperOwned(c.State) {
				continue
			}
			newState, reason := state.Evaluate(state.Inputs{
				Hold:        holds[c.ID],
				Session:     sessions[c.ID],
				Reservation: active,
			})
			if newState == c.State && reason == c.StateReason {
				continue
			}
			res := tx.Model(&model.Computer{}).
				Where("id = ? AND state IN ?", c.ID, []model.ComputerState{model.StateAvailable, model.StateReserved}).
				Updates(map[string]any{"state": newState, "state_reason": reason})
			if res.Error != nil {
				return fmt.Errorf("failed to update state of computer %d: %w", c.ID, res.Error)
			}
			if res.RowsAffected == 0 {
				// An explicit action committed between our snapshot read
				// and this write. The explicit action wins; abort the lab
				// so the caller can retry against a fresh snapshot.
				return ErrStateConflict
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// InsertReservations inserts the batch, skipping rows that already exist
// for the same (lab, window, series) tuple. Returns how many rows were
// newly created; re-inserting an existing occurrence is a no-op, not an
// error.
func (s *gormStore) InsertReservations(ctx context.Context, reservations []model.Reservation) (int, error) {
	if len(reservations) == 0 {
		return 0, nil
	}
	created := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created = 0
		for i := range reservations {
			r := reservations[i]
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&r)
			if res.Error != nil {
				return fmt.Errorf("failed to insert reservation %s..%s for lab %d: %w",
					r.StartsAt.Format(time.RFC3339), r.EndsAt.Format(time.RFC3339), r.LabID, res.Error)
			}
			created += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// CreateOneOffReservation inserts a single reservation with no owning
// series. One-off windows are guarded by a partial unique index, so a
// duplicate insert affects zero rows even under concurrent writers; the
// existing row is returned instead. Returns false when an identical
// window already existed.
func (s *gormStore) CreateOneOffReservation(ctx context.Context, r *model.Reservation) (bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(r)
	if res.Error != nil {
		return false, fmt.Errorf("failed to create reservation: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	var existing model.Reservation
	err := s.db.WithContext(ctx).
		Where("lab_id = ? AND starts_at = ? AND ends_at = ? AND series_id IS NULL",
			r.LabID, r.StartsAt, r.EndsAt).First(&existing).Error
	if err != nil {
		return false, fmt.Errorf("failed to load existing reservation: %w", err)
	}
	*r = existing
	return false, nil
}

func (s *gormStore) DeleteReservationsOf(ctx context.Context, seriesID int64) (int64, error) {
	res := s.db.WithContext(ctx).Where("series_id = ?", seriesID).Delete(&model.Reservation{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete reservations of series %d: %w", seriesID, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *gormStore) DeleteReservation(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&model.Reservation{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete reservation %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrReservationNotFound
	}
	return nil
}

func (s *gormStore) CreateSeries(ctx context.Context, series *model.ReservationSeries) error {
	if err := s.db.WithContext(ctx).Create(series).Error; err != nil {
		return fmt.Errorf("failed to create reservation series: %w", err)
	}
	return nil
}

func (s *gormStore) GetSeries(ctx context.Context, id int64) (*model.ReservationSeries, error) {
	var series model.ReservationSeries
	if err := s.db.WithContext(ctx).First(&series, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSeriesNotFound
		}
		return nil, err
	}
	return &series, nil
}

func (s *gormStore) GetLab(ctx context.Context, id int64) (*model.Lab, error) {
	var lab model.Lab
	if err := s.db.WithContext(ctx).First(&lab, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLabNotFound
		}
		return nil, err
	}
	return &lab, nil
}

func (s *gormStore) ListLabIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.WithContext(ctx).Model(&model.Lab{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *gormStore) GetComputer(ctx context.Context, id int64) (*model.Computer, error) {
	var c model.Computer
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrComputerNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *gormStore) ListComputers(ctx context.Context, labID int64) ([]model.Computer, error) {
	var computers []model.Computer
	err := s.db.WithContext(ctx).Preload("Lab").
		Where("lab_id = ?", labID).Order("number").Find(&computers).Error
	if err != nil {
		return nil, err
	}
	return computers, nil
}

func (s *gormStore) ListAvailableComputers(ctx context.Context, labID int64) ([]model.Computer, error) {
	var computers []model.Computer
	err := s.db.WithContext(ctx).
		Where("lab_id = ? AND state = ?", labID, model.StateAvailable).
		Order("number").Find(&computers).Error
	if err != nil {
		return nil, err
	}
	return computers, nil
}

// ListLabsFreeAt returns the labs with no reservation covering now,
// ordered by name.
func (s *gormStore) ListLabsFreeAt(ctx context.Context, now time.Time) ([]model.Lab, error) {
	sub := s.db.Model(&model.Reservation{}).Select("lab_id").
		Where("starts_at <= ? AND ends_at >= ?", now, now)
	var labs []model.Lab
	err := s.db.WithContext(ctx).Where("id NOT IN (?)", sub).Order("name").Find(&labs).Error
	if err != nil {
		return nil, err
	}
	return labs, nil
}

func (s *gormStore) ActiveReservation(ctx context.Context, labID int64, now time.Time) (*model.Reservation, error) {
	return activeReservation(s.db.WithContext(ctx), labID, now)
}

// StartSession checks the computer out for a student: it creates an open
// usage session and marks the computer InUse in one transaction. Allowed
// from Available or Reserved; a computer in use or under maintenance is
// rejected.
func (s *gormStore) StartSession(ctx context.Context, computerID int64, studentID string, softwareID *int64, now time.Time) (*model.UsageSession, error) {
	var session model.UsageSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c model.Computer
		if err := tx.First(&c, computerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrComputerNotFound
			}
			return err
		}
		if c.State == model.StateInUse || c.State == model.StateMaintenance {
			return ErrComputerUnavailable
		}

		session = model.UsageSession{
			ComputerID: computerID,
			StudentID:  studentID,
			SoftwareID: softwareID,
			StartedAt:  now,
		}
		if err := tx.Create(&session).Error; err != nil {
			return fmt.Errorf("failed to create usage session: %w", err)
		}
		return setComputerState(tx, computerID, model.StateInUse, fmt.Sprintf("session:%d", session.ID))
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// EndSession closes the session and recomputes the computer's state from
// the remaining claims, so a checkout during a covering reservation lands
// on Reserved rather than Available. Ending an already-closed session is a
// no-op.
func (s *gormStore) EndSession(ctx context.Context, sessionID int64, now time.Time) (*model.UsageSession, error) {
	var session model.UsageSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&session, sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		return closeSession(tx, &session, now)
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// EndOpenSessionForStudent closes the student's most recent open session,
// the checkout path used when only the student identifier is known.
func (s *gormStore) EndOpenSessionForStudent(ctx context.Context, studentID string, now time.Time) (*model.UsageSession, error) {
	var session model.UsageSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("student_id = ? AND ended_at IS NULL", studentID).
			Order("started_at DESC").First(&session).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		return closeSession(tx, &session, now)
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func closeSession(tx *gorm.DB, session *model.UsageSession, now time.Time) error {
	if session.EndedAt != nil {
		return nil
	}
	session.EndedAt = &now
	if err := tx.Model(session).Update("ended_at", now).Error; err != nil {
		return fmt.Errorf("failed to close session %d: %w", session.ID, err)
	}
	return reevaluateComputer(tx, session.ComputerID, now)
}

// StartMaintenance opens a hold on the computer. Maintenance and open
// sessions are mutually exclusive; a second open hold is also rejected.
func (s *gormStore) StartMaintenance(ctx context.Context, computerID int64, note string, now time.Time) (*model.MaintenanceHold, error) {
	var hold model.MaintenanceHold
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c model.Computer
		if err := tx.First(&c, computerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrComputerNotFound
			}
			return err
		}

		var open int64
		if err := tx.Model(&model.UsageSession{}).
			Where("computer_id = ? AND ended_at IS NULL", computerID).Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return ErrSessionOpen
		}
		if err := tx.Model(&model.MaintenanceHold{}).
			Where("computer_id = ? AND ended_at IS NULL", computerID).Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return ErrHoldOpen
		}

		hold = model.MaintenanceHold{ComputerID: computerID, Note: note, StartedAt: now}
		if err := tx.Create(&hold).Error; err != nil {
			return fmt.Errorf("failed to create maintenance hold: %w", err)
		}
		return setComputerState(tx, computerID, model.StateMaintenance, fmt.Sprintf("hold:%d", hold.ID))
	})
	if err != nil {
		return nil, err
	}
	return &hold, nil
}

// EndMaintenance closes the hold and recomputes the computer's state from
// the remaining claims. Ending an already-closed hold is a no-op.
func (s *gormStore) EndMaintenance(ctx context.Context, holdID int64, now time.Time) (*model.MaintenanceHold, error) {
	var hold model.MaintenanceHold
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&hold, holdID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrHoldNotFound
			}
			return err
		}
		if hold.EndedAt != nil {
			return nil
		}
		hold.EndedAt = &now
		if err := tx.Model(&hold).Update("ended_at", now).Error; err != nil {
			return fmt.Errorf("failed to close maintenance hold %d: %w", holdID, err)
		}
		return reevaluateComputer(tx, hold.ComputerID, now)
	})
	if err != nil {
		return nil, err
	}
	return &hold, nil
}

func (s *gormStore) GetStudent(ctx context.Context, id string) (*model.Student, error) {
	var st model.Student
	if err := s.db.WithContext(ctx).First(&st, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return &st, nil
}

// UpsertStudent creates the student or refreshes the contact fields of an
// existing record.
func (s *gormStore) UpsertStudent(ctx context.Context, st *model.Student) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"full_name", "email", "phone"}),
	}).Create(st).Error
	if err != nil {
		return fmt.Errorf("failed to upsert student %s: %w", st.ID, err)
	}
	return nil
}

func (s *gormStore) ListSoftware(ctx context.Context) ([]model.Software, error) {
	var software []model.Software
	if err := s.db.WithContext(ctx).Order("name").Find(&software).Error; err != nil {
		return nil, err
	}
	return software, nil
}

// --- Shared helpers ---

// reevaluateComputer recomputes and writes the computer's state after an
// explicit claim was closed inside the surrounding transaction.
func reevaluateComputer(tx *gorm.DB, computerID int64, now time.Time) error {
	var c model.Computer
	if err := tx.First(&c, computerID).Error; err != nil {
		return fmt.Errorf("failed to load computer %d: %w", computerID, err)
	}

	holds, err := openHoldsByComputer(tx, []int64{computerID})
	if err != nil {
		return err
	}
	sessions, err := openSessionsByComputer(tx, []int64{computerID})
	if err != nil {
		return err
	}
	active, err := activeReservation(tx, c.LabID, now)
	if err != nil {
		return err
	}

	newState, reason := state.Evaluate(state.Inputs{
		Hold:        holds[computerID],
		Session:     sessions[computerID],
		Reservation: active,
	})
	if newState == c.State && reason == c.StateReason {
		return nil
	}
	return setComputerState(tx, computerID, newState, reason)
}

func setComputerState(tx *gorm.DB, computerID int64, st model.ComputerState, reason string) error {
	err := tx.Model(&model.Computer{}).Where("id = ?", computerID).
		Updates(map[string]any{"state": st, "state_reason": reason}).Error
	if err != nil {
		return fmt.Errorf("failed to set state of computer %d: %w", computerID, err)
	}
	return nil
}

func openHoldsByComputer(tx *gorm.DB, computerIDs []int64) (map[int64]*model.MaintenanceHold, error) {
	var holds []model.MaintenanceHold
	err := tx.Where("computer_id IN ? AND ended_at IS NULL", computerIDs).Find(&holds).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load open maintenance holds: %w", err)
	}
	m := make(map[int64]*model.MaintenanceHold, len(holds))
	for i := range holds {
		m[holds[i].ComputerID] = &holds[i]
	}
	return m, nil
}

func openSessionsByComputer(tx *gorm.DB, computerIDs []int64) (map[int64]*model.UsageSession, error) {
	var sessions []model.UsageSession
	err := tx.Where("computer_id IN ? AND ended_at IS NULL", computerIDs).Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load open usage sessions: %w", err)
	}
	m := make(map[int64]*model.UsageSession, len(sessions))
	for i := range sessions {
		m[sessions[i].ComputerID] = &sessions[i]
	}
	return m, nil
}

func activeReservation(tx *gorm.DB, labID int64, now time.Time) (*model.Reservation, error) {
	var r model.Reservation
	err := tx.Where("lab_id = ? AND starts_at <= ? AND ends_at >= ?", labID, now, now).
		Order("starts_at").First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active reservation for lab %d: %w", labID, err)
	}
	return &r, nil
}
