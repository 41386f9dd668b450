package internal

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"labreserve-backend/config"
	dbpkg "labreserve-backend/internal/db"
	"labreserve-backend/internal/eventbus"
	"labreserve-backend/internal/lifecycle"
	"labreserve-backend/internal/model"
	"labreserve-backend/internal/store"
	"labreserve-backend/internal/sweeper"
)

// TestReservationReconciliationLifecycle walks a lab through a full day:
// a class reservation claims the free computers, a student session and a
// maintenance hold take precedence over it, and passing time plus series
// deletion release everything again.
func TestReservationReconciliationLifecycle(t *testing.T) {
	testDB, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to the in-memory database: %v", err)
	}
	sqlDB, _ := testDB.DB()
	defer sqlDB.Close()

	require.NoError(t, dbpkg.Migrate(testDB))

	cfg := &config.Config{
		Sweeper: config.SweeperConfig{
			Enabled:         true,
			Interval:        time.Minute,
			DefaultTimezone: "UTC",
		},
		EventBus: config.EventBusConfig{BufferSize: 16},
	}

	appStore := store.NewGormStore(testDB)
	bus := eventbus.New(cfg.EventBus.BufferSize)
	lc, err := lifecycle.NewService(appStore, bus, cfg.Sweeper.DefaultTimezone)
	require.NoError(t, err)
	sweep := sweeper.New(cfg, appStore, bus)

	ctx := context.Background()

	lab := model.Lab{Name: "Laboratorio A"}
	require.NoError(t, testDB.Create(&lab).Error)
	r1 := model.Computer{LabID: lab.ID, Number: 1, State: model.StateAvailable}
	r2 := model.Computer{LabID: lab.ID, Number: 2, State: model.StateAvailable}
	require.NoError(t, testDB.Create(&r1).Error)
	require.NoError(t, testDB.Create(&r2).Error)

	mondayMask := 1 << uint(time.Monday)
	series := &model.ReservationSeries{
		LabID:       lab.ID,
		Subject:     "Redes",
		StartDate:   time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), // Monday
		EndDate:     time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		StartMinute: 10 * 60,
		EndMinute:   11 * 60,
		WeekdayMask: mondayMask,
	}

	stateOf := func(id int64) model.ComputerState {
		var c model.Computer
		require.NoError(t, testDB.First(&c, id).Error)
		return c.State
	}

	during := time.Date(2025, 3, 3, 10, 30, 0, 0, time.UTC)

	t.Run("Series creation reserves the whole lab", func(t *testing.T) {
		result, err := lc.CreateSeries(ctx, series)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Created)

		// The mutation published a trigger for the lab; apply it the way
		// the event loop would.
		select {
		case e := <-bus.Events():
			assert.Equal(t, lab.ID, e.LabID)
			_, err := sweep.SweepLab(ctx, e.LabID, during)
			require.NoError(t, err)
		default:
			t.Fatal("expected a reconciliation event after series creation")
		}

		assert.Equal(t, model.StateReserved, stateOf(r1.ID))
		assert.Equal(t, model.StateReserved, stateOf(r2.ID))
	})

	t.Run("Open session takes precedence over the reservation", func(t *testing.T) {
		student := &model.Student{ID: "A012345", FullName: "Ana Pérez", Email: "ana@example.com"}
		_, err := lc.StartSession(ctx, student, r1.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, model.StateInUse, stateOf(r1.ID))

		// Sweeping during the reservation window leaves the session alone.
		_, err = sweep.SweepLab(ctx, lab.ID, during)
		require.NoError(t, err)
		assert.Equal(t, model.StateInUse, stateOf(r1.ID))
		assert.Equal(t, model.StateReserved, stateOf(r2.ID))
	})

	t.Run("Checkout during the window lands on Reserved", func(t *testing.T) {
		_, err := lc.EndSessionForStudent(ctx, "A012345", during.Add(15*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, model.StateReserved, stateOf(r1.ID))
	})

	t.Run("Sweep releases the lab after the window ends", func(t *testing.T) {
		after := time.Date(2025, 3, 3, 11, 1, 0, 0, time.UTC)
		changed, err := sweep.SweepLab(ctx, lab.ID, after)
		require.NoError(t, err)
		assert.Equal(t, 2, changed)
		assert.Equal(t, model.StateAvailable, stateOf(r1.ID))
		assert.Equal(t, model.StateAvailable, stateOf(r2.ID))

		// Convergence: a second sweep at the same instant is a no-op.
		changed, err = sweep.SweepLab(ctx, lab.ID, after)
		require.NoError(t, err)
		assert.Zero(t, changed)
	})

	t.Run("Maintenance hold survives a covering reservation", func(t *testing.T) {
		hold, err := lc.StartMaintenance(ctx, r1.ID, "cambio de disco")
		require.NoError(t, err)
		assert.Equal(t, model.StateMaintenance, stateOf(r1.ID))

		oneOff, err := lc.CreateOneOff(ctx, lab.ID,
			time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC),
			time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC), "Examen", "")
		require.NoError(t, err)

		covering := time.Date(2025, 3, 4, 9, 30, 0, 0, time.UTC)
		_, err = sweep.SweepLab(ctx, lab.ID, covering)
		require.NoError(t, err)
		assert.Equal(t, model.StateMaintenance, stateOf(r1.ID))
		assert.Equal(t, model.StateReserved, stateOf(r2.ID))

		// Ending maintenance inside the window re-evaluates to Reserved,
		// not Available.
		_, err = lc.EndMaintenance(ctx, hold.ID, covering)
		require.NoError(t, err)
		assert.Equal(t, model.StateReserved, stateOf(r1.ID))

		// Clean up: drop the one-off and release the lab.
		require.NoError(t, lc.DeleteOccurrence(ctx, oneOff.ID))
		_, err = sweep.SweepLab(ctx, lab.ID, covering)
		require.NoError(t, err)
		assert.Equal(t, model.StateAvailable, stateOf(r1.ID))
		assert.Equal(t, model.StateAvailable, stateOf(r2.ID))
	})

	t.Run("Deleting series occurrences releases reserved computers", func(t *testing.T) {
		// Re-reserve via the series window, then delete the series rows.
		_, err := sweep.SweepLab(ctx, lab.ID, during)
		require.NoError(t, err)
		require.Equal(t, model.StateReserved, stateOf(r1.ID))

		deleted, err := lc.DeleteOccurrencesOf(ctx, series.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		_, err = sweep.SweepLab(ctx, lab.ID, during)
		require.NoError(t, err)
		assert.Equal(t, model.StateAvailable, stateOf(r1.ID))
		assert.Equal(t, model.StateAvailable, stateOf(r2.ID))
	})

	t.Run("State reasons attribute the deciding entity", func(t *testing.T) {
		_, err := lc.CreateOneOff(ctx, lab.ID,
			time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC),
			time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC), "", "")
		require.NoError(t, err)
		_, err = sweep.SweepLab(ctx, lab.ID, time.Date(2025, 3, 5, 9, 30, 0, 0, time.UTC))
		require.NoError(t, err)

		var c model.Computer
		require.NoError(t, testDB.First(&c, r1.ID).Error)
		var res model.Reservation
		require.NoError(t, testDB.Where("lab_id = ? AND starts_at = ?", lab.ID,
			time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)).First(&res).Error)
		assert.Equal(t, fmt.Sprintf("reservation:%d", res.ID), c.StateReason)
	})
}
