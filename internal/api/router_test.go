package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

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
)

func setupRouter(t *testing.T) (http.Handler, *gorm.DB) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	require.NoError(t, dbpkg.Migrate(db))

	cfg := &config.Config{
		Server: config.ServerConfig{
			RateLimitPerSec: 1000,
			RateLimitBurst:  1000,
			CacheTTLSeconds: 1,
		},
	}
	st := store.NewGormStore(db)
	lc, err := lifecycle.NewService(st, eventbus.New(16), "UTC")
	require.NoError(t, err)
	return NewRouter(cfg, st, lc), db
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req, _ = http.NewRequest(method, path, nil)
	} else {
		req, _ = http.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	router.ServeHTTP(w, req)
	return w
}

func TestSeriesEndpoints(t *testing.T) {
	router, db := setupRouter(t)
	lab := &model.Lab{Name: "Laboratorio A"}
	require.NoError(t, db.Create(lab).Error)

	body := fmt.Sprintf(`{"labId":%d,"subject":"Redes","startDate":"2025-03-03","endDate":"2025-03-07",
		"startTime":"10:00","endTime":"11:00","weekdays":[1,3,5]}`, lab.ID)

	w := doJSON(t, router, "POST", "/api/series", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		ID             int64 `json:"id"`
		Created        int   `json:"created"`
		AlreadyPresent int   `json:"alreadyPresent"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, 3, created.Created)
	assert.Zero(t, created.AlreadyPresent)

	// Regeneration is idempotent and reports what already existed.
	w = doJSON(t, router, "POST", fmt.Sprintf("/api/series/%d/regenerate", created.ID), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var regen struct {
		Created        int `json:"created"`
		AlreadyPresent int `json:"alreadyPresent"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &regen))
	assert.Zero(t, regen.Created)
	assert.Equal(t, 3, regen.AlreadyPresent)

	w = doJSON(t, router, "DELETE", fmt.Sprintf("/api/series/%d/reservations", created.ID), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted":3}`, w.Body.String())

	w = doJSON(t, router, "POST", "/api/series/9999/regenerate", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAvailabilityEndpoints(t *testing.T) {
	router, db := setupRouter(t)
	lab := &model.Lab{Name: "Laboratorio A"}
	require.NoError(t, db.Create(lab).Error)
	computer := &model.Computer{LabID: lab.ID, Number: 1, State: model.StateReserved, StateReason: "reservation:9"}
	require.NoError(t, db.Create(computer).Error)

	w := doJSON(t, router, "GET", fmt.Sprintf("/api/computers/%d/availability", computer.ID), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"state":"Reserved","reason":"reservation:9"}`, w.Body.String())

	w = doJSON(t, router, "GET", fmt.Sprintf("/api/labs/%d/available", lab.ID), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = doJSON(t, router, "GET", "/api/computers/9999/availability", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionAndMaintenanceEndpoints(t *testing.T) {
	router, db := setupRouter(t)
	lab := &model.Lab{Name: "Laboratorio A"}
	require.NoError(t, db.Create(lab).Error)
	computer := &model.Computer{LabID: lab.ID, Number: 1, State: model.StateAvailable}
	require.NoError(t, db.Create(computer).Error)

	// Checkout
	body := fmt.Sprintf(`{"computerId":%d,"studentId":"A012345","fullName":"Ana Pérez","email":"ana@example.com"}`, computer.ID)
	w := doJSON(t, router, "POST", "/api/sessions", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var c model.Computer
	require.NoError(t, db.First(&c, computer.ID).Error)
	assert.Equal(t, model.StateInUse, c.State)

	// A second checkout on the same computer conflicts.
	w = doJSON(t, router, "POST", "/api/sessions", body)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Maintenance is rejected while the session is open.
	w = doJSON(t, router, "POST", "/api/maintenance", fmt.Sprintf(`{"computerId":%d,"note":"revisión"}`, computer.ID))
	assert.Equal(t, http.StatusConflict, w.Code)

	// Student lookup prefills the form.
	w = doJSON(t, router, "GET", "/api/students/A012345", "")
	require.Equal(t, http.StatusOK, w.Code)
	var lookup struct {
		Found    bool   `json:"found"`
		FullName string `json:"fullName"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lookup))
	assert.True(t, lookup.Found)
	assert.Equal(t, "Ana Pérez", lookup.FullName)

	// Checkout by student releases the computer.
	w = doJSON(t, router, "POST", "/api/students/A012345/checkout", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, db.First(&c, computer.ID).Error)
	assert.Equal(t, model.StateAvailable, c.State)

	// Now maintenance can start, and a second hold conflicts.
	w = doJSON(t, router, "POST", "/api/maintenance", fmt.Sprintf(`{"computerId":%d,"note":"revisión"}`, computer.ID))
	require.Equal(t, http.StatusCreated, w.Code)
	w = doJSON(t, router, "POST", "/api/maintenance", fmt.Sprintf(`{"computerId":%d}`, computer.ID))
	assert.Equal(t, http.StatusConflict, w.Code)
}
