package recordstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gmsas95/caretrack/internal/appointments"
	apperrors "github.com/gmsas95/caretrack/internal/errors"
	"github.com/gmsas95/caretrack/internal/medications"
	"github.com/gmsas95/caretrack/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleRecords() *Records {
	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.Local)
	return &Records{
		Appointments: []appointments.Appointment{
			{ID: 1, Title: "Dentist", Date: "2026-03-02", Time: "09:00", CreatedAt: created},
		},
		Medications: []medications.Medication{
			{
				ID:        2,
				Name:      "Aspirin",
				Dosage:    "100mg",
				Frequency: medications.FrequencyDaily,
				Time:      "08:00",
				CreatedAt: created,
				History: []medications.Intake{
					{MedicationID: 2, TakenAt: created.Add(time.Hour)},
				},
			},
		},
	}
}

// SQLite backend

func setupSQLiteStore(t *testing.T) *SQLiteStore {
	s, err := store.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewSQLiteStore(s, zap.NewNop())
}

func TestSQLiteStore_SaveAndLoad(t *testing.T) {
	rs := setupSQLiteStore(t)
	ctx := context.Background()
	recs := sampleRecords()

	require.NoError(t, rs.SaveAppointments(ctx, recs.Appointments))
	require.NoError(t, rs.SaveMedications(ctx, recs.Medications))

	loaded, err := rs.Load(ctx)
	require.NoError(t, err)

	require.Len(t, loaded.Appointments, 1)
	assert.Equal(t, "Dentist", loaded.Appointments[0].Title)
	assert.Equal(t, "09:00", loaded.Appointments[0].Time)

	require.Len(t, loaded.Medications, 1)
	assert.Equal(t, "Aspirin", loaded.Medications[0].Name)
	require.Len(t, loaded.Medications[0].History, 1)
}

func TestSQLiteStore_SaveReplacesCollection(t *testing.T) {
	rs := setupSQLiteStore(t)
	ctx := context.Background()
	recs := sampleRecords()

	require.NoError(t, rs.SaveAppointments(ctx, recs.Appointments))
	require.NoError(t, rs.SaveAppointments(ctx, nil))

	loaded, err := rs.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded.Appointments)
}

// File backend

func TestFileStore_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	fs, err := NewFileStore(path, zap.NewNop(), nil)
	require.NoError(t, err)
	defer fs.Close()

	ctx := context.Background()
	recs := sampleRecords()

	require.NoError(t, fs.SaveAppointments(ctx, recs.Appointments))
	require.NoError(t, fs.SaveMedications(ctx, recs.Medications))

	loaded, err := fs.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Appointments, 1)
	require.Len(t, loaded.Medications, 1)
	assert.Equal(t, "Aspirin", loaded.Medications[0].Name)
}

func TestFileStore_LoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	fs, err := NewFileStore(path, zap.NewNop(), nil)
	require.NoError(t, err)
	defer fs.Close()

	loaded, err := fs.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded.Appointments)
	assert.Empty(t, loaded.Medications)
}

func TestFileStore_WatcherSkipsOwnWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")

	changes := make(chan struct{}, 8)
	fs, err := NewFileStore(path, zap.NewNop(), func() {
		changes <- struct{}{}
	})
	require.NoError(t, err)
	defer fs.Close()

	ctx := context.Background()
	recs := sampleRecords()
	require.NoError(t, fs.SaveAppointments(ctx, recs.Appointments))
	require.NoError(t, fs.SaveMedications(ctx, recs.Medications))

	// The rename events land asynchronously; the store must swallow
	// its own writes instead of reloading on them
	select {
	case <-changes:
		t.Fatal("onChange fired for the store's own write")
	case <-time.After(300 * time.Millisecond):
	}

	// An edit from outside the process must still be reported
	tmp := path + ".external"
	require.NoError(t, os.WriteFile(tmp, []byte(`{"appointments":[],"medications":[]}`), 0644))
	require.NoError(t, os.Rename(tmp, path))

	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange never fired for an external write")
	}
}

func TestFileStore_LoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	fs, err := NewFileStore(path, zap.NewNop(), nil)
	require.NoError(t, err)
	defer fs.Close()

	_, err = fs.Load(context.Background())
	assert.Equal(t, "STORE_001", apperrors.GetCode(err))
}

// REST backend

func TestRESTStore_Load(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/records", r.URL.Path)
		json.NewEncoder(w).Encode(sampleRecords())
	}))
	defer srv.Close()

	rs := NewRESTStore(srv.URL, zap.NewNop())
	defer rs.Close()

	loaded, err := rs.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded.Appointments, 1)
	assert.Equal(t, "Dentist", loaded.Appointments[0].Title)
}

func TestRESTStore_SaveAppointments(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodPut, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	rs := NewRESTStore(srv.URL, zap.NewNop())
	defer rs.Close()

	err := rs.SaveAppointments(context.Background(), sampleRecords().Appointments)
	require.NoError(t, err)
	assert.Equal(t, "/records/appointments", gotPath)
}

func TestRESTStore_BreakerOpensAfterFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rs := NewRESTStore(srv.URL, zap.NewNop())
	defer rs.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := rs.Load(ctx)
		require.Error(t, err)
		assert.Equal(t, "STORE_001", apperrors.GetCode(err))
	}

	// Breaker is open now, requests fail without hitting the server
	_, err := rs.Load(ctx)
	require.Error(t, err)
	assert.Equal(t, "STORE_001", apperrors.GetCode(err))
}
