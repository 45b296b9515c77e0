package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/gmsas95/caretrack/internal/appointments"
	apperrors "github.com/gmsas95/caretrack/internal/errors"
	"github.com/gmsas95/caretrack/internal/medications"
	"go.uber.org/zap"
)

// FileStore persists records as a single JSON document. Writes go
// through a temp file and rename, so readers never observe a partial
// document. An fsnotify watcher picks up edits made outside the
// process and reports them through the OnChange callback.
type FileStore struct {
	path   string
	logger *zap.Logger

	mu sync.Mutex

	// Renames from save land in the watcher asynchronously, after
	// save has already returned; each save leaves one pending event
	// for the watcher to swallow
	pendingSelfWrites atomic.Int64

	watcher  *fsnotify.Watcher
	onChange func()
	done     chan struct{}
}

// NewFileStore creates a flat-file record store at path. onChange may
// be nil; otherwise it is called when the file changes on disk outside
// of Save calls.
func NewFileStore(path string, logger *zap.Logger, onChange func()) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, apperrors.Wrap(err, "STORE_001", "failed to create store directory")
	}

	fs := &FileStore{
		path:     path,
		logger:   logger,
		onChange: onChange,
		done:     make(chan struct{}),
	}

	if onChange != nil {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, apperrors.Wrap(err, "STORE_001", "failed to create file watcher")
		}
		if err := watcher.Add(filepath.Dir(path)); err != nil {
			watcher.Close()
			return nil, apperrors.Wrap(err, "STORE_001", "failed to watch store directory")
		}
		fs.watcher = watcher
		go fs.watch()
	}

	return fs, nil
}

func (f *FileStore) watch() {
	for {
		select {
		case <-f.done:
			return
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if event.Name != f.path {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}

			if f.pendingSelfWrites.Load() > 0 {
				f.pendingSelfWrites.Add(-1)
				continue
			}

			f.logger.Info("records file changed on disk, reloading")
			f.onChange()
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

func (f *FileStore) Load(ctx context.Context) (*Records, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return &Records{
			Appointments: []appointments.Appointment{},
			Medications:  []medications.Medication{},
		}, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "STORE_001", "failed to read records file")
	}

	var recs Records
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, apperrors.Wrap(err, "STORE_001", "records file is corrupt")
	}
	return &recs, nil
}

func (f *FileStore) SaveAppointments(ctx context.Context, appts []appointments.Appointment) error {
	return f.save(ctx, func(recs *Records) {
		recs.Appointments = appts
	})
}

func (f *FileStore) SaveMedications(ctx context.Context, meds []medications.Medication) error {
	return f.save(ctx, func(recs *Records) {
		recs.Medications = meds
	})
}

func (f *FileStore) save(ctx context.Context, apply func(*Records)) error {
	recs, err := f.Load(ctx)
	if err != nil {
		return err
	}
	apply(recs)

	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return apperrors.Wrap(err, "STORE_001", "failed to encode records")
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return apperrors.Wrap(err, "STORE_001", "failed to write records file")
	}

	f.pendingSelfWrites.Add(1)
	if err := os.Rename(tmp, f.path); err != nil {
		f.pendingSelfWrites.Add(-1)
		return apperrors.Wrap(err, "STORE_001", "failed to replace records file")
	}
	return nil
}

func (f *FileStore) Close() error {
	close(f.done)
	if f.watcher != nil {
		return f.watcher.Close()
	}
	return nil
}
