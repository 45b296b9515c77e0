package recordstore

import (
	"context"

	"github.com/gmsas95/caretrack/internal/appointments"
	apperrors "github.com/gmsas95/caretrack/internal/errors"
	"github.com/gmsas95/caretrack/internal/medications"
	"github.com/gmsas95/caretrack/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SQLiteStore persists records through the embedded SQLite database.
type SQLiteStore struct {
	store  *store.Store
	logger *zap.Logger
}

// NewSQLiteStore creates a record store backed by the given Store.
func NewSQLiteStore(s *store.Store, logger *zap.Logger) *SQLiteStore {
	return &SQLiteStore{store: s, logger: logger}
}

func (s *SQLiteStore) Load(ctx context.Context) (*Records, error) {
	db := s.store.DB().WithContext(ctx)

	var appts []appointments.Appointment
	if err := db.Order("date ASC, time ASC").Find(&appts).Error; err != nil {
		return nil, apperrors.Wrap(err, "STORE_001", "failed to load appointments")
	}

	var meds []medications.Medication
	if err := db.Preload("History", func(db *gorm.DB) *gorm.DB {
		return db.Order("taken_at ASC")
	}).Order("created_at ASC").Find(&meds).Error; err != nil {
		return nil, apperrors.Wrap(err, "STORE_001", "failed to load medications")
	}

	return &Records{Appointments: appts, Medications: meds}, nil
}

func (s *SQLiteStore) SaveAppointments(ctx context.Context, appts []appointments.Appointment) error {
	err := s.store.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&appointments.Appointment{}).Error; err != nil {
			return err
		}
		if len(appts) == 0 {
			return nil
		}
		return tx.Create(&appts).Error
	})
	if err != nil {
		s.logger.Error("failed to save appointments", zap.Error(err))
		return apperrors.Wrap(err, "STORE_001", "failed to save appointments")
	}
	return nil
}

func (s *SQLiteStore) SaveMedications(ctx context.Context, meds []medications.Medication) error {
	err := s.store.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&medications.Intake{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&medications.Medication{}).Error; err != nil {
			return err
		}
		if len(meds) == 0 {
			return nil
		}
		return tx.Create(&meds).Error
	})
	if err != nil {
		s.logger.Error("failed to save medications", zap.Error(err))
		return apperrors.Wrap(err, "STORE_001", "failed to save medications")
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return nil
}
