package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gmsas95/caretrack/internal/appointments"
	apperrors "github.com/gmsas95/caretrack/internal/errors"
	"github.com/gmsas95/caretrack/internal/medications"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// RESTStore persists records through a remote HTTP records service.
// All calls run through a circuit breaker so a flapping remote fails
// fast instead of stalling every mutation.
type RESTStore struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *zap.Logger
}

// NewRESTStore creates a record store that talks to the records
// service at baseURL.
func NewRESTStore(baseURL string, logger *zap.Logger) *RESTStore {
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "recordstore",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("record store breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &RESTStore{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		breaker: breaker,
		logger:  logger,
	}
}

func (r *RESTStore) Load(ctx context.Context) (*Records, error) {
	body, err := r.do(ctx, http.MethodGet, "/records", nil)
	if err != nil {
		return nil, err
	}

	var recs Records
	if err := json.Unmarshal(body, &recs); err != nil {
		return nil, apperrors.Wrap(err, "STORE_001", "records service returned invalid payload")
	}
	return &recs, nil
}

func (r *RESTStore) SaveAppointments(ctx context.Context, appts []appointments.Appointment) error {
	payload, err := json.Marshal(appts)
	if err != nil {
		return apperrors.Wrap(err, "STORE_001", "failed to encode appointments")
	}
	_, err = r.do(ctx, http.MethodPut, "/records/appointments", payload)
	return err
}

func (r *RESTStore) SaveMedications(ctx context.Context, meds []medications.Medication) error {
	payload, err := json.Marshal(meds)
	if err != nil {
		return apperrors.Wrap(err, "STORE_001", "failed to encode medications")
	}
	_, err = r.do(ctx, http.MethodPut, "/records/medications", payload)
	return err
}

func (r *RESTStore) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	body, err := r.breaker.Execute(func() ([]byte, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := r.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("records service returned %d", resp.StatusCode)
		}

		return io.ReadAll(resp.Body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, apperrors.Wrap(err, "STORE_001", "records service circuit open")
		}
		return nil, apperrors.Wrap(err, "STORE_001", "records service request failed")
	}
	return body, nil
}

func (r *RESTStore) Close() error {
	r.client.CloseIdleConnections()
	return nil
}
