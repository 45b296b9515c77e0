package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/gmsas95/caretrack/internal/medications"
	"github.com/gmsas95/caretrack/internal/notify"
	"github.com/gmsas95/caretrack/internal/recordstore"
	"github.com/gmsas95/caretrack/internal/session"
	"github.com/gmsas95/caretrack/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureSink struct {
	sent []notify.Notification
}

func (c *captureSink) Name() string { return "capture" }

func (c *captureSink) Send(n notify.Notification) error {
	c.sent = append(c.sent, n)
	return nil
}

func setupPoller(t *testing.T, now time.Time, debounce time.Duration) (*Poller, *session.Session, *captureSink) {
	st, err := store.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	sink := &captureSink{}
	dispatcher := notify.NewDispatcher(zap.NewNop(), sink)

	rs := recordstore.NewSQLiteStore(st, zap.NewNop())
	sess := session.New(rs, dispatcher, zap.NewNop(), session.WithClock(func() time.Time { return now }))
	require.NoError(t, sess.Load(context.Background()))

	p := New(sess, st, dispatcher, zap.NewNop(), 5*time.Second, debounce, func() time.Time { return now })
	return p, sess, sink
}

var eight = time.Date(2024, 1, 1, 8, 0, 3, 0, time.Local)

func addMed(t *testing.T, sess *session.Session, name, clock string) *medications.Medication {
	med, err := sess.CreateMedication(context.Background(), session.MedicationInput{
		Name: name, Frequency: medications.FrequencyDaily, Time: clock,
	})
	require.NoError(t, err)
	return med
}

func TestTickFiresOnMatchingMinute(t *testing.T) {
	p, sess, sink := setupPoller(t, eight, time.Minute)
	addMed(t, sess, "Aspirin", "08:00")

	p.Tick()

	require.Len(t, sink.sent, 2) // creation toast + reminder
	reminder := sink.sent[1]
	assert.Equal(t, notify.KindInfo, reminder.Kind)
	assert.Contains(t, reminder.Message, "Aspirin")
}

func TestTickSingleFireWithinDebounceWindow(t *testing.T) {
	p, sess, sink := setupPoller(t, eight, time.Minute)
	addMed(t, sess, "Aspirin", "08:00")

	// The minute matches up to 12 ticks, only the first fires
	for i := 0; i < 12; i++ {
		p.Tick()
	}

	assert.Len(t, sink.sent, 2)
}

func TestTickSkipsNonMatchingMinute(t *testing.T) {
	p, sess, sink := setupPoller(t, eight, time.Minute)
	addMed(t, sess, "Aspirin", "08:01")

	p.Tick()

	assert.Len(t, sink.sent, 1) // creation toast only
}

func TestTickSkipsTakenToday(t *testing.T) {
	p, sess, sink := setupPoller(t, eight, time.Minute)
	med := addMed(t, sess, "Aspirin", "08:00")

	_, err := sess.MarkTaken(context.Background(), med.ID)
	require.NoError(t, err)

	p.Tick()

	assert.Len(t, sink.sent, 2) // creation + mark-taken toasts, no reminder
}

func TestTickSkipsMedsWithoutSchedule(t *testing.T) {
	p, sess, sink := setupPoller(t, eight, time.Minute)
	addMed(t, sess, "Rescue inhaler", "")

	p.Tick()

	assert.Len(t, sink.sent, 1)
}

func TestTickRefiresAfterDebounceExpiry(t *testing.T) {
	p, sess, sink := setupPoller(t, eight, 50*time.Millisecond)
	addMed(t, sess, "Aspirin", "08:00")

	p.Tick()
	require.Len(t, sink.sent, 2)

	time.Sleep(120 * time.Millisecond)
	p.Tick()

	assert.Len(t, sink.sent, 3)
}

func TestStartStop(t *testing.T) {
	p, _, _ := setupPoller(t, eight, time.Minute)

	require.NoError(t, p.Start())
	p.Stop()
}
