package metrics

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Metrics struct {
	startTime time.Time

	requestsTotal   atomic.Int64
	requestsSuccess atomic.Int64
	requestsFailed  atomic.Int64

	mutationsTotal    atomic.Int64
	mutationsRejected atomic.Int64

	collisionsDetected atomic.Int64
	slotSuggestions    atomic.Int64

	remindersFired     atomic.Int64
	remindersDebounced atomic.Int64

	intakesRecorded atomic.Int64

	storeWrites       atomic.Int64
	storeWriteFailures atomic.Int64

	activeConnections atomic.Int64

	responseTimes     []time.Duration
	responseTimesLock sync.Mutex

	sinkDeliveries map[string]*atomic.Int64
	sinkLock       sync.Mutex
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}

func New() *Metrics {
	m := &Metrics{
		startTime:      time.Now(),
		responseTimes:  make([]time.Duration, 0, 1000),
		sinkDeliveries: make(map[string]*atomic.Int64),
	}
	return m
}

func (m *Metrics) RecordRequest(success bool) {
	m.requestsTotal.Add(1)
	if success {
		m.requestsSuccess.Add(1)
	} else {
		m.requestsFailed.Add(1)
	}
}

func (m *Metrics) RecordMutation(rejected bool) {
	m.mutationsTotal.Add(1)
	if rejected {
		m.mutationsRejected.Add(1)
	}
}

func (m *Metrics) RecordCollision() {
	m.collisionsDetected.Add(1)
}

func (m *Metrics) RecordSlotSuggestion() {
	m.slotSuggestions.Add(1)
}

func (m *Metrics) RecordReminderFired() {
	m.remindersFired.Add(1)
}

func (m *Metrics) RecordReminderDebounced() {
	m.remindersDebounced.Add(1)
}

func (m *Metrics) RecordIntake() {
	m.intakesRecorded.Add(1)
}

func (m *Metrics) RecordStoreWrite(success bool) {
	m.storeWrites.Add(1)
	if !success {
		m.storeWriteFailures.Add(1)
	}
}

func (m *Metrics) RecordSinkDelivery(sink string) {
	m.sinkLock.Lock()
	defer m.sinkLock.Unlock()

	if m.sinkDeliveries[sink] == nil {
		m.sinkDeliveries[sink] = &atomic.Int64{}
	}
	m.sinkDeliveries[sink].Add(1)
}

func (m *Metrics) RecordResponseTime(d time.Duration) {
	m.responseTimesLock.Lock()
	defer m.responseTimesLock.Unlock()

	m.responseTimes = append(m.responseTimes, d)
	if len(m.responseTimes) > 1000 {
		m.responseTimes = m.responseTimes[1:]
	}
}

func (m *Metrics) IncrementActiveConnections() {
	m.activeConnections.Add(1)
}

func (m *Metrics) DecrementActiveConnections() {
	m.activeConnections.Add(-1)
}

type Snapshot struct {
	Uptime             time.Duration    `json:"uptime"`
	RequestsTotal      int64            `json:"requests_total"`
	RequestsSuccess    int64            `json:"requests_success"`
	RequestsFailed     int64            `json:"requests_failed"`
	MutationsTotal     int64            `json:"mutations_total"`
	MutationsRejected  int64            `json:"mutations_rejected"`
	CollisionsDetected int64            `json:"collisions_detected"`
	SlotSuggestions    int64            `json:"slot_suggestions"`
	RemindersFired     int64            `json:"reminders_fired"`
	RemindersDebounced int64            `json:"reminders_debounced"`
	IntakesRecorded    int64            `json:"intakes_recorded"`
	StoreWrites        int64            `json:"store_writes"`
	StoreWriteFailures int64            `json:"store_write_failures"`
	ActiveConnections  int64            `json:"active_connections"`
	AvgResponseTime    time.Duration    `json:"avg_response_time"`
	P99ResponseTime    time.Duration    `json:"p99_response_time"`
	SinkDeliveries     map[string]int64 `json:"sink_deliveries"`
	SuccessRate        float64          `json:"success_rate"`
}

func (m *Metrics) Snapshot() *Snapshot {
	s := &Snapshot{
		Uptime:             time.Since(m.startTime),
		RequestsTotal:      m.requestsTotal.Load(),
		RequestsSuccess:    m.requestsSuccess.Load(),
		RequestsFailed:     m.requestsFailed.Load(),
		MutationsTotal:     m.mutationsTotal.Load(),
		MutationsRejected:  m.mutationsRejected.Load(),
		CollisionsDetected: m.collisionsDetected.Load(),
		SlotSuggestions:    m.slotSuggestions.Load(),
		RemindersFired:     m.remindersFired.Load(),
		RemindersDebounced: m.remindersDebounced.Load(),
		IntakesRecorded:    m.intakesRecorded.Load(),
		StoreWrites:        m.storeWrites.Load(),
		StoreWriteFailures: m.storeWriteFailures.Load(),
		ActiveConnections:  m.activeConnections.Load(),
		SinkDeliveries:     make(map[string]int64),
	}

	if s.RequestsTotal > 0 {
		s.SuccessRate = float64(s.RequestsSuccess) / float64(s.RequestsTotal) * 100
	}

	m.responseTimesLock.Lock()
	if len(m.responseTimes) > 0 {
		var total time.Duration
		for _, rt := range m.responseTimes {
			total += rt
		}
		s.AvgResponseTime = total / time.Duration(len(m.responseTimes))

		sorted := make([]time.Duration, len(m.responseTimes))
		copy(sorted, m.responseTimes)
		for i := 0; i < len(sorted)-1; i++ {
			for j := i + 1; j < len(sorted); j++ {
				if sorted[j] < sorted[i] {
					sorted[i], sorted[j] = sorted[j], sorted[i]
				}
			}
		}
		p99Index := int(float64(len(sorted)) * 0.99)
		if p99Index >= len(sorted) {
			p99Index = len(sorted) - 1
		}
		s.P99ResponseTime = sorted[p99Index]
	}
	m.responseTimesLock.Unlock()

	m.sinkLock.Lock()
	for k, v := range m.sinkDeliveries {
		s.SinkDeliveries[k] = v.Load()
	}
	m.sinkLock.Unlock()

	return s
}

func (m *Metrics) Prometheus() string {
	var sb strings.Builder

	sb.WriteString("# HELP caretrack_uptime_seconds Time since server start\n")
	sb.WriteString("# TYPE caretrack_uptime_seconds gauge\n")
	sb.WriteString("caretrack_uptime_seconds " + strconv.FormatInt(int64(time.Since(m.startTime).Seconds()), 10) + "\n\n")

	sb.WriteString("# HELP caretrack_requests_total Total number of requests\n")
	sb.WriteString("# TYPE caretrack_requests_total counter\n")
	sb.WriteString("caretrack_requests_total " + strconv.FormatInt(m.requestsTotal.Load(), 10) + "\n\n")

	sb.WriteString("# HELP caretrack_requests_failed Failed requests\n")
	sb.WriteString("# TYPE caretrack_requests_failed counter\n")
	sb.WriteString("caretrack_requests_failed " + strconv.FormatInt(m.requestsFailed.Load(), 10) + "\n\n")

	sb.WriteString("# HELP caretrack_mutations_total Record mutations attempted\n")
	sb.WriteString("# TYPE caretrack_mutations_total counter\n")
	sb.WriteString("caretrack_mutations_total " + strconv.FormatInt(m.mutationsTotal.Load(), 10) + "\n\n")

	sb.WriteString("# HELP caretrack_mutations_rejected Record mutations rejected by validation\n")
	sb.WriteString("# TYPE caretrack_mutations_rejected counter\n")
	sb.WriteString("caretrack_mutations_rejected " + strconv.FormatInt(m.mutationsRejected.Load(), 10) + "\n\n")

	sb.WriteString("# HELP caretrack_collisions_detected Appointment slot collisions detected\n")
	sb.WriteString("# TYPE caretrack_collisions_detected counter\n")
	sb.WriteString("caretrack_collisions_detected " + strconv.FormatInt(m.collisionsDetected.Load(), 10) + "\n\n")

	sb.WriteString("# HELP caretrack_slot_suggestions Alternative slots suggested\n")
	sb.WriteString("# TYPE caretrack_slot_suggestions counter\n")
	sb.WriteString("caretrack_slot_suggestions " + strconv.FormatInt(m.slotSuggestions.Load(), 10) + "\n\n")

	sb.WriteString("# HELP caretrack_reminders_fired Medication reminders fired\n")
	sb.WriteString("# TYPE caretrack_reminders_fired counter\n")
	sb.WriteString("caretrack_reminders_fired " + strconv.FormatInt(m.remindersFired.Load(), 10) + "\n\n")

	sb.WriteString("# HELP caretrack_reminders_debounced Reminders suppressed by debounce\n")
	sb.WriteString("# TYPE caretrack_reminders_debounced counter\n")
	sb.WriteString("caretrack_reminders_debounced " + strconv.FormatInt(m.remindersDebounced.Load(), 10) + "\n\n")

	sb.WriteString("# HELP caretrack_intakes_recorded Medication intakes recorded\n")
	sb.WriteString("# TYPE caretrack_intakes_recorded counter\n")
	sb.WriteString("caretrack_intakes_recorded " + strconv.FormatInt(m.intakesRecorded.Load(), 10) + "\n\n")

	sb.WriteString("# HELP caretrack_store_writes Record store write attempts\n")
	sb.WriteString("# TYPE caretrack_store_writes counter\n")
	sb.WriteString("caretrack_store_writes " + strconv.FormatInt(m.storeWrites.Load(), 10) + "\n\n")

	sb.WriteString("# HELP caretrack_store_write_failures Record store write failures\n")
	sb.WriteString("# TYPE caretrack_store_write_failures counter\n")
	sb.WriteString("caretrack_store_write_failures " + strconv.FormatInt(m.storeWriteFailures.Load(), 10) + "\n\n")

	sb.WriteString("# HELP caretrack_active_connections Active websocket connections\n")
	sb.WriteString("# TYPE caretrack_active_connections gauge\n")
	sb.WriteString("caretrack_active_connections " + strconv.FormatInt(m.activeConnections.Load(), 10) + "\n\n")

	m.sinkLock.Lock()
	for sink, count := range m.sinkDeliveries {
		sb.WriteString("# HELP caretrack_sink_deliveries_total Notifications delivered per sink\n")
		sb.WriteString("# TYPE caretrack_sink_deliveries_total counter\n")
		sb.WriteString("caretrack_sink_deliveries_total{sink=\"" + sink + "\"} " + strconv.FormatInt(count.Load(), 10) + "\n\n")
	}
	m.sinkLock.Unlock()

	return sb.String()
}

func RecordRequest(success bool) {
	Default().RecordRequest(success)
}

func RecordMutation(rejected bool) {
	Default().RecordMutation(rejected)
}

func RecordCollision() {
	Default().RecordCollision()
}

func RecordSlotSuggestion() {
	Default().RecordSlotSuggestion()
}

func RecordReminderFired() {
	Default().RecordReminderFired()
}

func RecordReminderDebounced() {
	Default().RecordReminderDebounced()
}

func RecordIntake() {
	Default().RecordIntake()
}

func RecordStoreWrite(success bool) {
	Default().RecordStoreWrite(success)
}

func RecordSinkDelivery(sink string) {
	Default().RecordSinkDelivery(sink)
}

func RecordResponseTime(d time.Duration) {
	Default().RecordResponseTime(d)
}

func Prometheus() string {
	return Default().Prometheus()
}
