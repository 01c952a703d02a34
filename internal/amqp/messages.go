package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"purchasing/internal/core"
)

// ReportRequestMessage asks a worker to run a report. Today, when set,
// pins the reference date (YYYY-MM-DD) so replays are reproducible.
type ReportRequestMessage struct {
	RunID     string          `json:"run_id"`
	Kind      core.ReportKind `json:"kind"`
	Today     string          `json:"today,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ReportReadyMessage announces a finished run.
type ReportReadyMessage struct {
	RunID       string          `json:"run_id"`
	Kind        core.ReportKind `json:"kind"`
	Status      string          `json:"status"`
	SummaryRows int             `json:"summary_rows"`
	TrendRows   int             `json:"trend_rows"`
	Error       string          `json:"error,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// NewReportRequestMessage creates a request with a fresh run id.
func NewReportRequestMessage(kind core.ReportKind, today core.Date) *ReportRequestMessage {
	return &ReportRequestMessage{
		RunID:     uuid.NewString(),
		Kind:      kind,
		Today:     today.String(),
		Timestamp: time.Now(),
	}
}

// NewReportReadyMessage summarizes run for subscribers.
func NewReportReadyMessage(run core.ReportRun) *ReportReadyMessage {
	return &ReportReadyMessage{
		RunID:       run.ID,
		Kind:        run.Kind,
		Status:      run.Status,
		SummaryRows: run.SummaryRows,
		TrendRows:   run.TrendRows,
		Error:       run.Error,
		Timestamp:   time.Now(),
	}
}

// TodayDate parses the pinned reference date; ok is false when none is set.
func (m *ReportRequestMessage) TodayDate() (d core.Date, ok bool, err error) {
	if m.Today == "" {
		return core.Date{}, false, nil
	}
	d, err = core.ParseISODate(m.Today)
	if err != nil {
		return core.Date{}, false, fmt.Errorf("today %q: %w", m.Today, err)
	}
	return d, true, nil
}

// ToJSON converts the message to JSON bytes
func (m *ReportRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportRequestMessageFromJSON decodes and validates a request.
func ReportRequestMessageFromJSON(data []byte) (*ReportRequestMessage, error) {
	var msg ReportRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.RunID == "" {
		return nil, fmt.Errorf("report request without run id")
	}
	if !msg.Kind.IsValid() {
		return nil, fmt.Errorf("unknown report kind %q", msg.Kind)
	}
	if _, _, err := msg.TodayDate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (m *ReportReadyMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReportReadyMessageFromJSON(data []byte) (*ReportReadyMessage, error) {
	var msg ReportReadyMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
