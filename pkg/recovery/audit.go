package recovery

import (
	"context"
	"sync"
	"time"

	"github.com/Stefan/orka-ppm-sub007/pkg/eventbus"
	"github.com/Stefan/orka-ppm-sub007/pkg/events"
)

type RecordKind string

const (
	RecordKindError  RecordKind = "error"
	RecordKindAction RecordKind = "action"
)

// Record is one append-only entry of the recovery log.
type Record struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Kind       RecordKind     `json:"kind"`
	Category   Category       `json:"category"`
	Severity   Severity       `json:"severity"`
	Action     Action         `json:"action,omitempty"`
	Message    string         `json:"message"`
	InstanceID string         `json:"instance_id,omitempty"`
	Operation  string         `json:"operation,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
}

// AuditSink stores recovery records durably.
type AuditSink interface {
	Record(ctx context.Context, record Record) error
}

// BusAuditSink publishes records as recovery.recorded events.
type BusAuditSink struct {
	publisher eventbus.EventPublisher
}

func NewBusAuditSink(publisher eventbus.EventPublisher) *BusAuditSink {
	return &BusAuditSink{publisher: publisher}
}

func (s *BusAuditSink) Record(ctx context.Context, record Record) error {
	return s.publisher.Publish(ctx, record.InstanceID, events.RecoveryRecorded{
		ID:         record.ID,
		Timestamp:  record.Timestamp,
		Kind:       string(record.Kind),
		Category:   string(record.Category),
		Severity:   string(record.Severity),
		Action:     string(record.Action),
		Message:    record.Message,
		InstanceID: record.InstanceID,
		Operation:  record.Operation,
		Context:    record.Context,
	})
}

// ring keeps the most recent records in memory.
type ring struct {
	mu      sync.Mutex
	records []Record
	next    int
	full    bool
}

func newRing(size int) *ring {
	if size < 1 {
		size = 1
	}

	return &ring{records: make([]Record, size)}
}

func (r *ring) add(record Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[r.next] = record
	r.next = (r.next + 1) % len(r.records)

	if r.next == 0 {
		r.full = true
	}
}

// snapshot returns the records oldest first.
func (r *ring) snapshot() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		return append([]Record(nil), r.records[:r.next]...)
	}

	out := make([]Record, 0, len(r.records))
	out = append(out, r.records[r.next:]...)

	return append(out, r.records[:r.next]...)
}
