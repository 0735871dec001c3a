package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vidaplus/hospital-api/internal/model"
	"github.com/vidaplus/hospital-api/internal/repository"
	"github.com/vidaplus/hospital-api/pkg/metrics"
)

// Recorder accepts audit records. Implementations must not block the caller
// on persistence and must never surface a write failure.
type Recorder interface {
	Record(ctx context.Context, record *model.AuditRecord)
}

// Snapshotter lets a payload choose what part of itself is audited
type Snapshotter interface {
	AuditSnapshot() interface{}
}

type Service struct {
	repo    repository.AuditRepository
	metrics *metrics.Metrics
}

func NewService(repo repository.AuditRepository, m *metrics.Metrics) *Service {
	return &Service{repo: repo, metrics: m}
}

// Write persists one record synchronously and reports the outcome
func (s *Service) Write(ctx context.Context, record *model.AuditRecord) error {
	start := time.Now()
	err := s.repo.Create(ctx, record)
	s.metrics.AuditLatency.Observe(time.Since(start).Seconds())

	result := "ok"
	if err != nil {
		result = "error"
	}
	s.metrics.AuditRecords.WithLabelValues(result).Inc()
	return err
}

// Snapshot serializes v for previous_data or new_data. Unserializable
// payloads yield nil rather than an error.
func Snapshot(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	if s, ok := v.(Snapshotter); ok {
		v = s.AuditSnapshot()
		if v == nil {
			return nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return nil
	}
	return b
}

// IDOf reads a top-level numeric "id" from a snapshot
func IDOf(snapshot json.RawMessage) (int64, bool) {
	if len(snapshot) == 0 || snapshot[0] != '{' {
		return 0, false
	}
	var probe struct {
		ID *int64 `json:"id"`
	}
	if err := json.Unmarshal(snapshot, &probe); err != nil || probe.ID == nil {
		return 0, false
	}
	return *probe.ID, true
}
