package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidaplus/hospital-api/internal/model"
	"github.com/vidaplus/hospital-api/internal/repository/memory"
	"github.com/vidaplus/hospital-api/pkg/logger"
	"github.com/vidaplus/hospital-api/pkg/metrics"
)

type secretive struct {
	Public string
	Token  string
}

func (s secretive) AuditSnapshot() interface{} {
	return map[string]string{"public": s.Public}
}

func TestSnapshot(t *testing.T) {
	assert.Nil(t, Snapshot(nil))
	assert.JSONEq(t, `{"id":4}`, string(Snapshot(map[string]int{"id": 4})))
	assert.JSONEq(t, `{"public":"yes"}`, string(Snapshot(secretive{Public: "yes", Token: "hidden"})))
	assert.Nil(t, Snapshot(make(chan int)), "unserializable payloads are dropped")

	var nilIdentity *model.Identity
	assert.Nil(t, Snapshot(nilIdentity))
}

func TestIDOf(t *testing.T) {
	id, ok := IDOf([]byte(`{"id":12,"name":"x"}`))
	assert.True(t, ok)
	assert.Equal(t, int64(12), id)

	for _, raw := range []string{``, `[]`, `{"name":"x"}`, `{"id":"12"}`, `"12"`} {
		_, ok := IDOf([]byte(raw))
		assert.False(t, ok, raw)
	}
}

func TestAsyncLogger_Persists(t *testing.T) {
	store := memory.NewStore()
	l := NewAsyncLogger(NewService(store.Audit(), metrics.NewNop()), time.Second, logger.Nop())

	// a cancelled request context must not cancel the write
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resourceType := "consultas"
	l.Record(ctx, &model.AuditRecord{ActorID: 1, Action: model.AuditActionBook, ResourceType: &resourceType, StatusCode: 201})
	l.Record(ctx, &model.AuditRecord{ActorID: 2, Action: model.AuditActionCancel, StatusCode: 200})

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer drainCancel()
	require.NoError(t, l.Drain(drainCtx))

	records := store.AuditRecords()
	require.Len(t, records, 2)
	actions := []string{records[0].Action, records[1].Action}
	assert.ElementsMatch(t, []string{model.AuditActionBook, model.AuditActionCancel}, actions)
	for _, r := range records {
		assert.NotZero(t, r.ID)
		assert.False(t, r.CreatedAt.IsZero())
	}
}

type panickingRepo struct{}

func (panickingRepo) Create(context.Context, *model.AuditRecord) error {
	panic("driver bug")
}

func TestAsyncLogger_SurvivesPanics(t *testing.T) {
	l := NewAsyncLogger(NewService(panickingRepo{}, metrics.NewNop()), time.Second, logger.Nop())

	assert.NotPanics(t, func() {
		l.Record(context.Background(), &model.AuditRecord{ActorID: 1, Action: model.AuditActionLogin})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, l.Drain(ctx))
}
