package amnesty

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aumos/shadow-ai-sentinel/internal/database"
)

type fakeStore struct {
	programs map[uuid.UUID]*database.AmnestyProgram
}

func newFakeStore() *fakeStore {
	return &fakeStore{programs: map[uuid.UUID]*database.AmnestyProgram{}}
}

func (f *fakeStore) Create(_ context.Context, program *database.AmnestyProgram) error {
	for _, p := range f.programs {
		if p.TenantID == program.TenantID && !database.TerminalAmnestyStatus(p.Status) {
			return database.ErrConflict
		}
	}
	cp := *program
	f.programs[program.ID] = &cp
	return nil
}

func (f *fakeStore) GetActiveForTenant(_ context.Context, tenantID uuid.UUID) (*database.AmnestyProgram, error) {
	for _, p := range f.programs {
		if p.TenantID == tenantID && !database.TerminalAmnestyStatus(p.Status) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, programID uuid.UUID, update database.AmnestyStatusUpdate) error {
	p, ok := f.programs[programID]
	if !ok {
		return database.ErrNotFound
	}
	p.Status = update.Status
	if update.EnforcementStartedAt != nil {
		p.EnforcementStartedAt = update.EnforcementStartedAt
	}
	if update.CancellationReason != nil {
		p.CancellationReason = update.CancellationReason
	}
	return nil
}

func (f *fakeStore) UpdateAffectedUserCount(_ context.Context, programID uuid.UUID, count int) error {
	p, ok := f.programs[programID]
	if !ok {
		return database.ErrNotFound
	}
	p.AffectedUserCount = count
	return nil
}

func (f *fakeStore) ListByTenant(_ context.Context, tenantID uuid.UUID) ([]*database.AmnestyProgram, error) {
	var out []*database.AmnestyProgram
	for _, p := range f.programs {
		if p.TenantID == tenantID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeDetections struct {
	detections []*database.Detection
}

func (f *fakeDetections) ListByTenant(_ context.Context, tenantID uuid.UUID, _ database.DetectionFilter) ([]*database.Detection, int, error) {
	var out []*database.Detection
	for _, d := range f.detections {
		if d.TenantID == tenantID {
			out = append(out, d)
		}
	}
	return out, len(out), nil
}

func newTestService(store Store, detections DetectionLister) *Service {
	return NewService(store, detections, zap.NewNop())
}

func TestInitiate(t *testing.T) {
	tenantID := uuid.New()

	t.Run("creates active program with computed expiry", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store, &fakeDetections{})
		start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		svc.now = func() time.Time { return start }

		program, err := svc.Initiate(context.Background(), tenantID, "Please migrate to governed tooling", 30, nil)
		require.NoError(t, err)

		assert.Equal(t, database.AmnestyStatusActive, program.Status)
		assert.Equal(t, 30, program.GracePeriodDays)
		assert.Equal(t, start.Add(30*24*time.Hour), program.GracePeriodExpiresAt)
		assert.Nil(t, program.InitiatedBy)
	})

	t.Run("rejects second concurrent program for tenant", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store, &fakeDetections{})

		_, err := svc.Initiate(context.Background(), tenantID, "first", 14, nil)
		require.NoError(t, err)

		_, err = svc.Initiate(context.Background(), tenantID, "second", 14, nil)
		assert.ErrorIs(t, err, database.ErrConflict)
	})

	t.Run("allows new program after cancellation", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store, &fakeDetections{})

		_, err := svc.Initiate(context.Background(), tenantID, "first", 14, nil)
		require.NoError(t, err)

		_, err = svc.Cancel(context.Background(), tenantID, nil)
		require.NoError(t, err)

		_, err = svc.Initiate(context.Background(), tenantID, "second", 14, nil)
		assert.NoError(t, err)
	})

	t.Run("rejects non-positive grace period", func(t *testing.T) {
		svc := newTestService(newFakeStore(), &fakeDetections{})

		_, err := svc.Initiate(context.Background(), tenantID, "msg", 0, nil)
		assert.Error(t, err)
	})

	t.Run("records initiating admin", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store, &fakeDetections{})
		adminID := uuid.New()

		program, err := svc.Initiate(context.Background(), tenantID, "msg", 7, &adminID)
		require.NoError(t, err)
		require.NotNil(t, program.InitiatedBy)
		assert.Equal(t, adminID, *program.InitiatedBy)
	})
}

func TestStatus(t *testing.T) {
	tenantID := uuid.New()

	t.Run("no program yields synthetic none", func(t *testing.T) {
		svc := newTestService(newFakeStore(), &fakeDetections{})

		status, err := svc.Status(context.Background(), tenantID)
		require.NoError(t, err)

		assert.Equal(t, database.AmnestyStatusNone, status.Status)
		assert.Nil(t, status.ProgramID)
		assert.False(t, status.IsActive)
		assert.Equal(t, 0, status.GracePeriodDays)
	})

	t.Run("active before expiry", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store, &fakeDetections{})
		start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		svc.now = func() time.Time { return start }

		program, err := svc.Initiate(context.Background(), tenantID, "msg", 30, nil)
		require.NoError(t, err)

		svc.now = func() time.Time { return start.Add(29 * 24 * time.Hour) }
		status, err := svc.Status(context.Background(), tenantID)
		require.NoError(t, err)

		assert.Equal(t, database.AmnestyStatusActive, status.Status)
		assert.True(t, status.IsActive)
		require.NotNil(t, status.ProgramID)
		assert.Equal(t, program.ID, *status.ProgramID)
		assert.Nil(t, status.EnforcementStartedAt)
	})

	t.Run("lazy transition to enforcing at expiry", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store, &fakeDetections{})
		start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		svc.now = func() time.Time { return start }

		program, err := svc.Initiate(context.Background(), tenantID, "msg", 7, nil)
		require.NoError(t, err)

		after := start.Add(7 * 24 * time.Hour)
		svc.now = func() time.Time { return after }

		status, err := svc.Status(context.Background(), tenantID)
		require.NoError(t, err)

		assert.Equal(t, database.AmnestyStatusEnforcing, status.Status)
		assert.False(t, status.IsActive)
		require.NotNil(t, status.EnforcementStartedAt)
		assert.Equal(t, after, *status.EnforcementStartedAt)

		// The transition was persisted, not just reported.
		persisted := store.programs[program.ID]
		assert.Equal(t, database.AmnestyStatusEnforcing, persisted.Status)
		require.NotNil(t, persisted.EnforcementStartedAt)
	})

	t.Run("enforcement start time is fixed on first observing read", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store, &fakeDetections{})
		start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		svc.now = func() time.Time { return start }

		program, err := svc.Initiate(context.Background(), tenantID, "msg", 7, nil)
		require.NoError(t, err)

		first := start.Add(8 * 24 * time.Hour)
		svc.now = func() time.Time { return first }
		_, err = svc.Status(context.Background(), tenantID)
		require.NoError(t, err)

		svc.now = func() time.Time { return first.Add(48 * time.Hour) }
		_, err = svc.Status(context.Background(), tenantID)
		require.NoError(t, err)

		persisted := store.programs[program.ID]
		require.NotNil(t, persisted.EnforcementStartedAt)
		assert.Equal(t, first, *persisted.EnforcementStartedAt)
	})
}

func TestCancel(t *testing.T) {
	tenantID := uuid.New()

	t.Run("cancels with reason", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store, &fakeDetections{})

		program, err := svc.Initiate(context.Background(), tenantID, "msg", 14, nil)
		require.NoError(t, err)

		reason := "migration complete ahead of schedule"
		cancelled, err := svc.Cancel(context.Background(), tenantID, &reason)
		require.NoError(t, err)
		require.NotNil(t, cancelled)

		assert.Equal(t, database.AmnestyStatusCancelled, cancelled.Status)
		require.NotNil(t, cancelled.CancellationReason)
		assert.Equal(t, reason, *cancelled.CancellationReason)
		assert.Equal(t, database.AmnestyStatusCancelled, store.programs[program.ID].Status)
	})

	t.Run("no-op without active program", func(t *testing.T) {
		svc := newTestService(newFakeStore(), &fakeDetections{})

		cancelled, err := svc.Cancel(context.Background(), tenantID, nil)
		require.NoError(t, err)
		assert.Nil(t, cancelled)
	})
}

func TestAffectedUsers(t *testing.T) {
	tenantID := uuid.New()

	detection := func(provider string, risk float64) *database.Detection {
		return &database.Detection{
			ID:                  uuid.New(),
			TenantID:            tenantID,
			Provider:            provider,
			ComplianceRiskScore: decimal.NewFromFloat(risk),
		}
	}

	t.Run("aggregates into single unattributed bucket", func(t *testing.T) {
		svc := newTestService(newFakeStore(), &fakeDetections{detections: []*database.Detection{
			detection("openai", 52.0),
			detection("anthropic", 50.0),
			detection("openai", 78.5),
		}})

		users, err := svc.AffectedUsers(context.Background(), tenantID)
		require.NoError(t, err)
		require.Len(t, users, 1)

		u := users[0]
		assert.Nil(t, u.UserID)
		assert.Equal(t, 3, u.DetectionCount)
		assert.Equal(t, []string{"anthropic", "openai"}, u.Providers)
		assert.Equal(t, 78.5, u.HighestRiskScore)
	})

	t.Run("empty tenant yields empty list", func(t *testing.T) {
		svc := newTestService(newFakeStore(), &fakeDetections{})

		users, err := svc.AffectedUsers(context.Background(), tenantID)
		require.NoError(t, err)
		assert.Empty(t, users)
	})
}
