package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepository_LastRun(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	first := Run{ID: "r1", Application: "checkout", Mode: "onboard", StartedAt: time.Now().Add(-time.Hour)}
	second := Run{ID: "r2", Application: "checkout", Mode: "update-thresholds", StartedAt: time.Now()}
	other := Run{ID: "r3", Application: "billing", Mode: "onboard"}

	require.NoError(t, repo.SaveRun(ctx, first))
	require.NoError(t, repo.SaveRun(ctx, second))
	require.NoError(t, repo.SaveRun(ctx, other))

	run, err := repo.LastRun(ctx, "checkout")
	require.NoError(t, err)
	assert.Equal(t, "r2", run.ID)
	assert.Equal(t, "update-thresholds", run.Mode)
}

func TestInMemoryRepository_LastRun_NotFound(t *testing.T) {
	repo := NewInMemoryRepository()

	_, err := repo.LastRun(context.Background(), "unknown")
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestInMemoryRepository_Entries(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	entries := []Entry{
		{RunID: "r1", Kind: "health-rules", Name: "checkout - CPU Busy", Success: true, Status: 201},
		{RunID: "r1", Kind: "actions", Name: "checkout - Notify OPS", Success: false, Status: 409},
		{RunID: "r2", Kind: "policies", Name: "checkout - Standard Alerting", Success: true, Status: 201},
	}
	require.NoError(t, repo.SaveEntries(ctx, entries))

	got := repo.Entries("r1")
	require.Len(t, got, 2)
	assert.Equal(t, "checkout - CPU Busy", got[0].Name)
	assert.False(t, got[1].Success)

	assert.Empty(t, repo.Entries("r9"))
}
