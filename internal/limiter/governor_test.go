package limiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thep200/star-history-crawler/cfg"
	"github.com/thep200/star-history-crawler/internal/githubapi"
	"github.com/thep200/star-history-crawler/pkg/log"
)

func newTestGovernor(t *testing.T) *Governor {
	t.Helper()
	loader, _ := cfg.NewMockLoader()
	config, _ := loader.Load()
	logger, _ := log.NewCslLogger()

	governor, err := NewGovernor(logger, config, githubapi.NewCaller(logger, config))
	require.NoError(t, err)
	return governor
}

func TestDecideExhaustedQuota(t *testing.T) {
	governor := newTestGovernor(t)

	reset := time.Now().Add(20 * time.Minute).Unix()
	wait := governor.Decide(Snapshot{Limit: 5000, Used: 5000, Remaining: 0, Reset: reset, Known: true})

	// Chờ đến reset cộng biên an toàn 10s
	assert.InDelta(t, (20*time.Minute + 10*time.Second).Seconds(), wait.Seconds(), 2)
}

func TestDecideTransientForbidden(t *testing.T) {
	governor := newTestGovernor(t)

	wait := governor.Decide(Snapshot{Limit: 5000, Used: 100, Remaining: 4900, Known: true})
	assert.Equal(t, 5*time.Second, wait)
}

func TestDecideUnknownSnapshot(t *testing.T) {
	governor := newTestGovernor(t)

	wait := governor.Decide(Snapshot{})
	assert.Equal(t, 5*time.Second, wait)
}

func TestTimeUntilResetInThePast(t *testing.T) {
	governor := newTestGovernor(t)

	wait := governor.TimeUntilReset(Snapshot{Reset: time.Now().Add(-time.Hour).Unix(), Known: true})
	assert.Equal(t, time.Duration(0), wait)
}

func TestSnapshotFromError(t *testing.T) {
	governor := newTestGovernor(t)

	snapshot, ok := governor.SnapshotFromError(&githubapi.RateLimitError{
		StatusCode: 403,
		Remaining:  0,
		Reset:      1700000000,
		HasQuota:   true,
	})
	require.True(t, ok)
	assert.True(t, snapshot.Known)
	assert.Equal(t, 0, snapshot.Remaining)
	assert.Equal(t, int64(1700000000), snapshot.Reset)

	_, ok = governor.SnapshotFromError(assert.AnError)
	assert.False(t, ok)
}

func TestEstimateBatch(t *testing.T) {
	governor := newTestGovernor(t)

	plan := governor.EstimateBatch(250, 4000, 40)
	assert.Equal(t, 100, plan.ItemsPerHour)
	assert.Equal(t, 3, plan.TotalBatches)
	assert.Equal(t, []int{100, 100, 50}, plan.ItemsPerBatch)
}

func TestEstimateBatchExactFit(t *testing.T) {
	governor := newTestGovernor(t)

	plan := governor.EstimateBatch(200, 4000, 40)
	assert.Equal(t, []int{100, 100}, plan.ItemsPerBatch)
	assert.Equal(t, 2, plan.TotalBatches)
}

func TestEstimateBatchEmpty(t *testing.T) {
	governor := newTestGovernor(t)

	plan := governor.EstimateBatch(0, 4000, 40)
	assert.Equal(t, 0, plan.TotalBatches)
	assert.Empty(t, plan.ItemsPerBatch)
}

func TestEstimateBatchGuardsZeroCallsPerItem(t *testing.T) {
	governor := newTestGovernor(t)

	plan := governor.EstimateBatch(5, 4000, 0)
	assert.Equal(t, 1, plan.TotalBatches)
	assert.Equal(t, []int{5}, plan.ItemsPerBatch)
}
