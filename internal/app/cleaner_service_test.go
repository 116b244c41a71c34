package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spread_expire/internal/domain/spread"
)

func newCleaner(f *fixture, guard EntityGuard) *CleanerService {
	return NewCleanerService(f.svc, guard, f.svc.logger)
}

func TestCleanerRun_CutoffIsExclusive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.accounts.addAccount(43, "kari")
	cutoff := f.today()
	dayBefore := f.inDays(-1)
	require.NoError(t, f.svc.AddSpread(ctx, entityID, adSpread, &dayBefore))
	require.NoError(t, f.svc.AddSpread(ctx, 43, adSpread, &cutoff))

	report, err := newCleaner(f, nil).Run(ctx, RunOptions{Spreads: []spread.Code{adSpread}, Cutoff: cutoff})
	require.NoError(t, err)
	require.NoError(t, report.Err())

	assert.Equal(t, 1, report.Deleted)
	gone, _ := f.expires.Exists(ctx, entityID, adSpread)
	assert.False(t, gone)
	kept, _ := f.expires.Exists(ctx, 43, adSpread)
	assert.True(t, kept)
	assert.Equal(t, 1, f.accounts.homesCleared[expireKey{entityID, adSpread}])
	assert.Zero(t, f.accounts.homesCleared[expireKey{43, adSpread}])
}

func TestCleanerRun_GrantExpireCleanup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.AddSpread(ctx, entityID, adSpread, nil))

	f.nextDay()
	report, err := newCleaner(f, nil).Run(ctx, RunOptions{Spreads: []spread.Code{adSpread}, Cutoff: f.inDays(0)})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Deleted)
	has, _ := f.accounts.HasSpread(ctx, entityID, adSpread)
	assert.False(t, has)
	exists, err := f.expires.Exists(ctx, entityID, adSpread)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, f.pending(t, entityID))
}

func TestCleanerRun_PurgesOrphans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	expired := f.inDays(-5)
	// Entity 7 does not exist; entityID lost the spread outside this service.
	require.NoError(t, f.expires.Set(ctx, 7, adSpread, expired))
	require.NoError(t, f.expires.Set(ctx, entityID, adSpread, expired))
	sent := f.now.AddDate(0, 0, -10)
	require.NoError(t, f.notifs.Set(ctx, 7, "T3", &sent))

	report, err := newCleaner(f, nil).Run(ctx, RunOptions{Spreads: []spread.Code{adSpread}, Cutoff: f.today()})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Purged)
	assert.Zero(t, report.Deleted)
	assert.Empty(t, f.expires.rows)
	assert.Empty(t, f.pending(t, 7))
	assert.Zero(t, f.accounts.deleteCalls[expireKey{7, adSpread}])
	assert.Zero(t, f.accounts.deleteCalls[expireKey{entityID, adSpread}])
}

func TestCleanerRun_EntityFailureDoesNotStopBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.accounts.addAccount(43, "kari")
	expired := f.inDays(-1)
	require.NoError(t, f.svc.AddSpread(ctx, entityID, adSpread, &expired))
	require.NoError(t, f.svc.AddSpread(ctx, 43, adSpread, &expired))
	f.accounts.failFor[entityID] = errors.New("connection reset")

	guard := &countingGuard{}
	report, err := newCleaner(f, guard).Run(ctx, RunOptions{Spreads: []spread.Code{adSpread}, Cutoff: f.today()})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Deleted)
	assert.Equal(t, 2, report.Failed, "cleanup and notify both fail for the entity")
	assert.ErrorContains(t, report.Err(), "connection reset")
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 3, guard.calls)

	has, _ := f.accounts.HasSpread(ctx, 43, adSpread)
	assert.False(t, has)
}

func TestCleanerRun_NotifiesApproachingExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.accounts.addAccount(43, "kari")
	soon, later := f.inDays(20), f.inDays(60)
	require.NoError(t, f.svc.AddSpread(ctx, entityID, adSpread, &soon))
	require.NoError(t, f.svc.AddSpread(ctx, 43, adSpread, &later))

	// The notify pass covers every configured spread, not only the swept ones.
	report, err := newCleaner(f, nil).Run(ctx, RunOptions{Cutoff: f.today()})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Notified)
	assert.Equal(t, []string{"T1"}, f.pending(t, entityID))
	assert.Empty(t, f.pending(t, 43))
}

func TestNotifyCandidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.expires.Set(ctx, 1, adSpread, f.inDays(30)))
	require.NoError(t, f.expires.Set(ctx, 2, adSpread, f.inDays(31)))
	require.NoError(t, f.expires.Set(ctx, 3, adSpread, f.inDays(200)))
	require.NoError(t, f.expires.Set(ctx, 4, mailSpread, f.inDays(7)))
	require.NoError(t, f.expires.Set(ctx, 5, 99, f.inDays(1)))
	sent := f.now.AddDate(0, 0, -3)
	require.NoError(t, f.notifs.Set(ctx, 3, "T1", &sent))

	c := newCleaner(f, nil)
	got, err := c.notifyCandidates(ctx, f.svc.policies.Spreads())
	require.NoError(t, err)

	assert.Equal(t, []candidate{
		{entityID: 1, spread: adSpread},
		{entityID: 3, spread: adSpread},
		{entityID: 4, spread: mailSpread},
	}, got)
}

func TestCleanerRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	expired := f.inDays(-1)
	require.NoError(t, f.svc.AddSpread(ctx, entityID, adSpread, &expired))
	cancel()

	_, err := newCleaner(f, nil).Run(ctx, RunOptions{Spreads: []spread.Code{adSpread}, Cutoff: f.today()})
	assert.ErrorIs(t, err, context.Canceled)
	has, _ := f.accounts.HasSpread(context.Background(), entityID, adSpread)
	assert.True(t, has)
}

func TestCleanerRun_SearchFailureIsReported(t *testing.T) {
	f := newFixture(t)
	f.expires.err = errors.New("relation does not exist")

	report, err := newCleaner(f, nil).Run(context.Background(), RunOptions{Spreads: []spread.Code{adSpread}, Cutoff: f.today()})
	require.NoError(t, err)
	assert.Positive(t, report.Failed)
	assert.ErrorContains(t, report.Err(), "relation does not exist")
}
