package sqlite_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/daksha/internal/domain"
)

func TestStateRepo_AppendKeepsOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestStore(t).States()

	const n = 25
	for i := 0; i < n; i++ {
		snap := domain.NewSnapshot()
		snap.Step = fmt.Sprintf("step-%d", i)
		require.NoError(t, repo.Append(ctx, "demo", snap))
	}

	stack, err := repo.GetAll(ctx, "demo")
	require.NoError(t, err)
	require.Len(t, stack, n)
	for i, snap := range stack {
		assert.Equal(t, fmt.Sprintf("step-%d", i), snap.Step)
	}

	latest, err := repo.GetLatest(ctx, "demo")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, fmt.Sprintf("step-%d", n-1), latest.Step)
}

func TestStateRepo_UpdateLatest_ReplacesLastOnly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestStore(t).States()

	first := domain.NewSnapshot()
	first.Step = "first"
	second := domain.NewSnapshot()
	second.Step = "second"
	require.NoError(t, repo.Append(ctx, "demo", first))
	require.NoError(t, repo.Append(ctx, "demo", second))

	patched := domain.NewSnapshot()
	patched.Step = "patched"
	require.NoError(t, repo.UpdateLatest(ctx, "demo", patched))

	stack, err := repo.GetAll(ctx, "demo")
	require.NoError(t, err)
	require.Len(t, stack, 2)
	assert.Equal(t, "first", stack[0].Step)
	assert.Equal(t, "patched", stack[1].Step)
}

func TestStateRepo_UpdateLatest_EmptyLogActsAsAppend(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestStore(t).States()

	snap := domain.NewSnapshot()
	snap.Step = "only"
	require.NoError(t, repo.UpdateLatest(ctx, "fresh", snap))

	stack, err := repo.GetAll(ctx, "fresh")
	require.NoError(t, err)
	require.Len(t, stack, 1)
	assert.Equal(t, "only", stack[0].Step)
}

func TestStateRepo_GetLatest_AbsentProject(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestStore(t).States()

	latest, err := repo.GetLatest(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, latest)

	stack, err := repo.GetAll(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, stack)
}

func TestStateRepo_PatchSeedsDefaultSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestStore(t).States()

	require.NoError(t, repo.SetCompleted(ctx, "fresh", true))

	stack, err := repo.GetAll(ctx, "fresh")
	require.NoError(t, err)
	require.Len(t, stack, 1)
	assert.True(t, stack[0].Completed)
	assert.True(t, stack[0].Active, "seeded snapshot keeps default active flag")
	assert.Zero(t, stack[0].TokenUsage)
}

func TestStateRepo_SetActive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestStore(t).States()

	require.NoError(t, repo.Append(ctx, "demo", domain.NewSnapshot()))
	require.NoError(t, repo.SetActive(ctx, "demo", false))

	active, err := repo.IsActive(ctx, "demo")
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, repo.SetActive(ctx, "demo", true))
	active, err = repo.IsActive(ctx, "demo")
	require.NoError(t, err)
	assert.True(t, active)
}

func TestStateRepo_AddTokenUsage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestStore(t).States()

	// Existing log: usage accumulates on the latest snapshot.
	snap := domain.NewSnapshot()
	snap.TokenUsage = 10
	require.NoError(t, repo.Append(ctx, "demo", snap))
	require.NoError(t, repo.AddTokenUsage(ctx, "demo", 7))

	usage, err := repo.LatestTokenUsage(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, 17, usage)

	// Absent log: the default snapshot is seeded first, so usage lands at k.
	require.NoError(t, repo.AddTokenUsage(ctx, "fresh", 5))
	usage, err = repo.LatestTokenUsage(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, 5, usage)

	stack, err := repo.GetAll(ctx, "fresh")
	require.NoError(t, err)
	require.Len(t, stack, 1)
}

func TestStateRepo_LatestTokenUsage_AbsentProject(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestStore(t).States()

	usage, err := repo.LatestTokenUsage(ctx, "nope")
	require.NoError(t, err)
	assert.Zero(t, usage)
}

func TestStateRepo_Flags_AbsentProject(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestStore(t).States()

	active, err := repo.IsActive(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, active)

	completed, err := repo.IsCompleted(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, completed)
}

func TestStateRepo_Delete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestStore(t).States()

	require.NoError(t, repo.Append(ctx, "demo", domain.NewSnapshot()))
	require.NoError(t, repo.Delete(ctx, "demo"))

	stack, err := repo.GetAll(ctx, "demo")
	require.NoError(t, err)
	assert.Nil(t, stack)

	// Deleting an absent log is a no-op.
	require.NoError(t, repo.Delete(ctx, "demo"))
}

// Concurrent single-field patches on a fresh project must both survive: the
// completion flag and the token count land in the same snapshot.
func TestStateRepo_ConcurrentPatchesBothSurvive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestStore(t).States()

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs <- repo.SetCompleted(ctx, "race", true)
	}()
	go func() {
		defer wg.Done()
		errs <- repo.AddTokenUsage(ctx, "race", 5)
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stack, err := repo.GetAll(ctx, "race")
	require.NoError(t, err)
	require.Len(t, stack, 1)
	assert.True(t, stack[0].Completed)
	assert.Equal(t, 5, stack[0].TokenUsage)
}

func TestStateRepo_ConcurrentTokenAdds(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestStore(t).States()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.AddTokenUsage(ctx, "race", 1)
		}()
	}
	wg.Wait()

	usage, err := repo.LatestTokenUsage(ctx, "race")
	require.NoError(t, err)
	assert.Equal(t, n, usage)
}

func TestStateRepo_ProjectsAreIsolated(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestStore(t).States()

	require.NoError(t, repo.AddTokenUsage(ctx, "one", 3))
	require.NoError(t, repo.AddTokenUsage(ctx, "two", 9))

	usage, err := repo.LatestTokenUsage(ctx, "one")
	require.NoError(t, err)
	assert.Equal(t, 3, usage)

	usage, err = repo.LatestTokenUsage(ctx, "two")
	require.NoError(t, err)
	assert.Equal(t, 9, usage)
}
