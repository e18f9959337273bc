package publish

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebeauty/agentcy/internal/clock"
)

func fastTiming() Timing {
	return Timing{
		AuthDelay:  time.Millisecond,
		LoginDelay: time.Millisecond,
		Stagger:    time.Millisecond,
		UploadStep: time.Millisecond,
	}
}

func TestLookup(t *testing.T) {
	got, err := Lookup([]string{"instagram", "YouTube", "twitter/x", "Instagram", " "})
	require.NoError(t, err)

	var ids []string
	for _, p := range got {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"youtube", "instagram", "twitter"}, ids, "platform order, deduplicated")
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup([]string{"myspace"})
	assert.ErrorContains(t, err, `unknown platform "myspace"`)
}

func TestLookupDefaultSelection(t *testing.T) {
	got, err := Lookup(DefaultSelection)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Len(t, Names(), len(Platforms))
}

type updates struct {
	mu   sync.Mutex
	list []Update
}

func (u *updates) add(up Update) {
	u.mu.Lock()
	u.list = append(u.list, up)
	u.mu.Unlock()
}

func TestPublishCompletes(t *testing.T) {
	platforms, err := Lookup([]string{"youtube", "instagram", "tiktok"})
	require.NoError(t, err)

	var ups updates
	p := New(WithTiming(fastTiming()), WithMaxParallel(2))
	p.SetUpdateFunc(ups.add)

	res, err := p.Publish(context.Background(), platforms)
	require.NoError(t, err)

	assert.Equal(t, StageCompleted, res.Stage)
	assert.Equal(t, 100, res.Overall)
	for _, s := range res.Platforms {
		assert.Equal(t, StatusCompleted, s.Status, s.ID)
		assert.Equal(t, 100, s.Progress, s.ID)
	}

	ups.mu.Lock()
	defer ups.mu.Unlock()
	var authOverall []int
	for _, u := range ups.list {
		if u.Stage == StageAuthenticating {
			for _, s := range u.Platforms {
				assert.NotEqual(t, StatusCompleted, s.Status)
			}
			authOverall = append(authOverall, u.Overall)
		}
		assert.GreaterOrEqual(t, u.Overall, 0)
		assert.LessOrEqual(t, u.Overall, 100)
	}
	assert.Contains(t, authOverall, 13)
	assert.Contains(t, authOverall, 26)
	assert.Contains(t, authOverall, 40)
}

func TestPublishLoginIsSequential(t *testing.T) {
	platforms, _ := Lookup([]string{"youtube", "instagram"})

	var ups updates
	p := New(WithTiming(fastTiming()))
	p.SetUpdateFunc(ups.add)
	_, err := p.Publish(context.Background(), platforms)
	require.NoError(t, err)

	ups.mu.Lock()
	defer ups.mu.Unlock()
	for _, u := range ups.list {
		if u.Stage != StageAuthenticating {
			continue
		}
		// The second platform never logs in before the first has finished.
		if u.Platforms[1].Status == StatusLoggingIn {
			assert.Equal(t, StatusUploading, u.Platforms[0].Status)
		}
	}
}

func TestPublishNoPlatforms(t *testing.T) {
	res, err := New().Publish(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, StageCompleted, res.Stage)
	assert.Empty(t, res.Platforms)
}

func TestPublishCancelled(t *testing.T) {
	platforms, _ := Lookup([]string{"youtube", "reddit"})
	clk := clock.NewManual(time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	p := New(WithClock(clk))
	p.SetUpdateFunc(func(u Update) {
		if u.Platforms[0].Status == StatusLoggingIn {
			cancel()
		}
	})

	done := make(chan struct{})
	var (
		res Result
		err error
	)
	go func() {
		res, err = p.Publish(ctx, platforms)
		close(done)
	}()

	require.Eventually(t, func() bool { return clk.Waiters() == 1 }, time.Second, time.Millisecond)
	clk.Advance(DefaultTiming().AuthDelay)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish did not return after cancel")
	}
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StageCancelled, res.Stage)
	for _, s := range res.Platforms {
		assert.Equal(t, StatusCancelled, s.Status)
	}
}

func TestUploadOverall(t *testing.T) {
	p := New()
	p.states = []PlatformState{{Progress: 100}, {Progress: 50}}
	assert.Equal(t, 85, p.uploadOverallLocked())

	p.states = []PlatformState{{Progress: 0}, {Progress: 0}}
	assert.Equal(t, 40, p.uploadOverallLocked())
}
