package analysis

import (
	"context"
	"sync"
	"testing"
	"time"

	"cvtailor/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeduplicatorCollapsesConcurrentRuns(t *testing.T) {
	fake := newFakeAnalyzer()
	fake.delay = 100 * time.Millisecond
	d := NewDeduplicator(NewPipeline(fake, nil, newTestEngine(t), nil))

	const callers = 4
	var wg sync.WaitGroup
	results := make([]*Result, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _, err := d.Run(context.Background(), request())
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fake.calls.Load())
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, results[0].Record.ID, res.Record.ID)
	}
}

func TestDeduplicatorDistinctDocuments(t *testing.T) {
	fake := newFakeAnalyzer()
	d := NewDeduplicator(NewPipeline(fake, nil, newTestEngine(t), nil))

	first, shared, err := d.Run(context.Background(), request())
	require.NoError(t, err)
	assert.False(t, shared)

	other := request()
	other.JobDescription = "a different posting"
	second, _, err := d.Run(context.Background(), other)
	require.NoError(t, err)

	assert.NotEqual(t, first.Record.ID, second.Record.ID)
	assert.Equal(t, int32(2), fake.calls.Load())
}

func TestDeduplicatorCallerCancellation(t *testing.T) {
	fake := newFakeAnalyzer()
	fake.delay = 200 * time.Millisecond
	d := NewDeduplicator(NewPipeline(fake, nil, newTestEngine(t), nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := d.Run(ctx, request())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDeduplicatorInvalidCompany(t *testing.T) {
	d := NewDeduplicator(NewPipeline(newFakeAnalyzer(), nil, newTestEngine(t), nil))

	_, shared, err := d.Run(context.Background(), types.AnalyzeRequest{Company: "!!!", CVText: "cv", JobDescription: "jd"})
	assert.False(t, shared)
	// pipeline accepts the request; the slug is only needed for persistence
	assert.NoError(t, err)
}
