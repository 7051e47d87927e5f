package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLaunchRejectsSecondRunWithSameName(t *testing.T) {
	reg := NewRegistry(nil)
	release := make(chan struct{})
	started := make(chan struct{})

	ok := reg.Launch(context.Background(), "contracts", "process", func(context.Context) {
		close(started)
		<-release
	})
	require.True(t, ok)
	<-started

	assert.False(t, reg.Launch(context.Background(), "contracts", "retry", func(context.Context) {}))
	run, active := reg.Active("contracts")
	require.True(t, active)
	assert.Equal(t, "process", run.Task)

	other := reg.Launch(context.Background(), "sellers", "process", func(context.Context) {})
	assert.True(t, other, "pipelines run independently")

	close(release)
	reg.Wait()
	_, active = reg.Active("contracts")
	assert.False(t, active)
}

func TestLaunchClearsEntryAfterPanic(t *testing.T) {
	reg := NewRegistry(nil)
	require.True(t, reg.Launch(context.Background(), "sellers", "process", func(context.Context) {
		panic("boom")
	}))
	reg.Wait()

	_, active := reg.Active("sellers")
	assert.False(t, active)
	assert.True(t, reg.Launch(context.Background(), "sellers", "process", func(context.Context) {}))
	reg.Wait()
}

func TestConcurrentLaunchStartsOneRun(t *testing.T) {
	reg := NewRegistry(nil)
	release := make(chan struct{})
	var runs atomic.Int32
	var launched atomic.Int32

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if reg.Launch(context.Background(), "contracts", "process", func(context.Context) {
				runs.Add(1)
				<-release
			}) {
				launched.Add(1)
			}
		}()
	}
	wg.Wait()
	close(release)
	reg.Wait()

	assert.EqualValues(t, 1, launched.Load())
	assert.EqualValues(t, 1, runs.Load())
	assert.Empty(t, reg.Snapshot())
}
