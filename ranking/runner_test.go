package ranking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/executor"
	"github.com/hupe1980/turnmesh/metrics"
)

func producer(name string, delay time.Duration, prio core.PriorityLevel, followUp bool) core.Task {
	return core.Task{
		Name: name,
		Run: func(ctx context.Context, _ core.Inputs) (any, error) {
			select {
			case <-time.After(delay):
				return &core.Candidate{Producer: name, Priority: prio, Text: name + " says hi", NeedsFollowUp: followUp}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
}

func TestRunner_EarlyCancellation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	r := New(executor.New(func(o *executor.Options) { o.Metrics = m }))

	start := time.Now()
	res := r.Run(context.Background(), "response", []core.Task{
		producer("force", 10*time.Millisecond, core.PriorityForceStart, false),
		producer("strong", 500*time.Millisecond, core.PriorityStrongContinue, false),
		producer("can", 500*time.Millisecond, core.PriorityCanStart, false),
	}, RunOptions{})
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 200*time.Millisecond)
	require.Len(t, res, 3)
	assert.Equal(t, core.OutcomeSuccess, res["force"].Kind)
	assert.Equal(t, core.OutcomeCancelled, res["strong"].Kind)
	assert.Equal(t, core.OutcomeCancelled, res["can"].Kind)
	n, err := promtest.GatherAndCount(reg, "turnmesh_early_cancellations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunner_ProtectedProducerIsAwaited(t *testing.T) {
	r := New(executor.New())

	res := r.Run(context.Background(), "response", []core.Task{
		producer("force", 5*time.Millisecond, core.PriorityForceStart, false),
		producer("protected", 60*time.Millisecond, core.PriorityCanStart, false),
		producer("other", 2*time.Second, core.PriorityCanStart, false),
	}, RunOptions{Protected: []string{"protected"}})

	assert.Equal(t, core.OutcomeSuccess, res["force"].Kind)
	assert.Equal(t, core.OutcomeSuccess, res["protected"].Kind)
	assert.Equal(t, core.OutcomeCancelled, res["other"].Kind)
}

func TestRunner_ProtectedUnlessNoFollowUp(t *testing.T) {
	tests := []struct {
		name     string
		followUp bool
		want     core.OutcomeKind
	}{
		{"winner needs follow-up", true, core.OutcomeSuccess},
		{"winner complete", false, core.OutcomeCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(executor.New())
			res := r.Run(context.Background(), "response", []core.Task{
				producer("strong", 5*time.Millisecond, core.PriorityStrongContinue, tt.followUp),
				producer("prompter", 80*time.Millisecond, core.PriorityCanStart, false),
			}, RunOptions{ProtectedUnlessNoFollowUp: []string{"prompter"}})

			assert.Equal(t, core.OutcomeSuccess, res["strong"].Kind)
			assert.Equal(t, tt.want, res["prompter"].Kind)
		})
	}
}

func TestRunner_NonDecisiveWaitsForAll(t *testing.T) {
	r := New(executor.New())

	res := r.Run(context.Background(), "response", []core.Task{
		producer("can", 5*time.Millisecond, core.PriorityCanStart, false),
		producer("weak", 30*time.Millisecond, core.PriorityWeakContinue, false),
		producer("fallback", 0, core.PriorityUniversalFallback, false),
	}, RunOptions{})

	for _, name := range []string{"can", "weak", "fallback"} {
		assert.Equal(t, core.OutcomeSuccess, res[name].Kind, name)
	}
}

func TestRunner_DeadlineAndErrors(t *testing.T) {
	r := New(executor.New())

	failing := core.Task{
		Name:    "failing",
		Run:     func(context.Context, core.Inputs) (any, error) { return nil, errors.New("backend down") },
		Default: core.Static(&core.Candidate{Producer: "failing"}),
	}
	noDefault := core.Task{
		Name: "no-default",
		Run:  func(context.Context, core.Inputs) (any, error) { return nil, errors.New("backend down") },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res := r.Run(ctx, "response", []core.Task{
		producer("slow", time.Second, core.PriorityCanStart, false),
		failing,
		noDefault,
	}, RunOptions{})

	assert.Equal(t, core.OutcomeMissing, res["slow"].Kind)
	assert.ErrorIs(t, res["slow"].Err, context.DeadlineExceeded)
	assert.Equal(t, core.OutcomeUsedDefault, res["failing"].Kind)
	assert.Equal(t, core.OutcomeMissing, res["no-default"].Kind)
}

func TestRunner_ExpiredContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := New(executor.New()).Run(ctx, "prompt", []core.Task{
		producer("a", 0, core.PriorityCanStart, false),
	}, RunOptions{})

	assert.Equal(t, core.OutcomeMissing, res["a"].Kind)
}

func TestRunner_SubmissionOrderHint(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)

	record := func(name string) core.Task {
		return core.Task{
			Name: name,
			Run: func(context.Context, core.Inputs) (any, error) {
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
				return nil, nil
			},
		}
	}

	tasks := []core.Task{record("a"), record("b"), record("c"), record("a")}
	got := submissionOrder(tasks, []string{"c", "missing", "c"})

	names := make([]string, 0, len(got))
	for _, tk := range got {
		names = append(names, tk.Name)
	}
	assert.Equal(t, []string{"c", "a", "b"}, names)

	res := New(executor.New()).Run(context.Background(), "response", tasks, RunOptions{Order: []string{"c"}})
	assert.Len(t, res, 3)
	assert.Len(t, order, 3)
}
