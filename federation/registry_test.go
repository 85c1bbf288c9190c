package federation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/modelmesh/tensor"
	"github.com/BaSui01/modelmesh/testutil"
	"github.com/BaSui01/modelmesh/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func uniform(rows, cols int, v float64) *tensor.Tensor {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = v
	}
	t, err := tensor.New(rows, cols, data)
	if err != nil {
		panic(err)
	}
	return t
}

func contribution(node string, size uint64, layers map[string]*tensor.Tensor) *Contribution {
	return &Contribution{NodeID: node, Weights: layers, DataSize: size, Accuracy: 0.9}
}

func newTestRegistry(t *testing.T, opts ...RegistryOption) (*Registry, *testutil.FakeClock) {
	t.Helper()
	clock := testutil.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	opts = append([]RegistryOption{WithClock(clock.Now)}, opts...)
	return NewRegistry(5*time.Minute, zap.NewNop(), opts...), clock
}

func TestContribution_Validate(t *testing.T) {
	w := map[string]*tensor.Tensor{"dense": uniform(2, 2, 1)}

	tests := []struct {
		name string
		c    *Contribution
	}{
		{"nil", nil},
		{"empty node id", &Contribution{NodeID: " ", Weights: w}},
		{"no layers", &Contribution{NodeID: "n1"}},
		{"nil tensor", &Contribution{NodeID: "n1", Weights: map[string]*tensor.Tensor{"dense": nil}}},
		{"unnamed layer", &Contribution{NodeID: "n1", Weights: map[string]*tensor.Tensor{"": uniform(1, 1, 0)}}},
		{"accuracy above one", &Contribution{NodeID: "n1", Weights: w, Accuracy: 1.2}},
		{"negative accuracy", &Contribution{NodeID: "n1", Weights: w, Accuracy: -0.1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertErrorCode(t, tt.c.Validate(), types.ErrInvalidContribution)
		})
	}

	assert.NoError(t, (&Contribution{NodeID: "n1", Weights: w, Accuracy: 1}).Validate())
}

func TestRegistry_SubmitLastWriteWins(t *testing.T) {
	reg, clock := newTestRegistry(t)

	require.NoError(t, reg.Submit(contribution("node-a", 10, map[string]*tensor.Tensor{"w": uniform(1, 2, 1)})))
	clock.Advance(time.Second)
	require.NoError(t, reg.Submit(contribution("node-a", 20, map[string]*tensor.Tensor{"w": uniform(1, 2, 5)})))

	assert.Equal(t, 1, reg.Len())
	got, ok := reg.Get("node-a")
	require.True(t, ok)
	assert.Equal(t, uint64(20), got.DataSize)
	assert.Equal(t, 5.0, got.Weights["w"].At(0, 1))
	assert.Equal(t, clock.Now(), got.SubmittedAt)
}

func TestRegistry_SubmitCopiesWeightMap(t *testing.T) {
	reg, _ := newTestRegistry(t)

	w := map[string]*tensor.Tensor{"w": uniform(1, 1, 1)}
	require.NoError(t, reg.Submit(contribution("node-a", 1, w)))

	w["extra"] = uniform(1, 1, 2)
	got, _ := reg.Get("node-a")
	assert.Len(t, got.Weights, 1)
}

func TestRegistry_SubmitKeepsExplicitTimestamp(t *testing.T) {
	reg, clock := newTestRegistry(t)

	ts := clock.Now().Add(-time.Minute)
	c := contribution("node-a", 1, map[string]*tensor.Tensor{"w": uniform(1, 1, 1)})
	c.SubmittedAt = ts
	require.NoError(t, reg.Submit(c))

	got, _ := reg.Get("node-a")
	assert.Equal(t, ts, got.SubmittedAt)
}

func TestRegistry_ExpectedLayoutRejectsMismatch(t *testing.T) {
	reg, _ := newTestRegistry(t, WithExpectedLayout(tensor.Layout{"dense": {Rows: 2, Cols: 3}}))

	err := reg.Submit(contribution("node-bad", 5, map[string]*tensor.Tensor{"dense": uniform(2, 2, 1)}))
	testutil.AssertErrorCode(t, err, types.ErrInvalidContribution)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
	assert.Equal(t, 0, reg.Len())

	require.NoError(t, reg.Submit(contribution("node-ok", 5, map[string]*tensor.Tensor{"dense": uniform(2, 3, 1)})))
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_ActiveExcludesStale(t *testing.T) {
	reg, clock := newTestRegistry(t)
	w := map[string]*tensor.Tensor{"w": uniform(1, 1, 1)}

	require.NoError(t, reg.Submit(contribution("node-old", 1, w)))
	clock.Advance(3 * time.Minute)
	require.NoError(t, reg.Submit(contribution("node-new", 1, w)))
	clock.Advance(2 * time.Minute)

	// node-old 恰好 5 分钟，已不再活跃
	active := reg.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "node-new", active[0].NodeID)
	assert.Len(t, reg.All(), 2)

	evicted := reg.EvictStale()
	assert.Equal(t, []string{"node-old"}, evicted)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_ActiveSortedByNode(t *testing.T) {
	reg, _ := newTestRegistry(t)
	w := map[string]*tensor.Tensor{"w": uniform(1, 1, 1)}
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, reg.Submit(contribution(id, 1, w)))
	}

	var ids []string
	for _, c := range reg.Active() {
		ids = append(ids, c.NodeID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Equal(t, 3, reg.ActiveCount())
}

func TestRegistry_AbsorbKeepsSupersededSubmissions(t *testing.T) {
	reg, _ := newTestRegistry(t)
	w := map[string]*tensor.Tensor{"w": uniform(1, 1, 1)}

	require.NoError(t, reg.Submit(contribution("node-a", 1, w)))
	require.NoError(t, reg.Submit(contribution("node-b", 1, w)))
	taken := reg.Active()

	// node-b 在轮次进行中重新提交
	require.NoError(t, reg.Submit(contribution("node-b", 2, w)))

	assert.Equal(t, 1, reg.Absorb(taken))
	_, okA := reg.Get("node-a")
	b, okB := reg.Get("node-b")
	assert.False(t, okA)
	require.True(t, okB)
	assert.Equal(t, uint64(2), b.DataSize)
}

func TestRegistry_RunEvictsUntilCancelled(t *testing.T) {
	reg, clock := newTestRegistry(t)
	require.NoError(t, reg.Submit(contribution("node-a", 1, map[string]*tensor.Tensor{"w": uniform(1, 1, 1)})))
	clock.Advance(10 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reg.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	testutil.AssertEventuallyTrue(t, func() bool { return reg.Len() == 0 }, time.Second)
	cancel()

	_, stopped := testutil.WaitForChannel((<-chan struct{})(done), time.Second)
	assert.True(t, stopped)
}

func TestRegistry_ConcurrentSubmit(t *testing.T) {
	reg, _ := newTestRegistry(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			node := fmt.Sprintf("node-%d", i%10)
			_ = reg.Submit(contribution(node, uint64(i), map[string]*tensor.Tensor{"w": uniform(2, 2, float64(i))}))
			_ = reg.Active()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, reg.Len())
}

func TestNewRegistry_DefaultStaleness(t *testing.T) {
	reg := NewRegistry(0, nil)
	assert.Equal(t, DefaultStalenessThreshold, reg.StalenessThreshold())
}
