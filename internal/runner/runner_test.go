package runner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/wfunc/uart-panel/internal/errors"
	"github.com/wfunc/uart-panel/internal/hardware"
)

func newSimulatedRunner(cfg Config) (*hardware.SimulatedPort, *Runner) {
	sim := hardware.NewSimulatedPort()
	display := hardware.NewTextDisplay()
	link := hardware.NewLink(&hardware.LinkConfig{Port: "sim"}, sim.Opener())
	return sim, New(hardware.NewPanel(link, display), display, cfg)
}

func startRunner(t *testing.T, r *Runner) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, r.Run(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestRunner_TicksUpdateStatus(t *testing.T) {
	_, r := newSimulatedRunner(Config{UpdateInterval: 10 * time.Millisecond})
	startRunner(t, r)

	assert.Eventually(t, func() bool {
		s := r.Status()
		return s.LinkOpen && s.Upper != ""
	}, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return r.Status().Stats.ResponsesReceived >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestRunner_PressKeyReachesPeripheral(t *testing.T) {
	sim, r := newSimulatedRunner(Config{UpdateInterval: time.Hour})
	startRunner(t, r)

	require.NoError(t, r.PressKey(5))
	assert.Eventually(t, func() bool { return sim.LastKey() == 5 }, time.Second, 5*time.Millisecond)
}

func TestRunner_PressKeyValidation(t *testing.T) {
	_, r := newSimulatedRunner(Config{})

	err := r.PressKey(8)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParam))
	err = r.PressKey(-1)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParam))
}

func TestRunner_PressKeyQueueFull(t *testing.T) {
	_, r := newSimulatedRunner(Config{QueueSize: 1})

	require.NoError(t, r.PressKey(0))
	err := r.PressKey(1)
	assert.True(t, apperrors.Is(err, apperrors.ErrDeviceBusy))
}

func TestRunner_OnStatus(t *testing.T) {
	_, r := newSimulatedRunner(Config{UpdateInterval: 10 * time.Millisecond})

	var mu sync.Mutex
	var got []Snapshot
	r.OnStatus(func(s Snapshot) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})
	startRunner(t, r)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, s := range got {
			if s.Upper != "" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestRunner_OnStatusEverySubscriber(t *testing.T) {
	_, r := newSimulatedRunner(Config{UpdateInterval: time.Hour})

	var mu sync.Mutex
	counts := make([]int, 3)
	for i := range counts {
		i := i
		r.OnStatus(func(Snapshot) {
			mu.Lock()
			counts[i]++
			mu.Unlock()
		})
	}
	startRunner(t, r)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return counts[0] > 0 && counts[1] > 0 && counts[2] > 0
	}, time.Second, 5*time.Millisecond)

	// 运行中注册的订阅者在下一次变化时收到通知
	late := make(chan Snapshot, 1)
	r.OnStatus(func(s Snapshot) {
		select {
		case late <- s:
		default:
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Do(ctx, func(p *hardware.Panel) { p.Tick() }))

	select {
	case s := <-late:
		assert.NotEmpty(t, s.Upper)
	case <-time.After(time.Second):
		t.Fatal("late subscriber not notified")
	}
}

func TestRunner_DoRunsOnLoop(t *testing.T) {
	sim, r := newSimulatedRunner(Config{UpdateInterval: time.Hour})
	startRunner(t, r)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Do(ctx, func(p *hardware.Panel) { p.SendKey(2) }))
	assert.Equal(t, 2, sim.LastKey())

	require.NoError(t, r.Do(ctx, func(p *hardware.Panel) { p.Tick() }))
	assert.Eventually(t, func() bool { return r.Status().Slot == 1 }, time.Second, 5*time.Millisecond)
}

func TestRunner_DoWithoutLoopTimesOut(t *testing.T) {
	_, r := newSimulatedRunner(Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := r.Do(ctx, func(p *hardware.Panel) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, apperrors.Is(err, apperrors.ErrTimeout))
}

func TestRunner_DoCanceled(t *testing.T) {
	_, r := newSimulatedRunner(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Do(ctx, func(p *hardware.Panel) {})
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, apperrors.Is(err, apperrors.ErrCanceled))
}

func TestRunner_StopClosesLink(t *testing.T) {
	_, r := newSimulatedRunner(Config{UpdateInterval: time.Hour})
	cancel := startRunner(t, r)

	assert.Eventually(t, func() bool { return r.Status().LinkOpen }, time.Second, 5*time.Millisecond)
	cancel()
	assert.Eventually(t, func() bool { return !r.Status().LinkOpen }, time.Second, 5*time.Millisecond)
}

func TestRunner_IdleReconnect(t *testing.T) {
	sim, r := newSimulatedRunner(Config{
		UpdateInterval:    time.Hour,
		ReconnectInterval: 10 * time.Millisecond,
	})
	sim.SetOffline(true)
	startRunner(t, r)

	assert.Eventually(t, func() bool { return !r.Status().LinkOpen && r.Status().Stats.LastError != "" },
		time.Second, 5*time.Millisecond)

	sim.SetOffline(false)
	assert.Eventually(t, func() bool { return r.Status().LinkOpen }, time.Second, 5*time.Millisecond)
}

func TestChanged(t *testing.T) {
	base := Snapshot{Upper: "A", Lower: "B", LinkOpen: true, At: time.Now()}

	same := base
	same.Slot = 1
	same.Stats.CommandsSent = 10
	assert.False(t, changed(base, same))

	diff := base
	diff.Lower = "C"
	assert.True(t, changed(base, diff))
}
