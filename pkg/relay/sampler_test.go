package relay

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCounter управляемый источник счетчика байт.
type fakeCounter struct {
	value atomic.Uint64
}

func (c *fakeCounter) BytesReceived() uint64 {
	return c.value.Load()
}

// samples потокобезопасный сборщик выборок.
type samples struct {
	mu   sync.Mutex
	kbps []float64
}

func (s *samples) add(v float64) {
	s.mu.Lock()
	s.kbps = append(s.kbps, v)
	s.mu.Unlock()
}

func (s *samples) snapshot() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.kbps))
	copy(out, s.kbps)
	return out
}

// === ТЕСТЫ ВЫБОРКИ БИТРЕЙТА ===

// TestSamplerFormula проверяет формулу kbps = delta*8/1000 для дельты
// одного интервала: 10000 байт дают 80 kbps.
func TestSamplerFormula(t *testing.T) {
	counter := &fakeCounter{}
	got := &samples{}
	s := NewSampler(counter, 10*time.Millisecond, got.add)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	counter.value.Store(10000)
	require.Eventually(t, func() bool {
		return len(got.snapshot()) >= 1
	}, time.Second, time.Millisecond)

	cancel()
	<-done

	assert.InDelta(t, 80.0, got.snapshot()[0], 0.001)
}

// TestSamplerZeroDelta проверяет, что при нулевой дельте выборка
// не эмитится.
func TestSamplerZeroDelta(t *testing.T) {
	counter := &fakeCounter{}
	got := &samples{}
	s := NewSampler(counter, 5*time.Millisecond, got.add)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	assert.Empty(t, got.snapshot(), "нулевая дельта не должна давать выборок")
}

// TestSamplerDeltaReset дельта считается от предыдущей выборки, а не
// от нуля: после выборки prev обновляется.
func TestSamplerDeltaReset(t *testing.T) {
	counter := &fakeCounter{}
	got := &samples{}
	s := NewSampler(counter, 10*time.Millisecond, got.add)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	counter.value.Store(1000)
	require.Eventually(t, func() bool {
		return len(got.snapshot()) >= 1
	}, time.Second, time.Millisecond)

	counter.value.Store(1500)
	require.Eventually(t, func() bool {
		return len(got.snapshot()) >= 2
	}, time.Second, time.Millisecond)

	cancel()
	<-done

	snap := got.snapshot()
	assert.InDelta(t, 8.0, snap[0], 0.001)
	assert.InDelta(t, 4.0, snap[1], 0.001)
}

// TestSamplerStopsOnCancel задача останавливается не позже одного
// интервала после отмены и больше не эмитит.
func TestSamplerStopsOnCancel(t *testing.T) {
	counter := &fakeCounter{}
	got := &samples{}
	interval := 10 * time.Millisecond
	s := NewSampler(counter, interval, got.add)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * interval):
		t.Fatal("sampler не остановился в пределах интервала после отмены")
	}

	counter.value.Store(100000)
	time.Sleep(3 * interval)
	assert.Empty(t, got.snapshot(), "после остановки выборки не эмитятся")
}

// TestSamplerFinalFlush хвост потока между последним тиком и отменой
// попадает в финальную выборку.
func TestSamplerFinalFlush(t *testing.T) {
	counter := &fakeCounter{}
	got := &samples{}
	// Интервал заведомо больше длительности теста: обычный тик не успеет.
	s := NewSampler(counter, time.Hour, got.add)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	counter.value.Store(5000)
	cancel()
	<-done

	snap := got.snapshot()
	require.Len(t, snap, 1)
	assert.InDelta(t, 40.0, snap[0], 0.001)
}

// TestSamplerDefaultInterval нулевой интервал заменяется умолчанием.
func TestSamplerDefaultInterval(t *testing.T) {
	s := NewSampler(&fakeCounter{}, 0, func(float64) {})
	assert.Equal(t, DefaultSampleInterval, s.interval)
}
