package relay

import (
	"context"
	"time"
)

// DefaultSampleInterval интервал выборки битрейта по умолчанию.
const DefaultSampleInterval = time.Second

// ByteCounter источник монотонного счетчика принятых байт.
type ByteCounter interface {
	BytesReceived() uint64
}

// Sampler периодическая задача вычисления мгновенного битрейта.
//
// Раз в интервал вычисляется дельта счетчика; при ненулевой дельте
// вызывается emit с kbps = delta*8/1000. Задача кооперативно привязана
// к контексту сессии: при отмене делает финальную выборку накопленного
// хвоста, останавливается не позже одного интервала после отмены и не
// эмитит после возврата из Run.
type Sampler struct {
	counter  ByteCounter
	interval time.Duration
	emit     func(kbps float64)
	prev     uint64
}

// NewSampler создает задачу выборки. Нулевой интервал заменяется
// DefaultSampleInterval.
func NewSampler(counter ByteCounter, interval time.Duration, emit func(kbps float64)) *Sampler {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &Sampler{
		counter:  counter,
		interval: interval,
		emit:     emit,
		// Точка отсчета дельты фиксируется при создании.
		prev: counter.BytesReceived(),
	}
}

// Run крутит цикл выборки до отмены контекста.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	prev := s.prev
	sample := func() {
		now := s.counter.BytesReceived()
		delta := now - prev
		prev = now
		if delta > 0 {
			s.emit(float64(delta) * 8 / 1000)
		}
	}
	for {
		select {
		case <-ctx.Done():
			// Финальная выборка покрывает хвост потока между последним
			// тиком и остановкой сессии.
			sample()
			return
		case <-ticker.C:
			sample()
		}
	}
}
