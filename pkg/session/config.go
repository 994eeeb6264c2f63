package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/arzzra/codec_bench/pkg/avdtp"
	"github.com/arzzra/codec_bench/pkg/codec"
	"github.com/arzzra/codec_bench/pkg/relay"
)

// Config конфигурация одной тестовой сессии.
type Config struct {
	// SessionID уникальный идентификатор сессии для логов и событий.
	// Пустое значение — генерируется автоматически.
	SessionID string

	// TransportAddr адрес транспорта внешнего стека ("hci-socket:0").
	TransportAddr string

	// Codecs запрошенные ключи кодеков. Обязательные кодеки (SBC, AAC)
	// добавляются автоматически при резолве выбора.
	Codecs []codec.Key

	// EnablePlayback включает живое воспроизведение SBC потока.
	EnablePlayback bool

	// BackupPath путь резервного файла потока; пустое значение — умолчание.
	BackupPath string

	// Player переопределяет проигрыватель ретранслятора (для тестов).
	Player relay.Player

	// SampleInterval интервал выборки битрейта.
	SampleInterval time.Duration

	// EventBufferSize емкость канала событий.
	EventBufferSize int

	// Logger структурный логгер сессии; nil — slog.Default().
	Logger *slog.Logger
}

// DefaultConfig возвращает конфигурацию сессии по умолчанию.
func DefaultConfig() Config {
	return Config{
		TransportAddr:   avdtp.DefaultTransportAddr,
		SampleInterval:  relay.DefaultSampleInterval,
		EventBufferSize: 256,
	}
}

// Validate проверяет конфигурацию и подставляет значения по умолчанию.
func (c *Config) Validate() error {
	if c.TransportAddr == "" {
		c.TransportAddr = avdtp.DefaultTransportAddr
	}
	if c.SampleInterval <= 0 {
		c.SampleInterval = relay.DefaultSampleInterval
	}
	if c.EventBufferSize <= 0 {
		c.EventBufferSize = 256
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	for _, key := range c.Codecs {
		if _, err := codec.Lookup(key); err != nil {
			return fmt.Errorf("конфигурация сессии: %w", err)
		}
	}
	return nil
}
