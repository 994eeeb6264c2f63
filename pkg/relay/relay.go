// Package relay реализует ретрансляцию медиа потока и телеметрию битрейта.
//
// Relay принимает медиа пакеты всех открытых endpoint'ов, ведет
// монотонный счетчик принятых байт и для воспроизводимого кодека (SBC)
// перенаправляет полезную нагрузку в живой проигрыватель и в резервный
// файл. Sampler периодически превращает счетчик в события битрейта.
package relay

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/arzzra/codec_bench/pkg/codec"
)

// RelayableKey единственный кодек, чьи сырые фреймы воспроизводимы
// без полного декодирования.
const RelayableKey = codec.KeySBC

// DefaultBackupName имя резервного файла потока в домашнем каталоге.
const DefaultBackupName = "codec_bench_stream_dump.sbc"

// DefaultBackupPath возвращает путь резервного файла по умолчанию.
func DefaultBackupPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultBackupName
	}
	return filepath.Join(home, DefaultBackupName)
}

// Config конфигурация ретранслятора.
type Config struct {
	// PlaybackEnabled включает живое воспроизведение SBC.
	PlaybackEnabled bool

	// BackupPath путь резервной копии потока; пустое значение —
	// DefaultBackupPath().
	BackupPath string

	// Player используемый проигрыватель; nil — FFPlayPlayer.
	Player Player

	// Logger структурный логгер; nil — slog.Default().
	Logger *slog.Logger
}

// Relay ретранслятор медиа потока одной сессии.
//
// Счетчик байт инкрементируется для каждого пакета любого кодека:
// телеметрия отражает полный негоциированный поток, а не только
// воспроизводимую часть. Проигрыватель и резервный файл независимы:
// отказ одного не блокирует другой.
type Relay struct {
	log             *slog.Logger
	player          Player
	playbackEnabled bool
	backupPath      string

	bytes atomic.Uint64

	mu             sync.Mutex
	playbackActive bool
	backup         *os.File
}

// New создает ретранслятор по конфигурации.
func New(cfg Config) *Relay {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	player := cfg.Player
	if player == nil {
		player = NewFFPlayPlayer()
	}
	backupPath := cfg.BackupPath
	if backupPath == "" {
		backupPath = DefaultBackupPath()
	}
	return &Relay{
		log:             logger,
		player:          player,
		playbackEnabled: cfg.PlaybackEnabled,
		backupPath:      backupPath,
	}
}

// Start активирует живой тракт для открывшегося endpoint'а.
//
// Для невоспроизводимых кодеков вызов является no-op: пакеты продолжают
// учитываться счетчиком. Отказ проигрывателя деградирует до режима
// "только подсчет": сессия не прерывается, резервная запись продолжается.
func (r *Relay) Start(sampleRateHz uint32, channels int, key codec.Key) {
	if key != RelayableKey {
		r.log.Debug("живое воспроизведение доступно только для SBC",
			slog.String("codec", string(key)))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.backup == nil {
		f, err := os.OpenFile(r.backupPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			r.log.Warn("резервный файл потока недоступен",
				slog.String("path", r.backupPath),
				slog.Any("error", err))
		} else {
			r.backup = f
			r.log.Info("резервная запись потока включена",
				slog.String("path", r.backupPath))
		}
	}

	if !r.playbackEnabled || r.playbackActive {
		return
	}
	if err := r.player.Start(sampleRateHz, channels); err != nil {
		r.log.Warn("воспроизведение недоступно, продолжаем только подсчет",
			slog.Any("error", err))
		return
	}
	r.playbackActive = true
	r.log.Info("воспроизведение SBC запущено",
		slog.Uint64("sample_rate", uint64(sampleRateHz)),
		slog.Int("channels", channels))
}

// OnPacket обрабатывает полезную нагрузку одного медиа пакета.
//
// Первый байт полезной нагрузки SBC — заголовок пакета (счетчик фреймов),
// он отбрасывается перед записью в проигрыватель и резервный файл.
func (r *Relay) OnPacket(key codec.Key, payload []byte) {
	r.bytes.Add(uint64(len(payload)))

	if key != RelayableKey || len(payload) < 2 {
		return
	}
	frames := payload[1:]

	r.mu.Lock()
	playbackActive := r.playbackActive
	backup := r.backup
	r.mu.Unlock()

	if playbackActive {
		if err := r.player.Write(frames); err != nil {
			r.log.Warn("ошибка трубы проигрывателя, воспроизведение отключено",
				slog.Any("error", err))
			r.mu.Lock()
			r.playbackActive = false
			r.mu.Unlock()
			r.player.Stop()
		}
	}

	if backup != nil {
		if _, err := backup.Write(frames); err != nil {
			r.log.Warn("ошибка записи резервного файла",
				slog.Any("error", err))
		}
	}
}

// Stop освобождает проигрыватель и резервный файл.
// Вызывается на каждом пути завершения; повторный вызов безопасен.
// Счетчик байт сохраняет значение: Sampler может дочитать остаток.
func (r *Relay) Stop() {
	r.mu.Lock()
	playbackActive := r.playbackActive
	backup := r.backup
	r.playbackActive = false
	r.backup = nil
	r.mu.Unlock()

	if playbackActive {
		r.player.Stop()
	}
	if backup != nil {
		if err := backup.Close(); err != nil {
			r.log.Warn("ошибка закрытия резервного файла", slog.Any("error", err))
		}
	}
}

// BytesReceived возвращает монотонный счетчик принятых байт.
func (r *Relay) BytesReceived() uint64 {
	return r.bytes.Load()
}

// PlaybackActive сообщает, активно ли живое воспроизведение.
func (r *Relay) PlaybackActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playbackActive
}
