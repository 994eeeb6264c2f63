package relay

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/arzzra/codec_bench/pkg/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockPlayer записывает вызовы проигрывателя; FailStart и FailWrite
// навязывают ошибки соответствующих операций.
type mockPlayer struct {
	mu        sync.Mutex
	started   bool
	stopped   int
	written   [][]byte
	FailStart error
	FailWrite error
}

func (p *mockPlayer) Start(sampleRateHz uint32, channels int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailStart != nil {
		return p.FailStart
	}
	p.started = true
	return nil
}

func (p *mockPlayer) Write(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailWrite != nil {
		return p.FailWrite
	}
	buf := append([]byte(nil), data...)
	p.written = append(p.written, buf)
	return nil
}

func (p *mockPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped++
}

func (p *mockPlayer) totalWritten() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []byte
	for _, chunk := range p.written {
		out = append(out, chunk...)
	}
	return out
}

func newTestRelay(t *testing.T, player Player, playback bool) *Relay {
	t.Helper()
	return New(Config{
		PlaybackEnabled: playback,
		BackupPath:      filepath.Join(t.TempDir(), "dump.sbc"),
		Player:          player,
	})
}

// === ТЕСТЫ СЧЕТЧИКА И РЕТРАНСЛЯЦИИ ===

// TestRelayCountsAllCodecs проверяет, что счетчик байт учитывает пакеты
// всех кодеков, а не только воспроизводимого SBC.
func TestRelayCountsAllCodecs(t *testing.T) {
	r := newTestRelay(t, &mockPlayer{}, false)
	defer r.Stop()

	r.OnPacket(codec.KeyLDAC, make([]byte, 500))
	r.OnPacket(codec.KeySBC, make([]byte, 300))
	r.OnPacket(codec.KeyAAC, make([]byte, 200))

	assert.Equal(t, uint64(1000), r.BytesReceived())
}

// TestRelayCounterMonotonic счетчик монотонно неубывающий на протяжении
// жизни сессии, включая Stop.
func TestRelayCounterMonotonic(t *testing.T) {
	r := newTestRelay(t, &mockPlayer{}, false)

	prev := uint64(0)
	for i := 0; i < 10; i++ {
		r.OnPacket(codec.KeySBC, make([]byte, 100))
		now := r.BytesReceived()
		assert.GreaterOrEqual(t, now, prev)
		prev = now
	}
	r.Stop()
	assert.Equal(t, prev, r.BytesReceived())
}

// TestRelayHeaderStrip проверяет, что первый байт полезной нагрузки SBC
// (заголовок пакета) отбрасывается перед записью в проигрыватель.
func TestRelayHeaderStrip(t *testing.T) {
	player := &mockPlayer{}
	r := newTestRelay(t, player, true)
	defer r.Stop()

	r.Start(44100, 2, codec.KeySBC)
	require.True(t, r.PlaybackActive())

	payload := []byte{0x01, 0xAA, 0xBB, 0xCC}
	r.OnPacket(codec.KeySBC, payload)

	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, player.totalWritten())
	assert.Equal(t, uint64(4), r.BytesReceived(), "счетчик учитывает полную нагрузку")
}

// TestRelayNonRelayableStart проверяет, что Start для невоспроизводимого
// кодека является no-op: проигрыватель не запускается, подсчет работает.
func TestRelayNonRelayableStart(t *testing.T) {
	player := &mockPlayer{}
	r := newTestRelay(t, player, true)
	defer r.Stop()

	r.Start(96000, 2, codec.KeyLDAC)
	assert.False(t, r.PlaybackActive())

	r.OnPacket(codec.KeyLDAC, make([]byte, 660))
	assert.Equal(t, uint64(660), r.BytesReceived())
	assert.Empty(t, player.written)
}

// === ТЕСТЫ ДЕГРАДАЦИИ ===

// TestRelayPlaybackStartFailure отказ запуска проигрывателя деградирует
// до режима "только подсчет": сессия продолжается, резервная запись идет.
func TestRelayPlaybackStartFailure(t *testing.T) {
	player := &mockPlayer{FailStart: errors.New("ffplay не найден")}
	backupPath := filepath.Join(t.TempDir(), "dump.sbc")
	r := New(Config{
		PlaybackEnabled: true,
		BackupPath:      backupPath,
		Player:          player,
	})
	defer r.Stop()

	r.Start(44100, 2, codec.KeySBC)
	assert.False(t, r.PlaybackActive())

	r.OnPacket(codec.KeySBC, []byte{0x01, 0xAA, 0xBB})
	assert.Equal(t, uint64(3), r.BytesReceived())

	r.Stop()
	data, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB}, data, "резервная запись независима от проигрывателя")
}

// TestRelayPlaybackWriteFailure ошибка трубы проигрывателя отключает
// воспроизведение, не прерывая подсчет и резервную запись.
func TestRelayPlaybackWriteFailure(t *testing.T) {
	player := &mockPlayer{}
	backupPath := filepath.Join(t.TempDir(), "dump.sbc")
	r := New(Config{
		PlaybackEnabled: true,
		BackupPath:      backupPath,
		Player:          player,
	})

	r.Start(44100, 2, codec.KeySBC)
	require.True(t, r.PlaybackActive())

	player.mu.Lock()
	player.FailWrite = errors.New("труба закрыта")
	player.mu.Unlock()

	r.OnPacket(codec.KeySBC, []byte{0x01, 0xAA})
	assert.False(t, r.PlaybackActive(), "после ошибки трубы воспроизведение отключается")

	r.OnPacket(codec.KeySBC, []byte{0x01, 0xBB})
	assert.Equal(t, uint64(4), r.BytesReceived())

	r.Stop()
	data, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB}, data)
}

// TestRelayStopIdempotent повторный Stop безопасен, проигрыватель
// останавливается один раз.
func TestRelayStopIdempotent(t *testing.T) {
	player := &mockPlayer{}
	r := newTestRelay(t, player, true)

	r.Start(44100, 2, codec.KeySBC)
	r.Stop()
	r.Stop()
	r.Stop()

	player.mu.Lock()
	defer player.mu.Unlock()
	assert.Equal(t, 1, player.stopped)
}

// TestRelayRestartAfterClose после закрытия потока и повторного открытия
// тракт восстанавливается, резервный файл дописывается.
func TestRelayRestartAfterClose(t *testing.T) {
	player := &mockPlayer{}
	backupPath := filepath.Join(t.TempDir(), "dump.sbc")
	r := New(Config{
		PlaybackEnabled: true,
		BackupPath:      backupPath,
		Player:          player,
	})

	r.Start(44100, 2, codec.KeySBC)
	r.OnPacket(codec.KeySBC, []byte{0x01, 0xAA})
	r.Stop()

	r.Start(44100, 2, codec.KeySBC)
	r.OnPacket(codec.KeySBC, []byte{0x01, 0xBB})
	r.Stop()

	data, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB}, data)
	assert.Equal(t, uint64(4), r.BytesReceived())
}
