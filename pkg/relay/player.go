package relay

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// Player абстракция живого воспроизведения SBC потока.
// Реализация по умолчанию запускает внешний процесс ffplay.
type Player interface {
	// Start запускает воспроизведение с параметрами потока.
	Start(sampleRateHz uint32, channels int) error

	// Write передает очередную порцию сырых SBC фреймов.
	Write(data []byte) error

	// Stop останавливает воспроизведение и освобождает процесс.
	// Повторный вызов безопасен.
	Stop()
}

// FFPlayPlayer воспроизведение через ffplay с минимальной буферизацией.
//
// ffplay читает сырой SBC поток из stdin; флаги подавляют пробинг
// и буферизацию, чтобы воспроизведение шло без накапливаемой задержки.
type FFPlayPlayer struct {
	// Binary путь к исполняемому файлу; по умолчанию "ffplay" из PATH.
	Binary string

	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

// NewFFPlayPlayer создает проигрыватель с бинарем из PATH.
func NewFFPlayPlayer() *FFPlayPlayer {
	return &FFPlayPlayer{Binary: "ffplay"}
}

// Start реализует Player.
func (p *FFPlayPlayer) Start(sampleRateHz uint32, channels int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		return nil
	}

	binary := p.Binary
	if binary == "" {
		binary = "ffplay"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return fmt.Errorf("аудио backend не найден: %w", err)
	}

	cmd := exec.CommandContext(context.Background(), binary,
		"-nodisp", "-autoexit",
		"-f", "sbc",
		"-ac", fmt.Sprintf("%d", channels),
		"-ar", fmt.Sprintf("%d", sampleRateHz),
		"-probesize", "32",
		"-analyzeduration", "0",
		"-fflags", "nobuffer",
		"-flags", "low_delay",
		"-strict", "experimental",
		"-i", "pipe:0",
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe ffplay: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("запуск ffplay: %w", err)
	}

	p.cmd = cmd
	p.stdin = stdin
	return nil
}

// Write реализует Player.
func (p *FFPlayPlayer) Write(data []byte) error {
	p.mu.Lock()
	stdin := p.stdin
	p.mu.Unlock()

	if stdin == nil {
		return fmt.Errorf("проигрыватель не запущен")
	}
	_, err := stdin.Write(data)
	return err
}

// Stop реализует Player.
func (p *FFPlayPlayer) Stop() {
	p.mu.Lock()
	cmd := p.cmd
	stdin := p.stdin
	p.cmd = nil
	p.stdin = nil
	p.mu.Unlock()

	if stdin != nil {
		stdin.Close()
	}
	if cmd != nil && cmd.Process != nil {
		cmd.Process.Kill()
		cmd.Wait()
	}
}
