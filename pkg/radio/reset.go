// Package radio выполняет best-effort сброс Bluetooth радио между сессиями.
//
// Последовательность повторяет ручной ритуал подготовки контроллера:
// опустить интерфейс, заблокировать и разблокировать радио rfkill'ом,
// снова опустить интерфейс. Операция идемпотентна, безопасна после
// любого исхода сессии и никогда не возвращает ошибку вызывающему —
// сбои только логируются.
package radio

import (
	"context"
	"log/slog"
	"os/exec"
	"time"
)

// DefaultInterface имя HCI интерфейса по умолчанию.
const DefaultInterface = "hci0"

// commandTimeout ограничение на каждый внешний вызов.
const commandTimeout = 5 * time.Second

// Runner исполняет одну внешнюю команду. Абстракция нужна тестам:
// боевая реализация зовет exec, тестовая записывает вызовы.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner боевая реализация Runner поверх os/exec.
type ExecRunner struct{}

// Run реализует Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	return exec.CommandContext(ctx, name, args...).Run()
}

// step один шаг последовательности сброса: команда и пауза после нее.
type step struct {
	args  []string
	delay time.Duration
}

// Config конфигурация сброса.
type Config struct {
	// Interface имя HCI интерфейса; пустое значение — DefaultInterface.
	Interface string

	// Runner исполнитель команд; nil — ExecRunner.
	Runner Runner

	// Logger структурный логгер; nil — slog.Default().
	Logger *slog.Logger

	// NoDelays отключает паузы между шагами (для тестов).
	NoDelays bool
}

// Reset выполняет последовательность сброса радио.
//
// Паузы между шагами фиксированные: контроллеру нужно время на
// фактическое применение rfkill состояния до следующего шага.
// Отмена контекста прерывает последовательность на ближайшей паузе.
func Reset(ctx context.Context, cfg Config) {
	iface := cfg.Interface
	if iface == "" {
		iface = DefaultInterface
	}
	runner := cfg.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	steps := []step{
		{args: []string{"hciconfig", iface, "down"}, delay: 1000 * time.Millisecond},
		{args: []string{"rfkill", "block", "bluetooth"}, delay: 600 * time.Millisecond},
		{args: []string{"rfkill", "unblock", "bluetooth"}, delay: 1800 * time.Millisecond},
		{args: []string{"hciconfig", iface, "down"}, delay: 800 * time.Millisecond},
	}

	logger.Info("сброс радио интерфейса", slog.String("interface", iface))
	for _, s := range steps {
		if err := runner.Run(ctx, s.args[0], s.args[1:]...); err != nil {
			logger.Warn("шаг сброса радио завершился ошибкой",
				slog.Any("command", s.args),
				slog.Any("error", err))
		}
		if cfg.NoDelays {
			continue
		}
		select {
		case <-ctx.Done():
			logger.Warn("сброс радио прерван", slog.Any("error", ctx.Err()))
			return
		case <-time.After(s.delay):
		}
	}
	logger.Info("радио интерфейс готов", slog.String("interface", iface))
}
