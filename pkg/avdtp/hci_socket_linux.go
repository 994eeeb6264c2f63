//go:build linux

package avdtp

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// HCISocket сырой HCI socket к Bluetooth контроллеру (Linux).
//
// Это уровень "открыть транспорт" внешнего стека: реализация Stack
// читает и пишет HCI пакеты через этот дескриптор. Сокет открывается
// на user channel, что требует остановленного интерфейса (hciconfig hciN
// down) и прав CAP_NET_ADMIN.
type HCISocket struct {
	fd  int
	dev int
}

// OpenHCISocket открывает сырой HCI socket к контроллеру deviceID.
func OpenHCISocket(deviceID int) (*HCISocket, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.BTPROTO_HCI)
	if err != nil {
		return nil, fmt.Errorf("открытие HCI сокета: %w", err)
	}

	sa := &unix.SockaddrHCI{
		Dev:     uint16(deviceID),
		Channel: unix.HCI_CHANNEL_USER,
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind HCI сокета к hci%d: %w", deviceID, err)
	}

	return &HCISocket{fd: fd, dev: deviceID}, nil
}

// Device возвращает номер HCI устройства.
func (s *HCISocket) Device() int {
	return s.dev
}

// Read читает один HCI пакет (тип пакета в первом байте).
func (s *HCISocket) Read(p []byte) (int, error) {
	return unix.Read(s.fd, p)
}

// Write пишет один HCI пакет.
func (s *HCISocket) Write(p []byte) (int, error) {
	return unix.Write(s.fd, p)
}

// Close закрывает сокет. Повторный вызов безопасен.
func (s *HCISocket) Close() error {
	if s.fd < 0 {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = -1
	return err
}
