//go:build !linux

package avdtp

import "errors"

// ErrHCIUnsupported возвращается на платформах без сырых HCI сокетов.
var ErrHCIUnsupported = errors.New("HCI socket транспорт поддерживается только на Linux")

// HCISocket заглушка для платформ без AF_BLUETOOTH.
type HCISocket struct{}

// OpenHCISocket на не-Linux платформах всегда возвращает ErrHCIUnsupported.
func OpenHCISocket(deviceID int) (*HCISocket, error) {
	return nil, ErrHCIUnsupported
}

func (s *HCISocket) Device() int                { return -1 }
func (s *HCISocket) Read(p []byte) (int, error) { return 0, ErrHCIUnsupported }
func (s *HCISocket) Write(p []byte) (int, error) {
	return 0, ErrHCIUnsupported
}
func (s *HCISocket) Close() error { return nil }
