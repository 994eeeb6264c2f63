package avdtp

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultTransportAddr адрес транспорта по умолчанию: первый HCI контроллер.
const DefaultTransportAddr = "hci-socket:0"

// ParseTransportAddr разбирает адрес транспорта вида "hci-socket:N"
// и возвращает номер HCI устройства.
func ParseTransportAddr(addr string) (int, error) {
	const prefix = "hci-socket:"
	if !strings.HasPrefix(addr, prefix) {
		return 0, fmt.Errorf("неподдерживаемый адрес транспорта %q, ожидается %q", addr, prefix+"N")
	}
	dev, err := strconv.Atoi(strings.TrimPrefix(addr, prefix))
	if err != nil || dev < 0 {
		return 0, fmt.Errorf("некорректный номер HCI устройства в адресе %q", addr)
	}
	return dev, nil
}
