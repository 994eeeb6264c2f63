package avdtp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseTransportAddr таблица разбора адресов транспорта.
func TestParseTransportAddr(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantDev int
		wantErr bool
	}{
		{name: "адрес по умолчанию", addr: DefaultTransportAddr, wantDev: 0},
		{name: "второй контроллер", addr: "hci-socket:1", wantDev: 1},
		{name: "двузначный номер", addr: "hci-socket:12", wantDev: 12},
		{name: "чужая схема", addr: "tcp:0", wantErr: true},
		{name: "пустой адрес", addr: "", wantErr: true},
		{name: "номер не число", addr: "hci-socket:abc", wantErr: true},
		{name: "отрицательный номер", addr: "hci-socket:-1", wantErr: true},
		{name: "пустой номер", addr: "hci-socket:", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, err := ParseTransportAddr(tt.addr)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDev, dev)
		})
	}
}
