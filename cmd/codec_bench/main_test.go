package main

import (
	"testing"

	"github.com/arzzra/codec_bench/pkg/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBuildStackDemo в демо режиме поднимается симулятор.
func TestBuildStackDemo(t *testing.T) {
	stack, err := buildStack("hci-socket:0", true)
	require.NoError(t, err)
	assert.NotNil(t, stack)
}

// TestBuildStackRealModeRefused без -demo запуск отклоняется с подсказкой:
// боевой хост-стек не входит в комплект, молчаливое ожидание телефона
// на симуляторе недопустимо.
func TestBuildStackRealModeRefused(t *testing.T) {
	stack, err := buildStack("hci-socket:0", false)
	require.Error(t, err)
	assert.Nil(t, stack)
	assert.Contains(t, err.Error(), "-demo")
	assert.Contains(t, err.Error(), "-check-radio")
}

// TestBuildStackBadTransport некорректный адрес отклоняется в любом режиме.
func TestBuildStackBadTransport(t *testing.T) {
	_, err := buildStack("tcp:0", true)
	require.Error(t, err)
	_, err = buildStack("tcp:0", false)
	require.Error(t, err)
}

// TestResolveArg таблица разбора пользовательского ввода.
func TestResolveArg(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []codec.Key
	}{
		{name: "номер меню", raw: "7", want: []codec.Key{codec.KeyLDAC}},
		{name: "пресет по номеру", raw: "14", want: []codec.Key{codec.KeySBC, codec.KeyAAC}},
		{name: "ключ как есть", raw: "LHDC_V3", want: []codec.Key{codec.KeyLHDCV3}},
		{name: "ключ с дефисом в нижнем регистре", raw: "aptx-hd", want: []codec.Key{codec.KeyAptXHD}},
		{name: "неизвестный ввод", raw: "nope", want: nil},
		{name: "номер вне меню", raw: "99", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveArg(tt.raw))
		})
	}
}
