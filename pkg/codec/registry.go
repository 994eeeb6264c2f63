// Package codec содержит каталог аудио кодеков A2DP стенда.
//
// Пакет определяет закрытый набор дескрипторов кодеков с их capability
// байтами, политику сопоставления конфигураций (Matcher) и разбор
// негоциированных capability байтов в человекочитаемые поля (ParseConfig).
//
// Каталог является версионированной константной таблицей: изменение
// vendor codec id или параметрических байтов меняет поведение удаленных
// устройств и должно проверяться round-trip тестами пакета.
package codec

import (
	"encoding/binary"
	"fmt"
)

// Key символьный идентификатор кодека в каталоге.
// Набор ключей закрыт и известен на этапе компиляции.
type Key string

// Ключи каталога в фиксированном порядке.
const (
	KeySBC          Key = "SBC"
	KeyAAC          Key = "AAC"
	KeyAptX         Key = "APTX"
	KeyAptXHD       Key = "APTX_HD"
	KeyAptXAdaptive Key = "APTX_ADAPTIVE"
	KeyAptXTWSPlus  Key = "APTX_TWS_PLUS"
	KeyLDAC         Key = "LDAC"
	KeyLHDCV2       Key = "LHDC_V2"
	KeyLHDCV3       Key = "LHDC_V3"
	KeyLHDCV4       Key = "LHDC_V4"
	KeyLHDCV5       Key = "LHDC_V5"
)

// Media codec type согласно A2DP (AVDTP Media Codec Capabilities).
const (
	MediaCodecTypeSBC    uint8 = 0x00
	MediaCodecTypeAAC    uint8 = 0x02
	MediaCodecTypeVendor uint8 = 0xFF
)

// Vendor ID производителей (little-endian в capability байтах).
const (
	VendorQualcomm uint32 = 0x000000D0
	VendorSony     uint32 = 0x0000012D
	VendorSavitech uint32 = 0x0000053A
)

// Descriptor описывает один кодек каталога: отображаемое имя, тип
// media codec и capability байты, регистрируемые в AVDTP endpoint.
//
// Для vendor кодеков (MediaCodecType == 0xFF) capability байты начинаются
// с 4-байтового vendor id и 2-байтового codec id в little-endian,
// за которыми следует кодек-специфичный параметрический хвост.
// Дескриптор неизменяем после инициализации каталога.
type Descriptor struct {
	Key            Key
	DisplayName    string
	MediaCodecType uint8
	VendorID       uint32 // только для vendor кодеков
	VendorCodecID  uint16 // только для vendor кодеков
	Capability     []byte
}

// IsVendor сообщает, относится ли кодек к vendor классу.
func (d *Descriptor) IsVendor() bool {
	return d.MediaCodecType == MediaCodecTypeVendor
}

// vendorCapability собирает capability байты vendor кодека:
// vendor id (LE32) + codec id (LE16) + параметрический хвост.
func vendorCapability(vendorID uint32, codecID uint16, tail ...byte) []byte {
	buf := make([]byte, 6, 6+len(tail))
	binary.LittleEndian.PutUint32(buf[0:4], vendorID)
	binary.LittleEndian.PutUint16(buf[4:6], codecID)
	return append(buf, tail...)
}

// catalogue содержит все дескрипторы в фиксированном порядке каталога.
// Порядок значим: ResolveSelection добавляет недостающие обязательные
// кодеки именно в этом порядке.
//
// LHDC codec id: V2=0x4C32, V3=0x4C33, V4=0x4C34, V5=0x4C35.
// Байт [0] параметров LHDC: биты [7:4] — версия, [3:0] — флаги sample rate.
var catalogue = []*Descriptor{
	{
		Key:            KeySBC,
		DisplayName:    "SBC",
		MediaCodecType: MediaCodecTypeSBC,
		Capability:     []byte{0xFF, 0xFF, 0x02, 0x35},
	},
	{
		Key:            KeyAAC,
		DisplayName:    "AAC",
		MediaCodecType: MediaCodecTypeAAC,
		Capability:     []byte{0xF0, 0x01, 0x04, 0x00, 0xFF, 0xFF},
	},
	{
		Key:            KeyAptX,
		DisplayName:    "aptX",
		MediaCodecType: MediaCodecTypeVendor,
		VendorID:       VendorQualcomm,
		VendorCodecID:  0x0001,
		Capability:     vendorCapability(VendorQualcomm, 0x0001, 0xFF),
	},
	{
		Key:            KeyAptXHD,
		DisplayName:    "aptX-HD",
		MediaCodecType: MediaCodecTypeVendor,
		VendorID:       VendorQualcomm,
		VendorCodecID:  0x0024,
		Capability:     vendorCapability(VendorQualcomm, 0x0024, 0xFF, 0x00, 0x00, 0x00, 0x00),
	},
	{
		Key:            KeyAptXAdaptive,
		DisplayName:    "aptX-Adaptive",
		MediaCodecType: MediaCodecTypeVendor,
		VendorID:       VendorQualcomm,
		VendorCodecID:  0x00AD,
		Capability:     vendorCapability(VendorQualcomm, 0x00AD, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00),
	},
	{
		Key:            KeyAptXTWSPlus,
		DisplayName:    "aptX TWS+",
		MediaCodecType: MediaCodecTypeVendor,
		VendorID:       VendorQualcomm,
		VendorCodecID:  0x0005,
		Capability:     vendorCapability(VendorQualcomm, 0x0005, 0xFF),
	},
	{
		Key:            KeyLDAC,
		DisplayName:    "LDAC",
		MediaCodecType: MediaCodecTypeVendor,
		VendorID:       VendorSony,
		VendorCodecID:  0x00AA,
		Capability:     vendorCapability(VendorSony, 0x00AA, 0x3C, 0x07),
	},
	{
		Key:            KeyLHDCV2,
		DisplayName:    "LHDC V2",
		MediaCodecType: MediaCodecTypeVendor,
		VendorID:       VendorSavitech,
		VendorCodecID:  0x4C32,
		Capability:     vendorCapability(VendorSavitech, 0x4C32, 0x26, 0xF0, 0x00),
	},
	{
		Key:            KeyLHDCV3,
		DisplayName:    "LHDC V3",
		MediaCodecType: MediaCodecTypeVendor,
		VendorID:       VendorSavitech,
		VendorCodecID:  0x4C33,
		Capability:     vendorCapability(VendorSavitech, 0x4C33, 0x3E, 0xF0, 0x00),
	},
	{
		Key:            KeyLHDCV4,
		DisplayName:    "LHDC V4",
		MediaCodecType: MediaCodecTypeVendor,
		VendorID:       VendorSavitech,
		VendorCodecID:  0x4C34,
		Capability:     vendorCapability(VendorSavitech, 0x4C34, 0x4E, 0xF0, 0x00),
	},
	{
		Key:            KeyLHDCV5,
		DisplayName:    "LHDC V5",
		MediaCodecType: MediaCodecTypeVendor,
		VendorID:       VendorSavitech,
		VendorCodecID:  0x4C35,
		Capability:     vendorCapability(VendorSavitech, 0x4C35, 0x5F, 0xF0, 0x00),
	},
}

// index для быстрого поиска по ключу.
var index = func() map[Key]*Descriptor {
	m := make(map[Key]*Descriptor, len(catalogue))
	for _, d := range catalogue {
		m[d.Key] = d
	}
	return m
}()

// mandatory кодеки, обязательные в любой регистрации: SBC обязателен
// для A2DP, AAC оставляет включенным переключатель HD audio на телефоне.
var mandatory = []Key{KeySBC, KeyAAC}

// Presets именованные наборы ключей для быстрого выбора.
var Presets = map[string][]Key{
	"ALL_LHDC": {KeyLHDCV2, KeyLHDCV3, KeyLHDCV4, KeyLHDCV5},
	"ALL_APTX": {KeyAptX, KeyAptXHD, KeyAptXAdaptive, KeyAptXTWSPlus},
	"STANDARD": {KeySBC, KeyAAC},
	"ALL":      Keys(),
}

// UnknownCodecError возвращается при обращении к ключу вне каталога.
type UnknownCodecError struct {
	Key Key
}

func (e *UnknownCodecError) Error() string {
	return fmt.Sprintf("неизвестный кодек %q", string(e.Key))
}

// Lookup возвращает дескриптор по ключу каталога.
func Lookup(key Key) (*Descriptor, error) {
	d, ok := index[key]
	if !ok {
		return nil, &UnknownCodecError{Key: key}
	}
	return d, nil
}

// Keys возвращает все ключи каталога в фиксированном порядке.
func Keys() []Key {
	keys := make([]Key, 0, len(catalogue))
	for _, d := range catalogue {
		keys = append(keys, d.Key)
	}
	return keys
}

// MandatoryKeys возвращает копию набора обязательных ключей.
func MandatoryKeys() []Key {
	out := make([]Key, len(mandatory))
	copy(out, mandatory)
	return out
}

// ResolveSelection превращает запрошенный набор ключей в упорядоченную
// последовательность дескрипторов для регистрации.
//
// Порядок детерминирован: сначала запрошенные ключи в исходном порядке
// (дубликаты отбрасываются), затем недостающие обязательные ключи в их
// порядке в каталоге. Неизвестный ключ приводит к UnknownCodecError.
func ResolveSelection(requested []Key) ([]*Descriptor, error) {
	seen := make(map[Key]bool, len(requested)+len(mandatory))
	result := make([]*Descriptor, 0, len(requested)+len(mandatory))

	for _, key := range requested {
		if seen[key] {
			continue
		}
		d, err := Lookup(key)
		if err != nil {
			return nil, err
		}
		seen[key] = true
		result = append(result, d)
	}

	for _, key := range mandatory {
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, index[key])
	}

	return result, nil
}
