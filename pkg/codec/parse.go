package codec

// Fields содержит человекочитаемые значения, извлеченные из сырых
// capability байтов негоциированной конфигурации. Нулевое значение поля
// означает, что поле не извлечено (слишком короткие или неизвестные байты).
type Fields struct {
	SampleRateHz uint32
	BitDepth     uint8
	MaxKbps      uint32
}

// IsZero сообщает, что из байтов не извлечено ни одного поля.
func (f Fields) IsZero() bool {
	return f.SampleRateHz == 0 && f.BitDepth == 0 && f.MaxKbps == 0
}

// srFlag пара битовая маска -> частота дискретизации.
type srFlag struct {
	mask uint16
	hz   uint32
}

// Битовые раскладки sample rate по классам кодеков. Для каждого класса
// берется первая установленная маска (старшие частоты проверяются по
// порядку, заданному спецификацией кодека).
var (
	sbcRates = []srFlag{
		{0x80, 16000}, {0x40, 32000}, {0x20, 44100}, {0x10, 48000},
	}
	aacRates = []srFlag{
		{0x800, 8000}, {0x400, 11025}, {0x200, 12000},
		{0x100, 16000}, {0x080, 22050}, {0x040, 24000},
		{0x020, 32000}, {0x010, 44100}, {0x008, 48000},
		{0x002, 88200}, {0x001, 96000},
	}
	ldacRates = []srFlag{
		{0x20, 44100}, {0x10, 48000}, {0x04, 88200}, {0x02, 96000},
	}
	lhdcRates = []srFlag{
		{0x08, 192000}, {0x04, 96000}, {0x02, 48000}, {0x01, 44100},
	}
	aptxRates = []srFlag{
		{0x80, 44100}, {0x40, 48000},
	}
)

// ldacMaxKbps потолок битрейта LDAC по качественному режиму (биты [2:0]
// байта [7] конфигурации).
var ldacMaxKbps = map[uint8]uint32{0: 990, 1: 660, 2: 330}

func firstRate(flags []srFlag, bits uint16) uint32 {
	for _, f := range flags {
		if bits&f.mask != 0 {
			return f.hz
		}
	}
	return 0
}

// ParseConfig применяет кодек-специфичные битовые правила к сырым
// capability байтам негоциированной конфигурации.
//
// Для vendor кодеков payload включает 6-байтовый vendor заголовок, поэтому
// параметрические байты читаются со смещения 6. Усеченные или пустые байты
// не считаются ошибкой: возвращаются пустые Fields.
func ParseConfig(key Key, payload []byte) Fields {
	var f Fields

	switch {
	case key == KeySBC && len(payload) >= 4:
		f.SampleRateHz = firstRate(sbcRates, uint16(payload[0]))
		f.BitDepth = 16
		f.MaxKbps = 320

	case key == KeyAAC && len(payload) >= 2:
		// 12-битная маска sample rate: младший ниббл байта [0] + байт [1].
		bits := uint16(payload[0]&0x0F)<<8 | uint16(payload[1])
		f.SampleRateHz = firstRate(aacRates, bits)
		f.BitDepth = 16
		f.MaxKbps = 320

	case key == KeyLDAC && len(payload) >= 8:
		f.SampleRateHz = firstRate(ldacRates, uint16(payload[6]))
		f.BitDepth = 24
		quality := payload[7] & 0x07
		if kbps, ok := ldacMaxKbps[quality]; ok {
			f.MaxKbps = kbps
		} else {
			f.MaxKbps = 990
		}

	case isLHDC(key) && len(payload) >= 7:
		f.SampleRateHz = firstRate(lhdcRates, uint16(payload[6]&0x0F))
		f.BitDepth = 24
		f.MaxKbps = 900

	case isAptX(key) && len(payload) >= 7:
		f.SampleRateHz = firstRate(aptxRates, uint16(payload[6]))
		if key == KeyAptXHD {
			f.BitDepth = 24
			f.MaxKbps = 576
		} else {
			f.BitDepth = 16
			f.MaxKbps = 352
		}
	}

	return f
}

func isLHDC(key Key) bool {
	switch key {
	case KeyLHDCV2, KeyLHDCV3, KeyLHDCV4, KeyLHDCV5:
		return true
	}
	return false
}

func isAptX(key Key) bool {
	switch key {
	case KeyAptX, KeyAptXHD, KeyAptXAdaptive, KeyAptXTWSPlus:
		return true
	}
	return false
}
