package codec

import "encoding/binary"

// Matcher определяет политику принятия конфигурации, предложенной
// удаленным устройством для ранее зарегистрированного endpoint.
//
// Стратегия передается в контроллер сессии явно, а не подменяет
// валидацию внутри протокольного стека: это делает политику тестируемой
// и ограниченной одной сессией.
type Matcher interface {
	// Accept решает, принимать ли предложенную конфигурацию proposed
	// для endpoint, объявленного с дескриптором advertised.
	Accept(advertised *Descriptor, proposed []byte) bool
}

// PermissiveVendorMatcher реализует разрешительную политику для vendor
// кодеков: конфигурация принимается, если vendor id и vendor codec id
// в предложенных байтах точно совпадают с объявленным дескриптором.
// Остальные параметрические байты не сравниваются.
//
// Параметрические байты vendor кодеков различаются между реализациями
// удаленных устройств (адаптивные кодеки перенегоциируют байты режима),
// а побайтовое сравнение заставляет телефон отклонить endpoint и молча
// откатиться на базовый кодек, что лишает пробу смысла. Ослабление
// намеренное и должно сохраняться в точности.
//
// Для стандартных кодеков (SBC, AAC) политика не вмешивается: строгую
// subset валидацию выполняет сам протокольный стек.
type PermissiveVendorMatcher struct{}

// NewPermissiveMatcher возвращает политику по умолчанию.
func NewPermissiveMatcher() *PermissiveVendorMatcher {
	return &PermissiveVendorMatcher{}
}

// Accept реализует Matcher.
func (m *PermissiveVendorMatcher) Accept(advertised *Descriptor, proposed []byte) bool {
	if advertised == nil {
		return false
	}
	if !advertised.IsVendor() {
		// Стандартные кодеки валидирует стек, здесь не переопределяем.
		return true
	}
	if len(proposed) < 6 {
		return false
	}
	vendorID := binary.LittleEndian.Uint32(proposed[0:4])
	codecID := binary.LittleEndian.Uint16(proposed[4:6])
	return vendorID == advertised.VendorID && codecID == advertised.VendorCodecID
}
