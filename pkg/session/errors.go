package session

import (
	"errors"
	"fmt"
)

// BenchErrorCode определяет типизированные коды ошибок стенда.
// Позволяет классифицировать ошибки по категориям и обрабатывать их
// соответствующим образом: фатальные прерывают сессию, восстановимые
// логируются и затрагивают только свой endpoint или подсистему.
type BenchErrorCode int

const (
	// Ошибки транспорта и жизненного цикла сессии (фатальные)
	ErrorCodeTransportOpenFailed BenchErrorCode = iota + 1000
	ErrorCodeDevicePowerOnFailed
	ErrorCodeNoEndpointsRegistered
	ErrorCodeSessionAlreadyStarted

	// Ошибки endpoint'ов (восстановимые)
	ErrorCodeRegistrationFailed
	ErrorCodeMatchRejected
	ErrorCodeEndpointHandlerPanic
)

// String возвращает строковое представление кода ошибки
func (code BenchErrorCode) String() string {
	switch code {
	case ErrorCodeTransportOpenFailed:
		return "TransportOpenFailed"
	case ErrorCodeDevicePowerOnFailed:
		return "DevicePowerOnFailed"
	case ErrorCodeNoEndpointsRegistered:
		return "NoEndpointsRegistered"
	case ErrorCodeSessionAlreadyStarted:
		return "SessionAlreadyStarted"
	case ErrorCodeRegistrationFailed:
		return "RegistrationFailed"
	case ErrorCodeMatchRejected:
		return "MatchRejected"
	case ErrorCodeEndpointHandlerPanic:
		return "EndpointHandlerPanic"
	default:
		return fmt.Sprintf("Unknown(%d)", int(code))
	}
}

// BenchError базовая структура ошибок стенда.
// Предоставляет расширенную информацию об ошибке включая:
//   - Типизированный код ошибки
//   - Контекстную информацию (кодек, SEID)
//   - Возможность обертывания других ошибок
//   - Идентификатор сессии для сопоставления с логами
type BenchError struct {
	Code      BenchErrorCode
	Message   string
	SessionID string
	Context   map[string]interface{}
	Wrapped   error
}

// Error реализует интерфейс error, возвращая форматированное сообщение.
func (e *BenchError) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("[стенд:%d] сессия %s: %s", e.Code, e.SessionID, e.Message)
	}
	return fmt.Sprintf("[стенд:%d] %s", e.Code, e.Message)
}

// Unwrap возвращает обернутую ошибку, поддерживая errors.Unwrap.
func (e *BenchError) Unwrap() error {
	return e.Wrapped
}

// Is поддерживает errors.Is, позволяя сравнивать ошибки по коду.
func (e *BenchError) Is(target error) bool {
	if t, ok := target.(*BenchError); ok {
		return e.Code == t.Code
	}
	return false
}

// GetContext возвращает значение из контекста ошибки по ключу.
func (e *BenchError) GetContext(key string) interface{} {
	if e.Context == nil {
		return nil
	}
	return e.Context[key]
}

// NewBenchError создает ошибку стенда с контекстом.
func NewBenchError(code BenchErrorCode, sessionID, message string, context map[string]interface{}) *BenchError {
	return &BenchError{
		Code:      code,
		Message:   message,
		SessionID: sessionID,
		Context:   context,
	}
}

// WrapBenchError оборачивает существующую ошибку в BenchError.
func WrapBenchError(code BenchErrorCode, sessionID, message string, err error) *BenchError {
	return &BenchError{
		Code:      code,
		Message:   message,
		SessionID: sessionID,
		Wrapped:   err,
	}
}

// HasErrorCode проверяет, содержит ли цепочка ошибок указанный код.
func HasErrorCode(err error, code BenchErrorCode) bool {
	var benchErr *BenchError
	if AsBenchError(err, &benchErr) {
		return benchErr.Code == code
	}
	return false
}

// AsBenchError пытается найти BenchError в цепочке ошибок.
func AsBenchError(err error, target **BenchError) bool {
	if err == nil {
		return false
	}
	return errors.As(err, target)
}

// IsFatalError определяет, прерывает ли ошибка сессию целиком.
func IsFatalError(err error) bool {
	var benchErr *BenchError
	if !AsBenchError(err, &benchErr) {
		return false
	}
	switch benchErr.Code {
	case ErrorCodeTransportOpenFailed,
		ErrorCodeDevicePowerOnFailed,
		ErrorCodeNoEndpointsRegistered:
		return true
	}
	return false
}
