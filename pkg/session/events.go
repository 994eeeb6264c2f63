package session

import (
	"log/slog"

	"github.com/arzzra/codec_bench/pkg/codec"
)

// EventKind тип события сессии.
type EventKind int

const (
	// EventLog текстовое сообщение журнала с уровнем.
	EventLog EventKind = iota

	// EventDiscoverable стенд виден и ждет подключения телефона.
	EventDiscoverable

	// EventConnected удаленное устройство установило сигнальное соединение.
	EventConnected

	// EventStreamOpened удаленное устройство выбрало кодек и открыло поток.
	EventStreamOpened

	// EventStreamClosed поток endpoint'а закрыт удаленной стороной.
	EventStreamClosed

	// EventBitrate очередная выборка мгновенного битрейта.
	EventBitrate

	// EventDone терминальное событие: сессия завершена и ресурсы освобождены.
	EventDone
)

func (k EventKind) String() string {
	switch k {
	case EventLog:
		return "log"
	case EventDiscoverable:
		return "discoverable"
	case EventConnected:
		return "connected"
	case EventStreamOpened:
		return "stream_opened"
	case EventStreamClosed:
		return "stream_closed"
	case EventBitrate:
		return "bitrate"
	case EventDone:
		return "done"
	default:
		return "unknown"
	}
}

// Event одно событие упорядоченного потока сессия -> презентационный слой.
// Заполненность полей зависит от Kind.
type Event struct {
	Kind EventKind

	// Для EventLog
	Level slog.Level
	Text  string

	// Для EventStreamOpened / EventStreamClosed
	CodecKey  codec.Key
	CodecName string
	Fields    codec.Fields
	RawHex    string

	// Для EventBitrate
	Kbps float64

	// Для EventDone: диагностика фатальной ошибки, nil при штатном завершении.
	Err error
}
