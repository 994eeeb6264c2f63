// Package avdtp определяет границу с внешним Bluetooth стеком:
// типизированные интерфейсы транспорта, устройства и sink endpoint'ов,
// а также низкоуровневый HCI socket транспорт для Linux.
//
// Сам протокол (фрейминг AVDTP, сигналинг, SDP кодирование) реализуется
// внешним стеком за этими интерфейсами; стенд только регистрирует
// endpoint'ы с capability дескрипторами и реагирует на события.
package avdtp

import (
	"context"

	"github.com/pion/rtp"
)

// MediaType тип медиа в capability дескрипторе.
type MediaType uint8

// MediaTypeAudio единственный используемый тип медиа.
const MediaTypeAudio MediaType = 0x00

// Константы устройства аудио приемника.
const (
	// ClassOfDeviceAudioSink класс устройства "наушники/аудио sink",
	// по которому телефон распознает стенд как аудио устройство.
	ClassOfDeviceAudioSink = 0x240404

	// SinkServiceRecordHandle хендл SDP записи сервиса audio sink.
	SinkServiceRecordHandle = 0x00010001
)

// MediaCodecCapabilities capability дескриптор, регистрируемый
// в sink endpoint внешнего стека.
type MediaCodecCapabilities struct {
	MediaType             MediaType
	MediaCodecType        uint8
	MediaCodecInformation []byte
}

// ConfigurationCheck решает, принимать ли конфигурацию, предложенную
// удаленным устройством в SET_CONFIGURATION для данного endpoint.
// nil означает "полагаться на собственную валидацию стека".
type ConfigurationCheck func(proposed []byte) bool

// Stack фабрика соединений с внешним Bluetooth стеком.
type Stack interface {
	// Open открывает транспорт по адресу вида "hci-socket:0" и
	// возвращает соединение со стеком. Ошибка открытия фатальна
	// для сессии.
	Open(ctx context.Context, addr string) (Conn, error)
}

// Conn одно открытое соединение со стеком. Владелец обязан вызвать
// Close на любом пути завершения сессии.
type Conn interface {
	// Device возвращает управление радио устройством.
	Device() Device

	// RegisterSinkEndpoint регистрирует sink endpoint с capability
	// дескриптором. check, если не nil, переопределяет проверку
	// конфигурации стека для этого endpoint.
	RegisterSinkEndpoint(caps MediaCodecCapabilities, check ConfigurationCheck) (Endpoint, error)

	// OnConnection подписывает обработчик на установление сигнального
	// соединения удаленным устройством. Стек может доставлять
	// дублирующиеся уведомления; идемпотентность обеспечивает вызывающий.
	OnConnection(handler func())

	Close() error
}

// Device управление локальным радио устройством.
type Device interface {
	PowerOn(ctx context.Context) error
	SetDiscoverable(enabled bool) error
	SetConnectable(enabled bool) error

	// SetDeviceClass устанавливает class of device; телефон по нему
	// показывает стенд как аудио устройство (наушники).
	SetDeviceClass(class uint32) error

	// RegisterSinkService публикует SDP запись сервиса audio sink
	// под указанным хендлом.
	RegisterSinkService(handle uint32) error
}

// Endpoint зарегистрированный sink endpoint. SEID назначается стеком.
// Обработчики событий вызываются из контекста исполнения стека.
type Endpoint interface {
	SEID() uint8

	// OnOpen вызывается, когда удаленное устройство выбрало этот endpoint
	// и открыло поток; config содержит негоциированные capability байты.
	OnOpen(handler func(config []byte))

	// OnClose вызывается при закрытии потока удаленной стороной.
	OnClose(handler func())

	// OnMediaPacket вызывается на каждый медиа пакет потока.
	// Медиа пакеты A2DP фреймируются как RTP.
	OnMediaPacket(handler func(pkt *rtp.Packet))
}
