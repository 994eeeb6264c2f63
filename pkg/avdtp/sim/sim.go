// Package sim реализует avdtp.Stack в памяти для тестов и демонстрационного
// режима CLI. Симулятор воспроизводит наблюдаемое поведение внешнего стека:
// назначение SEID, проверку конфигурации при SET_CONFIGURATION и доставку
// событий open/close/media в обработчики endpoint'ов.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/arzzra/codec_bench/pkg/avdtp"
	"github.com/pion/rtp"
)

// Ошибки симулятора, имитирующие ошибки внешнего стека.
var (
	ErrConfigurationRejected = errors.New("sim: конфигурация отклонена endpoint'ом")
	ErrNoSuchEndpoint        = errors.New("sim: endpoint с таким SEID не зарегистрирован")
	ErrStreamNotOpen         = errors.New("sim: поток endpoint'а не открыт")
)

// Stack реализация avdtp.Stack в памяти.
//
// Поля Fail* позволяют тестам навязать ошибку соответствующей операции.
type Stack struct {
	// FailOpen, если не nil, возвращается из Open (фатальная ошибка транспорта).
	FailOpen error

	// FailRegister, если не nil, вызывается на каждую регистрацию endpoint;
	// ненулевой результат отклоняет регистрацию этого дескриптора.
	FailRegister func(caps avdtp.MediaCodecCapabilities) error

	mu    sync.Mutex
	conn  *Conn
	ready chan *Conn
}

// NewStack создает симулятор стека.
func NewStack() *Stack {
	return &Stack{ready: make(chan *Conn, 1)}
}

// Open реализует avdtp.Stack.
func (s *Stack) Open(ctx context.Context, addr string) (avdtp.Conn, error) {
	if s.FailOpen != nil {
		return nil, s.FailOpen
	}
	if _, err := avdtp.ParseTransportAddr(addr); err != nil {
		return nil, err
	}

	conn := &Conn{
		stack:  s,
		device: &Device{},
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	select {
	case s.ready <- conn:
	default:
	}
	return conn, nil
}

// ConnReady возвращает канал, в который попадает соединение после Open.
// Используется тестами и демонстрационным режимом для получения Peer.
func (s *Stack) ConnReady() <-chan *Conn {
	return s.ready
}

// Conn реализация avdtp.Conn.
type Conn struct {
	stack  *Stack
	device *Device

	mu           sync.Mutex
	endpoints    map[uint8]*Endpoint
	nextSEID     uint8
	onConnection func()
	closed       bool
}

// Device реализует avdtp.Conn.
func (c *Conn) Device() avdtp.Device { return c.device }

// RegisterSinkEndpoint реализует avdtp.Conn: назначает следующий SEID
// и сохраняет capability дескриптор с проверкой конфигурации.
func (c *Conn) RegisterSinkEndpoint(caps avdtp.MediaCodecCapabilities, check avdtp.ConfigurationCheck) (avdtp.Endpoint, error) {
	if fail := c.stack.FailRegister; fail != nil {
		if err := fail(caps); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("sim: соединение закрыто")
	}
	if c.endpoints == nil {
		c.endpoints = make(map[uint8]*Endpoint)
		c.nextSEID = 1
	}

	ep := &Endpoint{
		seid:  c.nextSEID,
		caps:  caps,
		check: check,
	}
	c.endpoints[ep.seid] = ep
	c.nextSEID++
	return ep, nil
}

// OnConnection реализует avdtp.Conn.
func (c *Conn) OnConnection(handler func()) {
	c.mu.Lock()
	c.onConnection = handler
	c.mu.Unlock()
}

// Close реализует avdtp.Conn.
func (c *Conn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// Closed сообщает, было ли соединение закрыто (для проверок teardown).
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Peer возвращает драйвер удаленного устройства для этого соединения.
func (c *Conn) Peer() *Peer {
	return &Peer{conn: c}
}

// Device реализация avdtp.Device, фиксирующая вызовы управления радио.
type Device struct {
	mu           sync.Mutex
	poweredOn    bool
	discoverable bool
	connectable  bool
	deviceClass  uint32
	sdpHandles   []uint32

	// FailPowerOn позволяет тестам сделать включение устройства фатальным.
	FailPowerOn error
}

func (d *Device) PowerOn(ctx context.Context) error {
	if d.FailPowerOn != nil {
		return d.FailPowerOn
	}
	d.mu.Lock()
	d.poweredOn = true
	d.mu.Unlock()
	return nil
}

func (d *Device) SetDiscoverable(enabled bool) error {
	d.mu.Lock()
	d.discoverable = enabled
	d.mu.Unlock()
	return nil
}

func (d *Device) SetConnectable(enabled bool) error {
	d.mu.Lock()
	d.connectable = enabled
	d.mu.Unlock()
	return nil
}

func (d *Device) SetDeviceClass(class uint32) error {
	d.mu.Lock()
	d.deviceClass = class
	d.mu.Unlock()
	return nil
}

func (d *Device) RegisterSinkService(handle uint32) error {
	d.mu.Lock()
	d.sdpHandles = append(d.sdpHandles, handle)
	d.mu.Unlock()
	return nil
}

// State возвращает текущее состояние радио для проверок в тестах.
func (d *Device) State() (poweredOn, discoverable, connectable bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.poweredOn, d.discoverable, d.connectable
}

// DeviceClass возвращает установленный class of device.
func (d *Device) DeviceClass() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deviceClass
}

// SDPHandles возвращает зарегистрированные хендлы SDP записей.
func (d *Device) SDPHandles() []uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]uint32, len(d.sdpHandles))
	copy(out, d.sdpHandles)
	return out
}

// Endpoint реализация avdtp.Endpoint.
type Endpoint struct {
	seid  uint8
	caps  avdtp.MediaCodecCapabilities
	check avdtp.ConfigurationCheck

	mu       sync.Mutex
	open     bool
	onOpen   func(config []byte)
	onClose  func()
	onPacket func(pkt *rtp.Packet)
}

func (e *Endpoint) SEID() uint8 { return e.seid }

func (e *Endpoint) OnOpen(handler func(config []byte)) {
	e.mu.Lock()
	e.onOpen = handler
	e.mu.Unlock()
}

func (e *Endpoint) OnClose(handler func()) {
	e.mu.Lock()
	e.onClose = handler
	e.mu.Unlock()
}

func (e *Endpoint) OnMediaPacket(handler func(pkt *rtp.Packet)) {
	e.mu.Lock()
	e.onPacket = handler
	e.mu.Unlock()
}

// Capabilities возвращает дескриптор, с которым endpoint зарегистрирован.
func (e *Endpoint) Capabilities() avdtp.MediaCodecCapabilities {
	return e.caps
}

// Peer драйвер удаленного устройства: позволяет тестам и демо режиму
// устанавливать соединение, открывать потоки и слать медиа пакеты.
type Peer struct {
	conn *Conn
}

// Connect доставляет уведомление об установлении сигнального соединения.
// Каждый вызов доставляет отдельное уведомление: стек может дублировать их.
func (p *Peer) Connect() {
	p.conn.mu.Lock()
	handler := p.conn.onConnection
	p.conn.mu.Unlock()
	if handler != nil {
		handler()
	}
}

// Endpoints возвращает SEID зарегистрированных endpoint'ов по порядку
// регистрации.
func (p *Peer) Endpoints() []uint8 {
	p.conn.mu.Lock()
	defer p.conn.mu.Unlock()
	out := make([]uint8, 0, len(p.conn.endpoints))
	for seid := uint8(1); seid < p.conn.nextSEID; seid++ {
		if _, ok := p.conn.endpoints[seid]; ok {
			out = append(out, seid)
		}
	}
	return out
}

func (p *Peer) endpoint(seid uint8) (*Endpoint, error) {
	p.conn.mu.Lock()
	defer p.conn.mu.Unlock()
	ep, ok := p.conn.endpoints[seid]
	if !ok {
		return nil, fmt.Errorf("%w: SEID %d", ErrNoSuchEndpoint, seid)
	}
	return ep, nil
}

// OpenEndpoint выполняет SET_CONFIGURATION + открытие потока для endpoint.
// Конфигурация проходит через ConfigurationCheck endpoint'а; отказ проверки
// соответствует отклонению конфигурации стеком (поток не открывается).
func (p *Peer) OpenEndpoint(seid uint8, config []byte) error {
	ep, err := p.endpoint(seid)
	if err != nil {
		return err
	}

	ep.mu.Lock()
	check := ep.check
	handler := ep.onOpen
	ep.mu.Unlock()

	if check != nil && !check(config) {
		return ErrConfigurationRejected
	}

	ep.mu.Lock()
	ep.open = true
	ep.mu.Unlock()

	if handler != nil {
		handler(config)
	}
	return nil
}

// SendMedia доставляет медиа пакет в открытый endpoint.
func (p *Peer) SendMedia(seid uint8, pkt *rtp.Packet) error {
	ep, err := p.endpoint(seid)
	if err != nil {
		return err
	}

	ep.mu.Lock()
	open := ep.open
	handler := ep.onPacket
	ep.mu.Unlock()

	if !open {
		return fmt.Errorf("%w: SEID %d", ErrStreamNotOpen, seid)
	}
	if handler != nil {
		handler(pkt)
	}
	return nil
}

// CloseEndpoint закрывает поток endpoint'а.
func (p *Peer) CloseEndpoint(seid uint8) error {
	ep, err := p.endpoint(seid)
	if err != nil {
		return err
	}

	ep.mu.Lock()
	wasOpen := ep.open
	ep.open = false
	handler := ep.onClose
	ep.mu.Unlock()

	if wasOpen && handler != nil {
		handler()
	}
	return nil
}
