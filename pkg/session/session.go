// Package session реализует конечный автомат одной тестовой сессии стенда.
//
// Controller превращает асинхронные уведомления внешнего стека в
// детерминированную временную шкалу: Idle -> Discoverable -> Connected ->
// Streaming -> Ended. Одновременно живет ровно одна сессия; после
// терминального события объект отбрасывается, новая сессия — новый
// автомат.
package session

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/arzzra/codec_bench/pkg/avdtp"
	"github.com/arzzra/codec_bench/pkg/codec"
	"github.com/arzzra/codec_bench/pkg/relay"
	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/pion/rtp"
)

// State состояние сессии на уровне всей временной шкалы.
type State int

const (
	StateIdle State = iota
	StateDiscoverable
	StateConnected
	StateStreaming
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDiscoverable:
		return "discoverable"
	case StateConnected:
		return "connected"
	case StateStreaming:
		return "streaming"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

func stateFromString(s string) State {
	switch s {
	case "idle":
		return StateIdle
	case "discoverable":
		return StateDiscoverable
	case "connected":
		return StateConnected
	case "streaming":
		return StateStreaming
	case "ended":
		return StateEnded
	default:
		return StateIdle
	}
}

// Имена событий конечного автомата.
const (
	fsmAdvertise = "advertise"
	fsmConnect   = "connect"
	fsmStream    = "stream"
	fsmTerminate = "terminate"
)

// EndpointState суб-состояние одного endpoint'а, отслеживаемое независимо
// от состояния сессии.
type EndpointState int

const (
	EndpointRegistered EndpointState = iota
	EndpointOpen
	EndpointClosed
)

func (s EndpointState) String() string {
	switch s {
	case EndpointRegistered:
		return "registered"
	case EndpointOpen:
		return "open"
	case EndpointClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// endpointRecord учетная запись одного зарегистрированного endpoint'а.
// Владеет записью исключительно Controller.
type endpointRecord struct {
	seid  uint8
	desc  *codec.Descriptor
	state EndpointState
}

// Controller конечный автомат одной тестовой сессии.
//
// Сессия исполняется на собственной горутине; взаимодействие с
// презентационным слоем идет исключительно через упорядоченный
// неблокирующий канал событий (Events). Остановка кооперативная:
// Stop отменяет контекст сессии, teardown выполняется ровно один раз
// на любом пути завершения.
type Controller struct {
	config  Config
	log     *slog.Logger
	stack   avdtp.Stack
	matcher codec.Matcher
	relay   *relay.Relay

	events       chan Event
	eventsMu     sync.Mutex
	eventsClosed bool
	dropped      atomic.Uint64

	machine *fsm.FSM

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	conn      avdtp.Conn
	endpoints map[uint8]*endpointRecord
	started   bool
	fatalErr  error

	finishOnce sync.Once
	done       chan struct{}
}

// NewController создает контроллер сессии.
// matcher == nil заменяется разрешительной политикой по умолчанию.
func NewController(cfg Config, stack avdtp.Stack, matcher codec.Matcher) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if matcher == nil {
		matcher = codec.NewPermissiveMatcher()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		config:  cfg,
		log:     cfg.Logger.With(slog.String("session_id", cfg.SessionID)),
		stack:   stack,
		matcher: matcher,
		relay: relay.New(relay.Config{
			PlaybackEnabled: cfg.EnablePlayback,
			BackupPath:      cfg.BackupPath,
			Player:          cfg.Player,
			Logger:          cfg.Logger,
		}),
		events:    make(chan Event, cfg.EventBufferSize),
		ctx:       ctx,
		cancel:    cancel,
		endpoints: make(map[uint8]*endpointRecord),
		done:      make(chan struct{}),
	}

	c.machine = fsm.NewFSM(
		StateIdle.String(),
		fsm.Events{
			{Name: fsmAdvertise, Src: []string{StateIdle.String()}, Dst: StateDiscoverable.String()},
			{Name: fsmConnect, Src: []string{StateDiscoverable.String()}, Dst: StateConnected.String()},
			{Name: fsmStream, Src: []string{StateConnected.String()}, Dst: StateStreaming.String()},
			{Name: fsmTerminate, Src: []string{
				StateIdle.String(), StateDiscoverable.String(),
				StateConnected.String(), StateStreaming.String(),
			}, Dst: StateEnded.String()},
		},
		fsm.Callbacks{
			"after_event": func(_ context.Context, e *fsm.Event) {
				metricStateTransitions.WithLabelValues(e.Src, e.Dst).Inc()
				c.log.Debug("переход состояния сессии",
					slog.String("from", e.Src),
					slog.String("to", e.Dst))
			},
		},
	)

	return c, nil
}

// SessionID возвращает идентификатор сессии.
func (c *Controller) SessionID() string {
	return c.config.SessionID
}

// Events возвращает упорядоченный поток событий сессии.
// Канал закрывается после терминального события Done.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// State возвращает текущее состояние сессии.
func (c *Controller) State() State {
	return stateFromString(c.machine.Current())
}

// EndpointStates возвращает снимок суб-состояний endpoint'ов по имени кодека.
func (c *Controller) EndpointStates() map[codec.Key]EndpointState {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[codec.Key]EndpointState, len(c.endpoints))
	for _, rec := range c.endpoints {
		out[rec.desc.Key] = rec.state
	}
	return out
}

// DroppedEvents возвращает количество событий, отброшенных из-за
// переполнения канала (потребитель не успевал читать).
func (c *Controller) DroppedEvents() uint64 {
	return c.dropped.Load()
}

// Start запускает сессию на собственной горутине.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return NewBenchError(ErrorCodeSessionAlreadyStarted, c.config.SessionID,
			"сессия уже запущена", nil)
	}
	if c.ctx.Err() != nil {
		return NewBenchError(ErrorCodeSessionAlreadyStarted, c.config.SessionID,
			"сессия уже остановлена", nil)
	}
	c.started = true

	metricSessionsTotal.Inc()
	go c.run()
	return nil
}

// Stop запрашивает кооперативную остановку сессии. Идемпотентен:
// повторные вызовы не приводят к повторному teardown и повторному Done.
// Stop незапущенного контроллера сразу выполняет teardown, поэтому Wait
// не блокируется навечно; последующий Start возвращает ошибку.
func (c *Controller) Stop() {
	c.mu.Lock()
	started := c.started
	c.cancel()
	c.mu.Unlock()

	if !started {
		c.finish()
	}
}

// Wait блокирует до полного завершения teardown, инициированного
// запуском сессии или вызовом Stop.
func (c *Controller) Wait() {
	<-c.done
}

// run исполняет всю сессию: открытие транспорта, регистрацию endpoint'ов,
// ожидание остановки. Единственные точки приостановки — открытие
// транспорта, включение устройства и ожидание отмены контекста.
func (c *Controller) run() {
	defer c.finish()

	conn, err := c.stack.Open(c.ctx, c.config.TransportAddr)
	if err != nil {
		c.fatal(WrapBenchError(ErrorCodeTransportOpenFailed, c.config.SessionID,
			fmt.Sprintf("открытие транспорта %s", c.config.TransportAddr), err))
		return
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	dev := conn.Device()
	if err := dev.PowerOn(c.ctx); err != nil {
		c.fatal(WrapBenchError(ErrorCodeDevicePowerOnFailed, c.config.SessionID,
			"включение устройства", err))
		return
	}
	if err := dev.SetDeviceClass(avdtp.ClassOfDeviceAudioSink); err != nil {
		c.logEvent(slog.LevelWarn, fmt.Sprintf("class of device не установлен: %v", err))
	}
	if err := dev.RegisterSinkService(avdtp.SinkServiceRecordHandle); err != nil {
		c.logEvent(slog.LevelWarn, fmt.Sprintf("SDP запись не опубликована: %v", err))
	}

	registered, err := c.registerEndpoints(conn)
	if err != nil {
		c.fatal(err)
		return
	}

	conn.OnConnection(c.handleConnection)

	if err := dev.SetDiscoverable(true); err != nil {
		c.logEvent(slog.LevelWarn, fmt.Sprintf("discoverable не включен: %v", err))
	}
	if err := dev.SetConnectable(true); err != nil {
		c.logEvent(slog.LevelWarn, fmt.Sprintf("connectable не включен: %v", err))
	}

	if err := c.machine.Event(c.ctx, fsmAdvertise); err != nil {
		c.log.Debug("переход advertise отклонен", slog.Any("error", err))
	}
	c.logEvent(slog.LevelInfo, fmt.Sprintf(
		"стенд виден, endpoint'ов: %d — ждем подключения телефона", registered))
	c.emit(Event{Kind: EventDiscoverable})

	sampler := relay.NewSampler(c.relay, c.config.SampleInterval, c.emitBitrate)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		sampler.Run(c.ctx)
	}()

	<-c.ctx.Done()
}

// registerEndpoints регистрирует по одному sink endpoint на каждый
// дескриптор разрешенного выбора. Отказ регистрации отдельного
// дескриптора не фатален: он пропускается и логируется; сессия
// продолжается, пока зарегистрирован хотя бы один endpoint.
func (c *Controller) registerEndpoints(conn avdtp.Conn) (int, error) {
	descriptors, err := codec.ResolveSelection(c.config.Codecs)
	if err != nil {
		return 0, WrapBenchError(ErrorCodeNoEndpointsRegistered, c.config.SessionID,
			"резолв выбора кодеков", err)
	}

	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.DisplayName)
	}
	c.logEvent(slog.LevelInfo, fmt.Sprintf("регистрация endpoint'ов: %v", names))

	registered := 0
	for _, d := range descriptors {
		caps := avdtp.MediaCodecCapabilities{
			MediaType:             avdtp.MediaTypeAudio,
			MediaCodecType:        d.MediaCodecType,
			MediaCodecInformation: d.Capability,
		}

		var check avdtp.ConfigurationCheck
		if d.IsVendor() {
			desc := d
			check = func(proposed []byte) bool {
				ok := c.matcher.Accept(desc, proposed)
				if !ok {
					rejected := NewBenchError(ErrorCodeMatchRejected, c.config.SessionID,
						fmt.Sprintf("%s: vendor id/codec id не совпали", desc.DisplayName), nil)
					c.log.Warn("конфигурация отклонена", slog.Any("error", rejected))
					c.logEvent(slog.LevelWarn, rejected.Message)
				}
				return ok
			}
		}

		ep, err := conn.RegisterSinkEndpoint(caps, check)
		if err != nil {
			metricEndpointFailures.Inc()
			skipped := WrapBenchError(ErrorCodeRegistrationFailed, c.config.SessionID,
				fmt.Sprintf("%s пропущен", d.DisplayName), err)
			c.log.Warn("регистрация endpoint'а отклонена", slog.Any("error", skipped))
			c.logEvent(slog.LevelWarn, skipped.Message)
			continue
		}

		rec := &endpointRecord{seid: ep.SEID(), desc: d, state: EndpointRegistered}
		c.mu.Lock()
		c.endpoints[rec.seid] = rec
		c.mu.Unlock()

		c.wireEndpoint(ep, rec)
		metricEndpointsRegistered.Inc()
		registered++
		c.logEvent(slog.LevelInfo, fmt.Sprintf("[+] %s (%d байт) SEID %d",
			d.DisplayName, len(d.Capability), rec.seid))
	}

	if registered == 0 {
		return 0, NewBenchError(ErrorCodeNoEndpointsRegistered, c.config.SessionID,
			"ни один endpoint не зарегистрирован", nil)
	}
	return registered, nil
}

// wireEndpoint подписывает обработчики событий endpoint'а. Каждый
// обработчик обернут в guard: паника в обработчике открытого endpoint'а
// логируется и закрывает только этот endpoint, не всю сессию.
func (c *Controller) wireEndpoint(ep avdtp.Endpoint, rec *endpointRecord) {
	ep.OnOpen(func(config []byte) {
		c.guard(rec, func() { c.handleEndpointOpen(rec, config) })
	})
	ep.OnClose(func() {
		c.guard(rec, func() { c.handleEndpointClose(rec) })
	})
	ep.OnMediaPacket(func(pkt *rtp.Packet) {
		c.guard(rec, func() { c.handleMediaPacket(rec, pkt) })
	})
}

// guard перехватывает панику обработчика, помечая endpoint закрытым.
func (c *Controller) guard(rec *endpointRecord, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.mu.Lock()
			rec.state = EndpointClosed
			c.mu.Unlock()
			err := NewBenchError(ErrorCodeEndpointHandlerPanic, c.config.SessionID,
				fmt.Sprintf("обработчик endpoint %s: %v", rec.desc.DisplayName, r), nil)
			c.log.Error("паника в обработчике endpoint'а", slog.Any("error", err))
			c.logEvent(slog.LevelError, err.Error())
		}
	}()
	fn()
}

// handleConnection обрабатывает уведомление об установлении сигнального
// соединения. Идемпотентность обеспечена самим автоматом: переход
// connect валиден только из discoverable, повторные уведомления стека
// становятся no-op по построению.
func (c *Controller) handleConnection() {
	if err := c.machine.Event(context.Background(), fsmConnect); err != nil {
		c.log.Debug("повторное уведомление о соединении игнорировано",
			slog.Any("error", err))
		return
	}
	c.logEvent(slog.LevelInfo, "сигнальное соединение установлено")
	c.emit(Event{Kind: EventConnected})
}

// handleEndpointOpen обрабатывает открытие потока endpoint'а удаленной
// стороной: телефон выбрал кодек и начал передачу.
func (c *Controller) handleEndpointOpen(rec *endpointRecord, config []byte) {
	c.mu.Lock()
	rec.state = EndpointOpen
	c.mu.Unlock()

	// Первый открытый поток переводит сессию в streaming; последующие
	// открытия других endpoint'ов состояние сессии не меняют.
	if err := c.machine.Event(context.Background(), fsmStream); err != nil {
		c.log.Debug("сессия уже в streaming", slog.Any("error", err))
	}

	fields := codec.ParseConfig(rec.desc.Key, config)
	metricStreamsOpened.WithLabelValues(rec.desc.DisplayName).Inc()

	c.logEvent(slog.LevelInfo, fmt.Sprintf("STREAM OPENED -> %s", rec.desc.DisplayName))
	c.emit(Event{
		Kind:      EventStreamOpened,
		CodecKey:  rec.desc.Key,
		CodecName: rec.desc.DisplayName,
		Fields:    fields,
		RawHex:    hex.EncodeToString(config),
	})

	sampleRate := fields.SampleRateHz
	if sampleRate == 0 {
		sampleRate = 44100
	}
	c.relay.Start(sampleRate, 2, rec.desc.Key)
}

// handleEndpointClose обрабатывает закрытие потока удаленной стороной.
func (c *Controller) handleEndpointClose(rec *endpointRecord) {
	c.mu.Lock()
	rec.state = EndpointClosed
	c.mu.Unlock()

	c.logEvent(slog.LevelWarn, fmt.Sprintf("поток закрыт: %s", rec.desc.DisplayName))
	c.emit(Event{
		Kind:      EventStreamClosed,
		CodecKey:  rec.desc.Key,
		CodecName: rec.desc.DisplayName,
	})
	c.relay.Stop()
}

// handleMediaPacket передает полезную нагрузку медиа пакета ретранслятору.
// Счетчик телеметрии учитывает пакеты всех кодеков.
func (c *Controller) handleMediaPacket(rec *endpointRecord, pkt *rtp.Packet) {
	if pkt == nil {
		return
	}
	c.relay.OnPacket(rec.desc.Key, pkt.Payload)
	metricBytesReceived.Add(float64(len(pkt.Payload)))
}

// emitBitrate колбек Sampler'а: публикует выборку битрейта.
func (c *Controller) emitBitrate(kbps float64) {
	metricBitrateKbps.Set(kbps)
	c.emit(Event{Kind: EventBitrate, Kbps: kbps})
}

// fatal фиксирует фатальную ошибку и инициирует остановку сессии.
func (c *Controller) fatal(err error) {
	c.mu.Lock()
	if c.fatalErr == nil {
		c.fatalErr = err
	}
	c.mu.Unlock()

	c.log.Error("фатальная ошибка сессии", slog.Any("error", err))
	c.logEvent(slog.LevelError, err.Error())
	c.cancel()
}

// finish выполняет teardown ровно один раз: останавливает sampler и
// ретранслятор, закрывает транспорт, переводит автомат в ended и
// эмитит терминальное событие, после чего закрывает канал событий.
func (c *Controller) finish() {
	c.finishOnce.Do(func() {
		c.cancel()
		c.wg.Wait()
		c.relay.Stop()

		c.mu.Lock()
		conn := c.conn
		fatalErr := c.fatalErr
		c.mu.Unlock()

		if conn != nil {
			if err := conn.Close(); err != nil {
				c.log.Warn("ошибка закрытия транспорта", slog.Any("error", err))
			}
		}

		if err := c.machine.Event(context.Background(), fsmTerminate); err != nil {
			c.log.Debug("автомат уже в терминальном состоянии", slog.Any("error", err))
		}

		c.log.Info("сессия завершена",
			slog.Uint64("bytes_received", c.relay.BytesReceived()),
			slog.Uint64("dropped_events", c.dropped.Load()))
		c.emit(Event{Kind: EventDone, Err: fatalErr})

		c.eventsMu.Lock()
		c.eventsClosed = true
		close(c.events)
		c.eventsMu.Unlock()

		close(c.done)
	})
}

// logEvent пишет сообщение в slog и дублирует его событием журнала
// для презентационного слоя.
func (c *Controller) logEvent(level slog.Level, text string) {
	c.log.Log(context.Background(), level, text)
	c.emit(Event{Kind: EventLog, Level: level, Text: text})
}

// emit публикует событие без блокировки: при переполненном канале
// событие отбрасывается, производство никогда не блокируется
// потребителем. Запоздавшие колбеки стека после teardown отбрасываются.
func (c *Controller) emit(ev Event) {
	c.eventsMu.Lock()
	defer c.eventsMu.Unlock()

	if c.eventsClosed {
		c.dropped.Add(1)
		return
	}
	select {
	case c.events <- ev:
	default:
		c.dropped.Add(1)
	}
}
