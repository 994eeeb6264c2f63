// Команда codec_bench превращает Linux хост в Bluetooth аудио приемник
// и показывает, какие кодеки согласует удаленный телефон.
//
// Сессия исполняется контроллером pkg/session поверх интерфейса
// avdtp.Stack. Реальный хост-стек подключается реализацией этого
// интерфейса; в комплекте симулятор (pkg/avdtp/sim) с режимом -demo,
// в котором скриптованное "удаленное устройство" подключается, открывает
// поток выбранного кодека и шлет медиа пакеты.
//
// Флаг -check-radio открывает сырой HCI socket к контроллеру и выходит:
// быстрый способ проверить права и состояние интерфейса перед сессией.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/arzzra/codec_bench/pkg/avdtp"
	"github.com/arzzra/codec_bench/pkg/avdtp/sim"
	"github.com/arzzra/codec_bench/pkg/codec"
	"github.com/arzzra/codec_bench/pkg/radio"
	"github.com/arzzra/codec_bench/pkg/session"
	"github.com/pion/rtp"
)

// menuMap номера меню -> наборы ключей (как в презетах).
var menuMap = map[string][]codec.Key{
	"1": {codec.KeySBC}, "2": {codec.KeyAAC},
	"3": {codec.KeyAptX}, "4": {codec.KeyAptXHD},
	"5": {codec.KeyAptXAdaptive}, "6": {codec.KeyAptXTWSPlus},
	"7": {codec.KeyLDAC},
	"8": {codec.KeyLHDCV2}, "9": {codec.KeyLHDCV3},
	"10": {codec.KeyLHDCV4}, "11": {codec.KeyLHDCV5},
	"12": codec.Presets["ALL_LHDC"],
	"13": codec.Presets["ALL_APTX"],
	"14": codec.Presets["STANDARD"],
	"15": codec.Presets["ALL"],
}

const menu = `
  БЛЮТУЗ СТЕНД ПРОВЕРКИ КОДЕКОВ — SBC + AAC всегда включены
  ------------------------------------------------------------
   1  SBC             7  LDAC
   2  AAC             8  LHDC V2
   3  aptX            9  LHDC V3
   4  aptX-HD        10  LHDC V4
   5  aptX-Adaptive  11  LHDC V5
   6  aptX TWS+
  ------------------------------------------------------------
  12  Все LHDC       14  Стандартные (SBC + AAC)
  13  Все aptX       15  Все кодеки
   0  Выход
  ------------------------------------------------------------`

func main() {
	var (
		transport  = flag.String("transport", avdtp.DefaultTransportAddr, "адрес транспорта (hci-socket:N)")
		codecArg   = flag.String("codec", "", "ключ кодека или номер меню для прямого запуска")
		audio      = flag.Bool("audio", false, "воспроизводить SBC поток через ffplay")
		backup     = flag.String("backup", "", "путь резервного файла потока")
		iface      = flag.String("iface", radio.DefaultInterface, "имя HCI интерфейса для сброса радио")
		noReset    = flag.Bool("no-reset", false, "не сбрасывать радио после сессии")
		demo       = flag.Bool("demo", false, "симулировать удаленное устройство (без радио)")
		checkRadio = flag.Bool("check-radio", false, "проверить доступность HCI контроллера и выйти")
		debug      = flag.Bool("debug", false, "подробные логи")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *checkRadio {
		os.Exit(runRadioCheck(*transport))
	}

	// Прямой запуск: codec_bench -codec LHDC_V3
	if *codecArg != "" {
		keys := resolveArg(*codecArg)
		if keys == nil {
			fmt.Fprintf(os.Stderr, "[!] Неизвестный кодек %q\n", *codecArg)
			os.Exit(1)
		}
		runSession(logger, keys, *transport, *audio, *backup, *demo)
		if !*noReset && !*demo {
			radio.Reset(context.Background(), radio.Config{Interface: *iface, Logger: logger})
		}
		return
	}

	// Интерактивное меню.
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Println(menu)
		fmt.Print("\n  Введите номер (или ключ кодека, 0 — выход): ")
		if !scanner.Scan() {
			return
		}
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		if raw == "0" || strings.EqualFold(raw, "q") || strings.EqualFold(raw, "exit") {
			fmt.Println("\n[!] Выход.")
			return
		}
		keys := resolveArg(raw)
		if keys == nil {
			fmt.Println("  [!] Неверный ввод — введите номер из меню.")
			continue
		}
		runSession(logger, keys, *transport, *audio, *backup, *demo)
		fmt.Println("  [!] Сессия завершена.")
		if !*noReset && !*demo {
			radio.Reset(context.Background(), radio.Config{Interface: *iface, Logger: logger})
		}
	}
}

// resolveArg превращает ввод пользователя (номер меню или ключ) в набор ключей.
func resolveArg(raw string) []codec.Key {
	if keys, ok := menuMap[raw]; ok {
		return keys
	}
	key := codec.Key(strings.ToUpper(strings.ReplaceAll(raw, "-", "_")))
	if _, err := codec.Lookup(key); err == nil {
		return []codec.Key{key}
	}
	return nil
}

// buildStack выбирает реализацию avdtp.Stack для запуска.
//
// Боевой хост-стек (AVDTP поверх HCI сокета) в комплект не входит:
// без -demo запуск честно отклоняется, вместо того чтобы молча ждать
// телефон на симуляторе, к которому никто не может подключиться.
func buildStack(transport string, demo bool) (*sim.Stack, error) {
	if _, err := avdtp.ParseTransportAddr(transport); err != nil {
		return nil, err
	}
	if demo {
		return sim.NewStack(), nil
	}
	return nil, fmt.Errorf(
		"хост-стек для транспорта %s не подключен: используйте -demo (симулятор) или -check-radio (проверка HCI контроллера)",
		transport)
}

// runSession исполняет одну сессию до Done или сигнала остановки.
func runSession(logger *slog.Logger, keys []codec.Key, transport string, audio bool, backupPath string, demo bool) {
	stack, err := buildStack(transport, demo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[!] %v\n", err)
		return
	}

	cfg := session.DefaultConfig()
	cfg.TransportAddr = transport
	cfg.Codecs = keys
	cfg.EnablePlayback = audio
	cfg.BackupPath = backupPath
	cfg.Logger = logger

	ctrl, err := session.NewController(cfg, stack, codec.NewPermissiveMatcher())
	if err != nil {
		fmt.Fprintf(os.Stderr, "[!] %v\n", err)
		return
	}
	if err := ctrl.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "[!] %v\n", err)
		return
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)
	go func() {
		<-stop
		ctrl.Stop()
	}()

	if demo {
		go runDemoPeer(stack, keys)
	}

	for ev := range ctrl.Events() {
		render(ev)
	}
	ctrl.Wait()
}

// render печатает событие сессии.
func render(ev session.Event) {
	switch ev.Kind {
	case session.EventLog:
		fmt.Printf("  %s\n", ev.Text)
	case session.EventDiscoverable:
		fmt.Println("  [✓] Стенд виден — ждем телефон (Ctrl+C для выхода)")
	case session.EventConnected:
		fmt.Println("  [✓] Соединение установлено")
	case session.EventStreamOpened:
		fmt.Printf("\n  ==============================================\n")
		fmt.Printf("  ✅ STREAM OPENED -> %s\n", ev.CodecName)
		fmt.Printf("  ==============================================\n")
		if ev.RawHex != "" {
			fmt.Printf("  raw config: %s\n", ev.RawHex)
		}
		if f := ev.Fields; !f.IsZero() {
			fmt.Printf("  %d Гц, %d бит, до %d kbps\n", f.SampleRateHz, f.BitDepth, f.MaxKbps)
		}
	case session.EventStreamClosed:
		fmt.Printf("  поток закрыт: %s\n", ev.CodecName)
	case session.EventBitrate:
		fmt.Printf("  битрейт: %.0f kbps\n", ev.Kbps)
	case session.EventDone:
		if ev.Err != nil {
			fmt.Printf("  [!] Сессия завершена с ошибкой: %v\n", ev.Err)
		}
	}
}

// runDemoPeer скриптует удаленное устройство: подключается, открывает
// поток первого запрошенного кодека и шлет 1000-байтные пакеты 10 раз
// в секунду.
func runDemoPeer(stack *sim.Stack, keys []codec.Key) {
	var conn *sim.Conn
	select {
	case conn = <-stack.ConnReady():
	case <-time.After(5 * time.Second):
		return
	}
	peer := conn.Peer()

	time.Sleep(500 * time.Millisecond)
	peer.Connect()

	// Первый endpoint — первый запрошенный кодек.
	seids := peer.Endpoints()
	if len(seids) == 0 {
		return
	}
	primary, err := codec.Lookup(keys[0])
	if err != nil {
		return
	}
	proposed := append([]byte(nil), primary.Capability...)
	if primary.IsVendor() && len(proposed) > 6 {
		// Эмулируем телефон, меняющий параметрические байты.
		proposed[len(proposed)-1] ^= 0x01
	}
	if err := peer.OpenEndpoint(seids[0], proposed); err != nil {
		return
	}

	pkt := &rtp.Packet{
		Header:  rtp.Header{Version: 2, PayloadType: 96},
		Payload: make([]byte, 1000),
	}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		pkt.Header.SequenceNumber++
		pkt.Header.Timestamp += 1000
		if err := peer.SendMedia(seids[0], pkt); err != nil {
			return
		}
	}
}

// runRadioCheck открывает сырой HCI socket и сообщает результат.
func runRadioCheck(transport string) int {
	dev, err := avdtp.ParseTransportAddr(transport)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[!] %v\n", err)
		return 1
	}
	sock, err := avdtp.OpenHCISocket(dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[!] HCI контроллер недоступен: %v\n", err)
		fmt.Fprintln(os.Stderr, "    Подсказка: sudo rfkill unblock all && sudo hciconfig hci0 down")
		return 1
	}
	defer sock.Close()
	fmt.Printf("[✓] hci%d доступен на user channel\n", dev)
	return 0
}
