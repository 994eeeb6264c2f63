package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики стенда. Регистрируются один раз в default registry
// при загрузке пакета и разделяются всеми сессиями процесса.
var (
	metricSessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "codec_bench",
		Subsystem: "session",
		Name:      "sessions_total",
		Help:      "Общее количество запущенных тестовых сессий",
	})

	metricEndpointsRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "codec_bench",
		Subsystem: "session",
		Name:      "endpoints_registered_total",
		Help:      "Количество успешно зарегистрированных sink endpoint'ов",
	})

	metricEndpointFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "codec_bench",
		Subsystem: "session",
		Name:      "endpoint_registration_failures_total",
		Help:      "Количество отклоненных регистраций endpoint'ов",
	})

	metricStreamsOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codec_bench",
		Subsystem: "session",
		Name:      "streams_opened_total",
		Help:      "Количество открытых потоков по кодекам",
	}, []string{"codec"})

	metricBytesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "codec_bench",
		Subsystem: "relay",
		Name:      "bytes_received_total",
		Help:      "Суммарное количество принятых байт медиа пакетов",
	})

	metricBitrateKbps = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "codec_bench",
		Subsystem: "relay",
		Name:      "bitrate_kbps",
		Help:      "Мгновенный битрейт последней выборки",
	})

	metricStateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codec_bench",
		Subsystem: "session",
		Name:      "state_transitions_total",
		Help:      "Переходы состояний сессии",
	}, []string{"from", "to"})
)
