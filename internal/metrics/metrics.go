package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/cia613-gw/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters
var (
	LinkRxFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "link_rx_frames_total",
		Help: "Total CAN XL frames read from a link backend.",
	}, []string{"backend"})
	LinkTxFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "link_tx_frames_total",
		Help: "Total CAN XL frames written to a link backend.",
	}, []string{"backend"})
	PDUsFragmented = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pdus_fragmented_total",
		Help: "Total source PDUs that were split into an FF/CF/LF sequence.",
	})
	PDUsForwarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pdus_forwarded_total",
		Help: "Total source PDUs forwarded verbatim (no fragmentation needed).",
	})
	PDUsReassembled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pdus_reassembled_total",
		Help: "Total PDUs successfully reassembled from a fragment sequence.",
	})
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checker_notifications_total",
		Help: "Checker notifications emitted, by code.",
	}, []string{"code"})
	MalformedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "malformed_frames_total",
		Help: "Total frames rejected at the link codec layer (short read, bad length, missing XLF).",
	})
	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checker_notifications_dropped_total",
		Help: "Notifications dropped because the async transmit buffer was full.",
	})
	CheckerUsedBuffers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "checker_used_buffers",
		Help: "Current number of occupied reassembly buffers in the checker.",
	})
	CheckerLowPrioCounter = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "checker_low_prio_counter",
		Help: "Current low-priority starvation counter value.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Fatal I/O-layer error counters by subsystem.",
	}, []string{"where"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrLinkRead     = "link_read"
	ErrLinkWrite    = "link_write"
	ErrSocketCAN    = "socketcan"
	ErrSerialTunnel = "serial_tunnel"
)

// StartHTTP serves Prometheus metrics at /metrics on a fresh mux.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters, cheap to read from a status line without
// round-tripping through the Prometheus registry.
var (
	localLinkRx      uint64
	localLinkTx      uint64
	localFragmented  uint64
	localForwarded   uint64
	localReassembled uint64
	localMalformed   uint64
	localErrors      uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	LinkRx      uint64
	LinkTx      uint64
	Fragmented  uint64
	Forwarded   uint64
	Reassembled uint64
	Malformed   uint64
	Errors      uint64
}

func Snap() Snapshot {
	return Snapshot{
		LinkRx:      atomic.LoadUint64(&localLinkRx),
		LinkTx:      atomic.LoadUint64(&localLinkTx),
		Fragmented:  atomic.LoadUint64(&localFragmented),
		Forwarded:   atomic.LoadUint64(&localForwarded),
		Reassembled: atomic.LoadUint64(&localReassembled),
		Malformed:   atomic.LoadUint64(&localMalformed),
		Errors:      atomic.LoadUint64(&localErrors),
	}
}

func IncLinkRx(backend string) {
	LinkRxFrames.WithLabelValues(backend).Inc()
	atomic.AddUint64(&localLinkRx, 1)
}

func IncLinkTx(backend string) {
	LinkTxFrames.WithLabelValues(backend).Inc()
	atomic.AddUint64(&localLinkTx, 1)
}

func IncFragmented() {
	PDUsFragmented.Inc()
	atomic.AddUint64(&localFragmented, 1)
}

func IncForwarded() {
	PDUsForwarded.Inc()
	atomic.AddUint64(&localForwarded, 1)
}

func IncReassembled() {
	PDUsReassembled.Inc()
	atomic.AddUint64(&localReassembled, 1)
}

func IncNotification(code string) {
	Notifications.WithLabelValues(code).Inc()
}

func IncMalformed() {
	MalformedFrames.Inc()
	atomic.AddUint64(&localMalformed, 1)
}

func IncNotificationDropped() {
	NotificationsDropped.Inc()
}

func SetCheckerGauges(ubuffs, lpcnt int) {
	CheckerUsedBuffers.Set(float64(ubuffs))
	CheckerLowPrioCounter.Set(float64(lpcnt))
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{ErrLinkRead, ErrLinkWrite, ErrSocketCAN, ErrSerialTunnel} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}

func Ready() bool { return IsReady() }
