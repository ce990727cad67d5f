package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all Prometheus metrics
type Registry struct {
	framesReceived     prometheus.Counter
	decodeErrors       prometheus.Counter
	updatesApplied     prometheus.Counter
	unknownDeviceMsgs  prometheus.Counter
	reconnects         prometheus.Counter
	connectedPrinters  prometheus.Gauge
	registeredPrinters prometheus.Gauge
}

// NewRegistry creates a new metrics registry
func NewRegistry() *Registry {
	return &Registry{
		framesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "printwatch_frames_received_total",
			Help: "Total number of report frames received from printers",
		}),
		decodeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "printwatch_decode_errors_total",
			Help: "Total number of report frames that failed structured decode",
		}),
		updatesApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "printwatch_status_updates_applied_total",
			Help: "Total number of status updates applied to the status table",
		}),
		unknownDeviceMsgs: promauto.NewCounter(prometheus.CounterOpts{
			Name: "printwatch_unknown_device_msgs_total",
			Help: "Total number of worker messages for unregistered device ids",
		}),
		reconnects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "printwatch_reconnects_total",
			Help: "Total number of connection attempts after a failure",
		}),
		connectedPrinters: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "printwatch_connected_printers",
			Help: "Number of printers currently connected",
		}),
		registeredPrinters: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "printwatch_registered_printers",
			Help: "Number of printers registered with the supervisor",
		}),
	}
}

// IncFramesReceived increments the frames received counter
func (r *Registry) IncFramesReceived() {
	r.framesReceived.Inc()
}

// IncDecodeErrors increments the decode errors counter
func (r *Registry) IncDecodeErrors() {
	r.decodeErrors.Inc()
}

// AddUpdatesApplied adds to the updates applied counter
func (r *Registry) AddUpdatesApplied(count int) {
	r.updatesApplied.Add(float64(count))
}

// IncUnknownDeviceMsgs increments the unknown device messages counter
func (r *Registry) IncUnknownDeviceMsgs() {
	r.unknownDeviceMsgs.Inc()
}

// IncReconnects increments the reconnects counter
func (r *Registry) IncReconnects() {
	r.reconnects.Inc()
}

// IncConnectedPrinters increments the connected printers gauge
func (r *Registry) IncConnectedPrinters() {
	r.connectedPrinters.Inc()
}

// DecConnectedPrinters decrements the connected printers gauge
func (r *Registry) DecConnectedPrinters() {
	r.connectedPrinters.Dec()
}

// SetRegisteredPrinters sets the registered printers gauge
func (r *Registry) SetRegisteredPrinters(count int) {
	r.registeredPrinters.Set(float64(count))
}
