package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric descriptors.  The Collector's atomics are the source of truth;
// Prometheus reads them at scrape time.
var (
	descConnectionsActive = prometheus.NewDesc(
		"echonet_connections_active",
		"Current number of open peer connections", nil, nil)
	descConnectionsTotal = prometheus.NewDesc(
		"echonet_connections_total",
		"Total number of accepted peer connections", nil, nil)
	descMessagesIn = prometheus.NewDesc(
		"echonet_messages_received_total",
		"Total number of messages received", nil, nil)
	descMessagesOut = prometheus.NewDesc(
		"echonet_messages_sent_total",
		"Total number of messages sent", nil, nil)
	descBytesIn = prometheus.NewDesc(
		"echonet_bytes_received_total",
		"Total bytes read from the network", nil, nil)
	descBytesOut = prometheus.NewDesc(
		"echonet_bytes_sent_total",
		"Total bytes written to the network", nil, nil)
	descTruncations = prometheus.NewDesc(
		"echonet_truncations_total",
		"Outgoing messages truncated to the size bound", nil, nil)
	descResends = prometheus.NewDesc(
		"echonet_datagram_resends_total",
		"Datagram requests sent again after a failed receive", nil, nil)
	descErrors = prometheus.NewDesc(
		"echonet_errors_total",
		"Total number of per-operation errors", nil, nil)
)

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descConnectionsActive
	ch <- descConnectionsTotal
	ch <- descMessagesIn
	ch <- descMessagesOut
	ch <- descBytesIn
	ch <- descBytesOut
	ch <- descTruncations
	ch <- descResends
	ch <- descErrors
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.Snapshot()
	gauge := func(d *prometheus.Desc, v int64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v))
	}
	counter := func(d *prometheus.Desc, v int64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}

	gauge(descConnectionsActive, s.ConnectionsActive)
	counter(descConnectionsTotal, s.ConnectionsTotal)
	counter(descMessagesIn, s.MessagesIn)
	counter(descMessagesOut, s.MessagesOut)
	counter(descBytesIn, s.BytesIn)
	counter(descBytesOut, s.BytesOut)
	counter(descTruncations, s.Truncations)
	counter(descResends, s.Resends)
	counter(descErrors, s.ErrorsTotal)
}

// Handler returns an HTTP handler exposing c (plus Go runtime and
// process metrics) in the Prometheus text format.
func Handler(c *Collector) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
