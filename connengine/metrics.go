// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package connengine

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a prometheus.Collector exposing one connection's congestion,
// flow-control, retransmit, and stream-count state, the same
// Describe/Collect shape the pack's TCPInfoCollector uses for kernel
// TCP_INFO fields.
type Metrics struct {
	connectionID uint32
	descs        map[string]*metricInfo

	cwnd        atomic.Uint64
	ssthresh    atomic.Uint64
	flowWindow  atomic.Uint64
	inflight    atomic.Uint64
	retransmits atomic.Uint64
	streams     atomic.Uint64
}

type metricInfo struct {
	desc     *prometheus.Desc
	valType  prometheus.ValueType
	supplier func(*Metrics) uint64
}

func newMetrics(connectionID uint32) *Metrics {
	m := &Metrics{connectionID: connectionID}
	labels := prometheus.Labels{"connection_id": idLabel(connectionID)}
	m.descs = map[string]*metricInfo{
		"rft_conn_cwnd_bytes":        {prometheus.NewDesc("rft_conn_cwnd_bytes", "Current congestion window.", nil, labels), prometheus.GaugeValue, func(mm *Metrics) uint64 { return mm.cwnd.Load() }},
		"rft_conn_ssthresh_bytes":    {prometheus.NewDesc("rft_conn_ssthresh_bytes", "Current slow-start threshold.", nil, labels), prometheus.GaugeValue, func(mm *Metrics) uint64 { return mm.ssthresh.Load() }},
		"rft_conn_flow_window_bytes": {prometheus.NewDesc("rft_conn_flow_window_bytes", "Peer-advertised flow window.", nil, labels), prometheus.GaugeValue, func(mm *Metrics) uint64 { return mm.flowWindow.Load() }},
		"rft_conn_inflight_bytes":    {prometheus.NewDesc("rft_conn_inflight_bytes", "Bytes sent but not yet acked.", nil, labels), prometheus.GaugeValue, func(mm *Metrics) uint64 { return mm.inflight.Load() }},
		"rft_conn_retransmits_total": {prometheus.NewDesc("rft_conn_retransmits_total", "Cumulative count of packets retransmitted from the ring buffer.", nil, labels), prometheus.CounterValue, func(mm *Metrics) uint64 { return mm.retransmits.Load() }},
		"rft_conn_active_streams":    {prometheus.NewDesc("rft_conn_active_streams", "Number of stream handlers currently running on this connection.", nil, labels), prometheus.GaugeValue, func(mm *Metrics) uint64 { return mm.streams.Load() }},
	}
	return m
}

func idLabel(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}

func (m *Metrics) set(cwnd, ssthresh, flowWindow, inflight, streams uint64) {
	m.cwnd.Store(cwnd)
	m.ssthresh.Store(ssthresh)
	m.flowWindow.Store(flowWindow)
	m.inflight.Store(inflight)
	m.streams.Store(streams)
}

// incRetransmits records one packet retransmitted from the ring buffer.
func (m *Metrics) incRetransmits() {
	m.retransmits.Add(1)
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, info := range m.descs {
		ch <- info.desc
	}
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, info := range m.descs {
		ch <- prometheus.MustNewConstMetric(info.desc, info.valType, float64(info.supplier(m)))
	}
}

var _ prometheus.Collector = (*Metrics)(nil)
