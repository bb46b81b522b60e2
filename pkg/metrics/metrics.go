// Package metrics exposes the network info estimator's continuously
// updated per-peer numbers as Prometheus gauges.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	rtt = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "netreliant",
		Name:      "rtt_seconds",
		Help:      "Smoothed round-trip time to a peer.",
	}, []string{"peer"})

	packetLoss = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "netreliant",
		Name:      "packet_loss_percent",
		Help:      "Smoothed outbound packet loss percentage to a peer.",
	}, []string{"peer"})

	sentBandwidth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "netreliant",
		Name:      "sent_bandwidth_kbps",
		Help:      "Smoothed outbound bandwidth to a peer, in kbps.",
	}, []string{"peer"})

	receivedBandwidth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "netreliant",
		Name:      "received_bandwidth_kbps",
		Help:      "Smoothed inbound bandwidth from a peer, in kbps.",
	}, []string{"peer"})
)

func init() {
	prometheus.MustRegister(rtt, packetLoss, sentBandwidth, receivedBandwidth)
}

// ObserveRTT records the latest smoothed round-trip time, in seconds.
func ObserveRTT(peer string, v float64) { rtt.WithLabelValues(peer).Set(v) }

// ObservePacketLoss records the latest smoothed loss percentage.
func ObservePacketLoss(peer string, v float64) { packetLoss.WithLabelValues(peer).Set(v) }

// ObserveSentBandwidth records the latest smoothed outbound bandwidth, in kbps.
func ObserveSentBandwidth(peer string, v float64) { sentBandwidth.WithLabelValues(peer).Set(v) }

// ObserveReceivedBandwidth records the latest smoothed inbound bandwidth, in kbps.
func ObserveReceivedBandwidth(peer string, v float64) { receivedBandwidth.WithLabelValues(peer).Set(v) }

// Forget removes a peer's series, e.g. once its connection closes.
func Forget(peer string) {
	rtt.DeleteLabelValues(peer)
	packetLoss.DeleteLabelValues(peer)
	sentBandwidth.DeleteLabelValues(peer)
	receivedBandwidth.DeleteLabelValues(peer)
}
