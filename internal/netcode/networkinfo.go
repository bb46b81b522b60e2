package netcode

import "netreliant/pkg/metrics"

// NetworkInfo holds the continuously estimated quality numbers for one
// peer: EWMA-smoothed round-trip time, packet loss, and bandwidth in both
// directions.
type NetworkInfo struct {
	RTT                   float64
	PacketLoss            float64
	SentBandwidthKbps     float64
	ReceivedBandwidthKbps float64
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// smoothRTT applies the EWMA rule the estimator uses for RTT: snap straight
// to the sample on the first real reading, or once the sample is already
// within epsilon of the running average; otherwise ease toward it by alpha.
func smoothRTT(prev, sample, alpha float64) float64 {
	const eps = 0.00001
	if (prev == 0 && sample > 0) || absf(prev-sample) < eps {
		return sample
	}
	return prev + (sample-prev)*alpha
}

// smoothRate applies the EWMA rule used for loss and bandwidth: ease toward
// the sample by alpha once it differs from the running average by more than
// epsilon, otherwise snap to it. The inverted condition relative to
// smoothRTT matches the original estimator's behavior and is kept
// intentionally rather than unified, since the two produce different
// transients right at the epsilon boundary.
func smoothRate(prev, sample, alpha float64) float64 {
	const eps = 0.0001
	if absf(prev-sample) > eps {
		return prev + (sample-prev)*alpha
	}
	return sample
}

func (n *NetworkInfo) observeRTT(sample, alpha float64) {
	n.RTT = smoothRTT(n.RTT, sample, alpha)
}

func (n *NetworkInfo) observeLoss(sample, alpha float64) {
	n.PacketLoss = smoothRate(n.PacketLoss, sample, alpha)
}

func (n *NetworkInfo) observeSentBandwidth(sample, alpha float64) {
	n.SentBandwidthKbps = smoothRate(n.SentBandwidthKbps, sample, alpha)
}

func (n *NetworkInfo) observeReceivedBandwidth(sample, alpha float64) {
	n.ReceivedBandwidthKbps = smoothRate(n.ReceivedBandwidthKbps, sample, alpha)
}

func (n *NetworkInfo) report(peer string) {
	metrics.ObserveRTT(peer, n.RTT)
	metrics.ObservePacketLoss(peer, n.PacketLoss)
	metrics.ObserveSentBandwidth(peer, n.SentBandwidthKbps)
	metrics.ObserveReceivedBandwidth(peer, n.ReceivedBandwidthKbps)
}
