package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/wirecall/wirecall/pkg/api"
)

const namespace = "wirecall"

type Metrics struct {
	OnlineUsers      prometheus.Gauge
	ActiveCalls      prometheus.Gauge
	Calls            *prometheus.CounterVec
	Hangups          *prometheus.CounterVec
	SignalingRelayed prometheus.Counter
	SignalingDropped prometheus.Counter
	ChatMessages     *prometheus.CounterVec
}

// NewMetrics registers the coordinator metrics in reg.
// A nil reg gives unregistered metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		OnlineUsers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "online_users", Help: "Registered identities.",
		}),
		ActiveCalls: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "active_calls", Help: "Ringing and active call sessions.",
		}),
		Calls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "calls_total", Help: "Call initiations by result.",
		}, []string{"result"}),
		Hangups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "hangups_total", Help: "Ended call sessions by reason.",
		}, []string{"reason"}),
		SignalingRelayed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "signaling_relayed_total", Help: "Forwarded signaling envelopes.",
		}),
		SignalingDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "signaling_dropped_total", Help: "Signaling envelopes without a recipient.",
		}),
		ChatMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "chat_messages_total", Help: "Chat messages by delivery mode.",
		}, []string{"mode"}),
	}
}

func callResult(err error) string {
	if err == nil {
		return "ok"
	}
	return string(api.NewError(err).Code)
}
