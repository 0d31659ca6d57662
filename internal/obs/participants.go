package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	participantGaugeOnce sync.Once

	participantCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "crowdlab_participants_total",
		Help: "Number of registered participants.",
	})
)

// InitParticipantCount registers the participant gauge once.
func InitParticipantCount() {
	participantGaugeOnce.Do(func() {
		prometheus.MustRegister(participantCount)
	})
}

// PublishParticipantCount updates the registered-participant gauge. Called from
// the post-commit metrics job after every participant save.
func PublishParticipantCount(n int) {
	participantCount.Set(float64(n))
}
