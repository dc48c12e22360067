package metrics

import (
	"testing"

	metrictestutil "github.com/caesium-cloud/hera/internal/metrics/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
)

type MetricsSuite struct {
	suite.Suite
	registry *prometheus.Registry
}

func TestMetricsSuite(t *testing.T) {
	suite.Run(t, new(MetricsSuite))
}

func (s *MetricsSuite) SetupTest() {
	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		HeartbeatsSentTotal,
		HeartbeatFailuresTotal,
		HeartbeatsSkippedTotal,
		LinkConnectsTotal,
		LinkConnected,
		LateRepliesTotal,
		DispatchRequestsTotal,
		DispatchDurationSeconds,
		PushRejectionsTotal,
		GraphViolationsTotal,
	)
}

func (s *MetricsSuite) TestHeartbeatCounters() {
	before := metrictestutil.Value(s.T(), HeartbeatFailuresTotal)
	HeartbeatsSentTotal.Inc()
	HeartbeatFailuresTotal.Inc()

	s.GreaterOrEqual(metrictestutil.Value(s.T(), HeartbeatsSentTotal), float64(1))
	s.Equal(before+1, metrictestutil.Value(s.T(), HeartbeatFailuresTotal))
}

func (s *MetricsSuite) TestDispatchRequestsTotalIncrements() {
	DispatchRequestsTotal.WithLabelValues("execute", "completed").Inc()
	DispatchRequestsTotal.WithLabelValues("execute", "timed_out").Inc()
	DispatchRequestsTotal.WithLabelValues("execute", "timed_out").Inc()

	val := metrictestutil.CounterValue(s.T(), DispatchRequestsTotal, "execute", "timed_out")
	s.GreaterOrEqual(val, float64(2))
}

func (s *MetricsSuite) TestDispatchDurationObserves() {
	DispatchDurationSeconds.WithLabelValues("cancel").Observe(0.25)

	families, err := s.registry.Gather()
	s.Require().NoError(err)

	found := false
	for _, fam := range families {
		if fam.GetName() == "hera_dispatch_duration_seconds" {
			for _, m := range fam.GetMetric() {
				if h := m.GetHistogram(); h != nil && h.GetSampleCount() > 0 {
					found = true
				}
			}
		}
	}
	s.True(found, "expected dispatch histogram sample")
}

func (s *MetricsSuite) TestLinkConnectedGauge() {
	LinkConnected.Set(1)
	s.Equal(float64(1), metrictestutil.Value(s.T(), LinkConnected))
	LinkConnected.Set(0)
	s.Equal(float64(0), metrictestutil.Value(s.T(), LinkConnected))
}

func (s *MetricsSuite) TestGraphViolationsTotalIncrements() {
	GraphViolationsTotal.WithLabelValues("upstream_disabled").Inc()

	val := metrictestutil.CounterValue(s.T(), GraphViolationsTotal, "upstream_disabled")
	s.GreaterOrEqual(val, float64(1))
}
