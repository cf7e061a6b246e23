package services

import "time"

// Metrics receives request lifecycle observations.
type Metrics interface {
	ObserveDispatch(action, outcome string, elapsed time.Duration)
	ServerWarning()
	GateQueueDepth(n int)
	BootstrapAttempt()
}

type nopMetrics struct{}

func (nopMetrics) ObserveDispatch(string, string, time.Duration) {}
func (nopMetrics) ServerWarning()                                 {}
func (nopMetrics) GateQueueDepth(int)                             {}
func (nopMetrics) BootstrapAttempt()                              {}

func metricsOrNop(m Metrics) Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
