package calc

import (
	"github.com/aarondl/opt/null"
)

// Metric identifies a per-pilot performance value.
type Metric int

const (
	MetricCompletedLaps Metric = iota
	MetricBestLap
	MetricConsecutive
	MetricFinishElapsed
	MetricFinishDetection
	MetricCompletionTime
	MetricTotalTime
	MetricFirstDetection
	MetricChannelSlot
)

var metricNames = map[Metric]string{
	MetricCompletedLaps:   "completedLaps",
	MetricBestLap:         "bestLap",
	MetricConsecutive:     "consecutive",
	MetricFinishElapsed:   "finishElapsed",
	MetricFinishDetection: "finishDetection",
	MetricCompletionTime:  "completionTime",
	MetricTotalTime:       "totalTime",
	MetricFirstDetection:  "firstDetection",
	MetricChannelSlot:     "channelSlot",
}

func (m Metric) String() string {
	if s, ok := metricNames[m]; ok {
		return s
	}
	return "unknown"
}

// HigherIsBetter reports whether larger values of the metric are better.
// Only lap counts are "more is better"; all times and slots are not.
func (m Metric) HigherIsBetter() bool {
	return m == MetricCompletedLaps
}

// Provider resolves a metric value for a pilot.
// Implementations return a null value when the metric is not available.
type Provider interface {
	Value(m Metric, pilotID string) null.Val[float64]
}

// Better returns the better of two values according to the metric.
// Null values lose against non-null values.
func Better(m Metric, a, b null.Val[float64]) null.Val[float64] {
	av, aok := a.Get()
	bv, bok := b.Get()
	switch {
	case !aok:
		return b
	case !bok:
		return a
	case m.HigherIsBetter() && bv > av:
		return b
	case !m.HigherIsBetter() && bv < av:
		return b
	}
	return a
}
