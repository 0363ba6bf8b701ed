package core

import "time"

const AVG_COUNT uint8 = 30

// ExecutionMetrics keeps a rolling average over the last AVG_COUNT samples
// and a per-second rate.
type ExecutionMetrics struct {
	AVGCounter    uint8
	MStimes       [AVG_COUNT]float64
	MSavg         float64
	Samples       int32
	AccumulatedMS float64
	PerSecond     float64
	Total         uint64
}

func NewExecutionMetrics() *ExecutionMetrics {
	return &ExecutionMetrics{
		MStimes: [AVG_COUNT]float64{0},
	}
}

func (m *ExecutionMetrics) Update(elapsed time.Duration) {
	ms := float64(elapsed.Nanoseconds()) / float64(time.Millisecond)
	m.MStimes[m.AVGCounter] = ms
	if m.AVGCounter == AVG_COUNT-1 {
		m.MSavg = 0
		for i := uint8(0); i < AVG_COUNT; i++ {
			m.MSavg += m.MStimes[i]
		}

		m.MSavg /= float64(AVG_COUNT)
	}
	m.AVGCounter++
	m.AVGCounter %= AVG_COUNT

	m.AccumulatedMS += ms
	if m.AccumulatedMS > 1000 {
		m.PerSecond = float64(m.Samples)
		m.AccumulatedMS -= 1000
		m.Samples = 0
	}

	m.Samples++
	m.Total++
}

// AverageMS is only refreshed once every AVG_COUNT samples.
func (m *ExecutionMetrics) AverageMS() float64 {
	return m.MSavg
}

func (m *ExecutionMetrics) Rate() float64 {
	return m.PerSecond
}

func (m *ExecutionMetrics) Count() uint64 {
	return m.Total
}
