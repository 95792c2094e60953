// ABOUTME: Sample time to host time filter
// ABOUTME: Linear regression over recent callbacks smooths scheduling jitter
package link

import "math"

// DefaultFilterPoints is the regression window
const DefaultFilterPoints = 512

// HostTimeFilter maps the running sample count of a stream to host time.
// Each call records (sampleTime, now) and returns the regression line
// evaluated at sampleTime, so callback jitter does not leak into the
// timeline. It is not safe for concurrent use; the audio callback owns it.
type HostTimeFilter struct {
	clock Clock
	xs    []float64
	ys    []float64
	n     int
	next  int
}

// NewHostTimeFilter creates a filter with the given window (0 = default)
func NewHostTimeFilter(clock Clock, points int) *HostTimeFilter {
	if points < 2 {
		points = DefaultFilterPoints
	}
	return &HostTimeFilter{
		clock: clock,
		xs:    make([]float64, points),
		ys:    make([]float64, points),
	}
}

// SampleTimeToHostTime records a point and returns the filtered host time
func (f *HostTimeFilter) SampleTimeToHostTime(sampleTime float64) int64 {
	host := f.clock.Micros()

	f.xs[f.next] = sampleTime
	f.ys[f.next] = float64(host)
	f.next = (f.next + 1) % len(f.xs)
	if f.n < len(f.xs) {
		f.n++
	}

	slope, intercept, ok := f.regress()
	if !ok {
		return host
	}
	return int64(math.Round(slope*sampleTime + intercept))
}

// Reset discards recorded points
func (f *HostTimeFilter) Reset() {
	f.n = 0
	f.next = 0
}

// regress fits y = slope*x + intercept using centered sums
func (f *HostTimeFilter) regress() (slope, intercept float64, ok bool) {
	if f.n < 2 {
		return 0, 0, false
	}

	var sumX, sumY float64
	for i := 0; i < f.n; i++ {
		sumX += f.xs[i]
		sumY += f.ys[i]
	}
	meanX := sumX / float64(f.n)
	meanY := sumY / float64(f.n)

	var sxx, sxy float64
	for i := 0; i < f.n; i++ {
		dx := f.xs[i] - meanX
		sxx += dx * dx
		sxy += dx * (f.ys[i] - meanY)
	}
	if sxx == 0 {
		return 0, 0, false
	}

	slope = sxy / sxx
	intercept = meanY - slope*meanX
	return slope, intercept, true
}
