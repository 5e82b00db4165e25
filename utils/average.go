package utils

// RollingAverage keeps the mean of the last N samples.
type RollingAverage struct {
	data   []float64
	pos    int
	filled int
}

func NewRollingAverage(numSamples int) *RollingAverage {
	if numSamples < 1 {
		numSamples = 1
	}
	return &RollingAverage{data: make([]float64, numSamples)}
}

func (ra *RollingAverage) NumSamples() int {
	return len(ra.data)
}

// Len returns how many samples have been added, capped at NumSamples.
func (ra *RollingAverage) Len() int {
	return ra.filled
}

func (ra *RollingAverage) Add(x float64) {
	ra.data[ra.pos] = x
	ra.pos++
	if ra.pos >= len(ra.data) {
		ra.pos = 0
	}
	if ra.filled < len(ra.data) {
		ra.filled++
	}
}

// Average returns the mean of the samples added so far. Zero when empty.
func (ra *RollingAverage) Average() float64 {
	if ra.filled == 0 {
		return 0
	}
	sum := 0.0
	for _, d := range ra.data[:ra.filled] {
		sum += d
	}
	return sum / float64(ra.filled)
}

func (ra *RollingAverage) Reset() {
	ra.pos = 0
	ra.filled = 0
}
