package lkflow

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// PairStats summarizes the flow field of one frame pair.
type PairStats struct {
	// Index of the earlier frame of the pair.
	Index int
	// Mean, StdDev and Max of the vector magnitudes, in pixels.
	Mean   float64
	StdDev float64
	Max    float64
	// Moving is the fraction of pixels with a non zero vector.
	Moving float64
}

// FieldStats computes the magnitude statistics of a flow field.
func FieldStats(index int, f *Field) PairStats {
	ps := PairStats{Index: index}
	if len(f.Vectors) == 0 {
		return ps
	}

	var moving int
	mags := make([]float64, len(f.Vectors))
	for i, v := range f.Vectors {
		mags[i] = v.Magnitude()
		if !v.IsZero() {
			moving++
		}
	}

	ps.Mean, ps.StdDev = stat.MeanStdDev(mags, nil)
	if len(mags) == 1 {
		ps.StdDev = 0
	}
	ps.Max = floats.Max(mags)
	ps.Moving = float64(moving) / float64(len(mags))

	return ps
}

// StatsCollector accumulates the statistics of every processed pair.
type StatsCollector struct {
	Pairs []PairStats
}

// Observe records the statistics of the flow field computed for the pair starting at index.
func (c *StatsCollector) Observe(index int, f *Field) {
	c.Pairs = append(c.Pairs, FieldStats(index, f))
}

// MeanMagnitude returns the average of the per pair mean magnitudes.
func (c *StatsCollector) MeanMagnitude() float64 {
	if len(c.Pairs) == 0 {
		return 0
	}
	means := make([]float64, len(c.Pairs))
	for i, p := range c.Pairs {
		means[i] = p.Mean
	}
	return stat.Mean(means, nil)
}

// Busiest returns the pair with the largest fraction of moving pixels.
func (c *StatsCollector) Busiest() (PairStats, bool) {
	if len(c.Pairs) == 0 {
		return PairStats{}, false
	}
	moving := make([]float64, len(c.Pairs))
	for i, p := range c.Pairs {
		moving[i] = p.Moving
	}
	return c.Pairs[floats.MaxIdx(moving)], true
}
