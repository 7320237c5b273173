package imaging

// FlatThresholds decide when a raster lacks usable structure. The defaults
// are empirical; treat them as tunables rather than derived constants.
type FlatThresholds struct {
	// SampleStep is the stride, in bytes, between sampled pixels.
	SampleStep int

	// MinRange: a sampled max-min at or below this is flat.
	MinRange int

	// DarkMean and LightMean: a sampled mean at or below DarkMean, or at or
	// above LightMean, is flat.
	DarkMean  float64
	LightMean float64

	// MinVariance: a sampled variance below this is flat.
	MinVariance float64
}

// DefaultFlatThresholds returns stride 53, range 2, means 8/247, variance 8.
func DefaultFlatThresholds() FlatThresholds {
	return FlatThresholds{
		SampleStep:  53,
		MinRange:    2,
		DarkMean:    8,
		LightMean:   247,
		MinVariance: 8,
	}
}

func (t FlatThresholds) withDefaults() FlatThresholds {
	if t == (FlatThresholds{}) {
		return DefaultFlatThresholds()
	}
	if t.SampleStep <= 0 {
		t.SampleStep = DefaultFlatThresholds().SampleStep
	}
	return t
}

// FlatStats are cheap statistics over a strided sample of a buffer.
type FlatStats struct {
	Min      int     `json:"min"`
	Max      int     `json:"max"`
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
	Samples  int     `json:"samples"`
}

// SampleFlatness samples every step-th byte of buf. Variance uses the
// sample (n-1) denominator.
func SampleFlatness(buf []byte, step int) FlatStats {
	if step <= 0 {
		step = 1
	}
	if len(buf) == 0 {
		return FlatStats{}
	}

	s := FlatStats{Min: 255, Max: 0}
	sum := 0
	for i := 0; i < len(buf); i += step {
		v := int(buf[i])
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
		sum += v
		s.Samples++
	}
	s.Mean = float64(sum) / float64(s.Samples)

	var varSum float64
	for i := 0; i < len(buf); i += step {
		d := float64(buf[i]) - s.Mean
		varSum += d * d
	}
	denom := s.Samples - 1
	if denom < 1 {
		denom = 1
	}
	s.Variance = varSum / float64(denom)
	return s
}

// IsFlat applies the thresholds to s. An empty sample is flat.
func (t FlatThresholds) IsFlat(s FlatStats) bool {
	if s.Samples == 0 {
		return true
	}
	if s.Max-s.Min <= t.MinRange {
		return true
	}
	if s.Mean <= t.DarkMean || s.Mean >= t.LightMean {
		return true
	}
	return s.Variance < t.MinVariance
}
