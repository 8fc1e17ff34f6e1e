package train

// MinMaxScaler normalizes values into [0, 1] using the range observed on the
// training portion only. The same fitted scaler is applied to validation
// windows and, later, to prediction inputs, so no statistics leak across the
// chronological split.
type MinMaxScaler struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// FitScaler fits a scaler over the given values.
// A degenerate (constant) range is kept as-is; Transform maps it to 0.
func FitScaler(values []float64) *MinMaxScaler {
	if len(values) == 0 {
		return &MinMaxScaler{}
	}
	s := &MinMaxScaler{Min: values[0], Max: values[0]}
	for _, v := range values[1:] {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	return s
}

// Transform maps a raw value into the fitted [0, 1] range.
func (s *MinMaxScaler) Transform(v float64) float64 {
	if s.Max == s.Min {
		return 0
	}
	return (v - s.Min) / (s.Max - s.Min)
}

// Inverse maps a scaled value back to the raw range.
func (s *MinMaxScaler) Inverse(v float64) float64 {
	return v*(s.Max-s.Min) + s.Min
}

// TransformSlice returns a new slice with every element transformed.
func (s *MinMaxScaler) TransformSlice(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = s.Transform(v)
	}
	return out
}
