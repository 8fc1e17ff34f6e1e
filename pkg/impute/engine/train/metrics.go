package train

import (
	"math"

	"github.com/tigerroll/gapfill/pkg/impute/core/domain/model"
)

// Evaluate computes RMSE, MAE and R² of predictions against observations.
// With a constant observation series R² degenerates; it is reported as 1
// only for exact predictions and 0 otherwise.
func Evaluate(observed, predicted []float64) model.Metrics {
	n := len(observed)
	if n == 0 {
		return model.Metrics{}
	}

	mean := 0.0
	for _, y := range observed {
		mean += y
	}
	mean /= float64(n)

	var sse, sae, sst float64
	for i := 0; i < n; i++ {
		d := predicted[i] - observed[i]
		sse += d * d
		sae += math.Abs(d)
		dev := observed[i] - mean
		sst += dev * dev
	}

	r2 := 0.0
	if sst > 0 {
		r2 = 1 - sse/sst
	} else if sse == 0 {
		r2 = 1
	}

	return model.Metrics{
		RMSE: math.Sqrt(sse / float64(n)),
		MAE:  sae / float64(n),
		R2:   r2,
	}
}
