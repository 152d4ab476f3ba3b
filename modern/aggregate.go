package modern

import (
	"gonum.org/v1/gonum/stat"

	"github.com/CK6170/Manocal-go/models"
)

// Reduce summarizes one step's samples. It reports false for an empty step.
// Extrema are taken over the integer readings; only mean and deviation go
// through float64.
func Reduce(samples []models.RawSample) (models.Summary, bool) {
	if len(samples) == 0 {
		return models.Summary{}, false
	}
	lo, hi := samples[0].ADC, samples[0].ADC
	values := make([]float64, len(samples))
	for i, s := range samples {
		lo = min(lo, s.ADC)
		hi = max(hi, s.ADC)
		values[i] = float64(s.ADC)
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	return models.Summary{
		N:      len(samples),
		Min:    lo,
		Max:    hi,
		Mean:   mean,
		StdDev: std,
	}, true
}
