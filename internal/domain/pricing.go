package domain

import (
	"math"
	"time"
)

// EarlyCancellationRate is the share of the hourly price charged when a
// reservation is released before its planned start.
const EarlyCancellationRate = 0.25

type Charge struct {
	ElapsedHours      float64 `json:"elapsed_hours"`
	BilledHours       int     `json:"billed_hours"`
	Cost              float64 `json:"cost"`
	EarlyCancellation bool    `json:"early_cancellation"`
}

// ComputeCharge prices a stay from baseline to end. Whole hours are billed,
// rounded up, with a one hour minimum. Ending before baseline costs a flat
// fraction of the hourly price.
func ComputeCharge(pricePerHour float64, baseline, end time.Time) Charge {
	if end.Before(baseline) {
		return Charge{
			Cost:              RoundMoney(EarlyCancellationRate * pricePerHour),
			EarlyCancellation: true,
		}
	}
	elapsed := end.Sub(baseline).Hours()
	billed := int(math.Ceil(elapsed))
	if billed < 1 {
		billed = 1
	}
	return Charge{
		ElapsedHours: RoundMoney(elapsed),
		BilledHours:  billed,
		Cost:         RoundMoney(float64(billed) * pricePerHour),
	}
}

// RoundMoney rounds half away from zero to two decimals.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
