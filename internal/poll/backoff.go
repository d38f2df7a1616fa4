package poll

import (
	"math"
	"time"
)

// maxInterval caps exponential backoff growth at five minutes.
const maxInterval = 5 * time.Minute

// NextInterval computes the spacing to use after the given number of
// consecutive failures: base * multiplier^retries, capped at maxInterval.
// A multiplier <= 1 disables widening.
func NextInterval(base time.Duration, multiplier float64, retries int) time.Duration {
	if base <= 0 {
		return 0
	}
	if multiplier <= 1 || retries <= 0 {
		if base > maxInterval {
			return maxInterval
		}
		return base
	}
	widened := float64(base) * math.Pow(multiplier, float64(retries))
	if widened > float64(maxInterval) || math.IsInf(widened, 1) {
		return maxInterval
	}
	return time.Duration(widened)
}
