package transport

import (
	"math"
	"time"
)

// DefaultSettleFactor scales the line time of a frame into its settle delay.
const DefaultSettleFactor = 3.5

// SettleDelay is the idle time waited before sending n bytes at baud,
// factor times the line time assuming 10 bits per byte, at least 2 ms.
func SettleDelay(n, baud int, factor float64) time.Duration {
	if n <= 0 || baud <= 0 {
		return 0
	}
	bytesPerMs := float64(baud) / 10000
	ms := int64(math.Ceil(factor * float64(n) / bytesPerMs))
	if ms < 2 {
		ms = 2
	}
	return time.Duration(ms) * time.Millisecond
}
