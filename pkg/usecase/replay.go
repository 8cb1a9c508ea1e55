package usecase

import "time"

// clockSkewTolerance is how far in the future a delivery timestamp may
// sit before it is rejected. Linear and this host will not agree on
// wall-clock time exactly, but anything past this is not skew.
const clockSkewTolerance = 30 * time.Second

// CheckTimestamp reports whether a delivery timestamp (epoch ms) is fresh
// enough to trust. Pure function: the caller supplies now. A zero or
// negative timestamp is rejected; the payload did not carry one.
func CheckTimestamp(eventMS, nowMS int64, maxAge time.Duration) bool {
	if eventMS <= 0 {
		return false
	}

	age := nowMS - eventMS
	if age > maxAge.Milliseconds() {
		return false
	}
	if -age > clockSkewTolerance.Milliseconds() {
		return false
	}

	return true
}
