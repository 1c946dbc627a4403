package utils

import (
	"fmt"
	"time"
)

// WIB is the operator's local timezone (UTC+7). Notifications and the
// monitor render timestamps in WIB regardless of server locale.
var WIB = time.FixedZone("WIB", 7*60*60)

// WIBTimestamp formats t as a WIB wall-clock string.
func WIBTimestamp(t time.Time) string {
	return t.In(WIB).Format("2006-01-02 15:04:05 MST")
}

// ResetTime resets the time component based on the granularity specified.
// Pass "minute" to reset seconds to zero.
// Pass "hour" to reset minutes and seconds to zero.
func ResetTime(t time.Time, granularity string) time.Time {
	switch granularity {
	case "minute":
		return t.Truncate(time.Minute) // Resets seconds to zero
	case "hour":
		return t.Truncate(time.Hour) // Resets minutes and seconds to zero
	default:
		fmt.Println("Invalid granularity. Please use 'minute' or 'hour'.")
		return t
	}
}
