// Package ratelimit throttles outbound device commands.
//
// Each command name has its own token bucket. A bucket starts full with
// Capacity tokens and refills at Capacity per Window. Commands without a
// configured bucket are never throttled.
//
//	l := ratelimit.New()
//	l.SetLimit("reboot", 3, time.Minute)
//	if !l.Allow("reboot") {
//	    wait := l.RetryAfter("reboot")
//	    ...
//	}
package ratelimit
