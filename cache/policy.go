package cache

import "time"

// WeatherMaxAge is how long a weather lookup may be served from cache.
const WeatherMaxAge = 3600 * time.Second

// Policy decides whether a stored entry may still be served.
type Policy struct {
	// MaxAge is the age at which an entry stops being usable.
	// If zero, entries never expire.
	MaxAge time.Duration
}

// ForeverPolicy returns the policy used for soil and disease analyses: results
// are deterministic for their input and never expire.
func ForeverPolicy() Policy {
	return Policy{}
}

// WeatherPolicy returns the policy used for weather lookups.
func WeatherPolicy() Policy {
	return Policy{MaxAge: WeatherMaxAge}
}

// Expires returns true if entries under this policy can go stale.
func (p Policy) Expires() bool {
	return p.MaxAge > 0
}

// Fresh reports whether an entry stored at storedAt is usable at now.
// An entry is usable only while now - storedAt < MaxAge.
func (p Policy) Fresh(storedAt, now time.Time) bool {
	if !p.Expires() {
		return true
	}
	return now.Sub(storedAt) < p.MaxAge
}
