package cache

import "time"

/* Options overrides the namespace default TTL for a single Set
 * nil or 0 means no expiry, > 0 expires after that many seconds
 */
type Options struct {
	TTLSeconds *uint32
}

// TTL returns Options that expire the entry after seconds
func TTL(seconds uint32) Options {
	return Options{TTLSeconds: &seconds}
}

// NoExpiry returns Options that keep the entry until it is deleted or overwritten
func NoExpiry() Options {
	return Options{}
}

func (o Options) duration() time.Duration {
	if o.TTLSeconds == nil {
		return 0
	}
	return time.Duration(*o.TTLSeconds) * time.Second
}
