package application

// RateLimiter gates a single direction of traffic (spec §4.5: TX/RX
// rate limiting). Allow reports whether n bytes may pass right now;
// denials are silent drops at the call site (spec §4.5), never errors.
type RateLimiter interface {
	Allow(n int) bool
}
