package ratelimit

import (
	"testing"
	"time"

	"sslvpnworker/domain/session"
)

func TestTokenBucket(t *testing.T) {
	cases := []struct {
		name       string
		capacity   float64
		refillRate float64
		advance    time.Duration
		requests   []int
		want       []bool
	}{
		{
			name:       "within capacity allowed",
			capacity:   1000,
			refillRate: 100,
			requests:   []int{200, 200, 200},
			want:       []bool{true, true, true},
		},
		{
			name:       "exceeds capacity denied",
			capacity:   500,
			refillRate: 100,
			requests:   []int{400, 400},
			want:       []bool{true, false},
		},
		{
			name:       "refill after elapsed time",
			capacity:   100,
			refillRate: 100,
			advance:    time.Second,
			requests:   []int{100, 50, 50},
			want:       []bool{true, false, true},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bucket := &session.RateBucket{}
			clock := time.Now()
			tb := NewTokenBucket(bucket, tc.capacity, tc.refillRate)
			tb.now = func() time.Time { return clock }

			for i, n := range tc.requests {
				if i == len(tc.requests)-1 && tc.advance > 0 {
					clock = clock.Add(tc.advance)
				}
				got := tb.Allow(n)
				if got != tc.want[i] {
					t.Errorf("request %d: Allow(%d) = %v, want %v", i, n, got, tc.want[i])
				}
			}
		})
	}
}
