package siomodem

import "time"

// EscapeDetector watches the outbound stream for the +++ escape. Three
// consecutive '+' arm it; any other byte disarms it. An armed detector
// expires once Guard has elapsed without further outbound bytes.
//
// No silence is required before the '+' run.
type EscapeDetector struct {
	Guard   time.Duration
	count   int
	armedAt time.Time
}

// Scan feeds outbound bytes seen at time now.
func (e *EscapeDetector) Scan(p []byte, now time.Time) {
	for _, b := range p {
		if b != '+' {
			e.count = 0
			continue
		}
		e.count++
		if e.count >= 3 {
			e.armedAt = now
		}
	}
}

// Armed reports whether the last outbound bytes were a +++ run.
func (e *EscapeDetector) Armed() bool {
	return e.count >= 3
}

// Expired reports whether the escape is armed and the guard time has passed.
func (e *EscapeDetector) Expired(now time.Time) bool {
	return e.Armed() && now.Sub(e.armedAt) >= e.Guard
}

// Reset disarms the detector.
func (e *EscapeDetector) Reset() {
	e.count = 0
	e.armedAt = time.Time{}
}
