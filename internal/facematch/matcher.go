// Package facematch decides whether a probe descriptor belongs to an enrolled identity.
package facematch

import (
	"math"

	"github.com/kozaktomas/face-auth/internal/descriptor"
	"github.com/kozaktomas/face-auth/internal/identity"
)

// DefaultThreshold is the maximum Euclidean distance (exclusive) for a match.
const DefaultThreshold = 0.6

// Outcome is the result of matching a probe against the enrolled identities.
// Name is empty when the probe was rejected; Distance always holds the nearest
// distance found (+Inf when there were no candidates).
type Outcome struct {
	Accepted bool
	Name     string
	Distance float64
}

// Matcher performs exact nearest-neighbour matching with a fixed threshold.
type Matcher struct {
	threshold float64
}

// NewMatcher creates a matcher. A non-positive threshold falls back to DefaultThreshold.
func NewMatcher(threshold float64) *Matcher {
	if threshold <= 0 || math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		threshold = DefaultThreshold
	}
	return &Matcher{threshold: threshold}
}

// Threshold returns the configured acceptance threshold.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Accepts reports whether distance is strictly below the threshold.
func (m *Matcher) Accepts(distance float64) bool {
	return distance < m.threshold
}

// FindBestMatch compares probe with every candidate. The smallest distance wins;
// on ties the earliest candidate wins.
func (m *Matcher) FindBestMatch(probe descriptor.Descriptor, candidates []identity.Identity) Outcome {
	best := -1
	bestDistance := math.Inf(1)
	for i, c := range candidates {
		d := descriptor.Distance(probe, c.Descriptor)
		if d < bestDistance {
			best = i
			bestDistance = d
		}
	}

	if best < 0 || !m.Accepts(bestDistance) {
		return Outcome{Distance: bestDistance}
	}
	return Outcome{Accepted: true, Name: candidates[best].Name, Distance: bestDistance}
}
