package resolve

import (
	"github.com/matsen/linkharvest/internal/heuristics"
)

// Policy is the single place numeric-looking titles are judged.
//
// Pass 1 accepts a non-empty candidate that does not look numeric; a
// confirmed DOI hit is accepted whenever non-empty. When pass 1 accepted
// nothing, saw a numeric-looking candidate and had no confirmed hit, pass 2
// accepts the first non-empty candidate. Whatever is emitted then goes
// through Gate.
type Policy struct {
	h *heuristics.Set
}

// NewPolicy returns a policy over h.
func NewPolicy(h *heuristics.Set) Policy {
	return Policy{h: h}
}

// Accept judges a candidate. numeric reports whether it was rejected only
// for looking numeric.
func (p Policy) Accept(c Candidate, forced bool) (ok, numeric bool) {
	if c.Title == "" {
		return false, false
	}
	if forced || c.Confirmed {
		return true, false
	}
	if p.h.LooksNumeric(c.Title) {
		return false, true
	}
	return true, false
}

// NeedsRetry reports whether the forced pass should run.
func (p Policy) NeedsRetry(sawNumeric, confirmed bool) bool {
	return sawNumeric && !confirmed
}

// Gate replaces a title that is mostly digits with the host placeholder.
func (p Policy) Gate(title, host string) (string, bool) {
	if title == "" || p.h.MostlyDigits(title) {
		return Placeholder(host), true
	}
	return title, false
}
