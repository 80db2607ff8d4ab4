package shipper

import "strings"

// StatusRule maps every vendor code containing Match onto Status.
type StatusRule struct {
	Match  string
	Status TrackingStatus
}

// StatusMapper normalizes vendor tracking codes. Rules are tried in order
// with case-insensitive substring matching, so more specific fragments
// ("out_for_delivery") must precede broader ones ("delivery").
type StatusMapper struct {
	rules []StatusRule
}

// NewStatusMapper creates a mapper from ordered rules.
func NewStatusMapper(rules ...StatusRule) *StatusMapper {
	normalized := make([]StatusRule, len(rules))
	for i, r := range rules {
		normalized[i] = StatusRule{Match: strings.ToLower(r.Match), Status: r.Status}
	}
	return &StatusMapper{rules: normalized}
}

// Map returns the normalized status for code. A blank code maps to
// UNKNOWN. A code no rule recognizes maps to IN_TRANSIT with mapped=false
// so callers can surface the gap.
func (m *StatusMapper) Map(code string) (status TrackingStatus, mapped bool) {
	c := strings.ToLower(strings.TrimSpace(code))
	if c == "" {
		return StatusUnknown, true
	}
	for _, r := range m.rules {
		if strings.Contains(c, r.Match) {
			return r.Status, true
		}
	}
	return StatusInTransit, false
}
