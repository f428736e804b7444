package domain

import (
	"fmt"
	"strings"
)

// OverduePolicy controls whether an overdue item is re-notified on every sweep.
type OverduePolicy string

const (
	// OverduePolicyRepeat raises a new Overdue notification on every sweep.
	OverduePolicyRepeat OverduePolicy = "repeat"
	// OverduePolicyOnce raises one Overdue notification per scheduled instant.
	OverduePolicyOnce OverduePolicy = "once"
)

func (p OverduePolicy) String() string { return string(p) }

func (p OverduePolicy) IsValid() bool {
	return p == OverduePolicyRepeat || p == OverduePolicyOnce
}

func ParseOverduePolicyFromString(s string) (OverduePolicy, error) {
	trimmed := strings.ToLower(strings.TrimSpace(s))
	if trimmed == "" {
		return OverduePolicyRepeat, nil
	}
	p := OverduePolicy(trimmed)
	if !p.IsValid() {
		return "", fmt.Errorf("%w: invalid overdue policy %q", ErrValidation, s)
	}
	return p, nil
}
