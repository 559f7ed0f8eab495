package domain

import (
	"fmt"
	"slices"
)

// Signature statuses.
const (
	StatusDeployed = "DEPLOYED"
	StatusNoisy    = "NOISY"
	StatusDisabled = "DISABLED"
	StatusStaging  = "STAGING"
	StatusTesting  = "TESTING"
	StatusInvalid  = "INVALID"
)

// StatusSets groups statuses by lifecycle role.
type StatusSets struct {
	Draft        []string `yaml:"draft"`
	Deployed     []string `yaml:"deployed"`
	Stale        []string `yaml:"stale"`
	NonExclusive []string `yaml:"non_exclusive"` // statuses that do not disable family siblings
}

// DefaultStatusSets returns the stock lifecycle.
func DefaultStatusSets() StatusSets {
	return StatusSets{
		Draft:        []string{StatusStaging, StatusTesting, StatusDisabled, StatusInvalid},
		Deployed:     []string{StatusDeployed, StatusNoisy},
		Stale:        []string{StatusDisabled, StatusInvalid},
		NonExclusive: []string{StatusDisabled, StatusInvalid, StatusTesting},
	}
}

// Known reports whether status belongs to the draft or deployed set.
func (s StatusSets) Known(status string) bool {
	return slices.Contains(s.Draft, status) || slices.Contains(s.Deployed, status)
}

func (s StatusSets) IsDraft(status string) bool     { return slices.Contains(s.Draft, status) }
func (s StatusSets) IsDeployed(status string) bool  { return slices.Contains(s.Deployed, status) }
func (s StatusSets) IsStale(status string) bool     { return slices.Contains(s.Stale, status) }
func (s StatusSets) IsExclusive(status string) bool { return !slices.Contains(s.NonExclusive, status) }

// Validate checks the sets are usable: stale statuses must be known, and a
// status cannot be both draft and deployed.
func (s StatusSets) Validate() error {
	if len(s.Draft) == 0 || len(s.Deployed) == 0 {
		return fmt.Errorf("draft and deployed status sets must not be empty")
	}
	for _, st := range s.Draft {
		if slices.Contains(s.Deployed, st) {
			return fmt.Errorf("status %s is both draft and deployed", st)
		}
	}
	for _, st := range s.Stale {
		if !s.Known(st) {
			return fmt.Errorf("stale status %s is neither draft nor deployed", st)
		}
	}
	return nil
}
