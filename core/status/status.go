// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package status

import (
	"time"
)

// Status describes the condition of a charm workload as reported to the
// operator. Exactly one status is current for a unit at any time; each
// reconciliation pass replaces it wholesale rather than merging with
// whatever was reported before.
type Status string

// String returns a string representation of the Status.
func (s Status) String() string {
	return string(s)
}

// StatusInfo holds a Status and associated information.
type StatusInfo struct {
	Status  Status
	Message string
	Since   *time.Time
}

// Setter represents a type whose status can be set.
type Setter interface {
	SetStatus(StatusInfo) error
}

// Getter represents a type whose status can be read.
type Getter interface {
	Status() (StatusInfo, error)
}

const (
	// Unset is the initial placeholder status. It is reported before the
	// first reconciliation pass has had a chance to determine anything.
	Unset Status = "unset"

	// Maintenance is set when:
	// The workload is not yet providing services, but the unit is actively
	// doing stuff in preparation for providing them.
	// This is a "spinning" state, not an error state.
	Maintenance Status = "maintenance"

	// Waiting is set when:
	// The workload is unable to progress because something it needs from a
	// related application has not been provided yet. No operator action is
	// called for; the condition is expected to clear on its own.
	Waiting Status = "waiting"

	// Blocked is set when:
	// The workload needs manual intervention to get back to a working
	// state, typically because a required relation is absent or the
	// provided configuration cannot be applied.
	Blocked Status = "blocked"

	// Active is set when:
	// The workload believes it is correctly offering all the services it
	// has been asked to offer.
	Active Status = "active"
)

// KnownWorkloadStatus returns true if status has a known value for
// a workload.
func (s Status) KnownWorkloadStatus() bool {
	switch s {
	case Unset, Maintenance, Waiting, Blocked, Active:
		return true
	default:
		return false
	}
}
