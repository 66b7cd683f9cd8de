// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package hook provides types that describe the lifecycle events a
// charm reacts to.
package hook

import (
	"github.com/juju/errors"
	"github.com/juju/names/v5"
)

// Kind enumerates the hook kinds the reconciliation core dispatches on.
type Kind string

const (
	Install       Kind = "install"
	Start         Kind = "start"
	ConfigChanged Kind = "config-changed"
	UpgradeCharm  Kind = "upgrade-charm"
	Stop          Kind = "stop"
	Remove        Kind = "remove"
	LeaderElected Kind = "leader-elected"

	RelationJoined   Kind = "relation-joined"
	RelationChanged  Kind = "relation-changed"
	RelationDeparted Kind = "relation-departed"
	RelationBroken   Kind = "relation-broken"

	PebbleReady Kind = "pebble-ready"
)

// IsRelation returns whether the Kind represents a relation hook.
func (kind Kind) IsRelation() bool {
	switch kind {
	case RelationJoined, RelationChanged, RelationDeparted, RelationBroken:
		return true
	}
	return false
}

// Info holds details required to dispatch a hook. Not all fields are
// relevant to all Kind values.
type Info struct {
	Kind Kind `yaml:"kind"`

	// RelationName is the charm-local name of the relation associated
	// with the hook. It is only set when Kind indicates a relation hook.
	RelationName string `yaml:"relation-name,omitempty"`

	// RelationId identifies the relation instance associated with the
	// hook. It is only set when Kind indicates a relation hook.
	RelationId int `yaml:"relation-id,omitempty"`

	// RemoteApplication is the application on the other end of the
	// relation. It is only set when Kind indicates a relation hook.
	RemoteApplication string `yaml:"remote-application,omitempty"`

	// RemoteUnit is the name of the unit that triggered the hook. It is
	// only set when Kind indicates a relation hook other than
	// relation-broken.
	RemoteUnit string `yaml:"remote-unit,omitempty"`

	// Workload is the name of the container whose pebble daemon became
	// ready. It is only set when Kind is pebble-ready.
	Workload string `yaml:"workload,omitempty"`
}

// Validate returns an error if the info is not valid.
func (hi Info) Validate() error {
	switch hi.Kind {
	case RelationJoined, RelationChanged, RelationDeparted:
		if hi.RemoteUnit == "" {
			return errors.Errorf("%q hook requires a remote unit", hi.Kind)
		}
		if !names.IsValidUnit(hi.RemoteUnit) {
			return errors.NotValidf("remote unit %q", hi.RemoteUnit)
		}
		fallthrough
	case RelationBroken:
		if hi.RelationName == "" {
			return errors.Errorf("%q hook requires a relation name", hi.Kind)
		}
		return nil
	case PebbleReady:
		if hi.Workload == "" {
			return errors.Errorf("%q hook requires a workload name", hi.Kind)
		}
		return nil
	case Install, Start, ConfigChanged, UpgradeCharm, Stop, Remove, LeaderElected:
		return nil
	}
	return errors.Errorf("unknown hook kind %q", hi.Kind)
}
