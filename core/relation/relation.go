// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package relation models the slice of the relation data model a charm
// needs for reconciliation: the relations its metadata declares, the
// instances of them currently established, and the application data
// published on each.
package relation

// Requirement describes one relation a charm declares in its metadata.
type Requirement struct {
	// Name is the charm-local relation name.
	Name string

	// Interface names the interface both ends of the relation must
	// agree on.
	Interface string

	// Optional is true when the workload can run without the relation
	// being established.
	Optional bool

	// Limit bounds how many remote applications may be related at once.
	// A limit of 1 means at most one; 0 means unbounded.
	Limit int
}

// Settings holds the data one side of a relation has published. The
// values are opaque here; decoding them is the business of whoever
// consumes the relation.
type Settings map[string]string

// Copy returns an independent copy of the settings.
func (s Settings) Copy() Settings {
	copied := make(Settings, len(s))
	for k, v := range s {
		copied[k] = v
	}
	return copied
}

// Instance is one established relation: the id assigned when the
// relation was created, the remote application name, and the
// application data published by the remote side.
type Instance struct {
	Id          int
	Application string
	Settings    Settings
}

// Source provides the relation data a unit can observe, and the
// application databag it can publish to while it holds leadership.
type Source interface {
	// Instances returns the established instances of the named
	// relation, if any.
	Instances(name string) ([]Instance, error)

	// Publish merges data into this application's databag on the
	// given relation instance.
	Publish(relationId int, data Settings) error
}
