// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charm

import (
	"github.com/juju/errors"
	"gopkg.in/yaml.v2"
)

// Valid service override policies.
const (
	OverrideMerge   = "merge"
	OverrideReplace = "replace"
)

// Valid service startup modes.
const (
	StartupEnabled  = "enabled"
	StartupDisabled = "disabled"
)

// ServiceSpec defines one service within a pebble layer.
type ServiceSpec struct {
	Override    string            `yaml:"override,omitempty"`
	Summary     string            `yaml:"summary,omitempty"`
	Command     string            `yaml:"command"`
	Startup     string            `yaml:"startup,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty"`
	Requires    []string          `yaml:"requires,omitempty"`
	After       []string          `yaml:"after,omitempty"`
}

// Layer defines a pebble configuration layer: the services a charm
// wants running in its workload container, and how to run them.
type Layer struct {
	Summary     string                 `yaml:"summary,omitempty"`
	Description string                 `yaml:"description,omitempty"`
	Services    map[string]ServiceSpec `yaml:"services"`
}

// Validate returns an error if pebble could not load the layer.
func (l Layer) Validate() error {
	if len(l.Services) == 0 {
		return errors.NotValidf("layer without services")
	}
	for name, svc := range l.Services {
		if svc.Command == "" {
			return errors.NotValidf("service %q without command", name)
		}
		switch svc.Override {
		case "", OverrideMerge, OverrideReplace:
		default:
			return errors.NotValidf("service %q override %q", name, svc.Override)
		}
		switch svc.Startup {
		case "", StartupEnabled, StartupDisabled:
		default:
			return errors.NotValidf("service %q startup %q", name, svc.Startup)
		}
	}
	return nil
}

// Render serializes the layer to the YAML form pebble accepts.
func (l Layer) Render() ([]byte, error) {
	if err := l.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	data, err := yaml.Marshal(l)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return data, nil
}

// ParseLayer parses a YAML string into a Layer.
func ParseLayer(in string) (*Layer, error) {
	var layer Layer
	if err := yaml.Unmarshal([]byte(in), &layer); err != nil {
		return nil, errors.Trace(err)
	}
	if err := layer.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &layer, nil
}
