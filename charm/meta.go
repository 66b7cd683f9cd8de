// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package charm describes the static declaration a Legend charm makes
// about itself: the metadata naming its relations and workload
// container, and the pebble layers it installs into that container.
package charm

import (
	"io"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/schema"
	"gopkg.in/yaml.v2"
)

const (
	ScopeGlobal    = "global"
	ScopeContainer = "container"
)

// Relation represents a single relation defined in the charm
// metadata.yaml file.
type Relation struct {
	Interface string
	Optional  bool
	Limit     int
	Scope     string
}

// Meta represents the content of a charm's metadata.yaml file that the
// reconciliation core consumes.
type Meta struct {
	Name        string
	Summary     string
	Description string
	Requires    map[string]Relation

	// Container names the workload container the charm manages.
	Container string

	// Services lists the pebble services the charm supervises inside
	// the workload container.
	Services []string
}

// ReadMeta reads the content of a metadata.yaml file and returns
// its representation.
func ReadMeta(r io.Reader) (*Meta, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	raw := make(map[interface{}]interface{})
	if err := yaml.Unmarshal(data, raw); err != nil {
		return nil, errors.Trace(err)
	}
	v, err := charmSchema.Coerce(raw, nil)
	if err != nil {
		return nil, errors.Annotate(err, "metadata")
	}
	m := v.(map[string]interface{})
	meta := &Meta{}
	meta.Name = m["name"].(string)
	meta.Summary, _ = m["summary"].(string)
	meta.Description, _ = m["description"].(string)
	meta.Requires = parseRelations(m["requires"])
	meta.Container, _ = m["container"].(string)
	if services, ok := m["services"].([]interface{}); ok {
		for _, s := range services {
			meta.Services = append(meta.Services, s.(string))
		}
	}
	return meta, nil
}

// Validate returns an error if the metadata cannot drive a reconciler.
func (m Meta) Validate() error {
	if m.Name == "" {
		return errors.NotValidf("charm metadata without name")
	}
	if m.Container == "" {
		return errors.NotValidf("charm %q without workload container", m.Name)
	}
	if len(m.Services) == 0 {
		return errors.NotValidf("charm %q without workload services", m.Name)
	}
	for name, rel := range m.Requires {
		if rel.Interface == "" {
			return errors.NotValidf("relation %q without interface", name)
		}
	}
	return nil
}

// RequiredRelations returns the names of the non-optional requires
// relations, sorted.
func (m Meta) RequiredRelations() []string {
	required := set.NewStrings()
	for name, rel := range m.Requires {
		if !rel.Optional {
			required.Add(name)
		}
	}
	return required.SortedValues()
}

func parseRelations(relations interface{}) map[string]Relation {
	if relations == nil {
		return nil
	}
	result := make(map[string]Relation)
	for name, rel := range relations.(map[string]interface{}) {
		relMap := rel.(map[string]interface{})
		relation := Relation{}
		relation.Interface = relMap["interface"].(string)
		relation.Optional = relMap["optional"].(bool)
		if scope := relMap["scope"]; scope != nil {
			relation.Scope = scope.(string)
		}
		if relMap["limit"] != nil {
			// Schema decodes as int64, but the int range is more
			// than enough for relation counts.
			relation.Limit = int(relMap["limit"].(int64))
		}
		result[name] = relation
	}
	return result
}

// Schema coercer that expands the interface shorthand notation.
// A consistent format is easier to work with than considering the
// potential difference everywhere.
//
// Supports the following variants:
//
//	requires:
//	  db: legend_db
//	  gitlab:
//	    interface: legend_gitlab
//
//	requires:
//	  db:
//	    interface: legend_db
//	    limit:
//	    optional: false
//
// In all input cases, the output is the fully specified interface
// representation.
func ifaceExpander(limit interface{}) schema.Checker {
	return ifaceExpC{limit}
}

type ifaceExpC struct {
	limit interface{}
}

var (
	stringC = schema.String()
	mapC    = schema.StringMap(schema.Any())
)

func (c ifaceExpC) Coerce(v interface{}, path []string) (interface{}, error) {
	s, err := stringC.Coerce(v, path)
	if err == nil {
		return map[string]interface{}{
			"interface": s,
			"limit":     c.limit,
			"optional":  false,
			"scope":     ScopeGlobal,
		}, nil
	}

	// Optional values are context-sensitive and/or have defaults,
	// which is different from what FieldMap can readily support.
	// So just do it here first, then coerce to the real schema.
	v, err = mapC.Coerce(v, path)
	if err != nil {
		return nil, err
	}
	m := v.(map[string]interface{})
	if _, ok := m["limit"]; !ok {
		m["limit"] = c.limit
	}
	if _, ok := m["optional"]; !ok {
		m["optional"] = false
	}
	return ifaceSchema.Coerce(m, path)
}

var ifaceSchema = schema.FieldMap(
	schema.Fields{
		"interface": schema.String(),
		"limit":     schema.OneOf(schema.Const(nil), schema.Int()),
		"scope":     schema.OneOf(schema.Const(ScopeGlobal), schema.Const(ScopeContainer)),
		"optional":  schema.Bool(),
	},
	schema.Defaults{
		"scope": ScopeGlobal,
	},
)

var charmSchema = schema.FieldMap(
	schema.Fields{
		"name":        schema.String(),
		"summary":     schema.String(),
		"description": schema.String(),
		"requires":    schema.StringMap(ifaceExpander(int64(1))),
		"container":   schema.String(),
		"services":    schema.List(schema.String()),
	},
	schema.Defaults{
		"summary":     schema.Omit,
		"description": schema.Omit,
		"requires":    schema.Omit,
		"container":   schema.Omit,
		"services":    schema.Omit,
	},
)
