// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package config provides schema-validated access to a charm's
// configuration options.
package config

import (
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/schema"
	"gopkg.in/juju/environschema.v1"
)

var logger = loggo.GetLogger("legend.core.config")

// Attributes is the raw key/value view of charm configuration.
type Attributes map[string]interface{}

// Config holds a charm's configuration attributes after coercion and
// defaulting against the charm's option schema.
type Config struct {
	attributes Attributes
}

// KnownKeys returns the configuration keys the schema declares.
func KnownKeys(fields environschema.Fields) set.Strings {
	keys := set.NewStrings()
	for field := range fields {
		keys.Add(field)
	}
	return keys
}

// New returns a Config built from the given attributes, validated and
// defaulted against the field schema. Keys outside the schema are
// rejected.
func New(attrs Attributes, fields environschema.Fields, defaults schema.Defaults) (*Config, error) {
	checkerFields, checkerDefaults, err := fields.ValidationSchema()
	if err != nil {
		return nil, errors.Trace(err)
	}
	for key, value := range defaults {
		checkerDefaults[key] = value
	}
	m := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		if _, ok := fields[k]; !ok {
			return nil, errors.Errorf("unknown key %q (value %q)", k, v)
		}
		m[k] = v
	}
	result, err := schema.FieldMap(checkerFields, checkerDefaults).Coerce(m, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Config{attributes: result.(map[string]interface{})}, nil
}

// Attributes returns a copy of all the config attributes.
func (c *Config) Attributes() Attributes {
	if c == nil {
		return nil
	}
	result := make(Attributes)
	for k, v := range c.attributes {
		result[k] = v
	}
	return result
}

// String returns the named option as a string, if set.
func (c *Config) String(name string) (string, bool) {
	v, ok := c.attributes[name].(string)
	return v, ok
}

// Int returns the named option as an int, if set.
func (c *Config) Int(name string) (int, bool) {
	// schema.Int coerces to int64.
	switch v := c.attributes[name].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	}
	return 0, false
}

// Bool returns the named option as a bool, if set.
func (c *Config) Bool(name string) (bool, bool) {
	v, ok := c.attributes[name].(bool)
	return v, ok
}

// LogLevel returns the logging level named by the given option. An
// unset option, or a value outside the supported set, yields false;
// invalid values are reported but never treated as errors, so a bad
// config change cannot wedge the charm.
func (c *Config) LogLevel(name string) (loggo.Level, bool) {
	v, ok := c.String(name)
	if !ok {
		return loggo.UNSPECIFIED, false
	}
	level, ok := loggo.ParseLevel(v)
	if !ok || !validWorkloadLogLevel(level) {
		logger.Warningf("invalid value %q for logging level option %q", v, name)
		return loggo.UNSPECIFIED, false
	}
	return level, true
}

func validWorkloadLogLevel(level loggo.Level) bool {
	switch level {
	case loggo.DEBUG, loggo.INFO, loggo.WARNING, loggo.ERROR, loggo.CRITICAL:
		return true
	default:
		return false
	}
}
