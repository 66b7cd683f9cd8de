// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package harness provides an in-memory test bed for charms built on
// the reconciler. It stands in for the juju controller and the
// workload container at once: tests mutate relations, configuration
// and leadership through it, and every mutation made after Begin
// drives the charm's reconciler with the lifecycle event a real
// controller would have delivered.
package harness

import (
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/juju/schema"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"
	"gopkg.in/juju/environschema.v1"

	"github.com/fabi200123/legend-juju-libs/charm"
	"github.com/fabi200123/legend-juju-libs/core/config"
	"github.com/fabi200123/legend-juju-libs/core/relation"
	"github.com/fabi200123/legend-juju-libs/core/status"
	"github.com/fabi200123/legend-juju-libs/hook"
	"github.com/fabi200123/legend-juju-libs/reconciler"
	coretesting "github.com/fabi200123/legend-juju-libs/testing"
	"github.com/fabi200123/legend-juju-libs/truststore"
)

// Publication describes application data the charm under test
// announces on one of its relations, derived from its current
// configuration.
type Publication struct {
	Relation string
	Derive   func(cfg *config.Config) (relation.Settings, error)
}

// Spec describes the charm under test: its metadata, configuration
// schema, and the behaviour it feeds the reconciler.
type Spec struct {
	Meta           *charm.Meta
	ConfigFields   environschema.Fields
	ConfigDefaults schema.Defaults

	// Synthesize renders the workload configuration files from charm
	// config and relation credentials.
	Synthesize func(cfg *config.Config, credentials map[string]relation.Settings) (*reconciler.ConfigSet, error)

	// TrustPreferences derives the charm's JKS trust material from its
	// config and relation credentials, if any.
	TrustPreferences func(cfg *config.Config, credentials map[string]relation.Settings) (*truststore.Preferences, error)

	Publications []Publication
	Layers       map[string]charm.Layer
}

type relationRecord struct {
	name      string
	id        int
	remoteApp string
	units     []string
	data      relation.Settings
	published relation.Settings
}

type statusRecorder struct {
	history []status.StatusInfo
}

func (s *statusRecorder) SetStatus(info status.StatusInfo) error {
	s.history = append(s.history, info)
	return nil
}

// Harness hosts one charm unit under test.
type Harness struct {
	spec  Spec
	now   time.Time
	clock *testclock.Clock

	raw config.Attributes
	cfg *config.Config

	relations      []*relationRecord
	nextRelationId int

	leader bool
	begun  bool

	workload *Workload
	status   *statusRecorder
	rec      *reconciler.Reconciler
}

// NewHarness returns a Harness for the given charm spec. The charm is
// not running until Begin or BeginWithInitialHooks is called; state
// set up before that point generates no lifecycle events.
func NewHarness(c *gc.C, spec Spec) *Harness {
	c.Assert(spec.Meta, gc.NotNil)
	c.Assert(spec.Meta.Validate(), jc.ErrorIsNil)
	c.Assert(spec.Synthesize, gc.NotNil)
	h := &Harness{
		spec:     spec,
		now:      time.Date(2021, 9, 1, 12, 0, 0, 0, time.UTC),
		raw:      config.Attributes{},
		workload: newWorkload(),
		status:   &statusRecorder{},
	}
	h.clock = testclock.NewClock(h.now)
	h.rebuildConfig(c)
	return h
}

func (h *Harness) rebuildConfig(c *gc.C) {
	cfg, err := config.New(h.raw, h.spec.ConfigFields, h.spec.ConfigDefaults)
	c.Assert(err, jc.ErrorIsNil)
	h.cfg = cfg
}

// Clock returns the harness clock. Reported status timestamps come
// from it.
func (h *Harness) Clock() *testclock.Clock {
	return h.clock
}

// Now returns the harness's fixed notion of the current time.
func (h *Harness) Now() time.Time {
	return h.now
}

// CharmConfig returns the charm's current coerced configuration.
func (h *Harness) CharmConfig() *config.Config {
	return h.cfg
}

// Workload returns the in-memory workload container.
func (h *Harness) Workload() *Workload {
	return h.workload
}

// Status returns the workload status the charm reported last.
func (h *Harness) Status() status.StatusInfo {
	if len(h.status.history) == 0 {
		return status.StatusInfo{Status: status.Unset}
	}
	return h.status.history[len(h.status.history)-1]
}

// StatusHistory returns every status the charm has reported, oldest
// first.
func (h *Harness) StatusHistory() []status.StatusInfo {
	history := make([]status.StatusInfo, len(h.status.history))
	copy(history, h.status.history)
	return history
}

// IsLeader reports the unit's current leadership flag.
func (h *Harness) IsLeader() bool {
	return h.leader
}

func (h *Harness) record(c *gc.C, relationId int) *relationRecord {
	for _, rec := range h.relations {
		if rec.id == relationId {
			return rec
		}
	}
	c.Fatalf("unknown relation id %d", relationId)
	return nil
}

// AddRelation establishes a relation with a remote application and
// returns its id. No events fire until a remote unit joins.
func (h *Harness) AddRelation(c *gc.C, name, remoteApp string) int {
	_, declared := h.spec.Meta.Requires[name]
	c.Assert(declared, jc.IsTrue, gc.Commentf("relation %q not declared in charm metadata", name))
	rec := &relationRecord{
		name:      name,
		id:        h.nextRelationId,
		remoteApp: remoteApp,
		data:      relation.Settings{},
	}
	h.nextRelationId++
	h.relations = append(h.relations, rec)
	return rec.id
}

// AddRelationUnit joins a remote unit to an established relation,
// emitting a relation-joined event if the charm is running.
func (h *Harness) AddRelationUnit(c *gc.C, relationId int, unitName string) {
	rec := h.record(c, relationId)
	rec.units = append(rec.units, unitName)
	if h.begun {
		h.emit(c, hook.Info{
			Kind:              hook.RelationJoined,
			RelationName:      rec.name,
			RelationId:        rec.id,
			RemoteApplication: rec.remoteApp,
			RemoteUnit:        unitName,
		})
	}
}

// UpdateRelationData merges the given settings into the remote
// application's databag, emitting a relation-changed event if the
// charm is running.
func (h *Harness) UpdateRelationData(c *gc.C, relationId int, data relation.Settings) {
	rec := h.record(c, relationId)
	c.Assert(rec.units, gc.Not(gc.HasLen), 0,
		gc.Commentf("relation %q has no remote unit to report the change", rec.name))
	for key, value := range data {
		rec.data[key] = value
	}
	if h.begun {
		h.emit(c, hook.Info{
			Kind:              hook.RelationChanged,
			RelationName:      rec.name,
			RelationId:        rec.id,
			RemoteApplication: rec.remoteApp,
			RemoteUnit:        rec.units[0],
		})
	}
}

// RemoveRelation tears a relation down, emitting relation-departed for
// each remote unit and a final relation-broken once the relation is
// gone from the model.
func (h *Harness) RemoveRelation(c *gc.C, relationId int) {
	rec := h.record(c, relationId)
	if h.begun {
		for _, unit := range rec.units {
			h.emit(c, hook.Info{
				Kind:              hook.RelationDeparted,
				RelationName:      rec.name,
				RelationId:        rec.id,
				RemoteApplication: rec.remoteApp,
				RemoteUnit:        unit,
			})
		}
	}
	filtered := h.relations[:0]
	for _, other := range h.relations {
		if other.id != relationId {
			filtered = append(filtered, other)
		}
	}
	h.relations = filtered
	if h.begun {
		h.emit(c, hook.Info{
			Kind:         hook.RelationBroken,
			RelationName: rec.name,
			RelationId:   rec.id,
		})
	}
}

// UpdateConfig merges the given attributes into the charm
// configuration, emitting a config-changed event if the charm is
// running.
func (h *Harness) UpdateConfig(c *gc.C, attrs config.Attributes) {
	for key, value := range attrs {
		h.raw[key] = value
	}
	h.rebuildConfig(c)
	if h.begun {
		h.emit(c, hook.Info{Kind: hook.ConfigChanged})
	}
}

// SetLeader flips the unit's leadership flag, emitting a
// leader-elected event when a running unit gains leadership.
func (h *Harness) SetLeader(c *gc.C, leader bool) {
	was := h.leader
	h.leader = leader
	if h.begun && leader && !was {
		h.emit(c, hook.Info{Kind: hook.LeaderElected})
	}
}

// ContainerReady marks the workload container's pebble daemon as
// reachable, emitting its pebble-ready event if the charm is running.
func (h *Harness) ContainerReady(c *gc.C) {
	h.workload.connected = true
	if h.begun {
		h.emit(c, hook.Info{Kind: hook.PebbleReady, Workload: h.spec.Meta.Container})
	}
}

// EmitConfigChanged delivers a config-changed event.
func (h *Harness) EmitConfigChanged(c *gc.C) {
	h.emit(c, hook.Info{Kind: hook.ConfigChanged})
}

// EmitUpgradeCharm delivers an upgrade-charm event.
func (h *Harness) EmitUpgradeCharm(c *gc.C) {
	h.emit(c, hook.Info{Kind: hook.UpgradeCharm})
}

// Begin starts the charm without emitting any lifecycle events.
func (h *Harness) Begin(c *gc.C) {
	c.Assert(h.begun, jc.IsFalse, gc.Commentf("harness already begun"))
	cfg := reconciler.Config{
		Charm:      h.spec.Meta,
		Relations:  harnessRelations{h},
		Container:  h.workload,
		Supervisor: h.workload,
		Status:     h.status,
		Leadership: harnessLeadership{h},
		Synthesize: func(credentials map[string]relation.Settings) (*reconciler.ConfigSet, error) {
			return h.spec.Synthesize(h.cfg, credentials)
		},
		Layers: h.spec.Layers,
		Clock:  h.clock,
		Logger: coretesting.NewCheckLogger(c),
	}
	if h.spec.TrustPreferences != nil {
		cfg.TrustPreferences = func(credentials map[string]relation.Settings) (*truststore.Preferences, error) {
			return h.spec.TrustPreferences(h.cfg, credentials)
		}
	}
	for i := range h.spec.Publications {
		pub := h.spec.Publications[i]
		cfg.Publications = append(cfg.Publications, reconciler.Publication{
			Relation: pub.Relation,
			Derive: func() (relation.Settings, error) {
				return pub.Derive(h.cfg)
			},
		})
	}
	rec, err := reconciler.New(cfg)
	c.Assert(err, jc.ErrorIsNil)
	h.rec = rec
	h.begun = true
}

// BeginWithInitialHooks starts the charm and emits the full startup
// sequence a fresh deployment sees: install, leader-elected for a
// leader, config-changed, start, the workload's pebble-ready, and
// join/change events for any relations established beforehand.
func (h *Harness) BeginWithInitialHooks(c *gc.C) {
	h.Begin(c)
	h.emit(c, hook.Info{Kind: hook.Install})
	if h.leader {
		h.emit(c, hook.Info{Kind: hook.LeaderElected})
	}
	h.emit(c, hook.Info{Kind: hook.ConfigChanged})
	h.emit(c, hook.Info{Kind: hook.Start})
	h.workload.connected = true
	h.emit(c, hook.Info{Kind: hook.PebbleReady, Workload: h.spec.Meta.Container})
	for _, rec := range h.relations {
		for _, unit := range rec.units {
			h.emit(c, hook.Info{
				Kind:              hook.RelationJoined,
				RelationName:      rec.name,
				RelationId:        rec.id,
				RemoteApplication: rec.remoteApp,
				RemoteUnit:        unit,
			})
		}
		if len(rec.units) > 0 && len(rec.data) > 0 {
			h.emit(c, hook.Info{
				Kind:              hook.RelationChanged,
				RelationName:      rec.name,
				RelationId:        rec.id,
				RemoteApplication: rec.remoteApp,
				RemoteUnit:        rec.units[0],
			})
		}
	}
}

// Emit delivers one lifecycle event to the charm and returns the
// reconciliation error, for tests exercising abnormal flows. The
// harness mutation helpers all assert success instead.
func (h *Harness) Emit(info hook.Info) error {
	if !h.begun {
		return errors.New("harness has not begun")
	}
	return h.rec.Reconcile(info)
}

func (h *Harness) emit(c *gc.C, info hook.Info) {
	c.Assert(h.Emit(info), jc.ErrorIsNil)
}

// PublishedData returns the application data the charm last published
// on the given relation.
func (h *Harness) PublishedData(c *gc.C, relationId int) relation.Settings {
	rec := h.record(c, relationId)
	return rec.published.Copy()
}

type harnessRelations struct {
	h *Harness
}

// Instances is part of the relation.Source interface.
func (r harnessRelations) Instances(name string) ([]relation.Instance, error) {
	var instances []relation.Instance
	for _, rec := range r.h.relations {
		if rec.name != name {
			continue
		}
		instances = append(instances, relation.Instance{
			Id:          rec.id,
			Application: rec.remoteApp,
			Settings:    rec.data.Copy(),
		})
	}
	return instances, nil
}

// Publish is part of the relation.Source interface.
func (r harnessRelations) Publish(relationId int, data relation.Settings) error {
	for _, rec := range r.h.relations {
		if rec.id == relationId {
			rec.published = data.Copy()
			return nil
		}
	}
	return errors.NotFoundf("relation %d", relationId)
}

type harnessLeadership struct {
	h *Harness
}

// IsLeader is part of the reconciler.Leadership interface.
func (l harnessLeadership) IsLeader() (bool, error) {
	return l.h.leader, nil
}
