// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package reconciler drives a charm's workload towards the state
// implied by its current relations and configuration. Every lifecycle
// event triggers the same full pass: publish derived relation data,
// check relation dependencies, synthesize configuration from remote
// credentials, provision trust material, push files and pebble layers
// into the workload container, and restart the services. The workload
// status reported at the end of a pass fully replaces whatever was
// reported before.
package reconciler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/kr/pretty"

	"github.com/fabi200123/legend-juju-libs/charm"
	"github.com/fabi200123/legend-juju-libs/core/relation"
	"github.com/fabi200123/legend-juju-libs/core/status"
	"github.com/fabi200123/legend-juju-libs/hook"
	"github.com/fabi200123/legend-juju-libs/truststore"
)

// Logger represents the methods used by the reconciler to log details
// of its progress.
type Logger interface {
	Errorf(string, ...interface{})
	Warningf(string, ...interface{})
	Debugf(string, ...interface{})
	Tracef(string, ...interface{})
}

// Container abstracts the subset of workload container operations the
// reconciler needs.
type Container interface {
	// CanConnect reports whether the container's pebble daemon is
	// reachable. While the daemon is still coming up the reconciler
	// waits rather than failing the pass.
	CanConnect() bool

	// WriteFile writes the given content into the container,
	// optionally creating missing parent directories.
	WriteFile(path string, content []byte, makeDirs bool) error

	// AddLayer combines the given layer into the container's pebble
	// plan under the given label.
	AddLayer(label string, layer charm.Layer) error
}

// ServiceSupervisor controls the lifecycle of the workload's services.
type ServiceSupervisor interface {
	Start(names []string) error
	Stop(names []string) error
	Restart(names []string) error
}

// Leadership reports whether this unit currently holds application
// leadership.
type Leadership interface {
	IsLeader() (bool, error)
}

// SynthesisFunc renders the workload's configuration files from the
// credentials of the currently established relations, keyed by
// relation name. Returning an error satisfying errors.IsNotYetAvailable
// reports that a relation is present but has not yet provided the
// parameters the workload needs; the error text is surfaced verbatim
// as the waiting status message.
type SynthesisFunc func(credentials map[string]relation.Settings) (*ConfigSet, error)

// TrustPreferencesFunc returns the JKS trust store the workload should
// receive, derived from the credentials of the currently established
// relations, or nil if the charm has no trust material to provision on
// this pass.
type TrustPreferencesFunc func(credentials map[string]relation.Settings) (*truststore.Preferences, error)

// Publication describes application data this charm announces on one
// of its relations. Derive is only invoked on the leader unit, and
// only while the relation has at least one instance.
type Publication struct {
	Relation string
	Derive   func() (relation.Settings, error)
}

// Config holds the dependencies and behaviour of a Reconciler.
type Config struct {
	Charm            *charm.Meta
	Relations        relation.Source
	Container        Container
	Supervisor       ServiceSupervisor
	Status           status.Setter
	Leadership       Leadership
	Synthesize       SynthesisFunc
	TrustPreferences TrustPreferencesFunc
	Publications     []Publication
	Layers           map[string]charm.Layer
	Clock            clock.Clock
	Logger           Logger
}

// Validate returns an error if the config cannot be used to drive
// reconciliation passes.
func (config Config) Validate() error {
	if config.Charm == nil {
		return errors.NotValidf("nil Charm")
	}
	if err := config.Charm.Validate(); err != nil {
		return errors.Trace(err)
	}
	if config.Relations == nil {
		return errors.NotValidf("nil Relations")
	}
	if config.Container == nil {
		return errors.NotValidf("nil Container")
	}
	if config.Supervisor == nil {
		return errors.NotValidf("nil Supervisor")
	}
	if config.Status == nil {
		return errors.NotValidf("nil Status")
	}
	if config.Leadership == nil {
		return errors.NotValidf("nil Leadership")
	}
	if config.Synthesize == nil {
		return errors.NotValidf("nil Synthesize")
	}
	for _, pub := range config.Publications {
		if pub.Relation == "" {
			return errors.NotValidf("publication without relation")
		}
		if pub.Derive == nil {
			return errors.NotValidf("publication %q without derivation", pub.Relation)
		}
		if _, ok := config.Charm.Requires[pub.Relation]; !ok {
			return errors.NotValidf("publication on undeclared relation %q", pub.Relation)
		}
	}
	for label, layer := range config.Layers {
		if err := layer.Validate(); err != nil {
			return errors.Annotatef(err, "layer %q", label)
		}
	}
	if config.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

// Reconciler runs reconciliation passes for a single charm unit.
type Reconciler struct {
	config Config
}

// New returns a Reconciler with the given config.
func New(config Config) (*Reconciler, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Reconciler{config: config}, nil
}

// Reconcile runs one full pass for the given lifecycle event. The
// event only explains why the pass is running; the pass itself always
// recomputes the workload's desired state from current relation data.
func (r *Reconciler) Reconcile(info hook.Info) error {
	if err := info.Validate(); err != nil {
		return errors.Trace(err)
	}
	r.config.Logger.Debugf("reconciling %q after %q event", r.config.Charm.Name, info.Kind)

	if err := r.publish(); err != nil {
		return errors.Trace(err)
	}

	present, err := r.presentRelations()
	if err != nil {
		return errors.Trace(err)
	}

	required := r.config.Charm.RequiredRelations()
	if missing := relation.Missing(required, present); len(missing) > 0 {
		r.stopServices()
		return r.setStatus(status.Blocked, fmt.Sprintf(
			"missing following relations: %s", strings.Join(missing, ", ")))
	}

	if !r.config.Container.CanConnect() {
		return r.setStatus(status.Waiting, "awaiting workload container readiness")
	}

	credentials, err := r.collectCredentials(present)
	if err != nil {
		return errors.Trace(err)
	}

	configs, err := r.config.Synthesize(credentials)
	if err != nil {
		if errors.IsNotYetAvailable(err) {
			return r.setStatus(status.Waiting, err.Error())
		}
		return errors.Trace(err)
	}
	r.config.Logger.Tracef("synthesized configuration files: %# v", pretty.Formatter(configs.Paths()))

	if r.config.TrustPreferences != nil {
		prefs, err := r.config.TrustPreferences(credentials)
		if err != nil {
			return errors.Trace(err)
		}
		if prefs != nil {
			if message := r.setupTruststore(prefs); message != "" {
				return r.setStatus(status.Blocked, message)
			}
		}
	}

	for _, file := range configs.Files() {
		if err := r.config.Container.WriteFile(file.Path, file.Content, true); err != nil {
			r.config.Logger.Errorf("cannot write configuration file %q: %v", file.Path, err)
			return r.setStatus(status.Blocked,
				"error(s) occurred while writing workload configuration files")
		}
	}

	for _, label := range sortedLabels(r.config.Layers) {
		if err := r.config.Container.AddLayer(label, r.config.Layers[label]); err != nil {
			r.config.Logger.Errorf("cannot add pebble layer %q: %v", label, err)
			return r.setStatus(status.Blocked,
				"error(s) occurred while updating the workload pebble layers")
		}
	}

	if err := r.config.Supervisor.Restart(r.config.Charm.Services); err != nil {
		return errors.Annotate(err, "restarting workload services")
	}

	return r.setStatus(status.Active, "")
}

// publish announces derived application data on every published
// relation that currently has an instance. Only the leader may write
// application databags, so derivation is skipped entirely on other
// units, and likewise while the target relation has no instance.
func (r *Reconciler) publish() error {
	if len(r.config.Publications) == 0 {
		return nil
	}
	isLeader, err := r.config.Leadership.IsLeader()
	if err != nil {
		return errors.Trace(err)
	}
	if !isLeader {
		r.config.Logger.Debugf("not leader, skipping relation data publication")
		return nil
	}
	for _, pub := range r.config.Publications {
		instances, err := r.config.Relations.Instances(pub.Relation)
		if err != nil {
			return errors.Trace(err)
		}
		if len(instances) == 0 {
			continue
		}
		data, err := pub.Derive()
		if err != nil {
			return errors.Annotatef(err, "deriving %q publication", pub.Relation)
		}
		for _, inst := range instances {
			if err := r.config.Relations.Publish(inst.Id, data); err != nil {
				return errors.Annotatef(err, "publishing to relation %q", pub.Relation)
			}
		}
	}
	return nil
}

// presentRelations returns the instances of every declared requires
// relation that is currently established.
func (r *Reconciler) presentRelations() (map[string][]relation.Instance, error) {
	present := make(map[string][]relation.Instance)
	for name := range r.config.Charm.Requires {
		instances, err := r.config.Relations.Instances(name)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if len(instances) > 0 {
			present[name] = instances
		}
	}
	return present, nil
}

// collectCredentials resolves the single readable instance of every
// established requires relation, keyed by relation name. Ambiguity is
// not swallowed here; a charm that can see two remote applications on
// a single-consumer relation needs operator attention.
func (r *Reconciler) collectCredentials(present map[string][]relation.Instance) (map[string]relation.Settings, error) {
	credentials := make(map[string]relation.Settings)
	for name := range r.config.Charm.Requires {
		inst, err := relation.One(name, present[name], -1, false)
		if errors.IsNotFound(err) {
			continue
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		credentials[name] = inst.Settings.Copy()
	}
	return credentials, nil
}

// stopServices makes a best effort attempt to stop the workload while
// its relation dependencies are unsatisfied. The blocked status
// carries the actionable information; a teardown failure only gets
// logged.
func (r *Reconciler) stopServices() {
	if !r.config.Container.CanConnect() {
		return
	}
	if err := r.config.Supervisor.Stop(r.config.Charm.Services); err != nil {
		r.config.Logger.Warningf("failed to stop workload services: %v", err)
	}
}

// setupTruststore provisions the charm's JKS trust material into the
// workload container. A non-empty result is the blocked status message
// to report; provisioning is attempted at most once per pass.
func (r *Reconciler) setupTruststore(prefs *truststore.Preferences) string {
	if err := prefs.Validate(); err != nil {
		r.config.Logger.Warningf("refusing to provision jks truststore: %v", err)
		return "invalid jks truststore preferences provided"
	}
	ks, err := truststore.Create(prefs.Certificates, r.config.Clock)
	if err != nil {
		return fmt.Sprintf("error(s) occurred while creating the jks truststore: %v", err)
	}
	data, err := truststore.Serialize(ks, prefs.Passphrase)
	if err != nil {
		return fmt.Sprintf("error(s) occurred while creating the jks truststore: %v", err)
	}
	if err := r.config.Container.WriteFile(prefs.Path, data, false); err != nil {
		r.config.Logger.Errorf("cannot write jks truststore to %q: %v", prefs.Path, err)
		return "error(s) occurred while adding jks trust store to the workload container"
	}
	return ""
}

func (r *Reconciler) setStatus(st status.Status, message string) error {
	now := r.config.Clock.Now()
	r.config.Logger.Debugf("setting workload status %q: %s", st, message)
	return errors.Trace(r.config.Status.SetStatus(status.StatusInfo{
		Status:  st,
		Message: message,
		Since:   &now,
	}))
}

func sortedLabels(layers map[string]charm.Layer) []string {
	labels := make([]string, 0, len(layers))
	for label := range layers {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
