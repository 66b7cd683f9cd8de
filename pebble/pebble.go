// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package pebble adapts the pebble daemon running inside a sidecar
// workload container to the container and service supervision
// interfaces the reconciler consumes. Each charm container exposes its
// pebble socket on the charm filesystem; everything the charm does to
// the workload goes through that socket.
package pebble

import (
	"bytes"
	"fmt"
	"time"

	"github.com/canonical/pebble/client"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"

	"github.com/fabi200123/legend-juju-libs/charm"
)

// Logger represents the methods used by the workload adapter to log
// details of its progress.
type Logger interface {
	Errorf(string, ...interface{})
	Warningf(string, ...interface{})
	Debugf(string, ...interface{})
	Tracef(string, ...interface{})
}

// Client is the subset of the pebble API the workload adapter uses.
type Client interface {
	SysInfo() (*client.SysInfo, error)
	Push(opts *client.PushOptions) error
	AddLayer(opts *client.AddLayerOptions) error
	Start(opts *client.ServiceOptions) (string, error)
	Stop(opts *client.ServiceOptions) (string, error)
	Restart(opts *client.ServiceOptions) (string, error)
	WaitChange(id string, opts *client.WaitChangeOptions) (*client.Change, error)
}

const (
	defaultConnectAttempts = 3
	defaultConnectDelay    = time.Second
	defaultChangeTimeout   = 30 * time.Second

	filePermissions = 0o644
)

// SocketPath returns the pebble socket path mounted on the charm
// filesystem for the named workload container.
func SocketPath(container string) string {
	return fmt.Sprintf("/charm/containers/%s/pebble.socket", container)
}

// NewClient returns a pebble API client talking over the given unix
// socket.
func NewClient(socket string) (Client, error) {
	pebbleClient, err := client.New(&client.Config{Socket: socket})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return pebbleClient, nil
}

// Config holds the dependencies and tuning of a Workload.
type Config struct {
	Client Client
	Clock  clock.Clock
	Logger Logger

	// ConnectAttempts and ConnectDelay bound the readiness probe; a
	// freshly started container can take a moment to bring its pebble
	// socket up.
	ConnectAttempts int
	ConnectDelay    time.Duration

	// ChangeTimeout bounds how long a service operation may take
	// before the pending change is abandoned.
	ChangeTimeout time.Duration
}

// Validate returns an error if the config cannot be used.
func (config Config) Validate() error {
	if config.Client == nil {
		return errors.NotValidf("nil Client")
	}
	if config.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

// Workload drives one sidecar workload container over its pebble
// socket. It implements the reconciler's Container and
// ServiceSupervisor interfaces.
type Workload struct {
	config Config
}

// New returns a Workload with the given config.
func New(config Config) (*Workload, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if config.ConnectAttempts <= 0 {
		config.ConnectAttempts = defaultConnectAttempts
	}
	if config.ConnectDelay <= 0 {
		config.ConnectDelay = defaultConnectDelay
	}
	if config.ChangeTimeout <= 0 {
		config.ChangeTimeout = defaultChangeTimeout
	}
	return &Workload{config: config}, nil
}

// CanConnect probes the pebble daemon.
func (w *Workload) CanConnect() bool {
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			_, err := w.config.Client.SysInfo()
			return err
		},
		Attempts: w.config.ConnectAttempts,
		Delay:    w.config.ConnectDelay,
		Clock:    w.config.Clock,
	})
	if err != nil {
		w.config.Logger.Debugf("pebble daemon not reachable: %v", err)
		return false
	}
	return true
}

// WriteFile pushes the given content into the workload container.
func (w *Workload) WriteFile(path string, content []byte, makeDirs bool) error {
	w.config.Logger.Debugf("pushing %d bytes to %q", len(content), path)
	err := w.config.Client.Push(&client.PushOptions{
		Source:      bytes.NewReader(content),
		Path:        path,
		MakeDirs:    makeDirs,
		Permissions: filePermissions,
	})
	if err != nil {
		return errors.Annotatef(err, "pushing file %q to workload", path)
	}
	return nil
}

// AddLayer combines the given layer into the container's pebble plan.
func (w *Workload) AddLayer(label string, layer charm.Layer) error {
	data, err := layer.Render()
	if err != nil {
		return errors.Trace(err)
	}
	err = w.config.Client.AddLayer(&client.AddLayerOptions{
		Combine:   true,
		Label:     label,
		LayerData: data,
	})
	if err != nil {
		return errors.Annotatef(err, "adding pebble layer %q", label)
	}
	return nil
}

// Start starts the named services and waits for the change to
// complete.
func (w *Workload) Start(names []string) error {
	return w.runServiceChange("start", names)
}

// Stop stops the named services and waits for the change to complete.
func (w *Workload) Stop(names []string) error {
	return w.runServiceChange("stop", names)
}

// Restart restarts the named services and waits for the change to
// complete. Services not yet running are simply started.
func (w *Workload) Restart(names []string) error {
	return w.runServiceChange("restart", names)
}

func (w *Workload) runServiceChange(kind string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	opts := &client.ServiceOptions{Names: names}
	var (
		changeId string
		err      error
	)
	switch kind {
	case "start":
		changeId, err = w.config.Client.Start(opts)
	case "stop":
		changeId, err = w.config.Client.Stop(opts)
	case "restart":
		changeId, err = w.config.Client.Restart(opts)
	}
	if err != nil {
		return errors.Annotatef(err, "requesting %s of services %v", kind, names)
	}
	w.config.Logger.Debugf("waiting for %s change %s", kind, changeId)
	change, err := w.config.Client.WaitChange(changeId, &client.WaitChangeOptions{
		Timeout: w.config.ChangeTimeout,
	})
	if err != nil {
		return errors.Annotatef(err, "waiting for %s change %s", kind, changeId)
	}
	if change.Err != "" {
		return errors.Errorf("%s change %s failed: %s", kind, change.ID, change.Err)
	}
	return nil
}
