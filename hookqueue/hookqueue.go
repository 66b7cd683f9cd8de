// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package hookqueue provides the worker that feeds lifecycle events to
// a charm's reconciler. Events are handled strictly one at a time, in
// arrival order; a handler failure stops the worker so the surrounding
// runtime can surface the hook error and retry.
package hookqueue

import (
	"github.com/juju/errors"
	"github.com/juju/worker/v4/catacomb"

	"github.com/fabi200123/legend-juju-libs/hook"
)

// Logger represents the methods used by the hook queue to log details
// of its progress.
type Logger interface {
	Errorf(string, ...interface{})
	Debugf(string, ...interface{})
}

// Config holds the dependencies of a HookQueue.
type Config struct {
	// Handler is invoked for every event sent to the queue. It runs on
	// the queue's own goroutine, never concurrently with itself.
	Handler func(hook.Info) error

	Logger Logger
}

// Validate returns an error if the config cannot be used.
func (config Config) Validate() error {
	if config.Handler == nil {
		return errors.NotValidf("nil Handler")
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

// HookQueue delivers lifecycle events to a single handler, serially
// and in order.
type HookQueue struct {
	catacomb catacomb.Catacomb
	config   Config
	in       chan hook.Info
}

// New returns a running HookQueue with the given config.
func New(config Config) (*HookQueue, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	q := &HookQueue{
		config: config,
		in:     make(chan hook.Info),
	}
	err := catacomb.Invoke(catacomb.Plan{
		Site: &q.catacomb,
		Work: q.loop,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return q, nil
}

// Send hands the given event to the queue. It blocks until the queue
// accepts the event or stops.
func (q *HookQueue) Send(info hook.Info) error {
	if err := info.Validate(); err != nil {
		return errors.Trace(err)
	}
	select {
	case q.in <- info:
		return nil
	case <-q.catacomb.Dying():
		return errors.New("hook queue stopped")
	}
}

// Kill is part of the worker.Worker interface.
func (q *HookQueue) Kill() {
	q.catacomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (q *HookQueue) Wait() error {
	return q.catacomb.Wait()
}

func (q *HookQueue) loop() error {
	for {
		select {
		case <-q.catacomb.Dying():
			return q.catacomb.ErrDying()
		case info := <-q.in:
			q.config.Logger.Debugf("delivering %q hook", info.Kind)
			if err := q.config.Handler(info); err != nil {
				q.config.Logger.Errorf("%q hook failed: %v", info.Kind, err)
				return errors.Annotatef(err, "delivering %q hook", info.Kind)
			}
		}
	}
}
