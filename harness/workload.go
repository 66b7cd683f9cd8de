// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package harness

import (
	"github.com/juju/collections/set"
	gitjujutesting "github.com/juju/testing"

	"github.com/fabi200123/legend-juju-libs/charm"
)

// Workload is an in-memory stand-in for a charm's sidecar container.
// It records every file push, layer update and service operation on
// its embedded Stub, and tracks enough state for tests to assert on
// outcomes rather than call sequences when they prefer.
type Workload struct {
	gitjujutesting.Stub

	connected bool
	files     map[string][]byte
	layers    map[string]charm.Layer
	running   set.Strings
}

func newWorkload() *Workload {
	return &Workload{
		files:   make(map[string][]byte),
		layers:  make(map[string]charm.Layer),
		running: set.NewStrings(),
	}
}

// CanConnect is part of the reconciler.Container interface.
func (w *Workload) CanConnect() bool {
	return w.connected
}

// WriteFile is part of the reconciler.Container interface.
func (w *Workload) WriteFile(path string, content []byte, makeDirs bool) error {
	w.MethodCall(w, "WriteFile", path, content, makeDirs)
	if err := w.NextErr(); err != nil {
		return err
	}
	stored := make([]byte, len(content))
	copy(stored, content)
	w.files[path] = stored
	return nil
}

// AddLayer is part of the reconciler.Container interface.
func (w *Workload) AddLayer(label string, layer charm.Layer) error {
	w.MethodCall(w, "AddLayer", label, layer)
	if err := w.NextErr(); err != nil {
		return err
	}
	w.layers[label] = layer
	return nil
}

// Start is part of the reconciler.ServiceSupervisor interface.
func (w *Workload) Start(names []string) error {
	w.MethodCall(w, "Start", names)
	if err := w.NextErr(); err != nil {
		return err
	}
	w.running = w.running.Union(set.NewStrings(names...))
	return nil
}

// Stop is part of the reconciler.ServiceSupervisor interface.
func (w *Workload) Stop(names []string) error {
	w.MethodCall(w, "Stop", names)
	if err := w.NextErr(); err != nil {
		return err
	}
	w.running = w.running.Difference(set.NewStrings(names...))
	return nil
}

// Restart is part of the reconciler.ServiceSupervisor interface.
func (w *Workload) Restart(names []string) error {
	w.MethodCall(w, "Restart", names)
	if err := w.NextErr(); err != nil {
		return err
	}
	w.running = w.running.Union(set.NewStrings(names...))
	return nil
}

// Connected reports whether the container has been marked ready.
func (w *Workload) Connected() bool {
	return w.connected
}

// File returns the content last written to the given path.
func (w *Workload) File(path string) ([]byte, bool) {
	content, ok := w.files[path]
	return content, ok
}

// Files returns the paths written so far, sorted.
func (w *Workload) Files() []string {
	paths := set.NewStrings()
	for path := range w.files {
		paths.Add(path)
	}
	return paths.SortedValues()
}

// Layer returns the layer last added under the given label.
func (w *Workload) Layer(label string) (charm.Layer, bool) {
	layer, ok := w.layers[label]
	return layer, ok
}

// Running returns the names of the services currently running, sorted.
func (w *Workload) Running() []string {
	return w.running.SortedValues()
}
