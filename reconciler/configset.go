// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package reconciler

// File is one rendered configuration file destined for the workload
// container.
type File struct {
	Path    string
	Content []byte
}

// ConfigSet is an ordered collection of configuration files. Files are
// written to the container in insertion order; replacing a path's
// content keeps the path's original position, so the write sequence
// stays stable from pass to pass.
type ConfigSet struct {
	files []File
	index map[string]int
}

// NewConfigSet returns an empty ConfigSet.
func NewConfigSet() *ConfigSet {
	return &ConfigSet{index: make(map[string]int)}
}

// Add records content for the given path, replacing any previous
// content for it.
func (cs *ConfigSet) Add(path string, content []byte) {
	if i, ok := cs.index[path]; ok {
		cs.files[i].Content = content
		return
	}
	cs.index[path] = len(cs.files)
	cs.files = append(cs.files, File{Path: path, Content: content})
}

// Files returns the files in write order.
func (cs *ConfigSet) Files() []File {
	files := make([]File, len(cs.files))
	copy(files, cs.files)
	return files
}

// Paths returns the file paths in write order.
func (cs *ConfigSet) Paths() []string {
	paths := make([]string, 0, len(cs.files))
	for _, f := range cs.files {
		paths = append(paths, f.Path)
	}
	return paths
}

// Len returns the number of files held.
func (cs *ConfigSet) Len() int {
	return len(cs.files)
}
