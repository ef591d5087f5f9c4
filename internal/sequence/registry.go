package sequence

import "os"

// Registry is an ordered list of file handles kept open under the
// immediate-unlink policy. Entry i holds the handle for file number i; the
// verify phase consumes entries in the same order, since the directory entries
// no longer exist and no name-based open is possible.
type Registry struct {
	files []*os.File
}

// Append adds a handle to the registry.
func (r *Registry) Append(f *os.File) {
	r.files = append(r.files, f)
}

// Len returns the number of handles held.
func (r *Registry) Len() int {
	return len(r.files)
}

// At returns the handle for file number i.
func (r *Registry) At(i int) *os.File {
	return r.files[i]
}

// Close closes every handle in the registry. It returns the first error
// encountered, but always attempts to close all handles.
func (r *Registry) Close() error {
	var first error
	for _, f := range r.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	r.files = nil
	return first
}
