//go:build !cgo

package graph

import "errors"

// ErrKuzuUnavailable is returned when the binary was built without cgo.
var ErrKuzuUnavailable = errors.New("kuzu: persistent graph requires a cgo build")

// KuzuStore is unavailable without cgo.
type KuzuStore struct{ MemStore }

// NewKuzuStore reports that KuzuDB is unavailable.
func NewKuzuStore() (*KuzuStore, error) { return nil, ErrKuzuUnavailable }

// NewKuzuFileStore reports that KuzuDB is unavailable.
func NewKuzuFileStore(string) (*KuzuStore, error) { return nil, ErrKuzuUnavailable }
