// Package storage abstracts where converted artifacts land and where
// source files come from. The engine itself never touches the
// filesystem; only the CLI wires a backend in.
package storage

import (
	"context"
	"io"

	"mediaconv/media"
)

// Item describes one stored artifact.
type Item struct {
	Path string
	Size int
}

type Storage interface {
	// Fetch loads a source artifact, typed by its extension.
	Fetch(ctx context.Context, path string) (*media.Blob, error)

	// Put persists an artifact under the given name.
	Put(ctx context.Context, name string, source io.Reader) (Item, error)
}
