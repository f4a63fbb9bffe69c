// Package remote defines the boundary to the remote storage service that
// holds the shared record set.
package remote

import (
	"context"
	"errors"

	"storage-sync/internal/record"
)

var (
	// ErrVersionConflict is returned by Write when another device pushed
	// since the manifest the write was based on.
	ErrVersionConflict = errors.New("remote manifest version conflict")
	// ErrUnknownStore is returned when no store is registered under a name.
	ErrUnknownStore = errors.New("unknown remote store")
)

// Manifest is one consistent read of the remote set.
type Manifest struct {
	Version int64
	Records []record.Record
}

// WriteOperation replaces part of the remote set. It applies only when the
// remote version still equals BaseVersion.
type WriteOperation struct {
	BaseVersion int64
	Inserts     []record.Record
	Deletes     []record.StorageID
}

// IsEmpty reports whether the write changes nothing.
func (op WriteOperation) IsEmpty() bool {
	return len(op.Inserts) == 0 && len(op.Deletes) == 0
}

// Store is the decoded view of the remote storage service. Transport and
// encryption live behind implementations of this interface.
type Store interface {
	Name() string
	// Fetch reads the current manifest and every record it names.
	Fetch(ctx context.Context) (*Manifest, error)
	// Write applies op atomically and returns the new manifest version.
	Write(ctx context.Context, op WriteOperation) (int64, error)
}
