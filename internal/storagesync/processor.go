package storagesync

import (
	"context"

	"storage-sync/internal/identity"
	"storage-sync/internal/record"
)

// Comparison is the result of comparing two records by identity.
type Comparison int

const (
	SameIdentity Comparison = iota
	DifferentIdentity
)

// Match is a local recipient resolved for a remote record.
type Match[R record.Record] struct {
	RecipientID identity.RecipientID
	// Record is the local record. Its storage id is always set; when the
	// recipient had none, a fresh id has been generated for it.
	Record R
	// PersistedID is the storage id stored locally before this pass.
	PersistedID record.StorageID
}

// RecordProcessor validates, matches, merges and applies one record kind.
// All methods except the Apply ones are pure over the pass snapshot.
type RecordProcessor[R record.Record] interface {
	// IsInvalid reports records that must be dropped before matching.
	IsInvalid(remote R) bool
	// FindLocalMatch resolves remote to a local recipient by identity.
	FindLocalMatch(remote R) (Match[R], bool)
	// Merge combines remote and local. It returns remote or local when the
	// merged content equals one of them, else a new record with a fresh id.
	Merge(remote, local R) R
	// Compare reports whether two records name the same identity.
	Compare(a, b R) Comparison
	ApplyInsert(ctx context.Context, w Writer, remote R) error
	ApplyUpdate(ctx context.Context, w Writer, id identity.RecipientID, old, updated R) error
}

// Writer is the local apply layer. Implementations are expected to run all
// calls of one pass inside a single transaction.
type Writer interface {
	InsertContact(ctx context.Context, c *record.Contact) error
	UpdateContact(ctx context.Context, id identity.RecipientID, c *record.Contact) error
	UpdateAccount(ctx context.Context, id identity.RecipientID, a *record.Account) error
	InsertGroupV1(ctx context.Context, g *record.GroupV1) error
	UpdateGroupV1(ctx context.Context, id identity.RecipientID, g *record.GroupV1) error
	InsertGroupV2(ctx context.Context, g *record.GroupV2) error
	UpdateGroupV2(ctx context.Context, id identity.RecipientID, g *record.GroupV2) error
	SetStorageID(ctx context.Context, id identity.RecipientID, storageID record.StorageID) error
}

// syncable is a record kind the driver can reconcile.
type syncable[R any] interface {
	record.Record
	ContentEqual(R) bool
}

// identityReleaser is implemented by kinds whose merged identity attributes
// can already belong to another local recipient.
type identityReleaser[R record.Record] interface {
	// Displaced returns the local recipients other than owner that hold an
	// identity attribute of merged. Their Record is the stored local record.
	Displaced(owner identity.RecipientID, merged R) []Match[R]
	// Release strips from holder every identity attribute it shares with
	// taker. The result has a fresh storage id, or a zero id when no identity
	// attribute is left.
	Release(holder, taker R) R
}
