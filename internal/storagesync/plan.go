package storagesync

import (
	"storage-sync/internal/identity"
	"storage-sync/internal/record"
)

// WriteOp is the kind of a local write.
type WriteOp int

const (
	WriteInsert WriteOp = iota
	WriteUpdate
)

func (op WriteOp) String() string {
	if op == WriteInsert {
		return "insert"
	}
	return "update"
}

// LocalWrite is one entry of the local write batch. Inserts carry no
// RecipientID and no Old record. An update also persists New's storage id.
type LocalWrite struct {
	Op          WriteOp
	RecipientID identity.RecipientID
	Old         record.Record
	New         record.Record
}

// Assignment persists a storage id for a recipient whose content is unchanged.
type Assignment struct {
	RecipientID identity.RecipientID
	StorageID   record.StorageID
}

// Stats counts what a pass did with each remote record.
type Stats struct {
	Remote      int `json:"remote"`
	Invalid     int `json:"invalid"`
	Duplicates  int `json:"duplicates"`
	Unknown     int `json:"unknown"`
	Inserted    int `json:"inserted"`
	Updated     int `json:"updated"`
	Assigned    int `json:"assigned"`
	Unchanged   int `json:"unchanged"`
	Synthesized int `json:"synthesized"`
	LocalOnly   int `json:"local_only"`
	Released    int `json:"released"`
	Carried     int `json:"carried"`
}

// Plan is the outcome of one reconciliation pass.
type Plan struct {
	// Records is the outgoing canonical set, keyed uniquely by storage id.
	Records []record.Record
	// Inserts are the ids of Records the remote set does not have yet.
	Inserts []record.StorageID
	// Deletes are the remote ids absent from Records.
	Deletes []record.StorageID

	Writes      []LocalWrite
	Assignments []Assignment

	Stats Stats
}

// HasLocalChanges reports whether applying the plan touches the local store.
func (p *Plan) HasLocalChanges() bool {
	return len(p.Writes) > 0 || len(p.Assignments) > 0
}

// HasRemoteChanges reports whether the outgoing set differs from the remote set.
func (p *Plan) HasRemoteChanges() bool {
	return len(p.Inserts) > 0 || len(p.Deletes) > 0
}

// InsertRecords returns the records named by Inserts, in outgoing order.
func (p *Plan) InsertRecords() []record.Record {
	if len(p.Inserts) == 0 {
		return nil
	}
	wanted := make(map[record.StorageID]struct{}, len(p.Inserts))
	for _, id := range p.Inserts {
		wanted[id] = struct{}{}
	}
	out := make([]record.Record, 0, len(p.Inserts))
	for _, r := range p.Records {
		if _, ok := wanted[r.StorageID()]; ok {
			out = append(out, r)
		}
	}
	return out
}

// planBuilder accumulates results across record kinds.
type planBuilder struct {
	plan      *Plan
	remoteIDs map[record.StorageID]struct{}
	remote    []record.StorageID
	emitted   map[record.StorageID]struct{}
	claimed   map[identity.RecipientID]struct{}
}

func newPlanBuilder() *planBuilder {
	return &planBuilder{
		plan:      &Plan{},
		remoteIDs: make(map[record.StorageID]struct{}),
		emitted:   make(map[record.StorageID]struct{}),
		claimed:   make(map[identity.RecipientID]struct{}),
	}
}

// seeRemote registers a remote id. It reports false for an exact repeat.
func (b *planBuilder) seeRemote(id record.StorageID) bool {
	if _, ok := b.remoteIDs[id]; ok {
		return false
	}
	b.remoteIDs[id] = struct{}{}
	b.remote = append(b.remote, id)
	return true
}

func (b *planBuilder) isRemote(id record.StorageID) bool {
	_, ok := b.remoteIDs[id]
	return ok
}

// emit adds r to the outgoing set unless its id is already taken.
func (b *planBuilder) emit(r record.Record) bool {
	id := r.StorageID()
	if _, ok := b.emitted[id]; ok {
		return false
	}
	b.emitted[id] = struct{}{}
	b.plan.Records = append(b.plan.Records, r)
	return true
}

func (b *planBuilder) finish() *Plan {
	for _, r := range b.plan.Records {
		if !b.isRemote(r.StorageID()) {
			b.plan.Inserts = append(b.plan.Inserts, r.StorageID())
		}
	}
	for _, id := range b.remote {
		if _, ok := b.emitted[id]; !ok {
			b.plan.Deletes = append(b.plan.Deletes, id)
		}
	}
	return b.plan
}
