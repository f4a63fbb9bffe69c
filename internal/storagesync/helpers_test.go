package storagesync

import (
	"context"
	"errors"

	"storage-sync/internal/identity"
	"storage-sync/internal/record"

	"github.com/google/uuid"
)

// seqKeys hands out predictable ids tagged 0xEE so tests can tell them apart
// from fixture ids.
type seqKeys struct {
	n byte
}

func (k *seqKeys) Generate() record.StorageID {
	k.n++
	return record.StorageID{0xEE, k.n}
}

func sid(b byte) record.StorageID {
	return record.StorageID{b}
}

func addr(id uuid.UUID, e164 string) identity.Address {
	return identity.NewAddress(&id, e164)
}

func phoneOnly(e164 string) identity.Address {
	return identity.NewAddress(nil, e164)
}

func contact(id record.StorageID, a identity.Address, given string) *record.Contact {
	c := &record.Contact{ID: id, Address: a}
	if given != "" {
		c.GivenName = record.StringPtr(given)
	}
	return c
}

var selfID = uuid.MustParse("0b5c6a7e-2f0a-4b8e-9d3b-1f2e3d4c5b6a")

const selfPhone = "+15550001111"

func selfState(entries ...LocalEntry) *LocalState {
	return NewLocalState(&Self{
		RecipientID: 1,
		Address:     addr(selfID, selfPhone),
		Account:     &record.Account{ID: sid(0xA0), GivenName: record.StringPtr("Me")},
	}, entries)
}

// memWriter applies writes to an in-memory recipient table so a later pass
// can be reconciled against the result.
type memWriter struct {
	self    *Self
	entries map[identity.RecipientID]record.Record
	order   []identity.RecipientID
	nextID  identity.RecipientID
	calls   []string
	failOn  string
}

var errWriteFailed = errors.New("write failed")

func newMemWriter(state *LocalState) *memWriter {
	w := &memWriter{entries: make(map[identity.RecipientID]record.Record), nextID: 1000}
	if self, ok := state.Self(); ok {
		w.self = &self
	}
	for _, e := range state.Entries() {
		if w.self != nil && e.RecipientID == w.self.RecipientID {
			continue
		}
		w.entries[e.RecipientID] = e.Record
		w.order = append(w.order, e.RecipientID)
	}
	return w
}

func (w *memWriter) record(call string) error {
	w.calls = append(w.calls, call)
	if call == w.failOn {
		return errWriteFailed
	}
	return nil
}

func (w *memWriter) insert(r record.Record) {
	w.nextID++
	w.entries[w.nextID] = r
	w.order = append(w.order, w.nextID)
}

func (w *memWriter) InsertContact(_ context.Context, c *record.Contact) error {
	if err := w.record("insert_contact"); err != nil {
		return err
	}
	w.insert(c)
	return nil
}

func (w *memWriter) UpdateContact(_ context.Context, id identity.RecipientID, c *record.Contact) error {
	if err := w.record("update_contact"); err != nil {
		return err
	}
	w.entries[id] = c
	return nil
}

func (w *memWriter) UpdateAccount(_ context.Context, id identity.RecipientID, a *record.Account) error {
	if err := w.record("update_account"); err != nil {
		return err
	}
	w.self.Account = a
	return nil
}

func (w *memWriter) InsertGroupV1(_ context.Context, g *record.GroupV1) error {
	if err := w.record("insert_group_v1"); err != nil {
		return err
	}
	w.insert(g)
	return nil
}

func (w *memWriter) UpdateGroupV1(_ context.Context, id identity.RecipientID, g *record.GroupV1) error {
	if err := w.record("update_group_v1"); err != nil {
		return err
	}
	w.entries[id] = g
	return nil
}

func (w *memWriter) InsertGroupV2(_ context.Context, g *record.GroupV2) error {
	if err := w.record("insert_group_v2"); err != nil {
		return err
	}
	w.insert(g)
	return nil
}

func (w *memWriter) UpdateGroupV2(_ context.Context, id identity.RecipientID, g *record.GroupV2) error {
	if err := w.record("update_group_v2"); err != nil {
		return err
	}
	w.entries[id] = g
	return nil
}

func (w *memWriter) SetStorageID(_ context.Context, id identity.RecipientID, storageID record.StorageID) error {
	if err := w.record("set_storage_id"); err != nil {
		return err
	}
	if w.self != nil && id == w.self.RecipientID {
		a := *w.self.Account
		a.ID = storageID
		w.self.Account = &a
		return nil
	}
	switch r := w.entries[id].(type) {
	case *record.Contact:
		c := *r
		c.ID = storageID
		w.entries[id] = &c
	case *record.GroupV1:
		g := *r
		g.ID = storageID
		w.entries[id] = &g
	case *record.GroupV2:
		g := *r
		g.ID = storageID
		w.entries[id] = &g
	}
	return nil
}

// state rebuilds a snapshot from the written rows.
func (w *memWriter) state() *LocalState {
	entries := make([]LocalEntry, 0, len(w.order))
	for _, id := range w.order {
		entries = append(entries, LocalEntry{RecipientID: id, Record: w.entries[id]})
	}
	return NewLocalState(w.self, entries)
}
