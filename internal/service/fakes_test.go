package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"storage-sync/internal/identity"
	"storage-sync/internal/record"
	"storage-sync/internal/remote"
	"storage-sync/internal/repository"
	"storage-sync/internal/storagesync"

	"github.com/stretchr/testify/mock"
)

// fakeRecipients is an in-memory RecipientStore. WithinTx stages writes on a
// copy and only keeps them when the callback succeeds.
type fakeRecipients struct {
	mu        sync.Mutex
	state     *recipientTable
	failWrite error
}

type recipientTable struct {
	self   *storagesync.Self
	rows   map[identity.RecipientID]record.Record
	order  []identity.RecipientID
	nextID identity.RecipientID
}

func newFakeRecipients(self *storagesync.Self, entries ...storagesync.LocalEntry) *fakeRecipients {
	t := &recipientTable{self: self, rows: make(map[identity.RecipientID]record.Record), nextID: 100}
	for _, e := range entries {
		t.rows[e.RecipientID] = e.Record
		t.order = append(t.order, e.RecipientID)
	}
	return &fakeRecipients{state: t}
}

func (t *recipientTable) clone() *recipientTable {
	c := &recipientTable{
		rows:   make(map[identity.RecipientID]record.Record, len(t.rows)),
		order:  append([]identity.RecipientID(nil), t.order...),
		nextID: t.nextID,
	}
	if t.self != nil {
		self := *t.self
		c.self = &self
	}
	for k, v := range t.rows {
		c.rows[k] = v
	}
	return c
}

func (f *fakeRecipients) LoadSnapshot(_ context.Context) (*storagesync.LocalState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := f.state.clone()
	entries := make([]storagesync.LocalEntry, 0, len(t.order))
	for _, id := range t.order {
		entries = append(entries, storagesync.LocalEntry{RecipientID: id, Record: t.rows[id]})
	}
	return storagesync.NewLocalState(t.self, entries), nil
}

func (f *fakeRecipients) WithinTx(_ context.Context, fn func(storagesync.Writer) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tx := &fakeTx{table: f.state.clone(), fail: f.failWrite}
	if err := fn(tx); err != nil {
		return err
	}
	f.state = tx.table
	return nil
}

// contacts returns every contact keyed by service id.
func (f *fakeRecipients) contacts() map[string]*record.Contact {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]*record.Contact)
	for _, r := range f.state.rows {
		if c, ok := r.(*record.Contact); ok {
			out[c.Address.ServiceID.UUID.String()] = c
		}
	}
	return out
}

type fakeTx struct {
	table *recipientTable
	fail  error
}

func (tx *fakeTx) put(id identity.RecipientID, r record.Record) error {
	if tx.fail != nil {
		return tx.fail
	}
	if _, ok := tx.table.rows[id]; !ok {
		return errors.New("recipient not found")
	}
	tx.table.rows[id] = r
	return nil
}

func (tx *fakeTx) insert(r record.Record) error {
	if tx.fail != nil {
		return tx.fail
	}
	tx.table.nextID++
	tx.table.rows[tx.table.nextID] = r
	tx.table.order = append(tx.table.order, tx.table.nextID)
	return nil
}

func (tx *fakeTx) InsertContact(_ context.Context, c *record.Contact) error {
	return tx.insert(c)
}

func (tx *fakeTx) UpdateContact(_ context.Context, id identity.RecipientID, c *record.Contact) error {
	return tx.put(id, c)
}

func (tx *fakeTx) UpdateAccount(_ context.Context, _ identity.RecipientID, a *record.Account) error {
	if tx.fail != nil {
		return tx.fail
	}
	tx.table.self.Account = a
	return nil
}

func (tx *fakeTx) InsertGroupV1(_ context.Context, g *record.GroupV1) error {
	return tx.insert(g)
}

func (tx *fakeTx) UpdateGroupV1(_ context.Context, id identity.RecipientID, g *record.GroupV1) error {
	return tx.put(id, g)
}

func (tx *fakeTx) InsertGroupV2(_ context.Context, g *record.GroupV2) error {
	return tx.insert(g)
}

func (tx *fakeTx) UpdateGroupV2(_ context.Context, id identity.RecipientID, g *record.GroupV2) error {
	return tx.put(id, g)
}

func (tx *fakeTx) SetStorageID(_ context.Context, id identity.RecipientID, storageID record.StorageID) error {
	if tx.fail != nil {
		return tx.fail
	}
	if tx.table.self != nil && id == tx.table.self.RecipientID {
		a := *tx.table.self.Account
		a.ID = storageID
		tx.table.self.Account = &a
		return nil
	}
	switch r := tx.table.rows[id].(type) {
	case *record.Contact:
		c := *r
		c.ID = storageID
		return tx.put(id, &c)
	case *record.GroupV1:
		g := *r
		g.ID = storageID
		return tx.put(id, &g)
	case *record.GroupV2:
		g := *r
		g.ID = storageID
		return tx.put(id, &g)
	}
	return errors.New("recipient not found")
}

// fakePasses is an in-memory PassStore.
type fakePasses struct {
	mu     sync.Mutex
	state  repository.SyncState
	passes []repository.SyncPass
}

func (f *fakePasses) GetState(_ context.Context) (*repository.SyncState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state := f.state
	return &state, nil
}

func (f *fakePasses) MarkSyncing(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Status = repository.SyncStatusSyncing
	return nil
}

func (f *fakePasses) RecordSuccess(_ context.Context, version int64, at, next time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Status = repository.SyncStatusIdle
	f.state.ManifestVersion = version
	f.state.LastPassAt = &at
	f.state.LastSuccessfulPassAt = &at
	f.state.NextPassAt = &next
	f.state.ErrorMessage = nil
	f.state.ErrorCount = 0
	return nil
}

func (f *fakePasses) RecordError(_ context.Context, message string, at, next time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Status = repository.SyncStatusError
	f.state.LastPassAt = &at
	f.state.NextPassAt = &next
	f.state.ErrorMessage = &message
	f.state.ErrorCount++
	return nil
}

func (f *fakePasses) InsertPass(_ context.Context, pass *repository.SyncPass) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passes = append([]repository.SyncPass{*pass}, f.passes...)
	return nil
}

func (f *fakePasses) ListPasses(_ context.Context, limit, offset int32) ([]repository.SyncPass, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if int(offset) >= len(f.passes) {
		return nil, nil
	}
	end := int(offset + limit)
	if end > len(f.passes) {
		end = len(f.passes)
	}
	return f.passes[offset:end], nil
}

// MockStore mocks the remote storage service
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Name() string {
	return "mock"
}

func (m *MockStore) Fetch(ctx context.Context) (*remote.Manifest, error) {
	args := m.Called(ctx)
	manifest, _ := args.Get(0).(*remote.Manifest)
	return manifest, args.Error(1)
}

func (m *MockStore) Write(ctx context.Context, op remote.WriteOperation) (int64, error) {
	args := m.Called(ctx, op)
	return args.Get(0).(int64), args.Error(1)
}

// gatedStore holds the first Fetch until release is closed.
type gatedStore struct {
	*remote.MemoryStore
	fetched chan struct{}
	release chan struct{}
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		MemoryStore: remote.NewMemoryStore(),
		fetched:     make(chan struct{}, 1),
		release:     make(chan struct{}),
	}
}

func (g *gatedStore) Fetch(ctx context.Context) (*remote.Manifest, error) {
	select {
	case g.fetched <- struct{}{}:
	default:
	}
	<-g.release
	return g.MemoryStore.Fetch(ctx)
}
