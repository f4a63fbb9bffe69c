// Package storagesync reconciles the remote storage record set against the
// local recipient store.
//
// A pass works on an immutable Snapshot of local state. Reconcile computes a
// Plan without side effects; Apply then hands the plan's local writes to a
// Writer, which the caller wraps in a single transaction.
package storagesync

import (
	"storage-sync/internal/identity"
	"storage-sync/internal/record"

	"github.com/google/uuid"
)

// LocalEntry is one local recipient and its current syncable record. The
// record's storage id is zero when none has been persisted yet.
type LocalEntry struct {
	RecipientID identity.RecipientID
	Record      record.Record
}

// Self describes the account owner.
type Self struct {
	RecipientID identity.RecipientID
	Address     identity.Address
	Account     *record.Account
}

// Snapshot is the read side of the local store for one pass.
type Snapshot interface {
	Self() (Self, bool)
	RecipientByServiceID(id uuid.UUID) (identity.RecipientID, bool)
	RecipientByE164(e164 string) (identity.RecipientID, bool)
	RecipientByGroupID(kind record.Kind, groupID []byte) (identity.RecipientID, bool)
	Entry(id identity.RecipientID) (LocalEntry, bool)
	Entries() []LocalEntry
}

// LocalState is an in-memory Snapshot.
type LocalState struct {
	self      *Self
	entries   []LocalEntry
	byID      map[identity.RecipientID]int
	byService map[uuid.UUID]identity.RecipientID
	byE164    map[string]identity.RecipientID
	byGroupV1 map[string]identity.RecipientID
	byGroupV2 map[string]identity.RecipientID
}

// NewLocalState indexes the given recipients. self may be nil when the
// account owner is not known locally. When two entries share an identity
// attribute the first one wins.
func NewLocalState(self *Self, entries []LocalEntry) *LocalState {
	s := &LocalState{
		self:      self,
		byID:      make(map[identity.RecipientID]int),
		byService: make(map[uuid.UUID]identity.RecipientID),
		byE164:    make(map[string]identity.RecipientID),
		byGroupV1: make(map[string]identity.RecipientID),
		byGroupV2: make(map[string]identity.RecipientID),
	}

	if self != nil && self.Account != nil {
		s.add(LocalEntry{RecipientID: self.RecipientID, Record: self.Account})
	}
	for _, e := range entries {
		s.add(e)
	}
	return s
}

func (s *LocalState) add(e LocalEntry) {
	if e.Record == nil {
		return
	}
	if _, exists := s.byID[e.RecipientID]; exists {
		return
	}
	s.byID[e.RecipientID] = len(s.entries)
	s.entries = append(s.entries, e)

	switch r := e.Record.(type) {
	case *record.Contact:
		if r.Address.HasServiceID() {
			if _, taken := s.byService[r.Address.ServiceID.UUID]; !taken {
				s.byService[r.Address.ServiceID.UUID] = e.RecipientID
			}
		}
		if r.Address.HasE164() {
			if _, taken := s.byE164[r.Address.E164]; !taken {
				s.byE164[r.Address.E164] = e.RecipientID
			}
		}
	case *record.GroupV1:
		if _, taken := s.byGroupV1[string(r.GroupID)]; !taken {
			s.byGroupV1[string(r.GroupID)] = e.RecipientID
		}
	case *record.GroupV2:
		if _, taken := s.byGroupV2[string(r.MasterKey)]; !taken {
			s.byGroupV2[string(r.MasterKey)] = e.RecipientID
		}
	}
}

func (s *LocalState) Self() (Self, bool) {
	if s.self == nil {
		return Self{}, false
	}
	return *s.self, true
}

func (s *LocalState) RecipientByServiceID(id uuid.UUID) (identity.RecipientID, bool) {
	rid, ok := s.byService[id]
	return rid, ok
}

func (s *LocalState) RecipientByE164(e164 string) (identity.RecipientID, bool) {
	rid, ok := s.byE164[e164]
	return rid, ok
}

func (s *LocalState) RecipientByGroupID(kind record.Kind, groupID []byte) (identity.RecipientID, bool) {
	var rid identity.RecipientID
	var ok bool
	switch kind {
	case record.KindGroupV1:
		rid, ok = s.byGroupV1[string(groupID)]
	case record.KindGroupV2:
		rid, ok = s.byGroupV2[string(groupID)]
	}
	return rid, ok
}

func (s *LocalState) Entry(id identity.RecipientID) (LocalEntry, bool) {
	i, ok := s.byID[id]
	if !ok {
		return LocalEntry{}, false
	}
	return s.entries[i], true
}

// Entries returns every recipient, self first, in insertion order.
func (s *LocalState) Entries() []LocalEntry {
	return s.entries
}
