package storagesync

import (
	"bytes"
	"context"

	"storage-sync/internal/identity"
	"storage-sync/internal/logger"
	"storage-sync/internal/record"
)

// GroupV1Processor reconciles legacy group records.
type GroupV1Processor struct {
	local Snapshot
	keys  record.KeyGenerator
}

func NewGroupV1Processor(local Snapshot, keys record.KeyGenerator) *GroupV1Processor {
	return &GroupV1Processor{local: local, keys: keys}
}

func (p *GroupV1Processor) IsInvalid(remote *record.GroupV1) bool {
	if len(remote.GroupID) != record.GroupV1IDLength {
		logger.Warn().
			Str("storage_id", remote.ID.String()).
			Int("group_id_length", len(remote.GroupID)).
			Msg("group v1 record has a malformed group id, marking invalid")
		return true
	}
	return false
}

func (p *GroupV1Processor) FindLocalMatch(remote *record.GroupV1) (Match[*record.GroupV1], bool) {
	rid, ok := p.local.RecipientByGroupID(record.KindGroupV1, remote.GroupID)
	if !ok {
		return Match[*record.GroupV1]{}, false
	}
	entry, ok := p.local.Entry(rid)
	if !ok {
		return Match[*record.GroupV1]{}, false
	}
	local, ok := entry.Record.(*record.GroupV1)
	if !ok {
		return Match[*record.GroupV1]{}, false
	}

	match := Match[*record.GroupV1]{RecipientID: rid, Record: local, PersistedID: local.ID}
	if local.ID.IsZero() {
		addressable := *local
		addressable.ID = p.keys.Generate()
		match.Record = &addressable
	}
	return match, true
}

func (p *GroupV1Processor) Merge(remote, local *record.GroupV1) *record.GroupV1 {
	merged := &record.GroupV1{
		GroupID:           remote.GroupID,
		ConversationFlags: remote.ConversationFlags,
		UnknownFields:     remote.UnknownFields,
	}

	switch {
	case merged.ContentEqual(remote):
		return remote
	case merged.ContentEqual(local):
		return local
	default:
		merged.ID = p.keys.Generate()
		return merged
	}
}

func (p *GroupV1Processor) Compare(a, b *record.GroupV1) Comparison {
	if bytes.Equal(a.GroupID, b.GroupID) {
		return SameIdentity
	}
	return DifferentIdentity
}

func (p *GroupV1Processor) ApplyInsert(ctx context.Context, w Writer, remote *record.GroupV1) error {
	return w.InsertGroupV1(ctx, remote)
}

func (p *GroupV1Processor) ApplyUpdate(ctx context.Context, w Writer, id identity.RecipientID, old, updated *record.GroupV1) error {
	return w.UpdateGroupV1(ctx, id, updated)
}

// GroupV2Processor reconciles group records keyed by master key.
type GroupV2Processor struct {
	local Snapshot
	keys  record.KeyGenerator
}

func NewGroupV2Processor(local Snapshot, keys record.KeyGenerator) *GroupV2Processor {
	return &GroupV2Processor{local: local, keys: keys}
}

func (p *GroupV2Processor) IsInvalid(remote *record.GroupV2) bool {
	if len(remote.MasterKey) != record.GroupV2MasterKeyLength {
		logger.Warn().
			Str("storage_id", remote.ID.String()).
			Int("master_key_length", len(remote.MasterKey)).
			Msg("group v2 record has a malformed master key, marking invalid")
		return true
	}
	return false
}

func (p *GroupV2Processor) FindLocalMatch(remote *record.GroupV2) (Match[*record.GroupV2], bool) {
	rid, ok := p.local.RecipientByGroupID(record.KindGroupV2, remote.MasterKey)
	if !ok {
		return Match[*record.GroupV2]{}, false
	}
	entry, ok := p.local.Entry(rid)
	if !ok {
		return Match[*record.GroupV2]{}, false
	}
	local, ok := entry.Record.(*record.GroupV2)
	if !ok {
		return Match[*record.GroupV2]{}, false
	}

	match := Match[*record.GroupV2]{RecipientID: rid, Record: local, PersistedID: local.ID}
	if local.ID.IsZero() {
		addressable := *local
		addressable.ID = p.keys.Generate()
		match.Record = &addressable
	}
	return match, true
}

func (p *GroupV2Processor) Merge(remote, local *record.GroupV2) *record.GroupV2 {
	merged := &record.GroupV2{
		MasterKey:         remote.MasterKey,
		ConversationFlags: remote.ConversationFlags,
		UnknownFields:     remote.UnknownFields,
	}

	switch {
	case merged.ContentEqual(remote):
		return remote
	case merged.ContentEqual(local):
		return local
	default:
		merged.ID = p.keys.Generate()
		return merged
	}
}

func (p *GroupV2Processor) Compare(a, b *record.GroupV2) Comparison {
	if bytes.Equal(a.MasterKey, b.MasterKey) {
		return SameIdentity
	}
	return DifferentIdentity
}

func (p *GroupV2Processor) ApplyInsert(ctx context.Context, w Writer, remote *record.GroupV2) error {
	return w.InsertGroupV2(ctx, remote)
}

func (p *GroupV2Processor) ApplyUpdate(ctx context.Context, w Writer, id identity.RecipientID, old, updated *record.GroupV2) error {
	return w.UpdateGroupV2(ctx, id, updated)
}
