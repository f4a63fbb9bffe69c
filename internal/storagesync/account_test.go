package storagesync

import (
	"context"
	"testing"

	"storage-sync/internal/record"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountProcessor(t *testing.T) {
	state := selfState()
	keys := &seqKeys{}
	p := NewAccountProcessor(state, keys)

	remote := &record.Account{ID: sid(0xA1), FamilyName: record.StringPtr("Doe"), ReadReceipts: true}

	assert.False(t, p.IsInvalid(remote))

	m, ok := p.FindLocalMatch(remote)
	require.True(t, ok)
	assert.EqualValues(t, 1, m.RecipientID)
	assert.Equal(t, sid(0xA0), m.PersistedID)

	merged := p.Merge(remote, m.Record)
	assert.Same(t, remote, merged)
	assert.Nil(t, merged.GivenName)

	assert.Equal(t, SameIdentity, p.Compare(remote, &record.Account{ID: sid(0xA2)}))
}

func TestAccountProcessorMergeKeepsLocalName(t *testing.T) {
	p := NewAccountProcessor(selfState(), &seqKeys{})
	local := &record.Account{ID: sid(0xA0), GivenName: record.StringPtr("Me"), AvatarURL: record.StringPtr("avatars/me")}
	remote := &record.Account{ID: sid(0xA1), LinkPreviews: true, UnknownFields: []byte{0x10}}

	merged := p.Merge(remote, local)
	assert.NotEqual(t, sid(0xA0), merged.ID)
	assert.NotEqual(t, sid(0xA1), merged.ID)
	assert.Equal(t, "Me", *merged.GivenName)
	assert.Equal(t, "avatars/me", *merged.AvatarURL)
	assert.True(t, merged.LinkPreviews)
	assert.Equal(t, []byte{0x10}, merged.UnknownFields)
}

func TestAccountProcessorWithoutSelf(t *testing.T) {
	p := NewAccountProcessor(NewLocalState(nil, nil), &seqKeys{})
	remote := &record.Account{ID: sid(0xA1)}

	assert.False(t, p.IsInvalid(remote))
	_, ok := p.FindLocalMatch(remote)
	assert.False(t, ok)
	assert.Error(t, p.ApplyInsert(context.Background(), nil, remote))
}
