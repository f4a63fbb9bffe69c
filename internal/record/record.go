// Package record defines the decoded form of synced storage records.
//
// Record is a closed union: *Contact, *Account, *GroupV1, *GroupV2 and
// *Unknown are its only implementations. Every variant carries an opaque
// unknown-fields payload that is copied and compared but never parsed.
package record

import "bytes"

// Kind tags the variant of a record.
type Kind int

const (
	KindUnknown Kind = iota
	KindContact
	KindGroupV1
	KindGroupV2
	KindAccount
)

func (k Kind) String() string {
	switch k {
	case KindContact:
		return "contact"
	case KindGroupV1:
		return "group_v1"
	case KindGroupV2:
		return "group_v2"
	case KindAccount:
		return "account"
	default:
		return "unknown"
	}
}

// Record is one decoded entry of the remote set.
type Record interface {
	StorageID() StorageID
	Kind() Kind
	isRecord()
}

// ConversationFlags are the per-conversation settings shared by contacts and
// groups. MuteUntil is a unix timestamp in milliseconds.
type ConversationFlags struct {
	Blocked        bool
	ProfileSharing bool
	Archived       bool
	ForcedUnread   bool
	MuteUntil      int64
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

func optionalEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// presentBytes treats an empty slice as absent.
func presentBytes(b []byte) bool {
	return len(b) > 0
}

func bytesEqual(a, b []byte) bool {
	return bytes.Equal(a, b)
}

// OrString returns preferred when present, else fallback.
func OrString(preferred, fallback *string) *string {
	if preferred != nil {
		return preferred
	}
	return fallback
}

// OrBytes returns preferred when non-empty, else fallback.
func OrBytes(preferred, fallback []byte) []byte {
	if presentBytes(preferred) {
		return preferred
	}
	return fallback
}
