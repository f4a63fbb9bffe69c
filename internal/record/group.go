package record

const (
	// GroupV1IDLength is the byte length of a legacy group id.
	GroupV1IDLength = 16
	// GroupV2MasterKeyLength is the byte length of a group master key.
	GroupV2MasterKeyLength = 32
)

// GroupV1 is a legacy group conversation.
type GroupV1 struct {
	ID      StorageID
	GroupID []byte

	ConversationFlags

	UnknownFields []byte
}

func (g *GroupV1) StorageID() StorageID { return g.ID }
func (g *GroupV1) Kind() Kind           { return KindGroupV1 }
func (g *GroupV1) isRecord()            {}

// ContentEqual compares every attribute except the storage id.
func (g *GroupV1) ContentEqual(o *GroupV1) bool {
	return bytesEqual(g.UnknownFields, o.UnknownFields) &&
		bytesEqual(g.GroupID, o.GroupID) &&
		g.ConversationFlags == o.ConversationFlags
}

// GroupV2 is a group conversation identified by its master key.
type GroupV2 struct {
	ID        StorageID
	MasterKey []byte

	ConversationFlags

	UnknownFields []byte
}

func (g *GroupV2) StorageID() StorageID { return g.ID }
func (g *GroupV2) Kind() Kind           { return KindGroupV2 }
func (g *GroupV2) isRecord()            {}

// ContentEqual compares every attribute except the storage id.
func (g *GroupV2) ContentEqual(o *GroupV2) bool {
	return bytesEqual(g.UnknownFields, o.UnknownFields) &&
		bytesEqual(g.MasterKey, o.MasterKey) &&
		g.ConversationFlags == o.ConversationFlags
}
