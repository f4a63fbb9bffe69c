package record

import (
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// StorageIDLength is the byte length of every storage id.
const StorageIDLength = 16

// StorageID is the opaque name of a record in the remote set. The zero value
// means "not assigned".
type StorageID [StorageIDLength]byte

// StorageIDFromBytes copies raw bytes into a StorageID.
func StorageIDFromBytes(b []byte) (StorageID, error) {
	var id StorageID
	if len(b) != StorageIDLength {
		return id, fmt.Errorf("storage id must be %d bytes, got %d", StorageIDLength, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// IsZero reports whether the id is unassigned.
func (id StorageID) IsZero() bool {
	return id == StorageID{}
}

// Bytes returns a copy of the raw id, or nil for the zero id.
func (id StorageID) Bytes() []byte {
	if id.IsZero() {
		return nil
	}
	b := make([]byte, StorageIDLength)
	copy(b, id[:])
	return b
}

func (id StorageID) String() string {
	return base64.StdEncoding.EncodeToString(id[:])
}

// KeyGenerator mints fresh storage ids.
type KeyGenerator interface {
	Generate() StorageID
}

// RandomKeyGenerator draws ids from crypto/rand through uuid.New.
type RandomKeyGenerator struct{}

// Generate returns a new unpredictable storage id.
func (RandomKeyGenerator) Generate() StorageID {
	return StorageID(uuid.New())
}
