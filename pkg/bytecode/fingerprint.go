package bytecode

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses canonical mode so that equal chunks always encode to the
// same bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type wireValue struct {
	_    struct{} `cbor:",toarray"`
	Kind uint8
	Bits uint32
}

// wireChunk is the hashed view of a chunk. The source map is left out: two
// chunks that execute identically hash identically.
type wireChunk struct {
	Code      []byte      `cbor:"1,keyasint"`
	Constants []wireValue `cbor:"2,keyasint"`
}

// Fingerprint is a content hash of a chunk's code and constant pool.
type Fingerprint [32]byte

// String returns the first 12 hex digits, enough to tell chunks apart in logs.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:6])
}

// Fingerprint returns the SHA-256 of the canonical CBOR encoding of the
// chunk's code and constants.
func (c *Chunk) Fingerprint() (Fingerprint, error) {
	w := wireChunk{
		Code:      c.Code,
		Constants: make([]wireValue, len(c.Constants)),
	}
	for i, v := range c.Constants {
		w.Constants[i] = wireValue{Kind: uint8(v.kind), Bits: v.bits}
	}
	data, err := cborEncMode.Marshal(w)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("bytecode: encode chunk: %w", err)
	}
	return sha256.Sum256(data), nil
}
