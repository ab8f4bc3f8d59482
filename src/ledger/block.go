package ledger

import (
	"bytes"

	"github.com/mosaicnetworks/skipgraph/src/common"
	"github.com/mosaicnetworks/skipgraph/src/crypto"
	"github.com/mosaicnetworks/skipgraph/src/skipgraph"
	"github.com/ugorji/go/codec"
)

// Block is a ledger entry. Blocks are chained by the hash of their
// predecessor.
type Block struct {
	Index    int64
	PrevHash []byte
	Owner    skipgraph.Identity
	Payload  []byte

	hash []byte
}

// NewBlock ...
func NewBlock(index int64, prevHash []byte, owner skipgraph.Identity, payload []byte) *Block {
	return &Block{
		Index:    index,
		PrevHash: prevHash,
		Owner:    owner,
		Payload:  payload,
	}
}

// Marshal returns the canonical json encoding of the block.
func (b *Block) Marshal() ([]byte, error) {
	bf := bytes.NewBuffer([]byte{})
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(bf, jh)
	if err := enc.Encode(b); err != nil {
		return nil, err
	}
	return bf.Bytes(), nil
}

// Unmarshal ...
func (b *Block) Unmarshal(data []byte) error {
	bf := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(bf, jh)
	return dec.Decode(b)
}

// Hash ...
func (b *Block) Hash() ([]byte, error) {
	if len(b.hash) == 0 {
		hashBytes, err := b.Marshal()
		if err != nil {
			return nil, err
		}
		b.hash = crypto.ChainHash(b.PrevHash, hashBytes)
	}
	return b.hash, nil
}

// Hex ...
func (b *Block) Hex() string {
	hash, _ := b.Hash()
	return common.EncodeToString(hash)
}

// Identity is the graph entry of the block: its index is the numeric id and
// the first levels bits of the previous hash the name id. Address and port
// are those of the owner.
func (b *Block) Identity(levels int) skipgraph.Identity {
	return skipgraph.NewIdentity(
		b.Index,
		skipgraph.NameIDFromBytes(b.PrevHash, levels),
		b.Owner.Address,
		b.Owner.Port,
	)
}
