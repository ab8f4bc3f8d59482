package skipgraph

import (
	"bytes"
	"fmt"
	"net"
	"strconv"

	cm "github.com/mosaicnetworks/skipgraph/src/common"
	"github.com/ugorji/go/codec"
)

// Identity is the immutable identity of a peer, or of any item indexed by the
// graph.
type Identity struct {
	NumID   int64
	NameID  string
	Address string
	Port    int
}

// NewIdentity ...
func NewIdentity(numID int64, nameID string, address string, port int) Identity {
	return Identity{
		NumID:   numID,
		NameID:  nameID,
		Address: address,
		Port:    port,
	}
}

// FullAddress returns address:port.
func (id Identity) FullAddress() string {
	return net.JoinHostPort(id.Address, strconv.Itoa(id.Port))
}

// String ...
func (id Identity) String() string {
	return fmt.Sprintf("%d(%s)@%s", id.NumID, id.NameID, id.FullAddress())
}

// Marshal encodes the identity with a canonical json handle.
func (id *Identity) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(id); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal ...
func (id *Identity) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(id)
}

// CommonBits counts the leading bits two name ids have in common.
func CommonBits(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// ValidateNameID checks that name is a bit string of at most levels bits.
func ValidateNameID(name string, levels int) error {
	if len(name) > levels {
		return cm.NewErr("NameID", cm.InvalidNameID, name)
	}
	for i := 0; i < len(name); i++ {
		if name[i] != '0' && name[i] != '1' {
			return cm.NewErr("NameID", cm.InvalidNameID, name)
		}
	}
	return nil
}

// NameIDFromBytes returns the first n bits of data as a name id. Missing bits
// are padded with zeros.
func NameIDFromBytes(data []byte, n int) string {
	bits := make([]byte, n)
	for i := 0; i < n; i++ {
		bits[i] = '0'
		if i/8 < len(data) && data[i/8]&(0x80>>uint(i%8)) != 0 {
			bits[i] = '1'
		}
	}
	return string(bits)
}
