// Package crypto holds the hash functions used to derive name ids and to
// chain ledger blocks.
package crypto

import (
	"crypto/sha256"
	"encoding/binary"
)

// SHA256 returns the SHA256 hash of the data.
func SHA256(data []byte) []byte {
	hasher := sha256.New()
	hasher.Write(data)
	hash := hasher.Sum(nil)
	return hash
}

// ChainHash returns the SHA256 hash of prev followed by body. A block's hash
// commits to its predecessor this way.
func ChainHash(prev []byte, body []byte) []byte {
	var hasher = sha256.New()
	hasher.Write(prev)
	hasher.Write(body)
	return hasher.Sum(nil)
}

// IDHash returns the SHA256 hash of the big-endian encoding of id. Its leading
// bits are the default name id of a node.
func IDHash(id int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return SHA256(buf)
}
