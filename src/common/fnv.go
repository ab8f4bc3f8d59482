package common

import "hash/fnv"

// Hash64 returns the 64-bit FNV-1a hash of data.
func Hash64(data []byte) uint64 {
	h := fnv.New64a()

	h.Write(data)

	return h.Sum64()
}

// PositiveID folds a seed into a strictly positive int64, suitable as a
// numeric id.
func PositiveID(seed []byte) int64 {
	id := int64(Hash64(seed) >> 1)
	if id == 0 {
		return 1
	}
	return id
}
