package partitioner

import (
	"fmt"
	"hash/fnv"
)

// Hash returns the FNV-1a hash of a key.
func Hash(key []byte) uint64 {
	h := fnv.New64a()
	h.Write(key)
	return h.Sum64()
}

// PartitionFor routes a key to one of numPartitions partitions. The mapping
// is deterministic across restarts for a fixed partition count; changing the
// count reshuffles keys, which is why recovery must reject a partition count
// that differs from the one a store was created with.
func PartitionFor(key []byte, numPartitions int) (int, error) {
	if numPartitions <= 0 {
		return 0, fmt.Errorf("invalid partition count: %d", numPartitions)
	}
	return int(Hash(key) % uint64(numPartitions)), nil
}
