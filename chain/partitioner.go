package chain

import (
	"github.com/twmb/murmur3"

	"github.com/ravelstream/opchain/config"
)

// KeyHashPartitioner resolves a config.PartitionerDescriptor of kind
// KeyHash to a target subtask index. No code in this module calls it:
// neither NetworkWriterOutput nor writer.ChannelWriter routes records by
// key. It only computes the routing decision (spec.md §1's boundary:
// actual network fan-out belongs to the writer).
func KeyHashPartitioner(descriptor config.PartitionerDescriptor, key []byte, numTargets int) int {
	if numTargets <= 0 {
		return 0
	}
	h := murmur3.SeedSum32(descriptor.Seed, key)
	return int(h) % numTargets
}
