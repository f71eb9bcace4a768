package engine

import (
	"hash/fnv"
	"sync"
)

const keyLockStripes = 64

// keyLocks serializes evaluation per (metric, scope). Distinct keys may share
// a stripe.
type keyLocks struct {
	stripes [keyLockStripes]sync.Mutex
}

func (k *keyLocks) lock(metric, scope string) func() {
	h := fnv.New32a()
	h.Write([]byte(metric))
	h.Write([]byte{'|'})
	h.Write([]byte(scope))
	mu := &k.stripes[h.Sum32()%keyLockStripes]
	mu.Lock()
	return mu.Unlock
}
