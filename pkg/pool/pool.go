// Package pool provides object pooling to reduce GC pressure on the
// search query preparation path.
package pool

import "sync"

// StringSlicePool pools []string buffers, reused by the store package's
// prepareQuery for its scratch term lists.
var StringSlicePool = sync.Pool{
	New: func() interface{} {
		return make([]string, 0, 16)
	},
}

// GetStringSlice gets a zero-length slice from the pool.
func GetStringSlice() []string {
	s := StringSlicePool.Get().([]string)
	return s[:0]
}

// PutStringSlice returns s to the pool for reuse.
func PutStringSlice(s []string) {
	StringSlicePool.Put(s) //nolint:staticcheck // intentionally retaining backing array
}
