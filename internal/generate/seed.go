package generate

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// imageSeed derives an independent seed for one image attempt. Images never
// share a generator, so results do not depend on worker scheduling.
func imageSeed(base int64, phase string, index, attempt int) int64 {
	key := phase + "/" + strconv.Itoa(index) + "/" + strconv.Itoa(attempt)
	return base + int64(xxhash.Sum64String(key)>>1)
}
