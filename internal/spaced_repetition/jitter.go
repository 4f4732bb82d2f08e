package spaced_repetition

import (
	"hash/fnv"

	"github.com/example/orbit/pkg/models"
)

// maxJitterSeconds bounds StableJitterMillis to [0, 10 minutes)
const maxJitterSeconds = 600

// StableJitterMillis returns a pseudo-random offset in [0, 600000) milliseconds.
// It depends only on the identifiers, so rescheduling the same component at two
// different times shifts its due timestamp by exactly the time difference.
func StableJitterMillis(taskID models.TaskID, componentID string) int64 {
	h := fnv.New32a()
	h.Write([]byte(taskID))
	h.Write([]byte{0})
	h.Write([]byte(componentID))
	return int64(h.Sum32()%maxJitterSeconds) * 1000
}
