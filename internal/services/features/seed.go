package features

import (
	"math/rand"
	"sync"
	"time"
)

// The process-wide generator only exists for callers that must reproduce
// legacy outputs. Everything in this module takes an explicit seed instead.
var global = struct {
	sync.Mutex
	r *rand.Rand
}{r: rand.New(rand.NewSource(time.Now().UnixNano()))}

// SetSeed reseeds the process-wide generator.
func SetSeed(seed int64) {
	global.Lock()
	global.r = rand.New(rand.NewSource(seed))
	global.Unlock()
}

// GlobalInt63 draws from the process-wide generator.
func GlobalInt63() int64 {
	global.Lock()
	defer global.Unlock()
	return global.r.Int63()
}
