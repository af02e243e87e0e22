package testsupport

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	// Global counter for generating unique sequential IDs in tests
	testSequence uint64

	// Base timestamp to make names shorter
	baseTimestamp = time.Now().UnixNano()
)

func init() {
	// Initialize with current timestamp to ensure uniqueness across test runs
	testSequence = uint64(baseTimestamp % 1000000)
}

// NextSequence returns next unique sequence number
func NextSequence() uint64 {
	return atomic.AddUint64(&testSequence, 1)
}

// UniqueName generates a unique name with given prefix
// Example: UniqueName("tmp_ohlcv") -> "tmp_ohlcv_123456"
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, NextSequence())
}

// UniqueString generates a unique string identifier (UUID)
func UniqueString() string {
	return uuid.New().String()
}

// UniqueSymbol generates a unique trading symbol for tests
// Example: UniqueSymbol("BTC") -> "BTC_123456"
func UniqueSymbol(base string) string {
	return fmt.Sprintf("%s_%d", base, NextSequence())
}

// UniqueSessionID generates a unique session ID string
func UniqueSessionID() string {
	return fmt.Sprintf("session_%d", NextSequence())
}

// UniqueStrategyType generates a strategy type no rule table knows about.
func UniqueStrategyType() string {
	return fmt.Sprintf("strategy_%d", NextSequence())
}
