package benchmark

import (
	"crypto/rand"
	"fmt"
	"runtime"
	"testing"

	"github.com/stefankamdem/minikv/internal/resp"
	"github.com/stefankamdem/minikv/internal/store"
)

// KeyCounts defines the store sizes for benchmarking.
var KeyCounts = []int{5000, 10000, 50000, 100000, 500000}

// SmallKeyCounts for quick benchmarks.
var SmallKeyCounts = []int{1000, 5000, 10000}

// ValueSizes defines the payload sizes for codec benchmarks.
var ValueSizes = []int{16, 256, 4096, 65536}

// benchKey returns the key for slot i.
func benchKey(i int) string {
	return fmt.Sprintf("bench-key-%d", i)
}

// randomBulk returns a bulk string of n random bytes.
func randomBulk(n int) resp.Value {
	payload := make([]byte, n)
	if _, err := rand.Read(payload); err != nil {
		panic(err)
	}
	return resp.BulkString(payload)
}

// prefillStore populates st with count keys and returns the keys.
func prefillStore(st *store.Store, count int) []string {
	keys := make([]string, count)
	for i := 0; i < count; i++ {
		keys[i] = benchKey(i)
		st.Set(keys[i], resp.BulkText(fmt.Sprintf("value-%d", i)))
	}
	return keys
}

// reportMemory reports the current heap size as a benchmark metric.
func reportMemory(b *testing.B, name string) {
	var stats runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&stats)
	b.ReportMetric(float64(stats.HeapAlloc)/(1024*1024), name+"_MB")
}
