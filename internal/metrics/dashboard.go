package metrics

import (
	"fmt"
	"sort"
	"strings"
)

// Render formats a snapshot as a plain-text dashboard block: timings first,
// then latencies, then counters. Keys are sorted within each group, so
// identical snapshots always render byte-identical output.
func Render(snap Snapshot) string {
	var b strings.Builder
	b.WriteString("OBSERVABILITY DASHBOARD\n")
	b.WriteString("----------------------------------\n")

	for _, key := range sortedKeys(snap.Timings) {
		fmt.Fprintf(&b, "%s: %.2fs\n", label(key), snap.Timings[key])
	}
	for _, key := range sortedKeys(snap.Latencies) {
		fmt.Fprintf(&b, "%s: %.2fs\n", label(key), snap.Latencies[key])
	}

	counterKeys := make([]string, 0, len(snap.Counters))
	for k := range snap.Counters {
		counterKeys = append(counterKeys, k)
	}
	sort.Strings(counterKeys)
	for _, key := range counterKeys {
		fmt.Fprintf(&b, "%s: %d\n", label(key), snap.Counters[key])
	}

	return b.String()
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// label turns a metric key like "frame_extraction" into "Frame Extraction".
func label(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
