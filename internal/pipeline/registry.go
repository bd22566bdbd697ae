package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JonMunkholm/csvcompare/internal/report"
	"github.com/JonMunkholm/csvcompare/internal/rules"
)

// Comparator compares one nominal/actual file pair under a rule.
// A returned error means the pair could not be compared at all; differences
// are reported through the FileResult.
type Comparator interface {
	Compare(ctx context.Context, nominal, actual string, rule *rules.Rule) (report.FileResult, error)
}

// ComparatorFunc adapts a function to the Comparator interface.
type ComparatorFunc func(ctx context.Context, nominal, actual string, rule *rules.Rule) (report.FileResult, error)

// Compare calls f.
func (f ComparatorFunc) Compare(ctx context.Context, nominal, actual string, rule *rules.Rule) (report.FileResult, error) {
	return f(ctx, nominal, actual, rule)
}

var (
	registry   = make(map[rules.Kind]Comparator)
	registryMu sync.RWMutex
)

func init() {
	Register(rules.KindCSV, ComparatorFunc(compareCSV))
	Register(rules.KindHash, ComparatorFunc(compareHash))
}

// Register adds a comparator for a rule kind.
// Panics if a comparator for the kind is already registered.
func Register(kind rules.Kind, c Comparator) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[kind]; exists {
		panic(fmt.Sprintf("comparator already registered: %s", kind))
	}
	registry[kind] = c
}

// Get returns the comparator for a rule kind.
// Returns false if not found.
func Get(kind rules.Kind) (Comparator, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	c, ok := registry[kind]
	return c, ok
}

// Kinds returns all registered rule kinds, sorted.
func Kinds() []rules.Kind {
	registryMu.RLock()
	defer registryMu.RUnlock()

	kinds := make([]rules.Kind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// unregister removes a comparator. Only tests use it.
func unregister(kind rules.Kind) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, kind)
}
