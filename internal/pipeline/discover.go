package pipeline

import (
	"fmt"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Discover returns the files below root matching include and not matching
// exclude, as sorted slash-separated paths relative to root.
func Discover(root, include, exclude string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("folder %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("folder %s: %w", root, errNotDir)
	}

	matches, err := doublestar.Glob(os.DirFS(root), include, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %q in %s: %w", include, root, err)
	}

	files := matches[:0]
	for _, m := range matches {
		if exclude != "" {
			excluded, err := doublestar.Match(exclude, m)
			if err != nil {
				return nil, fmt.Errorf("exclude pattern %q: %w", exclude, err)
			}
			if excluded {
				continue
			}
		}
		files = append(files, m)
	}

	sort.Strings(files)
	return files, nil
}

// Pair is one nominal/actual file pair.
type Pair struct {
	Nominal      string
	Actual       string
	RelativePath string
}

// Zip pairs the i-th nominal file with the i-th actual file of the two
// sorted lists. Surplus files on the longer side are not compared.
func Zip(nominal, actual []string) []Pair {
	n := min(len(nominal), len(actual))
	pairs := make([]Pair, n)
	for i := 0; i < n; i++ {
		pairs[i] = Pair{Nominal: nominal[i], Actual: actual[i], RelativePath: nominal[i]}
	}
	return pairs
}
