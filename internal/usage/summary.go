package usage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/docker/go-units"

	"github.com/cruciblehq/cruxslim/internal/pathset"
)

// File count and aggregate size of a path set.
type Summary struct {
	Count int
	Size  int64
}

// Summarizes a set of in-root paths.
//
// Only regular files contribute to the size. Paths that cannot be stat'ed
// still count.
func Summarize(root string, s pathset.Set) Summary {
	root = rootDir(root)

	sum := Summary{Count: s.Len()}
	for _, p := range s.Paths() {
		info, err := os.Lstat(filepath.Join(root, filepath.FromSlash(p)))
		if err == nil && info.Mode().IsRegular() {
			sum.Size += info.Size()
		}
	}
	return sum
}

// Formats the summary as "<count> (<size>)".
func (s Summary) String() string {
	return fmt.Sprintf("%d (%s)", s.Count, units.HumanSize(float64(s.Size)))
}
