package usage

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cruciblehq/cruxslim/internal/pathset"
)

// Deletes every listed file that was not used.
type Reducer struct {
	Root       string   // Filesystem root being reduced. Empty means "/".
	Roots      []string // Directories listed for reduction. Nil uses [DefaultRoots].
	AllowEmpty bool     // Proceed even when nothing under the roots was used.
}

// Outcome of listing a filesystem against a used set.
//
// Unused is always Listing minus Used, and never shares an element with Used.
type Plan struct {
	Listing pathset.Set // Regular files under the roots.
	Used    pathset.Set // Resolved used set, as given.
	Unused  pathset.Set // Files scheduled for deletion.
}

// Result of applying a plan.
type Removal struct {
	Removed int // Files deleted.
	Missing int // Files that were already gone.
	Failed  int // Files that could not be deleted.
}

// Lists the filesystem and computes the unused set.
//
// Nothing is deleted. When no listed file appears in the used set, the
// plan would empty every root; this returns [ErrEmptyUsage] unless
// AllowEmpty is set. An empty used set always trips the guard.
func (r *Reducer) Plan(used pathset.Set) (*Plan, error) {
	listing, err := List(r.Root, r.roots())
	if err != nil {
		return nil, err
	}

	if !r.AllowEmpty && (used.Empty() || (!listing.Empty() && used.Intersect(listing).Empty())) {
		return nil, ErrEmptyUsage
	}

	return &Plan{
		Listing: listing,
		Used:    used,
		Unused:  listing.Difference(used),
	}, nil
}

// Deletes every file in the plan's unused set.
//
// Files that have already disappeared are ignored. Any other failure is
// logged and counted; deletion continues with the next file and nothing is
// rolled back.
func (r *Reducer) Apply(plan *Plan) Removal {
	root := rootDir(r.Root)

	var res Removal
	for _, p := range plan.Unused.Paths() {
		err := os.Remove(filepath.Join(root, filepath.FromSlash(p)))
		switch {
		case err == nil:
			res.Removed++
		case errors.Is(err, fs.ErrNotExist):
			res.Missing++
		default:
			slog.Warn("failed to remove unused file", "path", p, "error", err)
			res.Failed++
		}
	}

	slog.Debug("reduction applied", "removed", res.Removed, "missing", res.Missing, "failed", res.Failed)

	return res
}

// Plans and applies a reduction.
func (r *Reducer) Reduce(used pathset.Set) (*Plan, Removal, error) {
	plan, err := r.Plan(used)
	if err != nil {
		return nil, Removal{}, err
	}
	return plan, r.Apply(plan), nil
}

func (r *Reducer) roots() []string {
	if r.Roots == nil {
		return DefaultRoots()
	}
	return r.Roots
}
