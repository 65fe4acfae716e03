package usage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/cruciblehq/cruxslim/internal/pathset"
	"github.com/cruciblehq/cruxslim/internal/trace"
)

const (

	// Syscalls issued by "readlink -f" while walking a path. strace rejects
	// names unknown to the architecture (arm64 has no lstat or readlink)
	// unless they carry a "?" prefix.
	ResolveSyscalls = "?lstat,?newfstatat,statx,?readlink,readlinkat"

	// Number of paths handed to one invocation of the link utility.
	resolveBatch = 512
)

// Replaces every path in a set with its real path.
type Resolver interface {
	Resolve(ctx context.Context, paths pathset.Set) (pathset.Set, error)
}

// Resolves symlinks in-process, scoped to a root directory.
//
// Absolute link targets are interpreted relative to Root, so a tree mounted
// anywhere resolves the way it would as "/". Paths that no longer exist are
// omitted unless Strict is set.
type ScopedResolver struct {
	Root   string // Directory treated as the filesystem root. Empty means "/".
	Strict bool   // Fail with [ErrUnresolvable] instead of omitting missing paths.
}

// Resolves every path in the set.
//
// The result is deduplicated, since several traced paths commonly lead to
// the same file. Every element of the result resolves to itself.
func (r *ScopedResolver) Resolve(ctx context.Context, paths pathset.Set) (pathset.Set, error) {
	root := rootDir(r.Root)

	resolved := make([]string, 0, paths.Len())
	for _, p := range paths.Paths() {
		if err := ctx.Err(); err != nil {
			return pathset.Set{}, err
		}

		real, err := resolveScoped(root, p)
		if err != nil {
			if r.Strict {
				return pathset.Set{}, fmt.Errorf("%w: %s: %w", ErrUnresolvable, p, err)
			}
			slog.Debug("dropping unresolvable path", "path", p, "error", err)
			continue
		}
		resolved = append(resolved, real)
	}

	return pathset.New(resolved...), nil
}

// Resolves a single in-root path and verifies the target exists.
func resolveScoped(root, p string) (string, error) {
	full, err := securejoin.SecureJoin(root, p)
	if err != nil {
		return "", err
	}
	if _, err := os.Lstat(full); err != nil {
		return "", err
	}
	return inRoot(root, full)
}

// Resolves symlinks by tracing a link-resolution utility.
//
// The utility (by default "readlink -f") is run over the paths in batches
// under strace, and its trace is parsed with the tracer's parser. Every
// component the utility inspects shows up in that trace; only the ones that
// exist and are not symlinks are kept, which leaves the real paths.
type TraceResolver struct {
	Tracer  trace.Tracer // Tracer template. Its syscall filter is replaced with [ResolveSyscalls].
	Utility []string     // Command prefix the paths are appended to. Empty means "readlink -f".
	Root    string       // Directory the traced paths are checked against. Empty means "/".
}

// Resolves every path in the set through the traced utility.
//
// The utility failing on paths that have disappeared is tolerated; only a
// failure to trace at all is an error.
func (r *TraceResolver) Resolve(ctx context.Context, paths pathset.Set) (pathset.Set, error) {
	tracer := r.Tracer
	tracer.Syscalls = ResolveSyscalls

	utility := r.Utility
	if len(utility) == 0 {
		utility = []string{"readlink", "-f"}
	}

	var traced pathset.Set
	all := paths.Paths()
	for start := 0; start < len(all); start += resolveBatch {
		end := min(start+resolveBatch, len(all))

		argv := append(append([]string{}, utility...), all[start:end]...)
		batch, err := tracer.Trace(ctx, argv)
		if err != nil {
			return pathset.Set{}, err
		}
		traced = traced.Union(batch)
	}

	root := rootDir(r.Root)
	return traced.Map(func(p string) (string, bool) {
		info, err := os.Lstat(filepath.Join(root, p))
		return p, err == nil && info.Mode()&os.ModeSymlink == 0
	}), nil
}

// Returns the root directory, defaulting to "/".
func rootDir(root string) string {
	if root == "" {
		return "/"
	}
	return root
}

// Converts a host path under root back into an absolute in-root path.
func inRoot(root, full string) (string, error) {
	rel, err := filepath.Rel(root, full)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return "/", nil
	}
	return "/" + filepath.ToSlash(rel), nil
}
