// Package usage turns a raw trace into a reduced filesystem.
//
// A [Resolver] canonicalizes traced paths so that usage is recorded against
// real files rather than the symlinks that lead to them. [ScopedResolver]
// does this in-process, evaluating links as if a given directory were the
// filesystem root. [TraceResolver] does it with an external oracle: it traces
// a bulk "readlink -f" over the paths and re-parses that trace with the same
// parser used for the original run.
//
// A [Reducer] lists every regular file under a fixed set of root directories,
// subtracts the resolved used set, and deletes what remains. Listing and the
// set difference always complete before the first deletion.
//
// Example usage:
//
//	used, err := (&usage.ScopedResolver{Root: "/"}).Resolve(ctx, traced)
//	if err != nil {
//	    return err
//	}
//
//	r := &usage.Reducer{Root: "/", Roots: usage.DefaultRoots()}
//	plan, err := r.Plan(used)
//	if err != nil {
//	    return err // ErrEmptyUsage when nothing under the roots was used
//	}
//	r.Apply(plan)
package usage
