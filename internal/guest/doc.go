// Package guest implements the program that runs inside the target
// container.
//
// The host starts the container with the cruxslim binary itself as the
// primary process, invoked as "cruxslim guest [flags] -- argv...". The guest
// traces argv, resolves the traced paths against the container's filesystem,
// deletes every listed file that was not used, and reports two summary lines
// on its output:
//
//	Used files: 214 (38.2MB)
//	Unused files: 5120 (412MB)
//
// Any failure before deletion leaves the filesystem untouched and is
// returned to the caller, which exits non-zero.
package guest
