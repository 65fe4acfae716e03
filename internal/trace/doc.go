// Package trace collects the files a process tree touches.
//
// A [Tracer] runs a command under strace with fork following enabled and the
// syscall filter restricted to calls that take a file name. The trace is
// written to a scratch file, never to the command's own output streams, and
// is parsed once the command exits.
//
// Parsing is done by a [Parser]. It extracts the quoted path literal from
// each syscall record and ignores everything else strace prints (exit and
// signal notices, resumed calls, calls without a path argument). The same
// parser is reused by every consumer of strace output so that path literal
// decoding stays identical across passes.
//
// Example usage:
//
//	t := &trace.Tracer{Strace: "/.strace", Stdout: os.Stderr, Stderr: os.Stderr}
//	paths, err := t.Trace(ctx, []string{"nginx", "-t"})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(paths.Len(), "paths touched")
package trace
