package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cruciblehq/cruxslim/internal/pathset"
)

// Argument strace prints for the current-directory file descriptor.
const atFDCWD = "AT_FDCWD"

// Extracts path literals from strace output.
//
// The zero value is a lenient parser that drops relative paths strace did
// not place in a directory.
type Parser struct {
	Strict  bool   // Fail on records whose path literal cannot be decoded instead of skipping them.
	Workdir string // Directory that relative path literals are joined onto when strace names none. Empty drops them.
}

// Reads strace output until EOF and returns every path literal found.
//
// Lines that are not syscall records are ignored. In lenient mode malformed
// records are skipped as well; in strict mode the first one aborts parsing
// with [ErrMalformedRecord].
func (p Parser) Parse(r io.Reader) (pathset.Set, error) {
	var paths []string

	br := bufio.NewReader(r)
	for n := 1; ; n++ {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			path, ok, perr := p.ParseLine(line)
			if perr != nil {
				if p.Strict {
					return pathset.Set{}, fmt.Errorf("line %d: %w", n, perr)
				}
			} else if ok {
				paths = append(paths, path)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return pathset.Set{}, err
		}
	}

	return pathset.New(paths...), nil
}

// Extracts the path literal from a single line of strace output.
//
// Returns false when the line is not a syscall record or the record carries
// no usable path (no path argument, or a relative path whose directory is
// unknown). An error is returned only for records whose path literal is
// present but cannot be decoded.
func (p Parser) ParseLine(line string) (string, bool, error) {
	body := stripPID(strings.TrimRight(line, "\r\n"))

	args, ok := syscallArgs(body)
	if !ok {
		return "", false, nil
	}

	literal, dir, ok := pathArgument(args)
	if !ok {
		return "", false, nil
	}

	path, rest, err := unquote(literal)
	if err != nil {
		return "", false, fmt.Errorf("%w: %w: %q", ErrMalformedRecord, err, body)
	}

	// strace marks truncated strings with a trailing ellipsis.
	if strings.HasPrefix(rest, "...") {
		return "", false, fmt.Errorf("%w: truncated path: %q", ErrMalformedRecord, body)
	}

	return p.qualify(path, dir)
}

// Makes a decoded path absolute, or reports false when it cannot be.
//
// Relative paths are joined onto dir, the directory strace reported for the
// descriptor, or onto the working directory when strace reported none.
func (p Parser) qualify(path, dir string) (string, bool, error) {
	if path == "" {
		return "", false, nil
	}
	if strings.HasPrefix(path, "/") {
		return path, true, nil
	}
	if dir == "" {
		dir = p.Workdir
	}
	if dir == "" {
		return "", false, nil
	}
	return strings.TrimSuffix(dir, "/") + "/" + path, true, nil
}

// Removes the process identifier strace prepends when following forks.
//
// Both the terminal form ("[pid  123] ") and the output-file form ("123  ")
// are recognized.
func stripPID(line string) string {
	if strings.HasPrefix(line, "[pid") {
		if i := strings.IndexByte(line, ']'); i >= 0 {
			return strings.TrimLeft(line[i+1:], " ")
		}
		return line
	}

	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && line[i] == ' ' {
		return strings.TrimLeft(line[i:], " ")
	}
	return line
}

// Splits a record of the form "name(args..." and returns the argument text.
//
// Returns false when the line does not start with a syscall name followed by
// an opening parenthesis.
func syscallArgs(body string) (string, bool) {
	i := 0
	for i < len(body) && isNameByte(body[i]) {
		i++
	}
	if i == 0 || i >= len(body) || body[i] != '(' {
		return "", false
	}
	return body[i+1:], true
}

// Returns the text starting at the quoted path argument, along with the
// directory a relative path is relative to when strace decorated the
// descriptor (-y prints "3</usr/lib>" and "AT_FDCWD</srv>").
//
// The path is the first argument, or the second argument when the first is
// a directory descriptor. A relative path under an undecorated descriptor
// other than AT_FDCWD cannot be placed and is rejected.
func pathArgument(args string) (literal, dir string, ok bool) {
	if strings.HasPrefix(args, `"`) {
		return args, "", true
	}

	i := 0
	if strings.HasPrefix(args, atFDCWD) {
		i = len(atFDCWD)
	} else {
		for i < len(args) && args[i] >= '0' && args[i] <= '9' {
			i++
		}
		if i == 0 {
			return "", "", false
		}
	}
	cwd := args[:i] == atFDCWD

	if i < len(args) && args[i] == '<' {
		end := strings.IndexByte(args[i:], '>')
		if end < 0 {
			return "", "", false
		}
		dir = args[i+1 : i+end]
		i += end + 1
	}

	rest, ok := strings.CutPrefix(args[i:], ", ")
	if !ok || !strings.HasPrefix(rest, `"`) {
		return "", "", false
	}
	if !cwd && dir == "" && !strings.HasPrefix(rest, `"/`) {
		return "", "", false
	}
	return rest, dir, true
}

// Whether b may appear in a syscall name.
func isNameByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
