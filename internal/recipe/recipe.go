package recipe

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

// Instructions that add filesystem content.
var contentKeywords = []string{"ADD", "COPY", "RUN"}

// A single recipe line.
type Instruction struct {
	Keyword string // Upper-case instruction name, e.g. "ENV".
	Args    string // Remainder of the line, trimmed.
}

// Parses a single line into an instruction.
//
// The keyword is upper-cased. Returns false for blank lines and comments.
func ParseInstruction(line string) (Instruction, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Instruction{}, false
	}

	keyword, args, _ := strings.Cut(line, " ")
	return Instruction{
		Keyword: strings.ToUpper(keyword),
		Args:    strings.TrimSpace(args),
	}, true
}

// Formats the instruction as a recipe line.
func (i Instruction) String() string {
	if i.Args == "" {
		return i.Keyword
	}
	return i.Keyword + " " + i.Args
}

// Returns the instruction's argument as a command vector.
//
// Exec form ("[\"a\", \"b\"]") is decoded as a JSON array. Shell form is
// wrapped as ["/bin/sh", "-c", args]. Empty arguments give a nil vector.
func (i Instruction) Command() ([]string, error) {
	if i.Args == "" {
		return nil, nil
	}
	if !strings.HasPrefix(i.Args, "[") {
		return []string{"/bin/sh", "-c", i.Args}, nil
	}

	var argv []string
	if err := json.Unmarshal([]byte(i.Args), &argv); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInstruction, i.Keyword, err)
	}
	return argv, nil
}

// Returns the instruction's argument as key/value pairs.
//
// Both "K=V K2=V2" and the legacy single-pair "K V" forms are accepted.
// Double-quoted keys and values are unquoted.
func (i Instruction) KeyValues() ([][2]string, error) {
	words, err := splitWords(i.Args)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInstruction, i.Keyword, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: %s: no arguments", ErrInstruction, i.Keyword)
	}

	if !strings.Contains(words[0], "=") {
		key, value, _ := strings.Cut(i.Args, " ")
		return [][2]string{{key, strings.TrimSpace(value)}}, nil
	}

	pairs := make([][2]string, 0, len(words))
	for _, w := range words {
		key, value, ok := strings.Cut(w, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %s: %q is not a key=value pair", ErrInstruction, i.Keyword, w)
		}
		pairs = append(pairs, [2]string{key, value})
	}
	return pairs, nil
}

// Returns the instruction's argument as a list of words.
//
// A JSON array is decoded as such; anything else is split on whitespace
// with double-quoted words unquoted.
func (i Instruction) Words() ([]string, error) {
	if strings.HasPrefix(i.Args, "[") {
		var words []string
		if err := json.Unmarshal([]byte(i.Args), &words); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInstruction, i.Keyword, err)
		}
		return words, nil
	}

	words, err := splitWords(i.Args)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInstruction, i.Keyword, err)
	}
	return words, nil
}

// Ordered list of instructions.
type Recipe struct {
	Instructions []Instruction
}

// Reads a recipe, one instruction per line.
//
// Lines ending in a backslash continue on the next line. Blank lines and
// comments are skipped.
func Parse(r io.Reader) (*Recipe, error) {
	rec := &Recipe{}

	var pending strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if cont, ok := strings.CutSuffix(strings.TrimRight(line, " \t"), "\\"); ok {
			pending.WriteString(cont)
			pending.WriteByte(' ')
			continue
		}
		pending.WriteString(line)

		if ins, ok := ParseInstruction(pending.String()); ok {
			rec.Instructions = append(rec.Instructions, ins)
		}
		pending.Reset()
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if ins, ok := ParseInstruction(pending.String()); ok {
		rec.Instructions = append(rec.Instructions, ins)
	}

	return rec, nil
}

// Returns the base image named by the first FROM instruction.
//
// The base image is the first whitespace-separated token of its arguments.
// Returns [ErrNoBase] when there is no FROM instruction or it names nothing.
func (r *Recipe) BaseImage() (string, error) {
	for _, ins := range r.Instructions {
		if ins.Keyword != "FROM" {
			continue
		}
		fields := strings.Fields(ins.Args)
		if len(fields) == 0 {
			return "", ErrNoBase
		}
		return fields[0], nil
	}
	return "", ErrNoBase
}

// Returns a copy of the recipe rewritten for a slimmed image.
//
// Every ADD, COPY and RUN instruction is dropped and a single
// "ADD <archive> /" is appended. The receiver is not modified.
func (r *Recipe) Slim(archive string) *Recipe {
	out := &Recipe{}
	for _, ins := range r.Instructions {
		if slices.Contains(contentKeywords, ins.Keyword) {
			continue
		}
		out.Instructions = append(out.Instructions, ins)
	}
	out.Instructions = append(out.Instructions, Instruction{Keyword: "ADD", Args: archive + " /"})
	return out
}

// Writes the recipe, one instruction per line.
func (r *Recipe) Render(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, ins := range r.Instructions {
		if _, err := bw.WriteString(ins.String() + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Returns the rendered recipe.
func (r *Recipe) String() string {
	var b strings.Builder
	r.Render(&b)
	return b.String()
}

// Splits on whitespace, unquoting double-quoted words.
//
// A quoted section may appear anywhere in a word ("K=\"a b\"").
func splitWords(s string) ([]string, error) {
	var (
		words []string
		cur   strings.Builder
		in    bool
	)

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			end := closingQuote(s, i)
			if end < 0 {
				return nil, fmt.Errorf("unterminated quote in %q", s)
			}
			unq, err := strconv.Unquote(s[i : end+1])
			if err != nil {
				return nil, err
			}
			cur.WriteString(unq)
			in = true
			i = end
		case c == ' ' || c == '\t':
			if in {
				words = append(words, cur.String())
				cur.Reset()
				in = false
			}
		default:
			cur.WriteByte(c)
			in = true
		}
	}
	if in {
		words = append(words, cur.String())
	}
	return words, nil
}

// Returns the index of the quote closing the one at start, or -1.
func closingQuote(s string, start int) int {
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}
