package recipe

import (
	"encoding/json"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

const (
	shellPrefix  = "/bin/sh -c "
	nopPrefix    = "/bin/sh -c #(nop) "
	buildkitMark = " # buildkit"
)

var (
	// Legacy Docker rendered the entrypoint struct instead of its value.
	entrypointStruct = regexp.MustCompile(`^&\{(.*)\}$`)

	// Exposed ports rendered as a Go map, "map[80/tcp:{} 443/tcp:{}]".
	exposeMap = regexp.MustCompile(`^map\[(.*)\]$`)
)

// Inputs for [FromImage].
type HistoryOptions struct {
	From string         // Base image reference written as the FROM line. Empty omits it.
	Base *ocispec.Image // Base image config. Nil when not yet known.
}

// Derives a recipe from an image config.
//
// Every non-empty history entry becomes an instruction. When the base
// config is given, the history entries inherited from it are skipped, and
// the config fields whose final value no history instruction accounts for
// (environment, working directory, user, entrypoint, command) are appended
// as explicit instructions.
func FromImage(img ocispec.Image, opts HistoryOptions) *Recipe {
	rec := &Recipe{}
	if opts.From != "" {
		rec.Instructions = append(rec.Instructions, Instruction{Keyword: "FROM", Args: opts.From})
	}

	history := img.History
	var base ocispec.Image
	if opts.Base != nil {
		base = *opts.Base
		history = stripInherited(history, base.History)
	}

	seen := make(map[string]bool)
	for _, h := range history {
		line := historyLine(h.CreatedBy)
		ins, ok := ParseInstruction(line)
		if !ok {
			continue
		}
		ins = normalize(ins)
		seen[ins.Keyword] = true
		rec.Instructions = append(rec.Instructions, ins)
	}

	rec.Instructions = append(rec.Instructions, configInstructions(img.Config, base.Config, seen)...)

	return rec
}

// Drops the leading history entries that an image inherited from its base.
//
// Entries are only dropped when the whole base history is a prefix.
func stripInherited(history, base []ocispec.History) []ocispec.History {
	if len(base) > len(history) {
		return history
	}
	for i, h := range base {
		if history[i].CreatedBy != h.CreatedBy {
			return history
		}
	}
	return history[len(base):]
}

// Converts a history CreatedBy value into a recipe line.
//
// Classic builders record metadata instructions as "/bin/sh -c #(nop) X"
// and commands as "/bin/sh -c CMD"; BuildKit records instructions verbatim
// and tags them with a trailing "# buildkit" comment.
func historyLine(createdBy string) string {
	s := strings.TrimSpace(createdBy)
	s = strings.TrimSpace(strings.TrimSuffix(s, buildkitMark))

	switch {
	case s == "":
		return ""
	case strings.HasPrefix(s, nopPrefix):
		return strings.TrimSpace(strings.TrimPrefix(s, nopPrefix))
	case strings.HasPrefix(s, shellPrefix):
		return "RUN " + strings.TrimPrefix(s, shellPrefix)
	case startsWithKeyword(s):
		return s
	default:
		return "RUN " + s
	}
}

// Reports whether a line starts with an upper-case instruction keyword.
func startsWithKeyword(s string) bool {
	keyword, _, _ := strings.Cut(s, " ")
	if keyword == "" {
		return false
	}
	for _, c := range keyword {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

// Rewrites legacy renderings of instruction arguments into valid syntax.
func normalize(ins Instruction) Instruction {
	switch ins.Keyword {
	case "ENTRYPOINT", "CMD":
		if m := entrypointStruct.FindStringSubmatch(ins.Args); m != nil {
			ins.Args = strings.TrimSpace(m[1])
		}
		if strings.HasPrefix(ins.Args, "[") {
			ins.Args = execForm(ins.Args)
		}
	case "EXPOSE":
		if m := exposeMap.FindStringSubmatch(ins.Args); m != nil {
			var ports []string
			for _, p := range strings.Fields(m[1]) {
				ports = append(ports, strings.TrimSuffix(p, ":{}"))
			}
			ins.Args = strings.Join(ports, " ")
		}
	}
	return ins
}

// Re-encodes an exec-form array whose elements may be space-separated.
//
// Quoted elements are collected in order and re-emitted as a JSON array;
// an array with no quoted elements is left untouched.
func execForm(args string) string {
	end := strings.LastIndexByte(args, ']')
	if end < 0 {
		return args
	}

	var argv []string
	inner := args[1:end]
	for i := 0; i < len(inner); i++ {
		if inner[i] != '"' {
			continue
		}
		q := closingQuote(inner, i)
		if q < 0 {
			return args
		}
		elem, err := strconv.Unquote(inner[i : q+1])
		if err != nil {
			elem = inner[i+1 : q]
		}
		argv = append(argv, elem)
		i = q
	}
	if argv == nil {
		return args
	}
	return jsonArray(argv)
}

// Returns the config fields no history instruction set, as instructions.
//
// A field is only emitted when its value differs from the base config.
func configInstructions(cfg, base ocispec.ImageConfig, seen map[string]bool) []Instruction {
	var out []Instruction

	if !seen["ENV"] {
		for _, kv := range cfg.Env {
			if !slices.Contains(base.Env, kv) {
				out = append(out, Instruction{Keyword: "ENV", Args: envPair(kv)})
			}
		}
	}
	if !seen["LABEL"] {
		keys := make([]string, 0, len(cfg.Labels))
		for k, v := range cfg.Labels {
			if bv, ok := base.Labels[k]; !ok || bv != v {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, Instruction{Keyword: "LABEL", Args: strconv.Quote(k) + "=" + strconv.Quote(cfg.Labels[k])})
		}
	}
	if !seen["WORKDIR"] && cfg.WorkingDir != "" && cfg.WorkingDir != base.WorkingDir {
		out = append(out, Instruction{Keyword: "WORKDIR", Args: cfg.WorkingDir})
	}
	if !seen["USER"] && cfg.User != "" && cfg.User != base.User {
		out = append(out, Instruction{Keyword: "USER", Args: cfg.User})
	}
	if !seen["ENTRYPOINT"] && len(cfg.Entrypoint) > 0 && !slices.Equal(cfg.Entrypoint, base.Entrypoint) {
		out = append(out, Instruction{Keyword: "ENTRYPOINT", Args: jsonArray(cfg.Entrypoint)})
	}
	if !seen["CMD"] && len(cfg.Cmd) > 0 && !slices.Equal(cfg.Cmd, base.Cmd) {
		out = append(out, Instruction{Keyword: "CMD", Args: jsonArray(cfg.Cmd)})
	}

	return out
}

// Formats a "K=V" environment entry as an ENV argument.
func envPair(kv string) string {
	k, v, _ := strings.Cut(kv, "=")
	if strings.ContainsAny(v, " \t\"") {
		v = strconv.Quote(v)
	}
	return k + "=" + v
}

// Encodes a string list as a compact JSON array without HTML escaping.
func jsonArray(argv []string) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	enc.Encode(argv)
	return strings.TrimSuffix(b.String(), "\n")
}
