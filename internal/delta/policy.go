package delta

import "fmt"

// Selects which entry types a delta may contain.
type Policy int

const (
	RegularOnly Policy = iota // Regular files only.
	AllTypes                  // Regular files, directories, symlinks and hardlinks into the delta.
)

// Parses a policy name, "regular" or "all".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "regular":
		return RegularOnly, nil
	case "all":
		return AllTypes, nil
	default:
		return RegularOnly, fmt.Errorf("%w: %q", ErrPolicy, s)
	}
}

// Returns the policy name.
func (p Policy) String() string {
	if p == AllTypes {
		return "all"
	}
	return "regular"
}

// Implements [encoding.TextMarshaler].
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Implements [encoding.TextUnmarshaler].
func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
