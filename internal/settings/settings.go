package settings

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/cruciblehq/cruxslim/internal"
	"github.com/cruciblehq/cruxslim/internal/delta"
	"github.com/cruciblehq/cruxslim/internal/guest"
	"github.com/cruciblehq/cruxslim/internal/paths"
	"github.com/cruciblehq/cruxslim/internal/runtime"
	"github.com/cruciblehq/cruxslim/internal/usage"
)

// Default containerd socket path.
const DefaultAddress = "/run/containerd/containerd.sock"

// Complete runtime configuration.
type Settings struct {
	Containerd Containerd `toml:"containerd"`
	Guest      Guest      `toml:"guest"`
	Diff       Diff       `toml:"diff"`
}

// Connection to the containerd daemon.
type Containerd struct {
	Address     string `toml:"address"`
	Namespace   string `toml:"namespace"`
	Snapshotter string `toml:"snapshotter"`
	Platform    string `toml:"platform,omitempty"`
}

// Behaviour of the in-container guest.
type Guest struct {
	Strace     string   `toml:"strace"`      // Host path of a statically linked strace.
	Roots      []string `toml:"roots"`       // Directories considered for removal.
	Resolver   string   `toml:"resolver"`    // Symlink resolution strategy.
	Strict     bool     `toml:"strict"`      // Fail on malformed trace records.
	AllowEmpty bool     `toml:"allow_empty"` // Reduce even when nothing listed was used.
	Timeout    Duration `toml:"timeout"`     // Upper bound for the traced command. Zero waits forever.
}

// Archive diff settings.
type Diff struct {
	Policy delta.Policy `toml:"policy"`
}

// Returns the built-in configuration.
func Defaults() *Settings {
	return &Settings{
		Containerd: Containerd{
			Address:     DefaultAddress,
			Namespace:   internal.Name,
			Snapshotter: runtime.DefaultSnapshotter,
		},
		Guest: Guest{
			Strace:   "/usr/bin/strace",
			Roots:    usage.DefaultRoots(),
			Resolver: guest.ResolverScoped,
		},
		Diff: Diff{
			Policy: delta.RegularOnly,
		},
	}
}

// Loads the configuration.
//
// An empty path searches the XDG config directories and falls back to
// [Defaults] when no file exists. An explicit path must exist. Unknown keys
// are rejected.
func Load(path string) (*Settings, error) {
	s := Defaults()

	if path == "" {
		path = paths.FindConfigFile()
		if path == "" {
			return s, nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	defer f.Close()

	dec := toml.NewDecoder(f).DisallowUnknownFields()
	if err := dec.Decode(s); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("%w: %s: %s", ErrConfig, path, strict.String())
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrConfig, path, err)
	}

	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfig, path, err)
	}

	return s, nil
}

// Checks values that decode fine but cannot be used.
func (s *Settings) validate() error {
	switch s.Guest.Resolver {
	case guest.ResolverScoped, guest.ResolverTrace:
	default:
		return fmt.Errorf("%w: %q", guest.ErrUnknownResolver, s.Guest.Resolver)
	}
	if s.Guest.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrDuration)
	}
	return nil
}

// Returns the containerd connection settings.
func (c Containerd) Runtime() runtime.Config {
	return runtime.Config{
		Address:     c.Address,
		Namespace:   c.Namespace,
		Snapshotter: c.Snapshotter,
		Platform:    c.Platform,
	}
}

// A [time.Duration] written as a string ("90s", "2m").
type Duration time.Duration

// Returns the duration as a [time.Duration].
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDuration, err)
	}
	*d = Duration(v)
	return nil
}
