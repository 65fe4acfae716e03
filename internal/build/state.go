package build

import (
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"mvdan.cc/sh/v3/shell"

	"github.com/cruciblehq/cruxslim/internal/recipe"
)

// Tracks the image config as metadata instructions are applied.
//
// State flows linearly through the instruction list, starting from the base
// image's config. Environment references in ENV and WORKDIR arguments are
// expanded against the environment accumulated so far.
type imageState struct {
	config ocispec.ImageConfig
	author string
	cmdSet bool // A CMD instruction has been applied.
}

// Creates an [imageState] from a base config. The base is not modified.
func newImageState(base ocispec.ImageConfig) *imageState {
	cfg := base
	cfg.Env = slices.Clone(base.Env)
	cfg.Entrypoint = slices.Clone(base.Entrypoint)
	cfg.Cmd = slices.Clone(base.Cmd)
	cfg.Labels = maps.Clone(base.Labels)
	cfg.ExposedPorts = maps.Clone(base.ExposedPorts)
	cfg.Volumes = maps.Clone(base.Volumes)
	return &imageState{config: cfg}
}

// Applies a metadata instruction to the config.
func (s *imageState) apply(ins recipe.Instruction) error {
	switch ins.Keyword {
	case "ENV":
		pairs, err := ins.KeyValues()
		if err != nil {
			return err
		}
		for _, kv := range pairs {
			s.setEnv(kv[0], s.expand(kv[1]))
		}

	case "WORKDIR":
		dir := s.expand(ins.Args)
		if !path.IsAbs(dir) {
			dir = path.Join("/", s.config.WorkingDir, dir)
		}
		s.config.WorkingDir = path.Clean(dir)

	case "USER":
		s.config.User = s.expand(ins.Args)

	case "CMD":
		argv, err := ins.Command()
		if err != nil {
			return err
		}
		s.config.Cmd = argv
		s.cmdSet = true

	case "ENTRYPOINT":
		argv, err := ins.Command()
		if err != nil {
			return err
		}
		s.config.Entrypoint = argv
		if !s.cmdSet {
			s.config.Cmd = nil
		}

	case "EXPOSE":
		ports, err := ins.Words()
		if err != nil {
			return err
		}
		if s.config.ExposedPorts == nil {
			s.config.ExposedPorts = make(map[string]struct{})
		}
		for _, p := range ports {
			if !strings.Contains(p, "/") {
				p += "/tcp"
			}
			s.config.ExposedPorts[p] = struct{}{}
		}

	case "LABEL":
		pairs, err := ins.KeyValues()
		if err != nil {
			return err
		}
		if s.config.Labels == nil {
			s.config.Labels = make(map[string]string)
		}
		for _, kv := range pairs {
			s.config.Labels[kv[0]] = kv[1]
		}

	case "VOLUME":
		vols, err := ins.Words()
		if err != nil {
			return err
		}
		if s.config.Volumes == nil {
			s.config.Volumes = make(map[string]struct{})
		}
		for _, v := range vols {
			s.config.Volumes[v] = struct{}{}
		}

	case "STOPSIGNAL":
		s.config.StopSignal = ins.Args

	case "MAINTAINER":
		s.author = ins.Args

	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, ins.Keyword)
	}

	return nil
}

// Sets an environment variable, replacing an existing entry in place.
func (s *imageState) setEnv(key, value string) {
	entry := key + "=" + value
	for i, e := range s.config.Env {
		if k, _, _ := strings.Cut(e, "="); k == key {
			s.config.Env[i] = entry
			return
		}
	}
	s.config.Env = append(s.config.Env, entry)
}

// Returns the value of an environment variable, or "".
func (s *imageState) getEnv(key string) string {
	for _, e := range s.config.Env {
		if k, v, ok := strings.Cut(e, "="); ok && k == key {
			return v
		}
	}
	return ""
}

// Expands $VAR and ${VAR} references against the current environment.
//
// Values using shell syntax beyond parameter expansion are kept verbatim.
func (s *imageState) expand(value string) string {
	if !strings.Contains(value, "$") {
		return value
	}
	expanded, err := shell.Expand(value, s.getEnv)
	if err != nil {
		return value
	}
	return expanded
}
