package delta

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/cruciblehq/cruxslim/internal/guest"
)

// Entries mounted into the target container. The guest mounts show up in the
// container's filesystem as empty mount points, and /etc/resolv.conf carries
// the host's resolver configuration. None of them belong in a delta.
var DefaultExclude = []string{guest.BinaryPath, guest.StracePath, guest.ScratchPath, "/etc/resolv.conf"}

// Options controlling a diff.
type Options struct {
	Policy  Policy   // Entry types to emit.
	Exclude []string // Names never emitted, along with everything below them.
}

// Outcome of a diff.
type Report struct {
	Added   []string // Names written to the delta, in slim order.
	Changed []string // Regular files in both archives whose content differs.
	Skipped []string // New entries dropped by the policy.
}

// Writes the entries of slim that are absent from base to out.
//
// Base is consumed fully before slim is read. Entry headers and contents
// are copied unchanged, in the order they appear in slim. Excluded names
// are dropped silently and appear in no report field.
func Diff(base, slim io.Reader, out io.Writer, opts Options) (*Report, error) {
	baseEntries, err := readNames(base)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBaseArchive, err)
	}

	d := &differ{
		base:    baseEntries,
		opts:    opts,
		emitted: make(map[string]bool),
		report:  &Report{},
	}
	if err := d.stream(slim, out); err != nil {
		return nil, err
	}

	slog.Debug("delta computed",
		"added", len(d.report.Added),
		"changed", len(d.report.Changed),
		"skipped", len(d.report.Skipped),
	)

	return d.report, nil
}

// Diffs two archive files into a third.
//
// The output file is removed if the diff fails.
func DiffFiles(basePath, slimPath, outPath string, opts Options) (report *Report, err error) {
	base, err := os.Open(basePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBaseArchive, err)
	}
	defer base.Close()

	slim, err := os.Open(slimPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSlimArchive, err)
	}
	defer slim.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %w", ErrWrite, cerr)
		}
		if err != nil {
			os.Remove(outPath)
			report = nil
		}
	}()

	return Diff(base, slim, out, opts)
}

// Streams the slim archive and writes new entries.
type differ struct {
	base    map[string]digest.Digest // Base names; regular files carry their digest.
	opts    Options
	emitted map[string]bool // Names written so far, for hardlink targets.
	report  *Report
}

func (d *differ) stream(slim io.Reader, out io.Writer) error {
	tr := tar.NewReader(slim)
	tw := tar.NewWriter(out)

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSlimArchive, err)
		}

		name := normalize(hdr.Name)
		if d.excluded(name) {
			continue
		}

		if baseDigest, ok := d.base[name]; ok {
			if err := d.compare(name, hdr, baseDigest, tr); err != nil {
				return err
			}
			continue
		}

		if !d.admit(hdr) {
			d.report.Skipped = append(d.report.Skipped, name)
			continue
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("%w: %w", ErrWrite, err)
		}
		if isRegular(hdr) {
			if _, err := io.Copy(tw, tr); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrWrite, name, err)
			}
		}

		d.emitted[name] = true
		d.report.Added = append(d.report.Added, name)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

// Records a regular file present in both archives whose content differs.
func (d *differ) compare(name string, hdr *tar.Header, baseDigest digest.Digest, r io.Reader) error {
	if baseDigest == "" || !isRegular(hdr) {
		return nil
	}

	slimDigest, err := digest.SHA256.FromReader(r)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSlimArchive, name, err)
	}
	if slimDigest != baseDigest {
		d.report.Changed = append(d.report.Changed, name)
	}
	return nil
}

// Reports whether a new entry is written under the configured policy.
func (d *differ) admit(hdr *tar.Header) bool {
	if isRegular(hdr) {
		return true
	}
	if d.opts.Policy != AllTypes {
		return false
	}

	switch hdr.Typeflag {
	case tar.TypeDir, tar.TypeSymlink:
		return true
	case tar.TypeLink:
		return d.emitted[normalize(hdr.Linkname)]
	default:
		return false
	}
}

// Reports whether a name is an excluded entry or lies below one.
func (d *differ) excluded(name string) bool {
	for _, ex := range d.opts.Exclude {
		ex = normalize(ex)
		if name == ex || strings.HasPrefix(name, ex+"/") {
			return true
		}
	}
	return false
}

// Reads every entry name of an archive, with digests of regular files.
func readNames(r io.Reader) (map[string]digest.Digest, error) {
	names := make(map[string]digest.Digest)

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return names, nil
		}
		if err != nil {
			return nil, err
		}

		name := normalize(hdr.Name)
		if !isRegular(hdr) {
			names[name] = ""
			continue
		}

		dgst, err := digest.SHA256.FromReader(tr)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		names[name] = dgst
	}
}

// Returns the clean absolute form of an archive entry name.
func normalize(name string) string {
	return path.Clean("/" + name)
}

func isRegular(hdr *tar.Header) bool {
	return hdr.Typeflag == tar.TypeReg
}
