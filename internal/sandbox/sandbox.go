// Package sandbox confines client-supplied filenames to a single directory.
//
// Every name is canonicalized (".", ".." and every symlink resolved) before
// it is compared with the canonical root, and the comparison only accepts a
// match at a path-segment boundary.
package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// maxSymlinkHops bounds symlink expansion during canonicalization.
const maxSymlinkHops = 255

var (
	// ErrAccessDenied reports a name whose canonical path lies outside the root.
	ErrAccessDenied = errors.New("access denied")

	// ErrTooManyLinks reports a symlink chain longer than maxSymlinkHops.
	ErrTooManyLinks = errors.New("too many levels of symbolic links")
)

// Sandbox is an immutable, canonical sandbox root shared by all sessions.
type Sandbox struct {
	root string
}

type options struct {
	create bool
	mode   fs.FileMode
}

// Option configures New.
type Option func(*options)

// WithCreate creates the root directory (and parents) when it is missing.
func WithCreate(create bool) Option {
	return func(o *options) {
		o.create = create
	}
}

// WithMode sets the permissions used by WithCreate.
func WithMode(mode fs.FileMode) Option {
	return func(o *options) {
		o.mode = mode
	}
}

// New canonicalizes root and returns a Sandbox around it. The root must be
// an existing directory unless WithCreate(true) is given.
func New(root string, opts ...Option) (*Sandbox, error) {
	o := options{mode: 0755}
	for _, opt := range opts {
		opt(&o)
	}

	if root == "" {
		return nil, errors.New("sandbox root is empty")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve sandbox root %q: %w", root, err)
	}

	if o.create {
		if err := os.MkdirAll(abs, o.mode); err != nil {
			return nil, fmt.Errorf("create sandbox root %q: %w", abs, err)
		}
	}

	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("canonicalize sandbox root %q: %w", abs, err)
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return nil, fmt.Errorf("stat sandbox root %q: %w", canonical, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sandbox root %q is not a directory", canonical)
	}

	return &Sandbox{root: canonical}, nil
}

// Root returns the canonical root path.
func (s *Sandbox) Root() string {
	return s.root
}

// Resolve maps a client-supplied name to a canonical path inside the root.
//
// Relative names are taken relative to the root; absolute names are used as
// given. The candidate is fully canonicalized, following symlinks even when
// the final target does not exist, and ErrAccessDenied is returned unless
// the result is the root itself or lies beneath it.
func (s *Sandbox) Resolve(name string) (string, error) {
	candidate := name
	if !filepath.IsAbs(candidate) {
		candidate = s.root + string(filepath.Separator) + name
	}

	canonical, err := Canonicalize(candidate)
	if err != nil {
		return "", err
	}

	if !s.Contains(canonical) {
		return "", ErrAccessDenied
	}
	return canonical, nil
}

// Contains reports whether canonical is the root or a descendant of it.
// The argument must already be canonical.
func (s *Sandbox) Contains(canonical string) bool {
	if canonical == s.root {
		return true
	}
	prefix := s.root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(canonical, prefix)
}

// Canonicalize returns the absolute form of p with "." and ".." removed and
// every symlink along the way expanded. Components that do not exist are
// appended lexically, so a missing file still canonicalizes to the location
// it would occupy.
func Canonicalize(p string) (string, error) {
	if !filepath.IsAbs(p) {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", err
		}
		p = abs
	}

	vol := filepath.VolumeName(p)
	top := vol + string(filepath.Separator)
	resolved := top
	pending := splitPath(p[len(vol):])
	hops := 0

	for len(pending) > 0 {
		comp := pending[0]
		pending = pending[1:]

		switch comp {
		case ".":
			continue
		case "..":
			resolved = filepath.Dir(resolved)
			continue
		}

		next := filepath.Join(resolved, comp)
		info, err := os.Lstat(next)
		if err != nil {
			if isMissing(err) {
				resolved = next
				continue
			}
			return "", fmt.Errorf("canonicalize %q: %w", p, err)
		}

		if info.Mode()&fs.ModeSymlink == 0 {
			resolved = next
			continue
		}

		hops++
		if hops > maxSymlinkHops {
			return "", fmt.Errorf("canonicalize %q: %w", p, ErrTooManyLinks)
		}

		target, err := os.Readlink(next)
		if err != nil {
			return "", fmt.Errorf("canonicalize %q: %w", p, err)
		}

		if filepath.IsAbs(target) {
			tvol := filepath.VolumeName(target)
			resolved = tvol + string(filepath.Separator)
			target = target[len(tvol):]
		}
		pending = append(splitPath(target), pending...)
	}

	return resolved, nil
}

func splitPath(p string) []string {
	parts := strings.Split(filepath.ToSlash(p), "/")
	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isMissing(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}
