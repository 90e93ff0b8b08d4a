package docroot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:generate mockgen -source resolver.go -destination mock/resolver.go

// DefaultResource is served for the target "/".
const DefaultResource = "hello.html"

// ErrNotFound covers a missing file, a target outside the root, and a
// target that is not a regular file. Callers must not tell them apart.
var ErrNotFound = errors.New("resource not found")

// Resolver maps a decoded request target to a file path.
type Resolver interface {
	Resolve(target string) (string, error)
}

var _ Resolver = (*Root)(nil)

// Root is a read-only document root. It is safe for concurrent use.
type Root struct {
	dir             string
	defaultResource string
}

// New returns a Root for dir, made absolute and cleaned.
func New(dir, defaultResource string) (*Root, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve document root %q: %w", dir, err)
	}

	if defaultResource == "" {
		defaultResource = DefaultResource
	}

	return &Root{
		dir:             abs,
		defaultResource: defaultResource,
	}, nil
}

// Getwd returns a Root for the current working directory.
func Getwd(defaultResource string) (*Root, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return New(wd, defaultResource)
}

// Dir returns the absolute document root.
func (r *Root) Dir() string {
	return r.dir
}

// Join maps a decoded target onto the root and normalizes the result.
// It does not check the traversal guard.
func (r *Root) Join(target string) string {
	if target == "/" {
		target = "/" + r.defaultResource
	}
	return filepath.Join(r.dir, strings.TrimLeft(target, "/"))
}

// Resolve returns the path of the regular file named by target, or
// ErrNotFound. The guard is a string-prefix check on the normalized path;
// symlinks are followed by the OS and not canonicalized.
func (r *Root) Resolve(target string) (string, error) {
	path := r.Join(target)

	if !strings.HasPrefix(path, r.dir) {
		return "", ErrNotFound
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", ErrNotFound
	}

	return path, nil
}
