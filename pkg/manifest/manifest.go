// Package manifest reads the scanned project's package.json so the report
// header can show the application name, version and description.
package manifest

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/auditview/auditview/pkg/defaults"
	"github.com/auditview/auditview/pkg/jsonutil"
)

// File names looked up inside a project directory.
const (
	PackageJSON = "package.json"
	LockfileV2  = "package-lock.json"
)

var (
	// ErrNotFound indicates no package.json exists at the given location.
	ErrNotFound = errors.New("manifest: package.json not found")

	// ErrLockfileNotFound indicates the project has no package-lock.json,
	// which npm audit requires.
	ErrLockfileNotFound = errors.New("manifest: package-lock.json not found")

	// ErrInvalid indicates package.json could not be decoded.
	ErrInvalid = errors.New("manifest: invalid package.json")
)

// Manifest is the subset of package.json the report uses.
type Manifest struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Private     bool   `json:"private"`

	Dependencies     map[string]string `json:"dependencies,omitempty"`
	DevDependencies  map[string]string `json:"devDependencies,omitempty"`
	PeerDependencies map[string]string `json:"peerDependencies,omitempty"`
}

// Declared is the number of packages the project declares directly:
// dependencies, devDependencies and peerDependencies. A package listed in
// more than one group counts once per group, as npm installs it per group.
func (m *Manifest) Declared() int {
	if m == nil {
		return 0
	}
	return len(m.Dependencies) + len(m.DevDependencies) + len(m.PeerDependencies)
}

// Load reads package.json from path, which may be the file itself or the
// project directory containing it.
func Load(path string) (*Manifest, error) {
	file, err := resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, file)
		}
		return nil, fmt.Errorf("manifest: open: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, defaults.MaxManifestBytes))
	if err != nil {
		return nil, fmt.Errorf("manifest: read: %w", err)
	}
	return Parse(data)
}

// Parse decodes package.json content. Unknown fields are ignored.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := jsonutil.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return &m, nil
}

// CheckLockfile returns ErrLockfileNotFound when dir has no
// package-lock.json.
func CheckLockfile(dir string) error {
	if _, err := os.Stat(filepath.Join(dir, LockfileV2)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrLockfileNotFound
		}
		return fmt.Errorf("manifest: stat lockfile: %w", err)
	}
	return nil
}

func resolve(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("manifest: stat: %w", err)
	}
	if info.IsDir() {
		return filepath.Join(path, PackageJSON), nil
	}
	return path, nil
}
