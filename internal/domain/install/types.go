// Package install implements kostore's install pipeline: fetching a plugin
// archive or patch set from an archive source, locating the plugin root
// inside an archive of unknown layout, and replacing the installed copy
// under the KOReader data directory.
package install

import (
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/kostore/internal/validation"
)

// Kind is the kind of payload a package delivers.
type Kind string

const (
	// KindPluginBundle is a zipped plugin directory installed under plugins/.
	KindPluginBundle Kind = "plugin"
	// KindPatchSet is a set of loose patch files installed under patches/.
	KindPatchSet Kind = "patch"
)

// ParseKind parses "plugin" or "patch".
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindPluginBundle:
		return KindPluginBundle, nil
	case KindPatchSet:
		return KindPatchSet, nil
	default:
		return "", fmt.Errorf("unknown package kind %q (want plugin or patch)", s)
	}
}

// Package identifies a remote package.
type Package struct {
	Owner string
	Name  string
	Kind  Kind
}

// ParsePackage parses an "owner/repo" reference.
func ParsePackage(ref string, kind Kind) (Package, error) {
	ref = strings.TrimSuffix(strings.TrimSpace(ref), "/")
	owner, name, ok := strings.Cut(ref, "/")
	if !ok || strings.Contains(name, "/") {
		return Package{}, fmt.Errorf("invalid package reference %q: expected owner/repo", ref)
	}

	pkg := Package{Owner: owner, Name: name, Kind: kind}
	if err := pkg.Validate(); err != nil {
		return Package{}, err
	}
	return pkg, nil
}

// String returns the owner/repo form.
func (p Package) String() string {
	return p.Owner + "/" + p.Name
}

// Validate checks the owner and repository name.
func (p Package) Validate() error {
	if err := validation.ValidateOwner(p.Owner); err != nil {
		return fmt.Errorf("package owner: %w", err)
	}
	if err := validation.ValidateRepoName(p.Name); err != nil {
		return fmt.Errorf("package name: %w", err)
	}
	return nil
}

// Request is one install or update of a package.
type Request struct {
	Package     Package
	InstallRoot string
	Kind        Kind
	IsUpdate    bool
}

// NewRequest builds a request whose Kind follows the package.
func NewRequest(pkg Package, installRoot string, isUpdate bool) Request {
	return Request{
		Package:     pkg,
		InstallRoot: installRoot,
		Kind:        pkg.Kind,
		IsUpdate:    isUpdate,
	}
}

// Validate reports whether the request can be run.
func (r Request) Validate() error {
	if strings.TrimSpace(r.InstallRoot) == "" {
		return errors.New("install root is required")
	}
	if err := r.Package.Validate(); err != nil {
		return err
	}
	switch r.Kind {
	case KindPluginBundle, KindPatchSet:
	default:
		return fmt.Errorf("unknown package kind %q", r.Kind)
	}
	if r.Package.Kind != "" && r.Package.Kind != r.Kind {
		return fmt.Errorf("request kind %q does not match package kind %q", r.Kind, r.Package.Kind)
	}
	return nil
}

// PatchFile is one downloadable patch listed by an archive source.
type PatchFile struct {
	Name        string
	DownloadURL string
}

// Outcome is the single terminal result of a run.
type Outcome struct {
	Success bool
	Message string
	// Err is nil on success and an *Error otherwise.
	Err error

	RunID string
	// Target is the installed plugin directory or the patches directory.
	Target string
	// Files lists the patch files written by a patch run.
	Files []string
	// States lists the pipeline states visited, in order.
	States []State
}
