// Package sbom reads SPDX documents and maps their packages to the git
// repositories they are built from.
package sbom

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	spdxjson "github.com/spdx/tools-golang/json"
	"github.com/spdx/tools-golang/rdf"
	"github.com/spdx/tools-golang/spdx"
	"github.com/spdx/tools-golang/spdx/v2/common"
	"github.com/spdx/tools-golang/tagvalue"
	spdxyaml "github.com/spdx/tools-golang/yaml"
)

// Format is an SPDX serialization.
type Format string

// Supported formats.
const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatTagValue Format = "tag-value"
	FormatRDF      Format = "rdf"
)

// Values SPDX uses for an unknown or absent download location.
const (
	noAssertion = "NOASSERTION"
	none        = "NONE"
)

// Sentinel errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported SBOM format")
	ErrParse             = errors.New("parse SBOM")
)

var gitRepoPattern = regexp.MustCompile(`((git|http(s)?)|(git@[\w\.]+))://?([\w\.@\:/\-~]+)(\.git)(/)?`)

// Package is one SPDX package and its repository. Repository is empty when
// the download location names no git repository.
type Package struct {
	ID         string
	Name       string
	Repository string
}

// Packages holds the packages of a document in document order.
type Packages []Package

// FormatForPath picks the serialization from the file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".spdx", ".tv", ".tag":
		return FormatTagValue, nil
	case ".xml", ".rdf":
		return FormatRDF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ParseFile reads the SBOM at path.
func ParseFile(path string) (Packages, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open SBOM: %w", err)
	}
	defer file.Close()

	return Read(file, format)
}

// Read decodes an SBOM in the given format.
func Read(r io.Reader, format Format) (Packages, error) {
	var (
		doc *spdx.Document
		err error
	)

	switch format {
	case FormatJSON:
		doc, err = spdxjson.Read(r)
	case FormatYAML:
		doc, err = spdxyaml.Read(r)
	case FormatTagValue:
		doc, err = tagvalue.Read(r)
	case FormatRDF:
		doc, err = rdf.Read(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	packages := make(Packages, 0, len(doc.Packages))

	for _, pkg := range doc.Packages {
		if pkg == nil {
			continue
		}

		packages = append(packages, Package{
			ID:         common.RenderElementID(pkg.PackageSPDXIdentifier),
			Name:       pkg.PackageName,
			Repository: RepositoryURL(pkg.PackageDownloadLocation),
		})
	}

	return packages, nil
}

// RepositoryURL extracts an https git URL from a download location, or
// returns "" when there is none.
func RepositoryURL(downloadLocation string) string {
	location := strings.TrimSpace(downloadLocation)
	if location == "" || location == none || location == noAssertion {
		return ""
	}

	match := gitRepoPattern.FindStringSubmatch(location)
	if match == nil {
		return ""
	}

	return "https://" + match[5]
}

// Repositories returns the sorted unique repositories of the packages.
func (p Packages) Repositories() []string {
	var out []string

	for _, pkg := range p {
		if pkg.Repository != "" {
			out = append(out, pkg.Repository)
		}
	}

	slices.Sort(out)

	return slices.Compact(out)
}

// Unmapped returns the packages without a repository.
func (p Packages) Unmapped() Packages {
	var out Packages

	for _, pkg := range p {
		if pkg.Repository == "" {
			out = append(out, pkg)
		}
	}

	return out
}

// Map returns package id to repository, "" for unmapped packages.
func (p Packages) Map() map[string]string {
	out := make(map[string]string, len(p))

	for _, pkg := range p {
		out[pkg.ID] = pkg.Repository
	}

	return out
}
