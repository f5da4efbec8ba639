package core

import (
	"fmt"
	"strings"

	packageurl "github.com/package-url/packageurl-go"
)

const ecosystem = "npm"

// PURL wraps packageurl.PackageURL with npm-specific helpers.
type PURL struct {
	packageurl.PackageURL
}

// FullName returns the package name as npm expects it, e.g. "@babel/core".
func (p PURL) FullName() string {
	if p.Namespace == "" {
		return p.Name
	}
	// packageurl-go keeps @ in namespace, so "@babel" + "/" + "core" = "@babel/core"
	return p.Namespace + "/" + p.Name
}

// ParsePURL parses an npm Package URL (pkg:npm/lodash, pkg:npm/%40babel/core@7.24.0).
func ParsePURL(purl string) (*PURL, error) {
	p, err := packageurl.FromString(purl)
	if err != nil {
		return nil, err
	}
	if p.Type != ecosystem {
		return nil, fmt.Errorf("unsupported package type %q, want %q", p.Type, ecosystem)
	}
	return &PURL{p}, nil
}

// PackageName returns the npm package name for either a plain name or a PURL.
func PackageName(nameOrPURL string) (string, error) {
	if !strings.HasPrefix(nameOrPURL, "pkg:") {
		return nameOrPURL, nil
	}
	p, err := ParsePURL(nameOrPURL)
	if err != nil {
		return "", err
	}
	return p.FullName(), nil
}

// PURLFor returns the Package URL identifying an installed dependency.
func PURLFor(dep *Dependency) string {
	namespace := ""
	name := dep.Name
	if strings.HasPrefix(name, "@") && strings.Contains(name, "/") {
		parts := strings.SplitN(name, "/", 2)
		namespace = parts[0]
		name = parts[1]
	}
	return packageurl.NewPackageURL(ecosystem, namespace, name, dep.Version, nil, "").ToString()
}
