// Package manifest provides functionality to define and build the archives of a
// release using declarative configuration files.
package manifest

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/opencontainers/go-digest"
	"go.yaml.in/yaml/v3"

	"github.com/etnz/release-kit/certset"
	"github.com/etnz/release-kit/pack"
	"github.com/etnz/release-kit/report"
)

// Release represents the configuration of a release: where archives go,
// global variables, the certificates to validate and the archives to build.
type Release struct {
	// Output is the directory receiving the archives. Relative paths are
	// resolved against the manifest directory.
	Output string `json:"output" yaml:"output"`
	// Defines is a map of global variables available to templates.
	Defines map[string]string `json:"defines" yaml:"defines"`
	// Certificates are additional certificates handed to the code signing
	// step. They must all be pure public certificates.
	Certificates []string `json:"certificates" yaml:"certificates"`
	// Artifacts are the archives to build, in order.
	Artifacts []Artifact `json:"artifacts" yaml:"artifacts"`
	// Format is the archive format of artifacts that do not name one. When
	// empty the format is derived from each destination.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
	// Digest is the hashing algorithm of archive digests. Defaults to sha256.
	Digest string `json:"digest" yaml:"digest"`
	// Checksums writes a checksum file next to every archive.
	Checksums bool `json:"checksums" yaml:"checksums"`
	// Sign writes a detached OpenPGP signature next to every archive.
	Sign bool `json:"sign" yaml:"sign"`
	// PublicKey, if set, is the file name under Output receiving the public
	// part of the signing key.
	PublicKey string `json:"public_key" yaml:"public_key"`

	filePath string
	engine   *templateEngine
}

// Artifact is a single archive of a release.
type Artifact struct {
	// Source is the build output directory to archive.
	Source string `json:"source" yaml:"source"`
	// Destination is the archive file name, relative to the release output.
	Destination string `json:"destination" yaml:"destination"`
	// Kind selects the files of Source that are archived.
	Kind pack.Kind `json:"kind" yaml:"kind"`
	// Format overrides the format derived from Destination.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
	// Defines are local variables, overriding the global ones.
	Defines map[string]string `json:"defines,omitempty" yaml:"defines,omitempty"`
}

// Load loads and parses a Release configuration from the specified file path.
// It supports both JSON and YAML formats based on the file extension.
func Load(path string) (*Release, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var rel Release
	if err := unmarshal(path, content, &rel); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	rel.filePath = path
	rel.engine, err = newTemplateEngine(rel.Defines)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize template engine: %w", err)
	}

	if len(rel.Artifacts) == 0 {
		return nil, fmt.Errorf("manifest %s must specify 'artifacts'", path)
	}
	for i, a := range rel.Artifacts {
		if a.Source == "" || a.Destination == "" {
			return nil, fmt.Errorf("artifact #%d must specify 'source' and 'destination'", i+1)
		}
	}
	return &rel, nil
}

// Define overrides global definitions of the manifest.
func (r *Release) Define(defines map[string]string) error {
	if len(defines) == 0 {
		return nil
	}
	if r.Defines == nil {
		r.Defines = map[string]string{}
	}
	for k, v := range defines {
		r.Defines[k] = v
	}
	eng, err := newTemplateEngine(r.Defines)
	if err != nil {
		return fmt.Errorf("failed to initialize template engine: %w", err)
	}
	r.engine = eng
	return nil
}

// SetOutput overrides the output directory of the manifest.
func (r *Release) SetOutput(dir string) { r.Output = dir }

// OutputDir returns the resolved output directory.
func (r *Release) OutputDir() (string, error) {
	out, err := r.engine.render("output", r.Output)
	if err != nil {
		return "", fmt.Errorf("rendering output %q: %w", r.Output, err)
	}
	if out == "" {
		out = "dist"
	}
	return r.resolve(out), nil
}

// plan is an artifact with every template rendered and every path resolved.
type plan struct {
	source      string
	destination string
	kind        pack.Kind
	format      pack.Format
}

func (r *Release) resolveArtifact(output string, a Artifact) (*plan, error) {
	eng, err := r.engine.sub(a.Defines)
	if err != nil {
		return nil, fmt.Errorf("processing defines: %w", err)
	}
	src, err := eng.render("source", a.Source)
	if err != nil {
		return nil, fmt.Errorf("rendering source %q: %w", a.Source, err)
	}
	name, err := eng.render("destination", a.Destination)
	if err != nil {
		return nil, fmt.Errorf("rendering destination %q: %w", a.Destination, err)
	}
	dest, err := securejoin.SecureJoin(output, name)
	if err != nil {
		return nil, fmt.Errorf("resolving destination %q: %w", name, err)
	}
	var format pack.Format
	if f := cmp.Or(a.Format, r.Format); f != "" {
		if format, err = pack.ParseFormat(f); err != nil {
			return nil, err
		}
	}
	return &plan{
		source:      r.resolve(src),
		destination: dest,
		kind:        a.Kind,
		format:      format,
	}, nil
}

// CertificatePaths returns the resolved certificate paths.
func (r *Release) CertificatePaths() ([]string, error) {
	var paths []string
	for _, c := range r.Certificates {
		p, err := r.engine.render("certificate", c)
		if err != nil {
			return nil, fmt.Errorf("rendering certificate path %q: %w", c, err)
		}
		paths = append(paths, r.resolve(p))
	}
	return paths, nil
}

// Build validates the certificates and builds every artifact of the release
// sequentially. Archives are signed with gpgKey when the manifest asks so.
// Certificate progress goes to rep, build events to l.
func (r *Release) Build(gpgKey string, rep report.Reporter, l Listener) ([]*pack.Result, error) {
	if l == nil {
		l = func(fmt.Stringer) {}
	}
	if r.Sign && gpgKey == "" {
		return nil, errors.New("manifest requires signing but no signing key is configured")
	}
	l(EventManifestLoadSuccess{Path: r.filePath, Artifacts: len(r.Artifacts)})

	if len(r.Certificates) > 0 {
		paths, err := r.CertificatePaths()
		if err != nil {
			return nil, err
		}
		col, err := certset.NewBuilder(rep).BuildCollection(paths)
		if err != nil {
			return nil, fmt.Errorf("failed to validate certificates: %w", err)
		}
		l(EventCertificatesValidated{Thumbprints: col.Thumbprints()})
	}

	output, err := r.OutputDir()
	if err != nil {
		return nil, err
	}

	var results []*pack.Result
	for i, a := range r.Artifacts {
		p, err := r.resolveArtifact(output, a)
		if err != nil {
			return results, fmt.Errorf("artifact #%d: %w", i+1, err)
		}
		res, err := r.buildArtifact(p, gpgKey, l)
		if err != nil {
			return results, fmt.Errorf("failed to build %s: %w", p.destination, err)
		}
		results = append(results, res)
	}

	if r.Sign && r.PublicKey != "" {
		if err := r.writePublicKey(output, gpgKey, l); err != nil {
			return results, err
		}
	}

	l(EventBuildSuccess{Output: output, Artifacts: len(results)})
	return results, nil
}

func (r *Release) buildArtifact(p *plan, gpgKey string, l Listener) (*pack.Result, error) {
	packager, err := pack.NewPackager(pack.Options{
		Format:          p.format,
		DigestAlgorithm: digest.Algorithm(r.Digest),
	})
	if err != nil {
		return nil, err
	}

	old, err := pack.FileDigest(p.destination, digest.Algorithm(r.Digest))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	res, err := packager.CreateArchive(p.source, p.destination, p.kind)
	if err != nil {
		return nil, err
	}
	l(EventArchiveCreated{
		Source:  p.source,
		Path:    res.Path,
		Kind:    res.Kind.String(),
		Entries: len(res.Entries),
		Size:    res.Size,
		Digest:  res.Digest.String(),
	})
	l(fileOperation(res.Path, old, res.Digest))

	if r.Checksums {
		path, err := pack.WriteChecksum(res)
		if err != nil {
			return nil, err
		}
		l(EventFileOperation{Path: path, NewDigest: res.Digest.String(), Created: true})
	}
	if r.Sign {
		path, err := pack.SignFile(res.Path, gpgKey)
		if err != nil {
			return nil, err
		}
		l(EventFileOperation{Path: path, Created: true})
	}
	return res, nil
}

func (r *Release) writePublicKey(output, gpgKey string, l Listener) error {
	pub, err := pack.PublicKey(gpgKey)
	if err != nil {
		return fmt.Errorf("failed to extract public key: %w", err)
	}
	path, err := securejoin.SecureJoin(output, r.PublicKey)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, pub, pack.DefaultFileMode); err != nil {
		return err
	}
	l(EventFileOperation{Path: path, Created: true})
	return nil
}

func fileOperation(path string, old, cur digest.Digest) EventFileOperation {
	return EventFileOperation{
		Path:      path,
		OldDigest: old.String(),
		NewDigest: cur.String(),
		Created:   old == "",
		Updated:   old != "" && old != cur,
	}
}

func (r *Release) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(r.filePath), path)
}

// unmarshal parses JSON or YAML based on file extension.
func unmarshal(path string, data []byte, v interface{}) error {
	ext := strings.ToLower(filepath.Ext(path))
	r := bytes.NewReader(data)
	if ext == ".yaml" || ext == ".yml" {
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		return dec.Decode(v)
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
