// Package config holds the settings shared by the release-kit commands.
package config

import (
	"fmt"

	"github.com/opencontainers/go-digest"

	"github.com/etnz/release-kit/pack"
)

// Options contains the settings of a release-kit invocation.
type Options struct {
	// ManifestPath is the release manifest used by the build command.
	ManifestPath string `json:"manifestPath"`

	// OutputDir is the directory receiving the produced archives when the
	// manifest does not name one.
	OutputDir string `json:"outputDir"`

	// Format is the default archive format, zip or tar.gz.
	Format string `json:"format"`

	// DigestAlgo is the hashing algorithm of archive digests and checksum files.
	DigestAlgo string `json:"digestAlgo"`

	// SigningKey is an ASCII-armored OpenPGP private key. Archives are not
	// signed when it is empty.
	SigningKey string `json:"-"`

	// GitHubToken authenticates release asset uploads.
	GitHubToken string `json:"-"`
}

// Validate checks the option values.
func (o *Options) Validate() error {
	if _, err := pack.ParseFormat(o.Format); err != nil {
		return err
	}
	algo := digest.Algorithm(o.DigestAlgo)
	if !algo.Available() {
		return fmt.Errorf("unsupported digest algorithm %q", o.DigestAlgo)
	}
	return nil
}

// PackagerOptions returns the archive options selected by o.
func (o *Options) PackagerOptions() (pack.Options, error) {
	if err := o.Validate(); err != nil {
		return pack.Options{}, err
	}
	var f pack.Format
	if o.Format != "" {
		f, _ = pack.ParseFormat(o.Format)
	}
	return pack.Options{
		Format:          f,
		DigestAlgorithm: digest.Algorithm(o.DigestAlgo),
	}, nil
}
