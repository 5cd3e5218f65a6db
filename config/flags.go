package config

import (
	"os"

	"github.com/spf13/pflag"
)

const (
	flagManifest    = "manifest"
	envManifest     = "RELEASE_MANIFEST"
	defaultManifest = "release.yaml"

	flagOutput    = "output"
	envOutput     = "RELEASE_OUTPUT"
	defaultOutput = "dist"

	flagFormat = "format"

	flagDigestAlgo    = "digest-algo"
	defaultDigestAlgo = "sha256"

	envSigningKey  = "GPG_PRIVATE_KEY"
	envGitHubToken = "GITHUB_TOKEN"
)

// BindFlags will parse the given pflag.FlagSet for release-kit and set the
// Options accordingly. Secrets are read from the environment only.
func (o *Options) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.ManifestPath, flagManifest,
		envOrDefault(envManifest, defaultManifest),
		"The release manifest describing the archives to build.")

	fs.StringVar(&o.OutputDir, flagOutput,
		envOrDefault(envOutput, defaultOutput),
		"The directory where archives are written.")

	fs.StringVar(&o.Format, flagFormat, "",
		"The archive format, zip or tar.gz. Derived from the file name when empty.")

	fs.StringVar(&o.DigestAlgo, flagDigestAlgo,
		defaultDigestAlgo,
		"The hashing algorithm used for archive digests and checksum files.")

	o.SigningKey = os.Getenv(envSigningKey)
	o.GitHubToken = os.Getenv(envGitHubToken)
}

// envOrDefault returns the value of the environment variable named by the key.
// If the variable is empty or not present, it returns the defaultValue instead.
func envOrDefault(envName, defaultValue string) string {
	ret := os.Getenv(envName)
	if ret != "" {
		return ret
	}

	return defaultValue
}
