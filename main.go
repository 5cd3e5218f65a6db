package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/etnz/release-kit/certset"
	"github.com/etnz/release-kit/config"
	"github.com/etnz/release-kit/github"
	"github.com/etnz/release-kit/manifest"
	"github.com/etnz/release-kit/pack"
	"github.com/etnz/release-kit/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app holds the state shared by the commands of a single invocation.
type app struct {
	opts config.Options
	out  io.Writer
	rep  *report.Console
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{
		out: stdout,
		rep: &report.Console{Out: stdout, Err: stderr},
	}
	root := &cobra.Command{
		Use:   "release-kit",
		Short: "Prepare release archives and code signing certificates",
		Long: `release-kit prepares the artifacts of a release.

It packages build output directories into release, SDK and symbol archives,
validates the additional certificates handed to code signing, and publishes
the results as GitHub release assets.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.opts.Validate()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	a.opts.BindFlags(root.PersistentFlags())

	root.AddCommand(a.archiveCmd(), a.certsCmd(), a.buildCmd(), a.publishCmd())
	return root
}

func (a *app) archiveCmd() *cobra.Command {
	var (
		kindName string
		src, out string
		checksum bool
		sign     bool
	)
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Package a build output directory",
		Example: `  release-kit archive --kind release --src build/Release --out dist/app.zip
  release-kit archive --kind symbols --src build/Release --out dist/app-symbols.tar.gz --checksum`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := pack.ParseKind(kindName)
			if err != nil {
				return err
			}
			if sign && a.opts.SigningKey == "" {
				return errors.New("--sign requires the GPG_PRIVATE_KEY environment variable")
			}
			po, err := a.opts.PackagerOptions()
			if err != nil {
				return err
			}
			p, err := pack.NewPackager(po)
			if err != nil {
				return err
			}
			res, err := p.CreateArchive(src, out, kind)
			if err != nil {
				return err
			}
			a.rep.Infof("Created %s archive %s with %d entries (%s).", res.Kind, res.Path, len(res.Entries), res.Digest)

			if checksum {
				path, err := pack.WriteChecksum(res)
				if err != nil {
					return err
				}
				a.rep.Infof("Wrote checksum %s.", path)
			}
			if sign {
				path, err := pack.SignFile(res.Path, a.opts.SigningKey)
				if err != nil {
					return err
				}
				a.rep.Infof("Wrote signature %s.", path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kindName, "kind", pack.Release.String(), "The artifact kind: release, sdk or symbols.")
	cmd.Flags().StringVar(&src, "src", "", "The build output directory to package.")
	cmd.Flags().StringVar(&out, "out", "", "The archive file to write.")
	cmd.Flags().BoolVar(&checksum, "checksum", false, "Write a checksum file next to the archive.")
	cmd.Flags().BoolVar(&sign, "sign", false, "Write a detached OpenPGP signature next to the archive.")
	_ = cmd.MarkFlagRequired("src")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func (a *app) certsCmd() *cobra.Command {
	var signable bool
	cmd := &cobra.Command{
		Use:   "certs FILE...",
		Short: "Validate additional code signing certificates",
		Long: `Validate that every file is a pure public certificate: a DER or PEM
certificate, an Authenticode signature or a serialized certificate store
element. Private keys, PKCS#12 bundles and anything else are rejected.

With --signable, report instead whether each file carries an Authenticode
signature.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if signable {
				return a.checkSignable(args)
			}
			col, err := certset.NewBuilder(a.rep).BuildCollection(args)
			if err != nil {
				return err
			}
			for _, c := range col.Certificates() {
				fmt.Fprintf(a.out, "%s\t%s\t%s\n", c.Thumbprint, c.Type, c.X509.Subject)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&signable, "signable", false, "Check for an Authenticode signature instead.")
	return cmd
}

func (a *app) checkSignable(paths []string) error {
	var missing int
	for _, p := range paths {
		ok := certset.IsAuthenticodeSignable(p)
		if !ok {
			missing++
		}
		fmt.Fprintf(a.out, "%s\t%t\n", p, ok)
	}
	if missing > 0 {
		return fmt.Errorf("%d of %d files are not Authenticode signatures", missing, len(paths))
	}
	return nil
}

func (a *app) buildCmd() *cobra.Command {
	var defines map[string]string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build every archive of a release manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rel, err := manifest.Load(a.opts.ManifestPath)
			if err != nil {
				return err
			}
			if err := rel.Define(defines); err != nil {
				return err
			}
			if rel.Output == "" || cmd.Flags().Changed("output") {
				rel.SetOutput(a.opts.OutputDir)
			}
			if rel.Format == "" || cmd.Flags().Changed("format") {
				rel.Format = a.opts.Format
			}
			if rel.Digest == "" {
				rel.Digest = a.opts.DigestAlgo
			}
			_, err = rel.Build(a.opts.SigningKey, a.rep, func(e fmt.Stringer) {
				fmt.Fprintln(a.out, e.String())
			})
			return err
		},
	}
	cmd.Flags().StringToStringVarP(&defines, "define", "D", nil, "Override a manifest definition (KEY=VALUE).")
	return cmd
}

func (a *app) publishCmd() *cobra.Command {
	var (
		to      string
		retries int
	)
	cmd := &cobra.Command{
		Use:     "publish FILE...",
		Short:   "Upload files as GitHub release assets",
		Example: `  GITHUB_TOKEN=... release-kit publish --to github.com/owner/repo/tags/v1.0.0 dist/*.zip`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := github.ParseTarget(to)
			if err != nil {
				return err
			}
			if a.opts.GitHubToken == "" {
				return errors.New("publishing requires the GITHUB_TOKEN environment variable")
			}
			c := github.NewClient(a.opts.GitHubToken, retries)
			return c.Publish(cmd.Context(), target, args, a.rep)
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Target GitHub release slug (github.com/owner/repo/tags/tag).")
	cmd.Flags().IntVar(&retries, "retries", 4, "The number of retries of a failed request.")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
