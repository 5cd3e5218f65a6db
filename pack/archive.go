package pack

import (
	"archive/tar"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fluxcd/pkg/lockedfile"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/opencontainers/go-digest"
)

// DefaultFileMode is the permission mode of produced archives and sidecars.
const DefaultFileMode fs.FileMode = 0o644

// countingWriter wraps an io.Writer and counts the bytes written.
type countingWriter struct {
	w io.Writer
	n int64
}

// Write writes p to the underlying io.Writer and increments the byte count.
func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// Options tune a Packager.
type Options struct {
	// Format of the archive. When empty it is derived from the destination
	// file name.
	Format Format
	// DigestAlgorithm used for Result.Digest. Defaults to sha256.
	DigestAlgorithm digest.Algorithm
	// NoLock disables the destination lock.
	NoLock bool
}

// Packager creates archives.
type Packager struct {
	opts Options
}

// NewPackager returns a Packager using opts.
func NewPackager(opts Options) (*Packager, error) {
	if opts.DigestAlgorithm == "" {
		opts.DigestAlgorithm = digest.Canonical
	}
	if !opts.DigestAlgorithm.Available() {
		return nil, fmt.Errorf("unsupported digest algorithm %q", opts.DigestAlgorithm)
	}
	if opts.Format != "" {
		f, err := ParseFormat(string(opts.Format))
		if err != nil {
			return nil, err
		}
		opts.Format = f
	}
	return &Packager{opts: opts}, nil
}

// Result describes a produced archive.
type Result struct {
	Path    string
	Kind    Kind
	Format  Format
	Entries []string // in archive order
	Size    int64
	Digest  digest.Digest
}

// CreateArchive archives the files of sourceRoot selected by kind into a zip
// file at destinationPath, replacing any existing file.
func CreateArchive(sourceRoot, destinationPath string, kind Kind) (*Result, error) {
	p, err := NewPackager(Options{Format: Zip})
	if err != nil {
		return nil, err
	}
	return p.CreateArchive(sourceRoot, destinationPath, kind)
}

// CreateArchive archives the files of sourceRoot selected by kind at
// destinationPath. The destination is replaced only once the new archive is
// complete.
func (p *Packager) CreateArchive(src, destinationPath string, kind Kind) (res *Result, err error) {
	root, err := resolveRoot(src)
	if err != nil {
		return nil, err
	}
	dest, err := filepath.Abs(destinationPath)
	if err != nil {
		return nil, err
	}
	format := p.opts.Format
	if format == "" {
		format = FormatFromPath(dest)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, err
	}
	if !p.opts.NoLock {
		lock, err := lockPath(dest)
		if err != nil {
			return nil, err
		}
		unlock, err := lockedfile.MutexAt(lock).Lock()
		if err != nil {
			return nil, fmt.Errorf("locking %s: %w", dest, err)
		}
		defer unlock()
	}

	files, err := collect(root, PredicateFor(kind), dest)
	if err != nil {
		return nil, err
	}

	tf, err := os.CreateTemp(filepath.Dir(dest), tempPattern(dest))
	if err != nil {
		return nil, err
	}
	tmpName := tf.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	d := p.opts.DigestAlgorithm.Digester()
	cw := &countingWriter{w: io.MultiWriter(tf, d.Hash())}

	var entries []string
	switch format {
	case TarGz:
		entries, err = writeTarGz(cw, root, files)
	default:
		entries, err = writeZip(cw, root, files)
	}
	if err != nil {
		tf.Close()
		return nil, fmt.Errorf("writing %s: %w", dest, err)
	}
	if err := tf.Close(); err != nil {
		return nil, err
	}
	if err := os.Chmod(tmpName, DefaultFileMode); err != nil {
		return nil, err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return nil, err
	}

	return &Result{
		Path:    dest,
		Kind:    kind,
		Format:  format,
		Entries: entries,
		Size:    cw.n,
		Digest:  d.Digest(),
	}, nil
}

// lockPath returns the lock file serializing writers of dest. Locks live in
// the system temporary directory so that output directories only hold
// archives and their sidecars.
func lockPath(dest string) (string, error) {
	dir := filepath.Join(os.TempDir(), "release-kit-locks")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("creating lock directory: %w", err)
	}
	return filepath.Join(dir, digest.FromString(dest).Encoded()[:32]+".lock"), nil
}

// collect walks root in lexical order and returns the absolute paths of the
// regular files accepted by include. Symbolic links to regular files are
// collected, dangling links and links to directories are not. The
// destination and its temporary files are never returned so that an archive
// written under root does not contain itself.
func collect(root string, include Predicate, dest string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !isRegular(p, d) || isOwnOutput(p, dest) {
			return nil
		}
		if include(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", root, err)
	}
	return files, nil
}

func isRegular(p string, d fs.DirEntry) bool {
	if d.Type()&fs.ModeSymlink == 0 {
		return d.Type().IsRegular()
	}
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}

func isOwnOutput(p, dest string) bool {
	if p == dest {
		return true
	}
	if filepath.Dir(p) != filepath.Dir(dest) {
		return false
	}
	return strings.HasPrefix(filepath.Base(p), tempPrefix(dest))
}

// tempPrefix is the name prefix of the temporary files written for dest.
func tempPrefix(dest string) string {
	return "." + filepath.Base(dest) + ".tmp-"
}

func tempPattern(dest string) string {
	return tempPrefix(dest) + "*"
}

func writeZip(w io.Writer, root string, files []string) (entries []string, err error) {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})
	defer func() {
		if cerr := zw.Close(); err == nil {
			err = cerr
		}
	}()

	for _, p := range files {
		name := EntryName(root, p)
		if err := addZipEntry(zw, p, name); err != nil {
			return nil, err
		}
		entries = append(entries, name)
	}
	return entries, nil
}

func addZipEntry(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(fi)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate
	ew, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(ew, f)
	return err
}

func writeTarGz(w io.Writer, root string, files []string) (entries []string, err error) {
	gw, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	tw := tar.NewWriter(gw)
	defer func() {
		if cerr := tw.Close(); err == nil {
			err = cerr
		}
		if cerr := gw.Close(); err == nil {
			err = cerr
		}
	}()

	for _, p := range files {
		name := EntryName(root, p)
		if err := addTarEntry(tw, p, name); err != nil {
			return nil, err
		}
		entries = append(entries, name)
	}
	return entries, nil
}

func addTarEntry(tw *tar.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(fi, "")
	if err != nil {
		return err
	}
	sanitizeHeader(name, hdr)
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

// sanitizeHeader names the entry and removes the owner of the file.
func sanitizeHeader(name string, h *tar.Header) {
	h.Name = name
	h.Uid = 0
	h.Gid = 0
	h.Uname = ""
	h.Gname = ""
	h.Mode &= 0o777
}
