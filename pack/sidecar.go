package pack

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/opencontainers/go-digest"
)

// ChecksumPath returns the path of the checksum file of an archive.
func ChecksumPath(r *Result) string {
	return r.Path + "." + r.Digest.Algorithm().String()
}

// WriteChecksum writes the digest of the archive next to it, in the format
// understood by sha256sum -c.
func WriteChecksum(r *Result) (string, error) {
	if err := r.Digest.Validate(); err != nil {
		return "", fmt.Errorf("invalid archive digest: %w", err)
	}
	path := ChecksumPath(r)
	line := fmt.Sprintf("%s  %s\n", r.Digest.Encoded(), filepath.Base(r.Path))
	if err := writeFileAtomic(path, []byte(line)); err != nil {
		return "", err
	}
	return path, nil
}

// FileDigest computes the digest of the file at path. An empty algo selects
// sha256.
func FileDigest(path string, algo digest.Algorithm) (digest.Digest, error) {
	if algo == "" {
		algo = digest.Canonical
	}
	if !algo.Available() {
		return "", fmt.Errorf("unsupported digest algorithm %q", algo)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return algo.FromReader(f)
}

// SignFile writes an ASCII-armored detached OpenPGP signature of the file at
// path to path+".asc". The first private key of the armored key ring signs.
func SignFile(path, key string) (string, error) {
	signer, err := signingEntity(key)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sig bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&sig, signer, f, nil); err != nil {
		return "", fmt.Errorf("signing %s: %w", path, err)
	}
	out := path + ".asc"
	if err := writeFileAtomic(out, sig.Bytes()); err != nil {
		return "", err
	}
	return out, nil
}

// PublicKey returns the armored public key of the signing entity of key.
func PublicKey(key string) ([]byte, error) {
	signer, err := signingEntity(key)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		return nil, err
	}
	if err := signer.Serialize(w); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func signingEntity(key string) (*openpgp.Entity, error) {
	entities, err := openpgp.ReadArmoredKeyRing(strings.NewReader(key))
	if err != nil {
		return nil, fmt.Errorf("reading signing key: %w", err)
	}
	for _, e := range entities {
		if e.PrivateKey != nil {
			return e, nil
		}
	}
	return nil, fmt.Errorf("no private key found")
}

// writeFileAtomic replaces path with data through a temporary file.
func writeFileAtomic(path string, data []byte) (err error) {
	tf, err := os.CreateTemp(filepath.Dir(path), tempPattern(path))
	if err != nil {
		return err
	}
	tmpName := tf.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()
	if _, err := tf.Write(data); err != nil {
		tf.Close()
		return err
	}
	if err := tf.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, DefaultFileMode); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
