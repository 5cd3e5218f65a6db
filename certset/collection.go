package certset

import (
	"github.com/etnz/release-kit/report"
)

// Collection is an ordered, append-only list of validated certificates.
// Duplicates are kept.
type Collection struct {
	certs []*Certificate
}

func (c *Collection) add(cert *Certificate) { c.certs = append(c.certs, cert) }

// Len returns the number of certificates.
func (c *Collection) Len() int { return len(c.certs) }

// Certificates returns the certificates in insertion order.
func (c *Collection) Certificates() []*Certificate {
	out := make([]*Certificate, len(c.certs))
	copy(out, c.certs)
	return out
}

// Thumbprints returns the thumbprints in insertion order.
func (c *Collection) Thumbprints() []string {
	out := make([]string, 0, len(c.certs))
	for _, cert := range c.certs {
		out = append(out, cert.Thumbprint)
	}
	return out
}

// Builder assembles certificate collections and reports progress.
type Builder struct {
	r report.Reporter
}

// NewBuilder returns a Builder reporting to r. A nil r discards messages.
func NewBuilder(r report.Reporter) *Builder {
	if r == nil {
		r = report.Discard
	}
	return &Builder{r: r}
}

// BuildCollection validates every path in order and collects the
// certificates. It stops at the first invalid path and returns what was
// collected so far together with an *InvalidCertificateError.
func (b *Builder) BuildCollection(paths []string) (*Collection, error) {
	collection := &Collection{}
	for _, path := range paths {
		cert, err := LoadCertificate(path)
		if err != nil {
			b.r.Error("BuildCollection", err)
			return collection, err
		}
		collection.add(cert)
		b.r.Infof("Including additional certificate %s.", cert.Thumbprint)
	}
	return collection, nil
}

// BuildCollection runs a Builder that discards all messages.
func BuildCollection(paths []string) (*Collection, error) {
	return NewBuilder(nil).BuildCollection(paths)
}

// IsAuthenticodeSignable reports whether path holds an Authenticode
// signature. Unreadable files are not signable.
func IsAuthenticodeSignable(path string) bool {
	t, err := ContentTypeOfFile(path)
	return err == nil && t == Authenticode
}
