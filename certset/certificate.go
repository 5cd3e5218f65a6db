package certset

import (
	"crypto/sha1"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"slices"
)

// Certificate is a certificate file that passed validation.
type Certificate struct {
	Path       string
	Type       ContentType
	Raw        []byte // DER encoding
	Thumbprint string // uppercase hex SHA-1 of Raw
	X509       *x509.Certificate
}

// CodeSigning reports whether the certificate carries the code signing
// extended key usage.
func (c *Certificate) CodeSigning() bool {
	return slices.Contains(c.X509.ExtKeyUsage, x509.ExtKeyUsageCodeSigning)
}

// Thumbprint computes the conventional Windows thumbprint of DER bytes.
func Thumbprint(der []byte) string {
	return fmt.Sprintf("%X", sha1.Sum(der))
}

// LoadCertificate reads and validates a single candidate file.
func LoadCertificate(path string) (*Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &InvalidCertificateError{Path: path, Err: err}
	}
	t, reason := classify(data)
	if !t.Accepted() {
		return nil, &InvalidCertificateError{Path: path, Type: t, Reason: reason}
	}
	cert, err := decode(t, data)
	if err != nil {
		return nil, &InvalidCertificateError{Path: path, Type: t, Err: err}
	}
	return &Certificate{
		Path:       path,
		Type:       t,
		Raw:        cert.Raw,
		Thumbprint: Thumbprint(cert.Raw),
		X509:       cert,
	}, nil
}

func decode(t ContentType, data []byte) (*x509.Certificate, error) {
	switch t {
	case Cert:
		if looksLikePEM(data) {
			return x509.ParseCertificate(firstPEMCertificate(data))
		}
		return x509.ParseCertificate(data)
	case Authenticode:
		return authenticodeCertificate(data)
	case SerializedCert:
		der, ok := serializedCertificate(data)
		if !ok {
			return nil, errors.New("malformed serialized certificate")
		}
		return x509.ParseCertificate(der)
	}
	return nil, fmt.Errorf("unsupported content type %s", t)
}
