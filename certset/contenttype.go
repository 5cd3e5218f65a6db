package certset

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"os"
)

// ContentType is the structural classification of a candidate file.
type ContentType int

const (
	// Unknown is anything that is not recognized, including private keys and
	// corrupt files.
	Unknown ContentType = iota
	// Cert is a single X.509 certificate, DER or PEM encoded.
	Cert
	// Authenticode is an Authenticode signature, embedded in a PE image or
	// as a detached PKCS#7 SignedData.
	Authenticode
	// SerializedCert is a Windows serialized certificate store element.
	SerializedCert
	// SerializedStore is a complete Windows serialized certificate store.
	SerializedStore
	// Pkcs7 is a PKCS#7 SignedData which is not an Authenticode signature,
	// such as a .p7b certificate bundle.
	Pkcs7
	// Pkcs12 is a PKCS#12/PFX bundle, usually carrying a private key.
	Pkcs12
)

var contentTypeNames = map[ContentType]string{
	Unknown:         "Unknown",
	Cert:            "Cert",
	Authenticode:    "Authenticode",
	SerializedCert:  "SerializedCert",
	SerializedStore: "SerializedStore",
	Pkcs7:           "Pkcs7",
	Pkcs12:          "Pkcs12",
}

func (t ContentType) String() string {
	if s, ok := contentTypeNames[t]; ok {
		return s
	}
	return "Unknown"
}

// Accepted reports whether files of this type may be included in a
// certificate collection.
func (t ContentType) Accepted() bool {
	switch t {
	case Cert, Authenticode, SerializedCert:
		return true
	}
	return false
}

// ContentTypeOf classifies data.
func ContentTypeOf(data []byte) ContentType {
	t, _ := classify(data)
	return t
}

// ContentTypeOfFile reads the file at path and classifies its content.
func ContentTypeOfFile(path string) (ContentType, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Unknown, err
	}
	return ContentTypeOf(data), nil
}

// classify returns the content type of data and, for rejected types, a short
// reason suitable for error messages.
func classify(data []byte) (ContentType, string) {
	if len(data) == 0 {
		return Unknown, "empty file"
	}

	if isPEImage(data) {
		if _, ok := peSignature(data); ok {
			return Authenticode, ""
		}
		return Unknown, "executable image without an Authenticode signature"
	}

	if isSerializedStore(data) {
		return SerializedStore, "serialized certificate store"
	}

	if looksLikePEM(data) {
		return classifyPEM(data)
	}

	if _, err := x509.ParseCertificate(data); err == nil {
		return Cert, ""
	}

	if inner, ok := signedDataContentType(data); ok {
		if inner.Equal(oidSpcIndirectData) {
			return Authenticode, ""
		}
		return Pkcs7, "PKCS#7 bundle"
	}

	if isPKCS12(data) {
		return Pkcs12, pkcs12Reason(data)
	}

	if _, ok := serializedCertificate(data); ok {
		return SerializedCert, ""
	}

	return Unknown, "unrecognized content"
}

func looksLikePEM(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(data), []byte("-----BEGIN "))
}

// classifyPEM accepts PEM input made only of CERTIFICATE blocks.
func classifyPEM(data []byte) (ContentType, string) {
	rest := data
	certs := 0
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			if bytes.Contains([]byte(block.Type), []byte("PRIVATE KEY")) {
				return Unknown, "contains private key material"
			}
			return Unknown, "unexpected PEM block " + block.Type
		}
		if _, err := x509.ParseCertificate(block.Bytes); err != nil {
			return Unknown, "malformed certificate"
		}
		certs++
	}
	if certs == 0 || len(bytes.TrimSpace(rest)) != 0 {
		return Unknown, "malformed PEM"
	}
	return Cert, ""
}

// firstPEMCertificate returns the DER bytes of the first CERTIFICATE block.
func firstPEMCertificate(data []byte) []byte {
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil
		}
		if block.Type == "CERTIFICATE" {
			return block.Bytes
		}
	}
}
