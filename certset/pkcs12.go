package certset

import (
	"errors"

	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// isPKCS12 recognizes the PFX outer structure, SEQUENCE { INTEGER 3, ... },
// in DER or in BER with an indefinite length.
func isPKCS12(data []byte) bool {
	if len(data) < 5 || data[0] != 0x30 {
		return false
	}
	i := 1
	switch l := data[i]; {
	case l == 0x80:
		i++
	case l < 0x80:
		i++
	case l <= 0x84:
		i += 1 + int(l&0x7f)
	default:
		return false
	}
	return len(data) >= i+3 && data[i] == 0x02 && data[i+1] == 0x01 && data[i+2] == 0x03
}

// pkcs12Reason describes why a PFX bundle is rejected.
func pkcs12Reason(data []byte) string {
	_, _, _, err := pkcs12.DecodeChain(data, "")
	switch {
	case err == nil:
		return "PKCS#12 bundle containing a private key"
	case errors.Is(err, pkcs12.ErrIncorrectPassword):
		return "password protected PKCS#12 bundle"
	}
	if _, err := pkcs12.DecodeTrustStore(data, ""); err == nil {
		return "PKCS#12 trust store"
	}
	return "PKCS#12 bundle"
}
