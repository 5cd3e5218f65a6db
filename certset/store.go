package certset

import (
	"crypto/x509"
	"encoding/binary"
)

// Property identifiers and framing of the Windows serialized certificate
// formats (CertSerializeCertificateStoreElement / CertSaveStore).
const (
	certCertPropID      = 32
	serializedHeaderLen = 12
	serializedEncoding  = 1
)

var serializedStoreMagic = []byte{0, 0, 0, 0, 'C', 'E', 'R', 'T'}

func isSerializedStore(data []byte) bool {
	if len(data) < len(serializedStoreMagic) {
		return false
	}
	for i, b := range serializedStoreMagic {
		if data[i] != b {
			return false
		}
	}
	return true
}

// serializedCertificate walks the property records of a serialized store
// element and returns the encoded certificate it contains.
func serializedCertificate(data []byte) ([]byte, bool) {
	for len(data) >= serializedHeaderLen {
		propID := binary.LittleEndian.Uint32(data[0:4])
		encoding := binary.LittleEndian.Uint32(data[4:8])
		length := uint64(binary.LittleEndian.Uint32(data[8:12]))
		if encoding != serializedEncoding || length > uint64(len(data)-serializedHeaderLen) {
			return nil, false
		}
		value := data[serializedHeaderLen : serializedHeaderLen+length]
		if propID == certCertPropID {
			if _, err := x509.ParseCertificate(value); err != nil {
				return nil, false
			}
			return value, true
		}
		data = data[serializedHeaderLen+length:]
	}
	return nil, false
}
