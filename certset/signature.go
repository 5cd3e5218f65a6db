package certset

import (
	"bytes"
	"crypto/x509"
	"debug/pe"
	"encoding/asn1"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/smallstep/pkcs7"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

var (
	oidSignedData = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
	// SpcIndirectDataContent, the payload of every Authenticode signature.
	oidSpcIndirectData = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 1, 4}
)

const (
	winCertRevision2          = 0x0200
	winCertTypePKCSSignedData = 0x0002
)

// contentInfoElement returns the outer ContentInfo element of a DER
// PKCS#7 blob, dropping any trailing padding.
func contentInfoElement(data []byte) ([]byte, bool) {
	input := cryptobyte.String(data)
	var elem cryptobyte.String
	if !input.ReadASN1Element(&elem, cbasn1.SEQUENCE) {
		return nil, false
	}
	return elem, true
}

// signedDataContentType returns the encapsulated content type of a PKCS#7
// SignedData. It only walks the structure, signatures are not verified.
func signedDataContentType(data []byte) (asn1.ObjectIdentifier, bool) {
	elem, ok := contentInfoElement(data)
	if !ok {
		return nil, false
	}
	contentInfo := cryptobyte.String(elem)
	var (
		seq, content, signedData, encap cryptobyte.String
		outer, inner                    asn1.ObjectIdentifier
		version                         int
	)
	if !contentInfo.ReadASN1(&seq, cbasn1.SEQUENCE) ||
		!seq.ReadASN1ObjectIdentifier(&outer) ||
		!outer.Equal(oidSignedData) ||
		!seq.ReadASN1(&content, cbasn1.Tag(0).Constructed().ContextSpecific()) ||
		!content.ReadASN1(&signedData, cbasn1.SEQUENCE) ||
		!signedData.ReadASN1Integer(&version) ||
		!signedData.SkipASN1(cbasn1.SET) ||
		!signedData.ReadASN1(&encap, cbasn1.SEQUENCE) ||
		!encap.ReadASN1ObjectIdentifier(&inner) {
		return nil, false
	}
	return inner, true
}

func isPEImage(data []byte) bool {
	return len(data) >= 64 && data[0] == 'M' && data[1] == 'Z'
}

// peSignature extracts the PKCS#7 SignedData stored in the security data
// directory of a PE image.
func peSignature(data []byte) ([]byte, bool) {
	f, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	defer f.Close()

	var dir pe.DataDirectory
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		if oh.NumberOfRvaAndSizes <= pe.IMAGE_DIRECTORY_ENTRY_SECURITY {
			return nil, false
		}
		dir = oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_SECURITY]
	case *pe.OptionalHeader64:
		if oh.NumberOfRvaAndSizes <= pe.IMAGE_DIRECTORY_ENTRY_SECURITY {
			return nil, false
		}
		dir = oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_SECURITY]
	default:
		return nil, false
	}

	// The security directory holds a file offset, not an RVA.
	off, size := uint64(dir.VirtualAddress), uint64(dir.Size)
	if off == 0 || size < 8 || off+size > uint64(len(data)) {
		return nil, false
	}
	table := data[off : off+size]
	for len(table) >= 8 {
		length := binary.LittleEndian.Uint32(table[0:4])
		revision := binary.LittleEndian.Uint16(table[4:6])
		certType := binary.LittleEndian.Uint16(table[6:8])
		if length < 8 || uint64(length) > uint64(len(table)) {
			return nil, false
		}
		if revision == winCertRevision2 && certType == winCertTypePKCSSignedData {
			blob := table[8:length]
			if _, ok := signedDataContentType(blob); ok {
				return blob, true
			}
			return nil, false
		}
		// Entries are aligned on 8 bytes.
		next := (uint64(length) + 7) &^ 7
		if next >= uint64(len(table)) {
			break
		}
		table = table[next:]
	}
	return nil, false
}

// authenticodeCertificate returns the signer certificate of an Authenticode
// signature, or the first certificate it carries.
func authenticodeCertificate(data []byte) (*x509.Certificate, error) {
	blob := data
	if isPEImage(data) {
		sig, ok := peSignature(data)
		if !ok {
			return nil, errors.New("no embedded signature")
		}
		blob = sig
	}
	elem, ok := contentInfoElement(blob)
	if !ok {
		return nil, errors.New("malformed PKCS#7 structure")
	}
	p7, err := pkcs7.Parse(elem)
	if err != nil {
		return nil, fmt.Errorf("parsing signature: %w", err)
	}
	if cert := p7.GetOnlySigner(); cert != nil {
		return cert, nil
	}
	if len(p7.Certificates) > 0 {
		return p7.Certificates[0], nil
	}
	return nil, errors.New("signature carries no certificate")
}
