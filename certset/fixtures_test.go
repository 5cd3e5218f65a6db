package certset

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"debug/pe"
	"encoding/binary"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

type identity struct {
	key  *ecdsa.PrivateKey
	cert *x509.Certificate
}

func newIdentity(t *testing.T, cn string, usage ...x509.ExtKeyUsage) identity {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  usage,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}
	return identity{key: key, cert: cert}
}

func pemCertificate(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func pemPrivateKey(t *testing.T, key *ecdsa.PrivateKey) []byte {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalPKCS8PrivateKey: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

// authenticodeSignature returns a PKCS#7 SignedData encapsulating an
// SpcIndirectDataContent and carrying the certificate of id. It has no
// SignerInfo: only the structure matters to classification.
func authenticodeSignature(t *testing.T, id identity) []byte {
	t.Helper()
	explicit0 := cbasn1.Tag(0).Constructed().ContextSpecific()
	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1ObjectIdentifier(oidSignedData)
		b.AddASN1(explicit0, func(b *cryptobyte.Builder) {
			b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1Int64(1)
				b.AddASN1(cbasn1.SET, func(*cryptobyte.Builder) {})
				b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
					b.AddASN1ObjectIdentifier(oidSpcIndirectData)
					b.AddASN1(explicit0, func(b *cryptobyte.Builder) {
						b.AddASN1OctetString([]byte("indirect data"))
					})
				})
				b.AddASN1(explicit0, func(b *cryptobyte.Builder) {
					b.AddBytes(id.cert.Raw)
				})
				b.AddASN1(cbasn1.SET, func(*cryptobyte.Builder) {})
			})
		})
	})
	der, err := b.Bytes()
	if err != nil {
		t.Fatalf("building SignedData: %v", err)
	}
	return der
}

// serializeElement encodes der as a serialized store element holding only
// the certificate property.
func serializeElement(der []byte) []byte {
	out := make([]byte, serializedHeaderLen+len(der))
	binary.LittleEndian.PutUint32(out[0:4], certCertPropID)
	binary.LittleEndian.PutUint32(out[4:8], serializedEncoding)
	binary.LittleEndian.PutUint32(out[8:12], uint32(len(der)))
	copy(out[serializedHeaderLen:], der)
	return out
}

// peImage builds a minimal 32-bit PE image. A non nil signature is stored as
// a WIN_CERTIFICATE in the security data directory.
func peImage(t *testing.T, signature []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	dos := make([]byte, 64)
	dos[0], dos[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(dos[0x3c:], 64)
	buf.Write(dos)
	buf.WriteString("PE\x00\x00")

	fh := pe.FileHeader{
		Machine:              pe.IMAGE_FILE_MACHINE_I386,
		SizeOfOptionalHeader: 224,
		Characteristics:      pe.IMAGE_FILE_EXECUTABLE_IMAGE | pe.IMAGE_FILE_32BIT_MACHINE,
	}
	oh := pe.OptionalHeader32{
		Magic:               0x10b,
		NumberOfRvaAndSizes: 16,
	}
	headers := 64 + 4 + 20 + 224
	if signature != nil {
		oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_SECURITY] = pe.DataDirectory{
			VirtualAddress: uint32(headers),
			Size:           uint32((8 + len(signature) + 7) &^ 7),
		}
	}
	if err := binary.Write(&buf, binary.LittleEndian, fh); err != nil {
		t.Fatalf("writing file header: %v", err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, oh); err != nil {
		t.Fatalf("writing optional header: %v", err)
	}
	if signature == nil {
		buf.Write(make([]byte, 64))
		return buf.Bytes()
	}
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(8+len(signature)))
	binary.LittleEndian.PutUint16(hdr[4:6], winCertRevision2)
	binary.LittleEndian.PutUint16(hdr[6:8], winCertTypePKCSSignedData)
	buf.Write(hdr[:])
	buf.Write(signature)
	for buf.Len()%8 != 0 {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}
