package pack

import (
	"fmt"
	"strings"
)

// Kind selects the inclusion rules of an archive.
type Kind int

const (
	Release Kind = iota
	SDK
	Symbols
)

var kindNames = [...]string{
	Release: "release",
	SDK:     "sdk",
	Symbols: "symbols",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind parses the text form of a Kind, ignoring case.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(s, name) {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown artifact kind %q (want release, sdk or symbols)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(kindNames) {
		return nil, fmt.Errorf("invalid artifact kind %d", int(k))
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	v, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Format is the container format of an archive.
type Format string

const (
	Zip   Format = "zip"
	TarGz Format = "tar.gz"
)

// ParseFormat parses a format name. The empty string selects Zip.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "zip":
		return Zip, nil
	case "tar.gz", "tgz":
		return TarGz, nil
	}
	return "", fmt.Errorf("unknown archive format %q (want zip or tar.gz)", s)
}

// FormatFromPath guesses the format from the destination file name.
func FormatFromPath(path string) Format {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz") {
		return TarGz
	}
	return Zip
}
