package pack_test

import (
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"

	. "github.com/etnz/release-kit/pack"
)

func TestPredicateFor(t *testing.T) {
	root := filepath.FromSlash("/build/out")
	abs := func(rel string) string { return filepath.Join(root, filepath.FromSlash(rel)) }

	tests := []struct {
		path                  string
		release, sdk, symbols bool
	}{
		{"a.dll", true, true, false},
		{"a.pdb", false, true, true},
		{"A.PDB", false, true, true},
		{"c.lib", false, true, false},
		{"c.LIB", false, true, false},
		{"d.exp", false, true, false},
		{"e.iobj", false, true, false},
		{"f.ipdb", false, true, false},
		{"bin/Debug/b.dll", false, true, false},
		{"bin/Debug/b.pdb", false, true, false},
		{"bin/Debug64/b.dll", false, true, false},
		{"x64/BIN/debug32/b.dll", false, true, false},
		{"bin/Release/b.dll", true, true, false},
		{"bin/Release/b.pdb", false, true, true},
		{"Debug/bin/b.dll", true, true, false},
		{"bin/Debugger.dll", true, true, false},
		{"mybin/Debug/b.dll", true, true, false},
		{"obj/b.pdb", false, true, false},
		{"src/Obj/b.pdb", false, true, false},
		{"tests/c.pdb", false, true, false},
		{"unittests/c.pdb", false, true, true},
		{"tests.pdb", false, true, true},
		{"plugins/tests/readme.txt", true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			g := NewWithT(t)
			p := abs(tt.path)
			g.Expect(PredicateFor(Release)(p)).To(Equal(tt.release), "release")
			g.Expect(PredicateFor(SDK)(p)).To(Equal(tt.sdk), "sdk")
			g.Expect(PredicateFor(Symbols)(p)).To(Equal(tt.symbols), "symbols")
		})
	}
}

func TestParseKind(t *testing.T) {
	g := NewWithT(t)

	for s, want := range map[string]Kind{"release": Release, "SDK": SDK, "Symbols": Symbols} {
		k, err := ParseKind(s)
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(k).To(Equal(want))
	}
	_, err := ParseKind("debug")
	g.Expect(err).To(MatchError(ContainSubstring(`unknown artifact kind "debug"`)))

	var k Kind
	g.Expect(k.UnmarshalText([]byte("symbols"))).To(Succeed())
	g.Expect(k).To(Equal(Symbols))
	text, err := SDK.MarshalText()
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(string(text)).To(Equal("sdk"))
	g.Expect(Kind(7).String()).To(Equal("Kind(7)"))
}

func TestFormat(t *testing.T) {
	g := NewWithT(t)

	g.Expect(FormatFromPath("out/app.zip")).To(Equal(Zip))
	g.Expect(FormatFromPath("out/app.tar.gz")).To(Equal(TarGz))
	g.Expect(FormatFromPath("out/APP.TGZ")).To(Equal(TarGz))
	g.Expect(FormatFromPath("out/app")).To(Equal(Zip))

	f, err := ParseFormat("")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(f).To(Equal(Zip))
	f, err = ParseFormat("tgz")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(f).To(Equal(TarGz))
	_, err = ParseFormat("rar")
	g.Expect(err).To(HaveOccurred())
}

func TestEntryName(t *testing.T) {
	g := NewWithT(t)
	root := filepath.FromSlash("/build/out")

	g.Expect(EntryName(root, filepath.Join(root, "a.dll"))).To(Equal("a.dll"))
	g.Expect(EntryName(root, filepath.Join(root, "sub", "dir", "b.dll"))).To(Equal("sub/dir/b.dll"))
	g.Expect(EntryName(root+string(filepath.Separator), filepath.Join(root, "sub", "b.dll"))).To(Equal("sub/b.dll"))
}
