package pointer

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestEncodeParseRoundTrip(t *testing.T) {
	rec := &Record{
		SHA256: strings.Repeat("a", 64),
		Size:   1234,
		Path:   "assets/movie.mov",
		Extra:  map[string]string{"zzz": "last", "aaa": "first"},
	}

	var buf bytes.Buffer
	if err := rec.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !rec.Equal(got) {
		t.Fatalf("round trip mismatch: %+v != %+v", rec, got)
	}
	if got.Path != rec.Path {
		t.Fatalf("Path = %q, want %q", got.Path, rec.Path)
	}
}

func TestEncodeCanonicalOrdering(t *testing.T) {
	rec := &Record{SHA256: strings.Repeat("b", 64), Size: 1, Extra: map[string]string{"b": "2", "a": "1"}}
	var first, second bytes.Buffer
	if err := rec.Encode(&first); err != nil {
		t.Fatalf("Encode #1: %v", err)
	}
	if err := rec.Encode(&second); err != nil {
		t.Fatalf("Encode #2: %v", err)
	}
	if first.String() != second.String() {
		t.Fatalf("encoding not stable across calls")
	}
	aIdx := strings.Index(first.String(), "a: 1")
	bIdx := strings.Index(first.String(), "b: 2")
	if aIdx < 0 || bIdx < 0 || aIdx > bIdx {
		t.Fatalf("extra keys not sorted: %s", first.String())
	}
}

func TestParseUnknownKeysPreserved(t *testing.T) {
	input := "sha256: " + strings.Repeat("c", 64) + "\n" +
		"size: 10\n" +
		"future-field: kept\n"
	rec, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if rec.Extra["future-field"] != "kept" {
		t.Fatalf("Extra = %v, want future-field=kept", rec.Extra)
	}
}

func TestParseIgnoresBlankAndCommentLines(t *testing.T) {
	input := "# a comment\n\nsha256: " + strings.Repeat("f", 64) + "\n\nsize: 42\n# trailing\n"
	rec, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if rec.Size != 42 {
		t.Fatalf("Size = %d, want 42", rec.Size)
	}
}

func TestParseDuplicateKeyLastWins(t *testing.T) {
	input := "sha256: " + strings.Repeat("1", 64) + "\n" +
		"size: 1\n" +
		"size: 2\n"
	rec, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if rec.Size != 2 {
		t.Fatalf("Size = %d, want 2 (last value wins)", rec.Size)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"",
		"size: 10\n",
		"sha256: " + strings.Repeat("d", 64) + "\n",
		"sha256: tooshort\nsize: 1\n",
		"badline\n",
	}
	for i, in := range cases {
		if _, err := Parse(strings.NewReader(in)); !errors.Is(err, ErrParse) {
			t.Fatalf("case %d: err = %v, want ErrParse", i, err)
		}
	}
}

func TestCanonicalEncodingIsStable(t *testing.T) {
	input := "sha256: 9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08\n" +
		"size: 1048576\n" +
		"path: myfile.dat\n"
	rec, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var buf bytes.Buffer
	if err := rec.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if buf.String() != input {
		t.Fatalf("Encode = %q, want %q", buf.String(), input)
	}
}

func TestWriteReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.bin.lfc")
	rec := &Record{SHA256: strings.Repeat("e", 64), Size: 99}
	if err := rec.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !rec.Equal(got) {
		t.Fatalf("mismatch after Write/Read")
	}
}

func TestSidecarPathHelpers(t *testing.T) {
	if SidecarPath("a/b.bin") != "a/b.bin.lfc" {
		t.Fatalf("SidecarPath wrong")
	}
	orig, ok := OriginalOf("a/b.bin.lfc")
	if !ok || orig != "a/b.bin" {
		t.Fatalf("OriginalOf = %q, %v", orig, ok)
	}
	if _, ok := OriginalOf("a/b.bin"); ok {
		t.Fatalf("OriginalOf matched a non-sidecar path")
	}
	if !IsSidecar("x.lfc") || IsSidecar("x.bin") {
		t.Fatalf("IsSidecar wrong")
	}
}
