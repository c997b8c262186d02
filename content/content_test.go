package content

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func materialize(t *testing.T, c Writable) []byte {
	var buf bytes.Buffer
	if err := WriteAll(&buf, c); err != nil {
		t.Fatalf("WriteAll() == %s, expected nil", err.Error())
	}
	if int64(buf.Len()) != c.Size() {
		t.Fatalf("wrote %d bytes, Size() == %d", buf.Len(), c.Size())
	}
	return buf.Bytes()
}

func TestSliceSplitIsLossless(t *testing.T) {
	var original = []byte("0123456789abcdefghijklmnopqrstuvwxyz")
	var sources = []Writable{
		Bytes(original),
		Slice(Bytes(append([]byte("xx"), original...)), 2, int64(len(original))+2),
	}
	for _, src := range sources {
		n := src.Size()
		for k := int64(0); k <= n; k++ {
			var buf bytes.Buffer
			buf.Write(materialize(t, Slice(src, 0, k)))
			buf.Write(materialize(t, Slice(src, k, n)))
			if !bytes.Equal(buf.Bytes(), original) {
				t.Fatalf("split at %d gave %q, expected %q", k, buf.String(), original)
			}
		}
	}
}

func TestSliceOfSliceCollapses(t *testing.T) {
	var c Composite
	c.Add(Bytes("hello "))
	c.Add(Bytes("world"))
	s := Slice(Slice(&c, 2, 10), 1, 6)
	inner, ok := s.(*slice)
	if !ok {
		t.Fatalf("got %T, expected *slice", s)
	}
	if inner.base != &c {
		t.Fatalf("slice base is %T, expected the composite", inner.base)
	}
	if got := string(materialize(t, s)); got != "lo wo" {
		t.Fatalf("got %q, expected \"lo wo\"", got)
	}
}

func TestSliceBounds(t *testing.T) {
	var table = []struct{ from, to int64 }{
		{-1, 2},
		{3, 2},
		{0, 6},
	}
	for _, row := range table {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("Slice(%d, %d) did not panic", row.from, row.to)
				}
			}()
			Slice(Bytes("hello"), row.from, row.to)
		}()
	}
}

func TestComposite(t *testing.T) {
	var c Composite
	c.Add(Bytes("abc"))
	c.Add(Bytes(""))
	c.Add(Slice(Bytes("--def--"), 2, 5))
	c.Add(Bytes("ghij"))
	if c.Len() != 3 {
		t.Fatalf("Len() == %d, expected 3", c.Len())
	}
	if c.Size() != 10 {
		t.Fatalf("Size() == %d, expected 10", c.Size())
	}
	var table = []struct {
		from, to int64
		expected string
	}{
		{0, 10, "abcdefghij"},
		{0, 0, ""},
		{2, 4, "cd"},
		{3, 6, "def"},
		{5, 10, "fghij"},
		{9, 10, "j"},
	}
	for _, row := range table {
		var buf bytes.Buffer
		if err := c.WriteRange(&buf, row.from, row.to); err != nil {
			t.Fatalf("WriteRange() == %s, expected nil", err.Error())
		}
		if buf.String() != row.expected {
			t.Errorf("WriteRange(%d, %d) == %q, expected %q", row.from, row.to, buf.String(), row.expected)
		}
	}
}

func TestFileContent(t *testing.T) {
	dir, err := ioutil.TempDir("", "content")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	fname := filepath.Join(dir, "data")
	if err := ioutil.WriteFile(fname, []byte("Hello There"), 0644); err != nil {
		t.Fatal(err)
	}
	for _, c := range []Writable{NewFile(fname, 11), NewMappedFile(fname, 11)} {
		if got := string(materialize(t, Slice(c, 6, 11))); got != "There" {
			t.Errorf("%T: got %q, expected \"There\"", c, got)
		}
		if got := string(materialize(t, c)); got != "Hello There" {
			t.Errorf("%T: got %q, expected \"Hello There\"", c, got)
		}
	}
	// ranges in the middle of a file several pages long
	page := os.Getpagesize()
	big := make([]byte, 3*page+100)
	for i := range big {
		big[i] = byte(i % 251)
	}
	bigname := filepath.Join(dir, "big")
	if err := ioutil.WriteFile(bigname, big, 0644); err != nil {
		t.Fatal(err)
	}
	var ranges = []struct{ from, to int }{
		{0, 10},
		{page - 5, page + 5},
		{page, 2 * page},
		{page + 1, 3*page + 100},
		{3 * page, 3*page + 100},
	}
	c := NewMappedFile(bigname, int64(len(big)))
	for _, r := range ranges {
		var buf bytes.Buffer
		if err := c.WriteRange(&buf, int64(r.from), int64(r.to)); err != nil {
			t.Fatalf("WriteRange(%d, %d) == %s, expected nil", r.from, r.to, err.Error())
		}
		if !bytes.Equal(buf.Bytes(), big[r.from:r.to]) {
			t.Errorf("WriteRange(%d, %d) returned the wrong bytes", r.from, r.to)
		}
	}

	for _, c := range []Writable{NewFile(fname, 20), NewMappedFile(fname, 20)} {
		var buf bytes.Buffer
		err := WriteAll(&buf, c)
		if err != ErrShortContent {
			t.Errorf("%T: WriteAll() == %v, expected ErrShortContent", c, err)
		}
	}
}
