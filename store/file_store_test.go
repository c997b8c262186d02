package store

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func TestKeyValidation(t *testing.T) {
	var table = []struct {
		key string
		err error
	}{
		{"archive.001.bpk", nil},
		{"", ErrKeyEmpty},
		{".scratch", ErrKeyEmpty},
		{"a/b", ErrKeyContainsSlash},
		{"a b", ErrKeyContainsWhiteSpace},
		{"a\x07b", ErrKeyContainsControlChar},
		{"a\xffb", ErrKeyContainsNonUnicode},
	}
	for _, row := range table {
		if err := isKeyValid(row.key); err != row.err {
			t.Errorf("isKeyValid(%q) == %v, expected %v", row.key, err, row.err)
		}
	}
}

func TestFileSystemCreate(t *testing.T) {
	dir, err := ioutil.TempDir("", "bpack")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	s := NewFileSystem(dir)
	w, err := s.Create("hello.001.bpk")
	if err != nil {
		t.Fatalf("Create() == %s, expected nil", err.Error())
	}
	w.Write([]byte("Hello There"))

	// not visible until closed
	if _, _, err = s.Open("hello.001.bpk"); err != ErrNotExist {
		t.Fatalf("Open() before Close == %v, expected ErrNotExist", err)
	}
	keys, _ := s.ListPrefix("hello")
	if len(keys) != 0 {
		t.Fatalf("ListPrefix() before Close == %v, expected nothing", keys)
	}

	if err = w.Close(); err != nil {
		t.Fatalf("Close() == %s, expected nil", err.Error())
	}
	data, err := ReadAll(s, "hello.001.bpk")
	if err != nil {
		t.Fatalf("ReadAll() == %s, expected nil", err.Error())
	}
	if string(data) != "Hello There" {
		t.Fatalf("Got %q, expected \"Hello There\"", string(data))
	}
	if _, err = os.Stat(filepath.Join(dir, "hello.001.bpk")); err != nil {
		t.Fatalf("Expected file in the root directory: %s", err.Error())
	}
	if _, err = s.Create("hello.001.bpk"); err != ErrKeyExists {
		t.Fatalf("Create() again == %v, expected ErrKeyExists", err)
	}
}

func TestFileSystemListPrefix(t *testing.T) {
	dir, err := ioutil.TempDir("", "bpack")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	s := NewFileSystem(dir)
	for _, key := range []string{"abc.002.bpk", "abc.001.bpk", "abd.001.bpk", "x.001.bpk"} {
		w, err := s.Create(key)
		if err != nil {
			t.Fatalf("Create(%s) == %s, expected nil", key, err.Error())
		}
		w.Close()
	}
	var table = []struct {
		prefix   string
		expected []string
	}{
		{"", []string{"abc.001.bpk", "abc.002.bpk", "abd.001.bpk", "x.001.bpk"}},
		{"ab", []string{"abc.001.bpk", "abc.002.bpk", "abd.001.bpk"}},
		{"abc.", []string{"abc.001.bpk", "abc.002.bpk"}},
		{"zzz", nil},
	}
	for _, tab := range table {
		result, err := s.ListPrefix(tab.prefix)
		if err != nil {
			t.Errorf("Got unexpected error: %s", err.Error())
		} else if !equal(tab.expected, result) {
			t.Errorf("ListPrefix(%q) == %v, expected %v", tab.prefix, result, tab.expected)
		}
	}
}

func TestFileSystemDelete(t *testing.T) {
	dir, err := ioutil.TempDir("", "bpack")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	s := NewFileSystem(dir)
	w, _ := s.Create("done")
	w.Close()
	partial, _ := s.Create("partial")
	partial.Write([]byte("abc"))
	for _, key := range []string{"done", "partial", "missing"} {
		if err := s.Delete(key); err != nil {
			t.Fatalf("Delete(%s) == %s, expected nil", key, err.Error())
		}
	}
	if _, err := os.Stat(filepath.Join(dir, scratchdir, "partial")); !os.IsNotExist(err) {
		t.Fatalf("Expected scratch file to be removed")
	}
	keys, _ := s.ListPrefix("")
	if len(keys) != 0 {
		t.Fatalf("ListPrefix() == %v, expected nothing", keys)
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
