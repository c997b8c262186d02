package pack

import (
	"testing"

	"github.com/ndlib/bpack/store"
)

func TestVolumeName(t *testing.T) {
	var table = []struct {
		name   string
		n      int64
		output string
	}{
		{"photos", 1, "photos.001.bpk"},
		{"photos", 42, "photos.042.bpk"},
		{"a.b", 1234, "a.b.1234.bpk"},
	}
	for _, tab := range table {
		result := VolumeName(tab.name, tab.n)
		if result != tab.output {
			t.Errorf("VolumeName(%q, %d) == %q, expected %q", tab.name, tab.n, result, tab.output)
		}
	}
}

func TestProviderCleanup(t *testing.T) {
	ms := store.NewMemory()
	other, _ := ms.Create("other.001.bpk")
	other.Close()

	p := NewStoreProvider(ms, "test", contentArea(40))
	bw := NewBlockWriter(p, testArchive)
	bw.Write(make([]byte, 80))
	if err := bw.Complete(); err != nil {
		t.Fatalf("Complete() == %s, expected nil", err.Error())
	}
	existing, err := p.Existing()
	if err != nil {
		t.Fatalf("Existing() == %s, expected nil", err.Error())
	}
	created := p.Created()
	if !equal(existing, created) || len(created) != 3 {
		t.Fatalf("Existing() == %v, Created() == %v", existing, created)
	}

	// a second build of the same archive must not overwrite it
	again := NewStoreProvider(ms, "test", contentArea(40))
	if _, err = again.Volume(1); err != store.ErrKeyExists {
		t.Fatalf("Volume(1) == %v, expected ErrKeyExists", err)
	}

	if err = p.Cleanup(); err != nil {
		t.Fatalf("Cleanup() == %s, expected nil", err.Error())
	}
	keys, _ := ms.ListPrefix("")
	if !equal(keys, []string{"other.001.bpk"}) {
		t.Fatalf("after Cleanup keys == %v", keys)
	}
	if len(p.Created()) != 0 {
		t.Errorf("Created() == %v after Cleanup", p.Created())
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
