package pack

import (
	"fmt"
	"io"

	"github.com/ndlib/bpack/store"
)

// StoreProvider is a Provider saving the volumes of one archive into a
// store. It remembers the keys it created so a failed build can be cleaned
// up.
type StoreProvider struct {
	store   store.Store
	name    string
	maxSize int64
	created []string
}

var (
	_ Provider = &StoreProvider{}
)

// NewStoreProvider returns a provider which saves volumes of at most
// maxSize bytes for the archive name into s.
func NewStoreProvider(s store.Store, name string, maxSize int64) *StoreProvider {
	return &StoreProvider{
		store:   s,
		name:    name,
		maxSize: maxSize,
	}
}

// VolumeName returns the key of volume n of the archive name,
// e.g. "photos.001.bpk".
func VolumeName(name string, n int64) string {
	return fmt.Sprintf("%s.%03d.bpk", name, n)
}

// MaxVolumeSize returns the volume size limit.
func (p *StoreProvider) MaxVolumeSize() int64 { return p.maxSize }

// Volume creates the key for volume number in the store.
func (p *StoreProvider) Volume(number int64) (io.WriteCloser, error) {
	key := VolumeName(p.name, number)
	w, err := p.store.Create(key)
	if err != nil {
		return nil, err
	}
	p.created = append(p.created, key)
	return w, nil
}

// Created returns the keys of the volumes created so far, in order.
func (p *StoreProvider) Created() []string {
	return append([]string(nil), p.created...)
}

// Existing returns the keys of volumes of this archive which are already
// in the store.
func (p *StoreProvider) Existing() ([]string, error) {
	return p.store.ListPrefix(p.name + ".")
}

// Cleanup deletes every volume this provider created. It keeps going after
// an error and returns the first one.
func (p *StoreProvider) Cleanup() error {
	var err error
	for _, key := range p.created {
		if err2 := p.store.Delete(key); err == nil {
			err = err2
		}
	}
	p.created = nil
	return err
}
