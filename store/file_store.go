package store

import (
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	raven "github.com/getsentry/raven-go"
)

// FileSystem implements the simple file system based store. Every key is a
// file directly inside the root directory, so the volumes of an archive end
// up side by side, ready to be copied onto media.
//
// Files are written into a scratch subdirectory and moved into the root
// when they are closed. A volume which was never finished does not appear
// next to the completed ones.
type FileSystem struct {
	root string
}

const (
	// the subdir to store files while they are being written to.
	scratchdir = ".scratch"
)

var (
	// make sure it implements the Store interface
	_ Store = &FileSystem{}

	// ErrKeyContainsSlash means the key provided contains a forward slash '/'
	ErrKeyContainsSlash = errors.New("Key contains forward slash")

	// ErrKeyContainsNonUnicode means the key provided contains a Non Unicode Rune
	ErrKeyContainsNonUnicode = errors.New("Key contains Non-Unicode character")

	// ErrKeyContainsWhiteSpace  means the key provided contains WhiteSpace
	ErrKeyContainsWhiteSpace = errors.New("Key contains White Space")

	// ErrKeyContainsControlChar  means the key provided contains Control Characters
	ErrKeyContainsControlChar = errors.New("Key contains Control  Characters")

	// ErrKeyEmpty means the key provided is empty or reserved
	ErrKeyEmpty = errors.New("Key is empty")
)

// NewFileSystem creates a new FileSystem store based at the given root path.
func NewFileSystem(root string) *FileSystem {
	return &FileSystem{root}
}

// ListPrefix returns a sorted list of all the keys beginning with the given
// prefix.
func (s *FileSystem) ListPrefix(prefix string) ([]string, error) {
	if strings.ContainsAny(prefix, "/*?[\\") {
		return nil, ErrKeyContainsSlash
	}
	matches, err := filepath.Glob(filepath.Join(s.root, prefix+"*"))
	if err != nil {
		return nil, err
	}
	var result []string
	for _, m := range matches {
		fi, err := os.Stat(m)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		result = append(result, filepath.Base(m))
	}
	sort.Strings(result)
	return result, nil
}

// Open returns a reader for the given object along with its size.
func (s *FileSystem) Open(key string) (ReadAtCloser, int64, error) {
	if err := isKeyValid(key); err != nil {
		return nil, 0, err
	}
	f, err := os.Open(filepath.Join(s.root, key))
	if os.IsNotExist(err) {
		return nil, 0, ErrNotExist
	} else if err != nil {
		return nil, 0, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, fi.Size(), nil
}

// Create creates a new file with the given key, and a writer to allow for
// saving data into it.
func (s *FileSystem) Create(key string) (io.WriteCloser, error) {
	if err := isKeyValid(key); err != nil {
		return nil, err
	}
	target := filepath.Join(s.root, key)
	_, err := os.Stat(target)
	if !os.IsNotExist(err) {
		return nil, ErrKeyExists
	}
	// now set up the scratch location we will temporarily save the file to
	dir := filepath.Join(s.root, scratchdir)
	if err = os.MkdirAll(dir, 0775); err != nil {
		return nil, err
	}
	temp := filepath.Join(dir, key)
	// pass the O_EXCL flag explicitly to prevent overwriting
	// already existing files
	w, err := os.OpenFile(temp, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0666)
	if err != nil {
		return nil, err
	}
	return &moveCloser{w, temp, target}, nil
}

// track the file so when it is closed, we can move it into the correct place
type moveCloser struct {
	io.WriteCloser
	source string
	target string
}

func (w *moveCloser) Close() error {
	err := w.WriteCloser.Close()
	if err != nil {
		return err
	}
	_, err = os.Stat(w.target)
	if !os.IsNotExist(err) {
		return ErrKeyExists
	}
	err = os.Rename(w.source, w.target)
	if err != nil {
		log.Println("FileSystem rename:", w.source, err)
		raven.CaptureError(err, map[string]string{"Source": w.source, "Target": w.target})
	}
	return err
}

// Delete the given key from the store. A key still being written is
// removed from the scratch directory. It is not an error if the key
// doesn't exist.
func (s *FileSystem) Delete(key string) error {
	if err := isKeyValid(key); err != nil {
		return err
	}
	for _, fname := range []string{
		filepath.Join(s.root, key),
		filepath.Join(s.root, scratchdir, key),
	} {
		err := os.Remove(fname)
		// don't report a missing file as an error
		if err != nil && !os.IsNotExist(err) {
			log.Println("FileSystem delete:", fname, err)
			raven.CaptureError(err, map[string]string{"Key": key})
			return err
		}
	}
	return nil
}

// Some Simple Key Validations
func isKeyValid(key string) error {
	if key == "" || key == "." || key == ".." || key == scratchdir {
		return ErrKeyEmpty
	}

	// Valid Unicode
	if !utf8.ValidString(key) {
		return ErrKeyContainsNonUnicode
	}

	// No Slashes
	if strings.ContainsAny(key, "/\\") {
		return ErrKeyContainsSlash
	}

	for _, rune := range key {
		// No White Space
		if unicode.IsSpace(rune) {
			return ErrKeyContainsWhiteSpace
		}

		// No Control Characters
		if unicode.IsControl(rune) {
			return ErrKeyContainsControlChar
		}
	}

	return nil
}
