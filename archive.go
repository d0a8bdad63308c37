package classpath

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"sync"

	"github.com/jmgilman/go/errors"
	"github.com/jmgilman/go/fs/core"
	"github.com/klauspost/compress/zip"
)

// Archive is an opened, readable container of named entries.
type Archive interface {
	// Name returns the path the archive was opened from.
	Name() string

	// Entries enumerates every entry name in the archive.
	Entries() ([]string, error)

	// Open returns a stream over the named entry. The caller must close it.
	Open(name string) (io.ReadCloser, error)

	// Close releases the underlying file. It is safe to call more than once.
	Close() error
}

// ZipArchive is an Archive backed by a ZIP (or jar) file.
// It is safe for concurrent use.
type ZipArchive struct {
	name    string
	files   map[string]*zip.File
	entries []string

	closer    io.Closer
	closeOnce sync.Once
	closeErr  error
}

// OpenArchive opens the ZIP archive at path in fsys.
func OpenArchive(fsys core.ReadFS, path string) (*ZipArchive, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, errors.WrapWithContext(err, CodeArchiveUnreadable, "failed to open archive",
			map[string]interface{}{"archive": path})
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.WrapWithContext(err, CodeArchiveUnreadable, "failed to stat archive",
			map[string]interface{}{"archive": path})
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, errors.WithContextMap(errors.New(CodeArchiveUnreadable, "archive path is a directory"),
			map[string]interface{}{"archive": path})
	}

	var readerAt io.ReaderAt
	switch r := f.(type) {
	case io.ReaderAt:
		readerAt = r
	case io.ReadSeeker:
		readerAt = &seekReaderAt{rs: r}
	default:
		// No random access; buffer the whole file.
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, errors.WrapWithContext(err, CodeArchiveUnreadable, "failed to read archive",
				map[string]interface{}{"archive": path})
		}
		return NewArchiveFromBytes(path, data)
	}

	archive, err := newZipArchive(path, readerAt, info.Size(), f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return archive, nil
}

// NewArchiveFromBytes opens an in-memory ZIP archive. The name is used as
// the archive's display path.
func NewArchiveFromBytes(name string, data []byte) (*ZipArchive, error) {
	return newZipArchive(name, bytes.NewReader(data), int64(len(data)), nil)
}

func newZipArchive(name string, r io.ReaderAt, size int64, closer io.Closer) (*ZipArchive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, errors.WrapWithContext(err, CodeArchiveUnreadable, "failed to read archive directory",
			map[string]interface{}{"archive": name})
	}

	a := &ZipArchive{
		name:    name,
		files:   make(map[string]*zip.File, len(zr.File)),
		entries: make([]string, 0, len(zr.File)),
		closer:  closer,
	}
	for _, f := range zr.File {
		// The first of duplicate entries wins, as with most jar readers.
		if _, exists := a.files[f.Name]; exists {
			continue
		}
		a.files[f.Name] = f
		a.entries = append(a.entries, f.Name)
	}
	return a, nil
}

// Name returns the path the archive was opened from.
func (a *ZipArchive) Name() string {
	return a.name
}

// Entries returns the entry names in directory order.
func (a *ZipArchive) Entries() ([]string, error) {
	return append([]string(nil), a.entries...), nil
}

// Has reports whether the archive contains the named entry.
func (a *ZipArchive) Has(name string) bool {
	_, ok := a.files[name]
	return ok
}

// Open returns a stream over the named entry.
func (a *ZipArchive) Open(name string) (io.ReadCloser, error) {
	f, ok := a.files[name]
	if !ok {
		return nil, errors.WrapWithContext(fs.ErrNotExist, errors.CodeNotFound, "archive entry not found",
			map[string]interface{}{"archive": a.name, "entry": name})
	}

	rc, err := f.Open()
	if err != nil {
		return nil, errors.WrapWithContext(err, CodeClassReadFailed, "failed to open archive entry",
			map[string]interface{}{"archive": a.name, "entry": name})
	}
	return rc, nil
}

// ReadFile returns the full contents of the named entry.
func (a *ZipArchive) ReadFile(name string) ([]byte, error) {
	rc, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.WrapWithContext(err, CodeClassReadFailed, "failed to read archive entry",
			map[string]interface{}{"archive": a.name, "entry": name})
	}
	return data, nil
}

// Close closes the underlying file, if any.
func (a *ZipArchive) Close() error {
	a.closeOnce.Do(func() {
		if a.closer != nil {
			a.closeErr = a.closer.Close()
		}
	})
	return a.closeErr
}

// String returns a short description of the archive.
func (a *ZipArchive) String() string {
	return fmt.Sprintf("zip(%s)", a.name)
}

// seekReaderAt adapts a seekable stream to io.ReaderAt. Reads are
// serialized because they share one file offset.
type seekReaderAt struct {
	mu sync.Mutex
	rs io.ReadSeeker
}

func (s *seekReaderAt) ReadAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.rs.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := io.ReadFull(s.rs, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}
