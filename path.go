package webpath

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"
)

// Path is a remote path bound to a session, in the spirit of pathlib.Path.
// Path values are immutable; Join and Parent return new paths.
type Path struct {
	fs   SFTPClientInterface
	path string
}

// MkdirOptions controls Path.Mkdir.
type MkdirOptions struct {
	// Parents creates missing parent directories.
	Parents bool
	// ExistOK suppresses the error when the directory already exists.
	ExistOK bool
}

func newPath(fs SFTPClientInterface, p string) *Path {
	return &Path{fs: fs, path: cleanRemote(p)}
}

func cleanRemote(p string) string {
	if p == "" {
		return "."
	}
	return path.Clean(p)
}

// Join appends path segments, like the "/" operator on pathlib paths. An
// absolute segment replaces everything before it.
func (p *Path) Join(elem ...string) *Path {
	joined := p.path
	for _, e := range elem {
		if strings.HasPrefix(e, "/") {
			joined = e
			continue
		}
		joined = path.Join(joined, e)
	}
	return newPath(p.fs, joined)
}

// String returns the slash-separated path.
func (p *Path) String() string { return p.path }

// Name returns the final path element.
func (p *Path) Name() string { return path.Base(p.path) }

// Parent returns the directory containing p.
func (p *Path) Parent() *Path { return newPath(p.fs, path.Dir(p.path)) }

// IsAbs reports whether the path is absolute.
func (p *Path) IsAbs() bool { return path.IsAbs(p.path) }

// RelativeTo returns p relative to base.
func (p *Path) RelativeTo(base string) (string, error) {
	return relativeTo(p.path, cleanRemote(base))
}

func relativeTo(target, base string) (string, error) {
	if target == base {
		return ".", nil
	}
	if base == "." && !path.IsAbs(target) && target != ".." && !strings.HasPrefix(target, "../") {
		return target, nil
	}
	prefix := base
	if prefix != "/" {
		prefix += "/"
	}
	if !strings.HasPrefix(target, prefix) {
		return "", fmt.Errorf("%q is not in the subpath of %q", target, base)
	}
	return strings.TrimPrefix(target, prefix), nil
}

// Stat returns the remote attributes of p.
func (p *Path) Stat() (os.FileInfo, error) {
	return p.fs.Stat(p.path)
}

// Exists reports whether anything exists at p.
func (p *Path) Exists() (bool, error) {
	_, err := p.fs.Stat(p.path)
	if err != nil {
		if isNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// IsDir reports whether p is a directory. A missing path is not an error.
func (p *Path) IsDir() (bool, error) {
	info, err := p.fs.Stat(p.path)
	if err != nil {
		if isNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// IsFile reports whether p is a regular file. A missing path is not an error.
func (p *Path) IsFile() (bool, error) {
	info, err := p.fs.Stat(p.path)
	if err != nil {
		if isNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// Mkdir creates the directory p.
func (p *Path) Mkdir(opts MkdirOptions) error {
	if opts.Parents {
		if !opts.ExistOK {
			if ok, err := p.Exists(); err != nil {
				return err
			} else if ok {
				return &os.PathError{Op: "mkdir", Path: p.path, Err: os.ErrExist}
			}
		}
		return p.fs.MkdirAll(p.path)
	}

	err := p.fs.Mkdir(p.path)
	if err != nil && opts.ExistOK {
		if dir, serr := p.IsDir(); serr == nil && dir {
			return nil
		}
	}
	return err
}

// Touch creates p if needed and sets its modification time to now. With
// existOK false an existing file is an error.
func (p *Path) Touch(existOK bool) error {
	flag := os.O_WRONLY | os.O_CREATE
	if !existOK {
		flag |= os.O_EXCL
	}
	f, err := p.fs.OpenFile(p.path, flag)
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	now := time.Now()
	return p.fs.Chtimes(p.path, now, now)
}

// Unlink removes the file p.
func (p *Path) Unlink() error {
	return p.fs.Remove(p.path)
}

// Rmdir removes the empty directory p.
func (p *Path) Rmdir() error {
	return p.fs.RemoveDirectory(p.path)
}

// Rename moves p to target and returns the new path.
func (p *Path) Rename(target string) (*Path, error) {
	dst := cleanRemote(target)
	if err := p.fs.Rename(p.path, dst); err != nil {
		return nil, err
	}
	return newPath(p.fs, dst), nil
}

// Open opens p with the given os.O_* flags for binary access.
func (p *Path) Open(flag int) (*File, error) {
	f, err := p.fs.OpenFile(p.path, flag)
	if err != nil {
		return nil, err
	}
	return newFile(f, p.path, nil), nil
}

// OpenText opens p with the given flags; the returned file's text methods
// use the named encoding.
func (p *Path) OpenText(flag int, encodingName string) (*File, error) {
	enc, err := LookupEncoding(encodingName)
	if err != nil {
		return nil, err
	}
	f, err := p.fs.OpenFile(p.path, flag)
	if err != nil {
		return nil, err
	}
	return newFile(f, p.path, enc), nil
}

// WithOpen opens p, calls fn and closes the file, whatever fn returns.
func (p *Path) WithOpen(flag int, fn func(f *File) error) (err error) {
	f, err := p.Open(flag)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(f)
}

// ReadBytes returns the contents of p.
func (p *Path) ReadBytes() ([]byte, error) {
	var data []byte
	err := p.WithOpen(os.O_RDONLY, func(f *File) error {
		var err error
		data, err = io.ReadAll(f)
		return err
	})
	return data, err
}

// WriteBytes replaces the contents of p, creating it if needed.
func (p *Path) WriteBytes(data []byte) (int, error) {
	var n int
	err := p.WithOpen(os.O_WRONLY|os.O_CREATE|os.O_TRUNC, func(f *File) error {
		var err error
		n, err = f.Write(data)
		return err
	})
	return n, err
}

// ReadText returns the contents of p decoded with the named encoding.
// An empty name means DefaultEncoding.
func (p *Path) ReadText(encodingName string) (string, error) {
	f, err := p.OpenText(os.O_RDONLY, encodingName)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return f.ReadText()
}

// WriteText replaces the contents of p with data encoded with the named
// encoding and returns the number of bytes written.
func (p *Path) WriteText(data, encodingName string) (int, error) {
	f, err := p.OpenText(os.O_WRONLY|os.O_CREATE|os.O_TRUNC, encodingName)
	if err != nil {
		return 0, err
	}
	n, err := f.WriteText(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// isNotExist recognises both os errors and SFTP status errors for a
// missing path.
func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
