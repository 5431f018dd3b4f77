package webpath

import (
	"io"

	"golang.org/x/text/encoding"
)

// File is an open remote file. Read, Write and Seek move raw bytes; the
// text methods decode and encode with the encoding the file was opened with.
type File struct {
	f    SFTPFile
	name string
	enc  encoding.Encoding
}

func newFile(f SFTPFile, name string, enc encoding.Encoding) *File {
	return &File{f: f, name: name, enc: enc}
}

// Name returns the remote path the file was opened at.
func (f *File) Name() string { return f.name }

func (f *File) Read(p []byte) (int, error)  { return f.f.Read(p) }
func (f *File) Write(p []byte) (int, error) { return f.f.Write(p) }
func (f *File) Close() error                { return f.f.Close() }

func (f *File) Seek(offset int64, whence int) (int64, error) {
	return f.f.Seek(offset, whence)
}

// ReadText decodes the rest of the stream.
func (f *File) ReadText() (string, error) {
	enc, err := f.encoding()
	if err != nil {
		return "", err
	}
	b, err := io.ReadAll(enc.NewDecoder().Reader(f.f))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteText encodes s and writes it, returning the number of encoded bytes
// written.
func (f *File) WriteText(s string) (int, error) {
	enc, err := f.encoding()
	if err != nil {
		return 0, err
	}
	b, err := enc.NewEncoder().String(s)
	if err != nil {
		return 0, err
	}
	return f.f.Write([]byte(b))
}

func (f *File) encoding() (encoding.Encoding, error) {
	if f.enc != nil {
		return f.enc, nil
	}
	return LookupEncoding(DefaultEncoding)
}
