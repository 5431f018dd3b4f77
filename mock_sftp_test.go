package webpath

import (
	"errors"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// mockFileInfo implements os.FileInfo for testing.
type mockFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() os.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.mode.IsDir() }
func (m *mockFileInfo) Sys() any           { return nil }

// mockNode is one entry of the in-memory remote filesystem.
type mockNode struct {
	content []byte
	mode    os.FileMode
	modTime time.Time
}

// MockSFTPClient is an in-memory SFTPClientInterface with SFTP v3
// semantics: Mkdir needs an existing parent, RemoveDirectory needs an
// empty directory and mtimes are stored in whole seconds.
type MockSFTPClient struct {
	mu     sync.Mutex
	nodes  map[string]*mockNode
	errors map[string]error
	calls  map[string]int
	closed int
	now    func() time.Time
}

// NewMockSFTPClient creates a mock holding only the root directory.
func NewMockSFTPClient() *MockSFTPClient {
	m := &MockSFTPClient{
		nodes:  make(map[string]*mockNode),
		errors: make(map[string]error),
		calls:  make(map[string]int),
		now:    func() time.Time { return time.Now().Truncate(time.Second) },
	}
	m.nodes["/"] = &mockNode{mode: os.ModeDir | 0o755, modTime: m.now()}
	return m
}

var _ SFTPClientInterface = (*MockSFTPClient)(nil)

// SetError makes every later call of method fail with err.
func (m *MockSFTPClient) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[method] = err
}

// SetErrorAt makes method fail with err only for name.
func (m *MockSFTPClient) SetErrorAt(method, name string, err error) {
	m.SetError(method+":"+path.Clean(name), err)
}

// SetFile creates a file and any missing parent directories.
func (m *MockSFTPClient) SetFile(name string, content []byte, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = path.Clean(name)
	m.mkdirAllLocked(path.Dir(name))
	m.nodes[name] = &mockNode{content: content, mode: 0o644, modTime: modTime.Truncate(time.Second)}
}

// SetDir creates a directory and any missing parents.
func (m *MockSFTPClient) SetDir(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirAllLocked(path.Clean(name))
}

// SetSymlink creates a symlink entry.
func (m *MockSFTPClient) SetSymlink(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = path.Clean(name)
	m.mkdirAllLocked(path.Dir(name))
	m.nodes[name] = &mockNode{mode: os.ModeSymlink | 0o777, modTime: m.now()}
}

// Content returns the content of a file and whether it exists.
func (m *MockSFTPClient) Content(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[path.Clean(name)]
	if !ok || n.mode.IsDir() {
		return nil, false
	}
	return n.content, true
}

// Exists reports whether anything exists at name.
func (m *MockSFTPClient) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.nodes[path.Clean(name)]
	return ok
}

// ModTime returns the stored mtime of name.
func (m *MockSFTPClient) ModTime(name string) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.nodes[path.Clean(name)]; ok {
		return n.modTime
	}
	return time.Time{}
}

// Paths returns every path except the root, sorted.
func (m *MockSFTPClient) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for p := range m.nodes {
		if p != "/" {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Calls returns how many times method was called.
func (m *MockSFTPClient) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MockSFTPClient) enter(method, name string) error {
	m.calls[method]++
	if err := m.errors[method]; err != nil {
		return err
	}
	return m.errors[method+":"+name]
}

func (m *MockSFTPClient) mkdirAllLocked(name string) {
	if name == "/" || name == "." {
		return
	}
	if n, ok := m.nodes[name]; ok && n.mode.IsDir() {
		return
	}
	m.mkdirAllLocked(path.Dir(name))
	m.nodes[name] = &mockNode{mode: os.ModeDir | 0o755, modTime: m.now()}
}

func (m *MockSFTPClient) info(name string, n *mockNode) os.FileInfo {
	return &mockFileInfo{
		name:    path.Base(name),
		size:    int64(len(n.content)),
		mode:    n.mode,
		modTime: n.modTime,
	}
}

func pathErr(op, name string, err error) error {
	return &os.PathError{Op: op, Path: name, Err: err}
}

func (m *MockSFTPClient) Open(name string) (SFTPFile, error) {
	return m.OpenFile(name, os.O_RDONLY)
}

func (m *MockSFTPClient) OpenFile(name string, flag int) (SFTPFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = path.Clean(name)
	if err := m.enter("OpenFile", name); err != nil {
		return nil, err
	}

	n, ok := m.nodes[name]
	switch {
	case ok && n.mode.IsDir():
		return nil, pathErr("open", name, errors.New("is a directory"))
	case ok && flag&os.O_CREATE != 0 && flag&os.O_EXCL != 0:
		return nil, pathErr("open", name, os.ErrExist)
	case !ok && flag&os.O_CREATE == 0:
		return nil, pathErr("open", name, os.ErrNotExist)
	case !ok:
		parent, pok := m.nodes[path.Dir(name)]
		if !pok || !parent.mode.IsDir() {
			return nil, pathErr("open", name, os.ErrNotExist)
		}
		n = &mockNode{mode: 0o644, modTime: m.now()}
		m.nodes[name] = n
	}

	f := &mockSFTPFile{mock: m, node: n}
	if flag&os.O_TRUNC != 0 {
		n.content = nil
		n.modTime = m.now()
	}
	if flag&os.O_APPEND != 0 {
		f.offset = int64(len(n.content))
	}
	return f, nil
}

func (m *MockSFTPClient) Stat(name string) (os.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = path.Clean(name)
	if err := m.enter("Stat", name); err != nil {
		return nil, err
	}
	n, ok := m.nodes[name]
	if !ok {
		return nil, pathErr("stat", name, os.ErrNotExist)
	}
	return m.info(name, n), nil
}

func (m *MockSFTPClient) ReadDir(name string) ([]os.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = path.Clean(name)
	if err := m.enter("ReadDir", name); err != nil {
		return nil, err
	}
	n, ok := m.nodes[name]
	if !ok {
		return nil, pathErr("readdir", name, os.ErrNotExist)
	}
	if !n.mode.IsDir() {
		return nil, pathErr("readdir", name, errors.New("not a directory"))
	}

	var infos []os.FileInfo
	for p, child := range m.nodes {
		if p != "/" && path.Dir(p) == name {
			infos = append(infos, m.info(p, child))
		}
	}
	// servers return entries in no particular order
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() > infos[j].Name() })
	return infos, nil
}

func (m *MockSFTPClient) Mkdir(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = path.Clean(name)
	if err := m.enter("Mkdir", name); err != nil {
		return err
	}
	if _, ok := m.nodes[name]; ok {
		return pathErr("mkdir", name, os.ErrExist)
	}
	parent, ok := m.nodes[path.Dir(name)]
	if !ok || !parent.mode.IsDir() {
		return pathErr("mkdir", name, os.ErrNotExist)
	}
	m.nodes[name] = &mockNode{mode: os.ModeDir | 0o755, modTime: m.now()}
	return nil
}

func (m *MockSFTPClient) MkdirAll(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = path.Clean(name)
	if err := m.enter("MkdirAll", name); err != nil {
		return err
	}
	for p := name; p != "/" && p != "."; p = path.Dir(p) {
		if n, ok := m.nodes[p]; ok && !n.mode.IsDir() {
			return pathErr("mkdir", p, errors.New("not a directory"))
		}
	}
	m.mkdirAllLocked(name)
	return nil
}

func (m *MockSFTPClient) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = path.Clean(name)
	if err := m.enter("Remove", name); err != nil {
		return err
	}
	n, ok := m.nodes[name]
	if !ok {
		return pathErr("remove", name, os.ErrNotExist)
	}
	if n.mode.IsDir() {
		return pathErr("remove", name, errors.New("is a directory"))
	}
	delete(m.nodes, name)
	return nil
}

func (m *MockSFTPClient) RemoveDirectory(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = path.Clean(name)
	if err := m.enter("RemoveDirectory", name); err != nil {
		return err
	}
	n, ok := m.nodes[name]
	if !ok {
		return pathErr("rmdir", name, os.ErrNotExist)
	}
	if !n.mode.IsDir() {
		return pathErr("rmdir", name, errors.New("not a directory"))
	}
	for p := range m.nodes {
		if strings.HasPrefix(p, name+"/") {
			return pathErr("rmdir", name, errors.New("directory not empty"))
		}
	}
	delete(m.nodes, name)
	return nil
}

func (m *MockSFTPClient) Rename(oldname, newname string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	oldname, newname = path.Clean(oldname), path.Clean(newname)
	if err := m.enter("Rename", oldname); err != nil {
		return err
	}
	n, ok := m.nodes[oldname]
	if !ok {
		return pathErr("rename", oldname, os.ErrNotExist)
	}
	if _, exists := m.nodes[newname]; exists {
		return pathErr("rename", newname, os.ErrExist)
	}
	for p, child := range m.nodes {
		if strings.HasPrefix(p, oldname+"/") {
			m.nodes[newname+strings.TrimPrefix(p, oldname)] = child
			delete(m.nodes, p)
		}
	}
	m.nodes[newname] = n
	delete(m.nodes, oldname)
	return nil
}

func (m *MockSFTPClient) Chtimes(name string, _, mtime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = path.Clean(name)
	if err := m.enter("Chtimes", name); err != nil {
		return err
	}
	n, ok := m.nodes[name]
	if !ok {
		return pathErr("chtimes", name, os.ErrNotExist)
	}
	n.modTime = mtime.Truncate(time.Second)
	return nil
}

func (m *MockSFTPClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return m.errors["Close"]
}

// mockSFTPFile reads and writes a mockNode in place.
type mockSFTPFile struct {
	mock   *MockSFTPClient
	node   *mockNode
	offset int64
	closed bool
}

func (f *mockSFTPFile) Read(p []byte) (int, error) {
	f.mock.mu.Lock()
	defer f.mock.mu.Unlock()
	if f.offset >= int64(len(f.node.content)) {
		return 0, io.EOF
	}
	n := copy(p, f.node.content[f.offset:])
	f.offset += int64(n)
	return n, nil
}

func (f *mockSFTPFile) Write(p []byte) (int, error) {
	f.mock.mu.Lock()
	defer f.mock.mu.Unlock()
	if err := f.mock.errors["Write"]; err != nil {
		return 0, err
	}
	end := f.offset + int64(len(p))
	if end > int64(len(f.node.content)) {
		grown := make([]byte, end)
		copy(grown, f.node.content)
		f.node.content = grown
	}
	copy(f.node.content[f.offset:], p)
	f.offset = end
	f.node.modTime = f.mock.now()
	return len(p), nil
}

func (f *mockSFTPFile) Seek(offset int64, whence int) (int64, error) {
	f.mock.mu.Lock()
	defer f.mock.mu.Unlock()
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += f.offset
	case io.SeekEnd:
		offset += int64(len(f.node.content))
	}
	if offset < 0 {
		return 0, errors.New("negative offset")
	}
	f.offset = offset
	return offset, nil
}

func (f *mockSFTPFile) Close() error {
	f.closed = true
	return nil
}
