package webpath

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/afero"
)

// ErrNotDirectory is returned when a sync root is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// Syncer runs recursive operations between a local tree and a remote tree
// over one Client. Every call walks the trees afresh and issues remote
// requests one at a time; nothing is carried over between calls.
type Syncer struct {
	client *Client
	local  afero.Fs
	logger *slog.Logger
}

// SyncerOption configures a Syncer.
type SyncerOption func(*Syncer)

// WithLocalFs sets the filesystem the local side of every operation is
// read from and written to. The default is the OS filesystem.
func WithLocalFs(fs afero.Fs) SyncerOption {
	return func(s *Syncer) {
		s.local = fs
	}
}

// WithLogger sets the logger for per-entry debug output.
func WithLogger(logger *slog.Logger) SyncerOption {
	return func(s *Syncer) {
		s.logger = logger
	}
}

// NewSyncer creates a Syncer over client. The caller keeps ownership of
// client and closes it.
func NewSyncer(client *Client, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		client: client,
		local:  afero.NewOsFs(),
		logger: client.logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Client returns the underlying session.
func (s *Syncer) Client() *Client {
	return s.client
}

// TransferFunc is called after each file copy with the number of bytes
// written.
type TransferFunc func(src, dst string, n int64)

// SyncOptions configures a single operation.
type SyncOptions struct {
	// ExcludePatterns is a list of doublestar glob patterns. A pattern
	// matches against the slash-separated relative path or its base name.
	// Example: []string{"*.tmp", ".git", "node_modules/**"}
	ExcludePatterns []string

	// PreserveMtime copies the source modification time onto every copied
	// file. PutDiff always preserves mtimes.
	PreserveMtime bool

	// KeepRoot makes RmR empty the directory without removing it.
	KeepRoot bool

	// DryRun reports what would change without changing anything.
	DryRun bool

	// OnTransfer, if set, is called after every file copy.
	OnTransfer TransferFunc
}

// Result lists what an operation did, or would do on a dry run.
type Result struct {
	// Created holds directories created on the destination.
	Created []string
	// Transferred holds destination paths of copied files.
	Transferred []string
	// Skipped holds destination paths of files left alone because their
	// mtimes already matched.
	Skipped []string
	// Removed holds remote paths removed, children before parents.
	Removed []string
	// Bytes is the total number of bytes copied.
	Bytes int64
}

// Put copies one local file to remotePath, overwriting it.
func (s *Syncer) Put(ctx context.Context, localPath, remotePath string, opts *SyncOptions) (*Result, error) {
	opts = orDefault(opts)
	res := &Result{}
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("operation cancelled: %w", err)
	}
	return res, s.put(localPath, remotePath, opts.PreserveMtime, opts, res)
}

// Get copies one remote file to localPath, overwriting it.
func (s *Syncer) Get(ctx context.Context, remotePath, localPath string, opts *SyncOptions) (*Result, error) {
	opts = orDefault(opts)
	res := &Result{}
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("operation cancelled: %w", err)
	}
	return res, s.get(remotePath, localPath, opts, res)
}

// PutR recursively copies localDir into remoteDir. Directories are
// created before anything is copied into them; files are always copied.
// Nothing on the remote side is removed.
func (s *Syncer) PutR(ctx context.Context, localDir, remoteDir string, opts *SyncOptions) (*Result, error) {
	opts = orDefault(opts)
	res := &Result{}

	tree, err := s.localTree(ctx, localDir, opts)
	if err != nil {
		return res, err
	}
	if err := s.ensureRemoteDir(remoteDir, opts, res); err != nil {
		return res, err
	}

	for _, e := range tree.Entries {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("operation cancelled: %w", err)
		}
		dst := path.Join(remoteDir, e.Rel)
		if e.IsDir() {
			err = s.ensureRemoteDir(dst, opts, res)
		} else {
			err = s.put(e.Path, dst, opts.PreserveMtime, opts, res)
		}
		if err != nil {
			return res, err
		}
	}

	s.logger.Debug("put_r done", "src", localDir, "dst", remoteDir, "files", len(res.Transferred), "dirs", len(res.Created))
	return res, nil
}

// GetR recursively copies remoteDir into localDir.
func (s *Syncer) GetR(ctx context.Context, remoteDir, localDir string, opts *SyncOptions) (*Result, error) {
	opts = orDefault(opts)
	res := &Result{}

	tree, err := s.remoteTree(ctx, remoteDir, opts.ExcludePatterns)
	if err != nil {
		return res, err
	}
	if err := s.ensureLocalDir(localDir, opts, res); err != nil {
		return res, err
	}

	for _, e := range tree.Entries {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("operation cancelled: %w", err)
		}
		dst := s.localJoin(localDir, e.Rel)
		if e.IsDir() {
			err = s.ensureLocalDir(dst, opts, res)
		} else {
			err = s.get(e.Path, dst, opts, res)
		}
		if err != nil {
			return res, err
		}
	}

	s.logger.Debug("get_r done", "src", remoteDir, "dst", localDir, "files", len(res.Transferred), "dirs", len(res.Created))
	return res, nil
}

// RmR removes everything under remoteDir, children before parents, then
// remoteDir itself unless KeepRoot is set. It stops at the first error.
// Exclude patterns do not apply: a directory cannot be removed while
// anything is left in it.
func (s *Syncer) RmR(ctx context.Context, remoteDir string, opts *SyncOptions) (*Result, error) {
	opts = orDefault(opts)
	res := &Result{}
	err := s.removeTree(ctx, remoteDir, !opts.KeepRoot, opts, res)
	return res, err
}

// PutDiff pushes local files whose remote counterpart is missing or has a
// different mtime (compared in whole seconds), creating missing remote
// directories first. Pushed files get the local mtime so an unchanged tree
// pushes nothing on the next call. Remote-only entries are left alone.
func (s *Syncer) PutDiff(ctx context.Context, localDir, remoteDir string, opts *SyncOptions) (*Result, error) {
	opts = orDefault(opts)
	res := &Result{}

	local, err := s.localTree(ctx, localDir, opts)
	if err != nil {
		return res, err
	}

	remote := &Tree{Root: remoteDir}
	if s.client.IsDir(remoteDir) {
		remote, err = s.remoteTree(ctx, remoteDir, opts.ExcludePatterns)
		if err != nil {
			return res, err
		}
	} else if err := s.ensureRemoteDir(remoteDir, opts, res); err != nil {
		return res, err
	}

	changed := local.Modified(remote).keys(Entry.kindKey)
	for _, e := range local.Entries {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("operation cancelled: %w", err)
		}
		dst := path.Join(remoteDir, e.Rel)
		if !changed.Contains(e.kindKey()) {
			if e.IsFile() {
				res.Skipped = append(res.Skipped, dst)
			}
			continue
		}
		if e.IsDir() {
			err = s.ensureRemoteDir(dst, opts, res)
		} else {
			err = s.put(e.Path, dst, true, opts, res)
		}
		if err != nil {
			return res, err
		}
	}

	s.logger.Debug("put_diff done", "src", localDir, "dst", remoteDir,
		"transferred", len(res.Transferred), "skipped", len(res.Skipped))
	return res, nil
}

// RmDiff removes remote entries that have no local entry with the same
// relative path and kind. A file and a directory at the same relative path
// do not match, so the remote one is removed. Removed directories go with
// everything in them.
func (s *Syncer) RmDiff(ctx context.Context, localDir, remoteDir string, opts *SyncOptions) (*Result, error) {
	opts = orDefault(opts)
	res := &Result{}

	local, err := s.localTree(ctx, localDir, opts)
	if err != nil {
		return res, err
	}
	remote, err := s.remoteTree(ctx, remoteDir, opts.ExcludePatterns)
	if err != nil {
		return res, err
	}

	var removedDirs []string
	for _, e := range remote.Missing(local).Entries {
		if within(e.Rel, removedDirs) {
			continue
		}
		if e.IsDir() {
			removedDirs = append(removedDirs, e.Rel)
			err = s.removeTree(ctx, e.Path, true, opts, res)
		} else {
			err = s.remove(ctx, e, opts, res)
		}
		if err != nil {
			return res, err
		}
	}

	s.logger.Debug("rm_diff done", "local", localDir, "remote", remoteDir, "removed", len(res.Removed))
	return res, nil
}

// ListR returns the absolute paths of everything under remoteDir, in
// pre-order.
func (s *Syncer) ListR(ctx context.Context, remoteDir string) ([]string, error) {
	tree, err := s.remoteTree(ctx, remoteDir, nil)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		paths = append(paths, e.Path)
	}
	return paths, nil
}

func (s *Syncer) remoteTree(ctx context.Context, root string, exclude []string) (*Tree, error) {
	return RemoteTree(ctx, s.client.sftpClient, root, exclude)
}

func (s *Syncer) localTree(ctx context.Context, root string, opts *SyncOptions) (*Tree, error) {
	info, err := s.local.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", root, ErrNotDirectory)
	}
	return LocalTree(ctx, s.local, root, opts.ExcludePatterns)
}

func (s *Syncer) localJoin(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}

// removeTree removes the contents of dir in reverse pre-order, which puts
// every entry before the directory holding it, and then dir itself when
// withRoot is set.
func (s *Syncer) removeTree(ctx context.Context, dir string, withRoot bool, opts *SyncOptions, res *Result) error {
	tree, err := s.remoteTree(ctx, dir, nil)
	if err != nil {
		return err
	}
	for i := len(tree.Entries) - 1; i >= 0; i-- {
		if err := s.remove(ctx, tree.Entries[i], opts, res); err != nil {
			return err
		}
	}
	if !withRoot {
		return nil
	}
	return s.remove(ctx, Entry{Path: dir, Kind: KindDir}, opts, res)
}

func (s *Syncer) remove(ctx context.Context, e Entry, opts *SyncOptions, res *Result) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("operation cancelled: %w", err)
	}
	if !opts.DryRun {
		var err error
		if e.IsDir() {
			err = s.client.sftpClient.RemoveDirectory(e.Path)
		} else {
			err = s.client.sftpClient.Remove(e.Path)
		}
		if err != nil {
			return err
		}
	}
	s.logger.Debug("removed", "path", e.Path, "kind", e.Kind)
	res.Removed = append(res.Removed, e.Path)
	return nil
}

func (s *Syncer) ensureRemoteDir(dir string, opts *SyncOptions, res *Result) error {
	if s.client.IsDir(dir) {
		return nil
	}
	if !opts.DryRun {
		if err := s.client.sftpClient.Mkdir(dir); err != nil {
			return err
		}
	}
	s.logger.Debug("created", "dir", dir)
	res.Created = append(res.Created, dir)
	return nil
}

func (s *Syncer) ensureLocalDir(dir string, opts *SyncOptions, res *Result) error {
	if localIsDir(s.local, dir) {
		return nil
	}
	if !opts.DryRun {
		if _, err := localMkdir(s.local, dir); err != nil {
			return err
		}
	}
	s.logger.Debug("created", "dir", dir)
	res.Created = append(res.Created, dir)
	return nil
}

func (s *Syncer) put(localPath, remotePath string, preserveMtime bool, opts *SyncOptions, res *Result) error {
	info, err := s.local.Stat(localPath)
	if err != nil {
		return err
	}

	var n int64
	if !opts.DryRun {
		src, err := s.local.Open(localPath)
		if err != nil {
			return err
		}
		defer src.Close()

		dst, err := s.client.sftpClient.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
		if err != nil {
			return err
		}
		n, err = io.Copy(dst, src)
		if err != nil {
			_ = dst.Close()
			return err
		}
		if err := dst.Close(); err != nil {
			return err
		}

		if preserveMtime {
			mtime := info.ModTime()
			if err := s.client.sftpClient.Chtimes(remotePath, mtime, mtime); err != nil {
				return err
			}
		}
	} else {
		n = info.Size()
	}

	s.logger.Debug("put", "src", localPath, "dst", remotePath, "bytes", n)
	res.Transferred = append(res.Transferred, remotePath)
	res.Bytes += n
	if opts.OnTransfer != nil {
		opts.OnTransfer(localPath, remotePath, n)
	}
	return nil
}

func (s *Syncer) get(remotePath, localPath string, opts *SyncOptions, res *Result) error {
	info, err := s.client.sftpClient.Stat(remotePath)
	if err != nil {
		return err
	}

	var n int64
	if !opts.DryRun {
		src, err := s.client.sftpClient.Open(remotePath)
		if err != nil {
			return err
		}
		defer src.Close()

		dst, err := s.local.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return err
		}
		n, err = io.Copy(dst, src)
		if err != nil {
			_ = dst.Close()
			return err
		}
		if err := dst.Close(); err != nil {
			return err
		}

		if opts.PreserveMtime {
			mtime := info.ModTime()
			if err := s.local.Chtimes(localPath, mtime, mtime); err != nil {
				return err
			}
		}
	} else {
		n = info.Size()
	}

	s.logger.Debug("get", "src", remotePath, "dst", localPath, "bytes", n)
	res.Transferred = append(res.Transferred, localPath)
	res.Bytes += n
	if opts.OnTransfer != nil {
		opts.OnTransfer(remotePath, localPath, n)
	}
	return nil
}

func orDefault(opts *SyncOptions) *SyncOptions {
	if opts == nil {
		return &SyncOptions{}
	}
	return opts
}

// within reports whether rel lies inside one of dirs.
func within(rel string, dirs []string) bool {
	for _, d := range dirs {
		if len(rel) > len(d) && rel[:len(d)] == d && rel[len(d)] == '/' {
			return true
		}
	}
	return false
}
