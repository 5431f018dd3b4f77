package webpath

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// LocalTree walks the local directory root on fsys. Relative paths use
// forward slashes so they compare equal to remote ones. Symlinks to regular
// files count as files.
func LocalTree(ctx context.Context, fsys afero.Fs, root string, exclude []string) (*Tree, error) {
	if err := validatePatterns(exclude); err != nil {
		return nil, err
	}

	tree := &Tree{Root: root}
	err := afero.Walk(fsys, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("walk cancelled: %w", err)
		}
		if p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		info = followFileLink(fsys, p, info)
		entry := Entry{
			Rel:     filepath.ToSlash(rel),
			Path:    p,
			Kind:    kindOf(info.Mode()),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		}

		if excluded(entry.Rel, exclude) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.Kind != KindOther {
			tree.Entries = append(tree.Entries, entry)
		}
		return nil
	})
	if err != nil {
		return tree, err
	}
	return tree, nil
}

// followFileLink returns the target's attributes when info is a symlink
// to a regular file. Links to directories and dangling links keep their
// own attributes and are left out of the walk.
func followFileLink(fsys afero.Fs, name string, info os.FileInfo) os.FileInfo {
	if info.Mode()&os.ModeSymlink == 0 {
		return info
	}
	target, err := fsys.Stat(name)
	if err != nil || !target.Mode().IsRegular() {
		return info
	}
	return target
}

func localIsDir(fsys afero.Fs, name string) bool {
	ok, err := afero.IsDir(fsys, name)
	return err == nil && ok
}

// localMkdir creates name unless it already is a directory.
func localMkdir(fsys afero.Fs, name string) (bool, error) {
	if localIsDir(fsys, name) {
		return false, nil
	}
	if err := fsys.Mkdir(name, 0o755); err != nil {
		return false, err
	}
	return true, nil
}
