package webpath

import (
	"context"
	"fmt"
	"os"
	"path"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	mapset "github.com/deckarep/golang-set/v2"
)

// Kind classifies a filesystem entry.
type Kind int

const (
	// KindOther covers symlinks, devices, sockets and anything else the
	// walks ignore.
	KindOther Kind = iota
	KindFile
	KindDir
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	default:
		return "other"
	}
}

func kindOf(mode os.FileMode) Kind {
	switch {
	case mode.IsDir():
		return KindDir
	case mode.IsRegular():
		return KindFile
	default:
		return KindOther
	}
}

// Entry is one file or directory found by a tree walk.
type Entry struct {
	// Rel is the slash-separated path relative to the tree root.
	Rel string
	// Path is the full path on the filesystem the tree was read from.
	Path    string
	Kind    Kind
	ModTime time.Time
	Size    int64
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool { return e.Kind == KindDir }

// IsFile reports whether the entry is a regular file.
func (e Entry) IsFile() bool { return e.Kind == KindFile }

// Mtime returns the modification time truncated to whole seconds, the
// precision diff operations compare at.
func (e Entry) Mtime() int64 {
	return e.ModTime.Truncate(time.Second).Unix()
}

func (e Entry) kindKey() string {
	return e.Kind.String() + ":" + e.Rel
}

// EqualTimestamp reports whether a and b are equal once truncated to d.
func EqualTimestamp(a, b time.Time, d time.Duration) bool {
	return a.Truncate(d).Equal(b.Truncate(d))
}

// Tree is the result of walking a directory. Entries are in pre-order:
// every directory appears before anything inside it. The root itself is
// not an entry.
type Tree struct {
	Root    string
	Entries []Entry
}

// Dirs returns the directory entries in pre-order.
func (t *Tree) Dirs() []Entry {
	return t.filter(func(e Entry) bool { return e.IsDir() })
}

// Files returns the regular-file entries in pre-order.
func (t *Tree) Files() []Entry {
	return t.filter(func(e Entry) bool { return e.IsFile() })
}

// Lookup returns the entry at rel, if any.
func (t *Tree) Lookup(rel string) (Entry, bool) {
	for _, e := range t.Entries {
		if e.Rel == rel {
			return e, true
		}
	}
	return Entry{}, false
}

// Missing returns the entries of t that have no entry in other with the
// same relative path and the same kind.
func (t *Tree) Missing(other *Tree) *Tree {
	present := other.keys(Entry.kindKey)
	return &Tree{
		Root: t.Root,
		Entries: t.filter(func(e Entry) bool {
			return !present.Contains(e.kindKey())
		}),
	}
}

// Modified returns the entries of t that other does not hold in the same
// state: directories other lacks, and files other lacks or holds with a
// different mtime (whole seconds, either direction).
func (t *Tree) Modified(other *Tree) *Tree {
	dirs := mapset.NewThreadUnsafeSet[string]()
	files := make(map[string]time.Time)
	for _, e := range other.Entries {
		switch e.Kind {
		case KindDir:
			dirs.Add(e.Rel)
		case KindFile:
			files[e.Rel] = e.ModTime
		}
	}
	return &Tree{
		Root: t.Root,
		Entries: t.filter(func(e Entry) bool {
			switch e.Kind {
			case KindDir:
				return !dirs.Contains(e.Rel)
			case KindFile:
				mtime, ok := files[e.Rel]
				return !ok || !EqualTimestamp(e.ModTime, mtime, time.Second)
			}
			return false
		}),
	}
}

// Rels returns the relative paths of all entries, in pre-order.
func (t *Tree) Rels() []string {
	rels := make([]string, 0, len(t.Entries))
	for _, e := range t.Entries {
		rels = append(rels, e.Rel)
	}
	return rels
}

func (t *Tree) filter(keep func(Entry) bool) []Entry {
	var out []Entry
	for _, e := range t.Entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func (t *Tree) keys(key func(Entry) string) mapset.Set[string] {
	set := mapset.NewThreadUnsafeSetWithSize[string](len(t.Entries))
	for _, e := range t.Entries {
		set.Add(key(e))
	}
	return set
}

// RemoteTree walks the remote directory root. Entries matching any of the
// exclude patterns are left out; excluded directories are not descended.
// Symlinks and other special files are ignored.
func RemoteTree(ctx context.Context, fs SFTPClientInterface, root string, exclude []string) (*Tree, error) {
	if err := validatePatterns(exclude); err != nil {
		return nil, err
	}
	tree := &Tree{Root: root}
	if err := walkRemote(ctx, fs, root, "", exclude, tree); err != nil {
		return tree, err
	}
	return tree, nil
}

func walkRemote(ctx context.Context, fs SFTPClientInterface, dir, rel string, exclude []string, tree *Tree) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("walk cancelled: %w", err)
	}

	infos, err := fs.ReadDir(dir)
	if err != nil {
		return err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })

	for _, info := range infos {
		name := info.Name()
		if name == "." || name == ".." {
			continue
		}
		entry := Entry{
			Rel:     path.Join(rel, name),
			Path:    path.Join(dir, name),
			Kind:    kindOf(info.Mode()),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		}
		if entry.Kind == KindOther || excluded(entry.Rel, exclude) {
			continue
		}
		tree.Entries = append(tree.Entries, entry)
		if entry.IsDir() {
			if err := walkRemote(ctx, fs, entry.Path, entry.Rel, exclude, tree); err != nil {
				return err
			}
		}
	}
	return nil
}

func excluded(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, path.Base(rel)); ok {
			return true
		}
	}
	return false
}

func validatePatterns(patterns []string) error {
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid exclude pattern %q: %w", pattern, doublestar.ErrBadPattern)
		}
	}
	return nil
}
