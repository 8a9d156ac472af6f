// Package tree folds closed file descriptors into a directory hierarchy
// annotated with write taint and contained-file counts.
package tree

import (
	"encoding/json"
	"sort"
	"strings"

	"fdtrace/internal/model"
)

// SelfEntry names the entry that keeps a file's permission when the same
// name later shows up as a directory.
const SelfEntry = "."

// Node is either a *File or a *Directory.
type Node interface {
	node()
}

// File is a leaf opened at least once.
type File struct {
	Perm model.Perm
}

// Directory holds named children. Tainted and Files cover the whole subtree.
type Directory struct {
	children map[string]Node
	tainted  bool
	files    int
}

func (*File) node()      {}
func (*Directory) node() {}

func newDirectory() *Directory {
	return &Directory{children: make(map[string]Node)}
}

// Tainted reports whether any file beneath d was opened for writing.
func (d *Directory) Tainted() bool { return d.tainted }

// Files is the number of files anywhere beneath d.
func (d *Directory) Files() int { return d.files }

// Len is the number of direct children.
func (d *Directory) Len() int { return len(d.children) }

// Child returns the direct child called name, or nil.
func (d *Directory) Child(name string) Node { return d.children[name] }

// Entry is a named child of a directory.
type Entry struct {
	Name string
	Node Node
}

// Entries returns the direct children sorted by name.
func (d *Directory) Entries() []Entry {
	out := make([]Entry, 0, len(d.children))
	for name, n := range d.children {
		out = append(out, Entry{Name: name, Node: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// credit applies a new file's bookkeeping to d.
func (d *Directory) credit(perm model.Perm) {
	d.files++
	if perm == model.PermWrite {
		d.tainted = true
	}
}

// retaint recomputes the taint flag from the direct children. Child
// directories must already be up to date.
func (d *Directory) retaint() {
	d.tainted = false
	for _, n := range d.children {
		switch n := n.(type) {
		case *File:
			if n.Perm == model.PermWrite {
				d.tainted = true
				return
			}
		case *Directory:
			if n.tainted {
				d.tainted = true
				return
			}
		}
	}
}

// subdir returns the child directory called name, creating it or converting
// a file of that name into a directory holding it as a "." entry.
func (d *Directory) subdir(name string) *Directory {
	switch n := d.children[name].(type) {
	case *Directory:
		return n
	case *File:
		conv := newDirectory()
		conv.children[SelfEntry] = n
		conv.credit(n.Perm)
		d.children[name] = conv
		return conv
	}
	sub := newDirectory()
	d.children[name] = sub
	return sub
}

// Tree is the aggregated view of every regular file in a trace.
type Tree struct {
	root *Directory
}

// New returns a tree with only an empty root.
func New() *Tree {
	return &Tree{root: newDirectory()}
}

// Build folds the regular files among descs into a new tree. Other
// descriptor kinds have no path and are skipped.
func Build(descs []model.Description) *Tree {
	t := New()
	for _, d := range descs {
		if f, ok := d.(model.RegularFile); ok {
			t.Insert(f.Path, f.Perm())
		}
	}
	return t
}

// Root is the "/" directory. It always exists.
func (t *Tree) Root() *Directory { return t.root }

// Split breaks an absolute path into components, dropping the root anchor
// along with empty and "." segments.
func Split(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" && p != SelfEntry {
			parts = append(parts, p)
		}
	}
	return parts
}

// Insert records one file. Every directory on the way down is credited
// before descending. A repeated path keeps the last permission seen.
func (t *Tree) Insert(path string, perm model.Perm) {
	parts := Split(path)
	if len(parts) == 0 {
		parts = []string{SelfEntry}
	}

	cwd := t.root
	cwd.credit(perm)
	stack := []*Directory{cwd}

	for _, name := range parts[:len(parts)-1] {
		cwd = cwd.subdir(name)
		cwd.credit(perm)
		stack = append(stack, cwd)
	}

	leaf := parts[len(parts)-1]
	if dir, ok := cwd.children[leaf].(*Directory); ok {
		// seen before as a directory; the file becomes its "." entry
		cwd = dir
		cwd.credit(perm)
		stack = append(stack, cwd)
		leaf = SelfEntry
	}

	prev, seen := cwd.children[leaf].(*File)
	cwd.children[leaf] = &File{Perm: perm}
	if !seen {
		return
	}

	// same file again: undo the extra count and drop stale taint
	for _, d := range stack {
		d.files--
	}
	if prev.Perm == model.PermWrite && perm != model.PermWrite {
		for i := len(stack) - 1; i >= 0; i-- {
			stack[i].retaint()
		}
	}
}

// Lookup resolves an absolute path to a node, or nil.
func (t *Tree) Lookup(path string) Node {
	var n Node = t.root
	for _, name := range Split(path) {
		d, ok := n.(*Directory)
		if !ok {
			return nil
		}
		n = d.children[name]
		if n == nil {
			return nil
		}
	}
	return n
}

// WalkFunc is called for every node below the root in name order. depth
// starts at 0 for the root's children; path is the absolute path.
type WalkFunc func(path string, name string, n Node, depth int) bool

// Walk visits the tree depth first in name order. Returning false from fn
// skips a directory's children.
func (t *Tree) Walk(fn WalkFunc) {
	walk(t.root, "", 0, fn)
}

func walk(d *Directory, prefix string, depth int, fn WalkFunc) {
	for _, e := range d.Entries() {
		p := prefix + "/" + e.Name
		descend := fn(p, e.Name, e.Node, depth)
		if sub, ok := e.Node.(*Directory); ok && descend {
			walk(sub, p, depth+1, fn)
		}
	}
}

type jsonNode struct {
	Name     string      `json:"name"`
	Type     string      `json:"type"`
	Perm     *model.Perm `json:"perm,omitempty"`
	Tainted  bool        `json:"tainted,omitempty"`
	Files    int         `json:"files,omitempty"`
	Children []jsonNode  `json:"children,omitempty"`
}

func toJSON(name string, n Node) jsonNode {
	switch n := n.(type) {
	case *File:
		p := n.Perm
		return jsonNode{Name: name, Type: "file", Perm: &p}
	case *Directory:
		out := jsonNode{Name: name, Type: "dir", Tainted: n.tainted, Files: n.files}
		for _, e := range n.Entries() {
			out.Children = append(out.Children, toJSON(e.Name, e.Node))
		}
		return out
	}
	return jsonNode{Name: name}
}

// MarshalJSON encodes the tree as nested objects rooted at "/".
func (t *Tree) MarshalJSON() ([]byte, error) {
	return json.Marshal(toJSON("/", t.root))
}
