package tree

import (
	"encoding/json"
	"strings"
	"testing"

	"fdtrace/internal/model"
)

func dirAt(t *testing.T, tr *Tree, path string) *Directory {
	t.Helper()
	if path == "/" {
		return tr.Root()
	}
	d, ok := tr.Lookup(path).(*Directory)
	if !ok {
		t.Fatalf("%s: not a directory (%T)", path, tr.Lookup(path))
	}
	return d
}

func fileAt(t *testing.T, tr *Tree, path string) *File {
	t.Helper()
	f, ok := tr.Lookup(path).(*File)
	if !ok {
		t.Fatalf("%s: not a file (%T)", path, tr.Lookup(path))
	}
	return f
}

// checkInvariants verifies count and taint against a recount of the subtree.
func checkInvariants(t *testing.T, d *Directory, path string) (files int, write bool) {
	t.Helper()
	for _, e := range d.Entries() {
		switch n := e.Node.(type) {
		case *File:
			files++
			write = write || n.Perm == model.PermWrite
		case *Directory:
			f, w := checkInvariants(t, n, path+"/"+e.Name)
			files += f
			write = write || w
		}
	}
	if d.Files() != files {
		t.Errorf("%s: Files() = %d, subtree has %d", path, d.Files(), files)
	}
	if d.Tainted() != write {
		t.Errorf("%s: Tainted() = %v, subtree write = %v", path, d.Tainted(), write)
	}
	return files, write
}

func TestEmptyTreeHasRoot(t *testing.T) {
	tr := Build(nil)
	if tr.Root() == nil {
		t.Fatal("root missing")
	}
	if tr.Root().Files() != 0 || tr.Root().Tainted() || tr.Root().Len() != 0 {
		t.Fatalf("unexpected root state: files=%d tainted=%v len=%d", tr.Root().Files(), tr.Root().Tainted(), tr.Root().Len())
	}
}

func TestRoundTrip(t *testing.T) {
	tr := Build([]model.Description{
		model.RegularFile{Path: "/a/b/c.txt", Flags: "O_WRONLY|O_CREAT"},
		model.RegularFile{Path: "/a/b/d.txt", Flags: "O_RDONLY"},
	})

	for _, p := range []string{"/", "/a", "/a/b"} {
		d := dirAt(t, tr, p)
		if !d.Tainted() {
			t.Errorf("%s: expected taint", p)
		}
		if d.Files() != 2 {
			t.Errorf("%s: Files() = %d, want 2", p, d.Files())
		}
	}
	if got := fileAt(t, tr, "/a/b/c.txt").Perm; got != model.PermWrite {
		t.Errorf("c.txt perm = %v, want Write", got)
	}
	if got := fileAt(t, tr, "/a/b/d.txt").Perm; got != model.PermRead {
		t.Errorf("d.txt perm = %v, want Read", got)
	}
	checkInvariants(t, tr.Root(), "")
}

func TestFileThenDirectoryConflict(t *testing.T) {
	tr := New()
	tr.Insert("/a", model.PermWrite)
	tr.Insert("/a/b", model.PermRead)

	a := dirAt(t, tr, "/a")
	self, ok := a.Child(SelfEntry).(*File)
	if !ok {
		t.Fatalf("/a has no %q entry", SelfEntry)
	}
	if self.Perm != model.PermWrite {
		t.Errorf("%q perm = %v, want Write", SelfEntry, self.Perm)
	}
	if fileAt(t, tr, "/a/b").Perm != model.PermRead {
		t.Error("/a/b should be Read")
	}
	if a.Files() != 2 || tr.Root().Files() != 2 {
		t.Errorf("counts: /a=%d /=%d, want 2", a.Files(), tr.Root().Files())
	}
	checkInvariants(t, tr.Root(), "")
}

func TestDirectoryThenFileConflict(t *testing.T) {
	tr := New()
	tr.Insert("/a/b", model.PermRead)
	tr.Insert("/a", model.PermWrite)

	a := dirAt(t, tr, "/a")
	if f, ok := a.Child(SelfEntry).(*File); !ok || f.Perm != model.PermWrite {
		t.Fatalf("/a/. = %#v", a.Child(SelfEntry))
	}
	checkInvariants(t, tr.Root(), "")
}

func TestSingleComponentCreditsRoot(t *testing.T) {
	tr := New()
	tr.Insert("/vmlinuz", model.PermWrite)

	if tr.Root().Files() != 1 || !tr.Root().Tainted() {
		t.Fatalf("root files=%d tainted=%v", tr.Root().Files(), tr.Root().Tainted())
	}
	fileAt(t, tr, "/vmlinuz")
}

func TestRepeatedPathLastWriteWins(t *testing.T) {
	tr := New()
	tr.Insert("/etc/hosts", model.PermWrite)
	tr.Insert("/etc/hosts", model.PermRead)

	if fileAt(t, tr, "/etc/hosts").Perm != model.PermRead {
		t.Fatal("expected last insertion to win")
	}
	etc := dirAt(t, tr, "/etc")
	if etc.Files() != 1 {
		t.Errorf("Files() = %d, want 1", etc.Files())
	}
	if etc.Tainted() || tr.Root().Tainted() {
		t.Error("taint should clear once the only written file is overwritten as Read")
	}
	checkInvariants(t, tr.Root(), "")
}

func TestRepeatedPathKeepsSiblingTaint(t *testing.T) {
	tr := New()
	tr.Insert("/etc/hosts", model.PermWrite)
	tr.Insert("/etc/motd", model.PermWrite)
	tr.Insert("/etc/hosts", model.PermRead)

	if !dirAt(t, tr, "/etc").Tainted() {
		t.Error("/etc should stay tainted by motd")
	}
	checkInvariants(t, tr.Root(), "")
}

func TestBuildIsIdempotent(t *testing.T) {
	closed := []model.Description{
		model.RegularFile{Path: "/usr/lib/libc.so.6", Flags: "O_RDONLY|O_CLOEXEC"},
		model.RegularFile{Path: "/tmp/out", Flags: "O_WRONLY|O_CREAT|O_TRUNC"},
		model.RegularFile{Path: "/usr/lib", Flags: "O_RDONLY|O_DIRECTORY"},
		model.PipeEnd{Flags: "O_WRONLY"},
		model.Socket{},
		model.StdStream{Stream: model.Stdout},
		model.RegularFile{Path: "/tmp/out", Flags: "O_RDONLY"},
	}

	a, err := json.Marshal(Build(closed))
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(Build(closed))
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Fatalf("builds differ:\n%s\n%s", a, b)
	}
	checkInvariants(t, Build(closed).Root(), "")
}

func TestWalkOrder(t *testing.T) {
	tr := New()
	for _, p := range []string{"/z/1", "/a/2", "/a/1", "/m"} {
		tr.Insert(p, model.PermRead)
	}

	var got []string
	tr.Walk(func(path, name string, n Node, depth int) bool {
		got = append(got, path)
		return true
	})
	want := "/a /a/1 /a/2 /m /z /z/1"
	if strings.Join(got, " ") != want {
		t.Fatalf("walk = %v, want %s", got, want)
	}

	got = got[:0]
	tr.Walk(func(path, name string, n Node, depth int) bool {
		got = append(got, path)
		return false
	})
	if strings.Join(got, " ") != "/a /m /z" {
		t.Fatalf("pruned walk = %v", got)
	}
}

func TestMarshalJSON(t *testing.T) {
	tr := New()
	tr.Insert("/a/b", model.PermWrite)

	data, err := json.Marshal(tr)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"name":"/","type":"dir","tainted":true,"files":1,"children":[{"name":"a","type":"dir","tainted":true,"files":1,"children":[{"name":"b","type":"file","perm":"Write"}]}]}`
	if string(data) != want {
		t.Fatalf("json = %s\nwant   %s", data, want)
	}
}
