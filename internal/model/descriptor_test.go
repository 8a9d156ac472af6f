package model

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParsePerm(t *testing.T) {
	tests := []struct {
		flags string
		want  Perm
	}{
		{"O_RDONLY", PermRead},
		{"O_RDONLY|O_CLOEXEC", PermRead},
		{"O_WRONLY|O_CREAT|O_TRUNC", PermWrite},
		{"O_RDWR", PermWrite},
		{"O_CREAT|O_RDWR", PermWrite},
		{"", PermRead},
		{"0x80000", PermRead},
	}
	for _, tt := range tests {
		if got := ParsePerm(tt.flags); got != tt.want {
			t.Errorf("ParsePerm(%q) = %v, want %v", tt.flags, got, tt.want)
		}
	}
}

func TestDescriptionNames(t *testing.T) {
	tests := []struct {
		d    Description
		name string
		kind string
	}{
		{RegularFile{Path: "/etc/passwd", Flags: "O_RDONLY"}, "/etc/passwd", "file"},
		{StdStream{Stream: Stderr}, "<stderr>", "stdio"},
		{PipeEnd{Flags: "O_WRONLY"}, "<pipe>", "pipe"},
		{Socket{}, "<socket>", "socket"},
		{Other{}, "<unknown>", "other"},
	}
	for _, tt := range tests {
		if got := tt.d.Name(); got != tt.name {
			t.Errorf("Name() = %q, want %q", got, tt.name)
		}
		if got := Kind(tt.d); got != tt.kind {
			t.Errorf("Kind(%T) = %q, want %q", tt.d, got, tt.kind)
		}
	}
}

func TestGetLineContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace")
	data := "one\ntwo\nthree\nfour\nfive\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	ctx := GetLineContext(path, 3, 1)
	if ctx.ErrorMsg != "" {
		t.Fatalf("unexpected error: %s", ctx.ErrorMsg)
	}
	if len(ctx.Lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(ctx.Lines))
	}
	if ctx.Lines[1].Text != "three" || !ctx.Lines[1].Target {
		t.Fatalf("target line = %+v", ctx.Lines[1])
	}

	ctx = GetLineContext(path, 9, 1)
	if ctx.ErrorMsg == "" {
		t.Fatal("expected out of range error")
	}
}

func TestGetLineContexts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace")
	data := "one\ntwo\nthree\nfour\nfive\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	got := GetLineContexts(path, []int{1, 2, 5, 2, 7}, 1)
	if len(got) != 4 {
		t.Fatalf("got %d contexts, want 4", len(got))
	}

	want := map[int][]string{
		1: {"one", "two"},
		2: {"one", "two", "three"},
		5: {"four", "five"},
	}
	for ln, texts := range want {
		ctx := got[ln]
		if ctx.ErrorMsg != "" || len(ctx.Lines) != len(texts) {
			t.Fatalf("line %d: %+v", ln, ctx)
		}
		for i, l := range ctx.Lines {
			if l.Text != texts[i] || l.Target != (l.Number == ln) {
				t.Errorf("line %d: context %d = %+v", ln, i, l)
			}
		}
	}
	if got[7].ErrorMsg == "" || got[7].Lines != nil {
		t.Errorf("line 7 = %+v, want out of range", got[7])
	}

	missing := GetLineContexts(filepath.Join(t.TempDir(), "nope"), []int{1, 2}, 1)
	for ln, ctx := range missing {
		if ctx.ErrorMsg == "" {
			t.Errorf("line %d: want read error", ln)
		}
	}
}
