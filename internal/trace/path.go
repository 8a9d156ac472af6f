package trace

import (
	"path"
	"strconv"
	"strings"
)

// Unquote turns a raw strace string argument into its text. Escapes Go
// cannot read (C octal shorter than three digits) fall back to stripping
// the quotes. A "..." truncation marker after the closing quote is dropped.
func Unquote(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "...")
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}
	if u, err := strconv.Unquote(s); err == nil {
		return u
	}
	return s[1 : len(s)-1]
}

// CanonicalPath unquotes a path argument and makes it absolute and clean.
// Relative paths are taken against cwd.
func CanonicalPath(raw, cwd string) string {
	p := Unquote(raw)
	if i := strings.IndexByte(p, 0); i >= 0 {
		p = p[:i]
	}
	if !path.IsAbs(p) {
		if cwd == "" {
			cwd = "/"
		}
		p = path.Join(cwd, p)
	}
	return path.Clean(p)
}
