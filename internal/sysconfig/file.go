// Package sysconfig reads and writes the shell-variable files under
// /etc/sysconfig/network: ifcfg-*, ifroute-*, routes, config and dhcp.
//
// # File format
//
// Each line is blank, a comment, or an assignment:
//
//	BOOTPROTO='static'
//	IPADDR="192.168.1.10/24"   # trailing comment
//	export STARTMODE=auto
//
// Values may be single quoted (literal), double quoted (\" \\ \$ \` escapes)
// or bare (backslash escapes the next character). Untouched lines are written
// back byte-for-byte, including CRLF endings and a missing final newline;
// changed values are written single quoted.
package sysconfig

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var keyRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ParseError reports a malformed line.
type ParseError struct {
	Line int
	Text string
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Msg, e.Text)
}

type line struct {
	raw   string
	eol   string // "\n", "\r\n" or "" for a last line without newline
	key   string // empty for comments and blank lines
	value string
}

// File is an ordered set of shell variable assignments.
type File struct {
	lines []line
	nl    string // line ending for new lines
}

// NewFile returns an empty file.
func NewFile() *File {
	return &File{}
}

// Parse reads a sysconfig file.
func Parse(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f := &File{}
	text := string(data)
	n := 0
	for text != "" {
		n++
		raw, eol := text, ""
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			raw, text, eol = text[:i], text[i+1:], "\n"
			if strings.HasSuffix(raw, "\r") {
				raw, eol = raw[:len(raw)-1], "\r\n"
			}
		} else {
			text = ""
		}
		if f.nl == "" && eol != "" {
			f.nl = eol
		}
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			f.lines = append(f.lines, line{raw: raw, eol: eol})
			continue
		}
		key, value, err := parseAssignment(trimmed)
		if err != nil {
			return nil, &ParseError{Line: n, Text: raw, Msg: err.Error()}
		}
		f.lines = append(f.lines, line{raw: raw, eol: eol, key: key, value: value})
	}
	return f, nil
}

func (f *File) newline() string {
	if f.nl == "" {
		return "\n"
	}
	return f.nl
}

// ParseBytes parses data as a sysconfig file.
func ParseBytes(data []byte) (*File, error) {
	return Parse(bytes.NewReader(data))
}

// LoadFile parses the file at path. A missing file yields an error
// satisfying os.IsNotExist.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// LoadFileOrEmpty parses the file at path, returning an empty file when it
// does not exist.
func LoadFileOrEmpty(path string) (*File, error) {
	f, err := LoadFile(path)
	if os.IsNotExist(err) {
		return NewFile(), nil
	}
	return f, err
}

func parseAssignment(s string) (string, string, error) {
	if rest, ok := strings.CutPrefix(s, "export "); ok {
		s = strings.TrimLeft(rest, " \t")
	}
	eq := strings.IndexByte(s, '=')
	if eq <= 0 {
		return "", "", fmt.Errorf("not an assignment")
	}
	key := s[:eq]
	if !keyRegex.MatchString(key) {
		return "", "", fmt.Errorf("invalid variable name %q", key)
	}
	value, rest, err := unquote(s[eq+1:])
	if err != nil {
		return "", "", err
	}
	rest = strings.TrimSpace(rest)
	if rest != "" && !strings.HasPrefix(rest, "#") {
		return "", "", fmt.Errorf("unexpected text after value")
	}
	return key, value, nil
}

// unquote consumes one shell word from s and returns its value and the
// unconsumed remainder.
func unquote(s string) (string, string, error) {
	var b strings.Builder
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			return b.String(), s[i:], nil
		case c == '\'':
			end := strings.IndexByte(s[i+1:], '\'')
			if end < 0 {
				return "", "", fmt.Errorf("unterminated single quote")
			}
			b.WriteString(s[i+1 : i+1+end])
			i += end + 2
		case c == '"':
			i++
			closed := false
			for i < len(s) {
				if s[i] == '\\' && i+1 < len(s) && strings.IndexByte("\"\\$`", s[i+1]) >= 0 {
					b.WriteByte(s[i+1])
					i += 2
					continue
				}
				if s[i] == '"' {
					closed = true
					i++
					break
				}
				b.WriteByte(s[i])
				i++
			}
			if !closed {
				return "", "", fmt.Errorf("unterminated double quote")
			}
		case c == '\\':
			if i+1 < len(s) {
				b.WriteByte(s[i+1])
			}
			i += 2
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), "", nil
}

// Quote renders v as a single-quoted shell word.
func Quote(v string) string {
	return "'" + strings.ReplaceAll(v, "'", `'\''`) + "'"
}

func (f *File) find(key string) int {
	for i := len(f.lines) - 1; i >= 0; i-- {
		if f.lines[i].key == key {
			return i
		}
	}
	return -1
}

// Lookup returns the value of key. When a key is assigned more than once the
// last assignment wins, as it would when the file is sourced.
func (f *File) Lookup(key string) (string, bool) {
	if i := f.find(key); i >= 0 {
		return f.lines[i].value, true
	}
	return "", false
}

// Get returns the value of key or "".
func (f *File) Get(key string) string {
	v, _ := f.Lookup(key)
	return v
}

// Has reports whether key is assigned.
func (f *File) Has(key string) bool {
	return f.find(key) >= 0
}

// Set assigns value to key, rewriting the existing line in place or
// appending a new one.
func (f *File) Set(key, value string) {
	if !keyRegex.MatchString(key) {
		panic(fmt.Sprintf("sysconfig: invalid variable name %q", key))
	}
	rendered := key + "=" + Quote(value)
	if i := f.find(key); i >= 0 {
		if f.lines[i].value == value {
			return
		}
		f.lines[i] = line{raw: rendered, eol: f.lines[i].eol, key: key, value: value}
		return
	}
	f.lines = append(f.lines, line{raw: rendered, eol: f.newline(), key: key, value: value})
}

// SetOrDelete assigns value to key, or deletes key when value is empty.
func (f *File) SetOrDelete(key, value string) {
	if value == "" {
		f.Delete(key)
		return
	}
	f.Set(key, value)
}

// Delete removes every assignment of key. It reports whether anything was removed.
func (f *File) Delete(key string) bool {
	kept := f.lines[:0]
	removed := false
	for _, l := range f.lines {
		if l.key == key {
			removed = true
			continue
		}
		kept = append(kept, l)
	}
	f.lines = kept
	return removed
}

// DeletePrefix removes every key starting with prefix.
func (f *File) DeletePrefix(prefix string) {
	for _, k := range f.Keys() {
		if strings.HasPrefix(k, prefix) {
			f.Delete(k)
		}
	}
}

// Keys returns the assigned keys in file order, each once.
func (f *File) Keys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, l := range f.lines {
		if l.key == "" || seen[l.key] {
			continue
		}
		seen[l.key] = true
		keys = append(keys, l.key)
	}
	return keys
}

// KeysWithPrefix returns the assigned keys starting with prefix, sorted.
func (f *File) KeysWithPrefix(prefix string) []string {
	var keys []string
	for _, k := range f.Keys() {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Map returns the effective assignments.
func (f *File) Map() map[string]string {
	m := make(map[string]string)
	for _, l := range f.lines {
		if l.key != "" {
			m[l.key] = l.value
		}
	}
	return m
}

// Clone returns a deep copy.
func (f *File) Clone() *File {
	c := &File{lines: make([]line, len(f.lines)), nl: f.nl}
	copy(c.lines, f.lines)
	return c
}

// Bytes renders the file. A line that lost its place as the last line is
// terminated with the file's line ending.
func (f *File) Bytes() []byte {
	var buf bytes.Buffer
	for i, l := range f.lines {
		buf.WriteString(l.raw)
		switch {
		case l.eol != "":
			buf.WriteString(l.eol)
		case i < len(f.lines)-1:
			buf.WriteString(f.newline())
		}
	}
	return buf.Bytes()
}

// WriteFileAtomic writes data to a temporary file next to path and renames it
// into place.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
