package dns

import (
	"bufio"
	"bytes"
	"net/netip"
	"os"
	"strings"
)

type hostsLine struct {
	raw     string
	ip      string // empty for comments and blank lines
	names   []string
	comment string
	dirty   bool
}

// Hosts is a parsed /etc/hosts. Lines that are not touched are written back
// unchanged.
type Hosts struct {
	lines []hostsLine
}

// ParseHosts reads hosts file content.
func ParseHosts(data []byte) *Hosts {
	h := &Hosts{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		raw := scanner.Text()
		l := hostsLine{raw: raw}
		text := raw
		if i := strings.IndexByte(text, '#'); i >= 0 {
			l.comment = strings.TrimSpace(text[i:])
			text = text[:i]
		}
		if fields := strings.Fields(text); len(fields) > 0 {
			l.ip = fields[0]
			l.names = fields[1:]
		}
		h.lines = append(h.lines, l)
	}
	return h
}

// LoadHosts reads the hosts file at path; a missing file is empty.
func LoadHosts(path string) (*Hosts, error) {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return ParseHosts(data), nil
}

// Names returns the names of the first line for ip.
func (h *Hosts) Names(ip string) []string {
	for _, l := range h.lines {
		if sameIP(l.ip, ip) {
			return l.names
		}
	}
	return nil
}

func sameIP(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	pa, errA := netip.ParseAddr(a)
	pb, errB := netip.ParseAddr(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return pa == pb
}

// Set makes ip resolve to names: the first line for ip is replaced and any
// further lines for it are dropped. Without a line for ip one is appended.
func (h *Hosts) Set(ip string, names ...string) {
	out := h.lines[:0]
	placed := false
	for _, l := range h.lines {
		if sameIP(l.ip, ip) {
			if placed {
				continue
			}
			l.names = append([]string(nil), names...)
			l.dirty = true
			placed = true
		}
		out = append(out, l)
	}
	h.lines = out
	if !placed {
		h.lines = append(h.lines, hostsLine{ip: ip, names: append([]string(nil), names...), dirty: true})
	}
}

// Remove drops every line for ip. It reports whether one existed.
func (h *Hosts) Remove(ip string) bool {
	out := h.lines[:0]
	removed := false
	for _, l := range h.lines {
		if sameIP(l.ip, ip) {
			removed = true
			continue
		}
		out = append(out, l)
	}
	h.lines = out
	return removed
}

// ReplaceNames substitutes old names by the new ones on every line. Lines
// left without names are dropped.
func (h *Hosts) ReplaceNames(old, names []string) {
	drop := make(map[string]bool, len(old))
	for _, n := range old {
		if n != "" {
			drop[n] = true
		}
	}
	out := h.lines[:0]
	for _, l := range h.lines {
		if l.ip == "" {
			out = append(out, l)
			continue
		}
		kept := make([]string, 0, len(l.names))
		hit := false
		for _, n := range l.names {
			if drop[n] {
				hit = true
				continue
			}
			kept = append(kept, n)
		}
		if !hit {
			out = append(out, l)
			continue
		}
		for _, n := range names {
			if n != "" && !contains(kept, n) {
				kept = append(kept, n)
			}
		}
		if len(kept) == 0 {
			continue
		}
		l.names = kept
		l.dirty = true
		out = append(out, l)
	}
	h.lines = out
}

// Bytes renders the hosts file.
func (h *Hosts) Bytes() []byte {
	var buf bytes.Buffer
	for _, l := range h.lines {
		if !l.dirty {
			buf.WriteString(l.raw)
		} else {
			buf.WriteString(l.ip)
			buf.WriteByte('\t')
			buf.WriteString(strings.Join(l.names, " "))
			if l.comment != "" {
				buf.WriteByte(' ')
				buf.WriteString(l.comment)
			}
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
