package udev

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"grimm.is/lancfg/internal/brand"
	"grimm.is/lancfg/internal/clock"
)

const (
	headerMarker = "# Persistent network device names"
	headerNote   = "# Each rule binds a MAC address or bus id to an interface name; one rule per line."
)

type ruleLine struct {
	raw  string // comment or blank line when rule is nil
	rule Rule
}

// RuleSet is the content of a persistent-net rules file.
type RuleSet struct {
	lines    []ruleLine
	modified bool
}

// NewRuleSet returns an empty rule set.
func NewRuleSet() *RuleSet {
	return &RuleSet{}
}

// Parse reads a rules file. Lines ending in a backslash continue on the next
// line. The generated header is dropped; Bytes writes a fresh one.
func Parse(rd io.Reader) (*RuleSet, error) {
	rs := &RuleSet{}
	scanner := bufio.NewScanner(rd)
	n := 0
	var pending strings.Builder
	inHeader := true
	for scanner.Scan() {
		n++
		text := scanner.Text()
		if cont, ok := strings.CutSuffix(text, `\`); ok {
			pending.WriteString(cont)
			continue
		}
		if pending.Len() > 0 {
			pending.WriteString(text)
			text = pending.String()
			pending.Reset()
		}
		trimmed := strings.TrimSpace(text)
		if inHeader && strings.HasPrefix(trimmed, "#") {
			if strings.HasPrefix(trimmed, headerMarker) || trimmed == headerNote {
				continue
			}
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			rs.lines = append(rs.lines, ruleLine{raw: text})
			continue
		}
		inHeader = false
		r, err := ParseRule(trimmed)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		rs.lines = append(rs.lines, ruleLine{rule: r})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

// Load reads the rules file at path. A missing file yields an empty set.
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewRuleSet(), nil
		}
		return nil, err
	}
	rs, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// Modified reports whether the set changed since it was loaded.
func (rs *RuleSet) Modified() bool {
	return rs.modified
}

// Rules returns the naming rules in file order.
func (rs *RuleSet) Rules() []Rule {
	var out []Rule
	for _, l := range rs.lines {
		if l.rule != nil {
			out = append(out, l.rule)
		}
	}
	return out
}

func (rs *RuleSet) indexByName(name string) int {
	for i, l := range rs.lines {
		if l.rule != nil && l.rule.Name() == name {
			return i
		}
	}
	return -1
}

// ByName returns a copy of the rule assigning name.
func (rs *RuleSet) ByName(name string) (Rule, bool) {
	if i := rs.indexByName(name); i >= 0 {
		return rs.lines[i].rule.Clone(), true
	}
	return nil, false
}

// ByHardwareID returns the rule matching the hardware id (see Rule.HardwareID).
func (rs *RuleSet) ByHardwareID(id string) (Rule, bool) {
	if id == "" {
		return nil, false
	}
	for _, l := range rs.lines {
		if l.rule != nil && l.rule.HardwareID() == id {
			return l.rule.Clone(), true
		}
	}
	return nil, false
}

// Upsert stores r. Rules assigning the same name or matching the same
// hardware are replaced; the new rule takes the position of the first one.
func (rs *RuleSet) Upsert(r Rule) {
	name, hwid := r.Name(), r.HardwareID()
	pos := -1
	kept := rs.lines[:0]
	for _, l := range rs.lines {
		if l.rule != nil && (l.rule.Name() == name || (hwid != "" && l.rule.HardwareID() == hwid)) {
			if pos < 0 {
				pos = len(kept)
			}
			continue
		}
		kept = append(kept, l)
	}
	entry := ruleLine{rule: r.Clone()}
	if pos < 0 {
		rs.lines = append(kept, entry)
	} else {
		rs.lines = append(kept[:pos], append([]ruleLine{entry}, kept[pos:]...)...)
	}
	rs.modified = true
}

// Rename changes the NAME assigned by the rule naming from. It reports whether
// such a rule existed and fails when another rule already assigns to.
func (rs *RuleSet) Rename(from, to string) (bool, error) {
	i := rs.indexByName(from)
	if i < 0 {
		return false, nil
	}
	if from == to {
		return true, nil
	}
	if rs.indexByName(to) >= 0 {
		return false, fmt.Errorf("a udev rule already assigns the name %s", to)
	}
	rs.lines[i].rule.SetName(to)
	rs.modified = true
	return true, nil
}

// RemoveName drops the rule assigning name. It reports whether one existed.
func (rs *RuleSet) RemoveName(name string) bool {
	i := rs.indexByName(name)
	if i < 0 {
		return false
	}
	rs.lines = append(rs.lines[:i], rs.lines[i+1:]...)
	rs.modified = true
	return true
}

// Clone returns a deep copy.
func (rs *RuleSet) Clone() *RuleSet {
	c := &RuleSet{lines: make([]ruleLine, len(rs.lines)), modified: rs.modified}
	for i, l := range rs.lines {
		c.lines[i] = ruleLine{raw: l.raw, rule: l.rule.Clone()}
	}
	return c
}

// Header returns the generated header lines.
func Header() []string {
	return []string{
		fmt.Sprintf("%s, written by %s on %s.", headerMarker, brand.LowerName, clock.Now().UTC().Format("2006-01-02 15:04:05")),
		headerNote,
	}
}

// Bytes renders the rule set with a fresh header.
func (rs *RuleSet) Bytes() []byte {
	var buf bytes.Buffer
	for _, h := range Header() {
		buf.WriteString(h)
		buf.WriteByte('\n')
	}
	for _, l := range rs.lines {
		if l.rule != nil {
			buf.WriteString(l.rule.String())
		} else {
			buf.WriteString(l.raw)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
