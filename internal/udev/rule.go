// Package udev reads and rewrites persistent network naming rules.
//
// A rule is one line of comma separated clauses:
//
//	SUBSYSTEM=="net", ACTION=="add", DRIVERS=="?*", ATTR{address}=="52:54:00:12:34:56", ATTR{type}=="1", NAME="eth0"
//
// Match clauses use == or !=, assignments use =, += or :=.
package udev

import (
	"fmt"
	"strings"
)

// Operators.
const (
	OpMatch    = "=="
	OpNotMatch = "!="
	OpAssign   = "="
	OpAppend   = "+="
	OpFinal    = ":="
)

// Keys used by persistent naming rules.
const (
	KeySubsystem = "SUBSYSTEM"
	KeyAction    = "ACTION"
	KeyDrivers   = "DRIVERS"
	KeyKernel    = "KERNEL"
	KeyKernels   = "KERNELS"
	KeyAddress   = "ATTR{address}"
	KeyType      = "ATTR{type}"
	KeyDevPort   = "ATTR{dev_port}"
	KeyName      = "NAME"
)

// Mechanism is the hardware identifier a rule binds a name to.
type Mechanism string

const (
	MechanismMAC   Mechanism = "mac"
	MechanismBusID Mechanism = "busid"
)

// ParseMechanism accepts "mac" or "busid" (also "bus_id").
func ParseMechanism(s string) (Mechanism, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mac", "":
		return MechanismMAC, nil
	case "busid", "bus_id", "bus-id":
		return MechanismBusID, nil
	}
	return "", fmt.Errorf("unknown naming mechanism %q (want mac or busid)", s)
}

// Clause is a single KEY<op>"value" element of a rule.
type Clause struct {
	Key   string
	Op    string
	Value string
}

func (c Clause) String() string {
	return c.Key + c.Op + `"` + c.Value + `"`
}

func (c Clause) isAssignment() bool {
	return c.Op == OpAssign || c.Op == OpAppend || c.Op == OpFinal
}

// Rule is an ordered list of clauses.
type Rule []Clause

var operators = []string{OpMatch, OpNotMatch, OpAppend, OpFinal, OpAssign}

// ParseRule parses one rule line.
func ParseRule(line string) (Rule, error) {
	var r Rule
	s := strings.TrimSpace(line)
	for s != "" {
		s = strings.TrimLeft(s, ", \t")
		if s == "" {
			break
		}
		i := strings.IndexAny(s, "=!+:")
		if i <= 0 {
			return nil, fmt.Errorf("expected KEY<op>\"value\" at %q", s)
		}
		key := strings.TrimSpace(s[:i])
		var op string
		for _, candidate := range operators {
			if strings.HasPrefix(s[i:], candidate) {
				op = candidate
				break
			}
		}
		if op == "" {
			return nil, fmt.Errorf("invalid operator after %s", key)
		}
		s = strings.TrimLeft(s[i+len(op):], " \t")
		if !strings.HasPrefix(s, `"`) {
			return nil, fmt.Errorf("value of %s must be double quoted", key)
		}
		end := closingQuote(s)
		if end < 0 {
			return nil, fmt.Errorf("unterminated value of %s", key)
		}
		r = append(r, Clause{Key: key, Op: op, Value: s[1:end]})
		s = s[end+1:]
	}
	if len(r) == 0 {
		return nil, fmt.Errorf("empty rule")
	}
	return r, nil
}

func closingQuote(s string) int {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

// String renders the rule as a single line.
func (r Rule) String() string {
	parts := make([]string, len(r))
	for i, c := range r {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}

// Clone returns a copy of r.
func (r Rule) Clone() Rule {
	if r == nil {
		return nil
	}
	out := make(Rule, len(r))
	copy(out, r)
	return out
}

func (r Rule) index(key string) int {
	for i, c := range r {
		if c.Key == key {
			return i
		}
	}
	return -1
}

// Get returns the value of the first clause with key.
func (r Rule) Get(key string) (string, bool) {
	if i := r.index(key); i >= 0 {
		return r[i].Value, true
	}
	return "", false
}

// Set replaces the first clause with key, or inserts a new clause before the
// NAME assignment so that NAME stays last.
func (r *Rule) Set(key, op, value string) {
	if i := r.index(key); i >= 0 {
		(*r)[i] = Clause{Key: key, Op: op, Value: value}
		return
	}
	c := Clause{Key: key, Op: op, Value: value}
	if key != KeyName {
		if i := r.nameIndex(); i >= 0 {
			*r = append((*r)[:i], append(Rule{c}, (*r)[i:]...)...)
			return
		}
	}
	*r = append(*r, c)
}

// Replace swaps the clause oldKey for newKey=value, keeping its position and
// operator. When oldKey is absent the clause is added as a match.
func (r *Rule) Replace(oldKey, newKey, value string) {
	if i := r.index(oldKey); i >= 0 {
		(*r)[i] = Clause{Key: newKey, Op: (*r)[i].Op, Value: value}
		return
	}
	r.Set(newKey, OpMatch, value)
}

// Remove drops every clause with key. It reports whether any was removed.
func (r *Rule) Remove(key string) bool {
	kept := (*r)[:0]
	removed := false
	for _, c := range *r {
		if c.Key == key {
			removed = true
			continue
		}
		kept = append(kept, c)
	}
	*r = kept
	return removed
}

func (r Rule) nameIndex() int {
	for i, c := range r {
		if c.Key == KeyName && c.isAssignment() {
			return i
		}
	}
	return -1
}

// Name returns the value of the NAME assignment.
func (r Rule) Name() string {
	if i := r.nameIndex(); i >= 0 {
		return r[i].Value
	}
	return ""
}

// SetName sets the NAME assignment.
func (r *Rule) SetName(name string) {
	if i := r.nameIndex(); i >= 0 {
		(*r)[i].Value = name
		return
	}
	*r = append(*r, Clause{Key: KeyName, Op: OpAssign, Value: name})
}

// Mechanism reports how the rule identifies the device, or "" when it matches
// neither a MAC address nor a bus id.
func (r Rule) Mechanism() Mechanism {
	if _, ok := r.Get(KeyAddress); ok {
		return MechanismMAC
	}
	if _, ok := r.Get(KeyKernels); ok {
		return MechanismBusID
	}
	return ""
}

// HardwareID returns a key identifying the hardware the rule matches:
// "mac:<addr>" or "busid:<id>[/<dev_port>]".
func (r Rule) HardwareID() string {
	switch r.Mechanism() {
	case MechanismMAC:
		mac, _ := r.Get(KeyAddress)
		return "mac:" + strings.ToLower(mac)
	case MechanismBusID:
		id, _ := r.Get(KeyKernels)
		if port, ok := r.Get(KeyDevPort); ok {
			return "busid:" + id + "/" + port
		}
		return "busid:" + id
	}
	return ""
}

func base() Rule {
	return Rule{
		{Key: KeySubsystem, Op: OpMatch, Value: "net"},
		{Key: KeyAction, Op: OpMatch, Value: "add"},
		{Key: KeyDrivers, Op: OpMatch, Value: "?*"},
	}
}

// DefaultRule names the device with the given MAC address.
func DefaultRule(name, mac string) Rule {
	r := base()
	r = append(r,
		Clause{Key: KeyAddress, Op: OpMatch, Value: strings.ToLower(mac)},
		Clause{Key: KeyType, Op: OpMatch, Value: "1"},
		Clause{Key: KeyName, Op: OpAssign, Value: name},
	)
	return r
}

// BusIDRule names the device at busID. devPort is only needed when several
// ports share one bus id; pass "" otherwise.
func BusIDRule(name, busID, devPort string) Rule {
	r := base()
	r = append(r, Clause{Key: KeyKernels, Op: OpMatch, Value: busID})
	if devPort != "" {
		r = append(r, Clause{Key: KeyDevPort, Op: OpMatch, Value: devPort})
	}
	r = append(r,
		Clause{Key: KeyType, Op: OpMatch, Value: "1"},
		Clause{Key: KeyName, Op: OpAssign, Value: name},
	)
	return r
}

// S390Rule names an s390 channel group device by its bus id.
func S390Rule(name, busID string) Rule {
	r := base()
	r = append(r,
		Clause{Key: KeyKernels, Op: OpMatch, Value: busID},
		Clause{Key: KeyName, Op: OpAssign, Value: name},
	)
	return r
}

// SwitchMechanism rewrites r in place to match by the other identifier,
// keeping unrelated clauses. mac, busID and devPort describe the hardware.
func (r *Rule) SwitchMechanism(m Mechanism, mac, busID, devPort string) error {
	switch m {
	case MechanismMAC:
		if mac == "" {
			return fmt.Errorf("device has no MAC address")
		}
		r.Remove(KeyDevPort)
		r.Replace(KeyKernels, KeyAddress, strings.ToLower(mac))
	case MechanismBusID:
		if busID == "" {
			return fmt.Errorf("device has no bus id")
		}
		r.Replace(KeyAddress, KeyKernels, busID)
		if devPort != "" {
			r.Set(KeyDevPort, OpMatch, devPort)
		} else {
			r.Remove(KeyDevPort)
		}
	default:
		return fmt.Errorf("unknown naming mechanism %q", m)
	}
	return nil
}
