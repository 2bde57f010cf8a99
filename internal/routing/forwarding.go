package routing

import (
	"bufio"
	"bytes"
	"os"
	"strings"

	lcerrors "grimm.is/lancfg/internal/errors"
	"grimm.is/lancfg/internal/logging"
	"grimm.is/lancfg/internal/network"
	"grimm.is/lancfg/internal/sysconfig"
)

// Forwarding is the persisted IP forwarding setting.
type Forwarding struct {
	IPv4 bool `json:"ipv4" yaml:"ipv4"`
	IPv6 bool `json:"ipv6" yaml:"ipv6"`
}

// sysctlLine is one line of a sysctl.d file; key is empty for comments.
type sysctlLine struct {
	raw   string
	key   string
	value string
}

// SysctlFile is a sysctl.d drop-in. Unrelated lines are kept verbatim.
type SysctlFile struct {
	lines []sysctlLine
}

// ParseSysctl reads "key = value" lines. Slash separated keys are
// normalized to dots.
func ParseSysctl(data []byte) *SysctlFile {
	f := &SysctlFile{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		raw := scanner.Text()
		text := strings.TrimSpace(raw)
		l := sysctlLine{raw: raw}
		if text != "" && !strings.HasPrefix(text, "#") && !strings.HasPrefix(text, ";") {
			if key, value, ok := strings.Cut(text, "="); ok {
				l.key = strings.ReplaceAll(strings.TrimSpace(key), "/", ".")
				l.value = strings.TrimSpace(value)
			}
		}
		f.lines = append(f.lines, l)
	}
	return f
}

// Get returns the last value assigned to key.
func (f *SysctlFile) Get(key string) (string, bool) {
	for i := len(f.lines) - 1; i >= 0; i-- {
		if f.lines[i].key == key {
			return f.lines[i].value, true
		}
	}
	return "", false
}

// Set replaces every assignment of key by a single one, or appends it.
func (f *SysctlFile) Set(key, value string) {
	line := sysctlLine{raw: key + " = " + value, key: key, value: value}
	out := f.lines[:0]
	placed := false
	for _, l := range f.lines {
		if l.key == key {
			if !placed {
				out = append(out, line)
				placed = true
			}
			continue
		}
		out = append(out, l)
	}
	f.lines = out
	if !placed {
		f.lines = append(f.lines, line)
	}
}

// Bytes renders the file.
func (f *SysctlFile) Bytes() []byte {
	var buf bytes.Buffer
	for _, l := range f.lines {
		buf.WriteString(l.raw)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func loadSysctl(path string) (*SysctlFile, error) {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, lcerrors.IO("failed to read "+path, err)
	}
	return ParseSysctl(data), nil
}

// LoadForwarding reads the forwarding setting from the drop-in at path. A
// missing file or key means disabled.
func LoadForwarding(path string) (Forwarding, error) {
	f, err := loadSysctl(path)
	if err != nil {
		return Forwarding{}, err
	}
	v4, _ := f.Get(network.SysctlIPv4Forward)
	v6, _ := f.Get(network.SysctlIPv6ForwardAll)
	return Forwarding{IPv4: v4 == "1", IPv6: v6 == "1"}, nil
}

func sysctlBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Save writes fw into the drop-in at path, keeping its other settings.
func (fw Forwarding) Save(path string) error {
	f, err := loadSysctl(path)
	if err != nil {
		return err
	}
	f.Set(network.SysctlIPv4Forward, sysctlBool(fw.IPv4))
	f.Set(network.SysctlIPv6ForwardAll, sysctlBool(fw.IPv6))
	f.Set(network.SysctlIPv6ForwardDefault, sysctlBool(fw.IPv6))
	if err := sysconfig.WriteFileAtomic(path, f.Bytes(), 0644); err != nil {
		return lcerrors.IO("failed to write "+path, err)
	}
	logging.WithComponent("routing").Audit("write", path, map[string]any{"ipv4": fw.IPv4, "ipv6": fw.IPv6})
	return nil
}

// Apply switches the running kernel to fw.
func (fw Forwarding) Apply(svc *network.Service) error {
	return svc.SetForwarding(fw.IPv4, fw.IPv6)
}
