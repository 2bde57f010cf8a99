package sysconfig

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strings"
)

// DefaultDestination is the destination keyword of the default route.
const DefaultDestination = "default"

// Route is one line of a routes or ifroute-<dev> file:
//
//	DESTINATION GATEWAY NETMASK INTERFACE [TYPE] [OPTIONS...]
//
// Empty columns are written as "-".
type Route struct {
	Destination string
	Gateway     string
	Netmask     string
	Interface   string
	Type        string
	Options     []string
}

// IsDefault reports whether r is a default route.
func (r Route) IsDefault() bool {
	return r.Destination == DefaultDestination || r.Destination == "0.0.0.0/0" || r.Destination == "::/0"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func undash(s string) string {
	if s == "-" {
		return ""
	}
	return s
}

// String renders the route as a routes file line.
func (r Route) String() string {
	cols := []string{dash(r.Destination), dash(r.Gateway), dash(r.Netmask), dash(r.Interface)}
	if r.Type != "" || len(r.Options) > 0 {
		cols = append(cols, dash(r.Type))
	}
	cols = append(cols, r.Options...)
	return strings.Join(cols, " ")
}

// Validate checks destination, gateway and netmask syntax.
func (r Route) Validate() error {
	if r.Destination == "" {
		return fmt.Errorf("route has no destination")
	}
	if !r.IsDefault() {
		if _, err := ParseCIDR(r.Destination, "", ""); err != nil {
			return fmt.Errorf("destination: %w", err)
		}
	}
	if r.Gateway != "" {
		if _, err := netip.ParseAddr(r.Gateway); err != nil {
			return fmt.Errorf("invalid gateway %q", r.Gateway)
		}
	}
	if r.Netmask != "" && !strings.HasPrefix(r.Netmask, "/") {
		if _, err := MaskToPrefixLen(r.Netmask); err != nil {
			return err
		}
	}
	if r.Gateway == "" && r.Interface == "" {
		return fmt.Errorf("route to %s needs a gateway or an interface", r.Destination)
	}
	return nil
}

// RouteFile is a parsed routes file. Comment lines are kept as a header.
type RouteFile struct {
	Header []string
	Routes []Route
}

// ParseRoutes reads a routes file.
func ParseRoutes(rd io.Reader) (*RouteFile, error) {
	rf := &RouteFile{}
	scanner := bufio.NewScanner(rd)
	n := 0
	for scanner.Scan() {
		n++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "#") {
			if len(rf.Routes) == 0 {
				rf.Header = append(rf.Header, text)
			}
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 2 {
			return nil, &ParseError{Line: n, Text: text, Msg: "route needs at least destination and gateway"}
		}
		for len(fields) < 4 {
			fields = append(fields, "-")
		}
		r := Route{
			Destination: undash(fields[0]),
			Gateway:     undash(fields[1]),
			Netmask:     undash(fields[2]),
			Interface:   undash(fields[3]),
		}
		if len(fields) > 4 {
			r.Type = undash(fields[4])
		}
		if len(fields) > 5 {
			r.Options = fields[5:]
		}
		rf.Routes = append(rf.Routes, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rf, nil
}

// LoadRoutes reads the routes file at path; a missing file yields an empty set.
func LoadRoutes(path string) (*RouteFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &RouteFile{}, nil
		}
		return nil, err
	}
	rf, err := ParseRoutes(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rf, nil
}

// Bytes renders the routes file.
func (rf *RouteFile) Bytes() []byte {
	var buf bytes.Buffer
	for _, h := range rf.Header {
		buf.WriteString(h)
		buf.WriteByte('\n')
	}
	for _, r := range rf.Routes {
		buf.WriteString(r.String())
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// DefaultGateway returns the gateway of the first default route.
func (rf *RouteFile) DefaultGateway() (Route, bool) {
	for _, r := range rf.Routes {
		if r.IsDefault() {
			return r, true
		}
	}
	return Route{}, false
}

// SetDefaultGateway replaces all default routes of the same address family
// with one via gw. An empty gw removes them.
func (rf *RouteFile) SetDefaultGateway(gw, iface string) error {
	var family int
	if gw != "" {
		addr, err := netip.ParseAddr(gw)
		if err != nil {
			return fmt.Errorf("invalid gateway %q", gw)
		}
		family = 4
		if addr.Is6() {
			family = 6
		}
	}
	kept := rf.Routes[:0]
	for _, r := range rf.Routes {
		if r.IsDefault() && (family == 0 || routeFamily(r) == family) {
			continue
		}
		kept = append(kept, r)
	}
	rf.Routes = kept
	if gw != "" {
		rf.Routes = append([]Route{{Destination: DefaultDestination, Gateway: gw, Interface: iface}}, rf.Routes...)
	}
	return nil
}

func routeFamily(r Route) int {
	if a, err := netip.ParseAddr(r.Gateway); err == nil && a.Is6() {
		return 6
	}
	if strings.Contains(r.Destination, ":") {
		return 6
	}
	return 4
}

// Add appends r after validating it. A route with the same destination,
// netmask and interface is replaced.
func (rf *RouteFile) Add(r Route) error {
	if err := r.Validate(); err != nil {
		return err
	}
	for i, existing := range rf.Routes {
		if existing.Destination == r.Destination && existing.Netmask == r.Netmask && existing.Interface == r.Interface {
			rf.Routes[i] = r
			return nil
		}
	}
	rf.Routes = append(rf.Routes, r)
	return nil
}

// Remove deletes routes to destination. It reports whether any were removed.
func (rf *RouteFile) Remove(destination string) bool {
	kept := rf.Routes[:0]
	removed := false
	for _, r := range rf.Routes {
		if r.Destination == destination {
			removed = true
			continue
		}
		kept = append(kept, r)
	}
	rf.Routes = kept
	return removed
}

// RenameInterface rewrites the interface column from one device name to another.
func (rf *RouteFile) RenameInterface(from, to string) bool {
	changed := false
	for i := range rf.Routes {
		if rf.Routes[i].Interface == from {
			rf.Routes[i].Interface = to
			changed = true
		}
	}
	return changed
}

// RemoveInterface deletes every route bound to iface.
func (rf *RouteFile) RemoveInterface(iface string) bool {
	kept := rf.Routes[:0]
	removed := false
	for _, r := range rf.Routes {
		if r.Interface == iface {
			removed = true
			continue
		}
		kept = append(kept, r)
	}
	rf.Routes = kept
	return removed
}
