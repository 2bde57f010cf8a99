// Package hardware discovers the network controllers present on the system.
package hardware

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"

	"grimm.is/lancfg/internal/sysconfig"
)

// S390Channel describes an s390 channel group device (qeth, lcs, ctc).
type S390Channel struct {
	Read     string `yaml:"read" json:"read"`
	Write    string `yaml:"write" json:"write"`
	Data     string `yaml:"data,omitempty" json:"data,omitempty"`
	Layer2   bool   `yaml:"layer2" json:"layer2"`
	PortName string `yaml:"portname,omitempty" json:"portname,omitempty"`
}

// BusID returns the ccwgroup bus id, which is the read channel.
func (c *S390Channel) BusID() string {
	return c.Read
}

// NIC is one network controller as seen by the kernel.
type NIC struct {
	Name         string               `yaml:"name" json:"name"`
	MAC          string               `yaml:"mac,omitempty" json:"mac,omitempty"`
	PermanentMAC string               `yaml:"permanent_mac,omitempty" json:"permanent_mac,omitempty"`
	BusID        string               `yaml:"bus_id,omitempty" json:"bus_id,omitempty"`
	DevPort      string               `yaml:"dev_port,omitempty" json:"dev_port,omitempty"`
	Driver       string               `yaml:"driver,omitempty" json:"driver,omitempty"`
	Firmware     string               `yaml:"firmware,omitempty" json:"firmware,omitempty"`
	Modalias     string               `yaml:"modalias,omitempty" json:"modalias,omitempty"`
	Type         sysconfig.DeviceType `yaml:"type" json:"type"`
	Link         bool                 `yaml:"link" json:"link"`
	Virtual      bool                 `yaml:"virtual,omitempty" json:"virtual,omitempty"`
	S390         *S390Channel         `yaml:"s390,omitempty" json:"s390,omitempty"`
}

// HardwareMAC returns the permanent MAC when known, else the current one.
func (n *NIC) HardwareMAC() string {
	if n.PermanentMAC != "" {
		return strings.ToLower(n.PermanentMAC)
	}
	return strings.ToLower(n.MAC)
}

// IsS390 reports whether the NIC is an s390 channel group device.
func (n *NIC) IsS390() bool {
	return n.S390 != nil || n.Type.IsS390()
}

// Layer3 reports whether an s390 qeth device runs in layer 3 mode.
func (n *NIC) Layer3() bool {
	return n.Type == sysconfig.TypeQETH && n.S390 != nil && !n.S390.Layer2
}

// Prober lists the network controllers of the system.
type Prober interface {
	Probe(ctx context.Context) ([]NIC, error)
}

// StaticProber returns a fixed list of controllers.
type StaticProber []NIC

// Probe returns a copy of the fixture list.
func (p StaticProber) Probe(ctx context.Context) ([]NIC, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]NIC, len(p))
	copy(out, p)
	return out, nil
}

type fixture struct {
	Interfaces []NIC `yaml:"interfaces"`
}

// LoadFixture reads a YAML hardware description:
//
//	interfaces:
//	  - name: eth0
//	    mac: 52:54:00:12:34:56
//	    bus_id: "0000:00:03.0"
//	    driver: virtio_net
//	    type: eth
//	    link: true
func LoadFixture(path string) (StaticProber, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f fixture
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i := range f.Interfaces {
		if f.Interfaces[i].Name == "" {
			return nil, fmt.Errorf("%s: interface %d has no name", path, i)
		}
		if f.Interfaces[i].Type == "" {
			f.Interfaces[i].Type = sysconfig.TypeFromName(f.Interfaces[i].Name)
		}
	}
	sortNICs(f.Interfaces)
	return StaticProber(f.Interfaces), nil
}

// Fixture renders nics in the LoadFixture format.
func Fixture(nics []NIC) ([]byte, error) {
	return yaml.Marshal(fixture{Interfaces: nics})
}

func sortNICs(nics []NIC) {
	sort.SliceStable(nics, func(i, j int) bool { return nics[i].Name < nics[j].Name })
}

// SharedBusID reports whether another NIC in nics has the same bus id as n,
// in which case dev_port is needed to tell them apart.
func SharedBusID(nics []NIC, n *NIC) bool {
	if n.BusID == "" {
		return false
	}
	for i := range nics {
		if nics[i].Name != n.Name && nics[i].BusID == n.BusID {
			return true
		}
	}
	return false
}
