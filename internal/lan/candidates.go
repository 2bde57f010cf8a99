package lan

import (
	lcerrors "grimm.is/lancfg/internal/errors"
	"grimm.is/lancfg/internal/sysconfig"
)

// Candidate is a device that may be enslaved. Configured is set when the
// device currently carries an IP setup that enslaving would discard.
type Candidate struct {
	Item       *Item
	Configured bool
}

var bondExcluded = map[sysconfig.DeviceType]bool{
	sysconfig.TypeBond:     true,
	sysconfig.TypeBridge:   true,
	sysconfig.TypeVLAN:     true,
	sysconfig.TypeTun:      true,
	sysconfig.TypeTap:      true,
	sysconfig.TypeWireless: true,
	sysconfig.TypeLCS:      true,
	sysconfig.TypeCTC:      true,
	sysconfig.TypeIUCV:     true,
	sysconfig.TypeHSI:      true,
	sysconfig.TypeLoopback: true,
}

var bridgeExcluded = map[sysconfig.DeviceType]bool{
	sysconfig.TypeBridge:   true,
	sysconfig.TypeTun:      true,
	sysconfig.TypeWireless: true,
	sysconfig.TypeUSB:      true,
	sysconfig.TypeLoopback: true,
}

// BondCandidates lists the devices that can become slaves of master.
func (items *Items) BondCandidates(master string) ([]Candidate, error) {
	return items.candidates(master, sysconfig.TypeBond, func(it *Item) bool {
		if bondExcluded[it.Type()] {
			return false
		}
		// qeth can only be bonded in layer 2
		return it.Hardware == nil || !it.Hardware.Layer3()
	})
}

// BridgeCandidates lists the devices that can become ports of master.
func (items *Items) BridgeCandidates(master string) ([]Candidate, error) {
	return items.candidates(master, sysconfig.TypeBridge, func(it *Item) bool {
		return !bridgeExcluded[it.Type()]
	})
}

func (items *Items) candidates(master string, want sysconfig.DeviceType, supported func(*Item) bool) ([]Candidate, error) {
	m, err := items.Find(master)
	if err != nil {
		return nil, err
	}
	if m.Type() != want {
		return nil, lcerrors.Invalid("%s is not a %s device", master, want)
	}

	owners := items.owners()
	var out []Candidate
	for _, it := range items.items {
		if it.Name == master || it.Name == "lo" {
			continue
		}
		if taken(owners[it.Name], master) {
			continue
		}
		if !supported(it) {
			continue
		}
		out = append(out, Candidate{Item: it, Configured: it.HasIPSetup()})
	}
	return out, nil
}

// taken reports whether a device listed by owners belongs to a composite
// other than master.
func taken(owners []string, master string) bool {
	for _, o := range owners {
		if o != master {
			return true
		}
	}
	return false
}
