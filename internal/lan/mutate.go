package lan

import (
	"fmt"
	"slices"

	lcerrors "grimm.is/lancfg/internal/errors"
	"grimm.is/lancfg/internal/hardware"
	"grimm.is/lancfg/internal/sysconfig"
	"grimm.is/lancfg/internal/udev"
)

func (items *Items) checkNewName(name string) error {
	if !sysconfig.IsValidInterfaceName(name) {
		return lcerrors.Invalid("invalid interface name %q", name)
	}
	if name == "lo" {
		return lcerrors.Invalid("the loopback device cannot be configured here")
	}
	if items.index(name) >= 0 {
		return lcerrors.Conflict("device %s already exists", name)
	}
	return nil
}

// Add creates a configuration for a device that has no hardware item, such
// as a bond, bridge, VLAN or tunnel.
func (items *Items) Add(name string, t sysconfig.DeviceType) (*Item, error) {
	if err := items.checkNewName(name); err != nil {
		return nil, err
	}
	if t == "" {
		t = sysconfig.TypeFromName(name)
	}
	if t == sysconfig.TypeLoopback {
		return nil, lcerrors.Invalid("cannot add a loopback device")
	}

	c := sysconfig.NewIfcfg(name)
	c.Set(sysconfig.KeyStartMode, sysconfig.StartAuto)
	c.Set(sysconfig.KeyBootProto, sysconfig.BootStatic)
	c.ApplyTypeDefaults(t)
	if !t.IsVirtual() && t != sysconfig.TypeFromName(name) {
		c.Set(sysconfig.KeyInterfaceType, string(t))
	}

	item := &Item{Name: name, Config: c, modified: true}
	if rule, ok := items.rules.ByName(name); ok {
		item.Rule = rule
	}
	items.items = append(items.items, item)
	items.log.Info("added device", "name", name, "type", t)
	return item, nil
}

// FreeName returns the first prefixN that no device or udev rule uses.
func (items *Items) FreeName(prefix string) string {
	for n := 0; ; n++ {
		name := fmt.Sprintf("%s%d", prefix, n)
		if items.index(name) >= 0 {
			continue
		}
		if _, ok := items.rules.ByName(name); ok {
			continue
		}
		return name
	}
}

// Edit applies fn to the configuration of name, creating one for an
// unconfigured device. fn works on a copy; when it fails nothing changes.
func (items *Items) Edit(name string, fn func(*sysconfig.Ifcfg) error) error {
	item, err := items.Find(name)
	if err != nil {
		return err
	}
	var c *sysconfig.Ifcfg
	if item.Config != nil {
		c = item.Config.Clone()
	} else {
		c = newHardwareConfig(item)
	}
	if err := fn(c); err != nil {
		return err
	}
	c.Name = item.Name
	item.Config = c
	item.modified = true
	items.log.Debug("edited device", "name", name)
	return nil
}

// newHardwareConfig returns the proposal for a device seen for the first time.
func newHardwareConfig(item *Item) *sysconfig.Ifcfg {
	c := sysconfig.NewIfcfg(item.Name)
	c.Set(sysconfig.KeyBootProto, sysconfig.BootDHCP)
	c.Set(sysconfig.KeyStartMode, sysconfig.StartAuto)
	if item.Hardware != nil {
		c.ApplyTypeDefaults(item.Hardware.Type)
	}
	return c
}

// Delete removes the configuration of name. Hardware items stay in the list
// unconfigured; virtual items disappear. Bonds and bridges forget the device
// and VLANs on top of it are deleted as well.
func (items *Items) Delete(name string) error {
	item, err := items.Find(name)
	if err != nil {
		return err
	}
	if item.Config == nil {
		return lcerrors.Invalid("device %s is not configured", name)
	}

	var vlans []string
	for _, other := range items.items {
		if other == item || other.Config == nil {
			continue
		}
		if other.Type() == sysconfig.TypeVLAN && other.Config.EtherDevice() == name {
			vlans = append(vlans, other.Name)
			continue
		}
		if other.Config.ReplaceReference(name, "") {
			other.modified = true
			items.log.Info("dropped member", "master", other.Name, "member", name)
		}
	}
	for _, vlan := range vlans {
		if err := items.Delete(vlan); err != nil {
			return err
		}
	}
	items.routes.RemoveInterface(name)

	item.Config = nil
	item.diskName = ""
	item.modified = true
	if item.Virtual() {
		if i := items.index(name); i >= 0 {
			items.items = slices.Delete(items.items, i, i+1)
		}
	}
	items.log.Info("deleted device", "name", name)
	return nil
}

// Rename changes the logical name of a device. Hardware devices get a udev
// rule binding the new name by mechanism m (s390 devices always by bus id).
// References in other configurations and routes follow the new name.
// Renaming a hardware device to its own name only writes the rule.
func (items *Items) Rename(from, to string, m udev.Mechanism) error {
	item, err := items.Find(from)
	if err != nil {
		return err
	}
	if m == "" {
		m = items.cfg.Naming
	}
	if from == to {
		if item.Virtual() {
			return nil
		}
		return items.bindRule(item, to, m)
	}
	if err := items.checkNewName(to); err != nil {
		return err
	}

	if !item.Virtual() {
		if err := items.bindRule(item, to, m); err != nil {
			return err
		}
	} else if item.Rule != nil {
		// hardware is absent; the rule keeps matching it under the new name
		if _, err := items.rules.Rename(from, to); err != nil {
			return lcerrors.Conflict("%v", err)
		}
		item.Rule, _ = items.rules.ByName(to)
	}

	for _, other := range items.items {
		if other != item && other.Config != nil && other.Config.ReplaceReference(from, to) {
			other.modified = true
		}
	}
	items.routes.RenameInterface(from, to)

	item.Name = to
	if item.Config != nil {
		item.Config.Name = to
	}
	item.modified = true
	items.log.Info("renamed device", "from", from, "to", to, "mechanism", m)
	return nil
}

// bindRule makes the udev rule of the hardware item name it to.
func (items *Items) bindRule(item *Item, to string, m udev.Mechanism) error {
	rule, err := items.renameRule(item, to, m)
	if err != nil {
		return err
	}
	if other, ok := items.rules.ByName(to); ok && other.HardwareID() != rule.HardwareID() {
		return lcerrors.Conflict("udev rule for %s already names another device", to)
	}
	if item.Rule != nil && item.Rule.String() == rule.String() {
		return nil
	}
	items.rules.RemoveName(item.Name)
	items.rules.Upsert(rule)
	item.Rule = rule
	return nil
}

func (items *Items) renameRule(item *Item, to string, m udev.Mechanism) (udev.Rule, error) {
	nic := item.Hardware
	if nic.IsS390() {
		m = udev.MechanismBusID
	}
	devPort := ""
	if hardware.SharedBusID(items.nics, nic) {
		devPort = nic.DevPort
	}

	if item.Rule != nil {
		rule := item.Rule.Clone()
		if rule.Mechanism() != m {
			if err := rule.SwitchMechanism(m, nic.HardwareMAC(), nic.BusID, devPort); err != nil {
				return nil, lcerrors.Invalid("%s: %v", item.Name, err)
			}
		}
		rule.SetName(to)
		return rule, nil
	}

	switch {
	case nic.IsS390():
		if nic.BusID == "" {
			return nil, lcerrors.Invalid("%s: device has no bus id", item.Name)
		}
		return udev.S390Rule(to, nic.BusID), nil
	case m == udev.MechanismBusID:
		if nic.BusID == "" {
			return nil, lcerrors.Invalid("%s: device has no bus id", item.Name)
		}
		return udev.BusIDRule(to, nic.BusID, devPort), nil
	default:
		if nic.HardwareMAC() == "" {
			return nil, lcerrors.Invalid("%s: device has no MAC address", item.Name)
		}
		return udev.DefaultRule(to, nic.HardwareMAC()), nil
	}
}

// Enslave makes members the bond slaves or bridge ports of master. Members
// lose their IP setup; bond slaves start on hotplug, bridge ports on boot.
// Unconfigured hardware members get a configuration.
func (items *Items) Enslave(master string, members []string) error {
	m, err := items.Find(master)
	if err != nil {
		return err
	}
	if m.Config == nil {
		return lcerrors.Invalid("%s is not configured", master)
	}

	var candidates []Candidate
	startMode := sysconfig.StartAuto
	switch m.Type() {
	case sysconfig.TypeBond:
		candidates, err = items.BondCandidates(master)
		startMode = sysconfig.StartHotplug
	case sysconfig.TypeBridge:
		candidates, err = items.BridgeCandidates(master)
	default:
		return lcerrors.Invalid("%s is not a bond or bridge", master)
	}
	if err != nil {
		return err
	}
	allowed := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		allowed[c.Item.Name] = true
	}

	owners := items.owners()
	seen := make(map[string]bool)
	for _, name := range members {
		if seen[name] {
			return lcerrors.Invalid("%s listed more than once", name)
		}
		seen[name] = true
		if _, err := items.Find(name); err != nil {
			return err
		}
		for _, owner := range owners[name] {
			if owner != master {
				return lcerrors.Conflict("%s is already enslaved by %s", name, owner)
			}
		}
		if !allowed[name] {
			return lcerrors.Invalid("%s cannot be a member of %s", name, master)
		}
	}

	if err := m.Config.SetMembers(members); err != nil {
		return lcerrors.Invalid("%v", err)
	}
	m.modified = true

	for _, name := range members {
		member, _ := items.Find(name)
		if member.Config == nil {
			member.Config = newHardwareConfig(member)
		}
		member.Config.ResetForMember(startMode)
		member.modified = true
	}
	items.log.Info("enslaved devices", "master", master, "members", members)
	return nil
}
