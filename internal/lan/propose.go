package lan

import "grimm.is/lancfg/internal/sysconfig"

// ProposeDHCP configures one device for DHCP when nothing is configured yet:
// the first wired NIC with link, else the first NIC. It returns the chosen
// item, or nil when a proposal was not needed or not possible.
func (items *Items) ProposeDHCP() (*Item, error) {
	if len(items.Configured()) > 0 {
		return nil, nil
	}
	var first, linked *Item
	for _, it := range items.items {
		if it.Hardware == nil || it.Hardware.Virtual || it.Type() == sysconfig.TypeWireless {
			continue
		}
		if first == nil {
			first = it
		}
		if linked == nil && it.Hardware.Link {
			linked = it
		}
	}
	choice := linked
	if choice == nil {
		choice = first
	}
	if choice == nil {
		return nil, nil
	}
	err := items.Edit(choice.Name, func(c *sysconfig.Ifcfg) error {
		c.Set(sysconfig.KeyBootProto, sysconfig.BootDHCP)
		c.Set(sysconfig.KeyStartMode, sysconfig.StartAuto)
		return nil
	})
	if err != nil {
		return nil, err
	}
	items.log.Info("proposed DHCP configuration", "name", choice.Name)
	return choice, nil
}
