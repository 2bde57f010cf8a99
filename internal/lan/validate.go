package lan

import (
	"errors"
	"fmt"
	"sort"

	lcerrors "grimm.is/lancfg/internal/errors"
	"grimm.is/lancfg/internal/hardware"
	"grimm.is/lancfg/internal/sysconfig"
)

// Report is the outcome of Validate. Errors block Commit, warnings do not.
type Report struct {
	Errors   lcerrors.ValidationErrors
	Warnings []string
}

// Err returns the blocking problems as an error, or nil.
func (r *Report) Err() error {
	return r.Errors.Err()
}

func (r *Report) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validate checks every configuration and the relations between them.
func (items *Items) Validate() *Report {
	r := &Report{}
	names := make(map[string]bool)
	addrs := make(map[string]string)
	vlans := make(map[string]string)

	for _, it := range items.items {
		if names[it.Name] {
			r.Errors.Add(it.Name, "device name used more than once")
		}
		names[it.Name] = true

		if it.Hardware != nil && it.Config != nil {
			items.checkFirmware(r, it)
		}
		if it.Config == nil {
			continue
		}

		if err := sysconfig.Validate(it.Config); err != nil {
			var verrs lcerrors.ValidationErrors
			if errors.As(err, &verrs) {
				for _, v := range verrs {
					r.Errors.Add(it.Name+"."+v.Field, "%s", v.Message)
				}
			} else {
				r.Errors.Add(it.Name, "%v", err)
			}
		}

		if as, err := it.Config.Addresses(); err == nil {
			for _, a := range as {
				ip := a.Prefix.Addr().String()
				if owner, ok := addrs[ip]; ok && owner != it.Name {
					r.Errors.Add(it.Name, "address %s is already used by %s", ip, owner)
				}
				addrs[ip] = it.Name
			}
		}

		if it.Type() == sysconfig.TypeVLAN {
			parent := it.Config.EtherDevice()
			if parent != "" && items.index(parent) < 0 {
				r.Errors.Add(it.Name, "VLAN parent %s does not exist", parent)
			}
			key := fmt.Sprintf("%s/%d", parent, it.Config.VlanID())
			if other, ok := vlans[key]; ok {
				r.Errors.Add(it.Name, "VLAN id %d on %s is already used by %s", it.Config.VlanID(), parent, other)
			}
			vlans[key] = it.Name
		}
	}

	owners := items.owners()
	members := make([]string, 0, len(owners))
	for m := range owners {
		members = append(members, m)
	}
	sort.Strings(members)
	for _, m := range members {
		if len(owners[m]) > 1 {
			r.Errors.Add(m, "member of more than one bond or bridge: %v", owners[m])
		}
		member, err := items.Find(m)
		if err != nil {
			r.warn("%s: member %s does not exist", owners[m][0], m)
			continue
		}
		if member.HasIPSetup() {
			r.warn("%s: member of %s has its own IP setup", m, owners[m][0])
		}
	}
	return r
}

func (items *Items) checkFirmware(r *Report, it *Item) {
	fw, ok := hardware.FirmwareHint(it.Hardware.Driver)
	if !ok || fw.Installed(items.cfg.Root) {
		return
	}
	r.warn("%s: driver %s needs firmware from package %s", it.Name, it.Hardware.Driver, fw.Package)
}
