package cmd

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"grimm.is/lancfg/internal/config"
	lcerrors "grimm.is/lancfg/internal/errors"
	"grimm.is/lancfg/internal/hardware"
	"grimm.is/lancfg/internal/i18n"
	"grimm.is/lancfg/internal/lan"
	"grimm.is/lancfg/internal/logging"
	"grimm.is/lancfg/internal/routing"
	"grimm.is/lancfg/internal/sysconfig"
	"grimm.is/lancfg/internal/udev"
)

// RunExport writes the current setup as a profile to path, or to the output
// when path is empty.
func RunExport(ctx context.Context, env *Env, path string) error {
	items, err := env.Items(ctx)
	if err != nil {
		return err
	}
	p := &config.Profile{SchemaVersion: config.CurrentSchemaVersion}
	for _, it := range items.Configured() {
		p.Interfaces = append(p.Interfaces, config.ProfileInterface{Name: it.Name, Settings: it.Config.Map()})
	}
	for _, r := range items.Rules().Rules() {
		m := r.Mechanism()
		if m == "" || r.Name() == "" {
			continue
		}
		p.Udev = append(p.Udev, config.ProfileUdev{
			Name:      r.Name(),
			Mechanism: string(m),
			Value:     strings.TrimPrefix(r.HardwareID(), string(m)+":"),
		})
	}

	routes, err := env.Routes().List()
	if err != nil {
		return err
	}
	for _, e := range routes {
		p.Routes = append(p.Routes, config.ProfileRouteFrom(e.Route))
	}

	st, err := env.DNS().Read()
	if err != nil {
		return err
	}
	p.DNS = &config.ProfileDNS{
		Hostname:      st.Hostname,
		Domain:        st.Domain,
		Nameservers:   st.Nameservers,
		Searchlist:    st.Searchlist,
		Policy:        st.Policy,
		WriteHostname: st.WriteHostname,
	}
	fw, err := routing.LoadForwarding(env.SysctlFile())
	if err != nil {
		return err
	}
	p.Forwarding = &config.ProfileForwarding{IPv4: fw.IPv4, IPv6: fw.IPv6}

	if path == "" {
		_, err := env.Out.Write(p.Bytes())
		return err
	}
	if err := p.Save(path); err != nil {
		return err
	}
	env.printf(i18n.MsgUpdated, filepath.Base(path))
	return nil
}

// RunImport replays a profile: udev names first, then the interface
// configurations, then routes, DNS and forwarding. Interfaces not named in
// the profile are left alone. With dryRun only the file changes of the
// interfaces are shown.
func RunImport(ctx context.Context, env *Env, path string, dryRun bool) error {
	p, err := config.LoadProfile(path)
	if err != nil {
		return err
	}
	items, err := env.Items(ctx)
	if err != nil {
		return err
	}

	log := logging.WithComponent("import")
	for _, u := range p.Udev {
		m, err := udev.ParseMechanism(u.Mechanism)
		if err != nil {
			return lcerrors.Invalid("udev %s: %v", u.Name, err)
		}
		it := itemByHardwareID(items, string(m)+":"+strings.ToLower(u.Value))
		if it == nil {
			log.Warn("no hardware for udev name", "name", u.Name, "value", u.Value)
			continue
		}
		if err := items.Rename(it.Name, u.Name, m); err != nil {
			return err
		}
	}

	for _, pi := range p.Interfaces {
		if _, err := items.Find(pi.Name); err != nil {
			if _, err := items.Add(pi.Name, ""); err != nil {
				return err
			}
		}
		settings := pi.Settings
		err := items.Edit(pi.Name, func(c *sysconfig.Ifcfg) error {
			for _, key := range c.Keys() {
				if _, ok := settings[key]; !ok {
					c.Delete(key)
				}
			}
			keys := make([]string, 0, len(settings))
			for key := range settings {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				c.Set(key, settings[key])
			}
			return sysconfig.Validate(c)
		})
		if err != nil {
			return err
		}
	}

	if err := env.commit(ctx, items, dryRun); err != nil || dryRun {
		return err
	}

	routes := env.Routes()
	for _, pr := range p.Routes {
		r := pr.Route()
		if r.IsDefault() {
			err = routes.SetDefaultGateway(r.Gateway, r.Interface)
		} else {
			err = routes.Add(r, false)
		}
		if err != nil {
			return err
		}
	}
	if p.DNS != nil {
		store := env.DNS()
		st, err := store.Read()
		if err != nil {
			return err
		}
		st.Hostname = p.DNS.Hostname
		st.Domain = p.DNS.Domain
		st.Nameservers = p.DNS.Nameservers
		st.Searchlist = p.DNS.Searchlist
		st.Policy = p.DNS.Policy
		st.WriteHostname = p.DNS.WriteHostname
		if err := store.Write(st, ""); err != nil {
			return err
		}
	}
	if p.Forwarding != nil {
		fw := routing.Forwarding{IPv4: p.Forwarding.IPv4, IPv6: p.Forwarding.IPv6}
		if err := fw.Save(env.SysctlFile()); err != nil {
			return err
		}
	}
	env.printf(i18n.MsgUpdated, filepath.Base(path))
	return nil
}

// itemByHardwareID finds the hardware item a udev rule id would match.
func itemByHardwareID(items *lan.Items, id string) *lan.Item {
	for _, it := range items.All() {
		if it.Hardware == nil || it.Hardware.Virtual {
			continue
		}
		for _, cand := range nicIDs(it.Hardware) {
			if cand == id {
				return it
			}
		}
	}
	return nil
}

func nicIDs(nic *hardware.NIC) []string {
	var ids []string
	if mac := nic.HardwareMAC(); mac != "" {
		ids = append(ids, string(udev.MechanismMAC)+":"+mac)
	}
	if nic.BusID != "" {
		ids = append(ids, string(udev.MechanismBusID)+":"+nic.BusID)
		if nic.DevPort != "" {
			ids = append(ids, string(udev.MechanismBusID)+":"+nic.BusID+"/"+nic.DevPort)
		}
	}
	return ids
}
