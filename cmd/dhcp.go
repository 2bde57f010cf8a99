package cmd

import (
	"context"
	"path/filepath"
	"text/tabwriter"

	"grimm.is/lancfg/internal/dhcp"
	lcerrors "grimm.is/lancfg/internal/errors"
	"grimm.is/lancfg/internal/i18n"
	"grimm.is/lancfg/internal/sysconfig"
)

// DHCPOptions change the DHCP client options, globally or for one device.
// Nil fields are left alone; all nil shows the options.
type DHCPOptions struct {
	Device          string
	HostnameOption  *string
	SetHostname     *bool
	SetDefaultRoute *bool
	ClientID        *string
	WriteHosts      *bool
	DryRun          bool
}

func (o DHCPOptions) empty() bool {
	return o.HostnameOption == nil && o.SetHostname == nil && o.SetDefaultRoute == nil &&
		o.ClientID == nil && o.WriteHosts == nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func optionValues(o dhcp.Options) []string {
	client := o.ClientID
	if client == "" {
		client = "-"
	}
	return []string{o.HostnameOption, yesNo(o.SetHostname), yesNo(o.SetDefaultRoute), client, yesNo(o.WriteHostnameToHosts)}
}

var optionKeys = []string{
	dhcp.KeyHostnameOption,
	dhcp.KeySetHostname,
	dhcp.KeySetDefaultRoute,
	dhcp.KeyClientID,
	dhcp.KeyWriteHostnameToHosts,
}

// RunDHCPOptions shows or changes the DHCP client options. With a device
// the changes are stored as overrides in its ifcfg file.
func RunDHCPOptions(ctx context.Context, env *Env, opts DHCPOptions) error {
	path := env.Config.Paths.DHCPFile()
	global, err := dhcp.Load(path)
	if err != nil {
		return err
	}

	if opts.empty() {
		return showDHCPOptions(ctx, env, global, opts.Device)
	}

	if opts.Device == "" {
		if opts.HostnameOption != nil {
			global.HostnameOption = *opts.HostnameOption
		}
		if opts.SetHostname != nil {
			global.SetHostname = *opts.SetHostname
		}
		if opts.SetDefaultRoute != nil {
			global.SetDefaultRoute = *opts.SetDefaultRoute
		}
		if opts.ClientID != nil {
			global.ClientID = *opts.ClientID
		}
		if opts.WriteHosts != nil {
			global.WriteHostnameToHosts = *opts.WriteHosts
		}
		if opts.DryRun {
			env.printf(i18n.MsgDryRun)
			return nil
		}
		if err := global.Save(path); err != nil {
			return err
		}
		env.printf(i18n.MsgUpdated, filepath.Base(path))
		return nil
	}

	if opts.WriteHosts != nil {
		return lcerrors.Invalid("%s cannot be set per interface", dhcp.KeyWriteHostnameToHosts)
	}
	items, err := env.Items(ctx)
	if err != nil {
		return err
	}
	it, err := items.Find(opts.Device)
	if err != nil {
		return err
	}
	if !it.Configured() {
		return lcerrors.Invalid("%s is not configured", it.Name)
	}
	err = items.Edit(it.Name, func(c *sysconfig.Ifcfg) error {
		overrides := map[string]*string{
			dhcp.KeyHostnameOption: opts.HostnameOption,
			dhcp.KeyClientID:       opts.ClientID,
		}
		if opts.SetHostname != nil {
			v := yesNo(*opts.SetHostname)
			overrides[dhcp.KeySetHostname] = &v
		}
		if opts.SetDefaultRoute != nil {
			v := yesNo(*opts.SetDefaultRoute)
			overrides[dhcp.KeySetDefaultRoute] = &v
		}
		for _, key := range optionKeys {
			if v := overrides[key]; v != nil {
				if err := dhcp.SetOverride(c, key, *v); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := env.commit(ctx, items, opts.DryRun); err != nil {
		return err
	}
	if !opts.DryRun {
		env.printf(i18n.MsgUpdated, it.Name)
	}
	return nil
}

func showDHCPOptions(ctx context.Context, env *Env, global dhcp.Options, device string) error {
	w := tabwriter.NewWriter(env.Out, 0, 0, 2, ' ', 0)
	if device == "" {
		Printer.Fprintln(w, "OPTION\tVALUE")
		for i, v := range optionValues(global) {
			Printer.Fprintf(w, "%s\t%s\n", optionKeys[i], v)
		}
		return w.Flush()
	}

	items, err := env.Items(ctx)
	if err != nil {
		return err
	}
	it, err := items.Find(device)
	if err != nil {
		return err
	}
	globals := optionValues(global)
	effective := optionValues(global.Effective(it.Config))
	Printer.Fprintf(w, "OPTION\tGLOBAL\t%s\n", it.Name)
	for i, key := range optionKeys {
		Printer.Fprintf(w, "%s\t%s\t%s\n", key, globals[i], effective[i])
	}
	return w.Flush()
}
