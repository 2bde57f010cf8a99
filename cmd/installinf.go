package cmd

import (
	"context"

	lcerrors "grimm.is/lancfg/internal/errors"
	"grimm.is/lancfg/internal/i18n"
	"grimm.is/lancfg/internal/installinf"
	"grimm.is/lancfg/internal/sysconfig"
)

// RunInstallImport turns the network setup the installer recorded in
// install.inf into an ifcfg file, a default route and resolver settings.
func RunInstallImport(ctx context.Context, env *Env, path string, dryRun bool) error {
	if path == "" {
		path = env.Config.Paths.In(env.Config.Paths.InstallInf)
	}
	inf, err := installinf.Load(path)
	if err != nil {
		return err
	}
	if !inf.HasNetwork() {
		return lcerrors.NotFound("network device in", path)
	}

	items, err := env.Items(ctx)
	if err != nil {
		return err
	}
	name, err := inf.Device(items.NICs())
	if err != nil {
		return err
	}
	imported, err := inf.ToIfcfg(name)
	if err != nil {
		return err
	}
	err = items.Edit(name, func(c *sysconfig.Ifcfg) error {
		*c = *imported.Clone()
		return nil
	})
	if err != nil {
		return err
	}

	route, hasRoute := inf.DefaultRoute(name)
	if dryRun {
		if err := env.commit(ctx, items, true); err != nil {
			return err
		}
		if hasRoute {
			Printer.Fprintf(env.Out, "default route: %s\n", route.String())
		}
		return nil
	}
	if err := env.commit(ctx, items, false); err != nil {
		return err
	}
	if hasRoute {
		if err := env.Routes().SetDefaultGateway(route.Gateway, route.Interface); err != nil {
			return err
		}
	}

	imp := inf.DNS()
	if imp.Hostname == "" && len(imp.Nameservers) == 0 && imp.Domain == "" {
		return nil
	}
	store := env.DNS()
	st, err := store.Read()
	if err != nil {
		return err
	}
	if imp.Hostname != "" {
		st.Hostname = imp.Hostname
	}
	if imp.Domain != "" {
		st.Domain = imp.Domain
		st.Searchlist = imp.Searchlist
	}
	if len(imp.Nameservers) > 0 {
		st.Nameservers = imp.Nameservers
	}
	hostIP := ""
	if p, ok := imported.PrimaryAddress(); ok && !imported.IsDHCP() {
		hostIP = p.Addr().String()
	}
	if err := store.Write(st, hostIP); err != nil {
		return err
	}
	env.printf(i18n.MsgUpdated, "DNS")
	return nil
}
