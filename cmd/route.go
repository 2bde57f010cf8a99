package cmd

import (
	"context"
	"path/filepath"
	"text/tabwriter"

	lcerrors "grimm.is/lancfg/internal/errors"
	"grimm.is/lancfg/internal/i18n"
	"grimm.is/lancfg/internal/routing"
	"grimm.is/lancfg/internal/sysconfig"
)

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// RunRouteList prints the static routes of all route files.
func RunRouteList(ctx context.Context, env *Env) error {
	entries, err := env.Routes().List()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(env.Out, 0, 0, 3, ' ', 0)
	Printer.Fprintln(w, "DESTINATION\tGATEWAY\tNETMASK\tDEVICE\tFILE")
	for _, e := range entries {
		Printer.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Destination, dash(e.Gateway), dash(e.Netmask), dash(e.Interface), filepath.Base(e.File))
	}
	return w.Flush()
}

// RouteOptions describes a route to add or delete.
type RouteOptions struct {
	Destination string
	Gateway     string
	Netmask     string
	Interface   string
	PerDevice   bool // store in ifroute-<dev> instead of routes
}

// RunRouteAdd adds a static route.
func RunRouteAdd(ctx context.Context, env *Env, opts RouteOptions) error {
	if opts.Destination == "" {
		return lcerrors.Invalid("--dest is required")
	}
	route := sysconfig.Route{
		Destination: opts.Destination,
		Gateway:     opts.Gateway,
		Netmask:     opts.Netmask,
		Interface:   opts.Interface,
	}
	if route.IsDefault() && !opts.PerDevice {
		if err := env.Routes().SetDefaultGateway(opts.Gateway, opts.Interface); err != nil {
			return err
		}
	} else if err := env.Routes().Add(route, opts.PerDevice); err != nil {
		return err
	}
	env.printf(i18n.MsgAdded, route.String())
	return nil
}

// RunRouteDelete removes the routes to a destination.
func RunRouteDelete(ctx context.Context, env *Env, opts RouteOptions) error {
	if opts.Destination == "" {
		return lcerrors.Invalid("--dest is required")
	}
	if _, err := env.Routes().Delete(opts.Destination, opts.Interface); err != nil {
		return err
	}
	env.printf(i18n.MsgDeleted, opts.Destination)
	return nil
}

// ForwardingOptions switch IP forwarding. Nil fields are left alone.
type ForwardingOptions struct {
	IPv4  *bool
	IPv6  *bool
	Apply bool // also switch the running kernel
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// RunForwarding shows or changes the persistent IP forwarding settings.
func RunForwarding(ctx context.Context, env *Env, opts ForwardingOptions) error {
	path := env.SysctlFile()
	fw, err := routing.LoadForwarding(path)
	if err != nil {
		return err
	}
	if opts.IPv4 == nil && opts.IPv6 == nil {
		running4, running6, rerr := env.Net.Forwarding()
		w := tabwriter.NewWriter(env.Out, 0, 0, 2, ' ', 0)
		Printer.Fprintln(w, "\tCONFIGURED\tRUNNING")
		if rerr != nil {
			Printer.Fprintf(w, "IPv4\t%s\t-\nIPv6\t%s\t-\n", onOff(fw.IPv4), onOff(fw.IPv6))
		} else {
			Printer.Fprintf(w, "IPv4\t%s\t%s\nIPv6\t%s\t%s\n", onOff(fw.IPv4), onOff(running4), onOff(fw.IPv6), onOff(running6))
		}
		return w.Flush()
	}

	if opts.IPv4 != nil {
		fw.IPv4 = *opts.IPv4
	}
	if opts.IPv6 != nil {
		fw.IPv6 = *opts.IPv6
	}
	if err := fw.Save(path); err != nil {
		return err
	}
	env.printf(i18n.MsgUpdated, filepath.Base(path))
	if opts.Apply {
		return fw.Apply(env.Net)
	}
	return nil
}
