package cmd

import (
	"context"
	"errors"

	"grimm.is/lancfg/internal/lan"
	"grimm.is/lancfg/internal/logging"
	"grimm.is/lancfg/internal/network"
	"grimm.is/lancfg/internal/routing"
	"grimm.is/lancfg/internal/sysconfig"
)

// ApplyOptions select what RunApply activates.
type ApplyOptions struct {
	Devices []string // empty means every configured device
	S390    bool     // enable s390 channel devices with chzdev first
	DNS     bool     // run netconfig
}

// RunApply activates the written configuration: s390 channel devices,
// ethtool options, the network service reload, firewall zones and
// forwarding. Every step runs; failures are logged and returned together.
// Nothing is rolled back.
func RunApply(ctx context.Context, env *Env, opts ApplyOptions) error {
	log := logging.WithComponent("apply")
	items, err := env.Items(ctx)
	if err != nil {
		return err
	}
	targets, err := applyTargets(items, opts.Devices)
	if err != nil {
		return err
	}

	var errs []error
	fail := func(step string, err error) {
		log.Error("apply step failed", "step", step, "error", err)
		errs = append(errs, err)
	}

	if opts.S390 {
		for _, it := range targets {
			if it.Hardware == nil || it.Hardware.S390 == nil {
				continue
			}
			ch := *it.Hardware.S390
			s390 := network.S390Options{Layer2: ch.Layer2, PortName: ch.PortName}
			if err := env.Net.ActivateS390(ctx, it.Hardware.Type, ch, s390); err != nil {
				fail("s390", err)
			}
		}
	}
	for _, it := range targets {
		if it.Hardware == nil {
			continue
		}
		if err := env.Net.ApplyEthtool(ctx, it.Config); err != nil {
			fail("ethtool", err)
		}
	}

	if len(opts.Devices) == 0 {
		err = env.Net.Reload(ctx)
	} else {
		err = env.Net.Reload(ctx, opts.Devices...)
	}
	if err != nil {
		fail("reload", err)
	}

	// a device without ZONE leaves whatever runtime zone it had
	zones := env.Zones()
	for _, it := range targets {
		if err := zones.Assign(ctx, it.Name, it.Config.Get(sysconfig.KeyZone)); err != nil {
			fail("firewall", err)
		}
	}

	if len(opts.Devices) == 0 {
		fw, err := routing.LoadForwarding(env.SysctlFile())
		if err == nil {
			err = fw.Apply(env.Net)
		}
		if err != nil {
			fail("forwarding", err)
		}
	}
	if opts.DNS {
		if err := env.DNS().Apply(ctx); err != nil {
			fail("netconfig", err)
		}
	}

	if exec, ok := env.Exec.(*network.DryRunExecutor); ok {
		for _, c := range exec.Recorded() {
			Printer.Fprintf(env.Out, "would run: %s\n", c)
		}
	}
	if nl, ok := env.Net.Netlinker().(*network.DryRunNetlinker); ok {
		for _, op := range nl.Recorded() {
			Printer.Fprintf(env.Out, "would run: %s\n", op)
		}
	}
	return errors.Join(errs...)
}

func applyTargets(items *lan.Items, names []string) ([]*lan.Item, error) {
	if len(names) == 0 {
		return items.Configured(), nil
	}
	targets := make([]*lan.Item, 0, len(names))
	for _, name := range names {
		it, err := items.Find(name)
		if err != nil {
			return nil, err
		}
		if !it.Configured() {
			continue
		}
		targets = append(targets, it)
	}
	return targets, nil
}
