// Package firewall binds interfaces to firewalld zones.
//
// The persistent binding is the ZONE= key of the ifcfg file. When firewalld
// is running the binding is also changed at runtime through firewall-cmd;
// otherwise zones are listed with firewall-offline-cmd.
package firewall

import (
	"context"
	"strings"

	lcerrors "grimm.is/lancfg/internal/errors"
	"grimm.is/lancfg/internal/logging"
	"grimm.is/lancfg/internal/network"
	"grimm.is/lancfg/internal/sysconfig"
)

const (
	firewallCmd        = "firewall-cmd"
	firewallOfflineCmd = "firewall-offline-cmd"
)

// Zones talks to firewalld.
type Zones struct {
	cmd network.CommandExecutor
	log *logging.Logger
}

// New returns a zone manager running commands through cmd.
func New(cmd network.CommandExecutor) *Zones {
	return &Zones{cmd: cmd, log: logging.WithComponent("firewall")}
}

// Running reports whether firewalld answers.
func (z *Zones) Running(ctx context.Context) bool {
	out, err := z.cmd.RunCommand(ctx, firewallCmd, "--state")
	return err == nil && strings.TrimSpace(out) == "running"
}

// List returns the zones firewalld knows.
func (z *Zones) List(ctx context.Context) ([]string, error) {
	tool := firewallOfflineCmd
	if z.Running(ctx) {
		tool = firewallCmd
	}
	out, err := z.cmd.RunCommand(ctx, tool, "--get-zones")
	if err != nil {
		return nil, lcerrors.Command("failed to list firewall zones", err)
	}
	return strings.Fields(out), nil
}

// ZoneOf returns the runtime zone of iface, or "" when it has none.
func (z *Zones) ZoneOf(ctx context.Context, iface string) string {
	// firewall-cmd exits non-zero for interfaces without a zone
	out, err := z.cmd.RunCommand(ctx, firewallCmd, "--get-zone-of-interface="+iface)
	if err != nil {
		return ""
	}
	zone := strings.TrimSpace(out)
	if zone == "no zone" {
		return ""
	}
	return zone
}

// Assign moves iface into zone in the running firewalld. It is a no-op when
// firewalld is not running; the ifcfg ZONE= key takes effect on its next
// start. An empty zone releases the interface.
func (z *Zones) Assign(ctx context.Context, iface, zone string) error {
	if zone == "" {
		return z.Release(ctx, iface)
	}
	if !z.Running(ctx) {
		z.log.Debug("firewalld not running, zone applies on next start", "interface", iface, "zone", zone)
		return nil
	}
	zones, err := z.List(ctx)
	if err != nil {
		return err
	}
	if !contains(zones, zone) {
		return lcerrors.NotFound("firewall zone", zone)
	}
	if _, err := z.cmd.RunCommand(ctx, firewallCmd, "--zone="+zone, "--change-interface="+iface); err != nil {
		return lcerrors.Command("failed to assign "+iface+" to zone "+zone, err)
	}
	z.log.Info("assigned firewall zone", "interface", iface, "zone", zone)
	return nil
}

// Release removes iface from its runtime zone.
func (z *Zones) Release(ctx context.Context, iface string) error {
	if !z.Running(ctx) {
		return nil
	}
	zone := z.ZoneOf(ctx, iface)
	if zone == "" {
		return nil
	}
	if _, err := z.cmd.RunCommand(ctx, firewallCmd, "--zone="+zone, "--remove-interface="+iface); err != nil {
		return lcerrors.Command("failed to remove "+iface+" from zone "+zone, err)
	}
	z.log.Info("released firewall zone", "interface", iface, "zone", zone)
	return nil
}

// SetZone records the persistent zone of an interface configuration. An
// empty zone removes the key.
func SetZone(c *sysconfig.Ifcfg, zone string) {
	c.SetOrDelete(sysconfig.KeyZone, zone)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
