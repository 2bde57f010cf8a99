package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v2"

	lcerrors "grimm.is/lancfg/internal/errors"
	"grimm.is/lancfg/internal/firewall"
	"grimm.is/lancfg/internal/hardware"
	"grimm.is/lancfg/internal/i18n"
	"grimm.is/lancfg/internal/lan"
	"grimm.is/lancfg/internal/sysconfig"
	"grimm.is/lancfg/internal/udev"
)

// Selector names a device by id or by name.
type Selector struct {
	ID   int // -1 when unset
	Name string
}

func (s Selector) find(items *lan.Items) (*lan.Item, error) {
	switch {
	case s.Name != "":
		return items.Find(s.Name)
	case s.ID >= 0:
		return items.At(s.ID)
	}
	return nil, lcerrors.Invalid("either --id or --name is required")
}

// DeviceSettings are the settings add and edit change. Nil fields are left
// alone.
type DeviceSettings struct {
	BootProto   *string
	IP          *string
	StartMode   *string
	Slaves      *string
	Ports       *string
	Parent      *string
	VlanID      *int
	Zone        *string
	MTU         *int
	Description *string
	Ethtool     *string
}

func (s *DeviceSettings) apply(c *sysconfig.Ifcfg) error {
	if s.BootProto != nil {
		c.Set(sysconfig.KeyBootProto, strings.ToLower(*s.BootProto))
	}
	if s.IP != nil {
		c.ClearAddresses()
		if *s.IP != "" {
			p, err := sysconfig.ParseAddrPrefix(*s.IP, "", "")
			if err != nil {
				return lcerrors.Invalid("--ip: %v", err)
			}
			c.SetAddress("", p, "")
			if s.BootProto == nil {
				c.Set(sysconfig.KeyBootProto, sysconfig.BootStatic)
			}
		}
	}
	if s.StartMode != nil {
		c.Set(sysconfig.KeyStartMode, strings.ToLower(*s.StartMode))
	}
	if s.Parent != nil {
		c.SetOrDelete(sysconfig.KeyEtherDevice, *s.Parent)
	}
	if s.VlanID != nil {
		v := ""
		if *s.VlanID != 0 {
			v = strconv.Itoa(*s.VlanID)
		}
		c.SetOrDelete(sysconfig.KeyVlanID, v)
	}
	if s.Zone != nil {
		firewall.SetZone(c, *s.Zone)
	}
	if s.MTU != nil {
		v := ""
		if *s.MTU != 0 {
			v = strconv.Itoa(*s.MTU)
		}
		c.SetOrDelete(sysconfig.KeyMTU, v)
	}
	if s.Description != nil {
		c.SetOrDelete(sysconfig.KeyName, *s.Description)
	}
	if s.Ethtool != nil {
		c.SetOrDelete(sysconfig.KeyEthtool, *s.Ethtool)
	}
	return sysconfig.Validate(c)
}

func (s *DeviceSettings) members() (members []string, ok bool) {
	switch {
	case s.Slaves != nil:
		return strings.Fields(*s.Slaves), true
	case s.Ports != nil:
		return strings.Fields(*s.Ports), true
	}
	return nil, false
}

func (s *DeviceSettings) editDevice(items *lan.Items, name string) error {
	if err := items.Edit(name, s.apply); err != nil {
		return err
	}
	if members, ok := s.members(); ok {
		return items.Enslave(name, members)
	}
	return nil
}

// commit writes the changes, or prints them as a diff when dryRun is set.
func (e *Env) commit(ctx context.Context, items *lan.Items, dryRun bool) error {
	if err := items.Validate().Err(); err != nil {
		return err
	}
	changes, err := items.Plan()
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		e.printf(i18n.MsgNoChanges)
		return nil
	}
	if dryRun {
		writePlan(e.Out, changes)
		e.printf(i18n.MsgDryRun)
		return nil
	}
	if _, err := items.Commit(ctx); err != nil {
		return err
	}
	e.printf(i18n.MsgWritten, len(changes))
	return nil
}

// ListOptions filters the device list.
type ListOptions struct {
	Configured   bool
	Unconfigured bool
}

// RunList prints the device table.
func RunList(ctx context.Context, env *Env, opts ListOptions) error {
	items, err := env.Items(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(env.Out, 0, 0, 3, ' ', 0)
	Printer.Fprintln(w, "ID\tNAME\tTYPE\tBOOTPROTO\tADDRESS\tDESCRIPTION")
	for id, it := range items.All() {
		if (opts.Configured && !it.Configured()) || (opts.Unconfigured && it.Configured()) {
			continue
		}
		bootproto, addr := "-", "-"
		if it.Configured() {
			bootproto = it.Config.BootProto()
			if p, ok := it.Config.PrimaryAddress(); ok {
				addr = p.String()
			}
			if master := items.MasterOf(it.Name); master != "" {
				addr = "member of " + master
			}
		} else {
			bootproto = "not configured"
		}
		desc := it.Description()
		if desc == "" {
			desc = "-"
		}
		Printer.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", id, it.Name, it.Type(), bootproto, addr, desc)
	}
	return w.Flush()
}

// DeviceView is the show output of a device.
type DeviceView struct {
	ID          int               `json:"id" yaml:"id"`
	Name        string            `json:"name" yaml:"name"`
	Type        string            `json:"type" yaml:"type"`
	Configured  bool              `json:"configured" yaml:"configured"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	BootProto   string            `json:"bootproto,omitempty" yaml:"bootproto,omitempty"`
	StartMode   string            `json:"startmode,omitempty" yaml:"startmode,omitempty"`
	Addresses   []string          `json:"addresses,omitempty" yaml:"addresses,omitempty"`
	Master      string            `json:"master,omitempty" yaml:"master,omitempty"`
	Members     []string          `json:"members,omitempty" yaml:"members,omitempty"`
	UdevRule    string            `json:"udev_rule,omitempty" yaml:"udev_rule,omitempty"`
	Hardware    *hardware.NIC     `json:"hardware,omitempty" yaml:"hardware,omitempty"`
	Settings    map[string]string `json:"settings,omitempty" yaml:"settings,omitempty"`
}

func viewOf(items *lan.Items, it *lan.Item) DeviceView {
	v := DeviceView{
		ID:          items.ID(it),
		Name:        it.Name,
		Type:        string(it.Type()),
		Configured:  it.Configured(),
		Description: it.Description(),
		Master:      items.MasterOf(it.Name),
		Hardware:    it.Hardware,
	}
	if it.Rule != nil {
		v.UdevRule = it.Rule.String()
	}
	if c := it.Config; c != nil {
		v.BootProto = c.BootProto()
		v.StartMode = c.StartMode()
		v.Members = c.Members()
		v.Settings = c.Map()
		if addrs, err := c.Addresses(); err == nil {
			for _, a := range addrs {
				v.Addresses = append(v.Addresses, a.String())
			}
		}
	}
	return v
}

// RunShow prints one device as text, json or yaml.
func RunShow(ctx context.Context, env *Env, sel Selector, format string) error {
	items, err := env.Items(ctx)
	if err != nil {
		return err
	}
	it, err := sel.find(items)
	if err != nil {
		return err
	}
	v := viewOf(items, it)

	switch format {
	case "json":
		enc := json.NewEncoder(env.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = env.Out.Write(data)
		return err
	case "text", "":
	default:
		return lcerrors.Invalid("unknown format %q (want text, json or yaml)", format)
	}

	w := tabwriter.NewWriter(env.Out, 0, 0, 2, ' ', 0)
	row := func(k, val string) {
		if val != "" {
			Printer.Fprintf(w, "%s:\t%s\n", k, val)
		}
	}
	row("Id", strconv.Itoa(v.ID))
	row("Name", v.Name)
	row("Type", v.Type)
	row("Description", v.Description)
	if !v.Configured {
		row("Configured", "no")
	}
	row("Bootproto", v.BootProto)
	row("Startmode", v.StartMode)
	row("Addresses", strings.Join(v.Addresses, " "))
	row("Master", v.Master)
	row("Members", strings.Join(v.Members, " "))
	if nic := v.Hardware; nic != nil {
		row("MAC", nic.MAC)
		row("Bus ID", nic.BusID)
		row("Driver", nic.Driver)
		if nic.Link {
			row("Link", "yes")
		} else {
			row("Link", "no")
		}
	}
	row("Udev rule", v.UdevRule)
	return w.Flush()
}

// AddOptions describes a new device.
type AddOptions struct {
	Name     string
	Type     string
	Settings DeviceSettings
	DryRun   bool
}

// RunAdd creates a device configuration. Hardware devices that are not yet
// configured are configured in place; new names become virtual devices.
func RunAdd(ctx context.Context, env *Env, opts AddOptions) error {
	items, err := env.Items(ctx)
	if err != nil {
		return err
	}
	var t sysconfig.DeviceType
	if opts.Type != "" {
		if t, err = sysconfig.ParseDeviceType(opts.Type); err != nil {
			return lcerrors.Invalid("%v", err)
		}
	}
	name := opts.Name
	if name == "" {
		if t == "" {
			return lcerrors.Invalid("--name or --type is required")
		}
		name = items.FreeName(string(t))
	}

	settings := opts.Settings
	if existing, err := items.Find(name); err == nil {
		if existing.Configured() {
			return lcerrors.Conflict("device %s is already configured", name)
		}
		if settings.BootProto == nil && settings.IP == nil {
			dhcp := sysconfig.BootDHCP
			settings.BootProto = &dhcp
		}
	} else {
		if _, err := items.Add(name, t); err != nil {
			return err
		}
		if settings.BootProto == nil && settings.IP == nil && !isComposite(t, name) {
			dhcp := sysconfig.BootDHCP
			settings.BootProto = &dhcp
		}
	}
	if err := settings.editDevice(items, name); err != nil {
		return err
	}
	if err := env.commit(ctx, items, opts.DryRun); err != nil {
		return err
	}
	if !opts.DryRun {
		env.printf(i18n.MsgAdded, name)
	}
	return nil
}

func isComposite(t sysconfig.DeviceType, name string) bool {
	if t == "" {
		t = sysconfig.TypeFromName(name)
	}
	return t == sysconfig.TypeBond || t == sysconfig.TypeBridge
}

// EditOptions selects a device and the settings to change.
type EditOptions struct {
	Selector Selector
	Settings DeviceSettings
	DryRun   bool
}

// RunEdit changes the settings of a device.
func RunEdit(ctx context.Context, env *Env, opts EditOptions) error {
	items, err := env.Items(ctx)
	if err != nil {
		return err
	}
	it, err := opts.Selector.find(items)
	if err != nil {
		return err
	}
	if err := opts.Settings.editDevice(items, it.Name); err != nil {
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

// RunDelete removes the configuration of a device.
func RunDelete(ctx context.Context, env *Env, sel Selector, dryRun bool) error {
	items, err := env.Items(ctx)
	if err != nil {
		return err
	}
	it, err := sel.find(items)
	if err != nil {
		return err
	}
	name := it.Name
	if err := items.Delete(name); err != nil {
		return err
	}
	if err := env.commit(ctx, items, dryRun); err != nil {
		return err
	}
	if !dryRun {
		env.printf(i18n.MsgDeleted, name)
	}
	return nil
}

// RenameOptions describes a rename.
type RenameOptions struct {
	Name   string
	To     string
	By     string // "mac", "busid" or "" for the configured default
	Bios   bool   // take the new name from biosdevname
	DryRun bool
}

// RunRename gives a device a new persistent name.
func RunRename(ctx context.Context, env *Env, opts RenameOptions) error {
	if opts.Bios {
		if opts.To != "" {
			return lcerrors.Invalid("--to and --bios cannot be combined")
		}
		name, err := env.Net.BiosName(ctx, opts.Name)
		if err != nil {
			return err
		}
		opts.To = name
	}
	var m udev.Mechanism
	if opts.By != "" {
		var err error
		if m, err = udev.ParseMechanism(opts.By); err != nil {
			return lcerrors.Invalid("%v", err)
		}
	}
	items, err := env.Items(ctx)
	if err != nil {
		return err
	}
	if err := items.Rename(opts.Name, opts.To, m); err != nil {
		return err
	}
	if err := env.commit(ctx, items, opts.DryRun); err != nil {
		return err
	}
	if !opts.DryRun {
		env.printf(i18n.MsgRenamed, opts.Name, opts.To)
	}
	return nil
}

// RunCandidates lists the devices that can be enslaved by a bond or bridge.
func RunCandidates(ctx context.Context, env *Env, master string) error {
	items, err := env.Items(ctx)
	if err != nil {
		return err
	}
	m, err := items.Find(master)
	if err != nil {
		return err
	}
	var candidates []lan.Candidate
	switch m.Type() {
	case sysconfig.TypeBond:
		candidates, err = items.BondCandidates(master)
	case sysconfig.TypeBridge:
		candidates, err = items.BridgeCandidates(master)
	default:
		return lcerrors.Invalid("%s is not a bond or bridge", master)
	}
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		env.printf(i18n.MsgNoCandidates, master)
		return nil
	}

	w := tabwriter.NewWriter(env.Out, 0, 0, 3, ' ', 0)
	Printer.Fprintln(w, "NAME\tTYPE\tMEMBER\tNOTE")
	for _, c := range candidates {
		member := "no"
		if items.MasterOf(c.Item.Name) == master {
			member = "yes"
		}
		note := "-"
		if c.Configured {
			note = "IP configuration will be removed"
		}
		Printer.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Item.Name, c.Item.Type(), member, note)
	}
	return w.Flush()
}

// DescribeError renders err for the terminal, one validation problem per
// line.
func DescribeError(err error) string {
	var verrs lcerrors.ValidationErrors
	if errors.As(err, &verrs) {
		var b strings.Builder
		b.WriteString(Printer.Sprintf(i18n.MsgValidationErr))
		for _, e := range verrs {
			fmt.Fprintf(&b, "  %s\n", e.Error())
		}
		return strings.TrimSuffix(b.String(), "\n")
	}
	return err.Error()
}

// RunPropose configures one device for DHCP when no device is configured:
// the first wired NIC with link, else the first wired NIC.
func RunPropose(ctx context.Context, env *Env, dryRun bool) error {
	items, err := env.Items(ctx)
	if err != nil {
		return err
	}
	it, err := items.ProposeDHCP()
	if err != nil {
		return err
	}
	if it == nil {
		env.printf(i18n.MsgNoProposal)
		return nil
	}
	if err := env.commit(ctx, items, dryRun); err != nil {
		return err
	}
	if !dryRun {
		env.printf(i18n.MsgAdded, it.Name)
	}
	return nil
}
