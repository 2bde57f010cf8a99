// Package lan holds the in-memory model of the system's network devices.
//
// An Item joins up to three sources: the hardware the kernel reports, the
// ifcfg file configuring it and the udev rule giving it a persistent name.
// Items are read once, mutated in memory and written back by Commit.
package lan

import (
	"context"
	"fmt"
	"os"
	"sort"

	lcerrors "grimm.is/lancfg/internal/errors"
	"grimm.is/lancfg/internal/hardware"
	"grimm.is/lancfg/internal/logging"
	"grimm.is/lancfg/internal/sysconfig"
	"grimm.is/lancfg/internal/udev"
)

// Item is one logical network device.
type Item struct {
	Name     string
	Hardware *hardware.NIC    // nil for virtual devices and absent hardware
	Config   *sysconfig.Ifcfg // nil when unconfigured
	Rule     udev.Rule        // nil when no persistent name rule exists

	// diskName is the ifcfg name Config was loaded from; empty for configs
	// created in this session.
	diskName string
	modified bool
}

// Type returns the device type, preferring what the kernel reports.
func (i *Item) Type() sysconfig.DeviceType {
	if i.Hardware != nil && i.Hardware.Type != "" {
		return i.Hardware.Type
	}
	if i.Config != nil {
		return i.Config.Type()
	}
	return sysconfig.TypeFromName(i.Name)
}

// Configured reports whether the item has an ifcfg file.
func (i *Item) Configured() bool {
	return i.Config != nil
}

// Virtual reports whether the item has no hardware behind it.
func (i *Item) Virtual() bool {
	return i.Hardware == nil || i.Hardware.Virtual
}

// Modified reports whether the item changed since it was read.
func (i *Item) Modified() bool {
	return i.modified
}

// Description returns the configured NAME or the driver.
func (i *Item) Description() string {
	if i.Config != nil {
		if d := i.Config.Description(); d != "" {
			return d
		}
	}
	if i.Hardware != nil {
		return i.Hardware.Driver
	}
	return ""
}

// HasIPSetup reports whether the item is configured with any IP addressing.
func (i *Item) HasIPSetup() bool {
	if i.Config == nil {
		return false
	}
	if bp := i.Config.BootProto(); bp != sysconfig.BootNone && bp != sysconfig.BootStatic {
		return true
	}
	_, ok := i.Config.PrimaryAddress()
	return ok
}

// Config describes where Read finds its inputs.
type Config struct {
	Prober     hardware.Prober
	Store      *sysconfig.Store
	RulesPath  string
	RoutesPath string
	Naming     udev.Mechanism // default for new rules
	Root       string         // prefix for firmware checks
}

// Items is the ordered device list. The position of an item is its id.
type Items struct {
	cfg   Config
	items []*Item
	nics  []hardware.NIC

	rules     *udev.RuleSet
	rulesDisk []byte

	routes *sysconfig.RouteFile
	// routesDisk is the file as read; routesBase is how it renders unchanged.
	routesDisk []byte
	routesBase []byte

	// loaded holds the ifcfg content read from disk, by name.
	loaded map[string][]byte

	log *logging.Logger
}

// Read builds the device list: one item per NIC, matched with its udev rule
// and ifcfg, followed by one item per remaining ifcfg.
func Read(ctx context.Context, cfg Config) (*Items, error) {
	if cfg.Naming == "" {
		cfg.Naming = udev.MechanismMAC
	}
	if cfg.Root == "" {
		cfg.Root = "/"
	}
	items := &Items{
		cfg:    cfg,
		loaded: make(map[string][]byte),
		log:    logging.WithComponent("lan"),
	}

	var err error
	if cfg.Prober != nil {
		if items.nics, err = cfg.Prober.Probe(ctx); err != nil {
			return nil, fmt.Errorf("failed to probe hardware: %w", err)
		}
	}

	if items.rulesDisk, err = readOptional(cfg.RulesPath); err != nil {
		return nil, lcerrors.IO("failed to read udev rules", err)
	}
	if items.rules, err = udev.Load(cfg.RulesPath); err != nil {
		return nil, lcerrors.IO("failed to parse udev rules", err)
	}

	items.routes = &sysconfig.RouteFile{}
	if cfg.RoutesPath != "" {
		if items.routesDisk, err = readOptional(cfg.RoutesPath); err != nil {
			return nil, lcerrors.IO("failed to read routes", err)
		}
		if items.routes, err = sysconfig.LoadRoutes(cfg.RoutesPath); err != nil {
			return nil, lcerrors.IO("failed to read routes", err)
		}
	}
	items.routesBase = items.routes.Bytes()

	cfgs, err := cfg.Store.LoadAll()
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*sysconfig.Ifcfg, len(cfgs))
	for _, c := range cfgs {
		data, err := os.ReadFile(cfg.Store.Path(c.Name))
		if err != nil {
			return nil, lcerrors.IO("failed to read "+cfg.Store.Path(c.Name), err)
		}
		byName[c.Name] = c
		items.loaded[c.Name] = data
	}

	for idx := range items.nics {
		nic := &items.nics[idx]
		if nic.Name == "lo" {
			continue
		}
		item := &Item{Name: nic.Name, Hardware: nic}
		if !nic.Virtual {
			if rule := items.ruleFor(nic); rule != nil && rule.Name() != "" {
				item.Rule = rule
				item.Name = rule.Name()
			}
		}
		if c, ok := byName[item.Name]; ok {
			item.Config = c
			item.diskName = c.Name
			delete(byName, item.Name)
		}
		items.items = append(items.items, item)
	}

	var rest []string
	for name := range byName {
		rest = append(rest, name)
	}
	sort.Strings(rest)
	for _, name := range rest {
		c := byName[name]
		item := &Item{Name: name, Config: c, diskName: name}
		if rule, ok := items.rules.ByName(name); ok {
			item.Rule = rule
		}
		items.items = append(items.items, item)
	}

	items.log.Debug("read devices", "hardware", len(items.nics), "configs", len(cfgs), "items", len(items.items))
	return items, nil
}

func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return data, err
}

// hardwareIDs lists the rule hardware ids that may identify nic, most
// specific first.
func (items *Items) hardwareIDs(nic *hardware.NIC) []string {
	var ids []string
	if mac := nic.HardwareMAC(); mac != "" {
		ids = append(ids, "mac:"+mac)
		if nic.MAC != "" && nic.MAC != mac {
			ids = append(ids, "mac:"+nic.MAC)
		}
	}
	if nic.BusID != "" {
		if nic.DevPort != "" {
			ids = append(ids, "busid:"+nic.BusID+"/"+nic.DevPort)
		}
		ids = append(ids, "busid:"+nic.BusID)
	}
	return ids
}

func (items *Items) ruleFor(nic *hardware.NIC) udev.Rule {
	for _, id := range items.hardwareIDs(nic) {
		if r, ok := items.rules.ByHardwareID(id); ok {
			return r
		}
	}
	return nil
}

// All returns the items in id order.
func (items *Items) All() []*Item {
	return items.items
}

// Len returns the number of items.
func (items *Items) Len() int {
	return len(items.items)
}

// Find returns the item called name.
func (items *Items) Find(name string) (*Item, error) {
	if i := items.index(name); i >= 0 {
		return items.items[i], nil
	}
	return nil, lcerrors.NotFound("device", name)
}

func (items *Items) index(name string) int {
	for i, it := range items.items {
		if it.Name == name {
			return i
		}
	}
	return -1
}

// At returns the item with the given id.
func (items *Items) At(id int) (*Item, error) {
	if id < 0 || id >= len(items.items) {
		return nil, lcerrors.NotFound("device id", fmt.Sprint(id))
	}
	return items.items[id], nil
}

// ID returns the id of item, or -1.
func (items *Items) ID(item *Item) int {
	for i, it := range items.items {
		if it == item {
			return i
		}
	}
	return -1
}

// Configured returns the items with an ifcfg file.
func (items *Items) Configured() []*Item {
	var out []*Item
	for _, it := range items.items {
		if it.Configured() {
			out = append(out, it)
		}
	}
	return out
}

// Unconfigured returns the hardware items without an ifcfg file.
func (items *Items) Unconfigured() []*Item {
	var out []*Item
	for _, it := range items.items {
		if !it.Configured() {
			out = append(out, it)
		}
	}
	return out
}

// Rules returns the udev rule set being edited.
func (items *Items) Rules() *udev.RuleSet {
	return items.rules
}

// NICs returns the probed hardware.
func (items *Items) NICs() []hardware.NIC {
	return items.nics
}

// owners maps each bond slave or bridge port to the composite devices that
// list it.
func (items *Items) owners() map[string][]string {
	out := make(map[string][]string)
	for _, it := range items.items {
		if it.Config == nil {
			continue
		}
		for _, m := range it.Config.Members() {
			out[m] = append(out[m], it.Name)
		}
	}
	return out
}

// MasterOf returns the bond or bridge listing name as a member, if any.
func (items *Items) MasterOf(name string) string {
	if owners := items.owners()[name]; len(owners) > 0 {
		return owners[0]
	}
	return ""
}
