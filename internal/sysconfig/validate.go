package sysconfig

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	lcerrors "grimm.is/lancfg/internal/errors"
)

// settings is the validated view of an ifcfg file. Field names in errors are
// reported as the sysconfig key.
type settings struct {
	BootProto   string `sysconfig:"BOOTPROTO" validate:"omitempty,oneof=static dhcp dhcp4 dhcp6 dhcp+autoip autoip none ibft"`
	StartMode   string `sysconfig:"STARTMODE" validate:"omitempty,oneof=auto hotplug ifplugd manual nfsroot off onboot"`
	MTU         string `sysconfig:"MTU" validate:"omitempty,mtu"`
	LLAddr      string `sysconfig:"LLADDR" validate:"omitempty,mac"`
	Zone        string `sysconfig:"ZONE" validate:"omitempty,zone_name"`
	EtherDevice string `sysconfig:"ETHERDEVICE" validate:"omitempty,ifname"`
	VlanID      string `sysconfig:"VLAN_ID" validate:"omitempty,vlan_id"`
	BondOpts    string `sysconfig:"BONDING_MODULE_OPTS" validate:"omitempty,bond_opts"`
	BridgeSTP   string `sysconfig:"BRIDGE_STP" validate:"omitempty,oneof=on off yes no"`
	Tunnel      string `sysconfig:"TUNNEL" validate:"omitempty,oneof=tun tap sit gre ipip"`
	Broadcast   string `sysconfig:"BROADCAST" validate:"omitempty,ip"`
	Remote      string `sysconfig:"REMOTE_IPADDR" validate:"omitempty,ip"`
}

var (
	ifnameRegex   = regexp.MustCompile(`^[a-zA-Z0-9_.:-]{1,15}$`)
	zoneRegex     = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,17}$`)
	bondOptsRegex = regexp.MustCompile(`^[a-z_]+=[^\s=]+$`)
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	if err := validate.RegisterValidation("mtu", validateMTU); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("vlan_id", validateVlanID); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("ifname", func(fl validator.FieldLevel) bool {
		return IsValidInterfaceName(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("zone_name", func(fl validator.FieldLevel) bool {
		return zoneRegex.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("bond_opts", validateBondOpts); err != nil {
		panic(err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("sysconfig")
	})
}

func validateMTU(fl validator.FieldLevel) bool {
	n, err := strconv.Atoi(fl.Field().String())
	return err == nil && n >= 68 && n <= 65535
}

func validateVlanID(fl validator.FieldLevel) bool {
	n, err := strconv.Atoi(fl.Field().String())
	return err == nil && n >= 1 && n <= 4094
}

func validateBondOpts(fl validator.FieldLevel) bool {
	for _, opt := range strings.Fields(fl.Field().String()) {
		if !bondOptsRegex.MatchString(opt) {
			return false
		}
	}
	return true
}

// IsValidInterfaceName reports whether name can be used as a kernel
// interface name and an ifcfg file suffix.
func IsValidInterfaceName(name string) bool {
	if name == "." || name == ".." || !ifnameRegex.MatchString(name) {
		return false
	}
	return !IsBackupName(name)
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "mtu":
		return "must be a number between 68 and 65535"
	case "vlan_id":
		return "must be a number between 1 and 4094"
	case "mac":
		return "must be a valid MAC address"
	case "ip":
		return "must be a valid IP address"
	case "ifname":
		return "must be a valid interface name (max 15 characters)"
	case "zone_name":
		return "must be a valid firewall zone name"
	case "bond_opts":
		return "must be a space separated list of option=value"
	default:
		return fmt.Sprintf("validation failed: %s", e.Tag())
	}
}

// Validate checks an interface configuration and returns every problem found.
func Validate(c *Ifcfg) error {
	var verrs lcerrors.ValidationErrors

	if !IsValidInterfaceName(c.Name) {
		verrs.Add("name", "invalid interface name %q", c.Name)
	}

	s := settings{
		BootProto:   strings.ToLower(c.Get(KeyBootProto)),
		StartMode:   strings.ToLower(c.Get(KeyStartMode)),
		MTU:         c.Get(KeyMTU),
		LLAddr:      c.Get(KeyLLAddr),
		Zone:        c.Get(KeyZone),
		EtherDevice: c.Get(KeyEtherDevice),
		VlanID:      c.Get(KeyVlanID),
		BondOpts:    c.Get(KeyBondingOptions),
		BridgeSTP:   strings.ToLower(c.Get(KeyBridgeSTP)),
		Tunnel:      strings.ToLower(c.Get(KeyTunnel)),
		Broadcast:   c.Get(KeyBroadcast),
		Remote:      c.Get(KeyRemoteIPAddr),
	}
	if err := validate.Struct(s); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, e := range fieldErrs {
				verrs.Add(e.Field(), "%s", validationMessage(e))
			}
		} else {
			return err
		}
	}

	if _, err := c.Addresses(); err != nil {
		verrs.Add(KeyIPAddr, "%v", err)
	}

	switch c.Type() {
	case TypeVLAN:
		if c.EtherDevice() == "" {
			verrs.Add(KeyEtherDevice, "VLAN requires a parent device")
		}
		if id := c.VlanID(); id < 1 || id > 4094 {
			verrs.Add(KeyVlanID, "VLAN requires an id between 1 and 4094")
		}
		if c.EtherDevice() == c.Name {
			verrs.Add(KeyEtherDevice, "VLAN cannot be its own parent")
		}
	case TypeBond, TypeBridge:
		seen := make(map[string]bool)
		for _, m := range c.Members() {
			if m == c.Name {
				verrs.Add("members", "%s cannot be a member of itself", c.Name)
			}
			if seen[m] {
				verrs.Add("members", "%s listed more than once", m)
			}
			seen[m] = true
		}
	}

	return verrs.Err()
}
