package network

import (
	"context"
	"fmt"
	"strings"

	"grimm.is/lancfg/internal/sysconfig"
)

// EthtoolArgs turns an ETHTOOL_OPTIONS value into ethtool arguments for
// iface. A value starting with an option ("-K iface tso off") names the
// device in its second word, which is replaced by iface. Anything else is a
// list of settings for "ethtool -s".
func EthtoolArgs(iface, opts string) ([]string, error) {
	fields := strings.Fields(opts)
	if len(fields) == 0 {
		return nil, nil
	}
	if !strings.HasPrefix(fields[0], "-") {
		return append([]string{"-s", iface}, fields...), nil
	}
	if len(fields) < 2 {
		return nil, fmt.Errorf("ethtool option %s needs a device", fields[0])
	}
	args := append([]string{fields[0], iface}, fields[2:]...)
	return args, nil
}

// ApplyEthtool runs ethtool for every ETHTOOL_OPTIONS* key of c.
func (s *Service) ApplyEthtool(ctx context.Context, c *sysconfig.Ifcfg) error {
	for _, key := range c.KeysWithPrefix(sysconfig.KeyEthtool) {
		args, err := EthtoolArgs(c.Name, c.Get(key))
		if err != nil {
			return fmt.Errorf("%s %s: %w", c.Name, key, err)
		}
		if args == nil {
			continue
		}
		if _, err := s.run(ctx, "ethtool", args...); err != nil {
			return err
		}
	}
	return nil
}
