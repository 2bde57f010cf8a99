package network

import (
	"fmt"
)

// Forwarding sysctl keys.
const (
	SysctlIPv4Forward        = "net.ipv4.ip_forward"
	SysctlIPv6ForwardAll     = "net.ipv6.conf.all.forwarding"
	SysctlIPv6ForwardDefault = "net.ipv6.conf.default.forwarding"
)

func boolSysctl(enable bool) string {
	if enable {
		return "1"
	}
	return "0"
}

// SetForwarding switches IPv4 and IPv6 forwarding in the running kernel.
// The IPv6 keys are missing when IPv6 is disabled; that is logged, not
// returned.
func (s *Service) SetForwarding(ipv4, ipv6 bool) error {
	if err := s.sys.WriteSysctl(SysctlIPv4Forward, boolSysctl(ipv4)); err != nil {
		return fmt.Errorf("failed to set %s: %w", SysctlIPv4Forward, err)
	}
	for _, key := range []string{SysctlIPv6ForwardAll, SysctlIPv6ForwardDefault} {
		if err := s.sys.WriteSysctl(key, boolSysctl(ipv6)); err != nil {
			if s.sys.IsNotExist(err) {
				s.log.Warn("IPv6 forwarding not available", "key", key)
				continue
			}
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	s.log.Info("set forwarding", "ipv4", ipv4, "ipv6", ipv6)
	return nil
}

// Forwarding reports the current forwarding state.
func (s *Service) Forwarding() (ipv4, ipv6 bool, err error) {
	v4, err := s.sys.ReadSysctl(SysctlIPv4Forward)
	if err != nil {
		return false, false, fmt.Errorf("failed to read %s: %w", SysctlIPv4Forward, err)
	}
	v6, err := s.sys.ReadSysctl(SysctlIPv6ForwardAll)
	if err != nil && !s.sys.IsNotExist(err) {
		return false, false, fmt.Errorf("failed to read %s: %w", SysctlIPv6ForwardAll, err)
	}
	return v4 == "1", v6 == "1", nil
}
