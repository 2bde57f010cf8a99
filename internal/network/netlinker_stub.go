//go:build !linux

package network

// NewService returns a service that only records what it would do; netlink
// only exists on Linux.
func NewService() *Service {
	return NewServiceWithDeps(&DryRunNetlinker{}, &DryRunSystemController{}, DefaultCommandExecutor)
}
