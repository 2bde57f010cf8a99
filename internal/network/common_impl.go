package network

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultSystemController is the default RealSystemController instance.
var DefaultSystemController SystemController = &RealSystemController{}

// DefaultCommandExecutor is the default RealCommandExecutor instance.
var DefaultCommandExecutor CommandExecutor = &RealCommandExecutor{}

// RealSystemController reads and writes /proc/sys. Root, when set, prefixes
// every path.
type RealSystemController struct {
	Root string
}

// sysctlPath accepts dotted keys (net.ipv4.ip_forward) and absolute paths.
func (r *RealSystemController) sysctlPath(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/proc/sys/" + strings.ReplaceAll(path, ".", "/")
	}
	if r.Root != "" {
		path = filepath.Join(r.Root, path)
	}
	return path
}

// ReadSysctl reads a sysctl value.
func (r *RealSystemController) ReadSysctl(path string) (string, error) {
	data, err := os.ReadFile(r.sysctlPath(path))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// WriteSysctl writes a sysctl value.
func (r *RealSystemController) WriteSysctl(path, value string) error {
	return os.WriteFile(r.sysctlPath(path), []byte(value), 0644)
}

// IsNotExist checks if an error indicates that a file or directory does not exist.
func (r *RealSystemController) IsNotExist(err error) bool {
	return os.IsNotExist(err)
}

// RealCommandExecutor runs commands with os/exec.
type RealCommandExecutor struct{}

// RunCommand runs a command and returns its combined output. The command is
// killed when ctx is done.
func (r *RealCommandExecutor) RunCommand(ctx context.Context, name string, arg ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, arg...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("command %s %v failed: %w, output: %s", name, arg, err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}
