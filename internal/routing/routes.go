// Package routing manages static routes and IP forwarding.
//
// Routes live in the global routes file and in per-device ifroute-<dev>
// files of the sysconfig network directory. Forwarding is persisted in a
// sysctl drop-in and switched at runtime through the network service.
package routing

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	lcerrors "grimm.is/lancfg/internal/errors"
	"grimm.is/lancfg/internal/logging"
	"grimm.is/lancfg/internal/sysconfig"
)

const (
	routesFile    = "routes"
	ifroutePrefix = "ifroute-"
)

// Entry is a route together with the file it was read from.
type Entry struct {
	sysconfig.Route `yaml:",inline"`
	File            string `json:"file" yaml:"file"`
}

// Routes edits the route files in a sysconfig network directory.
type Routes struct {
	dir string
	log *logging.Logger
}

// New returns a route editor for dir.
func New(dir string) *Routes {
	return &Routes{dir: dir, log: logging.WithComponent("routing")}
}

func (r *Routes) globalPath() string {
	return filepath.Join(r.dir, routesFile)
}

func (r *Routes) devicePath(iface string) string {
	return filepath.Join(r.dir, ifroutePrefix+iface)
}

// files returns the global routes file followed by the ifroute files, sorted.
func (r *Routes) files() ([]string, error) {
	paths := []string{r.globalPath()}
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return paths, nil
		}
		return nil, lcerrors.IO("failed to list "+r.dir, err)
	}
	var dev []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, ifroutePrefix) || sysconfig.IsBackupName(name) {
			continue
		}
		dev = append(dev, filepath.Join(r.dir, name))
	}
	sort.Strings(dev)
	return append(paths, dev...), nil
}

// List returns every configured route.
func (r *Routes) List() ([]Entry, error) {
	paths, err := r.files()
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, p := range paths {
		rf, err := sysconfig.LoadRoutes(p)
		if err != nil {
			return nil, lcerrors.IO("failed to read routes", err)
		}
		for _, route := range rf.Routes {
			out = append(out, Entry{Route: route, File: filepath.Base(p)})
		}
	}
	return out, nil
}

func (r *Routes) update(path string, fn func(*sysconfig.RouteFile) (bool, error)) (bool, error) {
	rf, err := sysconfig.LoadRoutes(path)
	if err != nil {
		return false, lcerrors.IO("failed to read routes", err)
	}
	changed, err := fn(rf)
	if err != nil || !changed {
		return false, err
	}
	if err := sysconfig.WriteFileAtomic(path, rf.Bytes(), 0644); err != nil {
		return false, lcerrors.IO("failed to write "+path, err)
	}
	r.log.Audit("write", path, nil)
	return true, nil
}

// Add stores route in the global routes file, or in the ifroute file of its
// interface when perDevice is set.
func (r *Routes) Add(route sysconfig.Route, perDevice bool) error {
	if err := route.Validate(); err != nil {
		return lcerrors.Invalid("%v", err)
	}
	path := r.globalPath()
	if perDevice {
		if route.Interface == "" {
			return lcerrors.Invalid("a device route needs an interface")
		}
		path = r.devicePath(route.Interface)
	}
	_, err := r.update(path, func(rf *sysconfig.RouteFile) (bool, error) {
		return true, rf.Add(route)
	})
	return err
}

// Delete removes routes to destination from every file. A non-empty iface
// restricts removal to routes over that interface. It returns the number of
// files changed; nothing removed is reported as not found.
func (r *Routes) Delete(destination, iface string) (int, error) {
	paths, err := r.files()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range paths {
		changed, err := r.update(p, func(rf *sysconfig.RouteFile) (bool, error) {
			kept := rf.Routes[:0]
			removed := false
			for _, route := range rf.Routes {
				if route.Destination == destination && (iface == "" || route.Interface == iface) {
					removed = true
					continue
				}
				kept = append(kept, route)
			}
			rf.Routes = kept
			return removed, nil
		})
		if err != nil {
			return n, err
		}
		if changed {
			n++
		}
	}
	if n == 0 {
		return 0, lcerrors.NotFound("route", destination)
	}
	return n, nil
}

// DefaultGateway returns the first default route of the global file.
func (r *Routes) DefaultGateway() (sysconfig.Route, bool, error) {
	rf, err := sysconfig.LoadRoutes(r.globalPath())
	if err != nil {
		return sysconfig.Route{}, false, lcerrors.IO("failed to read routes", err)
	}
	route, ok := rf.DefaultGateway()
	return route, ok, nil
}

// SetDefaultGateway replaces the default route of gw's address family. An
// empty gw removes all default routes.
func (r *Routes) SetDefaultGateway(gw, iface string) error {
	_, err := r.update(r.globalPath(), func(rf *sysconfig.RouteFile) (bool, error) {
		if err := rf.SetDefaultGateway(gw, iface); err != nil {
			return false, lcerrors.Invalid("%v", err)
		}
		return true, nil
	})
	return err
}
