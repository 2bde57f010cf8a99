package lan

import (
	"bytes"
	"context"
	"os"
	"sort"

	lcerrors "grimm.is/lancfg/internal/errors"
	"grimm.is/lancfg/internal/sysconfig"
	"grimm.is/lancfg/internal/udev"
)

// FileChange is one file Commit writes or removes. New is nil for removals.
type FileChange struct {
	Path   string
	Device string
	Old    []byte
	New    []byte
	Mode   os.FileMode
}

// Removes reports whether the change deletes the file.
func (c FileChange) Removes() bool {
	return c.New == nil
}

type fileState struct {
	device string
	data   []byte
	mode   os.FileMode
}

// Plan returns the file changes Commit would make, sorted by path.
func (items *Items) Plan() ([]FileChange, error) {
	store := items.cfg.Store
	before := make(map[string]fileState)
	after := make(map[string]fileState)

	for name, data := range items.loaded {
		before[store.Path(name)] = fileState{device: name, data: data, mode: 0600}
	}

	kept := make(map[string]bool)
	for _, it := range items.items {
		if it.Config == nil {
			continue
		}
		after[store.Path(it.Name)] = fileState{device: it.Name, data: it.Config.Bytes(), mode: 0600}
		if it.diskName == "" {
			continue
		}
		kept[it.diskName] = true
		if it.diskName != it.Name {
			if err := moveRoutes(before, after, store, it.diskName, it.Name); err != nil {
				return nil, err
			}
		}
	}
	for name := range items.loaded {
		if kept[name] {
			continue
		}
		// the ifroute file goes with a deleted configuration
		if err := moveRoutes(before, after, store, name, ""); err != nil {
			return nil, err
		}
	}

	if items.cfg.RoutesPath != "" {
		if data := items.routes.Bytes(); !bytes.Equal(data, items.routesBase) {
			before[items.cfg.RoutesPath] = fileState{data: items.routesDisk, mode: 0644}
			after[items.cfg.RoutesPath] = fileState{data: data, mode: 0644}
		}
	}
	if items.cfg.RulesPath != "" && items.rules.Modified() {
		before[items.cfg.RulesPath] = fileState{data: items.rulesDisk, mode: 0644}
		after[items.cfg.RulesPath] = fileState{data: items.rules.Bytes(), mode: 0644}
	}

	paths := make(map[string]bool)
	for p := range before {
		paths[p] = true
	}
	for p := range after {
		paths[p] = true
	}
	var changes []FileChange
	for p := range paths {
		b, hadBefore := before[p]
		a, hasAfter := after[p]
		if hadBefore && hasAfter && bytes.Equal(b.data, a.data) {
			continue
		}
		if !hadBefore && !hasAfter {
			continue
		}
		c := FileChange{Path: p, Device: a.device, Old: b.data, Mode: a.mode}
		if c.Device == "" {
			c.Device = b.device
		}
		if hasAfter {
			c.New = a.data
			if c.New == nil {
				c.New = []byte{}
			}
		}
		changes = append(changes, c)
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}

// moveRoutes records that ifroute-<from> (if it exists) becomes
// ifroute-<to>, with routes bound to from now bound to to. An empty to
// removes it.
func moveRoutes(before, after map[string]fileState, store *sysconfig.Store, from, to string) error {
	src := store.RoutePath(from)
	data, err := os.ReadFile(src)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return lcerrors.IO("failed to read "+src, err)
	}
	before[src] = fileState{device: from, data: data, mode: 0600}
	if to == "" {
		return nil
	}

	rf, err := sysconfig.ParseRoutes(bytes.NewReader(data))
	if err != nil {
		return lcerrors.Invalid("%s: %v", src, err)
	}
	if rf.RenameInterface(from, to) {
		data = rf.Bytes()
	}
	dst := store.RoutePath(to)
	if existing, err := os.ReadFile(dst); err == nil {
		before[dst] = fileState{device: to, data: existing, mode: 0600}
	}
	after[dst] = fileState{device: to, data: data, mode: 0600}
	return nil
}

// Commit validates the items and writes the planned changes: removals first,
// then writes. It returns the devices whose configuration changed. Files
// already written stay written when a later step fails.
func (items *Items) Commit(ctx context.Context) ([]string, error) {
	if err := items.Validate().Err(); err != nil {
		return nil, err
	}
	changes, err := items.Plan()
	if err != nil {
		return nil, err
	}

	for _, c := range changes {
		if !c.Removes() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := os.Remove(c.Path); err != nil && !os.IsNotExist(err) {
			return nil, lcerrors.IO("failed to remove "+c.Path, err)
		}
		items.log.Audit("remove", c.Path, map[string]any{"device": c.Device})
	}
	for _, c := range changes {
		if c.Removes() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := sysconfig.WriteFileAtomic(c.Path, c.New, c.Mode); err != nil {
			return nil, lcerrors.IO("failed to write "+c.Path, err)
		}
		items.log.Audit("write", c.Path, map[string]any{"device": c.Device})
	}

	touched := make(map[string]bool)
	for _, c := range changes {
		if c.Device != "" {
			touched[c.Device] = true
		}
	}
	devices := make([]string, 0, len(touched))
	for d := range touched {
		devices = append(devices, d)
	}
	sort.Strings(devices)

	if err := items.resetBaseline(); err != nil {
		return devices, err
	}
	return devices, nil
}

// resetBaseline makes the committed state the new on-disk reference.
func (items *Items) resetBaseline() error {
	items.loaded = make(map[string][]byte)
	for _, it := range items.items {
		it.modified = false
		if it.Config == nil {
			it.diskName = ""
			continue
		}
		it.diskName = it.Name
		items.loaded[it.Name] = it.Config.Bytes()
	}
	if data := items.routes.Bytes(); !bytes.Equal(data, items.routesBase) {
		items.routesBase = data
		items.routesDisk = data
	}
	if items.rules.Modified() {
		data := items.rules.Bytes()
		rs, err := udev.Parse(bytes.NewReader(data))
		if err != nil {
			return err
		}
		items.rules = rs
		items.rulesDisk = data
	}
	return nil
}
