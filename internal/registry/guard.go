package registry

import (
	"fmt"

	"codeberg.org/snonux/cardforge/internal/provider"
)

// guardedData enforces a DataSpec on every call to the wrapped provider
type guardedData struct {
	spec  *DataSpec
	inner provider.DataProvider
}

var (
	_ provider.DataProvider = (*guardedData)(nil)
	_ provider.Backuper     = (*guardedData)(nil)
)

func (g *guardedData) checkScope(id string) error {
	if !g.spec.Manages(id) {
		return &ScopeError{Provider: g.spec.Name, ID: id, Managed: g.spec.ManagedFiles}
	}
	return nil
}

func (g *guardedData) checkWrite(op, id string) error {
	if g.spec.ReadOnly {
		return &PermissionError{Provider: g.spec.Name, Op: op, ID: id}
	}
	return g.checkScope(id)
}

func (g *guardedData) Load(id string) (provider.Document, error) {
	if err := g.checkScope(id); err != nil {
		return nil, err
	}
	return g.inner.Load(id)
}

func (g *guardedData) Save(id string, doc provider.Document) error {
	if err := g.checkWrite("save", id); err != nil {
		return err
	}
	return g.inner.Save(id, doc)
}

func (g *guardedData) Exists(id string) (bool, error) {
	if err := g.checkScope(id); err != nil {
		return false, err
	}
	return g.inner.Exists(id)
}

// List hides identifiers outside the managed files
func (g *guardedData) List() ([]string, error) {
	ids, err := g.inner.List()
	if err != nil || !g.spec.Restricted() {
		return ids, err
	}
	visible := make([]string, 0, len(ids))
	for _, id := range ids {
		if g.spec.Manages(id) {
			visible = append(visible, id)
		}
	}
	return visible, nil
}

func (g *guardedData) Backup(id string) (string, error) {
	if err := g.checkWrite("backup", id); err != nil {
		return "", err
	}
	b, ok := g.inner.(provider.Backuper)
	if !ok {
		return "", fmt.Errorf("data provider %q does not support backups", g.spec.Name)
	}
	return b.Backup(id)
}
