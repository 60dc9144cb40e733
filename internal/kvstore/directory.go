package kvstore

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/newrelic/agent-control/internal/acerrors"
)

// Directory is the host-variant Store: one file per key, laid out as
// <base>/<namespace>/<agentID>/<key>.yaml, matching the
// "<remote_dir>/fleet-data/<agent_id>/..." layout of spec §6 when base
// is rooted at the configured local_dir/remote_dir.
type Directory struct {
	base string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewDirectory builds a Directory-backed Store rooted at base. base
// need not exist yet: Set creates any missing directories on the way
// to the key's file, base included.
func NewDirectory(base string) *Directory {
	return &Directory{base: base, locks: map[string]*sync.Mutex{}}
}

func (d *Directory) path(ns Namespace, agentID, key string) string {
	return filepath.Join(d.base, string(ns), agentID, key+".yaml")
}

func (d *Directory) keyLock(ns Namespace, agentID, key string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := string(ns) + "/" + agentID + "/" + key
	l, ok := d.locks[k]
	if !ok {
		l = &sync.Mutex{}
		d.locks[k] = l
	}
	return l
}

func (d *Directory) Get(_ context.Context, ns Namespace, agentID, key string) ([]byte, bool, error) {
	l := d.keyLock(ns, agentID, key)
	l.Lock()
	defer l.Unlock()

	b, err := os.ReadFile(d.path(ns, agentID, key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, acerrors.New(acerrors.KindLoad, "kvstore.Directory.Get", err)
	}
	return b, true, nil
}

func (d *Directory) Set(_ context.Context, ns Namespace, agentID, key string, value []byte) error {
	l := d.keyLock(ns, agentID, key)
	l.Lock()
	defer l.Unlock()

	p := d.path(ns, agentID, key)
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return acerrors.New(acerrors.KindStore, "kvstore.Directory.Set", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, value, 0o640); err != nil {
		return acerrors.New(acerrors.KindStore, "kvstore.Directory.Set", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return acerrors.New(acerrors.KindStore, "kvstore.Directory.Set", err)
	}
	return nil
}

func (d *Directory) Delete(_ context.Context, ns Namespace, agentID, key string) error {
	l := d.keyLock(ns, agentID, key)
	l.Lock()
	defer l.Unlock()

	err := os.Remove(d.path(ns, agentID, key))
	if err != nil && !os.IsNotExist(err) {
		return acerrors.New(acerrors.KindDelete, "kvstore.Directory.Delete", err)
	}
	return nil
}
