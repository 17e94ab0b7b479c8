package status

import (
	"context"
	"sync"

	"github.com/PowerDNS/simpleblob"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/PowerDNS/deltasnap/protocol"
	"github.com/PowerDNS/deltasnap/replicator"
)

type info struct {
	mu          sync.Mutex
	replicators []*replicator.Replicator
	st          simpleblob.Interface
}

var gi info

// Checkpoints lists the checkpoints of all registered replicators
func (i *info) Checkpoints(ctx context.Context) ([]protocol.NameInfo, error) {
	i.mu.Lock()
	st := i.st
	i.mu.Unlock()
	if st == nil {
		return nil, errors.New("no storage registered with status page")
	}
	var res []protocol.NameInfo
	for _, r := range i.list() {
		list, err := replicator.ListCheckpoints(ctx, st, r.Name())
		if err != nil {
			return nil, err
		}
		res = append(res, list...)
	}
	return res, nil
}

func (i *info) Replicators() []replicator.Info {
	return lo.Map(i.list(), func(r *replicator.Replicator, _ int) replicator.Info {
		return r.Info()
	})
}

func (i *info) list() []*replicator.Replicator {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]*replicator.Replicator(nil), i.replicators...)
}

// AddReplicator registers a Replicator with the status page
func AddReplicator(r *replicator.Replicator) {
	gi.mu.Lock()
	defer gi.mu.Unlock()
	gi.replicators = append(gi.replicators, r)
}

func RemoveReplicator(name string) {
	gi.mu.Lock()
	defer gi.mu.Unlock()
	gi.replicators = lo.Filter(gi.replicators, func(r *replicator.Replicator, _ int) bool {
		return r.Name() != name
	})
}

func SetStorage(st simpleblob.Interface) {
	gi.mu.Lock()
	defer gi.mu.Unlock()
	gi.st = st
}
