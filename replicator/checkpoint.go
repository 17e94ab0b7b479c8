package replicator

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"time"

	"github.com/PowerDNS/simpleblob"
	"github.com/sirupsen/logrus"

	"github.com/PowerDNS/deltasnap/protocol"
	"github.com/PowerDNS/deltasnap/replicator/events"
	"github.com/PowerDNS/deltasnap/utils"
)

// CheckpointData returns a full frame for every tracked object. It does not
// modify any State, the SnapshotID in the frames is the last one sent.
func (r *Replicator) CheckpointData(instance string, ts time.Time) *protocol.Checkpoint {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := &protocol.Checkpoint{
		FormatVersion: protocol.CurrentFormatVersion,
		CompatVersion: protocol.WriteCompatFormatVersion,
		TimestampNano: uint64(ts.UnixNano()),
		Instance:      instance,
		Frames:        make([]protocol.Frame, 0, len(r.objects)),
	}
	for _, id := range r.objectIDs() {
		st := r.objects[id]
		f := protocol.Frame{
			ObjectID:   uint32(id),
			SnapshotID: st.SnapshotID,
			Version:    st.Version,
			Full:       true,
		}
		if pid, ok := st.ParentID(); ok {
			f.ParentID = &pid
		}
		for _, e := range st.Entries() {
			f.Entries = append(f.Entries, protocol.SlotValue{
				Slot:  uint32(e.Slot()),
				Value: bytes.Clone(e.Value()), // marshaled after we unlock
				Hash:  e.Hash(),
			})
		}
		cp.Frames = append(cp.Frames, f)
	}
	return cp
}

// Checkpoint stores a compressed checkpoint of all objects and returns its
// blob name.
func (r *Replicator) Checkpoint(ctx context.Context, st simpleblob.Interface, instance string) (string, error) {
	t0 := time.Now()
	cp := r.CheckpointData(instance, t0)
	tCollected := time.Now()

	data, dds, err := protocol.DumpData(cp)
	if err != nil {
		return "", err
	}

	name := protocol.Name(r.name, instance, t0)
	if err := st.Store(ctx, name, data); err != nil {
		metricCheckpointsFailed.WithLabelValues(r.name).Inc()
		if r.opt.CheckpointHealth != nil {
			r.opt.CheckpointHealth.AddFailure(err)
		}
		return "", err
	}
	tStored := time.Now()
	if r.opt.CheckpointHealth != nil {
		r.opt.CheckpointHealth.AddSuccess()
	}
	if r.opt.Start != nil {
		r.opt.Start.SetPassedInitialCheckpoint()
	}
	metricCheckpointsStored.WithLabelValues(r.name).Inc()
	metricCheckpointLastSize.WithLabelValues(r.name).Set(float64(len(data)))
	metricCheckpointLastTimestamp.WithLabelValues(r.name).Set(float64(t0.UnixNano()) / 1e9)

	r.l.WithFields(logrus.Fields{
		"time_collect":    utils.TimeDiff(tCollected, t0),
		"time_compress":   dds.TCompressed.Round(time.Millisecond),
		"time_store":      utils.TimeDiff(tStored, tCollected),
		"objects":         len(cp.Frames),
		"protobuf_size":   dds.ProtobufSize.HumanReadable(),
		"checkpoint_size": dds.CompressedSize.HumanReadable(),
		"checkpoint_name": name,
	}).Info("Stored checkpoint")

	ni, err := protocol.ParseName(name)
	if err == nil {
		_ = r.opt.Events.CheckpointStored.PublishContext(ctx, events.CheckpointInfo{
			NameInfo: ni,
			Objects:  len(cp.Frames),
			Size:     len(data),
		})
	}
	return name, nil
}

// RunCheckpoints stores a checkpoint every interval until the context is
// closed. Failures are logged and retried on the next interval.
func (r *Replicator) RunCheckpoints(ctx context.Context, st simpleblob.Interface, instance string, interval time.Duration) error {
	for {
		if _, err := r.Checkpoint(ctx, st, instance); err != nil {
			if utils.IsCanceled(ctx) {
				return ctx.Err()
			}
			r.l.WithError(err).Warn("Checkpoint store failed, will retry")
		}
		if err := utils.SleepContextPerturb(ctx, interval); err != nil {
			return err
		}
	}
}

// ListCheckpoints returns the checkpoints stored for a replicator name,
// oldest first. Blobs with other names are ignored.
func ListCheckpoints(ctx context.Context, st simpleblob.Interface, replicatorName string) ([]protocol.NameInfo, error) {
	prefix := ""
	if replicatorName != "" {
		prefix = replicatorName + "__"
	}
	ls, err := st.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var res []protocol.NameInfo
	for _, name := range ls.Names() {
		if !strings.HasSuffix(name, "."+protocol.Extension) {
			continue
		}
		ni, err := protocol.ParseName(name)
		if err != nil {
			continue
		}
		res = append(res, ni)
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].Timestamp.Before(res[j].Timestamp)
	})
	return res, nil
}

// LoadCheckpoint loads and decodes a stored checkpoint
func LoadCheckpoint(ctx context.Context, st simpleblob.Interface, name string) (*protocol.Checkpoint, error) {
	data, err := st.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	return protocol.LoadData(data)
}
