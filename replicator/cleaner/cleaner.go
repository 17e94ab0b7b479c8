// Package cleaner removes old checkpoints from storage.
package cleaner

import (
	"context"
	"slices"
	"time"

	"github.com/PowerDNS/simpleblob"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/PowerDNS/deltasnap/config"
	"github.com/PowerDNS/deltasnap/protocol"
	"github.com/PowerDNS/deltasnap/utils"
)

func New(name string, st simpleblob.Interface, cc config.Cleanup, logger logrus.FieldLogger) *Worker {
	if cc.Keep < 1 {
		cc.Keep = 1
	}
	return &Worker{
		st:               st,
		name:             name,
		prefix:           name + "__",
		l:                logger.WithField("component", "cleaner"),
		conf:             cc,
		ignoredFilenames: make(map[string]bool),
		firstSeen:        make(map[string]time.Time),
	}
}

// Worker periodically removes old checkpoints of one replicator name. It
// cleans the checkpoints of all instances, not just our own.
type Worker struct {
	st               simpleblob.Interface
	name             string
	prefix           string
	l                logrus.FieldLogger
	conf             config.Cleanup
	ignoredFilenames map[string]bool
	firstSeen        map[string]time.Time
}

// Stats describes a single cleaner run
type Stats struct {
	Total   int
	Cleaned int
	Failed  int
}

func (w *Worker) Run(ctx context.Context) error {
	if !w.conf.Enabled {
		<-ctx.Done()
		return context.Canceled
	}
	for {
		if _, err := w.RunOnce(ctx, time.Now()); err != nil {
			w.l.WithError(err).Warn("Clean run failed")
		}
		if err := utils.SleepContextPerturb(ctx, w.conf.Interval); err != nil {
			return err
		}
	}
}

// RunOnce performs a single cleanup, using now as the current time.
func (w *Worker) RunOnce(ctx context.Context, now time.Time) (Stats, error) {
	var stats Stats
	ls, err := w.st.List(ctx, w.prefix)
	metricListCalls.Inc()
	if err != nil {
		metricListFailed.Inc()
		return stats, err
	}

	var candidates []protocol.NameInfo
	seen := make(map[string]bool)
	for _, name := range ls.Names() {
		if w.ignoredFilenames[name] {
			continue
		}
		ni, err := protocol.ParseName(name)
		if err != nil {
			w.l.WithError(err).WithField("filename", name).
				Debug("Skipping invalid filename")
			w.ignoredFilenames[name] = true
			continue
		}
		candidates = append(candidates, ni)
		seen[name] = true
	}
	stats.Total = len(candidates)

	// Forget checkpoints that disappeared from the listing
	for name := range w.firstSeen {
		if !seen[name] {
			delete(w.firstSeen, name)
		}
	}

	// Newest first, so the first ones we see for an instance are the ones to keep
	slices.SortFunc(candidates, func(a, b protocol.NameInfo) int {
		return b.Timestamp.Compare(a.Timestamp)
	})

	// An instance is stale when its newest checkpoint is old, and another
	// instance has stored a newer one since.
	newestByInstance := make(map[string]time.Time)
	for _, ni := range candidates {
		if _, exists := newestByInstance[ni.InstanceID]; !exists {
			newestByInstance[ni.InstanceID] = ni.Timestamp
		}
	}
	stale := make(map[string]bool)
	if len(candidates) > 0 {
		newest := candidates[0].Timestamp
		for instance, ts := range newestByInstance {
			stale[instance] = now.Sub(ts) > w.conf.RemoveOldInstancesInterval &&
				newest.After(ts)
		}
	}

	// Checkpoints that are new to us could still be loaded by a peer. We only
	// track when we first saw them, the checkpoint time can be far in the past
	// due to delayed syncing between sites.
	recent := make(map[string]int) // protected checkpoints per instance
	candidates = lo.Filter(candidates, func(ni protocol.NameInfo, _ int) bool {
		first, exists := w.firstSeen[ni.FullName]
		if !exists {
			// Not counted as recent, so that the previous newest checkpoint
			// survives at least one more run.
			w.firstSeen[ni.FullName] = now
			return false
		}
		if now.Sub(first) <= w.conf.MustKeepInterval {
			recent[ni.InstanceID]++
			return false
		}
		return true
	})

	// Keep the newest Keep checkpoints of every instance that is not stale
	kept := make(map[string]int)
	reasons := make(map[string]string)
	candidates = lo.Filter(candidates, func(ni protocol.NameInfo, _ int) bool {
		switch {
		case stale[ni.InstanceID]:
			reasons[ni.FullName] = "stale instance"
			return true
		case kept[ni.InstanceID]+recent[ni.InstanceID] < w.conf.Keep:
			kept[ni.InstanceID]++
			return false
		default:
			reasons[ni.FullName] = "newer checkpoints"
			return true
		}
	})

	for _, ni := range candidates {
		reason := reasons[ni.FullName]
		l := w.l.WithField("checkpoint", ni.FullName).WithField("reason", reason)
		metricDeleteCalls.WithLabelValues(w.name, reason).Inc()
		if err := w.st.Delete(ctx, ni.FullName); err != nil {
			l.WithError(err).Warn("Could not delete old checkpoint")
			metricDeleteFailed.Inc()
			stats.Failed++
			continue
		}
		l.Debug("Cleaned old checkpoint")
		stats.Cleaned++
	}

	w.l.WithFields(logrus.Fields{
		"cleaned": stats.Cleaned,
		"failed":  stats.Failed,
		"total":   stats.Total,
	}).Debug("Cleaning stats")
	return stats, nil
}
