package commands

import (
	"context"
	"math/rand"
	"os"
	"time"

	"github.com/PowerDNS/simpleblob"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/wojas/go-healthz"
	"golang.org/x/sync/errgroup"

	"github.com/PowerDNS/deltasnap/replicator"
	"github.com/PowerDNS/deltasnap/replicator/cleaner"
	"github.com/PowerDNS/deltasnap/sim"
	"github.com/PowerDNS/deltasnap/snapshot"
	"github.com/PowerDNS/deltasnap/status"
	"github.com/PowerDNS/deltasnap/status/healthtracker"
	"github.com/PowerDNS/deltasnap/status/starttracker"
	"github.com/PowerDNS/deltasnap/utils"
)

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().Int("ticks", 0, "Number of simulation steps, overrides simulation.ticks")
	simulateCmd.Flags().Int("objects", 0, "Number of objects, overrides simulation.objects")
	simulateCmd.Flags().Int("connections", 0, "Number of mirrors, overrides simulation.connections")
	simulateCmd.Flags().Float64("loss-rate", 0, "Fraction of dropped frames, overrides simulation.loss_rate")
	simulateCmd.Flags().Int64("seed", 0, "Random seed, overrides simulation.seed")
}

var simulateCmd = &cobra.Command{
	Use:          "simulate",
	Short:        "Replicate a simulated world to in-process mirrors",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applySimulationFlags(cmd); err != nil {
			return err
		}
		return runSimulate(rootCtx)
	},
}

func applySimulationFlags(cmd *cobra.Command) error {
	f := cmd.Flags()
	var err error
	sc := &conf.Simulation
	if f.Changed("ticks") {
		if sc.Ticks, err = f.GetInt("ticks"); err != nil {
			return err
		}
	}
	if f.Changed("objects") {
		if sc.Objects, err = f.GetInt("objects"); err != nil {
			return err
		}
	}
	if f.Changed("connections") {
		if sc.Connections, err = f.GetInt("connections"); err != nil {
			return err
		}
	}
	if f.Changed("loss-rate") {
		if sc.LossRate, err = f.GetFloat64("loss-rate"); err != nil {
			return err
		}
	}
	if f.Changed("seed") {
		if sc.Seed, err = f.GetInt64("seed"); err != nil {
			return err
		}
	}
	return conf.Check()
}

func runSimulate(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rc := conf.Replicator
	sc := conf.Simulation
	instance := conf.InstanceName()
	l := logrus.WithField("replicator", rc.Name)

	var st simpleblob.Interface
	if conf.Storage.Type != "" {
		var err error
		st, err = simpleblob.GetBackend(ctx, conf.Storage.Type, conf.Storage.Options)
		if err != nil {
			return err
		}
		l.WithField("storage_type", conf.Storage.Type).Info("Storage backend initialised")
		status.SetStorage(st)
	}
	checkpoints := st != nil && rc.CheckpointInterval > 0

	tickHealth := healthtracker.New(conf.Health.Tick, rc.Name+"_tick", "tick")
	defer tickHealth.Close()
	opt := replicator.Options{
		Logger:          logrus.StandardLogger(),
		SendConcurrency: rc.SendConcurrency,
		Health:          tickHealth,
		Start:           starttracker.New(conf.Health.Start, rc.Name, checkpoints),
	}
	if checkpoints {
		opt.CheckpointHealth = healthtracker.New(conf.Health.Checkpoint, rc.Name+"_checkpoint", "checkpoint")
		defer opt.CheckpointHealth.Close()
	}
	r := replicator.New(rc.Name, opt)
	status.AddReplicator(r)
	defer status.RemoveReplicator(rc.Name)

	rng := rand.New(rand.NewSource(sc.Seed))
	world := sim.New(sc, rng)
	world.Track(r)

	mirrors := make([]*replicator.Mirror, sc.Connections)
	sinks := make([]*sim.LossySink, sc.Connections)
	for i := range mirrors {
		mirrors[i] = replicator.NewMirror()
		sinks[i] = sim.NewLossySink(mirrors[i], sc.LossRate, sc.Seed+int64(i)+1)
		r.Connect(snapshot.ConnID(i+1), sinks[i])
	}

	healthz.AddBuildInfo()
	if hostname, err := os.Hostname(); err == nil {
		healthz.SetMeta("hostname", hostname)
	}
	healthz.SetMeta("version", version)
	healthz.SetMeta("instance", instance)
	status.StartHTTPServer(conf)

	// Background workers run until the simulation is done
	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()
	eg, bgCtx := errgroup.WithContext(bgCtx)
	eg.Go(func() error {
		return r.Run(bgCtx, rc.TickInterval)
	})
	if checkpoints {
		eg.Go(func() error {
			return r.RunCheckpoints(bgCtx, st, instance, rc.CheckpointInterval)
		})
	}
	if st != nil && rc.Cleanup.Enabled {
		cl := cleaner.New(rc.Name, st, rc.Cleanup, logrus.StandardLogger())
		eg.Go(func() error {
			return cl.Run(bgCtx)
		})
	}

	l.WithFields(logrus.Fields{
		"objects":     sc.Objects,
		"connections": sc.Connections,
		"ticks":       sc.Ticks,
		"loss_rate":   sc.LossRate,
	}).Info("Simulation running")

	simErr := stepWorld(bgCtx, world, r, rng, rc.TickInterval, sc.Ticks)
	stopBackground()
	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if simErr != nil && !errors.Is(simErr, context.Canceled) {
		return simErr
	}
	if utils.IsCanceled(ctx) {
		return ctx.Err()
	}

	// Catch up over a reliable network, after which all mirrors must match
	for _, s := range sinks {
		s.SetLossRate(0)
	}
	if _, err := r.Tick(ctx); err != nil {
		return errors.Wrap(err, "final tick")
	}
	if checkpoints {
		if _, err := r.Checkpoint(ctx, st, instance); err != nil {
			return errors.Wrap(err, "final checkpoint")
		}
	}
	return verifyMirrors(l, r, mirrors, sinks)
}

// stepWorld changes and publishes the world once per interval. With ticks set
// to 0 it runs until the context is closed.
func stepWorld(ctx context.Context, w *sim.World, r *replicator.Replicator, rng *rand.Rand, interval time.Duration, ticks int) error {
	for i := 1; ticks == 0 || i <= ticks; i++ {
		t0 := time.Now()
		changed := w.Step(rng)
		ch, err := w.Publish(r)
		if err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"step":    i,
			"changed": changed,
			"changes": ch.String(),
		}).Trace("World step")

		wait := interval - time.Since(t0)
		if wait < 0 {
			wait = 0
		}
		if err := utils.SleepContext(ctx, wait); err != nil {
			return err
		}
	}
	return nil
}

func verifyMirrors(l logrus.FieldLogger, r *replicator.Replicator, mirrors []*replicator.Mirror, sinks []*sim.LossySink) error {
	info := r.Info()
	failed := 0
	for i, m := range mirrors {
		for _, id := range r.Objects() {
			err := r.Update(id, func(st *snapshot.State) error {
				return m.Verify(st)
			})
			if err != nil {
				failed++
				l.WithError(err).WithField("conn", i+1).Error("Mirror out of sync")
			}
		}
		l.WithFields(logrus.Fields{
			"conn":    i + 1,
			"frames":  m.Frames(),
			"dropped": sinks[i].Dropped(),
		}).Info("Mirror done")
	}
	l.WithFields(logrus.Fields{
		"objects": info.Objects,
		"entries": info.Entries,
		"size":    info.Size.HumanReadable(),
	}).Info("Simulation done")
	if failed > 0 {
		return errors.Errorf("%d mirrored objects out of sync", failed)
	}
	return nil
}
