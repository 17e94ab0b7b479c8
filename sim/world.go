// Package sim implements a synthetic game world that produces realistic
// update patterns for a replicator.
package sim

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/PowerDNS/deltasnap/config"
	"github.com/PowerDNS/deltasnap/replicator"
	"github.com/PowerDNS/deltasnap/snapshot"
	"github.com/PowerDNS/deltasnap/valuecache"
)

// Fixed slots of every object. Counter slots follow after SlotCounters.
const (
	SlotPosX snapshot.Slot = iota
	SlotPosY
	SlotPosZ
	SlotHealth
	SlotName
	SlotOwner
	SlotCounters
)

// Object is a single simulated entity
type Object struct {
	ID       snapshot.ObjectID
	UUID     uuid.UUID
	Parent   uuid.UUID
	Parented bool
	X, Y, Z  float32
	Health   int32
	Name     string
	Owner    uuid.UUID
	Counters []uint32

	cache *valuecache.Cache
}

// World is a set of objects that change every Step
type World struct {
	Objects []*Object
	conf    config.Simulation
}

// Changes counts the effect of a Publish on the tracked states
type Changes struct {
	Added     int
	Updated   int
	Unchanged int
}

func (c Changes) String() string {
	return fmt.Sprintf("added=%d updated=%d unchanged=%d", c.Added, c.Updated, c.Unchanged)
}

// New creates a world. All randomness comes from rng, so the same seed
// produces the same world.
func New(c config.Simulation, rng *rand.Rand) *World {
	w := &World{conf: c}
	for i := 0; i < c.Objects; i++ {
		o := &Object{
			ID:       snapshot.ObjectID(i + 1),
			UUID:     newUUID(rng),
			X:        rng.Float32() * 1000,
			Y:        rng.Float32() * 1000,
			Health:   100,
			Name:     fmt.Sprintf("obj-%d", i+1),
			Owner:    newUUID(rng),
			Counters: make([]uint32, max(0, c.SlotsPerObject-int(SlotCounters))),
			cache:    valuecache.New(),
		}
		w.Objects = append(w.Objects, o)
	}
	return w
}

func newUUID(rng *rand.Rand) uuid.UUID {
	id, err := uuid.NewRandomFromReader(rng)
	if err != nil {
		panic(err) // rand.Rand.Read never fails
	}
	return id
}

// Track creates a State for every object and tracks it with the replicator
func (w *World) Track(r *replicator.Replicator) {
	for _, o := range w.Objects {
		r.Track(snapshot.NewState(o.ID))
	}
}

// Step changes about ChangeFraction of all fields and reparents about
// ReparentChance of all objects. It returns the number of changed fields.
func (w *World) Step(rng *rand.Rand) int {
	changed := 0
	maybe := func() bool {
		if rng.Float64() < w.conf.ChangeFraction {
			changed++
			return true
		}
		return false
	}
	for _, o := range w.Objects {
		if maybe() {
			o.X += rng.Float32()*2 - 1
		}
		if maybe() {
			o.Y += rng.Float32()*2 - 1
		}
		if maybe() {
			o.Z += rng.Float32()*2 - 1
		}
		if maybe() {
			o.Health = max(0, min(100, o.Health+int32(rng.Intn(21)-10)))
		}
		if maybe() {
			o.Name = fmt.Sprintf("obj-%d-%d", o.ID, rng.Intn(1000))
		}
		for i := range o.Counters {
			if maybe() {
				o.Counters[i]++
			}
		}
		if len(w.Objects) > 1 && rng.Float64() < w.conf.ReparentChance {
			changed++
			p := w.Objects[rng.Intn(len(w.Objects))]
			if p == o {
				o.Parented = false // back to the root
			} else {
				o.Parent = p.UUID
				o.Parented = true
			}
		}
	}
	return changed
}

// Publish writes the current value of every field to the tracked states.
// Positions are relative to the parent, so they are salted with it.
func (w *World) Publish(r *replicator.Replicator) (Changes, error) {
	var c Changes
	for _, o := range w.Objects {
		err := r.Update(o.ID, func(st *snapshot.State) error {
			if o.Parented {
				st.SetParentID(o.Parent)
			} else {
				st.ClearParentID()
			}
			fields := []struct {
				slot   snapshot.Slot
				value  any
				salted bool
			}{
				{SlotPosX, o.X, true},
				{SlotPosY, o.Y, true},
				{SlotPosZ, o.Z, true},
				{SlotHealth, o.Health, false},
				{SlotName, o.Name, false},
				{SlotOwner, o.Owner, false},
			}
			for _, f := range fields {
				ch, err := st.AddCached(o.cache, f.slot, f.value, f.salted)
				if err != nil {
					return err
				}
				c.count(ch)
			}
			for i, v := range o.Counters {
				ch, err := st.AddCached(o.cache, SlotCounters+snapshot.Slot(i), v, false)
				if err != nil {
					return err
				}
				c.count(ch)
			}
			return nil
		})
		if err != nil {
			return c, errors.Wrapf(err, "publish object %d", o.ID)
		}
	}
	return c, nil
}

func (c *Changes) count(ch snapshot.Change) {
	switch ch {
	case snapshot.Added:
		c.Added++
	case snapshot.Updated:
		c.Updated++
	default:
		c.Unchanged++
	}
}
