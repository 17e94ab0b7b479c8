// Package events contains the topics a Replicator publishes to.
package events

import (
	"time"

	"github.com/PowerDNS/deltasnap/protocol"
	"github.com/PowerDNS/deltasnap/utils/topics"
)

// New returns an initialized Events struct
func New() *Events {
	return &Events{
		TickDone:         topics.New[TickStats](),
		CheckpointStored: topics.New[CheckpointInfo](),
	}
}

// Events contains event topics that can be subscribed to.
type Events struct {
	// TickDone is triggered after every tick, including failed ones
	TickDone *topics.Topic[TickStats]

	// CheckpointStored is triggered when a checkpoint was stored successfully
	CheckpointStored *topics.Topic[CheckpointInfo]
}

// TickStats describes the outcome of a single replicator tick
type TickStats struct {
	Tick         uint64
	Objects      int // tracked objects
	Connections  int
	Frames       int // frames sent successfully
	FullFrames   int // part of Frames
	FailedFrames int
	Entries      int // entries in successful frames
	Bytes        int // size of successful frames
	Duration     time.Duration
}

type CheckpointInfo struct {
	NameInfo protocol.NameInfo
	Objects  int
	Size     int
}
