package link

import "sync/atomic"

// Stats is a point-in-time snapshot of link activity counters.
type Stats struct {
	FramesSent     uint64
	FramesReceived uint64
	FramesDropped  uint64
	Connects       uint64
	Disconnects    uint64
	Reconnects     uint64
}

// stats holds the live counters. Updated lock-free from the transport
// callback path and the write path.
type stats struct {
	framesSent     atomic.Uint64
	framesReceived atomic.Uint64
	framesDropped  atomic.Uint64
	connects       atomic.Uint64
	disconnects    atomic.Uint64
	reconnects     atomic.Uint64
}

func (s *stats) snapshot() Stats {
	return Stats{
		FramesSent:     s.framesSent.Load(),
		FramesReceived: s.framesReceived.Load(),
		FramesDropped:  s.framesDropped.Load(),
		Connects:       s.connects.Load(),
		Disconnects:    s.disconnects.Load(),
		Reconnects:     s.reconnects.Load(),
	}
}
