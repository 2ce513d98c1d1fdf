package session

import (
	"context"
	"time"
)

// Run drives the session at the configured tick rate. Input arrives
// asynchronously on the channels, is buffered here, and is drained exactly
// once per tick: no system ever observes a gesture update mid-step.
func (s *Session) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(s.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingFrames []FrameEnvelope
	var pendingControl []ControlEnvelope

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case req := <-s.join:
			s.handleJoin(req)
		case id := <-s.leave:
			s.handleLeave(id)
		case env := <-s.frames:
			pendingFrames = append(pendingFrames, env)
		case env := <-s.control:
			pendingControl = append(pendingControl, env)
		case <-ticker.C:
			s.step(pendingFrames, pendingControl)
			pendingFrames = pendingFrames[:0]
			pendingControl = pendingControl[:0]
		}
	}
}

func (s *Session) Stop() { close(s.stop) }

// StepOnce advances the session by a single tick with the given buffered
// input, using the same ordering as Run. For tests and deterministic replay.
func (s *Session) StepOnce(frames []FrameEnvelope, controls []ControlEnvelope) uint64 {
	s.step(frames, controls)
	return s.tick.Load()
}

// step is one synchronous mutation window: controls first, then the
// controller's latest frame, then housekeeping, then the event flush.
func (s *Session) step(frames []FrameEnvelope, controls []ControlEnvelope) {
	tick := s.tick.Add(1)

	for _, env := range controls {
		s.applyControl(env)
	}

	// The last frame from the controller wins; stale frames from earlier in
	// the buffer are superseded, and every system below sees one consistent
	// gesture value for the whole tick.
	if f, ok := latestControllerFrame(frames, s.controllerID); ok {
		s.applyFrame(f)
	}

	if s.snapshotSink != nil && s.cfg.SnapshotEveryTicks > 0 && tick%uint64(s.cfg.SnapshotEveryTicks) == 0 {
		select {
		case s.snapshotSink <- s.Export():
		default:
			if s.logger != nil {
				s.logger.Printf("session %s: snapshot sink busy, skipping tick %d", s.cfg.DocID, tick)
			}
		}
	}

	s.flushEvents()
}

func latestControllerFrame(frames []FrameEnvelope, controllerID string) (FrameEnvelope, bool) {
	if controllerID == "" {
		return FrameEnvelope{}, false
	}
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].ClientID == controllerID {
			return frames[i], true
		}
	}
	return FrameEnvelope{}, false
}
