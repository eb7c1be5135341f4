// Package segmenter turns the stream of captured frames into sessions: a
// contiguous run of frames from one device becomes one session, closed by
// an idle gap or a maximum-window timer. Tick does not close a session when
// the device name changes.
package segmenter

import (
	"github.com/deletexiumu/screen-analyzer/db"
	"github.com/deletexiumu/screen-analyzer/log"
	"github.com/deletexiumu/screen-analyzer/models"
)

var logger = log.GetLogger("SEGMENTER")

// Config holds the segmentation thresholds. MaxSessionMinutes is a
// dedicated ceiling independent of the analysis cadence (summary_interval
// governs how often analysis runs, not how long a session is allowed to
// grow).
type Config struct {
	IdleGapSeconds    int
	MaxSessionMinutes int
	MinSessionSeconds int // sessions shorter than this close as too_short
}

// DefaultConfig mirrors the out-of-box thresholds: a 5 minute idle gap
// closes a session, a 15 minute window caps its length, and anything
// shorter than 15 minutes closes as too_short.
func DefaultConfig() Config {
	return Config{
		IdleGapSeconds:    300,
		MaxSessionMinutes: 15,
		MinSessionSeconds: 900,
	}
}

// Segmenter walks unbound frames and assigns them to sessions.
type Segmenter struct {
	cfg Config
}

func New(cfg Config) *Segmenter {
	return &Segmenter{cfg: cfg}
}

// ApplyConfig replaces the segmentation thresholds. It takes a
// segmenter.Config rather than a config.ConfigValue, so it is not a
// config.Subscriber.
func (s *Segmenter) ApplyConfig(cfg Config) {
	s.cfg = cfg
}

// Tick processes every frame not yet bound to a session, in capture order,
// opening, extending, and closing sessions as it goes. It is meant to be
// called by the scheduler's segmentation job.
func (s *Segmenter) Tick(deviceName string, deviceType models.DeviceType) error {
	frames, err := db.ListUnboundFrames(500)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return nil
	}

	open, err := db.ListOpenSession(deviceName)
	if err != nil {
		return err
	}

	var pending []int64
	flushPending := func(sessionID, lastTs int64, frameCount int) error {
		if len(pending) == 0 {
			return nil
		}
		if err := db.BindFramesToSession(pending, sessionID); err != nil {
			return err
		}
		pending = pending[:0]
		return db.ExtendSession(sessionID, lastTs, frameCount)
	}

	for _, f := range frames {
		if open == nil {
			id, err := db.OpenSession(f.TimestampMs, deviceName, deviceType)
			if err != nil {
				return err
			}
			open, err = db.GetSession(id)
			if err != nil {
				return err
			}
			logger.Info().Int64("session_id", id).Str("device", deviceName).Msg("opened session")
		} else if gapSeconds := (f.TimestampMs - open.EndTimeMs) / 1000; open.FrameCount > 0 && gapSeconds > int64(s.cfg.IdleGapSeconds) {
			// Idle gap: f starts a fresh session; the open one closes
			// without it, since f isn't part of the same contiguous run.
			if err := flushPending(open.ID, open.EndTimeMs, open.FrameCount); err != nil {
				return err
			}
			if err := s.closeSession(open); err != nil {
				return err
			}

			id, err := db.OpenSession(f.TimestampMs, deviceName, deviceType)
			if err != nil {
				return err
			}
			open, err = db.GetSession(id)
			if err != nil {
				return err
			}
			logger.Info().Int64("session_id", id).Msg("opened session after idle gap")
		}

		pending = append(pending, f.ID)
		open.EndTimeMs = f.TimestampMs
		open.FrameCount++

		// Max-window close binds the triggering frame into the session it
		// completes rather than excluding it: a full window's worth of frames
		// must produce a full-length session, not one capture interval short.
		if windowMinutes := (open.EndTimeMs - open.StartTimeMs) / 60000; windowMinutes >= int64(s.cfg.MaxSessionMinutes) {
			if err := flushPending(open.ID, open.EndTimeMs, open.FrameCount); err != nil {
				return err
			}
			if err := s.closeSession(open); err != nil {
				return err
			}
			open = nil
		}
	}

	if open == nil {
		return nil
	}
	return flushPending(open.ID, open.EndTimeMs, open.FrameCount)
}

// Flush force-closes any currently-open session for a device, called at
// shutdown so the last partial session isn't left dangling forever.
func (s *Segmenter) Flush(deviceName string) error {
	open, err := db.ListOpenSession(deviceName)
	if err != nil || open == nil {
		return err
	}
	return s.closeSession(open)
}

// ForceClose closes a device's open session immediately regardless of
// idle/window thresholds; it is the same operation as Flush.
func (s *Segmenter) ForceClose(deviceName string) error {
	return s.Flush(deviceName)
}

func (s *Segmenter) closeSession(sess *models.Session) error {
	durationSeconds := (sess.EndTimeMs - sess.StartTimeMs) / 1000
	state := models.AnalysisClosed
	if durationSeconds < int64(s.cfg.MinSessionSeconds) {
		state = models.AnalysisTooShort
	}
	logger.Info().Int64("session_id", sess.ID).Str("state", string(state)).Msg("closed session")
	return db.CloseSession(sess.ID, state)
}
