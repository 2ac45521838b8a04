package tesira

import (
	"time"

	"github.com/enp6s0/dspgate/pkg/util"
)

// idlePollInterval bounds how often Run spins while the transport is down
// or has nothing queued, per spec §5 ("polling at >=100 Hz is acceptable").
const idlePollInterval = 10 * time.Millisecond

// subscriptionMatrix maps a block type to the logical kinds it subscribes
// to on startup (and on re-subscribe after reconnect), per spec §4.5.
var subscriptionMatrix = map[BlockType][]string{
	LevelControl: {"levels", "mutes"},
	MuteControl:  {"mutes"},
	DanteInput:   {"levels", "mutes"},
	DanteOutput:  {"levels", "mutes"},
	AudioOutput:  {"levels", "mutes"},
	UsbInput:     {"streaming", "connected"},
	UsbOutput:    {"streaming", "connected"},
}

// Subscriber owns the inbound byte stream once Discovery hands it off: it
// drains Transport bytes, decodes Frames, and applies Subscription frames to
// the Device model. Ok/Error frames are logged only (no synchronous
// request/response happens once the Subscriber is running).
type Subscriber struct {
	t      *Transport
	d      *Device
	buf    string
	exit   chan struct{}
	wasUp  bool
}

// NewSubscriber creates a Subscriber bound to t and d. Call Run to start the
// read loop; it blocks until Stop is called.
func NewSubscriber(t *Transport, d *Device) *Subscriber {
	return &Subscriber{t: t, d: d, exit: make(chan struct{})}
}

// Subscribe emits the initial subscribe commands for every supported block,
// per the type matrix in spec §4.5.
func (s *Subscriber) Subscribe() error {
	summaries, err := s.d.SupportedBlocks()
	if err != nil {
		return err
	}
	for _, sb := range summaries {
		id := sb.ID
		kinds, ok := subscriptionMatrix[sb.Type]
		if !ok {
			continue
		}
		for _, kind := range kinds {
			cmd, err := EncodeSubscribe(id, kind)
			if err != nil {
				util.WithField("block", id).Warnf("cannot encode subscribe for %s: %v", kind, err)
				continue
			}
			if err := s.t.send(cmd); err != nil {
				util.WithField("block", id).Warnf("subscribe send failed: %v", err)
			}
		}
	}
	return nil
}

// Run drains the Transport and applies incoming Frames until Stop is called;
// while the Transport is down it keeps polling. It polls at a high rate
// rather than blocking, matching the Transport's non-blocking recv contract.
func (s *Subscriber) Run() {
	s.wasUp = s.t.active()
	for {
		select {
		case <-s.exit:
			return
		default:
		}

		up := s.t.active()
		if up && !s.wasUp {
			// Reconnected after having been ready: re-emit subscriptions
			// without re-running Discovery (spec §9, recorded as a
			// deliberate design decision in DESIGN.md).
			if s.d.Ready() {
				if err := s.Subscribe(); err != nil {
					util.Logger.Warnf("re-subscribe after reconnect failed: %v", err)
				}
			}
		}
		s.wasUp = up

		if !up {
			time.Sleep(idlePollInterval)
			continue
		}

		if !s.t.recvReady() {
			time.Sleep(idlePollInterval)
			continue
		}
		chunk, err := s.t.recv()
		if err != nil {
			continue
		}
		s.buf += string(chunk)

		var frames []Frame
		frames, s.buf = ExtractFrames(s.buf)
		for _, f := range frames {
			s.apply(f)
		}
	}
}

// Stop signals Run to return.
func (s *Subscriber) Stop() {
	close(s.exit)
}

func (s *Subscriber) apply(f Frame) {
	switch f.Kind {
	case FrameOk:
		util.Logger.Debugf("ok: %v", f.Payload)
		return
	case FrameError:
		util.Logger.Warnf("device error: %s", f.Err)
		return
	}

	kind, ok := kindForTag(f.Tag)
	if !ok {
		util.Logger.Errorf("unknown subscription tag %q for block %q", f.Tag, f.BlockID)
		return
	}

	bt, ok := s.d.blockType(f.BlockID)
	if !ok {
		util.Logger.Errorf("subscription for unknown block %q", f.BlockID)
		return
	}

	if f.IsList {
		s.applyList(f.BlockID, bt, kind, f.ValueList)
		return
	}
	s.applyScalar(f.BlockID, bt, kind, f.Value)
}

func (s *Subscriber) applyList(blockID string, bt BlockType, kind string, values []Value) {
	idxs, ok := s.d.channelIndexes(blockID)
	if !ok || len(idxs) != len(values) {
		util.Logger.Errorf("subscription list length mismatch for block %q kind %q: got %d, want %d",
			blockID, kind, len(values), len(idxs))
		return
	}

	for i, idx := range idxs {
		v := values[i]
		switch kind {
		case "mutes":
			if bt.IsUSB() {
				continue
			}
			s.d.setChannelMuted(blockID, idx, v.AsBool())
		case "levels":
			if bt == MuteControl {
				continue
			}
			f, err := v.AsFloat()
			if err != nil {
				util.Logger.Warnf("level update for %s channel %d not numeric: %v", blockID, idx, err)
				continue
			}
			s.d.setChannelLevel(blockID, idx, f)
		default:
			util.Logger.Warnf("unexpected list kind %q for block %q", kind, blockID)
		}
	}
}

func (s *Subscriber) applyScalar(blockID string, bt BlockType, kind string, v Value) {
	if !bt.IsUSB() {
		util.Logger.Warnf("scalar subscription %q for non-USB block %q, ignored", kind, blockID)
		return
	}
	switch kind {
	case "streaming":
		s.d.setUSBFlag(blockID, true, v.AsBool())
	case "connected":
		s.d.setUSBFlag(blockID, false, v.AsBool())
	default:
		util.Logger.Warnf("unexpected scalar kind %q for USB block %q", kind, blockID)
	}
}
