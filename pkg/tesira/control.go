package tesira

import (
	"github.com/enp6s0/dspgate/pkg/util"
)

// Control is the higher-level mutation API (C6) layered over a Transport
// and Device: setMute, setLevel, setSourceSelect. Every operation requires
// the Device to be ready; calls do not block for device confirmation — the
// Subscriber observes the resulting state change via subscription.
type Control struct {
	t *Transport
	d *Device
}

// NewControl binds a Control API to a Transport and Device pair.
func NewControl(t *Transport, d *Device) *Control {
	return &Control{t: t, d: d}
}

var muteCapableTypes = map[BlockType]bool{
	LevelControl:   true,
	MuteControl:    true,
	DanteInput:     true,
	DanteOutput:    true,
	AudioOutput:    true,
	SourceSelector: true,
}

var levelCapableTypes = map[BlockType]bool{
	LevelControl: true,
	DanteInput:   true,
	DanteOutput:  true,
	AudioOutput:  true,
}

// targetChannels resolves channel 0 to "every existing channel"; any other
// value must exist on the block.
func targetChannels(b *Block, channel int) ([]int, error) {
	if channel == 0 {
		return append([]int(nil), b.order...), nil
	}
	if _, ok := b.Channels[channel]; !ok {
		return nil, util.NewNoSuchChannelError(b.ID, channel)
	}
	return []int{channel}, nil
}

// SetMute implements spec §4.6 setMute.
func (c *Control) SetMute(blockID string, channel int, value bool) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	b, err := c.d.Block(blockID)
	if err != nil {
		return err
	}
	if !muteCapableTypes[b.Type] {
		return util.NewUnsupportedOpError("setMute", blockID, string(b.Type)+" does not support mute")
	}
	chans, err := targetChannels(b, channel)
	if err != nil {
		return err
	}
	if !c.t.active() {
		return util.ErrTransportDown
	}
	for _, ch := range chans {
		if err := c.t.send(EncodeSetMute(blockID, ch, value)); err != nil {
			util.WithField("block", blockID).Warnf("setMute channel %d failed: %v", ch, err)
		}
	}
	return nil
}

// SetLevel implements spec §4.6 setLevel, including per-channel clamp
// checking: an out-of-range value is refused for that channel only (a
// warning, no command emitted), the rest of the batch still proceeds.
func (c *Control) SetLevel(blockID string, channel int, value float64) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	b, err := c.d.Block(blockID)
	if err != nil {
		return err
	}
	if !levelCapableTypes[b.Type] {
		return util.NewUnsupportedOpError("setLevel", blockID, string(b.Type)+" does not support level")
	}
	chans, err := targetChannels(b, channel)
	if err != nil {
		return err
	}
	if !c.t.active() {
		return util.ErrTransportDown
	}
	for _, ch := range chans {
		lvl := b.Channels[ch].Level
		if lvl == nil || value < lvl.Minimum || value > lvl.Maximum {
			util.WithField("block", blockID).Warnf("setLevel channel %d value %v out of range, skipped", ch, value)
			continue
		}
		if err := c.t.send(EncodeSetLevel(blockID, ch, value)); err != nil {
			util.WithField("block", blockID).Warnf("setLevel channel %d failed: %v", ch, err)
		}
	}
	return nil
}

// SetSourceSelect implements spec §4.6 setSourceSelect. The wire command is
// an open question (see DESIGN.md); this emits DSPgate's best-effort guess.
func (c *Control) SetSourceSelect(blockID, source string) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	b, err := c.d.Block(blockID)
	if err != nil {
		return err
	}
	if b.Type != SourceSelector {
		return util.NewUnsupportedOpError("setSourceSelect", blockID, string(b.Type)+" is not a SourceSelector")
	}
	if !c.t.active() {
		return util.ErrTransportDown
	}
	return c.t.send(EncodeSetSourceSelection(blockID, source))
}

// SetSourceLevel sets the gain of one source within a SourceSelector block,
// per spec §6's sources[idx].level grammar. SourceSelector sources carry no
// discovered min/max (Discovery never probes minLevel/maxLevel for them, see
// probeBlockAttributes), so unlike SetLevel this has no range to clamp
// against and sends the value through unconditionally.
func (c *Control) SetSourceLevel(blockID string, source int, value float64) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	b, err := c.d.Block(blockID)
	if err != nil {
		return err
	}
	if b.Type != SourceSelector {
		return util.NewUnsupportedOpError("setSourceLevel", blockID, string(b.Type)+" is not a SourceSelector")
	}
	if _, ok := b.Channels[source]; !ok {
		return util.NewNoSuchChannelError(b.ID, source)
	}
	if !c.t.active() {
		return util.ErrTransportDown
	}
	return c.t.send(EncodeSetSourceLevel(blockID, source, value))
}

func (c *Control) requireReady() error {
	if !c.d.Ready() {
		return util.ErrNotReady
	}
	return nil
}
