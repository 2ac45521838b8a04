package tesira

import (
	"sort"
	"sync"

	"github.com/enp6s0/dspgate/pkg/util"
)

// BlockType enumerates the signal-graph node kinds Discovery recognises.
type BlockType string

const (
	LevelControl   BlockType = "LevelControl"
	MuteControl    BlockType = "MuteControl"
	DanteInput     BlockType = "DanteInput"
	DanteOutput    BlockType = "DanteOutput"
	UsbInput       BlockType = "UsbInput"
	UsbOutput      BlockType = "UsbOutput"
	AudioOutput    BlockType = "AudioOutput"
	SourceSelector BlockType = "SourceSelector"
	Unsupported    BlockType = "Unsupported"
)

// HasGain reports whether blocks of this type carry a Channel.Level.
func (t BlockType) HasGain() bool {
	switch t {
	case LevelControl, DanteInput, DanteOutput, AudioOutput:
		return true
	default:
		return false
	}
}

// HasMute reports whether blocks of this type carry a Channel.Muted.
func (t BlockType) HasMute() bool {
	switch t {
	case LevelControl, MuteControl, DanteInput, DanteOutput, AudioOutput:
		return true
	default:
		return false
	}
}

// IsUSB reports whether this type is one of the two USB block kinds.
func (t BlockType) IsUSB() bool {
	return t == UsbInput || t == UsbOutput
}

// SupportsMuteOp reports whether setMute is valid for this type (spec §4.6).
func (t BlockType) SupportsMuteOp() bool {
	switch t {
	case LevelControl, MuteControl, DanteInput, DanteOutput, AudioOutput, SourceSelector:
		return true
	default:
		return false
	}
}

// SupportsLevelOp reports whether setLevel is valid for this type (spec §4.6).
func (t BlockType) SupportsLevelOp() bool {
	switch t {
	case LevelControl, DanteInput, DanteOutput, AudioOutput:
		return true
	default:
		return false
	}
}

// Level holds a channel's current/min/max gain, in device units (typically dB).
type Level struct {
	Current float64 `json:"current"`
	Minimum float64 `json:"minimum"`
	Maximum float64 `json:"maximum"`
}

// USBStatus holds the connected/streaming flags carried by USB blocks.
type USBStatus struct {
	Streaming bool `json:"streaming"`
	Connected bool `json:"connected"`
}

// Channel is one 1-indexed audio lane within a Block.
type Channel struct {
	Idx   int    `json:"idx"`
	Label string `json:"label"`
	Muted *bool  `json:"muted,omitempty"`
	Level *Level `json:"level,omitempty"`
}

// Block is one node in the device's signal-processing graph.
type Block struct {
	ID        string         `json:"id"`
	Type      BlockType      `json:"type"`
	Supported bool           `json:"supported"`
	Ganged    bool           `json:"ganged,omitempty"`
	USB       *USBStatus     `json:"usb,omitempty"`
	Channels  map[int]*Channel `json:"channels,omitempty"`

	// order preserves 1..N iteration without depending on map order.
	order []int
}

// SortedChannels returns this block's channels ordered by index.
func (b *Block) SortedChannels() []*Channel {
	out := make([]*Channel, 0, len(b.order))
	for _, idx := range b.order {
		out = append(out, b.Channels[idx])
	}
	return out
}

// Device is the singleton in-memory representation of one DSP appliance.
type Device struct {
	mu sync.RWMutex

	hostname string
	firmware string
	aliases  []string

	blockOrder []string
	blocks     map[string]*Block

	ready bool
}

// NewDevice creates an empty, not-ready Device. Discovery (or a cache load)
// populates it before ready flips true.
func NewDevice() *Device {
	return &Device{blocks: make(map[string]*Block)}
}

// ErrNotReady is returned by any accessor gated on Discovery completion.
var ErrNotReady = util.ErrNotReady

func (d *Device) requireReady() error {
	if !d.ready {
		return ErrNotReady
	}
	return nil
}

// Ready reports whether Discovery has completed. Once true it never reverts.
func (d *Device) Ready() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ready
}

// Info is the {hostname, firmware} pair reported by /dsp.
type Info struct {
	Hostname string
	Firmware string
}

// Info returns device identity. Valid once populated by Discovery, even
// before ready flips (hostname/firmware are set in steps 1-2).
func (d *Device) Info() Info {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Info{Hostname: d.hostname, Firmware: d.firmware}
}

// Aliases returns the raw alias list from SESSION get aliases.
func (d *Device) Aliases() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, len(d.aliases))
	copy(out, d.aliases)
	return out
}

// Blocks returns every block ID known to the model, in discovery order.
func (d *Device) Blocks() ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.requireReady(); err != nil {
		return nil, err
	}
	out := make([]string, len(d.blockOrder))
	copy(out, d.blockOrder)
	return out, nil
}

// SupportedBlockSummary is the {type} shape reported by GET /block.
type SupportedBlockSummary struct {
	ID   string
	Type BlockType
}

// SupportedBlocks returns every supported block's ID and type.
func (d *Device) SupportedBlocks() ([]SupportedBlockSummary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.requireReady(); err != nil {
		return nil, err
	}
	out := make([]SupportedBlockSummary, 0, len(d.blockOrder))
	for _, id := range d.blockOrder {
		b := d.blocks[id]
		if b.Supported {
			out = append(out, SupportedBlockSummary{ID: id, Type: b.Type})
		}
	}
	return out, nil
}

// Block returns a deep-enough copy of one block (safe to read without the
// lock held), or ErrNoSuchBlock.
func (d *Device) Block(id string) (*Block, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.requireReady(); err != nil {
		return nil, err
	}
	b, ok := d.blocks[id]
	if !ok {
		return nil, util.NewNoSuchBlockError(id)
	}
	return cloneBlock(b), nil
}

func cloneBlock(b *Block) *Block {
	cp := &Block{
		ID:        b.ID,
		Type:      b.Type,
		Supported: b.Supported,
		Ganged:    b.Ganged,
		order:     append([]int(nil), b.order...),
	}
	if b.USB != nil {
		u := *b.USB
		cp.USB = &u
	}
	if len(b.Channels) > 0 {
		cp.Channels = make(map[int]*Channel, len(b.Channels))
		for idx, ch := range b.Channels {
			c := *ch
			if ch.Muted != nil {
				m := *ch.Muted
				c.Muted = &m
			}
			if ch.Level != nil {
				l := *ch.Level
				c.Level = &l
			}
			cp.Channels[idx] = &c
		}
	}
	return cp
}

// --- mutators used exclusively by Discovery / cache load ---

// setIdentity populates hostname/firmware/aliases (Discovery steps 1-3).
func (d *Device) setIdentity(hostname, firmware string, aliases []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hostname = hostname
	d.firmware = firmware
	d.aliases = append([]string(nil), aliases...)
}

// putBlock inserts or replaces a block, recording insertion order. A replace
// (duplicate alias) emits a warning per spec §4.4 edge-case policy.
func (d *Device) putBlock(b *Block) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.blocks[b.ID]; exists {
		util.Logger.Warnf("duplicate block alias %q during discovery: last write wins", b.ID)
	} else {
		d.blockOrder = append(d.blockOrder, b.ID)
	}
	sortChannelOrder(b)
	d.blocks[b.ID] = b
}

func sortChannelOrder(b *Block) {
	b.order = b.order[:0]
	for idx := range b.Channels {
		b.order = append(b.order, idx)
	}
	sort.Ints(b.order)
}

// markReady flips ready to true. Idempotent; never reverts.
func (d *Device) markReady() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ready = true
}

// replaceBlocks is used by cache load to adopt a whole pre-built block set.
func (d *Device) replaceBlocks(order []string, blocks map[string]*Block) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range blocks {
		sortChannelOrder(b)
	}
	d.blockOrder = order
	d.blocks = blocks
}

// NewDeviceFromBlocks builds an already-ready Device from a fixed block set,
// bypassing Discover. It exists for callers in other packages (the HTTP
// adapter's tests, chiefly) that need a populated Device without a live
// Transport; production code always reaches readiness through Discover.
func NewDeviceFromBlocks(hostname, firmware string, blocks []*Block) *Device {
	d := NewDevice()
	order := make([]string, 0, len(blocks))
	m := make(map[string]*Block, len(blocks))
	for _, b := range blocks {
		order = append(order, b.ID)
		m[b.ID] = b
	}
	d.setIdentity(hostname, firmware, nil)
	d.replaceBlocks(order, m)
	d.markReady()
	return d
}

// --- mutators used exclusively by the subscription router (C5) ---

// withBlock runs fn on the live block with d.mu write-locked for the whole
// call, for router use only. It reports false (without calling fn) if the
// block is unknown.
func (d *Device) withBlock(id string, fn func(*Block)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.blocks[id]
	if !ok {
		return false
	}
	fn(b)
	return true
}

// setChannelMuted sets one channel's muted flag. No-op (false) if the
// channel doesn't exist or the block doesn't carry mute state.
func (d *Device) setChannelMuted(blockID string, idx int, value bool) bool {
	ok := false
	d.withBlock(blockID, func(b *Block) {
		ch, exists := b.Channels[idx]
		if !exists || ch.Muted == nil {
			return
		}
		*ch.Muted = value
		ok = true
	})
	return ok
}

// setChannelLevel sets one channel's current level. No-op (false) if the
// channel doesn't exist or doesn't carry gain.
func (d *Device) setChannelLevel(blockID string, idx int, value float64) bool {
	ok := false
	d.withBlock(blockID, func(b *Block) {
		ch, exists := b.Channels[idx]
		if !exists || ch.Level == nil {
			return
		}
		ch.Level.Current = value
		ok = true
	})
	return ok
}

// setUSBFlag sets the streaming or connected flag on a USB block.
func (d *Device) setUSBFlag(blockID string, streaming bool, value bool) bool {
	ok := false
	d.withBlock(blockID, func(b *Block) {
		if b.USB == nil {
			return
		}
		if streaming {
			b.USB.Streaming = value
		} else {
			b.USB.Connected = value
		}
		ok = true
	})
	return ok
}

// channelCount returns the number of channels on blockID, or (0, false) if
// the block is unknown — used by the router to validate list lengths.
func (d *Device) channelCount(blockID string) (int, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.blocks[blockID]
	if !ok {
		return 0, false
	}
	return len(b.Channels), true
}

// channelIndexes returns the sorted channel indices of blockID.
func (d *Device) channelIndexes(blockID string) ([]int, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.blocks[blockID]
	if !ok {
		return nil, false
	}
	return append([]int(nil), b.order...), true
}

// blockType returns the type of blockID for routing dispatch.
func (d *Device) blockType(blockID string) (BlockType, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.blocks[blockID]
	if !ok {
		return "", false
	}
	return b.Type, true
}
