package tesira

import (
	"errors"
	"testing"

	"github.com/enp6s0/dspgate/pkg/util"
)

func TestDeviceNotReadyBeforeDiscovery(t *testing.T) {
	d := NewDevice()
	if d.Ready() {
		t.Fatal("fresh Device should not be ready")
	}
	if _, err := d.Blocks(); !errors.Is(err, util.ErrNotReady) {
		t.Errorf("Blocks() error = %v, want ErrNotReady", err)
	}
	if _, err := d.Block("Gain1"); !errors.Is(err, util.ErrNotReady) {
		t.Errorf("Block() error = %v, want ErrNotReady", err)
	}
}

func TestDeviceBlockAccessors(t *testing.T) {
	d := newTestDevice()

	ids, err := d.Blocks()
	if err != nil {
		t.Fatalf("Blocks() error = %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("Blocks() = %v, want 3 entries", ids)
	}

	if _, err := d.Block("NoSuchBlock"); !errors.Is(err, util.ErrNoSuchBlock) {
		t.Errorf("Block(unknown) error = %v, want ErrNoSuchBlock", err)
	}

	b, err := d.Block("Gain1")
	if err != nil {
		t.Fatalf("Block(Gain1) error = %v", err)
	}
	if len(b.Channels) != 2 {
		t.Fatalf("Gain1 channels = %d, want 2", len(b.Channels))
	}
	if b.order[0] != 1 || b.order[1] != 2 {
		t.Errorf("channel order = %v, want [1 2]", b.order)
	}
}

func TestDeviceBlockIsClone(t *testing.T) {
	d := newTestDevice()
	b, _ := d.Block("Gain1")
	*b.Channels[1].Muted = true

	b2, _ := d.Block("Gain1")
	if *b2.Channels[1].Muted {
		t.Error("mutating a returned Block leaked into the model; Block() must return a copy")
	}
}

func TestSupportedBlocks(t *testing.T) {
	d := newTestDevice()
	summaries, err := d.SupportedBlocks()
	if err != nil {
		t.Fatalf("SupportedBlocks() error = %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("got %d supported blocks, want 3", len(summaries))
	}
}

func newTestDevice() *Device {
	d := NewDevice()
	d.setIdentity("dsp1", "4.0", []string{"Gain1", "Mute1", "USB1"})

	gainMuted1, gainMuted2 := false, false
	d.putBlock(&Block{
		ID: "Gain1", Type: LevelControl, Supported: true,
		Channels: map[int]*Channel{
			1: {Idx: 1, Label: "Channel1", Muted: &gainMuted1, Level: &Level{Current: -100, Minimum: -36, Maximum: 12}},
			2: {Idx: 2, Label: "Channel2", Muted: &gainMuted2, Level: &Level{Current: -100, Minimum: -36, Maximum: 12}},
		},
	})

	muted := false
	d.putBlock(&Block{
		ID: "Mute1", Type: MuteControl, Supported: true,
		Channels: map[int]*Channel{
			1: {Idx: 1, Label: "Channel1", Muted: &muted},
		},
	})

	d.putBlock(&Block{
		ID: "USB1", Type: UsbInput, Supported: true,
		USB:      &USBStatus{Streaming: false, Connected: false},
		Channels: map[int]*Channel{1: {Idx: 1, Label: "Channel1"}},
	})

	d.markReady()
	return d
}
