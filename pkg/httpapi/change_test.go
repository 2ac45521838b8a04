package httpapi

import (
	"encoding/json"
	"testing"

	"github.com/enp6s0/dspgate/pkg/tesira"
)

func fixtureBlocks() []*tesira.Block {
	muted1, muted2 := false, false
	gain := &tesira.Block{
		ID: "Gain1", Type: tesira.LevelControl, Supported: true,
		Channels: map[int]*tesira.Channel{
			1: {Idx: 1, Label: "Channel1", Muted: &muted1, Level: &tesira.Level{Current: -10, Minimum: -36, Maximum: 12}},
			2: {Idx: 2, Label: "Channel2", Muted: &muted2, Level: &tesira.Level{Current: -10, Minimum: -36, Maximum: 12}},
		},
	}
	selector := &tesira.Block{
		ID: "Selector1", Type: tesira.SourceSelector, Supported: true,
		Channels: map[int]*tesira.Channel{1: {Idx: 1, Label: "input"}},
	}
	return []*tesira.Block{gain, selector}
}

func TestBoolLikeUnmarshal(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{`true`, true},
		{`false`, false},
		{`1`, true},
		{`0`, false},
		{`"yes"`, true},
		{`"off"`, false},
	}
	for _, c := range cases {
		var b boolLike
		if err := json.Unmarshal([]byte(c.raw), &b); err != nil {
			t.Fatalf("unmarshal %s: %v", c.raw, err)
		}
		if bool(b) != c.want {
			t.Errorf("unmarshal %s = %v, want %v", c.raw, b, c.want)
		}
	}
}

func TestBoolLikeUnmarshalRejectsObject(t *testing.T) {
	var b boolLike
	if err := json.Unmarshal([]byte(`{}`), &b); err == nil {
		t.Error("expected error unmarshalling an object as bool-like")
	}
}

func TestSourceSpecLevelBareNumber(t *testing.T) {
	var s sourceSpec
	if err := json.Unmarshal([]byte(`{"level": -6}`), &s); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	v, ok, err := s.level()
	if err != nil || !ok || v != -6 {
		t.Errorf("level() = %v, %v, %v", v, ok, err)
	}
}

func TestSourceSpecLevelWrappedCurrent(t *testing.T) {
	var s sourceSpec
	if err := json.Unmarshal([]byte(`{"level": {"current": -6}}`), &s); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	v, ok, err := s.level()
	if err != nil || !ok || v != -6 {
		t.Errorf("level() = %v, %v, %v", v, ok, err)
	}
}

func TestSourceSpecLevelAbsent(t *testing.T) {
	var s sourceSpec
	_, ok, err := s.level()
	if err != nil || ok {
		t.Errorf("level() = _, %v, %v, want false, nil", ok, err)
	}
}

func TestApplyBlockChangeEmptyRequest(t *testing.T) {
	d := tesira.NewDeviceFromBlocks("dsp1", "1.0", fixtureBlocks())
	c := tesira.NewControl(tesira.NewTransport(tesira.TransportConfig{Host: "dsp1"}), d)

	if _, err := applyBlockChange(c, d, "Gain1", blockChangeRequest{}); !isInvalidBody(err) {
		t.Errorf("empty request error = %v, want invalid body", err)
	}
}

func TestApplyBlockChangeUnknownBlock(t *testing.T) {
	d := tesira.NewDeviceFromBlocks("dsp1", "1.0", fixtureBlocks())
	c := tesira.NewControl(tesira.NewTransport(tesira.TransportConfig{Host: "dsp1"}), d)

	muted := true
	req := blockChangeRequest{Channel: map[string]channelSpec{"1": {Muted: (*boolLike)(&muted)}}}
	if _, err := applyBlockChange(c, d, "NoSuchBlock", req); !isNoSuchBlock(err) {
		t.Errorf("unknown block error = %v, want NoSuchBlock", err)
	}
}

func TestApplyBlockChangeBadChannelKey(t *testing.T) {
	d := tesira.NewDeviceFromBlocks("dsp1", "1.0", fixtureBlocks())
	c := tesira.NewControl(tesira.NewTransport(tesira.TransportConfig{Host: "dsp1"}), d)

	level := -6.0
	req := blockChangeRequest{Channel: map[string]channelSpec{"notanumber": {Level: &level}}}
	if _, err := applyBlockChange(c, d, "Gain1", req); !isMalformed(err) {
		t.Errorf("bad channel key error = %v, want malformed", err)
	}
}

func TestApplyBlockChangeSourceSelectorSelected(t *testing.T) {
	d := tesira.NewDeviceFromBlocks("dsp1", "1.0", fixtureBlocks())
	c := tesira.NewControl(tesira.NewTransport(tesira.TransportConfig{Host: "dsp1"}), d)

	selected := "Room_A"
	req := blockChangeRequest{Selected: &selected}
	_, err := applyBlockChange(c, d, "Selector1", req)
	// No live transport: SetSourceSelect fails with transport-down, which
	// is neither invalid-body nor malformed — confirms the request itself
	// parsed and dispatched correctly.
	if isInvalidBody(err) || isMalformed(err) {
		t.Errorf("unexpected classification for %v", err)
	}
}

func TestApplyBlockChangeSourceLevel(t *testing.T) {
	d := tesira.NewDeviceFromBlocks("dsp1", "1.0", fixtureBlocks())
	tr := tesira.NewActiveTransportForTest("dsp1")
	c := tesira.NewControl(tr, d)

	raw := json.RawMessage(`-6`)
	req := blockChangeRequest{Sources: map[string]sourceSpec{"1": {Level: raw}}}
	changes, err := applyBlockChange(c, d, "Selector1", req)
	if err != nil {
		t.Fatalf("applyBlockChange error: %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("changes = %v, want 1 entry", changes)
	}
}

func TestApplyBlockChangeNoApplicableChange(t *testing.T) {
	d := tesira.NewDeviceFromBlocks("dsp1", "1.0", fixtureBlocks())
	c := tesira.NewControl(tesira.NewTransport(tesira.TransportConfig{Host: "dsp1"}), d)

	// A non-empty request that targets none of Gain1's recognised shapes:
	// Sources/Selected only apply to SourceSelector blocks.
	selected := "Room_A"
	req := blockChangeRequest{Selected: &selected}
	if _, err := applyBlockChange(c, d, "Gain1", req); !isInvalidBody(err) {
		t.Errorf("no-op request error = %v, want invalid body", err)
	}
}
