package tesira

import "testing"

// Seed scenario 1: bare ack.
func TestExtractFramesBareAck(t *testing.T) {
	frames, rem := ExtractFrames("+OK\r\n")
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	f := frames[0]
	if f.Kind != FrameOk {
		t.Fatalf("Kind = %v, want FrameOk", f.Kind)
	}
	if f.Payload.Kind != PayloadScalar || f.Payload.Scalar.Kind != KindText || f.Payload.Scalar.Text != cmdResponseOK {
		t.Errorf("Payload = %+v, want scalar text %q", f.Payload, cmdResponseOK)
	}
	if rem != "" {
		t.Errorf("remainder = %q, want empty", rem)
	}
}

// Seed scenario 2: scalar values.
func TestExtractFramesScalarValue(t *testing.T) {
	frames, _ := ExtractFrames(`+OK "value":"true"` + "\n")
	if len(frames) != 1 || frames[0].Payload.Scalar.Kind != KindBool || !frames[0].Payload.Scalar.Bool {
		t.Fatalf("got %+v, want Ok(Scalar(Bool(true)))", frames)
	}

	frames, _ = ExtractFrames(`+OK "value":-12.5` + "\n")
	if len(frames) != 1 || frames[0].Payload.Scalar.Kind != KindNumber || frames[0].Payload.Scalar.Num != -12.5 {
		t.Fatalf("got %+v, want Ok(Scalar(Number(-12.5)))", frames)
	}
}

// Seed scenario 3: list.
func TestExtractFramesList(t *testing.T) {
	frames, _ := ExtractFrames(`+OK "list":[ "Room_A" "Room_B" "Room_C" ]` + "\n")
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	f := frames[0]
	if f.Payload.Kind != PayloadList || len(f.Payload.List) != 3 {
		t.Fatalf("Payload = %+v, want 3-item list", f.Payload)
	}
	want := []string{"Room_A", "Room_B", "Room_C"}
	for i, w := range want {
		if f.Payload.List[i].Text != w {
			t.Errorf("List[%d] = %q, want %q", i, f.Payload.List[i].Text, w)
		}
	}
}

// Seed scenario 4: subscription, multi-channel levels.
func TestExtractFramesSubscriptionLevels(t *testing.T) {
	line := `!publishToken:"S_LVLA_Gain1" value:[ -10 -10 -20 -20 ]` + "\n"
	frames, _ := ExtractFrames(line)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	f := frames[0]
	if f.Kind != FrameSubscription || f.Tag != "LVLA" || f.BlockID != "Gain1" {
		t.Fatalf("got %+v", f)
	}
	if !f.IsList || len(f.ValueList) != 4 {
		t.Fatalf("ValueList = %+v", f.ValueList)
	}
	want := []float64{-10, -10, -20, -20}
	for i, w := range want {
		if f.ValueList[i].Num != w {
			t.Errorf("ValueList[%d] = %v, want %v", i, f.ValueList[i].Num, w)
		}
	}
}

// Seed scenario 5: subscription, USB connected.
func TestExtractFramesSubscriptionUSB(t *testing.T) {
	line := `!publishToken:"S_UCON_USB1" value:true` + "\n"
	frames, _ := ExtractFrames(line)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	f := frames[0]
	if f.Tag != "UCON" || f.BlockID != "USB1" || f.IsList {
		t.Fatalf("got %+v", f)
	}
	if !f.Value.AsBool() {
		t.Error("Value.AsBool() = false, want true")
	}
}

func TestExtractFramesErrorFrame(t *testing.T) {
	frames, _ := ExtractFrames(`-ERR invalid command "BLOCKTYPE" LevelControlInterface::Attributes` + "\n")
	if len(frames) != 1 || frames[0].Kind != FrameError {
		t.Fatalf("got %+v, want FrameError", frames)
	}
}

// "Any input line whose first non-whitespace character is not in
// {'+','-','!'} is discarded and produces no Frame."
func TestExtractFramesDiscardsNoise(t *testing.T) {
	frames, _ := ExtractFrames("Welcome to the Tesira Text Protocol Server...\n> \n")
	if len(frames) != 0 {
		t.Fatalf("got %d frames, want 0", len(frames))
	}
}

func TestExtractFramesKeepsRemainder(t *testing.T) {
	_, rem := ExtractFrames("+OK\npartial-line-no-newline")
	if rem != "partial-line-no-newline" {
		t.Errorf("remainder = %q", rem)
	}
}

func TestParseSubscriptionRequiresTokenAndValue(t *testing.T) {
	if _, ok := parseSubscription(`foo:"bar"`); ok {
		t.Error("expected parse failure without publishToken/value")
	}
	if _, ok := parseSubscription(`publishToken:"S_LVLA_Gain1"`); ok {
		t.Error("expected parse failure without value")
	}
}

func TestEncodeSubscribe(t *testing.T) {
	cmd, err := EncodeSubscribe("Gain1", "levels")
	if err != nil {
		t.Fatalf("EncodeSubscribe error: %v", err)
	}
	want := `"Gain1" subscribe levels "S_LVLA_Gain1"`
	if cmd != want {
		t.Errorf("got %q, want %q", cmd, want)
	}

	if _, err := EncodeSubscribe("Gain1", "bogus"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestEncodeSetMuteAndLevel(t *testing.T) {
	if got, want := EncodeSetMute("Gain1", 2, true), `"Gain1" set mute 2 true`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got, want := EncodeSetLevel("Gain1", 2, -10.5), `"Gain1" set level 2 -10.5`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
