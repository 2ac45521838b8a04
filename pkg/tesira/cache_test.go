package tesira

import (
	"path/filepath"
	"reflect"
	"testing"
)

// sampleOrder is deliberately not alphabetical so a round trip that merely
// sorted keys would be caught.
func sampleOrder() []string {
	return []string{"Mute1", "Gain1", "USB1"}
}

func sampleBlocks() map[string]*Block {
	muted := false
	return map[string]*Block{
		"Gain1": {
			ID: "Gain1", Type: LevelControl, Supported: true,
			Channels: map[int]*Channel{1: {Idx: 1, Label: "Channel1", Muted: &muted, Level: &Level{Minimum: -36, Maximum: 12}}},
		},
		"Mute1": {
			ID: "Mute1", Type: MuteControl, Supported: true,
			Channels: map[int]*Channel{1: {Idx: 1, Label: "Channel1", Muted: &muted}},
		},
		"USB1": {
			ID: "USB1", Type: UsbInput, Supported: true,
			USB:      &USBStatus{},
			Channels: map[int]*Channel{1: {Idx: 1, Label: "Channel1"}},
		},
	}
}

func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dsp1.cdspblk")

	order, blocks := sampleOrder(), sampleBlocks()
	if err := saveCache(path, "dsp1", "4.0", 3, order, blocks); err != nil {
		t.Fatalf("saveCache error: %v", err)
	}

	gotOrder, loaded, err := loadCache(path, "dsp1", "4.0", 3)
	if err != nil {
		t.Fatalf("loadCache error: %v", err)
	}
	if !reflect.DeepEqual(gotOrder, order) {
		t.Errorf("order = %v, want %v (discovery order must round-trip verbatim)", gotOrder, order)
	}
	if loaded["Gain1"].Type != LevelControl {
		t.Errorf("loaded block type = %v, want LevelControl", loaded["Gain1"].Type)
	}
}

func TestCacheHostnameMismatchRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dsp1.cdspblk")
	if err := saveCache(path, "dsp1", "4.0", 3, sampleOrder(), sampleBlocks()); err != nil {
		t.Fatalf("saveCache error: %v", err)
	}

	if _, _, err := loadCache(path, "dsp2", "4.0", 3); err == nil {
		t.Error("expected hostname mismatch to reject the cache")
	}
}

func TestCacheFirmwareMismatchRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dsp1.cdspblk")
	if err := saveCache(path, "dsp1", "4.0", 3, sampleOrder(), sampleBlocks()); err != nil {
		t.Fatalf("saveCache error: %v", err)
	}

	if _, _, err := loadCache(path, "dsp1", "5.0", 3); err == nil {
		t.Error("expected firmware mismatch to reject the cache")
	}
}

// Seed scenario 6: alias count mismatch rejects the cache and forces a full
// probe. Writing the fresh cache with the new nAliases value after that
// probe is not covered by this test.
func TestCacheAliasCountMismatchRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dsp1.cdspblk")
	if err := saveCache(path, "dsp1", "1.0", 3, sampleOrder(), sampleBlocks()); err != nil {
		t.Fatalf("saveCache error: %v", err)
	}

	if _, _, err := loadCache(path, "dsp1", "1.0", 4); err == nil {
		t.Error("expected nAliases mismatch to reject the cache")
	}
}

func TestCacheMissingFile(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := loadCache(filepath.Join(dir, "missing.cdspblk"), "dsp1", "1.0", 0); err == nil {
		t.Error("expected error reading a nonexistent cache file")
	}
}

func TestCachePathShape(t *testing.T) {
	got := cachePath("dsp1")
	want := filepath.Join(".cache", "dsp1.cdspblk")
	if got != want {
		t.Errorf("cachePath() = %q, want %q", got, want)
	}
}
