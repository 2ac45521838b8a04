package tesira

import (
	"fmt"
	"strings"

	"github.com/enp6s0/dspgate/pkg/util"
)

// supportedBlockTypes is the set of block interface types Discovery fully
// probes for attributes. Anything else (including the device's own handle,
// which never carries an Interface::Attributes suffix) stays unsupported.
var supportedBlockTypes = map[BlockType]bool{
	LevelControl: true,
	MuteControl:  true,
	DanteInput:   true,
	DanteOutput:  true,
	UsbInput:     true,
	UsbOutput:    true,
	AudioOutput:  true,
}

// DiscoveryConfig names the optional on-disk attribute cache.
type DiscoveryConfig struct {
	AttributeCache string // path; empty means .cache/<hostname>.cdspblk
}

// Discover runs the one-shot discovery sequence of spec §4.4 against t,
// populating d and flipping it ready on success. It must run to completion
// before any other reader attaches to t; Discover itself uses only
// sendWait (synchronous request/response, no subscriptions).
func Discover(t *Transport, d *Device, cfg DiscoveryConfig) error {
	hostname, err := queryScalarText(t, "DEVICE get hostname")
	if err != nil {
		return fmt.Errorf("query hostname: %w", err)
	}

	firmware, err := queryScalarText(t, "DEVICE get version")
	if err != nil {
		return fmt.Errorf("query firmware: %w", err)
	}

	aliases, err := queryList(t, "SESSION get aliases")
	if err != nil {
		return fmt.Errorf("query aliases: %w", err)
	}

	if _, err := t.sendWait(`SESSION set verbose true`); err != nil {
		return fmt.Errorf("set verbose: %w", err)
	}
	if _, err := t.sendWait(`SESSION set detailedResponse false`); err != nil {
		return fmt.Errorf("set detailedResponse: %w", err)
	}

	d.setIdentity(hostname, firmware, aliases)

	cachePath := cfg.AttributeCache
	if cachePath == "" && hostname != "" {
		cachePath = tesiraCachePath(hostname)
	}

	if cachePath != "" {
		order, blocks, err := loadCache(cachePath, hostname, firmware, len(aliases))
		if err == nil {
			d.replaceBlocks(order, blocks)
			d.markReady()
			util.WithDevice(hostname).Info("DSP attributes loaded from cache file")
			return nil
		}
		util.WithDevice(hostname).Warnf("cannot load cached DSP attributes: %v", err)
	}

	util.WithDevice(hostname).Info("DSP attributes will be queried from device (this may take a while)")
	if err := probeBlocks(t, d, aliases); err != nil {
		return err
	}
	d.markReady()

	if cachePath != "" {
		order, _ := d.Blocks()
		all := make(map[string]*Block, len(order))
		for _, id := range order {
			b, err := d.Block(id)
			if err == nil {
				all[id] = b
			}
		}
		if err := saveCache(cachePath, hostname, firmware, len(aliases), order, all); err != nil {
			util.WithDevice(hostname).Warnf("cannot save DSP attributes cache: %v", err)
		} else {
			util.WithDevice(hostname).Infof("DSP attributes saved: %s.cdspblk", hostname)
		}
	}

	return nil
}

func tesiraCachePath(hostname string) string {
	return cachePath(hostname)
}

// probeBlocks implements spec §4.4 steps 6-7: the BLOCKTYPE probe followed
// by the per-block attribute probe. A failed probe for one block demotes it
// to unsupported without aborting discovery (per the edge-case policy).
func probeBlocks(t *Transport, d *Device, aliases []string) error {
	for _, alias := range aliases {
		resp, err := t.sendWaitExpectError(fmt.Sprintf(`%s get BLOCKTYPE`, QuoteID(alias)))
		if err != nil {
			util.WithField("block", alias).Warnf("BLOCKTYPE probe failed: %v", err)
			continue
		}

		fields := strings.Fields(resp)
		if len(fields) == 0 {
			continue
		}
		last := strings.TrimSpace(fields[len(fields)-1])
		if !strings.Contains(last, "::Attributes") {
			// Not a DSP block (likely the device handle itself); skip.
			continue
		}
		typeName := strings.TrimSuffix(last, "Interface::Attributes")
		bt := BlockType(typeName)

		b := &Block{ID: alias, Type: bt, Supported: false}

		if supportedBlockTypes[bt] {
			if err := probeBlockAttributes(t, b); err != nil {
				util.WithField("block", alias).Warnf("attribute probe failed: %v", err)
				b = &Block{ID: alias, Type: bt, Supported: false}
			}
		}

		d.putBlock(b)
	}
	return nil
}

func probeBlockAttributes(t *Transport, b *Block) error {
	b.Supported = true

	if b.Type == LevelControl || b.Type == MuteControl {
		v, err := queryScalarText(t, fmt.Sprintf(`%s get ganged`, QuoteID(b.ID)))
		if err != nil {
			return fmt.Errorf("get ganged: %w", err)
		}
		b.Ganged = NormalizeToken(v).AsBool()
	}

	if b.Type.IsUSB() {
		b.USB = &USBStatus{Streaming: false, Connected: false}
	}

	nStr, err := queryScalarText(t, fmt.Sprintf(`%s get numChannels`, QuoteID(b.ID)))
	if err != nil {
		return fmt.Errorf("get numChannels: %w", err)
	}
	n, err := NormalizeToken(nStr).AsFloat()
	if err != nil {
		return fmt.Errorf("numChannels not numeric: %w", err)
	}
	numChannels := int(n)

	b.Channels = make(map[int]*Channel, numChannels)
	for i := 1; i <= numChannels; i++ {
		ch := &Channel{Idx: i}

		switch {
		case b.Type == DanteInput || b.Type == DanteOutput:
			label, err := queryScalarText(t, fmt.Sprintf(`%s get channelName %d`, QuoteID(b.ID), i))
			if err != nil {
				return fmt.Errorf("get channelName %d: %w", i, err)
			}
			ch.Label = label
		case b.Type.IsUSB() || b.Type == AudioOutput:
			ch.Label = fmt.Sprintf("Channel%d", i)
		default:
			label, err := queryScalarText(t, fmt.Sprintf(`%s get label %d`, QuoteID(b.ID), i))
			if err != nil {
				return fmt.Errorf("get label %d: %w", i, err)
			}
			ch.Label = label
		}

		if !b.Type.IsUSB() {
			muted := false
			ch.Muted = &muted
		}

		if b.Type.HasGain() {
			minStr, err := queryScalarText(t, fmt.Sprintf(`%s get minLevel %d`, QuoteID(b.ID), i))
			if err != nil {
				return fmt.Errorf("get minLevel %d: %w", i, err)
			}
			maxStr, err := queryScalarText(t, fmt.Sprintf(`%s get maxLevel %d`, QuoteID(b.ID), i))
			if err != nil {
				return fmt.Errorf("get maxLevel %d: %w", i, err)
			}
			minV, err := NormalizeToken(minStr).AsFloat()
			if err != nil {
				return fmt.Errorf("minLevel not numeric: %w", err)
			}
			maxV, err := NormalizeToken(maxStr).AsFloat()
			if err != nil {
				return fmt.Errorf("maxLevel not numeric: %w", err)
			}
			ch.Level = &Level{Current: -100.0, Minimum: minV, Maximum: maxV}
		}

		b.Channels[i] = ch
	}

	return nil
}

// queryScalarText sends cmd and returns the scalar payload rendered as text.
func queryScalarText(t *Transport, cmd string) (string, error) {
	raw, err := t.sendWait(cmd)
	if err != nil {
		return "", err
	}
	frames, _ := ExtractFrames(string(raw) + "\n")
	for _, f := range frames {
		switch f.Kind {
		case FrameOk:
			if f.Payload.Kind == PayloadScalar {
				return f.Payload.Scalar.String(), nil
			}
			return "", fmt.Errorf("expected scalar OK response, got list")
		case FrameError:
			return "", fmt.Errorf("device error: %s", f.Err)
		}
	}
	return "", fmt.Errorf("no recognised response to %q", cmd)
}

// queryList sends cmd and returns the list payload as strings.
func queryList(t *Transport, cmd string) ([]string, error) {
	raw, err := t.sendWait(cmd)
	if err != nil {
		return nil, err
	}
	frames, _ := ExtractFrames(string(raw) + "\n")
	for _, f := range frames {
		switch f.Kind {
		case FrameOk:
			if f.Payload.Kind == PayloadList {
				out := make([]string, len(f.Payload.List))
				for i, v := range f.Payload.List {
					out[i] = v.String()
				}
				return out, nil
			}
			return nil, fmt.Errorf("expected list OK response, got scalar")
		case FrameError:
			return nil, fmt.Errorf("device error: %s", f.Err)
		}
	}
	return nil, fmt.Errorf("no recognised response to %q", cmd)
}

// sendWaitExpectError is sendWait for the BLOCKTYPE probe, which is an
// intentionally illegal command: the device always answers with -ERR, and
// the diagnostic text (not an error condition here) is what callers parse.
func (t *Transport) sendWaitExpectError(cmd string) (string, error) {
	raw, err := t.sendWait(cmd)
	if err != nil {
		return "", err
	}
	frames, _ := ExtractFrames(string(raw) + "\n")
	for _, f := range frames {
		if f.Kind == FrameError {
			return f.Err, nil
		}
		if f.Kind == FrameOk {
			return "", fmt.Errorf("BLOCKTYPE probe unexpectedly succeeded")
		}
	}
	return "", fmt.Errorf("no response to BLOCKTYPE probe")
}
