package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/enp6s0/dspgate/pkg/tesira"
)

// errInvalidBody and errMalformedSpec distinguish the 400 and 412 cases of
// spec §6's status code table from unexpected (500) failures.
var (
	errInvalidBody  = errors.New("invalid request body")
	errMalformedSpec = errors.New("malformed channel or source spec")
)

// boolLike accepts a JSON bool, number (non-zero is true), or string in the
// same true/yes/on vocabulary as the device's value normaliser — the
// "bool-like" values spec §6 allows in request bodies.
type boolLike bool

func (b *boolLike) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case bool:
		*b = boolLike(v)
	case float64:
		*b = boolLike(v != 0)
	case string:
		*b = boolLike(tesira.NormalizeToken(v).AsBool())
	default:
		return fmt.Errorf("value %v is not bool-like", raw)
	}
	return nil
}

// channelSpec is one entry of the "channel" map: {mute|muted, level}.
type channelSpec struct {
	Mute  *boolLike `json:"mute,omitempty"`
	Muted *boolLike `json:"muted,omitempty"`
	Level *float64  `json:"level,omitempty"`
}

// outputSpec is the SourceSelector "output" shape: {muted: bool-like}.
type outputSpec struct {
	Muted *boolLike `json:"muted,omitempty"`
}

// sourceSpec is one entry of the SourceSelector "sources" map: a bare
// number or {current: number}.
type sourceSpec struct {
	Level json.RawMessage `json:"level,omitempty"`
}

func (s sourceSpec) level() (float64, bool, error) {
	if len(s.Level) == 0 {
		return 0, false, nil
	}
	var f float64
	if err := json.Unmarshal(s.Level, &f); err == nil {
		return f, true, nil
	}
	var wrapped struct {
		Current float64 `json:"current"`
	}
	if err := json.Unmarshal(s.Level, &wrapped); err != nil {
		return 0, false, fmt.Errorf("level must be a number or {current: number}")
	}
	return wrapped.Current, true, nil
}

// blockChangeRequest is the union of POST/PATCH /block/<id> body shapes
// spec §6 describes: mute/level blocks use Channel; SourceSelector uses
// Mute/Output/Selected/Sources.
type blockChangeRequest struct {
	Channel map[string]channelSpec `json:"channel,omitempty"`

	Mute     *boolLike             `json:"mute,omitempty"`
	Output   *outputSpec           `json:"output,omitempty"`
	Selected *string               `json:"selected,omitempty"`
	Sources  map[string]sourceSpec `json:"sources,omitempty"`
}

func (req blockChangeRequest) empty() bool {
	return req.Channel == nil && req.Mute == nil && req.Output == nil &&
		req.Selected == nil && req.Sources == nil
}

// applyBlockChange dispatches a decoded request to the Control API and
// returns a human-readable description of each change applied, or the
// first error encountered (malformed channel specs surface as
// util.ErrNoSuchChannel / util.ErrUnsupportedForBlockType, which the caller
// maps to 412). An out-of-range level is skipped by Control.SetLevel without
// an error, so it is still listed among the changes.
func applyBlockChange(c *tesira.Control, d *tesira.Device, blockID string, req blockChangeRequest) ([]string, error) {
	if req.empty() {
		return nil, fmt.Errorf("%w: no recognised fields", errInvalidBody)
	}

	b, err := d.Block(blockID)
	if err != nil {
		return nil, err
	}

	var changes []string

	for key, spec := range req.Channel {
		idx, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("%w: channel key %q is not an integer", errMalformedSpec, key)
		}

		if m := coalesce(spec.Mute, spec.Muted); m != nil {
			if err := c.SetMute(blockID, idx, bool(*m)); err != nil {
				return nil, err
			}
			changes = append(changes, fmt.Sprintf("channel %d mute -> %t", idx, *m))
		}
		if spec.Level != nil {
			if err := c.SetLevel(blockID, idx, *spec.Level); err != nil {
				return nil, err
			}
			changes = append(changes, fmt.Sprintf("channel %d level -> %v", idx, *spec.Level))
		}
	}

	if b.Type == tesira.SourceSelector {
		if req.Mute != nil {
			if err := c.SetMute(blockID, 0, bool(*req.Mute)); err != nil {
				return nil, err
			}
			changes = append(changes, fmt.Sprintf("mute -> %t", *req.Mute))
		}
		if req.Output != nil && req.Output.Muted != nil {
			if err := c.SetMute(blockID, 0, bool(*req.Output.Muted)); err != nil {
				return nil, err
			}
			changes = append(changes, fmt.Sprintf("output.muted -> %t", *req.Output.Muted))
		}
		if req.Selected != nil {
			if err := c.SetSourceSelect(blockID, *req.Selected); err != nil {
				return nil, err
			}
			changes = append(changes, fmt.Sprintf("selected -> %s", *req.Selected))
		}
		for key, spec := range req.Sources {
			idx, err := strconv.Atoi(key)
			if err != nil {
				return nil, fmt.Errorf("%w: source key %q is not an integer", errMalformedSpec, key)
			}
			level, ok, err := spec.level()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", errMalformedSpec, err)
			}
			if !ok {
				continue
			}
			if err := c.SetSourceLevel(blockID, idx, level); err != nil {
				return nil, err
			}
			changes = append(changes, fmt.Sprintf("source %d level -> %v", idx, level))
		}
	}

	if len(changes) == 0 {
		return nil, fmt.Errorf("%w: no applicable change for block type %s", errInvalidBody, b.Type)
	}
	return changes, nil
}

func coalesce(a, b *boolLike) *boolLike {
	if a != nil {
		return a
	}
	return b
}
