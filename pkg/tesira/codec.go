package tesira

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/enp6s0/dspgate/pkg/util"
)

// cmdResponseOK is the payload text for a bare "+OK" acknowledgement,
// matching the original device gateway's sentinel value exactly.
const cmdResponseOK = "cmd_response_ok"

// subscriptionTagTable maps the logical update kind (used when subscribing
// and when resolving an inbound publishToken) to its 4-character wire tag.
// This table is part of the wire contract DSPgate itself emits — changing it
// would desynchronize in-flight subscriptions.
var subscriptionTagTable = map[string]string{
	"levels":    "LVLA",
	"mutes":     "MUTA",
	"streaming": "USTR",
	"connected": "UCON",
}

var tagToKind = func() map[string]string {
	m := make(map[string]string, len(subscriptionTagTable))
	for kind, tag := range subscriptionTagTable {
		m[tag] = kind
	}
	return m
}()

// kindForTag resolves a 4-character publish-token tag to its logical kind.
func kindForTag(tag string) (string, bool) {
	kind, ok := tagToKind[tag]
	return kind, ok
}

// keyvalRe tokenises a subscription body into key:value pairs. A value is a
// bracketed list, a quoted string, or a bareword; tightened (per spec §4.2)
// to require both ends of the pair instead of the source's looser match.
var keyvalRe = regexp.MustCompile(`(\[.*?\]|"[^"]*"|[^:\s]+):(\[.*?\]|"[^"]*"|[^,\s]+)`)

// publishTokenRe matches "S_<TID>_<blockID>" where TID is exactly 4 chars.
var publishTokenRe = regexp.MustCompile(`^S_([A-Za-z0-9]{4})_(.+)$`)

// QuoteID double-quotes a block ID for emission, per spec §4.2. Block IDs
// are constrained to [A-Za-z0-9_\- ] and never contain quotes themselves,
// so no escaping is required.
func QuoteID(id string) string {
	return `"` + id + `"`
}

// EncodeSubscribe builds the subscribe command for a block and logical kind.
func EncodeSubscribe(blockID, kind string) (string, error) {
	tag, ok := subscriptionTagTable[kind]
	if !ok {
		return "", fmt.Errorf("unknown subscription kind %q", kind)
	}
	token := fmt.Sprintf("S_%s_%s", tag, blockID)
	return fmt.Sprintf(`%s subscribe %s %s`, QuoteID(blockID), kind, QuoteID(token)), nil
}

// EncodeSetMute builds a "set mute" command for one channel.
func EncodeSetMute(blockID string, channel int, value bool) string {
	return fmt.Sprintf(`%s set mute %d %t`, QuoteID(blockID), channel, value)
}

// EncodeSetLevel builds a "set level" command for one channel.
func EncodeSetLevel(blockID string, channel int, value float64) string {
	return fmt.Sprintf(`%s set level %d %v`, QuoteID(blockID), channel, value)
}

// EncodeSetSourceSelection builds the source-select command for a
// SourceSelector block. The exact wire verb is an open question (spec §9,
// "setSourceSelect ... no device-side command strings appear in the
// source"); this is DSPgate's best-effort guess, by analogy to
// "set mute"/"set level", and is flagged in DESIGN.md as unverified.
func EncodeSetSourceSelection(blockID, source string) string {
	return fmt.Sprintf(`%s set sourceSelection %s`, QuoteID(blockID), QuoteID(source))
}

// EncodeSetSourceLevel builds the per-source gain command for a
// SourceSelector block. Spec §9 groups this with setSourceSelect as a wire
// command with no surviving device-side string; this guesses "set
// sourceLevel" by the same "set <attribute> <index> <value>" shape as
// EncodeSetLevel, and is flagged in DESIGN.md as unverified.
func EncodeSetSourceLevel(blockID string, source int, value float64) string {
	return fmt.Sprintf(`%s set sourceLevel %d %v`, QuoteID(blockID), source, value)
}

// ExtractFrames scans buf for newline-terminated lines and parses every one
// that begins with a recognised prefix ('+', '-', or '!'); other lines are
// silently discarded as pre-prompt noise. It returns the parsed frames and
// the unconsumed remainder of buf (bytes after the last newline).
func ExtractFrames(buf string) (frames []Frame, remainder string) {
	for {
		nl := strings.IndexByte(buf, '\n')
		if nl < 0 {
			remainder = buf
			return
		}
		line := strings.TrimSpace(buf[:nl])
		buf = buf[nl+1:]

		if line == "" {
			continue
		}
		switch line[0] {
		case '+', '-', '!':
			if f, ok := parseLine(line); ok {
				frames = append(frames, f)
			}
		default:
			// pre-prompt noise, discarded
		}
	}
}

// parseLine parses one already-trimmed, prefix-bearing line into a Frame.
func parseLine(line string) (Frame, bool) {
	switch {
	case strings.HasPrefix(line, "+OK"):
		return parseOk(strings.TrimSpace(line[len("+OK"):]))
	case strings.HasPrefix(line, "-ERR"):
		return Frame{Kind: FrameError, Err: strings.TrimSpace(line[len("-ERR"):])}, true
	case strings.HasPrefix(line, "!"):
		return parseSubscription(strings.TrimSpace(line[1:]))
	default:
		return Frame{}, false
	}
}

// parseOk parses the body that follows "+OK ".
func parseOk(body string) (Frame, bool) {
	if body == "" {
		return Frame{Kind: FrameOk, Payload: ScalarPayload(TextValue(cmdResponseOK))}, true
	}

	dType, dValue, found := strings.Cut(body, ":")
	dType = strings.Trim(strings.TrimSpace(dType), `"`)
	if !found {
		util.Logger.Warnf("cannot process OK response: %s", body)
		return Frame{}, false
	}
	dValue = strings.TrimSpace(dValue)

	switch dType {
	case "value":
		return Frame{Kind: FrameOk, Payload: ScalarPayload(NormalizeToken(strings.Trim(dValue, `"`)))}, true
	case "list":
		open := strings.IndexByte(dValue, '[')
		closeB := strings.LastIndexByte(dValue, ']')
		if open < 0 || closeB < open {
			util.Logger.Warnf("malformed list OK response: %s", body)
			return Frame{}, false
		}
		inner := dValue[open+1 : closeB]
		items := quotedTokens(inner)
		values := make([]Value, len(items))
		for i, it := range items {
			values[i] = NormalizeToken(it)
		}
		return Frame{Kind: FrameOk, Payload: ListPayload(values)}, true
	default:
		util.Logger.Warnf("unknown OK response data type %q: %s", dType, body)
		return Frame{Kind: FrameOk, Payload: ScalarPayload(TextValue(body))}, true
	}
}

// quotedTokens extracts the quoted, whitespace-separated items of a list
// body, e.g. `"Room_A" "Room_B" "Room_C"`.
func quotedTokens(s string) []string {
	var out []string
	inQuote := false
	var cur strings.Builder
	for _, r := range s {
		switch {
		case r == '"':
			if inQuote {
				out = append(out, cur.String())
				cur.Reset()
			}
			inQuote = !inQuote
		case inQuote:
			cur.WriteRune(r)
		default:
			// whitespace between items, ignored
		}
	}
	return out
}

// parseSubscription parses the body that follows "!": a sequence of
// key:value pairs. publishToken and value are mandatory (tightened per spec
// §4.2); publishToken is decoded into its tag and target block ID.
func parseSubscription(body string) (Frame, bool) {
	matches := keyvalRe.FindAllStringSubmatch(body, -1)

	var (
		publishToken        string
		haveToken, haveValue bool
		isList               bool
		scalar               Value
		list                 []Value
		fields               = map[string]Value{}
	)

	for _, m := range matches {
		key := strings.Trim(m[1], `"`)
		raw := m[2]

		if strings.HasPrefix(raw, "[") {
			inner := strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
			inner = strings.ReplaceAll(inner, `"`, "")
			toks := strings.Fields(inner)
			vals := make([]Value, len(toks))
			for i, t := range toks {
				vals[i] = NormalizeToken(t)
			}
			if key == "value" {
				isList, list, haveValue = true, vals, true
			}
			continue
		}

		switch key {
		case "publishToken":
			publishToken, haveToken = strings.Trim(raw, `"`), true
			continue
		}
		v := NormalizeToken(strings.Trim(raw, `"`))
		switch key {
		case "value":
			scalar, haveValue = v, true
		default:
			fields[key] = v
		}
	}

	if !haveToken || !haveValue {
		util.Logger.Errorf("subscription frame missing required keys: %s", body)
		return Frame{}, false
	}

	m := publishTokenRe.FindStringSubmatch(publishToken)
	if m == nil {
		util.Logger.Errorf("malformed publishToken: %s", publishToken)
		return Frame{}, false
	}

	return Frame{
		Kind:      FrameSubscription,
		Tag:       m[1],
		BlockID:   m[2],
		IsList:    isList,
		Value:     scalar,
		ValueList: list,
		Fields:    fields,
	}, true
}
