// Package logline classifies raw srcds log lines into relay events.
package logline

import (
	"encoding/base64"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/woozymasta/srcrelay/internal/steamid"
)

// Kind is the category of a classified log line.
type Kind int

// Event kinds, in classification order.
const (
	Unrecognized Kind = iota
	Chat
	Error
	Custom
)

// Placeholders used when a custom relay tag cannot be decoded.
const (
	DefaultSender  = "Server"
	UnreadableBody = "(unreadable message)"
)

func (k Kind) String() string {
	switch k {
	case Chat:
		return "chat"
	case Error:
		return "error"
	case Custom:
		return "custom"
	default:
		return "unrecognized"
	}
}

// Event is the result of classifying one log line.
// Chat sets Speaker, SpeakerID and Body; Error sets Body; Custom sets Sender and Body.
type Event struct {
	Speaker   string
	Sender    string
	Body      string
	SpeakerID steamid.SteamID
	Kind      Kind
}

var (
	// say or say_team from a player with an identity block.
	chatMarkerRe = regexp.MustCompile(`<\d+><STEAM_[0-5]:[01]:\d+><[^>]*>" (?:say|say_team) "`)
	chatRe       = regexp.MustCompile(`^.*?"(.*?)<\d+><(STEAM_[0-5]:[01]:\d+)><[^>]*>"\s+say(?:_team)?\s+"(.*)"`)

	// timestamped "Lua Error:" followed by an [ERROR] detail line.
	luaErrorRe = regexp.MustCompile(`(?m)^(?:\d{2}/\d{2}/\d{4} - \d{2}:\d{2}:\d{2}: )(Lua Error:\s*\n\[ERROR\][\s\S]*)$`)

	customRe = regexp.MustCompile(`\[relay_custom\]([\s\S]*?)\[/relay_custom\]`)
)

// Classifier turns log lines into events. The zero value ignores Lua errors.
type Classifier struct {
	// SurfaceErrors enables the Error kind.
	SurfaceErrors bool
}

// Classify is total and pure: every line yields exactly one event and the
// same line always yields the same event. The first matching rule wins.
func (c Classifier) Classify(line string) Event {
	if chatMarkerRe.MatchString(line) {
		return classifyChat(line)
	}

	if c.SurfaceErrors {
		if m := luaErrorRe.FindStringSubmatch(line); m != nil {
			return Event{Kind: Error, Body: m[1]}
		}
	}

	if m := customRe.FindStringSubmatch(line); m != nil {
		return classifyCustom(m[1])
	}

	return Event{Kind: Unrecognized}
}

func classifyChat(line string) Event {
	m := chatRe.FindStringSubmatch(line)
	if m == nil || m[3] == "" {
		return Event{Kind: Unrecognized}
	}

	id, err := steamid.Parse(m[2])
	if err != nil {
		return Event{Kind: Unrecognized}
	}

	return Event{
		Kind:      Chat,
		Speaker:   m[1],
		SpeakerID: id,
		Body:      m[3],
	}
}

func classifyCustom(inner string) Event {
	sender, body, _ := strings.Cut(inner, "|")

	return Event{
		Kind:   Custom,
		Sender: decodeField(sender, DefaultSender),
		Body:   decodeField(body, UnreadableBody),
	}
}

func decodeField(field, fallback string) string {
	field = strings.TrimSpace(field)
	if field == "" {
		return fallback
	}

	raw, err := base64.StdEncoding.DecodeString(field)
	if err != nil || len(raw) == 0 || !utf8.Valid(raw) {
		return fallback
	}

	return string(raw)
}
