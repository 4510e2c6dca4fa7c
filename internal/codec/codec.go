// Package codec splits relay messages into RCON-sized console commands.
//
// A message whose encoded body fits the ceiling is sent as one command:
//
//	say_relay <b64 author> <b64 body>
//
// Longer messages are announced with an initiation frame and followed by
// numbered continuation frames sharing a four character group tag:
//
//	say_relay 0 <count> <tag> <b64 author>
//	say_relay <i> <tag> <chunk i>
package codec

import (
	"encoding/base64"
	"strconv"
)

const (
	// DefaultVerb is the console command handled by the game side addon.
	DefaultVerb = "say_relay"

	// DefaultCeiling is the per command byte budget. Single and continuation
	// commands never exceed it.
	DefaultCeiling = 500

	// TagLength is the length of a group tag.
	TagLength = 4
)

// Codec encodes messages into frames. The zero value uses the defaults.
type Codec struct {
	Verb    string
	Ceiling int
}

// FrameKind tells single-shot, initiation and continuation frames apart.
type FrameKind int

const (
	// Single carries author and whole body in one command.
	Single FrameKind = iota
	// Start announces a fragmented message: count, tag and author.
	Start
	// Part carries one chunk of the encoded body.
	Part
)

// Frame is one wire command of an encoded message.
type Frame struct {
	Tag     string
	Author  string // base64, Single and Start only
	Payload string // base64 body or chunk, Single and Part only
	Kind    FrameKind
	Index   int // 0 for Start, 1..Count for Part
	Count   int // Start only
}

// Command renders the frame as a console command line.
func (f Frame) Command(verb string) string {
	switch f.Kind {
	case Start:
		return verb + " 0 " + strconv.Itoa(f.Count) + " " + f.Tag + " " + f.Author
	case Part:
		return verb + " " + strconv.Itoa(f.Index) + " " + f.Tag + " " + f.Payload
	default:
		return verb + " " + f.Author + " " + f.Payload
	}
}

func (c Codec) verb() string {
	if c.Verb == "" {
		return DefaultVerb
	}

	return c.Verb
}

func (c Codec) ceiling() int {
	if c.Ceiling <= 0 {
		return DefaultCeiling
	}

	return c.Ceiling
}

// Encode returns the ordered console commands for a message.
// The group tag, when needed, is GroupTag(messageID).
func (c Codec) Encode(messageID, author, body string) []string {
	frames := c.Split(author, body, func() string { return GroupTag(messageID) })

	verb := c.verb()
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.Command(verb)
	}

	return out
}

// Split builds the frames of a message. tag is called at most once, and only
// when the message has to be fragmented.
func (c Codec) Split(author, body string, tag func() string) []Frame {
	verb := c.verb()
	ceiling := c.ceiling()

	encAuthor := base64.StdEncoding.EncodeToString([]byte(author))
	encBody := base64.StdEncoding.EncodeToString([]byte(body))

	startSize := len(verb) + 2 + len(encAuthor)
	if len(encBody) <= ceiling-startSize {
		return []Frame{{Kind: Single, Author: encAuthor, Payload: encBody}}
	}

	groupTag := tag()
	chunkSize, count := partLayout(ceiling, len(verb)+len(groupTag), len(encBody))

	frames := make([]Frame, 0, count+1)
	frames = append(frames, Frame{Kind: Start, Count: count, Tag: groupTag, Author: encAuthor})
	for i := 0; i < count; i++ {
		end := min((i+1)*chunkSize, len(encBody))
		frames = append(frames, Frame{
			Kind:    Part,
			Index:   i + 1,
			Tag:     groupTag,
			Payload: encBody[i*chunkSize : end],
		})
	}

	return frames
}

// partLayout sizes continuation chunks so that a whole "verb i tag chunk"
// command stays within ceiling. The index width depends on the frame count,
// so the digit allowance grows until the count fits in it.
func partLayout(ceiling, fixed, bodyLen int) (chunkSize, count int) {
	for digits := 1; ; digits++ {
		chunkSize = max(ceiling-(fixed+3+digits), 1)
		count = (bodyLen + chunkSize - 1) / chunkSize
		if len(strconv.Itoa(count)) <= digits {
			return chunkSize, count
		}
	}
}
