package relay

import (
	"context"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/srcrelay/internal/codec"
	"github.com/woozymasta/srcrelay/internal/config"
	"github.com/woozymasta/srcrelay/internal/rcon"
	"github.com/woozymasta/srcrelay/internal/routes"
	"github.com/woozymasta/srcrelay/internal/steamid"
)

type fakeNotifier struct {
	posts []Post
	fails int
	mu    sync.Mutex
}

func (n *fakeNotifier) Post(_ context.Context, _ routes.Route, p Post) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.posts = append(n.posts, p)
	if n.fails > 0 {
		n.fails--
		return errors.New("400 bad request")
	}
	return nil
}

type fakeResponder struct {
	reactions []string
	replies   []string
	edits     []string
	mu        sync.Mutex
}

func (r *fakeResponder) React(_ context.Context, _ InboundMessage, emoji string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reactions = append(r.reactions, emoji)
	return nil
}

func (r *fakeResponder) Reply(_ context.Context, _ InboundMessage, text string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, text)
	return "reply-" + strconv.Itoa(len(r.replies)), nil
}

func (r *fakeResponder) EditReply(_ context.Context, _ InboundMessage, replyID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits = append(r.edits, replyID+":"+text)
	return nil
}

type fakeExecutor struct {
	result   func(command string) rcon.Result
	commands []string
	mu       sync.Mutex
}

func (e *fakeExecutor) Execute(_ context.Context, _ routes.Route, command string) rcon.Result {
	e.mu.Lock()
	e.commands = append(e.commands, command)
	e.mu.Unlock()

	if e.result == nil {
		return rcon.Result{}
	}
	return e.result(command)
}

type fixedAvatars string

func (a fixedAvatars) Resolve(context.Context, steamid.SteamID) string { return string(a) }

type harness struct {
	d         *Dispatcher
	notifier  *fakeNotifier
	responder *fakeResponder
	executor  *fakeExecutor
	route     routes.Route
}

func newHarness(t *testing.T, mutate func(*config.Relay)) *harness {
	t.Helper()

	cfg := config.Relay{
		MaxMessageLength: 512,
		CommandPrefix:    "--",
		Commands:         []string{"rcon", "command", "c"},
		AllowedUsers:     []string{"admin-1"},
		ErrorMarkers:     []string{"error"},
		Verb:             "say_relay",
		Ceiling:          500,
		PreviewLength:    1993,
		Blacklist:        []string{"!", "/"},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	route := routes.Route{Name: "sandbox", Host: "10.0.0.1", Port: 27015, ChannelID: "chan-1"}
	table, err := routes.NewTable([]routes.Route{route})
	require.NoError(t, err)

	h := &harness{
		notifier:  &fakeNotifier{},
		responder: &fakeResponder{},
		executor:  &fakeExecutor{},
		route:     route,
	}
	h.d = New(table, WithRetry(h.notifier, LeadingSpaceRetry{}), h.responder, h.executor,
		fixedAvatars("https://avatars.example/a.jpg"), OptionsFromConfig(cfg))

	return h
}

func (h *harness) inbound(body string) InboundMessage {
	return InboundMessage{ID: "1234567890", ChannelID: "chan-1", AuthorID: "user-1", AuthorName: "Alice", Body: body}
}

// joinFrames rebuilds author and body from the frames of one message.
func joinFrames(t *testing.T, frames []codec.Frame) (author, body string) {
	t.Helper()
	require.NotEmpty(t, frames)

	enc := frames[0].Payload
	if frames[0].Kind == codec.Start {
		require.Len(t, frames, frames[0].Count+1)
		var sb strings.Builder
		for i, f := range frames[1:] {
			require.Equal(t, i+1, f.Index)
			require.Equal(t, frames[0].Tag, f.Tag)
			sb.WriteString(f.Payload)
		}
		enc = sb.String()
	}

	a, err := base64.StdEncoding.DecodeString(frames[0].Author)
	require.NoError(t, err)
	b, err := base64.StdEncoding.DecodeString(enc)
	require.NoError(t, err)

	return string(a), string(b)
}

// decodeCommands parses relay commands back into frames.
func decodeCommands(t *testing.T, cmds []string) []codec.Frame {
	t.Helper()

	frames := make([]codec.Frame, 0, len(cmds))
	for _, cmd := range cmds {
		f := strings.Fields(cmd)
		require.Equal(t, "say_relay", f[0])

		switch {
		case len(f) == 3:
			frames = append(frames, codec.Frame{Kind: codec.Single, Author: f[1], Payload: f[2]})
		case len(f) == 5 && f[1] == "0":
			count, err := strconv.Atoi(f[2])
			require.NoError(t, err)
			frames = append(frames, codec.Frame{Kind: codec.Start, Count: count, Tag: f[3], Author: f[4]})
		case len(f) == 4:
			idx, err := strconv.Atoi(f[1])
			require.NoError(t, err)
			frames = append(frames, codec.Frame{Kind: codec.Part, Index: idx, Tag: f[2], Payload: f[3]})
		default:
			t.Fatalf("unexpected command %q", cmd)
		}
	}

	return frames
}

func TestHandleLogLineChat(t *testing.T) {
	h := newHarness(t, nil)

	err := h.d.HandleLogLine(context.Background(), h.route, `"Alice<1><STEAM_0:0:123><>" say "hi @everyone"`)
	require.NoError(t, err)

	require.Len(t, h.notifier.posts, 1)
	assert.Equal(t, Post{
		Username:  "Alice",
		Content:   "hi @ everyone",
		AvatarURL: "https://avatars.example/a.jpg",
	}, h.notifier.posts[0])
}

func TestHandleLogLineDrops(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.d.HandleLogLine(ctx, h.route, `L 01/02/2025 - 10:11:12: "Alice<1><STEAM_0:0:123><>" entered the game`))
	require.NoError(t, h.d.HandleLogLine(ctx, h.route, `"Alice<1><STEAM_0:0:123><>" say "  !rtv"`))
	require.NoError(t, h.d.HandleLogLine(ctx, h.route, "01/02/2025 - 10:11:12: Lua Error: \n[ERROR] x.lua:1: boom"))

	assert.Empty(t, h.notifier.posts)
}

func TestHandleLogLineLuaError(t *testing.T) {
	h := newHarness(t, func(c *config.Relay) { c.ShowLuaErrors = true })

	require.NoError(t, h.d.HandleLogLine(context.Background(), h.route, "01/02/2025 - 10:11:12: Lua Error: \n[ERROR] x.lua:1: boom"))

	require.Len(t, h.notifier.posts, 1)
	assert.Equal(t, LuaErrorUsername, h.notifier.posts[0].Username)
	assert.Equal(t, "Lua Error: \n[ERROR] x.lua:1: boom", h.notifier.posts[0].Content)
}

func TestHandleLogLineRetriesWithLeadingSpace(t *testing.T) {
	h := newHarness(t, nil)
	h.notifier.fails = 1

	require.NoError(t, h.d.HandleLogLine(context.Background(), h.route, `"Bob<2><STEAM_0:1:5><>" say "hello"`))

	require.Len(t, h.notifier.posts, 2)
	assert.Equal(t, "hello", h.notifier.posts[0].Content)
	assert.Equal(t, " hello", h.notifier.posts[1].Content)
}

func TestHandleLogLineGivesUpAfterOneRetry(t *testing.T) {
	h := newHarness(t, nil)
	h.notifier.fails = 5

	err := h.d.HandleLogLine(context.Background(), h.route, `"Bob<2><STEAM_0:1:5><>" say "hello"`)
	require.Error(t, err)
	assert.Len(t, h.notifier.posts, 2)
}

func TestRetryPolicyFor(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.Discord
		wantPosts []string
	}{
		{name: "leading space", cfg: config.Discord{}, wantPosts: []string{"hello", " hello"}},
		{name: "disabled", cfg: config.Discord{NoRetry: true}, wantPosts: []string{"hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &fakeNotifier{fails: 5}
			err := WithRetry(n, RetryPolicyFor(tt.cfg)).Post(context.Background(), routes.Route{Name: "sandbox"}, Post{Content: "hello"})
			require.Error(t, err)

			got := make([]string, 0, len(n.posts))
			for _, p := range n.posts {
				got = append(got, p.Content)
			}
			assert.Equal(t, tt.wantPosts, got)
		})
	}
}

func TestHandleInboundSingleFrame(t *testing.T) {
	h := newHarness(t, nil)

	h.d.HandleInbound(context.Background(), h.inbound("hello"))

	assert.Equal(t, []string{"say_relay QWxpY2U= aGVsbG8="}, h.executor.commands)
	assert.Empty(t, h.responder.reactions)
}

func TestHandleInboundTruncation(t *testing.T) {
	tests := []struct {
		name        string
		length      int
		wantTrimmed bool
	}{
		{name: "at limit", length: 512},
		{name: "over limit", length: 513, wantTrimmed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			body := strings.Repeat("ж", tt.length)

			h.d.HandleInbound(context.Background(), h.inbound(body))

			if tt.wantTrimmed {
				assert.Equal(t, []string{ReactionTrimmed}, h.responder.reactions)
			} else {
				assert.Empty(t, h.responder.reactions)
			}

			author, got := joinFrames(t, decodeCommands(t, h.executor.commands))
			assert.Equal(t, "Alice", author)
			assert.Equal(t, strings.Repeat("ж", 512), got)
		})
	}
}

func TestHandleInboundTrimNoticeDisabled(t *testing.T) {
	h := newHarness(t, func(c *config.Relay) { c.NoTrimNotice = true })

	h.d.HandleInbound(context.Background(), h.inbound(strings.Repeat("a", 600)))
	assert.Empty(t, h.responder.reactions)
}

func TestHandleInboundFailureReaction(t *testing.T) {
	h := newHarness(t, nil)
	h.executor.result = func(string) rcon.Result {
		return rcon.Result{Text: "Unknown command: say_relay ERROR"}
	}

	h.d.HandleInbound(context.Background(), h.inbound("hello"))
	assert.Equal(t, []string{ReactionFailed}, h.responder.reactions)
}

func TestHandleInboundAbortsOnFailedInitiation(t *testing.T) {
	h := newHarness(t, nil)
	h.executor.result = func(string) rcon.Result {
		return rcon.Result{Text: "dial tcp: connection refused", Err: errors.New("connection refused")}
	}

	h.d.HandleInbound(context.Background(), h.inbound(strings.Repeat("a", 500)))

	require.Len(t, h.executor.commands, 1)
	assert.True(t, strings.HasPrefix(h.executor.commands[0], "say_relay 0 "))
	assert.Equal(t, []string{ReactionFailed}, h.responder.reactions)
}

func TestHandleInboundCommand(t *testing.T) {
	h := newHarness(t, nil)
	h.executor.result = func(string) rcon.Result { return rcon.Result{Text: "hostname: Sandbox"} }

	msg := h.inbound(`--command  say "hi" `)
	msg.AuthorID = "admin-1"
	h.d.HandleInbound(context.Background(), msg)

	assert.Equal(t, []string{"say 'hi'"}, h.executor.commands)
	assert.Equal(t, []string{"Executing command : say 'hi'"}, h.responder.replies)
	assert.Equal(t, []string{"reply-1:```hostname: Sandbox```"}, h.responder.edits)
}

func TestHandleInboundCommandNoOutput(t *testing.T) {
	h := newHarness(t, nil)

	msg := h.inbound("--c status")
	msg.AuthorID = "admin-1"
	h.d.HandleInbound(context.Background(), msg)

	assert.Equal(t, []string{"status"}, h.executor.commands)
	assert.Equal(t, []string{"reply-1:" + noResultsText}, h.responder.edits)
}

func TestHandleInboundCommandPreviewTruncated(t *testing.T) {
	h := newHarness(t, func(c *config.Relay) { c.PreviewLength = 5 })
	h.executor.result = func(string) rcon.Result { return rcon.Result{Text: "0123456789"} }

	msg := h.inbound("--rcon status")
	msg.AuthorID = "admin-1"
	h.d.HandleInbound(context.Background(), msg)

	assert.Equal(t, []string{"reply-1:```01234```"}, h.responder.edits)
}

func TestHandleInboundIgnored(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*InboundMessage)
	}{
		{name: "unauthorized command", mutate: func(m *InboundMessage) { m.Body = "--rcon quit" }},
		{name: "bot", mutate: func(m *InboundMessage) { m.Bot = true }},
		{name: "unmapped channel", mutate: func(m *InboundMessage) { m.ChannelID = "other" }},
		{name: "no display name", mutate: func(m *InboundMessage) { m.AuthorName = "" }},
		{name: "empty body", mutate: func(m *InboundMessage) { m.Body = "   " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			msg := h.inbound("hello")
			tt.mutate(&msg)

			h.d.HandleInbound(context.Background(), msg)

			assert.Empty(t, h.executor.commands)
			assert.Empty(t, h.responder.replies)
			assert.Empty(t, h.responder.reactions)
		})
	}
}

func TestHandleInboundUniqueTagsReleased(t *testing.T) {
	h := newHarness(t, func(c *config.Relay) { c.UniqueTags = true })

	h.d.HandleInbound(context.Background(), h.inbound(strings.Repeat("a", 500)))
	h.d.HandleInbound(context.Background(), h.inbound(strings.Repeat("b", 500)))

	frames := decodeCommands(t, h.executor.commands)
	var tags []string
	for _, f := range frames {
		if f.Kind == codec.Start {
			tags = append(tags, f.Tag)
		}
	}
	// sequential messages reuse the plain tag once the first one is done
	assert.Equal(t, []string{"LViA", "LViA"}, tags)
}

func TestTruncate(t *testing.T) {
	s, cut := Truncate("héllo", 5)
	assert.False(t, cut)
	assert.Equal(t, "héllo", s)

	s, cut = Truncate("héllo", 2)
	assert.True(t, cut)
	assert.Equal(t, "hé", s)

	s, cut = Truncate("", 0)
	assert.False(t, cut)
	assert.Empty(t, s)
}

func TestFanout(t *testing.T) {
	ok := &fakeNotifier{}
	bad := &fakeNotifier{fails: 1}

	err := Fanout{ok, bad}.Post(context.Background(), routes.Route{}, Post{Content: "x"})
	require.Error(t, err)
	assert.Len(t, ok.posts, 1)
	assert.Len(t, bad.posts, 1)
}
