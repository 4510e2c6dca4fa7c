package fake

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/srcrelay/internal/logline"
	"github.com/woozymasta/srcrelay/internal/routes"
)

type collector struct {
	lines  []string
	routes []string
}

func (c *collector) HandleLogLine(_ context.Context, route routes.Route, line string) error {
	c.lines = append(c.lines, line)
	c.routes = append(c.routes, route.Name)
	return nil
}

func TestLinesClassify(t *testing.T) {
	g := NewGenerator(42)
	g.now = func() time.Time { return time.Date(2025, 1, 2, 10, 11, 12, 0, time.UTC) }

	c := logline.Classifier{SurfaceErrors: true}
	kinds := map[logline.Kind]int{}

	for range 500 {
		line := g.Line()
		require.Contains(t, line, "01/02/2025 - 10:11:12: ")

		ev := c.Classify(line)
		kinds[ev.Kind]++

		if ev.Kind == logline.Custom {
			assert.NotEqual(t, logline.UnreadableBody, ev.Body)
		}
	}

	assert.Positive(t, kinds[logline.Chat])
	assert.Positive(t, kinds[logline.Custom])
	assert.Positive(t, kinds[logline.Error])
	assert.Positive(t, kinds[logline.Unrecognized])
}

func TestGenerate(t *testing.T) {
	table, err := routes.NewTable([]routes.Route{
		{Name: "a", Host: "10.0.0.1", Port: 27015, ChannelID: "1"},
		{Name: "b", Host: "10.0.0.2", Port: 27015, ChannelID: "2"},
	})
	require.NoError(t, err)

	c := &collector{}
	Generate(context.Background(), table, c, 50)

	assert.Len(t, c.lines, 50)
	for _, name := range c.routes {
		assert.Contains(t, []string{"a", "b"}, name)
	}
}

func TestGenerateStopsOnCancel(t *testing.T) {
	table, err := routes.NewTable([]routes.Route{{Name: "a", Host: "10.0.0.1", Port: 27015, ChannelID: "1"}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &collector{}
	Generate(ctx, table, c, 10)
	assert.Empty(t, c.lines)
}
