package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "search", "req-1")
	pctx, parse := StartChildSpan(ctx, "parse")
	parse.SetAttr("query", "blood")
	parse.End()
	_, inner := StartChildSpan(pctx, "lex")
	inner.End()
	_, exec := StartChildSpan(ctx, "execute")
	exec.End()
	root.End()

	assert.Same(t, root, FromContext(ctx))
	require.Len(t, root.Children(), 2)
	assert.Equal(t, "req-1", root.Children()[1].TraceID)
	assert.Len(t, parse.Children(), 1)

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	root.Log(context.Background(), log, slog.LevelInfo)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "span=search")
	assert.Contains(t, lines[1], "query=blood")
	assert.Contains(t, lines[2], "depth=2")

	buf.Reset()
	root.Log(context.Background(), log, slog.LevelDebug)
	assert.Empty(t, buf.String(), "below handler level")
}

func TestDetachedChild(t *testing.T) {
	_, span := StartChildSpan(context.Background(), "orphan")
	span.End()
	assert.Empty(t, span.TraceID)
	assert.Nil(t, FromContext(context.Background()))
}
