package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, -1, Pass(ctx))
	assert.Empty(t, ScreenID(ctx))
	assert.Empty(t, Actor(ctx))

	ctx = WithPass(ctx, 12)
	ctx = WithScreenID(ctx, "weather1")
	ctx = WithActor(ctx, "admin")

	assert.Equal(t, 12, Pass(ctx))
	assert.Equal(t, "weather1", ScreenID(ctx))
	assert.Equal(t, "admin", Actor(ctx))
}

func TestCorrelationHandler_InjectsContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewTextHandler(&buf, nil)))

	ctx := WithScreenID(WithPass(context.Background(), 3), "date")
	logger.InfoContext(ctx, "presenting screen")

	out := buf.String()
	assert.Contains(t, out, "pass=3")
	assert.Contains(t, out, "screen_id=date")
	assert.NotContains(t, out, "actor=")
}

func TestCorrelationHandler_PassZeroIsStillLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewTextHandler(&buf, nil)))

	logger.InfoContext(WithPass(context.Background(), 0), "first pass")
	assert.Contains(t, buf.String(), "pass=0")
}
