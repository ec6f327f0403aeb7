package shared

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlashNotifierQueuesOnSession(t *testing.T) {
	sess := newSession("s")
	ctx := ContextWithSession(context.Background(), sess)

	FlashNotifier{}.Notify(ctx, "error", "Erro", "falhou")
	flashes := sess.PopFlashes()
	require.Len(t, flashes, 1)
	assert.Equal(t, FlashMessage{Kind: "error", Title: "Erro", Message: "falhou"}, flashes[0])

	FlashNotifier{}.Notify(context.Background(), "success", "Ok", "no session")
}

func TestFlashNotifierFallsBackWithoutSession(t *testing.T) {
	var buf bytes.Buffer
	n := FlashNotifier{Fallback: LogNotifier{Logger: slog.New(slog.NewTextHandler(&buf, nil))}}

	n.Notify(context.Background(), "error", "Erro ao carregar leads", "upstream down")
	assert.Contains(t, buf.String(), "upstream down")
}

func TestLogNotifierLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	n := LogNotifier{Logger: logger}

	n.Notify(context.Background(), "error", "Erro ao carregar leads", "boom")
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "boom")

	buf.Reset()
	n.Notify(context.Background(), "success", "Status atualizado", "ok")
	assert.Contains(t, buf.String(), "level=INFO")
}

func TestUserSafeMessage(t *testing.T) {
	assert.Equal(t, "", UserSafeMessage(nil))
	assert.Equal(t, "lead not found", UserSafeMessage(wrapErr("toggle lead x: leads: lead not found")))
}

type stringErr string

func (e stringErr) Error() string { return string(e) }

func wrapErr(s string) error { return stringErr(s) }
