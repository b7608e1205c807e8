package handlers

import (
	"context"
	"io"
	"log/slog"

	"github.com/jwebster45206/scam-sim/pkg/session"
)

type staticGenerator string

func (g staticGenerator) GenerateReply(context.Context, session.ReplyRequest) (string, error) {
	return string(g), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
