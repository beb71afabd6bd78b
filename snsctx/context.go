package snsctx

import (
	"context"
	"encoding/hex"
	"log/slog"
)

type ctxIndex int

const ctxIndexVerbose ctxIndex = iota

func IsVerbose(ctx context.Context) bool {
	val := ctx.Value(ctxIndexVerbose)
	if val == nil {
		return false
	}
	return val.(bool)
}

func SetVerbose(ctx context.Context, value bool) context.Context {
	return context.WithValue(ctx, ctxIndexVerbose, value)
}

// DumpFrame logs a hex dump of a bus frame at debug level when the context is
// verbose.
func DumpFrame(ctx context.Context, msg string, frame []byte, args ...any) {
	if !IsVerbose(ctx) {
		return
	}
	slog.DebugContext(ctx, msg, append(args, "frame", hex.EncodeToString(frame))...)
}
