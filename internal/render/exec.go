package render

import (
	"context"
	"errors"
	"io/fs"
	"os/exec"
)

// ExecError maps an external tool failure onto the adapter taxonomy: an expired
// deadline is transient, a missing binary or a tool error is fatal.
func ExecError(ctx context.Context, op, bin string, err error, detail string) *AdapterError {
	if ctx.Err() != nil {
		return FromContext(ctx, op, ctx.Err())
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return Fatalf(op, "%s not found: %v", bin, err)
	}
	if detail != "" {
		return &AdapterError{Kind: Fatal, Op: op, Message: detail, Err: err}
	}
	return NewFatal(op, err)
}
