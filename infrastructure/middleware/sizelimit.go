package middleware

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/toolgate/domain/middleware"
	"github.com/felixgeelhaar/toolgate/domain/tool"
)

// SizeLimit returns middleware that fails any invocation whose output
// exceeds the tool's response ceiling. Producers truncate first; this is
// the hard stop for anything that slips past them.
func SizeLimit() middleware.Middleware {
	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, execCtx *middleware.ExecutionContext) (tool.Output, error) {
			out, err := next(ctx, execCtx)
			if err != nil {
				return out, err
			}

			limit := execCtx.MaxResponseSize()
			if limit > 0 && out.Len() > limit {
				return tool.Output{}, fmt.Errorf("%w: %s produced %d bytes, limit is %d",
					tool.ErrSizeLimit, execCtx.Use.Name, out.Len(), limit)
			}
			return out, nil
		}
	}
}
