package obs

import "context"

type patternKey struct{}

// WithRoutePattern annotates the context with the matched chi route pattern
// so metrics and logs can label by template ("/api/v1/specimens/{accession}")
// instead of the raw path.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, patternKey{}, pattern)
}

// RoutePatternFromContext returns the annotated route pattern, or "".
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	pattern, _ := ctx.Value(patternKey{}).(string)
	return pattern
}
