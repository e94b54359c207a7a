package core

import "context"

type contextKey string

const ctxKeySource contextKey = "ingest_source"

// ContextWithSource records who submitted a run, e.g. "web 10.0.0.4" or
// "cli". It is logged with the run and carried on published events.
func ContextWithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, ctxKeySource, source)
}

// SourceFromContext returns the submitter recorded by ContextWithSource.
func SourceFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeySource).(string); ok {
		return v
	}
	return ""
}
