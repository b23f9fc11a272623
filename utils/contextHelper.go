package utils

import (
	"context"

	"github.com/mmdatafocus/franchise_analytics/appctx"
)

func GetFranchiseIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, appctx.ContextKeyFranchiseId)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, appctx.ContextKeyCorrelationId)
}

func GetRunIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, appctx.ContextKeyRunId)
}

func SetFranchiseIdInContext(ctx context.Context, franchiseId string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyFranchiseId, franchiseId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyCorrelationId, correlationId)
}

func SetRunIdInContext(ctx context.Context, runId string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyRunId, runId)
}
