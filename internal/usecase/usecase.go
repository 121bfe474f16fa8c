package usecase

import "context"

type MatcherUC interface {
	Bootstrap(ctx context.Context)
	BuildIndex(ctx context.Context) (*BuildIndexRes, error)
	Search(ctx context.Context, req *SearchReq) (*SearchRes, error)
	Health(ctx context.Context) *HealthRes
}
