package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/gnolang/moveaudit/internal"
	"github.com/gnolang/moveaudit/internal/orchestrator"
	tt "github.com/gnolang/moveaudit/internal/types"
)

// CachedAuditor serves repeated audits of unchanged sources from a cache.
type CachedAuditor struct {
	auditor *orchestrator.Auditor
	cache   *internal.Cache
	logger  *zap.Logger
}

// WithCache wraps a so that complete reports are stored in the cache at
// cacheDir.
func WithCache(a *orchestrator.Auditor, cacheDir string, logger *zap.Logger) (*CachedAuditor, error) {
	cache, err := internal.NewCache(cacheDir)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedAuditor{auditor: a, cache: cache, logger: logger}, nil
}

// Audit returns the cached report for an unchanged source, auditing it
// otherwise. Partial reports are never cached.
func (c *CachedAuditor) Audit(ctx context.Context, filename string, source []byte) (*tt.Report, error) {
	fingerprint := c.auditor.Engine().Fingerprint()
	if report, ok := c.cache.Get(filename, source, fingerprint); ok {
		c.logger.Debug("cache hit", zap.String("file", filename))
		return report, nil
	}

	report, err := c.auditor.Audit(ctx, filename, source)
	if err != nil {
		return nil, err
	}
	if !report.Partial {
		if err := c.cache.Set(filename, source, fingerprint, report); err != nil {
			c.logger.Warn("failed to cache report", zap.String("file", filename), zap.Error(err))
		}
	}
	return report, nil
}
