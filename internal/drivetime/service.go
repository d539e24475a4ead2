package drivetime

import (
	"context"
	"errors"

	apperrors "github.com/richxcame/parking-drivetime/pkg/errors"
	"github.com/richxcame/parking-drivetime/pkg/logger"
	"github.com/richxcame/parking-drivetime/pkg/tracing"
	"go.uber.org/zap"
)

// Service is the entry point for driving-time lookups. It answers from the cache
// when it can, asks the router for the rest and falls back to the heuristic when
// the router fails, so every requested id always gets a result.
type Service struct {
	estimator *Estimator
	router    Router
	cache     *Cache
}

// NewService creates a service. A nil router answers every miss with the heuristic.
func NewService(estimator *Estimator, router Router, cache *Cache) *Service {
	if estimator == nil {
		estimator = NewEstimator(nil)
	}
	if cache == nil {
		cache = NewCache(nil, DefaultTTL)
	}
	return &Service{estimator: estimator, router: router, cache: cache}
}

// Cache returns the underlying cache
func (s *Service) Cache() *Cache {
	return s.cache
}

// EstimateSingle returns the heuristic estimate for one pair. No I/O.
func (s *Service) EstimateSingle(origin, dest Coordinate) (Result, error) {
	return s.estimator.Estimate(origin, dest)
}

// Analyze returns the heuristic estimate with its breakdown
func (s *Service) Analyze(origin, dest Coordinate) (*Estimation, error) {
	return s.estimator.Analyze(origin, dest)
}

// ResolveMany returns one result per destination id. Only invalid input is an error.
func (s *Service) ResolveMany(ctx context.Context, origin Coordinate, destinations []DestinationPoint) (map[string]Result, error) {
	if err := validateRequest(origin, destinations); err != nil {
		return nil, err
	}

	key := OriginKey(origin)
	ctx, span := tracing.StartSpan(ctx, tracerName, "drivetime.ResolveMany")
	defer span.End()
	span.SetAttributes(
		tracing.OriginKeyKey.String(key),
		tracing.DestinationCountKey.Int(len(destinations)),
	)
	span.SetAttributes(tracing.LocationAttributes(origin.Lat, origin.Lng)...)

	results := make(map[string]Result, len(destinations))
	missing := make([]DestinationPoint, 0, len(destinations))

	entry, found := s.cache.Get(key)
	for _, d := range destinations {
		if found {
			if r, ok := entry.Data[d.ID]; ok {
				results[d.ID] = r
				continue
			}
		}
		missing = append(missing, d)
	}

	lookup := lookupPartial
	switch {
	case len(missing) == 0:
		lookup = lookupHit
	case len(results) == 0:
		lookup = lookupMiss
	}
	cacheLookupsTotal.WithLabelValues(lookup).Inc()
	span.SetAttributes(tracing.CacheResultKey.String(lookup))

	if len(missing) == 0 {
		span.SetAttributes(tracing.ResolvedCountKey.Int(len(results)))
		return results, nil
	}

	fetched, err := s.fetch(ctx, key, origin, missing)
	for id, r := range fetched {
		results[id] = r
	}
	if err != nil {
		fallbacks := 0
		for _, d := range missing {
			if _, ok := results[d.ID]; !ok {
				results[d.ID] = s.estimator.analyze(origin, d.Coordinate).Result
				fallbacks++
			}
		}
		fallbackEstimatesTotal.WithLabelValues(fallbackReasonRouter).Add(float64(fallbacks))
		tracing.AddSpanEvent(ctx, "router fallback", tracing.DestinationCountKey.Int(fallbacks))
	}

	// Persist even if the caller has gone away; fetched only holds completed batches.
	if len(fetched) > 0 {
		s.persist(ctx, key, fetched)
	}

	span.SetAttributes(tracing.ResolvedCountKey.Int(len(results)))
	return results, nil
}

func (s *Service) persist(ctx context.Context, key string, fetched map[string]Result) {
	if err := s.cache.Merge(context.WithoutCancel(ctx), key, fetched); err != nil {
		logger.WithContext(ctx).Error("failed to persist driving-time cache",
			zap.String("origin_key", key),
			zap.Error(err),
		)
	}
}

// fetch asks the router for missing. Without a router it uses the heuristic.
// When ctx is cancelled mid-request the results of completed batches are
// returned alongside the error; other failures return no results.
func (s *Service) fetch(ctx context.Context, key string, origin Coordinate, missing []DestinationPoint) (map[string]Result, error) {
	if s.router == nil {
		out := make(map[string]Result, len(missing))
		for _, d := range missing {
			out[d.ID] = s.estimator.analyze(origin, d.Coordinate).Result
		}
		fallbackEstimatesTotal.WithLabelValues(fallbackReasonDisabled).Add(float64(len(missing)))
		return out, nil
	}

	fetched, err := s.router.FetchBatch(ctx, origin, missing)
	if err == nil {
		for _, d := range missing {
			if _, ok := fetched[d.ID]; !ok {
				err = errors.New("router returned an incomplete result set")
				break
			}
		}
	}
	if err != nil {
		log := logger.WithContext(ctx)
		if ctx.Err() != nil {
			log.Info("resolve cancelled, answering with heuristic",
				zap.String("origin_key", key),
				zap.Int("completed", len(fetched)),
				zap.Error(err),
			)
			return fetched, err
		}
		log.Warn("router failed, answering with heuristic",
			zap.String("origin_key", key),
			zap.Int("destinations", len(missing)),
			zap.Error(err),
		)
		apperrors.CaptureErrorWithContext(ctx, err, map[string]interface{}{
			"origin_key":   key,
			"destinations": len(missing),
		})
		return nil, err
	}
	return fetched, nil
}

// Invalidate drops the cached entry for an origin key
func (s *Service) Invalidate(ctx context.Context, originKey string) (bool, error) {
	return s.cache.Invalidate(ctx, originKey)
}

// Cleanup removes expired cache entries
func (s *Service) Cleanup(ctx context.Context) (int, error) {
	return s.cache.Cleanup(ctx)
}
