package drivetime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/richxcame/parking-drivetime/pkg/geo"
	"github.com/richxcame/parking-drivetime/pkg/httpclient"
	"github.com/richxcame/parking-drivetime/pkg/logger"
	"github.com/richxcame/parking-drivetime/pkg/resilience"
	"github.com/richxcame/parking-drivetime/pkg/tracing"
	"go.uber.org/zap"
)

const (
	// MaxBatchSize is the largest destination count the table endpoint accepts per request
	MaxBatchSize = 25

	DefaultProfile    = "driving"
	DefaultTimeout    = 5 * time.Second
	DefaultBatchDelay = 200 * time.Millisecond

	tracerName = "drivetime"
)

// BatchPolicy controls how destinations are split and paced across table requests
type BatchPolicy struct {
	BatchSize  int
	Timeout    time.Duration
	BatchDelay time.Duration
	// MaxBatches caps remote requests per call; destinations beyond the cap use the heuristic. 0 means no cap.
	MaxBatches int
}

// DefaultBatchPolicy returns 25 destinations per request, 5s per request and 200ms between requests
func DefaultBatchPolicy() BatchPolicy {
	return BatchPolicy{
		BatchSize:  MaxBatchSize,
		Timeout:    DefaultTimeout,
		BatchDelay: DefaultBatchDelay,
	}
}

func (p BatchPolicy) normalized() BatchPolicy {
	if p.BatchSize <= 0 || p.BatchSize > MaxBatchSize {
		p.BatchSize = MaxBatchSize
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	if p.BatchDelay < 0 {
		p.BatchDelay = 0
	}
	if p.MaxBatches < 0 {
		p.MaxBatches = 0
	}
	return p
}

// RoutingConfig configures the routing client
type RoutingConfig struct {
	Profile string
	Policy  BatchPolicy
}

// RoutingClient queries an OSRM-compatible table endpoint and fills every
// destination it could not route with the heuristic estimate.
type RoutingClient struct {
	http      *httpclient.Client
	profile   string
	policy    BatchPolicy
	estimator *Estimator
	breaker   *resilience.CircuitBreaker
	log       *zap.Logger
}

// NewRoutingClient creates a routing client. breaker may be nil.
func NewRoutingClient(client *httpclient.Client, cfg RoutingConfig, estimator *Estimator, breaker *resilience.CircuitBreaker) *RoutingClient {
	if estimator == nil {
		estimator = NewEstimator(nil)
	}
	profile := cfg.Profile
	if profile == "" {
		profile = DefaultProfile
	}
	return &RoutingClient{
		http:      client,
		profile:   profile,
		policy:    cfg.Policy.normalized(),
		estimator: estimator,
		breaker:   breaker,
		log:       logger.Named("drivetime.routing"),
	}
}

// Policy returns the effective batch policy
func (c *RoutingClient) Policy() BatchPolicy {
	return c.policy
}

type tableResponse struct {
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	Durations [][]*float64 `json:"durations"`
}

// FetchBatch returns one result per destination id. Batches run sequentially with
// the policy delay between them and a failed batch does not stop later ones.
// The only errors are invalid input and cancellation of ctx. On cancellation the
// results of the batches that completed are returned with ctx.Err().
func (c *RoutingClient) FetchBatch(ctx context.Context, origin Coordinate, destinations []DestinationPoint) (map[string]Result, error) {
	if err := validateRequest(origin, destinations); err != nil {
		return nil, err
	}

	results := make(map[string]Result, len(destinations))
	batches := splitBatches(destinations, c.policy.BatchSize)

	for i, batch := range batches {
		if c.policy.MaxBatches > 0 && i >= c.policy.MaxBatches {
			c.fill(origin, batch, results, fallbackReasonLimit)
			continue
		}

		if !c.breaker.Allow() {
			routingBatchesTotal.WithLabelValues(batchOutcomeRejected).Inc()
			c.fill(origin, batch, results, fallbackReasonBatch)
			continue
		}

		if i > 0 && c.policy.BatchDelay > 0 {
			timer := time.NewTimer(c.policy.BatchDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return results, ctx.Err()
			case <-timer.C:
			}
		}

		routed, err := c.fetchOne(ctx, i, origin, batch)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return results, ctxErr
		}
		if err != nil {
			c.log.Warn("routing batch failed, using heuristic",
				zap.Int("batch", i),
				zap.Int("size", len(batch)),
				zap.Error(err),
			)
			c.fill(origin, batch, results, fallbackReasonBatch)
			continue
		}

		for id, r := range routed {
			results[id] = r
		}
		c.fill(origin, batch, results, fallbackReasonUnroutable)
	}

	return results, nil
}

// fill sets a heuristic result for every destination in batch that has none yet
func (c *RoutingClient) fill(origin Coordinate, batch []DestinationPoint, results map[string]Result, reason string) {
	for _, d := range batch {
		if _, ok := results[d.ID]; ok {
			continue
		}
		results[d.ID] = c.estimator.analyze(origin, d.Coordinate).Result
		fallbackEstimatesTotal.WithLabelValues(reason).Inc()
	}
}

func (c *RoutingClient) fetchOne(ctx context.Context, index int, origin Coordinate, batch []DestinationPoint) (map[string]Result, error) {
	start := time.Now()
	defer func() { routingBatchDuration.Observe(time.Since(start).Seconds()) }()

	batchCtx, cancel := context.WithTimeout(ctx, c.policy.Timeout)
	defer cancel()

	var routed map[string]Result
	err := tracing.TraceExternalAPI(batchCtx, tracerName, "routing", "table", func(ctx context.Context) error {
		out, err := c.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
			return c.requestTable(ctx, origin, batch)
		})
		if err != nil {
			return err
		}
		routed = out.(map[string]Result)
		return nil
	},
		tracing.BatchIndexKey.Int(index),
		tracing.BatchSizeKey.Int(len(batch)),
	)

	routingBatchesTotal.WithLabelValues(batchOutcome(err)).Inc()
	return routed, err
}

func batchOutcome(err error) string {
	switch {
	case err == nil:
		return batchOutcomeOK
	case errors.Is(err, resilience.ErrCircuitOpen):
		return batchOutcomeRejected
	case httpclient.IsTimeout(err):
		return batchOutcomeTimeout
	default:
		return batchOutcomeFailed
	}
}

func (c *RoutingClient) requestTable(ctx context.Context, origin Coordinate, batch []DestinationPoint) (map[string]Result, error) {
	body, err := c.http.Get(ctx, c.tablePath(origin, batch), nil)
	if err != nil {
		return nil, err
	}

	var resp tableResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode table response: %w", err)
	}
	if resp.Code != "Ok" {
		return nil, fmt.Errorf("table request returned %q: %s", resp.Code, resp.Message)
	}
	if len(resp.Durations) == 0 {
		return nil, fmt.Errorf("table response has no duration row for %d destinations", len(batch))
	}

	// A short row leaves the trailing destinations unset; fill covers them.
	row := resp.Durations[0]
	if len(row) != len(batch) {
		c.log.Warn("table row length mismatch",
			zap.Int("expected", len(batch)),
			zap.Int("got", len(row)),
		)
	}
	out := make(map[string]Result, len(batch))
	for i, d := range batch {
		if i >= len(row) {
			break
		}
		seconds := row[i]
		if seconds == nil || *seconds < 0 || math.IsNaN(*seconds) {
			continue
		}
		out[d.ID] = Result{
			DistanceKm:  geo.DistanceKm(origin, d.Coordinate),
			DurationMin: int(math.Round(*seconds / 60)),
		}
	}
	return out, nil
}

// tablePath builds /table/v1/{profile}/{lng,lat;...} with the origin as the only source
func (c *RoutingClient) tablePath(origin Coordinate, batch []DestinationPoint) string {
	coords := make([]string, 0, len(batch)+1)
	coords = append(coords, formatLngLat(origin))
	indexes := make([]string, 0, len(batch))
	for i, d := range batch {
		coords = append(coords, formatLngLat(d.Coordinate))
		indexes = append(indexes, strconv.Itoa(i+1))
	}
	return fmt.Sprintf("/table/v1/%s/%s?sources=0&destinations=%s&annotations=duration",
		c.profile, strings.Join(coords, ";"), strings.Join(indexes, ";"))
}

func formatLngLat(c Coordinate) string {
	return strconv.FormatFloat(c.Lng, 'f', 6, 64) + "," + strconv.FormatFloat(c.Lat, 'f', 6, 64)
}

func splitBatches(destinations []DestinationPoint, size int) [][]DestinationPoint {
	batches := make([][]DestinationPoint, 0, (len(destinations)+size-1)/size)
	for start := 0; start < len(destinations); start += size {
		end := start + size
		if end > len(destinations) {
			end = len(destinations)
		}
		batches = append(batches, destinations[start:end])
	}
	return batches
}

// validateRequest rejects bad coordinates and empty or duplicate destination ids
func validateRequest(origin Coordinate, destinations []DestinationPoint) error {
	if err := geo.ValidateCoordinate(origin); err != nil {
		return fmt.Errorf("origin: %w", err)
	}
	seen := make(map[string]struct{}, len(destinations))
	for i, d := range destinations {
		if d.ID == "" {
			return fmt.Errorf("%w: destination %d has no id", ErrInvalidDestinations, i)
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidDestinations, d.ID)
		}
		seen[d.ID] = struct{}{}
		if err := geo.ValidateCoordinate(d.Coordinate); err != nil {
			return fmt.Errorf("destination %q: %w", d.ID, err)
		}
	}
	return nil
}
