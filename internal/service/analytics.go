package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/maysaraadmin/moodle-analytics/internal/analytics"
	"github.com/maysaraadmin/moodle-analytics/internal/domain"
	"github.com/maysaraadmin/moodle-analytics/internal/snapshot"
)

// TableGraph names the forum reply graph, served next to the regular tables
const TableGraph = "graph"

// OptionOverrides replaces configured options for a single request.
// Empty fields keep the configured value.
type OptionOverrides struct {
	Bucket     string
	Weighting  string
	Clustering string
}

// Analysis is one pipeline run bound to the snapshot it ran on
type Analysis struct {
	Snapshot *snapshot.Snapshot
	Options  analytics.Options
	Result   *analytics.Result
}

// AnalyticsService runs the pipeline over the current snapshot
type AnalyticsService struct {
	snapshots SnapshotProvider
	base      analytics.Options
	log       *zap.Logger

	mu      sync.Mutex
	lastKey string
	last    *Analysis
}

// NewAnalyticsService creates an analytics service. base must already be valid.
func NewAnalyticsService(snapshots SnapshotProvider, base analytics.Options, log *zap.Logger) *AnalyticsService {
	return &AnalyticsService{
		snapshots: snapshots,
		base:      base,
		log:       log,
	}
}

// Analyze runs every stage on the current snapshot. Repeated calls against
// the same snapshot and options reuse the previous result.
func (s *AnalyticsService) Analyze(ctx context.Context, overrides OptionOverrides) (*Analysis, error) {
	opts, err := s.options(overrides)
	if err != nil {
		return nil, err
	}

	snap, err := s.snapshots.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	// Windowed metrics are anchored at load time so a snapshot always
	// produces the same tables.
	if opts.Now.IsZero() {
		opts.Now = snap.LoadedAt
	}

	key := analysisKey(snap, opts)
	s.mu.Lock()
	if s.last != nil && s.lastKey == key {
		cached := s.last
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	pipeline, err := analytics.NewPipeline(opts, s.log)
	if err != nil {
		return nil, err
	}
	result, err := pipeline.Run(ctx, snap.Dataset)
	if err != nil {
		return nil, err
	}

	analysis := &Analysis{Snapshot: snap, Options: pipeline.Options(), Result: result}

	s.mu.Lock()
	s.last, s.lastKey = analysis, key
	s.mu.Unlock()

	return analysis, nil
}

// Table runs the analysis and picks one table. The graph is not a table and
// is handled by the caller through Analysis.Result.Graph.
func (s *AnalyticsService) Table(ctx context.Context, name string, overrides OptionOverrides) (*Analysis, analytics.Table, error) {
	if name != TableGraph && !knownTable(name) {
		return nil, analytics.Table{}, fmt.Errorf("%w: table %q", domain.ErrNotFound, name)
	}

	analysis, err := s.Analyze(ctx, overrides)
	if err != nil {
		return nil, analytics.Table{}, err
	}
	if name == TableGraph {
		return analysis, analytics.Table{Name: TableGraph}, nil
	}

	table, ok := analysis.Result.Table(name)
	if !ok {
		return nil, analytics.Table{}, fmt.Errorf("%w: table %q", domain.ErrNotFound, name)
	}
	return analysis, table, nil
}

// Refresh reloads the snapshot and drops the memoized analysis
func (s *AnalyticsService) Refresh(ctx context.Context) (*snapshot.Snapshot, error) {
	s.mu.Lock()
	s.last, s.lastKey = nil, ""
	s.mu.Unlock()

	snap, err := s.snapshots.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh snapshot: %w", err)
	}

	s.log.Info("Snapshot refreshed",
		zap.String("snapshot_id", snap.ID.String()),
		zap.Time("loaded_at", snap.LoadedAt))

	return snap, nil
}

func (s *AnalyticsService) options(overrides OptionOverrides) (analytics.Options, error) {
	opts := s.base

	if overrides.Bucket != "" {
		opts.Bucket = analytics.Bucket(strings.ToLower(overrides.Bucket))
	}
	if overrides.Weighting != "" {
		w, err := analytics.WeightingByName(strings.ToLower(overrides.Weighting))
		if err != nil {
			return analytics.Options{}, err
		}
		opts.Weighting = w
	}
	if overrides.Clustering != "" {
		opts.Clustering = analytics.ClusterStrategy(strings.ToLower(overrides.Clustering))
	}

	if err := opts.Validate(); err != nil {
		return analytics.Options{}, err
	}
	return opts, nil
}

func analysisKey(snap *snapshot.Snapshot, opts analytics.Options) string {
	return fmt.Sprintf("%s|%s|%s|%s|%d", snap.ID, opts.Bucket, opts.Weighting.Name, opts.Clustering, opts.Now.Unix())
}

func knownTable(name string) bool {
	for _, n := range analytics.TableNames {
		if n == name {
			return true
		}
	}
	return false
}
