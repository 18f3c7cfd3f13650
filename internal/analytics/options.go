package analytics

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidOptions is returned when pipeline options cannot be used
var ErrInvalidOptions = errors.New("invalid analytics options")

// Bucket is the time window engagement is grouped by
type Bucket string

const (
	BucketHour  Bucket = "hour"
	BucketDay   Bucket = "day"
	BucketWeek  Bucket = "week"
	BucketMonth Bucket = "month"
)

// Weighting holds the coefficients of the engagement score
type Weighting struct {
	Name        string  `json:"name" yaml:"name"`
	Actions     float64 `json:"actions" yaml:"actions"`
	Submissions float64 `json:"submissions" yaml:"submissions"`
	Minutes     float64 `json:"minutes" yaml:"minutes"`
}

var (
	// StandardWeighting is the canonical engagement weighting
	StandardWeighting = Weighting{Name: "standard", Actions: 0.3, Submissions: 0.4, Minutes: 0.3}

	// ActivityWeighting favours raw action volume over time on task
	ActivityWeighting = Weighting{Name: "activity", Actions: 0.4, Submissions: 0.4, Minutes: 0.2}
)

// WeightingByName resolves a named weighting
func WeightingByName(name string) (Weighting, error) {
	switch name {
	case "", StandardWeighting.Name:
		return StandardWeighting, nil
	case ActivityWeighting.Name:
		return ActivityWeighting, nil
	}
	return Weighting{}, fmt.Errorf("%w: unknown weighting %q (supported: standard, activity)", ErrInvalidOptions, name)
}

// ClusterStrategy selects how students are grouped
type ClusterStrategy string

const (
	StrategyKMeans   ClusterStrategy = "kmeans"
	StrategyQuadrant ClusterStrategy = "quadrant"
)

// Options configures a pipeline run
type Options struct {
	Location                *time.Location
	Bucket                  Bucket
	Weighting               Weighting
	CountCreateAsSubmission bool
	MinutesPerAction        float64
	PassGrade               float64

	Clustering ClusterStrategy
	K          int
	Seed       int64
	NInit      int
	MaxIter    int

	// Now anchors windowed metrics such as the 30 day engagement rate
	Now          time.Time
	ActiveWindow time.Duration
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		Location:         time.UTC,
		Bucket:           BucketDay,
		Weighting:        StandardWeighting,
		MinutesPerAction: 2,
		PassGrade:        50,
		Clustering:       StrategyKMeans,
		K:                4,
		Seed:             42,
		NInit:            10,
		MaxIter:          300,
		ActiveWindow:     30 * 24 * time.Hour,
	}
}

// Validate checks the options and fills in zero values that have a safe default
func (o *Options) Validate() error {
	if o.Location == nil {
		o.Location = time.UTC
	}

	switch o.Bucket {
	case BucketHour, BucketDay, BucketWeek, BucketMonth:
	case "":
		o.Bucket = BucketDay
	default:
		return fmt.Errorf("%w: unsupported bucket %q (supported: hour, day, week, month)", ErrInvalidOptions, o.Bucket)
	}

	if o.Weighting == (Weighting{}) {
		o.Weighting = StandardWeighting
	}

	switch o.Clustering {
	case StrategyKMeans, StrategyQuadrant:
	case "":
		o.Clustering = StrategyKMeans
	default:
		return fmt.Errorf("%w: unsupported clustering %q (supported: kmeans, quadrant)", ErrInvalidOptions, o.Clustering)
	}

	if o.MinutesPerAction < 0 {
		return fmt.Errorf("%w: minutes per action must not be negative", ErrInvalidOptions)
	}
	if o.PassGrade < 0 || o.PassGrade > 100 {
		return fmt.Errorf("%w: pass grade must be within [0,100], got %v", ErrInvalidOptions, o.PassGrade)
	}
	if o.K <= 0 {
		return fmt.Errorf("%w: k must be positive, got %d", ErrInvalidOptions, o.K)
	}
	if o.NInit <= 0 {
		o.NInit = 1
	}
	if o.MaxIter <= 0 {
		o.MaxIter = 300
	}
	if o.ActiveWindow <= 0 {
		o.ActiveWindow = 30 * 24 * time.Hour
	}

	return nil
}
