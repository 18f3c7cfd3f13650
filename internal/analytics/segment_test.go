package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentQuadrant_FourSegments(t *testing.T) {
	profiles := []StudentProfile{
		{UserID: 1, TotalActions: 100, AvgQuizScore: f64(90)},
		{UserID: 2, TotalActions: 100, AvgQuizScore: f64(10)},
		{UserID: 3, TotalActions: 0, AvgQuizScore: f64(90)},
		{UserID: 4, TotalActions: 0, AvgQuizScore: f64(10)},
	}

	segments := SegmentQuadrant(profiles)

	require.Len(t, segments, 4)
	assert.Equal(t, SegmentHighAchievers, segments[0].ClusterID)
	assert.Equal(t, "High Achievers", segments[0].Label)
	assert.Equal(t, SegmentStrugglingEngagers, segments[1].ClusterID)
	assert.Equal(t, "Struggling Engagers", segments[1].Label)
	assert.Equal(t, SegmentQuietAchievers, segments[2].ClusterID)
	assert.Equal(t, "Quiet Achievers", segments[2].Label)
	assert.Equal(t, SegmentAtRisk, segments[3].ClusterID)
	assert.Equal(t, "At Risk Students", segments[3].Label)
	assert.Equal(t, []float64{100, 90}, segments[0].Profile)
}

func TestSegmentQuadrant_MissingScoreTakesMedian(t *testing.T) {
	profiles := []StudentProfile{
		{UserID: 1, TotalActions: 100, AvgQuizScore: f64(90)},
		{UserID: 2, TotalActions: 100, AvgQuizScore: f64(10)},
		{UserID: 3, TotalActions: 0, AvgQuizScore: f64(90)},
		{UserID: 4, TotalActions: 0, AvgQuizScore: f64(10)},
		{UserID: 5, TotalActions: 50},
	}

	segments := SegmentQuadrant(profiles)

	require.Len(t, segments, 5)
	// 50 actions and a filled score of 50 sit exactly on both thresholds
	assert.Equal(t, SegmentHighAchievers, segments[4].ClusterID)
	assert.Equal(t, []float64{50, 50}, segments[4].Profile)
}

func TestSegmentQuadrant_ConstantInputsAreAtRisk(t *testing.T) {
	profiles := []StudentProfile{
		{UserID: 1, TotalActions: 5},
		{UserID: 2, TotalActions: 5},
	}

	segments := SegmentQuadrant(profiles)

	require.Len(t, segments, 2)
	for _, s := range segments {
		assert.Equal(t, SegmentAtRisk, s.ClusterID)
	}
}

func TestSegmentQuadrant_Empty(t *testing.T) {
	assert.Empty(t, SegmentQuadrant(nil))
}
