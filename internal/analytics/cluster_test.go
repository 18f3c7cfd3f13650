package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weekdayProfile(user int64, monday, sunday float64) StudentProfile {
	p := StudentProfile{UserID: user}
	p.WeekdayActions[0] = monday
	p.WeekdayActions[6] = sunday
	return p
}

func TestClusterKMeans_SeparatesWeekdayPatterns(t *testing.T) {
	profiles := []StudentProfile{
		weekdayProfile(1, 10, 0),
		weekdayProfile(2, 11, 0),
		weekdayProfile(3, 9, 1),
		weekdayProfile(4, 0, 12),
		weekdayProfile(5, 1, 10),
		weekdayProfile(6, 0, 11),
	}

	clusters := ClusterKMeans(profiles, 2, 42, 10, 300)

	require.Len(t, clusters, 6)
	assert.Equal(t, 0, clusters[0].ClusterID)
	assert.Equal(t, clusters[0].ClusterID, clusters[1].ClusterID)
	assert.Equal(t, clusters[0].ClusterID, clusters[2].ClusterID)
	assert.Equal(t, 1, clusters[3].ClusterID)
	assert.Equal(t, clusters[3].ClusterID, clusters[4].ClusterID)
	assert.Equal(t, clusters[3].ClusterID, clusters[5].ClusterID)

	require.Len(t, clusters[0].Profile, 7)
	assert.InDelta(t, 10.0, clusters[0].Profile[0], 1e-9)
	assert.InDelta(t, 1.0/3, clusters[0].Profile[6], 1e-9)
	assert.InDelta(t, 11.0, clusters[3].Profile[6], 1e-9)
}

func TestClusterKMeans_DeterministicForSeed(t *testing.T) {
	profiles := []StudentProfile{
		weekdayProfile(1, 3, 4),
		weekdayProfile(2, 8, 1),
		weekdayProfile(3, 2, 9),
		weekdayProfile(4, 7, 7),
		weekdayProfile(5, 0, 2),
		weekdayProfile(6, 5, 5),
		weekdayProfile(7, 9, 0),
	}

	first := ClusterKMeans(profiles, 3, 7, 5, 100)
	second := ClusterKMeans(profiles, 3, 7, 5, 100)

	assert.Equal(t, first, second)
}

func TestClusterKMeans_ClampsKToDistinctProfiles(t *testing.T) {
	profiles := []StudentProfile{
		weekdayProfile(1, 5, 0),
		weekdayProfile(2, 5, 0),
		weekdayProfile(3, 0, 5),
	}

	clusters := ClusterKMeans(profiles, 4, 42, 10, 300)

	require.Len(t, clusters, 3)
	ids := map[int]bool{}
	for _, c := range clusters {
		ids[c.ClusterID] = true
	}
	assert.Len(t, ids, 2)
	assert.Equal(t, clusters[0].ClusterID, clusters[1].ClusterID)
}

func TestClusterKMeans_SingleProfile(t *testing.T) {
	clusters := ClusterKMeans([]StudentProfile{weekdayProfile(1, 3, 3)}, 4, 42, 10, 300)

	require.Len(t, clusters, 1)
	assert.Equal(t, 0, clusters[0].ClusterID)
	assert.Empty(t, clusters[0].Label)
}

func TestClusterKMeans_Empty(t *testing.T) {
	clusters := ClusterKMeans(nil, 4, 42, 10, 300)

	assert.NotNil(t, clusters)
	assert.Empty(t, clusters)
}

func TestCluster_DispatchesOnStrategy(t *testing.T) {
	profiles := []StudentProfile{
		{UserID: 1, TotalActions: 10, AvgQuizScore: f64(90)},
		{UserID: 2, TotalActions: 0, AvgQuizScore: f64(10)},
	}

	opts := testOptions()
	opts.Clustering = StrategyQuadrant
	clusters := Cluster(profiles, opts)

	require.Len(t, clusters, 2)
	assert.Equal(t, "High Achievers", clusters[0].Label)
	assert.Equal(t, "At Risk Students", clusters[1].Label)

	opts.Clustering = StrategyKMeans
	clusters = Cluster(profiles, opts)
	require.Len(t, clusters, 2)
	assert.Empty(t, clusters[0].Label)
}
