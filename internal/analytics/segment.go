package analytics

// Fixed quadrant segments
const (
	SegmentHighAchievers      = 0
	SegmentStrugglingEngagers = 1
	SegmentQuietAchievers     = 2
	SegmentAtRisk             = 3
)

var segmentLabels = [...]string{
	SegmentHighAchievers:      "High Achievers",
	SegmentStrugglingEngagers: "Struggling Engagers",
	SegmentQuietAchievers:     "Quiet Achievers",
	SegmentAtRisk:             "At Risk Students",
}

const segmentThreshold = 0.5

// SegmentQuadrant places each user in one of four fixed segments by thresholding
// min-max normalized activity and quiz score at 0.5. Missing quiz scores take
// the median of the known ones. Profile holds the two raw inputs.
func SegmentQuadrant(profiles []StudentProfile) []StudentCluster {
	out := make([]StudentCluster, 0, len(profiles))
	if len(profiles) == 0 {
		return out
	}

	var known []float64
	for _, p := range profiles {
		if p.AvgQuizScore != nil {
			known = append(known, *p.AvgQuizScore)
		}
	}
	fill := median(known)

	activity := make([]float64, len(profiles))
	scores := make([]float64, len(profiles))
	for i, p := range profiles {
		activity[i] = float64(p.TotalActions)
		scores[i] = fill
		if p.AvgQuizScore != nil {
			scores[i] = *p.AvgQuizScore
		}
	}
	activityNorm := minMaxScale(activity, 1)
	scoreNorm := minMaxScale(scores, 1)

	for i, p := range profiles {
		id := quadrant(activityNorm[i] >= segmentThreshold, scoreNorm[i] >= segmentThreshold)
		out = append(out, StudentCluster{
			UserID:    p.UserID,
			ClusterID: id,
			Label:     segmentLabels[id],
			Profile:   []float64{activity[i], scores[i]},
		})
	}
	return out
}

func quadrant(active, scoring bool) int {
	switch {
	case active && scoring:
		return SegmentHighAchievers
	case active:
		return SegmentStrugglingEngagers
	case scoring:
		return SegmentQuietAchievers
	default:
		return SegmentAtRisk
	}
}
