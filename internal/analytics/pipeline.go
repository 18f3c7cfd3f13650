package analytics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/maysaraadmin/moodle-analytics/internal/domain"
)

// Result table names, in output order
const (
	TableEngagement        = "engagement"
	TableStudentEngagement = "student_engagement"
	TableQuiz              = "quiz"
	TableQuizSummary       = "quiz_summary"
	TableForum             = "forum"
	TableDiscussions       = "discussions"
	TableCentrality        = "centrality"
	TableRisk              = "risk"
	TableProfiles          = "profiles"
	TableClusters          = "clusters"
	TableCourses           = "courses"
	TableHourly            = "hourly"
	TableDaily             = "daily"
	TableWeekly            = "weekly"
	TableComponents        = "components"
	TableHeatmap           = "heatmap"
	TableEngagementLevels  = "engagement_levels"
	TableOverview          = "overview"
)

// TableNames lists every table a Result exposes, in order
var TableNames = []string{
	TableEngagement, TableStudentEngagement, TableQuiz, TableQuizSummary,
	TableForum, TableDiscussions, TableCentrality, TableRisk, TableProfiles,
	TableClusters, TableCourses, TableHourly, TableDaily, TableWeekly,
	TableComponents, TableHeatmap, TableEngagementLevels, TableOverview,
}

// Table is a named result set. Rows is always a slice of structs.
type Table struct {
	Name string `json:"name" yaml:"name"`
	Rows any    `json:"rows" yaml:"rows"`
}

// Result holds every table produced by one pipeline run
type Result struct {
	Events            []Event
	Engagement        []EngagementScore
	StudentEngagement []StudentEngagement
	Quiz              []QuizResult
	QuizSummary       []StudentQuizSummary
	Forum             []ForumResult
	Discussions       []DiscussionSummary
	Graph             *ForumGraph
	Centrality        []NodeCentrality
	Risk              []RiskAssessment
	Profiles          []StudentProfile
	Clusters          []StudentCluster
	Courses           []CourseSummary
	Patterns          Patterns
	EngagementLevels  []EngagementLevel
	Overview          Overview
	Report            *Report
}

// Tables returns the named result tables in a stable order
func (r *Result) Tables() []Table {
	return []Table{
		{TableEngagement, r.Engagement},
		{TableStudentEngagement, r.StudentEngagement},
		{TableQuiz, r.Quiz},
		{TableQuizSummary, r.QuizSummary},
		{TableForum, r.Forum},
		{TableDiscussions, r.Discussions},
		{TableCentrality, r.Centrality},
		{TableRisk, r.Risk},
		{TableProfiles, r.Profiles},
		{TableClusters, r.Clusters},
		{TableCourses, r.Courses},
		{TableHourly, r.Patterns.Hourly},
		{TableDaily, r.Patterns.Daily},
		{TableWeekly, r.Patterns.Weekly},
		{TableComponents, r.Patterns.Components},
		{TableHeatmap, r.Patterns.Heatmap},
		{TableEngagementLevels, r.EngagementLevels},
		{TableOverview, []Overview{r.Overview}},
	}
}

// Table looks a single table up by name
func (r *Result) Table(name string) (Table, bool) {
	for _, t := range r.Tables() {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Pipeline runs every analytics stage over a dataset
type Pipeline struct {
	opts Options
	log  *zap.Logger
}

// NewPipeline validates opts and creates a pipeline
func NewPipeline(opts Options, log *zap.Logger) (*Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{opts: opts, log: log}, nil
}

// Options returns the validated options
func (p *Pipeline) Options() Options {
	return p.opts
}

// Run executes the stages leaf to root. The context is checked between
// stages only; a cancelled run returns no partial result.
func (p *Pipeline) Run(ctx context.Context, ds *domain.Dataset) (*Result, error) {
	if ds == nil {
		ds = &domain.Dataset{}
	}
	opts := p.opts
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	opts.Now = opts.Now.In(opts.Location)

	start := time.Now()
	res := &Result{Report: NewReport()}
	rep := res.Report

	stages := []struct {
		name string
		run  func()
	}{
		{stageClean, func() {
			res.Events = Clean(ds.Events, opts, rep)
		}},
		{stageEngagement, func() {
			res.Engagement = BuildEngagement(res.Events, opts, rep)
			res.StudentEngagement = SummarizeStudents(res.Engagement)
		}},
		{stageQuiz, func() {
			res.Quiz = ProcessQuiz(ds.Quizzes, opts, rep)
			res.QuizSummary = SummarizeQuizzes(res.Quiz)
		}},
		{stageForum, func() {
			res.Forum, res.Graph = ProcessForum(ds.Posts, rep)
			res.Discussions = SummarizeDiscussions(res.Forum)
			res.Centrality = res.Graph.Centrality()
		}},
		{stageRisk, func() {
			res.Risk = AssessRisk(res.Engagement, res.Quiz, rep)
			res.Profiles = BuildProfiles(res.Events, res.Quiz, res.Forum, opts)
			res.Clusters = Cluster(res.Profiles, opts)
		}},
		{stageCourse, func() {
			res.Courses = AggregateCourses(res.Events, ds.Completions, ds.Courses, opts, rep)
		}},
		{"patterns", func() {
			res.Patterns = ActivityPatterns(res.Events)
			res.EngagementLevels = EngagementLevels(res.Events)
			res.Overview = BuildOverview(res.Events, res.Quiz, res.Forum, len(ds.Users), len(ds.Courses), opts)
		}},
	}

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			p.log.Warn("Analysis cancelled before stage",
				zap.String("stage", stage.name),
				zap.Error(err))
			return nil, fmt.Errorf("analysis cancelled before %s stage: %w", stage.name, err)
		}
		stage.run()
	}

	rep.Log(p.log)
	p.log.Info("Analysis completed",
		zap.Int("events", len(res.Events)),
		zap.Int("engagement_rows", len(res.Engagement)),
		zap.Int("students", len(res.Profiles)),
		zap.Int("courses", len(res.Courses)),
		zap.Int("anomalies", rep.Total()),
		zap.Duration("duration", time.Since(start)))

	return res, nil
}
