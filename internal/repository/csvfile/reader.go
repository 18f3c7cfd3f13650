package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/maysaraadmin/moodle-analytics/internal/domain"
)

// Export file names inside the data directory
const (
	EventsFile      = "events.csv"
	QuizzesFile     = "quizzes.csv"
	PostsFile       = "posts.csv"
	CompletionsFile = "completions.csv"
	CoursesFile     = "courses.csv"
	UsersFile       = "users.csv"
)

// Reader loads a dataset from a directory of CSV exports. Headers use the
// same column names as the Moodle reader's aliases. A missing file yields an
// empty table; a file missing a required column is rejected.
type Reader struct {
	dir string
	log *zap.Logger
}

// NewReader creates a reader over dir
func NewReader(dir string, log *zap.Logger) *Reader {
	return &Reader{dir: dir, log: log}
}

// Load reads every table file
func (r *Reader) Load(ctx context.Context) (*domain.Dataset, error) {
	info, err := os.Stat(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV directory: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrUpstreamUnavailable, r.dir)
	}

	ds := &domain.Dataset{
		Events:      []domain.ActivityEvent{},
		Quizzes:     []domain.QuizAttempt{},
		Posts:       []domain.ForumPost{},
		Completions: []domain.CompletionRecord{},
		Courses:     []domain.Course{},
		Users:       []domain.User{},
	}

	steps := []struct {
		file     string
		required []string
		decode   func(rec *record)
	}{
		{EventsFile, []string{"user_id", "course_id", "timestamp", "event_name", "component"}, func(rec *record) {
			ds.Events = append(ds.Events, domain.ActivityEvent{
				EventID:   rec.int64("event_id"),
				UserID:    rec.int64("user_id"),
				CourseID:  rec.str("course_id"),
				Timestamp: rec.softInt64("timestamp"),
				EventName: rec.str("event_name"),
				Component: rec.str("component"),
			})
		}},
		{QuizzesFile, []string{"attempt_id", "user_id", "quiz_id", "course_id", "start_time", "finish_time", "raw_grade", "max_grade"}, func(rec *record) {
			ds.Quizzes = append(ds.Quizzes, domain.QuizAttempt{
				AttemptID:  rec.int64("attempt_id"),
				UserID:     rec.int64("user_id"),
				QuizID:     rec.str("quiz_id"),
				CourseID:   rec.str("course_id"),
				StartTime:  rec.optInt64("start_time"),
				FinishTime: rec.optInt64("finish_time"),
				RawGrade:   rec.optFloat("raw_grade"),
				MaxGrade:   rec.float("max_grade"),
				Ordinal:    rec.int("attempt_ordinal"),
			})
		}},
		{PostsFile, []string{"post_id", "user_id", "course_id", "discussion_id", "parent_id", "created_time"}, func(rec *record) {
			ds.Posts = append(ds.Posts, domain.ForumPost{
				PostID:       rec.int64("post_id"),
				UserID:       rec.int64("user_id"),
				CourseID:     rec.str("course_id"),
				DiscussionID: rec.int64("discussion_id"),
				ParentID:     rec.int64("parent_id"),
				Created:      rec.int64("created_time"),
				Modified:     rec.int64("modified_time"),
				Message:      rec.str("message"),
			})
		}},
		{CompletionsFile, []string{"user_id", "course_id"}, func(rec *record) {
			ds.Completions = append(ds.Completions, domain.CompletionRecord{
				UserID:               rec.int64("user_id"),
				CourseID:             rec.str("course_id"),
				Enrolled:             rec.optInt64("enrolled_time"),
				Started:              rec.optInt64("started_time"),
				Completed:            rec.optInt64("completed_time"),
				CompletionPercentage: rec.optFloat("completion_percentage"),
			})
		}},
		{CoursesFile, []string{"course_id"}, func(rec *record) {
			ds.Courses = append(ds.Courses, domain.Course{
				CourseID:      rec.str("course_id"),
				FullName:      rec.str("fullname"),
				ShortName:     rec.str("shortname"),
				Visible:       rec.bool("visible"),
				EnrolledUsers: rec.int("enrolled_users"),
			})
		}},
		{UsersFile, []string{"user_id"}, func(rec *record) {
			ds.Users = append(ds.Users, domain.User{
				UserID:     rec.int64("user_id"),
				Username:   rec.str("username"),
				FirstName:  rec.str("firstname"),
				LastName:   rec.str("lastname"),
				Email:      rec.str("email"),
				City:       rec.str("city"),
				Country:    rec.str("country"),
				LastAccess: rec.optInt64("lastaccess"),
			})
		}},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := r.readFile(step.file, step.required, step.decode)
		if err != nil {
			return nil, err
		}
		r.log.Debug("Loaded CSV table", zap.String("file", step.file), zap.Int("rows", rows))
	}
	assignEventIDs(ds.Events)

	r.log.Info("Loaded CSV dataset",
		zap.String("dir", r.dir),
		zap.Int("events", len(ds.Events)),
		zap.Int("quizzes", len(ds.Quizzes)),
		zap.Int("posts", len(ds.Posts)),
		zap.Int("completions", len(ds.Completions)),
		zap.Int("courses", len(ds.Courses)),
		zap.Int("users", len(ds.Users)))

	return ds, nil
}

func (r *Reader) readFile(name string, required []string, decode func(rec *record)) (int, error) {
	path := filepath.Join(r.dir, name)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		r.log.Warn("CSV table missing, treating as empty", zap.String("file", path))
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w: %w", path, domain.ErrUpstreamUnavailable, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			r.log.Error("Failed to close CSV file", zap.String("file", path), zap.Error(err))
		}
	}()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %s: failed to read header: %v", domain.ErrMalformedSchema, name, err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	var missing []string
	for _, col := range required {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return 0, fmt.Errorf("%w: %s is missing required columns: %s", domain.ErrMalformedSchema, name, strings.Join(missing, ", "))
	}

	rows := 0
	for {
		values, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", domain.ErrMalformedSchema, name, err)
		}
		rows++
		rec := &record{table: name, line: rows + 1, index: index, values: values, log: r.log}
		decode(rec)
		if rec.err != nil {
			return 0, rec.err
		}
	}
	return rows, nil
}

// assignEventIDs numbers events without an event_id after the highest
// explicit one so generated ids never collide with exported ones.
func assignEventIDs(events []domain.ActivityEvent) {
	var next int64
	for _, e := range events {
		next = max(next, e.EventID)
	}
	for i := range events {
		if events[i].EventID == 0 {
			next++
			events[i].EventID = next
		}
	}
}
