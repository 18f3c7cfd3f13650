package moodle

import (
	"context"
	"testing"
	"time"

	"entgo.io/ent/dialect"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maysaraadmin/moodle-analytics/internal/config"
	"github.com/maysaraadmin/moodle-analytics/internal/domain"
)

const schema = `
CREATE TABLE mdl_logstore_standard_log (id INTEGER PRIMARY KEY, eventname TEXT, component TEXT, userid INTEGER, courseid INTEGER, timecreated INTEGER);
CREATE TABLE mdl_quiz (id INTEGER PRIMARY KEY, course INTEGER, sumgrades REAL);
CREATE TABLE mdl_quiz_attempts (id INTEGER PRIMARY KEY, quiz INTEGER, userid INTEGER, attempt INTEGER, timestart INTEGER, timefinish INTEGER, sumgrades REAL, preview INTEGER);
CREATE TABLE mdl_forum_discussions (id INTEGER PRIMARY KEY, course INTEGER);
CREATE TABLE mdl_forum_posts (id INTEGER PRIMARY KEY, discussion INTEGER, parent INTEGER, userid INTEGER, created INTEGER, modified INTEGER, message TEXT);
CREATE TABLE mdl_course_completions (id INTEGER PRIMARY KEY, userid INTEGER, course INTEGER, timeenrolled INTEGER, timestarted INTEGER, timecompleted INTEGER);
CREATE TABLE mdl_course (id INTEGER PRIMARY KEY, fullname TEXT, shortname TEXT, visible INTEGER, format TEXT);
CREATE TABLE mdl_user (id INTEGER PRIMARY KEY, username TEXT, firstname TEXT, lastname TEXT, email TEXT, city TEXT, country TEXT, lastaccess INTEGER, deleted INTEGER);
CREATE TABLE mdl_enrol (id INTEGER PRIMARY KEY, courseid INTEGER);
CREATE TABLE mdl_user_enrolments (id INTEGER PRIMARY KEY, enrolid INTEGER, userid INTEGER);
`

const fixtures = `
INSERT INTO mdl_logstore_standard_log VALUES
	(1, '\core\event\course_viewed', 'core', 7, 2, 1700000000),
	(2, '\mod_assign\event\assessable_submitted', 'mod_assign', 7, 2, 1700000600),
	(3, '\core\event\user_loggedin', 'core', 0, 0, 1700000700);
INSERT INTO mdl_quiz VALUES (10, 2, 20);
INSERT INTO mdl_quiz_attempts VALUES
	(100, 10, 7, 1, 1700001000, 1700001600, 15, 0),
	(101, 10, 7, 2, 1700002000, 0, NULL, 0),
	(102, 10, 8, 1, 1700003000, 1700003600, 20, 1);
INSERT INTO mdl_forum_discussions VALUES (50, 2);
INSERT INTO mdl_forum_posts VALUES
	(500, 50, 0, 7, 1700000000, 1700000000, 'question'),
	(501, 50, 500, 8, 1700007200, 1700007300, 'answer');
INSERT INTO mdl_course_completions VALUES
	(1, 7, 2, 1690000000, 1690000100, 1700100000),
	(2, 8, 2, 1690000000, 0, NULL);
INSERT INTO mdl_course VALUES
	(1, 'Site', 'site', 1, 'site'),
	(2, 'Mathematics 101', 'MATH101', 1, 'topics'),
	(3, 'Hidden Course', 'HIDDEN', 0, 'weeks');
INSERT INTO mdl_user VALUES
	(1, 'guest', 'Guest', 'User', '', '', '', 0, 0),
	(7, 'alice', 'Alice', 'A', 'alice@example.com', 'Oslo', 'NO', 1700000000, 0),
	(8, 'bob', 'Bob', 'B', 'bob@example.com', 'Rome', 'IT', 0, 0),
	(9, 'carol', 'Carol', 'C', 'carol@example.com', '', '', 0, 1);
INSERT INTO mdl_enrol VALUES (1, 2), (2, 2);
INSERT INTO mdl_user_enrolments VALUES (1, 1, 7), (2, 1, 8), (3, 2, 7);
`

func newTestReader(t *testing.T, statements ...string) *Reader {
	t.Helper()

	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return NewReader(db, dialect.SQLite, "mdl_", time.Second, zap.NewNop())
}

func TestReader_Load(t *testing.T) {
	reader := newTestReader(t, schema, fixtures)

	ds, err := reader.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, ds.Events, 2)
	assert.Equal(t, int64(1), ds.Events[0].EventID)
	assert.Equal(t, int64(7), ds.Events[0].UserID)
	assert.Equal(t, "2", ds.Events[0].CourseID)
	require.NotNil(t, ds.Events[0].Timestamp)
	assert.Equal(t, int64(1700000000), *ds.Events[0].Timestamp)
	assert.Equal(t, `\mod_assign\event\assessable_submitted`, ds.Events[1].EventName)
	assert.Equal(t, "mod_assign", ds.Events[1].Component)

	require.Len(t, ds.Quizzes, 2)
	assert.Equal(t, "10", ds.Quizzes[0].QuizID)
	assert.Equal(t, "2", ds.Quizzes[0].CourseID)
	assert.Equal(t, 20.0, ds.Quizzes[0].MaxGrade)
	require.NotNil(t, ds.Quizzes[0].RawGrade)
	assert.Equal(t, 15.0, *ds.Quizzes[0].RawGrade)
	assert.Equal(t, 2, ds.Quizzes[1].Ordinal)
	assert.Nil(t, ds.Quizzes[1].FinishTime)
	assert.Nil(t, ds.Quizzes[1].RawGrade)

	require.Len(t, ds.Posts, 2)
	assert.Equal(t, "2", ds.Posts[1].CourseID)
	assert.Equal(t, int64(500), ds.Posts[1].ParentID)
	assert.Equal(t, "answer", ds.Posts[1].Message)

	require.Len(t, ds.Completions, 2)
	require.NotNil(t, ds.Completions[0].Completed)
	assert.Nil(t, ds.Completions[1].Completed)
	assert.Nil(t, ds.Completions[1].Started)
	assert.Nil(t, ds.Completions[0].CompletionPercentage)

	require.Len(t, ds.Courses, 2)
	assert.Equal(t, domain.Course{CourseID: "2", FullName: "Mathematics 101", ShortName: "MATH101", Visible: true, EnrolledUsers: 2}, ds.Courses[0])
	assert.False(t, ds.Courses[1].Visible)
	assert.Equal(t, 0, ds.Courses[1].EnrolledUsers)

	require.Len(t, ds.Users, 2)
	assert.Equal(t, "alice", ds.Users[0].Username)
	require.NotNil(t, ds.Users[0].LastAccess)
	assert.Nil(t, ds.Users[1].LastAccess)
}

func TestReader_Load_EmptyTables(t *testing.T) {
	reader := newTestReader(t, schema)

	ds, err := reader.Load(context.Background())

	require.NoError(t, err)
	assert.Empty(t, ds.Events)
	assert.Empty(t, ds.Courses)
}

func TestReader_Load_MissingTable(t *testing.T) {
	reader := newTestReader(t)

	ds, err := reader.Load(context.Background())

	assert.Nil(t, ds)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestQueries_PostgresPlaceholders(t *testing.T) {
	q := newQueries(dialect.Postgres, "mdl_")

	query, args := q.quizzes()

	assert.Contains(t, query, `"mdl_quiz_attempts" AS "qa"`)
	assert.Contains(t, query, "$1")
	assert.Equal(t, []any{0}, args)
}

func TestResolveDriver(t *testing.T) {
	log := zap.NewNop()

	tests := []struct {
		name           string
		cfg            config.Moodle
		expectedDriver string
		expectError    bool
	}{
		{"mysql", config.Moodle{Driver: DriverMySQL, DSN: "moodle:secret@tcp(localhost:3306)/moodle"}, "mysql", false},
		{"postgres", config.Moodle{Driver: DriverPostgres, DSN: "postgres://moodle@localhost:5432/moodle"}, "pgx", false},
		{"sqlite", config.Moodle{Driver: DriverSQLite, DSN: "file:moodle.db"}, "sqlite", false},
		{"missing dsn", config.Moodle{Driver: DriverMySQL}, "", true},
		{"bad mysql dsn", config.Moodle{Driver: DriverMySQL, DSN: "not a dsn"}, "", true},
		{"unknown driver", config.Moodle{Driver: "oracle", DSN: "x"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driverName, _, err := resolveDriver(tt.cfg, log)

			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedDriver, driverName)
		})
	}
}
