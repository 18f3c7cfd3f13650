package moodle

import (
	entsql "entgo.io/ent/dialect/sql"
)

// queries builds the dialect-specific SELECTs against the standard Moodle schema.
// Column aliases match the db tags of the domain types.
type queries struct {
	b      *entsql.DialectBuilder
	prefix string
}

func newQueries(dialectName, prefix string) *queries {
	return &queries{b: entsql.Dialect(dialectName), prefix: prefix}
}

func (q *queries) table(name string) *entsql.SelectTable {
	return q.b.Table(q.prefix + name)
}

func (q *queries) events() (string, []any) {
	l := q.table("logstore_standard_log")
	return q.b.Select(
		entsql.As(l.C("id"), "event_id"),
		entsql.As(l.C("userid"), "user_id"),
		entsql.As(l.C("courseid"), "course_id"),
		entsql.As(l.C("timecreated"), "timestamp"),
		entsql.As(l.C("eventname"), "event_name"),
		entsql.As(l.C("component"), "component"),
	).
		From(l).
		Where(entsql.GT(l.C("userid"), 0)).
		OrderBy(l.C("id")).
		Query()
}

func (q *queries) quizzes() (string, []any) {
	a := q.table("quiz_attempts").As("qa")
	z := q.table("quiz").As("q")
	return q.b.Select(
		entsql.As(a.C("id"), "attempt_id"),
		entsql.As(a.C("userid"), "user_id"),
		entsql.As(a.C("quiz"), "quiz_id"),
		entsql.As(z.C("course"), "course_id"),
		entsql.As(a.C("timestart"), "start_time"),
		entsql.As(a.C("timefinish"), "finish_time"),
		entsql.As(a.C("sumgrades"), "raw_grade"),
		entsql.As(z.C("sumgrades"), "max_grade"),
		entsql.As(a.C("attempt"), "attempt_ordinal"),
	).
		From(a).
		Join(z).
		On(a.C("quiz"), z.C("id")).
		Where(entsql.EQ(a.C("preview"), 0)).
		OrderBy(a.C("id")).
		Query()
}

func (q *queries) posts() (string, []any) {
	p := q.table("forum_posts").As("p")
	d := q.table("forum_discussions").As("d")
	return q.b.Select(
		entsql.As(p.C("id"), "post_id"),
		entsql.As(p.C("userid"), "user_id"),
		entsql.As(d.C("course"), "course_id"),
		entsql.As(p.C("discussion"), "discussion_id"),
		entsql.As(p.C("parent"), "parent_id"),
		entsql.As(p.C("created"), "created_time"),
		entsql.As(p.C("modified"), "modified_time"),
		entsql.As(p.C("message"), "message"),
	).
		From(p).
		Join(d).
		On(p.C("discussion"), d.C("id")).
		OrderBy(p.C("id")).
		Query()
}

func (q *queries) completions() (string, []any) {
	c := q.table("course_completions")
	return q.b.Select(
		entsql.As(c.C("userid"), "user_id"),
		entsql.As(c.C("course"), "course_id"),
		entsql.As(c.C("timeenrolled"), "enrolled_time"),
		entsql.As(c.C("timestarted"), "started_time"),
		entsql.As(c.C("timecompleted"), "completed_time"),
	).
		From(c).
		OrderBy(c.C("id")).
		Query()
}

// courses skips the site front page, which Moodle stores as a course
func (q *queries) courses() (string, []any) {
	c := q.table("course")
	return q.b.Select(
		entsql.As(c.C("id"), "course_id"),
		entsql.As(c.C("fullname"), "fullname"),
		entsql.As(c.C("shortname"), "shortname"),
		entsql.As(c.C("visible"), "visible"),
	).
		From(c).
		Where(entsql.NEQ(c.C("format"), "site")).
		OrderBy(c.C("id")).
		Query()
}

func (q *queries) users() (string, []any) {
	u := q.table("user")
	return q.b.Select(
		entsql.As(u.C("id"), "user_id"),
		entsql.As(u.C("username"), "username"),
		entsql.As(u.C("firstname"), "firstname"),
		entsql.As(u.C("lastname"), "lastname"),
		entsql.As(u.C("email"), "email"),
		entsql.As(u.C("city"), "city"),
		entsql.As(u.C("country"), "country"),
		entsql.As(u.C("lastaccess"), "lastaccess"),
	).
		From(u).
		Where(entsql.And(
			entsql.EQ(u.C("deleted"), 0),
			entsql.NEQ(u.C("username"), "guest"),
		)).
		OrderBy(u.C("id")).
		Query()
}

func (q *queries) enrolments() (string, []any) {
	ue := q.table("user_enrolments").As("ue")
	e := q.table("enrol").As("e")
	return q.b.Select(
		entsql.As(e.C("courseid"), "course_id"),
		entsql.As(entsql.Count(entsql.Distinct(ue.C("userid"))), "enrolled_users"),
	).
		From(ue).
		Join(e).
		On(ue.C("enrolid"), e.C("id")).
		GroupBy(e.C("courseid")).
		Query()
}
