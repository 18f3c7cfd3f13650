package analytics

import (
	"time"

	"github.com/maysaraadmin/moodle-analytics/internal/domain"
)

const (
	eventViewed    = `\mod_page\event\course_module_viewed`
	eventSubmitted = `\mod_assign\event\assessable_submitted`
	eventCreated   = `\mod_forum\event\post_created`
	eventUpdated   = `\core\event\user_updated`
	eventLoggedIn  = `\core\event\user_loggedin`
)

func unix(year int, month time.Month, day, hour int) *int64 {
	v := time.Date(year, month, day, hour, 0, 0, 0, time.UTC).Unix()
	return &v
}

func i64(v int64) *int64 {
	return &v
}

func f64(v float64) *float64 {
	return &v
}

func activity(id, user int64, course string, ts *int64, name string) domain.ActivityEvent {
	return domain.ActivityEvent{
		EventID:   id,
		UserID:    user,
		CourseID:  course,
		Timestamp: ts,
		EventName: name,
		Component: "mod_page",
	}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Now = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	return opts
}
