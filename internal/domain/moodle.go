package domain

// QuizAttempt is a single non-preview quiz attempt
type QuizAttempt struct {
	AttemptID  int64    `db:"attempt_id" json:"attempt_id"`
	UserID     int64    `db:"user_id" json:"user_id"`
	QuizID     string   `db:"quiz_id" json:"quiz_id"`
	CourseID   string   `db:"course_id" json:"course_id"`
	StartTime  *int64   `db:"start_time" json:"start_time"`
	FinishTime *int64   `db:"finish_time" json:"finish_time"`
	RawGrade   *float64 `db:"raw_grade" json:"raw_grade"`
	MaxGrade   float64  `db:"max_grade" json:"max_grade"`
	Ordinal    int      `db:"attempt_ordinal" json:"attempt_ordinal"`
}

// ForumPost is a forum post; ParentID 0 marks a discussion root
type ForumPost struct {
	PostID       int64  `db:"post_id" json:"post_id"`
	UserID       int64  `db:"user_id" json:"user_id"`
	CourseID     string `db:"course_id" json:"course_id"`
	DiscussionID int64  `db:"discussion_id" json:"discussion_id"`
	ParentID     int64  `db:"parent_id" json:"parent_id"`
	Created      int64  `db:"created_time" json:"created_time"`
	Modified     int64  `db:"modified_time" json:"modified_time"`
	Message      string `db:"message" json:"message"`
}

// CompletionRecord tracks one user's completion of one course
type CompletionRecord struct {
	UserID               int64    `db:"user_id" json:"user_id"`
	CourseID             string   `db:"course_id" json:"course_id"`
	Enrolled             *int64   `db:"enrolled_time" json:"enrolled_time"`
	Started              *int64   `db:"started_time" json:"started_time"`
	Completed            *int64   `db:"completed_time" json:"completed_time"`
	CompletionPercentage *float64 `db:"completion_percentage" json:"completion_percentage"`
}

// Course is course metadata
type Course struct {
	CourseID      string `db:"course_id" json:"course_id"`
	FullName      string `db:"fullname" json:"fullname"`
	ShortName     string `db:"shortname" json:"shortname"`
	Visible       bool   `db:"visible" json:"visible"`
	EnrolledUsers int    `db:"enrolled_users" json:"enrolled_users"`
}

// User is user metadata
type User struct {
	UserID     int64  `db:"user_id" json:"user_id"`
	Username   string `db:"username" json:"username"`
	FirstName  string `db:"firstname" json:"firstname"`
	LastName   string `db:"lastname" json:"lastname"`
	Email      string `db:"email" json:"email"`
	City       string `db:"city" json:"city"`
	Country    string `db:"country" json:"country"`
	LastAccess *int64 `db:"lastaccess" json:"lastaccess"`
}

// Dataset holds the six tables an analysis runs over
type Dataset struct {
	Events      []ActivityEvent    `json:"events"`
	Quizzes     []QuizAttempt      `json:"quizzes"`
	Posts       []ForumPost        `json:"posts"`
	Completions []CompletionRecord `json:"completions"`
	Courses     []Course           `json:"courses"`
	Users       []User             `json:"users"`
}

// Counts returns the row count of every table, keyed by table name
func (d *Dataset) Counts() map[string]int {
	return map[string]int{
		"events":      len(d.Events),
		"quizzes":     len(d.Quizzes),
		"posts":       len(d.Posts),
		"completions": len(d.Completions),
		"courses":     len(d.Courses),
		"users":       len(d.Users),
	}
}
