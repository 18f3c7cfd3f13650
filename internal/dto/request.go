package dto

// PublishEventRequest represents a Moodle log event pushed by a plugin or exporter
type PublishEventRequest struct {
	EventName string `json:"event_name" binding:"required" example:"\\mod_quiz\\event\\attempt_submitted"`
	Component string `json:"component" binding:"required" example:"mod_quiz"`
	CourseID  string `json:"course_id" binding:"required" example:"MATH101"`
	UserID    int64  `json:"user_id" binding:"required" example:"42"`
	Timestamp int64  `json:"timestamp" binding:"required" example:"1723475612"`
}

// PublishEventsBulkRequest represents a publish bulk event request
type PublishEventsBulkRequest struct {
	Events []PublishEventRequest `json:"events" binding:"required,min=1,max=1000,dive"`
}

// GetMetricsRequest represents a metrics query request
type GetMetricsRequest struct {
	EventName string `form:"event_name" example:"\\core\\event\\course_viewed"`
	CourseID  string `form:"course_id" example:"MATH101"`
	From      int64  `form:"from" binding:"required" example:"1723475612"`
	To        int64  `form:"to" binding:"required" example:"1723562012"`
	GroupBy   string `form:"group_by" example:"course"`
}

// AnalysisRequest carries per-request overrides of the configured analytics options
type AnalysisRequest struct {
	Bucket     string `form:"bucket" example:"week"`
	Weighting  string `form:"weighting" example:"activity"`
	Clustering string `form:"clustering" example:"quadrant"`
}
