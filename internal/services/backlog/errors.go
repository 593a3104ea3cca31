package backlog

import "agile-tracker-api/internal/apperr"

// Backlog item errors
var (
	ErrEmptyTitle       = apperr.Validationf("backlog item title cannot be empty")
	ErrTitleTooLong     = apperr.Validationf("backlog item title cannot exceed 255 characters")
	ErrInvalidType      = apperr.Validationf("type must be one of EPIC, STORY, TASK, BUG, RISK")
	ErrInvalidStatus    = apperr.Validationf("status must be one of BACKLOG, READY, IN_SPRINT, DONE, BLOCKED")
	ErrInvalidPriority  = apperr.Validationf("priority must be between 1 and 5")
	ErrNegativePoints   = apperr.Validationf("storyPoints cannot be negative")
	ErrNegativeHours    = apperr.Validationf("estimatedHours cannot be negative")
	ErrMissingProjectID = apperr.Validationf("projectId is required")
	ErrSelfParent       = apperr.Validationf("a backlog item cannot be its own parent")
	ErrParentCycle      = apperr.Validationf("parent change would make the item its own ancestor")
	ErrItemNotFound     = apperr.NotFoundf("backlog item not found")
	ErrParentNotFound   = apperr.NotFoundf("parent backlog item not found in this project")
)
