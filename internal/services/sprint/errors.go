package sprint

import "agile-tracker-api/internal/apperr"

// Sprint-related errors
var (
	ErrEmptyName        = apperr.Validationf("sprint name cannot be empty")
	ErrMissingProjectID = apperr.Validationf("projectId is required")
	ErrMissingDates     = apperr.Validationf("startDate and endDate are required")
	ErrInvalidDates     = apperr.Validationf("startDate must be before endDate")
	ErrNoItems          = apperr.Validationf("at least one backlog item id is required")
	ErrInvalidStatus    = apperr.Validationf("status must be one of PLANNED, ACTIVE, CLOSED")
	ErrSameSprint       = apperr.Validationf("cannot carry items over into the same sprint")
	ErrSprintNotFound   = apperr.NotFoundf("sprint not found")

	ErrAlreadyActive   = apperr.Conflictf("sprint is already active")
	ErrAnotherActive   = apperr.Conflictf("another sprint is already active in this project")
	ErrSprintClosed    = apperr.Conflictf("sprint is closed")
	ErrNotActive       = apperr.Conflictf("only an active sprint can be closed")
	ErrCarryFromOpen   = apperr.Conflictf("items can only be carried over from a closed sprint")
	ErrItemNotInSprint = apperr.NotFoundf("backlog item is not in this sprint")
)
