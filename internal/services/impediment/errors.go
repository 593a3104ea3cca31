package impediment

import "agile-tracker-api/internal/apperr"

// Impediment errors
var (
	ErrMissingProjectID  = apperr.Validationf("projectId is required")
	ErrEmptyTitle        = apperr.Validationf("impediment title cannot be empty")
	ErrInvalidSeverity   = apperr.Validationf("severity must be between 1 and 4")
	ErrInvalidStatus     = apperr.Validationf("status must be one of OPEN, MITIGATING, RESOLVED")
	ErrBackwardStatus    = apperr.Conflictf("impediment status can only move forward")
	ErrImpedimentMissing = apperr.NotFoundf("impediment not found")
	ErrSprintNotFound    = apperr.NotFoundf("sprint not found in this project")
	ErrItemNotFound      = apperr.NotFoundf("backlog item not found in this project")
)
