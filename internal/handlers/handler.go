package handlers

import (
	"agile-tracker-api/internal/auth"
	"agile-tracker-api/internal/realtime"
	"agile-tracker-api/internal/schedule"
	"agile-tracker-api/internal/services/backlog"
	"agile-tracker-api/internal/services/board"
	"agile-tracker-api/internal/services/bridge"
	"agile-tracker-api/internal/services/eisenhower"
	"agile-tracker-api/internal/services/impediment"
	"agile-tracker-api/internal/services/metrics"
	"agile-tracker-api/internal/services/sprint"

	"gorm.io/gorm"
)

// Handler serves the project-scoped agile API
type Handler struct {
	Backlog     backlog.Service
	Sprints     sprint.Service
	Board       board.Service
	Bridge      bridge.Service
	Eisenhower  eisenhower.Service
	Impediments impediment.Service
	Metrics     metrics.Service
	Hub         *realtime.Hub
	Issuer      *auth.Issuer
}

// New wires every service against db, publishing changes through hub.
func New(db *gorm.DB, src schedule.Source, hub *realtime.Hub, issuer *auth.Issuer) *Handler {
	items := backlog.NewService(db, hub)
	return &Handler{
		Backlog:     items,
		Sprints:     sprint.NewService(db, hub),
		Board:       board.NewService(db, hub),
		Bridge:      bridge.NewService(db, items, src, hub),
		Eisenhower:  eisenhower.NewService(db, hub),
		Impediments: impediment.NewService(db, hub),
		Metrics:     metrics.NewService(db),
		Hub:         hub,
		Issuer:      issuer,
	}
}
