package repository

import (
	"context"

	"github.com/cskoven/go-flood-panel/internal/models"
)

// Filter narrows event and panel listings.
type Filter struct {
	Limit    int
	Offset   int
	Adm1Code *int
	MonYr    *string
	EventID  *string
	Flag     *models.FlagCode
}

type EventRepository interface {
	ReplaceEvents(ctx context.Context, events []*models.MonthlyEvent) error
	GetEventByKey(ctx context.Context, key string) (*models.MonthlyEvent, error)
	ListEvents(ctx context.Context, opts Filter) ([]*models.MonthlyEvent, error)
}

type PanelRepository interface {
	ReplacePanel(ctx context.Context, cells []*models.PanelCell) error
	ListPanel(ctx context.Context, opts Filter) ([]*models.PanelCell, error)
}
