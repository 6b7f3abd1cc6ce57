package reader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackzampolin/bitbybit/internal/api"
	"github.com/jackzampolin/bitbybit/internal/config"
	"github.com/jackzampolin/bitbybit/internal/tracking"
	"github.com/jackzampolin/bitbybit/internal/types"
)

// Chapter is a chapter with its sections, as listed by the server.
type Chapter struct {
	types.Chapter
	Sections []types.Section `json:"sections"`
}

// Client is the part of the server API the reader uses.
type Client interface {
	OpenBook(ctx context.Context, bookID string) (*types.Book, error)
	Chapters(ctx context.Context, bookID string) ([]Chapter, error)
	Section(ctx context.Context, id string) (*types.Section, error)
	MarkRead(ctx context.Context, id string) (*types.Section, error)
	MarkUnread(ctx context.Context, id string) (*types.Section, error)
	TrackingConfig(ctx context.Context) (tracking.Config, error)
}

// APIClient talks to a running server.
type APIClient struct {
	c *api.Client
}

// NewAPIClient creates a client for the server at baseURL.
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{c: api.NewClient(baseURL)}
}

func (a *APIClient) OpenBook(ctx context.Context, bookID string) (*types.Book, error) {
	var book types.Book
	if err := a.c.Post(ctx, "/api/books/"+bookID+"/open", nil, &book); err != nil {
		return nil, mapStatus(err)
	}
	return &book, nil
}

func (a *APIClient) Chapters(ctx context.Context, bookID string) ([]Chapter, error) {
	var resp struct {
		Chapters []Chapter `json:"chapters"`
	}
	if err := a.c.Get(ctx, "/api/books/"+bookID+"/chapters", &resp); err != nil {
		return nil, mapStatus(err)
	}
	return resp.Chapters, nil
}

func (a *APIClient) Section(ctx context.Context, id string) (*types.Section, error) {
	var sec types.Section
	if err := a.c.Get(ctx, "/api/sections/"+id, &sec); err != nil {
		return nil, mapStatus(err)
	}
	return &sec, nil
}

func (a *APIClient) MarkRead(ctx context.Context, id string) (*types.Section, error) {
	var sec types.Section
	if err := a.c.Post(ctx, "/api/sections/"+id+"/read", nil, &sec); err != nil {
		return nil, mapStatus(err)
	}
	return &sec, nil
}

func (a *APIClient) MarkUnread(ctx context.Context, id string) (*types.Section, error) {
	var sec types.Section
	if err := a.c.Delete(ctx, "/api/sections/"+id+"/read", &sec); err != nil {
		return nil, mapStatus(err)
	}
	return &sec, nil
}

// MarkSectionRead lets a tracking.RetryMarker write through the API. The
// server stamps the read time.
func (a *APIClient) MarkSectionRead(ctx context.Context, id string, _ time.Time) error {
	_, err := a.MarkRead(ctx, id)
	return err
}

// TrackingConfig reads the server's tracking settings.
func (a *APIClient) TrackingConfig(ctx context.Context) (tracking.Config, error) {
	var resp struct {
		Settings *config.Config `json:"settings"`
	}
	if err := a.c.Get(ctx, "/api/settings", &resp); err != nil {
		return tracking.Config{}, mapStatus(err)
	}
	if resp.Settings == nil {
		return tracking.DefaultConfig(), nil
	}
	return resp.Settings.TrackingConfig(), nil
}

// mapStatus turns a 404 into types.ErrNotFound so retries stop early.
func mapStatus(err error) error {
	var se *api.StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return fmt.Errorf("%s: %w", se.Message, types.ErrNotFound)
	}
	return err
}

var (
	_ Client                 = (*APIClient)(nil)
	_ tracking.SectionWriter = (*APIClient)(nil)
)
