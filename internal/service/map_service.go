package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/astrikos/mapstream/internal/catalog"
	"github.com/astrikos/mapstream/internal/data"
	"github.com/astrikos/mapstream/internal/events"
	"github.com/astrikos/mapstream/internal/redisstore"
)

// MapService executes catalog-changing commands: validate, write
// through to the registry store, mutate the catalog, then publish the
// refreshed lists. A single mutex serializes mutating commands so
// broadcasts are observed in commit order.
type MapService struct {
	mu      sync.Mutex
	store   *redisstore.Store
	catalog *catalog.Catalog
	broker  *events.Broker
	logger  *zap.Logger
}

func NewMapService(store *redisstore.Store, cat *catalog.Catalog, broker *events.Broker, logger *zap.Logger) *MapService {
	return &MapService{
		store:   store,
		catalog: cat,
		broker:  broker,
		logger:  logger,
	}
}

func (s *MapService) Catalog() *catalog.Catalog {
	return s.catalog
}

type CreateProjectInput struct {
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	InitialViewState *data.ViewState `json:"initialViewState"`
	GeoJSONData      json.RawMessage `json:"geojsonData"`
}

func (s *MapService) CreateProject(ctx context.Context, in CreateProjectInput) (*data.Project, error) {
	if in.Name == "" {
		return nil, &ValidationError{Message: "Project name is required"}
	}

	viewState := data.DefaultViewState()
	if in.InitialViewState != nil {
		viewState = *in.InitialViewState
	}

	project := &data.Project{
		Name:             in.Name,
		Description:      in.Description,
		InitialViewState: viewState,
		GeoJSONData:      in.GeoJSONData,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created, err := s.store.CreateProject(ctx, project)
	if err != nil {
		s.logger.Error("failed to create project", zap.Error(err))
		return nil, &StorageError{Message: "Failed to create project", Err: err}
	}

	s.catalog.UpsertProject(created)
	s.publishProjects(ctx)

	s.logger.Info("project created",
		zap.String("id", created.ID),
		zap.String("name", created.Name))

	return created, nil
}

// GetProject reads a project and its associated sources from the
// catalog. It performs no store access.
func (s *MapService) GetProject(id string) (*data.Project, []*data.DataSource, error) {
	project, ok := s.catalog.Project(id)
	if !ok {
		return nil, nil, &NotFoundError{Message: "Invalid or non-existent project ID"}
	}

	return project, s.catalog.SourcesForProject(id), nil
}

type UpdateProjectInput struct {
	Name             *string         `json:"name"`
	Description      *string         `json:"description"`
	InitialViewState *data.ViewState `json:"initialViewState"`
	GeoJSONData      json.RawMessage `json:"geojsonData"`
}

func (s *MapService) UpdateProject(ctx context.Context, id string, in UpdateProjectInput) (*data.Project, error) {
	// the read and the merge stay under the command mutex so a
	// concurrent update cannot be overwritten by a stale copy
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.catalog.Project(id)
	if !ok {
		return nil, &NotFoundError{Message: "Invalid or non-existent project ID"}
	}

	// merge the provided fields onto a copy; the catalog's record is
	// shared with concurrent readers
	updated := *existing
	if in.Name != nil {
		updated.Name = *in.Name
	}
	if in.Description != nil {
		updated.Description = *in.Description
	}
	if in.InitialViewState != nil {
		updated.InitialViewState = *in.InitialViewState
	}
	if in.GeoJSONData != nil {
		updated.GeoJSONData = in.GeoJSONData
	}
	updated.LastModified = time.Now().UTC()

	saved, err := s.store.UpdateProject(ctx, &updated)
	if err != nil {
		s.logger.Error("failed to update project", zap.String("id", id), zap.Error(err))
		return nil, &StorageError{Message: "Failed to update project", Err: err}
	}

	s.catalog.UpsertProject(saved)
	s.publishProjects(ctx)

	s.logger.Info("project updated",
		zap.String("id", saved.ID),
		zap.String("name", saved.Name))

	return saved, nil
}

// DeleteProject removes a project and cascades to every source
// associated with it.
func (s *MapService) DeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	project, ok := s.catalog.Project(id)
	if !ok {
		return &NotFoundError{Message: "Invalid or non-existent project ID"}
	}

	removedSources, err := s.store.DeleteProject(ctx, id)
	if err != nil {
		s.logger.Error("failed to delete project", zap.String("id", id), zap.Error(err))
		return &StorageError{Message: "Failed to delete project", Err: err}
	}

	s.catalog.RemoveProject(id)
	for _, sourceID := range removedSources {
		s.catalog.RemoveSource(sourceID)
	}

	s.publishProjects(ctx)
	s.publishSources(ctx)

	s.logger.Info("project deleted",
		zap.String("id", id),
		zap.String("name", project.Name),
		zap.Int("sources_removed", len(removedSources)))

	return nil
}

type AddSourceInput struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Name      string `json:"name"`
	ProjectID string `json:"projectId"`
}

// AddSource upserts a data source by its caller-supplied id. When no
// project id is given, the caller session's active project is used.
func (s *MapService) AddSource(ctx context.Context, in AddSourceInput, activeProjectID string) (*data.DataSource, error) {
	if in.ID == "" || in.URL == "" || in.Name == "" {
		return nil, &ValidationError{Message: "Missing required fields for data source"}
	}

	// project existence is checked under the command mutex so a
	// concurrent cascade delete cannot leave this source orphaned
	s.mu.Lock()
	defer s.mu.Unlock()

	if in.ProjectID != "" {
		if _, ok := s.catalog.Project(in.ProjectID); !ok {
			return nil, &NotFoundError{Message: "Invalid project ID"}
		}
	}

	projectID := in.ProjectID
	if projectID == "" {
		projectID = activeProjectID
	}

	source := &data.DataSource{
		ID:        in.ID,
		Name:      in.Name,
		URL:       in.URL,
		ProjectID: projectID,
		Theme:     data.ThemeForID(in.ID),
	}

	if err := s.store.SaveSource(ctx, source); err != nil {
		s.logger.Error("failed to save source", zap.String("id", in.ID), zap.Error(err))
		return nil, &StorageError{Message: "Failed to save data source to database", Err: err}
	}

	s.catalog.UpsertSource(source)
	s.publishSources(ctx)

	s.logger.Info("data source saved",
		zap.String("id", source.ID),
		zap.String("name", source.Name),
		zap.String("url", source.URL))

	return source, nil
}

func (s *MapService) DeleteSource(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	source, ok := s.catalog.Source(id)
	if !ok {
		return &NotFoundError{Message: fmt.Sprintf("Source with ID %s not found", id)}
	}

	if err := s.store.DeleteSource(ctx, id); err != nil {
		s.logger.Error("failed to delete source", zap.String("id", id), zap.Error(err))
		return &StorageError{Message: "Failed to delete data source from database", Err: err}
	}

	s.catalog.RemoveSource(id)
	s.publishSources(ctx)

	s.logger.Info("data source deleted",
		zap.String("id", id),
		zap.String("name", source.Name))

	return nil
}

func (s *MapService) publishProjects(ctx context.Context) {
	s.broker.Publish(ctx, events.Event{
		Name: events.EventAvailableProjects,
		Data: s.catalog.ListProjects(),
	})
}

func (s *MapService) publishSources(ctx context.Context) {
	s.broker.Publish(ctx, events.Event{
		Name: events.EventAvailableSources,
		Data: s.catalog.ListSources(),
	})
}
