package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/astrikos/mapstream/internal/data"
)

// Store is the durable registry of map projects and data sources.
type Store struct {
	client *redis.Client
}

func New(addr string, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// Ping reports whether the backing Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) CreateProject(ctx context.Context, project *data.Project) (*data.Project, error) {
	if project.ID == "" {
		project.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	if project.LastModified.IsZero() {
		project.LastModified = now
	}

	if err := s.saveProject(ctx, project); err != nil {
		return nil, err
	}

	return project, nil
}

func (s *Store) UpdateProject(ctx context.Context, project *data.Project) (*data.Project, error) {
	if _, err := s.GetProject(ctx, project.ID); err != nil {
		return nil, err
	}

	if err := s.saveProject(ctx, project); err != nil {
		return nil, err
	}

	return project, nil
}

// DeleteProject removes a project and every data source associated with
// it in a single pipeline. It returns the ids of the removed sources.
func (s *Store) DeleteProject(ctx context.Context, id string) ([]string, error) {
	if _, err := s.GetProject(ctx, id); err != nil {
		return nil, err
	}

	sourceIDs, err := s.client.SMembers(ctx, projectSourcesKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list project sources: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, projectKey(id))
	pipe.SRem(ctx, "projects:all", id)
	for _, sourceID := range sourceIDs {
		pipe.Del(ctx, sourceKey(sourceID))
		pipe.SRem(ctx, "sources:all", sourceID)
	}
	pipe.Del(ctx, projectSourcesKey(id))

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to delete project: %w", err)
	}

	return sourceIDs, nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*data.Project, error) {
	fields, err := s.client.HGetAll(ctx, projectKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("project %s not found", id)
	}

	return projectFromHash(fields), nil
}

func (s *Store) ListProjects(ctx context.Context) ([]*data.Project, error) {
	members, err := s.client.SMembers(ctx, "projects:all").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	projects := make([]*data.Project, 0, len(members))
	for _, id := range members {
		project, err := s.GetProject(ctx, id)
		if err != nil {
			continue
		}
		projects = append(projects, project)
	}

	return projects, nil
}

// SaveSource creates or overwrites a data source keyed by its
// caller-supplied id. When the project association changes, the old
// cascade index entry is dropped.
func (s *Store) SaveSource(ctx context.Context, source *data.DataSource) error {
	old, getErr := s.GetSource(ctx, source.ID)

	pipe := s.client.Pipeline()
	if getErr == nil && old.ProjectID != "" && old.ProjectID != source.ProjectID {
		pipe.SRem(ctx, projectSourcesKey(old.ProjectID), source.ID)
	}

	pipe.HSet(ctx, sourceKey(source.ID), map[string]interface{}{
		"id":               source.ID,
		"name":             source.Name,
		"url":              source.URL,
		"project_id":       source.ProjectID,
		"theme_color":      source.Theme.Color,
		"theme_background": source.Theme.BackgroundColor,
	})
	pipe.SAdd(ctx, "sources:all", source.ID)
	if source.ProjectID != "" {
		pipe.SAdd(ctx, projectSourcesKey(source.ProjectID), source.ID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save source: %w", err)
	}

	return nil
}

func (s *Store) DeleteSource(ctx context.Context, id string) error {
	source, err := s.GetSource(ctx, id)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, sourceKey(id))
	pipe.SRem(ctx, "sources:all", id)
	if source.ProjectID != "" {
		pipe.SRem(ctx, projectSourcesKey(source.ProjectID), id)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}

	return nil
}

func (s *Store) GetSource(ctx context.Context, id string) (*data.DataSource, error) {
	fields, err := s.client.HGetAll(ctx, sourceKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("source %s not found", id)
	}

	return sourceFromHash(fields), nil
}

func (s *Store) ListSources(ctx context.Context) ([]*data.DataSource, error) {
	members, err := s.client.SMembers(ctx, "sources:all").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	sources := make([]*data.DataSource, 0, len(members))
	for _, id := range members {
		source, err := s.GetSource(ctx, id)
		if err != nil {
			continue
		}
		sources = append(sources, source)
	}

	return sources, nil
}

func (s *Store) saveProject(ctx context.Context, project *data.Project) error {
	geojson := ""
	if project.GeoJSONData != nil {
		geojson = string(project.GeoJSONData)
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, projectKey(project.ID), map[string]interface{}{
		"id":            project.ID,
		"name":          project.Name,
		"description":   project.Description,
		"longitude":     strconv.FormatFloat(project.InitialViewState.Longitude, 'f', -1, 64),
		"latitude":      strconv.FormatFloat(project.InitialViewState.Latitude, 'f', -1, 64),
		"zoom":          strconv.FormatFloat(project.InitialViewState.Zoom, 'f', -1, 64),
		"geojson":       geojson,
		"last_modified": project.LastModified.Format(time.RFC3339Nano),
		"created_at":    project.CreatedAt.Format(time.RFC3339Nano),
	})
	pipe.SAdd(ctx, "projects:all", project.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}

	return nil
}

func projectKey(id string) string {
	return fmt.Sprintf("project:%s", id)
}

func sourceKey(id string) string {
	return fmt.Sprintf("source:%s", id)
}

func projectSourcesKey(projectID string) string {
	return fmt.Sprintf("sources:project:%s", projectID)
}

func projectFromHash(fields map[string]string) *data.Project {
	project := &data.Project{
		ID:          fields["id"],
		Name:        fields["name"],
		Description: fields["description"],
	}

	project.InitialViewState.Longitude, _ = strconv.ParseFloat(fields["longitude"], 64)
	project.InitialViewState.Latitude, _ = strconv.ParseFloat(fields["latitude"], 64)
	project.InitialViewState.Zoom, _ = strconv.ParseFloat(fields["zoom"], 64)

	if geojson := fields["geojson"]; geojson != "" {
		project.GeoJSONData = []byte(geojson)
	}

	if raw := fields["last_modified"]; raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			project.LastModified = t
		}
	}
	if raw := fields["created_at"]; raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			project.CreatedAt = t
		}
	}

	return project
}

func sourceFromHash(fields map[string]string) *data.DataSource {
	return &data.DataSource{
		ID:        fields["id"],
		Name:      fields["name"],
		URL:       fields["url"],
		ProjectID: fields["project_id"],
		Theme: data.Theme{
			Color:           fields["theme_color"],
			BackgroundColor: fields["theme_background"],
		},
	}
}
