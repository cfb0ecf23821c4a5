package catalog

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/astrikos/mapstream/internal/data"
	"github.com/astrikos/mapstream/internal/redisstore"
)

// Catalog is the authoritative in-memory view of all projects and data
// sources. Callers perform the durable write-through before mutating it.
type Catalog struct {
	mu       sync.RWMutex
	projects map[string]*data.Project
	sources  map[string]*data.DataSource
	logger   *zap.Logger
}

func New(logger *zap.Logger) *Catalog {
	return &Catalog{
		projects: make(map[string]*data.Project),
		sources:  make(map[string]*data.DataSource),
		logger:   logger,
	}
}

// LoadAll rebuilds the catalog from the registry store. Failures are
// logged and leave the catalog partial; the process keeps serving with
// whatever loaded.
func (c *Catalog) LoadAll(ctx context.Context, store *redisstore.Store) {
	projects, err := store.ListProjects(ctx)
	if err != nil {
		c.logger.Error("failed to load projects", zap.Error(err))
	} else {
		c.mu.Lock()
		for _, project := range projects {
			c.projects[project.ID] = project
		}
		c.mu.Unlock()
		c.logger.Info("loaded map projects", zap.Int("count", len(projects)))
	}

	sources, err := store.ListSources(ctx)
	if err != nil {
		c.logger.Error("failed to load data sources", zap.Error(err))
		return
	}
	c.mu.Lock()
	for _, source := range sources {
		c.sources[source.ID] = source
	}
	c.mu.Unlock()
	c.logger.Info("loaded data sources", zap.Int("count", len(sources)))
}

func (c *Catalog) UpsertProject(project *data.Project) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projects[project.ID] = project
}

func (c *Catalog) RemoveProject(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.projects, id)
}

func (c *Catalog) UpsertSource(source *data.DataSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[source.ID] = source
}

func (c *Catalog) RemoveSource(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sources, id)
}

func (c *Catalog) Project(id string) (*data.Project, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	project, ok := c.projects[id]
	return project, ok
}

func (c *Catalog) Source(id string) (*data.DataSource, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	source, ok := c.sources[id]
	return source, ok
}

func (c *Catalog) ListProjects() []*data.Project {
	c.mu.RLock()
	defer c.mu.RUnlock()
	projects := make([]*data.Project, 0, len(c.projects))
	for _, project := range c.projects {
		projects = append(projects, project)
	}
	return projects
}

func (c *Catalog) ListSources() []*data.DataSource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sources := make([]*data.DataSource, 0, len(c.sources))
	for _, source := range c.sources {
		sources = append(sources, source)
	}
	return sources
}

// SourcesForProject returns the sources associated with one project.
// Together with UnassociatedSources it partitions ListSources.
func (c *Catalog) SourcesForProject(projectID string) []*data.DataSource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var sources []*data.DataSource
	for _, source := range c.sources {
		if source.ProjectID == projectID {
			sources = append(sources, source)
		}
	}
	return sources
}

func (c *Catalog) UnassociatedSources() []*data.DataSource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var sources []*data.DataSource
	for _, source := range c.sources {
		if source.ProjectID == "" {
			sources = append(sources, source)
		}
	}
	return sources
}
