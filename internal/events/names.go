package events

// Outbound event names shared by the broker and the gateway.
const (
	EventAvailableProjects = "available-projects"
	EventAvailableSources  = "available-sources"
	EventProjectData       = "project-data"
	EventProjectCreated    = "project-created"
	EventProjectUpdated    = "project-updated"
	EventProjectDeleted    = "project-deleted"
	EventRealtimeData      = "realtime-data"
	EventError             = "error"
)
