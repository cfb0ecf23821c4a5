package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/astrikos/mapstream/internal/events"
	"github.com/astrikos/mapstream/internal/metrics"
	"github.com/astrikos/mapstream/internal/service"
	"github.com/astrikos/mapstream/internal/session"
)

// Inbound event names.
const (
	eventCreateProject     = "create-project"
	eventGetProject        = "get-project"
	eventUpdateProject     = "update-project"
	eventDeleteProject     = "delete-project"
	eventSubscribeSource   = "subscribe-source"
	eventUnsubscribeSource = "unsubscribe-source"
	eventAddSource         = "add-source"
	eventDeleteSource      = "delete-source"
)

// Envelope is the wire format in both directions: an event name plus
// its payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Handler upgrades websocket connections and runs one session per
// connection: inbound envelopes become service/session commands,
// outbound events flow back on a per-connection channel.
type Handler struct {
	svc      *service.MapService
	broker   *events.Broker
	logger   *zap.Logger
	interval time.Duration
	timeout  time.Duration
	upgrader websocket.Upgrader
}

func NewHandler(svc *service.MapService, broker *events.Broker, interval, timeout time.Duration, logger *zap.Logger) *Handler {
	return &Handler{
		svc:      svc,
		broker:   broker,
		logger:   logger,
		interval: interval,
		timeout:  timeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the connection and blocks until the client
// disconnects. Teardown guarantees every poller started by this
// connection is stopped.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{
		id:     uuid.New().String(),
		conn:   conn,
		send:   make(chan outbound, 256),
		done:   make(chan struct{}),
		logger: h.logger,
	}
	cl.sess = session.New(cl.id, h.svc.Catalog(), h.interval, h.timeout, h.logger, cl.enqueue)
	cl.sub = h.broker.Subscribe(cl.id)

	metrics.SessionsActive.Inc()
	h.logger.Info("client connected", zap.String("session", cl.id))

	// seed the new client with the current catalog snapshot
	cl.enqueue(events.EventAvailableProjects, h.svc.Catalog().ListProjects())
	cl.enqueue(events.EventAvailableSources, h.svc.Catalog().ListSources())

	go cl.writePump()
	go cl.forwardBroadcasts()

	h.readLoop(cl)

	cl.sess.Close()
	h.broker.Unsubscribe(cl.id)
	close(cl.done)
	_ = conn.Close()

	metrics.SessionsActive.Dec()
	h.logger.Info("client disconnected", zap.String("session", cl.id))
}

func (h *Handler) readLoop(cl *client) {
	cl.conn.SetReadLimit(maxMessageSize)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read error", zap.String("session", cl.id), zap.Error(err))
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			cl.sendError("Invalid message")
			continue
		}

		h.dispatch(cl, env)
	}
}

func (h *Handler) dispatch(cl *client, env Envelope) {
	ctx := context.Background()

	switch env.Event {
	case eventCreateProject:
		var in service.CreateProjectInput
		if !cl.decode(env.Data, &in) {
			return
		}
		project, err := h.svc.CreateProject(ctx, in)
		if err != nil {
			cl.fail(err)
			return
		}
		cl.enqueue(events.EventProjectCreated, project)

	case eventGetProject:
		var in struct {
			ProjectID string `json:"projectId"`
		}
		if !cl.decode(env.Data, &in) {
			return
		}
		project, sources, err := h.svc.GetProject(in.ProjectID)
		if err != nil {
			cl.fail(err)
			return
		}
		if err := cl.sess.SetActiveProject(in.ProjectID); err != nil {
			cl.fail(err)
			return
		}
		cl.enqueue(events.EventProjectData, projectData{Project: project, DataSources: sources})

	case eventUpdateProject:
		var in struct {
			ProjectID   string                     `json:"projectId"`
			ProjectData service.UpdateProjectInput `json:"projectData"`
		}
		if !cl.decode(env.Data, &in) {
			return
		}
		project, err := h.svc.UpdateProject(ctx, in.ProjectID, in.ProjectData)
		if err != nil {
			cl.fail(err)
			return
		}
		cl.enqueue(events.EventProjectUpdated, project)

	case eventDeleteProject:
		var in struct {
			ProjectID string `json:"projectId"`
		}
		if !cl.decode(env.Data, &in) {
			return
		}
		if err := h.svc.DeleteProject(ctx, in.ProjectID); err != nil {
			cl.fail(err)
			return
		}
		cl.sess.ClearActiveProject(in.ProjectID)
		cl.enqueue(events.EventProjectDeleted, map[string]string{"id": in.ProjectID})

	case eventSubscribeSource:
		var in struct {
			SourceID string `json:"sourceId"`
		}
		if !cl.decode(env.Data, &in) {
			return
		}
		if err := cl.sess.Subscribe(in.SourceID); err != nil {
			cl.fail(err)
		}

	case eventUnsubscribeSource:
		var in struct {
			SourceID string `json:"sourceId"`
		}
		if !cl.decode(env.Data, &in) {
			return
		}
		cl.sess.Unsubscribe(in.SourceID)

	case eventAddSource:
		var in service.AddSourceInput
		if !cl.decode(env.Data, &in) {
			return
		}
		if _, err := h.svc.AddSource(ctx, in, cl.sess.ActiveProject()); err != nil {
			cl.fail(err)
		}

	case eventDeleteSource:
		var in struct {
			SourceID string `json:"sourceId"`
		}
		if !cl.decode(env.Data, &in) {
			return
		}
		if err := h.svc.DeleteSource(ctx, in.SourceID); err != nil {
			cl.fail(err)
		}

	default:
		cl.sendError(fmt.Sprintf("Unknown event: %s", env.Event))
	}
}

type projectData struct {
	Project     interface{} `json:"project"`
	DataSources interface{} `json:"dataSources"`
}

// userMessage strips internal detail from storage failures; clients see
// the stable message only.
func userMessage(err error) string {
	var storage *service.StorageError
	if errors.As(err, &storage) {
		return storage.Message
	}
	return err.Error()
}
