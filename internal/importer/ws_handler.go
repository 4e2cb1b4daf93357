package importer

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	httperrors "github.com/gokatarajesh/geo-challenges/pkg/http/errors"
	ws "github.com/gokatarajesh/geo-challenges/pkg/http/ws"
)

// WSHandler streams import job progress to subscribed sockets.
type WSHandler struct {
	hub    *ws.Hub
	jobs   *Jobs
	logger zerolog.Logger
}

func NewWSHandler(hub *ws.Hub, jobs *Jobs, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub:    hub,
		jobs:   jobs,
		logger: logger.With().Str("component", "importer_ws").Logger(),
	}
}

// HandleWebSocket upgrades GET /ws/imports.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	h.HandleConnection(conn)
}

// HandleConnection registers conn with the hub and serves it until it closes.
func (h *WSHandler) HandleConnection(conn ws.Conn) {
	connID := uuid.New()
	wsConn := ws.NewConnection(conn, h.logger.With().Str("conn_id", connID.String()).Logger())
	h.hub.RegisterConnection(connID, wsConn)

	go wsConn.WritePump()

	wsConn.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(connID, msg)
	})

	h.hub.UnregisterConnection(connID)
}

func (h *WSHandler) handleMessage(connID uuid.UUID, msg ws.Message) error {
	switch msg.Type {
	case ws.TypeSubscribeImport:
		return h.handleSubscribe(connID, msg)
	case ws.TypeUnsubscribeImport:
		jobID, err := parseJobID(msg.Payload)
		if err != nil {
			return h.sendError(connID, httperrors.ErrCodeInvalidPayload, "Invalid unsubscribe_import payload")
		}
		h.hub.Unsubscribe(jobID, connID)
		return nil
	case ws.TypePing:
		return h.hub.Send(connID, ws.Message{Type: ws.TypePong, Payload: json.RawMessage(`{}`), RequestID: msg.RequestID})
	default:
		return h.sendError(connID, httperrors.ErrCodeUnknownMessageType, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

// handleSubscribe follows a job and immediately replays its latest state, so
// late subscribers of a finished job still get import_complete. Subscribing
// happens before the snapshot is read, so a job finishing in between is
// either seen as finished or publishes to this connection.
func (h *WSHandler) handleSubscribe(connID uuid.UUID, msg ws.Message) error {
	jobID, err := parseJobID(msg.Payload)
	if err != nil {
		return h.sendError(connID, httperrors.ErrCodeInvalidPayload, "Invalid subscribe_import payload")
	}
	h.hub.Subscribe(jobID, connID)
	job, ok := h.jobs.Get(jobID)
	if !ok {
		h.hub.Unsubscribe(jobID, connID)
		return h.sendError(connID, httperrors.ErrCodeJobNotFound, "Import job not found")
	}

	ack, err := ws.NewMessage(ws.TypeSubscribed, ws.SubscribeImportPayload{JobID: jobID.String()})
	if err != nil {
		return err
	}
	ack.RequestID = msg.RequestID
	if err := h.hub.Send(connID, ack); err != nil {
		return err
	}

	var state ws.Message
	if job.Status == JobRunning {
		state, err = ws.NewMessage(ws.TypeImportProgress, ws.ImportProgressPayload{
			JobID:          jobID.String(),
			AddedCount:     job.Progress.AddedCount,
			FailedCount:    job.Progress.FailedCount,
			TotalCount:     job.Progress.TotalCount,
			RemainingCount: job.Progress.RemainingCount,
		})
	} else {
		state, err = ws.NewMessage(ws.TypeImportComplete, CompletePayload(job))
	}
	if err != nil {
		return err
	}
	return h.hub.Send(connID, state)
}

func parseJobID(payload json.RawMessage) (uuid.UUID, error) {
	var req ws.SubscribeImportPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(req.JobID)
}

func (h *WSHandler) sendError(connID uuid.UUID, code, message string) error {
	msg, err := ws.NewMessage(ws.TypeError, ws.ErrorPayload{Code: code, Message: message})
	if err != nil {
		return err
	}
	return h.hub.Send(connID, msg)
}
