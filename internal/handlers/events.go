package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/openvolume/volcached/internal/notify"
	appErrors "github.com/openvolume/volcached/pkg/errors"
	"github.com/openvolume/volcached/pkg/response"
)

// EventsHandler exposes persisted cache events and the live event stream.
type EventsHandler struct {
	recorder *notify.Recorder
	hub      *notify.Hub
}

// NewEventsHandler constructs the events handler. The hub may be nil when
// streaming is disabled.
func NewEventsHandler(recorder *notify.Recorder, hub *notify.Hub) (*EventsHandler, error) {
	if recorder == nil {
		return nil, errors.New("events handler: recorder is required")
	}
	return &EventsHandler{recorder: recorder, hub: hub}, nil
}

// List responds with the most recent cache events.
//
// GET /api/events
func (h *EventsHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	events, err := h.recorder.Recent(requestContext(c), limit)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "failed to list events"))
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, events, &response.Meta{Total: len(events), Limit: limit})
}

// Stream upgrades to a websocket and delivers events as they happen.
//
// GET /ws/events
func (h *EventsHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		response.Error(c, appErrors.New("STREAM_DISABLED", "Event streaming is disabled", http.StatusNotFound))
		return
	}
	h.hub.Serve(c.Writer, c.Request)
}
