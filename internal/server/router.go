package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/deepthoughtslab/deepthoughts/internal/attachments"
	"github.com/deepthoughtslab/deepthoughts/internal/thoughts"
)

const heartbeatInterval = 25 * time.Second

var (
	errMissingManager     = errors.New("thought manager dependency required")
	errMissingAttachments = errors.New("attachment store dependency required")
)

// Dependencies wires the HTTP layer to the application core.
type Dependencies struct {
	Manager     *thoughts.Manager
	Attachments *attachments.BlobStore
	Events      *EventDispatcher
	Logger      *zap.Logger
}

// NewHTTPHandler builds the gin router serving the journaling API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Manager == nil {
		return nil, errMissingManager
	}
	if deps.Attachments == nil {
		return nil, errMissingAttachments
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	events := deps.Events
	if events == nil {
		events = NewEventDispatcher()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		manager:     deps.Manager,
		attachments: deps.Attachments,
		events:      events,
		logger:      logger,
	}

	router.GET("/thoughts", handler.handleListThoughts)
	router.POST("/thoughts", handler.handleCreateThought)
	router.GET("/thoughts/search", handler.handleSearchThoughts)
	router.POST("/thoughts/filter", handler.handleFilterThoughts)
	router.GET("/thoughts/:id", handler.handleGetThought)
	router.PATCH("/thoughts/:id", handler.handleUpdateThought)
	router.DELETE("/thoughts/:id", handler.handleDeleteThought)
	router.POST("/thoughts/:id/blocks", handler.handleAddBlock)
	router.PATCH("/thoughts/:id/blocks/:blockId", handler.handleUpdateBlock)
	router.DELETE("/thoughts/:id/blocks/:blockId", handler.handleDeleteBlock)
	router.POST("/thoughts/:id/favorite", handler.handleToggleFavorite)
	router.POST("/thoughts/:id/share", handler.handleShareThought)
	router.GET("/meta/tags", handler.handleListTags)
	router.GET("/meta/categories", handler.handleListCategories)
	router.GET("/meta/moods", handler.handleListMoods)
	router.PUT("/attachments/:blockId", handler.handlePutAttachment)
	router.GET("/attachments/:blockId", handler.handleGetAttachment)
	router.DELETE("/attachments/:blockId", handler.handleDeleteAttachment)
	router.GET("/events", handler.handleEvents)

	return router, nil
}

type httpHandler struct {
	manager     *thoughts.Manager
	attachments *attachments.BlobStore
	events      *EventDispatcher
	logger      *zap.Logger
}

func (h *httpHandler) handleListThoughts(c *gin.Context) {
	all, err := h.manager.GetAllThoughts(c.Request.Context())
	if err != nil {
		h.respondManagerError(c, "failed to list thoughts", err)
		return
	}
	c.JSON(http.StatusOK, all)
}

func (h *httpHandler) handleCreateThought(c *gin.Context) {
	var payload thoughts.Thought
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	created, err := h.manager.CreateThought(c.Request.Context(), payload)
	if err != nil {
		h.respondManagerError(c, "failed to create thought", err)
		return
	}
	h.events.Publish(Event{EventType: EventThoughtChanged, ThoughtID: created.ID})
	c.JSON(http.StatusCreated, created)
}

func (h *httpHandler) handleGetThought(c *gin.Context) {
	thought, err := h.manager.GetThought(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondManagerError(c, "failed to load thought", err)
		return
	}
	if thought == nil {
		c.Status(http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, thought)
}

type thoughtUpdatePayload struct {
	Title      *string           `json:"title"`
	Blocks     *[]thoughts.Block `json:"blocks"`
	Tags       *[]string         `json:"tags"`
	Category   *string           `json:"category"`
	IsFavorite *bool             `json:"isFavorite"`
	Mood       *string           `json:"mood"`
}

func (h *httpHandler) handleUpdateThought(c *gin.Context) {
	var payload thoughtUpdatePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	update := thoughts.ThoughtUpdate{
		Title:      payload.Title,
		Category:   payload.Category,
		IsFavorite: payload.IsFavorite,
	}
	if payload.Blocks != nil {
		update.Blocks = *payload.Blocks
	}
	if payload.Tags != nil {
		update.Tags = *payload.Tags
	}
	if payload.Mood != nil {
		mood := thoughts.Mood(*payload.Mood)
		update.Mood = &mood
	}

	updated, err := h.manager.UpdateThought(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		h.respondManagerError(c, "failed to update thought", err)
		return
	}
	if updated == nil {
		c.Status(http.StatusNoContent)
		return
	}
	h.events.Publish(Event{EventType: EventThoughtChanged, ThoughtID: updated.ID})
	c.JSON(http.StatusOK, updated)
}

func (h *httpHandler) handleDeleteThought(c *gin.Context) {
	id := c.Param("id")
	if err := h.manager.DeleteThought(c.Request.Context(), id); err != nil {
		h.respondManagerError(c, "failed to delete thought", err)
		return
	}
	h.events.Publish(Event{EventType: EventThoughtChanged, ThoughtID: id})
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleAddBlock(c *gin.Context) {
	var block thoughts.Block
	if err := c.ShouldBindJSON(&block); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	updated, err := h.manager.AddBlock(c.Request.Context(), c.Param("id"), block)
	if err != nil {
		h.respondManagerError(c, "failed to add block", err)
		return
	}
	if updated == nil {
		c.Status(http.StatusNoContent)
		return
	}
	h.events.Publish(Event{EventType: EventThoughtChanged, ThoughtID: updated.ID})
	c.JSON(http.StatusOK, updated)
}

type blockUpdatePayload struct {
	Content   *string                   `json:"content"`
	Position  *int                      `json:"position"`
	Timestamp *time.Time                `json:"timestamp"`
	Media     *thoughts.MediaAttachment `json:"media"`
	Location  *thoughts.LocationInfo    `json:"location"`
	Mood      *thoughts.MoodInfo        `json:"mood"`
}

func (p blockUpdatePayload) toUpdate() thoughts.BlockUpdate {
	update := thoughts.BlockUpdate{
		Content:   p.Content,
		Position:  p.Position,
		Timestamp: p.Timestamp,
	}
	switch {
	case p.Media != nil:
		update.Payload = *p.Media
	case p.Location != nil:
		update.Payload = *p.Location
	case p.Mood != nil:
		update.Payload = *p.Mood
	}
	return update
}

func (h *httpHandler) handleUpdateBlock(c *gin.Context) {
	var payload blockUpdatePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	updated, err := h.manager.UpdateBlock(c.Request.Context(), c.Param("id"), c.Param("blockId"), payload.toUpdate())
	if err != nil {
		h.respondManagerError(c, "failed to update block", err)
		return
	}
	if updated == nil {
		c.Status(http.StatusNoContent)
		return
	}
	h.events.Publish(Event{EventType: EventThoughtChanged, ThoughtID: updated.ID})
	c.JSON(http.StatusOK, updated)
}

func (h *httpHandler) handleDeleteBlock(c *gin.Context) {
	updated, err := h.manager.DeleteBlock(c.Request.Context(), c.Param("id"), c.Param("blockId"))
	if err != nil {
		h.respondManagerError(c, "failed to delete block", err)
		return
	}
	if updated == nil {
		c.Status(http.StatusNoContent)
		return
	}
	h.events.Publish(Event{EventType: EventThoughtChanged, ThoughtID: updated.ID})
	c.JSON(http.StatusOK, updated)
}

func (h *httpHandler) handleToggleFavorite(c *gin.Context) {
	updated, err := h.manager.ToggleFavorite(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondManagerError(c, "failed to toggle favorite", err)
		return
	}
	if updated == nil {
		c.Status(http.StatusNoContent)
		return
	}
	h.events.Publish(Event{EventType: EventThoughtChanged, ThoughtID: updated.ID})
	c.JSON(http.StatusOK, updated)
}

func (h *httpHandler) handleShareThought(c *gin.Context) {
	if err := h.manager.ShareThought(c.Request.Context(), c.Param("id")); err != nil {
		h.respondManagerError(c, "failed to share thought", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleSearchThoughts(c *gin.Context) {
	matched, err := h.manager.SearchThoughts(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.respondManagerError(c, "failed to search thoughts", err)
		return
	}
	c.JSON(http.StatusOK, matched)
}

func (h *httpHandler) handleFilterThoughts(c *gin.Context) {
	var filters thoughts.Filters
	if err := c.ShouldBindJSON(&filters); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	matched, err := h.manager.FilterThoughts(c.Request.Context(), filters)
	if err != nil {
		h.respondManagerError(c, "failed to filter thoughts", err)
		return
	}
	c.JSON(http.StatusOK, matched)
}

func (h *httpHandler) handleListTags(c *gin.Context) {
	values, err := h.manager.AllTags(c.Request.Context())
	if err != nil {
		h.respondManagerError(c, "failed to list tags", err)
		return
	}
	c.JSON(http.StatusOK, values)
}

func (h *httpHandler) handleListCategories(c *gin.Context) {
	values, err := h.manager.AllCategories(c.Request.Context())
	if err != nil {
		h.respondManagerError(c, "failed to list categories", err)
		return
	}
	c.JSON(http.StatusOK, values)
}

func (h *httpHandler) handleListMoods(c *gin.Context) {
	values, err := h.manager.AllMoods(c.Request.Context())
	if err != nil {
		h.respondManagerError(c, "failed to list moods", err)
		return
	}
	c.JSON(http.StatusOK, values)
}

func (h *httpHandler) handlePutAttachment(c *gin.Context) {
	blockID := c.Param("blockId")
	data, err := io.ReadAll(c.Request.Body)
	if err != nil || len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty_attachment"})
		return
	}
	mediaType := c.ContentType()
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}

	ctx := c.Request.Context()
	if err := h.attachments.Put(ctx, blockID, mediaType, data); err != nil {
		h.logger.Error("failed to store attachment", zap.Error(err), zap.String("block_id", blockID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "attachment_store_failed"})
		return
	}
	url, err := h.attachments.URLFor(ctx, blockID)
	if err != nil {
		h.logger.Error("failed to derive attachment url", zap.Error(err), zap.String("block_id", blockID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "attachment_url_failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"block_id": blockID, "url": url})
}

func (h *httpHandler) handleGetAttachment(c *gin.Context) {
	blob, err := h.attachments.Get(c.Request.Context(), c.Param("blockId"))
	if errors.Is(err, attachments.ErrBlobNotFound) {
		c.Status(http.StatusNotFound)
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "attachment_read_failed"})
		return
	}
	c.Data(http.StatusOK, blob.MediaType, blob.Data)
}

func (h *httpHandler) handleDeleteAttachment(c *gin.Context) {
	blockID := c.Param("blockId")
	if err := h.attachments.Delete(c.Request.Context(), blockID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "attachment_delete_failed"})
		return
	}
	h.attachments.URLs().Revoke(blockID)
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleEvents(c *gin.Context) {
	stream, cleanup := h.events.Subscribe(c.Request.Context())
	defer cleanup()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(event.EventType, event)
			return true
		case <-heartbeat.C:
			c.SSEvent(eventHeartbeat, gin.H{"source": eventSourceBackend})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (h *httpHandler) respondManagerError(c *gin.Context, message string, err error) {
	h.logger.Error(message, zap.Error(err))
	code := "internal_error"
	var managerErr *thoughts.ManagerError
	if errors.As(err, &managerErr) {
		code = managerErr.Code()
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": code})
}
