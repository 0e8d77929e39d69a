
// Package api exposes the chatbot over HTTP.
package api

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"support-chatbot/internal/catalog"
	"support-chatbot/internal/metrics"
	"support-chatbot/internal/models"
	"support-chatbot/pkg/logger"
)

type Chatter interface {
	Respond(ctx context.Context, utterance string, loc *models.Location) models.Reply
}

type KnowledgeBase interface {
	Refresh(ctx context.Context) (*models.RefreshSummary, error)
	ProductCounts() (*models.ProductCountSnapshot, bool)
	Ready() bool
}

type Handler struct {
	chat           Chatter
	kb             KnowledgeBase
	catalog        *catalog.Catalog
	log            logger.Logger
	refreshTimeout time.Duration
	now            func() time.Time
}

func NewHandler(chat Chatter, kb KnowledgeBase, cat *catalog.Catalog, refreshTimeout time.Duration, log logger.Logger) *Handler {
	return &Handler{
		chat:           chat,
		kb:             kb,
		catalog:        cat,
		log:            log,
		refreshTimeout: refreshTimeout,
		now:            time.Now,
	}
}

// NewRouter wires every route onto a fresh gin engine. A nil metrics
// disables the /metrics route.
func NewRouter(h *Handler, m *metrics.Metrics, log logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestIDMiddleware(), LoggerMiddleware(log))

	r.POST("/chat", h.Chat)
	r.POST("/refresh-knowledge", h.RefreshKnowledge)
	r.GET("/product-counts", h.ProductCounts)
	r.GET("/products", h.Products)
	r.GET("/health", h.Health)
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}
	return r
}

// ServeFrontend mounts the chat page from dir/index.html at / and the rest
// of dir under /static. An empty dir mounts nothing.
func ServeFrontend(r *gin.Engine, dir string) {
	if dir == "" {
		return
	}
	r.StaticFile("/", filepath.Join(dir, "index.html"))
	r.Static("/static", dir)
}

type chatRequest struct {
	Message  string           `json:"message"`
	Location *models.Location `json:"location,omitempty"`
}

type chatResponse struct {
	Response  string        `json:"response"`
	Timestamp time.Time     `json:"timestamp"`
	QueryType models.Intent `json:"query_type"`
	RequestID string        `json:"request_id"`
}

func (h *Handler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No message provided"})
		return
	}

	reply := h.chat.Respond(c.Request.Context(), msg, req.Location)
	c.JSON(http.StatusOK, chatResponse{
		Response:  reply.Text,
		Timestamp: h.now(),
		QueryType: reply.Intent,
		RequestID: c.GetString(requestIDKey),
	})
}

type refreshResponse struct {
	Status   string   `json:"status"`
	Message  string   `json:"message"`
	Pages    int      `json:"pages"`
	Failed   []string `json:"failed,omitempty"`
	Products int      `json:"products"`
}

// RefreshKnowledge runs a pass detached from the client connection so a
// dropped request does not cancel a pass other callers may be sharing.
func (h *Handler) RefreshKnowledge(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.refreshTimeout)
	defer cancel()

	summary, err := h.kb.Refresh(ctx)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh knowledge base"})
		return
	}
	c.JSON(http.StatusOK, refreshResponse{
		Status:   "success",
		Message:  "Knowledge base refreshed",
		Pages:    summary.Pages,
		Failed:   summary.Failed,
		Products: summary.Products,
	})
}

func (h *Handler) ProductCounts(c *gin.Context) {
	counts, ok := h.kb.ProductCounts()
	if !ok {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (h *Handler) Products(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.ByKey())
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"timestamp":       h.now(),
		"knowledge_ready": h.kb.Ready(),
		"features": gin.H{
			"location_services":  true,
			"product_counts":     true,
			"amazon_integration": true,
			"enhanced_rag":       true,
		},
	})
}
