package handler

import (
	"context"
	"net/http"

	"github.com/young1lin/flux/internal/models"
	"github.com/young1lin/flux/internal/pipeline"
	"github.com/young1lin/flux/internal/search"
)

// Pipeline is the query engine behind the search, answer and message routes
type Pipeline interface {
	ValidateQuery(query string) (string, error)
	Search(ctx context.Context, query string, limit int, opts search.Options) (*pipeline.Retrieval, error)
	Answer(ctx context.Context, query string, opts search.Options) (*models.AnswerResponse, error)
	Run(ctx context.Context, query string, history []models.ConversationTurn, opts search.Options) (models.ConversationTurn, error)
}

// Store persists conversations
type Store interface {
	Create() (*models.Conversation, error)
	Get(id string) (*models.Conversation, error)
	List(page, pageSize int) ([]models.ConversationSummary, int, error)
	AppendTurn(id string, turn models.ConversationTurn) (*models.Conversation, error)
	Delete(id string) error
	MaxMessages() int
}

// Status reports which credentials are configured
type Status struct {
	SearchReady bool
	RerankReady bool
	AnswerReady bool
}

// Handler serves the flux HTTP API
type Handler struct {
	pipeline  Pipeline
	store     Store
	extractor search.Extractor
	status    Status
}

// New creates a handler. extractor may be nil when no provider can
// fetch page contents.
func New(p Pipeline, store Store, extractor search.Extractor, status Status) *Handler {
	return &Handler{
		pipeline:  p,
		store:     store,
		extractor: extractor,
		status:    status,
	}
}

type indexResponse struct {
	Message string `json:"message"`
	Health  string `json:"health"`
	Docs    string `json:"docs"`
}

type healthResponse struct {
	Status      string `json:"status"`
	TavilyReady bool   `json:"tavily_ready"`
	CohereReady bool   `json:"cohere_ready"`
	AnswerReady bool   `json:"answer_ready"`
}

type routeDoc struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

var routeDocs = []routeDoc{
	{http.MethodGet, "/health", "configured providers"},
	{http.MethodGet, "/search?q&limit&topic&days", "ranked web results"},
	{http.MethodGet, "/answer?q&topic&days", "answer with citations"},
	{http.MethodGet, "/contents?urls", "cleaned page text for up to 10 URLs"},
	{http.MethodPost, "/conversations", "start a conversation"},
	{http.MethodGet, "/conversations?page&page_size", "list conversations, newest first"},
	{http.MethodGet, "/conversations/{id}", "conversation with its messages"},
	{http.MethodPost, "/conversations/{id}/messages", "ask a follow-up question"},
	{http.MethodDelete, "/conversations/{id}", "delete a conversation"},
}

// Index handles GET /
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, indexResponse{
		Message: "Flux API",
		Health:  "/health",
		Docs:    "/docs",
	})
}

// Docs handles GET /docs
func (h *Handler) Docs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, routeDocs)
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		TavilyReady: h.status.SearchReady,
		CohereReady: h.status.RerankReady,
		AnswerReady: h.status.AnswerReady,
	})
}
