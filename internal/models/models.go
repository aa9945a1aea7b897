package models

import (
	"errors"
	"strings"
	"time"
)

// Citation is the externally visible projection of a RankedResult
type Citation struct {
	Title string  `json:"title"`
	URL   string  `json:"url"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// ConversationTurn is one query and its outcome. Exactly one of Answer and
// Error is set; build turns with NewAnsweredTurn or NewErroredTurn.
type ConversationTurn struct {
	ID        string     `json:"id"`
	Query     string     `json:"query"`
	Answer    string     `json:"answer,omitempty"`
	Error     string     `json:"error,omitempty"`
	Citations []Citation `json:"citations"`
	CreatedAt time.Time  `json:"created_at"`
}

var errTurnOutcome = errors.New("turn must have exactly one of answer or error")

// NewAnsweredTurn builds a turn for a successful answer.
func NewAnsweredTurn(id, query, answer string, citations []Citation, createdAt time.Time) ConversationTurn {
	if citations == nil {
		citations = []Citation{}
	}
	return ConversationTurn{
		ID:        id,
		Query:     query,
		Answer:    answer,
		Citations: citations,
		CreatedAt: createdAt.UTC(),
	}
}

// NewErroredTurn builds a turn for a failed pipeline run. Errored turns never
// carry citations.
func NewErroredTurn(id, query, errMsg string, createdAt time.Time) ConversationTurn {
	if strings.TrimSpace(errMsg) == "" {
		errMsg = "unknown error"
	}
	return ConversationTurn{
		ID:        id,
		Query:     query,
		Error:     errMsg,
		Citations: []Citation{},
		CreatedAt: createdAt.UTC(),
	}
}

// Answered reports whether the turn completed with an answer
func (t ConversationTurn) Answered() bool {
	return t.Answer != "" && t.Error == ""
}

// Validate checks the answer/error exclusivity
func (t ConversationTurn) Validate() error {
	if (t.Answer == "") == (t.Error == "") {
		return errTurnOutcome
	}
	return nil
}

// Conversation is an append-only sequence of turns
type Conversation struct {
	ID        string             `json:"id"`
	CreatedAt time.Time          `json:"created_at"`
	Turns     []ConversationTurn `json:"messages"`
}

// MessageCount is derived from the turn sequence, never tracked separately.
func (c *Conversation) MessageCount() int {
	return len(c.Turns)
}

// TurnQueries returns the query of each turn in order
func TurnQueries(turns []ConversationTurn) []string {
	queries := make([]string, 0, len(turns))
	for _, t := range turns {
		queries = append(queries, t.Query)
	}
	return queries
}

// ConversationSummary is a conversation without its turns
type ConversationSummary struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
}

// Summary returns the list view of the conversation
func (c *Conversation) Summary() ConversationSummary {
	return ConversationSummary{
		ID:           c.ID,
		CreatedAt:    c.CreatedAt,
		MessageCount: c.MessageCount(),
	}
}
