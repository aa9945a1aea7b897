package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/young1lin/flux/internal/models"
	"github.com/young1lin/flux/pkg/logger"
)

var (
	bucketName  = []byte("conversations")
	createdName = []byte("conversations_by_created")
)

var (
	// ErrNotFound is returned when no conversation has the given ID
	ErrNotFound = errors.New("conversation not found")
	// ErrMessageLimit is returned when a conversation is full
	ErrMessageLimit = errors.New("conversation message limit reached")
)

const (
	DefaultMaxConversations = 5000
	DefaultMaxMessages      = 100
	maxMessagesCeiling      = 500
)

// ConversationStore provides persistent storage for conversations using BBolt.
// Records live in one bucket keyed by ID; a second bucket orders them by
// creation time for listing and eviction.
type ConversationStore struct {
	db               *bbolt.DB
	maxConversations int
	maxMessages      int
	now              func() time.Time
	newID            func() string
}

// Option configures a ConversationStore
type Option func(*ConversationStore)

// WithMaxConversations caps the number of stored conversations
func WithMaxConversations(n int) Option {
	return func(s *ConversationStore) {
		if n > 0 {
			s.maxConversations = n
		}
	}
}

// WithMaxMessages caps turns per conversation, clamped to 1..500
func WithMaxMessages(n int) Option {
	return func(s *ConversationStore) {
		switch {
		case n < 1:
			s.maxMessages = 1
		case n > maxMessagesCeiling:
			s.maxMessages = maxMessagesCeiling
		default:
			s.maxMessages = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *ConversationStore) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *ConversationStore) { s.newID = newID }
}

// NewConversationStore creates a new conversation store with the given database path
func NewConversationStore(path string, opts ...Option) (*ConversationStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	// Create buckets if not exists
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketName); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(createdName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &ConversationStore{
		db:               db,
		maxConversations: DefaultMaxConversations,
		maxMessages:      DefaultMaxMessages,
		now:              time.Now,
		newID:            uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	logger.Info("conversation store initialized",
		zap.String("path", path),
		zap.Int("max_conversations", s.maxConversations),
		zap.Int("max_messages", s.maxMessages),
	)
	return s, nil
}

// MaxMessages is the per-conversation turn limit
func (s *ConversationStore) MaxMessages() int {
	return s.maxMessages
}

// createdKey sorts by creation time, then ID
func createdKey(c *models.Conversation) []byte {
	key := make([]byte, 8, 8+len(c.ID))
	binary.BigEndian.PutUint64(key, uint64(c.CreatedAt.UnixNano()))
	return append(key, c.ID...)
}

func putConversation(tx *bbolt.Tx, c *models.Conversation) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketName).Put([]byte(c.ID), data)
}

func getConversation(tx *bbolt.Tx, id string) (*models.Conversation, error) {
	data := tx.Bucket(bucketName).Get([]byte(id))
	if data == nil {
		return nil, ErrNotFound
	}
	var c models.Conversation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding conversation %s: %w", id, err)
	}
	if c.Turns == nil {
		c.Turns = []models.ConversationTurn{}
	}
	return &c, nil
}

// Create stores a new empty conversation, evicting the oldest ones when
// the store is full.
func (s *ConversationStore) Create() (*models.Conversation, error) {
	c := &models.Conversation{
		ID:        s.newID(),
		CreatedAt: s.now().UTC(),
		Turns:     []models.ConversationTurn{},
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := s.evict(tx); err != nil {
			return err
		}
		if err := putConversation(tx, c); err != nil {
			return err
		}
		return tx.Bucket(createdName).Put(createdKey(c), []byte(c.ID))
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func countKeys(b *bbolt.Bucket) int {
	n := 0
	cur := b.Cursor()
	for k, _ := cur.First(); k != nil; k, _ = cur.Next() {
		n++
	}
	return n
}

// evict drops the oldest conversations until one more fits
func (s *ConversationStore) evict(tx *bbolt.Tx) error {
	idx := tx.Bucket(createdName)
	count := countKeys(idx)
	if count < s.maxConversations {
		return nil
	}

	cur := idx.Cursor()
	for k, v := cur.First(); k != nil && count >= s.maxConversations; k, v = cur.First() {
		id := string(v)
		if err := tx.Bucket(bucketName).Delete(v); err != nil {
			return err
		}
		if err := cur.Delete(); err != nil {
			return err
		}
		count--
		logger.Debug("evicted oldest conversation", zap.String("id", id))
	}
	return nil
}

// Get retrieves a conversation by ID
func (s *ConversationStore) Get(id string) (*models.Conversation, error) {
	var c *models.Conversation
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		c, err = getConversation(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List returns one page of conversations, newest first, and the total count
func (s *ConversationStore) List(page, pageSize int) ([]models.ConversationSummary, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	items := make([]models.ConversationSummary, 0, pageSize)
	total := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		idx := tx.Bucket(createdName)
		total = countKeys(idx)

		skip := (page - 1) * pageSize
		cur := idx.Cursor()
		for k, v := cur.Last(); k != nil && len(items) < pageSize; k, v = cur.Prev() {
			if skip > 0 {
				skip--
				continue
			}
			c, err := getConversation(tx, string(v))
			if err != nil {
				return err
			}
			items = append(items, c.Summary())
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// AppendTurn adds a validated turn to the conversation in one transaction
func (s *ConversationStore) AppendTurn(id string, turn models.ConversationTurn) (*models.Conversation, error) {
	if err := turn.Validate(); err != nil {
		return nil, err
	}
	if turn.Citations == nil {
		turn.Citations = []models.Citation{}
	}

	var c *models.Conversation
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var err error
		c, err = getConversation(tx, id)
		if err != nil {
			return err
		}
		if c.MessageCount() >= s.maxMessages {
			return ErrMessageLimit
		}
		c.Turns = append(c.Turns, turn)
		return putConversation(tx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a conversation by ID
func (s *ConversationStore) Delete(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		c, err := getConversation(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Bucket(createdName).Delete(createdKey(c)); err != nil {
			return err
		}
		return tx.Bucket(bucketName).Delete([]byte(id))
	})
}

// Close closes the database connection
func (s *ConversationStore) Close() error {
	return s.db.Close()
}
