// Package convstore implements the conversation message store spec.md's
// PURPOSE & SCOPE names as in-scope "persistence layer contracts only": a
// place the activity log appends its lines to, keyed by conversation id,
// for later retrieval. Grounded on the
// codeready-toolchain-tarsy repo's pgx-based persistence conventions
// (pkg/events/listener.go's dedicated-connection pattern), generalized here
// to a plain insert/query store since the engine has no need for LISTEN.
package convstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Message is one stored conversation line.
type Message struct {
	ConversationID string
	Role           string
	Content        string
	CreatedAt      time.Time
}

// Store is the persistence-layer contract the engine depends on: append a
// message, fetch a conversation's history in order.
type Store interface {
	Append(ctx context.Context, msg Message) error
	History(ctx context.Context, conversationID string) ([]Message, error)
	Close()
}

// PGStore is a pgx-backed Store. The schema is a single append-only table:
//
//	CREATE TABLE conversation_messages (
//	  id SERIAL PRIMARY KEY,
//	  conversation_id TEXT NOT NULL,
//	  role TEXT NOT NULL,
//	  content TEXT NOT NULL,
//	  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects to connString and returns a ready Store.
func NewPGStore(ctx context.Context, connString string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("convstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("convstore: ping: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

func (s *PGStore) Append(ctx context.Context, msg Message) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversation_messages (conversation_id, role, content) VALUES ($1, $2, $3)`,
		msg.ConversationID, msg.Role, msg.Content)
	if err != nil {
		return fmt.Errorf("convstore: append: %w", err)
	}
	return nil
}

func (s *PGStore) History(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT conversation_id, role, content, created_at FROM conversation_messages
		 WHERE conversation_id = $1 ORDER BY id ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("convstore: history: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("convstore: scan: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("convstore: rows: %w", err)
	}
	return out, nil
}

func (s *PGStore) Close() { s.pool.Close() }
