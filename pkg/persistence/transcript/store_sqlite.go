package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = &SQLiteStore{}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite transcript store: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS outputs (
			request_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			application_id TEXT NOT NULL DEFAULT '',
			conversation_id TEXT NOT NULL DEFAULT '',
			query TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			user_message_id TEXT NOT NULL DEFAULT '',
			system_message_id TEXT NOT NULL DEFAULT '',
			created_at_ms INTEGER NOT NULL,
			PRIMARY KEY (request_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS outputs_by_conversation ON outputs(conversation_id, created_at_ms);`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return errors.Wrap(err, "sqlite transcript store: migrate")
		}
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, r Record) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite transcript store: db is nil")
	}
	if r.RequestID == "" {
		return errors.New("sqlite transcript store: empty request id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outputs(request_id, seq, application_id, conversation_id, query, kind, content, user_message_id, system_message_id, created_at_ms)
		VALUES(?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(request_id, seq) DO UPDATE SET
			conversation_id = excluded.conversation_id,
			kind = excluded.kind,
			content = excluded.content,
			user_message_id = excluded.user_message_id,
			system_message_id = excluded.system_message_id
	`, r.RequestID, r.Seq, r.ApplicationID, r.ConversationID, r.Query, r.Kind, r.Content, r.UserMessageID, r.SystemMessageID, r.CreatedAtMs)
	if err != nil {
		return errors.Wrap(err, "sqlite transcript store: save")
	}
	return nil
}

func (s *SQLiteStore) SetConversation(ctx context.Context, requestID, conversationID string) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite transcript store: db is nil")
	}
	if requestID == "" || conversationID == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE outputs SET conversation_id = ? WHERE request_id = ? AND conversation_id = ''`,
		conversationID, requestID)
	if err != nil {
		return errors.Wrap(err, "sqlite transcript store: set conversation")
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, q Query) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite transcript store: db is nil")
	}

	var (
		where []string
		args  []any
	)
	if q.RequestID != "" {
		where = append(where, "request_id = ?")
		args = append(args, q.RequestID)
	}
	if q.ConversationID != "" {
		where = append(where, "conversation_id = ?")
		args = append(args, q.ConversationID)
	}

	query := `SELECT request_id, seq, application_id, conversation_id, query, kind, content, user_message_id, system_message_id, created_at_ms FROM outputs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at_ms, request_id, seq"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite transcript store: list")
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.RequestID, &r.Seq, &r.ApplicationID, &r.ConversationID, &r.Query, &r.Kind, &r.Content, &r.UserMessageID, &r.SystemMessageID, &r.CreatedAtMs); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SQLiteDSNForFile builds a go-sqlite3 DSN for a transcript file.
func SQLiteDSNForFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("sqlite transcript store: empty path")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path), nil
}
