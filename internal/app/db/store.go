package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"roomhub/internal/app/store"
)

// Store implements store.Store on PostgreSQL. Every method is a single statement or a
// transaction confined to one record and its member rows.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const roomColumns = `id, name, description, creator_id, password_hash, is_public, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (*store.Room, error) {
	var r store.Room
	if err := row.Scan(&r.ID, &r.Name, &r.Description, &r.CreatorID, &r.PasswordHash, &r.IsPublic, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Members = []string{}
	return &r, nil
}

func (s *Store) CreateRoom(ctx context.Context, room *store.Room) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create room: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO rooms (id, name, description, creator_id, password_hash, is_public)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		room.ID, room.Name, room.Description, room.CreatorID, room.PasswordHash, room.IsPublic,
	).Scan(&room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		return mapError(err)
	}

	for _, userID := range room.Members {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO room_members (room_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			room.ID, userID,
		); err != nil {
			return fmt.Errorf("insert room member %s: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create room: %w", err)
	}
	return nil
}

func (s *Store) GetRoom(ctx context.Context, id string) (*store.Room, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id)
	room, err := scanRoom(row)
	if err != nil {
		return nil, mapError(err)
	}

	room.Members, err = s.roomMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (s *Store) roomMembers(ctx context.Context, roomID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM room_members WHERE room_id = $1 ORDER BY joined_at, user_id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("query room members: %w", err)
	}
	defer rows.Close()

	members := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan room member: %w", err)
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

func (s *Store) ListRooms(ctx context.Context) ([]*store.Room, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*store.Room
	byID := make(map[string]*store.Room)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, room)
		byID[room.ID] = room
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	memberRows, err := s.db.QueryContext(ctx,
		`SELECT room_id, user_id FROM room_members ORDER BY room_id, joined_at, user_id`)
	if err != nil {
		return nil, fmt.Errorf("query room members: %w", err)
	}
	defer memberRows.Close()

	for memberRows.Next() {
		var roomID, userID string
		if err := memberRows.Scan(&roomID, &userID); err != nil {
			return nil, fmt.Errorf("scan room member: %w", err)
		}
		// Rooms created after the first query are skipped.
		if room, ok := byID[roomID]; ok {
			room.Members = append(room.Members, userID)
		}
	}
	return rooms, memberRows.Err()
}

func (s *Store) UpdateRoom(ctx context.Context, id string, patch store.RoomPatch) (*store.Room, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE rooms SET
		   name = COALESCE($2, name),
		   description = COALESCE($3, description),
		   is_public = COALESCE($4, is_public),
		   password_hash = COALESCE($5, password_hash),
		   updated_at = now()
		 WHERE id = $1
		 RETURNING `+roomColumns,
		id, patch.Name, patch.Description, patch.IsPublic, patch.PasswordHash,
	)
	room, err := scanRoom(row)
	if err != nil {
		return nil, mapError(err)
	}

	room.Members, err = s.roomMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (s *Store) DeleteRoom(ctx context.Context, id string) error {
	return s.execOne(ctx, `DELETE FROM rooms WHERE id = $1`, id)
}

func (s *Store) AddMember(ctx context.Context, roomID, userID string) (bool, error) {
	return s.insertPair(ctx,
		`INSERT INTO room_members (room_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		roomID, userID)
}

func (s *Store) RemoveMember(ctx context.Context, roomID, userID string) (bool, error) {
	return s.deletePair(ctx,
		`DELETE FROM room_members WHERE room_id = $1 AND user_id = $2`,
		`SELECT EXISTS (SELECT 1 FROM rooms WHERE id = $1)`,
		roomID, userID)
}

func (s *Store) CreateConversation(ctx context.Context, conv *store.Conversation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create conversation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO conversations (id, room_id) VALUES ($1, $2) RETURNING created_at`,
		conv.ID, conv.RoomID,
	).Scan(&conv.CreatedAt)
	if err != nil {
		return mapError(err)
	}

	for _, userID := range conv.Participants {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			conv.ID, userID,
		); err != nil {
			return fmt.Errorf("insert participant %s: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create conversation: %w", err)
	}
	return nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*store.Conversation, error) {
	return s.getConversation(ctx, `SELECT id, room_id, created_at FROM conversations WHERE id = $1`, id)
}

func (s *Store) GetConversationByRoom(ctx context.Context, roomID string) (*store.Conversation, error) {
	return s.getConversation(ctx, `SELECT id, room_id, created_at FROM conversations WHERE room_id = $1`, roomID)
}

func (s *Store) getConversation(ctx context.Context, query, arg string) (*store.Conversation, error) {
	var conv store.Conversation
	if err := s.db.QueryRowContext(ctx, query, arg).Scan(&conv.ID, &conv.RoomID, &conv.CreatedAt); err != nil {
		return nil, mapError(err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM conversation_participants WHERE conversation_id = $1 ORDER BY joined_at, user_id`, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	conv.Participants = []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		conv.Participants = append(conv.Participants, id)
	}
	return &conv, rows.Err()
}

func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	return s.execOne(ctx, `DELETE FROM conversations WHERE id = $1`, id)
}

func (s *Store) AddParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	return s.insertPair(ctx,
		`INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		conversationID, userID)
}

func (s *Store) RemoveParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	return s.deletePair(ctx,
		`DELETE FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2`,
		`SELECT EXISTS (SELECT 1 FROM conversations WHERE id = $1)`,
		conversationID, userID)
}

func (s *Store) AppendMessage(ctx context.Context, msg *store.Message) error {
	attachments := msg.Attachments
	if attachments == nil {
		attachments = []store.Attachment{}
	}
	raw, err := json.Marshal(attachments)
	if err != nil {
		return fmt.Errorf("encode attachments: %w", err)
	}

	// The participant check and the insert are one statement.
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, content, attachments)
		 SELECT $1, $2, $3, $4, $5::jsonb
		 WHERE EXISTS (
		   SELECT 1 FROM conversation_participants WHERE conversation_id = $2 AND user_id = $3
		 )
		 RETURNING created_at`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Content, string(raw),
	).Scan(&msg.CreatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return mapError(err)
	}

	exists, err := s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM conversations WHERE id = $1)`, msg.ConversationID)
	if err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrNotParticipant
}

func (s *Store) ListMessages(ctx context.Context, conversationID string, limit int) ([]*store.Message, error) {
	exists, err := s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM conversations WHERE id = $1)`, conversationID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrNotFound
	}

	// LIMIT NULL returns everything.
	var lim any
	if limit > 0 {
		lim = limit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, sender_id, content, attachments, created_at FROM (
		   SELECT id, conversation_id, sender_id, content, attachments, created_at
		   FROM messages WHERE conversation_id = $1
		   ORDER BY created_at DESC, id DESC
		   LIMIT $2
		 ) recent ORDER BY created_at, id`,
		conversationID, lim,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := []*store.Message{}
	for rows.Next() {
		var (
			m   store.Message
			raw []byte
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &raw, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &m.Attachments); err != nil {
				return nil, fmt.Errorf("decode attachments of %s: %w", m.ID, err)
			}
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

func (s *Store) execOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// insertPair runs an idempotent insert; a missing parent surfaces as a foreign key violation.
func (s *Store) insertPair(ctx context.Context, query, parentID, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, query, parentID, userID)
	if err != nil {
		return false, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// deletePair removes one membership row. When nothing was deleted it checks the parent
// exists so a missing room or conversation is still reported as not found.
func (s *Store) deletePair(ctx context.Context, query, parentQuery, parentID, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, query, parentID, userID)
	if err != nil {
		return false, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	exists, err := s.exists(ctx, parentQuery, parentID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, store.ErrNotFound
	}
	return false, nil
}

func (s *Store) exists(ctx context.Context, query, arg string) (bool, error) {
	var ok bool
	if err := s.db.QueryRowContext(ctx, query, arg).Scan(&ok); err != nil {
		return false, mapError(err)
	}
	return ok, nil
}
