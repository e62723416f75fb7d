package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hirelight/hirelight/internal/models"
)

// storedTimeLayout is RFC3339 with a fixed nine-digit fraction. The
// fixed width keeps lexicographic TEXT comparison chronological, which
// MAX(last_message_at, ?) and ORDER BY last_message_at rely on; a bare
// RFC3339Nano string drops trailing zeros and sorts "05Z" after "05.5Z".
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatStoredTime(t time.Time) string {
	return t.UTC().Format(storedTimeLayout)
}

// Store implements the sync core's query and mutation interfaces on top
// of the SQLite database.
type Store struct {
	db *DB
}

// NewStore wraps a DB as a backend store.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// ListThreads returns the user's threads in the given filter bucket,
// newest first.
func (s *Store) ListThreads(ctx context.Context, userID string, filter models.ThreadFilter) ([]models.Thread, error) {
	query := `
		SELECT id, subject, participants, status, unread_count, last_message_at,
		       job_id, application_id, job_title, applicant_name
		FROM threads
		WHERE user_id = ?`
	args := []any{userID}

	switch filter {
	case models.FilterActive, models.FilterArchived:
		query += " AND status = ?"
		args = append(args, string(filter))
	case models.FilterAll:
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownFilter, filter)
	}
	query += " ORDER BY last_message_at DESC"

	rows, err := s.db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query threads: %w", err)
	}
	defer rows.Close()

	var threads []models.Thread
	for rows.Next() {
		var (
			thread          models.Thread
			participantsRaw string
			lastMessageRaw  string
			jobID           sql.NullString
			applicationID   sql.NullString
			jobTitle        sql.NullString
			applicantName   sql.NullString
		)
		if err := rows.Scan(&thread.ID, &thread.Subject, &participantsRaw, &thread.Status,
			&thread.UnreadCount, &lastMessageRaw, &jobID, &applicationID, &jobTitle, &applicantName); err != nil {
			return nil, fmt.Errorf("failed to scan thread row: %w", err)
		}
		thread.Participants = decodeStringList(participantsRaw)
		thread.LastMessageAt = parseStoredTime(lastMessageRaw)
		thread.JobID = jobID.String
		thread.ApplicationID = applicationID.String
		thread.JobTitle = jobTitle.String
		thread.ApplicantName = applicantName.String
		threads = append(threads, thread)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("thread query error: %w", err)
	}
	return threads, nil
}

// ListMessages returns all of the user's messages, oldest first.
func (s *Store) ListMessages(ctx context.Context, userID string) ([]models.Message, error) {
	rows, err := s.db.sql.QueryContext(ctx, `
		SELECT id, thread_id, sender, recipient, content, attachments, direction, is_read, created_at
		FROM messages
		WHERE user_id = ?
		ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var (
			msg            models.Message
			attachmentsRaw sql.NullString
			isRead         int
			createdRaw     string
		)
		if err := rows.Scan(&msg.ID, &msg.ThreadID, &msg.Sender, &msg.Recipient,
			&msg.Content, &attachmentsRaw, &msg.Direction, &isRead, &createdRaw); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		msg.Attachments = decodeStringList(attachmentsRaw.String)
		msg.IsRead = isRead == 1
		msg.CreatedAt = parseStoredTime(createdRaw)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("message query error: %w", err)
	}
	return messages, nil
}

// SetRead marks every inbound message of the thread read and zeroes the
// thread's unread count, as one transaction.
func (s *Store) SetRead(ctx context.Context, threadID string) error {
	return s.db.TransactionWithRetry(ctx, 0, 0, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE threads SET unread_count = 0 WHERE id = ?`, threadID)
		if err != nil {
			return fmt.Errorf("failed to update thread read state: %w", err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return fmt.Errorf("%w: thread %s", models.ErrNotFound, threadID)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE messages SET is_read = 1 WHERE thread_id = ? AND direction = 'inbound'`, threadID); err != nil {
			return fmt.Errorf("failed to update message read state: %w", err)
		}
		return nil
	})
}

// SendReply persists an outbound message under a server-assigned id and
// bumps the thread's last-message timestamp. Delivery to the remote
// mailbox happens downstream of this accept.
func (s *Store) SendReply(ctx context.Context, reply models.Message) (string, error) {
	if strings.TrimSpace(reply.Content) == "" && len(reply.Attachments) == 0 {
		return "", fmt.Errorf("%w: reply needs content or an attachment", models.ErrValidation)
	}

	serverID := uuid.NewString()
	createdAt := reply.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	err := s.db.TransactionWithRetry(ctx, 0, 0, func(tx *sql.Tx) error {
		var userID string
		err := tx.QueryRowContext(ctx,
			`SELECT user_id FROM threads WHERE id = ?`, reply.ThreadID).Scan(&userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: thread %s", models.ErrNotFound, reply.ThreadID)
			}
			return fmt.Errorf("failed to resolve thread owner: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, user_id, thread_id, sender, recipient, content, attachments, direction, is_read, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, 'outbound', 1, ?)`,
			serverID, userID, reply.ThreadID, reply.Sender, reply.Recipient,
			reply.Content, encodeStringList(reply.Attachments),
			formatStoredTime(createdAt)); err != nil {
			return fmt.Errorf("failed to store reply: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE threads SET last_message_at = MAX(last_message_at, ?)
			WHERE id = ?`,
			formatStoredTime(createdAt), reply.ThreadID); err != nil {
			return fmt.Errorf("failed to bump thread timestamp: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return serverID, nil
}

// Archive moves the thread to the archived bucket.
func (s *Store) Archive(ctx context.Context, threadID string) error {
	return s.setStatus(ctx, threadID, models.ThreadStatusArchived)
}

// Unarchive moves the thread back to the active bucket.
func (s *Store) Unarchive(ctx context.Context, threadID string) error {
	return s.setStatus(ctx, threadID, models.ThreadStatusActive)
}

func (s *Store) setStatus(ctx context.Context, threadID string, status models.ThreadStatus) error {
	res, err := s.db.sql.ExecContext(ctx,
		`UPDATE threads SET status = ? WHERE id = ?`, string(status), threadID)
	if err != nil {
		return fmt.Errorf("failed to update thread status: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: thread %s", models.ErrNotFound, threadID)
	}
	return nil
}

// DeletePermanently removes the thread and its messages.
func (s *Store) DeletePermanently(ctx context.Context, threadID string) error {
	return s.db.TransactionWithRetry(ctx, 0, 0, func(tx *sql.Tx) error {
		return deleteThread(ctx, tx, threadID)
	})
}

// ArchiveAll archives the whole id set in one transaction.
func (s *Store) ArchiveAll(ctx context.Context, threadIDs []string) error {
	return s.bulkStatus(ctx, threadIDs, models.ThreadStatusArchived)
}

// UnarchiveAll restores the whole id set in one transaction.
func (s *Store) UnarchiveAll(ctx context.Context, threadIDs []string) error {
	return s.bulkStatus(ctx, threadIDs, models.ThreadStatusActive)
}

func (s *Store) bulkStatus(ctx context.Context, threadIDs []string, status models.ThreadStatus) error {
	if len(threadIDs) == 0 {
		return nil
	}
	return s.db.TransactionWithRetry(ctx, 0, 0, func(tx *sql.Tx) error {
		for _, id := range threadIDs {
			res, err := tx.ExecContext(ctx,
				`UPDATE threads SET status = ? WHERE id = ?`, string(status), id)
			if err != nil {
				return fmt.Errorf("failed to update thread status: %w", err)
			}
			if affected, _ := res.RowsAffected(); affected == 0 {
				return fmt.Errorf("%w: thread %s", models.ErrNotFound, id)
			}
		}
		return nil
	})
}

// DeleteAllPermanently removes the whole id set in one transaction.
func (s *Store) DeleteAllPermanently(ctx context.Context, threadIDs []string) error {
	if len(threadIDs) == 0 {
		return nil
	}
	return s.db.TransactionWithRetry(ctx, 0, 0, func(tx *sql.Tx) error {
		for _, id := range threadIDs {
			if err := deleteThread(ctx, tx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func deleteThread(ctx context.Context, tx *sql.Tx, threadID string) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("failed to delete thread messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, threadID)
	if err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: thread %s", models.ErrNotFound, threadID)
	}
	return nil
}

// SeedThread inserts or replaces a thread row. Used by ingestion and by
// tests to simulate inbound mail arrival.
func (s *Store) SeedThread(ctx context.Context, userID string, thread models.Thread) error {
	_, err := s.db.sql.ExecContext(ctx, `
		INSERT OR REPLACE INTO threads
			(id, user_id, subject, participants, status, unread_count, last_message_at,
			 job_id, application_id, job_title, applicant_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''))`,
		thread.ID, userID, thread.Subject, encodeStringList(thread.Participants),
		string(thread.Status), thread.UnreadCount,
		formatStoredTime(thread.LastMessageAt),
		thread.JobID, thread.ApplicationID, thread.JobTitle, thread.ApplicantName)
	if err != nil {
		return fmt.Errorf("failed to seed thread: %w", err)
	}
	return nil
}

// SeedMessage inserts a message row and maintains the owning thread's
// unread count and last-message timestamp.
func (s *Store) SeedMessage(ctx context.Context, userID string, msg models.Message) error {
	return s.db.TransactionWithRetry(ctx, 0, 0, func(tx *sql.Tx) error {
		isRead := 0
		if msg.IsRead || msg.Direction == models.DirectionOutbound {
			isRead = 1
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, user_id, thread_id, sender, recipient, content, attachments, direction, is_read, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			msg.ID, userID, msg.ThreadID, msg.Sender, msg.Recipient, msg.Content,
			encodeStringList(msg.Attachments), string(msg.Direction), isRead,
			formatStoredTime(msg.CreatedAt)); err != nil {
			return fmt.Errorf("failed to seed message: %w", err)
		}

		unreadDelta := 0
		if msg.Direction == models.DirectionInbound && isRead == 0 {
			unreadDelta = 1
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE threads
			SET unread_count = unread_count + ?,
			    last_message_at = MAX(last_message_at, ?)
			WHERE id = ?`,
			unreadDelta, formatStoredTime(msg.CreatedAt), msg.ThreadID); err != nil {
			return fmt.Errorf("failed to update thread counters: %w", err)
		}
		return nil
	})
}

func encodeStringList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeStringList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	if len(values) == 0 {
		return nil
	}
	return values
}

func parseStoredTime(raw string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}
