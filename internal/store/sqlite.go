package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/eldtechnologies/grove/internal/models"
)

// SQLiteStore handles SQLite database operations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/grove.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/grove.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS topics (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		active_node_id TEXT,
		assistant_id TEXT NOT NULL DEFAULT '',
		assistant_meta TEXT,
		prompt TEXT NOT NULL DEFAULT '',
		group_id TEXT NOT NULL DEFAULT '',
		pinned INTEGER NOT NULL DEFAULT 0,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		topic_id TEXT NOT NULL,
		parent_id TEXT,
		role TEXT NOT NULL DEFAULT '',
		data TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		siblings_group_id INTEGER DEFAULT 0,
		assistant_id TEXT NOT NULL DEFAULT '',
		model_id TEXT NOT NULL DEFAULT '',
		model_meta TEXT,
		trace_id TEXT NOT NULL DEFAULT '',
		stats TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_messages_topic ON messages(topic_id);
	CREATE INDEX IF NOT EXISTS idx_messages_parent ON messages(parent_id);
	CREATE INDEX IF NOT EXISTS idx_topics_updated ON topics(updated_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const topicColumns = `id, name, active_node_id, assistant_id, assistant_meta, prompt, group_id, pinned, sort_order, created_at, updated_at`

const messageColumns = `id, topic_id, parent_id, role, data, status, siblings_group_id, assistant_id, model_id, model_meta, trace_id, stats, created_at, updated_at`

// rowScanner abstracts *sql.Row and *sql.Rows for the row mappers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanTopic maps a topic row to the domain entity, normalizing nullable
// columns. Missing timestamps default to now.
func scanTopic(row rowScanner) (*models.Topic, error) {
	t := &models.Topic{}
	var activeNodeID sql.NullString
	var assistantMeta []byte
	var pinned int64
	var createdAt, updatedAt sql.NullTime

	err := row.Scan(
		&t.ID,
		&t.Name,
		&activeNodeID,
		&t.AssistantID,
		&assistantMeta,
		&t.Prompt,
		&t.GroupID,
		&pinned,
		&t.SortOrder,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if activeNodeID.Valid {
		v := activeNodeID.String
		t.ActiveNodeID = &v
	}
	t.AssistantMeta = assistantMeta
	t.Pinned = pinned == 1
	t.CreatedAt = timeOrNow(createdAt)
	t.UpdatedAt = timeOrNow(updatedAt)
	return t, nil
}

// scanMessage maps a message row to the domain entity. A NULL
// siblings_group_id normalizes to 0 ("not grouped") and missing timestamps
// default to now.
func scanMessage(row rowScanner) (*models.Message, error) {
	m := &models.Message{}
	var parentID sql.NullString
	var groupID sql.NullInt64
	var data, modelMeta, stats []byte
	var createdAt, updatedAt sql.NullTime

	err := row.Scan(
		&m.ID,
		&m.TopicID,
		&parentID,
		&m.Role,
		&data,
		&m.Status,
		&groupID,
		&m.AssistantID,
		&m.ModelID,
		&modelMeta,
		&m.TraceID,
		&stats,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if parentID.Valid {
		v := parentID.String
		m.ParentID = &v
	}
	if groupID.Valid {
		m.SiblingsGroupID = groupID.Int64
	}
	m.Data = data
	m.ModelMeta = modelMeta
	m.Stats = stats
	m.CreatedAt = timeOrNow(createdAt)
	m.UpdatedAt = timeOrNow(updatedAt)
	return m, nil
}

func timeOrNow(t sql.NullTime) time.Time {
	if t.Valid {
		return t.Time
	}
	return time.Now()
}

// CreateTopic inserts a new topic row.
func (s *SQLiteStore) CreateTopic(ctx context.Context, t *models.Topic) (*models.Topic, error) {
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO topics (`+topicColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Name, t.ActiveNodeID, t.AssistantID, []byte(t.AssistantMeta), t.Prompt,
		t.GroupID, boolToInt(t.Pinned), t.SortOrder, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return s.GetTopic(ctx, t.ID)
}

// GetTopic retrieves a topic by ID.
func (s *SQLiteStore) GetTopic(ctx context.Context, id string) (*models.Topic, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+topicColumns+` FROM topics WHERE id = ?
	`, id)

	t, err := scanTopic(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// ListTopics retrieves topics with pagination, most recently updated first.
func (s *SQLiteStore) ListTopics(ctx context.Context, limit, offset int) ([]models.Topic, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM topics`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+topicColumns+` FROM topics
		ORDER BY pinned DESC, sort_order ASC, updated_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var topics []models.Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, 0, err
		}
		topics = append(topics, *t)
	}

	return topics, total, rows.Err()
}

// ListRecentTopics retrieves the most recently updated topics.
func (s *SQLiteStore) ListRecentTopics(ctx context.Context, limit int) ([]models.Topic, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+topicColumns+` FROM topics
		ORDER BY updated_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var topics []models.Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		topics = append(topics, *t)
	}

	return topics, rows.Err()
}

// UpdateTopic applies a partial update to a topic row.
func (s *SQLiteStore) UpdateTopic(ctx context.Context, id string, upd TopicUpdate) error {
	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now()}

	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.AssistantID != nil {
		sets = append(sets, "assistant_id = ?")
		args = append(args, *upd.AssistantID)
	}
	if upd.AssistantMeta != nil {
		sets = append(sets, "assistant_meta = ?")
		args = append(args, []byte(upd.AssistantMeta))
	}
	if upd.Prompt != nil {
		sets = append(sets, "prompt = ?")
		args = append(args, *upd.Prompt)
	}
	if upd.GroupID != nil {
		sets = append(sets, "group_id = ?")
		args = append(args, *upd.GroupID)
	}
	if upd.Pinned != nil {
		sets = append(sets, "pinned = ?")
		args = append(args, boolToInt(*upd.Pinned))
	}
	if upd.SortOrder != nil {
		sets = append(sets, "sort_order = ?")
		args = append(args, *upd.SortOrder)
	}
	if upd.SetActiveNode {
		sets = append(sets, "active_node_id = ?")
		args = append(args, upd.ActiveNodeID)
	}

	args = append(args, id)
	_, err := s.db.ExecContext(ctx,
		`UPDATE topics SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	return err
}

// DeleteTopic removes a topic row.
func (s *SQLiteStore) DeleteTopic(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM topics WHERE id = ?`, id)
	return err
}

// CountTopics returns the total number of topics.
func (s *SQLiteStore) CountTopics(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM topics`).Scan(&count)
	return count, err
}

// InsertMessage inserts a single message row.
func (s *SQLiteStore) InsertMessage(ctx context.Context, m *models.Message) (*models.Message, error) {
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.TopicID, m.ParentID, m.Role, []byte(m.Data), m.Status, m.SiblingsGroupID,
		m.AssistantID, m.ModelID, []byte(m.ModelMeta), m.TraceID, []byte(m.Stats),
		m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return s.GetMessage(ctx, m.ID)
}

// InsertMessages inserts a batch of messages in one transaction. Used by the
// fork copy loop so a failure mid-sequence leaves no partial chain behind.
func (s *SQLiteStore) InsertMessages(ctx context.Context, msgs []*models.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, m := range msgs {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		if m.UpdatedAt.IsZero() {
			m.UpdatedAt = now
		}
		_, err := stmt.ExecContext(ctx, m.ID, m.TopicID, m.ParentID, m.Role, []byte(m.Data),
			m.Status, m.SiblingsGroupID, m.AssistantID, m.ModelID, []byte(m.ModelMeta),
			m.TraceID, []byte(m.Stats), m.CreatedAt, m.UpdatedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+` FROM messages WHERE id = ?
	`, id)

	m, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// ListTopicMessages retrieves all messages belonging to a topic, oldest first.
func (s *SQLiteStore) ListTopicMessages(ctx context.Context, topicID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE topic_id = ?
		ORDER BY id ASC
	`, topicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMessages(rows)
}

// ListChildren retrieves the direct children of a message, oldest first.
func (s *SQLiteStore) ListChildren(ctx context.Context, parentID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE parent_id = ?
		ORDER BY id ASC
	`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMessages(rows)
}

func collectMessages(rows *sql.Rows) ([]models.Message, error) {
	var msgs []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// UpdateMessage applies a partial update to a message row.
func (s *SQLiteStore) UpdateMessage(ctx context.Context, id string, upd MessageUpdate) error {
	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now()}

	if upd.ParentID != nil {
		sets = append(sets, "parent_id = ?")
		args = append(args, *upd.ParentID)
	}
	if upd.Role != nil {
		sets = append(sets, "role = ?")
		args = append(args, *upd.Role)
	}
	if upd.Data != nil {
		sets = append(sets, "data = ?")
		args = append(args, []byte(upd.Data))
	}
	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *upd.Status)
	}
	if upd.SiblingsGroupID != nil {
		sets = append(sets, "siblings_group_id = ?")
		args = append(args, *upd.SiblingsGroupID)
	}
	if upd.AssistantID != nil {
		sets = append(sets, "assistant_id = ?")
		args = append(args, *upd.AssistantID)
	}
	if upd.ModelID != nil {
		sets = append(sets, "model_id = ?")
		args = append(args, *upd.ModelID)
	}
	if upd.ModelMeta != nil {
		sets = append(sets, "model_meta = ?")
		args = append(args, []byte(upd.ModelMeta))
	}
	if upd.TraceID != nil {
		sets = append(sets, "trace_id = ?")
		args = append(args, *upd.TraceID)
	}
	if upd.Stats != nil {
		sets = append(sets, "stats = ?")
		args = append(args, []byte(upd.Stats))
	}

	args = append(args, id)
	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	return err
}

// ReparentMessages moves a set of messages under a new parent (or to the
// root when parentID is nil) in one statement.
func (s *SQLiteStore) ReparentMessages(ctx context.Context, ids []string, parentID *string) error {
	if len(ids) == 0 {
		return nil
	}

	args := []interface{}{time.Now(), parentID}
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE messages SET updated_at = ?, parent_id = ?
		WHERE id IN (`+placeholders(len(ids))+`)
	`, args...)
	return err
}

// DeleteMessages removes a set of messages in one statement.
func (s *SQLiteStore) DeleteMessages(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM messages WHERE id IN (`+placeholders(len(ids))+`)
	`, args...)
	return err
}

// DeleteTopicMessages removes all messages belonging to a topic.
func (s *SQLiteStore) DeleteTopicMessages(ctx context.Context, topicID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE topic_id = ?`, topicID)
	return err
}

// DescendantIDs returns the IDs of every descendant of a message (children,
// grandchildren, ...), excluding the message itself.
func (s *SQLiteStore) DescendantIDs(ctx context.Context, messageID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH RECURSIVE descendants(id) AS (
			SELECT id FROM messages WHERE parent_id = ?
			UNION ALL
			SELECT m.id FROM messages m JOIN descendants d ON m.parent_id = d.id
		)
		SELECT id FROM descendants
	`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountMessages returns the total number of messages across all topics.
func (s *SQLiteStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

// placeholders returns "?, ?, ..." with n placeholders.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
