package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eldtechnologies/grove/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// pgScanTopic maps a pgx topic row to the domain entity. Missing timestamps
// default to now.
func pgScanTopic(row pgx.Row) (*models.Topic, error) {
	t := &models.Topic{}
	var createdAt, updatedAt *time.Time

	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.ActiveNodeID,
		&t.AssistantID,
		&t.AssistantMeta,
		&t.Prompt,
		&t.GroupID,
		&t.Pinned,
		&t.SortOrder,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.CreatedAt = derefTimeOrNow(createdAt)
	t.UpdatedAt = derefTimeOrNow(updatedAt)
	return t, nil
}

// pgScanMessage maps a pgx message row to the domain entity. A NULL
// siblings_group_id normalizes to 0 and missing timestamps default to now.
func pgScanMessage(row pgx.Row) (*models.Message, error) {
	m := &models.Message{}
	var groupID *int64
	var createdAt, updatedAt *time.Time

	err := row.Scan(
		&m.ID,
		&m.TopicID,
		&m.ParentID,
		&m.Role,
		&m.Data,
		&m.Status,
		&groupID,
		&m.AssistantID,
		&m.ModelID,
		&m.ModelMeta,
		&m.TraceID,
		&m.Stats,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if groupID != nil {
		m.SiblingsGroupID = *groupID
	}
	m.CreatedAt = derefTimeOrNow(createdAt)
	m.UpdatedAt = derefTimeOrNow(updatedAt)
	return m, nil
}

func derefTimeOrNow(t *time.Time) time.Time {
	if t != nil {
		return *t
	}
	return time.Now()
}

// CreateTopic inserts a new topic row.
func (s *PostgresStore) CreateTopic(ctx context.Context, t *models.Topic) (*models.Topic, error) {
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO topics (`+topicColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+topicColumns+`
	`, t.ID, t.Name, t.ActiveNodeID, t.AssistantID, []byte(t.AssistantMeta), t.Prompt,
		t.GroupID, t.Pinned, t.SortOrder, t.CreatedAt, t.UpdatedAt)

	return pgScanTopic(row)
}

// GetTopic retrieves a topic by ID.
func (s *PostgresStore) GetTopic(ctx context.Context, id string) (*models.Topic, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+topicColumns+` FROM topics WHERE id = $1
	`, id)

	t, err := pgScanTopic(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// ListTopics retrieves topics with pagination, most recently updated first.
func (s *PostgresStore) ListTopics(ctx context.Context, limit, offset int) ([]models.Topic, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM topics`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+topicColumns+` FROM topics
		ORDER BY pinned DESC, sort_order ASC, updated_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var topics []models.Topic
	for rows.Next() {
		t, err := pgScanTopic(rows)
		if err != nil {
			return nil, 0, err
		}
		topics = append(topics, *t)
	}

	return topics, total, rows.Err()
}

// ListRecentTopics retrieves the most recently updated topics.
func (s *PostgresStore) ListRecentTopics(ctx context.Context, limit int) ([]models.Topic, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+topicColumns+` FROM topics
		ORDER BY updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var topics []models.Topic
	for rows.Next() {
		t, err := pgScanTopic(rows)
		if err != nil {
			return nil, err
		}
		topics = append(topics, *t)
	}

	return topics, rows.Err()
}

// UpdateTopic applies a partial update to a topic row.
func (s *PostgresStore) UpdateTopic(ctx context.Context, id string, upd TopicUpdate) error {
	sets := []string{"updated_at = $1"}
	args := []interface{}{time.Now()}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.AssistantID != nil {
		add("assistant_id", *upd.AssistantID)
	}
	if upd.AssistantMeta != nil {
		add("assistant_meta", []byte(upd.AssistantMeta))
	}
	if upd.Prompt != nil {
		add("prompt", *upd.Prompt)
	}
	if upd.GroupID != nil {
		add("group_id", *upd.GroupID)
	}
	if upd.Pinned != nil {
		add("pinned", *upd.Pinned)
	}
	if upd.SortOrder != nil {
		add("sort_order", *upd.SortOrder)
	}
	if upd.SetActiveNode {
		add("active_node_id", upd.ActiveNodeID)
	}

	args = append(args, id)
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE topics SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args)),
		args...)
	return err
}

// DeleteTopic removes a topic row.
func (s *PostgresStore) DeleteTopic(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM topics WHERE id = $1`, id)
	return err
}

// CountTopics returns the total number of topics.
func (s *PostgresStore) CountTopics(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM topics`).Scan(&count)
	return count, err
}

// InsertMessage inserts a single message row.
func (s *PostgresStore) InsertMessage(ctx context.Context, m *models.Message) (*models.Message, error) {
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING `+messageColumns+`
	`, m.ID, m.TopicID, m.ParentID, m.Role, []byte(m.Data), m.Status, m.SiblingsGroupID,
		m.AssistantID, m.ModelID, []byte(m.ModelMeta), m.TraceID, []byte(m.Stats),
		m.CreatedAt, m.UpdatedAt)

	return pgScanMessage(row)
}

// InsertMessages inserts a batch of messages in one transaction. Used by the
// fork copy loop so a failure mid-sequence leaves no partial chain behind.
func (s *PostgresStore) InsertMessages(ctx context.Context, msgs []*models.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	for _, m := range msgs {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		if m.UpdatedAt.IsZero() {
			m.UpdatedAt = now
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO messages (`+messageColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`, m.ID, m.TopicID, m.ParentID, m.Role, []byte(m.Data), m.Status, m.SiblingsGroupID,
			m.AssistantID, m.ModelID, []byte(m.ModelMeta), m.TraceID, []byte(m.Stats),
			m.CreatedAt, m.UpdatedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetMessage retrieves a message by ID.
func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+messageColumns+` FROM messages WHERE id = $1
	`, id)

	m, err := pgScanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// ListTopicMessages retrieves all messages belonging to a topic, oldest first.
func (s *PostgresStore) ListTopicMessages(ctx context.Context, topicID string) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE topic_id = $1
		ORDER BY id ASC
	`, topicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgCollectMessages(rows)
}

// ListChildren retrieves the direct children of a message, oldest first.
func (s *PostgresStore) ListChildren(ctx context.Context, parentID string) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE parent_id = $1
		ORDER BY id ASC
	`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgCollectMessages(rows)
}

func pgCollectMessages(rows pgx.Rows) ([]models.Message, error) {
	var msgs []models.Message
	for rows.Next() {
		m, err := pgScanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// UpdateMessage applies a partial update to a message row.
func (s *PostgresStore) UpdateMessage(ctx context.Context, id string, upd MessageUpdate) error {
	sets := []string{"updated_at = $1"}
	args := []interface{}{time.Now()}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.ParentID != nil {
		add("parent_id", *upd.ParentID)
	}
	if upd.Role != nil {
		add("role", *upd.Role)
	}
	if upd.Data != nil {
		add("data", []byte(upd.Data))
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.SiblingsGroupID != nil {
		add("siblings_group_id", *upd.SiblingsGroupID)
	}
	if upd.AssistantID != nil {
		add("assistant_id", *upd.AssistantID)
	}
	if upd.ModelID != nil {
		add("model_id", *upd.ModelID)
	}
	if upd.ModelMeta != nil {
		add("model_meta", []byte(upd.ModelMeta))
	}
	if upd.TraceID != nil {
		add("trace_id", *upd.TraceID)
	}
	if upd.Stats != nil {
		add("stats", []byte(upd.Stats))
	}

	args = append(args, id)
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE messages SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args)),
		args...)
	return err
}

// ReparentMessages moves a set of messages under a new parent (or to the
// root when parentID is nil) in one statement.
func (s *PostgresStore) ReparentMessages(ctx context.Context, ids []string, parentID *string) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := s.pool.Exec(ctx, `
		UPDATE messages SET updated_at = $1, parent_id = $2
		WHERE id = ANY($3)
	`, time.Now(), parentID, ids)
	return err
}

// DeleteMessages removes a set of messages in one statement.
func (s *PostgresStore) DeleteMessages(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id = ANY($1)`, ids)
	return err
}

// DeleteTopicMessages removes all messages belonging to a topic.
func (s *PostgresStore) DeleteTopicMessages(ctx context.Context, topicID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE topic_id = $1`, topicID)
	return err
}

// DescendantIDs returns the IDs of every descendant of a message, excluding
// the message itself.
func (s *PostgresStore) DescendantIDs(ctx context.Context, messageID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		WITH RECURSIVE descendants(id) AS (
			SELECT id FROM messages WHERE parent_id = $1
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
func (s *PostgresStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}
