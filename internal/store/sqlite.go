package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/okonev/careerdojo/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	sessionMu sync.Mutex // Mutex for session writes to prevent SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		role TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		is_authorized INTEGER NOT NULL DEFAULT 1,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_users_last_seen ON users(last_seen_at);

	CREATE TABLE IF NOT EXISTS dojo_sessions (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		role TEXT NOT NULL,
		persona_json TEXT NOT NULL,
		messages_json TEXT NOT NULL,
		progress_json TEXT NOT NULL,
		world_state_json TEXT NOT NULL,
		metric_polarity_json TEXT NOT NULL,
		skill_scores_json TEXT NOT NULL,
		turn_count INTEGER NOT NULL DEFAULT 0,
		message_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		final_report_json TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		completed_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_owner_status ON dojo_sessions(owner, status);
	CREATE INDEX IF NOT EXISTS idx_sessions_stale ON dojo_sessions(updated_at) WHERE status = 'active';
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, username, role, is_active, is_authorized,
		       last_seen_at, created_at, updated_at
		FROM users WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var user domain.User
	var role sql.NullString
	var lastSeen, createdAt, updatedAt int64

	err := row.Scan(
		&user.UserID, &user.Username, &role,
		&user.IsActive, &user.IsAuthorized,
		&lastSeen, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.Role = role.String
	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, username, role, is_active, is_authorized, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		role = excluded.role,
		is_active = excluded.is_active,
		is_authorized = excluded.is_authorized,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	var role interface{}
	if user.Role != "" {
		role = user.Role
	}

	_, err := s.db.ExecContext(ctx, query,
		user.UserID, user.Username, role,
		user.IsActive, user.IsAuthorized,
		user.LastSeenAt.Unix(), user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE users SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", userID)
	}

	return nil
}

// CreateSession persists a freshly initialized session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	persona, err := json.Marshal(session.Persona)
	if err != nil {
		return fmt.Errorf("marshal persona: %w", err)
	}
	messages, err := json.Marshal(session.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	progress, err := json.Marshal(session.Progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	world, err := json.Marshal(session.WorldState)
	if err != nil {
		return fmt.Errorf("marshal world state: %w", err)
	}
	polarity, err := json.Marshal(session.MetricPolarity)
	if err != nil {
		return fmt.Errorf("marshal metric polarity: %w", err)
	}
	skills, err := json.Marshal(session.SkillScores)
	if err != nil {
		return fmt.Errorf("marshal skill scores: %w", err)
	}

	query := `
	INSERT INTO dojo_sessions (
		id, owner, role, persona_json, messages_json, progress_json,
		world_state_json, metric_polarity_json, skill_scores_json,
		turn_count, message_count, status, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		session.ID, session.Owner, session.Role,
		string(persona), string(messages), string(progress),
		string(world), string(polarity), string(skills),
		session.TurnCount, session.MessageCount, session.Status,
		session.CreatedAt.Unix(), session.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	session.ClearModified()
	return nil
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	query := sessionSelect + ` WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, id)

	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}
	return session, nil
}

// UpdateSession persists only the field groups the session has marked
// modified. The dirty set is cleared on success.
func (s *SQLiteStore) UpdateSession(ctx context.Context, session *domain.Session) error {
	fields := session.ModifiedFields()
	if len(fields) == 0 {
		return nil
	}

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().Unix()}

	for _, field := range fields {
		switch field {
		case domain.FieldPersona:
			data, err := json.Marshal(session.Persona)
			if err != nil {
				return fmt.Errorf("marshal persona: %w", err)
			}
			sets = append(sets, "persona_json = ?")
			args = append(args, string(data))
		case domain.FieldMessages:
			data, err := json.Marshal(session.Messages)
			if err != nil {
				return fmt.Errorf("marshal messages: %w", err)
			}
			sets = append(sets, "messages_json = ?")
			args = append(args, string(data))
		case domain.FieldProgress:
			data, err := json.Marshal(session.Progress)
			if err != nil {
				return fmt.Errorf("marshal progress: %w", err)
			}
			sets = append(sets, "progress_json = ?")
			args = append(args, string(data))
		case domain.FieldWorldState:
			data, err := json.Marshal(session.WorldState)
			if err != nil {
				return fmt.Errorf("marshal world state: %w", err)
			}
			sets = append(sets, "world_state_json = ?")
			args = append(args, string(data))
		case domain.FieldSkillScores:
			data, err := json.Marshal(session.SkillScores)
			if err != nil {
				return fmt.Errorf("marshal skill scores: %w", err)
			}
			sets = append(sets, "skill_scores_json = ?")
			args = append(args, string(data))
		case domain.FieldCounters:
			sets = append(sets, "turn_count = ?", "message_count = ?")
			args = append(args, session.TurnCount, session.MessageCount)
		case domain.FieldStatus:
			sets = append(sets, "status = ?", "completed_at = ?")
			var completedAt interface{}
			if session.CompletedAt != nil {
				completedAt = session.CompletedAt.Unix()
			}
			args = append(args, session.Status, completedAt)
		case domain.FieldFinalReport:
			var report interface{}
			if session.FinalReport != nil {
				data, err := json.Marshal(session.FinalReport)
				if err != nil {
					return fmt.Errorf("marshal final report: %w", err)
				}
				report = string(data)
			}
			sets = append(sets, "final_report_json = ?")
			args = append(args, report)
		default:
			return fmt.Errorf("unknown session field group %q", field)
		}
	}

	query := `UPDATE dojo_sessions SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	args = append(args, session.ID)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session %s not found", session.ID)
	}

	session.ClearModified()
	return nil
}

// ListCompletedSessions retrieves an owner's completed sessions that carry a
// final report, most recently completed first.
func (s *SQLiteStore) ListCompletedSessions(ctx context.Context, owner string) ([]*domain.Session, error) {
	query := sessionSelect + `
		WHERE owner = ? AND status = ? AND final_report_json IS NOT NULL
		ORDER BY completed_at DESC`

	rows, err := s.db.QueryContext(ctx, query, owner, domain.SessionCompleted)
	if err != nil {
		return nil, fmt.Errorf("query completed sessions: %w", err)
	}
	return collectSessions(rows)
}

// StaleActiveSessions retrieves active sessions untouched for longer than the TTL.
func (s *SQLiteStore) StaleActiveSessions(ctx context.Context, ttl time.Duration) ([]*domain.Session, error) {
	threshold := time.Now().Add(-ttl).Unix()
	query := sessionSelect + ` WHERE status = ? AND updated_at < ?`

	rows, err := s.db.QueryContext(ctx, query, domain.SessionActive, threshold)
	if err != nil {
		return nil, fmt.Errorf("query stale sessions: %w", err)
	}
	return collectSessions(rows)
}

// AbandonSessions flips the listed sessions to abandoned status.
func (s *SQLiteStore) AbandonSessions(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := `UPDATE dojo_sessions SET status = ?, updated_at = ? WHERE status = ? AND id IN (` + placeholders + `)`

	args := make([]interface{}, 0, len(ids)+3)
	args = append(args, domain.SessionAbandoned, time.Now().Unix(), domain.SessionActive)
	for _, id := range ids {
		args = append(args, id)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("abandon sessions: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

const sessionSelect = `
	SELECT id, owner, role, persona_json, messages_json, progress_json,
	       world_state_json, metric_polarity_json, skill_scores_json,
	       turn_count, message_count, status, final_report_json,
	       created_at, updated_at, completed_at
	FROM dojo_sessions`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var session domain.Session
	var personaJSON, messagesJSON, progressJSON string
	var worldJSON, polarityJSON, skillsJSON string
	var reportJSON sql.NullString
	var createdAt, updatedAt int64
	var completedAt sql.NullInt64

	err := row.Scan(
		&session.ID, &session.Owner, &session.Role,
		&personaJSON, &messagesJSON, &progressJSON,
		&worldJSON, &polarityJSON, &skillsJSON,
		&session.TurnCount, &session.MessageCount, &session.Status,
		&reportJSON, &createdAt, &updatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(personaJSON), &session.Persona); err != nil {
		return nil, fmt.Errorf("unmarshal persona: %w", err)
	}
	if err := json.Unmarshal([]byte(messagesJSON), &session.Messages); err != nil {
		return nil, fmt.Errorf("unmarshal messages: %w", err)
	}
	if err := json.Unmarshal([]byte(progressJSON), &session.Progress); err != nil {
		return nil, fmt.Errorf("unmarshal progress: %w", err)
	}
	if err := json.Unmarshal([]byte(worldJSON), &session.WorldState); err != nil {
		return nil, fmt.Errorf("unmarshal world state: %w", err)
	}
	if err := json.Unmarshal([]byte(polarityJSON), &session.MetricPolarity); err != nil {
		return nil, fmt.Errorf("unmarshal metric polarity: %w", err)
	}
	if err := json.Unmarshal([]byte(skillsJSON), &session.SkillScores); err != nil {
		return nil, fmt.Errorf("unmarshal skill scores: %w", err)
	}
	if reportJSON.Valid {
		session.FinalReport = &domain.FinalReport{}
		if err := json.Unmarshal([]byte(reportJSON.String), session.FinalReport); err != nil {
			return nil, fmt.Errorf("unmarshal final report: %w", err)
		}
	}

	session.CreatedAt = time.Unix(createdAt, 0)
	session.UpdatedAt = time.Unix(updatedAt, 0)
	if completedAt.Valid {
		ts := time.Unix(completedAt.Int64, 0)
		session.CompletedAt = &ts
	}

	return &session, nil
}

func collectSessions(rows *sql.Rows) ([]*domain.Session, error) {
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close session rows", "error", closeErr)
		}
	}()

	var sessions []*domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}
