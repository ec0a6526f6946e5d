package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vinylaudio/annotator/internal/jobs"
	"github.com/vinylaudio/annotator/internal/snippet"
	"github.com/vinylaudio/annotator/internal/sourceaudio"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore is the durable document store behind the annotation session:
// source audios (snippet bodies embedded as JSON at rest), speakers, users
// and the processing-job table.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	// Bootstrap schema_migrations table so we can track applied versions.
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

// ListSourceAudios returns every audio document with its speaker name
// resolved, in creation order.
func (s *SQLiteStore) ListSourceAudios(ctx context.Context) ([]sourceaudio.Document, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT a.id, a.name, a.storage_ref_path, a.subtitle, a.is_annotated, a.pre_process_done,
		        a.speaker_id, COALESCE(sp.name, ''), a.snippets_json
		 FROM source_audios a
		 LEFT JOIN speakers sp ON sp.id = a.speaker_id
		 ORDER BY a.created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]sourceaudio.Document, 0)
	for rows.Next() {
		doc, err := scanSourceAudio(rows.Scan)
		if err != nil {
			return nil, err
		}
		ret = append(ret, doc)
	}
	return ret, rows.Err()
}

func (s *SQLiteStore) GetSourceAudio(ctx context.Context, id string) (sourceaudio.Document, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT a.id, a.name, a.storage_ref_path, a.subtitle, a.is_annotated, a.pre_process_done,
		        a.speaker_id, COALESCE(sp.name, ''), a.snippets_json
		 FROM source_audios a
		 LEFT JOIN speakers sp ON sp.id = a.speaker_id
		 WHERE a.id = ?`,
		id,
	)
	doc, err := scanSourceAudio(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return sourceaudio.Document{}, false, nil
		}
		return sourceaudio.Document{}, false, err
	}
	return doc, true, nil
}

func scanSourceAudio(scan func(...any) error) (sourceaudio.Document, error) {
	var doc sourceaudio.Document
	var isAnnotated, preProcessDone int
	var snippetsJSON string
	if err := scan(
		&doc.ID,
		&doc.Name,
		&doc.StorageRefPath,
		&doc.Subtitle,
		&isAnnotated,
		&preProcessDone,
		&doc.SpeakerID,
		&doc.SpeakerName,
		&snippetsJSON,
	); err != nil {
		return sourceaudio.Document{}, err
	}
	doc.IsAnnotated = isAnnotated == 1
	doc.PreProcessDone = preProcessDone == 1
	if err := json.Unmarshal([]byte(snippetsJSON), &doc.Snippets); err != nil {
		return sourceaudio.Document{}, fmt.Errorf("decode snippets for %s: %w", doc.ID, err)
	}
	return doc, nil
}

// AddSourceAudio inserts a new audio document.
func (s *SQLiteStore) AddSourceAudio(ctx context.Context, doc sourceaudio.Document) error {
	snippetsJSON, err := json.Marshal(emptyIfNil(doc.Snippets))
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO source_audios (
			id, name, storage_ref_path, subtitle, is_annotated, pre_process_done, speaker_id, snippets_json, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID,
		doc.Name,
		doc.StorageRefPath,
		doc.Subtitle,
		boolToInt(doc.IsAnnotated),
		boolToInt(doc.PreProcessDone),
		doc.SpeakerID,
		string(snippetsJSON),
		now,
		now,
	)
	return err
}

// UpdateSnippets replaces the audio's embedded snippet list in one batched
// write. This is the sync controller's flush target.
func (s *SQLiteStore) UpdateSnippets(ctx context.Context, audioID string, snippets []snippet.Snippet) error {
	snippetsJSON, err := json.Marshal(emptyIfNil(snippets))
	if err != nil {
		return err
	}
	return s.updateAudio(ctx, audioID, `snippets_json = ?`, string(snippetsJSON))
}

// SetPreProcessDone installs the derived snippet list and flips the flag in
// one statement, so a crash cannot leave a ready audio without snippets.
func (s *SQLiteStore) SetPreProcessDone(ctx context.Context, audioID string, snippets []snippet.Snippet) error {
	snippetsJSON, err := json.Marshal(emptyIfNil(snippets))
	if err != nil {
		return err
	}
	return s.updateAudio(ctx, audioID, `snippets_json = ?, pre_process_done = 1`, string(snippetsJSON))
}

func (s *SQLiteStore) UpdateAnnotated(ctx context.Context, audioID string, annotated bool) error {
	return s.updateAudio(ctx, audioID, `is_annotated = ?`, boolToInt(annotated))
}

func (s *SQLiteStore) UpdateSpeaker(ctx context.Context, audioID string, speakerID string) error {
	return s.updateAudio(ctx, audioID, `speaker_id = ?`, speakerID)
}

func (s *SQLiteStore) updateAudio(ctx context.Context, audioID string, setClause string, args ...any) error {
	args = append(args, time.Now().UTC(), audioID)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE source_audios SET `+setClause+`, updated_at = ? WHERE id = ?`,
		args...,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("source audio %s not found", audioID)
	}
	return nil
}

func (s *SQLiteStore) ListSpeakers(ctx context.Context) ([]sourceaudio.Speaker, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM speakers ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]sourceaudio.Speaker, 0)
	for rows.Next() {
		var sp sourceaudio.Speaker
		if err := rows.Scan(&sp.ID, &sp.Name); err != nil {
			return nil, err
		}
		ret = append(ret, sp)
	}
	return ret, rows.Err()
}

func (s *SQLiteStore) GetSpeaker(ctx context.Context, id string) (sourceaudio.Speaker, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name FROM speakers WHERE id = ?`, id)
	var sp sourceaudio.Speaker
	if err := row.Scan(&sp.ID, &sp.Name); err != nil {
		if err == sql.ErrNoRows {
			return sourceaudio.Speaker{}, false, nil
		}
		return sourceaudio.Speaker{}, false, err
	}
	return sp, true, nil
}

// AddSpeaker creates a speaker record for a freshly typed name.
func (s *SQLiteStore) AddSpeaker(ctx context.Context, sp sourceaudio.Speaker) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO speakers (id, name, created_at) VALUES (?, ?, ?)`,
		sp.ID,
		sp.Name,
		time.Now().UTC(),
	)
	return err
}

// GetUserByToken resolves an API token to its user document.
func (s *SQLiteStore) GetUserByToken(ctx context.Context, token string) (User, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, display_name, email, token, created_at FROM users WHERE token = ?`,
		token,
	)
	var u User
	if err := row.Scan(&u.ID, &u.DisplayName, &u.Email, &u.Token, &u.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return User{}, false, nil
		}
		return User{}, false, err
	}
	return u, true, nil
}

// EnsureUser inserts the user document when it does not exist yet.
func (s *SQLiteStore) EnsureUser(ctx context.Context, u User) error {
	createdAt := u.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO users (id, display_name, email, token, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			display_name=excluded.display_name,
			email=excluded.email,
			token=excluded.token`,
		u.ID,
		u.DisplayName,
		u.Email,
		u.Token,
		createdAt,
	)
	return err
}

func (s *SQLiteStore) LoadJobs(ctx context.Context) ([]*jobs.ProcessingJob, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, kind, source, dedupe_key, payload_json, status, error, created_at, updated_at
		 FROM jobs
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*jobs.ProcessingJob, 0)
	for rows.Next() {
		var item jobs.ProcessingJob
		var kind, status, payloadJSON string
		if err := rows.Scan(
			&item.ID,
			&kind,
			&item.Source,
			&item.DedupeKey,
			&payloadJSON,
			&status,
			&item.Error,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payloadJSON), &item.Payload); err != nil {
			return nil, err
		}
		item.Kind = jobs.Kind(kind)
		item.Status = jobs.Status(status)
		ret = append(ret, &item)
	}
	return ret, rows.Err()
}

func (s *SQLiteStore) UpsertJob(ctx context.Context, job *jobs.ProcessingJob) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	payloadJSON, err := json.Marshal(job.Payload)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
			id, kind, source, dedupe_key, payload_json, status, error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind=excluded.kind,
			source=excluded.source,
			dedupe_key=excluded.dedupe_key,
			payload_json=excluded.payload_json,
			status=excluded.status,
			error=excluded.error,
			updated_at=excluded.updated_at`,
		job.ID,
		string(job.Kind),
		job.Source,
		job.DedupeKey,
		string(payloadJSON),
		string(job.Status),
		job.Error,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) DeleteJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
	return err
}

func emptyIfNil(snippets []snippet.Snippet) []snippet.Snippet {
	if snippets == nil {
		return []snippet.Snippet{}
	}
	return snippets
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
