package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mruwnik/notes-critic-sub001/internal/domain"
	"github.com/mruwnik/notes-critic-sub001/internal/domain/models"
	"github.com/mruwnik/notes-critic-sub001/internal/domain/repositories"
)

// PostgresNoteRepository implements the NoteRepository interface
type PostgresNoteRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewNoteRepository creates a new PostgresNoteRepository
func NewNoteRepository(config *RepositoryConfig) repositories.NoteRepository {
	return &PostgresNoteRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// GetNoteByPath retrieves a note by its path, scoped to the user
func (r *PostgresNoteRepository) GetNoteByPath(ctx context.Context, userID, path string) (*models.Note, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, path, title, content, created_at, updated_at
		FROM %s
		WHERE user_id = $1 AND path = $2
	`, r.tables.Notes)

	var note models.Note
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, userID, path).Scan(
		&note.ID,
		&note.UserID,
		&note.Path,
		&note.Title,
		&note.Content,
		&note.CreatedAt,
		&note.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("note %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get note by path: %w", err)
	}

	return &note, nil
}

// ListNotes retrieves all of a user's notes ordered by path
func (r *PostgresNoteRepository) ListNotes(ctx context.Context, userID string) ([]models.Note, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, path, title, content, created_at, updated_at
		FROM %s
		WHERE user_id = $1
		ORDER BY path ASC
	`, r.tables.Notes)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	notes := make([]models.Note, 0)
	for rows.Next() {
		var note models.Note
		err := rows.Scan(
			&note.ID,
			&note.UserID,
			&note.Path,
			&note.Title,
			&note.Content,
			&note.CreatedAt,
			&note.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, note)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return notes, nil
}

// NoteSearchVector is the expression the notes search index is built
// on. SearchNotes must match against this exact expression or the GIN
// index cannot serve the query.
const NoteSearchVector = "to_tsvector('english', title || ' ' || content)"

// SearchNotes runs a full-text search over title and content.
//
// PostgreSQL full-text search components:
// - to_tsvector(config, text): converts text to searchable tokens
// - websearch_to_tsquery(query): accepts Google-like syntax (OR, NOT, phrases)
// - ts_rank(): ranks results by relevance, title matches weighted 2x
// - ts_headline(): extracts a highlighted snippet around the match
func (r *PostgresNoteRepository) SearchNotes(ctx context.Context, userID, query string, limit int) ([]models.NoteMatch, error) {
	searchQuery := fmt.Sprintf(`
		SELECT path, title,
		       ts_headline('english', content, websearch_to_tsquery('english', $2),
		                   'MaxWords=50, MinWords=20, MaxFragments=1') AS snippet,
		       (ts_rank(to_tsvector('english', title), websearch_to_tsquery('english', $2)) * 2.0 +
		        ts_rank(to_tsvector('english', content), websearch_to_tsquery('english', $2))) AS rank_score
		FROM %s
		WHERE user_id = $1
		  AND %s @@ websearch_to_tsquery('english', $2)
		ORDER BY rank_score DESC
		LIMIT $3
	`, r.tables.Notes, NoteSearchVector)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, searchQuery, userID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("full-text search query failed: %w", err)
	}
	defer rows.Close()

	matches := make([]models.NoteMatch, 0)
	for rows.Next() {
		var match models.NoteMatch
		err := rows.Scan(&match.Path, &match.Title, &match.Snippet, &match.Rank)
		if err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		matches = append(matches, match)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search results: %w", err)
	}

	r.logger.Debug("note search completed",
		"user_id", userID,
		"query", query,
		"matches", len(matches))

	return matches, nil
}

// UpsertNote creates a note at the given path or replaces its content
func (r *PostgresNoteRepository) UpsertNote(ctx context.Context, note *models.Note) error {
	now := time.Now()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	note.UpdatedAt = now

	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, path, title, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, path) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`, r.tables.Notes)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		note.ID,
		note.UserID,
		note.Path,
		note.Title,
		note.Content,
		note.CreatedAt,
		note.UpdatedAt,
	).Scan(&note.ID, &note.CreatedAt, &note.UpdatedAt)

	if err != nil {
		return fmt.Errorf("upsert note: %w", err)
	}
	return nil
}
