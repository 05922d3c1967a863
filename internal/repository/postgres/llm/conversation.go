package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mruwnik/notes-critic-sub001/internal/domain"
	llmmodels "github.com/mruwnik/notes-critic-sub001/internal/domain/models/llm"
	llmrepo "github.com/mruwnik/notes-critic-sub001/internal/domain/repositories/llm"
	"github.com/mruwnik/notes-critic-sub001/internal/repository/postgres"
)

// PostgresConversationRepository implements the ConversationRepository interface
type PostgresConversationRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewConversationRepository creates a new PostgresConversationRepository
func NewConversationRepository(config *postgres.RepositoryConfig) llmrepo.ConversationRepository {
	return &PostgresConversationRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// CreateConversation creates a new conversation
func (r *PostgresConversationRepository) CreateConversation(ctx context.Context, conv *llmmodels.Conversation) error {
	now := time.Now()
	conv.CreatedAt = now
	conv.UpdatedAt = now

	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, title, model, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.tables.Conversations)

	executor := postgres.GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		conv.ID,
		conv.UserID,
		conv.Title,
		conv.Model,
		conv.CreatedAt,
		conv.UpdatedAt,
	)
	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return fmt.Errorf("conversation %s: %w", conv.ID, domain.ErrConflict)
		}
		return fmt.Errorf("create conversation: %w", err)
	}

	r.logger.Debug("conversation created", "conversation_id", conv.ID, "user_id", conv.UserID)
	return nil
}

// GetConversation retrieves a conversation by ID, scoped to the user
func (r *PostgresConversationRepository) GetConversation(ctx context.Context, conversationID, userID string) (*llmmodels.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, title, model, created_at, updated_at, deleted_at
		FROM %s
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`, r.tables.Conversations)

	var conv llmmodels.Conversation
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, conversationID, userID).Scan(
		&conv.ID,
		&conv.UserID,
		&conv.Title,
		&conv.Model,
		&conv.CreatedAt,
		&conv.UpdatedAt,
		&conv.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	return &conv, nil
}

// ListConversations retrieves all of a user's conversations, most
// recently updated first
func (r *PostgresConversationRepository) ListConversations(ctx context.Context, userID string) ([]llmmodels.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, title, model, created_at, updated_at, deleted_at
		FROM %s
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY updated_at DESC
	`, r.tables.Conversations)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]llmmodels.Conversation, 0)
	for rows.Next() {
		var conv llmmodels.Conversation
		err := rows.Scan(
			&conv.ID,
			&conv.UserID,
			&conv.Title,
			&conv.Model,
			&conv.CreatedAt,
			&conv.UpdatedAt,
			&conv.DeletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return conversations, nil
}

// TouchConversation bumps updated_at so the conversation sorts first
func (r *PostgresConversationRepository) TouchConversation(ctx context.Context, conversationID string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET updated_at = $2 WHERE id = $1 AND deleted_at IS NULL
	`, r.tables.Conversations)

	executor := postgres.GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, conversationID, time.Now())
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}
	return nil
}

// DeleteConversation soft-deletes a conversation
func (r *PostgresConversationRepository) DeleteConversation(ctx context.Context, conversationID, userID string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET deleted_at = $3
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`, r.tables.Conversations)

	executor := postgres.GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, conversationID, userID, time.Now())
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}

	r.logger.Debug("conversation deleted", "conversation_id", conversationID)
	return nil
}
