package llm

import (
	"context"
	"encoding/json"
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

// PostgresTurnRepository implements the TurnRepository interface.
// Input and steps are stored as JSONB documents; steps are rewritten
// whole when a turn settles rather than patched per block.
type PostgresTurnRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewTurnRepository creates a new PostgresTurnRepository
func NewTurnRepository(config *postgres.RepositoryConfig) llmrepo.TurnRepository {
	return &PostgresTurnRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// CreateTurn inserts a new turn row
func (r *PostgresTurnRepository) CreateTurn(ctx context.Context, turn *llmmodels.ConversationTurn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	inputJSON, stepsJSON, err := marshalTurn(turn)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, conversation_id, input, steps, status, error, model, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, r.tables.Turns)

	executor := postgres.GetExecutor(ctx, r.pool)
	_, err = executor.Exec(ctx, query,
		turn.ID,
		turn.ConversationID,
		inputJSON,
		stepsJSON,
		turn.Status,
		turn.Error,
		turn.Model,
		turn.CreatedAt,
		turn.CompletedAt,
	)
	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return fmt.Errorf("turn %s: %w", turn.ID, domain.ErrConflict)
		}
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("conversation %s: %w", turn.ConversationID, domain.ErrNotFound)
		}
		return fmt.Errorf("create turn: %w", err)
	}

	r.logger.Debug("turn created", "turn_id", turn.ID, "conversation_id", turn.ConversationID)
	return nil
}

// GetTurn retrieves a turn by ID
func (r *PostgresTurnRepository) GetTurn(ctx context.Context, turnID string) (*llmmodels.ConversationTurn, error) {
	query := fmt.Sprintf(`
		SELECT id, conversation_id, input, steps, status, error, model, created_at, completed_at
		FROM %s
		WHERE id = $1
	`, r.tables.Turns)

	executor := postgres.GetExecutor(ctx, r.pool)
	row := executor.QueryRow(ctx, query, turnID)

	turn, err := scanTurn(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("turn %s: %w", turnID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get turn: %w", err)
	}
	return turn, nil
}

// ListTurns retrieves all turns of a conversation in creation order
func (r *PostgresTurnRepository) ListTurns(ctx context.Context, conversationID string) ([]llmmodels.ConversationTurn, error) {
	query := fmt.Sprintf(`
		SELECT id, conversation_id, input, steps, status, error, model, created_at, completed_at
		FROM %s
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`, r.tables.Turns)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	turns := make([]llmmodels.ConversationTurn, 0)
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, *turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}

// SaveTurn rewrites a turn's mutable columns
func (r *PostgresTurnRepository) SaveTurn(ctx context.Context, turn *llmmodels.ConversationTurn) error {
	inputJSON, stepsJSON, err := marshalTurn(turn)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET input = $2, steps = $3, status = $4, error = $5, completed_at = $6
		WHERE id = $1
	`, r.tables.Turns)

	executor := postgres.GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query,
		turn.ID,
		inputJSON,
		stepsJSON,
		turn.Status,
		turn.Error,
		turn.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("save turn: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("turn %s: %w", turn.ID, domain.ErrNotFound)
	}

	r.logger.Debug("turn saved", "turn_id", turn.ID, "status", turn.Status, "steps", len(turn.Steps))
	return nil
}

// DeleteTurn removes a turn row
func (r *PostgresTurnRepository) DeleteTurn(ctx context.Context, turnID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Turns)

	executor := postgres.GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, turnID)
	if err != nil {
		return fmt.Errorf("delete turn: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("turn %s: %w", turnID, domain.ErrNotFound)
	}

	r.logger.Debug("turn deleted", "turn_id", turnID)
	return nil
}

func marshalTurn(turn *llmmodels.ConversationTurn) (inputJSON, stepsJSON []byte, err error) {
	inputJSON, err = json.Marshal(turn.Input)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal turn input: %w", err)
	}

	steps := turn.Steps
	if steps == nil {
		steps = []*llmmodels.TurnStep{}
	}
	stepsJSON, err = json.Marshal(steps)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal turn steps: %w", err)
	}
	return inputJSON, stepsJSON, nil
}

func scanTurn(row pgx.Row) (*llmmodels.ConversationTurn, error) {
	var turn llmmodels.ConversationTurn
	var inputJSON, stepsJSON []byte

	err := row.Scan(
		&turn.ID,
		&turn.ConversationID,
		&inputJSON,
		&stepsJSON,
		&turn.Status,
		&turn.Error,
		&turn.Model,
		&turn.CreatedAt,
		&turn.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(inputJSON, &turn.Input); err != nil {
		return nil, fmt.Errorf("unmarshal turn input: %w", err)
	}
	if err := json.Unmarshal(stepsJSON, &turn.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal turn steps: %w", err)
	}
	return &turn, nil
}
