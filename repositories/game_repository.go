package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/arcade-tournaments/models"
)

var (
	ErrGameNotFound     = errors.New("game not found")
	ErrGameNameConflict = errors.New("game name conflict in this tournament")
)

type GameRepository interface {
	Create(ctx context.Context, game *models.Game) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Game, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]models.Game, error)
	Delete(ctx context.Context, id int) error
}

type sqlGameRepository struct {
	db *sql.DB
}

func NewGameRepository(db *sql.DB) GameRepository {
	return &sqlGameRepository{db: db}
}

func (r *sqlGameRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *sqlGameRepository) Create(ctx context.Context, game *models.Game) error {
	query := `
		INSERT INTO games (tournament_id, name, created_at)
		VALUES ($1, $2, $3)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query, game.TournamentID, game.Name, game.CreatedAt).Scan(&game.ID)
	if err != nil {
		switch {
		case isUniqueViolation(err, "games_tournament_id_name_key", "games.name"):
			return ErrGameNameConflict
		case isForeignKeyViolation(err, ""):
			return ErrTournamentNotFound
		}
		return fmt.Errorf("failed to insert game: %w", err)
	}
	return nil
}

func (r *sqlGameRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Game, error) {
	query := `SELECT id, tournament_id, name, created_at FROM games WHERE id = $1`

	g := &models.Game{}
	err := r.getExecutor(exec).QueryRowContext(ctx, query, id).Scan(&g.ID, &g.TournamentID, &g.Name, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	return g, nil
}

func (r *sqlGameRepository) ListByTournament(ctx context.Context, tournamentID int) ([]models.Game, error) {
	query := `
		SELECT id, tournament_id, name, created_at
		FROM games
		WHERE tournament_id = $1
		ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	games := make([]models.Game, 0)
	for rows.Next() {
		var g models.Game
		if err := rows.Scan(&g.ID, &g.TournamentID, &g.Name, &g.CreatedAt); err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

func (r *sqlGameRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM games WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete game %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrGameNotFound)
}
