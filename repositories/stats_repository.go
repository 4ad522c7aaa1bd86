package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/arcade-tournaments/models"
)

var ErrPlayerStatsNotFound = errors.New("player stats not found")

// StatDelta is one accepted score as seen by the aggregator.
type StatDelta struct {
	TournamentID int
	PlayerName   string
	GameID       int
	Value        int64
	IsTopScore   bool
	At           time.Time
}

type StatsRepository interface {
	// Upsert folds the delta into the player's snapshot and returns the
	// post-update row. Pass the submission transaction as exec.
	Upsert(ctx context.Context, exec SQLExecutor, delta StatDelta) (*models.PlayerStats, error)
	Get(ctx context.Context, exec SQLExecutor, tournamentID int, playerName string) (*models.PlayerStats, error)
	ListByTournament(ctx context.Context, tournamentID, limit, offset int) ([]models.PlayerStats, error)
}

type sqlStatsRepository struct {
	db *sql.DB
}

func NewStatsRepository(db *sql.DB) StatsRepository {
	return &sqlStatsRepository{db: db}
}

func (r *sqlStatsRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *sqlStatsRepository) Upsert(ctx context.Context, exec SQLExecutor, d StatDelta) (*models.PlayerStats, error) {
	firstPlace := 0
	if d.IsTopScore {
		firstPlace = 1
	}

	newGame, err := r.markGamePlayed(ctx, exec, d)
	if err != nil {
		return nil, err
	}

	// Все счётчики считаются от заблокированной строки, а не от снимка запроса.
	query := `
		INSERT INTO player_stats (
			tournament_id, player_name, total_scores, games_played,
			first_place_count, score_sum, best_score, updated_at
		) VALUES ($1, $2, 1, $3, $4, $5, $5, $6)
		ON CONFLICT (tournament_id, player_name) DO UPDATE SET
			total_scores      = player_stats.total_scores + 1,
			games_played      = player_stats.games_played + excluded.games_played,
			first_place_count = player_stats.first_place_count + excluded.first_place_count,
			score_sum         = player_stats.score_sum + excluded.score_sum,
			best_score        = CASE WHEN excluded.best_score > player_stats.best_score
			                         THEN excluded.best_score ELSE player_stats.best_score END,
			updated_at        = excluded.updated_at
		RETURNING total_scores, games_played, first_place_count, score_sum, best_score`

	st := &models.PlayerStats{
		TournamentID: d.TournamentID,
		PlayerName:   d.PlayerName,
		UpdatedAt:    d.At,
	}
	err = r.getExecutor(exec).QueryRowContext(ctx, query,
		d.TournamentID, d.PlayerName, newGame, firstPlace, d.Value, d.At,
	).Scan(&st.TotalScores, &st.GamesPlayed, &st.FirstPlaceCount, &st.ScoreSum, &st.BestScore)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert stats for %q in tournament %d: %w", d.PlayerName, d.TournamentID, err)
	}
	return st, nil
}

// markGamePlayed records the (player, game) pair and returns 1 the first
// time the player scores in that game, 0 afterwards.
func (r *sqlStatsRepository) markGamePlayed(ctx context.Context, exec SQLExecutor, d StatDelta) (int, error) {
	query := `
		INSERT INTO player_games (tournament_id, player_name, game_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (tournament_id, player_name, game_id) DO NOTHING`

	res, err := r.getExecutor(exec).ExecContext(ctx, query, d.TournamentID, d.PlayerName, d.GameID)
	if err != nil {
		return 0, fmt.Errorf("failed to record game %d for %q: %w", d.GameID, d.PlayerName, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n > 0 {
		return 1, nil
	}
	return 0, nil
}

func (r *sqlStatsRepository) Get(ctx context.Context, exec SQLExecutor, tournamentID int, playerName string) (*models.PlayerStats, error) {
	query := `
		SELECT tournament_id, player_name, total_scores, games_played, first_place_count, score_sum, best_score, updated_at
		FROM player_stats
		WHERE tournament_id = $1 AND player_name = $2`

	st := &models.PlayerStats{}
	err := r.getExecutor(exec).QueryRowContext(ctx, query, tournamentID, playerName).Scan(
		&st.TournamentID, &st.PlayerName, &st.TotalScores, &st.GamesPlayed,
		&st.FirstPlaceCount, &st.ScoreSum, &st.BestScore, &st.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerStatsNotFound
		}
		return nil, err
	}
	return st, nil
}

func (r *sqlStatsRepository) ListByTournament(ctx context.Context, tournamentID, limit, offset int) ([]models.PlayerStats, error) {
	limit, offset = normalizePaging(limit, offset)
	query := `
		SELECT tournament_id, player_name, total_scores, games_played, first_place_count, score_sum, best_score, updated_at
		FROM player_stats
		WHERE tournament_id = $1
		ORDER BY best_score DESC, total_scores DESC, player_name ASC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, tournamentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list player stats: %w", err)
	}
	defer rows.Close()

	list := make([]models.PlayerStats, 0)
	for rows.Next() {
		var st models.PlayerStats
		if err := rows.Scan(
			&st.TournamentID, &st.PlayerName, &st.TotalScores, &st.GamesPlayed,
			&st.FirstPlaceCount, &st.ScoreSum, &st.BestScore, &st.UpdatedAt,
		); err != nil {
			return nil, err
		}
		rank := offset + len(list) + 1
		st.Rank = &rank
		list = append(list, st)
	}
	return list, rows.Err()
}
