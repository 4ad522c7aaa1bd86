package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/arcade-tournaments/models"
)

var (
	ErrScoreNotFound            = errors.New("score not found")
	ErrScoreDuplicateSubmission = errors.New("score submission already recorded")
	ErrScoreInvalidReference    = errors.New("score references a missing tournament, game or user")
)

type ScoreRepository interface {
	Create(ctx context.Context, exec SQLExecutor, score *models.Score) error
	GetBySubmissionID(ctx context.Context, exec SQLExecutor, submissionID string) (*models.Score, error)
	// CountHigher counts scores in the game strictly above value.
	CountHigher(ctx context.Context, exec SQLExecutor, tournamentID, gameID int, value int64) (int, error)
	// BestByGame returns each player's best score in the game, earliest submission first on ties.
	BestByGame(ctx context.Context, tournamentID, gameID, limit int) ([]models.GameLeaderboardEntry, error)
}

type sqlScoreRepository struct {
	db *sql.DB
}

func NewScoreRepository(db *sql.DB) ScoreRepository {
	return &sqlScoreRepository{db: db}
}

func (r *sqlScoreRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *sqlScoreRepository) Create(ctx context.Context, exec SQLExecutor, s *models.Score) error {
	query := `
		INSERT INTO scores (submission_id, tournament_id, game_id, player_name, user_id, value, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		s.SubmissionID, s.TournamentID, s.GameID, s.PlayerName, s.UserID, s.Value, s.CreatedAt,
	).Scan(&s.ID)
	if err != nil {
		switch {
		case isUniqueViolation(err, "scores_submission_id_key", "scores.submission_id"):
			return ErrScoreDuplicateSubmission
		case isForeignKeyViolation(err, ""):
			return ErrScoreInvalidReference
		}
		return fmt.Errorf("failed to insert score: %w", err)
	}
	return nil
}

func (r *sqlScoreRepository) GetBySubmissionID(ctx context.Context, exec SQLExecutor, submissionID string) (*models.Score, error) {
	query := `
		SELECT id, submission_id, tournament_id, game_id, player_name, user_id, value, created_at
		FROM scores
		WHERE submission_id = $1`

	s := &models.Score{}
	err := r.getExecutor(exec).QueryRowContext(ctx, query, submissionID).Scan(
		&s.ID, &s.SubmissionID, &s.TournamentID, &s.GameID, &s.PlayerName, &s.UserID, &s.Value, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScoreNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *sqlScoreRepository) CountHigher(ctx context.Context, exec SQLExecutor, tournamentID, gameID int, value int64) (int, error) {
	query := `SELECT COUNT(*) FROM scores WHERE tournament_id = $1 AND game_id = $2 AND value > $3`

	var n int
	if err := r.getExecutor(exec).QueryRowContext(ctx, query, tournamentID, gameID, value).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count higher scores: %w", err)
	}
	return n, nil
}

func (r *sqlScoreRepository) BestByGame(ctx context.Context, tournamentID, gameID, limit int) ([]models.GameLeaderboardEntry, error) {
	limit, _ = normalizePaging(limit, 0)
	query := `
		SELECT s.player_name, s.value, s.created_at
		FROM scores s
		WHERE s.tournament_id = $1 AND s.game_id = $2
		  AND s.id = (
			SELECT x.id FROM scores x
			WHERE x.tournament_id = s.tournament_id AND x.game_id = s.game_id AND x.player_name = s.player_name
			ORDER BY x.value DESC, x.id ASC
			LIMIT 1)
		ORDER BY s.value DESC, s.id ASC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, tournamentID, gameID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query game leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]models.GameLeaderboardEntry, 0)
	for rows.Next() {
		var e models.GameLeaderboardEntry
		if err := rows.Scan(&e.PlayerName, &e.BestScore, &e.SubmittedAt); err != nil {
			return nil, err
		}
		// Равные очки делят место.
		switch {
		case len(entries) == 0:
			e.Rank = 1
		case entries[len(entries)-1].BestScore == e.BestScore:
			e.Rank = entries[len(entries)-1].Rank
		default:
			e.Rank = len(entries) + 1
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
