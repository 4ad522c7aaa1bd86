package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/arcade-tournaments/models"
)

var (
	ErrAchievementNotFound     = errors.New("achievement not found")
	ErrAchievementCodeConflict = errors.New("achievement code conflict in this tournament")
)

// RecentFilter selects awards handed out since a point in time.
type RecentFilter struct {
	TournamentID int
	PlayerName   *string
	UserID       *int
	Since        time.Time
	Limit        int
}

type AchievementRepository interface {
	Create(ctx context.Context, exec SQLExecutor, a *models.Achievement) error
	GetByID(ctx context.Context, id int) (*models.Achievement, error)
	Update(ctx context.Context, a *models.Achievement) error
	UpdateIcon(ctx context.Context, id int, icon string) error
	Delete(ctx context.Context, id int) error
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, activeOnly bool) ([]models.Achievement, error)

	// EarnedIDs returns the achievement ids the player already holds in the tournament.
	EarnedIDs(ctx context.Context, exec SQLExecutor, tournamentID int, playerName string) (map[int]bool, error)
	// Award inserts the award unless the player already holds it.
	// An existing award yields (nil, false, nil).
	Award(ctx context.Context, exec SQLExecutor, award *models.PlayerAchievement) (*models.PlayerAchievement, bool, error)
	ListRecent(ctx context.Context, filter RecentFilter) ([]models.UnlockedAchievement, error)
	ListByPlayer(ctx context.Context, tournamentID int, playerName string) ([]models.UnlockedAchievement, error)
	DeleteForPlayer(ctx context.Context, tournamentID int, playerName string) (int64, error)
}

type sqlAchievementRepository struct {
	db *sql.DB
}

func NewAchievementRepository(db *sql.DB) AchievementRepository {
	return &sqlAchievementRepository{db: db}
}

func (r *sqlAchievementRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const achievementColumns = `id, tournament_id, code, name, description, icon, points, rule_type, threshold, is_active, created_at`

func scanAchievement(scan func(dest ...interface{}) error, a *models.Achievement) error {
	return scan(&a.ID, &a.TournamentID, &a.Code, &a.Name, &a.Description, &a.Icon,
		&a.Points, &a.RuleType, &a.Threshold, &a.IsActive, &a.CreatedAt)
}

func (r *sqlAchievementRepository) Create(ctx context.Context, exec SQLExecutor, a *models.Achievement) error {
	query := `
		INSERT INTO achievements (tournament_id, code, name, description, icon, points, rule_type, threshold, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		a.TournamentID, a.Code, a.Name, a.Description, a.Icon, a.Points, a.RuleType, a.Threshold, a.IsActive, a.CreatedAt,
	).Scan(&a.ID)
	return r.handleAchievementError(err)
}

func (r *sqlAchievementRepository) GetByID(ctx context.Context, id int) (*models.Achievement, error) {
	query := `SELECT ` + achievementColumns + ` FROM achievements WHERE id = $1`

	a := &models.Achievement{}
	if err := scanAchievement(r.db.QueryRowContext(ctx, query, id).Scan, a); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAchievementNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *sqlAchievementRepository) Update(ctx context.Context, a *models.Achievement) error {
	query := `
		UPDATE achievements SET
			code = $1,
			name = $2,
			description = $3,
			icon = $4,
			points = $5,
			rule_type = $6,
			threshold = $7,
			is_active = $8
		WHERE id = $9`

	result, err := r.db.ExecContext(ctx, query,
		a.Code, a.Name, a.Description, a.Icon, a.Points, a.RuleType, a.Threshold, a.IsActive, a.ID,
	)
	if err != nil {
		return r.handleAchievementError(err)
	}
	return checkAffectedRows(result, ErrAchievementNotFound)
}

func (r *sqlAchievementRepository) UpdateIcon(ctx context.Context, id int, icon string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE achievements SET icon = $1 WHERE id = $2`, icon, id)
	if err != nil {
		return fmt.Errorf("failed to update achievement icon: %w", err)
	}
	return checkAffectedRows(result, ErrAchievementNotFound)
}

func (r *sqlAchievementRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM achievements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete achievement %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrAchievementNotFound)
}

func (r *sqlAchievementRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, activeOnly bool) ([]models.Achievement, error) {
	query := `SELECT ` + achievementColumns + ` FROM achievements WHERE tournament_id = $1`
	args := []interface{}{tournamentID}
	if activeOnly {
		query += ` AND is_active = $2`
		args = append(args, true)
	}
	query += ` ORDER BY id ASC`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	defer rows.Close()

	list := make([]models.Achievement, 0)
	for rows.Next() {
		var a models.Achievement
		if err := scanAchievement(rows.Scan, &a); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func (r *sqlAchievementRepository) EarnedIDs(ctx context.Context, exec SQLExecutor, tournamentID int, playerName string) (map[int]bool, error) {
	query := `SELECT achievement_id FROM player_achievements WHERE tournament_id = $1 AND player_name = $2`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, tournamentID, playerName)
	if err != nil {
		return nil, fmt.Errorf("failed to load earned achievements: %w", err)
	}
	defer rows.Close()

	earned := make(map[int]bool)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		earned[id] = true
	}
	return earned, rows.Err()
}

func (r *sqlAchievementRepository) Award(ctx context.Context, exec SQLExecutor, award *models.PlayerAchievement) (*models.PlayerAchievement, bool, error) {
	query := `
		INSERT INTO player_achievements (tournament_id, achievement_id, player_name, user_id, score_id, awarded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tournament_id, achievement_id, player_name) DO NOTHING
		RETURNING id`

	created := *award
	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		award.TournamentID, award.AchievementID, award.PlayerName, award.UserID, award.ScoreID, award.AwardedAt,
	).Scan(&created.ID)
	if err != nil {
		// Уже выдано: либо DO NOTHING без строки, либо гонка на уникальном ключе.
		if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err, "player_achievements_unique_award", "player_achievements.") {
			return nil, false, nil
		}
		if isForeignKeyViolation(err, "") {
			return nil, false, ErrAchievementNotFound
		}
		return nil, false, fmt.Errorf("failed to award achievement %d to %q: %w", award.AchievementID, award.PlayerName, err)
	}
	return &created, true, nil
}

const unlockedSelect = `
	SELECT pa.id, a.id, a.code, a.name, a.description, a.icon, a.points, a.rule_type,
	       pa.player_name, pa.user_id, pa.awarded_at
	FROM player_achievements pa
	JOIN achievements a ON a.id = pa.achievement_id`

func (r *sqlAchievementRepository) ListRecent(ctx context.Context, f RecentFilter) ([]models.UnlockedAchievement, error) {
	limit, _ := normalizePaging(f.Limit, 0)
	query := unlockedSelect + ` WHERE pa.tournament_id = $1 AND pa.awarded_at >= $2`
	args := []interface{}{f.TournamentID, f.Since}
	argID := 3

	if f.PlayerName != nil {
		query += fmt.Sprintf(" AND pa.player_name = $%d", argID)
		args = append(args, *f.PlayerName)
		argID++
	}
	if f.UserID != nil {
		query += fmt.Sprintf(" AND pa.user_id = $%d", argID)
		args = append(args, *f.UserID)
		argID++
	}
	query += fmt.Sprintf(" ORDER BY pa.awarded_at DESC, pa.id DESC LIMIT $%d", argID)
	args = append(args, limit)

	return r.queryUnlocked(ctx, query, args...)
}

func (r *sqlAchievementRepository) ListByPlayer(ctx context.Context, tournamentID int, playerName string) ([]models.UnlockedAchievement, error) {
	query := unlockedSelect + `
		WHERE pa.tournament_id = $1 AND pa.player_name = $2
		ORDER BY pa.awarded_at DESC, pa.id DESC`
	return r.queryUnlocked(ctx, query, tournamentID, playerName)
}

func (r *sqlAchievementRepository) DeleteForPlayer(ctx context.Context, tournamentID int, playerName string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM player_achievements WHERE tournament_id = $1 AND player_name = $2`, tournamentID, playerName)
	if err != nil {
		return 0, fmt.Errorf("failed to reset achievements for %q: %w", playerName, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return n, nil
}

func (r *sqlAchievementRepository) queryUnlocked(ctx context.Context, query string, args ...interface{}) ([]models.UnlockedAchievement, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query awards: %w", err)
	}
	defer rows.Close()

	list := make([]models.UnlockedAchievement, 0)
	for rows.Next() {
		var u models.UnlockedAchievement
		if err := rows.Scan(
			&u.AwardID, &u.AchievementID, &u.Code, &u.Name, &u.Description, &u.Icon, &u.Points, &u.RuleType,
			&u.PlayerName, &u.UserID, &u.AwardedAt,
		); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

func (r *sqlAchievementRepository) handleAchievementError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isUniqueViolation(err, "achievements_tournament_id_code_key", "achievements.code"):
		return ErrAchievementCodeConflict
	case isForeignKeyViolation(err, "achievements_tournament_id_fkey"):
		return ErrTournamentNotFound
	}
	return err
}
