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
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrTournamentSlugConflict = errors.New("tournament slug conflict")
	ErrTournamentInvalidOwner = errors.New("invalid owner reference")
)

type ListTournamentsFilter struct {
	// ViewerID adds the viewer's own private tournaments to the public ones.
	ViewerID *int
	// AllVisible lists private tournaments of every owner (admins).
	AllVisible bool
	Limit      int
	Offset     int
}

type TournamentRepository interface {
	Create(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error)
	Update(ctx context.Context, tournament *models.Tournament) error
	SetScoresLocked(ctx context.Context, id int, locked bool, now time.Time) error
	Delete(ctx context.Context, id int) error
	LockExpired(ctx context.Context, now time.Time) (int64, error)
}

type sqlTournamentRepository struct {
	db *sql.DB
}

func NewTournamentRepository(db *sql.DB) TournamentRepository {
	return &sqlTournamentRepository{db: db}
}

func (r *sqlTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `id, slug, name, description, owner_id, is_public, scores_locked, ends_at, created_at, updated_at`

func (r *sqlTournamentRepository) Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tournaments (slug, name, description, owner_id, is_public, scores_locked, ends_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	err := executor.QueryRowContext(ctx, query,
		t.Slug, t.Name, t.Description, t.OwnerID, t.IsPublic, t.ScoresLocked, t.EndsAt, t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID)

	return r.handleTournamentError(err)
}

func (r *sqlTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1`
	return scanTournament(r.getExecutor(exec).QueryRowContext(ctx, query, id))
}

func (r *sqlTournamentRepository) GetBySlug(ctx context.Context, slug string) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE slug = $1`
	return scanTournament(r.db.QueryRowContext(ctx, query, slug))
}

func (r *sqlTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	limit, offset := normalizePaging(filter.Limit, filter.Offset)

	query := `SELECT ` + tournamentColumns + ` FROM tournaments`
	args := []interface{}{}
	argID := 1

	if !filter.AllVisible {
		if filter.ViewerID != nil {
			query += fmt.Sprintf(" WHERE (is_public = $%d OR owner_id = $%d)", argID, argID+1)
			args = append(args, true, *filter.ViewerID)
			argID += 2
		} else {
			query += fmt.Sprintf(" WHERE is_public = $%d", argID)
			args = append(args, true)
			argID++
		}
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argID, argID+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		var t models.Tournament
		if scanErr := rows.Scan(
			&t.ID, &t.Slug, &t.Name, &t.Description, &t.OwnerID, &t.IsPublic, &t.ScoresLocked,
			&t.EndsAt, &t.CreatedAt, &t.UpdatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		tournaments = append(tournaments, t)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return tournaments, nil
}

func (r *sqlTournamentRepository) Update(ctx context.Context, t *models.Tournament) error {
	query := `
		UPDATE tournaments SET
			name = $1,
			description = $2,
			is_public = $3,
			ends_at = $4,
			updated_at = $5
		WHERE id = $6`

	result, err := r.db.ExecContext(ctx, query, t.Name, t.Description, t.IsPublic, t.EndsAt, t.UpdatedAt, t.ID)
	if err != nil {
		return r.handleTournamentError(err)
	}

	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *sqlTournamentRepository) SetScoresLocked(ctx context.Context, id int, locked bool, now time.Time) error {
	query := `UPDATE tournaments SET scores_locked = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, locked, now, id)
	if err != nil {
		return fmt.Errorf("failed to update scores lock for tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *sqlTournamentRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tournaments WHERE id = $1`, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

// LockExpired locks scores of every unlocked tournament whose ends_at has passed.
func (r *sqlTournamentRepository) LockExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE tournaments SET scores_locked = $1, updated_at = $2
		WHERE scores_locked = $3 AND ends_at IS NOT NULL AND ends_at <= $2`
	result, err := r.db.ExecContext(ctx, query, true, now, false)
	if err != nil {
		return 0, fmt.Errorf("failed to lock expired tournaments: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return n, nil
}

func scanTournament(row *sql.Row) (*models.Tournament, error) {
	t := &models.Tournament{}
	err := row.Scan(
		&t.ID, &t.Slug, &t.Name, &t.Description, &t.OwnerID, &t.IsPublic, &t.ScoresLocked,
		&t.EndsAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *sqlTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isUniqueViolation(err, "tournaments_slug_key", "tournaments.slug"):
		return ErrTournamentSlugConflict
	case isForeignKeyViolation(err, "tournaments_owner_id_fkey"):
		return ErrTournamentInvalidOwner
	}
	return err
}
