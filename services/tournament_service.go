package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gosimple/slug"

	"github.com/Dosada05/arcade-tournaments/achievements"
	"github.com/Dosada05/arcade-tournaments/metrics"
	"github.com/Dosada05/arcade-tournaments/models"
	"github.com/Dosada05/arcade-tournaments/repositories"
)

const maxSlugAttempts = 20

type TournamentService interface {
	Create(ctx context.Context, p *Principal, input CreateTournamentInput) (*models.Tournament, error)
	GetByID(ctx context.Context, p *Principal, id int) (*models.Tournament, error)
	GetBySlug(ctx context.Context, p *Principal, slug string) (*models.Tournament, error)
	List(ctx context.Context, p *Principal, limit, offset int) ([]models.Tournament, error)
	Update(ctx context.Context, p *Principal, id int, input UpdateTournamentInput) (*models.Tournament, error)
	SetScoresLocked(ctx context.Context, p *Principal, id int, locked bool) (*models.Tournament, error)
	Delete(ctx context.Context, p *Principal, id int) error

	AddGame(ctx context.Context, p *Principal, tournamentID int, input CreateGameInput) (*models.Game, error)
	ListGames(ctx context.Context, p *Principal, tournamentID int) ([]models.Game, error)
	DeleteGame(ctx context.Context, p *Principal, tournamentID, gameID int) error

	// AutoLockExpired locks scores of tournaments past their end time.
	AutoLockExpired(ctx context.Context) (int64, error)
}

type CreateTournamentInput struct {
	Name                    string     `json:"name" validate:"required,min=3,max=100"`
	Description             *string    `json:"description,omitempty" validate:"omitempty,max=2000"`
	IsPublic                *bool      `json:"is_public,omitempty"`
	EndsAt                  *time.Time `json:"ends_at,omitempty"`
	SeedDefaultAchievements bool       `json:"seed_default_achievements"`
}

// Все поля - указатели: nil значит "не менять".
type UpdateTournamentInput struct {
	Name        *string    `json:"name,omitempty" validate:"omitempty,min=3,max=100"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=2000"`
	IsPublic    *bool      `json:"is_public,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	ClearEndsAt bool       `json:"clear_ends_at,omitempty"`
}

type CreateGameInput struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

type tournamentService struct {
	db              *sql.DB
	tournamentRepo  repositories.TournamentRepository
	gameRepo        repositories.GameRepository
	achievementRepo repositories.AchievementRepository
	metrics         *metrics.Metrics
	logger          *slog.Logger
}

func NewTournamentService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	gameRepo repositories.GameRepository,
	achievementRepo repositories.AchievementRepository,
	m *metrics.Metrics,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		db:              db,
		tournamentRepo:  tournamentRepo,
		gameRepo:        gameRepo,
		achievementRepo: achievementRepo,
		metrics:         m,
		logger:          logger,
	}
}

func (s *tournamentService) Create(ctx context.Context, p *Principal, input CreateTournamentInput) (*models.Tournament, error) {
	if p == nil {
		return nil, ErrAuthenticationFailed
	}
	name := strings.TrimSpace(input.Name)
	if n := utf8.RuneCountInString(name); n < 3 || n > 100 {
		return nil, validationError("tournament name must be 3-100 characters")
	}
	base := slug.Make(name)
	if base == "" {
		return nil, validationError("tournament name must contain letters or digits")
	}

	var presets []achievements.Preset
	if input.SeedDefaultAchievements {
		var err error
		if presets, err = achievements.Presets(); err != nil {
			return nil, fmt.Errorf("failed to load achievement presets: %w", err)
		}
	}

	isPublic := true
	if input.IsPublic != nil {
		isPublic = *input.IsPublic
	}
	ts := now()
	t := &models.Tournament{
		Name:        name,
		Description: trimOptional(input.Description),
		OwnerID:     p.UserID,
		IsPublic:    isPublic,
		EndsAt:      utcPtr(input.EndsAt),
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}

	// Каждая попытка в своей транзакции: в Postgres ошибка уникальности
	// прерывает всю транзакцию.
	for attempt := 1; attempt <= maxSlugAttempts; attempt++ {
		t.Slug = base
		if attempt > 1 {
			t.Slug = base + "-" + strconv.Itoa(attempt)
		}

		err := withTx(ctx, s.db, func(tx *sql.Tx) error {
			if err := s.tournamentRepo.Create(ctx, tx, t); err != nil {
				return err
			}
			for _, preset := range presets {
				def := preset.Definition(t.ID)
				def.CreatedAt = ts
				if err := s.achievementRepo.Create(ctx, tx, &def); err != nil {
					return fmt.Errorf("failed to seed achievement %q: %w", preset.Code, err)
				}
			}
			return nil
		})
		if err == nil {
			s.logger.InfoContext(ctx, "tournament created",
				slog.Int("tournament_id", t.ID), slog.String("slug", t.Slug), slog.Int("seeded_achievements", len(presets)))
			return t, nil
		}
		if !errors.Is(err, repositories.ErrTournamentSlugConflict) {
			if errors.Is(err, repositories.ErrTournamentInvalidOwner) {
				return nil, ErrUserNotFound
			}
			return nil, fmt.Errorf("failed to create tournament: %w", err)
		}
		t.ID = 0
	}
	return nil, ErrTournamentSlugConflict
}

func (s *tournamentService) GetByID(ctx context.Context, p *Principal, id int) (*models.Tournament, error) {
	t, err := s.loadVisible(ctx, p, id)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *tournamentService) GetBySlug(ctx context.Context, p *Principal, slugValue string) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetBySlug(ctx, strings.ToLower(strings.TrimSpace(slugValue)))
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament by slug: %w", err)
	}
	if !CanViewTournament(p, t) {
		return nil, ErrTournamentNotFound
	}
	return t, nil
}

func (s *tournamentService) List(ctx context.Context, p *Principal, limit, offset int) ([]models.Tournament, error) {
	filter := repositories.ListTournamentsFilter{
		ViewerID:   p.UserIDPtr(),
		AllVisible: p.IsAdmin(),
		Limit:      limit,
		Offset:     offset,
	}
	list, err := s.tournamentRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	return list, nil
}

func (s *tournamentService) Update(ctx context.Context, p *Principal, id int, input UpdateTournamentInput) (*models.Tournament, error) {
	t, err := s.loadManaged(ctx, p, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if n := utf8.RuneCountInString(name); n < 3 || n > 100 {
			return nil, validationError("tournament name must be 3-100 characters")
		}
		t.Name = name
	}
	if input.Description != nil {
		t.Description = trimOptional(input.Description)
	}
	if input.IsPublic != nil {
		t.IsPublic = *input.IsPublic
	}
	if input.ClearEndsAt {
		t.EndsAt = nil
	} else if input.EndsAt != nil {
		t.EndsAt = utcPtr(input.EndsAt)
	}
	t.UpdatedAt = now()

	if err := s.tournamentRepo.Update(ctx, t); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to update tournament %d: %w", id, err)
	}
	return t, nil
}

func (s *tournamentService) SetScoresLocked(ctx context.Context, p *Principal, id int, locked bool) (*models.Tournament, error) {
	t, err := s.loadManaged(ctx, p, id)
	if err != nil {
		return nil, err
	}
	ts := now()
	if err := s.tournamentRepo.SetScoresLocked(ctx, id, locked, ts); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to set scores lock: %w", err)
	}
	t.ScoresLocked = locked
	t.UpdatedAt = ts
	s.logger.InfoContext(ctx, "tournament scores lock changed", slog.Int("tournament_id", id), slog.Bool("locked", locked))
	return t, nil
}

func (s *tournamentService) Delete(ctx context.Context, p *Principal, id int) error {
	if _, err := s.loadManaged(ctx, p, id); err != nil {
		return err
	}
	if err := s.tournamentRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrTournamentNotFound
		}
		return fmt.Errorf("failed to delete tournament %d: %w", id, err)
	}
	s.logger.InfoContext(ctx, "tournament deleted", slog.Int("tournament_id", id))
	return nil
}

func (s *tournamentService) AddGame(ctx context.Context, p *Principal, tournamentID int, input CreateGameInput) (*models.Game, error) {
	if _, err := s.loadManaged(ctx, p, tournamentID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if n := utf8.RuneCountInString(name); n < 1 || n > 100 {
		return nil, validationError("game name must be 1-100 characters")
	}

	g := &models.Game{TournamentID: tournamentID, Name: name, CreatedAt: now()}
	if err := s.gameRepo.Create(ctx, g); err != nil {
		switch {
		case errors.Is(err, repositories.ErrGameNameConflict):
			return nil, ErrGameNameConflict
		case errors.Is(err, repositories.ErrTournamentNotFound):
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to add game: %w", err)
	}
	return g, nil
}

func (s *tournamentService) ListGames(ctx context.Context, p *Principal, tournamentID int) ([]models.Game, error) {
	if _, err := s.loadVisible(ctx, p, tournamentID); err != nil {
		return nil, err
	}
	games, err := s.gameRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	return games, nil
}

func (s *tournamentService) DeleteGame(ctx context.Context, p *Principal, tournamentID, gameID int) error {
	if _, err := s.loadManaged(ctx, p, tournamentID); err != nil {
		return err
	}
	g, err := s.gameRepo.GetByID(ctx, nil, gameID)
	if err != nil || g.TournamentID != tournamentID {
		if err == nil || errors.Is(err, repositories.ErrGameNotFound) {
			return ErrGameNotFound
		}
		return fmt.Errorf("failed to get game %d: %w", gameID, err)
	}
	if err := s.gameRepo.Delete(ctx, gameID); err != nil {
		if errors.Is(err, repositories.ErrGameNotFound) {
			return ErrGameNotFound
		}
		return fmt.Errorf("failed to delete game %d: %w", gameID, err)
	}
	return nil
}

func (s *tournamentService) AutoLockExpired(ctx context.Context) (int64, error) {
	n, err := s.tournamentRepo.LockExpired(ctx, now())
	if err != nil {
		return 0, err
	}
	s.metrics.TournamentsLocked(n)
	if n > 0 {
		s.logger.InfoContext(ctx, "locked scores of ended tournaments", slog.Int64("count", n))
	}
	return n, nil
}

func (s *tournamentService) loadVisible(ctx context.Context, p *Principal, id int) (*models.Tournament, error) {
	return loadVisibleTournament(ctx, s.tournamentRepo, p, id)
}

func (s *tournamentService) loadManaged(ctx context.Context, p *Principal, id int) (*models.Tournament, error) {
	return loadManagedTournament(ctx, s.tournamentRepo, p, id)
}

// loadVisibleTournament hides private tournaments behind ErrTournamentNotFound.
func loadVisibleTournament(ctx context.Context, repo repositories.TournamentRepository, p *Principal, id int) (*models.Tournament, error) {
	t, err := repo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", id, err)
	}
	if !CanViewTournament(p, t) {
		return nil, ErrTournamentNotFound
	}
	return t, nil
}

func loadManagedTournament(ctx context.Context, repo repositories.TournamentRepository, p *Principal, id int) (*models.Tournament, error) {
	if p == nil {
		return nil, ErrAuthenticationFailed
	}
	t, err := repo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", id, err)
	}
	if err := requireManage(p, t); err != nil {
		return nil, err
	}
	return t, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC().Truncate(time.Microsecond)
	return &v
}
