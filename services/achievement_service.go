package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Dosada05/arcade-tournaments/achievements"
	"github.com/Dosada05/arcade-tournaments/models"
	"github.com/Dosada05/arcade-tournaments/repositories"
	"github.com/Dosada05/arcade-tournaments/storage"
)

const maxRecentWindow = 24 * time.Hour

var achievementCodePattern = regexp.MustCompile(`^[a-z0-9_]{2,40}$`)

type AchievementService interface {
	Create(ctx context.Context, p *Principal, tournamentID int, input AchievementInput) (*models.Achievement, error)
	Update(ctx context.Context, p *Principal, tournamentID, achievementID int, input AchievementInput) (*models.Achievement, error)
	Delete(ctx context.Context, p *Principal, tournamentID, achievementID int) error
	List(ctx context.Context, p *Principal, tournamentID int) ([]models.Achievement, error)
	UploadIcon(ctx context.Context, p *Principal, tournamentID, achievementID int, contentType string, file io.Reader) (*models.Achievement, error)

	Recent(ctx context.Context, p *Principal, query RecentQuery) ([]models.UnlockedAchievement, error)
	PlayerAchievements(ctx context.Context, p *Principal, tournamentID int, playerName string) ([]models.UnlockedAchievement, error)
	ResetPlayer(ctx context.Context, p *Principal, tournamentID int, playerName string) (int64, error)
}

type AchievementInput struct {
	Code        string          `json:"code" validate:"required,min=2,max=40"`
	Name        string          `json:"name" validate:"required,min=1,max=100"`
	Description string          `json:"description" validate:"max=500"`
	Icon        string          `json:"icon" validate:"max=500"`
	Points      int             `json:"points" validate:"gte=0"`
	RuleType    models.RuleType `json:"rule_type" validate:"required"`
	Threshold   int64           `json:"threshold" validate:"gte=0"`
	IsActive    *bool           `json:"is_active,omitempty"`
}

// RecentQuery drives the unlock "toast" poll. Window 0 means the default.
type RecentQuery struct {
	TournamentID int
	PlayerName   *string
	UserID       *int
	Window       time.Duration
	Limit        int
}

type achievementService struct {
	tournamentRepo  repositories.TournamentRepository
	achievementRepo repositories.AchievementRepository
	uploader        storage.FileUploader
	defaultWindow   time.Duration
	logger          *slog.Logger
}

// NewAchievementService accepts a nil uploader; icon uploads then fail with ErrUploadsDisabled.
func NewAchievementService(
	tournamentRepo repositories.TournamentRepository,
	achievementRepo repositories.AchievementRepository,
	uploader storage.FileUploader,
	defaultWindow time.Duration,
	logger *slog.Logger,
) AchievementService {
	return &achievementService{
		tournamentRepo:  tournamentRepo,
		achievementRepo: achievementRepo,
		uploader:        uploader,
		defaultWindow:   defaultWindow,
		logger:          logger,
	}
}

func (s *achievementService) Create(ctx context.Context, p *Principal, tournamentID int, input AchievementInput) (*models.Achievement, error) {
	if _, err := loadManagedTournament(ctx, s.tournamentRepo, p, tournamentID); err != nil {
		return nil, err
	}
	a := &models.Achievement{TournamentID: tournamentID, IsActive: true, CreatedAt: now()}
	if err := applyAchievementInput(a, input); err != nil {
		return nil, err
	}

	if err := s.achievementRepo.Create(ctx, nil, a); err != nil {
		return nil, mapAchievementRepoError(err)
	}
	return a, nil
}

func (s *achievementService) Update(ctx context.Context, p *Principal, tournamentID, achievementID int, input AchievementInput) (*models.Achievement, error) {
	a, err := s.loadManagedAchievement(ctx, p, tournamentID, achievementID)
	if err != nil {
		return nil, err
	}
	if err := applyAchievementInput(a, input); err != nil {
		return nil, err
	}
	if err := s.achievementRepo.Update(ctx, a); err != nil {
		return nil, mapAchievementRepoError(err)
	}
	return a, nil
}

func (s *achievementService) Delete(ctx context.Context, p *Principal, tournamentID, achievementID int) error {
	if _, err := s.loadManagedAchievement(ctx, p, tournamentID, achievementID); err != nil {
		return err
	}
	if err := s.achievementRepo.Delete(ctx, achievementID); err != nil {
		return mapAchievementRepoError(err)
	}
	return nil
}

func (s *achievementService) List(ctx context.Context, p *Principal, tournamentID int) ([]models.Achievement, error) {
	if _, err := loadVisibleTournament(ctx, s.tournamentRepo, p, tournamentID); err != nil {
		return nil, err
	}
	list, err := s.achievementRepo.ListByTournament(ctx, nil, tournamentID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	return list, nil
}

func (s *achievementService) UploadIcon(ctx context.Context, p *Principal, tournamentID, achievementID int, contentType string, file io.Reader) (*models.Achievement, error) {
	if s.uploader == nil {
		return nil, ErrUploadsDisabled
	}
	a, err := s.loadManagedAchievement(ctx, p, tournamentID, achievementID)
	if err != nil {
		return nil, err
	}
	ext, err := storage.ExtensionForContentType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	key := storage.AchievementIconKey(tournamentID, ext)
	uploaded, err := s.uploader.Upload(ctx, key, contentType, file)
	if err != nil {
		return nil, fmt.Errorf("failed to upload achievement icon: %w", err)
	}
	if err := s.achievementRepo.UpdateIcon(ctx, achievementID, uploaded.Location); err != nil {
		// Не оставляем сироту в бакете.
		if delErr := s.uploader.Delete(ctx, key); delErr != nil {
			s.logger.WarnContext(ctx, "failed to remove orphaned icon", slog.String("key", key), slog.Any("error", delErr))
		}
		return nil, mapAchievementRepoError(err)
	}
	a.Icon = uploaded.Location
	return a, nil
}

func (s *achievementService) Recent(ctx context.Context, p *Principal, q RecentQuery) ([]models.UnlockedAchievement, error) {
	if _, err := loadVisibleTournament(ctx, s.tournamentRepo, p, q.TournamentID); err != nil {
		return nil, err
	}
	window := q.Window
	if window == 0 {
		window = s.defaultWindow
	}
	if window < 0 || window > maxRecentWindow {
		return nil, validationError("window must be between 1s and %s", maxRecentWindow)
	}
	if q.PlayerName != nil {
		name, err := normalizePlayerName(*q.PlayerName)
		if err != nil {
			return nil, err
		}
		q.PlayerName = &name
	}

	list, err := s.achievementRepo.ListRecent(ctx, repositories.RecentFilter{
		TournamentID: q.TournamentID,
		PlayerName:   q.PlayerName,
		UserID:       q.UserID,
		Since:        now().Add(-window),
		Limit:        q.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list recent achievements: %w", err)
	}
	return list, nil
}

func (s *achievementService) PlayerAchievements(ctx context.Context, p *Principal, tournamentID int, playerName string) ([]models.UnlockedAchievement, error) {
	if _, err := loadVisibleTournament(ctx, s.tournamentRepo, p, tournamentID); err != nil {
		return nil, err
	}
	name, err := normalizePlayerName(playerName)
	if err != nil {
		return nil, err
	}
	list, err := s.achievementRepo.ListByPlayer(ctx, tournamentID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to list player achievements: %w", err)
	}
	return list, nil
}

// ResetPlayer is the only path that removes awards.
func (s *achievementService) ResetPlayer(ctx context.Context, p *Principal, tournamentID int, playerName string) (int64, error) {
	t, err := loadManagedTournament(ctx, s.tournamentRepo, p, tournamentID)
	if err != nil {
		return 0, err
	}
	if !CanResetAchievements(p, t) {
		return 0, ErrForbiddenOperation
	}
	name, err := normalizePlayerName(playerName)
	if err != nil {
		return 0, err
	}
	n, err := s.achievementRepo.DeleteForPlayer(ctx, tournamentID, name)
	if err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "player achievements reset",
		slog.Int("tournament_id", tournamentID), slog.String("player", name),
		slog.Int64("removed", n), slog.Int("by_user_id", p.UserID))
	return n, nil
}

func (s *achievementService) loadManagedAchievement(ctx context.Context, p *Principal, tournamentID, achievementID int) (*models.Achievement, error) {
	if _, err := loadManagedTournament(ctx, s.tournamentRepo, p, tournamentID); err != nil {
		return nil, err
	}
	a, err := s.achievementRepo.GetByID(ctx, achievementID)
	if err != nil {
		return nil, mapAchievementRepoError(err)
	}
	if a.TournamentID != tournamentID {
		return nil, ErrAchievementNotFound
	}
	return a, nil
}

func applyAchievementInput(a *models.Achievement, input AchievementInput) error {
	code := strings.ToLower(strings.TrimSpace(input.Code))
	if !achievementCodePattern.MatchString(code) {
		return validationError("code must be 2-40 characters of a-z, 0-9 or _")
	}
	name := strings.TrimSpace(input.Name)
	if n := utf8.RuneCountInString(name); n < 1 || n > 100 {
		return validationError("name must be 1-100 characters")
	}
	if input.Points < 0 {
		return validationError("points must not be negative")
	}
	threshold, err := achievements.ValidateRule(input.RuleType, input.Threshold)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	a.Code = code
	a.Name = name
	a.Description = strings.TrimSpace(input.Description)
	a.Icon = strings.TrimSpace(input.Icon)
	a.Points = input.Points
	a.RuleType = input.RuleType
	a.Threshold = threshold
	if input.IsActive != nil {
		a.IsActive = *input.IsActive
	}
	return nil
}

func mapAchievementRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrAchievementNotFound):
		return ErrAchievementNotFound
	case errors.Is(err, repositories.ErrAchievementCodeConflict):
		return ErrAchievementCodeConflict
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	}
	return fmt.Errorf("achievement storage error: %w", err)
}
