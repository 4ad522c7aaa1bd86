package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Dosada05/arcade-tournaments/achievements"
	"github.com/Dosada05/arcade-tournaments/live"
	"github.com/Dosada05/arcade-tournaments/metrics"
	"github.com/Dosada05/arcade-tournaments/models"
	"github.com/Dosada05/arcade-tournaments/notifications"
	"github.com/Dosada05/arcade-tournaments/repositories"
)

const maxPlayerNameLength = 32

var playerNamePattern = regexp.MustCompile(`^[\p{L}\p{N} _\-.]+$`)

type ScoreService interface {
	// Submit records a score and, in the same transaction, updates the
	// player's stats and awards every newly qualifying achievement.
	Submit(ctx context.Context, p *Principal, input SubmitScoreInput) (*SubmitResult, error)
	GameLeaderboard(ctx context.Context, p *Principal, tournamentID, gameID, limit int) ([]models.GameLeaderboardEntry, error)
	Leaderboard(ctx context.Context, p *Principal, tournamentID, limit, offset int) ([]models.PlayerStats, error)
	PlayerStats(ctx context.Context, p *Principal, tournamentID int, playerName string) (*models.PlayerStats, error)
}

type SubmitScoreInput struct {
	TournamentID int    `json:"-"`
	GameID       int    `json:"game_id" validate:"required,gt=0"`
	PlayerName   string `json:"player_name" validate:"required,max=64"`
	Value        *int64 `json:"value" validate:"required"`
	SubmissionID string `json:"submission_id,omitempty" validate:"omitempty,uuid"`
}

type SubmitResult struct {
	Score                *models.Score                `json:"score"`
	Rank                 int                          `json:"rank"`
	IsTopScore           bool                         `json:"is_top_score"`
	Stats                *models.PlayerStats          `json:"stats"`
	UnlockedAchievements []models.UnlockedAchievement `json:"unlocked_achievements"`
	// Duplicate is set when the submission id was already recorded.
	Duplicate bool `json:"duplicate,omitempty"`
}

// ScoreLimits bounds accepted score values, inclusive.
type ScoreLimits struct {
	Min int64
	Max int64
}

type scoreService struct {
	db              *sql.DB
	tournamentRepo  repositories.TournamentRepository
	gameRepo        repositories.GameRepository
	scoreRepo       repositories.ScoreRepository
	statsRepo       repositories.StatsRepository
	achievementRepo repositories.AchievementRepository
	hub             live.Broadcaster
	notifier        notifications.Notifier
	metrics         *metrics.Metrics
	limits          ScoreLimits
	logger          *slog.Logger
}

type ScoreServiceDeps struct {
	DB              *sql.DB
	TournamentRepo  repositories.TournamentRepository
	GameRepo        repositories.GameRepository
	ScoreRepo       repositories.ScoreRepository
	StatsRepo       repositories.StatsRepository
	AchievementRepo repositories.AchievementRepository
	Hub             live.Broadcaster
	Notifier        notifications.Notifier
	Metrics         *metrics.Metrics
	Limits          ScoreLimits
	Logger          *slog.Logger
}

func NewScoreService(deps ScoreServiceDeps) ScoreService {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NopNotifier{}
	}
	return &scoreService{
		db:              deps.DB,
		tournamentRepo:  deps.TournamentRepo,
		gameRepo:        deps.GameRepo,
		scoreRepo:       deps.ScoreRepo,
		statsRepo:       deps.StatsRepo,
		achievementRepo: deps.AchievementRepo,
		hub:             deps.Hub,
		notifier:        notifier,
		metrics:         deps.Metrics,
		limits:          deps.Limits,
		logger:          deps.Logger,
	}
}

// errReplay unwinds the transaction when the submission id is already known.
var errReplay = errors.New("submission replay")

type committedSubmission struct {
	tournament *models.Tournament
	game       *models.Game
	result     *SubmitResult
	unlocked   []models.UnlockedAchievement
	ruleTypes  []models.RuleType
}

func (s *scoreService) Submit(ctx context.Context, p *Principal, input SubmitScoreInput) (*SubmitResult, error) {
	name, err := normalizePlayerName(input.PlayerName)
	if err != nil {
		s.metrics.SubmissionRejected("validation")
		return nil, err
	}
	if input.Value == nil {
		s.metrics.SubmissionRejected("validation")
		return nil, validationError("score value is required")
	}
	value := *input.Value
	if value < s.limits.Min || value > s.limits.Max {
		s.metrics.SubmissionRejected("validation")
		return nil, validationError("score must be between %d and %d", s.limits.Min, s.limits.Max)
	}
	submissionID := strings.TrimSpace(input.SubmissionID)
	if submissionID == "" {
		submissionID = uuid.NewString()
	} else {
		parsed, err := uuid.Parse(submissionID)
		if err != nil {
			s.metrics.SubmissionRejected("validation")
			return nil, validationError("submission_id must be a UUID")
		}
		submissionID = parsed.String()
	}

	var done committedSubmission
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		t, err := s.tournamentRepo.GetByID(ctx, tx, input.TournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return fmt.Errorf("failed to load tournament: %w", err)
		}
		if err := CanSubmitScore(p, t); err != nil {
			return err
		}

		g, err := s.gameRepo.GetByID(ctx, tx, input.GameID)
		if err != nil || g.TournamentID != t.ID {
			if err == nil || errors.Is(err, repositories.ErrGameNotFound) {
				return ErrGameNotFound
			}
			return fmt.Errorf("failed to load game: %w", err)
		}

		if _, err := s.scoreRepo.GetBySubmissionID(ctx, tx, submissionID); err == nil {
			return errReplay
		} else if !errors.Is(err, repositories.ErrScoreNotFound) {
			return fmt.Errorf("failed to check submission id: %w", err)
		}

		ts := now()
		score := &models.Score{
			SubmissionID: submissionID,
			TournamentID: t.ID,
			GameID:       g.ID,
			PlayerName:   name,
			UserID:       p.UserIDPtr(),
			Value:        value,
			CreatedAt:    ts,
		}
		if err := s.scoreRepo.Create(ctx, tx, score); err != nil {
			if errors.Is(err, repositories.ErrScoreDuplicateSubmission) {
				return errReplay
			}
			return err
		}

		higher, err := s.scoreRepo.CountHigher(ctx, tx, t.ID, g.ID, score.Value)
		if err != nil {
			return err
		}
		rank := higher + 1
		isTop := rank == 1

		stats, err := s.statsRepo.Upsert(ctx, tx, repositories.StatDelta{
			TournamentID: t.ID,
			PlayerName:   name,
			GameID:       g.ID,
			Value:        score.Value,
			IsTopScore:   isTop,
			At:           ts,
		})
		if err != nil {
			return err
		}

		defs, err := s.achievementRepo.ListByTournament(ctx, tx, t.ID, true)
		if err != nil {
			return err
		}
		earned, err := s.achievementRepo.EarnedIDs(ctx, tx, t.ID, name)
		if err != nil {
			return err
		}
		qualified := achievements.Evaluate(defs, earned, *stats, achievements.Submission{Value: score.Value, IsTopScore: isTop})

		unlocked := make([]models.UnlockedAchievement, 0, len(qualified))
		var ruleTypes []models.RuleType
		for i := range qualified {
			def := &qualified[i]
			award, created, err := s.achievementRepo.Award(ctx, tx, &models.PlayerAchievement{
				TournamentID:  t.ID,
				AchievementID: def.ID,
				PlayerName:    name,
				UserID:        score.UserID,
				ScoreID:       &score.ID,
				AwardedAt:     ts,
			})
			if err != nil {
				return err
			}
			if !created {
				continue
			}
			unlocked = append(unlocked, models.Unlocked(def, award))
			ruleTypes = append(ruleTypes, def.RuleType)
		}

		done = committedSubmission{
			tournament: t,
			game:       g,
			unlocked:   unlocked,
			ruleTypes:  ruleTypes,
			result: &SubmitResult{
				Score:                score,
				Rank:                 rank,
				IsTopScore:           isTop,
				Stats:                stats,
				UnlockedAchievements: unlocked,
			},
		}
		return nil
	})

	if errors.Is(err, errReplay) {
		return s.replayResult(ctx, input, submissionID)
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrScoresLocked):
			s.metrics.SubmissionRejected("locked")
		case errors.Is(err, ErrTournamentNotFound), errors.Is(err, ErrGameNotFound):
			s.metrics.SubmissionRejected("not_found")
		default:
			s.metrics.SubmissionRejected("error")
		}
		return nil, err
	}

	s.afterCommit(ctx, done)
	return done.result, nil
}

// replayResult answers a repeated submission with the stored score.
// Nothing is unlocked twice.
func (s *scoreService) replayResult(ctx context.Context, input SubmitScoreInput, submissionID string) (*SubmitResult, error) {
	score, err := s.scoreRepo.GetBySubmissionID(ctx, nil, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load replayed submission: %w", err)
	}
	if score.TournamentID != input.TournamentID || score.GameID != input.GameID {
		return nil, ErrSubmissionConflict
	}
	higher, err := s.scoreRepo.CountHigher(ctx, nil, score.TournamentID, score.GameID, score.Value)
	if err != nil {
		return nil, err
	}
	stats, err := s.statsRepo.Get(ctx, nil, score.TournamentID, score.PlayerName)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats for replayed submission: %w", err)
	}
	s.logger.InfoContext(ctx, "duplicate score submission ignored",
		slog.String("submission_id", submissionID), slog.Int64("score_id", score.ID))
	return &SubmitResult{
		Score:                score,
		Rank:                 higher + 1,
		IsTopScore:           higher == 0,
		Stats:                stats,
		UnlockedAchievements: []models.UnlockedAchievement{},
		Duplicate:            true,
	}, nil
}

// afterCommit never fails the request.
func (s *scoreService) afterCommit(ctx context.Context, done committedSubmission) {
	res := done.result
	s.metrics.ScoreSubmitted()
	for _, rt := range done.ruleTypes {
		s.metrics.AchievementAwarded(string(rt))
	}

	s.logger.InfoContext(ctx, "score submitted",
		slog.Int("tournament_id", done.tournament.ID),
		slog.Int("game_id", done.game.ID),
		slog.String("player", res.Score.PlayerName),
		slog.Int64("value", res.Score.Value),
		slog.Int("rank", res.Rank),
		slog.Int("unlocked", len(done.unlocked)))

	base := notifications.Payload{
		TournamentID:   done.tournament.ID,
		TournamentName: done.tournament.Name,
		TournamentSlug: done.tournament.Slug,
		PlayerName:     res.Score.PlayerName,
		GameName:       done.game.Name,
		Score:          res.Score.Value,
		Rank:           res.Rank,
	}

	room := live.TournamentRoom(done.tournament.ID)
	if s.hub != nil {
		s.hub.BroadcastToRoom(room, live.Message{
			Type: string(notifications.EventScoreSubmitted),
			Payload: map[string]interface{}{
				"score":        res.Score,
				"game_name":    done.game.Name,
				"rank":         res.Rank,
				"is_top_score": res.IsTopScore,
				"stats":        res.Stats,
			},
		})
	}
	s.notifier.Notify(ctx, notifications.Event{Type: notifications.EventScoreSubmitted, Payload: base})

	for _, u := range done.unlocked {
		if s.hub != nil {
			s.hub.BroadcastToRoom(room, live.Message{Type: string(notifications.EventAchievementUnlocked), Payload: u})
		}
		payload := base
		payload.Achievement = &notifications.AchievementInfo{
			Name:        u.Name,
			Description: u.Description,
			Icon:        u.Icon,
			Points:      u.Points,
		}
		s.notifier.Notify(ctx, notifications.Event{Type: notifications.EventAchievementUnlocked, Payload: payload})
	}
}

func (s *scoreService) GameLeaderboard(ctx context.Context, p *Principal, tournamentID, gameID, limit int) ([]models.GameLeaderboardEntry, error) {
	if _, err := loadVisibleTournament(ctx, s.tournamentRepo, p, tournamentID); err != nil {
		return nil, err
	}
	g, err := s.gameRepo.GetByID(ctx, nil, gameID)
	if err != nil || g.TournamentID != tournamentID {
		if err == nil || errors.Is(err, repositories.ErrGameNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to load game: %w", err)
	}
	entries, err := s.scoreRepo.BestByGame(ctx, tournamentID, gameID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load game leaderboard: %w", err)
	}
	return entries, nil
}

func (s *scoreService) Leaderboard(ctx context.Context, p *Principal, tournamentID, limit, offset int) ([]models.PlayerStats, error) {
	if _, err := loadVisibleTournament(ctx, s.tournamentRepo, p, tournamentID); err != nil {
		return nil, err
	}
	list, err := s.statsRepo.ListByTournament(ctx, tournamentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	return list, nil
}

func (s *scoreService) PlayerStats(ctx context.Context, p *Principal, tournamentID int, playerName string) (*models.PlayerStats, error) {
	if _, err := loadVisibleTournament(ctx, s.tournamentRepo, p, tournamentID); err != nil {
		return nil, err
	}
	name, err := normalizePlayerName(playerName)
	if err != nil {
		return nil, err
	}
	st, err := s.statsRepo.Get(ctx, nil, tournamentID, name)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerStatsNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to load player stats: %w", err)
	}
	return st, nil
}

// normalizePlayerName trims and checks a display name: 1..32 letters,
// digits, spaces or _ - .
func normalizePlayerName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if n := utf8.RuneCountInString(name); n == 0 || n > maxPlayerNameLength {
		return "", validationError("player name must be 1-%d characters", maxPlayerNameLength)
	}
	if !playerNamePattern.MatchString(name) {
		return "", validationError("player name may contain only letters, digits, spaces and _-.")
	}
	return name, nil
}
