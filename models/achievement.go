package models

import "time"

type RuleType string

const (
	RuleFirstScore       RuleType = "first_score"
	RuleScoreMilestone   RuleType = "score_milestone"
	RuleHighScorer       RuleType = "high_scorer"
	RuleFirstPlace       RuleType = "first_place"
	RuleGameMaster       RuleType = "game_master"
	RuleConsistentPlayer RuleType = "consistent_player"
)

// Achievement is a rule definition owned by a tournament.
type Achievement struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	Code         string    `json:"code" db:"code"`
	Name         string    `json:"name" db:"name"`
	Description  string    `json:"description" db:"description"`
	Icon         string    `json:"icon" db:"icon"`
	Points       int       `json:"points" db:"points"`
	RuleType     RuleType  `json:"rule_type" db:"rule_type"`
	Threshold    int64     `json:"threshold" db:"threshold"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// PlayerAchievement is the award fact, unique per (tournament, achievement, player).
type PlayerAchievement struct {
	ID            int64     `json:"id" db:"id"`
	TournamentID  int       `json:"tournament_id" db:"tournament_id"`
	AchievementID int       `json:"achievement_id" db:"achievement_id"`
	PlayerName    string    `json:"player_name" db:"player_name"`
	UserID        *int      `json:"user_id,omitempty" db:"user_id"`
	ScoreID       *int64    `json:"score_id,omitempty" db:"score_id"`
	AwardedAt     time.Time `json:"awarded_at" db:"awarded_at"`
}

// UnlockedAchievement is an award joined with its display metadata.
type UnlockedAchievement struct {
	AwardID       int64     `json:"award_id"`
	AchievementID int       `json:"achievement_id"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Icon          string    `json:"icon"`
	Points        int       `json:"points"`
	RuleType      RuleType  `json:"rule_type"`
	PlayerName    string    `json:"player_name"`
	UserID        *int      `json:"user_id,omitempty"`
	AwardedAt     time.Time `json:"awarded_at"`
}

// Unlocked combines an award with its definition.
func Unlocked(a *Achievement, award *PlayerAchievement) UnlockedAchievement {
	return UnlockedAchievement{
		AwardID:       award.ID,
		AchievementID: a.ID,
		Code:          a.Code,
		Name:          a.Name,
		Description:   a.Description,
		Icon:          a.Icon,
		Points:        a.Points,
		RuleType:      a.RuleType,
		PlayerName:    award.PlayerName,
		UserID:        award.UserID,
		AwardedAt:     award.AwardedAt,
	}
}
