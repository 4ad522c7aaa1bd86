package models

import "time"

// PlayerStats is the running snapshot for one player in one tournament.
type PlayerStats struct {
	TournamentID    int       `json:"tournament_id" db:"tournament_id"`
	PlayerName      string    `json:"player_name" db:"player_name"`
	TotalScores     int       `json:"total_scores" db:"total_scores"`
	GamesPlayed     int       `json:"games_played" db:"games_played"`
	FirstPlaceCount int       `json:"first_place_count" db:"first_place_count"`
	ScoreSum        int64     `json:"score_sum" db:"score_sum"`
	BestScore       int64     `json:"best_score" db:"best_score"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`

	Rank *int `json:"rank,omitempty" db:"-"`
}
