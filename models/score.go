package models

import "time"

// Score is an immutable submission. A player may hold many scores per game.
type Score struct {
	ID           int64     `json:"id" db:"id"`
	SubmissionID string    `json:"submission_id" db:"submission_id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	GameID       int       `json:"game_id" db:"game_id"`
	PlayerName   string    `json:"player_name" db:"player_name"`
	UserID       *int      `json:"user_id,omitempty" db:"user_id"`
	Value        int64     `json:"value" db:"value"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// GameLeaderboardEntry is a player's best score in one game.
type GameLeaderboardEntry struct {
	Rank        int       `json:"rank"`
	PlayerName  string    `json:"player_name"`
	BestScore   int64     `json:"best_score"`
	SubmittedAt time.Time `json:"submitted_at"`
}
