package models

import "time"

// Tournament: соревнование со своими играми, очками и достижениями.
type Tournament struct {
	ID           int        `json:"id" db:"id"`
	Slug         string     `json:"slug" db:"slug"`
	Name         string     `json:"name" db:"name"`
	Description  *string    `json:"description,omitempty" db:"description"`
	OwnerID      int        `json:"owner_id" db:"owner_id"`
	IsPublic     bool       `json:"is_public" db:"is_public"`
	ScoresLocked bool       `json:"scores_locked" db:"scores_locked"`
	EndsAt       *time.Time `json:"ends_at,omitempty" db:"ends_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`

	Games []Game `json:"games,omitempty" db:"-"`
}

type Game struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	Name         string    `json:"name" db:"name"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
