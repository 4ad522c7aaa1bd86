// Package notifications relays score and achievement events to chat webhooks.
package notifications

import "fmt"

type EventType string

const (
	EventScoreSubmitted      EventType = "score_submitted"
	EventAchievementUnlocked EventType = "achievement_unlocked"
)

func (t EventType) Valid() bool {
	return t == EventScoreSubmitted || t == EventAchievementUnlocked
}

type Event struct {
	Type    EventType `json:"type" validate:"required,oneof=score_submitted achievement_unlocked"`
	Payload Payload   `json:"payload" validate:"required"`
}

type Payload struct {
	TournamentID   int              `json:"tournament_id"`
	TournamentName string           `json:"tournament_name" validate:"required,max=100"`
	TournamentSlug string           `json:"tournament_slug,omitempty"`
	PlayerName     string           `json:"player_name" validate:"required,max=32"`
	GameName       string           `json:"game_name,omitempty" validate:"max=100"`
	Score          int64            `json:"score,omitempty"`
	Rank           int              `json:"rank,omitempty"`
	Achievement    *AchievementInfo `json:"achievement,omitempty"`
}

type AchievementInfo struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Points      int    `json:"points"`
}

// headline returns a one-line summary and a longer markdown body.
func (e Event) headline() (title, text string) {
	p := e.Payload
	switch e.Type {
	case EventAchievementUnlocked:
		name := "an achievement"
		var desc string
		points := 0
		icon := "🏆"
		if a := p.Achievement; a != nil {
			name = a.Name
			desc = a.Description
			points = a.Points
			if a.Icon != "" {
				icon = a.Icon
			}
		}
		title = fmt.Sprintf("%s %s unlocked %s", icon, p.PlayerName, name)
		text = fmt.Sprintf("**%s** unlocked **%s** in %s (+%d pts)", p.PlayerName, name, p.TournamentName, points)
		if desc != "" {
			text += "\n" + desc
		}
	default:
		title = fmt.Sprintf("New score in %s", p.TournamentName)
		text = fmt.Sprintf("**%s** scored **%d**", p.PlayerName, p.Score)
		if p.GameName != "" {
			text += " in " + p.GameName
		}
		if p.Rank > 0 {
			text += fmt.Sprintf(" (rank #%d)", p.Rank)
		}
	}
	return title, text
}
