package notifications

import "strings"

type Platform string

const (
	PlatformTeams   Platform = "teams"
	PlatformDiscord Platform = "discord"
	PlatformSlack   Platform = "slack"
)

const (
	teamsScoreColor         = "0076D7"
	teamsAchievementColor   = "FFB900"
	discordScoreColor       = 0x3498DB
	discordAchievementColor = 0xF1C40F
)

type teamsCard struct {
	Type       string `json:"@type"`
	Context    string `json:"@context"`
	Summary    string `json:"summary"`
	Title      string `json:"title"`
	Text       string `json:"text"`
	ThemeColor string `json:"themeColor"`
}

type discordMessage struct {
	Content string         `json:"content"`
	Embeds  []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type string    `json:"type"`
	Text slackText `json:"text"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// format builds the platform body; the result is passed to json.Marshal.
func format(platform Platform, ev Event) interface{} {
	title, text := ev.headline()
	achievement := ev.Type == EventAchievementUnlocked

	switch platform {
	case PlatformTeams:
		color := teamsScoreColor
		if achievement {
			color = teamsAchievementColor
		}
		return teamsCard{
			Type:       "MessageCard",
			Context:    "https://schema.org/extensions",
			Summary:    title,
			Title:      title,
			Text:       text,
			ThemeColor: color,
		}
	case PlatformDiscord:
		color := discordScoreColor
		if achievement {
			color = discordAchievementColor
		}
		return discordMessage{
			Content: title,
			Embeds:  []discordEmbed{{Title: title, Description: text, Color: color}},
		}
	default:
		// Slack mrkdwn uses single asterisks for bold.
		mrkdwn := strings.ReplaceAll(text, "**", "*")
		return slackMessage{
			Text: title,
			Blocks: []slackBlock{{
				Type: "section",
				Text: slackText{Type: "mrkdwn", Text: "*" + title + "*\n" + mrkdwn},
			}},
		}
	}
}
