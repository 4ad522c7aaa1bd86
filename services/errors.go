package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ошибки валидации
	ErrValidationFailed = errors.New("validation failed")

	// Ошибки аутентификации и авторизации
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrAuthenticationFailed = errors.New("authentication required")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")
	ErrScoresLocked         = errors.New("scores are locked for this tournament")

	// Ресурс не найден
	ErrUserNotFound        = errors.New("user not found")
	ErrTournamentNotFound  = errors.New("tournament not found")
	ErrGameNotFound        = errors.New("game not found")
	ErrAchievementNotFound = errors.New("achievement not found")
	ErrPlayerNotFound      = errors.New("player has no scores in this tournament")

	// Ошибки конфликтов
	ErrUserEmailConflict       = errors.New("email address is already in use")
	ErrUserNicknameConflict    = errors.New("nickname is already in use")
	ErrTournamentSlugConflict  = errors.New("could not find a free slug for this tournament name")
	ErrGameNameConflict        = errors.New("a game with this name already exists in the tournament")
	ErrAchievementCodeConflict = errors.New("an achievement with this code already exists in the tournament")
	ErrSubmissionConflict      = errors.New("submission id already used for a different score")

	// Внешние зависимости
	ErrUploadsDisabled = errors.New("file uploads are not configured")
)
