package services

import "github.com/Dosada05/arcade-tournaments/models"

// Principal is the authenticated caller. A nil *Principal is anonymous.
type Principal struct {
	UserID int
	Role   models.UserRole
	Name   string
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == models.RoleAdmin
}

// UserIDPtr returns the caller's id for attribution, nil when anonymous.
func (p *Principal) UserIDPtr() *int {
	if p == nil {
		return nil
	}
	id := p.UserID
	return &id
}

func isOwner(p *Principal, t *models.Tournament) bool {
	return p != nil && t != nil && t.OwnerID == p.UserID
}

// CanViewTournament: public, owner or admin.
func CanViewTournament(p *Principal, t *models.Tournament) bool {
	if t == nil {
		return false
	}
	return t.IsPublic || isOwner(p, t) || p.IsAdmin()
}

// CanManageTournament: owner or admin.
func CanManageTournament(p *Principal, t *models.Tournament) bool {
	return t != nil && (isOwner(p, t) || p.IsAdmin())
}

// CanSubmitScore returns nil when p may post a score to t. A hidden
// tournament reports ErrTournamentNotFound so its existence does not leak.
func CanSubmitScore(p *Principal, t *models.Tournament) error {
	if !CanViewTournament(p, t) {
		return ErrTournamentNotFound
	}
	if t.ScoresLocked {
		return ErrScoresLocked
	}
	return nil
}

func CanResetAchievements(p *Principal, t *models.Tournament) bool {
	return CanManageTournament(p, t)
}

// requireManage maps the manage predicate to the error handlers expect.
func requireManage(p *Principal, t *models.Tournament) error {
	if CanManageTournament(p, t) {
		return nil
	}
	if p == nil {
		return ErrAuthenticationFailed
	}
	if !CanViewTournament(p, t) {
		return ErrTournamentNotFound
	}
	return ErrForbiddenOperation
}
