package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/arcade-tournaments/middleware"
	"github.com/Dosada05/arcade-tournaments/services"
)

type ScoreHandler struct {
	scoreService services.ScoreService
}

func NewScoreHandler(ss services.ScoreService) *ScoreHandler {
	return &ScoreHandler{scoreService: ss}
}

// SubmitHandler обрабатывает POST /api/tournaments/{tournamentID}/scores
func (h *ScoreHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.SubmitScoreInput
	if !decodeAndValidate(w, r, &input) {
		return
	}
	input.TournamentID = tournamentID

	result, err := h.scoreService.Submit(r.Context(), middleware.PrincipalFromContext(r.Context()), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	// Повторная отправка того же submission_id ничего не создает.
	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	if err := writeJSON(w, status, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GameScoresHandler обрабатывает GET /api/tournaments/{tournamentID}/games/{gameID}/scores
func (h *ScoreHandler) GameScoresHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	gameID, err := getIDFromURL(r, "gameID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	limit, _, err := readPaging(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	entries, err := h.scoreService.GameLeaderboard(r.Context(), middleware.PrincipalFromContext(r.Context()), tournamentID, gameID, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"scores": entries}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// LeaderboardHandler обрабатывает GET /api/tournaments/{tournamentID}/leaderboard
func (h *ScoreHandler) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	limit, offset, err := readPaging(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	board, err := h.scoreService.Leaderboard(r.Context(), middleware.PrincipalFromContext(r.Context()), tournamentID, limit, offset)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"leaderboard": board}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// PlayerStatsHandler обрабатывает GET /api/tournaments/{tournamentID}/players/{playerName}/stats
func (h *ScoreHandler) PlayerStatsHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	name, err := playerNameFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	stats, err := h.scoreService.PlayerStats(r.Context(), middleware.PrincipalFromContext(r.Context()), tournamentID, name)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"stats": stats}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// chi отдает параметр экранированным, если в пути есть %-последовательности.
func playerNameFromURL(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "playerName")
	if raw == "" {
		return "", errors.New("missing playerName in URL path")
	}
	name, err := url.PathUnescape(raw)
	if err != nil {
		return "", errors.New("invalid playerName in URL path")
	}
	return name, nil
}
