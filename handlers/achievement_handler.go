package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Dosada05/arcade-tournaments/middleware"
	"github.com/Dosada05/arcade-tournaments/services"
)

const maxIconUploadBytes = 2 << 20 // 2MB

type AchievementHandler struct {
	achievementService services.AchievementService
}

func NewAchievementHandler(as services.AchievementService) *AchievementHandler {
	return &AchievementHandler{achievementService: as}
}

func (h *AchievementHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	list, err := h.achievementService.List(r.Context(), middleware.PrincipalFromContext(r.Context()), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"achievements": list}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AchievementHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.AchievementInput
	if !decodeAndValidate(w, r, &input) {
		return
	}

	a, err := h.achievementService.Create(r.Context(), middleware.PrincipalFromContext(r.Context()), tournamentID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"achievement": a}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AchievementHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, achievementID, err := achievementIDsFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.AchievementInput
	if !decodeAndValidate(w, r, &input) {
		return
	}

	a, err := h.achievementService.Update(r.Context(), middleware.PrincipalFromContext(r.Context()), tournamentID, achievementID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"achievement": a}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AchievementHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, achievementID, err := achievementIDsFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.achievementService.Delete(r.Context(), middleware.PrincipalFromContext(r.Context()), tournamentID, achievementID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadIconHandler обрабатывает POST .../achievements/{achievementID}/icon (multipart, поле "icon")
func (h *AchievementHandler) UploadIconHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, achievementID, err := achievementIDsFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxIconUploadBytes+1<<20)
	if err := r.ParseMultipartForm(maxIconUploadBytes); err != nil {
		badRequestResponse(w, r, fmt.Errorf("icon must be a multipart upload of at most %d bytes", maxIconUploadBytes))
		return
	}

	file, header, err := r.FormFile("icon")
	if err != nil {
		badRequestResponse(w, r, errors.New("missing 'icon' file field"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		badRequestResponse(w, r, errors.New("content type required"))
		return
	}

	a, err := h.achievementService.UploadIcon(r.Context(), middleware.PrincipalFromContext(r.Context()), tournamentID, achievementID, contentType, file)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"achievement": a}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RecentHandler обрабатывает GET .../achievements/recent?player=&user_id=&window=&limit=
func (h *AchievementHandler) RecentHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	query := r.URL.Query()
	q := services.RecentQuery{TournamentID: tournamentID}
	if player := strings.TrimSpace(query.Get("player")); player != "" {
		q.PlayerName = &player
	}
	if s := query.Get("user_id"); s != "" {
		id, err := strconv.Atoi(s)
		if err != nil || id <= 0 {
			badRequestResponse(w, r, errors.New("invalid user_id query parameter"))
			return
		}
		q.UserID = &id
	}
	if s := query.Get("window"); s != "" {
		window, err := time.ParseDuration(s)
		if err != nil || window <= 0 {
			badRequestResponse(w, r, errors.New("invalid window query parameter, expected a duration like 30s"))
			return
		}
		q.Window = window
	}
	if q.Limit, _, err = readPaging(r); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	list, err := h.achievementService.Recent(r.Context(), middleware.PrincipalFromContext(r.Context()), q)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"achievements": list}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AchievementHandler) PlayerAchievementsHandler(w http.ResponseWriter, r *http.Request) {
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

	list, err := h.achievementService.PlayerAchievements(r.Context(), middleware.PrincipalFromContext(r.Context()), tournamentID, name)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"achievements": list}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ResetPlayerHandler обрабатывает DELETE .../players/{playerName}/achievements
func (h *AchievementHandler) ResetPlayerHandler(w http.ResponseWriter, r *http.Request) {
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

	removed, err := h.achievementService.ResetPlayer(r.Context(), middleware.PrincipalFromContext(r.Context()), tournamentID, name)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"removed": removed}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func achievementIDsFromURL(r *http.Request) (int, int, error) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		return 0, 0, err
	}
	achievementID, err := getIDFromURL(r, "achievementID")
	if err != nil {
		return 0, 0, err
	}
	return tournamentID, achievementID, nil
}
