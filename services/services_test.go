package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Dosada05/arcade-tournaments/db/dbtest"
	"github.com/Dosada05/arcade-tournaments/live"
	"github.com/Dosada05/arcade-tournaments/logging"
	"github.com/Dosada05/arcade-tournaments/models"
	"github.com/Dosada05/arcade-tournaments/notifications"
	"github.com/Dosada05/arcade-tournaments/repositories"
	"github.com/Dosada05/arcade-tournaments/storage"
)

type recordingHub struct {
	mu   sync.Mutex
	msgs []live.Message
}

func (h *recordingHub) BroadcastToRoom(roomID string, msg live.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	msg.RoomID = roomID
	h.msgs = append(h.msgs, msg)
}

func (h *recordingHub) count(msgType string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, m := range h.msgs {
		if m.Type == msgType {
			n++
		}
	}
	return n
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (n *recordingNotifier) Notify(_ context.Context, ev notifications.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

type fakeUploader struct {
	uploaded []string
	deleted  []string
}

func (u *fakeUploader) Upload(_ context.Context, key, _ string, r io.Reader) (*storage.UploadResult, error) {
	if _, err := io.ReadAll(r); err != nil {
		return nil, err
	}
	u.uploaded = append(u.uploaded, key)
	return &storage.UploadResult{Key: key, Location: u.GetPublicURL(key)}, nil
}

func (u *fakeUploader) Delete(_ context.Context, key string) error {
	u.deleted = append(u.deleted, key)
	return nil
}

func (u *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.example/" + key
}

type env struct {
	auth         AuthService
	tournaments  TournamentService
	scores       ScoreService
	achievements AchievementService
	repos        struct {
		tournaments repositories.TournamentRepository
		stats       repositories.StatsRepository
	}
	hub      *recordingHub
	notifier *recordingNotifier
	uploader *fakeUploader
}

func newEnv(t *testing.T) *env {
	t.Helper()
	conn := dbtest.Open(t)
	logger := logging.Discard()

	userRepo := repositories.NewUserRepository(conn)
	tournamentRepo := repositories.NewTournamentRepository(conn)
	gameRepo := repositories.NewGameRepository(conn)
	scoreRepo := repositories.NewScoreRepository(conn)
	statsRepo := repositories.NewStatsRepository(conn)
	achievementRepo := repositories.NewAchievementRepository(conn)

	e := &env{hub: &recordingHub{}, notifier: &recordingNotifier{}, uploader: &fakeUploader{}}
	e.repos.tournaments = tournamentRepo
	e.repos.stats = statsRepo
	e.auth = NewAuthService(userRepo, "test-secret")
	e.tournaments = NewTournamentService(conn, tournamentRepo, gameRepo, achievementRepo, nil, logger)
	e.achievements = NewAchievementService(tournamentRepo, achievementRepo, e.uploader, 30*time.Second, logger)
	e.scores = NewScoreService(ScoreServiceDeps{
		DB:              conn,
		TournamentRepo:  tournamentRepo,
		GameRepo:        gameRepo,
		ScoreRepo:       scoreRepo,
		StatsRepo:       statsRepo,
		AchievementRepo: achievementRepo,
		Hub:             e.hub,
		Notifier:        e.notifier,
		Limits:          ScoreLimits{Min: 0, Max: 1_000_000},
		Logger:          logger,
	})
	return e
}

func (e *env) principal(t *testing.T, nick string) *Principal {
	t.Helper()
	u, err := e.auth.Register(context.Background(), RegisterInput{
		Email: nick + "@example.com", Nickname: nick, Password: "password123",
	})
	if err != nil {
		t.Fatalf("register %s: %v", nick, err)
	}
	return &Principal{UserID: u.ID, Role: u.Role, Name: u.Nickname}
}

func (e *env) tournament(t *testing.T, owner *Principal, name string, public, seed bool) (*models.Tournament, *models.Game) {
	t.Helper()
	ctx := context.Background()
	tr, err := e.tournaments.Create(ctx, owner, CreateTournamentInput{Name: name, IsPublic: &public, SeedDefaultAchievements: seed})
	if err != nil {
		t.Fatalf("create tournament: %v", err)
	}
	g, err := e.tournaments.AddGame(ctx, owner, tr.ID, CreateGameInput{Name: "Pac-Man"})
	if err != nil {
		t.Fatalf("add game: %v", err)
	}
	return tr, g
}

func (e *env) submit(t *testing.T, p *Principal, g *models.Game, player string, value int64) *SubmitResult {
	t.Helper()
	res, err := e.scores.Submit(context.Background(), p, SubmitScoreInput{
		TournamentID: g.TournamentID, GameID: g.ID, PlayerName: player, Value: scoreValue(value),
	})
	if err != nil {
		t.Fatalf("submit %s=%d: %v", player, value, err)
	}
	return res
}

func scoreValue(v int64) *int64 { return &v }

func codes(list []models.UnlockedAchievement) []string {
	out := make([]string, 0, len(list))
	for _, u := range list {
		out = append(out, u.Code)
	}
	return out
}

func TestSubmitAccumulatesStats(t *testing.T) {
	e := newEnv(t)
	owner := e.principal(t, "owner")
	_, g := e.tournament(t, owner, "Spring Cup", true, false)

	for _, v := range []int64{100, 300, 200} {
		e.submit(t, nil, g, "AAA", v)
	}

	st, err := e.scores.PlayerStats(context.Background(), nil, g.TournamentID, "AAA")
	if err != nil {
		t.Fatalf("PlayerStats: %v", err)
	}
	if st.TotalScores != 3 || st.ScoreSum != 600 || st.BestScore != 300 || st.GamesPlayed != 1 {
		t.Errorf("unexpected stats %+v", st)
	}
	if got := e.hub.count(string(notifications.EventScoreSubmitted)); got != 3 {
		t.Errorf("expected 3 score broadcasts, got %d", got)
	}

	if _, err := e.scores.PlayerStats(context.Background(), nil, g.TournamentID, "ZZZ"); !errors.Is(err, ErrPlayerNotFound) {
		t.Errorf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestSubmitFirstPlaceCounting(t *testing.T) {
	e := newEnv(t)
	owner := e.principal(t, "owner")
	_, g := e.tournament(t, owner, "Spring Cup", true, false)

	a := e.submit(t, nil, g, "A", 100)
	b := e.submit(t, nil, g, "B", 200)
	c := e.submit(t, nil, g, "C", 150)

	if !a.IsTopScore || !b.IsTopScore || c.IsTopScore {
		t.Fatalf("unexpected top flags a=%v b=%v c=%v", a.IsTopScore, b.IsTopScore, c.IsTopScore)
	}
	if c.Rank != 2 {
		t.Errorf("expected C at rank 2, got %d", c.Rank)
	}
	want := map[string]int{"A": 1, "B": 1, "C": 0}
	for name, n := range want {
		st, err := e.scores.PlayerStats(context.Background(), nil, g.TournamentID, name)
		if err != nil {
			t.Fatalf("stats %s: %v", name, err)
		}
		if st.FirstPlaceCount != n {
			t.Errorf("%s: expected first place count %d, got %d", name, n, st.FirstPlaceCount)
		}
	}

	board, err := e.scores.Leaderboard(context.Background(), nil, g.TournamentID, 10, 0)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if len(board) != 3 || board[0].PlayerName != "B" || board[2].PlayerName != "A" {
		t.Errorf("unexpected leaderboard %+v", board)
	}

	best, err := e.scores.GameLeaderboard(context.Background(), nil, g.TournamentID, g.ID, 10)
	if err != nil {
		t.Fatalf("GameLeaderboard: %v", err)
	}
	if len(best) != 3 || best[0].BestScore != 200 || best[1].PlayerName != "C" {
		t.Errorf("unexpected game leaderboard %+v", best)
	}
}

func TestSubmitUnlocksMilestoneOnSecondScore(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.principal(t, "owner")
	tr, g := e.tournament(t, owner, "Spring Cup", true, false)

	for _, in := range []AchievementInput{
		{Code: "first_steps", Name: "First Steps", RuleType: models.RuleFirstScore, Points: 5},
		{Code: "six_hundred", Name: "Six Hundred", RuleType: models.RuleScoreMilestone, Threshold: 600, Points: 20},
	} {
		if _, err := e.achievements.Create(ctx, owner, tr.ID, in); err != nil {
			t.Fatalf("create achievement %s: %v", in.Code, err)
		}
	}

	first := e.submit(t, nil, g, "AAA", 500)
	if got := codes(first.UnlockedAchievements); len(got) != 1 || got[0] != "first_steps" {
		t.Fatalf("first submission unlocked %v", got)
	}
	second := e.submit(t, nil, g, "AAA", 700)
	if got := codes(second.UnlockedAchievements); len(got) != 1 || got[0] != "six_hundred" {
		t.Fatalf("second submission unlocked %v", got)
	}
	third := e.submit(t, nil, g, "AAA", 900)
	if len(third.UnlockedAchievements) != 0 {
		t.Errorf("third submission should unlock nothing, got %v", codes(third.UnlockedAchievements))
	}

	if got := e.hub.count(string(notifications.EventAchievementUnlocked)); got != 2 {
		t.Errorf("expected 2 unlock broadcasts, got %d", got)
	}
	var unlockEvents int
	for _, ev := range e.notifier.events {
		if ev.Type == notifications.EventAchievementUnlocked {
			unlockEvents++
			if ev.Payload.Achievement == nil || ev.Payload.TournamentSlug != "spring-cup" {
				t.Errorf("incomplete unlock payload %+v", ev.Payload)
			}
		}
	}
	if unlockEvents != 2 {
		t.Errorf("expected 2 unlock notifications, got %d", unlockEvents)
	}
}

func TestSubmitSeededPresets(t *testing.T) {
	e := newEnv(t)
	owner := e.principal(t, "owner")
	tr, g := e.tournament(t, owner, "Presets Cup", true, true)

	list, err := e.achievements.List(context.Background(), nil, tr.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 6 {
		t.Fatalf("expected 6 seeded achievements, got %d", len(list))
	}

	res := e.submit(t, nil, g, "AAA", 50)
	got := strings.Join(codes(res.UnlockedAchievements), ",")
	if !strings.Contains(got, "first_steps") || !strings.Contains(got, "top_of_the_board") {
		t.Errorf("expected first score and first place awards, got %s", got)
	}
}

func TestSubmitReplayIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.principal(t, "owner")
	tr, g := e.tournament(t, owner, "Spring Cup", true, true)

	in := SubmitScoreInput{TournamentID: tr.ID, GameID: g.ID, PlayerName: "AAA", Value: scoreValue(400), SubmissionID: uuid.NewString()}
	first, err := e.scores.Submit(ctx, nil, in)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	broadcasts := len(e.hub.msgs)

	again, err := e.scores.Submit(ctx, nil, in)
	if err != nil {
		t.Fatalf("replayed submit: %v", err)
	}
	if !again.Duplicate || again.Score.ID != first.Score.ID {
		t.Errorf("expected the original score back, got %+v", again.Score)
	}
	if len(again.UnlockedAchievements) != 0 {
		t.Errorf("replay must not unlock anything, got %v", codes(again.UnlockedAchievements))
	}
	if again.Stats.TotalScores != 1 {
		t.Errorf("replay changed stats: %+v", again.Stats)
	}
	if len(e.hub.msgs) != broadcasts {
		t.Errorf("replay broadcast %d new messages", len(e.hub.msgs)-broadcasts)
	}

	other, err := e.tournaments.AddGame(ctx, owner, tr.ID, CreateGameInput{Name: "Galaga"})
	if err != nil {
		t.Fatalf("add game: %v", err)
	}
	in.GameID = other.ID
	if _, err := e.scores.Submit(ctx, nil, in); !errors.Is(err, ErrSubmissionConflict) {
		t.Errorf("expected ErrSubmissionConflict, got %v", err)
	}
}

func TestSubmitConcurrentQualifyingScores(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.principal(t, "owner")
	tr, g := e.tournament(t, owner, "Rush Cup", true, false)
	for _, in := range []AchievementInput{
		{Code: "first_steps", Name: "First Steps", RuleType: models.RuleFirstScore},
		{Code: "six_hundred", Name: "Six Hundred", RuleType: models.RuleScoreMilestone, Threshold: 600},
	} {
		if _, err := e.achievements.Create(ctx, owner, tr.ID, in); err != nil {
			t.Fatalf("create achievement %s: %v", in.Code, err)
		}
	}

	const n = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	unlocked := map[string]int{}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.scores.Submit(ctx, nil, SubmitScoreInput{
				TournamentID: tr.ID, GameID: g.ID, PlayerName: "AAA", Value: scoreValue(700),
			})
			if err != nil {
				t.Errorf("submit: %v", err)
				return
			}
			mu.Lock()
			for _, c := range codes(res.UnlockedAchievements) {
				unlocked[c]++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if unlocked["first_steps"] != 1 || unlocked["six_hundred"] != 1 || len(unlocked) != 2 {
		t.Errorf("each achievement must be awarded exactly once, got %v", unlocked)
	}
	st, err := e.scores.PlayerStats(ctx, nil, tr.ID, "AAA")
	if err != nil {
		t.Fatalf("PlayerStats: %v", err)
	}
	if st.TotalScores != n || st.ScoreSum != 700*n || st.GamesPlayed != 1 {
		t.Errorf("unexpected stats after %d concurrent submissions: %+v", n, st)
	}
	list, err := e.achievements.PlayerAchievements(ctx, nil, tr.ID, "AAA")
	if err != nil {
		t.Fatalf("PlayerAchievements: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("expected 2 stored awards, got %d", len(list))
	}
}

func TestSubmitRejections(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.principal(t, "owner")
	stranger := e.principal(t, "stranger")
	pub, g := e.tournament(t, owner, "Public Cup", true, false)
	_, hidden := e.tournament(t, owner, "Private Cup", false, false)

	tests := []struct {
		name string
		p    *Principal
		in   SubmitScoreInput
		want error
	}{
		{"empty name", nil, SubmitScoreInput{TournamentID: pub.ID, GameID: g.ID, PlayerName: "  ", Value: scoreValue(1)}, ErrValidationFailed},
		{"long name", nil, SubmitScoreInput{TournamentID: pub.ID, GameID: g.ID, PlayerName: strings.Repeat("x", 33), Value: scoreValue(1)}, ErrValidationFailed},
		{"bad characters", nil, SubmitScoreInput{TournamentID: pub.ID, GameID: g.ID, PlayerName: "<script>", Value: scoreValue(1)}, ErrValidationFailed},
		{"missing value", nil, SubmitScoreInput{TournamentID: pub.ID, GameID: g.ID, PlayerName: "AAA"}, ErrValidationFailed},
		{"negative", nil, SubmitScoreInput{TournamentID: pub.ID, GameID: g.ID, PlayerName: "AAA", Value: scoreValue(-1)}, ErrValidationFailed},
		{"too high", nil, SubmitScoreInput{TournamentID: pub.ID, GameID: g.ID, PlayerName: "AAA", Value: scoreValue(1_000_001)}, ErrValidationFailed},
		{"bad submission id", nil, SubmitScoreInput{TournamentID: pub.ID, GameID: g.ID, PlayerName: "AAA", Value: scoreValue(1), SubmissionID: "nope"}, ErrValidationFailed},
		{"missing tournament", nil, SubmitScoreInput{TournamentID: 9999, GameID: g.ID, PlayerName: "AAA", Value: scoreValue(1)}, ErrTournamentNotFound},
		{"game of another tournament", nil, SubmitScoreInput{TournamentID: pub.ID, GameID: hidden.ID, PlayerName: "AAA", Value: scoreValue(1)}, ErrGameNotFound},
		{"private as anonymous", nil, SubmitScoreInput{TournamentID: hidden.TournamentID, GameID: hidden.ID, PlayerName: "AAA", Value: scoreValue(1)}, ErrTournamentNotFound},
		{"private as stranger", stranger, SubmitScoreInput{TournamentID: hidden.TournamentID, GameID: hidden.ID, PlayerName: "AAA", Value: scoreValue(1)}, ErrTournamentNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.scores.Submit(ctx, tt.p, tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := e.scores.Submit(ctx, owner, SubmitScoreInput{TournamentID: hidden.TournamentID, GameID: hidden.ID, PlayerName: "Owner", Value: scoreValue(10)}); err != nil {
		t.Errorf("owner should submit to a private tournament: %v", err)
	}
	if len(e.hub.msgs) != 1 {
		t.Errorf("rejected submissions must not broadcast, got %d messages", len(e.hub.msgs))
	}
}

func TestSubmitToLockedTournament(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.principal(t, "owner")
	tr, g := e.tournament(t, owner, "Spring Cup", true, false)

	if _, err := e.tournaments.SetScoresLocked(ctx, owner, tr.ID, true); err != nil {
		t.Fatalf("lock: %v", err)
	}
	_, err := e.scores.Submit(ctx, nil, SubmitScoreInput{TournamentID: tr.ID, GameID: g.ID, PlayerName: "AAA", Value: scoreValue(10)})
	if !errors.Is(err, ErrScoresLocked) {
		t.Fatalf("expected ErrScoresLocked, got %v", err)
	}
	if _, err := e.repos.stats.Get(ctx, nil, tr.ID, "AAA"); !errors.Is(err, repositories.ErrPlayerStatsNotFound) {
		t.Errorf("locked submission left stats behind: %v", err)
	}

	if _, err := e.tournaments.SetScoresLocked(ctx, owner, tr.ID, false); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	e.submit(t, nil, g, "AAA", 10)
}

func TestTournamentSlugSuffix(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.principal(t, "owner")

	var slugs []string
	for i := 0; i < 3; i++ {
		tr, err := e.tournaments.Create(ctx, owner, CreateTournamentInput{Name: "Spring Cup!"})
		if err != nil {
			t.Fatalf("create #%d: %v", i, err)
		}
		slugs = append(slugs, tr.Slug)
	}
	if got := strings.Join(slugs, ","); got != "spring-cup,spring-cup-2,spring-cup-3" {
		t.Errorf("unexpected slugs %s", got)
	}

	if _, err := e.tournaments.GetBySlug(ctx, nil, "SPRING-CUP-2"); err != nil {
		t.Errorf("GetBySlug: %v", err)
	}
	if _, err := e.tournaments.Create(ctx, nil, CreateTournamentInput{Name: "Anon Cup"}); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("expected ErrAuthenticationFailed, got %v", err)
	}
	if _, err := e.tournaments.Create(ctx, owner, CreateTournamentInput{Name: "!!!"}); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("expected ErrValidationFailed for a name without letters, got %v", err)
	}
}

func TestTournamentManagementPermissions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.principal(t, "owner")
	other := e.principal(t, "other")
	admin := &Principal{UserID: other.UserID, Role: models.RoleAdmin, Name: "admin"}
	pub, _ := e.tournament(t, owner, "Public Cup", true, false)
	priv, _ := e.tournament(t, owner, "Private Cup", false, false)

	name := "Renamed Cup"
	if _, err := e.tournaments.Update(ctx, other, pub.ID, UpdateTournamentInput{Name: &name}); !errors.Is(err, ErrForbiddenOperation) {
		t.Errorf("expected forbidden for a stranger, got %v", err)
	}
	if _, err := e.tournaments.Update(ctx, other, priv.ID, UpdateTournamentInput{Name: &name}); !errors.Is(err, ErrTournamentNotFound) {
		t.Errorf("expected not found for a hidden tournament, got %v", err)
	}
	if _, err := e.tournaments.Update(ctx, nil, pub.ID, UpdateTournamentInput{Name: &name}); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("expected authentication failure, got %v", err)
	}
	updated, err := e.tournaments.Update(ctx, admin, priv.ID, UpdateTournamentInput{Name: &name})
	if err != nil || updated.Name != name {
		t.Fatalf("admin update: %v %+v", err, updated)
	}

	list, err := e.tournaments.List(ctx, nil, 10, 0)
	if err != nil || len(list) != 1 {
		t.Errorf("anonymous should list only the public tournament, got %d (%v)", len(list), err)
	}
	list, err = e.tournaments.List(ctx, owner, 10, 0)
	if err != nil || len(list) != 2 {
		t.Errorf("owner should list both tournaments, got %d (%v)", len(list), err)
	}

	if err := e.tournaments.Delete(ctx, other, pub.ID); !errors.Is(err, ErrForbiddenOperation) {
		t.Errorf("expected forbidden delete, got %v", err)
	}
	if err := e.tournaments.Delete(ctx, owner, pub.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := e.tournaments.GetByID(ctx, owner, pub.ID); !errors.Is(err, ErrTournamentNotFound) {
		t.Errorf("expected deleted tournament to be gone, got %v", err)
	}
}

func TestAutoLockExpired(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.principal(t, "owner")
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	ended, err := e.tournaments.Create(ctx, owner, CreateTournamentInput{Name: "Ended Cup", EndsAt: &past})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	running, err := e.tournaments.Create(ctx, owner, CreateTournamentInput{Name: "Running Cup", EndsAt: &future})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	n, err := e.tournaments.AutoLockExpired(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 locked tournament, got %d (%v)", n, err)
	}
	if got, _ := e.tournaments.GetByID(ctx, nil, ended.ID); !got.ScoresLocked {
		t.Error("ended tournament should be locked")
	}
	if got, _ := e.tournaments.GetByID(ctx, nil, running.ID); got.ScoresLocked {
		t.Error("running tournament should stay open")
	}
	if n, _ := e.tournaments.AutoLockExpired(ctx); n != 0 {
		t.Errorf("second pass locked %d tournaments", n)
	}
}

func TestResetThenReaward(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.principal(t, "owner")
	other := e.principal(t, "other")
	tr, g := e.tournament(t, owner, "Spring Cup", true, true)

	first := e.submit(t, nil, g, "AAA", 10)
	if len(first.UnlockedAchievements) == 0 {
		t.Fatal("expected awards on the first score")
	}

	if _, err := e.achievements.ResetPlayer(ctx, other, tr.ID, "AAA"); !errors.Is(err, ErrForbiddenOperation) {
		t.Errorf("expected forbidden reset, got %v", err)
	}
	n, err := e.achievements.ResetPlayer(ctx, owner, tr.ID, "AAA")
	if err != nil || n != int64(len(first.UnlockedAchievements)) {
		t.Fatalf("reset removed %d (%v), want %d", n, err, len(first.UnlockedAchievements))
	}
	if left, _ := e.achievements.PlayerAchievements(ctx, nil, tr.ID, "AAA"); len(left) != 0 {
		t.Errorf("expected no awards after reset, got %d", len(left))
	}

	// first_steps only fires on the very first score, first place can come back.
	again := e.submit(t, nil, g, "AAA", 20)
	if got := codes(again.UnlockedAchievements); len(got) != 1 || got[0] != "top_of_the_board" {
		t.Errorf("expected top_of_the_board to be re-awarded, got %v", got)
	}
}

func TestRecentAchievements(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.principal(t, "owner")
	player := e.principal(t, "player")
	tr, g := e.tournament(t, owner, "Spring Cup", true, true)

	if _, err := e.scores.Submit(ctx, player, SubmitScoreInput{TournamentID: tr.ID, GameID: g.ID, PlayerName: "PLY", Value: scoreValue(20)}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	e.submit(t, nil, g, "BBB", 5)

	all, err := e.achievements.Recent(ctx, nil, RecentQuery{TournamentID: tr.ID})
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(all) < 2 {
		t.Fatalf("expected unlocks for both players, got %d", len(all))
	}

	name := "BBB"
	byName, err := e.achievements.Recent(ctx, nil, RecentQuery{TournamentID: tr.ID, PlayerName: &name})
	if err != nil {
		t.Fatalf("Recent by name: %v", err)
	}
	for _, u := range byName {
		if u.PlayerName != "BBB" {
			t.Errorf("unexpected player %q in filtered list", u.PlayerName)
		}
	}

	uid := player.UserID
	byUser, err := e.achievements.Recent(ctx, nil, RecentQuery{TournamentID: tr.ID, UserID: &uid})
	if err != nil {
		t.Fatalf("Recent by user: %v", err)
	}
	if len(byUser) == 0 || byUser[0].UserID == nil || *byUser[0].UserID != uid {
		t.Errorf("expected awards attributed to user %d, got %+v", uid, byUser)
	}

	if _, err := e.achievements.Recent(ctx, nil, RecentQuery{TournamentID: tr.ID, Window: 48 * time.Hour}); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("expected window validation error, got %v", err)
	}
}

func TestAchievementDefinitions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.principal(t, "owner")
	tr, _ := e.tournament(t, owner, "Spring Cup", true, false)

	a, err := e.achievements.Create(ctx, owner, tr.ID, AchievementInput{Code: "Big_One", Name: "Big One", RuleType: models.RuleScoreMilestone, Threshold: 5000})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Code != "big_one" || !a.IsActive {
		t.Errorf("unexpected definition %+v", a)
	}
	if _, err := e.achievements.Create(ctx, owner, tr.ID, AchievementInput{Code: "big_one", Name: "Dup", RuleType: models.RuleFirstScore}); !errors.Is(err, ErrAchievementCodeConflict) {
		t.Errorf("expected code conflict, got %v", err)
	}
	bad := []AchievementInput{
		{Code: "x", Name: "Short", RuleType: models.RuleFirstScore},
		{Code: "milestone", Name: "No threshold", RuleType: models.RuleScoreMilestone},
		{Code: "weird", Name: "Weird", RuleType: "speedrun"},
	}
	for _, in := range bad {
		if _, err := e.achievements.Create(ctx, owner, tr.ID, in); !errors.Is(err, ErrValidationFailed) {
			t.Errorf("%s: expected validation error, got %v", in.Code, err)
		}
	}

	inactive := false
	updated, err := e.achievements.Update(ctx, owner, tr.ID, a.ID, AchievementInput{Code: "big_one", Name: "Bigger", RuleType: models.RuleScoreMilestone, Threshold: 6000, IsActive: &inactive})
	if err != nil || updated.IsActive || updated.Threshold != 6000 {
		t.Fatalf("update: %v %+v", err, updated)
	}

	icon, err := e.achievements.UploadIcon(ctx, owner, tr.ID, a.ID, "image/png", strings.NewReader("png"))
	if err != nil {
		t.Fatalf("UploadIcon: %v", err)
	}
	if !strings.HasPrefix(icon.Icon, fmt.Sprintf("https://cdn.example/achievements/%d/", tr.ID)) || !strings.HasSuffix(icon.Icon, ".png") {
		t.Errorf("unexpected icon url %q", icon.Icon)
	}
	if _, err := e.achievements.UploadIcon(ctx, owner, tr.ID, a.ID, "text/plain", strings.NewReader("x")); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("expected content type rejection, got %v", err)
	}

	if err := e.achievements.Delete(ctx, owner, tr.ID, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := e.achievements.Delete(ctx, owner, tr.ID, a.ID); !errors.Is(err, ErrAchievementNotFound) {
		t.Errorf("expected not found on second delete, got %v", err)
	}
}

func TestUploadsDisabled(t *testing.T) {
	svc := NewAchievementService(nil, nil, nil, time.Second, logging.Discard())
	_, err := svc.UploadIcon(context.Background(), &Principal{UserID: 1}, 1, 1, "image/png", strings.NewReader(""))
	if !errors.Is(err, ErrUploadsDisabled) {
		t.Fatalf("expected ErrUploadsDisabled, got %v", err)
	}
}

func TestAuthRegisterAndLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u, err := e.auth.Register(ctx, RegisterInput{Email: " Ann@Example.com ", Nickname: "ann", Password: "password123"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Email != "ann@example.com" || u.PasswordHash != "" || u.Role != models.RolePlayer {
		t.Errorf("unexpected user %+v", u)
	}
	if _, err := e.auth.Register(ctx, RegisterInput{Email: "ann@example.com", Nickname: "ann2", Password: "password123"}); !errors.Is(err, ErrUserEmailConflict) {
		t.Errorf("expected email conflict, got %v", err)
	}
	if _, err := e.auth.Register(ctx, RegisterInput{Email: "bob@example.com", Nickname: "ann", Password: "password123"}); !errors.Is(err, ErrUserNicknameConflict) {
		t.Errorf("expected nickname conflict, got %v", err)
	}
	if _, err := e.auth.Register(ctx, RegisterInput{Email: "bob@example.com", Nickname: "bob", Password: "short"}); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("expected short password rejection, got %v", err)
	}

	_, token, err := e.auth.Login(ctx, LoginInput{Email: "ANN@example.com", Password: "password123"})
	if err != nil || token == "" {
		t.Fatalf("login: %v", err)
	}
	if _, _, err := e.auth.Login(ctx, LoginInput{Email: "ann@example.com", Password: "wrong-password"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected invalid credentials, got %v", err)
	}
	if _, _, err := e.auth.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "password123"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected invalid credentials for unknown email, got %v", err)
	}
}
