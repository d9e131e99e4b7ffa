package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/abhisek/smartrepeat/internal/words"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// steppingClock advances one second per call so updated_at ordering is
// deterministic.
func steppingClock(s *Store) {
	t := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestAutoMigrationCreatesTables(t *testing.T) {
	s := openTestStore(t)
	for _, table := range []string{tableWords, tableProfiles, tableCompletions, tableGenEvents} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.VocabRepo().UpsertWord(ctx, "alice", "apple", "manzana"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	ws, err := s.VocabRepo().ListWords(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ws) != 1 || ws[0].Word != "apple" {
		t.Fatalf("words after reopen = %+v", ws)
	}
}

func TestSequenceCounter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var seqs []int64
	for i := 0; i < 5; i++ {
		seq, err := s.seq.Next(ctx)
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		seqs = append(seqs, seq)
	}

	for i, seq := range seqs {
		if want := int64(i + 1); seq != want {
			t.Errorf("seq[%d] = %d, want %d", i, seq, want)
		}
	}
}

func TestVocabUpsertAndList(t *testing.T) {
	s := openTestStore(t)
	steppingClock(s)
	repo := s.VocabRepo()
	ctx := context.Background()

	for _, w := range [][2]string{{"apple", "manzana"}, {"pear", "pera"}, {"Apple ", "manzana roja"}} {
		if err := repo.UpsertWord(ctx, "alice", w[0], w[1]); err != nil {
			t.Fatalf("upsert %q: %v", w[0], err)
		}
	}
	if err := repo.UpsertWord(ctx, "bob", "apple", "pomme"); err != nil {
		t.Fatalf("upsert bob: %v", err)
	}

	ws, err := repo.ListWords(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ws) != 2 {
		t.Fatalf("len = %d, want 2 (%+v)", len(ws), ws)
	}
	if ws[0].Word != "Apple" || ws[0].Translation != "manzana roja" {
		t.Errorf("upsert did not replace: %+v", ws[0])
	}
	if ws[0].Profile != "alice" || ws[0].CorrectCount != 0 {
		t.Errorf("unexpected row: %+v", ws[0])
	}
	if !ws[0].UpdatedAt.After(ws[0].CreatedAt) {
		t.Errorf("updated_at %v should be after created_at %v", ws[0].UpdatedAt, ws[0].CreatedAt)
	}

	if err := repo.UpsertWord(ctx, "alice", "  ", "x"); err == nil {
		t.Error("blank word should be rejected")
	}
}

func TestVocabIncrementCorrect(t *testing.T) {
	s := openTestStore(t)
	repo := s.VocabRepo()
	ctx := context.Background()

	if err := repo.UpsertWord(ctx, "alice", "apple", "manzana"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	w := words.Word{Profile: "alice", Word: "APPLE"}
	for i := 0; i < 3; i++ {
		if err := repo.IncrementCorrect(ctx, w); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	ws, _ := repo.ListWords(ctx, "alice")
	if ws[0].CorrectCount != 3 {
		t.Errorf("correct_count = %d, want 3", ws[0].CorrectCount)
	}

	err := repo.IncrementCorrect(ctx, words.Word{Profile: "alice", Word: "kiwi"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("increment missing word: got %v, want ErrNotFound", err)
	}
}

func TestVocabDelete(t *testing.T) {
	s := openTestStore(t)
	repo := s.VocabRepo()
	ctx := context.Background()

	repo.UpsertWord(ctx, "alice", "apple", "manzana")
	if err := repo.DeleteWord(ctx, "alice", "Apple"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteWord(ctx, "alice", "apple"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: got %v, want ErrNotFound", err)
	}
}

func TestLatestProfilePicksMostRecentlyUpdated(t *testing.T) {
	s := openTestStore(t)
	steppingClock(s)
	repo := s.ProfileRepo()
	ctx := context.Background()

	p, err := repo.LatestProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("latest (empty): %v", err)
	}
	if p != nil {
		t.Fatal("expected nil profile when none exist")
	}

	if _, err := repo.EnsureProfile(ctx, "u1", "work"); err != nil {
		t.Fatalf("ensure work: %v", err)
	}
	if _, err := repo.EnsureProfile(ctx, "u1", "home"); err != nil {
		t.Fatalf("ensure home: %v", err)
	}
	if _, err := repo.EnsureProfile(ctx, "u2", "other"); err != nil {
		t.Fatalf("ensure other: %v", err)
	}

	p, err = repo.LatestProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if p.Name != "home" {
		t.Errorf("latest = %q, want home", p.Name)
	}

	// Recording a stage on the older profile makes it the latest.
	if err := repo.SaveStage(ctx, "u1", "work", "text_drill"); err != nil {
		t.Fatalf("save stage: %v", err)
	}
	p, _ = repo.LatestProfile(ctx, "u1")
	if p.Name != "work" || p.InProgressStage != "text_drill" {
		t.Errorf("latest = %+v, want work at text_drill", p)
	}

	all, err := repo.ListProfiles(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].Name != "work" {
		t.Errorf("list = %+v", all)
	}
}

func TestEnsureProfileDefaults(t *testing.T) {
	s := openTestStore(t)
	p, err := s.ProfileRepo().EnsureProfile(context.Background(), "u1", "main")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if p.Level != 1 || p.XP != 0 || p.Streak != 0 || p.InProgressStage != "" {
		t.Errorf("unexpected defaults: %+v", p)
	}
}

func TestRecordCompletionUpdatesStreak(t *testing.T) {
	s := openTestStore(t)
	steppingClock(s)
	ctx := context.Background()
	profiles := s.ProfileRepo()
	ledger := s.CompletionRepo()

	if err := profiles.SaveStage(ctx, "u1", "main", "vocab_consolidation"); err != nil {
		t.Fatalf("save stage: %v", err)
	}

	steps := []struct {
		date       string
		wantStreak int
		wantXP     int
	}{
		{"2026-03-01", 1, 50},
		{"2026-03-01", 1, 100},
		{"2026-03-02", 2, 150},
		{"2026-03-03", 3, 200},
		{"2026-03-06", 1, 250},
	}
	for _, st := range steps {
		if err := ledger.RecordCompletion(ctx, "u1", st.date); err != nil {
			t.Fatalf("record %s: %v", st.date, err)
		}
		p, err := profiles.LatestProfile(ctx, "u1")
		if err != nil {
			t.Fatalf("latest: %v", err)
		}
		if p.Streak != st.wantStreak || p.XP != st.wantXP {
			t.Errorf("%s: streak=%d xp=%d, want %d/%d", st.date, p.Streak, p.XP, st.wantStreak, st.wantXP)
		}
		if p.InProgressStage != "" {
			t.Errorf("%s: in_progress_stage = %q, want cleared", st.date, p.InProgressStage)
		}
		if p.LastSmartRepeatDate != st.date {
			t.Errorf("last date = %q, want %q", p.LastSmartRepeatDate, st.date)
		}
	}

	p, _ := profiles.LatestProfile(ctx, "u1")
	if p.LongestStreak != 3 {
		t.Errorf("longest streak = %d, want 3", p.LongestStreak)
	}
	if p.Level != 3 {
		t.Errorf("level = %d, want 3", p.Level)
	}

	cs, err := ledger.ListCompletions(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("list completions: %v", err)
	}
	if len(cs) != len(steps) {
		t.Fatalf("completions = %d, want %d", len(cs), len(steps))
	}
	if cs[0].DateLocal != "2026-03-06" || cs[0].Profile != "main" {
		t.Errorf("newest completion = %+v", cs[0])
	}
	for i := 1; i < len(cs); i++ {
		if cs[i].Sequence >= cs[i-1].Sequence {
			t.Errorf("completions not newest first: %d then %d", cs[i-1].Sequence, cs[i].Sequence)
		}
	}
}

func TestRecordCompletionWithoutProfile(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.CompletionRepo().RecordCompletion(ctx, "ghost", "2026-03-01"); err != nil {
		t.Fatalf("record: %v", err)
	}
	p, err := s.ProfileRepo().LatestProfile(ctx, "ghost")
	if err != nil || p == nil {
		t.Fatalf("latest = %v, %v", p, err)
	}
	if p.Name != "ghost" || p.Streak != 1 {
		t.Errorf("created profile = %+v", p)
	}

	if err := s.CompletionRepo().RecordCompletion(ctx, "ghost", "yesterday"); err == nil {
		t.Error("bad date should be rejected")
	}
}

func TestNextStreak(t *testing.T) {
	tests := []struct {
		last   string
		streak int
		today  string
		want   int
	}{
		{"", 0, "2026-01-10", 1},
		{"2026-01-10", 4, "2026-01-10", 4},
		{"2026-01-09", 4, "2026-01-10", 5},
		{"2026-01-08", 4, "2026-01-10", 1},
		{"2026-12-31", 2, "2027-01-01", 3},
		{"2026-01-11", 4, "2026-01-10", 4},
		{"garbage", 4, "2026-01-10", 1},
	}
	for _, tt := range tests {
		if got := NextStreak(tt.last, tt.streak, tt.today); got != tt.want {
			t.Errorf("NextStreak(%q, %d, %q) = %d, want %d", tt.last, tt.streak, tt.today, got, tt.want)
		}
	}
}

func TestGenerationEvents(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	events := []GenerationEventData{
		{Provider: "mock", Model: "m1", Purpose: "text-drill", InputTokens: 100, OutputTokens: 40, LatencyMs: 200, Success: true, RequestBody: "[user]\nwrite", ResponseBody: "{}"},
		{Provider: "mock", Model: "m1", Purpose: "writing-analysis", InputTokens: 50, OutputTokens: 10, LatencyMs: 100, Success: true},
		{Provider: "mock", Model: "m2", Purpose: "text-drill", InputTokens: 10, OutputTokens: 0, LatencyMs: 400, Success: false, ErrorMessage: "timeout"},
	}
	for _, e := range events {
		if err := repo.AppendGenerationEvent(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	all, err := repo.QueryGenerationEvents(ctx, QueryOpts{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].ErrorMessage != "timeout" || all[0].Success {
		t.Errorf("newest event = %+v", all[0])
	}

	drills, _ := repo.QueryGenerationEvents(ctx, QueryOpts{Purpose: "text-drill", Limit: 1})
	if len(drills) != 1 || drills[0].Model != "m2" {
		t.Errorf("filtered = %+v", drills)
	}

	got, err := repo.GetGenerationEvent(ctx, all[2].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RequestBody != "[user]\nwrite" || got.ResponseBody != "{}" {
		t.Errorf("bodies not stored: %+v", got)
	}
	if missing, err := repo.GetGenerationEvent(ctx, 999); err != nil || missing != nil {
		t.Errorf("missing event = %v, %v", missing, err)
	}

	byPurpose, err := repo.UsageByPurpose(ctx)
	if err != nil {
		t.Fatalf("usage by purpose: %v", err)
	}
	if len(byPurpose) != 2 || byPurpose[0].Purpose != "text-drill" {
		t.Fatalf("usage by purpose = %+v", byPurpose)
	}
	if u := byPurpose[0]; u.Calls != 2 || u.InputTokens != 110 || u.AvgLatencyMs != 300 {
		t.Errorf("text-drill usage = %+v", u)
	}

	byModel, err := repo.UsageByModel(ctx)
	if err != nil {
		t.Fatalf("usage by model: %v", err)
	}
	if len(byModel) != 2 || byModel[0].Model != "m1" || byModel[0].OutputTokens != 50 {
		t.Errorf("usage by model = %+v", byModel)
	}
}

func TestQueryGenerationEventsByOutcome(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	// One old failure behind several newer successes.
	outcomes := []bool{false, true, true, true}
	for i, ok := range outcomes {
		e := GenerationEventData{Provider: "mock", Model: "m1", Purpose: "text-drill", Success: ok}
		if !ok {
			e.ErrorMessage = fmt.Sprintf("failure %d", i)
		}
		if err := repo.AppendGenerationEvent(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	failed := false
	got, err := repo.QueryGenerationEvents(ctx, QueryOpts{Success: &failed, Limit: 2})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].Success || got[0].ErrorMessage != "failure 0" {
		t.Errorf("failed events = %+v", got)
	}

	succeeded := true
	got, err = repo.QueryGenerationEvents(ctx, QueryOpts{Success: &succeeded, Limit: 2})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 || !got[0].Success || !got[1].Success {
		t.Errorf("successful events = %+v", got)
	}
}
