package memory

import (
	"context"
	"sort"
	"sync"

	"skillzone-service/internal/app"
	"skillzone-service/internal/domain"
)

type pairKey struct {
	userID string
	itemID string
}

type achievementKey struct {
	userID string
	quizID string
	kind   domain.AchievementType
}

type unlockKey struct {
	userID   string
	kind     domain.TargetKind
	targetID string
}

type attemptRecord struct {
	attempt domain.QuizAttempt
	seq     int64
}

// Store is an in-memory implementation of app.Store. Transactions run one at
// a time under a single mutex and undo their writes when fn fails.
type Store struct {
	mu           sync.Mutex
	seq          int64
	accounts     map[string]int
	attempts     map[string]*attemptRecord
	open         map[pairKey]string
	progress     map[pairKey]domain.QuizProgress
	achievements map[achievementKey]domain.QuizAchievement
	unlocks      map[unlockKey]domain.Unlock
	completions  map[pairKey]domain.LessonCompletion
}

func NewStore() *Store {
	return &Store{
		accounts:     make(map[string]int),
		attempts:     make(map[string]*attemptRecord),
		open:         make(map[pairKey]string),
		progress:     make(map[pairKey]domain.QuizProgress),
		achievements: make(map[achievementKey]domain.QuizAchievement),
		unlocks:      make(map[unlockKey]domain.Unlock),
		completions:  make(map[pairKey]domain.LessonCompletion),
	}
}

// WithinTx implements app.Store. lockKey is redundant here: every
// transaction already holds the store mutex.
func (s *Store) WithinTx(ctx context.Context, _ string, fn func(ctx context.Context, tx app.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &storeTx{s: s}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// ReadSnapshot implements app.Store.
func (s *Store) ReadSnapshot(ctx context.Context, fn func(ctx context.Context, r app.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, &storeTx{s: s})
}

// storeTx is only used while the owning Store's mutex is held.
type storeTx struct {
	s    *Store
	undo []func()
}

func (t *storeTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *storeTx) Balance(_ context.Context, userID string) (int, bool, error) {
	balance, ok := t.s.accounts[userID]
	return balance, ok, nil
}

func (t *storeTx) OpenAttempt(_ context.Context, userID, quizID string) (domain.QuizAttempt, bool, error) {
	id, ok := t.s.open[pairKey{userID, quizID}]
	if !ok {
		return domain.QuizAttempt{}, false, nil
	}
	return t.s.attempts[id].attempt, true, nil
}

func (t *storeTx) OpenAttempts(_ context.Context) ([]domain.QuizAttempt, error) {
	out := make([]domain.QuizAttempt, 0, len(t.s.open))
	for _, id := range t.s.open {
		out = append(out, t.s.attempts[id].attempt)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

func (t *storeTx) CountAttempts(_ context.Context, userID, quizID string) (int, error) {
	n := 0
	for _, rec := range t.s.attempts {
		a := rec.attempt
		if a.UserID == userID && a.QuizID == quizID {
			n++
		}
	}
	return n, nil
}

func (t *storeTx) ClosedAttempts(_ context.Context, quizID, userID string, limit int) ([]domain.QuizAttempt, error) {
	recs := make([]*attemptRecord, 0)
	for _, rec := range t.s.attempts {
		a := rec.attempt
		if a.QuizID != quizID || a.Open() || (userID != "" && a.UserID != userID) {
			continue
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		ci, cj := *recs[i].attempt.CompletedAt, *recs[j].attempt.CompletedAt
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return recs[i].seq > recs[j].seq
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	out := make([]domain.QuizAttempt, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.attempt)
	}
	return out, nil
}

func (t *storeTx) Progress(_ context.Context, userID, quizID string) (domain.QuizProgress, bool, error) {
	p, ok := t.s.progress[pairKey{userID, quizID}]
	return p, ok, nil
}

func (t *storeTx) Achievements(_ context.Context, userID, quizID string) ([]domain.QuizAchievement, error) {
	out := make([]domain.QuizAchievement, 0)
	for k, a := range t.s.achievements {
		if k.userID == userID && k.quizID == quizID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EarnedAt.Before(out[j].EarnedAt) })
	return out, nil
}

func (t *storeTx) HasUnlock(_ context.Context, userID string, kind domain.TargetKind, targetID string) (bool, error) {
	_, ok := t.s.unlocks[unlockKey{userID, kind, targetID}]
	return ok, nil
}

func (t *storeTx) Completions(_ context.Context, userID string) ([]domain.LessonCompletion, error) {
	out := make([]domain.LessonCompletion, 0)
	for k, c := range t.s.completions {
		if k.userID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CompletedAt.Equal(out[j].CompletedAt) {
			return out[i].CompletedAt.Before(out[j].CompletedAt)
		}
		return out[i].LessonID < out[j].LessonID
	})
	return out, nil
}

func (t *storeTx) EnsureAccount(_ context.Context, userID string) error {
	if _, ok := t.s.accounts[userID]; ok {
		return nil
	}
	t.s.accounts[userID] = 0
	t.undo = append(t.undo, func() { delete(t.s.accounts, userID) })
	return nil
}

func (t *storeTx) AddPoints(_ context.Context, userID string, delta int) (int, error) {
	prev, ok := t.s.accounts[userID]
	if !ok {
		if delta < 0 {
			return 0, domain.ErrInsufficientFunds
		}
		t.undo = append(t.undo, func() { delete(t.s.accounts, userID) })
	} else {
		t.undo = append(t.undo, func() { t.s.accounts[userID] = prev })
	}
	next := prev + delta
	if next < 0 {
		return prev, domain.ErrInsufficientFunds
	}
	t.s.accounts[userID] = next
	return next, nil
}

func (t *storeTx) InsertAttempt(_ context.Context, attempt domain.QuizAttempt) error {
	key := pairKey{attempt.UserID, attempt.QuizID}
	if attempt.Open() {
		if _, busy := t.s.open[key]; busy {
			return domain.ErrAttemptInProgress
		}
		t.s.open[key] = attempt.ID
	}
	t.s.seq++
	t.s.attempts[attempt.ID] = &attemptRecord{attempt: attempt, seq: t.s.seq}
	t.undo = append(t.undo, func() {
		delete(t.s.attempts, attempt.ID)
		if t.s.open[key] == attempt.ID {
			delete(t.s.open, key)
		}
	})
	return nil
}

func (t *storeTx) CloseAttempt(_ context.Context, attempt domain.QuizAttempt) error {
	rec, ok := t.s.attempts[attempt.ID]
	if !ok || !rec.attempt.Open() {
		return domain.ErrNoOpenAttempt
	}
	prev := *rec
	key := pairKey{attempt.UserID, attempt.QuizID}

	t.s.seq++
	rec.attempt = attempt
	rec.seq = t.s.seq
	delete(t.s.open, key)
	t.undo = append(t.undo, func() {
		*rec = prev
		t.s.open[key] = attempt.ID
	})
	return nil
}

func (t *storeTx) SaveProgress(_ context.Context, progress domain.QuizProgress) error {
	key := pairKey{progress.UserID, progress.QuizID}
	prev, existed := t.s.progress[key]
	t.s.progress[key] = progress
	t.undo = append(t.undo, func() {
		if existed {
			t.s.progress[key] = prev
		} else {
			delete(t.s.progress, key)
		}
	})
	return nil
}

func (t *storeTx) InsertAchievement(_ context.Context, achievement domain.QuizAchievement) (bool, error) {
	key := achievementKey{achievement.UserID, achievement.QuizID, achievement.Type}
	if _, ok := t.s.achievements[key]; ok {
		return false, nil
	}
	t.s.achievements[key] = achievement
	t.undo = append(t.undo, func() { delete(t.s.achievements, key) })
	return true, nil
}

func (t *storeTx) InsertUnlock(_ context.Context, unlock domain.Unlock) (bool, error) {
	key := unlockKey{unlock.UserID, unlock.Kind, unlock.TargetID}
	if _, ok := t.s.unlocks[key]; ok {
		return false, nil
	}
	t.s.unlocks[key] = unlock
	t.undo = append(t.undo, func() { delete(t.s.unlocks, key) })
	return true, nil
}

func (t *storeTx) InsertCompletion(_ context.Context, completion domain.LessonCompletion) (bool, error) {
	key := pairKey{completion.UserID, completion.LessonID}
	if _, ok := t.s.completions[key]; ok {
		return false, nil
	}
	t.s.completions[key] = completion
	t.undo = append(t.undo, func() { delete(t.s.completions, key) })
	return true, nil
}
