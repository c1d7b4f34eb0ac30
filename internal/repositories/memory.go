package repositories

import (
	"context"
	"maps"
	"sort"
	"sync"

	"hospitalrecords/internal/models"
)

// MemoryStore keeps everything in process memory. Transactions are serialized
// by a single mutex; a transaction whose body returns an error or panics is
// rolled back to the state it started from. Values are copied on the way in
// and out so callers never share records.
type MemoryStore struct {
	txMu sync.Mutex

	mu       sync.Mutex
	accounts map[int64]models.Account
	codes    map[int64]models.OneTimeCode
	sessions map[int64]models.Session
	nextID   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: map[int64]models.Account{},
		codes:    map[int64]models.OneTimeCode{},
		sessions: map[int64]models.Session{},
	}
}

func (s *MemoryStore) Accounts() AccountRepository { return memAccounts{s} }
func (s *MemoryStore) Codes() OneTimeCodeRepository { return memCodes{s} }
func (s *MemoryStore) Sessions() SessionRepository { return memSessions{s} }

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) (err error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		}
		if err != nil {
			s.restore(snap)
		}
	}()
	return fn(ctx, memTx{s})
}

type memSnapshot struct {
	accounts map[int64]models.Account
	codes    map[int64]models.OneTimeCode
	sessions map[int64]models.Session
	nextID   int64
}

func (s *MemoryStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memSnapshot{
		accounts: maps.Clone(s.accounts),
		codes:    maps.Clone(s.codes),
		sessions: maps.Clone(s.sessions),
		nextID:   s.nextID,
	}
}

func (s *MemoryStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = snap.accounts
	s.codes = snap.codes
	s.sessions = snap.sessions
	s.nextID = snap.nextID
}

func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

// memTx is the Store handed to transaction bodies; nested WithinTx calls run
// inline instead of re-taking the lock.
type memTx struct{ s *MemoryStore }

func (t memTx) Accounts() AccountRepository { return memAccounts{t.s} }
func (t memTx) Codes() OneTimeCodeRepository { return memCodes{t.s} }
func (t memTx) Sessions() SessionRepository { return memSessions{t.s} }

func (t memTx) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return fn(ctx, t)
}

type memAccounts struct{ s *MemoryStore }

func (r memAccounts) FindByUsername(_ context.Context, username string) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if a.Username == username {
			return &a, nil
		}
	}
	return nil, nil
}

func (r memAccounts) FindByID(_ context.Context, id int64) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r memAccounts) Save(_ context.Context, account *models.Account) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	saved := *account
	if saved.ID == 0 {
		for _, a := range r.s.accounts {
			if a.Username == saved.Username {
				return nil, ErrUsernameTaken
			}
		}
		saved.ID = r.s.id()
	}
	r.s.accounts[saved.ID] = saved
	return &saved, nil
}

type memCodes struct{ s *MemoryStore }

func (r memCodes) InvalidateOutstanding(_ context.Context, accountID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, c := range r.s.codes {
		if c.AccountID == accountID && !c.Used {
			c.Used = true
			r.s.codes[id] = c
			n++
		}
	}
	return n, nil
}

func (r memCodes) Save(_ context.Context, code *models.OneTimeCode) (*models.OneTimeCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	saved := *code
	if saved.ID == 0 {
		saved.ID = r.s.id()
	}
	r.s.codes[saved.ID] = saved
	return &saved, nil
}

func (r memCodes) FindNewestValid(_ context.Context, accountID int64) (*models.OneTimeCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var newest *models.OneTimeCode
	for _, c := range r.s.codes {
		if c.AccountID != accountID || c.Used {
			continue
		}
		if newest == nil || c.CreatedAt.After(newest.CreatedAt) ||
			(c.CreatedAt.Equal(newest.CreatedAt) && c.ID > newest.ID) {
			cp := c
			newest = &cp
		}
	}
	return newest, nil
}

type memSessions struct{ s *MemoryStore }

func (r memSessions) Save(_ context.Context, session *models.Session) (*models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	saved := *session
	if saved.ID == 0 {
		saved.ID = r.s.id()
	}
	r.s.sessions[saved.ID] = saved
	return &saved, nil
}

func (r memSessions) FindActiveByToken(_ context.Context, token string) (*models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sess := range r.s.sessions {
		if sess.Token == token && sess.Active {
			return &sess, nil
		}
	}
	return nil, nil
}

func (r memSessions) ListByAccount(_ context.Context, accountID int64, limit int) ([]*models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Session
	for _, sess := range r.s.sessions {
		if sess.AccountID == accountID {
			cp := sess
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
