package session

import (
	"context"
	"sync"

	"bootcamp/internal/domain"
)

type handlerEntry struct {
	id int
	fn AuthStateHandler
}

type fakeProvider struct {
	mu       sync.Mutex
	session  *domain.AuthSession
	handlers []handlerEntry
	nextID   int

	getErr     error
	signInErr  error
	signOutErr error
	getCalls   int
	lastMeta   domain.SignUpMetadata
	onSignIn   func()
}

func newFakeProvider(s *domain.AuthSession) *fakeProvider {
	return &fakeProvider{session: s}
}

func sessionFor(id string) *domain.AuthSession {
	return &domain.AuthSession{
		AccessToken: "tok-" + id,
		User:        domain.Identity{ID: id, Email: id + "@example.com"},
	}
}

func (f *fakeProvider) GetSession(context.Context) (*domain.AuthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.session, nil
}

func (f *fakeProvider) SignIn(_ context.Context, email, _ string) (*domain.AuthSession, error) {
	if f.onSignIn != nil {
		f.onSignIn()
	}
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	s := sessionFor(email)
	f.mu.Lock()
	f.session = s
	f.mu.Unlock()
	f.emit(domain.EventSignedIn, s)
	return s, nil
}

func (f *fakeProvider) SignUp(_ context.Context, email, _ string, meta domain.SignUpMetadata) (*domain.AuthSession, error) {
	f.mu.Lock()
	f.lastMeta = meta
	f.mu.Unlock()
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	s := sessionFor(email)
	f.emit(domain.EventSignedIn, s)
	return s, nil
}

func (f *fakeProvider) SignOut(context.Context) error {
	if f.signOutErr != nil {
		return f.signOutErr
	}
	f.mu.Lock()
	f.session = nil
	f.mu.Unlock()
	f.emit(domain.EventSignedOut, nil)
	return nil
}

func (f *fakeProvider) OnAuthStateChange(h AuthStateHandler) func() {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.handlers = append(f.handlers, handlerEntry{id: id, fn: h})
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, e := range f.handlers {
			if e.id == id {
				f.handlers = append(f.handlers[:i], f.handlers[i+1:]...)
				return
			}
		}
	}
}

func (f *fakeProvider) emit(event domain.AuthEvent, s *domain.AuthSession) {
	f.mu.Lock()
	hs := make([]handlerEntry, len(f.handlers))
	copy(hs, f.handlers)
	f.mu.Unlock()
	for _, h := range hs {
		h.fn(event, s)
	}
}

func (f *fakeProvider) handlerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

type fakeStore struct {
	mu       sync.Mutex
	profiles map[string]*domain.Profile
	perms    map[string]domain.PermissionSet
	err      error

	// gates block the profile lookup for an identity until closed.
	gates   map[string]chan struct{}
	started chan string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles: map[string]*domain.Profile{},
		perms:    map[string]domain.PermissionSet{},
		gates:    map[string]chan struct{}{},
		started:  make(chan string, 8),
	}
}

func (f *fakeStore) add(id, role string, perms ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[id] = &domain.Profile{AuthUserID: id, Name: "user " + id, Email: id + "@example.com", Role: role}
	f.perms[id] = domain.NewPermissionSet(perms...)
}

func (f *fakeStore) gate(id string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[id] = ch
	return ch
}

func (f *fakeStore) GetUserProfile(_ context.Context, id string) (*domain.Profile, error) {
	f.mu.Lock()
	gate := f.gates[id]
	f.mu.Unlock()
	if gate != nil {
		f.started <- id
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) GetUserPermissions(_ context.Context, id string) (domain.PermissionSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.perms[id]
	if !ok {
		return nil, nil
	}
	return p.Clone(), nil
}
