// Package session holds the client-side authentication state: who the
// current user is and what they may do. One Context is built at the
// application root and shared by reference with everything that needs it.
package session

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bootcamp/internal/domain"
)

const lookupTimeout = 10 * time.Second

type subscriber struct {
	id int
	fn func(Snapshot)
}

// Context is the single source of truth for the current session.
//
// Identity is written only by provider notifications and Init; SignIn,
// SignUp and SignOut toggle Loading and return the provider's error, and
// the resulting identity change arrives through the notification stream.
// Reads are lock-free snapshot loads; writes are serialized.
type Context struct {
	provider IdentityProvider
	profiles ProfileStore
	logger   *zap.Logger

	state atomic.Pointer[Snapshot]

	mu          sync.Mutex
	subscribers []subscriber
	nextSubID   int
	unsubscribe func()
	closed      bool

	// events orders notification handling in delivery order.
	events   sync.Mutex
	initOnce sync.Once
}

// New returns a Context in the initializing state. Call Init once before
// use and Close on shutdown.
func New(provider IdentityProvider, profiles ProfileStore, logger *zap.Logger) *Context {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Context{
		provider: provider,
		profiles: profiles,
		logger:   logger.Named("session"),
	}
	c.state.Store(&Snapshot{Loading: true, Permissions: domain.PermissionSet{}})
	return c
}

// Snapshot returns the current session state.
func (c *Context) Snapshot() Snapshot {
	return c.state.Load().clone()
}

// HasPermission reports whether the current user holds name.
func (c *Context) HasPermission(name string) bool {
	return c.state.Load().HasPermission(name)
}

// IsAdmin reports whether the current user is an administrator.
func (c *Context) IsAdmin() bool {
	return c.state.Load().IsAdmin()
}

// Gate evaluates g against the current state.
func (c *Context) Gate(g Guard) View {
	return g.Decide(c.Snapshot())
}

// Init subscribes to provider notifications and restores any persisted
// session. A failed restore leaves the context anonymous. Only the first
// call has any effect.
func (c *Context) Init(ctx context.Context) {
	c.initOnce.Do(func() { c.init(ctx) })
}

func (c *Context) init(ctx context.Context) {
	unsub := c.provider.OnAuthStateChange(c.handleAuthEvent)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		unsub()
		return
	}
	c.unsubscribe = unsub
	c.mu.Unlock()

	c.events.Lock()
	defer c.events.Unlock()

	s, err := c.provider.GetSession(ctx)
	if err != nil {
		c.logger.Warn("restore session failed", zap.Error(err))
		s = nil
	}
	c.setIdentity(identityOf(s))
	if s != nil {
		c.RefreshProfile(ctx)
	}
	c.settle()
}

func (c *Context) handleAuthEvent(event domain.AuthEvent, s *domain.AuthSession) {
	c.events.Lock()
	defer c.events.Unlock()

	if c.isClosed() {
		return
	}
	c.logger.Debug("auth state changed", zap.String("event", string(event)))

	identity := identityOf(s)
	c.setIdentity(identity)
	if identity != nil {
		ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
		c.RefreshProfile(ctx)
		cancel()
	}
	c.settle()
}

// SignIn asks the provider to sign in. It does not wait for the profile:
// the identity change arrives asynchronously through the provider's
// notifications. The provider's error is returned unchanged.
// Overlapping SignIn and SignUp calls share one Loading flag: the first to
// return clears it while the others are still in flight.
func (c *Context) SignIn(ctx context.Context, email, password string) error {
	c.setLoading(true)
	defer c.setLoading(false)

	_, err := c.provider.SignIn(ctx, email, password)
	return err
}

// SignUpOptions are the optional profile fields sent with a sign-up.
type SignUpOptions struct {
	Name  *string
	Phone *string
}

// SignUp registers a new account. Like SignIn it only forwards the
// provider's error, and it shares SignIn's Loading flag.
func (c *Context) SignUp(ctx context.Context, email, password string, opts SignUpOptions) error {
	c.setLoading(true)
	defer c.setLoading(false)

	_, err := c.provider.SignUp(ctx, email, password, domain.SignUpMetadata{Name: opts.Name, Phone: opts.Phone})
	return err
}

// SignOut ends the session. The state is cleared when the provider's
// sign-out notification arrives.
func (c *Context) SignOut(ctx context.Context) error {
	c.setLoading(true)
	defer c.setLoading(false)

	return c.provider.SignOut(ctx)
}

// RefreshProfile reloads the profile and permissions of the current
// identity. Results that come back empty leave the previous values in
// place, failures are logged, and results for an identity that is no
// longer current are discarded.
func (c *Context) RefreshProfile(ctx context.Context) {
	identity := c.state.Load().Identity
	if identity == nil {
		return
	}
	id := identity.ID

	var (
		profile *domain.Profile
		perms   domain.PermissionSet
	)
	var g errgroup.Group
	g.Go(func() error {
		p, err := c.profiles.GetUserProfile(ctx, id)
		if err != nil {
			return fmt.Errorf("get profile: %w", err)
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		p, err := c.profiles.GetUserPermissions(ctx, id)
		if err != nil {
			return fmt.Errorf("get permissions: %w", err)
		}
		perms = p
		return nil
	})
	if err := g.Wait(); err != nil {
		c.logger.Warn("refresh profile failed", zap.String("identity", id), zap.Error(err))
	}

	c.update(func(s *Snapshot) bool {
		if s.Identity == nil || s.Identity.ID != id {
			return false
		}
		changed := false
		if profile != nil {
			s.Profile = profile
			changed = true
		}
		if perms != nil {
			s.Permissions = perms.Clone()
			changed = true
		}
		return changed
	})
}

// Subscribe registers fn to receive the current snapshot after every state
// change. Subscribers run synchronously, in registration order, on the
// goroutine that made the change; they must not call SignIn, SignUp or
// SignOut directly.
func (c *Context) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.mu.Lock()
	c.nextSubID++
	id := c.nextSubID
	c.subscribers = append(c.subscribers, subscriber{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.subscribers = slices.DeleteFunc(c.subscribers, func(s subscriber) bool { return s.id == id })
			c.mu.Unlock()
		})
	}
}

// Close detaches from the provider. Later notifications and late lookup
// results are ignored.
func (c *Context) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsub := c.unsubscribe
	c.unsubscribe = nil
	c.subscribers = nil
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (c *Context) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Context) setIdentity(identity *domain.Identity) {
	c.update(func(s *Snapshot) bool {
		if identity == nil || s.Identity == nil || s.Identity.ID != identity.ID {
			s.Profile = nil
			s.Permissions = nil
		}
		s.Identity = identity
		return true
	})
}

func (c *Context) setLoading(loading bool) {
	c.update(func(s *Snapshot) bool {
		if s.Loading == loading {
			return false
		}
		s.Loading = loading
		return true
	})
}

func (c *Context) settle() {
	c.update(func(s *Snapshot) bool {
		if !s.Loading && s.restored {
			return false
		}
		s.Loading = false
		s.restored = true
		return true
	})
}

// update applies fn to a copy of the state and publishes it if fn reports
// a change.
func (c *Context) update(fn func(*Snapshot) bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	next := *c.state.Load()
	if !fn(&next) {
		c.mu.Unlock()
		return
	}
	next = next.normalize()
	c.state.Store(&next)
	subs := slices.Clone(c.subscribers)
	c.mu.Unlock()

	for _, sub := range subs {
		sub.fn(c.Snapshot())
	}
}

func identityOf(s *domain.AuthSession) *domain.Identity {
	if s == nil || s.User.ID == "" {
		return nil
	}
	id := s.User
	return &id
}
