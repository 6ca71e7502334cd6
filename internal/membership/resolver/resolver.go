// Package resolver produces the session user's membership record for an organization,
// reading through the query cache and fetching from the organization service on a miss.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"orgaccess/internal/membership/domain"
	orgdomain "orgaccess/internal/organization/domain"
	"orgaccess/internal/querycache"
)

// ErrConsistency is matched (errors.Is) by every *ConsistencyError.
var ErrConsistency = errors.New("current organization not found in membership response")

// ConsistencyError means the organization service broke its contract: the "me" response for OrgID
// had no record flagged isCurrent.
type ConsistencyError struct {
	OrgID string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("membership: org %s: %v", e.OrgID, ErrConsistency)
}

func (e *ConsistencyError) Unwrap() error { return ErrConsistency }

// MeGetter fetches the raw "my organizations" response.
type MeGetter interface {
	GetMe(ctx context.Context, orgID string) (*orgdomain.GetMeResponse, error)
}

// Outcome reports how a Resolution was produced.
type Outcome int

const (
	// OutcomeSkipped means no organization applied; nothing was read or fetched.
	OutcomeSkipped Outcome = iota
	OutcomeCached
	OutcomeFetched
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeCached:
		return "cached"
	case OutcomeFetched:
		return "fetched"
	}
	return "unknown"
}

// Resolution is the result of Resolve. Member is nil when Outcome is OutcomeSkipped.
type Resolution struct {
	Member  *domain.Member
	Outcome Outcome
}

// MeKey is the cache key for the session user's membership in orgID.
func MeKey(orgID string) querycache.Key {
	return querycache.Key{"organizations", orgID, "me"}
}

// Resolver resolves and caches the active member per organization.
type Resolver struct {
	service MeGetter
	cache   *querycache.Cache[*domain.Member]
	enabled bool
	log     *logrus.Entry
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithEnabled turns resolution on or off. Disabled resolvers behave as if no org were selected;
// used outside SaaS mode where organizations do not exist.
func WithEnabled(enabled bool) Option {
	return func(r *Resolver) { r.enabled = enabled }
}

// WithLogger sets the logger. Defaults to the logrus standard logger.
func WithLogger(l *logrus.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.log = l.WithField("component", "membership")
		}
	}
}

// New returns an enabled Resolver over service and cache.
func New(service MeGetter, cache *querycache.Cache[*domain.Member], opts ...Option) *Resolver {
	r := &Resolver{
		service: service,
		cache:   cache,
		enabled: true,
		log:     logrus.StandardLogger().WithField("component", "membership"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enabled reports whether the resolver resolves at all.
func (r *Resolver) Enabled() bool { return r.enabled }

// Resolve returns the session member for orgID. An empty orgID (or a disabled resolver) yields
// OutcomeSkipped without any network call. A cached entry is returned as is. Otherwise the
// member is fetched, projected from the isCurrent record, written to the cache, and returned.
func (r *Resolver) Resolve(ctx context.Context, orgID string) (Resolution, error) {
	if orgID == "" || !r.enabled {
		return Resolution{Outcome: OutcomeSkipped}, nil
	}
	m, outcome, err := r.cache.GetOrFetch(ctx, MeKey(orgID), func(ctx context.Context) (*domain.Member, error) {
		return r.fetch(ctx, orgID)
	})
	if err != nil {
		return Resolution{}, err
	}
	res := Resolution{Member: m, Outcome: OutcomeCached}
	if outcome == querycache.OutcomeFetched {
		res.Outcome = OutcomeFetched
		r.log.WithFields(logrus.Fields{"org_id": orgID, "role": m.Role}).Debug("resolved active member")
	}
	return res, nil
}

// GetActiveMember is Resolve without the outcome. It returns (nil, nil) when no org applies.
func (r *Resolver) GetActiveMember(ctx context.Context, orgID string) (*domain.Member, error) {
	res, err := r.Resolve(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return res.Member, nil
}

// Cached returns the cached member for orgID without fetching.
func (r *Resolver) Cached(ctx context.Context, orgID string) (*domain.Member, bool) {
	if orgID == "" {
		return nil, false
	}
	return r.cache.Get(ctx, MeKey(orgID))
}

// Overwrite replaces the cached member for orgID. There is no automatic invalidation; callers that
// mutate membership must overwrite.
func (r *Resolver) Overwrite(ctx context.Context, orgID string, m *domain.Member) error {
	if orgID == "" {
		return errors.New("membership: org id is required")
	}
	return r.cache.Set(ctx, MeKey(orgID), m)
}

// Refresh fetches the member for orgID from the service and overwrites the cache entry with it.
func (r *Resolver) Refresh(ctx context.Context, orgID string) (*domain.Member, error) {
	if orgID == "" || !r.enabled {
		return nil, nil
	}
	m, err := r.fetch(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if err := r.Overwrite(ctx, orgID, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Forget drops the cached member for orgID so the next Resolve fetches.
func (r *Resolver) Forget(ctx context.Context, orgID string) error {
	return r.cache.Invalidate(ctx, MeKey(orgID))
}

func (r *Resolver) fetch(ctx context.Context, orgID string) (*domain.Member, error) {
	resp, err := r.service.GetMe(ctx, orgID)
	if err != nil {
		r.log.WithField("org_id", orgID).WithError(err).Warn("membership fetch failed")
		return nil, fmt.Errorf("membership: fetch org %s: %w", orgID, err)
	}
	cur := resp.Current()
	if cur == nil {
		err := &ConsistencyError{OrgID: orgID}
		r.log.WithField("org_id", orgID).Error(err.Error())
		return nil, err
	}
	role, err := domain.ParseRole(cur.Role)
	if err != nil {
		return nil, fmt.Errorf("membership: org %s: %w", orgID, err)
	}
	return &domain.Member{
		ID:     resp.UserID,
		Email:  resp.Email,
		Role:   role,
		Status: domain.MemberStatusActive,
	}, nil
}
