package resolver

import (
	"context"
	"errors"
	"sync"
	"testing"

	"orgaccess/internal/membership/domain"
	orgdomain "orgaccess/internal/organization/domain"
	"orgaccess/internal/querycache"
)

// mockMeGetter implements MeGetter for tests.
type mockMeGetter struct {
	mu    sync.Mutex
	resp  *orgdomain.GetMeResponse
	err   error
	calls map[string]int
	// gate, when set, blocks each call until it is closed.
	gate    chan struct{}
	entered chan struct{}
}

func (m *mockMeGetter) GetMe(ctx context.Context, orgID string) (*orgdomain.GetMeResponse, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[orgID]++
	m.mu.Unlock()
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.gate != nil {
		<-m.gate
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func (m *mockMeGetter) callsFor(orgID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[orgID]
}

func acmeAdmin() *orgdomain.GetMeResponse {
	return &orgdomain.GetMeResponse{
		UserID: "u1",
		Email:  "a@b.com",
		Orgs: []orgdomain.UserOrgInfo{
			{OrgID: "org-1", OrgName: "Acme", Role: "admin", IsCurrent: true},
		},
	}
}

func newTestResolver(svc MeGetter, opts ...Option) *Resolver {
	cache := querycache.New[*domain.Member]("members", querycache.NewMemoryStore[*domain.Member](0, 0))
	return New(svc, cache, opts...)
}

func TestResolve_ProjectsCurrentOrg(t *testing.T) {
	svc := &mockMeGetter{resp: acmeAdmin()}
	r := newTestResolver(svc)

	m, err := r.GetActiveMember(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("GetActiveMember: %v", err)
	}
	want := domain.Member{ID: "u1", Email: "a@b.com", Role: domain.RoleAdmin, Status: domain.MemberStatusActive}
	if *m != want {
		t.Errorf("member = %+v, want %+v", *m, want)
	}
}

func TestResolve_CachesPerOrg(t *testing.T) {
	svc := &mockMeGetter{resp: acmeAdmin()}
	r := newTestResolver(svc)
	ctx := context.Background()

	first, err := r.Resolve(ctx, "org-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := r.Resolve(ctx, "org-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if svc.callsFor("org-1") != 1 {
		t.Errorf("GetMe calls = %d, want 1", svc.callsFor("org-1"))
	}
	if first.Member != second.Member {
		t.Error("second call should return the identical cached object")
	}
	if first.Outcome != OutcomeFetched || second.Outcome != OutcomeCached {
		t.Errorf("outcomes = %v, %v; want fetched, cached", first.Outcome, second.Outcome)
	}
}

func TestResolve_SeparateOrgsFetchSeparately(t *testing.T) {
	svc := &mockMeGetter{resp: acmeAdmin()}
	r := newTestResolver(svc)
	ctx := context.Background()

	if _, err := r.Resolve(ctx, "org-1"); err != nil {
		t.Fatalf("Resolve org-1: %v", err)
	}
	if _, err := r.Resolve(ctx, "org-2"); err != nil {
		t.Fatalf("Resolve org-2: %v", err)
	}
	if svc.callsFor("org-1") != 1 || svc.callsFor("org-2") != 1 {
		t.Errorf("calls = %v, want one per org", svc.calls)
	}
}

func TestResolve_NoCurrentOrg(t *testing.T) {
	resp := acmeAdmin()
	resp.Orgs[0].IsCurrent = false
	svc := &mockMeGetter{resp: resp}
	r := newTestResolver(svc)

	_, err := r.Resolve(context.Background(), "org-1")
	if !errors.Is(err, ErrConsistency) {
		t.Fatalf("err = %v, want ErrConsistency", err)
	}
	var ce *ConsistencyError
	if !errors.As(err, &ce) || ce.OrgID != "org-1" {
		t.Errorf("err = %#v, want *ConsistencyError for org-1", err)
	}
	if _, ok := r.Cached(context.Background(), "org-1"); ok {
		t.Error("failed resolution must not write the cache")
	}
}

func TestResolve_EmptyOrgsList(t *testing.T) {
	svc := &mockMeGetter{resp: &orgdomain.GetMeResponse{UserID: "u1"}}
	r := newTestResolver(svc)
	if _, err := r.Resolve(context.Background(), "org-1"); !errors.Is(err, ErrConsistency) {
		t.Fatalf("err = %v, want ErrConsistency", err)
	}
}

func TestResolve_ServiceError(t *testing.T) {
	boom := errors.New("network down")
	svc := &mockMeGetter{err: boom}
	r := newTestResolver(svc)
	if _, err := r.Resolve(context.Background(), "org-1"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped network error", err)
	}
}

func TestResolve_NormalizesUserRole(t *testing.T) {
	resp := acmeAdmin()
	resp.Orgs[0].Role = "user"
	r := newTestResolver(&mockMeGetter{resp: resp})

	m, err := r.GetActiveMember(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("GetActiveMember: %v", err)
	}
	if m.Role != domain.RoleMember {
		t.Errorf("role = %q, want member", m.Role)
	}
}

func TestResolve_UnknownRole(t *testing.T) {
	resp := acmeAdmin()
	resp.Orgs[0].Role = "superuser"
	r := newTestResolver(&mockMeGetter{resp: resp})
	if _, err := r.Resolve(context.Background(), "org-1"); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestResolve_IgnoresUnknownRoleOnOtherOrg(t *testing.T) {
	resp := acmeAdmin()
	resp.Orgs = append(resp.Orgs, orgdomain.UserOrgInfo{OrgID: "org-2", OrgName: "Globex", Role: "billing_viewer"})
	r := newTestResolver(&mockMeGetter{resp: resp})

	m, err := r.GetActiveMember(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("GetActiveMember: %v", err)
	}
	if m.Role != domain.RoleAdmin {
		t.Errorf("role = %q, want admin", m.Role)
	}
}

func TestResolve_AbsentOrgSkips(t *testing.T) {
	svc := &mockMeGetter{resp: acmeAdmin()}
	r := newTestResolver(svc)

	res, err := r.Resolve(context.Background(), "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Outcome != OutcomeSkipped || res.Member != nil {
		t.Errorf("res = %+v, want skipped with nil member", res)
	}
	if len(svc.calls) != 0 {
		t.Errorf("no network call expected, got %v", svc.calls)
	}
}

func TestResolve_DisabledSkips(t *testing.T) {
	svc := &mockMeGetter{resp: acmeAdmin()}
	r := newTestResolver(svc, WithEnabled(false))

	m, err := r.GetActiveMember(context.Background(), "org-1")
	if err != nil || m != nil {
		t.Fatalf("GetActiveMember = (%v, %v), want (nil, nil)", m, err)
	}
	if r.Enabled() {
		t.Error("Enabled() = true, want false")
	}
}

func TestOverwrite_ReplacesCachedMember(t *testing.T) {
	svc := &mockMeGetter{resp: acmeAdmin()}
	r := newTestResolver(svc)
	ctx := context.Background()

	if _, err := r.Resolve(ctx, "org-1"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	updated := &domain.Member{ID: "u1", Email: "a@b.com", Role: domain.RoleOwner, Status: domain.MemberStatusActive}
	if err := r.Overwrite(ctx, "org-1", updated); err != nil {
		t.Fatalf("Overwrite: %v", err)
	}
	m, err := r.GetActiveMember(ctx, "org-1")
	if err != nil {
		t.Fatalf("GetActiveMember: %v", err)
	}
	if m != updated {
		t.Error("expected overwritten member")
	}
	if svc.callsFor("org-1") != 1 {
		t.Errorf("GetMe calls = %d, want 1", svc.callsFor("org-1"))
	}

	if err := r.Overwrite(ctx, "", updated); err == nil {
		t.Error("Overwrite with empty org id should fail")
	}
}

func TestRefresh_OverwritesEntry(t *testing.T) {
	svc := &mockMeGetter{resp: acmeAdmin()}
	r := newTestResolver(svc)
	ctx := context.Background()

	first, err := r.GetActiveMember(ctx, "org-1")
	if err != nil {
		t.Fatalf("GetActiveMember: %v", err)
	}
	svc.resp = acmeAdmin()
	svc.resp.Orgs[0].Role = "owner"

	refreshed, err := r.Refresh(ctx, "org-1")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed == first || refreshed.Role != domain.RoleOwner {
		t.Errorf("refreshed = %+v, want new owner record", refreshed)
	}
	cached, _ := r.Cached(ctx, "org-1")
	if cached != refreshed {
		t.Error("cache should hold the refreshed member")
	}
	if m, err := r.Refresh(ctx, ""); m != nil || err != nil {
		t.Errorf("Refresh(\"\") = (%v, %v), want (nil, nil)", m, err)
	}
}

func TestForget_ForcesRefetch(t *testing.T) {
	svc := &mockMeGetter{resp: acmeAdmin()}
	r := newTestResolver(svc)
	ctx := context.Background()

	if _, err := r.Resolve(ctx, "org-1"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := r.Forget(ctx, "org-1"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	res, err := r.Resolve(ctx, "org-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Outcome != OutcomeFetched || svc.callsFor("org-1") != 2 {
		t.Errorf("outcome = %v calls = %d, want fetched and 2", res.Outcome, svc.callsFor("org-1"))
	}
}

// Two resolutions that miss before either completes both hit the network; the cache converges
// on the last write.
func TestResolve_ConcurrentMissesBothFetch(t *testing.T) {
	svc := &mockMeGetter{
		resp:    acmeAdmin(),
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 2),
	}
	r := newTestResolver(svc)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]Resolution, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := r.Resolve(ctx, "org-1")
			if err != nil {
				t.Errorf("Resolve: %v", err)
			}
			results[i] = res
		}(i)
	}
	<-svc.entered
	<-svc.entered
	close(svc.gate)
	wg.Wait()

	if svc.callsFor("org-1") != 2 {
		t.Errorf("GetMe calls = %d, want 2", svc.callsFor("org-1"))
	}
	for i, res := range results {
		if res.Outcome != OutcomeFetched {
			t.Errorf("results[%d].Outcome = %v, want fetched", i, res.Outcome)
		}
	}
	cached, ok := r.Cached(ctx, "org-1")
	if !ok {
		t.Fatal("cache should hold a member")
	}
	if cached != results[0].Member && cached != results[1].Member {
		t.Error("cache should hold one of the fetched members")
	}
	if *results[0].Member != *results[1].Member {
		t.Error("concurrent fetches should produce equal members")
	}
}

func TestOutcome_String(t *testing.T) {
	if OutcomeSkipped.String() != "skipped" || OutcomeCached.String() != "cached" || OutcomeFetched.String() != "fetched" {
		t.Error("unexpected Outcome strings")
	}
}
