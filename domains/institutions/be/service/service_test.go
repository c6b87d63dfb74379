package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/voxcampus/voxcampus-platform/platform/go/tenant"
)

type stubRepo struct {
	byID        map[string]Institution
	domainErr   error
	idErr       error
	memberships []Membership
}

func newStubRepo(insts ...Institution) *stubRepo {
	r := &stubRepo{byID: map[string]Institution{}}
	for _, inst := range insts {
		r.byID[inst.ID] = inst
	}
	return r
}

func (r *stubRepo) GetByID(_ context.Context, id string) (Institution, error) {
	if r.idErr != nil {
		return Institution{}, r.idErr
	}
	inst, ok := r.byID[id]
	if !ok {
		return Institution{}, ErrNotFound
	}
	return inst, nil
}

func (r *stubRepo) GetByDomain(_ context.Context, domain string) (Institution, error) {
	if r.domainErr != nil {
		return Institution{}, r.domainErr
	}
	for _, inst := range r.byID {
		if strings.EqualFold(inst.Domain, domain) {
			return inst, nil
		}
	}
	return Institution{}, ErrNotFound
}

func (r *stubRepo) List(context.Context) ([]Institution, error) {
	out := make([]Institution, 0, len(r.byID))
	for _, inst := range r.byID {
		out = append(out, inst)
	}
	return out, nil
}

func (r *stubRepo) Upsert(_ context.Context, inst Institution) (Institution, error) {
	r.byID[inst.ID] = inst
	return inst, nil
}

func (r *stubRepo) AddMembership(_ context.Context, userID, institutionID string) (Membership, error) {
	m := Membership{UserID: userID, InstitutionID: institutionID, JoinedAt: time.Now().UTC()}
	r.memberships = append(r.memberships, m)
	return m, nil
}

func (r *stubRepo) ListMemberships(_ context.Context, userID string) ([]Membership, error) {
	var out []Membership
	for _, m := range r.memberships {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

var (
	uniA     = Institution{ID: "inst-a", Name: "University A", Domain: "uni-a.edu"}
	uniB     = Institution{ID: "inst-b", Name: "University B", Domain: "uni-b.edu"}
	fallback = Institution{ID: "inst-default", Name: "VoxCampus", Domain: "voxcampus.app"}
)

func TestResolveInstitution(t *testing.T) {
	ctx := context.Background()
	svc := New(newStubRepo(uniA, uniB, fallback), Config{DefaultInstitutionID: fallback.ID}, zaptest.NewLogger(t))

	id, ok := svc.ResolveInstitutionID(ctx, "student@uni-a.edu")
	require.True(t, ok)
	require.Equal(t, "inst-a", id)

	id, ok = svc.ResolveInstitutionID(ctx, "Student@UNI-B.edu")
	require.True(t, ok)
	require.Equal(t, "inst-b", id)

	id, ok = svc.ResolveInstitutionID(ctx, "someone@elsewhere.org")
	require.True(t, ok)
	require.Equal(t, "inst-default", id)

	_, ok = svc.ResolveInstitutionID(ctx, "no-at-sign")
	require.False(t, ok)

	_, ok = svc.ResolveInstitutionID(ctx, "trailing@")
	require.False(t, ok)
}

func TestResolveInstitutionUsesLastAt(t *testing.T) {
	svc := New(newStubRepo(uniA), Config{}, zaptest.NewLogger(t))

	id, ok := svc.ResolveInstitutionID(context.Background(), "odd@name@uni-a.edu")
	require.True(t, ok)
	require.Equal(t, "inst-a", id)
}

func TestResolveInstitutionWithoutDefault(t *testing.T) {
	svc := New(newStubRepo(uniA), Config{}, zaptest.NewLogger(t))

	_, ok := svc.ResolveInstitution(context.Background(), "someone@elsewhere.org")
	require.False(t, ok)
}

func TestResolveInstitutionMissingDefaultRecord(t *testing.T) {
	svc := New(newStubRepo(uniA), Config{DefaultInstitutionID: "gone"}, zaptest.NewLogger(t))

	_, ok := svc.ResolveInstitution(context.Background(), "someone@elsewhere.org")
	require.False(t, ok)
}

func TestResolveInstitutionStoreErrorsAreNotFound(t *testing.T) {
	repo := newStubRepo(uniA, fallback)
	repo.domainErr = errors.New("connection reset")
	svc := New(repo, Config{DefaultInstitutionID: fallback.ID}, zaptest.NewLogger(t))

	_, ok := svc.ResolveInstitution(context.Background(), "student@uni-a.edu")
	require.False(t, ok)

	repo.domainErr = nil
	repo.idErr = errors.New("connection reset")
	_, ok = svc.ResolveInstitution(context.Background(), "someone@elsewhere.org")
	require.False(t, ok)
}

func TestUpsertValidation(t *testing.T) {
	svc := New(newStubRepo(), Config{}, zaptest.NewLogger(t))

	_, err := svc.Upsert(context.Background(), UpsertInput{Domain: "bad@domain"})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Contains(t, vErr.Fields, "id")
	require.Contains(t, vErr.Fields, "name")
	require.Contains(t, vErr.Fields, "domain")

	inst, err := svc.Upsert(context.Background(), UpsertInput{ID: "inst-c", Name: " College C ", Domain: " College-C.EDU "})
	require.NoError(t, err)
	require.Equal(t, "College C", inst.Name)
	require.Equal(t, "college-c.edu", inst.Domain)
}

func TestJoin(t *testing.T) {
	ctx := context.Background()
	repo := newStubRepo(uniA, uniB)
	svc := New(repo, Config{Exemptions: tenant.NewExemptionList("demo@voxcampus.app")}, zaptest.NewLogger(t))

	m, err := svc.Join(ctx, Actor{UserID: "u1", Email: "s@uni-a.edu"}, "inst-a")
	require.NoError(t, err)
	require.Equal(t, "inst-a", m.InstitutionID)

	_, err = svc.Join(ctx, Actor{UserID: "u1", Email: "s@uni-a.edu"}, "inst-b")
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Join(ctx, Actor{UserID: "u1", Email: "s@uni-a.edu"}, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Join(ctx, Actor{UserID: "demo", Email: "Demo@VoxCampus.app"}, "inst-b")
	require.NoError(t, err)

	memberships, err := svc.Memberships(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, memberships, 1)

	_, err = svc.Memberships(ctx, "")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestNewPanicsWithoutRepo(t *testing.T) {
	require.Panics(t, func() { New(nil, Config{}, nil) })
}
