package services

import (
	"context"
	"testing"
	"time"

	"github.com/kendall-kelly/servicepro-api/forms"
	"github.com/kendall-kelly/servicepro-api/models"
	"github.com/kendall-kelly/servicepro-api/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newUsers(f *fixture) (*UserService, *TokenIssuer) {
	tokens := NewTokenIssuer("test-secret")
	return NewUserService(f.db, tokens, zap.NewNop()), tokens
}

func TestSignupHashesPassword(t *testing.T) {
	f := newFixture(t)
	users, _ := newUsers(f)

	user, err := users.Signup(context.Background(), forms.SignupInput{Name: "New Person", Email: "new@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, user.Role)

	require.NotNil(t, user.Password)
	cost, err := bcrypt.Cost([]byte(*user.Password))
	require.NoError(t, err)
	assert.Equal(t, PasswordCost, cost)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte("secret1")))
}

func TestSignupDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	users, _ := newUsers(f)

	_, err := users.Signup(context.Background(), forms.SignupInput{Name: "Again", Email: "tech@example.com", Password: "secret1"})
	serr := requireKind(t, err, KindConflict)
	assert.Equal(t, "User already exists", serr.Message)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	users, tokens := newUsers(f)
	ctx := context.Background()

	token, user, err := users.Login(ctx, forms.LoginInput{Email: "admin@example.com", Password: testutil.TestPassword})
	require.NoError(t, err)
	assert.Equal(t, f.admin.ID, user.ID)

	session, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, SessionFor(f.admin), session)

	_, _, err = users.Login(ctx, forms.LoginInput{Email: "admin@example.com", Password: "wrong"})
	requireKind(t, err, KindNotAuthenticated)

	_, _, err = users.Login(ctx, forms.LoginInput{Email: "nobody@example.com", Password: "whatever"})
	requireKind(t, err, KindNotAuthenticated)
}

func TestLoginRejectsExternalAccounts(t *testing.T) {
	f := newFixture(t)
	users, _ := newUsers(f)
	ctx := context.Background()

	_, err := users.ProvisionExternalUser(ctx, "auth0|abc", &UserInfo{Email: "ext@example.com", Name: "External"})
	require.NoError(t, err)

	_, _, err = users.Login(ctx, forms.LoginInput{Email: "ext@example.com", Password: "anything"})
	requireKind(t, err, KindNotAuthenticated)
}

func TestProfileAndUpdateProfile(t *testing.T) {
	f := newFixture(t)
	users, _ := newUsers(f)
	ctx := context.Background()

	profile, err := users.Profile(ctx, f.session)
	require.NoError(t, err)
	assert.Equal(t, "Tech One", profile.Name)

	updated, err := users.UpdateProfile(ctx, f.session, forms.ProfileInput{
		Name:  testutil.Ptr("Tech Prime"),
		Image: testutil.Ptr("https://cdn.example.com/me.png"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Tech Prime", updated.Name)
	require.NotNil(t, updated.Image)

	cleared, err := users.UpdateProfile(ctx, f.session, forms.ProfileInput{Image: testutil.Ptr("")})
	require.NoError(t, err)
	assert.Nil(t, cleared.Image)
	assert.Equal(t, "Tech Prime", cleared.Name)

	_, err = users.Profile(ctx, Session{UserID: "999"})
	requireKind(t, err, KindNotFound)
}

func TestAddStaffRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	users, _ := newUsers(f)
	ctx := context.Background()
	in := forms.StaffInput{Name: "Helper", Email: "helper@example.com", Password: "secret1"}

	_, err := users.AddStaff(ctx, f.session, in)
	requireKind(t, err, KindForbidden)

	_, err = users.AddStaff(ctx, Session{}, in)
	requireKind(t, err, KindNotAuthenticated)

	created, err := users.AddStaff(ctx, SessionFor(f.admin), in)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, created.Role)

	_, err = users.AddStaff(ctx, SessionFor(f.admin), in)
	requireKind(t, err, KindConflict)

	_, err = users.AddStaff(ctx, SessionFor(f.admin), forms.StaffInput{Name: "X", Email: "x", Password: "1"})
	serr := requireKind(t, err, KindValidationFailed)
	assert.Contains(t, serr.Details, "email")
	assert.Contains(t, serr.Details, "password")
}

func TestUpdateUserRole(t *testing.T) {
	f := newFixture(t)
	users, _ := newUsers(f)
	ctx := context.Background()

	_, err := users.UpdateUserRole(ctx, f.session, f.staff.ID, forms.RoleInput{Role: models.RoleAdmin})
	requireKind(t, err, KindForbidden)

	promoted, err := users.UpdateUserRole(ctx, SessionFor(f.admin), f.staff.ID, forms.RoleInput{Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, promoted.Role)

	_, err = users.UpdateUserRole(ctx, SessionFor(f.admin), 999, forms.RoleInput{Role: models.RoleUser})
	requireKind(t, err, KindNotFound)
}

func TestListStaffAndTechnicians(t *testing.T) {
	f := newFixture(t)
	users, _ := newUsers(f)
	ctx := context.Background()
	testutil.SeedUser(t, f.db, "Alice Tech", "alice@example.com", models.RoleUser)

	technicians, err := users.ListTechnicians(ctx, f.session)
	require.NoError(t, err)
	require.Len(t, technicians, 2)
	assert.Equal(t, "Alice Tech", technicians[0].Name)
	assert.Equal(t, "Tech One", technicians[1].Name)

	_, err = users.ListStaff(ctx, f.session)
	requireKind(t, err, KindForbidden)

	staff, err := users.ListStaff(ctx, SessionFor(f.admin))
	require.NoError(t, err)
	assert.Len(t, staff, 3)
}

func TestProvisionAndResolveExternalUser(t *testing.T) {
	f := newFixture(t)
	users, _ := newUsers(f)
	ctx := context.Background()

	anonymous, err := users.ResolveExternalSession(ctx, "auth0|new")
	require.NoError(t, err)
	_, ok := anonymous.ActorID()
	assert.False(t, ok)

	user, err := users.ProvisionExternalUser(ctx, "auth0|new", &UserInfo{Email: "ext@example.com", Name: "Ext", Picture: "https://cdn.example.com/p.png"})
	require.NoError(t, err)
	assert.Nil(t, user.Password)
	require.NotNil(t, user.Image)

	session, err := users.ResolveExternalSession(ctx, "auth0|new")
	require.NoError(t, err)
	assert.Equal(t, SessionFor(*user), session)

	_, err = users.ProvisionExternalUser(ctx, "auth0|new", &UserInfo{Email: "other@example.com", Name: "Ext"})
	requireKind(t, err, KindConflict)

	_, err = users.ProvisionExternalUser(ctx, "auth0|x", &UserInfo{Name: "No Email"})
	serr := requireKind(t, err, KindValidationFailed)
	assert.Contains(t, serr.Details, "email")
}

func TestBootstrapAdmin(t *testing.T) {
	f := newFixture(t)
	users, _ := newUsers(f)

	admin, err := users.BootstrapAdmin(context.Background(), forms.StaffInput{Name: "Root", Email: "root@example.com", Password: "secret1", Role: models.RoleUser})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
}

func TestVerifySessionReloadsUser(t *testing.T) {
	f := newFixture(t)
	users, _ := newUsers(f)
	ctx := context.Background()
	deputy := testutil.SeedUser(t, f.db, "Deputy", "deputy@example.com", models.RoleAdmin)

	token, _, err := users.Login(ctx, forms.LoginInput{Email: "deputy@example.com", Password: testutil.TestPassword})
	require.NoError(t, err)

	session, err := users.VerifySession(ctx, token)
	require.NoError(t, err)
	assert.True(t, session.IsAdmin())

	_, err = users.UpdateUserRole(ctx, SessionFor(f.admin), deputy.ID, forms.RoleInput{Role: models.RoleUser})
	require.NoError(t, err)

	session, err = users.VerifySession(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, SessionFor(models.User{ID: deputy.ID, Role: models.RoleUser}), session)
	assert.False(t, session.IsAdmin(), "A demoted admin loses access with the same token")

	require.NoError(t, f.db.Delete(&models.User{}, deputy.ID).Error)
	_, err = users.VerifySession(ctx, token)
	requireKind(t, err, KindNotAuthenticated)

	_, err = users.VerifySession(ctx, "not-a-token")
	serr := requireKind(t, err, KindNotAuthenticated)
	assert.Equal(t, "INVALID_TOKEN", serr.Code)

	_, err = NewUserService(f.db, nil, zap.NewNop()).VerifySession(ctx, token)
	requireKind(t, err, KindNotAuthenticated)
}

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")
	issuer.now = func() time.Time { return time.Now() }
	user := models.User{ID: 7, Role: models.RoleAdmin}

	token, err := issuer.Issue(user)
	require.NoError(t, err)

	session, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, Session{UserID: "7", Role: models.RoleAdmin}, session)

	_, err = NewTokenIssuer("other-secret").Verify(token)
	assert.Error(t, err, "Wrong secret must fail")

	expired := NewTokenIssuer("test-secret")
	expired.now = func() time.Time { return time.Now().Add(-2 * TokenTTL) }
	old, err := expired.Issue(user)
	require.NoError(t, err)
	_, err = issuer.Verify(old)
	assert.Error(t, err, "Expired token must fail")

	_, err = issuer.Verify("not-a-token")
	assert.Error(t, err)
}

func TestSession(t *testing.T) {
	id, ok := Session{UserID: "12"}.ActorID()
	assert.True(t, ok)
	assert.Equal(t, uint(12), id)

	for _, raw := range []string{"", "0", "-1", "abc", "1.5"} {
		_, ok := Session{UserID: raw}.ActorID()
		assert.False(t, ok, "UserID %q", raw)
	}

	assert.True(t, Session{Role: models.RoleAdmin}.IsAdmin())
	assert.False(t, Session{Role: models.RoleUser}.IsAdmin())
}
