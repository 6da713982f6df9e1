package gate

import (
	"context"
	"testing"

	"github.com/go-go-golems/lawchat/pkg/api"
	"github.com/go-go-golems/lawchat/pkg/auth"
	"github.com/go-go-golems/lawchat/pkg/conversation"
	"github.com/go-go-golems/lawchat/pkg/tokenstore"
	"github.com/stretchr/testify/require"
)

func TestDecide(t *testing.T) {
	require.Equal(t, Decision{Outcome: Loading}, Decide(auth.StatusValidating, "/"))
	require.Equal(t, Decision{Outcome: Render}, Decide(auth.StatusAuthenticated, "/profile"))
	require.Equal(t, Decision{Outcome: Redirect, To: LoginPath, From: "/profile"}, Decide(auth.StatusUnauthenticated, "/profile"))
	require.Equal(t, Decision{Outcome: Redirect, To: LoginPath, From: "/"}, Decide(auth.StatusError, "/"))
}

func TestCategoryPaths(t *testing.T) {
	require.Equal(t, "/category/tax-law", CategoryPath("Tax Law"))
	require.Equal(t, "/category/know-your-rights", CategoryPath("  Know Your  Rights "))
	require.Equal(t, "/category/tax-law", CategoryPath("Tax_Law"))
	require.Equal(t, "/category/tax-law", CategoryPath("tax-law"))
	require.Equal(t, "/category/"+conversation.CategorySlug("Family_Law "), CategoryPath("Family_Law "))

	slug, ok := CategorySlug("/category/tax-law")
	require.True(t, ok)
	require.Equal(t, "tax-law", slug)

	_, ok = CategorySlug("/profile")
	require.False(t, ok)
	_, ok = CategorySlug("/category/")
	require.False(t, ok)
}

type loginBackend struct{}

func (loginBackend) Login(context.Context, string, string) (*api.AuthResponse, error) {
	return &api.AuthResponse{Token: "t", User: &api.User{Email: "ada@example.com"}}, nil
}
func (loginBackend) Signup(context.Context, api.SignupRequest) (*api.AuthResponse, error) {
	return nil, nil
}
func (loginBackend) Logout(context.Context) error { return nil }
func (loginBackend) ValidateToken(context.Context, string) (*api.ValidateResponse, error) {
	return nil, nil
}
func (loginBackend) ResetPassword(context.Context, string) error          { return nil }
func (loginBackend) UpdatePassword(context.Context, string, string) error { return nil }

func TestNavigator_LoginRedirectRestoresDestination(t *testing.T) {
	ctx := context.Background()
	m, err := auth.NewManager(ctx, loginBackend{}, tokenstore.NewMemoryStore(""))
	require.NoError(t, err)
	m.Start(ctx)

	n := NewNavigator(auth.StatusValidating)
	unbind := n.Bind(m)
	defer unbind()

	d := n.Visit("/category/tax-law")
	require.Equal(t, Redirect, d.Outcome)
	require.Equal(t, LoginPath, n.Location())
	require.Equal(t, "/category/tax-law", n.RememberedDestination())

	_, err = m.Login(ctx, "ada@example.com", "pw")
	require.NoError(t, err)

	require.Equal(t, "/category/tax-law", n.CompleteLogin())
	require.Equal(t, Render, n.Decision().Outcome)
	require.Empty(t, n.RememberedDestination())
}

func TestNavigator_DefaultLandingWithoutDestination(t *testing.T) {
	n := NewNavigator(auth.StatusUnauthenticated)
	require.Equal(t, Render, n.Visit(LoginPath).Outcome)
	n.SetStatus(auth.StatusAuthenticated)
	require.Equal(t, DefaultLanding, n.CompleteLogin())
}

func TestNavigator_LoadingDefersDecision(t *testing.T) {
	n := NewNavigator(auth.StatusValidating)
	d := n.Visit("/profile")
	require.Equal(t, Loading, d.Outcome)
	require.Equal(t, "/profile", n.Location())

	n.SetStatus(auth.StatusUnauthenticated)
	require.Equal(t, LoginPath, n.Location())
	require.Equal(t, "/profile", n.RememberedDestination())
}

func TestNavigator_LogoutWhileOnProtectedPath(t *testing.T) {
	n := NewNavigator(auth.StatusAuthenticated)
	require.Equal(t, Render, n.Visit("/category/tax-law").Outcome)

	n.SetStatus(auth.StatusUnauthenticated)
	require.Equal(t, LoginPath, n.Location())
	require.Equal(t, "/category/tax-law", n.RememberedDestination())
}

func TestNavigator_RedirectToLogin(t *testing.T) {
	n := NewNavigator(auth.StatusAuthenticated)
	n.Visit("/profile")
	n.RedirectToLogin()
	require.Equal(t, LoginPath, n.Location())
	require.Equal(t, "/profile", n.RememberedDestination())
}
