package identity_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nndl/courseboard/internal/adapters/identity"
	"github.com/nndl/courseboard/internal/adapters/session"
	"github.com/nndl/courseboard/internal/domain/principal"
	"github.com/nndl/courseboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	logger.Init()
}

type fakeProvider struct {
	mu sync.Mutex

	account   identity.Account
	signInErr error

	signOutErr   error
	signOutCalls int
	signedOutTok string
}

func (f *fakeProvider) SignIn(ctx context.Context, credential string) (identity.Account, error) {
	return f.account, f.signInErr
}

func (f *fakeProvider) Refresh(ctx context.Context, refreshToken string) (session.Token, error) {
	return session.Token{Access: "refreshed", Refresh: refreshToken}, nil
}

func (f *fakeProvider) SignOut(ctx context.Context, refreshToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOutCalls++
	f.signedOutTok = refreshToken
	return f.signOutErr
}

func (f *fakeProvider) outCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signOutCalls
}

func newGateway(provider *fakeProvider) (*identity.Gateway, *session.Store) {
	sessions := session.New(provider.Refresh)
	g := identity.New(provider, sessions,
		identity.WithAllowedDomains([]string{"columbia.edu", "barnard.edu"}),
		identity.WithAdminEmail("prof@columbia.edu"),
	)
	g.Start(context.Background())
	return g, sessions
}

func TestSignIn(t *testing.T) {
	Convey("Given a provider account on an allowed domain", t, func() {
		provider := &fakeProvider{account: identity.Account{
			Email:        "student@columbia.edu",
			DisplayName:  "A Student",
			IDToken:      "id-token",
			RefreshToken: "refresh-token",
		}}
		g, sessions := newGateway(provider)
		defer sessions.Clear()

		Convey("When the credential is exchanged", func() {
			p, err := g.SignIn(context.Background(), "cred")

			Convey("Then the principal is current", func() {
				So(err, ShouldBeNil)
				So(p.Email, ShouldEqual, "student@columbia.edu")

				cur, ok := g.Current()
				So(ok, ShouldBeTrue)
				So(cur, ShouldResemble, p)
			})

			Convey("And the session holds the provider tokens", func() {
				access, ok := sessions.Token(context.Background())
				So(ok, ShouldBeTrue)
				So(access, ShouldEqual, "id-token")
				So(sessions.Snapshot().Refresh, ShouldEqual, "refresh-token")
			})
		})
	})

	Convey("Given a provider account on an outside domain", t, func() {
		provider := &fakeProvider{account: identity.Account{
			Email:        "someone@gmail.com",
			IDToken:      "id-token",
			RefreshToken: "refresh-token",
		}}
		g, sessions := newGateway(provider)

		Convey("When the credential is exchanged", func() {
			_, err := g.SignIn(context.Background(), "cred")

			Convey("Then the sign-in is rejected", func() {
				So(errors.Is(err, identity.ErrUnauthorizedDomain), ShouldBeTrue)

				_, ok := g.Current()
				So(ok, ShouldBeFalse)
			})

			Convey("And the provider session was revoked", func() {
				So(provider.outCalls(), ShouldEqual, 1)
			})

			Convey("And no token was cached", func() {
				_, ok := sessions.Token(context.Background())
				So(ok, ShouldBeFalse)
			})
		})
	})

	Convey("Given a provider failure", t, func() {
		provider := &fakeProvider{signInErr: errors.New("provider down")}
		g, _ := newGateway(provider)

		Convey("When the credential is exchanged", func() {
			_, err := g.SignIn(context.Background(), "cred")

			Convey("Then the error surfaces and nobody is signed in", func() {
				So(err, ShouldNotBeNil)
				_, ok := g.Current()
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestSignOut(t *testing.T) {
	Convey("Given a signed-in principal", t, func() {
		provider := &fakeProvider{account: identity.Account{
			Email:        "student@columbia.edu",
			IDToken:      "id-token",
			RefreshToken: "refresh-token",
		}}
		g, sessions := newGateway(provider)
		_, err := g.SignIn(context.Background(), "cred")
		So(err, ShouldBeNil)

		Convey("When they sign out", func() {
			err := g.SignOut(context.Background())

			Convey("Then local state and the session are gone", func() {
				So(err, ShouldBeNil)
				_, ok := g.Current()
				So(ok, ShouldBeFalse)
				_, ok = sessions.Token(context.Background())
				So(ok, ShouldBeFalse)
			})

			Convey("And the provider revoked the refresh credential", func() {
				So(provider.outCalls(), ShouldEqual, 1)
				So(provider.signedOutTok, ShouldEqual, "refresh-token")
			})
		})

		Convey("When the provider revocation fails", func() {
			provider.signOutErr = errors.New("network")
			err := g.SignOut(context.Background())

			Convey("Then the error surfaces but local state is cleared anyway", func() {
				So(err, ShouldNotBeNil)
				_, ok := g.Current()
				So(ok, ShouldBeFalse)
				_, ok = sessions.Token(context.Background())
				So(ok, ShouldBeFalse)
			})
		})
	})

	Convey("Given nobody signed in", t, func() {
		provider := &fakeProvider{}
		g, _ := newGateway(provider)

		Convey("When sign-out is invoked", func() {
			err := g.SignOut(context.Background())

			Convey("Then it is a no-op", func() {
				So(err, ShouldBeNil)
				So(provider.outCalls(), ShouldEqual, 0)
			})
		})
	})
}

func TestSubscribe(t *testing.T) {
	Convey("Given a subscriber on the auth stream", t, func() {
		provider := &fakeProvider{account: identity.Account{
			Email:        "student@columbia.edu",
			IDToken:      "id-token",
			RefreshToken: "refresh-token",
		}}
		g, sessions := newGateway(provider)
		defer sessions.Clear()

		events, cancel := g.Subscribe()

		Convey("When a principal signs in and out", func() {
			_, err := g.SignIn(context.Background(), "cred")
			So(err, ShouldBeNil)
			So(g.SignOut(context.Background()), ShouldBeNil)

			Convey("Then both events arrive in order", func() {
				ev := <-events
				So(ev.Type, ShouldEqual, identity.SignedIn)
				So(ev.Principal.Email, ShouldEqual, "student@columbia.edu")

				ev = <-events
				So(ev.Type, ShouldEqual, identity.SignedOut)
			})
		})

		Convey("When the subscription is cancelled", func() {
			cancel()

			Convey("Then the channel closes and later events do not panic", func() {
				_, open := <-events
				So(open, ShouldBeFalse)

				_, err := g.SignIn(context.Background(), "cred")
				So(err, ShouldBeNil)
			})
		})
	})
}

func adminPrincipal() principal.Principal {
	return principal.Principal{Email: "prof@columbia.edu"}
}

func TestIsAdmin(t *testing.T) {
	Convey("Given the configured admin email", t, func() {
		g, _ := newGateway(&fakeProvider{})

		Convey("Then only that principal is admin", func() {
			So(g.IsAdmin(adminPrincipal()), ShouldBeTrue)
			So(g.AdminEmail(), ShouldEqual, "prof@columbia.edu")
		})
	})
}
