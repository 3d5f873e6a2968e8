package session_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nndl/courseboard/internal/adapters/session"
	"github.com/nndl/courseboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	logger.Init()
}

func countingRefresh(calls *atomic.Int64, tok session.Token, err error) session.RefreshFunc {
	return func(ctx context.Context, refresh string) (session.Token, error) {
		calls.Add(1)
		return tok, err
	}
}

func TestTokenCaching(t *testing.T) {
	Convey("Given a store with a cached token", t, func() {
		var calls atomic.Int64
		store := session.New(countingRefresh(&calls, session.Token{Access: "fresh"}, nil))
		store.SetToken(session.Token{Access: "cached", Refresh: "r1"})

		Convey("When the token is read", func() {
			access, ok := store.Token(context.Background())

			Convey("Then the cached value is returned without a provider call", func() {
				So(ok, ShouldBeTrue)
				So(access, ShouldEqual, "cached")
				So(calls.Load(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a store holding only a refresh credential", t, func() {
		var calls atomic.Int64
		store := session.New(countingRefresh(&calls, session.Token{Access: "fresh"}, nil))
		store.SetToken(session.Token{Refresh: "r1"})

		Convey("When the token is read", func() {
			access, ok := store.Token(context.Background())

			Convey("Then one on-demand fetch fills the cache", func() {
				So(ok, ShouldBeTrue)
				So(access, ShouldEqual, "fresh")
				So(calls.Load(), ShouldEqual, 1)
			})

			Convey("And a second read hits the cache", func() {
				store.Token(context.Background())
				So(calls.Load(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given an empty store", t, func() {
		var calls atomic.Int64
		store := session.New(countingRefresh(&calls, session.Token{}, nil))

		Convey("When the token is read", func() {
			_, ok := store.Token(context.Background())

			Convey("Then there is no token and no provider call", func() {
				So(ok, ShouldBeFalse)
				So(calls.Load(), ShouldEqual, 0)
			})
		})
	})
}

func TestForceRefresh(t *testing.T) {
	Convey("Given a provider that rotates only the access token", t, func() {
		var calls atomic.Int64
		store := session.New(countingRefresh(&calls, session.Token{Access: "a2"}, nil))
		store.SetToken(session.Token{Access: "a1", Refresh: "r1"})

		Convey("When a refresh is forced", func() {
			access, err := store.ForceRefresh(context.Background())

			Convey("Then the new access token is cached", func() {
				So(err, ShouldBeNil)
				So(access, ShouldEqual, "a2")
			})

			Convey("And the refresh credential is retained", func() {
				So(store.Snapshot().Refresh, ShouldEqual, "r1")
			})
		})
	})

	Convey("Given a provider that fails", t, func() {
		var calls atomic.Int64
		store := session.New(countingRefresh(&calls, session.Token{}, errors.New("boom")))
		store.SetToken(session.Token{Access: "a1", Refresh: "r1"})

		Convey("When a refresh is forced", func() {
			_, err := store.ForceRefresh(context.Background())

			Convey("Then the error surfaces and the old token survives", func() {
				So(err, ShouldNotBeNil)
				So(store.Snapshot().Access, ShouldEqual, "a1")
			})
		})
	})
}

func TestClear(t *testing.T) {
	Convey("Given a store with a token and an armed loop", t, func() {
		var calls atomic.Int64
		store := session.New(countingRefresh(&calls, session.Token{Access: "a2"}, nil))
		store.SetToken(session.Token{Access: "a1", Refresh: "r1"})
		store.StartAutoRefresh(context.Background(), time.Hour)

		Convey("When the store is cleared", func() {
			store.Clear()

			Convey("Then no token remains", func() {
				_, ok := store.Token(context.Background())
				So(ok, ShouldBeFalse)
				So(store.Snapshot(), ShouldResemble, session.Token{})
			})
		})
	})
}

func TestAutoRefreshSingleLoop(t *testing.T) {
	Convey("Given a store whose loop is armed twice", t, func() {
		var calls atomic.Int64
		store := session.New(countingRefresh(&calls, session.Token{Access: "a2"}, nil))
		store.SetToken(session.Token{Access: "a1", Refresh: "r1"})

		store.StartAutoRefresh(context.Background(), 20*time.Millisecond)
		store.StartAutoRefresh(context.Background(), 20*time.Millisecond)
		defer store.StopAutoRefresh()

		Convey("When several intervals pass", func() {
			time.Sleep(110 * time.Millisecond)
			got := calls.Load()

			Convey("Then only one loop was ticking", func() {
				// Two live loops would roughly double the count.
				So(got, ShouldBeGreaterThanOrEqualTo, 2)
				So(got, ShouldBeLessThanOrEqualTo, 7)
			})
		})
	})

	Convey("Given an armed loop that is stopped", t, func() {
		var calls atomic.Int64
		store := session.New(countingRefresh(&calls, session.Token{Access: "a2"}, nil))
		store.SetToken(session.Token{Access: "a1", Refresh: "r1"})

		store.StartAutoRefresh(context.Background(), 10*time.Millisecond)
		time.Sleep(35 * time.Millisecond)
		store.StopAutoRefresh()
		settled := calls.Load()

		Convey("When more time passes", func() {
			time.Sleep(50 * time.Millisecond)

			Convey("Then the count stops moving", func() {
				// Allow one in-flight tick at the moment of the stop.
				So(calls.Load(), ShouldBeLessThanOrEqualTo, settled+1)
			})
		})
	})
}

func TestJWTExpiryFill(t *testing.T) {
	Convey("Given an access token that is not a JWT", t, func() {
		store := session.New(nil)
		store.SetToken(session.Token{Access: "opaque", Refresh: "r1"})

		Convey("Then the expiry stays zero", func() {
			So(store.Snapshot().ExpiresAt.IsZero(), ShouldBeTrue)
		})
	})

	Convey("Given an explicit expiry", t, func() {
		store := session.New(nil)
		at := time.Now().Add(time.Hour).Truncate(time.Second)
		store.SetToken(session.Token{Access: "opaque", Refresh: "r1", ExpiresAt: at})

		Convey("Then it is kept as supplied", func() {
			So(store.Snapshot().ExpiresAt.Equal(at), ShouldBeTrue)
		})
	})
}
