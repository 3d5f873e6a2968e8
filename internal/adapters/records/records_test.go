package records_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nndl/courseboard/internal/adapters/records"
	"github.com/nndl/courseboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	logger.Init()
}

const keyedBody = `{
	"-abc": {"teamName":"alpha","modelName":"m1","email":"a@columbia.edu","submissionTime":"2026-03-01T10:00:00Z","metrics":{"superAccuracy":0.75}},
	"-def": {"teamName":"bravo","modelName":"m2","email":"b@columbia.edu","metrics":{"superAccuracy":0.91,"seenSubAccuracy":0.8}}
}`

func TestFetch(t *testing.T) {
	Convey("Given a store answering with a keyed object", t, func() {
		var gotOrderBy string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotOrderBy = r.URL.Query().Get("orderBy")
			w.Write([]byte(keyedBody))
		}))
		defer srv.Close()

		fetcher := records.NewHTTPFetcher(srv.URL, time.Second)

		Convey("When records are fetched", func() {
			got, err := fetcher.Fetch(context.Background())

			Convey("Then each entry's key becomes its record id", func() {
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 2)
				So(got[0].ID, ShouldEqual, "-abc")
				So(got[0].TeamName, ShouldEqual, "alpha")
				So(got[1].ID, ShouldEqual, "-def")
				So(*got[1].Metrics.SuperAccuracy, ShouldEqual, 0.91)
			})

			Convey("And timestamps parse while absent ones stay zero", func() {
				So(got[0].SubmissionTime.IsZero(), ShouldBeFalse)
				So(got[1].SubmissionTime.IsZero(), ShouldBeTrue)
			})

			Convey("And the query asked the store to pre-order", func() {
				So(gotOrderBy, ShouldEqual, `"metrics/superAccuracy"`)
			})
		})
	})

	Convey("Given a store answering with a flat array", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"id":"r1","teamName":"alpha"},{"id":"r2","teamName":"bravo"}]`))
		}))
		defer srv.Close()

		fetcher := records.NewHTTPFetcher(srv.URL, time.Second)

		Convey("When records are fetched", func() {
			got, err := fetcher.Fetch(context.Background())

			Convey("Then the array decodes in order", func() {
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 2)
				So(got[0].ID, ShouldEqual, "r1")
				So(got[1].ID, ShouldEqual, "r2")
			})
		})
	})

	Convey("Given a store with no records yet", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`null`))
		}))
		defer srv.Close()

		fetcher := records.NewHTTPFetcher(srv.URL, time.Second)

		Convey("When records are fetched", func() {
			got, err := fetcher.Fetch(context.Background())

			Convey("Then the result is empty, not an error", func() {
				So(err, ShouldBeNil)
				So(got, ShouldBeEmpty)
			})
		})
	})

	Convey("Given a store that is down", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		fetcher := records.NewHTTPFetcher(srv.URL, time.Second)

		Convey("When records are fetched", func() {
			_, err := fetcher.Fetch(context.Background())

			Convey("Then the failure is an availability error", func() {
				So(errors.Is(err, records.ErrUnavailable), ShouldBeTrue)
			})
		})
	})

	Convey("Given a store answering garbage", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"broken`))
		}))
		defer srv.Close()

		fetcher := records.NewHTTPFetcher(srv.URL, time.Second)

		Convey("When records are fetched", func() {
			_, err := fetcher.Fetch(context.Background())

			So(errors.Is(err, records.ErrUnavailable), ShouldBeTrue)
		})
	})

	Convey("Given an endpoint URL that already has a query", t, func() {
		var rawQuery string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawQuery = r.URL.RawQuery
			w.Write([]byte(`null`))
		}))
		defer srv.Close()

		fetcher := records.NewHTTPFetcher(srv.URL+"/submissions.json?shallow=false", time.Second)

		Convey("When records are fetched", func() {
			_, err := fetcher.Fetch(context.Background())

			Convey("Then the orderBy parameter is appended, not clobbered", func() {
				So(err, ShouldBeNil)
				So(rawQuery, ShouldContainSubstring, "shallow=false")
				So(rawQuery, ShouldContainSubstring, "orderBy=")
			})
		})
	})
}
