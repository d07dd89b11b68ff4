package site

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSiteHandler(t *testing.T) {
	Convey("Given a registered landing page", t, func() {
		mux := http.NewServeMux()
		Register(context.Background(), mux)

		Convey("Then the root path serves the page", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/html")
			body, _ := io.ReadAll(w.Body)
			So(string(body), ShouldContainSubstring, "/api-docs")
		})

		Convey("Then other paths are not served", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/some-asset", nil))
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then other methods are rejected", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})

	Convey("Given a nil mux", t, func() {
		So(func() { Register(context.Background(), nil) }, ShouldPanic)
	})
}
