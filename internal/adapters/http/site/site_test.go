package site

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSiteHandler(t *testing.T) {
	Convey("Given a site handler", t, func() {
		router := httprouter.New()

		Convey("When registering the site handler", func() {
			Register(context.Background(), router)

			Convey("Then it serves the spectator page at /", func() {
				req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
				w := httptest.NewRecorder()
				router.ServeHTTP(w, req)

				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/html")
				So(w.Body.String(), ShouldContainSubstring, `id="leaderboard"`)
			})

			Convey("And it serves the assets", func() {
				for _, path := range []string{"/assets/app.js", "/assets/app.css"} {
					req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
					w := httptest.NewRecorder()
					router.ServeHTTP(w, req)
					So(w.Code, ShouldEqual, http.StatusOK)
				}
			})

			Convey("And unknown assets are not found", func() {
				req := httptest.NewRequest(http.MethodGet, "/assets/missing.js", http.NoBody)
				w := httptest.NewRecorder()
				router.ServeHTTP(w, req)
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})

	Convey("Given a nil router", t, func() {
		So(func() { Register(context.Background(), nil) }, ShouldPanic)
	})
}
