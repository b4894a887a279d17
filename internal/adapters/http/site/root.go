// Package site serves the embedded spectator page: challenge list plus the
// live leaderboard stream.
package site

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// Register attaches the spectator page to router at / and its assets under
// /assets/.
func Register(_ context.Context, router *httprouter.Router) {
	if router == nil {
		panic("router is nil")
	}

	router.GET("/", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		http.ServeFileFS(w, r, staticFS, "static/index.html")
	})
	router.ServeFiles("/assets/*filepath", FS())
}
