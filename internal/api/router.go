package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	apiContext "leadrelay/internal/api/context"
	"leadrelay/internal/api/handlers"
	"leadrelay/internal/api/middleware"
	"leadrelay/internal/pkg/errors"
)

type Dependencies struct {
	WebhookHandler   *handlers.WebhookHandler
	SessionHandler   *handlers.SessionHandler
	ToolsHandler     *handlers.ToolsHandler
	HealthHandler    *handlers.HealthHandler
	AuthMiddleware   *middleware.AuthMiddleware
	RateLimiter      *middleware.RateLimiter
	SessionPerMinute int
	// Static serves every path no route matches. Nil disables it.
	Static http.FileSystem
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	authMid := deps.AuthMiddleware

	// Inbound platform notifications
	router.POST("/webhook", wrap(deps.WebhookHandler.Handle))

	// Operator endpoints
	router.POST("/create-session",
		chain(deps.SessionHandler.Create, deps.RateLimiter.RateLimit("session", deps.SessionPerMinute), authMid.Handle))
	router.GET("/tools", chain(deps.ToolsHandler.List, authMid.Handle))

	router.GET("/healthz", wrap(deps.HealthHandler.Check))

	router.NotFound = staticOrNotFound(deps.Static)

	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v interface{}) {
		log.Error().
			Str("path", r.URL.Path).
			Interface("panic", v).
			Msg("Recovered from handler panic")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, fmt.Sprint(v), nil)
	}

	return router
}

// staticOrNotFound serves fs for GET and HEAD; every other unmatched request
// gets a JSON 404.
func staticOrNotFound(fs http.FileSystem) http.Handler {
	var files http.Handler
	if fs != nil {
		files = http.FileServer(fs)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if files != nil && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
			files.ServeHTTP(w, r)
			return
		}
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Not found", nil)
	})
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
