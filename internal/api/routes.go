package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"starter/internal/models"
	"starter/internal/ratelimit"
)

// RouteOption configures optional route behavior.
type RouteOption func(*mux.Router)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(r *mux.Router) {
		r.Use(otelmux.Middleware(serviceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health" &&
					r.URL.Path != "/api/health" &&
					r.URL.Path != "/metrics"
			}),
		))
	}
}

// SetupRoutes configures the HTTP routes for the API. limiters may be nil, and
// are ignored when rate limiting is disabled in config.
//
// Limiter bindings:
//   - /health and /api/health are never limited
//   - every other /api route passes the general limiter
//   - todo mutations additionally pass the strict limiter
//   - /api/auth and everything below it additionally pass the auth limiter
//
// Every route is registered on the root router with its full path. Nested
// sibling subrouters make mux report wrong-method requests as 404 instead of
// 405, so limiters are attached per route.
func SetupRoutes(handlers *Handlers, config *models.Config, limiters *ratelimit.Presets, opts ...RouteOption) *mux.Router {
	router := mux.NewRouter()

	for _, opt := range opts {
		opt(router)
	}

	var general, strict, auth *ratelimit.Limiter
	if config.RateLimit.Enabled && limiters != nil {
		general, strict, auth = limiters.General, limiters.Strict, limiters.Auth
	}

	// Preflights are matched before anything limited. A MatcherFunc is used
	// instead of Methods so other methods do not turn 404s into 405s.
	router.MatcherFunc(func(r *http.Request, _ *mux.RouteMatch) bool {
		return r.Method == http.MethodOptions
	}).HandlerFunc(preflightHandler)

	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	router.HandleFunc("/api/health", handlers.HealthCheck).Methods("GET")

	router.Handle("/api/hello", limit(handlers.Hello, general)).Methods("GET")
	router.Handle("/api/version", limit(handlers.Version, general)).Methods("GET")

	router.Handle("/api/todos", limit(handlers.ListTodos, general)).Methods("GET")
	router.Handle("/api/todos", limit(handlers.CreateTodo, general, strict)).Methods("POST")
	router.Handle("/api/todos/{id}", limit(handlers.GetTodo, general)).Methods("GET")
	router.Handle("/api/todos/{id}", limit(handlers.UpdateTodo, general, strict)).Methods("PUT")
	router.Handle("/api/todos/{id}", limit(handlers.DeleteTodo, general, strict)).Methods("DELETE")

	// Credential handlers live elsewhere; the prefix is still metered so
	// brute-force traffic is throttled before it reaches a 404.
	authNotFound := limit(handlers.APINotFound, general, auth)
	router.Handle("/api/auth", authNotFound)
	router.PathPrefix("/api/auth/").Handler(authNotFound)

	router.Use(recoveryMiddleware)
	router.Use(loggingMiddleware)
	if config.Server.CORS.Enabled {
		router.Use(corsMiddleware(config.Server.CORS))
	}

	// Unmatched requests skip router middleware, so wrap these handlers directly.
	router.NotFoundHandler = recoveryMiddleware(loggingMiddleware(
		notFoundHandler(handlers, newSPAHandler(config.Server.StaticDir))))
	router.MethodNotAllowedHandler = recoveryMiddleware(loggingMiddleware(
		http.HandlerFunc(methodNotAllowedHandler)))

	return router
}

// limit wraps h in the given limiters, outermost first, skipping nil ones.
// The innermost limiter writes its headers last, so its values are reported.
func limit(h http.HandlerFunc, limiters ...*ratelimit.Limiter) http.Handler {
	var handler http.Handler = h
	for i := len(limiters) - 1; i >= 0; i-- {
		if limiters[i] != nil {
			handler = ratelimit.Middleware(limiters[i])(handler)
		}
	}
	return handler
}

// notFoundHandler sends unknown /api paths a JSON 404 and everything else to
// the SPA, when one is being served.
func notFoundHandler(handlers *Handlers, spa *spaHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if spa == nil || r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
			handlers.APINotFound(w, r)
			return
		}
		spa.ServeHTTP(w, r)
	})
}
