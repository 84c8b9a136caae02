package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"oidcrefresh/refresh"
)

// Routes constructs the HTTP router. The authentication endpoints stay
// outside the refresh middleware; everything else the router serves is
// guarded by it.
func (a *App) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(a.Logger))
	r.Use(RecoveryMiddleware(a.Logger))
	if !a.Config.Server.DevMode {
		r.Use(SecurityHeadersMiddleware(a.Config.Server.TLS.HSTSMaxAge))
	}

	r.Get(loginPath, a.handleAuthenticate)
	r.Get(callbackPath, a.handleCallback)
	r.Get(logoutPath, a.handleLogout)
	r.Post(logoutPath, a.handleLogout)

	r.Group(func(pr chi.Router) {
		pr.Use(refresh.Middleware(a.Refresh, a.Loader, a.Logger))

		pr.Get("/", a.handleIndex)
		pr.Get("/dashboard", a.handleDashboard)
		pr.Post("/api/profile", a.handleProfileUpdate)
	})

	return r
}
