package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/metinatakli/cinema-booking-core/internal/domain"
)

func (app *Application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")

				app.serverErrorResponse(w, r, fmt.Errorf("%s", err))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// requestLogger attaches a logger carrying the request id, method and path.
func (app *Application) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := app.logger.With(
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path)

		ctx := context.WithValue(r.Context(), loggerContextKey, logger)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loadIdentity puts the session's caller, if any, into the request context.
func (app *Application) loadIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userId := app.sessionManager.GetInt(r.Context(), SessionKeyUserId.String())
		if userId == 0 {
			next.ServeHTTP(w, r)
			return
		}

		role := domain.Role(app.sessionManager.GetString(r.Context(), SessionKeyRole.String()))
		if role == "" {
			role = domain.RoleUser
		}

		identity := domain.Identity{UserID: userId, Role: role}
		logger := app.contextGetLogger(r).With("user_id", userId)

		ctx := context.WithValue(r.Context(), identityContextKey, identity)
		ctx = context.WithValue(ctx, loggerContextKey, logger)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (app *Application) requireAuthentication(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := app.contextLookupIdentity(r); !ok {
			app.unauthorizedAccessResponse(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (app *Application) requireAdmin(next http.Handler) http.Handler {
	return app.requireAuthentication(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !app.contextGetIdentity(r).IsAdmin() {
			app.forbiddenResponse(w, r)
			return
		}

		next.ServeHTTP(w, r)
	}))
}
