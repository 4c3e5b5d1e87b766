package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// ClientCookie names the cookie identifying a browser client of the portal.
const ClientCookie = "feresegna_sid"

// ClientID makes sure every request carries a client id cookie and puts the
// id in the request context.
func ClientID(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(ClientCookie); err == nil {
				if _, err := uuid.Parse(c.Value); err == nil {
					id = c.Value
				}
			}
			if id == "" {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     ClientCookie,
					Value:    id,
					Path:     "/",
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx := context.WithValue(r.Context(), ClientIDContextKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClientID returns the client id set by ClientID.
func GetClientID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ClientIDContextKey).(string)
	return id, ok && id != ""
}
