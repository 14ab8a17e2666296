package http

import (
	"context"
	"net/http"
	"strings"

	"welth/internal/core"
	applog "welth/internal/log"
	"welth/internal/services"
)

// Identity headers set by the authenticating proxy.
const (
	HeaderAuthSubject = "X-Auth-Subject"
	HeaderAuthEmail   = "X-Auth-Email"
	HeaderAuthName    = "X-Auth-Name"
	HeaderAuthImage   = "X-Auth-Image"
)

type userKey struct{}

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

func identityFrom(r *http.Request) services.Identity {
	return services.Identity{
		Subject:  strings.TrimSpace(r.Header.Get(HeaderAuthSubject)),
		Email:    strings.TrimSpace(r.Header.Get(HeaderAuthEmail)),
		Name:     sanitizeInput(r.Header.Get(HeaderAuthName)),
		ImageURL: strings.TrimSpace(r.Header.Get(HeaderAuthImage)),
	}
}

// authenticated resolves the caller to a user before running h. Requests
// without an identity get 401.
func (s *Server) authenticated(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := identityFrom(r)
		if id.Subject == "" {
			s.writeError(w, r, core.ErrUnauthorized)
			return
		}
		user, err := s.ledger.ResolveUser(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), userKey{}, user.ID)
		ctx = applog.WithUser(ctx, user.ID)
		h(w, r.WithContext(ctx))
	})
}
