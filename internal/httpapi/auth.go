package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/roach88/assignly/internal/domain"
)

// Identity headers set by the upstream identity proxy.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// Authenticator resolves the calling actor. Credentials and login live
// outside this service.
type Authenticator interface {
	Authenticate(r *http.Request) (domain.Actor, error)
}

// HeaderAuthenticator trusts identity headers injected by a proxy in front
// of the service.
type HeaderAuthenticator struct{}

func (HeaderAuthenticator) Authenticate(r *http.Request) (domain.Actor, error) {
	id := strings.TrimSpace(r.Header.Get(HeaderActorID))
	if id == "" {
		return domain.Actor{}, errors.New("missing " + HeaderActorID)
	}
	role, err := domain.ParseRole(r.Header.Get(HeaderActorRole))
	if err != nil {
		return domain.Actor{}, err
	}
	return domain.Actor{ID: id, Role: role}, nil
}

type actorKey struct{}

func withActor(ctx context.Context, a domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// actorFrom returns the authenticated actor. Only valid behind authenticate.
func actorFrom(ctx context.Context) domain.Actor {
	a, _ := ctx.Value(actorKey{}).(domain.Actor)
	return a
}
