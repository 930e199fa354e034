package negotiation

import (
	"context"
	"fmt"
	"strings"
)

// Response is the student's answer to a quote.
type Response string

const (
	Accept Response = "ACCEPT"
	Reject Response = "REJECT"
)

// ParseResponse accepts exactly ACCEPT or REJECT.
func ParseResponse(s string) (Response, error) {
	switch r := Response(s); r {
	case Accept, Reject:
		return r, nil
	}
	return "", fmt.Errorf("unknown quote response %q", s)
}

// ProviderDirectory answers whether an id belongs to a registered provider.
// Identity storage lives outside this service.
type ProviderDirectory interface {
	IsProvider(ctx context.Context, id string) bool
}

// StaticDirectory is a ProviderDirectory backed by a fixed id list.
// An empty list accepts every non-empty id.
type StaticDirectory struct {
	ids map[string]struct{}
}

// NewStaticDirectory builds a directory from ids.
func NewStaticDirectory(ids []string) *StaticDirectory {
	d := &StaticDirectory{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			d.ids[id] = struct{}{}
		}
	}
	return d
}

func (d *StaticDirectory) IsProvider(_ context.Context, id string) bool {
	if id == "" {
		return false
	}
	if len(d.ids) == 0 {
		return true
	}
	_, ok := d.ids[id]
	return ok
}
