// Package consent resolves whether a visitor has allowed a video provider to
// load, from exactly one backing store per deployment.
package consent

import (
	"context"
	"errors"

	"github.com/sendrec/videoconsent/internal/provider"
)

type Status int

const (
	Unknown Status = iota
	Denied
	Granted
)

func (s Status) String() string {
	switch s {
	case Denied:
		return "denied"
	case Granted:
		return "granted"
	default:
		return "unknown"
	}
}

var (
	ErrReadOnly   = errors.New("consent store has no write path")
	ErrNoProvider = errors.New("no video provider to grant consent for")
	ErrNoService  = errors.New("consent platform has no service for provider")
)

// Store is one consent backend. Grant returns once the backend has
// acknowledged the grant; callers broadcast or re-render afterwards.
type Store interface {
	Status(p provider.Provider) Status
	Grant(ctx context.Context, p provider.Provider) error
}

// StaticStore answers from configuration alone.
type StaticStore struct {
	Granted bool
}

func (s StaticStore) Status(p provider.Provider) Status {
	if s.Granted && p != provider.None {
		return Granted
	}
	return Denied
}

func (s StaticStore) Grant(ctx context.Context, p provider.Provider) error {
	return ErrReadOnly
}
