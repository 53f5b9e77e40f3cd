package consent

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/sendrec/videoconsent/internal/broadcast"
	"github.com/sendrec/videoconsent/internal/provider"
)

// Service is one entry in a consent platform's service list.
type Service struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Platform is an external consent-management platform.
type Platform interface {
	Services(ctx context.Context) ([]Service, error)
	AcceptService(ctx context.Context, id string) error
}

// PlatformStore mirrors the consent decisions of an external platform. The
// map is only ever written by Apply, which the platform's consent-changed
// events feed; Grant asks the platform and waits for it.
type PlatformStore struct {
	platform Platform
	bus      *broadcast.Bus

	mu       sync.RWMutex
	consents map[string]bool
}

func NewPlatformStore(platform Platform, bus *broadcast.Bus) *PlatformStore {
	return &PlatformStore{platform: platform, bus: bus, consents: map[string]bool{}}
}

func matchesProvider(serviceName string, p provider.Provider) bool {
	return strings.Contains(strings.ToLower(serviceName), string(p))
}

func (s *PlatformStore) Status(p provider.Provider) Status {
	if p == provider.None {
		return Denied
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.consents[p.DisplayName()]; ok {
		return statusOf(v)
	}
	for _, name := range slices.Sorted(maps.Keys(s.consents)) {
		if matchesProvider(name, p) {
			return statusOf(s.consents[name])
		}
	}
	return Unknown
}

func statusOf(granted bool) Status {
	if granted {
		return Granted
	}
	return Denied
}

// Apply merges a consent-changed event into the shared map and broadcasts.
// Events for other providers broadcast too; re-rendering is idempotent.
func (s *PlatformStore) Apply(consents map[string]bool) {
	s.mu.Lock()
	maps.Copy(s.consents, consents)
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Broadcast()
	}
}

func (s *PlatformStore) Snapshot() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.consents)
}

// Grant accepts the first platform service that belongs to p. The accept call
// cannot be cancelled; the widget keeps waiting for the platform however long
// it takes. The shared map is left for the platform's event to update.
func (s *PlatformStore) Grant(ctx context.Context, p provider.Provider) error {
	if p == provider.None {
		return ErrNoProvider
	}
	ctx = context.WithoutCancel(ctx)

	services, err := s.platform.Services(ctx)
	if err != nil {
		return fmt.Errorf("list consent services: %w", err)
	}

	service, ok := lo.Find(services, func(svc Service) bool {
		return matchesProvider(svc.Name, p)
	})
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoService, p)
	}

	if err := s.platform.AcceptService(ctx, service.ID); err != nil {
		return fmt.Errorf("accept consent service %s: %w", service.ID, err)
	}
	slog.Info("consent platform accepted service", "provider", p, "service_id", service.ID, "service", service.Name)

	if s.bus != nil {
		s.bus.Broadcast()
	}
	return nil
}
