// Package consentlog records successful consent grants for auditing. Visitors
// are identified only by a keyed hash of their address and user agent.
package consentlog

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mssola/useragent"
	"golang.org/x/crypto/blake2b"

	"github.com/sendrec/videoconsent/internal/database"
	"github.com/sendrec/videoconsent/internal/provider"
)

const writeTimeout = 10 * time.Second

var ErrHashKeyTooLong = fmt.Errorf("visitor hash key longer than %d bytes", blake2b.Size)

// CountryResolver maps an address to an ISO country code, "" when unknown.
type CountryResolver interface {
	Country(addr string) string
}

// Grant is one consent decision as seen by the HTTP service.
type Grant struct {
	Provider   provider.Provider
	InstanceID string
	IP         string
	UserAgent  string
	Backend    string
}

type Recorder struct {
	db      database.DBTX
	geo     CountryResolver
	hashKey []byte
	wg      sync.WaitGroup
}

// New returns a Recorder. hashKey may be empty, which leaves the visitor
// hash unkeyed.
func New(db database.DBTX, geo CountryResolver, hashKey []byte) (*Recorder, error) {
	if len(hashKey) > blake2b.Size {
		return nil, ErrHashKeyTooLong
	}
	return &Recorder{db: db, geo: geo, hashKey: hashKey}, nil
}

func (r *Recorder) VisitorHash(ip, userAgent string) string {
	h, err := blake2b.New(16, r.hashKey)
	if err != nil {
		// key length is checked in New
		panic(err)
	}
	h.Write([]byte(ip))
	h.Write([]byte{0})
	h.Write([]byte(userAgent))
	return hex.EncodeToString(h.Sum(nil))
}

// Record writes g synchronously. Grants from bots are skipped without error.
func (r *Recorder) Record(ctx context.Context, g Grant) error {
	ua := useragent.New(g.UserAgent)
	if g.UserAgent != "" && ua.Bot() {
		slog.Debug("consentlog: skipping bot", "user_agent", g.UserAgent)
		return nil
	}
	browser, _ := ua.Browser()

	var country string
	if r.geo != nil {
		country = r.geo.Country(g.IP)
	}

	if _, err := r.db.Exec(ctx,
		`INSERT INTO consent_grants (provider, instance_id, visitor_hash, country, browser, mobile, backend)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(g.Provider), g.InstanceID, r.VisitorHash(g.IP, g.UserAgent), country, browser, ua.Mobile(), g.Backend,
	); err != nil {
		return fmt.Errorf("insert consent grant: %w", err)
	}
	return nil
}

// RecordAsync writes g in the background. Failures are only logged.
func (r *Recorder) RecordAsync(g Grant) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := r.Record(ctx, g); err != nil {
			slog.Error("consentlog: failed to record grant", "provider", g.Provider, "instance", g.InstanceID, "error", err)
		}
	}()
}

// Wait blocks until every pending RecordAsync has finished.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

// ProviderCount is one row of a grant summary.
type ProviderCount struct {
	Provider string `json:"provider"`
	Country  string `json:"country"`
	Grants   int64  `json:"grants"`
	Visitors int64  `json:"visitors"`
}

// Summary aggregates grants since the given time by provider and country.
func (r *Recorder) Summary(ctx context.Context, since time.Time) ([]ProviderCount, error) {
	rows, err := r.db.Query(ctx,
		`SELECT provider, country, COUNT(*), COUNT(DISTINCT visitor_hash)
		 FROM consent_grants
		 WHERE granted_at >= $1
		 GROUP BY provider, country
		 ORDER BY provider, COUNT(*) DESC`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("query consent summary: %w", err)
	}
	defer rows.Close()

	counts := []ProviderCount{}
	for rows.Next() {
		var c ProviderCount
		if err := rows.Scan(&c.Provider, &c.Country, &c.Grants, &c.Visitors); err != nil {
			return nil, fmt.Errorf("scan consent summary: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
