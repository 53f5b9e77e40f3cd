// Package geoip maps visitor addresses to countries for the consent log.
package geoip

import (
	"log/slog"
	"net"

	"github.com/oschwald/maxminddb-golang"
)

// Resolver is disabled, and answers "", when no database could be opened.
type Resolver struct {
	db *maxminddb.Reader
}

type countryRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	RegisteredCountry struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"registered_country"`
}

// Open never fails: a missing or unreadable database only disables lookups.
func Open(path string) *Resolver {
	if path == "" {
		return &Resolver{}
	}
	db, err := maxminddb.Open(path)
	if err != nil {
		slog.Warn("geoip: failed to open database, country lookup disabled", "path", path, "error", err)
		return &Resolver{}
	}
	slog.Info("geoip: loaded database", "path", path, "type", db.Metadata.DatabaseType)
	return &Resolver{db: db}
}

func (r *Resolver) Enabled() bool {
	return r != nil && r.db != nil
}

// Country returns the ISO code for addr, which may carry a port. The
// registered country is used when the database has no location country.
func (r *Resolver) Country(addr string) string {
	if !r.Enabled() || addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return ""
	}

	var record countryRecord
	if err := r.db.Lookup(ip, &record); err != nil {
		slog.Debug("geoip: lookup failed", "error", err)
		return ""
	}
	if record.Country.ISOCode != "" {
		return record.Country.ISOCode
	}
	return record.RegisteredCountry.ISOCode
}

func (r *Resolver) Close() error {
	if r.Enabled() {
		return r.db.Close()
	}
	return nil
}
