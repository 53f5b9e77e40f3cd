package consent

import (
	"context"
	"net/http"
	"time"

	"github.com/sendrec/videoconsent/internal/provider"
)

const (
	CookieLifetime = 14 * 24 * time.Hour
	cookieGranted  = "true"
)

func CookieName(p provider.Provider) string {
	return string(p) + "-video-consent"
}

type CookieJar interface {
	Cookie(name string) (*http.Cookie, error)
	SetCookie(c *http.Cookie)
}

// CookieStore keeps consent in a per-provider cookie. A missing cookie is a
// denial; there is no unknown state in this store.
type CookieStore struct {
	jar    CookieJar
	secure bool
	now    func() time.Time
}

func NewCookieStore(jar CookieJar, secure bool) *CookieStore {
	return &CookieStore{jar: jar, secure: secure, now: time.Now}
}

func (s *CookieStore) Status(p provider.Provider) Status {
	if p == provider.None {
		return Denied
	}
	c, err := s.jar.Cookie(CookieName(p))
	if err != nil || c.Value != cookieGranted {
		return Denied
	}
	return Granted
}

func (s *CookieStore) Grant(ctx context.Context, p provider.Provider) error {
	if p == provider.None {
		return ErrNoProvider
	}
	s.jar.SetCookie(&http.Cookie{
		Name:     CookieName(p),
		Value:    cookieGranted,
		Path:     "/",
		Expires:  s.now().Add(CookieLifetime),
		MaxAge:   int(CookieLifetime / time.Second),
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// RequestJar reads cookies from a request and writes them to its response.
// Cookies written during the request are visible to later reads, so every
// widget rendered in the same response sees a fresh grant.
type RequestJar struct {
	w       http.ResponseWriter
	r       *http.Request
	written map[string]*http.Cookie
}

func NewRequestJar(w http.ResponseWriter, r *http.Request) *RequestJar {
	return &RequestJar{w: w, r: r, written: map[string]*http.Cookie{}}
}

func (j *RequestJar) Cookie(name string) (*http.Cookie, error) {
	if c, ok := j.written[name]; ok {
		return c, nil
	}
	return j.r.Cookie(name)
}

func (j *RequestJar) SetCookie(c *http.Cookie) {
	http.SetCookie(j.w, c)
	j.written[c.Name] = c
}
