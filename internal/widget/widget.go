// Package widget renders a consent-gated video embed. Each Widget is one
// instance bound to a Context, whose consent store, global options and
// broadcast bus are shared by every instance in that environment.
package widget

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"maps"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/sendrec/videoconsent/internal/broadcast"
	"github.com/sendrec/videoconsent/internal/consent"
	"github.com/sendrec/videoconsent/internal/options"
	"github.com/sendrec/videoconsent/internal/provider"
)

type State int

const (
	Unclassified State = iota
	AwaitingConsent
	Active
)

func (s State) String() string {
	switch s {
	case AwaitingConsent:
		return "awaiting-consent"
	case Active:
		return "active"
	default:
		return "unclassified"
	}
}

// Context is the environment shared by a set of widget instances.
type Context struct {
	Consent consent.Store
	Options *options.Global
	Bus     *broadcast.Bus
	// Origin is the scheme and host of the embedding page, passed to YouTube.
	Origin string
	// Nonce is the CSP nonce for inline styles.
	Nonce string
}

// Target describes the element a click landed on.
type Target struct {
	Tag string
}

type Output struct {
	State    State
	Provider provider.Provider
	VideoID  string
	HTML     template.HTML
}

// Widget is not safe for concurrent use; all calls for one environment are
// expected to come from a single goroutine, as broadcasts do.
type Widget struct {
	ctx              *Context
	id               string
	attrs            map[string]string
	justConfirmed    bool
	restoreConfirmed bool
	output           Output
	unsubscribe      func()
}

type Option func(*Widget)

// WithInstanceID reuses an identifier issued by an earlier render, so scoped
// styles keep matching across round trips. Malformed IDs are ignored.
func WithInstanceID(id string) Option {
	return func(w *Widget) {
		if ValidInstanceID(id) {
			w.id = id
		}
	}
}

// WithJustConfirmed carries a confirmation made in an earlier round trip,
// for backends whose grant only lands after the click has been answered. It
// is ignored when autoplay-on-confirm is off.
func WithJustConfirmed() Option {
	return func(w *Widget) {
		w.restoreConfirmed = true
	}
}

var instanceIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

// ValidInstanceID reports whether id can be used in a scoped selector.
func ValidInstanceID(id string) bool {
	return instanceIDPattern.MatchString(id)
}

func New(ctx *Context, attrs map[string]string, opts ...Option) *Widget {
	w := &Widget{ctx: ctx, id: newInstanceID(), attrs: maps.Clone(attrs)}
	if w.attrs == nil {
		w.attrs = map[string]string{}
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.restoreConfirmed {
		if ok, err := w.view().Bool(options.AutoplayOnConfirm); err == nil && ok {
			w.justConfirmed = true
		}
	}
	return w
}

// newInstanceID is time-ordered with a random suffix.
func newInstanceID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (w *Widget) ID() string {
	return w.id
}

func (w *Widget) Attribute(name string) (string, bool) {
	v, ok := w.attrs[name]
	return v, ok
}

func (w *Widget) Attributes() map[string]string {
	return maps.Clone(w.attrs)
}

func (w *Widget) State() State {
	return w.output.State
}

func (w *Widget) Output() Output {
	return w.output
}

func (w *Widget) view() options.View {
	view := options.View{Instance: w.attrs}
	if w.ctx.Options != nil {
		view.Global = w.ctx.Options
	}
	return view
}

// Mount subscribes the instance to rerender broadcasts and renders it.
func (w *Widget) Mount() error {
	if w.unsubscribe == nil && w.ctx.Bus != nil {
		w.unsubscribe = w.ctx.Bus.Subscribe(w.rerender)
	}
	_, err := w.Render()
	return err
}

func (w *Widget) Unmount() {
	if w.unsubscribe != nil {
		w.unsubscribe()
		w.unsubscribe = nil
	}
}

func (w *Widget) mounted() bool {
	return w.unsubscribe != nil
}

func (w *Widget) rerender() {
	if _, err := w.Render(); err != nil {
		slog.Warn("widget rerender failed", "instance", w.id, "error", err)
	}
}

// SetAttribute changes one attribute and reclassifies from scratch; a
// pending just-confirmed autoplay does not survive it.
func (w *Widget) SetAttribute(name, value string) error {
	w.attrs[name] = value
	w.justConfirmed = false
	_, err := w.Render()
	return err
}

func (w *Widget) RemoveAttribute(name string) error {
	delete(w.attrs, name)
	w.justConfirmed = false
	_, err := w.Render()
	return err
}

// Click handles an interaction with the consent prompt. Clicks on links are
// ignored. Otherwise consent is granted for the instance's provider and
// every instance in the environment is re-rendered.
func (w *Widget) Click(ctx context.Context, target Target) error {
	if strings.EqualFold(target.Tag, "a") {
		return nil
	}

	view := w.view()
	p, id := provider.Parse(view.String(options.Src))
	if id == "" {
		return consent.ErrNoProvider
	}
	s, err := resolveSettings(view)
	if err != nil {
		return err
	}

	if err := w.ctx.Consent.Grant(ctx, p); err != nil {
		return fmt.Errorf("grant %s consent: %w", p, err)
	}

	if s.autoplayOnConfirm {
		w.justConfirmed = true
	}

	if w.ctx.Bus != nil {
		w.ctx.Bus.Broadcast()
	}
	if !w.mounted() || w.ctx.Bus == nil {
		_, err := w.Render()
		return err
	}
	return nil
}

// Render recomputes provider, video ID and consent and rebuilds the markup.
// It is idempotent for unchanged inputs. When the options cannot be read the
// widget falls back to an empty unclassified output; it never keeps showing
// a player built from older options.
func (w *Widget) Render() (Output, error) {
	view := w.view()
	p, id := provider.Parse(view.String(options.Src))

	out := Output{State: Unclassified, Provider: p, VideoID: id}
	if id == "" {
		w.output = out
		return out, nil
	}

	s, err := resolveSettings(view)
	if err != nil {
		w.output = out
		return out, err
	}

	if w.ctx.Consent.Status(p) == consent.Granted {
		out.State = Active
	} else {
		out.State = AwaitingConsent
	}

	html, err := renderMarkup(markupInput{
		instanceID:    w.id,
		nonce:         w.ctx.Nonce,
		origin:        w.ctx.Origin,
		state:         out.State,
		provider:      p,
		videoID:       id,
		settings:      s,
		justConfirmed: w.justConfirmed,
	})
	if err != nil {
		out.State = Unclassified
		w.output = out
		return out, err
	}
	out.HTML = html
	w.output = out
	return out, nil
}

// HTML wraps the last render in the widget's host element. Unclassified
// widgets are emitted hidden and empty.
func (w *Widget) HTML() (template.HTML, error) {
	attrs, err := json.Marshal(w.attrs)
	if err != nil {
		return "", fmt.Errorf("encode widget attributes: %w", err)
	}
	return renderHost(hostData{
		InstanceID: w.id,
		Attributes: string(attrs),
		Provider:   string(w.output.Provider),
		State:      w.output.State.String(),
		Hidden:     w.output.State == Unclassified,
		Inner:      w.output.HTML,
	})
}
