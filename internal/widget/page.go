package widget

import "slices"

// Page is the set of instances mounted in one environment.
type Page struct {
	ctx     *Context
	widgets []*Widget
}

func NewPage(ctx *Context) *Page {
	return &Page{ctx: ctx}
}

func (p *Page) Context() *Context {
	return p.ctx
}

// Add creates and mounts an instance. The instance is kept even when its
// first render fails so that a later attribute fix can recover it.
func (p *Page) Add(attrs map[string]string, opts ...Option) (*Widget, error) {
	w := New(p.ctx, attrs, opts...)
	p.widgets = append(p.widgets, w)
	return w, w.Mount()
}

func (p *Page) Instances() []*Widget {
	return slices.Clone(p.widgets)
}

func (p *Page) Find(id string) *Widget {
	for _, w := range p.widgets {
		if w.ID() == id {
			return w
		}
	}
	return nil
}

func (p *Page) Close() {
	for _, w := range p.widgets {
		w.Unmount()
	}
	p.widgets = nil
}
