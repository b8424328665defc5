package rendertest

import (
	"context"
	"time"

	"ordersync/lib/renderer"
)

// Element is a plain html snapshot.
type Element struct {
	Raw string
}

func (e Element) HTML() string {
	return e.Raw
}

func Elements(raw ...string) []renderer.Element {
	els := make([]renderer.Element, len(raw))
	for i, r := range raw {
		els[i] = Element{Raw: r}
	}
	return els
}

// Renderer is a scripted in-memory renderer for tests. The *Func
// fields drive behavior; unset fields fall back to inert defaults.
// Calls are recorded so tests can assert on interaction counts.
type Renderer struct {
	Location string

	NavigateFunc   func(url string) error
	CurrentURLFunc func() string
	ElementsFunc   func(selector string) []renderer.Element
	ClickFunc      func(el renderer.Element) error
	TypeFunc       func(el renderer.Element, text string) error

	NavigateCalls []string
	ClickCalls    []renderer.Element
	TypedText     []string
	QuitCalls     int
}

var _ renderer.Renderer = (*Renderer)(nil)

func (r *Renderer) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.NavigateCalls = append(r.NavigateCalls, url)
	r.Location = url
	if r.NavigateFunc != nil {
		return r.NavigateFunc(url)
	}
	return nil
}

func (r *Renderer) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if r.CurrentURLFunc != nil {
		return r.CurrentURLFunc(), nil
	}
	return r.Location, nil
}

func (r *Renderer) elements(selector string) []renderer.Element {
	if r.ElementsFunc == nil {
		return nil
	}
	return r.ElementsFunc(selector)
}

// WaitForElement does not actually wait, the scripted page either has
// the element or it doesn't.
func (r *Renderer) WaitForElement(ctx context.Context, selector string, timeout time.Duration) (renderer.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	els := r.elements(selector)
	if len(els) == 0 {
		return nil, nil
	}
	return els[0], nil
}

func (r *Renderer) Elements(ctx context.Context, selector string) ([]renderer.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.elements(selector), nil
}

func (r *Renderer) Click(ctx context.Context, el renderer.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.ClickCalls = append(r.ClickCalls, el)
	if r.ClickFunc != nil {
		return r.ClickFunc(el)
	}
	return nil
}

func (r *Renderer) TypeInto(ctx context.Context, el renderer.Element, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.TypedText = append(r.TypedText, text)
	if r.TypeFunc != nil {
		return r.TypeFunc(el, text)
	}
	return nil
}

func (r *Renderer) Quit(ctx context.Context) error {
	r.QuitCalls++
	return nil
}
