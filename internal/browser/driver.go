// File: internal/browser/driver.go
package browser

import (
	"context"
	"errors"
)

// Sentinel errors surfaced by driver implementations.
var (
	// ErrStaleElement indicates the element behind a handle left the DOM.
	ErrStaleElement = errors.New("browser: element is stale or detached")
	// ErrNotFound indicates a selector matched nothing.
	ErrNotFound = errors.New("browser: no matching element")
)

// Element is a snapshot of one matched DOM node. Handle remains valid
// until the node detaches or the page navigates.
type Element struct {
	Handle string
	Tag    string
	Text   string

	Top    float64
	Left   float64
	Width  float64
	Height float64

	Attrs map[string]string
}

// InteractionKind enumerates the ways the driver can act on an element.
type InteractionKind string

const (
	// InteractClick is a trusted mouse press/release at the element center.
	InteractClick InteractionKind = "click"
	// InteractPointerSequence is a humanized pointer approach ending in a click.
	InteractPointerSequence InteractionKind = "pointer_sequence"
	// InteractKeyActivate focuses the element and presses Enter.
	InteractKeyActivate InteractionKind = "key_activate"
	// InteractShortcut sends a modifier chord (e.g. Ctrl+Enter) to the element.
	InteractShortcut InteractionKind = "shortcut"
	// InteractEventFlood dispatches a burst of synthetic DOM events.
	InteractEventFlood InteractionKind = "event_flood"
	// InteractFocus focuses the element.
	InteractFocus InteractionKind = "focus"
	// InteractSelectAll selects the element's editable content.
	InteractSelectAll InteractionKind = "select_all"
	// InteractEscape sends Escape with the element focused.
	InteractEscape InteractionKind = "escape"
)

// Modifier bits for InteractShortcut.
type Modifier int

const (
	ModAlt Modifier = 1 << iota
	ModCtrl
	ModMeta
	ModShift
)

// Interaction describes one action to dispatch on an element.
type Interaction struct {
	Kind InteractionKind
	// Key is the key name for shortcut interactions, e.g. "Enter".
	Key       string
	Modifiers Modifier
}

// Driver is the abstract UI surface the automation modules talk to.
// Implementations own the mapping from handles to live DOM nodes; the
// callers never see selectors beyond this interface's Query arguments.
type Driver interface {
	// Navigate loads a URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) error
	// Reload reloads the current page, resetting the DOM environment.
	Reload(ctx context.Context) error
	// ScrollBy scrolls vertically by the given number of viewport heights.
	ScrollBy(ctx context.Context, viewports float64) error

	// Query matches selector inside the element scope (document scope when
	// scope is empty) and returns handles for the visible matches.
	Query(ctx context.Context, scope, selector string) ([]Element, error)
	// ReadText returns the rendered text of the element.
	ReadText(ctx context.Context, handle string) (string, error)
	// WriteText inserts text through the trusted input path, replacing
	// any existing content.
	WriteText(ctx context.Context, handle, text string) error
	// SetText writes content directly into the node and fires synthetic
	// input events. Degraded path for editors that swallow trusted input.
	SetText(ctx context.Context, handle, text string) error
	// Dispatch performs one interaction on the element.
	Dispatch(ctx context.Context, handle string, in Interaction) error
	// IsAttached reports whether the handle still resolves to a
	// connected DOM node.
	IsAttached(ctx context.Context, handle string) (bool, error)
	// SetAttribute sets an attribute on the element.
	SetAttribute(ctx context.Context, handle, name, value string) error
	// Evaluate runs a script and unmarshals its JSON result into out.
	Evaluate(ctx context.Context, script string, out any) error

	Close(ctx context.Context) error
}
