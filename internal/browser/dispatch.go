// File: internal/browser/dispatch.go
package browser

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/engager-cli/internal/humanize"
)

// Dispatch performs one interaction on the element behind handle.
func (d *ChromeDriver) Dispatch(ctx context.Context, handle string, in Interaction) error {
	switch in.Kind {
	case InteractClick:
		return d.click(ctx, handle)
	case InteractPointerSequence:
		return d.pointerSequence(ctx, handle)
	case InteractKeyActivate:
		return d.keyActivate(ctx, handle)
	case InteractShortcut:
		return d.shortcut(ctx, handle, in)
	case InteractEventFlood:
		return d.eventFlood(ctx, handle)
	case InteractFocus:
		return d.focus(ctx, handle)
	case InteractSelectAll:
		return d.focusAndSelectAll(ctx, handle)
	case InteractEscape:
		return d.escape(ctx, handle)
	default:
		return fmt.Errorf("unknown interaction kind %q", in.Kind)
	}
}

// click dispatches a trusted press/release at a point inside the element.
func (d *ChromeDriver) click(ctx context.Context, handle string) error {
	el, err := d.geometryOf(ctx, handle)
	if err != nil {
		return err
	}
	target := d.sim.TargetWithin(el.Left, el.Top, el.Width, el.Height)
	return d.clickAt(ctx, target)
}

func (d *ChromeDriver) clickAt(ctx context.Context, p humanize.Point) error {
	press := input.DispatchMouseEvent(input.MousePressed, p.X, p.Y).
		WithButton(input.Left).WithButtons(1).WithClickCount(1)
	release := input.DispatchMouseEvent(input.MouseReleased, p.X, p.Y).
		WithButton(input.Left).WithClickCount(1)

	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	hold := time.Duration(40+time.Now().UnixNano()%60) * time.Millisecond
	if err := d.RunActions(opCtx, press, chromedp.Sleep(hold), release); err != nil {
		if isStaleError(err) {
			return ErrStaleElement
		}
		return fmt.Errorf("dispatch click: %w", err)
	}

	d.pointerMu.Lock()
	d.lastPointer = p
	d.pointerMu.Unlock()
	return nil
}

// pointerSequence moves the virtual cursor along a humanized path into
// the element, then clicks. Falls back to a plain click when the
// simulator is disabled.
func (d *ChromeDriver) pointerSequence(ctx context.Context, handle string) error {
	if !d.sim.Enabled() {
		return d.click(ctx, handle)
	}

	el, err := d.geometryOf(ctx, handle)
	if err != nil {
		return err
	}
	target := d.sim.TargetWithin(el.Left, el.Top, el.Width, el.Height)

	d.pointerMu.Lock()
	start := d.lastPointer
	d.pointerMu.Unlock()

	path := d.sim.PointerPath(start, target)
	actions := make([]chromedp.Action, 0, len(path)*2)
	for _, p := range path {
		actions = append(actions,
			input.DispatchMouseEvent(input.MouseMoved, p.X, p.Y),
			chromedp.Sleep(time.Duration(4+time.Now().UnixNano()%9)*time.Millisecond),
		)
	}

	opCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	if err := d.RunActions(opCtx, actions...); err != nil {
		if isStaleError(err) {
			return ErrStaleElement
		}
		return fmt.Errorf("pointer approach: %w", err)
	}

	return d.clickAt(ctx, target)
}

// keyActivate focuses the element and presses Enter.
func (d *ChromeDriver) keyActivate(ctx context.Context, handle string) error {
	if err := d.focus(ctx, handle); err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := d.RunActions(opCtx, chromedp.KeyEvent("\r")); err != nil {
		if isStaleError(err) {
			return ErrStaleElement
		}
		return fmt.Errorf("key activate: %w", err)
	}
	return nil
}

// shortcut sends a modifier chord with the element focused. The Meta
// modifier is substituted for Ctrl on darwin hosts automatically.
func (d *ChromeDriver) shortcut(ctx context.Context, handle string, in Interaction) error {
	if err := d.focus(ctx, handle); err != nil {
		return err
	}

	mods := in.Modifiers
	if mods&ModCtrl != 0 && runtime.GOOS == "darwin" {
		mods = (mods &^ ModCtrl) | ModMeta
	}

	var cdpMods input.Modifier
	if mods&ModAlt != 0 {
		cdpMods |= input.ModifierAlt
	}
	if mods&ModCtrl != 0 {
		cdpMods |= input.ModifierCtrl
	}
	if mods&ModMeta != 0 {
		cdpMods |= input.ModifierMeta
	}
	if mods&ModShift != 0 {
		cdpMods |= input.ModifierShift
	}

	key := in.Key
	if key == "" {
		key = "Enter"
	}

	keyDown := input.DispatchKeyEvent(input.KeyDown).WithModifiers(cdpMods).WithKey(key)
	keyUp := input.DispatchKeyEvent(input.KeyUp).WithModifiers(cdpMods).WithKey(key)

	opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := d.RunActions(opCtx, keyDown, keyUp); err != nil {
		if isStaleError(err) {
			return ErrStaleElement
		}
		return fmt.Errorf("dispatch shortcut %s: %w", key, err)
	}
	return nil
}

// eventFlood dispatches a burst of synthetic pointer and mouse events on
// the node. Untrusted, but some handlers only listen for these.
func (d *ChromeDriver) eventFlood(ctx context.Context, handle string) error {
	script := fmt.Sprintf(`
	(function(sel) {
		const node = document.querySelector(sel);
		if (!node || !node.isConnected) return null;
		const rect = node.getBoundingClientRect();
		const opts = {
			bubbles: true, cancelable: true, view: window,
			clientX: rect.left + rect.width / 2,
			clientY: rect.top + rect.height / 2,
			button: 0,
		};
		for (const type of ['pointerover', 'pointerenter', 'mouseover', 'pointerdown', 'mousedown']) {
			node.dispatchEvent(type.startsWith('pointer') ? new PointerEvent(type, opts) : new MouseEvent(type, opts));
		}
		node.focus();
		for (const type of ['pointerup', 'mouseup', 'click']) {
			node.dispatchEvent(type.startsWith('pointer') ? new PointerEvent(type, opts) : new MouseEvent(type, opts));
		}
		return {ok: true};
	})(%s)`, jsonEncode(selectorFor(handle)))

	var res struct {
		OK bool `json:"ok"`
	}
	return d.Evaluate(ctx, script, &res)
}

func (d *ChromeDriver) focus(ctx context.Context, handle string) error {
	script := fmt.Sprintf(`
	(function(sel) {
		const node = document.querySelector(sel);
		if (!node || !node.isConnected) return null;
		node.focus();
		return {ok: true};
	})(%s)`, jsonEncode(selectorFor(handle)))

	var res struct {
		OK bool `json:"ok"`
	}
	return d.Evaluate(ctx, script, &res)
}

func (d *ChromeDriver) escape(ctx context.Context, handle string) error {
	if handle != "" {
		if err := d.focus(ctx, handle); err != nil {
			return err
		}
	}
	keyDown := input.DispatchKeyEvent(input.KeyDown).WithKey("Escape")
	keyUp := input.DispatchKeyEvent(input.KeyUp).WithKey("Escape")

	opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return d.RunActions(opCtx, keyDown, keyUp)
}
