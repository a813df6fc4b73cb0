// File: internal/browser/elements.go
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// handleAttr is the temporary attribute used to address matched nodes.
const handleAttr = "data-engager-id"

func selectorFor(handle string) string {
	return fmt.Sprintf(`[%s=%s]`, handleAttr, jsonEncode(handle))
}

// queryScript matches a selector (optionally inside a scope element),
// tags visible matches with a handle attribute, and returns snapshots.
const queryScript = `
(function(scopeSel, sel) {
	const scope = scopeSel ? document.querySelector(scopeSel) : document;
	if (!scope) return [];
	const out = [];
	for (const node of scope.querySelectorAll(sel)) {
		if (!node.isConnected) continue;
		const rect = node.getBoundingClientRect();
		const style = window.getComputedStyle(node);
		if (rect.width <= 0 || rect.height <= 0 ||
			style.display === 'none' || style.visibility === 'hidden') continue;
		let id = node.getAttribute('data-engager-id');
		if (!id) {
			window.__engSeq = (window.__engSeq || 0) + 1;
			id = 'eng-' + window.__engSeq;
			node.setAttribute('data-engager-id', id);
		}
		const attrs = {};
		for (const a of node.attributes) attrs[a.name] = a.value;
		out.push({
			handle: id,
			tag: node.tagName.toLowerCase(),
			text: (node.innerText || node.value || '').trim(),
			top: rect.top, left: rect.left,
			width: rect.width, height: rect.height,
			attrs: attrs,
		});
	}
	return out;
})(%s, %s)`

// Query finds visible elements matching selector within scope. An empty
// scope searches the whole document.
func (d *ChromeDriver) Query(ctx context.Context, scope, selector string) ([]Element, error) {
	scopeSel := ""
	if scope != "" {
		scopeSel = selectorFor(scope)
	}
	script := fmt.Sprintf(queryScript, jsonEncode(scopeSel), jsonEncode(selector))

	var raw []struct {
		Handle string            `json:"handle"`
		Tag    string            `json:"tag"`
		Text   string            `json:"text"`
		Top    float64           `json:"top"`
		Left   float64           `json:"left"`
		Width  float64           `json:"width"`
		Height float64           `json:"height"`
		Attrs  map[string]string `json:"attrs"`
	}
	if err := d.Evaluate(ctx, script, &raw); err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}

	elements := make([]Element, 0, len(raw))
	for _, r := range raw {
		elements = append(elements, Element{
			Handle: r.Handle,
			Tag:    r.Tag,
			Text:   r.Text,
			Top:    r.Top,
			Left:   r.Left,
			Width:  r.Width,
			Height: r.Height,
			Attrs:  r.Attrs,
		})
	}
	return elements, nil
}

// ReadText returns the rendered text (or input value) of the element.
func (d *ChromeDriver) ReadText(ctx context.Context, handle string) (string, error) {
	script := fmt.Sprintf(`
	(function(sel) {
		const node = document.querySelector(sel);
		if (!node || !node.isConnected) return null;
		return {text: (node.innerText !== undefined && node.innerText !== '') ? node.innerText : (node.value || node.textContent || '')};
	})(%s)`, jsonEncode(selectorFor(handle)))

	var res struct {
		Text string `json:"text"`
	}
	if err := d.Evaluate(ctx, script, &res); err != nil {
		return "", err
	}
	return res.Text, nil
}

// IsAttached reports whether the handle still resolves to a connected node.
func (d *ChromeDriver) IsAttached(ctx context.Context, handle string) (bool, error) {
	script := fmt.Sprintf(`
	(function(sel) {
		const node = document.querySelector(sel);
		return {attached: !!(node && node.isConnected)};
	})(%s)`, jsonEncode(selectorFor(handle)))

	var res struct {
		Attached bool `json:"attached"`
	}
	if err := d.Evaluate(ctx, script, &res); err != nil {
		return false, err
	}
	return res.Attached, nil
}

// SetAttribute sets an attribute on the element.
func (d *ChromeDriver) SetAttribute(ctx context.Context, handle, name, value string) error {
	script := fmt.Sprintf(`
	(function(sel, name, value) {
		const node = document.querySelector(sel);
		if (!node || !node.isConnected) return null;
		node.setAttribute(name, value);
		return {ok: true};
	})(%s, %s, %s)`, jsonEncode(selectorFor(handle)), jsonEncode(name), jsonEncode(value))

	var res struct {
		OK bool `json:"ok"`
	}
	return d.Evaluate(ctx, script, &res)
}

// WriteText focuses the element, selects any existing content, and
// replaces it through the trusted insert-text input command.
func (d *ChromeDriver) WriteText(ctx context.Context, handle, text string) error {
	if err := d.focusAndSelectAll(ctx, handle); err != nil {
		return err
	}
	if d.sim != nil && d.sim.Enabled() {
		if err := d.sim.KeyDelay(ctx); err != nil {
			return err
		}
	}

	opCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := d.RunActions(opCtx, input.InsertText(text)); err != nil {
		if isStaleError(err) {
			return ErrStaleElement
		}
		return fmt.Errorf("insert text: %w", err)
	}
	return nil
}

// SetText writes content directly into the node and fires synthetic
// input/change events. This bypasses the trusted input pipeline and is
// only used when WriteText verification fails.
func (d *ChromeDriver) SetText(ctx context.Context, handle, text string) error {
	d.logger.Debug("Falling back to direct text write.", zap.String("handle", handle))
	script := fmt.Sprintf(`
	(function(sel, text) {
		const node = document.querySelector(sel);
		if (!node || !node.isConnected) return null;
		node.focus();
		if ('value' in node && node.tagName !== 'DIV') {
			node.value = text;
		} else {
			node.textContent = text;
		}
		node.dispatchEvent(new InputEvent('input', {bubbles: true, data: text, inputType: 'insertText'}));
		node.dispatchEvent(new Event('change', {bubbles: true}));
		return {ok: true};
	})(%s, %s)`, jsonEncode(selectorFor(handle)), jsonEncode(text))

	var res struct {
		OK bool `json:"ok"`
	}
	return d.Evaluate(ctx, script, &res)
}

// focusAndSelectAll prepares an editable element for replacement input.
func (d *ChromeDriver) focusAndSelectAll(ctx context.Context, handle string) error {
	script := fmt.Sprintf(`
	(function(sel) {
		const node = document.querySelector(sel);
		if (!node || !node.isConnected) return null;
		node.focus();
		if (typeof node.select === 'function') {
			node.select();
		} else {
			const selection = window.getSelection();
			const range = document.createRange();
			range.selectNodeContents(node);
			selection.removeAllRanges();
			selection.addRange(range);
		}
		return {ok: true};
	})(%s)`, jsonEncode(selectorFor(handle)))

	var res struct {
		OK bool `json:"ok"`
	}
	if err := d.Evaluate(ctx, script, &res); err != nil {
		return err
	}

	// Trusted select-all keeps the editor's internal state consistent
	// with the DOM selection before the insert replaces it.
	if err := d.RunActions(ctx, chromedp.KeyEvent("a", chromedp.KeyModifiers(input.ModifierCtrl))); err != nil {
		d.logger.Debug("Trusted select-all failed, relying on DOM selection.", zap.Error(err))
	}
	return nil
}

// geometryOf returns the current bounding box of the element.
func (d *ChromeDriver) geometryOf(ctx context.Context, handle string) (Element, error) {
	script := fmt.Sprintf(`
	(function(sel) {
		const node = document.querySelector(sel);
		if (!node || !node.isConnected) return null;
		const rect = node.getBoundingClientRect();
		if (rect.width <= 0 || rect.height <= 0) return null;
		return {handle: node.getAttribute('data-engager-id') || '', tag: node.tagName.toLowerCase(),
			top: rect.top, left: rect.left, width: rect.width, height: rect.height};
	})(%s)`, jsonEncode(selectorFor(handle)))

	var el Element
	if err := d.Evaluate(ctx, script, &el); err != nil {
		return Element{}, err
	}
	return el, nil
}
