package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
)

// textBox edits an input element. Each appended character fires one bubbling
// input event so the page's own scripts see it; clearing fires none.
// Once the element leaves the document every call fails.
type textBox struct {
	el *rod.Element
}

func (b *textBox) Focus(ctx context.Context) error {
	if err := b.el.Context(ctx).Focus(); err != nil {
		return fmt.Errorf("focus: %w", err)
	}
	return nil
}

func (b *textBox) Clear(ctx context.Context) error {
	return b.eval(ctx, `() => {
		if (!this.isConnected) throw new Error('search box detached')
		this.value = ''
	}`)
}

func (b *textBox) AppendChar(ctx context.Context, ch string) error {
	return b.eval(ctx, `(ch) => {
		if (!this.isConnected) throw new Error('search box detached')
		this.value += ch
		this.dispatchEvent(new Event('input', {bubbles: true}))
	}`, ch)
}

func (b *textBox) eval(ctx context.Context, js string, args ...interface{}) error {
	if _, err := b.el.Context(ctx).Eval(js, args...); err != nil {
		return fmt.Errorf("edit search box: %w", err)
	}
	return nil
}
