// Package views renders the practice pages as templ components.
//
// TODO: move these components to .templ sources once templ generate is part
// of the build.
package views

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	appI18n "github.com/pavelanni/maaspractice/internal/i18n"
	"github.com/pavelanni/maaspractice/internal/model"
)

const style = `
body { font-family: system-ui, sans-serif; margin: 0; color: #1f2933; background: #f5f7fa; }
header { background: #2f4858; color: #fff; padding: 1rem 2rem; }
header h1 { margin: 0; font-size: 1.6rem; }
header p { margin: .25rem 0 0; opacity: .8; font-size: .9rem; }
.layout { display: flex; gap: 2rem; padding: 1.5rem 2rem; }
aside { width: 18rem; flex-shrink: 0; }
main { flex: 1; max-width: 52rem; }
.card { background: #fff; border-radius: 6px; padding: 1rem 1.25rem; margin-bottom: 1rem; box-shadow: 0 1px 2px rgba(0,0,0,.08); }
.notice { background: #e8f1fb; border-left: 4px solid #3d7ebf; padding: .75rem 1rem; margin: 1rem 0; white-space: pre-wrap; }
.error { background: #fdecea; border-left: 4px solid #c0392b; padding: .75rem 1rem; margin: 1rem 0; }
.success { background: #eaf7ee; border-left: 4px solid #2e8b57; padding: .75rem 1rem; margin: 1rem 0; }
.turn { padding: .5rem .75rem; border-radius: 6px; margin: .5rem 0; white-space: pre-wrap; }
.turn.student { background: #eef2f7; }
.turn.patient { background: #fff8e6; }
.speaker { font-weight: 600; display: block; font-size: .85rem; margin-bottom: .2rem; }
.critique { white-space: pre-wrap; }
form.inline { display: inline; }
button { padding: .4rem .9rem; margin: .2rem 0; cursor: pointer; }
button.primary { background: #2f4858; color: #fff; border: none; border-radius: 4px; }
input[type=text], textarea { width: 100%; box-sizing: border-box; padding: .5rem; }
code { background: #eef2f7; padding: 0 .3rem; border-radius: 3px; }
.muted { color: #616e7c; font-size: .9rem; }
.waiting { color: #3d7ebf; font-style: italic; }
`

// waitScript reveals a form's waiting line on submit and locks its buttons
// until the response arrives. A disabled submitter is dropped from the form
// data, so buttons are disabled only after the submit event.
const waitScript = `
document.addEventListener("submit", function (e) {
  var f = e.target;
  if (!f.classList.contains("waits")) return;
  var w = f.querySelector(".waiting");
  if (w) w.hidden = false;
  setTimeout(function () {
    f.querySelectorAll("button").forEach(function (b) { b.disabled = true; });
  }, 0);
});
`

// html writes markup to w, remembering the first write error.
type html struct {
	w   io.Writer
	ctx context.Context
	err error
}

func (h *html) raw(s string) {
	if h.err != nil {
		return
	}
	_, h.err = io.WriteString(h.w, s)
}

func (h *html) rawf(format string, args ...any) {
	h.raw(fmt.Sprintf(format, args...))
}

func (h *html) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *html) t(msgID string) {
	h.text(appI18n.T(h.ctx, msgID))
}

// path prefixes p with the deployment's base path.
func (h *html) path(p string) string {
	return templ.EscapeString(model.BasePathFromContext(h.ctx) + p)
}

func (h *html) csrf() {
	h.rawf(`<input type="hidden" name="csrf_token" value="%s">`, templ.EscapeString(model.CSRFTokenFromContext(h.ctx)))
}

// waiting renders the hidden line shown while a form's request is pending.
func (h *html) waiting(label string) {
	h.raw(`<p class="waiting" hidden>`)
	h.text(label)
	h.raw(`</p>`)
}

// button renders a one-button POST form.
func (h *html) button(action, labelID string, primary bool) {
	h.rawf(`<form class="inline" method="post" action="%s">`, h.path(action))
	h.csrf()
	if primary {
		h.raw(`<button class="primary" type="submit">`)
	} else {
		h.raw(`<button type="submit">`)
	}
	h.t(labelID)
	h.raw(`</button></form> `)
}

func component(fn func(h *html)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w, ctx: ctx}
		fn(h)
		return h.err
	})
}

// Layout wraps page content with the document shell and header.
func Layout(sidebar, content templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w, ctx: ctx}
		h.raw(`<!DOCTYPE html><html><head><meta charset="utf-8">`)
		h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.raw(`<title>`)
		h.t("AppTitle")
		h.raw(`</title><style>` + style + `</style></head><body><header><h1>`)
		h.t("AppTitle")
		h.raw(`</h1><p>`)
		h.t("AppSubtitle")
		h.raw(`</p></header><div class="layout"><aside>`)
		if h.err != nil {
			return h.err
		}
		if sidebar != nil {
			if err := sidebar.Render(ctx, w); err != nil {
				return err
			}
		}
		h.raw(`</aside><main>`)
		if h.err != nil {
			return h.err
		}
		if err := content.Render(ctx, w); err != nil {
			return err
		}
		h.raw(`</main></div><script>` + waitScript + `</script></body></html>`)
		return h.err
	})
}
