package http

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Maharab24/Bottle-Collection/internal/catalog"
	"github.com/Maharab24/Bottle-Collection/internal/domain"
	"github.com/Maharab24/Bottle-Collection/internal/view"
	"github.com/Maharab24/Bottle-Collection/internal/widget"
	apperrors "github.com/Maharab24/Bottle-Collection/pkg/errors"
)

//go:embed templates/*.html static
var assets embed.FS

var pageNames = []string{"home.html", "bottles.html", "cart.html", "error.html"}

type pages struct {
	byName map[string]*template.Template
}

func mustParsePages() *pages {
	funcs := template.FuncMap{
		"money":  domain.FormatMoney,
		"rating": func(r float64) string { return fmt.Sprintf("%.1f", r) },
	}
	p := &pages{byName: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		p.byName[name] = template.Must(
			template.New("layout.html").Funcs(funcs).ParseFS(assets, "templates/layout.html", "templates/"+name),
		)
	}
	return p
}

type navItem struct {
	Label string
	Href  string
}

var nav = []navItem{
	{"Home", "/"},
	{"Collection", "/bottles"},
	{"Categories", "/#categories"},
	{"About", "/#about"},
	{"Contact", "/#contact"},
}

// layout is the data every page shares: the header and its badge.
type layout struct {
	Title      string
	Active     string
	Nav        []navItem
	BadgeCount int
}

type homePage struct {
	layout
	Categories []catalog.Category
	Category   string
	Products   []domain.Product
}

type widgetModel struct {
	Product      domain.Product
	Quantity     int
	CanIncrement bool
	CanDecrement bool
	CanAdd       bool
	Label        string
	Acknowledged bool
}

type bottlesPage struct {
	layout
	Widgets      []widgetModel
	AddedMessage string
}

type cartPage struct {
	layout
	Cart view.Summary
}

type errorPage struct {
	layout
	Status  int
	Message string
}

func (h *Handler) layout(title, active string) layout {
	return layout{Title: title, Active: active, Nav: nav, BadgeCount: h.badge.Count()}
}

// render executes the named page into a buffer so a template failure still
// yields a clean 500.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := h.pages.byName[name].Execute(&buf, data); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to render page",
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	message := "Something went wrong. Please try again."
	if status == http.StatusNotFound {
		message = "We couldn't find that bottle."
	} else {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}
	h.render(w, r, status, "error.html", errorPage{
		layout:  h.layout(http.StatusText(status), ""),
		Status:  status,
		Message: message,
	})
}

func redirect(w http.ResponseWriter, r *http.Request, target string) {
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// --- Home ---

// Home handles GET /?category=
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	data := homePage{
		layout:     h.layout("Home", "Home"),
		Categories: h.catalog.Categories(),
		Category:   r.URL.Query().Get("category"),
	}
	if data.Category != "" {
		data.Products = h.catalog.InCategory(data.Category)
	} else {
		data.Products = h.catalog.All()
	}
	h.render(w, r, http.StatusOK, "home.html", data)
}

// --- Product widgets ---

// Bottles handles GET /bottles
func (h *Handler) Bottles(w http.ResponseWriter, r *http.Request) {
	widgets := h.board.All()
	data := bottlesPage{
		layout:       h.layout("Collection", "Collection"),
		Widgets:      make([]widgetModel, 0, len(widgets)),
		AddedMessage: widget.AddedMessage,
	}
	for _, wg := range widgets {
		data.Widgets = append(data.Widgets, widgetModel{
			Product:      wg.Product(),
			Quantity:     wg.Quantity(),
			CanIncrement: wg.CanIncrement(),
			CanDecrement: wg.CanDecrement(),
			CanAdd:       wg.CanAdd(),
			Label:        wg.ButtonLabel(),
			Acknowledged: wg.Acknowledged(),
		})
	}
	h.render(w, r, http.StatusOK, "bottles.html", data)
}

func (h *Handler) widget(w http.ResponseWriter, r *http.Request) (*widget.Widget, bool) {
	id := chi.URLParam(r, "id")
	wg, ok := h.board.Get(id)
	if !ok {
		h.renderError(w, r, apperrors.NotFound("product", id))
		return nil, false
	}
	return wg, true
}

// WidgetIncrement handles POST /bottles/{id}/increment
func (h *Handler) WidgetIncrement(w http.ResponseWriter, r *http.Request) {
	wg, ok := h.widget(w, r)
	if !ok {
		return
	}
	wg.Increment()
	redirect(w, r, "/bottles#"+wg.Product().ID)
}

// WidgetDecrement handles POST /bottles/{id}/decrement
func (h *Handler) WidgetDecrement(w http.ResponseWriter, r *http.Request) {
	wg, ok := h.widget(w, r)
	if !ok {
		return
	}
	wg.Decrement()
	redirect(w, r, "/bottles#"+wg.Product().ID)
}

// WidgetAdd handles POST /bottles/{id}/add. With nothing selected the
// button is disabled, so a stray submit is ignored.
func (h *Handler) WidgetAdd(w http.ResponseWriter, r *http.Request) {
	wg, ok := h.widget(w, r)
	if !ok {
		return
	}
	if err := wg.AddToCart(r.Context()); err != nil && !errors.Is(err, widget.ErrNothingSelected) {
		h.renderError(w, r, err)
		return
	}
	redirect(w, r, "/bottles#"+wg.Product().ID)
}

// --- Cart page ---

// CartPage handles GET /cart
func (h *Handler) CartPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "cart.html", cartPage{
		layout: h.layout("Your Cart", ""),
		Cart:   h.cart.Snapshot(),
	})
}

func (h *Handler) cartAction(fn func(r *http.Request, id string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r, chi.URLParam(r, "id")); err != nil {
			h.renderError(w, r, err)
			return
		}
		redirect(w, r, "/cart")
	}
}

// CartIncrement handles POST /cart/items/{id}/increment
func (h *Handler) CartIncrement(w http.ResponseWriter, r *http.Request) {
	h.cartAction(func(r *http.Request, id string) error {
		return h.cart.Increment(r.Context(), id)
	})(w, r)
}

// CartDecrement handles POST /cart/items/{id}/decrement
func (h *Handler) CartDecrement(w http.ResponseWriter, r *http.Request) {
	h.cartAction(func(r *http.Request, id string) error {
		return h.cart.Decrement(r.Context(), id)
	})(w, r)
}

// CartRemove handles POST /cart/items/{id}/remove
func (h *Handler) CartRemove(w http.ResponseWriter, r *http.Request) {
	h.cartAction(func(r *http.Request, id string) error {
		return h.cart.Remove(r.Context(), id)
	})(w, r)
}

// Checkout handles POST /cart/checkout. Ordering is not offered; the request
// is logged and the shopper stays on the cart page.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	s := h.cart.Snapshot()
	h.logger.InfoContext(r.Context(), "checkout requested",
		slog.Int("lines", len(s.Lines)),
		slog.String("total", s.Total.StringFixed(2)),
	)
	redirect(w, r, "/cart")
}
