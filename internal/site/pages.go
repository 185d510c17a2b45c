package site

import (
	"fmt"
	"strings"

	g "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"

	"github.com/ivlev/elasticcanvas/internal/hero"
	"github.com/ivlev/elasticcanvas/internal/i18n"
	"github.com/ivlev/elasticcanvas/internal/preload"
)

// galleryStills is how many frames of the sequence the gallery shows.
const galleryStills = 6

type PageConfig struct {
	Dict    *i18n.Dictionary
	Locales []string
	// Path is the request path, used by the language switcher.
	Path string
	Page string
}

// FormState is the outcome of a contact submission shown on re-render.
type FormState struct {
	Success bool
	Message string
	Errors  map[string]string
	Values  map[string]string
}

func Layout(pc PageConfig, children ...g.Node) g.Node {
	d := pc.Dict
	return Doctype(
		HTML(
			Lang(d.Locale),
			g.Attr("dir", d.Dir()),
			Head(
				Meta(Charset("utf-8")),
				Meta(Name("viewport"), Content("width=device-width, initial-scale=1")),
				TitleEl(g.Text(d.T("meta.title"))),
				Meta(Name("description"), Content(d.T("meta.description"))),
				Link(Rel("stylesheet"), Href("/static/site.css")),
			),
			Body(
				SiteHeader(pc),
				Main(children...),
				SiteFooter(d),
				Script(Src("/static/hero.js"), Defer()),
			),
		),
	)
}

func SiteHeader(pc PageConfig) g.Node {
	d := pc.Dict
	lang := d.Locale
	items := []struct{ page, label string }{
		{"", d.T("header.home")},
		{"about", d.T("header.about")},
		{"craft", d.T("header.craft")},
		{"gallery", d.T("header.gallery")},
		{"contact", d.T("header.contact")},
	}

	return Header(
		Class("site-header"),
		A(Class("brand"), Href("/"+lang), g.Text("Elastic Canvas")),
		Nav(
			Class("site-nav"),
			g.Map(items, func(it struct{ page, label string }) g.Node {
				href := "/" + lang
				if it.page != "" {
					href += "/" + it.page
				}
				return A(
					Href(href),
					g.If(it.page == pc.Page, Class("active")),
					g.Text(it.label),
				)
			}),
		),
		LanguageSwitcher(pc),
	)
}

// LanguageSwitcher links the current path under every other locale.
func LanguageSwitcher(pc PageConfig) g.Node {
	names := map[string]string{"en": "English", "ar": "العربية"}
	current := pc.Dict.Locale

	var links []g.Node
	for _, l := range pc.Locales {
		if l == current {
			continue
		}
		name := names[l]
		if name == "" {
			name = strings.ToUpper(l)
		}
		links = append(links, A(Href(SwitchLocale(pc.Path, current, l)), Lang(l), g.Text(name)))
	}
	return Div(Class("lang-switch"), g.Attr("aria-label", pc.Dict.T("header.language")), g.Group(links))
}

// SwitchLocale swaps the leading locale segment of path.
func SwitchLocale(path, from, to string) string {
	prefix := "/" + from
	if path == prefix {
		return "/" + to
	}
	if strings.HasPrefix(path, prefix+"/") {
		return "/" + to + strings.TrimPrefix(path, prefix)
	}
	return "/" + to
}

// HeroSection is the pinned scroll section. The canvas is fed by the
// scroll socket once the frames are ready; before that the loading
// screen shows the preload progress.
func HeroSection(d *i18n.Dictionary, st hero.Status, surfaceW, surfaceH int) g.Node {
	return Section(
		ID("hero"),
		Class("hero"),
		g.Attr("data-phase", st.Phase),
		g.Attr("data-lang", d.Locale),
		Div(
			ID("loading"),
			Class("loading"),
			g.If(st.Ready, g.Attr("hidden", "")),
			Div(Class("loading-bar"), Div(Class("loading-fill"), Style(fmt.Sprintf("width:%d%%", st.Percent)))),
			P(ID("loading-percent"), g.Textf("%d%%", st.Percent)),
			P(ID("loading-status"), g.Text(statusLine(d, st))),
		),
		Canvas(
			ID("hero-canvas"),
			Width(fmt.Sprint(surfaceW)),
			Height(fmt.Sprint(surfaceH)),
			g.Attr("data-socket", "/api/hero/scroll"),
		),
		Img(ID("hero-poster"), Class("poster"), Src("/api/hero/poster.jpg"), Alt(d.T("hero.title")),
			g.If(st.Phase != "failed", g.Attr("hidden", ""))),
		Div(
			ID("hero-overlay"),
			Class("hero-overlay"),
			H1(g.Text(d.T("hero.title"))),
			P(g.Text(d.T("hero.subtitle"))),
			A(Class("cta"), Href("/"+d.Locale+"/contact"), g.Text(d.T("hero.cta"))),
		),
	)
}

func statusLine(d *i18n.Dictionary, st hero.Status) string {
	switch st.Phase {
	case "retrying":
		return d.T("loading.retrying")
	case "failed":
		return d.T("loading.failed")
	}
	return d.T(preload.StatusKey(st.Percent))
}

func AboutSection(d *i18n.Dictionary) g.Node {
	return Section(
		ID("about"),
		Class("section"),
		H2(g.Text(d.T("about.title"))),
		P(g.Text(d.T("about.paragraph1"))),
		P(g.Text(d.T("about.paragraph2"))),
	)
}

func CraftSection(d *i18n.Dictionary) g.Node {
	steps := make([]g.Node, 0, 4)
	for i := 1; i <= 4; i++ {
		steps = append(steps, Article(
			Class("craft-step"),
			H3(g.Text(d.T(fmt.Sprintf("craft.step%d_title", i)))),
			P(g.Text(d.T(fmt.Sprintf("craft.step%d_desc", i)))),
		))
	}
	return Section(
		ID("craft"),
		Class("section"),
		H2(g.Text(d.T("craft.title"))),
		P(Class("subtitle"), g.Text(d.T("craft.subtitle"))),
		Div(Class("craft-grid"), g.Group(steps)),
	)
}

// GallerySection shows evenly spaced stills of the frame sequence.
func GallerySection(d *i18n.Dictionary, frameCount int) g.Node {
	var cards []g.Node
	for _, idx := range stillIndexes(frameCount, galleryStills) {
		cards = append(cards, Div(
			Class("gallery-card"),
			Img(Src(fmt.Sprintf("/api/hero/still/%d", idx)), Alt(d.T("gallery.title")), Width("600"), Height("400"), g.Attr("loading", "lazy")),
		))
	}
	return Section(
		ID("gallery"),
		Class("section"),
		H2(g.Text(d.T("gallery.title"))),
		P(Class("subtitle"), g.Text(d.T("gallery.subtitle"))),
		Div(Class("gallery-grid"), g.Group(cards)),
	)
}

func stillIndexes(n, k int) []int {
	if n <= 0 || k <= 0 {
		return nil
	}
	if k > n {
		k = n
	}
	out := make([]int, k)
	for i := range out {
		if k == 1 {
			break
		}
		out[i] = i * (n - 1) / (k - 1)
	}
	return out
}

func ContactSection(d *i18n.Dictionary, state FormState) g.Node {
	lang := d.Locale
	field := func(name, inputType string, textarea bool) g.Node {
		var input g.Node
		if textarea {
			input = Textarea(ID(name), Name(name), Rows("5"), Required(),
				Placeholder(d.T("contact."+name+"_placeholder")), g.Text(state.Values[name]))
		} else {
			input = Input(ID(name), Name(name), Type(inputType), Required(),
				Placeholder(d.T("contact."+name+"_placeholder")), Value(state.Values[name]))
		}
		return Div(
			Class("field"),
			Label(For(name), g.Text(d.T("contact."+name+"_label"))),
			input,
			g.If(state.Errors[name] != "", P(Class("field-error"), g.Text(d.T(state.Errors[name])))),
		)
	}

	return Section(
		ID("contact"),
		Class("section"),
		H2(g.Text(d.T("contact.title"))),
		P(Class("subtitle"), g.Text(d.T("contact.subtitle"))),
		Form(
			Method("post"),
			Action("/"+lang+"/contact"),
			field("name", "text", false),
			field("email", "email", false),
			field("message", "", true),
			Button(Type("submit"), g.Text(d.T("contact.submit_button"))),
		),
		g.If(state.Message != "", Div(
			Role("status"),
			g.If(state.Success, Class("notice success")),
			g.If(!state.Success, Class("notice error")),
			g.Text(state.Message),
		)),
		Figure(
			Class("contact-qr"),
			Img(Src("/"+lang+"/contact/qr.png"), Alt(d.T("contact.qr_caption")), Width("160"), Height("160")),
			FigCaption(g.Text(d.T("contact.qr_caption"))),
		),
	)
}

func SiteFooter(d *i18n.Dictionary) g.Node {
	return Footer(
		Class("site-footer"),
		P(g.Raw("&copy; "), g.Text(d.T("footer.copy"))),
	)
}
