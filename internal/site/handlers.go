package site

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
	g "maragu.dev/gomponents"

	"github.com/ivlev/elasticcanvas/internal/contact"
	"github.com/ivlev/elasticcanvas/internal/i18n"
	"github.com/ivlev/elasticcanvas/internal/system"
)

const maxFormBytes = 64 << 10

// dictionaryFor resolves the {lang} route variable, writing a 404 when unsupported.
func (s *Server) dictionaryFor(w http.ResponseWriter, r *http.Request) (*i18n.Dictionary, bool) {
	d, err := s.catalog.Lookup(mux.Vars(r)["lang"])
	if err != nil {
		http.NotFound(w, r)
		return nil, false
	}
	return d, true
}

func (s *Server) handlePage(fixed string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := s.dictionaryFor(w, r)
		if !ok {
			return
		}
		page := fixed
		if p := mux.Vars(r)["page"]; p != "" {
			page = p
		}
		s.renderPage(w, r, d, page, FormState{}, http.StatusOK)
	}
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, d *i18n.Dictionary, page string, form FormState, status int) {
	pc := PageConfig{Dict: d, Locales: s.catalog.Locales(), Path: r.URL.Path, Page: page}

	var body []g.Node
	switch page {
	case "about":
		body = []g.Node{AboutSection(d)}
	case "craft":
		body = []g.Node{CraftSection(d)}
	case "gallery":
		body = []g.Node{GallerySection(d, s.frameCount())}
	case "contact":
		body = []g.Node{ContactSection(d, form)}
	default:
		body = []g.Node{
			HeroSection(d, s.hero.Status(), s.cfg.Hero.Width, s.cfg.Hero.Height),
			AboutSection(d),
			CraftSection(d),
			GallerySection(d, s.frameCount()),
			ContactSection(d, form),
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := Layout(pc, body...).Render(w); err != nil {
		s.logger.Warn("render page", zap.String("page", page), zap.Error(err))
	}
}

func (s *Server) frameCount() int {
	frames, err := s.hero.Frames()
	if err != nil {
		return 0
	}
	return len(frames)
}

func (s *Server) handleContactSubmit(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dictionaryFor(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	form := contact.Form{
		Name:    r.PostFormValue("name"),
		Email:   r.PostFormValue("email"),
		Message: r.PostFormValue("message"),
	}
	values := map[string]string{"name": form.Name, "email": form.Email, "message": form.Message}

	_, err := s.contact.Submit(r.Context(), d.Locale, form)
	var fieldErrs contact.FieldErrors
	switch {
	case err == nil:
		s.renderPage(w, r, d, "contact", FormState{Success: true, Message: d.T("contact.success_message")}, http.StatusOK)
	case errors.As(err, &fieldErrs):
		s.renderPage(w, r, d, "contact", FormState{
			Message: d.T("contact.error_message"),
			Errors:  fieldErrs,
			Values:  values,
		}, http.StatusUnprocessableEntity)
	default:
		s.renderPage(w, r, d, "contact", FormState{Message: d.T("contact.error_message"), Values: values}, http.StatusInternalServerError)
	}
}

// handleContactQR encodes the absolute URL of the localized contact page.
func (s *Server) handleContactQR(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dictionaryFor(w, r)
	if !ok {
		return
	}
	png, err := qrcode.Encode(s.cfg.Server.PublicURL+"/"+d.Locale+"/contact", qrcode.Medium, 256)
	if err != nil {
		s.logger.Error("qr encode", zap.Error(err))
		http.Error(w, "qr unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(png)
}

func (s *Server) handleDictionary(w http.ResponseWriter, r *http.Request) {
	d, err := s.catalog.Lookup(mux.Vars(r)["lang"])
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load dictionary"})
		return
	}
	writeJSON(w, http.StatusOK, d.Map())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{
		"status": "ok",
		"hero":   s.hero.Status().Phase,
	}
	if mem, err := system.ReadMemoryStats(r.Context()); err == nil {
		health["memory"] = mem
	} else {
		s.logger.Debug("memory stats unavailable", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, health)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
