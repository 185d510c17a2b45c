package site

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ivlev/elasticcanvas/internal/hero"
	"github.com/ivlev/elasticcanvas/internal/player"
)

const (
	stillWidth, stillHeight = 600, 400
	scrollReadLimit         = 128
	scrollWriteWait         = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 << 10,
}

// scrollState is sent after every scroll value so the client can fade the copy.
type scrollState struct {
	Cursor   int     `json:"cursor"`
	Progress float64 `json:"progress"`
	Opacity  float64 `json:"opacity"`
	Offset   float64 `json:"offset"`
	Pinned   bool    `json:"pinned"`
}

func (s *Server) handleHeroStatus(w http.ResponseWriter, r *http.Request) {
	st := s.hero.Status()
	if lang := r.URL.Query().Get("lang"); lang != "" {
		if d, err := s.catalog.Lookup(lang); err == nil {
			st.StatusText = statusLine(d, st)
		}
	}
	writeJSON(w, http.StatusOK, st)
}

// handleHeroFrame renders the frame for ?y= at full surface size.
func (s *Server) handleHeroFrame(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	y, err := parseFloat(q.Get("y"))
	if err != nil {
		http.Error(w, "invalid y", http.StatusBadRequest)
		return
	}
	vw, _ := strconv.Atoi(q.Get("vw"))

	surface := player.NewRasterSurface(s.cfg.Hero.Width, s.cfg.Hero.Height, s.pool)
	defer surface.Release()

	idx, err := s.hero.RenderFrame(surface, y, vw)
	if err != nil {
		s.notReady(w, err)
		return
	}
	w.Header().Set("X-Frame-Index", strconv.Itoa(idx))
	s.writeSurface(w, surface)
}

// handleHeroStill renders one frame of the sequence at gallery size.
func (s *Server) handleHeroStill(w http.ResponseWriter, r *http.Request) {
	idx, _ := strconv.Atoi(mux.Vars(r)["index"])
	frames, err := s.hero.Frames()
	if err != nil {
		s.notReady(w, err)
		return
	}
	if idx >= len(frames) || !frames[idx].Decoded() {
		http.NotFound(w, r)
		return
	}

	surface := player.NewRasterSurface(stillWidth, stillHeight, s.pool)
	defer surface.Release()
	surface.Clear()
	surface.DrawCover(idx, frames[idx].Image)

	w.Header().Set("Cache-Control", "public, max-age=3600")
	s.writeSurface(w, surface)
}

// handlePoster serves the first frame, or the fallback when the hero failed.
func (s *Server) handlePoster(w http.ResponseWriter, r *http.Request) {
	surface := player.NewRasterSurface(s.cfg.Hero.Width, s.cfg.Hero.Height, s.pool)
	defer surface.Release()
	surface.Clear()
	surface.DrawCover(0, s.hero.Poster())
	s.writeSurface(w, surface)
}

func (s *Server) writeSurface(w http.ResponseWriter, surface *player.RasterSurface) {
	var buf bytes.Buffer
	if err := surface.WriteJPEG(&buf, s.cfg.Hero.JPEGQuality); err != nil {
		s.logger.Error("encode frame", zap.Error(err))
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())
}

func (s *Server) notReady(w http.ResponseWriter, err error) {
	if errors.Is(err, hero.ErrNotReady) {
		w.Header().Set("Retry-After", "1")
		http.Error(w, "frames not ready", http.StatusServiceUnavailable)
		return
	}
	s.logger.Error("render frame", zap.Error(err))
	http.Error(w, "render failed", http.StatusInternalServerError)
}

// handleScrollSocket is one mount of the hero: a player bound to a
// connection-scoped feed. Text messages carry scroll positions; every
// redraw goes back as a binary JPEG followed by a JSON state message.
func (s *Server) handleScrollSocket(w http.ResponseWriter, r *http.Request) {
	if _, err := s.hero.Frames(); err != nil {
		s.notReady(w, err)
		return
	}
	vw, _ := strconv.Atoi(r.URL.Query().Get("vw"))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("scroll socket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(scrollReadLimit)

	surface := player.NewRasterSurface(s.cfg.Hero.Width, s.cfg.Hero.Height, s.pool)
	defer surface.Release()

	var writeErr error
	surface.OnDraw(func(index int) {
		if writeErr != nil {
			return
		}
		var buf bytes.Buffer
		if writeErr = surface.WriteJPEG(&buf, s.cfg.Hero.JPEGQuality); writeErr != nil {
			return
		}
		conn.SetWriteDeadline(time.Now().Add(scrollWriteWait))
		writeErr = conn.WriteMessage(websocket.BinaryMessage, buf.Bytes())
	})

	feed := player.NewFeed()
	m, err := s.hero.Mount(feed, surface, vw)
	if err != nil {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "frames not ready"))
		return
	}
	defer m.Close()
	s.logger.Debug("scroll socket bound", zap.String("remote", r.RemoteAddr), zap.Int("viewport", vw))

	p := m.Player()
	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("scroll socket closed", zap.Error(err))
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		y, err := parseFloat(string(msg))
		if err != nil {
			continue
		}

		feed.Publish(y)
		if writeErr != nil {
			s.logger.Debug("scroll socket write", zap.Error(writeErr))
			return
		}

		conn.SetWriteDeadline(time.Now().Add(scrollWriteWait))
		err = conn.WriteJSON(scrollState{
			Cursor:   p.Cursor(),
			Progress: p.Progress(),
			Opacity:  p.Opacity(),
			Offset:   p.Offset(),
			Pinned:   p.Pinned(),
		})
		if err != nil {
			return
		}
	}
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
