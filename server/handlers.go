package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/spektr-org/lens/dashboard"
	"github.com/spektr-org/lens/engine"
	"github.com/spektr-org/lens/helpers"
	"github.com/spektr-org/lens/table"
)

const (
	cookieName = "lens"
	// currentID resolves to the session bound to the caller's cookie.
	currentID = "current"
)

type sessionKey struct{}

type boundSession struct {
	id      string
	session *dashboard.Session
}

// SessionResponse describes a stored session.
type SessionResponse struct {
	ID   string         `json:"id"`
	Info dashboard.Info `json:"info"`
}

// DashboardRequest is the body of a dashboard recompute.
type DashboardRequest struct {
	Filters engine.Filters `json:"filters"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status":   "ok",
		"sessions": s.store.Len(),
	})
}

// ============================================================================
// SESSIONS
// ============================================================================

// createSession loads an uploaded table (multipart field "file"), or the
// default dataset when the request carries no upload, into a new session.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	variant := s.cfg.Variant
	if v := r.URL.Query().Get("variant"); v != "" {
		parsed, err := dashboard.ParseVariant(v)
		if err != nil {
			s.fail(w, r, invalid(err))
			return
		}
		variant = parsed
	}

	sess := dashboard.NewSession(variant, s.cfg.SessionOptions...)
	if err := s.load(w, r, sess); err != nil {
		s.fail(w, r, err)
		return
	}

	id := s.store.Add(sess)
	s.bindCookie(w, r, id)

	info, _ := sess.Info()
	s.logger.Info("session created",
		slog.String("session", id),
		slog.String("variant", string(variant)),
		slog.String("source", info.Source),
		slog.Int("rows", info.Rows))

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, SessionResponse{ID: id, Info: info})
}

// reloadSession replaces the table of an existing session. A failed load
// leaves the previous table in place.
func (s *Server) reloadSession(w http.ResponseWriter, r *http.Request) {
	b := bound(r)
	if err := s.load(w, r, b.session); err != nil {
		s.fail(w, r, err)
		return
	}
	info, _ := b.session.Info()
	render.JSON(w, r, SessionResponse{ID: b.id, Info: info})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	b := bound(r)
	info, _ := b.session.Info()
	render.JSON(w, r, SessionResponse{ID: b.id, Info: info})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	b := bound(r)
	if err := s.store.Delete(b.id); err != nil {
		s.fail(w, r, err)
		return
	}
	render.NoContent(w, r)
}

// load streams the uploaded file into sess, or loads the default dataset.
func (s *Server) load(w http.ResponseWriter, r *http.Request, sess *dashboard.Session) (err error) {
	variant := string(sess.Variant())
	defer func() { s.metrics.observeLoad(variant, err) }()

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return sess.LoadDefault(r.Context())
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		return invalid(err)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return invalid(errors.New(`multipart upload has no "file" field`))
		}
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return err
			}
			return invalid(err)
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}
		name := part.FileName()
		if name == "" {
			name = "upload.csv"
		}
		err = sess.Load(r.Context(), name, part)
		_ = part.Close()
		return err
	}
}

// ============================================================================
// SESSION CONTEXT
// ============================================================================

// sessionCtx resolves {id}, or the cookie-bound session for "current".
func (s *Server) sessionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == currentID {
			id = s.cookieID(r)
		}
		sess, err := s.store.Get(id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, boundSession{id: id, session: sess})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bound(r *http.Request) boundSession {
	b, _ := r.Context().Value(sessionKey{}).(boundSession)
	return b
}

func (s *Server) bindCookie(w http.ResponseWriter, r *http.Request, id string) {
	// A cookie that no longer decodes (rotated key) yields a fresh session.
	cs, _ := s.cookies.Get(r, cookieName)
	cs.Values["id"] = id
	if err := cs.Save(r, w); err != nil {
		s.logger.Warn("failed to save session cookie", slog.String("error", err.Error()))
	}
}

func (s *Server) cookieID(r *http.Request) string {
	cs, err := s.cookies.Get(r, cookieName)
	if err != nil {
		return ""
	}
	id, _ := cs.Values["id"].(string)
	return id
}

// ============================================================================
// DASHBOARD / QUERY / EXPORT
// ============================================================================

func (s *Server) getFilters(w http.ResponseWriter, r *http.Request) {
	opts, err := bound(r).session.Options()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, opts)
}

// postDashboard recomputes the whole dashboard for the posted filters. An
// empty body means no filters. A selection that matches nothing is not an
// error: the report comes back with "empty": true.
func (s *Server) postDashboard(w http.ResponseWriter, r *http.Request) {
	var req DashboardRequest
	if err := decodeOptional(r, &req); err != nil {
		s.fail(w, r, invalid(err))
		return
	}

	sess := bound(r).session
	start := time.Now()
	var (
		report any
		err    error
	)
	switch sess.Variant() {
	case dashboard.VariantRetail:
		report, err = sess.Retail(req.Filters)
	default:
		report, err = sess.General(req.Filters)
	}
	s.metrics.observeRecompute(string(sess.Variant()), start, err)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

func (s *Server) postQuery(w http.ResponseWriter, r *http.Request) {
	var q engine.Query
	if err := decodeOptional(r, &q); err != nil {
		s.fail(w, r, invalid(err))
		return
	}
	if err := s.validate.Struct(q); err != nil {
		s.fail(w, r, err)
		return
	}

	result, err := bound(r).session.Query(q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// export writes the filtered rows as CSV or XLSX. Filters come from the
// "filters" query parameter as JSON.
func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	var write func(io.Writer, *table.Table) error
	switch format {
	case "csv":
		write = func(w io.Writer, t *table.Table) error { return helpers.WriteCSV(w, t) }
	case "xlsx":
		write = func(w io.Writer, t *table.Table) error { return helpers.WriteXLSX(w, t, "") }
	default:
		s.fail(w, r, invalid(fmt.Errorf("unsupported export format %q", format)))
		return
	}

	var f engine.Filters
	if raw := r.URL.Query().Get("filters"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			s.fail(w, r, invalid(fmt.Errorf("filters: %w", err)))
			return
		}
	}

	t, err := bound(r).session.Filtered(f)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	contentType := "text/csv; charset=utf-8"
	if format == "xlsx" {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="lens-export.%s"`, format))
	if err := write(w, t); err != nil {
		s.logger.Error("export failed", slog.String("error", err.Error()))
	}
}

// decodeOptional decodes a JSON body; an empty body leaves v untouched.
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := render.DecodeJSON(r.Body, v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
