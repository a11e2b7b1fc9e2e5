package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/DoyleJ11/raffle-backend/internal/engine"
	"github.com/DoyleJ11/raffle-backend/internal/history"
	"github.com/DoyleJ11/raffle-backend/internal/hub"
	"github.com/DoyleJ11/raffle-backend/internal/roster"
	"github.com/DoyleJ11/raffle-backend/internal/session"
	"github.com/DoyleJ11/raffle-backend/internal/types"
	pub "github.com/DoyleJ11/raffle-backend/pkg/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const DefaultMaxUploadBytes = 10 << 20

// multipartMemory is how much of an upload is kept in memory before
// spilling to temp files.
const multipartMemory = 4 << 20

type Handlers struct {
	hub            *hub.Hub
	history        history.Store
	loader         *roster.Loader
	maxUploadBytes int64
	log            *zap.Logger
}

func NewHandlers(h *hub.Hub, opts Options) *Handlers {
	hs := &Handlers{
		hub:            h,
		history:        opts.History,
		loader:         opts.Loader,
		maxUploadBytes: opts.MaxUploadBytes,
		log:            opts.Logger,
	}
	if hs.loader == nil {
		hs.loader = roster.NewLoader(roster.DefaultMaxRows)
	}
	if hs.maxUploadBytes <= 0 {
		hs.maxUploadBytes = DefaultMaxUploadBytes
	}
	if hs.log == nil {
		hs.log = zap.NewNop()
	}
	return hs
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (hs *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	s, err := hs.hub.Create(r.Context())
	if err != nil {
		writeError(w, hs.log, err)
		return
	}
	JSONResponse(w, hs.log, http.StatusCreated, pub.CreateSessionResponse{Code: s.Code()})
}

func (hs *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := hs.session(w, r)
	if !ok {
		return
	}
	hs.respondView(r.Context(), w, s, http.StatusOK)
}

func (hs *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := hs.hub.Remove(r.Context(), sessionCode(r)); err != nil {
		writeError(w, hs.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadRoster takes a multipart form: "file" (csv or xlsx) plus optional
// "title", "description" and repeated "logos" image files.
func (hs *Handlers) UploadRoster(w http.ResponseWriter, r *http.Request) {
	s, ok := hs.session(w, r)
	if !ok {
		return
	}

	if r.ContentLength > hs.maxUploadBytes {
		ErrorResponse(w, hs.log, http.StatusRequestEntityTooLarge, codeTooLarge, "upload too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, hs.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeBadBody(w, hs.log, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		ErrorResponse(w, hs.log, http.StatusBadRequest, types.CodeBadRequest, "missing roster file")
		return
	}
	defer file.Close()

	participants, err := hs.loader.Load(roster.FileInfo{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}, file)
	if err != nil {
		writeError(w, hs.log, err)
		return
	}

	logos, err := readLogos(r.MultipartForm.File["logos"])
	if err != nil {
		writeError(w, hs.log, err)
		return
	}

	cmd := engine.Command{
		Type:   engine.CmdLoadRoster,
		Roster: participants,
		Branding: engine.Branding{
			Title:       strings.TrimSpace(r.FormValue("title")),
			Description: strings.TrimSpace(r.FormValue("description")),
			Logos:       logos,
		},
	}
	hs.do(w, r, s, cmd)
}

func (hs *Handlers) SetBranding(w http.ResponseWriter, r *http.Request) {
	s, ok := hs.session(w, r)
	if !ok {
		return
	}
	var req pub.BrandingRequest
	if err := ParseJSONBody(w, r, &req); err != nil {
		writeBadBody(w, hs.log, err)
		return
	}
	hs.do(w, r, s, engine.Command{Type: engine.CmdSetBranding, Branding: req})
}

func (hs *Handlers) StartDraw(w http.ResponseWriter, r *http.Request) {
	s, ok := hs.session(w, r)
	if !ok {
		return
	}
	var req pub.DrawRequest
	if err := ParseJSONBody(w, r, &req); err != nil {
		writeBadBody(w, hs.log, err)
		return
	}
	hs.do(w, r, s, engine.Command{Type: engine.CmdStartDraw, Count: req.Count})
}

func (hs *Handlers) NewDraw(w http.ResponseWriter, r *http.Request) {
	s, ok := hs.session(w, r)
	if !ok {
		return
	}
	hs.do(w, r, s, engine.Command{Type: engine.CmdNewDraw})
}

func (hs *Handlers) Reset(w http.ResponseWriter, r *http.Request) {
	s, ok := hs.session(w, r)
	if !ok {
		return
	}
	var req pub.ResetRequest
	// the body is optional: no body means a full reset
	if err := ParseJSONBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeBadBody(w, hs.log, err)
		return
	}
	hs.do(w, r, s, engine.Command{Type: engine.CmdReset, KeepRoster: req.KeepRoster})
}

// History lists completed draws. It still answers after the session is
// gone as long as the store kept its records.
func (hs *Handlers) History(w http.ResponseWriter, r *http.Request) {
	code := sessionCode(r)
	var records []history.Record
	if hs.history != nil {
		var err error
		records, err = hs.history.List(r.Context(), code)
		if err != nil {
			writeError(w, hs.log, fmt.Errorf("list history: %w", err))
			return
		}
	}
	if len(records) == 0 {
		if _, err := hs.hub.Get(r.Context(), code); err != nil {
			writeError(w, hs.log, err)
			return
		}
	}
	JSONResponse(w, hs.log, http.StatusOK, pub.FromRecords(code, records))
}

func (hs *Handlers) do(w http.ResponseWriter, r *http.Request, s *session.Session, cmd engine.Command) {
	if err := s.Do(r.Context(), cmd); err != nil {
		writeError(w, hs.log, err)
		return
	}
	hs.respondView(r.Context(), w, s, http.StatusOK)
}

func (hs *Handlers) respondView(ctx context.Context, w http.ResponseWriter, s *session.Session, status int) {
	v, err := s.View(ctx)
	if err != nil {
		writeError(w, hs.log, err)
		return
	}
	view := pub.FromState(v.Code, v.Version, v.State, v.Display)
	view.Clients = v.NumClients
	JSONResponse(w, hs.log, status, view)
}

func (hs *Handlers) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := hs.hub.Get(r.Context(), sessionCode(r))
	if err != nil {
		writeError(w, hs.log, err)
		return nil, false
	}
	return s, true
}

func sessionCode(r *http.Request) string {
	return strings.ToUpper(chi.URLParam(r, "code"))
}

func readLogos(files []*multipart.FileHeader) ([]string, error) {
	if len(files) > engine.MaxLogos {
		return nil, fmt.Errorf("%w: at most %d logos", engine.ErrInvalidBranding, engine.MaxLogos)
	}
	logos := make([]string, 0, len(files))
	for _, fh := range files {
		data, err := readLogo(fh)
		if err != nil {
			return nil, err
		}
		mime := fh.Header.Get("Content-Type")
		if !strings.HasPrefix(mime, "image/") {
			mime = http.DetectContentType(data)
		}
		logos = append(logos, engine.LogoDataURL(mime, data))
	}
	return logos, nil
}

func readLogo(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > engine.MaxLogoBytes {
		return nil, fmt.Errorf("%w: logo %q larger than %d bytes", engine.ErrInvalidBranding, fh.Filename, engine.MaxLogoBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, engine.MaxLogoBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > engine.MaxLogoBytes {
		return nil, fmt.Errorf("%w: logo %q larger than %d bytes", engine.ErrInvalidBranding, fh.Filename, engine.MaxLogoBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: logo %q is empty", engine.ErrInvalidBranding, fh.Filename)
	}
	return data, nil
}
