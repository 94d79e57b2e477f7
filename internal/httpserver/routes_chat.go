// internal/httpserver/routes_chat.go
//
// Chat side-channels: image upload, GIF search and scale suggestions.
//   POST /api/upload          multipart "file" → {url}
//   GET  /api/gifs?q=&content= → {gifs:[{id,title,previewUrl,url}]}
//   GET  /api/scales/random   → {left,right}

package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/robalobadob/wavelength/internal/game"
	"github.com/robalobadob/wavelength/internal/gifs"
	"github.com/robalobadob/wavelength/internal/upload"
)

// multipartSlack covers form boundaries and headers around the file part.
const multipartSlack = 1 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := s.deps.Uploads.MaxBytes()
	tooLarge := fmt.Sprintf("Image must be under %dMB", limit/(1024*1024))
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartSlack)
	if err := r.ParseMultipartForm(limit); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: tooLarge})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "No file provided"})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "No file provided"})
		return
	}
	defer file.Close()

	url, err := s.deps.Uploads.Store(r.Context(), upload.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
	case errors.Is(err, game.ErrValidation), errors.Is(err, upload.ErrNotConfigured):
		writeError(w, r, err)
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("upload")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Failed to upload image"})
	}
}

func (s *Server) handleGifs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := s.deps.Gifs.Search(r.Context(), q.Get("q"), q.Get("content"))
	if err != nil {
		var upstream *gifs.UpstreamError
		if errors.Is(err, gifs.ErrNotConfigured) || errors.As(err, &upstream) {
			writeError(w, r, err)
			return
		}
		hlog.FromRequest(r).Error().Err(err).Msg("gif search")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Failed to fetch GIFs"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gifs": out})
}

func (s *Server) handleRandomScale(w http.ResponseWriter, r *http.Request) {
	if s.deps.Scales == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "No scale suggestions loaded"})
		return
	}
	sc, err := s.deps.Scales.Random()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}
