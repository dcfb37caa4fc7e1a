// Package handlers exposes the preprocessor over HTTP: upload a raw
// export, get back a download link to the CSV.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/jalad-shrimali/ip-preprocess/preprocess"
	"github.com/jalad-shrimali/ip-preprocess/store"
)

const maxUpload = 32 << 20

type Server struct {
	conv      *preprocess.Converter
	uploadDir string
	log       *log.Logger
	router    *chi.Mux
}

// New wires the routes. conv.Store may be nil; /imports then lists nothing.
func New(conv *preprocess.Converter, uploadDir string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Server{conv: conv, uploadDir: uploadDir, log: logger, router: chi.NewRouter()}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: logger, NoColor: true}))
	s.router.Use(middleware.Recoverer)

	s.router.Post("/upload", s.UploadAndNormalize)
	s.router.Get("/imports", s.ListImports)
	s.router.Handle("/download/*",
		http.StripPrefix("/download/", http.FileServer(http.Dir(conv.OutputDir))))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

/* ──────────── POST /upload ──────────── */

// UploadAndNormalize accepts a multipart "file" plus an optional
// "output_filename" (defaults to the upload name with a .csv extension).
func (s *Server) UploadAndNormalize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	base := filepath.Base(hdr.Filename)
	if base == "." || base == string(filepath.Separator) {
		http.Error(w, "missing file name", http.StatusBadRequest)
		return
	}
	outName := filepath.Base(strings.TrimSpace(r.FormValue("output_filename")))
	if outName == "" || outName == "." || outName == string(filepath.Separator) {
		outName = strings.TrimSuffix(base, filepath.Ext(base)) + ".csv"
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	src := filepath.Join(s.uploadDir, uuid.NewString()+"_"+base)
	if err := saveUploaded(file, src); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	res, err := s.conv.Convert(r.Context(), src, outName)
	if err != nil {
		s.log.Printf("convert %s: %v", src, err)
		status := http.StatusInternalServerError
		if errors.Is(err, preprocess.ErrInput) {
			status = http.StatusBadRequest
		}
		http.Error(w, "normalization failed: "+err.Error(), status)
		return
	}

	fmt.Fprintf(w, "Normalized file created: /download/%s\n", filepath.Base(res.CSVPath))
	if res.XLSXPath != "" {
		fmt.Fprintf(w, "Workbook created: /download/%s\n", filepath.Base(res.XLSXPath))
	}
}

func saveUploaded(src io.Reader, dst string) error {
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

/* ──────────── GET /imports ──────────── */

func (s *Server) ListImports(w http.ResponseWriter, r *http.Request) {
	imports := []store.Import{}
	if s.conv.Store != nil {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		var err error
		if imports, err = s.conv.Store.ListImports(r.Context(), limit); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(imports)
}
