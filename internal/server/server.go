package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/pagecomposer/internal/compositor"
	"github.com/local/pagecomposer/internal/config"
	"github.com/local/pagecomposer/internal/converter"
	"github.com/local/pagecomposer/internal/dispatcher"
	"github.com/local/pagecomposer/internal/document"
	"github.com/local/pagecomposer/internal/filetype"
	"github.com/local/pagecomposer/internal/pdfops"
	"github.com/local/pagecomposer/internal/report"
	"github.com/local/pagecomposer/internal/storage"
	"github.com/local/pagecomposer/internal/store"
)

// Uploader pushes finished outputs to object storage. *storage.S3Client
// satisfies it; it stays nil when no bucket is configured.
type Uploader interface {
	UploadBatch(ctx context.Context, batchID string, files []string) ([]string, error)
}

// Server exposes batch composition over HTTP. Batches run detached from the
// request; progress and the final report are read back from the store.
type Server struct {
	cfg      config.Config
	store    store.Store
	proc     dispatcher.Processor
	detector *filetype.Detector
	conv     *converter.LibreOffice
	uploader Uploader

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func New(cfg config.Config, st store.Store, proc dispatcher.Processor, uploader Uploader) *Server {
	if s3c, ok := uploader.(*storage.S3Client); ok && s3c == nil {
		uploader = nil
	}
	return &Server{
		cfg:      cfg,
		store:    st,
		proc:     proc,
		detector: filetype.New(),
		conv:     converter.NewLibreOffice(),
		uploader: uploader,
		cancels:  make(map[string]context.CancelFunc),
	}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/compose_batch", s.handleComposeBatch)
	mux.HandleFunc("/compose_upload", s.handleComposeUpload)
	mux.HandleFunc("/progress/", s.handleProgress)
	mux.HandleFunc("/report/", s.handleReport)
	mux.HandleFunc("/webhook/cancel_batch", s.handleCancelBatch)
}

type composeReq struct {
	FilePath   string `json:"file_path"`
	FileURL    string `json:"file_url"`
	SecondPath string `json:"second_path"`
	Mode       string `json:"mode"`
	Format     string `json:"format"`
	Upload     bool   `json:"upload"`

	DPI                 int      `json:"dpi"`
	MinScale            *float64 `json:"min_scale"`
	MaxScale            *float64 `json:"max_scale"`
	PreserveAspectRatio *bool    `json:"preserve_aspect_ratio"`
	AddMargin           *bool    `json:"add_margin"`
	AutoFit             *bool    `json:"auto_fit"`
}

type composeResp struct {
	Status  string `json:"status"`
	BatchID string `json:"batch_id"`
	Message string `json:"message"`
}

func (s *Server) handleComposeBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	var req composeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	source := req.FilePath
	if source == "" {
		source = req.FileURL
	}
	if source == "" {
		http.Error(w, "missing file_path or file_url", http.StatusBadRequest)
		return
	}
	if req.Mode != "" && req.Mode != "pair" && req.Mode != "quad" && req.Mode != "pair-documents" {
		http.Error(w, "mode must be pair, quad or pair-documents", http.StatusBadRequest)
		return
	}
	if req.Mode == "pair-documents" && req.SecondPath == "" {
		http.Error(w, "pair-documents requires second_path", http.StatusBadRequest)
		return
	}

	batchID := uuid.NewString()
	s.startBatch(batchID, source, req)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(composeResp{Status: "ok", BatchID: batchID, Message: "batch accepted"})
}

// handleComposeUpload accepts a multipart upload and runs the same flow as
// /compose_batch on the saved file.
func (s *Server) handleComposeUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	batchID := uuid.NewString()
	uploadDir := filepath.Join(s.cfg.Output.Dir, "uploads", batchID)
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		http.Error(w, "cannot create upload dir", http.StatusInternalServerError)
		return
	}
	local := filepath.Join(uploadDir, filepath.Base(hdr.Filename))
	dst, err := os.Create(local)
	if err != nil {
		http.Error(w, "cannot save upload", http.StatusInternalServerError)
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		http.Error(w, "cannot save upload", http.StatusInternalServerError)
		return
	}
	dst.Close()

	req := composeReq{
		Mode:   r.FormValue("mode"),
		Format: r.FormValue("format"),
		Upload: r.FormValue("upload") == "on" || r.FormValue("upload") == "true",
	}
	s.startBatch(batchID, local, req)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(composeResp{Status: "ok", BatchID: batchID, Message: "upload accepted"})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	batchID := strings.TrimPrefix(r.URL.Path, "/progress/")
	st, err := s.store.GetStatus(r.Context(), batchID)
	if err != nil {
		http.Error(w, "batch not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	batchID := strings.TrimPrefix(r.URL.Path, "/report/")
	rep, err := s.store.GetReport(r.Context(), batchID)
	if err != nil {
		http.Error(w, "report not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(rep)
}

func (s *Server) handleCancelBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req struct {
		BatchID string `json:"batch_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BatchID == "" {
		http.Error(w, "missing batch_id", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	cancel, ok := s.cancels[req.BatchID]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "batch not running", http.StatusNotFound)
		return
	}
	cancel()
	log.Info().Str("batch_id", req.BatchID).Msg("batch cancel requested")
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "cancelling", "batch_id": req.BatchID})
}

// startBatch records the queued status and runs the batch detached from the
// request context.
func (s *Server) startBatch(batchID, source string, req composeReq) {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[batchID] = cancel
	s.mu.Unlock()

	start := time.Now()
	_ = s.store.SetStatus(ctx, batchID, store.Status{State: store.StateQueued, Start: &start})

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.cancels, batchID)
			s.mu.Unlock()
			cancel()
		}()
		s.runBatch(ctx, batchID, source, req)
	}()
}

func (s *Server) runBatch(ctx context.Context, batchID, source string, req composeReq) {
	fail := func(err error) {
		end := time.Now()
		log.Error().Err(err).Str("batch_id", batchID).Msg("batch failed before composing")
		_ = s.store.SetStatus(context.Background(), batchID, store.Status{
			State: store.StateFailed, Message: err.Error(), End: &end,
		})
	}

	workDir := filepath.Join(os.TempDir(), "pagecomposer", batchID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		fail(err)
		return
	}
	defer os.RemoveAll(workDir)

	local, err := s.prepareSource(ctx, source, workDir)
	if err != nil {
		fail(err)
		return
	}

	doc, err := document.Open(local)
	if err != nil {
		fail(err)
		return
	}

	opts := s.options(req)
	outDir := filepath.Join(s.cfg.Output.Dir, batchID)
	format := req.Format
	if format == "" {
		format = s.cfg.Compose.Format
	}

	var jobs []dispatcher.Job
	switch req.Mode {
	case "quad":
		jobs = dispatcher.QuadJobs(doc, opts, outDir, format, s.cfg.Worker.JobTimeout)
	case "pair-documents":
		secondLocal, err := s.prepareSource(ctx, req.SecondPath, workDir)
		if err != nil {
			fail(err)
			return
		}
		second, err := document.Open(secondLocal)
		if err != nil {
			fail(err)
			return
		}
		jobs = dispatcher.PairDocuments(doc, second, opts, outDir, format, s.cfg.Worker.JobTimeout)
	default:
		jobs = dispatcher.PairJobs(doc, opts, outDir, format, s.cfg.Worker.JobTimeout)
	}

	var done int
	var doneMu sync.Mutex
	start := time.Now()
	pool, err := dispatcher.NewPool(s.proc, s.cfg.Worker.Concurrency, dispatcher.WithOnResult(func(report.JobResult) {
		doneMu.Lock()
		done++
		n := done
		doneMu.Unlock()
		_ = s.store.SetStatus(context.Background(), batchID, store.Status{
			State: store.StateRunning, Done: n, Total: len(jobs), Start: &start,
		})
	}))
	if err != nil {
		fail(err)
		return
	}

	_ = s.store.SetStatus(ctx, batchID, store.Status{State: store.StateRunning, Total: len(jobs), Start: &start})
	batch := pool.Run(ctx, jobs)
	batch.ID = batchID

	if s.uploader != nil && req.Upload {
		var outputs []string
		for _, r := range batch.Results {
			if r.Output != "" {
				outputs = append(outputs, r.Output)
			}
		}
		if _, err := s.uploader.UploadBatch(context.Background(), batchID, outputs); err != nil {
			log.Error().Err(err).Str("batch_id", batchID).Msg("upload of batch outputs failed")
		}
	}

	if rep, err := batch.JSON(); err == nil {
		_ = s.store.SetReport(context.Background(), batchID, rep)
	}

	end := time.Now()
	state := store.StateCompleted
	switch batch.Outcome() {
	case "cancelled":
		state = store.StateCancelled
	case "all_failed":
		state = store.StateFailed
	}
	_ = s.store.SetStatus(context.Background(), batchID, store.Status{
		State: state, Done: len(batch.Results), Total: batch.Total,
		Message: batch.Summary(), Start: &start, End: &end,
	})
}

// prepareSource fetches the reference and routes non-PDF inputs through
// conversion so the compose pipeline only ever sees PDFs.
func (s *Server) prepareSource(ctx context.Context, ref, workDir string) (string, error) {
	local, err := Fetch(ctx, ref, workDir)
	if err != nil {
		return "", err
	}

	info, err := s.detector.Detect(local)
	if err != nil {
		return "", err
	}
	switch info.Kind {
	case filetype.KindPDF:
		return local, nil
	case filetype.KindImage:
		pdf := local + ".pdf"
		if err := pdfops.ImagesToPDF([]string{local}, pdf); err != nil {
			return "", err
		}
		return pdf, nil
	case filetype.KindOffice:
		if !s.conv.Available() {
			return "", fmt.Errorf("%s needs conversion but libreoffice is not installed", ref)
		}
		return s.conv.ConvertToPDF(ctx, local, workDir)
	default:
		return "", fmt.Errorf("unsupported input type: %s", info.Description)
	}
}

func (s *Server) options(req composeReq) compositor.Options {
	opts := s.cfg.Compose.Options()
	if req.DPI > 0 {
		opts.DPI = req.DPI
	}
	if req.MinScale != nil {
		opts.MinScale = *req.MinScale
	}
	if req.MaxScale != nil {
		opts.MaxScale = *req.MaxScale
	}
	if req.PreserveAspectRatio != nil {
		opts.PreserveAspectRatio = *req.PreserveAspectRatio
	}
	if req.AddMargin != nil {
		opts.AddMargin = *req.AddMargin
	}
	if req.AutoFit != nil {
		opts.AutoFit = *req.AutoFit
	}
	return opts
}
