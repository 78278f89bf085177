package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/contaflux/contaflux/internal/domain/classification"
	"github.com/contaflux/contaflux/internal/domain/export"
	"github.com/contaflux/contaflux/pkg/storage"
)

// uploads are capped well above any realistic statement or receipt
const maxUploadBytes = 32 << 20

type processReceiptResponse struct {
	Message    string `json:"message"`
	OutputPath string `json:"outputPath"`
	DocumentID string `json:"documentId"`
	Documents  int    `json:"documents"`
}

func (s *Server) handleProcessReceipt(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	path, docID, ok := s.saveUpload(w, r, storage.KindReceiptPDF)
	if !ok {
		return
	}

	result, err := s.receipts.Process(r.Context(), path, userID.String(), r.FormValue("format"))
	if err != nil {
		documentsProcessed.WithLabelValues("receipt", "error").Inc()
		if errors.Is(err, export.ErrNoRows) {
			writeError(w, http.StatusUnprocessableEntity, "no usable entries found in document")
			return
		}
		s.logger.Error("receipt processing failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "receipt processing failed")
		return
	}

	documentsProcessed.WithLabelValues("receipt", "completed").Inc()
	writeJSON(w, http.StatusOK, processReceiptResponse{
		Message:    result.Message,
		OutputPath: result.OutputPath,
		DocumentID: docID,
		Documents:  len(result.Receipts),
	})
}

func (s *Server) handleProcessStatement(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	path, _, ok := s.saveUpload(w, r, storage.KindStatementOFX)
	if !ok {
		return
	}
	taxID := r.FormValue("taxId")
	reviewEmail := r.FormValue("reviewEmail")

	outcome, err := s.statements.Process(r.Context(), path, userID.String(), taxID, reviewEmail)
	if err != nil {
		documentsProcessed.WithLabelValues("statement", "error").Inc()
		if errors.Is(err, export.ErrNoRows) {
			writeError(w, http.StatusUnprocessableEntity, "no usable transactions found in statement")
			return
		}
		s.logger.Error("statement processing failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "statement processing failed")
		return
	}

	documentsProcessed.WithLabelValues("statement", string(outcome.Status)).Inc()
	writeJSON(w, http.StatusOK, outcome)
}

type finalizeRequest struct {
	TaxID       string                           `json:"taxId"`
	Classified  []classification.ClassifiedGroup `json:"classified"`
	Pending     []classification.PendingGroup    `json:"pending"`
	Resolutions []classification.Resolution      `json:"resolutions"`
}

type finalizeResponse struct {
	*classification.Outcome
	RuleError string `json:"ruleError,omitempty"`
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	var req finalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Resolutions) == 0 {
		writeError(w, http.StatusBadRequest, "at least one resolution is required")
		return
	}

	outcome, err := s.statements.Finalize(r.Context(), userID.String(), req.TaxID,
		req.Classified, req.Pending, req.Resolutions)
	if err != nil && outcome == nil {
		if errors.Is(err, export.ErrNoRows) {
			writeError(w, http.StatusUnprocessableEntity, "nothing to export")
			return
		}
		s.logger.Error("finalize failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "finalize failed")
		return
	}

	resp := finalizeResponse{Outcome: outcome}
	if err != nil {
		// rules were not persisted but the export was written
		resp.RuleError = err.Error()
	}

	s.reindexTerms(r, userID.String(), req.TaxID)
	writeJSON(w, http.StatusOK, resp)
}

// reindexTerms refreshes the full-text index after new rules land. Best
// effort; search lagging behind the store is acceptable.
func (s *Server) reindexTerms(r *http.Request, userID, taxID string) {
	if s.search == nil {
		return
	}
	rules, err := s.terms.FindAllRelevant(r.Context(), userID, taxID)
	if err != nil {
		s.logger.Warn("term reindex skipped", slog.Any("error", err))
		return
	}
	terms := make([]classification.SpecialTerm, 0, len(rules))
	for _, term := range rules {
		terms = append(terms, term)
	}
	if err := s.search.IndexTerms(terms); err != nil {
		s.logger.Warn("term reindex failed", slog.Any("error", err))
	}
}

func (s *Server) handleSearchTerms(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	results, err := s.search.Search(userID.String(), query, limit)
	if err != nil {
		s.logger.Error("term search failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" || name != filepath.Base(name) {
		writeError(w, http.StatusBadRequest, "invalid file name")
		return
	}
	http.ServeFile(w, r, filepath.Join(s.workspace.OutputDir, name))
}

func (s *Server) handleClean(w http.ResponseWriter, _ *http.Request) {
	if err := s.workspace.Clear(); err != nil {
		s.logger.Error("workspace clean failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "clean failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// saveUpload stores the multipart "file" field through the document
// store and returns its on-disk path. Writes the error response itself
// when something goes wrong.
func (s *Server) saveUpload(w http.ResponseWriter, r *http.Request, kind storage.DocumentKind) (string, string, bool) {
	userID := UserID(r.Context())

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return "", "", false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return "", "", false
	}
	defer file.Close()

	info, err := s.documents.Save(r.Context(), userID, header.Filename, kind, file)
	if err != nil {
		s.logger.Error("upload save failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not store upload")
		return "", "", false
	}

	return s.documents.AbsPath(userID, info), info.ID.String(), true
}
