package invoice

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
)

// maxUploadSize bounds multipart uploads
const maxUploadSize = int64(50 << 20)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// jsonError writes {"error": message}
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListInvoices returns every recorded extraction
func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.ListRecords()
	if err != nil {
		slog.Error("Error listing records", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// contentTypeFor infers a MIME type from the upload's extension
func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".bmp":
		return "image/bmp"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		// left to content sniffing
		return ""
	}
}

// handleUploadInvoice extracts a multipart upload
func (s *Server) handleUploadInvoice(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "File is too large. Maximum size is 50MB.", http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		jsonError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFor(header.Filename)
	}

	record, err := s.service.ProcessUpload(r.Context(), header.Filename, data, contentType, r.FormValue("provider"))
	if err != nil {
		slog.Error("Error processing invoice", "filename", header.Filename, "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// a failed extraction is still a recorded result
	writeJSON(w, http.StatusCreated, record)
}

type urlRequest struct {
	URL      string `json:"url"`
	Provider string `json:"provider"`
}

// handleExtractURL extracts the invoice behind a URL
func (s *Server) handleExtractURL(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	record, err := s.service.ProcessURL(r.Context(), req.URL, req.Provider)
	if err != nil {
		slog.Error("Error processing invoice url", "url", req.URL, "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

// handleGetInvoice returns a single record
func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	record, err := s.service.GetRecord(r.PathValue("id"))
	if err != nil {
		corsError(w, "Invoice not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleGetInvoiceFile returns the uploaded file for a record
func (s *Server) handleGetInvoiceFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetRecordFile(r.PathValue("id"))
	if err != nil {
		corsError(w, "File not found", http.StatusNotFound)
		return
	}

	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteInvoice deletes a record and its file
func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteRecord(r.PathValue("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			corsError(w, "Invoice not found", http.StatusNotFound)
			return
		}
		corsError(w, "Error deleting invoice", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
