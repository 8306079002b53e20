package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/myphonelist/backend/internal/model"
	"github.com/myphonelist/backend/internal/repository"
	"github.com/myphonelist/backend/internal/service"
)

// maxUploadBytes は import / share のリクエストボディ上限
const maxUploadBytes = 10 << 20

// ContactHandler serves the contact API.
type ContactHandler struct {
	contactService service.ContactService
}

// NewContactHandler creates a ContactHandler with the given service.
func NewContactHandler(contactService service.ContactService) *ContactHandler {
	return &ContactHandler{contactService: contactService}
}

// contactRequest is the JSON body for POST /api/contacts and PUT /api/contacts/{id}.
type contactRequest struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`
	Tag         string `json:"tag"`
}

type listResponse struct {
	Contacts []*model.Contact `json:"contacts"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// List handles GET /api/contacts?q=.
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.contactService.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		slog.Error("list contacts failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed")
		return
	}
	// Return [] not null for empty lists
	if contacts == nil {
		contacts = []*model.Contact{}
	}
	writeJSON(w, http.StatusOK, listResponse{Contacts: contacts})
}

// Get handles GET /api/contacts/{id}.
func (h *ContactHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	c, err := h.contactService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		slog.Error("get contact failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "get_failed")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Create handles POST /api/contacts. Fields are stored as given.
func (h *ContactHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	c, err := h.contactService.Add(r.Context(), req.Name, req.PhoneNumber, req.Email, req.Tag)
	if err != nil {
		slog.Error("add contact failed", "error", err)
		writeError(w, http.StatusInternalServerError, "create_failed")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// Update handles PUT /api/contacts/{id} as a full replacement.
// An unknown id is 404; nothing is written.
func (h *ContactHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	// ストアの Update は存在しない id を無視するので、ここで 404 を返す
	if _, err := h.contactService.Get(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		slog.Error("get contact failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "update_failed")
		return
	}
	c := &model.Contact{ID: id, Name: req.Name, PhoneNumber: req.PhoneNumber, Email: req.Email, Tag: req.Tag}
	if err := h.contactService.Update(r.Context(), c); err != nil {
		slog.Error("update contact failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "update_failed")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Delete handles DELETE /api/contacts/{id}.
func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	if err := h.contactService.Delete(r.Context(), &model.Contact{ID: id}); err != nil {
		slog.Error("delete contact failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "delete_failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Share handles POST /api/contacts/share.
// text/plain は [Name]/[Mobile]/[Home] 形式、text/vcard と text/x-vcard は VCF として取り込む
func (h *ContactHandler) Share(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_media_type")
		return
	}

	switch mediaType {
	case "text/vcard", "text/x-vcard":
		h.importVCF(w, r)
	case "text/plain":
		body, err := readBody(w, r)
		if err != nil {
			if isTooLarge(err) {
				writeError(w, http.StatusRequestEntityTooLarge, "body_too_large")
			} else {
				writeError(w, http.StatusBadRequest, "invalid_body")
			}
			return
		}
		c, added, err := h.contactService.AddFromSharedText(r.Context(), string(body))
		if err != nil {
			slog.Error("add shared contact failed", "error", err)
			writeError(w, http.StatusInternalServerError, "share_failed")
			return
		}
		if !added {
			writeJSON(w, http.StatusOK, map[string]bool{"added": false})
			return
		}
		writeJSON(w, http.StatusCreated, c)
	default:
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_media_type")
	}
}

// Import handles POST /api/contacts/import with a vCard body.
func (h *ContactHandler) Import(w http.ResponseWriter, r *http.Request) {
	h.importVCF(w, r)
}

func (h *ContactHandler) importVCF(w http.ResponseWriter, r *http.Request) {
	body := &limitedBody{r: http.MaxBytesReader(w, r.Body, maxUploadBytes)}
	n, err := h.contactService.ImportVCF(r.Context(), body)
	if err != nil {
		slog.Warn("vcf import failed", "added", n, "error", err)
		status, code := http.StatusBadRequest, "import_failed"
		var se *repository.StorageError
		switch {
		case body.tooLarge || isTooLarge(err):
			status, code = http.StatusRequestEntityTooLarge, "body_too_large"
		case errors.As(err, &se):
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, map[string]any{"error": code, "imported": n})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}

// Export handles GET /api/contacts/export.
func (h *ContactHandler) Export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if _, err := h.contactService.ExportVCF(r.Context(), &buf); err != nil {
		if errors.Is(err, service.ErrNothingToExport) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		slog.Error("vcf export failed", "error", err)
		writeError(w, http.StatusInternalServerError, "export_failed")
		return
	}

	w.Header().Set("Content-Type", service.VCardContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="contacts_export.vcf"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("vcf export: client write failed", "error", err)
	}
}

// Backup handles POST /api/contacts/backup.
func (h *ContactHandler) Backup(w http.ResponseWriter, r *http.Request) {
	res, err := h.contactService.Backup(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNothingToExport):
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, service.ErrNoStorage):
			writeError(w, http.StatusServiceUnavailable, "storage_not_configured")
		default:
			slog.Error("vcf backup failed", "error", err)
			writeError(w, http.StatusInternalServerError, "backup_failed")
		}
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	var buf bytes.Buffer
	_, err := buf.ReadFrom(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	return buf.Bytes(), err
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

// limitedBody remembers whether the size limit was hit, since the vCard
// decoder does not always keep the read error in its chain.
type limitedBody struct {
	r        io.Reader
	tooLarge bool
}

func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err != nil && isTooLarge(err) {
		b.tooLarge = true
	}
	return n, err
}
