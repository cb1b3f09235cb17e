package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/invoisku/api/internal/services/organization"
)

// OrganizationHandler serves the seller profile endpoints.
type OrganizationHandler struct {
	svc    *organization.Service
	logger *slog.Logger
}

// NewOrganizationHandler creates the handler with its dependencies.
func NewOrganizationHandler(svc *organization.Service, logger *slog.Logger) *OrganizationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrganizationHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers organization routes on the given mux.
func (h *OrganizationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/organizations", h.Create)
	mux.HandleFunc("GET /api/v1/organizations", h.List)
	mux.HandleFunc("GET /api/v1/organizations/{id}", h.Get)
	mux.HandleFunc("PATCH /api/v1/organizations/{id}", h.Update)
	mux.HandleFunc("DELETE /api/v1/organizations/{id}", h.Delete)
}

type organizationRequest struct {
	Name            string `json:"name"`
	TIN             string `json:"tin"`
	BRN             string `json:"brn"`
	SSTNumber       string `json:"sst_number"`
	IndustryCode    string `json:"industry_code"`
	AddressLine     string `json:"address_line"`
	City            string `json:"city"`
	StateCode       string `json:"state_code"`
	Postcode        string `json:"postcode"`
	DefaultCurrency string `json:"default_currency"`
}

// Create handles POST /api/v1/organizations.
func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req organizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" || req.TIN == "" {
		writeError(w, http.StatusBadRequest, "name and tin are required")
		return
	}

	org, err := h.svc.Create(r.Context(), organization.CreateParams{
		Name:            req.Name,
		TIN:             req.TIN,
		BRN:             req.BRN,
		SSTNumber:       req.SSTNumber,
		IndustryCode:    req.IndustryCode,
		AddressLine:     req.AddressLine,
		City:            req.City,
		StateCode:       req.StateCode,
		Postcode:        req.Postcode,
		DefaultCurrency: req.DefaultCurrency,
	})
	if err != nil {
		h.logger.Error("creating organization", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, org)
}

// List handles GET /api/v1/organizations.
func (h *OrganizationHandler) List(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.svc.List(r.Context())
	if err != nil {
		h.logger.Error("listing organizations", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if orgs == nil {
		orgs = []organization.Organization{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": orgs})
}

// Get handles GET /api/v1/organizations/{id}.
func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid organization id")
		return
	}

	org, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, organization.ErrNotFound) {
			writeError(w, http.StatusNotFound, "organization not found")
			return
		}
		h.logger.Error("getting organization", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, org)
}

// Update handles PATCH /api/v1/organizations/{id}.
func (h *OrganizationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid organization id")
		return
	}

	var req organizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	org, err := h.svc.Update(r.Context(), id, organization.UpdateParams{
		Name:            req.Name,
		TIN:             req.TIN,
		BRN:             req.BRN,
		SSTNumber:       req.SSTNumber,
		IndustryCode:    req.IndustryCode,
		AddressLine:     req.AddressLine,
		City:            req.City,
		StateCode:       req.StateCode,
		Postcode:        req.Postcode,
		DefaultCurrency: req.DefaultCurrency,
	})
	if err != nil {
		if errors.Is(err, organization.ErrNotFound) {
			writeError(w, http.StatusNotFound, "organization not found")
			return
		}
		h.logger.Error("updating organization", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, org)
}

// Delete handles DELETE /api/v1/organizations/{id}.
func (h *OrganizationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid organization id")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		if errors.Is(err, organization.ErrNotFound) {
			writeError(w, http.StatusNotFound, "organization not found")
			return
		}
		h.logger.Error("deleting organization", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
