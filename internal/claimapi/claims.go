package claimapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/fnol/internal/doceval"
	"github.com/linnemanlabs/fnol/internal/triage"
)

const defaultSimilarTopK = 10

func (a *API) handleSubmitClaim(w http.ResponseWriter, r *http.Request) {
	var in triage.Intake
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if in.ClaimantID == "" || in.IncidentType == "" {
		writeError(w, http.StatusBadRequest, "claimant_id and incident_type are required")
		return
	}

	c, err := a.svc.Submit(r.Context(), &in)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to submit claim", "claimant_id", in.ClaimantID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("fnol.claim.id", c.ID))

	writeJSON(w, http.StatusAccepted, c)
}

func (a *API) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("fnol.claim.id", id))

	c, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get claim", "claim_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	span.SetAttributes(attribute.String("fnol.claim.status", string(c.Status)))
	writeJSON(w, http.StatusOK, c)
}

func (a *API) handleListEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, ok, err := a.svc.Get(r.Context(), id); err != nil {
		a.logger.Error(r.Context(), err, "failed to get claim", "claim_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	} else if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	writeJSON(w, http.StatusOK, a.bus.ClaimHistory(id))
}

func (a *API) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	if a.sink == nil {
		writeError(w, http.StatusNotFound, "notifications not enabled")
		return
	}
	id := chi.URLParam(r, "id")

	notifications, err := a.sink.List(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list notifications", "claim_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (a *API) handleSimilarClaims(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	topK := defaultSimilarTopK
	if s := r.URL.Query().Get("top_k"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid top_k")
			return
		}
		topK = n
	}

	result, err := a.svc.SimilarClaims(r.Context(), id, topK)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		a.logger.Error(r.Context(), err, "similar claims lookup failed", "claim_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get claim", "claim_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if err := r.ParseMultipartForm(doceval.MaxDocumentSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart payload")
		return
	}
	docType := r.FormValue("document_type")
	if docType == "" {
		writeError(w, http.StatusBadRequest, "document_type is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, doceval.MaxDocumentSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	doc := doceval.Document{
		Data:      data,
		MediaType: header.Header.Get("Content-Type"),
	}

	verdict, err := a.evaluator.Evaluate(r.Context(), doc, docType, c)
	if err != nil {
		// Evaluation failure must not stall the claim: fall back to a
		// mismatch-signaling verdict and keep the pipeline moving.
		a.logger.Error(r.Context(), err, "document evaluation failed",
			"claim_id", id, "document_type", docType)
		verdict = doceval.Fallback(docType)
	}

	if err := a.svc.ProcessDocument(r.Context(), id, docType, verdict); err != nil {
		a.logger.Error(r.Context(), err, "failed to process document", "claim_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusAccepted, verdict)
}

func (a *API) handleCloseClaim(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	if err := a.svc.Close(r.Context(), id, body.Reason); err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		a.logger.Error(r.Context(), err, "failed to close claim", "claim_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}
