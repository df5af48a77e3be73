/**
 * @description
 * This file contains the HTTP handlers for the approval-workflow endpoints.
 * Handlers parse the request, resolve the approver's context from the token
 * subject, call the validation engine and map engine errors to HTTP status
 * codes: precondition conflicts are 409, unknown codes 404, malformed input
 * 400, everything unexpected a generic 500.
 *
 * Every transition endpoint has a single form (code in the path) returning
 * `{message}` and a batch form (JSON body `{ids: [...]}`) returning the
 * partitioned `{message, updated, success, failed}` outcome. Batch calls
 * answer 200 even when items failed: the partition is data, not a transport
 * error.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: For URL parameter extraction.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Miriol236/GESTION-QP-sub001/internal/app"
	"github.com/Miriol236/GESTION-QP-sub001/internal/domain"
	"github.com/Miriol236/GESTION-QP-sub001/internal/store"
)

// ValidationHandlers holds the validation engine that handlers will use.
type ValidationHandlers struct {
	service *app.Service
}

// NewValidationHandlers creates a new instance of ValidationHandlers.
func NewValidationHandlers(service *app.Service) *ValidationHandlers {
	return &ValidationHandlers{service: service}
}

type messageResponse struct {
	Message string `json:"message"`
}

type batchSuccessItem struct {
	Code string `json:"code"`
}

type batchResponse struct {
	Message string                    `json:"message"`
	BatchID string                    `json:"batch_id"`
	Updated int                       `json:"updated"`
	Success []batchSuccessItem        `json:"success"`
	Failed  []domain.BatchItemFailure `json:"failed"`
}

type batchRequest struct {
	IDs []string `json:"ids"`
}

func (h *ValidationHandlers) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}

func (h *ValidationHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, messageResponse{Message: message})
}

// statusForError maps engine/store errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, store.ErrBeneficiaryNotFound),
		errors.Is(err, store.ErrDomiciliationNotFound),
		errors.Is(err, store.ErrPaymentNotFound),
		errors.Is(err, store.ErrElementNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrAlreadySubmitted),
		errors.Is(err, store.ErrAlreadyApproved),
		errors.Is(err, store.ErrConcurrentSubmission),
		errors.Is(err, store.ErrNoApprovedAccount),
		errors.Is(err, store.ErrNoActivePeriod),
		errors.Is(err, store.ErrTransferNotReady),
		errors.Is(err, store.ErrPaymentNotEditable),
		errors.Is(err, app.ErrInvalidRIBKey),
		errors.Is(err, app.ErrNothingToSubmit):
		return http.StatusConflict
	case errors.Is(err, app.ErrEmptyBatch):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrBatchRateLimited):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// requireActor resolves the approver context for the authenticated user.
func (h *ValidationHandlers) requireActor(w http.ResponseWriter, r *http.Request) (domain.ActorContext, bool) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return domain.ActorContext{}, false
	}
	actor, err := h.service.ResolveActor(r.Context(), userID)
	if err != nil {
		log.Printf("level=warn component=api msg=\"actor resolution failed\" user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusBadRequest, "Approver not recognized")
		return domain.ActorContext{}, false
	}
	return *actor, true
}

// singleTransition runs one path-code transition and writes the outcome.
func (h *ValidationHandlers) singleTransition(
	w http.ResponseWriter, r *http.Request,
	endpoint, successMessage string,
	op func(domain.ActorContext, string) error,
) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		h.writeError(w, http.StatusBadRequest, "Code is required")
		return
	}

	if err := op(actor, code); err != nil {
		status := statusForError(err)
		log.Printf("level=warn component=api endpoint=%s outcome=failed code=%s user_id=%s err=%v", endpoint, code, actor.UserID, err)
		if status == http.StatusInternalServerError {
			h.writeError(w, status, "Internal server error")
			return
		}
		h.writeError(w, status, err.Error())
		return
	}

	log.Printf("level=info component=api endpoint=%s outcome=ok code=%s user_id=%s level=%d", endpoint, code, actor.UserID, actor.Level)
	h.writeJSON(w, http.StatusOK, messageResponse{Message: successMessage})
}

// batchTransition runs one body-ids transition and writes the partition.
func (h *ValidationHandlers) batchTransition(
	w http.ResponseWriter, r *http.Request,
	endpoint, successMessage string,
	op func(domain.ActorContext, []string) (*domain.BatchResult, error),
) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		h.writeError(w, http.StatusBadRequest, "ids must not be empty")
		return
	}

	result, err := op(actor, req.IDs)
	if err != nil {
		status := statusForError(err)
		log.Printf("level=warn component=api endpoint=%s outcome=failed user_id=%s err=%v", endpoint, actor.UserID, err)
		if status == http.StatusInternalServerError {
			h.writeError(w, status, "Internal server error")
			return
		}
		h.writeError(w, status, err.Error())
		return
	}

	log.Printf("level=info component=api endpoint=%s outcome=ok user_id=%s updated=%d failed=%d", endpoint, actor.UserID, result.Updated, len(result.Failed))
	success := make([]batchSuccessItem, 0, len(result.Success))
	for _, code := range result.Success {
		success = append(success, batchSuccessItem{Code: code})
	}
	failed := result.Failed
	if failed == nil {
		failed = []domain.BatchItemFailure{}
	}
	h.writeJSON(w, http.StatusOK, batchResponse{
		Message: successMessage,
		BatchID: result.BatchID.String(),
		Updated: result.Updated,
		Success: success,
		Failed:  failed,
	})
}

// Beneficiary transitions

func (h *ValidationHandlers) SubmitBeneficiaryHandler(w http.ResponseWriter, r *http.Request) {
	h.singleTransition(w, r, "submit_beneficiary", "Beneficiary submitted", func(actor domain.ActorContext, code string) error {
		return h.service.SubmitBeneficiary(r.Context(), actor, code)
	})
}

func (h *ValidationHandlers) ApproveBeneficiaryHandler(w http.ResponseWriter, r *http.Request) {
	h.singleTransition(w, r, "approve_beneficiary", "Beneficiary approved", func(actor domain.ActorContext, code string) error {
		return h.service.ApproveBeneficiary(r.Context(), actor, code)
	})
}

func (h *ValidationHandlers) RejectBeneficiaryHandler(w http.ResponseWriter, r *http.Request) {
	h.singleTransition(w, r, "reject_beneficiary", "Beneficiary rejected", func(actor domain.ActorContext, code string) error {
		return h.service.RejectBeneficiary(r.Context(), actor, code)
	})
}

func (h *ValidationHandlers) SubmitBeneficiaryBatchHandler(w http.ResponseWriter, r *http.Request) {
	h.batchTransition(w, r, "submit_beneficiary_batch", "Beneficiaries submitted", func(actor domain.ActorContext, ids []string) (*domain.BatchResult, error) {
		return h.service.SubmitBeneficiaryBatch(r.Context(), actor, ids)
	})
}

func (h *ValidationHandlers) ApproveBeneficiaryBatchHandler(w http.ResponseWriter, r *http.Request) {
	h.batchTransition(w, r, "approve_beneficiary_batch", "Beneficiaries approved", func(actor domain.ActorContext, ids []string) (*domain.BatchResult, error) {
		return h.service.ApproveBeneficiaryBatch(r.Context(), actor, ids)
	})
}

func (h *ValidationHandlers) RejectBeneficiaryBatchHandler(w http.ResponseWriter, r *http.Request) {
	h.batchTransition(w, r, "reject_beneficiary_batch", "Beneficiaries rejected", func(actor domain.ActorContext, ids []string) (*domain.BatchResult, error) {
		return h.service.RejectBeneficiaryBatch(r.Context(), actor, ids)
	})
}

type combinedSubmitRequest struct {
	Confirmed bool `json:"confirmed"`
}

// CombinedSubmitHandler submits a beneficiary together with its most recent
// domiciliation. When both are pending and the request is unconfirmed, it
// answers 202 with the description of what a confirmed call would submit.
func (h *ValidationHandlers) CombinedSubmitHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		h.writeError(w, http.StatusBadRequest, "Code is required")
		return
	}

	var req combinedSubmitRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	outcome, err := h.service.CombinedSubmit(r.Context(), actor, code, req.Confirmed)
	if err != nil {
		status := statusForError(err)
		log.Printf("level=warn component=api endpoint=combined_submit outcome=failed code=%s user_id=%s err=%v", code, actor.UserID, err)
		if status == http.StatusInternalServerError {
			h.writeError(w, status, "Internal server error")
			return
		}
		h.writeError(w, status, err.Error())
		return
	}

	if outcome.ConfirmationRequired {
		h.writeJSON(w, http.StatusAccepted, outcome)
		return
	}
	h.writeJSON(w, http.StatusOK, outcome)
}

// Domiciliation transitions

func (h *ValidationHandlers) SubmitDomiciliationHandler(w http.ResponseWriter, r *http.Request) {
	h.singleTransition(w, r, "submit_domiciliation", "Domiciliation submitted", func(actor domain.ActorContext, code string) error {
		return h.service.SubmitDomiciliation(r.Context(), actor, code)
	})
}

func (h *ValidationHandlers) ApproveDomiciliationHandler(w http.ResponseWriter, r *http.Request) {
	h.singleTransition(w, r, "approve_domiciliation", "Domiciliation approved", func(actor domain.ActorContext, code string) error {
		return h.service.ApproveDomiciliation(r.Context(), actor, code)
	})
}

func (h *ValidationHandlers) RejectDomiciliationHandler(w http.ResponseWriter, r *http.Request) {
	h.singleTransition(w, r, "reject_domiciliation", "Domiciliation rejected", func(actor domain.ActorContext, code string) error {
		return h.service.RejectDomiciliation(r.Context(), actor, code)
	})
}

func (h *ValidationHandlers) SubmitDomiciliationBatchHandler(w http.ResponseWriter, r *http.Request) {
	h.batchTransition(w, r, "submit_domiciliation_batch", "Domiciliations submitted", func(actor domain.ActorContext, ids []string) (*domain.BatchResult, error) {
		return h.service.SubmitDomiciliationBatch(r.Context(), actor, ids)
	})
}

func (h *ValidationHandlers) ApproveDomiciliationBatchHandler(w http.ResponseWriter, r *http.Request) {
	h.batchTransition(w, r, "approve_domiciliation_batch", "Domiciliations approved", func(actor domain.ActorContext, ids []string) (*domain.BatchResult, error) {
		return h.service.ApproveDomiciliationBatch(r.Context(), actor, ids)
	})
}

func (h *ValidationHandlers) RejectDomiciliationBatchHandler(w http.ResponseWriter, r *http.Request) {
	h.batchTransition(w, r, "reject_domiciliation_batch", "Domiciliations rejected", func(actor domain.ActorContext, ids []string) (*domain.BatchResult, error) {
		return h.service.RejectDomiciliationBatch(r.Context(), actor, ids)
	})
}

// Payment transitions

func (h *ValidationHandlers) SubmitPaymentHandler(w http.ResponseWriter, r *http.Request) {
	h.singleTransition(w, r, "submit_payment", "Payment validated", func(actor domain.ActorContext, code string) error {
		return h.service.SubmitPayment(r.Context(), actor, code)
	})
}

func (h *ValidationHandlers) ApprovePaymentHandler(w http.ResponseWriter, r *http.Request) {
	h.singleTransition(w, r, "approve_payment", "Payment approved", func(actor domain.ActorContext, code string) error {
		return h.service.ApprovePayment(r.Context(), actor, code)
	})
}

func (h *ValidationHandlers) RejectPaymentHandler(w http.ResponseWriter, r *http.Request) {
	h.singleTransition(w, r, "reject_payment", "Payment rejected", func(actor domain.ActorContext, code string) error {
		return h.service.RejectPayment(r.Context(), actor, code)
	})
}

func (h *ValidationHandlers) SubmitPaymentBatchHandler(w http.ResponseWriter, r *http.Request) {
	h.batchTransition(w, r, "submit_payment_batch", "Payments validated", func(actor domain.ActorContext, ids []string) (*domain.BatchResult, error) {
		return h.service.SubmitPaymentBatch(r.Context(), actor, ids)
	})
}

func (h *ValidationHandlers) ApprovePaymentBatchHandler(w http.ResponseWriter, r *http.Request) {
	h.batchTransition(w, r, "approve_payment_batch", "Payments approved", func(actor domain.ActorContext, ids []string) (*domain.BatchResult, error) {
		return h.service.ApprovePaymentBatch(r.Context(), actor, ids)
	})
}

func (h *ValidationHandlers) RejectPaymentBatchHandler(w http.ResponseWriter, r *http.Request) {
	h.batchTransition(w, r, "reject_payment_batch", "Payments rejected", func(actor domain.ActorContext, ids []string) (*domain.BatchResult, error) {
		return h.service.RejectPaymentBatch(r.Context(), actor, ids)
	})
}

// RecordTransferHandler counts an executed bank transfer against a payment.
func (h *ValidationHandlers) RecordTransferHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireActor(w, r); !ok {
		return
	}
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		h.writeError(w, http.StatusBadRequest, "Code is required")
		return
	}

	payment, err := h.service.RecordTransfer(r.Context(), code)
	if err != nil {
		status := statusForError(err)
		log.Printf("level=warn component=api endpoint=record_transfer outcome=failed code=%s err=%v", code, err)
		if status == http.StatusInternalServerError {
			h.writeError(w, status, "Internal server error")
			return
		}
		h.writeError(w, status, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, payment)
}

// GetPaymentHandler returns a payment with its line items and computed net.
func (h *ValidationHandlers) GetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		h.writeError(w, http.StatusBadRequest, "Code is required")
		return
	}
	payment, err := h.service.GetPaymentWithDetails(r.Context(), code)
	if err != nil {
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			log.Printf("level=error component=api endpoint=get_payment code=%s err=%v", code, err)
			h.writeError(w, status, "Internal server error")
			return
		}
		h.writeError(w, status, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, payment)
}

type addPaymentDetailRequest struct {
	ElementCode string `json:"element_code"`
	Amount      int64  `json:"amount"`
}

// AddPaymentDetailHandler appends a line item to a draft payment.
func (h *ValidationHandlers) AddPaymentDetailHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireActor(w, r); !ok {
		return
	}
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	var req addPaymentDetailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.ElementCode) == "" || req.Amount <= 0 {
		h.writeError(w, http.StatusBadRequest, "element_code and a positive amount are required")
		return
	}

	detail, err := h.service.AddPaymentDetail(r.Context(), code, req.ElementCode, req.Amount)
	if err != nil {
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			log.Printf("level=error component=api endpoint=add_payment_detail code=%s err=%v", code, err)
			h.writeError(w, status, "Internal server error")
			return
		}
		h.writeError(w, status, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, detail)
}

// WorklistHandler returns everything pending for the caller, scoped by level.
func (h *ValidationHandlers) WorklistHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	worklists, err := h.service.PendingWorklists(r.Context(), actor)
	if err != nil {
		log.Printf("level=error component=api endpoint=worklist user_id=%s err=%v", actor.UserID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, worklists)
}

type codeResponse struct {
	Code string `json:"code"`
}

// NextBeneficiaryCodeHandler generates the next beneficiary code for the CRUD
// layer, scoped by year and org-unit sigil.
func (h *ValidationHandlers) NextBeneficiaryCodeHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireActor(w, r); !ok {
		return
	}
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "year is required")
		return
	}
	sigil := r.URL.Query().Get("sigil")

	code, err := h.service.NextBeneficiaryCode(r.Context(), year, sigil)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, codeResponse{Code: code})
}

// NextDomiciliationCodeHandler generates the next domiciliation code for a year.
func (h *ValidationHandlers) NextDomiciliationCodeHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireActor(w, r); !ok {
		return
	}
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "year is required")
		return
	}

	code, err := h.service.NextDomiciliationCode(r.Context(), year)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, codeResponse{Code: code})
}
