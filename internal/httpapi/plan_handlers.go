package httpapi

import (
	"net/http"

	"kingsbuilder.org/internal/audit"
	"kingsbuilder.org/internal/estate"
)

// --- installments ---

type createInstallmentRequest struct {
	BookingID string `json:"booking_id"`
	Number    int    `json:"installment_number"`
	DueDate   string `json:"due_date"`
	Amount    int64  `json:"amount"`
	Remarks   string `json:"remarks"`
}

type updateInstallmentRequest struct {
	DueDate    *string `json:"due_date"`
	Amount     *int64  `json:"amount"`
	PaidAmount *int64  `json:"paid_amount"`
	DueStatus  *string `json:"due_status"`
	PaidDate   *string `json:"paid_date"`
	Remarks    *string `json:"remarks"`
}

func (a *API) handleInstallmentsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createInstallment(w, r)
	case http.MethodGet:
		a.listInstallments(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleInstallmentResource(w http.ResponseWriter, r *http.Request) {
	id := resourceID(r.URL.Path, "/api/v1/installments/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, codeNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getInstallment(w, r, id)
	case http.MethodPatch:
		a.updateInstallment(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
	}
}

func (a *API) createInstallment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req createInstallmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	installment, err := a.estate.CreateInstallment(r.Context(), actor, estate.InstallmentInput{
		BookingID: req.BookingID,
		Number:    req.Number,
		DueDate:   dueDate,
		Amount:    req.Amount,
		Remarks:   req.Remarks,
	})
	if err != nil {
		handleEstateError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "installment.create", map[string]any{
		"actor_id":       actor.ID,
		"installment_id": installment.ID,
		"booking_id":     installment.BookingID,
		"amount":         installment.Amount,
	})

	w.Header().Set("Location", "/api/v1/installments/"+installment.ID)
	writeJSON(w, http.StatusCreated, installment)
}

func (a *API) listInstallments(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	q, err := a.listQueryFrom(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	installments, page, err := a.estate.ListInstallments(r.Context(), actor, q)
	if err != nil {
		handleEstateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listEnvelope{Items: installments, Page: page})
}

func (a *API) getInstallment(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	installment, err := a.estate.GetInstallment(r.Context(), actor, id)
	if err != nil {
		handleEstateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, installment)
}

func (a *API) updateInstallment(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req updateInstallmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	upd := estate.InstallmentUpdate{
		Amount:     req.Amount,
		PaidAmount: req.PaidAmount,
		DueStatus:  req.DueStatus,
		Remarks:    req.Remarks,
	}
	if req.DueDate != nil {
		due, err := parseDate(*req.DueDate)
		if err != nil || due == nil {
			writeError(w, r, http.StatusBadRequest, codeValidation, "dates must use the YYYY-MM-DD format")
			return
		}
		upd.DueDate = due
	}
	if req.PaidDate != nil {
		paid, err := parseDate(*req.PaidDate)
		if err != nil || paid == nil {
			writeError(w, r, http.StatusBadRequest, codeValidation, "dates must use the YYYY-MM-DD format")
			return
		}
		upd.PaidDate = paid
	}
	installment, err := a.estate.UpdateInstallment(r.Context(), actor, id, upd)
	if err != nil {
		handleEstateError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "installment.update", map[string]any{
		"actor_id":       actor.ID,
		"installment_id": installment.ID,
		"due_status":     installment.DueStatus,
	})

	writeJSON(w, http.StatusOK, installment)
}

// --- transfers ---

type createTransferRequest struct {
	BookingID    string `json:"booking_id"`
	ToCustomerID string `json:"to_customer_id"`
	TransferFee  int64  `json:"transfer_fee"`
	Remarks      string `json:"remarks"`
}

type rejectTransferRequest struct {
	Remarks string `json:"remarks"`
}

func (a *API) handleTransfersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createTransfer(w, r)
	case http.MethodGet:
		a.listTransfers(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleTransferResource(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if id := resourceID(path, "/api/v1/transfers/"); id != "" {
		switch r.Method {
		case http.MethodGet:
			a.getTransfer(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet)
		}
		return
	}
	// POST /api/v1/transfers/{id}/approve and /{id}/reject
	const (
		approveSuffix = "/approve"
		rejectSuffix  = "/reject"
	)
	trimmed := path[len("/api/v1/transfers/"):]
	if len(trimmed) > len(approveSuffix) && trimmed[len(trimmed)-len(approveSuffix):] == approveSuffix {
		id := trimmed[:len(trimmed)-len(approveSuffix)]
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.approveTransfer(w, r, id)
		return
	}
	if len(trimmed) > len(rejectSuffix) && trimmed[len(trimmed)-len(rejectSuffix):] == rejectSuffix {
		id := trimmed[:len(trimmed)-len(rejectSuffix)]
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.rejectTransfer(w, r, id)
		return
	}
	writeError(w, r, http.StatusNotFound, codeNotFound, "resource not found")
}

func (a *API) createTransfer(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req createTransferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	transfer, err := a.estate.CreateTransfer(r.Context(), actor, estate.TransferInput{
		BookingID:    req.BookingID,
		ToCustomerID: req.ToCustomerID,
		TransferFee:  req.TransferFee,
		Remarks:      req.Remarks,
	})
	if err != nil {
		handleEstateError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "transfer.create", map[string]any{
		"actor_id":         actor.ID,
		"transfer_id":      transfer.ID,
		"booking_id":       transfer.BookingID,
		"from_customer_id": transfer.FromCustomerID,
		"to_customer_id":   transfer.ToCustomerID,
	})

	w.Header().Set("Location", "/api/v1/transfers/"+transfer.ID)
	writeJSON(w, http.StatusCreated, transfer)
}

func (a *API) listTransfers(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	q, err := a.listQueryFrom(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	transfers, page, err := a.estate.ListTransfers(r.Context(), actor, q)
	if err != nil {
		handleEstateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listEnvelope{Items: transfers, Page: page})
}

func (a *API) getTransfer(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	transfer, err := a.estate.GetTransfer(r.Context(), actor, id)
	if err != nil {
		handleEstateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transfer)
}

func (a *API) approveTransfer(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	transfer, err := a.estate.ApproveTransfer(r.Context(), actor, id)
	if err != nil {
		handleEstateError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "transfer.approve", map[string]any{
		"actor_id":       actor.ID,
		"transfer_id":    transfer.ID,
		"booking_id":     transfer.BookingID,
		"to_customer_id": transfer.ToCustomerID,
	})

	writeJSON(w, http.StatusOK, transfer)
}

func (a *API) rejectTransfer(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req rejectTransferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	transfer, err := a.estate.RejectTransfer(r.Context(), actor, id, req.Remarks)
	if err != nil {
		handleEstateError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "transfer.reject", map[string]any{
		"actor_id":    actor.ID,
		"transfer_id": transfer.ID,
	})

	writeJSON(w, http.StatusOK, transfer)
}
