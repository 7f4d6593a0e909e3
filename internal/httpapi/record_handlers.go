package httpapi

import (
	"net/http"

	"kingsbuilder.org/internal/audit"
	"kingsbuilder.org/internal/estate"
)

// --- customers ---

type createCustomerRequest struct {
	BuilderID        string `json:"builder_id"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	FatherName       string `json:"father_name"`
	CNIC             string `json:"cnic"`
	ContactNumber    string `json:"contact_number"`
	AlternateContact string `json:"alternate_contact"`
	Email            string `json:"email"`
	Address          string `json:"address"`
	City             string `json:"city"`
	Country          string `json:"country"`
	Occupation       string `json:"occupation"`
}

type updateCustomerRequest struct {
	FirstName        *string `json:"first_name"`
	LastName         *string `json:"last_name"`
	FatherName       *string `json:"father_name"`
	CNIC             *string `json:"cnic"`
	ContactNumber    *string `json:"contact_number"`
	AlternateContact *string `json:"alternate_contact"`
	Email            *string `json:"email"`
	Address          *string `json:"address"`
	City             *string `json:"city"`
	Country          *string `json:"country"`
	Occupation       *string `json:"occupation"`
	Status           *string `json:"status"`
}

func (a *API) handleCustomersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createCustomer(w, r)
	case http.MethodGet:
		a.listCustomers(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleCustomerResource(w http.ResponseWriter, r *http.Request) {
	id := resourceID(r.URL.Path, "/api/v1/customers/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, codeNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getCustomer(w, r, id)
	case http.MethodPatch:
		a.updateCustomer(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
	}
}

func (a *API) createCustomer(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req createCustomerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	customer, err := a.estate.CreateCustomer(r.Context(), actor, estate.CustomerInput{
		BuilderID:        req.BuilderID,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		FatherName:       req.FatherName,
		CNIC:             req.CNIC,
		ContactNumber:    req.ContactNumber,
		AlternateContact: req.AlternateContact,
		Email:            req.Email,
		Address:          req.Address,
		City:             req.City,
		Country:          req.Country,
		Occupation:       req.Occupation,
	})
	if err != nil {
		handleEstateError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "customer.create", map[string]any{
		"actor_id":    actor.ID,
		"customer_id": customer.ID,
		"builder_id":  customer.BuilderID,
	})

	w.Header().Set("Location", "/api/v1/customers/"+customer.ID)
	writeJSON(w, http.StatusCreated, customer)
}

func (a *API) listCustomers(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	q, err := a.listQueryFrom(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	customers, page, err := a.estate.ListCustomers(r.Context(), actor, q)
	if err != nil {
		handleEstateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listEnvelope{Items: customers, Page: page})
}

func (a *API) getCustomer(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	customer, err := a.estate.GetCustomer(r.Context(), actor, id)
	if err != nil {
		handleEstateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func (a *API) updateCustomer(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req updateCustomerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	customer, err := a.estate.UpdateCustomer(r.Context(), actor, id, estate.CustomerUpdate{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		FatherName:       req.FatherName,
		CNIC:             req.CNIC,
		ContactNumber:    req.ContactNumber,
		AlternateContact: req.AlternateContact,
		Email:            req.Email,
		Address:          req.Address,
		City:             req.City,
		Country:          req.Country,
		Occupation:       req.Occupation,
		Status:           req.Status,
	})
	if err != nil {
		handleEstateError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "customer.update", map[string]any{
		"actor_id":    actor.ID,
		"customer_id": customer.ID,
	})

	writeJSON(w, http.StatusOK, customer)
}

// --- bookings ---

type createBookingRequest struct {
	InventoryID string `json:"inventory_id"`
	CustomerID  string `json:"customer_id"`
	Amount      int64  `json:"booking_amount"`
	Remarks     string `json:"remarks"`
}

type cancelBookingRequest struct {
	Reason string `json:"cancellation_reason"`
}

func (a *API) handleBookingsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createBooking(w, r)
	case http.MethodGet:
		a.listBookings(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleBookingResource(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if id := resourceID(path, "/api/v1/bookings/"); id != "" {
		switch r.Method {
		case http.MethodGet:
			a.getBooking(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet)
		}
		return
	}
	// POST /api/v1/bookings/{id}/cancel
	const cancelSuffix = "/cancel"
	trimmed := path[len("/api/v1/bookings/"):]
	if len(trimmed) > len(cancelSuffix) && trimmed[len(trimmed)-len(cancelSuffix):] == cancelSuffix {
		id := trimmed[:len(trimmed)-len(cancelSuffix)]
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.cancelBooking(w, r, id)
		return
	}
	writeError(w, r, http.StatusNotFound, codeNotFound, "resource not found")
}

func (a *API) createBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	booking, err := a.estate.CreateBooking(r.Context(), actor, estate.BookingInput{
		InventoryID: req.InventoryID,
		CustomerID:  req.CustomerID,
		Amount:      req.Amount,
		Remarks:     req.Remarks,
	})
	if err != nil {
		handleEstateError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "booking.create", map[string]any{
		"actor_id":     actor.ID,
		"booking_id":   booking.ID,
		"inventory_id": booking.InventoryID,
		"customer_id":  booking.CustomerID,
	})

	w.Header().Set("Location", "/api/v1/bookings/"+booking.ID)
	writeJSON(w, http.StatusCreated, booking)
}

func (a *API) listBookings(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	q, err := a.listQueryFrom(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	bookings, page, err := a.estate.ListBookings(r.Context(), actor, q)
	if err != nil {
		handleEstateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listEnvelope{Items: bookings, Page: page})
}

func (a *API) getBooking(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	booking, err := a.estate.GetBooking(r.Context(), actor, id)
	if err != nil {
		handleEstateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (a *API) cancelBooking(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req cancelBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	booking, err := a.estate.CancelBooking(r.Context(), actor, id, req.Reason)
	if err != nil {
		handleEstateError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "booking.cancel", map[string]any{
		"actor_id":   actor.ID,
		"booking_id": booking.ID,
		"reason":     booking.CancellationReason,
	})

	writeJSON(w, http.StatusOK, booking)
}

// --- payments ---

type createPaymentRequest struct {
	BookingID       string `json:"booking_id"`
	Amount          int64  `json:"amount"`
	Method          string `json:"payment_method"`
	PaymentDate     string `json:"payment_date"`
	ReferenceNumber string `json:"reference_number"`
	Remarks         string `json:"remarks"`
}

func (a *API) handlePaymentsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createPayment(w, r)
	case http.MethodGet:
		a.listPayments(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePaymentResource(w http.ResponseWriter, r *http.Request) {
	id := resourceID(r.URL.Path, "/api/v1/payments/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, codeNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getPayment(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

func (a *API) createPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req createPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	paymentDate, err := parseDate(req.PaymentDate)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	payment, err := a.estate.CreatePayment(r.Context(), actor, estate.PaymentInput{
		BookingID:       req.BookingID,
		Amount:          req.Amount,
		Method:          req.Method,
		PaymentDate:     paymentDate,
		ReferenceNumber: req.ReferenceNumber,
		Remarks:         req.Remarks,
	})
	if err != nil {
		handleEstateError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "payment.create", map[string]any{
		"actor_id":   actor.ID,
		"payment_id": payment.ID,
		"booking_id": payment.BookingID,
		"amount":     payment.Amount,
	})

	w.Header().Set("Location", "/api/v1/payments/"+payment.ID)
	writeJSON(w, http.StatusCreated, payment)
}

func (a *API) listPayments(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	q, err := a.listQueryFrom(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	payments, page, err := a.estate.ListPayments(r.Context(), actor, q)
	if err != nil {
		handleEstateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listEnvelope{Items: payments, Page: page})
}

func (a *API) getPayment(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	payment, err := a.estate.GetPayment(r.Context(), actor, id)
	if err != nil {
		handleEstateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

// --- reports ---

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	summary, err := a.estate.Summarize(r.Context(), actor)
	if err != nil {
		handleEstateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
