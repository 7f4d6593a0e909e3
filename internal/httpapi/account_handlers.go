package httpapi

import (
	"net/http"

	"kingsbuilder.org/internal/audit"
	"kingsbuilder.org/internal/auth"
	"kingsbuilder.org/internal/estate"
)

type createUserRequest struct {
	Username   string  `json:"username"`
	Email      string  `json:"email"`
	Password   string  `json:"password"`
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	Phone      string  `json:"phone"`
	Role       string  `json:"role"`
	Status     string  `json:"status"`
	BuilderID  *string `json:"builder_id"`
	InvestorID *string `json:"investor_id"`
}

type updateUserRequest struct {
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
	Password  *string `json:"password"`
	Role      *string `json:"role"`
	Status    *string `json:"status"`
	BuilderID *string `json:"builder_id"`
}

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createUser(w, r)
	case http.MethodGet:
		a.listUsers(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	id := resourceID(r.URL.Path, "/api/v1/users/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, codeNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getUser(w, r, id)
	case http.MethodPatch:
		a.updateUser(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
	}
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	account, err := a.auth.CreateAccount(r.Context(), actor, auth.AccountInput{
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Phone:      req.Phone,
		Role:       req.Role,
		Status:     req.Status,
		BuilderID:  req.BuilderID,
		InvestorID: req.InvestorID,
	})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "account.create", map[string]any{
		"actor_id":   actor.ID,
		"account_id": account.ID,
		"role":       account.Role,
	})

	w.Header().Set("Location", "/api/v1/users/"+account.ID)
	writeJSON(w, http.StatusCreated, account)
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	skip, limit, err := parsePagination(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	skip, limit = estate.ClampPage(skip, limit)
	q := r.URL.Query()
	accounts, total, err := a.auth.ListAccounts(r.Context(), actor, auth.AccountQuery{
		BuilderID: q.Get("builder_id"),
		Role:      q.Get("role"),
		Status:    q.Get("status"),
		Skip:      skip,
		Limit:     limit,
	})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listEnvelope{Items: accounts, Page: estate.NewPage(skip, limit, total)})
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	account, err := a.auth.GetAccount(r.Context(), actor, id)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	account, err := a.auth.UpdateAccount(r.Context(), actor, id, auth.AccountUpdate{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Password:  req.Password,
		Role:      req.Role,
		Status:    req.Status,
		BuilderID: req.BuilderID,
	})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "account.update", map[string]any{
		"actor_id":   actor.ID,
		"account_id": account.ID,
	})

	writeJSON(w, http.StatusOK, account)
}
