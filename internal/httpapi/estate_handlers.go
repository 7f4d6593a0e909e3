package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"kingsbuilder.org/internal/audit"
	"kingsbuilder.org/internal/estate"
)

const dateLayout = "2006-01-02"

// parseDate accepts a calendar date, empty means unset.
func parseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, errors.New("dates must use the YYYY-MM-DD format")
	}
	return &t, nil
}

func (a *API) listQueryFrom(r *http.Request) (estate.ListQuery, error) {
	skip, limit, err := parsePagination(r)
	if err != nil {
		return estate.ListQuery{}, err
	}
	q := r.URL.Query()
	return estate.ListQuery{
		BuilderID:  q.Get("builder_id"),
		InvestorID: q.Get("investor_id"),
		Search:     strings.TrimSpace(q.Get("search")),
		Status:     strings.TrimSpace(q.Get("status")),
		ProjectID:  q.Get("project_id"),
		BookingID:  q.Get("booking_id"),
		Skip:       skip,
		Limit:      limit,
	}, nil
}

// --- builders ---

type createBuilderRequest struct {
	Name               string `json:"name"`
	RegistrationNumber string `json:"registration_number"`
	ContactPerson      string `json:"contact_person"`
	ContactEmail       string `json:"contact_email"`
	ContactPhone       string `json:"contact_phone"`
	Address            string `json:"address"`
	City               string `json:"city"`
	Country            string `json:"country"`
	MaxProjects        int    `json:"max_projects"`
}

type updateBuilderRequest struct {
	Name               *string `json:"name"`
	RegistrationNumber *string `json:"registration_number"`
	ContactPerson      *string `json:"contact_person"`
	ContactEmail       *string `json:"contact_email"`
	ContactPhone       *string `json:"contact_phone"`
	Address            *string `json:"address"`
	City               *string `json:"city"`
	Country            *string `json:"country"`
	MaxProjects        *int    `json:"max_projects"`
	Status             *string `json:"status"`
}

func (a *API) handleBuildersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createBuilder(w, r)
	case http.MethodGet:
		a.listBuilders(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleBuilderResource(w http.ResponseWriter, r *http.Request) {
	id := resourceID(r.URL.Path, "/api/v1/builders/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, codeNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getBuilder(w, r, id)
	case http.MethodPatch:
		a.updateBuilder(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
	}
}

func (a *API) createBuilder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req createBuilderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	builder, err := a.estate.CreateBuilder(r.Context(), actor, estate.BuilderInput{
		Name:               req.Name,
		RegistrationNumber: req.RegistrationNumber,
		ContactPerson:      req.ContactPerson,
		ContactEmail:       req.ContactEmail,
		ContactPhone:       req.ContactPhone,
		Address:            req.Address,
		City:               req.City,
		Country:            req.Country,
		MaxProjects:        req.MaxProjects,
	})
	if err != nil {
		handleEstateError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "builder.create", map[string]any{
		"actor_id":   actor.ID,
		"builder_id": builder.ID,
		"name":       builder.Name,
	})

	w.Header().Set("Location", "/api/v1/builders/"+builder.ID)
	writeJSON(w, http.StatusCreated, builder)
}

func (a *API) listBuilders(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	q, err := a.listQueryFrom(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	builders, page, err := a.estate.ListBuilders(r.Context(), actor, q)
	if err != nil {
		handleEstateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listEnvelope{Items: builders, Page: page})
}

func (a *API) getBuilder(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	builder, err := a.estate.GetBuilder(r.Context(), actor, id)
	if err != nil {
		handleEstateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, builder)
}

func (a *API) updateBuilder(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req updateBuilderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	builder, err := a.estate.UpdateBuilder(r.Context(), actor, id, estate.BuilderUpdate{
		Name:               req.Name,
		RegistrationNumber: req.RegistrationNumber,
		ContactPerson:      req.ContactPerson,
		ContactEmail:       req.ContactEmail,
		ContactPhone:       req.ContactPhone,
		Address:            req.Address,
		City:               req.City,
		Country:            req.Country,
		MaxProjects:        req.MaxProjects,
		Status:             req.Status,
	})
	if err != nil {
		handleEstateError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "builder.update", map[string]any{
		"actor_id":   actor.ID,
		"builder_id": builder.ID,
	})

	writeJSON(w, http.StatusOK, builder)
}

// --- projects ---

type createProjectRequest struct {
	BuilderID              string `json:"builder_id"`
	Name                   string `json:"name"`
	Description            string `json:"description"`
	Location               string `json:"location"`
	City                   string `json:"city"`
	TotalUnits             int    `json:"total_units"`
	StartDate              string `json:"start_date"`
	ExpectedCompletionDate string `json:"expected_completion_date"`
}

type updateProjectRequest struct {
	Name                   *string `json:"name"`
	Description            *string `json:"description"`
	Location               *string `json:"location"`
	City                   *string `json:"city"`
	TotalUnits             *int    `json:"total_units"`
	Status                 *string `json:"status"`
	StartDate              *string `json:"start_date"`
	ExpectedCompletionDate *string `json:"expected_completion_date"`
}

func (a *API) handleProjectsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createProject(w, r)
	case http.MethodGet:
		a.listProjects(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleProjectResource(w http.ResponseWriter, r *http.Request) {
	id := resourceID(r.URL.Path, "/api/v1/projects/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, codeNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getProject(w, r, id)
	case http.MethodPatch:
		a.updateProject(w, r, id)
	case http.MethodDelete:
		a.archiveProject(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) createProject(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req createProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	completion, err := parseDate(req.ExpectedCompletionDate)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	project, err := a.estate.CreateProject(r.Context(), actor, estate.ProjectInput{
		BuilderID:              req.BuilderID,
		Name:                   req.Name,
		Description:            req.Description,
		Location:               req.Location,
		City:                   req.City,
		TotalUnits:             req.TotalUnits,
		StartDate:              start,
		ExpectedCompletionDate: completion,
	})
	if err != nil {
		handleEstateError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "project.create", map[string]any{
		"actor_id":   actor.ID,
		"project_id": project.ID,
		"builder_id": project.BuilderID,
	})

	w.Header().Set("Location", "/api/v1/projects/"+project.ID)
	writeJSON(w, http.StatusCreated, project)
}

func (a *API) listProjects(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	q, err := a.listQueryFrom(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	projects, page, err := a.estate.ListProjects(r.Context(), actor, q)
	if err != nil {
		handleEstateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listEnvelope{Items: projects, Page: page})
}

func (a *API) getProject(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	project, err := a.estate.GetProject(r.Context(), actor, id)
	if err != nil {
		handleEstateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (a *API) updateProject(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req updateProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	upd := estate.ProjectUpdate{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		City:        req.City,
		TotalUnits:  req.TotalUnits,
		Status:      req.Status,
	}
	if req.StartDate != nil {
		start, err := parseDate(*req.StartDate)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
			return
		}
		upd.StartDate = start
	}
	if req.ExpectedCompletionDate != nil {
		completion, err := parseDate(*req.ExpectedCompletionDate)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
			return
		}
		upd.ExpectedCompletionDate = completion
	}

	project, err := a.estate.UpdateProject(r.Context(), actor, id, upd)
	if err != nil {
		handleEstateError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "project.update", map[string]any{
		"actor_id":   actor.ID,
		"project_id": project.ID,
	})

	writeJSON(w, http.StatusOK, project)
}

func (a *API) archiveProject(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	project, err := a.estate.ArchiveProject(r.Context(), actor, id)
	if err != nil {
		handleEstateError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "project.archive", map[string]any{
		"actor_id":   actor.ID,
		"project_id": project.ID,
	})

	writeJSON(w, http.StatusOK, project)
}

// --- inventory ---

type createInventoryRequest struct {
	ProjectID      string  `json:"project_id"`
	UnitNumber     string  `json:"unit_number"`
	UnitType       string  `json:"unit_type"`
	Category       string  `json:"category"`
	Size           float64 `json:"size"`
	Price          int64   `json:"price"`
	InvestorLocked bool    `json:"investor_locked"`
	InvestorID     *string `json:"investor_id"`
	Remarks        string  `json:"remarks"`
}

type updateInventoryRequest struct {
	UnitNumber     *string  `json:"unit_number"`
	UnitType       *string  `json:"unit_type"`
	Category       *string  `json:"category"`
	Size           *float64 `json:"size"`
	Price          *int64   `json:"price"`
	Status         *string  `json:"status"`
	HoldExpiryDate *string  `json:"hold_expiry_date"`
	InvestorLocked *bool    `json:"investor_locked"`
	InvestorID     *string  `json:"investor_id"`
	Remarks        *string  `json:"remarks"`
}

func (a *API) handleInventoryCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createInventory(w, r)
	case http.MethodGet:
		a.listInventory(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleInventoryResource(w http.ResponseWriter, r *http.Request) {
	id := resourceID(r.URL.Path, "/api/v1/inventory/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, codeNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getInventory(w, r, id)
	case http.MethodPatch:
		a.updateInventory(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
	}
}

func (a *API) createInventory(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req createInventoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	unit, err := a.estate.CreateInventory(r.Context(), actor, estate.InventoryInput{
		ProjectID:      req.ProjectID,
		UnitNumber:     req.UnitNumber,
		UnitType:       req.UnitType,
		Category:       req.Category,
		Size:           req.Size,
		Price:          req.Price,
		InvestorLocked: req.InvestorLocked,
		InvestorID:     req.InvestorID,
		Remarks:        req.Remarks,
	})
	if err != nil {
		handleEstateError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "inventory.create", map[string]any{
		"actor_id":     actor.ID,
		"inventory_id": unit.ID,
		"project_id":   unit.ProjectID,
	})

	w.Header().Set("Location", "/api/v1/inventory/"+unit.ID)
	writeJSON(w, http.StatusCreated, unit)
}

func (a *API) listInventory(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	q, err := a.listQueryFrom(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	units, page, err := a.estate.ListInventory(r.Context(), actor, q)
	if err != nil {
		handleEstateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listEnvelope{Items: units, Page: page})
}

func (a *API) getInventory(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	unit, err := a.estate.GetInventory(r.Context(), actor, id)
	if err != nil {
		handleEstateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, unit)
}

func (a *API) updateInventory(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req updateInventoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	upd := estate.InventoryUpdate{
		UnitNumber:     req.UnitNumber,
		UnitType:       req.UnitType,
		Category:       req.Category,
		Size:           req.Size,
		Price:          req.Price,
		Status:         req.Status,
		InvestorLocked: req.InvestorLocked,
		InvestorID:     req.InvestorID,
		Remarks:        req.Remarks,
	}
	if req.HoldExpiryDate != nil {
		expiry, err := parseDate(*req.HoldExpiryDate)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
			return
		}
		upd.HoldExpiryDate = expiry
	}

	unit, err := a.estate.UpdateInventory(r.Context(), actor, id, upd)
	if err != nil {
		handleEstateError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "inventory.update", map[string]any{
		"actor_id":     actor.ID,
		"inventory_id": unit.ID,
	})

	writeJSON(w, http.StatusOK, unit)
}
