package echoapi

import (
	"encoding/json"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/barakah/core"
	"github.com/trezcool/barakah/core/session"
)

const complaintsPerPage = 10

type (
	loginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	loginResponse struct {
		Status bool   `json:"status"`
		Token  string `json:"token"`
		UserID int    `json:"user_id"`
		Role   string `json:"role"`
	}

	searchRequest struct {
		KeySearch string `json:"Key_Search" validate:"required"`
		Page      int    `json:"page"`
		PerPage   int    `json:"per_page"`
	}
)

func (r *loginRequest) Validate(validate *validator.Validate) error {
	r.Email = core.CleanString(r.Email, true /* lower */)
	return validate.Struct(r)
}

func (r *searchRequest) Validate(validate *validator.Validate) error {
	r.KeySearch = core.CleanString(r.KeySearch)
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PerPage < 1 {
		r.PerPage = complaintsPerPage
	}
	return validate.Struct(r)
}

type complaintsApi struct {
	data     *Data
	auth     auth
	validate *validator.Validate
}

func registerComplaintsAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth auth, opts *Options) {
	api := complaintsApi{data: opts.Data, auth: auth, validate: opts.Validate}

	// un-authed endpoints
	g.POST("/login", api.login)

	// authed endpoints
	ag := g.Group("", jwt)
	managers := roleMiddleware(session.RoleAdmin, session.RoleOrganization)
	ag.GET("/governments", api.governments, managers)
	ag.GET("/indexEmployees", api.employees, managers)
	ag.PUT("/updateEmployee/:id", api.updateEmployee, managers)
	ag.DELETE("/deleteEmployee/:id", api.deleteEmployee, managers)

	staff := roleMiddleware(session.RoleAdmin, session.RoleOrganization, session.RoleEmployee)
	ag.GET("/complaints", api.complaints, staff)
	ag.GET("/indexByEntity", api.complaintsByEntity, staff)
	ag.GET("/MonitoringComplains", api.monitoring, staff)
	ag.GET("/showComplaint/:ref", api.complaintDetails, staff)
	ag.POST("/search", api.search, staff)
}

func (api *complaintsApi) login(ctx echo.Context) error {
	data := new(loginRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	acc, ok := api.data.authenticate(data.Email, data.Password)
	if !ok {
		return errAuthenticationFailed
	}
	token, err := api.auth.generateToken(api.auth.claims(acc))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, loginResponse{Status: true, Token: token, UserID: acc.ID, Role: acc.Role})
}

func (api *complaintsApi) governments(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": true, "governments": api.data.list(Governments)})
}

func (api *complaintsApi) employees(ctx echo.Context) error {
	govID := core.CleanString(ctx.QueryParam("government_entity_id"))
	employees := api.data.filter(Employees, func(rec core.Record) bool {
		return govID == "" || rec.String("government_entity_id") == govID
	})
	return ctx.JSON(http.StatusOK, echo.Map{"status": true, "employees": employees})
}

func (api *complaintsApi) updateEmployee(ctx echo.Context) error {
	data, err := bindRecord(ctx)
	if err != nil {
		return err
	}
	employee, ok := api.data.update(Employees, ctx.Param("id"), data, true /* replace */)
	if !ok {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, echo.Map{"status": true, "message": "Employee updated successfully", "employee": employee})
}

func (api *complaintsApi) deleteEmployee(ctx echo.Context) error {
	if !api.data.remove(Employees, ctx.Param("id")) {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, echo.Map{"status": true, "message": "Employee deleted successfully"})
}

func (api *complaintsApi) complaints(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	page, meta := paginate(api.data.complaintsOf(scope(claims)), intParam(ctx, "page", 1), complaintsPerPage)
	meta["data"] = page
	return ctx.JSON(http.StatusOK, echo.Map{"status": true, "complaints": meta})
}

func (api *complaintsApi) complaintsByEntity(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	userID, err := strconv.Atoi(ctx.QueryParam("user"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user")
	}
	acc, ok := api.data.account(userID)
	if !ok || acc.GovernmentID == 0 {
		return errHttpNotFound
	}
	if gov := scope(claims); gov != 0 && gov != acc.GovernmentID {
		return errHttpForbidden
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"status": "success",
		"sector": acc.GovernmentID,
		"data":   api.data.complaintsOf(acc.GovernmentID),
	})
}

func (api *complaintsApi) monitoring(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	status := core.CleanString(ctx.QueryParam("status"))
	search := core.CleanString(ctx.QueryParam("search"))

	entries := make([]core.Record, 0)
	for _, rec := range api.data.complaintsOf(scope(claims)) {
		if status != "" && !strings.EqualFold(rec.String("status"), status) {
			continue
		}
		if search != "" && !containsFold(rec.String("reference_number"), search) &&
			!containsFold(rec.Object("user").String("name"), search) {
			continue
		}
		entries = append(entries, monitoringEntry(rec))
	}

	page, meta := paginate(entries, intParam(ctx, "page", 1), intParam(ctx, "per_page", complaintsPerPage))
	meta["data"] = page
	meta["total"] = strconv.Itoa(len(entries)) // sent as a string upstream
	return ctx.JSON(http.StatusOK, meta)
}

func (api *complaintsApi) complaintDetails(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	ref, err := url.PathUnescape(ctx.Param("ref"))
	if err != nil {
		return errHttpNotFound
	}
	complaint, ok := api.data.complaint(ref)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Complaint not found")
	}
	if gov := scope(claims); gov != 0 && complaint.String("government_entity_id") != strconv.Itoa(gov) {
		return echo.NewHTTPError(http.StatusForbidden, "You don't have permission to view this complaint.")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"status": true, "complaint": complaint})
}

func (api *complaintsApi) search(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	data := new(searchRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	byUser := make([]core.Record, 0)
	byRef := make([]core.Record, 0)
	for _, rec := range api.data.complaintsOf(scope(claims)) {
		usr := rec.Object("user")
		if containsFold(usr.String("name"), data.KeySearch) || containsFold(usr.String("email"), data.KeySearch) {
			byUser = append(byUser, rec)
		}
		if containsFold(rec.String("reference_number"), data.KeySearch) {
			byRef = append(byRef, rec)
		}
	}

	page, userComplaints := paginate(byUser, data.Page, data.PerPage)
	userComplaints["data"] = page
	return ctx.JSON(http.StatusOK, echo.Map{
		"status": true,
		"data": echo.Map{
			"user_complaints":      userComplaints,
			"reference_complaints": echo.Map{"data": byRef},
		},
	})
}

// scope is the government entity whose complaints the user may see, 0 for all of them.
func scope(claims Claims) int {
	if claims.Role == session.RoleAdmin {
		return 0
	}
	return claims.GovernmentID
}

func monitoringEntry(rec core.Record) core.Record {
	return core.Record{
		"reference_number":    rec["reference_number"],
		"citizen_name":        rec.Object("user")["name"],
		"status":              rec["status"],
		"note":                rec["note"],
		"handled_by_employee": rec["handled_by"],
		"changed_at":          rec["updated_at"],
	}
}

// paginate returns one page of `records` along with laravel-like pagination fields.
func paginate(records []core.Record, page, perPage int) ([]core.Record, echo.Map) {
	if perPage < 1 {
		perPage = complaintsPerPage
	}
	if page < 1 {
		page = 1
	}
	total := len(records)
	lastPage := int(math.Max(1, math.Ceil(float64(total)/float64(perPage))))

	meta := echo.Map{
		"current_page": page,
		"last_page":    lastPage,
		"per_page":     perPage,
		"total":        total,
		"from":         nil,
		"to":           nil,
	}
	start := (page - 1) * perPage
	if start >= total {
		return []core.Record{}, meta
	}
	end := start + perPage
	if end > total {
		end = total
	}
	meta["from"] = start + 1
	meta["to"] = end
	return records[start:end], meta
}

func intParam(ctx echo.Context, name string, def int) int {
	if n, err := strconv.Atoi(ctx.QueryParam(name)); err == nil && n > 0 {
		return n
	}
	return def
}

func bindRecord(ctx echo.Context) (core.Record, error) {
	rec := make(core.Record)
	if err := json.NewDecoder(ctx.Request().Body).Decode(&rec); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body").SetInternal(err)
	}
	return rec, nil
}
