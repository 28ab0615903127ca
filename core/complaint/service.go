package complaint

import (
	"context"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"github.com/trezcool/barakah/core"
	"github.com/trezcool/barakah/core/apiclient"
	"github.com/trezcool/barakah/core/session"
)

const (
	StatusAll = "ALL"

	defaultMonitoringPerPage = 10
)

var (
	ErrNoToken = errors.New("no authentication token found, please login again")

	errReferenceRequired = core.NewValidationError(nil, core.FieldError{Field: "reference_number", Error: "invalid reference number"})
	errIDRequired        = core.NewValidationError(nil, core.FieldError{Field: "id", Error: "this field is required"})
)

type (
	// Page is one page of complaints.
	Page struct {
		Complaints []core.Record         `json:"complaints" yaml:"complaints"`
		Pagination apiclient.Pagination `json:"pagination" yaml:"pagination"`
	}

	// MonitoringQuery filters the monitoring listing. A zero value asks for the first page of 10.
	MonitoringQuery struct {
		Page    int
		PerPage int
		Status  string // StatusAll or "" for any status
		Search  string
	}

	MonitoringPage struct {
		Entries    []MonitoringEntry    `json:"entries" yaml:"entries"`
		Pagination apiclient.Pagination `json:"pagination" yaml:"pagination"`
		Query      string               `json:"query,omitempty" yaml:"query,omitempty"`
	}

	// MonitoringEntry is one line of the complaints monitoring board.
	MonitoringEntry struct {
		ReferenceNumber   string      `json:"reference_number" yaml:"reference_number"`
		CitizenName       string      `json:"citizen_name" yaml:"citizen_name"`
		Status            string      `json:"status" yaml:"status"`
		Note              interface{} `json:"note" yaml:"note"`
		HandledByEmployee interface{} `json:"handled_by_employee" yaml:"handled_by_employee"`
		ChangedAt         interface{} `json:"changed_at" yaml:"changed_at"`
		// Original is the search result the entry was built from.
		Original core.Record `json:"_original,omitempty" yaml:"-"`
	}
)

func (q *MonitoringQuery) clean() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = defaultMonitoringPerPage
	}
	q.Status = core.CleanString(q.Status)
	q.Search = core.CleanString(q.Search)
}

// Service gathers the stores of the complaints API.
type Service struct {
	client   *apiclient.Client
	sessions *session.Manager
}

func NewService(client *apiclient.Client, sessions *session.Manager) *Service {
	return &Service{client: client, sessions: sessions}
}

func (svc *Service) Governments(ctx context.Context) ([]core.Record, error) {
	res, err := svc.client.Execute(ctx, apiclient.Get("/governments", nil), apiclient.ListOf("governments"))
	if err != nil {
		return nil, err
	}
	return decodeRecords(res)
}

// Employees returns the employees of a government entity; no entity means no employees.
func (svc *Service) Employees(ctx context.Context, governmentEntityID core.ID) ([]core.Record, error) {
	if governmentEntityID.IsZero() {
		return []core.Record{}, nil
	}
	q := url.Values{"government_entity_id": {governmentEntityID.String()}}
	res, err := svc.client.Execute(ctx, apiclient.Get("/indexEmployees", q), apiclient.ListOf("employees"))
	if err != nil {
		return nil, err
	}
	return decodeRecords(res)
}

// UpdateEmployee replaces an employee (PUT) and returns the API response.
func (svc *Service) UpdateEmployee(ctx context.Context, id core.ID, payload core.Record) (core.Record, error) {
	if id.IsZero() {
		return nil, errIDRequired
	}
	res, err := svc.client.Execute(ctx, apiclient.Put("/updateEmployee/"+url.PathEscape(id.String()), payload), whole())
	if err != nil {
		return nil, err
	}
	return decodeRecord(res)
}

func (svc *Service) DeleteEmployee(ctx context.Context, id core.ID) (core.Record, error) {
	if id.IsZero() {
		return nil, errIDRequired
	}
	res, err := svc.client.Execute(ctx, apiclient.Delete("/deleteEmployee/"+url.PathEscape(id.String())), whole())
	if err != nil {
		return nil, err
	}
	return decodeRecord(res)
}

// Complaints returns a page of the complaints visible to the user.
func (svc *Service) Complaints(ctx context.Context, page int) (*Page, error) {
	var q url.Values
	if page > 1 {
		q = url.Values{"page": {strconv.Itoa(page)}}
	}
	s := apiclient.Strategy{
		Shape:     apiclient.ShapeList,
		Paginated: true,
		Accessors: []apiclient.Accessor{
			apiclient.Field("complaints", "data"),
			apiclient.Field("complaints"),
			apiclient.Field("data"),
			apiclient.Root(),
		},
	}
	res, err := svc.client.Execute(ctx, apiclient.Get("/complaints", q), s)
	if err != nil {
		return nil, err
	}
	complaints, err := decodeRecords(res)
	if err != nil {
		return nil, err
	}
	return &Page{Complaints: complaints, Pagination: *res.Pagination}, nil
}

// ByEntity returns the complaints of the government entity managed by `userID`.
// The endpoint is not paginated: the result is a single page holding everything.
func (svc *Service) ByEntity(ctx context.Context, userID core.ID) (*Page, error) {
	if userID.IsZero() {
		return nil, errIDRequired
	}
	q := url.Values{"user": {userID.String()}}
	res, err := svc.client.Execute(ctx, apiclient.Get("/indexByEntity", q), apiclient.ListOf())
	if err != nil {
		return nil, err
	}
	complaints, err := decodeRecords(res)
	if err != nil {
		return nil, err
	}

	n := len(complaints)
	p := apiclient.Pagination{CurrentPage: 1, LastPage: 1, PerPage: n, Total: n, To: n}
	if n > 0 {
		p.From = 1
	} else {
		p.PerPage = svc.client.PerPage()
	}
	return &Page{Complaints: complaints, Pagination: p}, nil
}

// Details returns a complaint by its reference number.
func (svc *Service) Details(ctx context.Context, referenceNumber string) (core.Record, error) {
	ref := core.CleanString(referenceNumber)
	if ref == "" {
		return nil, errReferenceRequired
	}
	if err := svc.requireToken(ctx); err != nil {
		return nil, err
	}
	res, err := svc.client.Execute(ctx, apiclient.Get("/showComplaint/"+url.PathEscape(ref), nil), apiclient.ObjectOf("complaint"))
	if err != nil {
		return nil, err
	}
	return decodeRecord(res)
}

func (svc *Service) requireToken(ctx context.Context) error {
	token, err := svc.sessions.Token(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return ErrNoToken
	}
	return nil
}

// whole is the entire response object.
func whole() apiclient.Strategy {
	return apiclient.Strategy{Shape: apiclient.ShapeObject, Accessors: []apiclient.Accessor{apiclient.Root()}}
}

func decodeRecords(res *apiclient.Result) ([]core.Record, error) {
	records := make([]core.Record, 0)
	if err := res.Decode(&records); err != nil {
		return nil, err
	}
	return records, nil
}

func decodeRecord(res *apiclient.Result) (core.Record, error) {
	var rec core.Record
	if err := res.Decode(&rec); err != nil {
		return nil, err
	}
	return rec, nil
}
