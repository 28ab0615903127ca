package school

import (
	"context"
	"net/url"

	"github.com/trezcool/barakah/core"
	"github.com/trezcool/barakah/core/apiclient"
)

var (
	errIDRequired      = core.NewValidationError(nil, core.FieldError{Field: "id", Error: "this field is required"})
	errPayloadRequired = core.NewValidationError(nil, core.FieldError{Field: "payload", Error: "this field is required"})
)

// Resource is a REST collection of the school API, eg. /students and /students/:id.
type Resource struct {
	client   *apiclient.Client
	plural   string
	singular string
	conflict bool // 409 on create/update means a duplicate
}

func newResource(client *apiclient.Client, plural, singular string) *Resource {
	return &Resource{client: client, plural: plural, singular: singular}
}

func (r *Resource) Name() string { return r.plural }

func (r *Resource) path(id ...core.ID) string {
	if len(id) == 0 {
		return "/" + r.plural
	}
	return "/" + r.plural + "/" + url.PathEscape(id[0].String())
}

func (r *Resource) List(ctx context.Context) ([]core.Record, error) {
	res, err := r.client.Execute(ctx, apiclient.Get(r.path(), nil), apiclient.ListOf(r.plural))
	if err != nil {
		return nil, err
	}
	var records []core.Record
	if err := res.Decode(&records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *Resource) Get(ctx context.Context, id core.ID) (core.Record, error) {
	if id.IsZero() {
		return nil, errIDRequired
	}
	res, err := r.client.Execute(ctx, apiclient.Get(r.path(id), nil), apiclient.ObjectOf(r.singular))
	if err != nil {
		return nil, err
	}
	return decodeRecord(res)
}

func (r *Resource) Create(ctx context.Context, payload core.Record) (core.Record, error) {
	if len(payload) == 0 {
		return nil, errPayloadRequired
	}
	d := apiclient.Post(r.path(), payload)
	if r.conflict {
		d = d.WithConflict()
	}
	res, err := r.client.Execute(ctx, d, apiclient.ObjectOf(r.singular))
	if err != nil {
		return nil, err
	}
	return decodeRecord(res)
}

// Update applies a partial update (PATCH).
func (r *Resource) Update(ctx context.Context, id core.ID, payload core.Record) (core.Record, error) {
	if id.IsZero() {
		return nil, errIDRequired
	}
	if len(payload) == 0 {
		return nil, errPayloadRequired
	}
	d := apiclient.Patch(r.path(id), payload)
	if r.conflict {
		d = d.WithConflict()
	}
	res, err := r.client.Execute(ctx, d, apiclient.ObjectOf(r.singular))
	if err != nil {
		return nil, err
	}
	return decodeRecord(res)
}

func (r *Resource) Delete(ctx context.Context, id core.ID) error {
	if id.IsZero() {
		return errIDRequired
	}
	_, err := r.client.Execute(ctx, apiclient.Delete(r.path(id)), apiclient.Raw())
	return err
}

func decodeRecord(res *apiclient.Result) (core.Record, error) {
	var rec core.Record
	if err := res.Decode(&rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Service gathers the stores of the school API.
type Service struct {
	client *apiclient.Client

	Students *Resource
	Teachers *Resource
	Courses  *Courses
	Buses    *Resource
	Subjects *Subjects
}

func NewService(client *apiclient.Client) *Service {
	teachers := newResource(client, "teachers", "teacher")
	teachers.conflict = true

	return &Service{
		client:   client,
		Students: newResource(client, "students", "student"),
		Teachers: teachers,
		Courses:  &Courses{Resource: newResource(client, "courses", "course")},
		Buses:    newResource(client, "buses", "bus"),
		Subjects: &Subjects{client: client},
	}
}

// Dashboard returns the aggregated figures of the dashboard report.
func (svc *Service) Dashboard(ctx context.Context) (core.Record, error) {
	res, err := svc.client.Execute(ctx, apiclient.Get("/reports/dashboard", nil), apiclient.ObjectOf("dashboard"))
	if err != nil {
		return nil, err
	}
	return decodeRecord(res)
}
