package complaint

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/barakah/core"
	"github.com/trezcool/barakah/core/apiclient"
	"github.com/trezcool/barakah/core/session"
	navsvc "github.com/trezcool/barakah/services/navigator"
	testutil "github.com/trezcool/barakah/tests"
)

type route struct {
	status int
	body   string
}

type call struct {
	method, uri, body string
}

type fakeAPI struct {
	routes map[string]route
	mu     sync.Mutex
	calls  []call
}

func (api *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	api.mu.Lock()
	api.calls = append(api.calls, call{r.Method, r.URL.RequestURI(), string(data)})
	api.mu.Unlock()

	rt, ok := api.routes[r.Method+" "+r.URL.EscapedPath()]
	if !ok {
		rt = route{http.StatusNotFound, `{"message":"Not Found"}`}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rt.status)
	_, _ = io.WriteString(w, rt.body)
}

func (api *fakeAPI) lastCall() call {
	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.calls) == 0 {
		return call{}
	}
	return api.calls[len(api.calls)-1]
}

func (api *fakeAPI) callCount() int {
	api.mu.Lock()
	defer api.mu.Unlock()
	return len(api.calls)
}

type fixture struct {
	svc      *Service
	api      *fakeAPI
	sessions *session.Manager
	nav      *navsvc.Console
}

func newFixture(t *testing.T, token string, routes map[string]route) fixture {
	t.Helper()
	api := &fakeAPI{routes: routes}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	sessions, _ := testutil.NewSessions(t, token, testutil.Employee())
	nav := testutil.NewNavigator()
	client, err := apiclient.New(srv.URL, sessions, nav, apiclient.WithLogger(testutil.NewLogger()))
	require.NoError(t, err)
	return fixture{svc: NewService(client, sessions), api: api, sessions: sessions, nav: nav}
}

func TestService_Governments(t *testing.T) {
	for name, body := range map[string]string{
		"domain key": `{"governments":[{"id":1,"name":"Water"}]}`,
		"data":       `{"data":[{"id":1,"name":"Water"}]}`,
		"bare array": `[{"id":1,"name":"Water"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, "tok", map[string]route{"GET /governments": {http.StatusOK, body}})
			govs, err := f.svc.Governments(context.Background())
			require.NoError(t, err)
			require.Len(t, govs, 1)
			assert.Equal(t, "Water", govs[0].String("name"))
			assert.Equal(t, core.ID("1"), govs[0].ID())
		})
	}
}

func TestService_Employees(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "tok", map[string]route{
		"GET /indexEmployees":      {http.StatusOK, `{"status":true,"employees":[{"id":4,"name":"Amina"}]}`},
		"PUT /updateEmployee/4":    {http.StatusOK, `{"status":true,"message":"updated"}`},
		"DELETE /deleteEmployee/4": {http.StatusOK, `{"status":true,"message":"deleted"}`},
	})

	employees, err := f.svc.Employees(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, employees)
	assert.NotNil(t, employees)
	assert.Equal(t, 0, f.api.callCount())

	employees, err = f.svc.Employees(ctx, "3")
	require.NoError(t, err)
	require.Len(t, employees, 1)
	assert.Equal(t, "/indexEmployees?government_entity_id=3", f.api.lastCall().uri)

	res, err := f.svc.UpdateEmployee(ctx, "4", core.Record{"name": "Amina B."})
	require.NoError(t, err)
	assert.Equal(t, "updated", res.String("message"))
	assert.JSONEq(t, `{"name":"Amina B."}`, f.api.lastCall().body)

	res, err = f.svc.DeleteEmployee(ctx, "4")
	require.NoError(t, err)
	assert.Equal(t, "deleted", res.String("message"))

	_, err = f.svc.DeleteEmployee(ctx, "")
	assert.Equal(t, errIDRequired, err)
}

func TestService_Complaints(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "tok", map[string]route{
		"GET /complaints": {http.StatusOK, `{"status":true,"complaints":{"data":[{"id":31},{"id":32}],"current_page":"3","last_page":4,"per_page":15,"total":"50","from":31,"to":45}}`},
	})

	page, err := f.svc.Complaints(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "/complaints", f.api.lastCall().uri)
	require.Len(t, page.Complaints, 2)
	assert.Equal(t, apiclient.Pagination{CurrentPage: 3, LastPage: 4, PerPage: 15, Total: 50, From: 31, To: 45}, page.Pagination)

	_, err = f.svc.Complaints(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "/complaints?page=3", f.api.lastCall().uri)
}

func TestService_Complaints_envelopes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want apiclient.Pagination
	}{
		{
			name: "complaints list",
			body: `{"complaints":[{"id":1}],"total":1}`,
			want: apiclient.Pagination{CurrentPage: 1, LastPage: 1, PerPage: 20, Total: 1},
		},
		{
			name: "data",
			body: `{"data":[{"id":1}],"current_page":1,"last_page":2,"per_page":1,"total":2}`,
			want: apiclient.Pagination{CurrentPage: 1, LastPage: 2, PerPage: 1, Total: 2},
		},
		{
			name: "bare array",
			body: `[{"id":1}]`,
			want: apiclient.Pagination{CurrentPage: 1, LastPage: 1, PerPage: 20},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "tok", map[string]route{"GET /complaints": {http.StatusOK, tt.body}})
			page, err := f.svc.Complaints(context.Background(), 0)
			require.NoError(t, err)
			assert.Len(t, page.Complaints, 1)
			assert.Equal(t, tt.want, page.Pagination)
		})
	}
}

func TestService_ByEntity(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, "tok", map[string]route{
		"GET /indexByEntity": {http.StatusOK, `{"status":"success","sector":4,"data":[{"id":1},{"id":2}]}`},
	})
	page, err := f.svc.ByEntity(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "/indexByEntity?user=7", f.api.lastCall().uri)
	assert.Len(t, page.Complaints, 2)
	assert.Equal(t, apiclient.Pagination{CurrentPage: 1, LastPage: 1, PerPage: 2, Total: 2, From: 1, To: 2}, page.Pagination)

	f = newFixture(t, "tok", map[string]route{"GET /indexByEntity": {http.StatusOK, `{"status":"success","data":[]}`}})
	page, err = f.svc.ByEntity(ctx, "7")
	require.NoError(t, err)
	assert.Empty(t, page.Complaints)
	assert.Equal(t, apiclient.Pagination{CurrentPage: 1, LastPage: 1, PerPage: 20}, page.Pagination)

	_, err = f.svc.ByEntity(ctx, "")
	assert.Equal(t, errIDRequired, err)
}

func TestService_Monitoring(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		query   MonitoringQuery
		body    string
		wantURI string
		want    apiclient.Pagination
	}{
		{
			name:    "defaults",
			body:    `{"data":[{"reference_number":"R-1","citizen_name":"Amina","status":"OPEN"}],"current_page":1,"per_page":10,"total":"11","last_page":2}`,
			wantURI: "/MonitoringComplains?page=1&per_page=10",
			want:    apiclient.Pagination{CurrentPage: 1, LastPage: 2, PerPage: 10, Total: 11},
		},
		{
			name:    "filters",
			query:   MonitoringQuery{Page: 2, PerPage: 5, Status: "OPEN", Search: "  water "},
			body:    `{"data":[{"reference_number":"R-1"}],"current_page":2,"per_page":5,"total":6,"last_page":2}`,
			wantURI: "/MonitoringComplains?page=2&per_page=5&search=water&status=OPEN",
			want:    apiclient.Pagination{CurrentPage: 2, LastPage: 2, PerPage: 5, Total: 6},
		},
		{
			name:    "status all is not sent",
			query:   MonitoringQuery{Status: StatusAll},
			body:    `{"data":[{"reference_number":"R-1"}]}`,
			wantURI: "/MonitoringComplains?page=1&per_page=10",
			want:    apiclient.Pagination{CurrentPage: 1, LastPage: 1, PerPage: 10},
		},
		{
			name:    "page kept when the server omits it",
			query:   MonitoringQuery{Page: 3},
			body:    `{"data":[{"reference_number":"R-1"}],"total":21,"last_page":3}`,
			wantURI: "/MonitoringComplains?page=3&per_page=10",
			want:    apiclient.Pagination{CurrentPage: 3, LastPage: 3, PerPage: 10, Total: 21},
		},
		{
			name:    "bare array is paginated locally",
			query:   MonitoringQuery{Page: 2, PerPage: 2},
			body:    `[{"reference_number":"R-1"},{"reference_number":"R-2"},{"reference_number":"R-3"},{"reference_number":"R-4"},{"reference_number":"R-5"}]`,
			wantURI: "/MonitoringComplains?page=2&per_page=2",
			want:    apiclient.Pagination{CurrentPage: 2, LastPage: 3, PerPage: 2, Total: 5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "tok", map[string]route{"GET /MonitoringComplains": {http.StatusOK, tt.body}})
			page, err := f.svc.Monitoring(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.wantURI, f.api.lastCall().uri)
			assert.Equal(t, tt.want, page.Pagination)
			require.NotEmpty(t, page.Entries)
			assert.Equal(t, "R-1", page.Entries[0].ReferenceNumber)
		})
	}
}

func TestService_Monitoring_unexpectedEnvelope(t *testing.T) {
	f := newFixture(t, "tok", map[string]route{"GET /MonitoringComplains": {http.StatusOK, `{"status":"ok"}`}})
	page, err := f.svc.Monitoring(context.Background(), MonitoringQuery{})
	require.NoError(t, err)
	assert.Empty(t, page.Entries)
	assert.Equal(t, apiclient.Pagination{CurrentPage: 1, LastPage: 1, PerPage: 10}, page.Pagination)
}

func TestService_Details(t *testing.T) {
	ctx := context.Background()

	t.Run("escaped reference", func(t *testing.T) {
		f := newFixture(t, "tok", map[string]route{
			"GET /showComplaint/R%2F1%202": {http.StatusOK, `{"status":true,"complaint":{"reference_number":"R/1 2","status":"OPEN"}}`},
		})
		complaint, err := f.svc.Details(ctx, " R/1 2 ")
		require.NoError(t, err)
		assert.Equal(t, "R/1 2", complaint.String("reference_number"))
	})

	t.Run("root object", func(t *testing.T) {
		f := newFixture(t, "tok", map[string]route{
			"GET /showComplaint/R-9": {http.StatusOK, `{"reference_number":"R-9","status":"CLOSED"}`},
		})
		complaint, err := f.svc.Details(ctx, "R-9")
		require.NoError(t, err)
		assert.Equal(t, "CLOSED", complaint.String("status"))
	})

	t.Run("forbidden", func(t *testing.T) {
		f := newFixture(t, "tok", map[string]route{
			"GET /showComplaint/R-9": {http.StatusForbidden, `{"message":"Not your entity"}`},
		})
		_, err := f.svc.Details(ctx, "R-9")
		require.Error(t, err)
		assert.Equal(t, apiclient.KindHTTP, apiclient.KindOf(err))
		assert.Equal(t, "Not your entity", apiclient.Message(err))
	})

	t.Run("empty reference", func(t *testing.T) {
		f := newFixture(t, "tok", nil)
		_, err := f.svc.Details(ctx, "  ")
		require.Error(t, err)
		assert.Equal(t, map[string]string{"reference_number": "invalid reference number"}, core.FieldErrors(err, nil))
		assert.Equal(t, 0, f.api.callCount())
	})

	t.Run("signed out", func(t *testing.T) {
		f := newFixture(t, "", nil)
		_, err := f.svc.Details(ctx, "R-9")
		assert.Equal(t, ErrNoToken, err)
		assert.EqualError(t, err, "no authentication token found, please login again")
		assert.Equal(t, 0, f.api.callCount())
	})
}

func TestService_Search(t *testing.T) {
	ctx := context.Background()

	grouped := `{"status":true,"data":{
		"user_complaints":{"data":[
			{"complaint_id":1,"reference_number":"R-1","status":"OPEN","user":{"name":"Amina"},"updated_at":"2024-05-02","created_at":"2024-05-01"},
			{"complaint_id":2,"reference_number":"R-2","status":"CLOSED","created_at":"2024-04-01"}
		],"current_page":1,"per_page":10,"total":12,"last_page":2},
		"reference_complaints":{"data":[
			{"complaint_id":1,"reference_number":"R-1","status":"OPEN"},
			{"reference_number":"R-3","status":"OPEN"},
			{"status":"ORPHAN"},
			{"status":"ORPHAN"}
		]}
	}}`

	f := newFixture(t, "tok", map[string]route{"POST /search": {http.StatusOK, grouped}})
	page, err := f.svc.Search(ctx, SearchQuery{Query: " R- "})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Key_Search":"R-","page":1,"per_page":10}`, f.api.lastCall().body)
	assert.Equal(t, "R-", page.Query)
	assert.Equal(t, apiclient.Pagination{CurrentPage: 1, LastPage: 2, PerPage: 10, Total: 12}, page.Pagination)

	require.Len(t, page.Entries, 5)
	first := page.Entries[0]
	assert.Equal(t, "R-1", first.ReferenceNumber)
	assert.Equal(t, "Amina", first.CitizenName)
	assert.Equal(t, "OPEN", first.Status)
	assert.Nil(t, first.Note)
	assert.Nil(t, first.HandledByEmployee)
	assert.Equal(t, "2024-05-02", first.ChangedAt)
	assert.Equal(t, "R-1", first.Original.String("reference_number"))

	second := page.Entries[1]
	assert.Equal(t, "-", second.CitizenName)
	assert.Equal(t, "2024-04-01", second.ChangedAt)

	assert.Equal(t, "R-3", page.Entries[2].ReferenceNumber)
	assert.Equal(t, "ORPHAN", page.Entries[3].Status)
	assert.Equal(t, "ORPHAN", page.Entries[4].Status)
	assert.Nil(t, page.Entries[4].ChangedAt)
}

func TestService_Search_flatResults(t *testing.T) {
	for name, body := range map[string]string{
		"data":       `{"data":[{"reference_number":"R-1"},{"reference_number":"R-2"},{"reference_number":"R-3"}]}`,
		"complaints": `{"complaints":[{"reference_number":"R-1"},{"reference_number":"R-2"},{"reference_number":"R-3"}]}`,
		"results":    `{"results":[{"reference_number":"R-1"},{"reference_number":"R-2"},{"reference_number":"R-3"}]}`,
		"bare array": `[{"reference_number":"R-1"},{"reference_number":"R-2"},{"reference_number":"R-3"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, "tok", map[string]route{"POST /search": {http.StatusOK, body}})
			page, err := f.svc.Search(context.Background(), SearchQuery{Query: "R", Page: 2, PerPage: 2})
			require.NoError(t, err)
			require.Len(t, page.Entries, 3)
			assert.Equal(t, "R-2", page.Entries[1].ReferenceNumber)
			assert.Equal(t, apiclient.Pagination{CurrentPage: 2, LastPage: 2, PerPage: 2, Total: 3}, page.Pagination)
		})
	}
}

func TestService_Search_emptyQueryListsMonitoring(t *testing.T) {
	f := newFixture(t, "tok", map[string]route{
		"GET /MonitoringComplains": {http.StatusOK, `{"data":[{"reference_number":"R-1"}]}`},
	})
	page, err := f.svc.Search(context.Background(), SearchQuery{Query: "   ", Status: "OPEN"})
	require.NoError(t, err)
	assert.Equal(t, "/MonitoringComplains?page=1&per_page=10&status=OPEN", f.api.lastCall().uri)
	assert.Empty(t, page.Query)
	assert.Len(t, page.Entries, 1)
}

func TestService_Search_signedOut(t *testing.T) {
	f := newFixture(t, "", nil)
	_, err := f.svc.Search(context.Background(), SearchQuery{Query: "R-1"})
	assert.Equal(t, ErrNoToken, err)
	assert.Equal(t, 0, f.api.callCount())
}

func TestService_unauthorized(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "tok", map[string]route{
		"POST /search": {http.StatusUnauthorized, `{"message":"Unauthenticated."}`},
	})

	_, err := f.svc.Search(ctx, SearchQuery{Query: "R-1"})
	require.Error(t, err)
	assert.True(t, apiclient.IsUnauthorized(err))
	assert.Equal(t, []string{core.RouteLogin}, f.nav.History())

	state, err := f.sessions.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.Anonymous, state)

	// the next guarded call sees no token
	_, err = f.svc.Details(ctx, "R-1")
	assert.Equal(t, ErrNoToken, err)
}
