package complaint

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/trezcool/barakah/core"
	"github.com/trezcool/barakah/core/apiclient"
)

// SearchQuery is a free text search over complaints. An empty Query lists the monitoring board.
type SearchQuery struct {
	Query   string
	Page    int
	PerPage int
	Status  string
}

type searchRequest struct {
	KeySearch string `json:"Key_Search"`
	Page      int    `json:"page"`
	PerPage   int    `json:"per_page"`
}

// Monitoring returns a page of the complaints monitoring board.
func (svc *Service) Monitoring(ctx context.Context, q MonitoringQuery) (*MonitoringPage, error) {
	q.clean()
	params := url.Values{
		"page":     {strconv.Itoa(q.Page)},
		"per_page": {strconv.Itoa(q.PerPage)},
	}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.Status != "" && q.Status != StatusAll {
		params.Set("status", q.Status)
	}

	res, err := svc.client.Execute(ctx, apiclient.Get("/MonitoringComplains", params), apiclient.PageOf())
	if err != nil {
		return nil, err
	}
	entries := make([]MonitoringEntry, 0)
	if err := res.Decode(&entries); err != nil {
		return nil, err
	}

	p := *res.Pagination
	if res.Match != "data" {
		// not paginated by the server
		p = apiclient.LocalPagination(len(entries), q.PerPage)
		p.CurrentPage = q.Page
	}
	return &MonitoringPage{Entries: entries, Pagination: p, Query: q.Search}, nil
}

// Search looks complaints up by reference number or citizen and maps them to monitoring entries.
func (svc *Service) Search(ctx context.Context, sq SearchQuery) (*MonitoringPage, error) {
	mq := MonitoringQuery{Page: sq.Page, PerPage: sq.PerPage, Status: sq.Status}
	mq.clean()
	query := core.CleanString(sq.Query)
	if query == "" {
		return svc.Monitoring(ctx, mq)
	}
	if err := svc.requireToken(ctx); err != nil {
		return nil, err
	}

	body := searchRequest{KeySearch: query, Page: mq.Page, PerPage: mq.PerPage}
	res, err := svc.client.Execute(ctx, apiclient.Post("/search", body), apiclient.Raw())
	if err != nil {
		return nil, err
	}

	results, p, err := searchResults(res.Payload, mq)
	if err != nil {
		return nil, err
	}
	entries := make([]MonitoringEntry, 0, len(results))
	for _, rec := range results {
		entries = append(entries, entryOf(rec))
	}
	return &MonitoringPage{Entries: entries, Pagination: p, Query: query}, nil
}

// searchResults reads either the grouped envelope
// {"data": {"user_complaints": {"data": [...]}, "reference_complaints": {"data": [...]}}}
// or a flat list under `data`, `complaints`, `results` or the root.
func searchResults(payload json.RawMessage, q MonitoringQuery) ([]core.Record, apiclient.Pagination, error) {
	var envelope struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err == nil && envelope.Data != nil {
		users, err := apiclient.Unwrap(envelope.Data["user_complaints"], apiclient.PageOf(), q.PerPage)
		if err != nil {
			return nil, apiclient.Pagination{}, err
		}
		refs, err := apiclient.Unwrap(envelope.Data["reference_complaints"], apiclient.ListOf(), q.PerPage)
		if err != nil {
			return nil, apiclient.Pagination{}, err
		}

		var byUser, byRef []core.Record
		if err := users.Decode(&byUser); err != nil {
			return nil, apiclient.Pagination{}, err
		}
		if err := refs.Decode(&byRef); err != nil {
			return nil, apiclient.Pagination{}, err
		}
		return dedup(append(byUser, byRef...)), *users.Pagination, nil
	}

	res, err := apiclient.Unwrap(payload, apiclient.ListOf("data", "complaints", "results"), q.PerPage)
	if err != nil {
		return nil, apiclient.Pagination{}, err
	}
	results := make([]core.Record, 0)
	if err := res.Decode(&results); err != nil {
		return nil, apiclient.Pagination{}, err
	}
	p := apiclient.LocalPagination(len(results), q.PerPage)
	p.CurrentPage = q.Page
	return results, p, nil
}

// dedup keeps the first complaint of each complaint_id (or reference_number when it has no id).
// Complaints carrying neither are all kept.
func dedup(records []core.Record) []core.Record {
	seen := make(map[string]bool, len(records))
	unique := make([]core.Record, 0, len(records))
	for _, rec := range records {
		key := rec.String("complaint_id")
		if key == "" {
			key = rec.String("reference_number")
		}
		if key != "" {
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		unique = append(unique, rec)
	}
	return unique
}

func entryOf(rec core.Record) MonitoringEntry {
	entry := MonitoringEntry{
		ReferenceNumber: rec.String("reference_number"),
		CitizenName:     "-",
		Status:          rec.String("status"),
		Original:        rec,
	}
	if name := rec.Object("user").String("name"); name != "" {
		entry.CitizenName = name
	}
	for _, key := range []string{"updated_at", "created_at"} {
		if v := rec.String(key); v != "" {
			entry.ChangedAt = rec[key]
			break
		}
	}
	return entry
}
