package school

import (
	"context"

	"github.com/trezcool/barakah/core"
	"github.com/trezcool/barakah/core/apiclient"
)

// Option is a choice of a select input.
type Option struct {
	Label string  `json:"label" yaml:"label"`
	Value core.ID `json:"value" yaml:"value"`
}

type Subjects struct {
	client *apiclient.Client
}

func (s *Subjects) List(ctx context.Context) ([]core.Record, error) {
	res, err := s.client.Execute(ctx, apiclient.Get("/subjects", nil), apiclient.ListOf("subjects"))
	if err != nil {
		return nil, err
	}
	var subjects []core.Record
	if err := res.Decode(&subjects); err != nil {
		return nil, err
	}
	return subjects, nil
}

// Options maps the subjects to {label: name, value: id}.
func (s *Subjects) Options(ctx context.Context) ([]Option, error) {
	subjects, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	options := make([]Option, 0, len(subjects))
	for _, subj := range subjects {
		options = append(options, Option{Label: subj.String("name"), Value: subj.ID()})
	}
	return options, nil
}
