package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/barakah/core"
	"github.com/trezcool/barakah/core/apiclient"
)

const (
	outputJSON = "json"
	outputYAML = "yaml"
)

func render(w io.Writer, format string, v interface{}) error {
	if format == outputYAML {
		// yaml has no notion of json.Number: go through JSON values first
		data, err := json.Marshal(v)
		if err != nil {
			return errors.Wrap(err, "encoding output")
		}
		var doc interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return errors.Wrap(err, "encoding output")
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return errors.Wrap(err, "encoding output")
		}
		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "encoding output")
}

// printError writes `err` for a human: field by field for validation errors.
func printError(w io.Writer, err error) {
	if fldErrs := core.FieldErrors(err, nil); len(fldErrs) > 0 {
		fields := make([]string, 0, len(fldErrs))
		for field := range fldErrs {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		fmt.Fprintln(w, "error: invalid input")
		for _, field := range fields {
			fmt.Fprintf(w, "  %s: %s\n", field, fldErrs[field])
		}
		return
	}
	if f, ok := apiclient.AsFailure(err); ok {
		fmt.Fprintf(w, "error: %s\n", f.Message)
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}

// printMetrics writes one line per request counter and latency histogram.
func printMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return errors.Wrap(err, "gathering metrics")
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}
			name := mf.GetName() + "{" + strings.Join(labels, ",") + "}"
			switch {
			case m.GetCounter() != nil:
				fmt.Fprintf(w, "%s %g\n", name, m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				fmt.Fprintf(w, "%s count=%d sum=%gs\n", name, h.GetSampleCount(), h.GetSampleSum())
			}
		}
	}
	return nil
}
