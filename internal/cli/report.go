package cli

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"go-fingerprint-quality/internal/analyzer"
	"go-fingerprint-quality/internal/batch"
	"go-fingerprint-quality/internal/service"
	"go-fingerprint-quality/pkg/validation"
)

// ErrPartialFailure is returned after output when some images could not be evaluated
var ErrPartialFailure = errors.New("some images could not be evaluated")

type reportOptions struct {
	actionable bool
	speed      bool
	features   bool
	native     bool
}

// scoreRecord is one output row of the score command
type scoreRecord struct {
	Filename   string             `json:"filename"`
	Score      int                `json:"quality_score"`
	Error      string             `json:"error,omitempty"`
	Actionable map[string]bool    `json:"actionable,omitempty"`
	Features   map[string]float64 `json:"features,omitempty"`
	Native     map[string]uint8   `json:"native_quality,omitempty"`
	SpeedsMS   map[string]float64 `json:"speed_ms,omitempty"`
}

type scoreReport struct {
	Records []scoreRecord
	opts    reportOptions

	// column orders
	identifiers []string
	featureIDs  []string
	speedGroups []string
}

func buildReport(quality service.QualityService, results []batch.Result, opts reportOptions) *scoreReport {
	r := &scoreReport{opts: opts, featureIDs: quality.AllQualityFeatureIDs(), speedGroups: analyzer.DefaultSchema().SpeedGroups()}
	for _, id := range quality.AllActionableIdentifiers() {
		r.identifiers = append(r.identifiers, string(id))
	}

	for _, res := range results {
		rec := scoreRecord{Filename: res.Path}
		if res.Err != nil {
			rec.Error = res.Err.Error()
			r.Records = append(r.Records, rec)
			continue
		}

		ev := res.Evaluation
		rec.Score = ev.Score
		if opts.actionable {
			rec.Actionable = make(map[string]bool, len(r.identifiers))
			for _, id := range r.identifiers {
				rec.Actionable[id] = false
			}
			for _, id := range validation.IDs(ev.Feedback) {
				rec.Actionable[string(id)] = true
			}
		}
		if opts.features {
			rec.Features = ev.Features.Vector.Map()
		}
		if opts.native {
			rec.Native = quality.NativeQualityValues(ev.Features.Vector)
		}
		if opts.speed {
			rec.SpeedsMS = make(map[string]float64, len(ev.Features.ModuleSpeeds))
			for group, d := range ev.Features.ModuleSpeeds {
				rec.SpeedsMS[group] = float64(d.Microseconds()) / 1000
			}
		}
		r.Records = append(r.Records, rec)
	}
	return r
}

func (r *scoreReport) header() []string {
	cols := []string{"Filename", "QualityScore", "OptionalError"}
	if r.opts.actionable {
		cols = append(cols, r.identifiers...)
	}
	if r.opts.features {
		cols = append(cols, r.featureIDs...)
	}
	if r.opts.native {
		for _, id := range r.nativeIDs() {
			cols = append(cols, "NQ_"+id)
		}
	}
	if r.opts.speed {
		for _, g := range r.speedGroups {
			cols = append(cols, "Speed_"+g)
		}
	}
	return cols
}

// nativeIDs lists the features with a native quality mapping, in schema order
func (r *scoreReport) nativeIDs() []string {
	var ids []string
	for _, id := range r.featureIDs {
		if _, ok := analyzer.NativeQualityValue(id, 0); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *scoreReport) row(rec scoreRecord) []string {
	if rec.Error != "" {
		row := []string{rec.Filename, "NA", rec.Error}
		for n := len(r.header()); len(row) < n; {
			row = append(row, "NA")
		}
		return row
	}

	row := []string{rec.Filename, strconv.Itoa(rec.Score), "NA"}
	if r.opts.actionable {
		for _, id := range r.identifiers {
			row = append(row, boolCell(rec.Actionable[id]))
		}
	}
	if r.opts.features {
		for _, id := range r.featureIDs {
			v, ok := rec.Features[id]
			if !ok {
				row = append(row, "NA")
				continue
			}
			row = append(row, strconv.FormatFloat(v, 'f', 5, 64))
		}
	}
	if r.opts.native {
		for _, id := range r.nativeIDs() {
			row = append(row, strconv.Itoa(int(rec.Native[id])))
		}
	}
	if r.opts.speed {
		for _, g := range r.speedGroups {
			row = append(row, strconv.FormatFloat(rec.SpeedsMS[g], 'f', 3, 64))
		}
	}
	return row
}

func boolCell(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (r *scoreReport) writeCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(r.header()); err != nil {
		return err
	}
	for _, rec := range r.Records {
		if err := cw.Write(r.row(rec)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (r *scoreReport) writeTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(r.header(), "\t"))
	for _, rec := range r.Records {
		fmt.Fprintln(tw, strings.Join(r.row(rec), "\t"))
	}
	return tw.Flush()
}

// failures wraps the first evaluation error so callers can map it to an exit code
func failures(results []batch.Result) error {
	failed := 0
	var first error
	for _, r := range results {
		if r.Err != nil {
			if first == nil {
				first = r.Err
			}
			failed++
		}
	}
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%w (%d of %d): %w", ErrPartialFailure, failed, len(results), first)
}
