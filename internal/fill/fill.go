// Package fill infers the cells of a dataset that are marked as missing.
//
// Each missing cell becomes one retrieval-augmented question. Cells are
// independent, so they run on a bounded pool of workers; results are written
// back only after every worker has finished. A failing cell never aborts the
// run: it is set to Unknown and the error is kept in the row's Reasoning.
package fill

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"rag-backend/internal/config"
	"rag-backend/internal/extract"
	"rag-backend/internal/models"
	"rag-backend/internal/table"
)

// Answerer answers a question from retrieved context. source may be empty.
type Answerer interface {
	AnswerWithRetrieval(ctx context.Context, question, source string) (string, error)
}

type Options struct {
	Workers     int
	CellTimeout time.Duration
	Sentinel    string
	Rules       string
	// InPlace writes into the dataset passed to Reconstruct instead of a copy.
	InPlace bool
}

// OptionsFromConfig maps the fill section of the config.
func OptionsFromConfig(cfg config.FillConfig) Options {
	return Options{
		Workers:     cfg.Workers,
		CellTimeout: cfg.CellTimeout,
		Sentinel:    cfg.Sentinel,
		Rules:       cfg.Rules,
		InPlace:     cfg.InPlace,
	}
}

// Report counts what happened to the missing cells of one run.
type Report struct {
	Missing int `json:"missing"`
	Filled  int `json:"filled"`  // numeric value extracted
	Unknown int `json:"unknown"` // model answered, but no usable value
	Failed  int `json:"failed"`  // completion or store error
	Skipped int `json:"skipped"` // not attempted because the run was cancelled
}

type Reconstructor struct {
	answerer  Answerer
	extractor *extract.Extractor
	opts      Options
}

func New(answerer Answerer, extractor *extract.Extractor, opts Options) *Reconstructor {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Sentinel == "" {
		opts.Sentinel = models.DefaultMissingSentinel
	}
	if opts.Rules == "" {
		opts.Rules = models.DefaultReconstructionRules
	}
	if extractor == nil {
		extractor = extract.New(models.DefaultDelimiter)
	}
	return &Reconstructor{answerer: answerer, extractor: extractor, opts: opts}
}

type cell struct {
	row, col int
	prompt   string
}

type outcome struct {
	extract.Result
	done   bool
	failed bool
}

// Reconstruct fills every missing cell of d, in row then column order. A
// dataset without missing cells comes back unchanged and no Reasoning column
// is added. On cancellation the cells finished so far are kept and ctx.Err()
// is returned alongside the partial dataset.
func (r *Reconstructor) Reconstruct(ctx context.Context, d *table.Dataset) (*table.Dataset, Report, error) {
	out := d
	if !r.opts.InPlace {
		out = d.Clone()
	}

	reasoningCol := out.ColumnIndex(models.ReasoningColumn)
	cells := r.missingCells(out, reasoningCol)
	report := Report{Missing: len(cells)}
	if len(cells) == 0 {
		return out, report, nil
	}
	if reasoningCol < 0 {
		reasoningCol = out.EnsureColumn(models.ReasoningColumn)
	}

	log.Info().Int("cells", len(cells)).Int("workers", r.opts.Workers).Msg("Reconstructing missing values")
	start := time.Now()

	results := make([]outcome, len(cells))
	var g errgroup.Group
	g.SetLimit(r.opts.Workers)
	for i := range cells {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = r.infer(ctx, out.Columns[cells[i].col], cells[i])
			return nil
		})
	}
	_ = g.Wait()

	// Merge by index once all workers are done.
	reasonings := make(map[int][]string)
	for i, c := range cells {
		res := results[i]
		if !res.done {
			report.Skipped++
			continue
		}
		out.Rows[c.row][c.col] = res.Value
		reasonings[c.row] = append(reasonings[c.row], res.Raw)
		switch {
		case res.failed:
			report.Failed++
		case res.Value == models.UnknownValue:
			report.Unknown++
		default:
			report.Filled++
		}
	}
	for row, texts := range reasonings {
		out.Rows[row][reasoningCol] = strings.Join(texts, models.ContextSeparator)
	}

	log.Info().
		Int("filled", report.Filled).
		Int("unknown", report.Unknown).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Dur("took", time.Since(start)).
		Msg("Reconstruction finished")

	return out, report, ctx.Err()
}

// missingCells lists the sentinel cells with their prompts, built from the
// dataset as it was before any cell is written.
func (r *Reconstructor) missingCells(d *table.Dataset, reasoningCol int) []cell {
	var cells []cell
	for i, row := range d.Rows {
		for j, v := range row {
			if j == reasoningCol || !strings.EqualFold(strings.TrimSpace(v), r.opts.Sentinel) {
				continue
			}
			cells = append(cells, cell{
				row:    i,
				col:    j,
				prompt: r.BuildPrompt(d.Columns[j], d.RowText(i, j, reasoningCol)),
			})
		}
	}
	return cells
}

func (r *Reconstructor) infer(ctx context.Context, column string, c cell) outcome {
	if ctx.Err() != nil {
		return outcome{}
	}

	cellCtx := ctx
	if r.opts.CellTimeout > 0 {
		var cancel context.CancelFunc
		cellCtx, cancel = context.WithTimeout(ctx, r.opts.CellTimeout)
		defer cancel()
	}

	raw, err := r.answerer.AnswerWithRetrieval(cellCtx, c.prompt, "")
	if err != nil {
		if ctx.Err() != nil {
			// The whole run was cancelled; leave the cell for a later run.
			return outcome{}
		}
		log.Warn().Err(err).Int("row", c.row).Str("column", column).Msg("Cell inference failed")
		return outcome{
			Result: extract.Result{Value: models.UnknownValue, Raw: "error: " + err.Error()},
			done:   true,
			failed: true,
		}
	}

	return outcome{Result: r.extractor.Extract(raw), done: true}
}

// BuildPrompt renders the reconstruction question for one cell.
func (r *Reconstructor) BuildPrompt(column, rowText string) string {
	d := r.extractor.Delimiter()
	return fmt.Sprintf(models.ReconstructPromptTemplate, column, rowText, r.opts.Rules, d, d, d)
}

// ReconstructFile reads the dataset at path, fills it and writes the result
// next to it in format. It returns the output path.
func (r *Reconstructor) ReconstructFile(ctx context.Context, path, format string) (string, Report, error) {
	d, err := table.Read(path)
	if err != nil {
		return "", Report{}, err
	}

	out, report, runErr := r.Reconstruct(ctx, d)

	// A cancelled run still writes what it finished.
	outPath := table.CompletedPath(path, format)
	if err := table.WriteFile(outPath, format, out); err != nil {
		return "", report, fmt.Errorf("write %s: %w", outPath, err)
	}
	return outPath, report, runErr
}
