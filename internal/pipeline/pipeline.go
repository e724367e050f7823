// Package pipeline runs one uploaded CSV through loading, quality checks,
// optional cleaning, profiling, optional AI metadata and artifact storage.
// Both the CLI and the HTTP server drive it.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/KaramelBytes/dataprof/internal/ai"
	"github.com/KaramelBytes/dataprof/internal/dataset"
	"github.com/KaramelBytes/dataprof/internal/logging"
	"github.com/KaramelBytes/dataprof/internal/metrics"
	"github.com/KaramelBytes/dataprof/internal/profile"
	"github.com/KaramelBytes/dataprof/internal/quality"
	"github.com/KaramelBytes/dataprof/internal/storage"
	"github.com/KaramelBytes/dataprof/internal/utils"
)

// Config wires the collaborators. Every field is optional: without a Store
// nothing is persisted, without a Runtime metadata requests fail.
type Config struct {
	Store    storage.Store
	Runtime  ai.Runtime
	Model    string
	AIOpts   ai.MetadataOptions
	Metrics  metrics.Backend
	Logger   *logrus.Logger
	LoadOpts dataset.LoadOptions
	NewID    func() string
	Now      func() time.Time
}

// Pipeline is safe for concurrent use when its collaborators are.
type Pipeline struct {
	cfg Config
}

// New fills unset collaborators with no-op defaults.
func New(cfg Config) *Pipeline {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.NewString() }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.LoadOpts.Delimiter == 0 {
		cfg.LoadOpts.Delimiter = ','
	}
	return &Pipeline{cfg: cfg}
}

// Options selects the stages of a single run.
type Options struct {
	// Name is the uploaded file name, used for delimiter sniffing and prompts.
	Name string
	// Fix profiles the cleaned table instead of the original.
	Fix bool
	// Metadata asks the AI runtime to describe the dataset.
	Metadata bool
	// Persist stores the artifacts when a Store is configured.
	Persist bool
	// SkipProfile stops after the quality report (and cleaning, if Fix).
	SkipProfile bool
}

// Result carries everything a run produced.
type Result struct {
	DatasetID string
	Stored    bool
	Table     *dataset.Table
	Cleaned   *dataset.Table
	Quality   *quality.Report
	Profile   *profile.DatasetProfile
	Metadata  *ai.Metadata
}

// InputError marks failures caused by the uploaded data itself (malformed
// CSV, ragged rows) as opposed to collaborator failures.
type InputError struct{ Err error }

func (e *InputError) Error() string { return e.Err.Error() }
func (e *InputError) Unwrap() error { return e.Err }

// IsInputError reports whether err was caused by the input data.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// Run executes the configured stages over the CSV read from r.
func (p *Pipeline) Run(ctx context.Context, r io.Reader, opt Options) (*Result, error) {
	res := &Result{DatasetID: p.cfg.NewID()}
	log := p.cfg.Logger.WithFields(logrus.Fields{"dataset_id": res.DatasetID, "file": opt.Name})
	started := p.cfg.Now()

	res, err := p.run(ctx, r, opt, res, log)
	status := "ok"
	switch {
	case err == nil:
	case IsInputError(err):
		status = "invalid"
	default:
		status = "failed"
	}
	p.cfg.Metrics.IncCounter(metrics.DatasetsTotal, 1, metrics.Labels{"status": status})

	entry := log.WithFields(logrus.Fields{"status": status, "duration": p.cfg.Now().Sub(started).String()})
	if err != nil {
		entry.WithError(err).Warn("dataset run failed")
		return nil, err
	}
	entry.WithFields(logrus.Fields{"rows": res.Table.NumRows(), "columns": res.Table.NumColumns()}).Info("dataset processed")
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, r io.Reader, opt Options, res *Result, log *logrus.Entry) (*Result, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	lo := p.cfg.LoadOpts
	if opt.Name != "" && lo.Delimiter == ',' {
		lo.Delimiter = dataset.SniffDelimiter(opt.Name)
	}
	tbl, err := dataset.LoadCSV(bytes.NewReader(raw), lo)
	if err != nil {
		return nil, &InputError{Err: err}
	}
	res.Table = tbl
	p.cfg.Metrics.IncCounter(metrics.RowsTotal, float64(tbl.NumRows()), metrics.Labels{"stage": "loaded"})
	log.WithFields(logrus.Fields{"rows": tbl.NumRows(), "columns": tbl.NumColumns()}).Debug("csv loaded")

	checker := quality.New(tbl)
	res.Quality = checker.Report()
	p.cfg.Metrics.IncCounter(metrics.DuplicatesTotal, float64(res.Quality.Duplicates), nil)

	target := tbl
	if opt.Fix {
		res.Cleaned = checker.FixData()
		target = res.Cleaned
		p.cfg.Metrics.IncCounter(metrics.RowsTotal, float64(res.Cleaned.NumRows()), metrics.Labels{"stage": "cleaned"})
		log.WithField("rows_dropped", tbl.NumRows()-res.Cleaned.NumRows()).Debug("table cleaned")
	}

	if !opt.SkipProfile {
		t0 := p.cfg.Now()
		res.Profile = profile.ProfileTable(target)
		p.cfg.Metrics.ObserveHistogram(metrics.ProfileDurationSeconds, p.cfg.Now().Sub(t0).Seconds(), nil)
	}

	if opt.Metadata {
		if res.Profile == nil {
			return nil, errors.New("metadata requires a profile")
		}
		aiOpts := p.cfg.AIOpts
		aiOpts.Name = opt.Name
		log.WithField("summary_tokens", utils.CountTokens(res.Profile.Markdown(opt.Name))).Debug("requesting metadata")
		md, err := ai.GenerateMetadata(ctx, p.cfg.Runtime, p.cfg.Model, res.Profile, aiOpts)
		if err != nil {
			return nil, err
		}
		res.Metadata = md
	}

	if opt.Persist && p.cfg.Store != nil {
		if err := p.persist(ctx, raw, res); err != nil {
			return nil, err
		}
		res.Stored = true
		log.Debug("artifacts stored")
	}
	return res, nil
}

func (p *Pipeline) persist(ctx context.Context, raw []byte, res *Result) error {
	put := func(name string, data []byte) error {
		key := storage.Key(res.DatasetID, name)
		if err := p.cfg.Store.Put(ctx, key, data, storage.ContentTypeFor(key)); err != nil {
			return fmt.Errorf("store %s: %w", name, err)
		}
		return nil
	}
	if err := put(storage.OriginalCSV, raw); err != nil {
		return err
	}
	if res.Cleaned != nil {
		var buf bytes.Buffer
		if err := dataset.WriteCSV(&buf, res.Cleaned); err != nil {
			return fmt.Errorf("encode cleaned csv: %w", err)
		}
		if err := put(storage.CleanedCSV, buf.Bytes()); err != nil {
			return err
		}
	}
	if res.Profile != nil {
		b, err := utils.PrettyJSON(res.Profile)
		if err != nil {
			return err
		}
		if err := put(storage.ProfileJSON, b); err != nil {
			return err
		}
	}
	if res.Metadata != nil {
		b, err := utils.PrettyJSON(res.Metadata)
		if err != nil {
			return err
		}
		if err := put(storage.MetadataJSON, b); err != nil {
			return err
		}
	}
	return nil
}
