package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/poiesic/regmap"
	"github.com/poiesic/regmap/config"
	"github.com/poiesic/regmap/core"
	"github.com/poiesic/regmap/logging"
	"github.com/poiesic/regmap/metrics"
	"github.com/poiesic/regmap/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const envKey = "regmap.env"

// appEnv is built once in setup and shared by every command.
type appEnv struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	recorder metrics.Recorder
	json     bool
}

func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("log-level") {
		if _, err := logging.ParseLevel(c.String("log-level")); err != nil {
			return err
		}
		cfg.Log.Level = c.String("log-level")
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)

	env := &appEnv{cfg: cfg, logger: logger, recorder: metrics.Noop{}}
	if c.String("metrics-file") != "" {
		env.registry = prometheus.NewRegistry()
		recorder, err := metrics.NewPrometheus(env.registry)
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		env.recorder = recorder
	}

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[envKey] = env
	return nil
}

func teardown(c *cli.Context) error {
	env, ok := c.App.Metadata[envKey].(*appEnv)
	if !ok {
		return nil
	}
	_ = env.logger.Sync()
	if env.registry == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(c.String("metrics-file"), env.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

func openDatabase(c *cli.Context) (*regmap.Database, error) {
	env, ok := c.App.Metadata[envKey].(*appEnv)
	if !ok {
		return nil, fmt.Errorf("%w: not loaded", config.ErrInvalidConfig)
	}
	env.json = c.Bool("json")

	opts := []regmap.DatabaseOption{
		regmap.WithLogger(env.logger),
		regmap.WithMetrics(env.recorder),
	}
	if c.Bool("progress") {
		opts = append(opts, regmap.WithProgress(c.App.ErrWriter))
	}
	return regmap.Open(c.Context, env.cfg, opts...)
}

// withPipeline opens the database and a pipeline for the duration of fn.
func withPipeline(c *cli.Context, fn func(db *regmap.Database, p *pipeline.Pipeline) error) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	p, err := db.NewPipeline()
	if err != nil {
		return err
	}
	defer p.Release()
	return fn(db, p)
}

func regulationID(c *cli.Context) (core.ID, error) {
	arg := c.Args().First()
	if arg == "" {
		return 0, fmt.Errorf("regulation ID is required")
	}
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid regulation ID %q", arg)
	}
	return core.ID(id), nil
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(c *cli.Context) *tabwriter.Writer {
	return tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
}

func migrateCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	tags, err := db.Store().ListTags(c.Context)
	if err != nil {
		return err
	}
	controls, err := db.Store().ListControls(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Database ready: %d tags, %d controls\n", len(tags), len(controls))
	return nil
}

func ingestCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("document path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	reg, err := db.CreateRegulation(c.Context, c.String("name"), abs)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		return printJSON(c, reg)
	}
	fmt.Fprintf(c.App.Writer, "Registered regulation %d (%s)\n", reg.Id, reg.Name)
	return nil
}

func listCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	regs, err := db.ListRegulations(c.Context)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		return printJSON(c, regs)
	}
	w := newTable(c)
	fmt.Fprintln(w, "ID\tNAME\tUPLOADED\tSOURCE")
	for _, reg := range regs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", reg.Id, reg.Name, reg.UploadedAt.Format("2006-01-02 15:04"), reg.SourceRef)
	}
	return w.Flush()
}

func parseCommand(c *cli.Context) error {
	id, err := regulationID(c)
	if err != nil {
		return err
	}
	return withPipeline(c, func(_ *regmap.Database, p *pipeline.Pipeline) error {
		var out *pipeline.ParseOutcome
		if path := c.String("file"); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read document: %w", err)
			}
			out, err = p.Parse(c.Context, id, string(data))
			if err != nil {
				return err
			}
		} else if out, err = p.ParseSource(c.Context, id); err != nil {
			return err
		}

		if c.Bool("json") {
			return printJSON(c, out)
		}
		fmt.Fprintf(c.App.Writer, "Parsed %d requirements\n", out.Inserted())
		for _, req := range out.Requirements {
			fmt.Fprintf(c.App.Writer, "  %d. %s\n", req.ClauseNumber, req.Text)
		}
		return nil
	})
}

func tagCommand(c *cli.Context) error {
	id, err := regulationID(c)
	if err != nil {
		return err
	}
	return withPipeline(c, func(_ *regmap.Database, p *pipeline.Pipeline) error {
		out, err := p.Tag(c.Context, id)
		if err != nil {
			return err
		}
		if c.Bool("json") {
			return printJSON(c, out)
		}
		fmt.Fprintf(c.App.Writer, "Tagged %d of %d pending requirements (%d tag associations)\n",
			out.Tagged, out.Examined, out.Associations)
		return nil
	})
}

func mapCommand(c *cli.Context) error {
	id, err := regulationID(c)
	if err != nil {
		return err
	}
	return withPipeline(c, func(_ *regmap.Database, p *pipeline.Pipeline) error {
		out, err := p.MapKeywords(c.Context, id)
		if err != nil {
			return err
		}
		if c.Bool("json") {
			return printJSON(c, out)
		}
		fmt.Fprintf(c.App.Writer, "Examined %d tag pairs: %d new keyword mappings, %d already present\n",
			out.Pairs, out.Inserted, out.Existing)
		return nil
	})
}

func rescoreCommand(c *cli.Context) error {
	id, err := regulationID(c)
	if err != nil {
		return err
	}
	return withPipeline(c, func(_ *regmap.Database, p *pipeline.Pipeline) error {
		out, err := p.Rescore(c.Context, id)
		if err != nil {
			return err
		}
		if c.Bool("json") {
			return printJSON(c, out)
		}
		fmt.Fprintf(c.App.Writer, "Rescored %d of %d keyword mappings (%d without text skipped)\n",
			out.Rescored, out.Candidates, out.Skipped)
		return nil
	})
}

func runCommand(c *cli.Context) error {
	id, err := regulationID(c)
	if err != nil {
		return err
	}
	return withPipeline(c, func(db *regmap.Database, p *pipeline.Pipeline) error {
		path := c.String("file")
		if path == "" {
			reg, err := db.GetRegulation(c.Context, id)
			if err != nil {
				return err
			}
			if reg.SourceRef == "" {
				return fmt.Errorf("%w: regulation %d has no source file, pass --file", core.ErrEmptyDocument, id)
			}
			path = reg.SourceRef
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read document: %w", err)
		}

		out, err := p.Run(c.Context, id, string(data))
		if c.Bool("json") && out != nil {
			if jsonErr := printJSON(c, out); jsonErr != nil {
				return jsonErr
			}
			return err
		}
		printRunOutcome(c, out)
		return err
	})
}

func printRunOutcome(c *cli.Context, out *pipeline.RunOutcome) {
	if out == nil {
		return
	}
	w := c.App.Writer
	if out.Parse != nil {
		fmt.Fprintf(w, "parse:   %d requirements\n", out.Parse.Inserted())
	}
	if out.Tag != nil {
		fmt.Fprintf(w, "tag:     %d of %d requirements tagged\n", out.Tag.Tagged, out.Tag.Examined)
	}
	if out.Map != nil {
		fmt.Fprintf(w, "map:     %d new keyword mappings\n", out.Map.Inserted)
	}
	if out.Rescore != nil {
		fmt.Fprintf(w, "rescore: %d mappings rescored\n", out.Rescore.Rescored)
	}
	if len(out.Skipped) > 0 {
		fmt.Fprintf(w, "skipped: %s\n", strings.Join(out.Skipped, ", "))
	}
}

func warmCommand(c *cli.Context) error {
	return withPipeline(c, func(_ *regmap.Database, p *pipeline.Pipeline) error {
		out, err := p.WarmControls(c.Context, c.Int("batch-size"))
		if err != nil {
			return err
		}
		if c.Bool("json") {
			return printJSON(c, out)
		}
		fmt.Fprintf(c.App.Writer, "Embedded %d of %d controls in %d batches\n", out.Embedded, out.Controls, out.Batches)
		return nil
	})
}

func resultsCommand(c *cli.Context) error {
	id, err := regulationID(c)
	if err != nil {
		return err
	}
	return withPipeline(c, func(db *regmap.Database, p *pipeline.Pipeline) error {
		minScore := db.MinScore()
		if c.IsSet("min-score") {
			minScore = c.Float64("min-score")
		}

		if c.Bool("grouped") {
			rows, err := p.GroupedResults(c.Context, id, pipeline.WithMinScore(minScore))
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(c, rows)
			}
			w := newTable(c)
			fmt.Fprintln(w, "CLAUSE\tFRAMEWORK\tCONTROL\tSCORE\tSOURCE\tTAGS")
			for _, row := range rows {
				fmt.Fprintf(w, "%d\t%s\t%s\t%.3f\t%s\t%s\n", row.ClauseNumber, row.Framework, row.ControlCode,
					row.SimilarityScore, row.Source, strings.Join(row.Tags, ", "))
			}
			return w.Flush()
		}

		rows, err := p.Results(c.Context, id, pipeline.WithMinScore(minScore))
		if err != nil {
			return err
		}
		if c.Bool("json") {
			return printJSON(c, rows)
		}
		w := newTable(c)
		fmt.Fprintln(w, "CLAUSE\tFRAMEWORK\tCONTROL\tSCORE\tSOURCE\tTAG")
		for _, row := range rows {
			tag := "-"
			if row.TagName != nil {
				tag = *row.TagName
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%.3f\t%s\t%s\n", row.ClauseNumber, row.Framework, row.ControlCode,
				row.SimilarityScore, row.Source, tag)
		}
		return w.Flush()
	})
}

func suggestCommand(c *cli.Context) error {
	text := strings.Join(c.Args().Slice(), " ")

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher()
	if err != nil {
		return err
	}
	matches, err := searcher.SuggestControls(c.Context, text, c.Int("limit"), c.Float64("min-score"))
	if err != nil {
		return err
	}
	if c.Bool("json") {
		return printJSON(c, matches)
	}
	w := newTable(c)
	fmt.Fprintln(w, "FRAMEWORK\tCONTROL\tSCORE\tTITLE")
	for _, m := range matches {
		fmt.Fprintf(w, "%s\t%s\t%.3f\t%s\n", m.Control.Framework, m.Control.Code, m.Score, m.Control.Title)
	}
	return w.Flush()
}

func statusCommand(c *cli.Context) error {
	id, err := regulationID(c)
	if err != nil {
		return err
	}
	return withPipeline(c, func(_ *regmap.Database, p *pipeline.Pipeline) error {
		s, err := p.Status(c.Context, id)
		if err != nil {
			return err
		}
		if c.Bool("json") {
			return printJSON(c, struct {
				*core.RegulationSummary
				Phase core.Phase
			}{s, s.Phase()})
		}
		w := c.App.Writer
		fmt.Fprintf(w, "Regulation:   %d (%s)\n", s.Regulation.Id, s.Regulation.Name)
		fmt.Fprintf(w, "Phase:        %s\n", s.Phase())
		fmt.Fprintf(w, "Requirements: %d (%d pending, %d tagged)\n", s.Requirements, s.Pending, s.Tagged)
		fmt.Fprintf(w, "Tag links:    %d\n", s.TagAssociations)
		fmt.Fprintf(w, "Mappings:     %d keyword, %d semantic, %d hybrid\n",
			s.KeywordMappings, s.SemanticMappings, s.HybridMappings)
		return nil
	})
}

func deleteCommand(c *cli.Context) error {
	id, err := regulationID(c)
	if err != nil {
		return err
	}
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.DeleteRegulation(c.Context, id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Deleted regulation %d\n", id)
	return nil
}
