// Command equipctl drives the equipment analysis backend from a terminal:
// upload a spreadsheet, inspect the latest dataset or the upload history,
// and download the PDF report.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/chemviz/dashboard/internal/config"
	"github.com/chemviz/dashboard/internal/derive"
	"github.com/chemviz/dashboard/internal/logging"
	"github.com/chemviz/dashboard/internal/storage"
	"github.com/chemviz/dashboard/internal/store"
	"github.com/chemviz/dashboard/internal/transport"
	"github.com/chemviz/dashboard/internal/view"
	"github.com/spf13/pflag"
)

const usage = `Usage: equipctl [flags] <command> [args]

Commands:
  upload <file.csv>   upload a spreadsheet and print the resulting dataset
  latest              print the most recent dataset
  history             print the last uploads
  report              download the PDF report of the latest dataset

Flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type cli struct {
	store     *store.Store
	cfg       *config.AppConfig
	view      view.Options
	stdout    io.Writer
	stderr    io.Writer
	chartPath string
	outDir    string
	asJSON    bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("equipctl", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprint(stderr, usage)
		flags.PrintDefaults()
	}
	configPath := flags.StringP("config", "c", "", "path to the YAML configuration file")
	backendURL := flags.StringP("backend", "b", "", "backend URL (overrides config)")
	outDir := flags.StringP("out", "o", "", "directory for the downloaded report")
	chartPath := flags.String("chart", "", "also write the distribution chart to this .png or .svg file")
	asJSON := flags.Bool("json", false, "print JSON instead of tables")
	logLevel := flags.String("log-level", "", "log level (overrides config)")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return 2
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		cfg = loaded
	}
	if *backendURL != "" {
		cfg.Backend.URL = *backendURL
	}
	if *logLevel != "" {
		cfg.Advanced.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}
	if err := logging.SetupWriter(stderr, cfg.Advanced.LogLevel, "console"); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}
	loc, err := cfg.Location()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	c := &cli{
		store:     store.New(transport.New(cfg.GetBackendURL(), transport.WithTimeout(cfg.BackendTimeout()))),
		cfg:       cfg,
		view:      view.Options{Location: loc, TimeLayout: cfg.UI.TimeLayout},
		stdout:    stdout,
		stderr:    stderr,
		chartPath: *chartPath,
		outDir:    *outDir,
		asJSON:    *asJSON,
	}

	cmd, rest := flags.Arg(0), flags.Args()[1:]
	switch cmd {
	case "upload":
		if len(rest) != 1 {
			fmt.Fprintln(stderr, "error: upload takes exactly one file")
			return 2
		}
		err = c.upload(ctx, rest[0])
	case "latest":
		err = c.latest(ctx)
	case "history":
		err = c.history(ctx)
	case "report":
		err = c.report(ctx)
	default:
		fmt.Fprintf(stderr, "error: unknown command %q\n", cmd)
		flags.Usage()
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// failure turns the banner message of the last operation into an error.
func (c *cli) failure() error {
	if msg := c.store.Snapshot().Error; msg != "" {
		return errors.New(msg)
	}
	return nil
}

func (c *cli) upload(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	c.store.SubmitUpload(ctx, filepath.Base(path), f)
	if err := c.failure(); err != nil {
		return err
	}
	if !c.asJSON {
		fmt.Fprintln(c.stdout, view.SuccessMessage)
	}
	return c.printDataset()
}

func (c *cli) latest(ctx context.Context) error {
	c.store.LoadLatest(ctx)
	if err := c.failure(); err != nil {
		return err
	}
	return c.printDataset()
}

func (c *cli) printDataset() error {
	snap := c.store.Snapshot()
	series := derive.Chart(snap.Dataset)
	page := view.Build(snap, series, c.view)

	if c.chartPath != "" && series != nil {
		if err := writeChart(c.chartPath, series, view.ChartSize{Width: c.cfg.UI.ChartWidth, Height: c.cfg.UI.ChartHeight}); err != nil {
			return err
		}
	}

	if c.asJSON {
		return c.printJSON(snap.Dataset)
	}
	if !page.HasDataset() {
		fmt.Fprintln(c.stdout, "No data available")
		return nil
	}

	if page.LastUpload != "" {
		fmt.Fprintf(c.stdout, "Last upload: %s\n\n", page.LastUpload)
	}
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	for _, card := range page.Cards {
		fmt.Fprintf(tw, "%s:\t%s\n", card.Label, card.Value)
	}
	tw.Flush()

	if series != nil {
		fmt.Fprintf(c.stdout, "\n%s\n", derive.SeriesLabel)
		tw = tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
		for i, label := range series.Labels {
			fmt.Fprintf(tw, "  %s\t%d\n", label, series.Values[i])
		}
		tw.Flush()
	}

	fmt.Fprintln(c.stdout)
	tw = tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(page.Columns, "\t"))
	for _, row := range page.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func (c *cli) history(ctx context.Context) error {
	c.store.LoadHistory(ctx)
	snap := c.store.Snapshot()
	if c.asJSON {
		return c.printJSON(snap.History)
	}

	page := view.Build(snap, nil, c.view)
	if len(page.History) == 0 {
		fmt.Fprintln(c.stdout, "No uploads yet")
		return nil
	}
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Upload Time\tTotal Equipment\tAvg Flowrate\tAvg Pressure\tAvg Temperature")
	for _, h := range page.History {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", h.UploadedAt, h.TotalEquipment, h.AverageFlowrate, h.AveragePressure, h.AverageTemperature)
	}
	return tw.Flush()
}

func (c *cli) report(ctx context.Context) error {
	dir := c.outDir
	if dir == "" {
		dir = c.cfg.GetDownloadDir()
	}
	local, err := storage.NewLocalStore(dir)
	if err != nil {
		return err
	}
	if err := c.store.DownloadReport(ctx, local); err != nil {
		if ferr := c.failure(); ferr != nil {
			return ferr
		}
		return err
	}
	saved, _ := local.Last()
	fmt.Fprintf(c.stdout, "Saved %s (%d bytes)\n", saved.Path, saved.Size)
	return nil
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeChart(path string, series *derive.ChartSeries, size view.ChartSize) error {
	format := view.ChartPNG
	if strings.EqualFold(filepath.Ext(path), ".svg") {
		format = view.ChartSVG
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := view.RenderChart(f, series, format, size); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
