package nosqlbench

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	g "github.com/hhkbp2/nosqlbench/generator"
	"github.com/spf13/cobra"
)

var (
	ProgramName = ""
	OutputDest  io.Writer
)

func init() {
	ProgramName = filepath.Base(os.Args[0])
	OutputDest = os.Stdout
}

// Arguments are the command line settings shared by all commands.
type Arguments struct {
	PropertyFiles []string
	Properties    []string
	Database      string
	Host          string
	Port          int
	Threads       int
	Report        string
	LogLevel      string
	NoWarmup      bool
	Stderr        bool

	flags *cobra.Command
}

func (self *Arguments) changed(name string) bool {
	return self.flags != nil && self.flags.Flags().Changed(name)
}

// BuildProperties merges, in increasing priority, the property files, the
// -p properties and the dedicated flags.
func (self *Arguments) BuildProperties() (Properties, error) {
	props := NewProperties()
	for _, fileName := range self.PropertyFiles {
		propsFromFile, err := LoadProperties(fileName)
		if err != nil {
			return nil, NewErrorf("fail to load property file %s: %w", fileName, err)
		}
		props.Merge(propsFromFile)
	}
	for _, arg := range self.Properties {
		// it's a property, should be in `k=v` form
		parts := strings.SplitN(arg, "=", 2)
		if len(parts) != 2 || len(parts[0]) == 0 {
			return nil, NewErrorf("invalid property: %s", arg)
		}
		props.Add(parts[0], parts[1])
	}
	if self.changed("db") {
		props.Add(PropertyDB, self.Database)
	}
	if self.changed("host") {
		props.Add(PropertyHost, self.Host)
	}
	if self.changed("port") {
		props.Add(PropertyPort, strconv.Itoa(self.Port))
	}
	if self.changed("threads") {
		props.Add(PropertyThreadsMax, strconv.Itoa(self.Threads))
	}
	if self.changed("report") {
		props.Add(PropertyReport, self.Report)
	}
	if self.changed("log-level") {
		props.Add(PropertyLogLevel, self.LogLevel)
	}
	return props, nil
}

// BuildOptions turns the arguments into validated options and applies
// the log level.
func (self *Arguments) BuildOptions() (*Options, error) {
	props, err := self.BuildProperties()
	if err != nil {
		return nil, err
	}
	if err := SetLogLevelByName(props.GetDefault(PropertyLogLevel, PropertyLogLevelDefault)); err != nil {
		return nil, err
	}
	return NewOptions(props)
}

func (self *Arguments) output() io.Writer {
	if self.Stderr {
		return os.Stderr
	}
	return OutputDest
}

func addFlags(cmd *cobra.Command, args *Arguments) {
	args.flags = cmd
	f := cmd.Flags()
	f.StringArrayVarP(&args.PropertyFiles, "property-file", "P", nil, "load properties from file, .yaml/.yml or name=value lines")
	f.StringArrayVarP(&args.Properties, "property", "p", nil, "specify a property value as name=value")
	f.StringVar(&args.Database, "db", PropertyDBDefault, "database driver to benchmark (can also set the \"db\" property)")
	f.StringVar(&args.Host, "host", PropertyHostDefault, "server host")
	f.IntVar(&args.Port, "port", 33013, "server port")
	f.IntVar(&args.Threads, "threads", 10, "maximum number of workers")
	f.StringVar(&args.Report, "report", PropertyReportDefault, "report format")
	f.StringVar(&args.LogLevel, "log-level", PropertyLogLevelDefault, "log level: verbose, debug, info, warn, error or quiet")
	f.BoolVarP(&args.Stderr, "stderr", "s", false, "print the report to stderr")
}

// RunBenchmark runs the optional warmup and then the benchmark described
// by opts, reporting to out.
func RunBenchmark(ctx context.Context, opts *Options, warmup bool, out io.Writer) error {
	reporter, err := NewReporter(opts.Report, out)
	if err != nil {
		return err
	}
	var metrics *Metrics
	if len(opts.MetricsAddr) > 0 {
		metrics = NewMetrics()
		serveCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := metrics.Serve(serveCtx, opts.MetricsAddr); err != nil {
				Errorf("fail to serve metrics on %s: %s", opts.MetricsAddr, err)
			}
		}()
		Infof("serving metrics on %s/metrics", opts.MetricsAddr)
	}
	if warmup {
		if err := Warmup(ctx, opts, reporter); err != nil {
			return err
		}
	}
	bc := NewBenchmarkContext(opts, reporter, metrics)
	_, err = bc.Run(ctx)
	return err
}

func newRunCommand() *cobra.Command {
	args := &Arguments{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Warm up the database and run the benchmark",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := args.BuildOptions()
			if err != nil {
				return err
			}
			return RunBenchmark(cmd.Context(), opts, !args.NoWarmup, args.output())
		},
	}
	addFlags(cmd, args)
	cmd.Flags().BoolVar(&args.NoWarmup, "no-warmup", false, "skip the warmup")
	return cmd
}

func newWarmupCommand() *cobra.Command {
	args := &Arguments{}
	cmd := &cobra.Command{
		Use:   "warmup",
		Short: "Only insert the key space into the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := args.BuildOptions()
			if err != nil {
				return err
			}
			reporter, err := NewReporter(opts.Report, args.output())
			if err != nil {
				return err
			}
			return Warmup(cmd.Context(), opts, reporter)
		},
	}
	addFlags(cmd, args)
	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available drivers, key types, distributions and reports",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Databases:     %s\n", strings.Join(DriverNames(), ", "))
			fmt.Fprintf(w, "Keys:          %s\n", strings.Join(KeyTypeNames(), ", "))
			fmt.Fprintf(w, "Distributions: %s\n", strings.Join(g.DistributionNames(), ", "))
			fmt.Fprintf(w, "Reports:       %s\n", strings.Join(ReporterNames(), ", "))
		},
	}
}

// NewCommand builds the root command line.
func NewCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           ProgramName,
		Short:         "NoSQL Benchmark",
		Long:          "A load generator measuring throughput and latency of key/value databases.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCommand(), newWarmupCommand(), newListCommand())
	return root
}

func ExitOnError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintln(os.Stderr)
	os.Exit(1)
}

// Main runs the command line until it finishes or an interrupt arrives.
func Main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := NewCommand().ExecuteContext(ctx); err != nil {
		stop()
		ExitOnError("%s", err)
	}
}
