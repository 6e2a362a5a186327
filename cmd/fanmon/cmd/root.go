package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/orbstack/fanmon/conf"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

var (
	flagConfig       string
	flagEvents       string
	flagNamespace    int
	flagRecursive    bool
	flagMount        bool
	flagFilesystem   bool
	flagControl      string
	flagPendingLimit int
	flagOverflow     string
	flagFiltered     string
	flagEOF          string
	flagDebug        bool
)

func init() {
	addFlags(rootCmd)
}

func addFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&flagConfig, "config", "c", "", "read options from a YAML file (flags take precedence)")
	flags.StringVarP(&flagEvents, "events", "e", "", "comma-separated events to watch (default: "+conf.DefaultEvents+")")
	flags.IntVarP(&flagNamespace, "process", "p", 0, "paths are relative to the filesystem namespace of this process")
	flags.BoolVarP(&flagRecursive, "recursive", "r", false, "recursively monitor everything under paths, implies -m unless -f is used")
	flags.BoolVarP(&flagMount, "mount", "m", false, "notify for the mount point, implies -r")
	flags.BoolVarP(&flagFilesystem, "filesystem", "f", false, "notify for the filesystem, implies -r")
	flags.StringVar(&flagControl, "control", "", "read ALLOW/DENY commands from this file or FIFO instead of stdin")
	flags.IntVar(&flagPendingLimit, "pending-limit", conf.DefaultPendingLimit, "max permission events awaiting a decision")
	flags.StringVar(&flagOverflow, "overflow-response", conf.DefaultOverflowResponse, "answer for permission events past the pending limit")
	flags.StringVar(&flagFiltered, "filtered-response", conf.DefaultFilteredResponse, "answer for permission events outside the watched paths")
	flags.StringVar(&flagEOF, "eof-response", conf.DefaultEOFResponse, "answer for permission events once the control input is closed")
	flags.BoolVar(&flagDebug, "debug", false, "debug logging")
}

var rootCmd = &cobra.Command{
	Use:   "fanmon [flags] PATH...",
	Short: "Monitor and mediate filesystem access with fanotify",
	Long: `Monitor filesystem access with fanotify.

Each event is printed as one tab-separated line:
    <EVENTS>	<FD>	<PID>	<PATH>

Permission events (FAN_OPEN_PERM, FAN_ACCESS_PERM, FAN_OPEN_EXEC_PERM) block the
process that triggered them until a decision is written to the control input:
    ALLOW <FD>
    DENY <FD>`,
	Example:       "  fanmon -e FAN_OPEN,FAN_MODIFY /tmp/watched\n  fanmon -r -e FAN_OPEN_PERM /srv",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions(cmd, args)
		if err != nil {
			return fmt.Errorf("argument validation: %w", err)
		}

		setupLogging(opts.Debug)
		return run(cmd.Context(), opts)
	},
}

// Execute runs the root command until SIGINT/SIGTERM or a fatal error.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func loadOptions(cmd *cobra.Command, args []string) (*conf.Options, error) {
	opts := conf.Default()
	if flagConfig != "" {
		var err error
		opts, err = conf.Load(flagConfig)
		if err != nil {
			return nil, err
		}
	}

	// flags override the file only when given
	changed := cmd.Flags().Changed
	if changed("events") {
		opts.Events = flagEvents
	}
	if changed("process") {
		opts.Namespace = flagNamespace
	}
	if changed("recursive") {
		opts.Recursive = flagRecursive
	}
	if changed("mount") {
		opts.Mount = flagMount
	}
	if changed("filesystem") {
		opts.Filesystem = flagFilesystem
	}
	if changed("control") {
		opts.Control = flagControl
	}
	if changed("pending-limit") {
		opts.PendingLimit = flagPendingLimit
	}
	if changed("overflow-response") {
		opts.OverflowResponse = flagOverflow
	}
	if changed("filtered-response") {
		opts.FilteredResponse = flagFiltered
	}
	if changed("eof-response") {
		opts.EOFResponse = flagEOF
	}
	if flagDebug || conf.Debug() {
		opts.Debug = true
	}
	if len(args) > 0 {
		opts.Paths = args
	}

	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Canonicalize(); err != nil {
		return nil, err
	}
	return opts, nil
}

func setupLogging(debug bool) {
	logrus.SetOutput(os.Stderr)
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "01-02 15:04:05",
		})
	}
}
