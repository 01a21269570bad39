package base

import (
	"bytes"
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"sync"
	"syscall"

	"github.com/hashicorp/tde/internal/cmd/config"
	"github.com/hashicorp/tde/internal/keyring"
	"github.com/hashicorp/tde/internal/kms"
	"github.com/hashicorp/tde/internal/types/scope"
	"github.com/hashicorp/tde/internal/wal"
	"github.com/mitchellh/cli"
	"github.com/posener/complete"
)

const (
	// maxLineLength is the maximum width of any line.
	maxLineLength int = 78
)

// reRemoveWhitespace is a regular expression for stripping whitespace from
// a string.
var reRemoveWhitespace = regexp.MustCompile(`[\s]+`)

// Command exit codes.
const (
	CommandSuccess int = iota
	CommandKmsError
	CommandCliError
	CommandUserError
)

type Command struct {
	Context    context.Context
	UI         cli.Ui
	ShutdownCh chan struct{}

	flags     *FlagSets
	flagsOnce sync.Once

	flagDataDir      string
	flagConfig       string
	flagFormat       string
	flagFilter       string
	flagDatabaseId   uint32
	flagTablespaceId uint32

	config     *config.Config
	configOnce sync.Once
	configErr  error
}

// NewCommand returns a new instance of a base.Command type. The Context on
// the returned command is canceled when the shutdown channel fires.
func NewCommand(ui cli.Ui) *Command {
	ctx, cancel := context.WithCancel(context.Background())
	ret := &Command{
		UI:         ui,
		ShutdownCh: MakeShutdownCh(),
		Context:    ctx,
	}

	go func() {
		<-ret.ShutdownCh
		cancel()
	}()

	return ret
}

// MakeShutdownCh returns a channel that can be used for shutdown
// notifications for commands. This channel will send a message for every
// SIGINT or SIGTERM received.
func MakeShutdownCh() chan struct{} {
	resultCh := make(chan struct{})

	shutdownCh := make(chan os.Signal, 4)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-shutdownCh
		close(resultCh)
	}()
	return resultCh
}

// Config returns the parsed configuration file, if -config was given. The
// file is read once; later calls return the same result.
func (c *Command) Config() (*config.Config, error) {
	c.configOnce.Do(func() {
		if c.flagConfig == "" {
			return
		}
		cfg, err := config.LoadFile(c.flagConfig)
		if err != nil {
			c.configErr = fmt.Errorf("Error parsing configuration file: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// DataDir resolves the directory holding the key state from the -data-dir
// flag (or its environment variable) or the configuration file, in that
// order.
func (c *Command) DataDir() (string, error) {
	cfg, err := c.Config()
	if err != nil {
		return "", err
	}
	switch {
	case c.flagDataDir != "":
		return c.flagDataDir, nil
	case cfg != nil && cfg.DataDir != "":
		return cfg.DataDir, nil
	}
	return "", stderrors.New("Data directory must be provided via -" + FlagNameDataDir +
		", " + EnvTdeDataDir + " or the configuration file")
}

// Scope returns the scope addressed by the scope flags. The tablespace id
// defaults to the cluster default tablespace; the reserved pair 1664/1664
// addresses the cluster WAL key.
func (c *Command) Scope() (scope.Scope, error) {
	if c.flagDatabaseId == 0 {
		return scope.Scope{}, stderrors.New("Database ID must be provided via -" + FlagNameDatabaseId)
	}
	return scope.New(c.flagDatabaseId, c.flagTablespaceId), nil
}

// Filter builds the item filter from the -filter flag. Without the flag the
// returned filter matches everything.
func (c *Command) Filter() (*Filter, error) {
	return NewFilter(c.flagFilter)
}

// Kms opens the key state in the resolved data directory and builds the key
// management runtime over it. The returned cleanup func destroys cached key
// material and closes the write-ahead log appender; callers must run it
// before exit.
func (c *Command) Kms(ctx context.Context) (*kms.Kms, func() error, error) {
	dir, err := c.DataDir()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := c.Config()
	if err != nil {
		return nil, nil, err
	}

	a, err := wal.NewSegmentAppender(ctx, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("Error opening write-ahead log in %q: %w", dir, err)
	}
	r, err := keyring.NewRegistry(ctx, dir, a)
	if err != nil {
		_ = a.Close()
		return nil, nil, fmt.Errorf("Error opening key provider registry in %q: %w", dir, err)
	}
	s, err := kms.NewStore(ctx, dir, a)
	if err != nil {
		_ = a.Close()
		return nil, nil, fmt.Errorf("Error opening principal key store in %q: %w", dir, err)
	}

	// Memory locking is only attempted when a configuration file is in
	// play; ad hoc invocations without one would fail on unprivileged
	// accounts.
	var opt []kms.Option
	if cfg != nil && !cfg.DisableMlock {
		opt = append(opt, kms.WithLockMemory(true))
	}

	k, err := kms.New(ctx, r, s, opt...)
	if err != nil {
		_ = a.Close()
		return nil, nil, err
	}

	cleanup := func() error {
		k.Shutdown(ctx)
		return a.Close()
	}
	return k, cleanup, nil
}

type FlagSetBit uint

const (
	FlagSetNone FlagSetBit = 1 << iota
	FlagSetStore
	FlagSetScope
	FlagSetOutputFormat
	FlagSetListFilter
)

// FlagSet creates the flags for this command. The result is cached on the
// command to save performance on future calls.
func (c *Command) FlagSet(bit FlagSetBit) *FlagSets {
	c.flagsOnce.Do(func() {
		set := NewFlagSets()

		// These flag sets will apply to all leaf subcommands.
		bit = bit | FlagSetStore

		if bit&FlagSetStore != 0 {
			f := set.NewFlagSet("Store Options")

			f.StringVar(&StringVar{
				Name:       FlagNameDataDir,
				Target:     &c.flagDataDir,
				EnvVar:     EnvTdeDataDir,
				Completion: complete.PredictDirs("*"),
				Usage: "Directory holding the key provider registry, the principal key " +
					"descriptors and the write-ahead log.",
			})

			f.StringVar(&StringVar{
				Name:   FlagNameConfig,
				Target: &c.flagConfig,
				Completion: complete.PredictOr(
					complete.PredictFiles("*.hcl"),
					complete.PredictFiles("*.json"),
				),
				Usage: "Path to the configuration file.",
			})
		}

		if bit&FlagSetScope != 0 {
			f := set.NewFlagSet("Scope Options")

			f.Uint32Var(&Uint32Var{
				Name:   FlagNameDatabaseId,
				Target: &c.flagDatabaseId,
				Usage: "Database id of the scope to operate on. The reserved pair " +
					"1664/1664 addresses the cluster WAL key.",
			})

			f.Uint32Var(&Uint32Var{
				Name:    FlagNameTablespaceId,
				Target:  &c.flagTablespaceId,
				Default: scope.DefaultTablespaceId,
				Usage:   "Tablespace id of the scope to operate on.",
			})
		}

		if bit&FlagSetListFilter != 0 {
			f := set.NewFlagSet("Filter Options")

			f.StringVar(&StringVar{
				Name:   FlagNameFilter,
				Target: &c.flagFilter,
				Usage: "If set, the list operation will be filtered before " +
					"being returned. The filter operates against each item in " +
					"the list. Using single quotes is recommended as filters " +
					"contain double quotes.",
			})
		}

		if bit&FlagSetOutputFormat != 0 {
			f := set.NewFlagSet("Output Options")

			f.StringVar(&StringVar{
				Name:       "format",
				Target:     &c.flagFormat,
				Default:    "table",
				EnvVar:     EnvTdeCLIFormat,
				Completion: complete.PredictSet("table", "json"),
				Usage: "Print the output in the given format. Valid formats " +
					"are \"table\" or \"json\".",
			})
		}

		c.flags = set
	})

	return c.flags
}

// FlagSets is a group of flag sets.
type FlagSets struct {
	flagSets    []*FlagSet
	mainSet     *flag.FlagSet
	hiddens     map[string]struct{}
	completions complete.Flags
}

// NewFlagSets creates a new flag sets.
func NewFlagSets() *FlagSets {
	mainSet := flag.NewFlagSet("", flag.ContinueOnError)

	// Errors and usage are controlled by the CLI.
	mainSet.Usage = func() {}
	mainSet.SetOutput(io.Discard)

	return &FlagSets{
		flagSets:    make([]*FlagSet, 0, 6),
		mainSet:     mainSet,
		hiddens:     make(map[string]struct{}),
		completions: complete.Flags{},
	}
}

// NewFlagSet creates a new flag set from the given flag sets.
func (f *FlagSets) NewFlagSet(name string) *FlagSet {
	flagSet := NewFlagSet(name)
	flagSet.mainSet = f.mainSet
	flagSet.completions = f.completions
	f.flagSets = append(f.flagSets, flagSet)
	return flagSet
}

// Completions returns the completions for this flag set.
func (f *FlagSets) Completions() complete.Flags {
	return f.completions
}

// Parse parses the given flags, returning any errors.
func (f *FlagSets) Parse(args []string) error {
	return f.mainSet.Parse(args)
}

// Parsed reports whether the command-line flags have been parsed.
func (f *FlagSets) Parsed() bool {
	return f.mainSet.Parsed()
}

// Args returns the remaining args after parsing.
func (f *FlagSets) Args() []string {
	return f.mainSet.Args()
}

// Visit visits the flags in lexicographical order, calling fn for each. It
// visits only those flags that have been set.
func (f *FlagSets) Visit(fn func(*flag.Flag)) {
	f.mainSet.Visit(fn)
}

// Help builds custom help for this command, grouping by flag set.
func (fs *FlagSets) Help() string {
	var out bytes.Buffer

	for _, set := range fs.flagSets {
		printFlagTitle(&out, set.name+":")
		set.VisitAll(func(f *flag.Flag) {
			// Skip any hidden flags
			if v, ok := f.Value.(FlagVisibility); ok && v.Hidden() {
				return
			}
			printFlagDetail(&out, f)
		})
	}

	return strings.TrimRight(out.String(), "\n")
}

// FlagSet is a grouped wrapper around a real flag set and a grouped flag set.
type FlagSet struct {
	name        string
	flagSet     *flag.FlagSet
	mainSet     *flag.FlagSet
	completions complete.Flags
}

// NewFlagSet creates a new flag set.
func NewFlagSet(name string) *FlagSet {
	return &FlagSet{
		name:    name,
		flagSet: flag.NewFlagSet(name, flag.ContinueOnError),
	}
}

// Name returns the name of this flag set.
func (f *FlagSet) Name() string {
	return f.name
}

func (f *FlagSet) Visit(fn func(*flag.Flag)) {
	f.flagSet.Visit(fn)
}

func (f *FlagSet) VisitAll(fn func(*flag.Flag)) {
	f.flagSet.VisitAll(fn)
}

// printFlagTitle prints a consistently-formatted title to the given writer.
func printFlagTitle(w io.Writer, s string) {
	fmt.Fprintf(w, "%s\n\n", s)
}

// printFlagDetail prints a single flag to the given writer.
func printFlagDetail(w io.Writer, f *flag.Flag) {
	// Check if the flag is hidden - do not print any flag detail or help output
	// if it is hidden.
	if h, ok := f.Value.(FlagVisibility); ok && h.Hidden() {
		return
	}

	// Check for a detailed example
	example := ""
	if t, ok := f.Value.(FlagExample); ok {
		example = t.Example()
	}

	if example != "" {
		fmt.Fprintf(w, "  -%s=<%s>\n", f.Name, example)
	} else {
		fmt.Fprintf(w, "  -%s\n", f.Name)
	}

	usage := reRemoveWhitespace.ReplaceAllString(f.Usage, " ")
	indented := WrapAtLengthWithPadding(usage, 6)
	fmt.Fprintf(w, "%s\n\n", indented)
}
