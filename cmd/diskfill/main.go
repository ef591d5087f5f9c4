// diskfill fills a directory with deterministic pseudo-random files, then
// reads them back and compares against the regenerated stream to detect
// silent data corruption.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jotfs/diskfill/internal/log"
	"github.com/jotfs/diskfill/internal/runner"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
)

// Build flags
var (
	Version   string
	BuildDate string
	CommitID  string
)

const (
	defaultFileSizeMiB = 1024
	defaultLogLevel    = "info"
)

type config struct {
	Seed        uint64
	FileSizeMiB uint64
	FileLimit   uint64
	ReadOnly    bool
	UnlinkAfter bool
	UnlinkImm   bool
	SkipVerify  bool
	Repeat      uint
	Jobs        uint
	Dir         string
	LogLevel    string
}

// profile is an optional TOML file supplying defaults for the flags above.
// Explicit command line flags always win.
type profile struct {
	Seed        *uint64 `toml:"seed"`
	FileSizeMiB *uint64 `toml:"file_size_mib"`
	Files       *uint64 `toml:"files"`
	ReadOnly    *bool   `toml:"read_only"`
	UnlinkAfter *bool   `toml:"unlink_after"`
	UnlinkImm   *bool   `toml:"unlink_immediate"`
	SkipVerify  *bool   `toml:"skip_verify"`
	Repeat      *uint   `toml:"repeat"`
	Jobs        *uint   `toml:"jobs"`
	Dir         *string `toml:"dir"`
	LogLevel    *string `toml:"log_level"`
}

func (c config) validate() error {
	if c.FileSizeMiB == 0 {
		return fmt.Errorf("-size must be greater than zero")
	}
	if c.Repeat == 0 {
		return fmt.Errorf("-repeat must be at least 1")
	}
	if c.Jobs == 0 {
		return fmt.Errorf("-jobs must be at least 1")
	}
	if c.Jobs > 1 {
		if c.FileLimit == 0 {
			return fmt.Errorf("-jobs above 1 requires an explicit -files limit")
		}
		if c.UnlinkImm {
			return fmt.Errorf("-jobs above 1 cannot be combined with -U")
		}
		if c.ReadOnly {
			return fmt.Errorf("-jobs above 1 cannot be combined with -r")
		}
	}
	if c.ReadOnly && c.UnlinkImm {
		return fmt.Errorf("-r cannot be combined with -U: no handles exist to verify")
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
		break
	default:
		return fmt.Errorf("invalid -log_level %q. Must be one of: debug, info, warn, error", c.LogLevel)
	}
	return nil
}

func getLoggerLevel(s string) zerolog.Level {
	switch s {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// applyProfile fills in any config field the user did not set on the command
// line from the profile file.
func applyProfile(cfg *config, p profile, set map[string]bool) {
	if p.Seed != nil && !set["s"] {
		cfg.Seed = *p.Seed
		set["s"] = true
	}
	if p.FileSizeMiB != nil && !set["size"] {
		cfg.FileSizeMiB = *p.FileSizeMiB
		set["size"] = true
	}
	if p.Files != nil && !set["files"] {
		cfg.FileLimit = *p.Files
		set["files"] = true
	}
	if p.ReadOnly != nil && !set["r"] {
		cfg.ReadOnly = *p.ReadOnly
	}
	if p.UnlinkAfter != nil && !set["u"] {
		cfg.UnlinkAfter = *p.UnlinkAfter
	}
	if p.UnlinkImm != nil && !set["U"] {
		cfg.UnlinkImm = *p.UnlinkImm
	}
	if p.SkipVerify != nil && !set["skip-verify"] {
		cfg.SkipVerify = *p.SkipVerify
	}
	if p.Repeat != nil && !set["repeat"] {
		cfg.Repeat = *p.Repeat
	}
	if p.Jobs != nil && !set["jobs"] {
		cfg.Jobs = *p.Jobs
	}
	if p.Dir != nil && !set["C"] {
		cfg.Dir = *p.Dir
	}
	if p.LogLevel != nil && !set["log_level"] {
		cfg.LogLevel = *p.LogLevel
	}
}

// applyManifest fills read-only defaults from a previous run's manifest.
// Explicitly set flags are left alone, except that a -files value naming the
// same count as the manifest still picks up the recorded size of a short
// final file.
func applyManifest(rcfg *runner.Config, m *runner.Manifest, set map[string]bool) {
	if m == nil {
		return
	}
	if !set["s"] {
		rcfg.Seed = m.Seed
		set["s"] = true
	}
	if !set["size"] {
		rcfg.FileSizeMiB = m.FileSizeMiB
	}
	if !set["files"] {
		rcfg.FileLimit = m.Files
		rcfg.LastSize = m.LastSize
	} else if rcfg.FileLimit == m.Files {
		rcfg.LastSize = m.LastSize
	}
}

func run() error {
	var cfg config
	flag.Uint64Var(&cfg.Seed, "s", 0, "base seed for the random stream (default: current time)")
	flag.Uint64Var(&cfg.FileSizeMiB, "size", defaultFileSizeMiB, "size of each file in MiB")
	flag.Uint64Var(&cfg.FileLimit, "files", 0, "number of files to write (default: fill the disk)")
	flag.BoolVar(&cfg.ReadOnly, "r", false, "only verify existing data files with the given seed")
	flag.BoolVar(&cfg.UnlinkAfter, "u", false, "remove files after a successful run")
	flag.BoolVar(&cfg.UnlinkImm, "U", false, "immediately remove files; write and verify via open handles")
	flag.BoolVar(&cfg.SkipVerify, "skip-verify", false, "write only, skip the verification pass")
	flag.UintVar(&cfg.Repeat, "repeat", 1, "number of full write/verify cycles")
	flag.UintVar(&cfg.Jobs, "jobs", 1, "number of concurrent fill workers (requires -files)")
	flag.StringVar(&cfg.Dir, "C", "", "change into the given directory before starting work")
	flag.StringVar(&cfg.LogLevel, "log_level", defaultLogLevel, "logging level")

	var configFile string
	var debug bool
	var version bool
	flag.StringVar(&configFile, "config", "", "path to a TOML profile supplying flag defaults")
	flag.BoolVar(&debug, "debug", false, "enable debug output")
	flag.BoolVar(&version, "version", false, "output version info and exit")

	flag.Parse()

	if version {
		format := "%-10s:  %s\n"
		fmt.Printf(format, "Version", Version)
		fmt.Printf(format, "Build date", BuildDate)
		fmt.Printf(format, "Commit ID", CommitID)
		return nil
	}
	if flag.NArg() > 0 {
		return fmt.Errorf("unexpected argument %q", flag.Arg(0))
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if configFile != "" {
		var p profile
		if _, err := toml.DecodeFile(configFile, &p); err != nil {
			return fmt.Errorf("reading config %s: %v", configFile, err)
		}
		applyProfile(&cfg, p, set)
	}

	if err := cfg.validate(); err != nil {
		return err
	}

	// Configure the logger
	var logger zerolog.Logger
	if debug {
		logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger().Level(zerolog.DebugLevel)
	} else {
		logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger().Level(getLoggerLevel(cfg.LogLevel))
	}
	log.SetLogger(logger)

	if cfg.Dir != "" {
		if err := os.Chdir(cfg.Dir); err != nil {
			return fmt.Errorf("changing into directory %s: %v", cfg.Dir, err)
		}
	}

	rcfg := runner.Config{
		Seed:            cfg.Seed,
		FileSizeMiB:     cfg.FileSizeMiB,
		FileLimit:       cfg.FileLimit,
		LastSize:        -1,
		ReadOnly:        cfg.ReadOnly,
		UnlinkImmediate: cfg.UnlinkImm,
		UnlinkAfter:     cfg.UnlinkAfter,
		SkipVerify:      cfg.SkipVerify,
		Repeat:          cfg.Repeat,
		Jobs:            cfg.Jobs,
		Dir:             ".",
	}

	if cfg.ReadOnly {
		// A manifest left by a previous fill supplies anything not given
		// explicitly, including the size of a short final file.
		m, err := runner.LoadManifest(".")
		if err != nil {
			return fmt.Errorf("reading run manifest: %v", err)
		}
		applyManifest(&rcfg, m, set)
	}

	if !set["s"] {
		rcfg.Seed = uint64(time.Now().Unix())
	}

	r := runner.New(rcfg)
	r.SetLogger(logger)
	return r.Run(context.Background())
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(0)
}
