package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"
)

type config struct {
	dbPath    string
	addr      string
	adminUser string
	logPath   string
	loanDays  int
	debug     bool
}

const usage = `Usage: knjiznica [flags]

Flags:
  -d, -db <path>          SQLite database path (default: knjiznica.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -u, -user <name>        admin username on first run (default: admin)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
      -loan-days <n>      loan period when a borrow omits due_date, 0 to require it (default: 14)
      -debug              log at DEBUG level
  -h, -help               show this help and exit

Every flag can also be set through the environment: KNJIZNICA_DB,
KNJIZNICA_ADDR, KNJIZNICA_USER, KNJIZNICA_LOG, KNJIZNICA_LOAN_DAYS and
KNJIZNICA_DEBUG. Flags win over the environment.
`

// parseConfig reads flags from args, falling back to getenv and then to the
// built-in defaults.
func parseConfig(args []string, getenv func(string) string, out io.Writer) (*config, error) {
	loanDays, err := envInt(getenv, "KNJIZNICA_LOAN_DAYS", 14)
	if err != nil {
		return nil, err
	}
	debug, err := envBool(getenv, "KNJIZNICA_DEBUG")
	if err != nil {
		return nil, err
	}

	cfg := &config{}
	fs := flag.NewFlagSet("knjiznica", flag.ContinueOnError)
	fs.SetOutput(out)

	dbDefault := envString(getenv, "KNJIZNICA_DB", "knjiznica.sqlite3")
	fs.StringVar(&cfg.dbPath, "db", dbDefault, "")
	fs.StringVar(&cfg.dbPath, "d", dbDefault, "")

	addrDefault := envString(getenv, "KNJIZNICA_ADDR", ":8080")
	fs.StringVar(&cfg.addr, "addr", addrDefault, "")
	fs.StringVar(&cfg.addr, "a", addrDefault, "")

	userDefault := envString(getenv, "KNJIZNICA_USER", "admin")
	fs.StringVar(&cfg.adminUser, "user", userDefault, "")
	fs.StringVar(&cfg.adminUser, "u", userDefault, "")

	logDefault := envString(getenv, "KNJIZNICA_LOG", "")
	fs.StringVar(&cfg.logPath, "log", logDefault, "")
	fs.StringVar(&cfg.logPath, "l", logDefault, "")

	fs.IntVar(&cfg.loanDays, "loan-days", loanDays, "")
	fs.BoolVar(&cfg.debug, "debug", debug, "")

	fs.Usage = func() { fmt.Fprint(out, usage) }

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	if cfg.loanDays < 0 {
		return nil, fmt.Errorf("loan-days must not be negative, got %d", cfg.loanDays)
	}
	return cfg, nil
}

func (c *config) logLevel() slog.Level {
	if c.debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func envString(getenv func(string) string, key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(getenv func(string) string, key string, def int) (int, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envBool(getenv func(string) string, key string) (bool, error) {
	v := getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
