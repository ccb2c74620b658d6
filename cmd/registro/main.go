// Command registro is a personal ledger: it records signed transactions
// against a category tree and reports balances and totals over it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"registro/internal/amqp"
	"registro/internal/backend"
	"registro/internal/cli"
	"registro/internal/config"
	"registro/internal/core"
	apphttp "registro/internal/http"
	"registro/internal/ledger"
	"registro/internal/services"
)

const (
	exitOK      = 0
	exitUsage   = 1
	exitStorage = 2
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	if len(os.Args) < 2 {
		usage()
		os.Exit(exitUsage)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "add":
		os.Exit(runAdd(logger, args))
	case "list":
		os.Exit(runList(logger, args))
	case "balance":
		os.Exit(runBalance(logger, args))
	case "report":
		os.Exit(runReport(logger, args))
	case "categories":
		os.Exit(runCategories(logger, args))
	case "accounts":
		os.Exit(runAccounts(logger, args))
	case "serve":
		os.Exit(runServe(logger, args))
	case "help", "-h", "--help":
		usage()
		os.Exit(exitOK)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		usage()
		os.Exit(exitUsage)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: registro <command> [flags]

Commands:
  add         record a transaction
  list        list transactions
  balance     show the balance as of a date
  report      category, summary, daily, trend or month-over-month totals
  categories  manage the category tree
  accounts    manage accounts
  serve       run the JSON API server
`)
}

// openService loads config, opens the snapshot store and, when AMQP is
// configured, the event publisher.
func openService(ctx context.Context, logger *slog.Logger) (*services.LedgerService, *config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errBadConfig, err)
	}

	store, err := backend.Open(ctx, logger, cli.BackendConfig(cfg))
	if err != nil {
		return nil, nil, err
	}

	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("connect amqp: %w", err)
		}
		events = client
	}

	svc, err := services.NewLedgerService(ctx, store, events)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	// First run: an empty ledger gets the starter categories.
	if err := svc.EnsureDefaultCategories(ctx); err != nil {
		_ = svc.Close()
		return nil, nil, err
	}
	return svc, cfg, nil
}

var errBadConfig = errors.New("invalid configuration")

// exitFor maps an error onto the process exit code: domain rejections
// and bad configuration are usage errors, anything else is a storage or
// IO failure.
func exitFor(err error) int {
	if err == nil {
		return exitOK
	}
	domain := []error{
		errBadConfig,
		core.ErrInvalidAmount, core.ErrInvalidDate, core.ErrInvalidKind,
		core.ErrInvalidAccountType, core.ErrEmptyName, core.ErrNoteTooLong,
		core.ErrUnknownCategory, core.ErrUnknownAccount, core.ErrUnknownTransaction,
		core.ErrDuplicateName, core.ErrCategoryInUse, core.ErrAccountInUse,
		core.ErrCycleDetected, core.ErrKindMismatch,
	}
	for _, d := range domain {
		if errors.Is(err, d) {
			return exitUsage
		}
	}
	return exitStorage
}

func fail(err error) int {
	fmt.Fprintln(os.Stderr, "error:", err)
	return exitFor(err)
}

func runAdd(logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	date := fs.String("date", time.Now().Format("2006-01-02"), "transaction date (YYYY-MM-DD)")
	amount := fs.String("amount", "", "signed decimal amount, e.g. -42,00")
	categoryID := fs.Int64("category", 0, "category id")
	accountID := fs.Int64("account", 0, "account id (optional)")
	note := fs.String("note", "", "free-text note")
	_ = fs.Parse(args)

	if *amount == "" || *categoryID == 0 {
		fs.Usage()
		return exitUsage
	}

	d, err := core.ParseDate(*date)
	if err != nil {
		return fail(err)
	}
	cents, err := core.ParseSignedCents(*amount)
	if err != nil {
		return fail(err)
	}

	ctx := context.Background()
	svc, _, err := openService(ctx, logger)
	if err != nil {
		return fail(err)
	}
	defer svc.Close()

	tx, err := svc.RecordTransaction(ctx, d, cents, *categoryID, *accountID, *note)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("recorded #%d  %s  %s\n", tx.ID, tx.Date, core.FormatCents(tx.Amount.Cents))
	return exitOK
}

func runList(logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	from := fs.String("from", "", "start date (YYYY-MM-DD)")
	to := fs.String("to", "", "end date (YYYY-MM-DD)")
	categoryID := fs.Int64("category", 0, "filter by category id")
	accountID := fs.Int64("account", 0, "filter by account id")
	deleted := fs.Bool("deleted", false, "include soft-deleted entries")
	_ = fs.Parse(args)

	var f ledger.Filter
	var err error
	if *from != "" {
		if f.From, err = core.ParseDate(*from); err != nil {
			return fail(err)
		}
	}
	if *to != "" {
		if f.To, err = core.ParseDate(*to); err != nil {
			return fail(err)
		}
	}
	f.CategoryID = *categoryID
	f.AccountID = *accountID
	f.IncludeDeleted = *deleted

	ctx := context.Background()
	svc, _, err := openService(ctx, logger)
	if err != nil {
		return fail(err)
	}
	defer svc.Close()

	cats := make(map[int64]string)
	for _, c := range svc.ListCategories() {
		cats[c.ID] = c.Name
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tAMOUNT\tCATEGORY\tNOTE")
	for _, t := range svc.ListTransactions(f) {
		name := cats[t.CategoryID]
		suffix := ""
		if t.Deleted {
			suffix = " (deleted)"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s%s\n",
			t.ID, t.Date, core.FormatCents(t.Amount.Cents), name, t.Note, suffix)
	}
	w.Flush()
	return exitOK
}

func runBalance(logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	asOf := fs.String("asof", time.Now().Format("2006-01-02"), "balance as of date (YYYY-MM-DD)")
	_ = fs.Parse(args)

	d, err := core.ParseDate(*asOf)
	if err != nil {
		return fail(err)
	}

	ctx := context.Background()
	svc, _, err := openService(ctx, logger)
	if err != nil {
		return fail(err)
	}
	defer svc.Close()

	fmt.Printf("balance as of %s: %s\n", d, core.FormatCents(svc.BalanceAsOf(d)))
	return exitOK
}

func runReport(logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	kind := fs.String("type", "categories", "report type: categories, summary, daily, trend or month-over-month")
	granularity := fs.String("granularity", "day", "trend bucket size: day, week, month or year")
	year := fs.Int("year", 0, "calendar year")
	month := fs.Int("month", 0, "calendar month (1-12, requires -year)")
	from := fs.String("from", "", "start date (YYYY-MM-DD)")
	to := fs.String("to", "", "end date (YYYY-MM-DD)")
	lastMonths := fs.Int("last-months", 0, "the n full months before the current one")
	_ = fs.Parse(args)

	fromDate, toDate, err := reportRange(*year, *month, *from, *to, *lastMonths)
	if err != nil {
		return fail(err)
	}

	ctx := context.Background()
	svc, _, err := openService(ctx, logger)
	if err != nil {
		return fail(err)
	}
	defer svc.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	switch *kind {
	case "categories":
		fmt.Fprintf(w, "category totals %s .. %s\n", fromDate, toDate)
		for _, ct := range svc.CategoryReport(fromDate, toDate) {
			fmt.Fprintf(w, "%s\t%s\n", ct.Name, core.FormatCents(ct.Cents))
		}
	case "summary":
		s := svc.Summarize(fromDate, toDate)
		fmt.Fprintf(w, "period %s .. %s\n", fromDate, toDate)
		fmt.Fprintf(w, "income\t%s\n", core.FormatCents(s.IncomeCents))
		fmt.Fprintf(w, "expense\t%s\n", core.FormatCents(s.ExpenseCents))
		fmt.Fprintf(w, "net\t%s\n", core.FormatCents(s.NetCents()))
	case "daily":
		fmt.Fprintln(w, "DATE\tINCOME\tEXPENSE")
		for _, d := range svc.DailyTotals(fromDate, toDate) {
			fmt.Fprintf(w, "%s\t%s\t%s\n",
				d.Date, core.FormatCents(d.IncomeCents), core.FormatCents(d.ExpenseCents))
		}
	case "trend":
		g := ledger.Granularity(*granularity)
		if !g.Valid() {
			fmt.Fprintf(os.Stderr, "invalid granularity: %s (use day, week, month or year)\n", *granularity)
			return exitUsage
		}
		fmt.Fprintln(w, "PERIOD\tINCOME\tEXPENSE")
		for _, b := range svc.TrendTotals(fromDate, toDate, g) {
			fmt.Fprintf(w, "%s\t%s\t%s\n",
				b.Label, core.FormatCents(b.IncomeCents), core.FormatCents(b.ExpenseCents))
		}
	case "month-over-month":
		m := svc.MonthOverMonth(time.Now())
		fmt.Fprintln(w, "\tCURRENT\tPREVIOUS\tCHANGE\tCHANGE %")
		fmt.Fprintf(w, "income\t%s\t%s\t%s\t%+.1f%%\n",
			core.FormatCents(m.Current.IncomeCents), core.FormatCents(m.Previous.IncomeCents),
			core.FormatCents(m.IncomeChangeCents), m.IncomeChangePct)
		fmt.Fprintf(w, "expense\t%s\t%s\t%s\t%+.1f%%\n",
			core.FormatCents(m.Current.ExpenseCents), core.FormatCents(m.Previous.ExpenseCents),
			core.FormatCents(m.ExpenseChangeCents), m.ExpenseChangePct)
	default:
		fmt.Fprintf(os.Stderr, "unknown report type: %s\n", *kind)
		return exitUsage
	}
	return exitOK
}

// reportRange resolves the period flags, defaulting to the current month.
func reportRange(year, month int, from, to string, lastMonths int) (core.Date, core.Date, error) {
	switch {
	case from != "" || to != "":
		if from == "" || to == "" {
			return core.Date{}, core.Date{}, fmt.Errorf("%w: -from and -to must be given together", core.ErrInvalidDate)
		}
		fromDate, err := core.ParseDate(from)
		if err != nil {
			return core.Date{}, core.Date{}, err
		}
		toDate, err := core.ParseDate(to)
		if err != nil {
			return core.Date{}, core.Date{}, err
		}
		return fromDate, toDate, nil
	case lastMonths > 0:
		fromDate, toDate := ledger.LastFullMonthsRange(time.Now(), lastMonths)
		return fromDate, toDate, nil
	case year != 0 && month != 0:
		fromDate, toDate := ledger.MonthRange(year, month)
		return fromDate, toDate, nil
	case year != 0:
		fromDate, toDate := ledger.YearRange(year)
		return fromDate, toDate, nil
	default:
		now := time.Now()
		fromDate, toDate := ledger.MonthRange(now.Year(), int(now.Month()))
		return fromDate, toDate, nil
	}
}

func runCategories(logger *slog.Logger, args []string) int {
	verb := "list"
	if len(args) > 0 {
		verb, args = args[0], args[1:]
	}

	ctx := context.Background()
	svc, _, err := openService(ctx, logger)
	if err != nil {
		return fail(err)
	}
	defer svc.Close()

	switch verb {
	case "list":
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tNAME\tPARENT")
		for _, c := range svc.ListCategories() {
			parent := ""
			if c.ParentID != 0 {
				parent = fmt.Sprintf("%d", c.ParentID)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", c.ID, c.Kind, c.Name, parent)
		}
		w.Flush()
		return exitOK
	case "add":
		fs := flag.NewFlagSet("categories add", flag.ExitOnError)
		name := fs.String("name", "", "category name")
		kind := fs.String("kind", "expense", "income or expense")
		parent := fs.Int64("parent", 0, "parent category id (0 for root)")
		_ = fs.Parse(args)
		c, err := svc.CreateCategory(ctx, *name, core.Kind(*kind), *parent)
		if err != nil {
			return fail(err)
		}
		fmt.Printf("created category #%d %s\n", c.ID, c.Name)
		return exitOK
	case "rename":
		fs := flag.NewFlagSet("categories rename", flag.ExitOnError)
		id := fs.Int64("id", 0, "category id")
		name := fs.String("name", "", "new name")
		_ = fs.Parse(args)
		if _, err := svc.RenameCategory(ctx, *id, *name); err != nil {
			return fail(err)
		}
		return exitOK
	case "reparent":
		fs := flag.NewFlagSet("categories reparent", flag.ExitOnError)
		id := fs.Int64("id", 0, "category id")
		parent := fs.Int64("parent", 0, "new parent id (0 for root)")
		_ = fs.Parse(args)
		if _, err := svc.ReparentCategory(ctx, *id, *parent); err != nil {
			return fail(err)
		}
		return exitOK
	case "delete":
		fs := flag.NewFlagSet("categories delete", flag.ExitOnError)
		id := fs.Int64("id", 0, "category id")
		_ = fs.Parse(args)
		if err := svc.DeleteCategory(ctx, *id); err != nil {
			return fail(err)
		}
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "unknown categories verb: %s (use list, add, rename, reparent, delete)\n", verb)
		return exitUsage
	}
}

func runAccounts(logger *slog.Logger, args []string) int {
	verb := "list"
	if len(args) > 0 {
		verb, args = args[0], args[1:]
	}

	ctx := context.Background()
	svc, _, err := openService(ctx, logger)
	if err != nil {
		return fail(err)
	}
	defer svc.Close()

	switch verb {
	case "list":
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tNAME")
		for _, a := range svc.ListAccounts() {
			fmt.Fprintf(w, "%d\t%s\t%s\n", a.ID, a.Type, a.Name)
		}
		w.Flush()
		return exitOK
	case "add":
		fs := flag.NewFlagSet("accounts add", flag.ExitOnError)
		name := fs.String("name", "", "account name")
		typ := fs.String("type", "cash", "cash, debit, credit or other")
		_ = fs.Parse(args)
		a, err := svc.CreateAccount(ctx, *name, core.AccountType(*typ))
		if err != nil {
			return fail(err)
		}
		fmt.Printf("created account #%d %s\n", a.ID, a.Name)
		return exitOK
	case "rename":
		fs := flag.NewFlagSet("accounts rename", flag.ExitOnError)
		id := fs.Int64("id", 0, "account id")
		name := fs.String("name", "", "new name")
		_ = fs.Parse(args)
		if _, err := svc.RenameAccount(ctx, *id, *name); err != nil {
			return fail(err)
		}
		return exitOK
	case "delete":
		fs := flag.NewFlagSet("accounts delete", flag.ExitOnError)
		id := fs.Int64("id", 0, "account id")
		_ = fs.Parse(args)
		if err := svc.DeleteAccount(ctx, *id); err != nil {
			return fail(err)
		}
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "unknown accounts verb: %s (use list, add, rename, delete)\n", verb)
		return exitUsage
	}
}

func runServe(logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	_ = fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, cfg, err := openService(ctx, logger)
	if err != nil {
		return fail(err)
	}
	defer svc.Close()

	srv := apphttp.NewServer(":"+cfg.Port, svc)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	logger.Info("Starting registro server", "port", cfg.Port, "backend", cfg.DataBackend)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		return exitStorage
	}
	logger.Info("Server stopped gracefully")
	return exitOK
}
