package main

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/pocket-ledger/internal/domain/insights"
	"github.com/FACorreiaa/pocket-ledger/internal/domain/notification"
	"github.com/FACorreiaa/pocket-ledger/internal/domain/quickentry"
	"github.com/FACorreiaa/pocket-ledger/internal/domain/reference"
	"github.com/FACorreiaa/pocket-ledger/internal/domain/transaction"
	"github.com/FACorreiaa/pocket-ledger/pkg/money"
	"github.com/FACorreiaa/pocket-ledger/pkg/observability"
)

type app struct {
	deps *Dependencies
	in   io.Reader
	out  io.Writer
	now  func() time.Time
}

type command func(a *app, ctx context.Context, args []string) error

var commands = map[string]command{
	"migrate":    (*app).migrate,
	"setup":      (*app).setup,
	"import":     (*app).importStatements,
	"statements": (*app).statements,
	"capture":    (*app).capture,
	"quick":      (*app).quick,
	"summary":    (*app).summary,
	"ledger":     (*app).ledger,
	"export":     (*app).export,
	"search":     (*app).search,
	"rule":       (*app).rule,
	"run":        (*app).serve,
}

func (a *app) run(ctx context.Context, name string, args []string) error {
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}
	if a.now == nil {
		a.now = time.Now
	}
	return cmd(a, ctx, args)
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func (a *app) migrate(ctx context.Context, args []string) error {
	if err := a.flags("migrate").Parse(args); err != nil {
		return err
	}
	if a.deps.DB == nil {
		fmt.Fprintln(a.out, "no database configured")
		return nil
	}
	// InitDependencies has already applied pending migrations.
	fmt.Fprintln(a.out, "schema up to date")
	return nil
}

func (a *app) setup(ctx context.Context, args []string) error {
	fs := a.flags("setup")
	profileID := fs.String("profile", "", "existing profile ID (creates one when empty)")
	profileName := fs.String("profile-name", "Personal", "name of the new profile")
	walletName := fs.String("wallet", "Main", "wallet name")
	currency := fs.String("currency", a.deps.Config.Ledger.DefaultCurrency, "wallet currency")
	sourceName := fs.String("source", "", "source name, e.g. Revolut")
	kind := fs.String("kind", reference.KindBank, "source kind: bank, card, cash or app")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sourceName == "" {
		return errors.New("--source is required")
	}

	refs := a.deps.ReferenceRepo
	profile := reference.Profile{Name: *profileName}
	if *profileID != "" {
		id, err := uuid.Parse(*profileID)
		if err != nil {
			return fmt.Errorf("invalid --profile: %w", err)
		}
		profile.ID = id
	} else if err := refs.CreateProfile(ctx, &profile); err != nil {
		return err
	}

	wallet := reference.Wallet{ProfileID: profile.ID, Name: *walletName, Currency: strings.ToUpper(*currency)}
	if err := refs.CreateWallet(ctx, &wallet); err != nil {
		return err
	}
	source := reference.Source{WalletID: wallet.ID, Name: *sourceName, Kind: *kind}
	if err := refs.CreateSource(ctx, &source); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "profile %s\nwallet  %s\nsource  %s\n", profile.ID, wallet.ID, source.ID)
	return nil
}

// target resolves --source into the profile/wallet/source triple.
func (a *app) target(ctx context.Context, source string) (transaction.Target, error) {
	if source == "" {
		return transaction.Target{}, errors.New("--source is required")
	}
	id, err := uuid.Parse(source)
	if err != nil {
		return transaction.Target{}, fmt.Errorf("invalid --source: %w", err)
	}
	lookups, err := a.deps.Lookups(ctx)
	if err != nil {
		return transaction.Target{}, err
	}
	return lookups.Target(id)
}

func (a *app) importStatements(ctx context.Context, args []string) error {
	fs := a.flags("import")
	source := fs.String("source", "", "source ID the statement belongs to")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("usage: ledger import --source ID FILE...")
	}
	target, err := a.target(ctx, *source)
	if err != nil {
		return err
	}

	for _, path := range fs.Args() {
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		res, err := a.deps.ImportService.ImportFile(ctx, raw, target)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Fprintf(a.out, "%s: %s parsed=%d inserted=%d duplicates=%d skipped=%d failed=%d\n",
			path, res.FormatLabel, res.Parsed, res.Inserted, res.Duplicates, res.Skipped, res.Failed)
		for _, e := range res.Errors {
			fmt.Fprintf(a.out, "  %s\n", e)
		}

		if a.deps.StatementArchive != nil {
			info, err := a.deps.StatementArchive.Store(ctx, target.ProfileID, path, res.FormatLabel, contentHash(raw), bytes.NewReader(raw))
			if err != nil {
				a.deps.Logger.Warn("failed to archive statement", "file", path, "error", err)
				continue
			}
			fmt.Fprintf(a.out, "  archived as %s\n", info.ID)
		}
	}
	return nil
}

// contentHash identifies a statement file by its bytes.
func contentHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func (a *app) statements(ctx context.Context, args []string) error {
	fs := a.flags("statements")
	profile := fs.String("profile", "", "profile ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if a.deps.StatementArchive == nil {
		return errors.New("statement archiving is off, set IMPORT_ARCHIVE_PATH")
	}
	profileID, err := parseProfile(*profile)
	if err != nil {
		return err
	}
	if profileID == nil {
		return errors.New("--profile is required")
	}

	list, err := a.deps.StatementArchive.List(ctx, *profileID)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, info := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d bytes\n",
			info.ID, info.ArchivedAt.In(a.deps.Location).Format(time.DateTime), info.Format, info.Name, info.Size)
	}
	return tw.Flush()
}

type captureLine struct {
	Package  string    `json:"package"`
	Text     string    `json:"text"`
	PostedAt time.Time `json:"posted_at"`
}

func (a *app) capture(ctx context.Context, args []string) error {
	fs := a.flags("capture")
	source := fs.String("source", "", "source ID captured payments are recorded against")
	pkg := fs.String("package", "", "app package, e.g. com.paypal.android.p2pmobile")
	text := fs.String("text", "", "notification text")
	posted := fs.String("posted", "", "posting time, RFC3339 (defaults to now)")
	jsonl := fs.String("jsonl", "", "file of JSON lines {package,text,posted_at}; - reads stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	target, err := a.target(ctx, *source)
	if err != nil {
		return err
	}

	if *jsonl != "" {
		r := a.in
		if *jsonl != "-" {
			f, err := os.Open(*jsonl)
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}
		return a.captureStream(ctx, r, target)
	}

	postedAt := a.now()
	if *posted != "" {
		if postedAt, err = time.Parse(time.RFC3339, *posted); err != nil {
			return fmt.Errorf("invalid --posted: %w", err)
		}
	}
	out, err := a.deps.CaptureService.Capture(ctx, notification.Event{Package: *pkg, Text: *text, PostedAt: postedAt}, target)
	if err != nil {
		return err
	}
	a.printOutcome(out)
	return nil
}

// captureStream records one event per line. Gated and malformed lines are
// reported and skipped.
func (a *app) captureStream(ctx context.Context, r io.Reader, target transaction.Target) error {
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var ev captureLine
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			fmt.Fprintf(a.out, "line %d: %v\n", n, err)
			continue
		}
		if ev.PostedAt.IsZero() {
			ev.PostedAt = a.now()
		}
		out, err := a.deps.CaptureService.Capture(ctx, notification.Event(ev), target)
		switch {
		case errors.Is(err, notification.ErrCaptureDisabled), errors.Is(err, notification.ErrAppNotAllowed):
			fmt.Fprintf(a.out, "line %d: %v\n", n, err)
		case err != nil:
			return fmt.Errorf("line %d: %w", n, err)
		default:
			a.printOutcome(out)
		}
	}
	return sc.Err()
}

func (a *app) printOutcome(out *notification.Outcome) {
	switch {
	case out.Ignored:
		fmt.Fprintln(a.out, "ignored")
	case !out.Inserted:
		fmt.Fprintln(a.out, "duplicate")
	case out.Parsed:
		fmt.Fprintf(a.out, "recorded %s %s\n", insights.DisplayAmount(out.Transaction), out.Transaction.MerchantOrEmpty())
	default:
		fmt.Fprintln(a.out, "recorded placeholder, amount to be confirmed")
	}
}

func (a *app) quick(ctx context.Context, args []string) error {
	fs := a.flags("quick")
	source := fs.String("source", "", "source ID entries are recorded against")
	if err := fs.Parse(args); err != nil {
		return err
	}
	target, err := a.target(ctx, *source)
	if err != nil {
		return err
	}

	sc := bufio.NewScanner(a.in)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit":
			return nil
		case "undo":
			id, err := a.deps.QuickEntryService.Undo(ctx)
			if err != nil {
				fmt.Fprintf(a.out, "undo: %v\n", err)
				continue
			}
			fmt.Fprintf(a.out, "undone %s\n", id)
			continue
		}

		res, err := a.deps.QuickEntryService.Add(ctx, line, target, a.now())
		if errors.Is(err, quickentry.ErrNoAmount) {
			fmt.Fprintln(a.out, "no amount found, try \"Coffee 1.50€\"")
			continue
		}
		if errors.Is(err, money.ErrAmountOutOfRange) {
			fmt.Fprintln(a.out, "amount too large")
			continue
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "added %s %s (undo until %s)\n",
			res.Transaction.MerchantOrEmpty(),
			insights.DisplayAmount(res.Transaction),
			res.UndoUntil.In(a.deps.Location).Format(time.TimeOnly))
	}
	return sc.Err()
}

func parseProfile(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid --profile: %w", err)
	}
	return &id, nil
}

func (a *app) parseMonth(s string) (time.Time, error) {
	if s == "" {
		return a.now().In(a.deps.Location), nil
	}
	t, err := time.ParseInLocation("2006-01", s, a.deps.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --month, want YYYY-MM: %w", err)
	}
	return t, nil
}

func (a *app) summary(ctx context.Context, args []string) error {
	fs := a.flags("summary")
	month := fs.String("month", "", "month as YYYY-MM (defaults to the current month)")
	profile := fs.String("profile", "", "limit to one profile ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	profileID, err := parseProfile(*profile)
	if err != nil {
		return err
	}
	m, err := a.parseMonth(*month)
	if err != nil {
		return err
	}

	d, err := a.deps.InsightsService.Dashboard(ctx, m, profileID)
	if err != nil {
		return err
	}
	cur := a.deps.Config.Ledger.DefaultCurrency
	s := d.Summary

	fmt.Fprintf(a.out, "%s\n\n", d.Window.Start.Format("January 2006"))
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Income\t%s\n", money.New(s.Income, cur).Display())
	fmt.Fprintf(tw, "Expense\t%s\n", money.New(s.Expense, cur).Display())
	fmt.Fprintf(tw, "Net\t%s\n", money.New(s.Net, cur).Display())
	fmt.Fprintf(tw, "Entries\t%d\n", s.Count)
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(d.Breakdown) > 0 {
		fmt.Fprintln(a.out, "\nSpending by category")
		tw = tabwriter.NewWriter(a.out, 0, 4, 2, ' ', tabwriter.AlignRight)
		for _, c := range d.Breakdown {
			fmt.Fprintf(tw, "%s\t%s\t%.2f%%\t\n", c.Name, money.New(c.AmountMinor, cur).Display(), c.Percentage)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(d.Changes) > 0 {
		fmt.Fprintln(a.out, "\nChanges")
		for _, c := range d.Changes {
			fmt.Fprintf(a.out, "  %s: %s\n", c.Title, c.Description)
		}
	}

	p := d.Pulse
	fmt.Fprintf(a.out, "\nDay %d: %s\n", p.DayOfMonth, p.PaceMessage)
	return nil
}

// window reads --from/--to dates, defaulting to the current month.
func (a *app) window(from, to string) (time.Time, time.Time, error) {
	w := insights.MonthWindow(a.now(), a.deps.Location)
	start, end := w.Start, w.End
	if from != "" {
		t, err := time.ParseInLocation(time.DateOnly, from, a.deps.Location)
		if err != nil {
			return start, end, fmt.Errorf("invalid --from: %w", err)
		}
		start = t
	}
	if to != "" {
		t, err := time.ParseInLocation(time.DateOnly, to, a.deps.Location)
		if err != nil {
			return start, end, fmt.Errorf("invalid --to: %w", err)
		}
		end = t.AddDate(0, 0, 1).Add(-time.Millisecond)
	}
	if end.Before(start) {
		return start, end, errors.New("--to is before --from")
	}
	return start, end, nil
}

func (a *app) ledger(ctx context.Context, args []string) error {
	fs := a.flags("ledger")
	from := fs.String("from", "", "first day, YYYY-MM-DD")
	to := fs.String("to", "", "last day, YYYY-MM-DD")
	profile := fs.String("profile", "", "limit to one profile ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	profileID, err := parseProfile(*profile)
	if err != nil {
		return err
	}
	start, end, err := a.window(*from, *to)
	if err != nil {
		return err
	}

	groups, err := a.deps.InsightsService.Ledger(ctx, start, end, profileID)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, g := range groups {
		cur := a.deps.Config.Ledger.DefaultCurrency
		if len(g.Entries) > 0 {
			cur = g.Entries[0].Transaction.Currency
		}
		fmt.Fprintf(tw, "%s\t\t\t%s\n", g.Date.Format("Mon 02 Jan 2006"), money.New(g.DailyTotal, cur).Display())
		for _, e := range g.Entries {
			tx := e.Transaction
			name := tx.MerchantOrEmpty()
			if name == "" {
				name = tx.DescriptionOrEmpty()
			}
			if !tx.IsConfirmed {
				name += " (unconfirmed)"
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", tx.OccurredAt.In(a.deps.Location).Format("15:04"), name, e.Category, e.DisplayAmount)
		}
	}
	return tw.Flush()
}

func (a *app) export(ctx context.Context, args []string) error {
	fs := a.flags("export")
	month := fs.String("month", "", "month as YYYY-MM (defaults to the current month)")
	profile := fs.String("profile", "", "limit to one profile ID")
	out := fs.String("out", "", "destination .xlsx file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return errors.New("--out is required")
	}
	profileID, err := parseProfile(*profile)
	if err != nil {
		return err
	}
	m, err := a.parseMonth(*month)
	if err != nil {
		return err
	}

	d, err := a.deps.InsightsService.Dashboard(ctx, m, profileID)
	if err != nil {
		return err
	}
	groups, err := a.deps.InsightsService.Ledger(ctx, d.Window.Start, d.Window.End, profileID)
	if err != nil {
		return err
	}

	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	if err := insights.ExportWorkbook(groups, d.Breakdown, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "wrote %s (%d days)\n", *out, len(groups))
	return nil
}

func (a *app) search(ctx context.Context, args []string) error {
	fs := a.flags("search")
	limit := fs.Int("limit", 20, "maximum results")
	profile := fs.String("profile", "", "limit to one profile ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	q := strings.Join(fs.Args(), " ")
	if q == "" {
		return errors.New("usage: ledger search [--limit N] QUERY")
	}
	profileID, err := parseProfile(*profile)
	if err != nil {
		return err
	}

	txs, err := a.deps.SearchService.Search(ctx, q, *limit, profileID)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, tx := range txs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			tx.OccurredAt.In(a.deps.Location).Format(time.DateOnly),
			tx.MerchantOrEmpty(), tx.DescriptionOrEmpty(), insights.DisplayAmount(tx))
	}
	return tw.Flush()
}

func (a *app) rule(ctx context.Context, args []string) error {
	fs := a.flags("rule")
	profile := fs.String("profile", "", "profile ID the rule belongs to")
	pattern := fs.String("pattern", "", "text to match in descriptions")
	name := fs.String("name", "", "clean merchant name")
	category := fs.String("category", "", "category ID")
	recurring := fs.Bool("recurring", false, "mark matches as recurring")
	apply := fs.Bool("apply", false, "apply to existing transactions")
	if err := fs.Parse(args); err != nil {
		return err
	}
	profileID, err := parseProfile(*profile)
	if err != nil {
		return err
	}
	if profileID == nil || *pattern == "" {
		return errors.New("--profile and --pattern are required")
	}
	var categoryID *uuid.UUID
	if *category != "" {
		id, err := uuid.Parse(*category)
		if err != nil {
			return fmt.Errorf("invalid --category: %w", err)
		}
		categoryID = &id
	}

	r, applied, err := a.deps.CategorizationService.CreateRule(ctx, *profileID, *pattern, *name, categoryID, *recurring, *apply)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "rule %s created, %d existing transactions updated\n", r.ID, applied)
	return nil
}

// serve runs the scheduler and metrics endpoint until ctx is cancelled. With
// --capture-stdin it also records notification JSON lines from stdin.
func (a *app) serve(ctx context.Context, args []string) error {
	fs := a.flags("run")
	captureStdin := fs.Bool("capture-stdin", false, "record notification JSON lines from stdin")
	source := fs.String("source", "", "source ID for captured notifications")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg := a.deps.Config
	logger := a.deps.Logger

	if cfg.Scheduler.Enabled {
		if err := a.deps.Scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() { <-a.deps.Scheduler.Stop().Done() }()
	}

	errCh := make(chan error, 2)
	if cfg.Observability.MetricsEnabled {
		go func() {
			errCh <- observability.ServeMetrics(ctx, fmt.Sprintf(":%d", cfg.Observability.MetricsPort), logger)
		}()
	}
	if *captureStdin {
		target, err := a.target(ctx, *source)
		if err != nil {
			return err
		}
		go func() {
			errCh <- a.captureStream(ctx, a.in, target)
		}()
	}

	logger.Info("ledger running")
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-errCh:
		if err == nil {
			<-ctx.Done()
		}
		return err
	}
}
