package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/pocket-ledger/pkg/config"
)

const revolutCSV = `Type,Product,Started Date,Completed Date,Description,Amount,Fee,Currency,State,Balance
CARD_PAYMENT,Current,2024-03-01 10:15:00,2024-03-02 09:00:00,Tesco Stores,-12.34,0.00,GBP,COMPLETED,100.00
TOPUP,Current,2024-03-02 08:00:00,2024-03-02 08:00:01,Top-Up by *1234,500.00,0.00,GBP,COMPLETED,600.00
CARD_PAYMENT,Current,2024-03-03 12:00:00,,Pret A Manger,-4.50,0.00,GBP,PENDING,
CARD_PAYMENT,Current,2024-03-04,2024-03-04,"Amazon, Marketplace",-20,0.00,GBP,COMPLETED,575.50
`

var cliNow = time.Date(2024, 3, 20, 9, 30, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Ledger:     config.LedgerConfig{DefaultCurrency: "EUR", Timezone: "UTC"},
		Import:     config.ImportConfig{BatchSize: 100, Categorize: true, FuzzyThreshold: 80},
		Capture:    config.CaptureConfig{Enabled: true},
		QuickEntry: config.QuickEntryConfig{UndoWindow: time.Minute},
		Scheduler:  config.SchedulerConfig{UndoExpirySpec: "@every 1m"},
	}
}

type cliFixture struct {
	t    *testing.T
	deps *Dependencies
}

func newCLIFixture(t *testing.T, opts ...func(*config.Config)) *cliFixture {
	t.Helper()
	cfg := testConfig()
	for _, o := range opts {
		o(cfg)
	}
	deps, err := initMemoryDependencies(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	deps.UndoTracker.WithClock(func() time.Time { return cliNow })
	t.Cleanup(deps.Cleanup)
	return &cliFixture{t: t, deps: deps}
}

func (f *cliFixture) exec(stdin string, args ...string) (string, error) {
	var out bytes.Buffer
	a := &app{deps: f.deps, in: strings.NewReader(stdin), out: &out, now: func() time.Time { return cliNow }}
	err := a.run(context.Background(), args[0], args[1:])
	return out.String(), err
}

var idLine = regexp.MustCompile(`(?m)^(profile|wallet|source)\s+(\S+)$`)

func (f *cliFixture) setup() (profile, source string) {
	out, err := f.exec("", "setup", "--source", "Revolut", "--currency", "gbp")
	require.NoError(f.t, err)
	for _, m := range idLine.FindAllStringSubmatch(out, -1) {
		switch m[1] {
		case "profile":
			profile = m[2]
		case "source":
			source = m[2]
		}
	}
	require.NotEmpty(f.t, source)
	return profile, source
}

func TestCLI_ImportIsIdempotent(t *testing.T) {
	f := newCLIFixture(t)
	_, source := f.setup()

	path := filepath.Join(t.TempDir(), "revolut.csv")
	require.NoError(t, os.WriteFile(path, []byte(revolutCSV), 0o600))

	out, err := f.exec("", "import", "--source", source, path)
	require.NoError(t, err)
	assert.Contains(t, out, "Revolut parsed=3 inserted=3 duplicates=0 skipped=1 failed=0")

	out, err = f.exec("", "import", "--source", source, path)
	require.NoError(t, err)
	assert.Contains(t, out, "inserted=0 duplicates=3")

	out, err = f.exec("", "search", "tesco")
	require.NoError(t, err)
	assert.Contains(t, out, "Tesco Stores")
	assert.NotContains(t, out, "Pret")
}

func TestCLI_ImportArchivesStatement(t *testing.T) {
	archive := t.TempDir()
	f := newCLIFixture(t, func(c *config.Config) { c.Import.ArchivePath = archive })
	profile, source := f.setup()

	path := filepath.Join(t.TempDir(), "revolut.csv")
	require.NoError(t, os.WriteFile(path, []byte(revolutCSV), 0o600))

	for range 2 {
		out, err := f.exec("", "import", "--source", source, path)
		require.NoError(t, err)
		assert.Contains(t, out, "archived as")
	}

	out, err := f.exec("", "statements", "--profile", profile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1, "re-importing the same statement archives it once")
	assert.Contains(t, lines[0], "Revolut")
}

func TestCLI_ImportRequiresKnownSource(t *testing.T) {
	f := newCLIFixture(t)
	_, err := f.exec("", "import", "--source", "2b1c1f7e-0000-4000-8000-000000000000", "x.csv")
	assert.Error(t, err)

	_, err = f.exec("", "import", "x.csv")
	assert.EqualError(t, err, "--source is required")
}

func TestCLI_QuickEntryAndUndo(t *testing.T) {
	f := newCLIFixture(t)
	_, source := f.setup()

	out, err := f.exec("coffee 2€\nno amount here\ntv 99999999999999999999€\nundo\nundo\n+refund 5€\n", "quick", "--source", source)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "added Coffee -€2.00 (undo until 09:31:00)", lines[0])
	assert.Contains(t, lines[1], "no amount found")
	assert.Equal(t, "amount too large", lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "undone "))
	assert.Equal(t, "undo: nothing to undo", lines[4])
	assert.Equal(t, "added Refund +€5.00 (undo until 09:31:00)", lines[5])

	out, err = f.exec("", "ledger")
	require.NoError(t, err)
	assert.Contains(t, out, "Refund")
	assert.NotContains(t, out, "Coffee")
}

func TestCLI_CaptureStream(t *testing.T) {
	f := newCLIFixture(t)
	_, source := f.setup()

	stdin := strings.Join([]string{
		`{"package":"com.paypal.android.p2pmobile","text":"PayPal: You sent €12.50 to Mario","posted_at":"2024-03-10T10:15:05Z"}`,
		`{"package":"com.paypal.android.p2pmobile","text":"PayPal: You sent €12.50 to Mario","posted_at":"2024-03-10T10:15:40Z"}`,
		`{"package":"com.example.bank","text":"Payment of €3"}`,
		`not json`,
		`{"package":"com.satispay.customer","text":"Satispay: new payment request"}`,
	}, "\n")

	out, err := f.exec(stdin, "capture", "--source", source, "--jsonl", "-")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "recorded -€12.50")
	assert.Equal(t, "duplicate", lines[1])
	assert.Contains(t, lines[2], "line 3:")
	assert.Contains(t, lines[3], "line 4:")
	assert.Equal(t, "recorded placeholder, amount to be confirmed", lines[4])
}

func TestCLI_SummaryAndExport(t *testing.T) {
	f := newCLIFixture(t)
	_, source := f.setup()

	_, err := f.exec("salary 2000\nrent 800\n", "quick", "--source", source)
	require.NoError(t, err)

	out, err := f.exec("", "summary", "--month", "2024-03")
	require.NoError(t, err)
	assert.Contains(t, out, "March 2024")
	assert.Regexp(t, `Expense\s+€2,800.00`, out)
	assert.Regexp(t, `Entries\s+2`, out)

	path := filepath.Join(t.TempDir(), "march.xlsx")
	out, err = f.exec("", "export", "--month", "2024-03", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "(1 days)")

	wb, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows("Ledger")
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestCLI_FlagErrors(t *testing.T) {
	f := newCLIFixture(t)

	_, err := f.exec("", "summary", "--month", "March")
	assert.ErrorContains(t, err, "invalid --month")

	_, err = f.exec("", "ledger", "--from", "2024-03-10", "--to", "2024-03-01")
	assert.ErrorContains(t, err, "--to is before --from")

	_, err = f.exec("", "export")
	assert.EqualError(t, err, "--out is required")

	_, err = f.exec("", "nope")
	assert.Error(t, err)
}
