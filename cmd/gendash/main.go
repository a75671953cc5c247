package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/lox/gendash/internal/api"
	"github.com/lox/gendash/internal/compliance"
	"github.com/lox/gendash/internal/ingest"
	"github.com/lox/gendash/internal/ons"
	"github.com/lox/gendash/internal/report"
	"github.com/lox/gendash/internal/store"
)

type CLI struct {
	EnvFile  kongdotenv.ENVFileConfig `kong:"optional,name=env-file,default='.env',help='Path to .env file'"`
	DB       string                   `kong:"name=db,env=GENDASH_DB,default='data/gendash.db',help='Path to SQLite database'"`
	Timezone string                   `kong:"env=GENDASH_TIMEZONE,default='America/Sao_Paulo',help='Plant time zone for report dates'"`

	Serve   ServeCmd   `kong:"cmd,default='1',help='Run the dashboard server and ONS poller'"`
	Import  ImportCmd  `kong:"cmd,help='Import the ONS proposed schedule for a date'"`
	Migrate MigrateCmd `kong:"cmd,help='Apply database migrations and exit'"`
	Seed    SeedCmd    `kong:"cmd,help='Load a YAML day fixture'"`
	Report  ReportCmd  `kong:"cmd,help='Print the compliance summary of a date'"`
}

// ONSFlags configure the integration API client.
type ONSFlags struct {
	ONSUsername string `kong:"name=ons-username,env=ONS_API_USERNAME,help='ONS integration API user'"`
	ONSPassword string `kong:"name=ons-password,env=ONS_API_PASSWORD,help='ONS integration API password'"`
	ONSBaseURL  string `kong:"name=ons-base-url,env=ONS_API_BASE_URL,default='https://integra.ons.org.br/api',help='ONS integration API base URL'"`
	ONSPlant    string `kong:"name=ons-plant,env=ONS_PLANT,default='N2UHTP',help='ONS plant code'"`
}

// fetcher returns nil when no credentials are configured.
func (f ONSFlags) fetcher() ingest.ScheduleFetcher {
	if f.ONSUsername == "" || f.ONSPassword == "" {
		return nil
	}
	return ons.NewClient(f.ONSBaseURL, f.ONSUsername, f.ONSPassword, f.ONSPlant)
}

type ServeCmd struct {
	ONSFlags
	Port   string `kong:"env=PORT,default='8080',help='HTTP server port'"`
	NoPoll bool   `kong:"name=no-poll,help='Disable ONS polling (server only, for local dev)'"`
}

func (c *ServeCmd) Run(app *App) error {
	fetcher := c.fetcher()
	if fetcher == nil {
		log.Println("ONS credentials not set; schedule import disabled")
	}
	importer := ingest.NewImporter(app.store, fetcher)
	server := api.NewServer(app.store, importer, c.Port, app.loc)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !c.NoPoll && fetcher != nil {
		scheduler := ingest.NewScheduler(app.store, importer, app.loc)
		go scheduler.Run(ctx)
	} else if c.NoPoll {
		log.Println("polling disabled (--no-poll)")
	}

	return server.Run(ctx)
}

type ImportCmd struct {
	ONSFlags
	Date string `kong:"arg,optional,help='Report date (YYYY-MM-DD), default today'"`
}

func (c *ImportCmd) Run(app *App) error {
	date, err := app.date(c.Date)
	if err != nil {
		return err
	}
	fetcher := c.fetcher()
	if fetcher == nil {
		return ons.ErrNoCredentials
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	n, err := ingest.NewImporter(app.store, fetcher).ImportONS(ctx, date)
	if err != nil {
		return err
	}
	log.Printf("imported %d scheduled values", n)
	return nil
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(app *App) error {
	v, err := app.store.MigrationVersion()
	if err != nil {
		return err
	}
	log.Printf("schema at version %d", v)
	return nil
}

type SeedCmd struct {
	Fixture string `kong:"arg,type='existingfile',help='YAML day fixture'"`
}

func (c *SeedCmd) Run(app *App) error {
	f, err := os.Open(c.Fixture)
	if err != nil {
		return err
	}
	defer f.Close()

	fx, err := ingest.LoadFixture(f)
	if err != nil {
		return err
	}
	date, err := ingest.NewImporter(app.store, nil).ImportFixture(fx)
	if err != nil {
		return err
	}
	log.Printf("seeded %s: %d intervals, %d observations, %d controls",
		date.Format("2006-01-02"), len(fx.Intervals), len(fx.Observations), len(fx.Controls))
	return nil
}

type ReportCmd struct {
	Date string `kong:"arg,optional,help='Report date (YYYY-MM-DD), default today'"`
}

func (c *ReportCmd) Run(app *App) error {
	date, err := app.date(c.Date)
	if err != nil {
		return err
	}
	intervals, err := app.store.GetIntervals(date)
	if err != nil {
		return err
	}
	sum, err := compliance.Summarize(intervals)
	if err != nil {
		return err
	}

	k := report.FormatKPIs(sum)
	fmt.Printf("Report date:     %s\n", date.Format("2006-01-02"))
	fmt.Printf("Mean deviation:  %s\n", k.MeanDeviation)
	fmt.Printf("Peak generation: %s at %s\n", k.PeakActual, k.PeakTime)
	fmt.Printf("Compliance:      %s\n", k.CompliancePercent)
	if k.Empty {
		return nil
	}
	fmt.Println()
	for _, p := range report.FormatPeriods(sum) {
		fmt.Printf("%-22s actual %8s  scheduled %8s  deviation %8s\n", p.Name, p.MeanActual, p.MeanScheduled, p.MeanDeviation)
	}
	return nil
}

// App holds what every command needs once the database is open.
type App struct {
	store *store.Store
	loc   *time.Location
}

func (a *App) date(v string) (time.Time, error) {
	if v == "" {
		return a.store.Today(), nil
	}
	d, err := a.store.ParseDate(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", v, err)
	}
	return d, nil
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("gendash"),
		kong.Description("Hydro plant generation compliance dashboard."),
		kong.UsageOnError(),
	)

	db, err := sql.Open("sqlite", cli.DB)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")
	db.Exec("PRAGMA foreign_keys=ON")

	loc, err := time.LoadLocation(cli.Timezone)
	if err != nil {
		log.Printf("Warning: could not load %s timezone, using UTC: %v", cli.Timezone, err)
		loc = time.UTC
	}

	st := store.New(db, loc)
	if err := st.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	err = kctx.Run(&App{store: st, loc: loc})
	kctx.FatalIfErrorf(err)
}
