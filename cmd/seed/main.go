// seed creates one concert with the fixed 4x20x4 seat grid.  Database
// settings come from the same environment (or .env) the server reads.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/iliyamo/concert-seat-booking/internal/config"
	"github.com/iliyamo/concert-seat-booking/internal/database"
	"github.com/iliyamo/concert-seat-booking/internal/model"
	"github.com/iliyamo/concert-seat-booking/internal/repository"
)

type options struct {
	title       string
	artist      string
	venue       string
	date        string
	poster      string
	description string
	prices      map[model.Grade]int64
	migrate     bool
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var o options
	var special, premium, advanced, regular int64

	fs := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	fs.StringVar(&o.title, "title", "Autumn Live", "concert title")
	fs.StringVar(&o.artist, "artist", "The House Band", "performing artist")
	fs.StringVar(&o.venue, "venue", "Olympic Hall", "venue name")
	fs.StringVar(&o.date, "date", "", "concert date, RFC 3339 (default: 30 days from now)")
	fs.StringVar(&o.poster, "poster", "", "poster image URL")
	fs.StringVar(&o.description, "description", "", "concert description")
	fs.Int64Var(&special, "price-special", 250000, "price of Special seats (rows 1-3)")
	fs.Int64Var(&premium, "price-premium", 190000, "price of Premium seats (rows 4-7)")
	fs.Int64Var(&advanced, "price-advanced", 170000, "price of Advanced seats (rows 8-15)")
	fs.Int64Var(&regular, "price-regular", 140000, "price of Regular seats (rows 16-20)")
	fs.BoolVar(&o.migrate, "migrate", false, "apply the schema before seeding")
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	o.prices = map[model.Grade]int64{
		model.GradeSpecial:  special,
		model.GradePremium:  premium,
		model.GradeAdvanced: advanced,
		model.GradeRegular:  regular,
	}

	concert, err := o.concert(time.Now().UTC())
	if err != nil {
		return err
	}
	seats, err := buildSeats(concert.ID, o.prices)
	if err != nil {
		return err
	}

	_ = godotenv.Load()
	cfg := config.Load()
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if o.migrate || cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	if err := insert(ctx, db, concert, seats); err != nil {
		return err
	}
	fmt.Printf("created concert %s (%q, %s) with %d seats\n", concert.ID, concert.Title, concert.Date.Format(time.RFC3339), len(seats))
	return nil
}

func (o options) concert(now time.Time) (*model.Concert, error) {
	date := now.AddDate(0, 0, 30)
	if o.date != "" {
		d, err := time.Parse(time.RFC3339, o.date)
		if err != nil {
			return nil, fmt.Errorf("invalid --date: %w", err)
		}
		date = d.UTC()
	}
	c := &model.Concert{
		ID:     uuid.NewString(),
		Title:  o.title,
		Artist: o.artist,
		Venue:  o.venue,
		Date:   date,
	}
	if o.poster != "" {
		c.PosterImage = &o.poster
	}
	if o.description != "" {
		c.Description = &o.description
	}
	return c, nil
}

// buildSeats lays out every section, row and seat number with its grade
// price.  Every price must be positive.
func buildSeats(concertID string, prices map[model.Grade]int64) ([]model.Seat, error) {
	for _, g := range model.Grades {
		if prices[g] <= 0 {
			return nil, fmt.Errorf("price for %s must be positive", g)
		}
	}
	seats := make([]model.Seat, 0, len(model.Sections)*model.RowsPerSection*model.SeatsPerRow)
	for _, sec := range model.Sections {
		for row := 1; row <= model.RowsPerSection; row++ {
			grade, _ := model.GradeForRow(row)
			for n := 1; n <= model.SeatsPerRow; n++ {
				seats = append(seats, model.Seat{
					ID:        uuid.NewString(),
					ConcertID: concertID,
					Section:   sec,
					Row:       row,
					Number:    n,
					Grade:     grade,
					Price:     prices[grade],
					Status:    model.SeatAvailable,
				})
			}
		}
	}
	return seats, nil
}

func insert(ctx context.Context, db *sql.DB, c *model.Concert, seats []model.Seat) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := repository.NewConcertRepo(db).CreateTx(ctx, tx, c); err != nil {
		return fmt.Errorf("insert concert: %w", err)
	}
	if err := repository.NewSeatRepo(db).CreateBulkTx(ctx, tx, seats); err != nil {
		return fmt.Errorf("insert seats: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
