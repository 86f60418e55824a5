package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/app"
	"github.com/hackgods/clinic-booking/internal/availability"
	"github.com/hackgods/clinic-booking/internal/catalog"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/logging"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

var regions = []string{"MN", "WI", "IA", "IL"}

func main() {
	providers := flag.Int("providers", 20, "number of providers to create")
	days := flag.Int("days", 7, "days of availability slots to create")
	capacity := flag.Int("capacity", 2, "capacity of each availability slot")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("dev", "info", "seed")
		bootLog.Fatal().Err(err).Msg("config load error")
	}
	log := logging.New(cfg.Env, cfg.LogLevel, "seed")
	log.Info().Str("store", cfg.StoreDriver).Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup error")
	}
	defer a.Close(log)

	gofakeit.Seed(time.Now().UnixNano())

	services, err := seedServices(ctx, a.Catalog, cfg.DefaultCurrency, log)
	if err != nil {
		log.Fatal().Err(err).Msg("seed services")
	}
	seeded, err := seedProviders(ctx, a.Catalog, services, *providers, log)
	if err != nil {
		log.Fatal().Err(err).Msg("seed providers")
	}
	n, err := seedSlots(ctx, a.Allocator, seeded, services, *days, *capacity, cfg.Location())
	if err != nil {
		log.Fatal().Err(err).Msg("seed availability")
	}

	log.Info().
		Int("services", len(services)).
		Int("providers", len(seeded)).
		Int("slots", n).
		Msg("seed complete")
}

func seedServices(ctx context.Context, cat catalog.Repository, currency string, log zerolog.Logger) ([]catalog.Service, error) {
	services := make([]catalog.Service, 0, len(specialties))
	for i, name := range specialties {
		svc := catalog.Service{
			ID:              fmt.Sprintf("svc-%02d", i+1),
			Name:            name + " Consult",
			DurationMin:     []int{15, 30, 45, 60}[gofakeit.Number(0, 3)],
			Price:           catalog.Price{Amount: int64(gofakeit.Number(50, 400)) * 100, Currency: currency},
			BufferBeforeMin: gofakeit.Number(0, 2) * 5,
			BufferAfterMin:  gofakeit.Number(0, 3) * 5,
			Regions:         regions,
			Active:          true,
		}
		if fields := svc.Validate(); fields != nil {
			return nil, fmt.Errorf("invalid service %s: %v", svc.ID, fields)
		}
		if err := cat.PutService(ctx, svc); err != nil {
			return nil, fmt.Errorf("put service %s: %w", svc.ID, err)
		}
		prefs := catalog.Preferences{
			ReminderOneDay:  true,
			ReminderOneHour: gofakeit.Bool(),
		}
		if err := cat.PutPreferences(ctx, svc.ID, prefs); err != nil {
			return nil, fmt.Errorf("put preferences %s: %w", svc.ID, err)
		}
		services = append(services, svc)
	}
	log.Info().Int("count", len(services)).Msg("services seeded")
	return services, nil
}

func seedProviders(ctx context.Context, cat catalog.Repository, services []catalog.Service, count int, log zerolog.Logger) ([]catalog.Provider, error) {
	providers := make([]catalog.Provider, 0, count)
	for i := 0; i < count; i++ {
		var offered []string
		for _, svc := range services {
			if gofakeit.Number(0, 2) == 0 {
				offered = append(offered, svc.ID)
			}
		}
		if len(offered) == 0 {
			offered = []string{services[gofakeit.Number(0, len(services)-1)].ID}
		}

		var windows []catalog.WeeklyWindow
		for day := 1; day <= 5; day++ {
			windows = append(windows, catalog.WeeklyWindow{Day: day, Start: "09:00", End: "17:00"})
		}

		p := catalog.Provider{
			ID:           fmt.Sprintf("prov-%03d", i+1),
			Name:         "Dr. " + gofakeit.LastName(),
			Regions:      []string{regions[gofakeit.Number(0, len(regions)-1)]},
			ServiceIDs:   offered,
			Priority:     gofakeit.Number(0, 10),
			Active:       gofakeit.Number(0, 9) > 0,
			Availability: windows,
		}
		if fields := p.Validate(); fields != nil {
			return nil, fmt.Errorf("invalid provider %s: %v", p.ID, fields)
		}
		if err := cat.PutProvider(ctx, p); err != nil {
			return nil, fmt.Errorf("put provider %s: %w", p.ID, err)
		}
		providers = append(providers, p)
	}
	log.Info().Int("count", len(providers)).Msg("providers seeded")
	return providers, nil
}

// seedSlots opens one morning slot per weekday for every active provider
// and offered service, starting tomorrow in the clinic zone.
func seedSlots(ctx context.Context, alloc *availability.Allocator, providers []catalog.Provider, services []catalog.Service, days, capacity int, loc *time.Location) (int, error) {
	byID := make(map[string]catalog.Service, len(services))
	for _, svc := range services {
		byID[svc.ID] = svc
	}

	now := time.Now().In(loc)
	first := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, loc)

	created := 0
	for _, p := range providers {
		if !p.Active {
			continue
		}
		for d := 0; d < days; d++ {
			day := first.AddDate(0, 0, d)
			if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
				continue
			}
			start := time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, loc)
			for _, id := range p.ServiceIDs {
				svc := byID[id]
				_, err := alloc.CreateAvailability(ctx, availability.CreateInput{
					ProviderID: p.ID,
					ServiceID:  svc.ID,
					RegionCode: p.Regions[0],
					Start:      start.UTC(),
					End:        start.Add(svc.Duration()).UTC(),
					Capacity:   capacity,
				})
				if err != nil {
					return created, fmt.Errorf("create slot %s/%s: %w", p.ID, svc.ID, err)
				}
				created++
				start = start.Add(svc.Duration() + svc.BufferAfter())
			}
		}
	}
	return created, nil
}
