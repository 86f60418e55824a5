package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/app"
	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/availability"
	"github.com/hackgods/clinic-booking/internal/catalog"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/logging"
)

type SimConfig struct {
	Workers  int
	Attempts int
	Capacity int
	Region   string
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	max = latencies[len(latencies)-1]
	return avg, p50, p95, max
}

// The simulator races many bookings for one availability slot and then
// checks that the slot never holds more appointments than its capacity.
func main() {
	sim := SimConfig{}
	flag.IntVar(&sim.Workers, "workers", 16, "concurrent booking workers")
	flag.IntVar(&sim.Attempts, "attempts", 200, "total booking attempts")
	flag.IntVar(&sim.Capacity, "capacity", 5, "capacity of the contested slot")
	flag.StringVar(&sim.Region, "region", "MN", "region code of the contested slot")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("dev", "info", "simulate")
		bootLog.Fatal().Err(err).Msg("config load error")
	}
	log := logging.New(cfg.Env, cfg.LogLevel, "simulate")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup error")
	}
	defer a.Close(log)

	slot, err := prepare(ctx, a, sim, cfg.DefaultCurrency)
	if err != nil {
		log.Fatal().Err(err).Msg("prepare simulation")
	}
	log.Info().
		Str("provider_id", slot.ProviderID).
		Str("service_id", slot.ServiceID).
		Time("start", slot.Start).
		Int("capacity", slot.Capacity).
		Int("workers", sim.Workers).
		Int("attempts", sim.Attempts).
		Msg("simulation starting")

	metrics := run(ctx, a.Appointments, slot, sim, log)

	if err := verify(ctx, a.Appointments, slot, metrics); err != nil {
		log.Error().Err(err).Msg("simulation failed")
		a.Close(log)
		os.Exit(1)
	}

	avg, p50, p95, max := metrics.Stats()
	log.Info().
		Int64("total", metrics.Total).
		Int64("booked", metrics.Success).
		Int64("conflicts", metrics.Conflict).
		Int64("errors", metrics.Error).
		Dur("avg", avg).
		Dur("p50", p50).
		Dur("p95", p95).
		Dur("max", max).
		Msg("simulation complete")
}

func prepare(ctx context.Context, a *app.App, sim SimConfig, currency string) (*availability.Slot, error) {
	runID := uuid.NewString()[:8]
	svc := catalog.Service{
		ID:          "sim-svc-" + runID,
		Name:        "Simulation Consult",
		DurationMin: 30,
		Price:       catalog.Price{Amount: 10000, Currency: currency},
		Regions:     []string{sim.Region},
		Active:      true,
	}
	if err := a.Catalog.PutService(ctx, svc); err != nil {
		return nil, fmt.Errorf("put service: %w", err)
	}
	p := catalog.Provider{
		ID:         "sim-prov-" + runID,
		Name:       "Dr. " + gofakeit.LastName(),
		Regions:    []string{sim.Region},
		ServiceIDs: []string{svc.ID},
		Active:     true,
	}
	if err := a.Catalog.PutProvider(ctx, p); err != nil {
		return nil, fmt.Errorf("put provider: %w", err)
	}

	start := time.Now().UTC().Truncate(time.Hour).Add(48 * time.Hour)
	return a.Allocator.CreateAvailability(ctx, availability.CreateInput{
		ProviderID: p.ID,
		ServiceID:  svc.ID,
		RegionCode: sim.Region,
		Start:      start,
		End:        start.Add(svc.Duration()),
		Capacity:   sim.Capacity,
	})
}

func run(ctx context.Context, svc *appointment.Service, slot *availability.Slot, sim SimConfig, log zerolog.Logger) *OperationMetrics {
	metrics := &OperationMetrics{}
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < sim.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				begin := time.Now()
				_, err := svc.Create(ctx, appointment.CreateInput{
					ServiceID:    slot.ServiceID,
					ProviderID:   slot.ProviderID,
					RegionCode:   slot.RegionCode,
					StartTime:    slot.Start,
					PatientName:  gofakeit.Name(),
					PatientEmail: gofakeit.Email(),
					PatientPhone: gofakeit.Numerify("612555####"),
					TextConsent:  true,
					RequestedBy:  "simulate",
				})
				conflict := apperr.KindOf(err) == apperr.KindConflict
				metrics.Record(time.Since(begin), err == nil, conflict)
				if err != nil && !conflict {
					log.Warn().Err(err).Msg("booking error")
				}
			}
		}()
	}

	for i := 0; i < sim.Attempts; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return metrics
}

// verify counts the provider's stored appointments. A full slot drops out of
// availability listings, so the appointment ledger is the source of truth.
func verify(ctx context.Context, svc *appointment.Service, slot *availability.Slot, metrics *OperationMetrics) error {
	appts, err := svc.List(ctx, appointment.ListFilter{ProviderID: slot.ProviderID})
	if err != nil {
		return fmt.Errorf("list appointments: %w", err)
	}
	booked := len(appts)
	if booked > slot.Capacity {
		return fmt.Errorf("slot overbooked: %d bookings for capacity %d", booked, slot.Capacity)
	}
	if int64(booked) != metrics.Success {
		return fmt.Errorf("ledger holds %d bookings but %d succeeded", booked, metrics.Success)
	}
	return nil
}
