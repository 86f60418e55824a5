package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/availability"
	"github.com/hackgods/clinic-booking/internal/catalog"
	"github.com/hackgods/clinic-booking/internal/payment"
)

func listAvailabilityHandler(alloc *availability.Allocator, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		from, err := parseTimeParam("from", q.Get("from"), loc, false)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		to, err := parseTimeParam("to", q.Get("to"), loc, true)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		slots, err := alloc.ListAvailability(r.Context(), availability.Filter{
			ServiceID:  q.Get("service_id"),
			ProviderID: q.Get("provider_id"),
			RegionCode: q.Get("region_code"),
			From:       from,
			To:         to,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, slots)
	}
}

func createAvailabilityHandler(alloc *availability.Allocator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AvailabilityRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		slot, err := alloc.CreateAvailability(r.Context(), availability.CreateInput{
			ProviderID: req.ProviderID,
			ServiceID:  req.ServiceID,
			RegionCode: req.RegionCode,
			Start:      req.StartTime,
			End:        req.EndTime,
			Capacity:   req.Capacity,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeData(w, http.StatusCreated, slot)
	}
}

func deleteAvailabilityHandler(alloc *availability.Allocator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, err := time.Parse(time.RFC3339, chi.URLParam(r, "start"))
		if err != nil {
			writeServiceError(w, r, apperr.Field("start", "must be RFC 3339"))
			return
		}
		err = alloc.DeleteAvailability(r.Context(), chi.URLParam(r, "provider"), chi.URLParam(r, "service"), start)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listServicesHandler(cat catalog.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services, err := cat.ListServices(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if services == nil {
			services = []catalog.Service{}
		}
		writeData(w, http.StatusOK, services)
	}
}

func putServiceHandler(cat catalog.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var svc catalog.Service
		if err := decodeJSON(r, &svc); err != nil {
			writeServiceError(w, r, err)
			return
		}
		svc.ID = strings.TrimSpace(svc.ID)
		if fields := svc.Validate(); fields != nil {
			writeServiceError(w, r, apperr.Validation("invalid service", fields))
			return
		}
		if err := cat.PutService(r.Context(), svc); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, svc)
	}
}

func listPreferencesHandler(cat catalog.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prefs, err := cat.ListPreferences(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, prefs)
	}
}

func putPreferencesHandler(cat catalog.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := cat.GetService(r.Context(), id); err != nil {
			if errors.Is(err, catalog.ErrServiceNotFound) {
				writeServiceError(w, r, apperr.NotFound("service not found"))
				return
			}
			writeServiceError(w, r, err)
			return
		}

		prefs := catalog.DefaultPreferences()
		if err := decodeJSON(r, &prefs); err != nil {
			writeServiceError(w, r, err)
			return
		}
		if err := cat.PutPreferences(r.Context(), id, prefs); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"service_id": id, "preferences": prefs})
	}
}

func listProvidersHandler(cat catalog.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providers, err := cat.ListProviders(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if active, err := strconv.ParseBool(r.URL.Query().Get("active")); err == nil {
			filtered := providers[:0]
			for _, p := range providers {
				if p.Active == active {
					filtered = append(filtered, p)
				}
			}
			providers = filtered
		}
		writeData(w, http.StatusOK, providers)
	}
}

func putProviderHandler(cat catalog.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p catalog.Provider
		if err := decodeJSON(r, &p); err != nil {
			writeServiceError(w, r, err)
			return
		}
		p.ID = chi.URLParam(r, "id")
		if fields := p.Validate(); fields != nil {
			writeServiceError(w, r, apperr.Validation("invalid provider", fields))
			return
		}
		if err := cat.PutProvider(r.Context(), p); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, p)
	}
}

func checkoutHandler(checkout *payment.Checkout) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checkout == nil {
			writeServiceError(w, r, payment.ErrNotConfigured)
			return
		}
		var req CheckoutRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		sess, err := checkout.Start(r.Context(), req.ServiceID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, sess)
	}
}
