package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/sales"
)

const dateLayout = "2006-01-02"

// parseTimeParam accepts RFC 3339 or a bare date read in loc. A bare date
// used as an upper bound covers the whole day.
func parseTimeParam(field, v string, loc *time.Location, endOfDay bool) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	d, err := time.ParseInLocation(dateLayout, v, loc)
	if err != nil {
		return time.Time{}, apperr.Field(field, "must be RFC 3339 or YYYY-MM-DD")
	}
	if endOfDay {
		d = d.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return d, nil
}

func listFilterFromQuery(r *http.Request, loc *time.Location) (appointment.ListFilter, error) {
	q := r.URL.Query()
	start, err := parseTimeParam("start", q.Get("start"), loc, false)
	if err != nil {
		return appointment.ListFilter{}, err
	}
	end, err := parseTimeParam("end", q.Get("end"), loc, true)
	if err != nil {
		return appointment.ListFilter{}, err
	}
	return appointment.ListFilter{
		Start:         start,
		End:           end,
		ServiceID:     q.Get("service_id"),
		ProviderID:    q.Get("provider_id"),
		Status:        appointment.Status(q.Get("status")),
		PaymentStatus: appointment.PaymentStatus(q.Get("payment_status")),
		Search:        q.Get("search"),
	}, nil
}

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}

		appt, err := svc.Create(r.Context(), appointment.CreateInput{
			ID:                 req.ID,
			ServiceID:          req.ServiceID,
			ProviderID:         req.ProviderID,
			RegionCode:         req.RegionCode,
			StartTime:          req.StartTime,
			EndTime:            derefTime(req.EndTime),
			Timezone:           req.Timezone,
			PatientName:        req.PatientName,
			PatientEmail:       req.PatientEmail,
			PatientPhone:       req.PatientMobile,
			TextConsent:        req.TextConsent,
			PaymentAmountCents: req.PaymentAmount.ptr(),
			PaymentCurrency:    req.PaymentCurrency,
			PaymentReference:   req.PaymentReference,
			Notes:              req.Notes,
			RequestedBy:        req.RequestedBy,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeData(w, http.StatusCreated, appt)
	}
}

func listAppointmentsHandler(svc *appointment.Service, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := listFilterFromQuery(r, loc)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		appts, err := svc.List(r.Context(), f)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, AppointmentListResponse{
			Appointments: appts,
			Summary:      sales.Summarize(appts, sales.Range{}, sales.Options{Location: loc}),
		})
	}
}

func appointmentSummaryHandler(svc *appointment.Service, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := listFilterFromQuery(r, loc)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		appts, err := svc.List(r.Context(), f)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, sales.Summarize(appts, sales.Range{}, sales.Options{Location: loc}))
	}
}

func salesStatsHandler(svc *appointment.Service, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		start, err := parseTimeParam("start", q.Get("start"), loc, false)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		end, err := parseTimeParam("end", q.Get("end"), loc, true)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		strict := false
		switch strings.ToLower(q.Get("strict")) {
		case "1", "true", "yes":
			strict = true
		}

		appts, err := svc.List(r.Context(), appointment.ListFilter{})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, sales.Summarize(appts,
			sales.Range{Start: start, End: end},
			sales.Options{Location: loc, Strict: strict}))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, err := svc.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, appt)
	}
}

func updateAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cmd appointment.UpdateCommand
		if err := decodeJSON(r, &cmd); err != nil {
			writeServiceError(w, r, err)
			return
		}
		appt, err := svc.Update(r.Context(), chi.URLParam(r, "id"), cmd)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, appt)
	}
}

func deleteAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("actor")); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CancelRequest
		// An empty body cancels with the defaults.
		if r.ContentLength != 0 {
			if err := decodeJSON(r, &req); err != nil {
				writeServiceError(w, r, err)
				return
			}
		}
		appt, err := svc.Cancel(r.Context(), chi.URLParam(r, "id"), appointment.CancelInput{
			Actor:  req.Actor,
			Reason: req.Reason,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, appt)
	}
}

func rescheduleAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RescheduleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		appt, err := svc.Reschedule(r.Context(), chi.URLParam(r, "id"), appointment.RescheduleInput{
			NewStart: req.NewStartTime,
			NewEnd:   derefTime(req.NewEndTime),
			Actor:    req.Actor,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, appt)
	}
}

func refundAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RefundRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		if !req.Amount.Set {
			writeServiceError(w, r, apperr.Field("amount", "is required"))
			return
		}
		appt, err := svc.Refund(r.Context(), chi.URLParam(r, "id"), appointment.RefundInput{
			AmountCents: req.Amount.Cents,
			Reason:      req.Reason,
			Actor:       req.Actor,
			RefundID:    req.RefundID,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, appt)
	}
}

func recordNotificationHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req NotificationRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		appt, err := svc.RecordNotification(r.Context(), chi.URLParam(r, "id"), appointment.RecordNotificationInput{
			Type:      req.Type,
			Channels:  req.Channels,
			Recipient: req.Recipient,
			Status:    appointment.NotificationStatus(req.Status),
			Message:   req.Message,
			Reference: req.Reference,
			ErrorCode: req.ErrorCode,
			Force:     req.Force,
			Actor:     req.Actor,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, appt)
	}
}

func resendNotificationHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ResendRequest
		if r.ContentLength != 0 {
			if err := decodeJSON(r, &req); err != nil {
				writeServiceError(w, r, err)
				return
			}
		}
		appt, err := svc.ResendNotification(r.Context(), chi.URLParam(r, "id"), appointment.ResendInput{
			Type:      req.Type,
			Channels:  req.Channels,
			Recipient: req.Recipient,
			Actor:     req.Actor,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, appt)
	}
}

func openSlotsHandler(svc *appointment.Service, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		fields := map[string]string{}
		serviceID := strings.TrimSpace(q.Get("service_id"))
		if serviceID == "" {
			fields["service_id"] = "is required"
		}
		date, err := time.ParseInLocation(dateLayout, q.Get("date"), loc)
		if err != nil {
			fields["date"] = "must be YYYY-MM-DD"
		}
		if len(fields) > 0 {
			writeServiceError(w, r, apperr.Validation("invalid slot query", fields))
			return
		}

		slots, err := svc.OpenSlots(r.Context(), serviceID, date)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, slots)
	}
}
