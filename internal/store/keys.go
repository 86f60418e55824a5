package store

import (
	"fmt"
	"time"
)

// Key layout. Everything a booking transaction touches for one provider lives
// in that provider's partition so it can be locked as a unit.
const (
	ProviderPrefix    = "PROVIDER#"
	ProfilePrefix     = "PROFILE#"
	ServicePrefix     = "SERVICE#"
	AppointmentPrefix = "APPOINTMENT#"

	SlotSKPrefix        = "SLOT#"
	AppointmentSKPrefix = "APPT#"

	CatalogSK     = "v0"
	PreferencesSK = "PREFS"
	LookupSK      = "REF"
)

func ProviderPK(providerID string) string { return ProviderPrefix + providerID }

// ProfilePK holds provider catalog data outside the booking partition so
// listing providers does not scan their appointments.
func ProfilePK(providerID string) string { return ProfilePrefix + providerID }

func ServicePK(serviceID string) string { return ServicePrefix + serviceID }

// AppointmentLookupPK maps an appointment id to its provider partition.
func AppointmentLookupPK(appointmentID string) string { return AppointmentPrefix + appointmentID }

func AppointmentSK(appointmentID string) string { return AppointmentSKPrefix + appointmentID }

// SlotSK orders slots by start time within a provider partition.
func SlotSK(start time.Time, serviceID string) string {
	return fmt.Sprintf("%s%s#%s", SlotSKPrefix, start.UTC().Format(time.RFC3339), serviceID)
}
