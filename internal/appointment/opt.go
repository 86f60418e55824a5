package appointment

import "encoding/json"

// Opt is a field that may be absent from an update. Set is true whenever
// the key appeared in the JSON body, even with a null value.
type Opt[T any] struct {
	Set   bool
	Value T
}

func Some[T any](v T) Opt[T] {
	return Opt[T]{Set: true, Value: v}
}

func (o *Opt[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		var zero T
		o.Value = zero
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

// UpdateCommand lists the fields an update may touch.
type UpdateCommand struct {
	PatientName      Opt[string]        `json:"patient_name"`
	PatientEmail     Opt[string]        `json:"patient_email"`
	PatientPhone     Opt[string]        `json:"patient_mobile"`
	Notes            Opt[string]        `json:"notes"`
	PaymentReference Opt[string]        `json:"payment_reference"`
	Status           Opt[Status]        `json:"status"`
	PaymentStatus    Opt[PaymentStatus] `json:"payment_status"`
	Actor            string             `json:"actor"`
}
