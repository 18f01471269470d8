package models

// Requests for the RSI HTTP endpoints. Defined in domain for consistency and reuse.

type InstrumentRSIRequest struct {
	Instrument string `param:"instrument" json:"instrument" validate:"required,max=64"`
	TF         string `query:"tf" json:"tf" validate:"omitempty,max=8"`
}
