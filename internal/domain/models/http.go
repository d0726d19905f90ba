package models

// Requests for the scanner HTTP endpoints. Defined in domain for consistency and reuse.

type CandlesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	TF     string `query:"tf" json:"tf" default:"1h" validate:"oneof=1h 4h 1d"`
	Limit  int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=10000"`
}

type ReportRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required"`
}

type ScanTriggerRequest struct {
	FullRefresh bool `query:"full_refresh" json:"full_refresh"`
}
