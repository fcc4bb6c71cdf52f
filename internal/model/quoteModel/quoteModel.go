package quoteModel

// RawQuote mirrors the provider's JSON payload. LatestPrice is a pointer
// because the provider omits it for halted or unknown instruments.
type RawQuote struct {
	Symbol      string   `json:"symbol"`
	CompanyName string   `json:"companyName"`
	LatestPrice *float64 `json:"latestPrice"`
}
