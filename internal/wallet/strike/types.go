package strike

import "encoding/json"

// Wire types for the Strike REST API (https://docs.strike.me/). These never
// leak past the adapter.

type Balance struct {
	Currency  string      `json:"currency"`
	Total     json.Number `json:"total"`
	Available json.Number `json:"available"`
}

type CurrencyAmount struct {
	Currency string      `json:"currency"`
	Amount   json.Number `json:"amount"`
}

type InvoiceRequest struct {
	Description string        `json:"description,omitempty"`
	Amount      InvoiceAmount `json:"amount"`
}

type InvoiceAmount struct {
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

type Invoice struct {
	InvoiceID string `json:"invoiceId"`
	State     string `json:"state"`
}

type InvoiceQuote struct {
	QuoteID    string `json:"quoteId"`
	LnInvoice  string `json:"lnInvoice"`
	Expiration string `json:"expiration"`
}

type PaymentQuoteRequest struct {
	LnInvoice      string `json:"lnInvoice"`
	SourceCurrency string `json:"sourceCurrency"`
}

type PaymentQuote struct {
	PaymentQuoteID string         `json:"paymentQuoteId"`
	TotalFee       CurrencyAmount `json:"totalFee"`
}

type Payment struct {
	PaymentID string         `json:"paymentId"`
	State     string         `json:"state"`
	TotalFee  CurrencyAmount `json:"totalFee"`
}

// Error is Strike's structured error body. It satisfies the error interface
// so callers of the client helpers can treat it like any other failure.
type Error struct {
	Data struct {
		Status  int    `json:"status"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"data"`
}

func (err Error) Error() string {
	return err.Data.Message
}
