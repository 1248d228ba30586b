package wallet

import "context"

// Wallet is the funding-source contract every payment provider adapter has
// to satisfy. Callers branch on the returned response values; adapters never
// panic or leak provider errors past this boundary.
type Wallet interface {
	// Status returns the current custodial balance in millisatoshi.
	Status(ctx context.Context) StatusResponse

	// CreateInvoice creates a payable invoice over amountSat satoshi.
	// descriptionHash may be nil.
	CreateInvoice(ctx context.Context, amountSat int64, memo string, descriptionHash []byte) InvoiceResponse

	// PayInvoice pays a bolt11 payment request. feeLimitMsat is a
	// caller-supplied ceiling; whether it is enforced depends on the
	// provider.
	PayInvoice(ctx context.Context, bolt11 string, feeLimitMsat int64) PaymentResponse

	// InvoiceStatus polls an inbound invoice by its checking id.
	InvoiceStatus(ctx context.Context, checkingID string) PaymentStatus

	// PaymentStatus polls an outbound payment by its checking id.
	PaymentStatus(ctx context.Context, checkingID string) PaymentStatus

	// PaidInvoices returns a stream of checking ids of invoices that were
	// confirmed paid. The stream blocks when empty and ends only when ctx
	// is cancelled.
	PaidInvoices(ctx context.Context) <-chan string
}

// Rater converts between fiat amounts and satoshis. Rates may be stale or
// approximate; adapters forward them as-is.
type Rater interface {
	FiatAmountAsSatoshis(amount float64, currency string) (int64, error)
	SatoshisAmountAsFiat(amountSat int64, currency string) (float64, error)
}
