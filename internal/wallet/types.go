package wallet

// StatusResponse reports the custodial balance. ErrorMessage is set only on
// failure, in which case BalanceMsat is zero.
type StatusResponse struct {
	ErrorMessage string `json:"error_message,omitempty"`
	BalanceMsat  int64  `json:"balance_msat"`
}

func (s StatusResponse) Failed() bool {
	return s.ErrorMessage != ""
}

// InvoiceResponse is the result of creating an invoice. Ok implies both
// CheckingID and PaymentRequest are set; !Ok implies ErrorMessage is set.
type InvoiceResponse struct {
	Ok             bool   `json:"ok"`
	CheckingID     string `json:"checking_id,omitempty"`
	PaymentRequest string `json:"payment_request,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

// PaymentResponse is the result of paying an invoice.
type PaymentResponse struct {
	Ok           bool   `json:"ok"`
	CheckingID   string `json:"checking_id,omitempty"`
	FeeMsat      int64  `json:"fee_msat,omitempty"`
	Preimage     string `json:"preimage,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// PaymentState is the tri-state outcome of a status poll. Pending means
// indeterminate and must be retried; Failed is terminal and must only be
// reported when the provider explicitly says so.
type PaymentState int

const (
	PaymentPending PaymentState = iota
	PaymentComplete
	PaymentFailed
)

func (s PaymentState) String() string {
	switch s {
	case PaymentComplete:
		return "complete"
	case PaymentFailed:
		return "failed"
	default:
		return "pending"
	}
}

// PaymentStatus wraps the tri-state so callers read intent, not iota values.
type PaymentStatus struct {
	State PaymentState `json:"state"`
}

func (s PaymentStatus) Paid() bool    { return s.State == PaymentComplete }
func (s PaymentStatus) Pending() bool { return s.State == PaymentPending }
func (s PaymentStatus) Failed() bool  { return s.State == PaymentFailed }

// PendingStatus is the safe default for transport errors and unrecognized
// provider vocabularies.
func PendingStatus() PaymentStatus  { return PaymentStatus{State: PaymentPending} }
func CompleteStatus() PaymentStatus { return PaymentStatus{State: PaymentComplete} }
func FailedStatus() PaymentStatus   { return PaymentStatus{State: PaymentFailed} }
