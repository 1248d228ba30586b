package strike

import (
	"context"
	"encoding/hex"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	decodepay "github.com/fiatjaf/ln-decodepay"
	"github.com/imroc/req"
	"github.com/lightningnetwork/lnd/queue"
	"github.com/lnmarket/marketd/internal"
	"github.com/lnmarket/marketd/internal/network"
	"github.com/lnmarket/marketd/internal/wallet"
	log "github.com/sirupsen/logrus"
)

var supportedCurrencies = map[string]struct{}{
	"BTC":  {},
	"USD":  {},
	"EUR":  {},
	"USDT": {},
	"GBP":  {},
}

// Status vocabularies are fixed at compile time. Anything Strike returns
// outside of them degrades to pending.
var invoiceStates = map[string]wallet.PaymentState{
	"UNPAID":    wallet.PaymentPending,
	"PENDING":   wallet.PaymentPending,
	"PAID":      wallet.PaymentComplete,
	"CANCELLED": wallet.PaymentFailed,
}

var paymentStates = map[string]wallet.PaymentState{
	"PENDING":   wallet.PaymentPending,
	"COMPLETED": wallet.PaymentComplete,
	"FAILED":    wallet.PaymentFailed,
}

const (
	statusTimeout  = 8 * time.Second
	invoiceTimeout = 40 * time.Second
)

// Wallet adapts the Strike custodial API to the generic wallet contract.
type Wallet struct {
	endpoint string
	currency string
	header   req.Header
	client   *http.Client
	rater    wallet.Rater
	paid     *queue.ConcurrentQueue
}

var _ wallet.Wallet = (*Wallet)(nil)

// New builds a Strike wallet from configuration. It fails fast on missing
// credentials or an unsupported account currency, before any network call.
func New(cfg internal.StrikeConfiguration, rater wallet.Rater) (*Wallet, error) {
	if cfg.ApiEndpoint == "" {
		return nil, fmt.Errorf("cannot initialize strike wallet: missing api endpoint")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("cannot initialize strike wallet: missing token")
	}
	if _, ok := supportedCurrencies[cfg.Currency]; !ok {
		return nil, fmt.Errorf("cannot initialize strike wallet: missing or invalid currency %q", cfg.Currency)
	}

	client, err := network.GetClient()
	if err != nil {
		return nil, err
	}
	// deadlines are set per call; the client-wide timeout would cut the
	// slower invoice operations short
	client.Timeout = 0

	w := &Wallet{
		endpoint: strings.TrimSuffix(cfg.ApiEndpoint, "/") + "/v1",
		currency: cfg.Currency,
		header: req.Header{
			"Content-Type":  "application/json",
			"Accept":        "application/json",
			"Authorization": "Bearer " + cfg.Token,
		},
		client: client,
		rater:  rater,
		paid:   queue.NewConcurrentQueue(16),
	}
	w.paid.Start()
	log.Infof("[Strike] wallet initialized, currency %s", w.currency)
	return w, nil
}

// rateCurrency is the currency used for conversions. Strike quotes USDT
// accounts against USD.
func (w *Wallet) rateCurrency() string {
	if w.currency == "USDT" {
		return "USD"
	}
	return w.currency
}

func (w *Wallet) Status(ctx context.Context) wallet.StatusResponse {
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	resp, err := req.Get(w.endpoint+"/balances", w.header, w.client, ctx)
	if err != nil {
		log.Warnf("[Strike] balances: %v", err)
		return wallet.StatusResponse{ErrorMessage: w.unreachable()}
	}
	if resp.Response().StatusCode >= 300 {
		return wallet.StatusResponse{ErrorMessage: w.errorMessage(resp)}
	}

	var balances []Balance
	if err = resp.ToJSON(&balances); err != nil {
		log.Warnf("[Strike] balances: %v", err)
		return wallet.StatusResponse{ErrorMessage: w.unreachable()}
	}

	for _, balance := range balances {
		if balance.Currency != w.currency {
			continue
		}
		total, err := balance.Total.Float64()
		if err != nil {
			log.Warnf("[Strike] balances: %v", err)
			return wallet.StatusResponse{ErrorMessage: w.unreachable()}
		}
		balanceSat, err := w.btcAmount(total)
		if err != nil {
			return wallet.StatusResponse{ErrorMessage: err.Error()}
		}
		return wallet.StatusResponse{BalanceMsat: balanceSat * 1000}
	}
	return wallet.StatusResponse{ErrorMessage: fmt.Sprintf("No %s balance", w.currency)}
}

func (w *Wallet) CreateInvoice(ctx context.Context, amountSat int64, memo string, descriptionHash []byte) wallet.InvoiceResponse {
	ctx, cancel := context.WithTimeout(ctx, invoiceTimeout)
	defer cancel()

	var amount float64
	if w.currency == "BTC" {
		amount = float64(amountSat) / 100_000_000
	} else {
		fiat, err := w.rater.SatoshisAmountAsFiat(amountSat, w.rateCurrency())
		if err != nil {
			return wallet.InvoiceResponse{ErrorMessage: err.Error()}
		}
		amount = fiat
	}

	payload := InvoiceRequest{
		Description: memo,
		Amount:      InvoiceAmount{Currency: w.currency, Amount: amount},
	}
	resp, err := req.Post(w.endpoint+"/invoices", w.header, w.client, ctx, req.BodyJSON(&payload))
	if err != nil {
		log.Warnf("[Strike] create invoice: %v", err)
		return wallet.InvoiceResponse{ErrorMessage: w.unreachable()}
	}
	if resp.Response().StatusCode >= 300 {
		return wallet.InvoiceResponse{ErrorMessage: w.errorMessage(resp)}
	}
	var invoice Invoice
	if err = resp.ToJSON(&invoice); err != nil {
		log.Warnf("[Strike] create invoice: %v", err)
		return wallet.InvoiceResponse{ErrorMessage: w.unreachable()}
	}

	// A fresh invoice is abstract until quoted; only the quote carries the
	// payable bolt11.
	quotePayload := map[string]string{}
	if len(descriptionHash) > 0 {
		quotePayload["description_hash"] = hex.EncodeToString(descriptionHash)
	}
	resp, err = req.Post(w.endpoint+"/invoices/"+invoice.InvoiceID+"/quote", w.header, w.client, ctx, req.BodyJSON(&quotePayload))
	if err != nil {
		log.Warnf("[Strike] quote invoice: %v", err)
		return wallet.InvoiceResponse{ErrorMessage: w.unreachable()}
	}
	if resp.Response().StatusCode >= 300 {
		return wallet.InvoiceResponse{ErrorMessage: w.errorMessage(resp)}
	}
	var invoiceQuote InvoiceQuote
	if err = resp.ToJSON(&invoiceQuote); err != nil {
		log.Warnf("[Strike] quote invoice: %v", err)
		return wallet.InvoiceResponse{ErrorMessage: w.unreachable()}
	}

	return wallet.InvoiceResponse{
		Ok:             true,
		CheckingID:     invoice.InvoiceID,
		PaymentRequest: invoiceQuote.LnInvoice,
	}
}

// PayInvoice quotes and executes a lightning payment. feeLimitMsat is kept
// for contract uniformity: Strike exposes no fee-cap parameter, so the limit
// is not enforced by the provider.
func (w *Wallet) PayInvoice(ctx context.Context, bolt11 string, feeLimitMsat int64) wallet.PaymentResponse {
	ctx, cancel := context.WithTimeout(ctx, invoiceTimeout)
	defer cancel()

	inv, err := decodepay.Decodepay(bolt11)
	if err != nil {
		return wallet.PaymentResponse{ErrorMessage: fmt.Sprintf("invalid payment request: %v", err)}
	}
	log.Debugf("[Strike] paying %d msat (fee limit %d msat, advisory only)", inv.MSatoshi, feeLimitMsat)

	payload := PaymentQuoteRequest{LnInvoice: bolt11, SourceCurrency: w.currency}
	resp, err := req.Post(w.endpoint+"/payment-quotes/lightning", w.header, w.client, ctx, req.BodyJSON(&payload))
	if err != nil {
		log.Warnf("[Strike] payment quote: %v", err)
		return wallet.PaymentResponse{ErrorMessage: w.unreachable()}
	}
	if resp.Response().StatusCode >= 300 {
		return wallet.PaymentResponse{ErrorMessage: w.errorMessage(resp)}
	}
	var paymentQuote PaymentQuote
	if err = resp.ToJSON(&paymentQuote); err != nil {
		log.Warnf("[Strike] payment quote: %v", err)
		return wallet.PaymentResponse{ErrorMessage: w.unreachable()}
	}

	resp, err = req.Patch(w.endpoint+"/payment-quotes/"+paymentQuote.PaymentQuoteID+"/execute", w.header, w.client, ctx)
	if err != nil {
		log.Warnf("[Strike] execute quote: %v", err)
		return wallet.PaymentResponse{ErrorMessage: w.unreachable()}
	}
	if resp.Response().StatusCode >= 300 {
		return wallet.PaymentResponse{ErrorMessage: w.errorMessage(resp)}
	}
	var payment Payment
	if err = resp.ToJSON(&payment); err != nil {
		log.Warnf("[Strike] execute quote: %v", err)
		return wallet.PaymentResponse{ErrorMessage: w.unreachable()}
	}

	fee, err := payment.TotalFee.Amount.Float64()
	if err != nil {
		fee = 0
	}
	feeSat, err := w.btcAmount(fee)
	if err != nil {
		return wallet.PaymentResponse{ErrorMessage: err.Error()}
	}

	return wallet.PaymentResponse{
		Ok:         true,
		CheckingID: payment.PaymentID,
		FeeMsat:    feeSat * 1000,
	}
}

func (w *Wallet) InvoiceStatus(ctx context.Context, checkingID string) wallet.PaymentStatus {
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	resp, err := req.Get(w.endpoint+"/invoices/"+checkingID, w.header, w.client, ctx)
	if err != nil || resp.Response().StatusCode >= 300 {
		log.Errorf("[Strike] invoice status %s: %v", checkingID, err)
		return wallet.PendingStatus()
	}
	var invoice Invoice
	if err = resp.ToJSON(&invoice); err != nil {
		log.Errorf("[Strike] invoice status %s: %v", checkingID, err)
		return wallet.PendingStatus()
	}
	if state, ok := invoiceStates[invoice.State]; ok {
		return wallet.PaymentStatus{State: state}
	}
	return wallet.PendingStatus()
}

func (w *Wallet) PaymentStatus(ctx context.Context, checkingID string) wallet.PaymentStatus {
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	resp, err := req.Get(w.endpoint+"/payments/"+checkingID, w.header, w.client, ctx)
	if err != nil || resp.Response().StatusCode >= 300 {
		log.Errorf("[Strike] payment status %s: %v", checkingID, err)
		return wallet.PendingStatus()
	}
	var payment Payment
	if err = resp.ToJSON(&payment); err != nil {
		log.Errorf("[Strike] payment status %s: %v", checkingID, err)
		return wallet.PendingStatus()
	}
	if state, ok := paymentStates[payment.State]; ok {
		return wallet.PaymentStatus{State: state}
	}
	return wallet.PendingStatus()
}

// MarkInvoicePaid feeds the paid-invoice stream. It never blocks; the queue
// is unbounded. Typically called from the webhook receiver.
func (w *Wallet) MarkInvoicePaid(checkingID string) {
	w.paid.ChanIn() <- checkingID
}

// PaidInvoices drains the paid-invoice queue one checking id at a time. The
// returned channel blocks when the queue is empty and closes when ctx is
// cancelled.
func (w *Wallet) PaidInvoices(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-w.paid.ChanOut():
				if !ok {
					return
				}
				checkingID, ok := v.(string)
				if !ok {
					continue
				}
				select {
				case out <- checkingID:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Shutdown stops the paid-invoice queue. Items still buffered are dropped,
// so cancel consumers first.
func (w *Wallet) Shutdown() {
	w.paid.Stop()
}

// btcAmount converts a provider amount in the rate currency to satoshis.
func (w *Wallet) btcAmount(amount float64) (int64, error) {
	if w.rateCurrency() == "BTC" {
		return int64(math.Round(amount * 100_000_000)), nil
	}
	return w.rater.FiatAmountAsSatoshis(amount, w.rateCurrency())
}

func (w *Wallet) unreachable() string {
	return fmt.Sprintf("Unable to connect to %s.", w.endpoint)
}

func (w *Wallet) errorMessage(resp *req.Resp) string {
	var apiErr Error
	if err := resp.ToJSON(&apiErr); err == nil && apiErr.Data.Message != "" {
		log.Warnf("[Strike] api error %s: %s", apiErr.Data.Code, apiErr.Data.Message)
		return apiErr.Data.Message
	}
	return w.unreachable()
}
