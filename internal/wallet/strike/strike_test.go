package strike

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lnmarket/marketd/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedRater converts at a constant price so conversions are predictable.
type fixedRater struct {
	price float64
}

func (r fixedRater) FiatAmountAsSatoshis(amount float64, currency string) (int64, error) {
	return int64(amount / r.price * 100_000_000), nil
}

func (r fixedRater) SatoshisAmountAsFiat(amountSat int64, currency string) (float64, error) {
	return float64(amountSat) / 100_000_000 * r.price, nil
}

func newTestWallet(t *testing.T, handler http.Handler, currency string) (*Wallet, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	w, err := New(internal.StrikeConfiguration{
		ApiEndpoint: server.URL,
		Token:       "test-token",
		Currency:    currency,
	}, fixedRater{price: 50_000})
	require.NoError(t, err)
	t.Cleanup(w.Shutdown)
	return w, server
}

func TestNewValidation(t *testing.T) {
	rater := fixedRater{price: 50_000}

	_, err := New(internal.StrikeConfiguration{Token: "x", Currency: "BTC"}, rater)
	assert.Error(t, err)

	_, err = New(internal.StrikeConfiguration{ApiEndpoint: "https://api.strike.me", Currency: "BTC"}, rater)
	assert.Error(t, err)

	_, err = New(internal.StrikeConfiguration{ApiEndpoint: "https://api.strike.me", Token: "x", Currency: "DOGE"}, rater)
	assert.Error(t, err)

	w, err := New(internal.StrikeConfiguration{ApiEndpoint: "https://api.strike.me", Token: "x", Currency: "USDT"}, rater)
	require.NoError(t, err)
	defer w.Shutdown()
	assert.Equal(t, "USD", w.rateCurrency())
}

func TestStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/balances", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"currency": "USD", "total": "12.50"},
			{"currency": "BTC", "total": "0.005"},
		})
	})
	w, _ := newTestWallet(t, mux, "BTC")

	status := w.Status(context.Background())
	require.Empty(t, status.ErrorMessage)
	// 0.005 BTC = 500_000 sat
	assert.Equal(t, int64(500_000_000), status.BalanceMsat)
}

func TestStatusNoBalance(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/balances", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"currency": "USD", "total": "12.50"},
		})
	})
	w, _ := newTestWallet(t, mux, "BTC")

	status := w.Status(context.Background())
	assert.Equal(t, "No BTC balance", status.ErrorMessage)
	assert.Equal(t, int64(0), status.BalanceMsat)
}

func TestStatusUnreachable(t *testing.T) {
	w, err := New(internal.StrikeConfiguration{
		ApiEndpoint: "http://127.0.0.1:1",
		Token:       "test-token",
		Currency:    "BTC",
	}, fixedRater{price: 50_000})
	require.NoError(t, err)
	defer w.Shutdown()

	status := w.Status(context.Background())
	assert.Contains(t, status.ErrorMessage, "Unable to connect")
}

func TestCreateInvoice(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/invoices", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test", body["description"])
		amount := body["amount"].(map[string]interface{})
		assert.Equal(t, "BTC", amount["currency"])
		assert.InDelta(t, 0.00001, amount["amount"], 1e-12)
		json.NewEncoder(w).Encode(map[string]string{"invoiceId": "abc"})
	})
	mux.HandleFunc("/v1/invoices/abc/quote", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"lnInvoice": "lnbc1..."})
	})
	w, _ := newTestWallet(t, mux, "BTC")

	invoice := w.CreateInvoice(context.Background(), 1000, "test", nil)
	require.True(t, invoice.Ok, invoice.ErrorMessage)
	assert.Equal(t, "abc", invoice.CheckingID)
	assert.Equal(t, "lnbc1...", invoice.PaymentRequest)
}

func TestCreateInvoiceWithDescriptionHash(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/invoices", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"invoiceId": "abc"})
	})
	mux.HandleFunc("/v1/invoices/abc/quote", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cafe", body["description_hash"])
		json.NewEncoder(w).Encode(map[string]string{"lnInvoice": "lnbc1..."})
	})
	w, _ := newTestWallet(t, mux, "BTC")

	invoice := w.CreateInvoice(context.Background(), 1000, "", []byte{0xca, 0xfe})
	require.True(t, invoice.Ok, invoice.ErrorMessage)
}

func TestCreateInvoiceFiatCurrency(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/invoices", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		amount := body["amount"].(map[string]interface{})
		assert.Equal(t, "USD", amount["currency"])
		// 100_000 sat at 50_000 USD/BTC = 50 USD
		assert.InDelta(t, 50.0, amount["amount"], 1e-9)
		json.NewEncoder(w).Encode(map[string]string{"invoiceId": "usd1"})
	})
	mux.HandleFunc("/v1/invoices/usd1/quote", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"lnInvoice": "lnbc..."})
	})
	w, _ := newTestWallet(t, mux, "USD")

	invoice := w.CreateInvoice(context.Background(), 100_000, "usd invoice", nil)
	require.True(t, invoice.Ok, invoice.ErrorMessage)
}

func TestCreateInvoiceProviderError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/invoices", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"status": 422, "code": "INVALID_DATA", "message": "Invalid amount"},
		})
	})
	w, _ := newTestWallet(t, mux, "BTC")

	invoice := w.CreateInvoice(context.Background(), 1000, "test", nil)
	assert.False(t, invoice.Ok)
	assert.Equal(t, "Invalid amount", invoice.ErrorMessage)
}

func TestPayInvoiceRejectsGarbage(t *testing.T) {
	w, _ := newTestWallet(t, http.NewServeMux(), "BTC")

	payment := w.PayInvoice(context.Background(), "notaninvoice", 1000)
	assert.False(t, payment.Ok)
	assert.Contains(t, payment.ErrorMessage, "invalid payment request")
}

func TestInvoiceStatusMapping(t *testing.T) {
	states := map[string]string{
		"inv-unpaid":    "UNPAID",
		"inv-pending":   "PENDING",
		"inv-paid":      "PAID",
		"inv-cancelled": "CANCELLED",
		"inv-weird":     "SOMETHING_NEW",
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/invoices/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/v1/invoices/"):]
		state, ok := states[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"invoiceId": id, "state": state})
	})
	w, _ := newTestWallet(t, mux, "BTC")
	ctx := context.Background()

	assert.True(t, w.InvoiceStatus(ctx, "inv-unpaid").Pending())
	assert.True(t, w.InvoiceStatus(ctx, "inv-pending").Pending())
	assert.True(t, w.InvoiceStatus(ctx, "inv-paid").Paid())
	assert.True(t, w.InvoiceStatus(ctx, "inv-cancelled").Failed())
	// unknown vocabulary degrades to pending, never to failed
	assert.True(t, w.InvoiceStatus(ctx, "inv-weird").Pending())
	// provider error degrades to pending as well
	assert.True(t, w.InvoiceStatus(ctx, "inv-missing").Pending())
}

func TestInvoiceStatusUnreachableIsPending(t *testing.T) {
	w, err := New(internal.StrikeConfiguration{
		ApiEndpoint: "http://127.0.0.1:1",
		Token:       "test-token",
		Currency:    "BTC",
	}, fixedRater{price: 50_000})
	require.NoError(t, err)
	defer w.Shutdown()

	status := w.InvoiceStatus(context.Background(), "inv-1")
	assert.True(t, status.Pending())
	assert.False(t, status.Failed())
}

func TestPaymentStatusMapping(t *testing.T) {
	states := map[string]string{
		"pay-pending":   "PENDING",
		"pay-completed": "COMPLETED",
		"pay-failed":    "FAILED",
		"pay-weird":     "HELD",
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/payments/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/v1/payments/"):]
		state, ok := states[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"paymentId": id, "state": state})
	})
	w, _ := newTestWallet(t, mux, "BTC")
	ctx := context.Background()

	assert.True(t, w.PaymentStatus(ctx, "pay-pending").Pending())
	assert.True(t, w.PaymentStatus(ctx, "pay-completed").Paid())
	assert.True(t, w.PaymentStatus(ctx, "pay-failed").Failed())
	assert.True(t, w.PaymentStatus(ctx, "pay-weird").Pending())
	assert.True(t, w.PaymentStatus(ctx, "pay-missing").Pending())
}

func TestBtcAmountRoundTrip(t *testing.T) {
	w, _ := newTestWallet(t, http.NewServeMux(), "BTC")

	for _, sats := range []int64{1, 1000, 123_456_789, 100_000_000} {
		btc := float64(sats) / 100_000_000
		got, err := w.btcAmount(btc)
		require.NoError(t, err)
		assert.Equal(t, sats, got)
	}

	got, err := w.btcAmount(0.00000001)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestPaidInvoicesStream(t *testing.T) {
	w, _ := newTestWallet(t, http.NewServeMux(), "BTC")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := w.PaidInvoices(ctx)

	// producers never block, even with no consumer ready
	w.MarkInvoicePaid("inv-1")
	w.MarkInvoicePaid("inv-2")

	assert.Equal(t, "inv-1", <-stream)
	assert.Equal(t, "inv-2", <-stream)

	// stream ends on shutdown, not on queue exhaustion
	select {
	case id := <-stream:
		t.Fatalf("unexpected value %q", id)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case _, ok := <-stream:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("stream did not close on cancellation")
	}
}
