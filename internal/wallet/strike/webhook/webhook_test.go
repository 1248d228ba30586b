package webhook

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/lnmarket/marketd/internal/storage"
	"github.com/lnmarket/marketd/internal/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource reports a fixed set of settled invoices and records what was
// forwarded to the paid stream.
type fakeSource struct {
	mu      sync.Mutex
	settled map[string]bool
	marked  []string
}

func (f *fakeSource) InvoiceStatus(ctx context.Context, checkingID string) wallet.PaymentStatus {
	if f.settled[checkingID] {
		return wallet.CompleteStatus()
	}
	return wallet.PendingStatus()
}

func (f *fakeSource) MarkInvoicePaid(checkingID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, checkingID)
}

func (f *fakeSource) markedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.marked...)
}

func newWebhookServer(t *testing.T, source Source) *httptest.Server {
	t.Helper()
	bunt := storage.NewBunt(filepath.Join(t.TempDir(), "webhook.db"))
	t.Cleanup(func() { bunt.Close() })
	w := &Server{secret: "hook-secret", source: source, bunt: bunt}
	server := httptest.NewServer(w.newRouter())
	t.Cleanup(server.Close)
	return server
}

func post(t *testing.T, server *httptest.Server, token, body string) *http.Response {
	t.Helper()
	request, err := http.NewRequest(http.MethodPost, server.URL+"/webhook/strike", bytes.NewBufferString(body))
	require.NoError(t, err)
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	response.Body.Close()
	return response
}

func TestReceiveRequiresAuth(t *testing.T) {
	source := &fakeSource{settled: map[string]bool{"inv-1": true}}
	server := newWebhookServer(t, source)

	response := post(t, server, "", `{"eventType":"invoice.updated","data":{"entityId":"inv-1"}}`)
	assert.Equal(t, 401, response.StatusCode)

	response = post(t, server, "wrong", `{"eventType":"invoice.updated","data":{"entityId":"inv-1"}}`)
	assert.Equal(t, 401, response.StatusCode)

	assert.Empty(t, source.markedIDs())
}

func TestReceiveForwardsSettledInvoiceOnce(t *testing.T) {
	source := &fakeSource{settled: map[string]bool{"inv-1": true}}
	server := newWebhookServer(t, source)

	body := `{"eventType":"invoice.updated","data":{"entityId":"inv-1","changes":["state"]}}`
	response := post(t, server, "hook-secret", body)
	assert.Equal(t, 200, response.StatusCode)

	// redelivery of the same event is deduped
	response = post(t, server, "hook-secret", body)
	assert.Equal(t, 200, response.StatusCode)

	assert.Equal(t, []string{"inv-1"}, source.markedIDs())
}

func TestReceiveIgnoresUnsettledInvoice(t *testing.T) {
	source := &fakeSource{settled: map[string]bool{}}
	server := newWebhookServer(t, source)

	response := post(t, server, "hook-secret", `{"eventType":"invoice.updated","data":{"entityId":"inv-2"}}`)
	assert.Equal(t, 200, response.StatusCode)
	assert.Empty(t, source.markedIDs())
}

func TestReceiveIgnoresOtherEvents(t *testing.T) {
	source := &fakeSource{settled: map[string]bool{"inv-1": true}}
	server := newWebhookServer(t, source)

	response := post(t, server, "hook-secret", `{"eventType":"payment.updated","data":{"entityId":"inv-1"}}`)
	assert.Equal(t, 200, response.StatusCode)
	assert.Empty(t, source.markedIDs())
}
