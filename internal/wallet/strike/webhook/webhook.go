package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/lnmarket/marketd/internal/api"
	"github.com/lnmarket/marketd/internal/runtime"
	"github.com/lnmarket/marketd/internal/storage"
	"github.com/lnmarket/marketd/internal/wallet"
	log "github.com/sirupsen/logrus"
)

// Source is the part of the Strike wallet the webhook needs: verification of
// the reported invoice and the producer side of the paid stream.
type Source interface {
	InvoiceStatus(ctx context.Context, checkingID string) wallet.PaymentStatus
	MarkInvoicePaid(checkingID string)
}

type Server struct {
	httpServer *http.Server
	secret     string
	source     Source
	bunt       *storage.DB
}

// Event is the subscription payload Strike posts on entity changes.
type Event struct {
	ID              string `json:"id"`
	EventType       string `json:"eventType"`
	WebhookVersion  string `json:"webhookVersion"`
	Created         string `json:"created"`
	DeliverySuccess bool   `json:"deliverySuccess"`
	Data            Entity `json:"data"`
}

type Entity struct {
	EntityID string   `json:"entityId"`
	Changes  []string `json:"changes"`
}

// PaidEvent is the dedupe record: one per checking id ever forwarded.
type PaidEvent struct {
	*storage.Base
	CheckingID string `json:"checking_id"`
}

func NewServer(address, secret string, source Source, bunt *storage.DB) *Server {
	srv := &http.Server{
		Addr: address,
		// Good practice: enforce timeouts for servers you create!
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
	webhookServer := &Server{
		httpServer: srv,
		secret:     secret,
		source:     source,
		bunt:       bunt,
	}
	webhookServer.httpServer.Handler = webhookServer.newRouter()
	go webhookServer.httpServer.ListenAndServe()
	log.Infof("[Webhook] Server started at %s", address)
	return webhookServer
}

func (w *Server) newRouter() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/webhook/strike", api.LoggingMiddleware("Webhook", api.BearerAuthMiddleware(w.secret, w.receive))).Methods(http.MethodPost)
	return router
}

// receive turns invoice.updated events into paid-stream entries. The webhook
// is only a hint: the invoice state is re-checked against the provider before
// anything is forwarded, and every checking id is forwarded at most once.
func (w *Server) receive(writer http.ResponseWriter, request *http.Request) {
	event := Event{}
	// need to delete the header otherwise the Decode will fail
	request.Header.Del("content-length")
	err := json.NewDecoder(request.Body).Decode(&event)
	if err != nil {
		writer.WriteHeader(400)
		return
	}
	if event.EventType != "invoice.updated" || event.Data.EntityID == "" {
		writer.WriteHeader(200)
		return
	}
	checkingID := event.Data.EntityID

	runtime.Lock(checkingID)
	defer runtime.Unlock(checkingID)

	paid := &PaidEvent{Base: storage.New(storage.ID("paid-invoice:" + checkingID)), CheckingID: checkingID}
	if _, err = paid.Base.Get(paid, w.bunt); err == nil {
		log.Debugf("[Webhook] invoice %s already handled", checkingID)
		writer.WriteHeader(200)
		return
	}

	status := w.source.InvoiceStatus(request.Context(), checkingID)
	if !status.Paid() {
		log.Debugf("[Webhook] invoice %s not settled yet (%s)", checkingID, status.State)
		writer.WriteHeader(200)
		return
	}

	if err = paid.Base.Set(paid, w.bunt); err != nil {
		log.Errorf("[Webhook] could not store paid event %s: %v", checkingID, err)
	}
	w.source.MarkInvoicePaid(checkingID)
	log.Infof("[⚡️ Webhook] invoice %s settled", checkingID)
	writer.WriteHeader(200)
}
