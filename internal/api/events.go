package api

import (
	"encoding/json"
	"net/http"

	"github.com/r3labs/sse"
	log "github.com/sirupsen/logrus"
)

// PaidInvoiceStream is the SSE stream external reconcilers subscribe to.
const PaidInvoiceStream = "paid-invoices"

type PaidInvoiceEvent struct {
	CheckingID string `json:"checking_id"`
}

// EventService relays paid-invoice confirmations to SSE subscribers.
type EventService struct {
	server *sse.Server
}

func NewEventService() *EventService {
	server := sse.New()
	server.AutoReplay = false
	server.CreateStream(PaidInvoiceStream)
	return &EventService{server: server}
}

// Handler serves the SSE subscription endpoint; clients pick the stream with
// the ?stream= query parameter.
func (s *EventService) Handler() http.HandlerFunc {
	return s.server.HTTPHandler
}

func (s *EventService) PublishPaidInvoice(checkingID string) {
	payload, err := json.Marshal(PaidInvoiceEvent{CheckingID: checkingID})
	if err != nil {
		log.Errorf("[events] marshal paid invoice %s: %v", checkingID, err)
		return
	}
	s.server.Publish(PaidInvoiceStream, &sse.Event{Data: payload})
	log.Debugf("[events] published paid invoice %s", checkingID)
}

func (s *EventService) Close() {
	s.server.Close()
}
