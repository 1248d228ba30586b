package api

import (
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/lnmarket/marketd/internal/wallet"
	log "github.com/sirupsen/logrus"
)

type CreateInvoiceRequest struct {
	Memo            string `json:"memo"`
	Amount          int64  `json:"amount"`
	DescriptionHash string `json:"description_hash"`
}

type PayInvoiceRequest struct {
	PayRequest   string `json:"pay_request"`
	FeeLimitMsat int64  `json:"fee_limit_msat"`
}

type InvoiceStatusResponse struct {
	CheckingID string `json:"checking_id"`
	State      string `json:"state"`
	Paid       bool   `json:"paid"`
}

// WalletService exposes the funding source over HTTP for the marketplace
// frontends and for operators poking at the instance.
type WalletService struct {
	wallet wallet.Wallet
}

func NewWalletService(w wallet.Wallet) *WalletService {
	return &WalletService{wallet: w}
}

func (s *WalletService) Balance(writer http.ResponseWriter, request *http.Request) {
	status := s.wallet.Status(request.Context())
	if status.Failed() {
		writer.WriteHeader(http.StatusBadGateway)
	}
	WriteResponse(writer, status)
}

func (s *WalletService) CreateInvoice(writer http.ResponseWriter, request *http.Request) {
	createInvoiceRequest := CreateInvoiceRequest{}
	err := json.NewDecoder(request.Body).Decode(&createInvoiceRequest)
	if err != nil || createInvoiceRequest.Amount <= 0 {
		log.Warnf("[api] invalid invoice request: %v", err)
		writer.WriteHeader(http.StatusBadRequest)
		return
	}
	var descriptionHash []byte
	if createInvoiceRequest.DescriptionHash != "" {
		descriptionHash, err = hex.DecodeString(createInvoiceRequest.DescriptionHash)
		if err != nil {
			writer.WriteHeader(http.StatusBadRequest)
			return
		}
	}
	invoice := s.wallet.CreateInvoice(request.Context(), createInvoiceRequest.Amount, createInvoiceRequest.Memo, descriptionHash)
	if !invoice.Ok {
		writer.WriteHeader(http.StatusBadGateway)
	}
	WriteResponse(writer, invoice)
}

func (s *WalletService) PayInvoice(writer http.ResponseWriter, request *http.Request) {
	payInvoiceRequest := PayInvoiceRequest{}
	err := json.NewDecoder(request.Body).Decode(&payInvoiceRequest)
	if err != nil || payInvoiceRequest.PayRequest == "" {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}
	payment := s.wallet.PayInvoice(request.Context(), payInvoiceRequest.PayRequest, payInvoiceRequest.FeeLimitMsat)
	if !payment.Ok {
		writer.WriteHeader(http.StatusBadGateway)
	}
	WriteResponse(writer, payment)
}

func (s *WalletService) InvoiceStatus(writer http.ResponseWriter, request *http.Request) {
	checkingID := mux.Vars(request)["checking_id"]
	status := s.wallet.InvoiceStatus(request.Context(), checkingID)
	WriteResponse(writer, InvoiceStatusResponse{
		CheckingID: checkingID,
		State:      status.State.String(),
		Paid:       status.Paid(),
	})
}
