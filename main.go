package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/lnmarket/marketd/internal"
	"github.com/lnmarket/marketd/internal/api"
	"github.com/lnmarket/marketd/internal/chat"
	"github.com/lnmarket/marketd/internal/price"
	"github.com/lnmarket/marketd/internal/storage"
	"github.com/lnmarket/marketd/internal/wallet/strike"
	"github.com/lnmarket/marketd/internal/wallet/strike/webhook"

	log "github.com/sirupsen/logrus"
)

// setLogger will initialize the log format
func setLogger() {
	log.SetLevel(log.DebugLevel)
	customFormatter := new(log.TextFormatter)
	customFormatter.TimestampFormat = "2006-01-02 15:04:05"
	customFormatter.FullTimestamp = true
	log.SetFormatter(customFormatter)
}

func main() {
	// set logger
	setLogger()

	defer withRecovery()
	internal.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher := price.NewPriceWatcher("USD", "EUR", "GBP")
	watcher.Start()

	strikeWallet, err := strike.New(internal.Configuration.Strike, watcher)
	if err != nil {
		log.Fatalf("could not initialize wallet: %v", err)
	}

	bunt := storage.NewBunt(internal.Configuration.Database.BuntDbPath)
	db, err := chat.OpenDatabase(internal.Configuration.Database.DbPath)
	if err != nil {
		log.Fatalf("could not open database: %v", err)
	}
	store, err := chat.NewStore(db)
	if err != nil {
		log.Fatalf("could not migrate database: %v", err)
	}

	events := api.NewEventService()
	chatService := chat.NewService(chat.NewNotifier(), store)
	walletService := api.NewWalletService(strikeWallet)

	startMarketServer(chatService, walletService, events)

	// internal webhook server, fed by the Strike subscription
	webhook.NewServer(internal.Configuration.Market.AdminHost, internal.Configuration.Strike.WebhookSecret, strikeWallet, bunt)

	// drain confirmed payments into the reconciler-facing SSE stream
	go func() {
		for checkingID := range strikeWallet.PaidInvoices(ctx) {
			log.Infof("[Reconcile] invoice %s paid", checkingID)
			events.PublishPaidInvoice(checkingID)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	strikeWallet.Shutdown()
	events.Close()
}

func startMarketServer(chatService *chat.Service, walletService *api.WalletService, events *api.EventService) {
	s := api.NewServer(internal.Configuration.Market.Host)

	// order chat
	s.AppendRoute("/market/ws/{room_name}", chatService.Handle)
	s.AppendRoute("/market/api/v1/chat/messages/{room_name}", chatService.GetMessages, http.MethodGet)

	// wallet surface
	s.AppendRoute("/market/api/v1/balance", walletService.Balance, http.MethodGet)
	s.AppendRoute("/market/api/v1/invoice", walletService.CreateInvoice, http.MethodPost)
	s.AppendRoute("/market/api/v1/invoice/{checking_id}", walletService.InvoiceStatus, http.MethodGet)
	s.AppendRoute("/market/api/v1/pay", walletService.PayInvoice, http.MethodPost)

	// paid-invoice stream for reconcilers
	s.AppendRoute("/market/events", events.Handler())
}

func withRecovery() {
	if r := recover(); r != nil {
		log.Errorln("Recovered panic: ", r)
		debug.PrintStack()
	}
}
