package price

import (
	"fmt"
	"io/ioutil"
	"math"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"net/http"

	"github.com/lnmarket/marketd/internal/wallet"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// PriceWatcher keeps an averaged BTC spot price per fiat currency and
// implements the wallet rate-conversion contract on top of it. Rates are
// refreshed in the background and are best-effort only.
type PriceWatcher struct {
	client         *http.Client
	mu             sync.RWMutex
	UpdateInterval time.Duration
	Currencies     []string
	Exchanges      map[string]func(string) (float64, error)
	price          map[string]float64
}

var _ wallet.Rater = (*PriceWatcher)(nil)

func NewPriceWatcher(currencies ...string) *PriceWatcher {
	if len(currencies) == 0 {
		currencies = []string{"USD", "EUR"}
	}
	pricewatcher := &PriceWatcher{
		client: &http.Client{
			Timeout: time.Second * time.Duration(5),
		},
		Currencies:     currencies,
		price:          make(map[string]float64, 0),
		Exchanges:      make(map[string]func(string) (float64, error), 0),
		UpdateInterval: time.Second * time.Duration(30),
	}
	pricewatcher.Exchanges["coinbase"] = pricewatcher.GetCoinbasePrice
	pricewatcher.Exchanges["bitfinex"] = pricewatcher.GetBitfinexPrice
	log.Infof("[PriceWatcher] Watcher started")
	return pricewatcher
}

func (p *PriceWatcher) Start() {
	go p.Watch()
}

func (p *PriceWatcher) Watch() {
	for {
		p.update()
		time.Sleep(p.UpdateInterval)
	}
}

func (p *PriceWatcher) update() {
	for _, currency := range p.Currencies {
		avg_price := 0.0
		n_responses := 0
		for exchange, getPrice := range p.Exchanges {
			fprice, err := getPrice(currency)
			if err != nil {
				log.Error(err)
				// if one exchange is down, use the next
				continue
			}
			n_responses++
			avg_price += fprice
			log.Debugf("[PriceWatcher] %s %s price: %f", exchange, currency, fprice)
		}
		if n_responses == 0 {
			continue
		}
		p.mu.Lock()
		p.price[currency] = avg_price / float64(n_responses)
		p.mu.Unlock()
		log.Debugf("[PriceWatcher] Average %s price: %f", currency, p.Price(currency))
	}
}

// Price returns the last known BTC price in the given currency, zero if no
// exchange has answered yet.
func (p *PriceWatcher) Price(currency string) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.price[currency]
}

// SetPrice overrides the rate for a currency. Used by tests and by callers
// that obtain rates elsewhere.
func (p *PriceWatcher) SetPrice(currency string, fprice float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.price[currency] = fprice
}

// FiatAmountAsSatoshis converts a fiat amount to satoshis at the current
// averaged rate.
func (p *PriceWatcher) FiatAmountAsSatoshis(amount float64, currency string) (int64, error) {
	fprice := p.Price(currency)
	if fprice <= 0 {
		return 0, fmt.Errorf("no %s rate available", currency)
	}
	return int64(math.Round(amount / fprice * 100_000_000)), nil
}

// SatoshisAmountAsFiat converts satoshis to a fiat amount at the current
// averaged rate.
func (p *PriceWatcher) SatoshisAmountAsFiat(amountSat int64, currency string) (float64, error) {
	fprice := p.Price(currency)
	if fprice <= 0 {
		return 0, fmt.Errorf("no %s rate available", currency)
	}
	return float64(amountSat) / 100_000_000 * fprice, nil
}

func (p *PriceWatcher) GetCoinbasePrice(currency string) (float64, error) {
	coinbaseEndpoint, err := url.Parse(fmt.Sprintf("https://api.coinbase.com/v2/prices/spot?currency=%s", currency))
	if err != nil {
		return 0, err
	}
	response, err := p.client.Get(coinbaseEndpoint.String())
	if err != nil {
		if err, ok := err.(net.Error); ok && err.Timeout() {
			return 0, err
		}
		return 0, err
	}
	defer response.Body.Close()
	bodyBytes, err := ioutil.ReadAll(response.Body)
	if err != nil {
		return 0, err
	}
	fprice := gjson.Get(string(bodyBytes), "data.amount")
	return strconv.ParseFloat(strings.TrimSpace(fprice.String()), 64)
}

func (p *PriceWatcher) GetBitfinexPrice(currency string) (float64, error) {
	var bitfinexCurrencyToPair = map[string]string{"USD": "btcusd", "EUR": "btceur", "GBP": "btcgbp"}
	pair, ok := bitfinexCurrencyToPair[currency]
	if !ok {
		return 0, fmt.Errorf("bitfinex: no pair for %s", currency)
	}
	bitfinexEndpoint, err := url.Parse(fmt.Sprintf("https://api.bitfinex.com/v1/pubticker/%s", pair))
	if err != nil {
		return 0, err
	}
	response, err := p.client.Get(bitfinexEndpoint.String())
	if err != nil {
		if err, ok := err.(net.Error); ok && err.Timeout() {
			return 0, err
		}
		return 0, err
	}
	defer response.Body.Close()
	bodyBytes, err := ioutil.ReadAll(response.Body)
	if err != nil {
		return 0, err
	}
	fprice := gjson.Get(string(bodyBytes), "last_price")
	return strconv.ParseFloat(strings.TrimSpace(fprice.String()), 64)
}
