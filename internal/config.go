package internal

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jinzhu/configor"
	log "github.com/sirupsen/logrus"
)

var Configuration = struct {
	Market   MarketConfiguration   `yaml:"market"`
	Strike   StrikeConfiguration   `yaml:"strike"`
	Database DatabaseConfiguration `yaml:"database"`
}{}

type SocksConfiguration struct {
	Host     string `yaml:"host"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type MarketConfiguration struct {
	Host          string              `yaml:"host"`
	AdminHost     string              `yaml:"admin_host"`
	PublicUrl     string              `yaml:"public_url"`
	PublicHostUrl *url.URL            `yaml:"-"`
	SocksProxy    *SocksConfiguration `yaml:"socks_proxy,omitempty"`
}

type StrikeConfiguration struct {
	ApiEndpoint   string `yaml:"api_endpoint"`
	Token         string `yaml:"token"`
	Currency      string `yaml:"currency"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type DatabaseConfiguration struct {
	DbPath     string `yaml:"db_path"`
	BuntDbPath string `yaml:"buntdb_path"`
}

// Load reads config.yaml into Configuration and validates it. Called once
// from main; packages read Configuration afterwards.
func Load() {
	err := configor.Load(&Configuration, "config.yaml")
	if err != nil {
		panic(err)
	}
	if Configuration.Market.PublicUrl != "" {
		hostUrl, err := url.Parse(Configuration.Market.PublicUrl)
		if err != nil {
			panic(err)
		}
		Configuration.Market.PublicHostUrl = hostUrl
	}
	checkMarketConfiguration()
	checkStrikeConfiguration()
}

func checkMarketConfiguration() {
	if Configuration.Market.Host == "" {
		panic(fmt.Errorf("please configure a market host"))
	}
	if Configuration.Market.PublicUrl == "" {
		log.Warnf("Please specify a public url otherwise chat clients can't be pointed at this instance")
	} else {
		if !strings.HasSuffix(Configuration.Market.PublicUrl, "/") {
			Configuration.Market.PublicUrl = Configuration.Market.PublicUrl + "/"
		}
	}
}

func checkStrikeConfiguration() {
	if Configuration.Strike.ApiEndpoint == "" {
		panic(fmt.Errorf("please configure a strike api endpoint"))
	}
	if Configuration.Strike.Token == "" {
		panic(fmt.Errorf("please configure a strike api token"))
	}
	if Configuration.Strike.Currency == "" {
		panic(fmt.Errorf("please configure a strike account currency"))
	}
}
