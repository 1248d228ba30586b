package network

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/lnmarket/marketd/internal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

func GetClient() (*http.Client, error) {
	client := http.Client{
		Timeout: 10 * time.Second,
	}
	if internal.Configuration.Market.SocksProxy != nil {
		proxyURL, _ := url.Parse(internal.Configuration.Market.SocksProxy.Host)
		specialTransport := &http.Transport{}
		specialTransport.Proxy = http.ProxyURL(proxyURL)
		var auth *proxy.Auth
		if internal.Configuration.Market.SocksProxy.Username != "" && internal.Configuration.Market.SocksProxy.Password != "" {
			auth = &proxy.Auth{User: internal.Configuration.Market.SocksProxy.Username, Password: internal.Configuration.Market.SocksProxy.Password}
		}
		d, err := proxy.SOCKS5("tcp", internal.Configuration.Market.SocksProxy.Host, auth, &net.Dialer{
			Timeout:   20 * time.Second,
			Deadline:  time.Now().Add(time.Second * 10),
			KeepAlive: -1,
		})
		if err != nil {
			log.Errorln(err)
			return &client, nil
		}
		specialTransport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return d.Dial(network, addr)
		}
		client.Transport = specialTransport
	}
	return &client, nil
}
