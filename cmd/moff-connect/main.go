package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moff.io/moff-connect/internal/aws"
	"moff.io/moff-connect/internal/cache"
	"moff.io/moff-connect/internal/config"
	"moff.io/moff-connect/internal/connector"
	"moff.io/moff-connect/internal/databus"
	"moff.io/moff-connect/internal/http"
	"moff.io/moff-connect/internal/registry"
	"moff.io/moff-connect/internal/session"
	"moff.io/moff-connect/internal/starter"
	"moff.io/moff-connect/internal/walletlink"
	"moff.io/moff-connect/internal/webwallet"
	"moff.io/moff-connect/pkg/endpoint"
	"moff.io/moff-connect/pkg/errors"
	"moff.io/moff-connect/pkg/log"
)

type stopFunc func()

func (f stopFunc) Stop() { f() }

func main() {
	log.Infof("Starting app")
	startApp()
}

func startApp() {
	defer func() {
		if i := recover(); i != nil {
			log.Fatal(errors.ErrorfAndReport("%v", i))
		}
	}()
	config.Read()
	conf := config.Global
	log.SetLevel(conf.LogLevel)
	if err := errors.NewSentryReporter(conf.SentryDSN); err != nil {
		log.Error(err)
	}
	errors.NewLarkReporter(conf.LarkAlarmWebhook, "moff-connect", time.Minute)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var stopables []starter.Stopable
	// 进程内没有注入钱包的来源, 只有把本模块当库用的宿主才会往 registry 里注册.
	wallets := registry.New()
	if len(conf.Connectors) > 0 {
		log.Warnf("connectors %v have no wallet source in this binary and stay unavailable", conf.Connectors)
	}
	connectors := make([]connector.Connector, 0, len(conf.Connectors)+1)
	for _, id := range conf.Connectors {
		connectors = append(connectors, connector.NewInjected(connector.InjectedOptions{ID: id}, wallets))
	}

	var modal *webwallet.ModalState
	if conf.WebWallet.Enabled {
		if conf.WebWallet.Modal.Enabled {
			modal = webwallet.NewModalState(conf.WebWallet.Modal.InitialHeight)
		}
		web := webwallet.NewConnector(webWalletFactory(&conf.WebWallet, modal))
		connectors = append(connectors, web)
		stopables = append(stopables, stopFunc(web.Close))
	}

	sessionOpts := []session.Option{
		session.WithPublisher(newPublisher(ctx, conf)),
		session.WithTopic(conf.EventTopic),
	}
	var serverOpts []http.Option
	if conf.RedisCredential.Address != "" {
		redis, err := cache.NewRedis(ctx, &conf.RedisCredential)
		if err != nil {
			log.Fatal(err)
		}
		stopables = append([]starter.Stopable{stopFunc(func() { _ = redis.Close() })}, stopables...)
		sessionOpts = append(sessionOpts, session.WithStore(cache.NewLastWalletStore(redis)))
		if conf.HTTP.ConnectPerMinute > 0 {
			serverOpts = append(serverOpts, http.WithLimiter(cache.NewRateLimiter(redis, conf.HTTP.ConnectPerMinute)))
		}
	}
	if modal != nil {
		serverOpts = append(serverOpts, http.WithModal(modal))
	}
	serverOpts = append(serverOpts, http.WithTimeout(conf.HTTP.Timeout))

	manager := session.New(connectors, sessionOpts...)
	server := http.NewServer(conf.HTTP.Address, manager, serverOpts...)
	starter.Start(ctx, manager, server)
	stopables = append(stopables, server)

	<-ctx.Done()
	log.Info("Shutting down")
	starter.Stop(stopables...)
}

// webWalletFactory dials the wallet link and builds the web wallet on it.
func webWalletFactory(conf *config.WebWallet, modal *webwallet.ModalState) webwallet.Factory {
	return func(ctx context.Context) (*webwallet.Wallet, error) {
		host, err := webwallet.NewStaticHost(conf.Origin)
		if err != nil {
			return nil, errors.Wrap(webwallet.ErrNoHostEnvironment, err.Error())
		}
		linkURL := conf.LinkURL
		if linkURL == "" {
			linkURL = endpoint.WebSocketURL(conf.Target, "link")
		}
		link, err := walletlink.Dial(ctx, linkURL,
			walletlink.WithOrigin(host.Origin()),
			walletlink.WithMaxInFlight(conf.MaxInFlight),
			walletlink.WithCallTimeout(conf.CallTimeout))
		if err != nil {
			return nil, err
		}
		opts := webwallet.Options{Target: conf.Target, Link: link, Host: host, OwnsLink: true}
		if conf.NodeURL != "" {
			provider, err := webwallet.NewRPCProvider(conf.NodeURL)
			if err != nil {
				_ = link.Close()
				return nil, err
			}
			opts.Provider = provider
		}
		if modal != nil {
			var bridgeOpts []webwallet.BridgeOption
			if conf.Modal.MinHeight > 0 || conf.Modal.MaxHeight > 0 {
				bridgeOpts = append(bridgeOpts, webwallet.WithHeightRange(conf.Modal.MinHeight, conf.Modal.MaxHeight))
			}
			opts.Modal = &webwallet.ModalProps{Frame: modal, Container: modal, Options: bridgeOpts}
		}
		return webwallet.New(ctx, opts)
	}
}

// newPublisher picks kafka, then sqs, then the logging bus.
func newPublisher(ctx context.Context, conf *config.Configuration) databus.Publisher {
	switch {
	case conf.KafkaServer != "":
		bus, err := databus.NewKafka(conf.KafkaServer)
		if err != nil {
			log.Fatal(err)
		}
		return bus
	case conf.Aws.EventQueueURL != "":
		clients, err := aws.Init(ctx, conf.Aws.Region, conf.Aws.Credential.Key, conf.Aws.Credential.Secret)
		if err != nil {
			log.Fatal(err)
		}
		return databus.NewSQSBus(clients, conf.Aws.EventQueueURL)
	default:
		log.Warn("no kafka server or sqs queue configured, session events are only logged")
		return databus.LocalBus{}
	}
}
