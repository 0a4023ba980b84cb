package errors

import (
	"os"
	"sync"

	"github.com/certifi/gocertifi"
	"github.com/getsentry/sentry-go"
	"moff.io/moff-connect/pkg/log"
)

var (
	reportersMu sync.RWMutex
	reporters   []Reporter
)

func init() {
	if os.Getenv(debugMode) == "" {
		log.Debug("Env DEBUG not set, report errors enabled.")
	} else {
		log.Debug("Env DEBUG set, report errors disabled.")
	}
}

func report(err error) {
	if err == nil {
		return
	}
	if os.Getenv(debugMode) != "" {
		return
	}
	reportersMu.RLock()
	defer reportersMu.RUnlock()
	for _, r := range reporters {
		r.Report(err)
	}
}

// Reporter 错误报告器
type Reporter interface {
	Report(error)
}

// RegisterReporter 注册自定义报告器，*AndReport 系列方法产生的错误都会经过它.
func RegisterReporter(r Reporter) {
	if r == nil {
		return
	}
	reportersMu.Lock()
	defer reportersMu.Unlock()
	reporters = append(reporters, r)
}

// ResetReporters 移除全部已注册的报告器
func ResetReporters() {
	reportersMu.Lock()
	defer reportersMu.Unlock()
	reporters = nil
}

type sentryReporter struct {
}

func (s *sentryReporter) Report(err error) {
	sentry.CaptureException(err)
}

// 设置该变量，则不会上报
const debugMode = "DEBUG"

// NewSentryReporter
// 初始化错误sentry报告器
// 当使用本公共包构建带report的报告时，会上报错误至已创建的sentry仓库.
// 环境变量DEBUG不为空时，不会产生错误上报
func NewSentryReporter(sentryDSN string) error {
	if sentryDSN == "" {
		log.Warn("empty DSN found, skipping sentry reporter initialization.")
		return nil
	}
	sentryClientOptions := sentry.ClientOptions{
		Dsn: sentryDSN,
	}

	rootCAs, err := gocertifi.CACerts()
	if err != nil {
		return Wrap(err, "init sentry CA")
	}

	sentryClientOptions.CaCerts = rootCAs
	err = sentry.Init(sentryClientOptions)
	if err != nil {
		return Wrap(err, "init sentry")
	}
	log.Info("sentry error reporter initialized.")
	RegisterReporter(&sentryReporter{})
	return nil
}
