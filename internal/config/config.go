package config

import (
	"flag"
	"fmt"
	"io/ioutil"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
	"moff.io/moff-connect/pkg/errors"
)

// DBCredential struct
type DBCredential struct {
	Address  string `yaml:"address"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Port     string `yaml:"port"`
	Database string `yaml:"database"`
}

// GetRedisAddress prints redis credential info.
func (c *DBCredential) GetRedisAddress() string {
	return fmt.Sprintf("%v:%v", c.Address, c.Port)
}

// Configuration struct
type Configuration struct {
	// LogLevel 0 debug, 1 info, 2 warn, 3 error
	LogLevel         int          `yaml:"log_level"`
	HTTP             HTTP         `yaml:"http"`
	// Connectors 注入钱包的 id, 钱包由嵌入本模块的宿主注册
	Connectors       []string     `yaml:"connectors"`
	WebWallet        WebWallet    `yaml:"web_wallet"`
	RedisCredential  DBCredential `yaml:"redis"`
	KafkaServer      string       `yaml:"kafka-server"`
	EventTopic       string       `yaml:"event_topic"`
	Aws              Aws          `yaml:"aws"`
	SentryDSN        string       `yaml:"sentry_dsn"`
	LarkAlarmWebhook string       `yaml:"lark_alarm_webhook"`
}

type HTTP struct {
	Address string        `yaml:"address"`
	Timeout time.Duration `yaml:"timeout"`

	// ConnectPerMinute 每个客户端每分钟允许的connect次数，0不限流
	ConnectPerMinute int `yaml:"connect_per_minute"`
}

type WebWallet struct {
	Enabled bool   `yaml:"enabled"`
	Target  string `yaml:"target"`
	// LinkURL defaults to the websocket form of Target
	LinkURL string `yaml:"link_url"`
	// Origin the host origin forwarded to the web wallet
	Origin  string `yaml:"origin"`

	NodeURL     string        `yaml:"node_url"`
	MaxInFlight int           `yaml:"max_in_flight"`
	CallTimeout time.Duration `yaml:"call_timeout"`
	Modal       Modal         `yaml:"modal"`
}

type Modal struct {
	Enabled       bool `yaml:"enabled"`
	InitialHeight int  `yaml:"initial_height"`
	MinHeight     int  `yaml:"min_height"`
	MaxHeight     int  `yaml:"max_height"`
}

// Aws aws conf
type Aws struct {
	Credential AwsCredential `yaml:"credential"`
	Region     string        `yaml:"region"`

	// EventQueueURL sqs queue events are sent to when no kafka server is configured
	EventQueueURL string `yaml:"event_queue_url"`
}

type AwsCredential struct {
	Key    string `yaml:"key"`
	Secret string `yaml:"secret"`
}

// Load reads and decodes the configuration file at path.
func Load(path string) (*Configuration, error) {
	dat, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	t := Configuration{LogLevel: 1}
	if err := yaml.UnmarshalStrict(dat, &t); err != nil {
		return nil, errors.Wrapf(err, "decode config %s", path)
	}
	t.setDefaults()
	return &t, nil
}

func (c *Configuration) setDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = 30 * time.Second
	}
	if c.EventTopic == "" {
		c.EventTopic = "wallet-session-events"
	}
	if c.WebWallet.MaxInFlight == 0 {
		c.WebWallet.MaxInFlight = 16
	}
}

var Global *Configuration

// Read reads configuration information from yml.
func Read() {
	configFilePath := flag.String("config-path", "internal/config/config.yml", "The path to the configuration file")
	flag.Parse()
	logrus.Infof("Loading configuration file from %s", *configFilePath)
	globalConfig, err := Load(*configFilePath)
	if err != nil {
		logrus.Fatal(err)
	}
	Global = globalConfig
}
