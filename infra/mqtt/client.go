package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/railflow/core/model"
	coremon "github.com/kilianp07/railflow/core/monitoring"
	coremqtt "github.com/kilianp07/railflow/core/mqtt"
	"github.com/kilianp07/railflow/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client. An
// empty Broker disables publishing.
type Config struct {
	Broker        string      `json:"broker"`
	ClientID      string      `json:"client_id"`
	Username      string      `json:"username"`
	Password      string      `json:"password"`
	ResultsTopic  string      `json:"results_topic"`
	HighRiskTopic string      `json:"high_risk_topic"`
	QoS           byte        `json:"qos"`
	Retain        bool        `json:"retain"`
	UseTLS        bool        `json:"use_tls"`
	ClientCert    string      `json:"client_cert"`
	ClientKey     string      `json:"client_key"`
	CABundle      string      `json:"ca_bundle"`
	AuthMethod    string      `json:"auth_method"`
	LWTTopic      string      `json:"lwt_topic"`
	LWTPayload    string      `json:"lwt_payload"`
	LWTQoS        byte        `json:"lwt_qos"`
	LWTRetain     bool        `json:"lwt_retain"`
	MaxRetries    int         `json:"max_retries"`
	BackoffMS     int         `json:"backoff_ms"`
	TLSConfig     *tls.Config `json:"-"`
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool { return c.Broker != "" }

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "railflow"
	}
	if c.ResultsTopic == "" {
		c.ResultsTopic = coremqtt.DefaultResultsTopic
	}
	if c.HighRiskTopic == "" {
		c.HighRiskTopic = coremqtt.DefaultHighRiskTopic
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.QoS > 2 || c.LWTQoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2")
	}
	return nil
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// PahoPublisher implements core mqtt.ResultPublisher using Eclipse Paho.
type PahoPublisher struct {
	cli           pahoClient
	logger        logger.Logger
	resultsTopic  string
	highRiskTopic string
	qos           byte
	retain        bool
	maxRetries    int
	backoff       time.Duration
}

var _ coremqtt.ResultPublisher = (*PahoPublisher)(nil)

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoPublisher connects to the MQTT broker.
func NewPahoPublisher(cfg Config) (*PahoPublisher, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	logger := logger.New("mqtt_publisher")
	pp := &PahoPublisher{
		logger:        logger,
		resultsTopic:  cfg.ResultsTopic,
		highRiskTopic: cfg.HighRiskTopic,
		qos:           cfg.QoS,
		retain:        cfg.Retain,
		maxRetries:    cfg.MaxRetries,
		backoff:       time.Duration(cfg.BackoffMS) * time.Millisecond,
	}

	opts.OnConnect = func(paho.Client) {
		logger.Infof("MQTT connected")
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		logger.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		logger.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	pp.cli = c
	return pp, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}

// highRiskAlert is the payload published per high-risk train.
type highRiskAlert struct {
	RunID     string              `json:"run_id"`
	Timestamp time.Time           `json:"timestamp"`
	Train     model.HighRiskTrain `json:"train"`
}

// PublishResult publishes the envelope on the results topic and one alert
// per high-risk train on <high_risk_topic>/<train_id>.
func (p *PahoPublisher) PublishResult(env model.ResultEnvelope) error {
	if p.cli == nil || !p.cli.IsConnected() {
		return coremqtt.ErrNotConnected
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := p.publish(p.resultsTopic, payload, p.retain); err != nil {
		coremon.CaptureException(err, map[string]string{"module": "mqtt", "run_id": env.RunID, "topic": p.resultsTopic})
		return err
	}
	for _, t := range env.HighRiskTrains {
		b, err := json.Marshal(highRiskAlert{RunID: env.RunID, Timestamp: env.Timestamp, Train: t})
		if err != nil {
			return err
		}
		topic := p.highRiskTopic + "/" + t.TrainID
		if err := p.publish(topic, b, false); err != nil {
			coremon.CaptureException(err, map[string]string{"module": "mqtt", "run_id": env.RunID, "train_id": t.TrainID})
			return err
		}
	}
	p.logger.Debugf("published run %s (%d high risk)", env.RunID, len(env.HighRiskTrains))
	return nil
}

func (p *PahoPublisher) publish(topic string, payload []byte, retain bool) error {
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, p.qos, retain, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			return nil
		}
		p.logger.Errorf("publish attempt %d on %s failed: %v", attempt+1, topic, publishErr)
		if attempt < p.maxRetries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	return publishErr
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoPublisher) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
