// Package session keeps track of which connector a host session is
// connected through, reconnects it on start and publishes its transitions.
package session

import (
	"context"
	"sync"

	"moff.io/moff-connect/internal/connector"
	"moff.io/moff-connect/internal/databus"
	"moff.io/moff-connect/pkg/errors"
	"moff.io/moff-connect/pkg/log"
)

const (
	DefaultName  = "default"
	DefaultTopic = "wallet-session-events"
)

// ErrNoActiveConnector no connector is connected in this session.
var ErrNoActiveConnector = errors.New("no active connector")

type Option func(*Manager)

func WithStore(store Store) Option {
	return func(m *Manager) {
		m.store = store
	}
}

func WithPublisher(publisher databus.Publisher) Option {
	return func(m *Manager) {
		m.publisher = publisher
	}
}

// WithName names the session, used as the store key and the event key.
func WithName(name string) Option {
	return func(m *Manager) {
		m.name = name
	}
}

func WithTopic(topic string) Option {
	return func(m *Manager) {
		m.topic = topic
	}
}

// Manager owns the active connector of one session.
type Manager struct {
	name       string
	topic      string
	connectors []connector.Connector
	byID       map[string]connector.Connector
	store      Store
	publisher  databus.Publisher

	mu       sync.Mutex
	active   connector.Connector
	listener *connector.AccountsListener
}

// New builds a manager over connectors; a later connector with a duplicate id is ignored.
func New(connectors []connector.Connector, opts ...Option) *Manager {
	m := &Manager{
		name:      DefaultName,
		topic:     DefaultTopic,
		byID:      make(map[string]connector.Connector, len(connectors)),
		store:     NewMemoryStore(),
		publisher: databus.LocalBus{},
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, c := range connectors {
		if _, ok := m.byID[c.ID()]; ok {
			log.Warnf("session %s - duplicate connector %s ignored", m.name, c.ID())
			continue
		}
		m.byID[c.ID()] = c
		m.connectors = append(m.connectors, c)
	}
	return m
}

func (m *Manager) Name() string {
	return m.name
}

// Connectors in configuration order.
func (m *Manager) Connectors() []connector.Connector {
	return append([]connector.Connector(nil), m.connectors...)
}

func (m *Manager) Connector(id string) (connector.Connector, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, errors.Wrapf(connector.ErrConnectorNotFound, "session %s - unknown connector %s", m.name, id)
	}
	return c, nil
}

// Active returns the connected connector, nil if none.
func (m *Manager) Active() connector.Connector {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Connect connects through connector id and makes it the active one. A
// previously active connector stops reporting account changes to the session.
func (m *Manager) Connect(ctx context.Context, id string) (connector.Account, error) {
	c, err := m.Connector(id)
	if err != nil {
		return nil, err
	}
	account, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}

	listener := connector.NewAccountsListener(func(accounts []string) {
		m.publish(context.Background(), id, EventAccountsChanged, accounts)
	})
	m.mu.Lock()
	prev, prevListener := m.active, m.listener
	m.active, m.listener = c, listener
	m.mu.Unlock()

	if prev != nil && prevListener != nil {
		if err := prev.RemoveEventListener(ctx, prevListener); err != nil {
			log.Warnf("session %s - remove listener of %s: %v", m.name, prev.ID(), err)
		}
	}
	if err := c.InitEventListener(ctx, listener); err != nil {
		log.Warnf("session %s - listen to %s: %v", m.name, id, err)
	}
	if err := m.store.Save(ctx, m.name, id); err != nil {
		log.Error(err)
	}

	var accounts []string
	if account != nil {
		accounts = []string{account.Address()}
	}
	m.publish(ctx, id, EventConnected, accounts)
	log.Infof("session %s - connected with %s", m.name, id)
	return account, nil
}

// Disconnect validates the active connector can be disconnected and forgets it.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	active, listener := m.active, m.listener
	m.mu.Unlock()
	if active == nil {
		return errors.Wrapf(ErrNoActiveConnector, "session %s", m.name)
	}
	if err := active.Disconnect(ctx); err != nil {
		return err
	}
	if listener != nil {
		if err := active.RemoveEventListener(ctx, listener); err != nil {
			log.Warnf("session %s - remove listener of %s: %v", m.name, active.ID(), err)
		}
	}

	m.mu.Lock()
	// 断开期间可能已切换到其他连接器
	if m.active == active {
		m.active, m.listener = nil, nil
	}
	m.mu.Unlock()

	if err := m.store.Clear(ctx, m.name); err != nil {
		log.Error(err)
	}
	m.publish(ctx, active.ID(), EventDisconnected, nil)
	log.Infof("session %s - disconnected from %s", m.name, active.ID())
	return nil
}

// Account of the active connector.
func (m *Manager) Account(ctx context.Context) (connector.Account, error) {
	active := m.Active()
	if active == nil {
		return nil, errors.Wrapf(ErrNoActiveConnector, "session %s", m.name)
	}
	return active.Account(ctx)
}

// AutoConnect reconnects the last used connector when it is preauthorized.
// It returns a nil account when there is nothing to reconnect.
func (m *Manager) AutoConnect(ctx context.Context) (connector.Account, error) {
	id, err := m.store.Load(ctx, m.name)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, nil
	}
	c, err := m.Connector(id)
	if err != nil {
		log.Warnf("session %s - last connector %s no longer configured", m.name, id)
		return nil, m.store.Clear(ctx, m.name)
	}
	ready, err := c.Ready(ctx)
	if err != nil {
		return nil, err
	}
	if !ready {
		log.Debugf("session %s - %s not preauthorized, skip auto connect", m.name, id)
		return nil, nil
	}
	return m.Connect(ctx, id)
}

// ConnectorStatus connector状态
type ConnectorStatus struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Icon      string `json:"icon,omitempty"`
	State     string `json:"state"`
	Available bool   `json:"available"`
	Ready     bool   `json:"ready"`
	Active    bool   `json:"active"`
}

// Status resolves every connector and reports where it stands.
func (m *Manager) Status(ctx context.Context) []ConnectorStatus {
	active := m.Active()
	out := make([]ConnectorStatus, 0, len(m.connectors))
	for _, c := range m.connectors {
		s := ConnectorStatus{
			ID:        c.ID(),
			Available: c.Available(ctx),
			Active:    c == active,
		}
		if s.Available {
			ready, err := c.Ready(ctx)
			if err != nil {
				log.Warnf("session %s - ready %s: %v", m.name, c.ID(), err)
			}
			s.Ready = ready
		}
		// Name/Icon只在已解析到钱包时可用
		s.Name, _ = c.Name()
		s.Icon, _ = c.Icon()
		s.State = c.State().String()
		out = append(out, s)
	}
	return out
}

func (m *Manager) publish(ctx context.Context, connectorID string, typ EventType, accounts []string) {
	e := newEvent(m.topic, m.name, connectorID, typ, accounts)
	if err := m.publisher.Publish(ctx, e); err != nil {
		log.Errorf("session %s - publish %s: %v", m.name, typ, err)
	}
}

// Start runs AutoConnect once, it makes the manager a starter.Startable.
func (m *Manager) Start(ctx context.Context) {
	account, err := m.AutoConnect(ctx)
	if err != nil {
		log.Warnf("session %s - auto connect: %v", m.name, err)
		return
	}
	if account != nil {
		log.Infof("session %s - reconnected %s", m.name, account.Address())
	}
}
