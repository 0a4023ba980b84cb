package webwallet

import (
	"context"
	"encoding/json"
	"math"

	"github.com/tidwall/gjson"
	"go.uber.org/atomic"
	"moff.io/moff-connect/pkg/errors"
	"moff.io/moff-connect/pkg/log"
)

// ModalTopic is the push channel the remote wallet drives its modal through.
const ModalTopic = "updateModal"

type ModalAction string

const (
	ModalShow         ModalAction = "show"
	ModalHide         ModalAction = "hide"
	ModalUpdateHeight ModalAction = "updateHeight"
)

// ModalEvent is one modal instruction from the remote wallet. Height is only
// meaningful for ModalUpdateHeight.
type ModalEvent struct {
	Action ModalAction `json:"action"`
	Height int         `json:"height,omitempty"`
}

// ParseModalEvent decodes a push payload. Heights sent as fractional numbers are rounded.
func ParseModalEvent(raw []byte) (ModalEvent, error) {
	if !gjson.ValidBytes(raw) {
		return ModalEvent{}, errors.Errorf("invalid modal event %q", string(raw))
	}
	action := gjson.GetBytes(raw, "action")
	if action.Type != gjson.String {
		return ModalEvent{}, errors.Errorf("modal event without action: %s", string(raw))
	}
	ev := ModalEvent{Action: ModalAction(action.String())}
	if ev.Action == ModalUpdateHeight {
		height := gjson.GetBytes(raw, "height")
		if height.Type != gjson.Number {
			return ModalEvent{}, errors.Errorf("updateHeight without numeric height: %s", string(raw))
		}
		ev.Height = int(math.Round(height.Float()))
	}
	return ev, nil
}

// Disposer ends a push subscription.
type Disposer interface {
	Unsubscribe()
}

type BridgeOption func(*ModalBridge)

// WithHeightRange clamps heights to [min, max]. A max of 0 leaves the upper bound open.
func WithHeightRange(min, max int) BridgeOption {
	return func(b *ModalBridge) {
		b.clamp = true
		b.minHeight = min
		b.maxHeight = max
	}
}

// ModalBridge turns modal events of the remote wallet into effects on the frame and its container.
type ModalBridge struct {
	frame     Frame
	container Container

	clamp     bool
	minHeight int
	maxHeight int
}

func NewModalBridge(frame Frame, container Container, opts ...BridgeOption) *ModalBridge {
	b := &ModalBridge{frame: frame, container: container}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Install subscribes once to the modal topic of link. The returned disposer
// must be kept to tear the subscription down.
func (b *ModalBridge) Install(ctx context.Context, link Subscriber) (Disposer, error) {
	sub, err := link.Subscribe(ctx, ModalTopic, nil, b.handle)
	if err != nil {
		return nil, errors.Wrap(err, "install modal bridge")
	}
	return sub, nil
}

func (b *ModalBridge) handle(raw json.RawMessage) {
	ev, err := ParseModalEvent(raw)
	if err != nil {
		log.Warnf("modal bridge - drop event: %v", err)
		return
	}
	b.Apply(ev)
}

// Apply performs the single effect of ev.
func (b *ModalBridge) Apply(ev ModalEvent) {
	switch ev.Action {
	case ModalShow:
		b.container.Show()
	case ModalHide:
		b.container.Hide()
	case ModalUpdateHeight:
		b.frame.SetHeight(b.height(ev.Height))
	default:
		log.Warnf("modal bridge - unknown action %q", ev.Action)
	}
}

func (b *ModalBridge) height(h int) int {
	if !b.clamp {
		return h
	}
	if h < b.minHeight {
		return b.minHeight
	}
	if b.maxHeight > 0 && h > b.maxHeight {
		return b.maxHeight
	}
	return h
}

// ModalSnapshot modal状态快照
type ModalSnapshot struct {
	Visible bool  `json:"visible"`
	Height  int   `json:"height"`
	Updates int64 `json:"updates"`
}

// ModalState is a Frame and Container that only records what it was told,
// for hosts rendering the modal elsewhere (e.g. polling it over HTTP).
type ModalState struct {
	visible atomic.Bool
	height  atomic.Int64
	updates atomic.Int64
}

var (
	_ Frame     = (*ModalState)(nil)
	_ Container = (*ModalState)(nil)
)

func NewModalState(initialHeight int) *ModalState {
	s := &ModalState{}
	s.height.Store(int64(initialHeight))
	return s
}

func (s *ModalState) Show() {
	s.visible.Store(true)
	s.updates.Inc()
}

func (s *ModalState) Hide() {
	s.visible.Store(false)
	s.updates.Inc()
}

func (s *ModalState) SetHeight(height int) {
	s.height.Store(int64(height))
	s.updates.Inc()
}

func (s *ModalState) Snapshot() ModalSnapshot {
	return ModalSnapshot{
		Visible: s.visible.Load(),
		Height:  int(s.height.Load()),
		Updates: s.updates.Load(),
	}
}
