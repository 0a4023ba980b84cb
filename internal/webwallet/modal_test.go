package webwallet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type heights []int

func (h *heights) SetHeight(v int) { *h = append(*h, v) }

type visibility struct{ shown, hidden int }

func (v *visibility) Show() { v.shown++ }
func (v *visibility) Hide() { v.hidden++ }

func TestParseModalEvent(t *testing.T) {
	cases := []struct {
		raw     string
		want    ModalEvent
		wantErr bool
	}{
		{raw: `{"action":"show"}`, want: ModalEvent{Action: ModalShow}},
		{raw: `{"action":"hide","visible":false}`, want: ModalEvent{Action: ModalHide}},
		{raw: `{"action":"updateHeight","height":480}`, want: ModalEvent{Action: ModalUpdateHeight, Height: 480}},
		{raw: `{"action":"updateHeight","height":379.6}`, want: ModalEvent{Action: ModalUpdateHeight, Height: 380}},
		{raw: `{"action":"blink"}`, want: ModalEvent{Action: "blink"}},
		{raw: `{"action":"updateHeight"}`, wantErr: true},
		{raw: `{"height":10}`, wantErr: true},
		{raw: `not json`, wantErr: true},
	}
	for _, tc := range cases {
		ev, err := ParseModalEvent([]byte(tc.raw))
		if tc.wantErr {
			assert.Error(t, err, tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, ev, tc.raw)
	}
}

func TestBridgeApply(t *testing.T) {
	var (
		h heights
		v visibility
	)
	b := NewModalBridge(&h, &v)

	b.Apply(ModalEvent{Action: ModalShow})
	b.Apply(ModalEvent{Action: ModalUpdateHeight, Height: 10000})
	b.Apply(ModalEvent{Action: "blink"})
	b.handle([]byte(`garbage`))
	b.Apply(ModalEvent{Action: ModalHide})

	assert.Equal(t, heights{10000}, h)
	assert.Equal(t, visibility{shown: 1, hidden: 1}, v)
}

func TestBridgeHeightRange(t *testing.T) {
	var (
		h heights
		v visibility
	)
	b := NewModalBridge(&h, &v, WithHeightRange(100, 600))
	b.Apply(ModalEvent{Action: ModalUpdateHeight, Height: 50})
	b.Apply(ModalEvent{Action: ModalUpdateHeight, Height: 480})
	b.Apply(ModalEvent{Action: ModalUpdateHeight, Height: 900})
	assert.Equal(t, heights{100, 480, 600}, h)

	h = nil
	open := NewModalBridge(&h, &v, WithHeightRange(0, 0))
	open.Apply(ModalEvent{Action: ModalUpdateHeight, Height: 900})
	assert.Equal(t, heights{900}, h)
}
