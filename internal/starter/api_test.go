package starter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"moff.io/moff-connect/internal/config"
)

type elem struct {
	name    string
	trace   *[]string
	applied *config.Configuration
}

func (e *elem) Start(context.Context)         { *e.trace = append(*e.trace, "start "+e.name) }
func (e *elem) Stop()                         { *e.trace = append(*e.trace, "stop "+e.name) }
func (e *elem) Apply(c *config.Configuration) { e.applied = c }

func TestStartStopOrder(t *testing.T) {
	prev := config.Global
	defer func() { config.Global = prev }()
	config.Global = &config.Configuration{LogLevel: 2}

	var trace []string
	a, b := &elem{name: "a", trace: &trace}, &elem{name: "b", trace: &trace}
	Start(context.Background(), a, b)
	Stop(a, b)

	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, trace)
	assert.Same(t, config.Global, a.applied)
}
