package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railflow/config"
	coremon "github.com/kilianp07/railflow/core/monitoring"
)

func TestNewSentryMonitorWithoutDSN(t *testing.T) {
	m, err := NewSentryMonitor(config.SentryConfig{})
	require.NoError(t, err)
	assert.IsType(t, coremon.NopMonitor{}, m)
}

type captureTransport struct {
	events []*sentry.Event
}

func (c *captureTransport) Flush(time.Duration) bool      { return true }
func (c *captureTransport) Configure(sentry.ClientOptions) {}
func (c *captureTransport) SendEvent(e *sentry.Event)      { c.events = append(c.events, e) }
func (c *captureTransport) Close()                         {}

func TestSentryMonitorTagsEvents(t *testing.T) {
	tr := &captureTransport{}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:       "https://public@example.com/1",
		Transport: tr,
	})
	require.NoError(t, err)
	m := &sentryMonitor{hub: sentry.NewHub(client, sentry.NewScope())}

	m.CaptureException(errors.New("cycle failed"), map[string]string{"stage": "predict"})
	m.CapturePanic("boom", map[string]string{"component": "orchestrator"})
	m.CaptureException(nil, nil)

	require.Len(t, tr.events, 2)
	assert.Equal(t, "predict", tr.events[0].Tags["stage"])
	assert.Equal(t, "orchestrator", tr.events[1].Tags["component"])
	assert.Equal(t, "boom", tr.events[1].Message)
}
