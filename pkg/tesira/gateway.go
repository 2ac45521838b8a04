package tesira

import (
	"fmt"
	"time"

	"github.com/enp6s0/dspgate/pkg/util"
)

// GatewayConfig bundles the configuration needed to bring a Gateway up.
type GatewayConfig struct {
	Transport TransportConfig
	Discovery DiscoveryConfig
}

// Gateway wires the three long-lived tasks of spec §5 around one Device:
// the Transport supervisor, the Subscriber (reader/router), and the Control
// API exposed to callers (HTTP handlers or otherwise).
type Gateway struct {
	Device  *Device
	Control *Control

	transport  *Transport
	subscriber *Subscriber
	discCfg    DiscoveryConfig
}

// NewGateway constructs a Gateway. Call Start to connect, run Discovery, and
// launch the Subscriber; Start blocks until Discovery completes or fails.
func NewGateway(cfg GatewayConfig) *Gateway {
	d := NewDevice()
	t := NewTransport(cfg.Transport)
	return &Gateway{
		Device:    d,
		Control:   NewControl(t, d),
		transport: t,
		discCfg:   cfg.Discovery,
	}
}

// Start brings the Transport up, waits for the first Connected handshake,
// runs Discovery synchronously, then hands the read side to a Subscriber
// goroutine. It is the one-way synchronous-to-asynchronous handoff of
// spec §9: Discovery alone holds the read side until it returns.
func (g *Gateway) Start() error {
	if g.subscriber != nil {
		return util.NewPreconditionError("Start", g.transport.cfg.Host, "gateway must not already be running", "")
	}

	g.transport.Start()

	if err := waitForActive(g.transport, g.transport.cfg.InitialConnectTimeout*3); err != nil {
		return fmt.Errorf("transport did not come up: %w", err)
	}

	if err := Discover(g.transport, g.Device, g.discCfg); err != nil {
		return fmt.Errorf("discovery: %w", err)
	}

	g.subscriber = NewSubscriber(g.transport, g.Device)
	if err := g.subscriber.Subscribe(); err != nil {
		util.Logger.Warnf("initial subscribe failed: %v", err)
	}
	go g.subscriber.Run()

	return nil
}

func waitForActive(t *Transport, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if t.active() {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("timed out after %s", timeout)
}

// Close tears the Gateway down: stops the Subscriber, then closes the
// Transport. Idempotent: an already stopped Subscriber is not stopped again,
// and the Transport's own close is idempotent.
func (g *Gateway) Close() {
	if g.subscriber != nil {
		select {
		case <-g.subscriber.exit:
		default:
			g.subscriber.Stop()
		}
	}
	g.transport.close()
}
