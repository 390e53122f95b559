// Command switch-sensor debounces GPIO switch inputs and publishes every
// accepted transition to MQTT (and optionally Kafka).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sweeney/switch-sensor/internal/config"
	"github.com/sweeney/switch-sensor/internal/discovery"
	"github.com/sweeney/switch-sensor/internal/events"
	"github.com/sweeney/switch-sensor/internal/gpio"
	"github.com/sweeney/switch-sensor/internal/kafkabus"
	"github.com/sweeney/switch-sensor/internal/metrics"
	"github.com/sweeney/switch-sensor/internal/mqtt"
	"github.com/sweeney/switch-sensor/internal/status"
	"github.com/sweeney/switch-sensor/internal/switchctl"
	"github.com/sweeney/switch-sensor/internal/web"
)

func main() {
	def := config.Default()

	configPath := flag.String("config", "", "YAML config file (flags override it)")
	poll := flag.Duration("poll", def.Poll, "GPIO polling interval")
	debounce := flag.Duration("debounce", switchctl.DefaultDebounce, "Debounce window for every switch (0 disables)")
	broker := flag.String("broker", def.Broker, "MQTT broker address")
	heartbeat := flag.Duration("heartbeat", def.Heartbeat, "Heartbeat interval (0 to disable)")
	pin := flag.Int("pin", gpio.DefaultPin, "BCM pin of a single switch (replaces configured switches)")
	pullDown := flag.Bool("pull-down", false, "Use an external pull-down instead of the internal pull-up")
	backend := flag.String("backend", def.Backend, "GPIO backend: gpiocdev, periph or rpio")
	printState := flag.Bool("print-state", false, "Print current state and exit")
	httpAddr := flag.String("http", def.HTTP, "HTTP status address (empty to disable)")
	wsBroker := flag.String("ws-broker", def.WSBroker, `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn or error")

	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))

	cfg := def
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Error("load config", slog.Any("err", err))
			os.Exit(1)
		}
	}

	// Only flags given on the command line override the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "poll":
			cfg.Poll = *poll
		case "broker":
			cfg.Broker = *broker
		case "heartbeat":
			cfg.Heartbeat = *heartbeat
		case "backend":
			cfg.Backend = *backend
		case "http":
			cfg.HTTP = *httpAddr
		case "ws-broker":
			cfg.WSBroker = *wsBroker
		case "pin":
			cfg.Switches = []config.Switch{{Name: "switch", Pin: *pin}}
		}
	})
	// -pin may replace the list, so per-switch overrides go last.
	flag.Visit(func(f *flag.Flag) {
		for i := range cfg.Switches {
			switch f.Name {
			case "debounce":
				d := *debounce
				cfg.Switches[i].Debounce = &d
			case "pull-down":
				up := !*pullDown
				cfg.Switches[i].PullUp = &up
			}
		}
	})

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", slog.Any("err", err))
		os.Exit(1)
	}

	if err := run(cfg, *printState, log); err != nil {
		log.Error("fatal", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, printState bool, log *slog.Logger) error {
	backend, err := gpio.ParseBackend(cfg.Backend)
	if err != nil {
		return err
	}
	format, err := events.ParseFormat(cfg.PayloadFormat)
	if err != nil {
		return err
	}

	// Initialize GPIO
	port, err := gpio.Open(backend, cfg.Chip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer port.Close()

	// Print state mode
	if printState {
		return printStates(os.Stdout, port, cfg.Switches)
	}

	wsURL := resolveWSBroker(cfg.WSBroker, cfg.Broker, log)
	tracker := status.NewTracker(time.Now(), statusConfig(cfg, wsURL))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	m := metrics.New()

	// Initialize MQTT
	publisher := mqtt.NewRealPublisher(mqtt.Config{
		Broker:   cfg.Broker,
		ClientID: cfg.ClientID,
		Format:   format,
		Logger:   log,
	})
	defer publisher.Close()

	d := &daemon{
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		metrics:    m,
		log:        log,
		now:        time.Now,
	}

	if cfg.Kafka.Enabled() {
		bus, err := kafkabus.NewPublisher(kafkabus.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			Format:  format,
		})
		if err != nil {
			return fmt.Errorf("init kafka: %w", err)
		}
		defer bus.Close()
		d.bus = bus
	}

	clock := switchctl.SystemClock()
	for _, sc := range cfg.Switches {
		if err := d.addSwitch(port, sc, clock); err != nil {
			return err
		}
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startup); err != nil {
		log.Warn("failed to publish startup event", slog.Any("err", err))
	} else {
		log.Info("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker, m.Handler(), accessLog(log))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server error", slog.Any("err", err))
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info("http status server listening", slog.String("addr", cfg.HTTP))

		if cfg.MDNS {
			adv, err := advertise(cfg)
			if err != nil {
				log.Warn("mdns advertise failed", slog.Any("err", err))
			} else {
				defer adv.Shutdown()
				log.Info("advertising over mdns", slog.String("service", discovery.ServiceType))
			}
		}
	}

	log.Info("started",
		slog.Duration("poll", cfg.Poll),
		slog.Int("switches", len(cfg.Switches)),
		slog.String("backend", string(backend)),
		slog.String("broker", cfg.Broker),
		slog.Duration("heartbeat", cfg.Heartbeat),
	)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(d, cfg.Heartbeat, ticker.C, sigCh)
}

// eventBus is an additional transition sink (Kafka).
type eventBus interface {
	Publish(ctx context.Context, event events.Event) error
}

// switchMonitor pairs a debounced reader with its configured name.
type switchMonitor struct {
	name   string
	reader *switchctl.Reader
}

// sinkQueue bounds the transitions waiting for MQTT and Kafka delivery.
const sinkQueue = 64

// daemon fans accepted transitions out to every sink. Polling is owned by the
// runLoop goroutine; broker delivery happens on a separate sink goroutine so
// a slow broker never delays the next read.
type daemon struct {
	monitors   []switchMonitor
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	bus        eventBus
	tracker    *status.Tracker
	metrics    *metrics.Metrics
	log        *slog.Logger
	now        func() time.Time

	sink     chan events.Event
	sinkDone chan struct{}
}

func (d *daemon) addSwitch(port switchctl.Port, sc config.Switch, clock switchctl.Clock) error {
	name, pin := sc.Name, sc.Pin
	opts := []switchctl.Option{
		switchctl.WithDebounce(sc.DebounceWindow()),
		switchctl.WithClock(clock),
		switchctl.WithLogger(d.log.With(slog.String("switch", name))),
		switchctl.WithDispatcher(func(id switchctl.EventID, s switchctl.State) {
			d.dispatch(name, pin, id, s)
		}),
	}
	if !sc.IsPullUp() {
		opts = append(opts, switchctl.WithPullDown())
	}

	r, err := switchctl.New(port, pin, opts...)
	if err != nil {
		return fmt.Errorf("switch %q: %w", name, err)
	}
	d.monitors = append(d.monitors, switchMonitor{name: name, reader: r})
	return nil
}

// dispatch handles one accepted transition. It runs inside Reader.Read, so
// it only updates local state and queues the event; it never waits on a
// broker. A full queue drops the event.
func (d *daemon) dispatch(name string, pin int, id switchctl.EventID, s switchctl.State) {
	ev := events.New(d.now(), name, pin, id, s)
	d.log.Info("transition",
		slog.String("switch", name),
		slog.String("event", s.String()),
		slog.String("state", s.Steady().String()),
	)

	d.tracker.RecordTransition(name, s, ev.Timestamp)
	d.metrics.Transition(name, s)

	if d.sink == nil {
		d.deliver(ev)
		return
	}
	select {
	case d.sink <- ev:
	default:
		d.log.Warn("sink queue full, dropping transition",
			slog.String("switch", name),
			slog.String("event", s.String()),
			slog.String("id", ev.ID.String()),
		)
		d.metrics.Dropped(name)
	}
}

// deliver publishes one transition to MQTT and Kafka. Sink failures are
// logged and never stop the loop.
func (d *daemon) deliver(ev events.Event) {
	if err := d.publisher.Publish(ev); err != nil {
		d.log.Warn("publish error", slog.String("switch", ev.Switch), slog.Any("err", err))
	}
	if d.bus != nil {
		if err := d.bus.Publish(context.Background(), ev); err != nil {
			d.log.Warn("kafka publish error", slog.String("switch", ev.Switch), slog.Any("err", err))
		}
	}
}

// startSinks starts the goroutine that drains queued transitions into the
// brokers. It is a no-op if the sinks are already running.
func (d *daemon) startSinks(size int) {
	if d.sink != nil {
		return
	}
	d.sink = make(chan events.Event, size)
	d.sinkDone = make(chan struct{})
	go func(sink <-chan events.Event, done chan<- struct{}) {
		defer close(done)
		for ev := range sink {
			d.deliver(ev)
		}
	}(d.sink, d.sinkDone)
}

// stopSinks closes the queue and waits until every queued transition has
// been delivered. Later transitions are delivered inline.
func (d *daemon) stopSinks() {
	if d.sink == nil {
		return
	}
	close(d.sink)
	<-d.sinkDone
	d.sink, d.sinkDone = nil, nil
}

// poll reads every switch once.
func (d *daemon) poll() {
	for _, m := range d.monitors {
		s, err := m.reader.Read()
		if err != nil {
			d.log.Warn("gpio read error", slog.String("switch", m.name), slog.Any("err", err))
			d.tracker.RecordError(m.name)
			d.metrics.ReadError(m.name)
			continue
		}
		d.tracker.UpdateState(m.name, s)
		d.metrics.SetState(m.name, s)
	}
}

func (d *daemon) refreshConnection() {
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
}

func runLoop(d *daemon, heartbeat time.Duration, tick <-chan time.Time, sig <-chan os.Signal) error {
	hb := status.NewHeartbeat(d.now(), heartbeat)
	d.startSinks(sinkQueue)

	for {
		select {
		case s := <-sig:
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			d.log.Info("shutting down", slog.String("signal", signalName))

			// Queued transitions go out before the retained SHUTDOWN.
			d.stopSinks()
			d.refreshConnection()
			event := mqtt.SystemEvent{
				Timestamp:  d.now(),
				Event:      "SHUTDOWN",
				Reason:     signalName,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(d.tracker.Snapshot(), "SHUTDOWN", signalName),
			}
			if err := d.publisher.PublishSystem(event); err != nil {
				d.log.Warn("failed to publish shutdown event", slog.Any("err", err))
			} else {
				d.log.Info("published shutdown event")
			}
			return nil

		case <-tick:
			d.poll()
			d.refreshConnection()

			t := d.now()
			if !hb.Due(t) {
				continue
			}
			// Refresh network info for heartbeat
			if net := readNetworkInfo(); net != nil {
				d.tracker.SetNetwork(net)
			}
			snap := d.tracker.Snapshot()
			d.log.Info("heartbeat", slog.Duration("uptime", snap.Uptime().Truncate(time.Second)))

			hbEvent := mqtt.SystemEvent{
				Timestamp:  t,
				Event:      "HEARTBEAT",
				RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
			}
			if err := d.publisher.PublishSystem(hbEvent); err != nil {
				d.log.Warn("heartbeat publish error", slog.Any("err", err))
			}
		}
	}
}

// printStates samples every switch once, without debouncing.
func printStates(w io.Writer, port switchctl.Port, switches []config.Switch) error {
	for _, sc := range switches {
		opts := []switchctl.Option{switchctl.WithDebounce(0)}
		if !sc.IsPullUp() {
			opts = append(opts, switchctl.WithPullDown())
		}
		r, err := switchctl.New(port, sc.Pin, opts...)
		if err != nil {
			return fmt.Errorf("switch %q: %w", sc.Name, err)
		}
		s, err := r.Read()
		if err != nil {
			return fmt.Errorf("switch %q: %w", sc.Name, err)
		}
		fmt.Fprintf(w, "%s (pin %d): %s\n", sc.Name, sc.Pin, s.Steady())
	}
	return nil
}

func statusConfig(cfg config.Config, wsURL string) status.Config {
	sc := status.Config{
		PollMs:      cfg.Poll.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Backend:     cfg.Backend,
		Broker:      cfg.Broker,
		HTTPPort:    cfg.HTTP,
		WSBroker:    wsURL,
	}
	for _, s := range cfg.Switches {
		sc.Switches = append(sc.Switches, status.SwitchConfig{
			Name:       s.Name,
			Pin:        s.Pin,
			PullUp:     s.IsPullUp(),
			DebounceMs: s.DebounceWindow().Milliseconds(),
		})
	}
	return sc
}

func advertise(cfg config.Config) (*discovery.Advertiser, error) {
	port, err := discovery.PortFromAddr(cfg.HTTP)
	if err != nil {
		return nil, err
	}
	instance, err := os.Hostname()
	if err != nil || instance == "" {
		instance = cfg.ClientID
	}

	info := discovery.Info{Instance: instance, Port: port}
	for _, s := range cfg.Switches {
		info.Switches = append(info.Switches, s.Name)
	}

	adv := discovery.NewAdvertiser("")
	if err := adv.Advertise(info); err != nil {
		return nil, err
	}
	return adv, nil
}

// accessLog routes HTTP access lines through the logger at debug level.
func accessLog(log *slog.Logger) io.Writer {
	if !log.Enabled(context.Background(), slog.LevelDebug) {
		return nil
	}
	return &logWriter{log: log}
}

type logWriter struct {
	log *slog.Logger
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.log.Debug("http", slog.String("access", strings.TrimRight(string(p), "\n")))
	return len(p), nil
}

func parseLevel(level string) slog.Leveler {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

// resolveWSBroker converts the --ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; empty disables.
func resolveWSBroker(ws, broker string, log *slog.Logger) string {
	if ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Warn("ws-broker: cannot parse broker", slog.String("broker", broker), slog.Any("err", err))
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
