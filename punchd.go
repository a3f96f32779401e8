package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v2"

	"punchd/attend"
	"punchd/eventpipe"
	"punchd/indicator"
	"punchd/link"
	"punchd/mqtt"
	"punchd/reader"
	"punchd/store"
	"punchd/watcher"
)

var myBuild string

// App holds the application state and dependencies. All mutable state
// is owned by the dispatcher goroutine; producers hand events over on
// channels and never mutate it directly.
type App struct {
	cfg       *Config
	store     attend.Store
	engine    *attend.Engine
	front     *reader.FrontEnd
	watch     *watcher.Watcher
	coord     *link.Coordinator
	mqtt      *mqtt.Client
	indicator indicator.Indicator
	pipe      *eventpipe.EventPipe

	// tasks carries closures posted onto the dispatcher goroutine:
	// settle timers, pipe commands, MQTT control messages.
	tasks chan func()

	lastPort string
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func main() {
	fmt.Printf("punchd build %s\n", myBuild)

	cfgfile := flag.String("cfg", "punchd.cfg", "Config file")
	flag.Parse()

	f, err := os.Open(*cfgfile)
	if err != nil {
		log.Fatalf("Open config: %v", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		log.Fatalf("Decode config: %v", err)
	}

	if cfg.ClientID == "" {
		log.Fatal("client_id missing in config file")
	}

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		cfg:    &cfg,
		tasks:  make(chan func(), 16),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	// Initialize indicator (LEDs, beeper)
	app.indicator, err = indicator.New(cfg.Indicator)
	if err != nil {
		log.Fatalf("Init indicator: %v", err)
	}
	app.indicator.LinkLost() // No reader connected yet

	// Initialize attendance store and engine
	app.store, err = store.New(cfg.Store)
	if err != nil {
		log.Fatalf("Init store: %v", err)
	}
	app.engine = attend.NewEngine(app.store)

	// Initialize scan front-end
	app.front = reader.NewFrontEnd(cfg.Reader)

	// Initialize device watcher
	app.watch = watcher.New(cfg.Watcher)

	// Initialize reconnection coordinator
	app.coord = link.New(cfg.Link, link.Deps{
		Open:         app.front.Connect,
		Close:        app.front.Disconnect,
		Ports:        app.front.AvailablePorts,
		Notify:       app.notifyLink,
		After:        app.after,
		RememberPort: app.rememberPort,
	})

	// Initialize MQTT
	app.mqtt, err = mqtt.New(cfg.MQTT, cfg.ClientID, mqtt.Handlers{
		OnConnect: app.onMQTTConnect,
		OnMessage: app.onMQTTMessage,
	})
	if err != nil {
		log.Fatalf("Init MQTT: %v", err)
	}

	// Initialize event pipe if configured
	app.pipe, err = eventpipe.New(cfg.EventPipe, app.handlePipeEvent)
	if err != nil {
		log.Fatalf("Init event pipe: %v", err)
	}
	if app.pipe != nil {
		go app.pipe.Start()
	}

	// Start background goroutines
	go func() {
		if err := app.mqtt.Connect(); err != nil {
			log.Printf("MQTT connect: %v", err)
		}
	}()
	app.watch.Start()
	go app.pingSender()

	// Apply auto-connect-on-startup once the dispatcher is running.
	app.post(app.coord.Startup)
	go app.dispatch()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("Shutting down...")
	cancel()
	<-app.done

	// Cleanup
	app.mqtt.Disconnect()
	app.front.Disconnect()
	app.watch.Stop()
	if app.pipe != nil {
		app.pipe.Close()
	}
	app.indicator.Release()
	app.store.Close()

	fmt.Println("Shutdown complete")
}

// dispatch is the single consumer loop. Everything that touches shared
// state runs here: scan processing, coordinator transitions, settle
// timers, pipe and MQTT commands.
func (app *App) dispatch() {
	defer close(app.done)

	events := app.watch.Events()
	for {
		select {
		case <-app.ctx.Done():
			return
		case scan := <-app.front.Scans():
			app.handleScan(scan)
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			app.coord.HandleDeviceEvent(ev)
		case fn := <-app.tasks:
			fn()
		}
	}
}

// post hands a closure to the dispatcher goroutine.
func (app *App) post(fn func()) {
	select {
	case app.tasks <- fn:
	case <-app.ctx.Done():
	}
}

// after schedules fn on the dispatcher goroutine after d. Used by the
// coordinator for its settle delay; the wait is a timer, not a sleep on
// the consumer context.
func (app *App) after(d time.Duration, fn func()) {
	time.AfterFunc(d, func() { app.post(fn) })
}

func (app *App) handleScan(scan reader.ScanEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	res, err := app.engine.ProcessScan(ctx, scan.Raw, scan.At)
	cancel()
	if err != nil {
		log.Printf("Process scan %q: %v", scan.Raw, err)
		app.indicator.Denied()
		return
	}

	card := strings.TrimSpace(scan.Raw)
	name := ""
	if res.Employee != nil {
		name = res.Employee.Name
	}

	switch res.Outcome {
	case attend.ClockedIn:
		log.Printf("%s (%s) clocked in at %s", name, card, scan.At.Format("15:04:05"))
		app.indicator.Accepted()
	case attend.ClockedOut:
		log.Printf("%s (%s) clocked out at %s", name, card, scan.At.Format("15:04:05"))
		app.indicator.Accepted()
	case attend.UnknownCard:
		log.Printf("Unknown card %q", card)
		app.indicator.Denied()
	case attend.InactiveCard:
		log.Printf("Inactive card %q (%s)", card, name)
		app.indicator.Denied()
	case attend.Rejected:
		log.Printf("Rejected scan %q: %s", card, res.Reason)
		app.indicator.Denied()
	}

	app.mqtt.PublishScan(res.Outcome.String(), card, name)
}

// notifyLink surfaces a transient connection notification and keeps the
// indicator in step with the coordinator's state.
func (app *App) notifyLink(msg string) {
	log.Println(msg)
	connected := app.coord.State() == link.Connected
	if connected {
		app.indicator.Idle()
	} else {
		app.indicator.LinkLost()
	}
	app.mqtt.PublishLink(connected, app.coord.Port(), msg)
}

// rememberPort records the last successfully connected port. Persisting
// it into the settings file is the settings collaborator's job.
func (app *App) rememberPort(port string) {
	app.lastPort = port
	log.Printf("Remembered last connected port %s", port)
}

func (app *App) onMQTTConnect() {
	if err := app.mqtt.SubscribeControl(); err != nil {
		log.Printf("Subscribe error: %v", err)
	}
}

// onMQTTMessage fires on the paho goroutine; commands are posted onto
// the dispatcher before touching the coordinator.
func (app *App) onMQTTMessage(topic string, payload []byte) {
	if topic != app.mqtt.ControlTopic() {
		return
	}
	parts := strings.Fields(string(payload))
	if len(parts) == 0 {
		return
	}
	switch strings.ToLower(parts[0]) {
	case "connect":
		if len(parts) < 2 {
			log.Printf("Control connect without port")
			return
		}
		port := parts[1]
		app.post(func() {
			if err := app.coord.ConnectRequest(port); err != nil {
				log.Printf("Remote connect: %v", err)
			}
		})
	case "disconnect":
		app.post(app.coord.DisconnectRequest)
	default:
		log.Printf("Unknown control command %q", parts[0])
	}
}

// handlePipeEvent fires on the pipe reader goroutine; events are posted
// onto the dispatcher.
func (app *App) handlePipeEvent(ev eventpipe.Event) {
	app.post(func() { app.applyPipeEvent(ev) })
}

func (app *App) applyPipeEvent(ev eventpipe.Event) {
	switch ev.Type {
	case eventpipe.EventScan:
		app.handleScan(reader.ScanEvent{Raw: ev.Card, At: time.Now()})

	case eventpipe.EventAttach:
		desc := watcher.DeviceDescriptor{
			Port:    ev.Port,
			Name:    ev.Port,
			Caption: ev.Caption,
		}
		if desc.Port == "" {
			desc.Port = watcher.PortFromCaption(ev.Caption)
		}
		desc.IsReaderClass = watcher.Classify(desc)
		app.coord.HandleDeviceEvent(watcher.Event{Attach: true, Desc: desc})

	case eventpipe.EventDetach:
		app.coord.HandleDeviceEvent(watcher.Event{
			Attach: false,
			Desc:   watcher.DeviceDescriptor{Port: ev.Port, Name: ev.Port},
		})

	case eventpipe.EventConnect:
		if err := app.coord.ConnectRequest(ev.Port); err != nil {
			log.Printf("Connect %s: %v", ev.Port, err)
		}

	case eventpipe.EventDisconnect:
		app.coord.DisconnectRequest()

	case eventpipe.EventRegister:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := app.engine.Register(ctx, ev.Card, ev.Name, ev.Department)
		cancel()
		if err != nil {
			log.Printf("Register %s: %v", ev.Card, err)
			return
		}
		log.Printf("Registered %s as %s", ev.Card, ev.Name)
	}
}

func (app *App) pingSender() {
	ticker := time.NewTicker(120 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			app.mqtt.PublishPing()
		}
	}
}
