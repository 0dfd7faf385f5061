package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/AaronLay10/SentientDialogue/internal/api"
	"github.com/AaronLay10/SentientDialogue/internal/config"
	"github.com/AaronLay10/SentientDialogue/internal/dialogue"
	"github.com/AaronLay10/SentientDialogue/internal/events"
	"github.com/AaronLay10/SentientDialogue/internal/mqtt"
	"github.com/AaronLay10/SentientDialogue/internal/storage/postgres"
	"github.com/AaronLay10/SentientDialogue/internal/terminal"
	"github.com/AaronLay10/SentientDialogue/internal/version"
	"github.com/AaronLay10/SentientDialogue/internal/voice"
)

// headlessPresenter draws nothing but still times voice clips, so a
// headless player paces silent events exactly like a terminal one.
type headlessPresenter struct {
	dialogue.NopPresenter
	clips *voice.Library
}

func (p headlessPresenter) PlayClip(ref string) time.Duration {
	return p.clips.Play(ref)
}

func main() {
	var configPath, dialoguePath, logPath string
	var headless bool

	flag.StringVar(&configPath, "config", "", "player.yaml path (built-in defaults when empty)")
	flag.StringVar(&dialoguePath, "dialogue", "", "dialogue document (overrides dialogue.path)")
	flag.BoolVar(&headless, "headless", false, "run without the terminal presenter")
	flag.StringVar(&logPath, "log", "", "write process logs to this file")
	flag.Parse()

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if dialoguePath != "" {
		cfg.Dialogue.Path = dialoguePath
	}
	if headless {
		cfg.Dialogue.Headless = true
	}
	if cfg.Dialogue.Path == "" {
		fmt.Fprintln(os.Stderr, "Error: no dialogue file (use -dialogue or DIALOGUE_FILE)")
		os.Exit(1)
	}

	if err := setupLogging(logPath, cfg.Dialogue.Headless); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Printf("dialogue player failed: %v", err)
		stop()
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.PlayerConfig, error) {
	cfg := config.DefaultPlayerConfig()
	if path != "" {
		loaded, err := config.LoadPlayerConfig(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		cfg = loaded
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging keeps process logs off the terminal the presenter owns.
func setupLogging(path string, headless bool) error {
	switch {
	case path != "":
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		log.SetOutput(f)
	case !headless:
		log.SetOutput(io.Discard)
	}
	return nil
}

// streamEvents prints every emitted event as a JSON line on stdout.
func streamEvents() {
	sub := events.Subscribe()
	go func() {
		for e := range sub {
			b, err := json.Marshal(e)
			if err != nil {
				continue
			}
			fmt.Println(string(b))
		}
	}()
}

func run(ctx context.Context, cfg *config.PlayerConfig) error {
	if cfg.Dialogue.Headless {
		streamEvents()
	}

	creds, err := config.LoadCredentials()
	if err != nil {
		return err
	}
	api.InitAuth(creds)
	if err := api.InitTLS(); err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	if err := api.InitAlerts(); err != nil {
		return fmt.Errorf("alerts: %w", err)
	}
	api.InitMetrics(cfg.PlayerID)

	hostname, _ := os.Hostname()
	events.Emit("info", "system.startup", "dialogue player starting", map[string]interface{}{
		"service":   "dialogue",
		"version":   version.Version,
		"player_id": cfg.PlayerID,
		"hostname":  hostname,
		"pid":       os.Getpid(),
		"dialogue":  cfg.Dialogue.Path,
	})

	pg := connectPostgres(cfg, creds)
	if pg != nil {
		defer func() {
			// Flush queued rows before the connection goes away.
			events.SetPostgresClient(nil)
			pg.Close()
		}()
	}

	doc, err := dialogue.LoadDocument(cfg.Dialogue.Path)
	if err != nil {
		return err
	}
	graph, err := doc.Graph()
	if err != nil {
		return fmt.Errorf("build dialogue graph: %w", err)
	}
	for _, issue := range dialogue.Lint(graph) {
		log.Printf("dialogue: %s", issue.Message)
	}

	voiceDir := cfg.Dialogue.VoiceDir
	if voiceDir == "" {
		voiceDir = filepath.Dir(cfg.Dialogue.Path)
	}
	clips := voice.NewLibrary(voiceDir)
	if n, err := clips.Load(); err != nil {
		log.Printf("voice: %v", err)
	} else {
		log.Printf("voice: %d clips loaded from %s", n, voiceDir)
	}
	if err := clips.InitOutput(); err != nil {
		log.Printf("voice: audio output unavailable, clips are timed but silent: %v", err)
	}
	defer clips.Stop()

	var presenter dialogue.Presenter = headlessPresenter{clips: clips}
	var screen tcell.Screen
	if !cfg.Dialogue.Headless {
		screen, err = tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("open terminal: %w", err)
		}
		if err := screen.Init(); err != nil {
			return fmt.Errorf("init terminal: %w", err)
		}
		defer screen.Fini()
		presenter = terminal.NewPresenter(screen, clips)
	}

	opts := []dialogue.Option{
		dialogue.WithScrollSpeed(cfg.ScrollInterval()),
		dialogue.WithStartDelay(cfg.StartDelay()),
		dialogue.WithSkipDelay(cfg.Dialogue.SkipDelay),
	}
	opts = append(opts, doc.Options()...)
	seq, err := dialogue.NewSequencer(graph, presenter, opts...)
	if err != nil {
		return fmt.Errorf("create sequencer: %w", err)
	}

	api.SetController(seq)
	api.SetDialogueReady(true)
	api.Start(cfg.APIPort())

	alertStop := make(chan struct{})
	defer close(alertStop)
	api.StartAlertMonitor(10*time.Second, alertStop)

	client, mirror := connectMQTT(cfg, creds, seq)
	if client != nil {
		defer client.Disconnect()
		defer mirror.Stop()
	}

	seq.Begin()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if screen != nil {
		p := presenter.(*terminal.Presenter)
		go func() {
			// A quit key ends the player like a signal would.
			_ = p.Run(ctx, seq)
			cancel()
		}()
	}

	play(ctx, seq, cfg.Dialogue.Tick)

	events.Emit("info", "system.shutdown", "dialogue player stopping", map[string]interface{}{
		"player_id": cfg.PlayerID,
		"cursor":    seq.Cursor(),
	})
	api.SetDialogueReady(false)
	events.CloseAllSubscribers()
	return nil
}

// play ticks the sequencer until ctx is done. A finished dialogue stays on
// its last frame until an operator resets it.
func play(ctx context.Context, seq *dialogue.Sequencer, tick time.Duration) {
	for {
		if err := seq.Run(ctx, tick); err != nil {
			return
		}
		log.Printf("dialogue finished, waiting for reset")
		if !waitForReset(ctx, seq, tick) {
			return
		}
	}
}

func waitForReset(ctx context.Context, seq *dialogue.Sequencer, tick time.Duration) bool {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if seq.Phase() != dialogue.PhaseFinished {
				return true
			}
		}
	}
}

func connectPostgres(cfg *config.PlayerConfig, creds *config.Credentials) *postgres.Client {
	if !cfg.Postgres.Enabled {
		api.SetPostgresState(false, true)
		return nil
	}

	pg, err := postgres.New(postgres.Options{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: creds.PostgresPassword,
		Database: cfg.Postgres.Database,
		SSLMode:  cfg.Postgres.SSLMode,
	}, cfg.PlayerID)
	if err != nil {
		log.Printf("postgres: %v (event history disabled)", err)
		api.SetPostgresState(false, false)
		return nil
	}
	events.SetPostgresClient(pg)
	api.SetPostgresState(true, false)
	return pg
}

// connectMQTT wires the remote input bridge and the retained state mirror.
// The broker is optional: the client keeps retrying in the background.
func connectMQTT(cfg *config.PlayerConfig, creds *config.Credentials, seq *dialogue.Sequencer) (*mqtt.Client, *mqtt.StateMirror) {
	if cfg.MQTT.URL == "" {
		api.SetMQTTState(false, true)
		return nil, nil
	}

	var bridge *mqtt.InputBridge
	var mirror *mqtt.StateMirror

	client := mqtt.NewClient(mqtt.Options{
		BrokerURL: cfg.MQTT.URL,
		ClientID:  cfg.MQTT.ClientID,
		Username:  cfg.MQTT.Username,
		Password:  creds.MQTTPassword,
		OnConnect: func() {
			api.SetMQTTState(true, true)
			bridge.ClearSubscription()
			if err := bridge.Subscribe(); err != nil {
				log.Printf("mqtt: subscribe %s: %v", bridge.Topic(), err)
			}
			mirror.Resync()
		},
		OnConnectionLost: func(error) {
			api.SetMQTTState(false, true)
			bridge.ClearSubscription()
		},
	})

	bridge = mqtt.NewInputBridge(client, seq, mqtt.InputTopic(cfg.MQTT.TopicPrefix, cfg.PlayerID))
	mirror = mqtt.NewStateMirror(client, seq, mqtt.StateTopic(cfg.MQTT.TopicPrefix, cfg.PlayerID))
	api.SetSourceLister(bridge.Sources())
	api.SetMQTTState(false, true)

	client.ConnectWithLog()
	mirror.Start(250 * time.Millisecond)
	return client, mirror
}
