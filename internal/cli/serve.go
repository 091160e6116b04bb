package cli

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/gatewarden/internal/bridge"
	"github.com/ppiankov/gatewarden/internal/compact"
	"github.com/ppiankov/gatewarden/internal/config"
	"github.com/ppiankov/gatewarden/internal/decision"
	"github.com/ppiankov/gatewarden/internal/directory"
	"github.com/ppiankov/gatewarden/internal/gate"
	"github.com/ppiankov/gatewarden/internal/llm"
	"github.com/ppiankov/gatewarden/internal/log"
	"github.com/ppiankov/gatewarden/internal/notify"
	"github.com/ppiankov/gatewarden/internal/record"
	"github.com/ppiankov/gatewarden/internal/server"
	"github.com/ppiankov/gatewarden/internal/session"
	"github.com/ppiankov/gatewarden/internal/vision"
)

var serveConfig string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveConfig, "config", "c", "", "Path to config YAML (defaults apply when omitted)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the checkpoint gate daemon",
	Long: "Runs the WebSocket gateway, the vision pipeline, and the state\n" +
		"bridge. Kiosks connect to /ws; health is on /healthz, metrics on\n" +
		"/metrics.",
	RunE: runServe,
}

// frameModel adapts the chat client's vision capability to raw JPEG
// frames.
type frameModel struct {
	client *llm.Client
}

func (f frameModel) AnalyzeFrame(ctx context.Context, jpeg []byte) (json.RawMessage, error) {
	return f.client.AnalyzeFrame(ctx, base64.StdEncoding.EncodeToString(jpeg))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveConfig)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	log.Configure(log.Config{Level: cfg.LogLevel})
	logger := log.WithComponent("serve")

	dir, err := directory.Load(cfg.Directory.ContactsPath, cfg.Directory.EmployeesPath)
	if err != nil {
		return fmt.Errorf("load directory: %w", err)
	}

	client := llm.New(llm.Config{
		APIURL:     cfg.LLM.APIURL,
		APIKey:     cfg.LLM.APIKey,
		MaxTokens:  cfg.LLM.MaxTokens,
		Timeout:    cfg.LLM.Timeout,
		Main:       llm.Params(cfg.LLM.Main),
		Validation: llm.Params(cfg.LLM.Validation),
		Session:    llm.Params(cfg.LLM.Session),
		Summary:    llm.Params(cfg.LLM.Summary),
		Decision:   llm.Params(cfg.LLM.Decision),
		Vision:     llm.Params(cfg.LLM.Vision),
	})

	compactor, err := compact.New(cfg.Compact.Strategy, cfg.Compact.MinMessages, cfg.Compact.KeepRecent, client)
	if err != nil {
		return fmt.Errorf("compaction: %w", err)
	}

	threats, err := record.Open(cfg.Record.Dir, cfg.Record.MaxEntries)
	if err != nil {
		return fmt.Errorf("threat log: %w", err)
	}
	defer threats.Close()

	store := session.NewStore()
	engine := decision.NewEngine(client, dir)
	mailer := notify.NewMailer(cfg.Notify.SMTP, cfg.SMTPPassword())
	webhooks := notify.NewDispatcher(cfg.Notify.Webhooks)

	var notifier gate.Notifier
	if mailer != nil {
		notifier = mailer
	}
	machine := gate.New(gate.Config{
		Store:            store,
		Language:         client,
		Contacts:         dir,
		Compactor:        compactor,
		Decider:          engine,
		Notifier:         notifier,
		MaxHumanMessages: cfg.Compact.MaxHumanMessages,
	})

	updates := bridge.NewQueue(cfg.Bridge.QueueSize)
	frames := vision.NewFrameQueue(cfg.Vision.FrameQueueSize)
	events := vision.NewEventQueue(cfg.Vision.EventQueueSize)
	analyzer := vision.NewAnalyzer(vision.AnalyzerConfig{
		Frames:             frames,
		Events:             events,
		Updates:            updates,
		Model:              frameModel{client: client},
		Threats:            threats,
		WindowSize:         cfg.Vision.WindowSize,
		EscalationCooldown: cfg.Vision.EscalationCooldown,
	})

	srv := server.New(server.Config{
		Listen:          cfg.Listen,
		Machine:         machine,
		Store:           store,
		Updates:         updates,
		Frames:          frames,
		Events:          events,
		Analyzer:        analyzer,
		Threats:         threats,
		Directory:       dir,
		Webhooks:        webhooks,
		EventPoll:       cfg.Vision.PollInterval,
		CaptureInterval: cfg.Vision.CaptureInterval,
	})

	worker := bridge.NewWorker(bridge.WorkerConfig{
		Queue:        updates,
		Store:        store,
		Sink:         srv,
		PollInterval: cfg.Bridge.PollInterval,
		MaxBatch:     cfg.Bridge.MaxBatch,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Directory.Watch {
		go func() {
			if err := dir.Watch(ctx); err != nil {
				logger.Warn().Err(err).Msg("directory hot-reload disabled")
			}
		}()
	}
	go worker.Run(ctx)
	go analyzer.Run(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info().Msg("shutting down")
		cancel()
	}()

	if mailer == nil {
		logger.Warn().Msg("SMTP not configured, arrival notifications disabled")
	}
	return srv.Run(ctx)
}
