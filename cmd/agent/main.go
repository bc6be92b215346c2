package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/retailsync/ledger/internal/agent"
	"github.com/retailsync/ledger/internal/domain"
)

var (
	serverURL  string
	deviceID   string
	token      string
	storePath  string
	interval   time.Duration
	batchSize  int
	appVersion string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "retailsync-agent",
		Short: "POS device sync agent",
		Long:  "Captures POS events into a durable local outbox and syncs them to the ledger server.",
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Sync server base URL")
	rootCmd.PersistentFlags().StringVar(&deviceID, "device-id", os.Getenv("DEVICE_ID"), "Registered device id")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("DEVICE_TOKEN"), "Device token")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "outbox.log", "Path of the durable outbox store")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sync loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSyncLoop()
		},
	}
	runCmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "Sync interval")
	runCmd.Flags().IntVar(&batchSize, "batch-size", 100, "Events per submit batch")
	runCmd.Flags().StringVar(&appVersion, "app-version", "dev", "Version reported in heartbeats")

	enqueueCmd := &cobra.Command{
		Use:   "enqueue <event-type> <payload-file>",
		Short: "Capture one event into the local outbox",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return enqueueEvent(args[0], args[1])
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show local outbox state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus()
		},
	}

	rootCmd.AddCommand(runCmd, enqueueCmd, statusCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore() (*agent.FileStore, error) {
	return agent.OpenFileStore(storePath, 0)
}

func runSyncLoop() error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	queue := agent.NewQueue(store)
	client := agent.NewClient(serverURL, deviceID, token, 30*time.Second)

	syncer := agent.NewSyncer(agent.SyncerConfig{
		Queue:     queue,
		Cursor:    store,
		Transport: client,
		Applier: agent.ApplierFunc(func(u domain.Update) error {
			logger.Info().
				Int64("seq", u.Seq).
				Str("kind", string(u.Kind)).
				Str("ref_id", u.RefID).
				Msg("update received")
			return nil
		}),
		Interval:   interval,
		BatchSize:  batchSize,
		AppVersion: appVersion,
		Logger:     logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return syncer.Run(ctx)
}

func enqueueEvent(eventType, payloadFile string) error {
	payload, err := os.ReadFile(payloadFile)
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}
	if !json.Valid(payload) {
		return fmt.Errorf("payload is not valid JSON")
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	id, err := agent.NewQueue(store).Enqueue(eventType, payload)
	if err != nil {
		return err
	}

	fmt.Println(id)
	return nil
}

func showStatus() error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	queue := agent.NewQueue(store)
	fmt.Printf("queued:  %d\n", queue.Depth())
	if oldest := queue.Oldest(); oldest != nil {
		fmt.Printf("oldest:  %s\n", oldest.Format(time.RFC3339))
	}
	fmt.Printf("cursor:  %d\n", store.Cursor())
	return nil
}
