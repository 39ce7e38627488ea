package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/camden-git/facebench/config"
	"github.com/camden-git/facebench/handlers"
	"github.com/camden-git/facebench/media"
	"github.com/camden-git/facebench/metrics"
	"github.com/camden-git/facebench/realtime"
	"github.com/camden-git/facebench/recognition"
	"github.com/camden-git/facebench/report"
	"github.com/camden-git/facebench/repository"
	"github.com/camden-git/facebench/services"
	"github.com/camden-git/facebench/session"
	"github.com/camden-git/facebench/workers"
)

const finalizeTimeout = 30 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one timed recognition session",
	Long: `Opens the camera and classifies a sampled frame every SAMPLE_INTERVAL for
SESSION_DURATION (15s by default). Press q in the preview window to stop early.

Without --model the model is chosen from a menu. With a participant name the
session also verifies that the recognized person is that participant.`,
	Args: cobra.NoArgs,
	RunE: runSession,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("model", "", "Model number or name (ArcFace, Facenet, Dlib)")
	runCmd.Flags().String("participant", "", "Expected identity; empty disables verification")
	runCmd.Flags().Duration("duration", 0, "Session length (overrides SESSION_DURATION)")
	runCmd.Flags().Bool("serve", false, "Serve the API, live frame and event stream during the session")
	runCmd.Flags().Bool("no-window", false, "Do not open the preview window")
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	thresholds, err := recognition.NewThresholds(cfg.Thresholds)
	if err != nil {
		return err
	}

	gallery, err := media.ListGallery(cfg.GalleryPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeDB, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	in := bufio.NewReader(os.Stdin)
	model, err := selectModel(cmd, in)
	if err != nil {
		return err
	}
	participant := mustGetString(cmd, "participant")
	if !cmd.Flags().Changed("participant") {
		if participant, err = promptParticipant(in, os.Stdout); err != nil {
			return err
		}
	}
	duration := cfg.SessionDuration
	if d := mustGetDuration(cmd, "duration"); d > 0 {
		duration = d
	}

	recognizer, err := buildRecognizer(cfg, gallery, model)
	if err != nil {
		return err
	}
	defer recognizer.Close()
	if err := recognizer.Prepare(model); err != nil {
		return err
	}

	camera, err := media.OpenCamera(cfg.CameraIndex, cfg.FrameWidth, cfg.FrameHeight)
	if err != nil {
		return err
	}
	defer camera.Close()

	registry := prometheus.NewRegistry()
	sessionMetrics, err := metrics.NewSessionMetrics(registry)
	if err != nil {
		return err
	}

	var sinks realtime.Fanout
	if publisher := connectPublisher(cfg); publisher != nil {
		defer publisher.Close()
		sinks = append(sinks, publisher)
	}

	slot := &workers.FrameSlot{}
	defer slot.Reset()

	var aggregates aggregateCache
	if mustGetBool(cmd, "serve") {
		hubCtx, stopHub := context.WithCancel(ctx)
		defer stopHub()
		hub := realtime.NewHub()
		go hub.Run(hubCtx)
		sinks = append(sinks, hub)

		statsHandler := handlers.NewStatsHandler(store, thresholds, cfg.StatsCacheTTL)
		aggregates = statsHandler
		srv := &http.Server{
			Addr: cfg.HTTPAddr,
			Handler: handlers.NewRouter(handlers.Routes{
				Stats:   statsHandler,
				Live:    &handlers.LiveHandler{Slot: slot, Encode: media.EncodeJPEG},
				Events:  hub.ServeWS,
				Metrics: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Printf("Server listening on %s", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Error: server stopped: %v", err)
			}
		}()
		defer shutdownServer(srv)
	}

	runner := &session.Runner{
		Source:     camera,
		Classifier: recognition.NewClassifier(recognizer, thresholds),
		Slot:       slot,
		Observer:   sessionMetrics,
		OnEvent:    sinks.PublishEvent,
	}
	if !mustGetBool(cmd, "no-window") {
		window := media.NewWindow("Face Recognition")
		defer window.Close()
		runner.Display = window
	}

	fmt.Printf("\nRunning %s for %s", model, duration)
	if participant != "" {
		fmt.Printf(", verifying %s", participant)
	}
	fmt.Println("... press q in the preview window to stop")

	stopBar := startCountdown(ctx, duration)
	result := runner.Run(ctx, session.Options{
		Model:          model,
		Expected:       participant,
		Duration:       duration,
		SampleInterval: cfg.SampleInterval,
	})
	stopBar()

	if result.Err != nil {
		fmt.Printf("\nWarning: session ended early: %v\n", result.Err)
	}

	// a cancelled run is still finalized
	finalizeCtx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()
	fr, finalizeErr := services.NewStatsService(store).Finalize(finalizeCtx, result.Stats)
	refreshAggregates(aggregates, fr, finalizeErr)

	sessionMetrics.RecordSession(model, fr.Outcome.String())
	summary := realtime.SessionSummary{Outcome: fr.Outcome.String(), Person: fr.Person, Stats: fr.Stats}
	if finalizeErr != nil {
		summary.Error = finalizeErr.Error()
	}
	sinks.PublishSession(summary)

	report.WriteSummary(os.Stdout, result.Stats)
	switch fr.Outcome {
	case services.OutcomeSuccess:
		if path, err := report.WriteCSV(cfg.ReportDir, fr.Person, result.Stats, time.Now()); err != nil {
			fmt.Printf("Warning: could not write report: %v\n", err)
		} else {
			fmt.Printf("Report saved to %s\n", path)
		}
	case services.OutcomeMisidentification:
		fmt.Printf("Misidentified: expected %s, recognized %s\n", participant, result.Stats.LastIdentified)
	}

	if finalizeErr != nil {
		if errors.Is(finalizeErr, repository.ErrPersistence) {
			return fmt.Errorf("session results were not saved: %w", finalizeErr)
		}
		return finalizeErr
	}
	return nil
}

func selectModel(cmd *cobra.Command, in *bufio.Reader) (recognition.ModelName, error) {
	raw := mustGetString(cmd, "model")
	if raw == "" {
		return promptModel(in, os.Stdout)
	}
	model, ok := parseModelChoice(raw)
	if !ok {
		fmt.Printf("Unknown model %q.\n", raw)
		return promptModel(in, os.Stdout)
	}
	return model, nil
}

type aggregateCache interface {
	InvalidateAggregates()
}

// refreshAggregates drops cached aggregates once a session has rewritten them.
func refreshAggregates(cache aggregateCache, fr services.FinalizeResult, err error) {
	if cache == nil || err != nil || fr.Outcome != services.OutcomeSuccess {
		return
	}
	cache.InvalidateAggregates()
}

func connectPublisher(cfg config.Config) *realtime.Publisher {
	if cfg.MQTTBroker == "" {
		return nil
	}
	client, err := realtime.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientID)
	if err != nil {
		log.Printf("Warning: MQTT disabled: %v", err)
		return nil
	}
	return realtime.NewPublisher(client, cfg.MQTTTopic)
}

// startCountdown draws a progress bar over the session length until the returned
// func is called.
func startCountdown(ctx context.Context, duration time.Duration) func() {
	const step = 100 * time.Millisecond
	steps := int(duration / step)
	bar := progressbar.NewOptions(steps,
		progressbar.OptionSetDescription("Recognizing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionFullWidth(),
	)

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(step)
		defer ticker.Stop()
		start := time.Now()
		for {
			select {
			case <-done:
				_ = bar.Finish()
				return
			case <-ctx.Done():
				_ = bar.Finish()
				return
			case <-ticker.C:
				_ = bar.Set(min(int(time.Since(start)/step), steps))
			}
		}
	}()
	return func() {
		close(done)
		<-finished
		fmt.Fprintln(os.Stderr)
	}
}

func shutdownServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Error: server shutdown: %v", err)
	}
}
