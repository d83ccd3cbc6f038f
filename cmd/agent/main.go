package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kkonovalov/webagent-core/internal/activitylog"
	"github.com/kkonovalov/webagent-core/internal/browser"
	"github.com/kkonovalov/webagent-core/internal/convstore"
	"github.com/kkonovalov/webagent-core/internal/engine"
	"github.com/kkonovalov/webagent-core/internal/executor"
	"github.com/kkonovalov/webagent-core/internal/llm"
	"github.com/kkonovalov/webagent-core/internal/mfa"
	"github.com/kkonovalov/webagent-core/internal/observer"
	"github.com/kkonovalov/webagent-core/internal/planner"
)

type cliOptions struct {
	task          string
	startURL      string
	storage       string
	saveState     string
	screenshotDir string
	convDSN       string
}

func main() {
	_ = godotenv.Load()
	opts := parseFlags()
	if opts.task == "" {
		task, cancelled, err := promptTask()
		if err != nil {
			log.Fatal().Err(err).Msg("prompt task failed")
		}
		if cancelled {
			fmt.Println("Cancelled.")
			return
		}
		opts.task = task
	}
	if opts.startURL == "" {
		log.Fatal().Msg("-start-url is required")
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	llmClient, err := llm.NewWithLogger(log.With().Str("comp", "llm").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("llm init")
	}

	launcher, err := browser.NewLauncher(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("browser init")
	}
	defer launcher.Close()

	ctrl, err := launcher.NewController(ctx, opts.storage)
	if err != nil {
		log.Fatal().Err(err).Msg("browser controller")
	}
	defer ctrl.Close(ctx)

	obs := observer.New(ctrl, log.Logger)
	p := planner.New(llmClient, log.Logger)
	sink := activitylog.New(log.Logger)
	if opts.convDSN != "" {
		store, err := convstore.NewPGStore(ctx, opts.convDSN)
		if err != nil {
			log.Error().Err(err).Msg("conversation store unavailable; continuing without it")
		} else {
			defer store.Close()
			sink = activitylog.WithConversationStore(sink, store)
		}
	}

	execOpts := []executor.Option{WithScreenshotDirOrDefault(opts.screenshotDir)}
	if qr, ocrEngine, totpGen, ok := buildMFA(log.Logger); ok {
		execOpts = append(execOpts, executor.WithMFA(qr, totpGen), executor.WithOCR(ocrEngine))
	}
	exec := executor.New(ctrl, obs, sink, log.Logger, execOpts...)

	eng := engine.New(ctrl, obs, p, exec, sink, log.With().Str("comp", "engine").Logger())

	fmt.Println("Starting task...")
	report, err := eng.Run(ctx, opts.task, opts.startURL)
	if err != nil {
		log.Error().Err(err).Msg("run finished with error")
	}
	fmt.Print(report.String())

	if opts.saveState != "" {
		if err := ctrl.SaveState(ctx, opts.saveState); err != nil {
			log.Error().Err(err).Msg("save state")
		} else {
			log.Info().Str("path", opts.saveState).Msg("storage saved")
		}
	}
}

// WithScreenshotDirOrDefault wraps executor.WithScreenshotDir, keeping the
// caller's os.TempDir() default when dir is empty.
func WithScreenshotDirOrDefault(dir string) executor.Option {
	if strings.TrimSpace(dir) == "" {
		return func(*executor.Executor) {}
	}
	return executor.WithScreenshotDir(dir)
}

// buildMFA wires the optional QR/OCR/TOTP capabilities (spec.md §6.3)
// unconditionally and always reports ok; it checks nothing at startup, so
// an OCR engine that cannot run surfaces later as a failed extract_text
// step.
func buildMFA(logger zerolog.Logger) (mfa.QRDecoder, mfa.OCREngine, mfa.TOTPGenerator, bool) {
	qr := mfa.NewZXingDecoder()
	ocrEngine := mfa.NewTesseractOCR()
	totpGen := mfa.NewPQuernaTOTP()
	return qr, ocrEngine, totpGen, true
}

func parseFlags() cliOptions {
	task := flag.String("task", "", "Task description")
	startURL := flag.String("start-url", "", "URL to begin the interaction at")
	storage := flag.String("storage", "", "Path to Playwright storage state")
	save := flag.String("save-state", "", "Path to save updated storage state")
	screenshotDir := flag.String("screenshot-dir", "", "Directory for step screenshots (default: OS temp dir)")
	convDSN := flag.String("conversation-dsn", "", "Postgres DSN for the conversation message store (optional)")
	flag.Parse()
	return cliOptions{
		task:          strings.TrimSpace(*task),
		startURL:      strings.TrimSpace(*startURL),
		storage:       strings.TrimSpace(*storage),
		saveState:     strings.TrimSpace(*save),
		screenshotDir: strings.TrimSpace(*screenshotDir),
		convDSN:       strings.TrimSpace(*convDSN),
	}
}

func promptTask() (string, bool, error) {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Enter a task (leave empty to cancel): ")
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", false, err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", true, nil
	}

	const maxTaskLength = 2000
	if len(line) > maxTaskLength {
		fmt.Printf("Task too long (max %d characters), truncated\n", maxTaskLength)
		line = line[:maxTaskLength]
	}

	var sanitized strings.Builder
	for _, r := range line {
		if r >= 32 || r == '\n' || r == '\r' || r == '\t' {
			sanitized.WriteRune(r)
		}
	}
	return sanitized.String(), false, nil
}
