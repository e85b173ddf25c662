package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/imnyang/newsletter/internal/config"
	"github.com/imnyang/newsletter/internal/credential"
	"github.com/imnyang/newsletter/internal/filter"
	"github.com/imnyang/newsletter/internal/journal"
	"github.com/imnyang/newsletter/internal/mailbox"
	"github.com/imnyang/newsletter/internal/monitor"
	"github.com/imnyang/newsletter/internal/notify"
	"github.com/imnyang/newsletter/internal/status"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	var (
		configPath  = flag.String("config", "config.yaml", "path to the configuration file")
		checkOnly   = flag.Bool("check", false, "connect and select the folder once, then exit")
		setPassword = flag.Bool("set-password", false, "store the IMAP password in the OS keyring, then exit")
		showVersion = flag.Bool("version", false, "print the version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("newsletter", version)
		return
	}

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "loading config:", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))

	if *setPassword {
		if err := storePassword(cfg); err != nil {
			logger.Error("storing password", "error", err)
			os.Exit(1)
		}
		logger.Info("password stored in keyring", "username", cfg.IMAP.Username)
		return
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if cfg.IMAP.Password == "" {
		password, err := credential.Get(cfg.IMAP.Username)
		if err != nil {
			logger.Error("no password configured and keyring lookup failed",
				"username", cfg.IMAP.Username, "error", err)
			os.Exit(1)
		}
		cfg.IMAP.Password = password
	}

	client := mailbox.NewClient(cfg.IMAP, logger)

	if *checkOnly {
		if err := check(client, cfg.IMAP.Folder); err != nil {
			logger.Error("check failed", "server", cfg.IMAP.Addr(), "error", err)
			os.Exit(1)
		}
		logger.Info("check passed", "server", cfg.IMAP.Addr(), "folder", cfg.IMAP.Folder)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var j *journal.Journal
	if cfg.Storage.Path != "" {
		j, err = journal.Open(cfg.Storage.Path)
		if err != nil {
			logger.Error("opening journal", "path", cfg.Storage.Path, "error", err)
			os.Exit(1)
		}
		defer j.Close()
		logger.Info("journal enabled", "path", cfg.Storage.Path)
	}

	var wg sync.WaitGroup
	var statusErr error
	if cfg.Status.Addr != "" {
		var history status.HistoryReader
		if j != nil {
			history = j
		}
		srv := status.New(history, logger)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx, cfg.Status.Addr); err != nil {
				statusErr = err
				logger.Error("status server failed", "error", err)
				stop()
			}
		}()
	}

	var recorder monitor.Recorder
	if j != nil {
		recorder = j
	}

	mon := monitor.New(monitor.Options{
		Dialer:   client,
		Webhook:  notify.NewWebhook(cfg.Webhook.URL),
		Recorder: recorder,
		Rules: filter.Rules{
			Senders:  cfg.Ignore.Senders,
			Subjects: cfg.Ignore.Subjects,
		},
		Folder:   cfg.IMAP.Folder,
		Interval: cfg.Poll.Interval(),
		Backoff:  cfg.Poll.Backoff(),
		Logger:   logger,
	})

	mon.Run(ctx)
	stop()
	wg.Wait()

	if statusErr != nil {
		os.Exit(1)
	}
}

// check performs a single connect, login and folder selection so broken
// credentials or addresses surface before the daemon is deployed.
func check(client *mailbox.Client, folder string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sess, err := client.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Logout() }()

	return sess.SelectFolder(folder)
}

// storePassword writes the IMAP password into the OS keyring. The
// password comes from config or environment when present, otherwise
// from an interactive prompt.
func storePassword(cfg *config.Config) error {
	if cfg.IMAP.Username == "" {
		return errors.New("imap.username must be configured")
	}

	password := cfg.IMAP.Password
	if password == "" {
		var err error
		password, err = promptPassword(cfg.IMAP.Username)
		if err != nil {
			return err
		}
	}
	if password == "" {
		return errors.New("refusing to store an empty password")
	}

	return credential.Set(cfg.IMAP.Username, password)
}

func promptPassword(username string) (string, error) {
	fmt.Fprintf(os.Stderr, "IMAP password for %s: ", username)

	if term.IsTerminal(int(os.Stdin.Fd())) {
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimSpace(line), nil
}
