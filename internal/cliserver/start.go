package cliserver

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/polyglotgw/internal/auth"
	"github.com/nextlevelbuilder/polyglotgw/internal/bridge"
	"github.com/nextlevelbuilder/polyglotgw/internal/codec"
	"github.com/nextlevelbuilder/polyglotgw/internal/config"
	"github.com/nextlevelbuilder/polyglotgw/internal/dispatch"
	"github.com/nextlevelbuilder/polyglotgw/internal/protocol"
	"github.com/nextlevelbuilder/polyglotgw/internal/store"
	"github.com/nextlevelbuilder/polyglotgw/internal/telemetry"
	"github.com/nextlevelbuilder/polyglotgw/internal/toolset"
	"github.com/nextlevelbuilder/polyglotgw/internal/transport"
)

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the gateway (native TCP listener + websocket bridge)",
		RunE:  runStart,
	}
}

func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	var handler slog.Handler
	if verbose {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

func runStart(cmd *cobra.Command, args []string) error {
	setupLogging()

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer shutdownTelemetry(context.Background())

	dbPath := config.ExpandHome(cfg.Storage.DatabasePath)
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	users := auth.NewUserStore(db)
	jwtSecret := []byte(cfg.Auth.JWTSecret)
	if len(jwtSecret) == 0 {
		// No configured secret: sign with 32 random bytes held for this
		// process only, so tokens do not survive a restart.
		jwtSecret = make([]byte, 32)
		if _, err := rand.Read(jwtSecret); err != nil {
			return fmt.Errorf("auth: generate jwt secret: %w", err)
		}
	}
	sessions := auth.NewSessionManager(jwtSecret, cfg.Auth.SessionExpiryHours)
	usageStore := dispatch.OpenUsageStore(db)

	sandboxRoot := config.ExpandHome(cfg.Sandbox.Root)
	sb := cfg.Sandbox.ToSandboxConfig(sandboxRoot)
	if cwd, err := os.Getwd(); err == nil {
		sb.AllowedReadPaths = append(sb.AllowedReadPaths, cwd)
		sb.AllowedWritePaths = append(sb.AllowedWritePaths, cwd)
	}
	if err := sb.InitDirectories(); err != nil {
		return fmt.Errorf("sandbox: %w", err)
	}

	adapters := toolset.BuildAdapters(cfg.Tools, sb)
	if len(adapters) == 0 {
		return fmt.Errorf("no tool adapters enabled — check the tools section of %s", resolveConfigPath())
	}
	defaultTool := toolset.ResolveDefault(adapters, cfg.Server.DefaultTool)

	toolMgr := dispatch.NewManager(dispatch.Config{
		Adapters:         adapters,
		RotationStrategy: cfg.Server.ToDispatchRotation(),
		SwitchDelay:      cfg.Server.SwitchDelaySec,
		DefaultTool:      defaultTool,
		Store:            usageStore,
	})

	deps := &transport.Deps{
		Users:    users,
		Sessions: sessions,
		ToolMgr:  toolMgr,
		Sandbox:  sb,
		Version:  Version,
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		bridgeAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.BridgePort)
		srv := bridge.NewServer(bridgeAddr, deps)
		if err := srv.Start(ctx); err != nil {
			errs <- fmt.Errorf("bridge: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := serveTCP(ctx, fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port), deps); err != nil {
			errs <- fmt.Errorf("tcp listener: %w", err)
		}
	}()

	slog.Info("polyglotgw-server started",
		"tcp_addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"bridge_addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.BridgePort),
		"tools", toolset.Names(adapters))

	select {
	case err := <-errs:
		cancel()
		wg.Wait()
		return err
	case <-ctx.Done():
		wg.Wait()
		return nil
	}
}

// serveTCP accepts the native length-framed transport, per-address
// rate-limited the same way the bridge throttles websocket upgrades
// (SPEC_FULL.md §6).
func serveTCP(ctx context.Context, addr string, deps *transport.Deps) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var limiterMu sync.Mutex
	limiters := make(map[string]*rate.Limiter)
	allow := func(addr string) bool {
		limiterMu.Lock()
		defer limiterMu.Unlock()
		l, ok := limiters[addr]
		if !ok {
			l = rate.NewLimiter(rate.Limit(1), 5)
			limiters[addr] = l
		}
		return l.Allow()
	}

	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		host, _, splitErr := net.SplitHostPort(nc.RemoteAddr().String())
		if splitErr != nil {
			host = nc.RemoteAddr().String()
		}
		if !allow(host) {
			nc.Close()
			continue
		}
		go func() {
			conn := codec.NewServerConn(nc)
			sess := transport.NewSession(conn)
			transport.RegisterHandlers(sess, deps)
			if err := sess.Run(ctx); err != nil {
				slog.Debug("tcp session ended", "error", err)
			}
		}()
	}
}

