package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Globidev/globibot-rs/internal/config"
	"github.com/Globidev/globibot-rs/internal/logging"
	"github.com/Globidev/globibot-rs/internal/observability"
	"github.com/Globidev/globibot-rs/internal/platform"
	"github.com/Globidev/globibot-rs/internal/publisher"
	"github.com/Globidev/globibot-rs/internal/rpcserver"
	"github.com/Globidev/globibot-rs/internal/transport"
	"github.com/Globidev/globibot-rs/internal/typing"
	"github.com/Globidev/globibot-rs/internal/wire"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway's subscriber, RPC, and observability listeners",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	platformClient, err := platform.NewHTTPClient(platform.Config{Token: cfg.DiscordToken})
	if err != nil {
		return err
	}

	registry := observability.NewRegistry()

	pub := publisher.New(publisher.Config{
		BufferSize:    cfg.BroadcastBufferLen,
		OnSubscribe:   registry.RegisterEvents,
		OnUnsubscribe: registry.Remove,
	}, log)

	rpc := rpcserver.New(platformClient, typing.New(), rpcserver.Config{
		OnRegister:   registry.RegisterRPC,
		OnUnregister: registry.Remove,
	}, log)

	obs := observability.NewServer(cfg.ObservabilityAddr, registry, log)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	// listenErrs carries a fatal bind failure from any listener goroutine back
	// to this function, so a bad SUBSCRIBER_ADDR/RPC_ADDR exits the process
	// non-zero instead of leaving runServe blocked on <-ctx.Done() forever.
	listenErrs := make(chan error, 2)

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		if err := serveSubscribers(ctx, cfg.SubscriberTransport(), pub, log); err != nil {
			listenErrs <- err
		}
	}()

	go func() {
		defer wg.Done()
		if err := serveRPC(ctx, cfg.RPCTransport(), rpc, log); err != nil {
			listenErrs <- err
		}
	}()

	go func() {
		defer wg.Done()
		if err := obs.ListenAndServe(); err != nil {
			log.Error().Err(err).Msg("observability server stopped")
		}
	}()

	log.Info().
		Str("subscriber_addr", cfg.SubscriberAddr).
		Str("rpc_addr", cfg.RPCAddr).
		Str("observability_addr", cfg.ObservabilityAddr).
		Msg("gateway started")

	var bindErr error
	select {
	case <-ctx.Done():
	case bindErr = <-listenErrs:
		log.Error().Err(bindErr).Msg("fatal listener error, shutting down")
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("observability server shutdown error")
	}

	wg.Wait()
	log.Info().Msg("gateway stopped")
	return bindErr
}

// serveSubscribers accepts subscriber connections until ctx is cancelled,
// reading each peer's handshake and registering it with pub. It returns a
// non-nil error only for a fatal bind failure; a cancelled ctx returns nil.
func serveSubscribers(ctx context.Context, t transport.Transport, pub *publisher.Publisher, log zerolog.Logger) error {
	accepts, err := t.Listen(ctx)
	if err != nil {
		log.Error().Err(err).Str("addr", t.Addr()).Msg("failed to bind subscriber listener")
		return fmt.Errorf("bind subscriber listener %s: %w", t.Addr(), err)
	}

	for accept := range accepts {
		if accept.Err != nil {
			log.Warn().Err(accept.Err).Msg("subscriber accept error")
			continue
		}
		go acceptSubscriber(accept.Conn, pub, log)
	}
	return nil
}

func acceptSubscriber(conn net.Conn, pub *publisher.Publisher, log zerolog.Logger) {
	req, err := wire.ReadHandshake[wire.SubscribeRequest](conn, wire.HandshakeTimeout)
	if err != nil {
		log.Warn().Err(err).Msg("subscriber handshake failed")
		conn.Close()
		return
	}
	pub.Add(conn, req)
}

// serveRPC accepts RPC connections until ctx is cancelled, handing each to
// the RPC server's per-connection Serve loop. It returns a non-nil error
// only for a fatal bind failure; a cancelled ctx returns nil.
func serveRPC(ctx context.Context, t transport.Transport, s *rpcserver.Server, log zerolog.Logger) error {
	accepts, err := t.Listen(ctx)
	if err != nil {
		log.Error().Err(err).Str("addr", t.Addr()).Msg("failed to bind rpc listener")
		return fmt.Errorf("bind rpc listener %s: %w", t.Addr(), err)
	}

	for accept := range accepts {
		if accept.Err != nil {
			log.Warn().Err(accept.Err).Msg("rpc accept error")
			continue
		}
		go s.Serve(accept.Conn)
	}
	return nil
}
