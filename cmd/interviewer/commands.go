package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/adhney/voice-interviewer/internal/agent"
	"github.com/adhney/voice-interviewer/internal/apperr"
	"github.com/adhney/voice-interviewer/internal/config"
	"github.com/adhney/voice-interviewer/internal/interview"
	"github.com/adhney/voice-interviewer/internal/livekit"
	"github.com/adhney/voice-interviewer/internal/logging"
	"github.com/adhney/voice-interviewer/internal/metrics"
	"github.com/adhney/voice-interviewer/internal/server"
)

// deps is what every command shares after startup.
type deps struct {
	cfg *config.Config
	log *zap.Logger
}

func setup(validate bool) (*deps, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if len(cfg.EnvFiles) > 0 {
		log.Info("loaded env files", zap.Strings("files", cfg.EnvFiles))
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return &deps{cfg: cfg, log: log}, nil
}

func (rt *deps) sessionConfig(m *metrics.Metrics, rooms *livekit.Client) (agent.SessionConfig, error) {
	profile, err := interview.LoadProfile(rt.cfg.Interview.ProfilePath)
	if err != nil {
		return agent.SessionConfig{}, err
	}
	return agent.SessionConfig{
		Config:   rt.cfg,
		Profile:  profile,
		Rooms:    rooms,
		Services: agent.NewServiceFactory(rt.cfg, profile.KeywordStrings(), rt.log),
		Metrics:  m,
		Log:      rt.log,
	}, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API and dispatch an interviewer per created room",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "port",
				Usage:   "HTTP port (overrides PORT)",
				EnvVars: []string{"INTERVIEWER_PORT"},
			},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	rt, err := setup(true)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer rt.log.Sync() //nolint:errcheck
	if p := c.String("port"); p != "" {
		rt.cfg.Server.Port = p
	}

	m := metrics.New()
	rooms := livekit.NewClient(rt.cfg.LiveKit.URL, rt.cfg.LiveKit.APIKey, rt.cfg.LiveKit.APISecret, rt.log)
	base, err := rt.sessionConfig(m, rooms)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	manager := agent.NewManager(agent.NewSessionFactory(base), rt.log)
	defer manager.Stop()

	srv := server.New(server.Options{
		Config:  rt.cfg.Server,
		Rooms:   rooms,
		Agents:  manager,
		Metrics: m,
		Log:     rt.log,
	})

	ctx, stop := signalContext(c.Context)
	defer stop()

	rt.log.Info("voice interviewer ready",
		zap.String("agent", rt.cfg.LiveKit.AgentName),
		zap.String("tts", rt.cfg.TTSProvider),
		zap.Bool("avatar", rt.cfg.Tavus.Configured()),
		zap.String("url", "http://localhost:"+rt.cfg.Server.Port))
	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	rt.log.Info("shutting down", zap.Strings("active_rooms", manager.Rooms()))
	return nil
}

func agentCommand() *cli.Command {
	return &cli.Command{
		Name:  "agent",
		Usage: "Join one room as the interviewer and run until it ends",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "room",
				Usage:    "LiveKit room name",
				Required: true,
			},
		},
		Action: agentAction,
	}
}

func agentAction(c *cli.Context) error {
	rt, err := setup(true)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer rt.log.Sync() //nolint:errcheck

	rooms := livekit.NewClient(rt.cfg.LiveKit.URL, rt.cfg.LiveKit.APIKey, rt.cfg.LiveKit.APISecret, rt.log)
	sc, err := rt.sessionConfig(metrics.New(), rooms)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	sc.RoomName = c.String("room")

	ctx, stop := signalContext(c.Context)
	defer stop()

	session := agent.NewSession(sc)
	rt.log.Info("joining room", zap.String("room", sc.RoomName), zap.String("session", session.ID()))
	if err := session.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("session %s: %w", session.ID(), err)
	}
	return nil
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Print a participant join token",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "room", Usage: "LiveKit room name", Required: true},
			&cli.StringFlag{Name: "identity", Usage: "participant identity", Required: true},
			&cli.StringFlag{Name: "name", Usage: "display name"},
			&cli.BoolFlag{Name: "agent", Usage: "issue an agent token"},
		},
		Action: tokenAction,
	}
}

func tokenAction(c *cli.Context) error {
	rt, err := setup(false)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	if rt.cfg.LiveKit.APIKey == "" || rt.cfg.LiveKit.APISecret == "" {
		return cli.Exit(apperr.Configuration("LIVEKIT_API_KEY and LIVEKIT_API_SECRET are required").Error(), 2)
	}

	client := livekit.NewClient(rt.cfg.LiveKit.URL, rt.cfg.LiveKit.APIKey, rt.cfg.LiveKit.APISecret, rt.log)
	token, err := client.GenerateToken(c.String("room"), c.String("identity"), c.String("name"), c.Bool("agent"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, token)
	return nil
}
