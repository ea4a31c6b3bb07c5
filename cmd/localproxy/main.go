package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/openlift/serversdk/internal/proxy"
	"github.com/openlift/serversdk/message"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	app := &cli.App{
		Name:  "localproxy",
		Usage: "a local stand-in for the game-hosting control plane, for developing game servers against the SDK",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen-addr",
				Usage: "The address for the proxy to listen on.",
				Value: "127.0.0.1:5757",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level. One of [debug,info,warn,error].",
				Value: "info",
			},
			&cli.BoolFlag{
				Name:  "auto-session",
				Usage: "Push a game session to the process as soon as it declares readiness.",
			},
			&cli.StringFlag{
				Name:  "session-id",
				Usage: "The game session id to push with --auto-session. Generated when unset.",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cliCtx *cli.Context) error {
	listenAddr := cliCtx.String("listen-addr")
	logLevelStr := cliCtx.String("log-level")
	autoSession := cliCtx.Bool("auto-session")
	sessionID := cliCtx.String("session-id")

	logLevel, err := zapcore.ParseLevel(logLevelStr)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	loggerCfg := zap.NewDevelopmentConfig()
	loggerCfg.Level = zap.NewAtomicLevelAt(logLevel)
	logger, err := loggerCfg.Build()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	sugar := logger.Sugar()

	opts := []proxy.Option{
		proxy.WithLogger(logger),
		proxy.WithListenAddr(listenAddr),
	}

	var p *proxy.Proxy
	if autoSession {
		opts = append(opts, proxy.WithEventHook(func(ev proxy.ReceivedEvent) {
			if ev.Event != (message.ProcessReady{}).TypeName() {
				return
			}
			gs := proxy.NewGameSession()
			if sessionID != "" {
				gs.GameSessionID = sessionID
			}
			ok, err := p.PushStartGameSession(context.Background(), gs)
			if err != nil {
				sugar.Debugf("error pushing game session: %s", err)
				return
			}
			sugar.Infow("pushed game session", "GameSessionID", gs.GameSessionID, "Accepted", ok)
		}))
	}
	p = proxy.New(opts...)

	if err := p.Start(); err != nil {
		return fmt.Errorf("starting proxy: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	sugar.Info("shutting down")
	return p.Stop()
}
