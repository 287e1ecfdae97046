package main

import (
	"context"
	"errors"

	"github.com/AlexxIT/go2a2dp/internal/a2dp"
	"github.com/AlexxIT/go2a2dp/internal/api"
	"github.com/AlexxIT/go2a2dp/internal/api/ws"
	"github.com/AlexxIT/go2a2dp/internal/app"
	"github.com/AlexxIT/go2a2dp/pkg/shell"
	"github.com/rs/zerolog/log"
	daemon "github.com/sevlyar/go-daemon"
	"golang.org/x/sync/errgroup"
)

func main() {
	app.Init() // init config and logs

	if app.Daemon {
		cntxt := &daemon.Context{
			PidFileName: app.PidFile,
			PidFilePerm: 0644,
		}

		d, err := cntxt.Reborn()
		if err != nil {
			log.Fatal().Err(err).Msg("[main] daemon")
		}
		if d != nil {
			log.Info().Msgf("[main] daemon started with pid %d", d.Pid)
			return
		}
		defer func() {
			_ = cntxt.Release()
		}()
	}

	api.Init() // init HTTP API server
	ws.Init()  // init WS API endpoint

	a2dp.Init() // codecs, stream machine and lower stack bridge

	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		return a2dp.Run(ctx)
	})

	g.Go(func() error {
		return shell.WaitSignal(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, shell.ErrSignal) {
		log.Error().Err(err).Msg("[main] exit")
	}

	log.Info().Msg("[main] stopped")
}
