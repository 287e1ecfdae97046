package a2dp

import (
	"context"
	"errors"
	"time"

	"github.com/AlexxIT/go2a2dp/internal/api"
	"github.com/AlexxIT/go2a2dp/internal/api/ws"
	"github.com/AlexxIT/go2a2dp/internal/app"
	"github.com/AlexxIT/go2a2dp/internal/bluez"
	"github.com/AlexxIT/go2a2dp/pkg/a2dp"
	"github.com/AlexxIT/go2a2dp/pkg/offload"
	"github.com/AlexxIT/go2a2dp/pkg/stream"
	"github.com/rs/zerolog"
)

type Config struct {
	Role          string `yaml:"role"`
	Adapter       string `yaml:"adapter"`
	Slots         int    `yaml:"slots"`
	SuspendPolicy string `yaml:"suspend_policy"`

	Codecs map[string]struct {
		Priority int `yaml:"priority"`
	} `yaml:"codecs"`

	Offload    bool   `yaml:"offload"`
	OffloadV2  bool   `yaml:"offload_v2"`
	MaxLatency uint16 `yaml:"max_latency"`
	SCMST      bool   `yaml:"scms_t"`
	MediaQueue int    `yaml:"media_queue"`

	Timers struct {
		RoleSwitch time.Duration `yaml:"role_switch"`
		Collision  time.Duration `yaml:"collision"`
		Close      time.Duration `yaml:"close"`
	} `yaml:"timers"`
}

func Init() {
	var cfg struct {
		Mod Config `yaml:"a2dp"`
	}

	cfg.Mod = defaultConfig()

	app.LoadConfig(&cfg)

	log = app.GetLogger("a2dp")

	sc, err := streamConfig(cfg.Mod)
	if err != nil {
		log.Error().Err(err).Msg("[a2dp] config")
		return
	}

	priorities := map[string]int{}
	for name, codec := range cfg.Mod.Codecs {
		priorities[name] = codec.Priority
	}

	registry = a2dp.NewRegistry(sc.Role, a2dp.Plugins(), priorities, log)

	bridge = NewBridge(log)

	deps := stream.Deps{
		Codecs:    registry,
		Transport: bridge,
		Storage:   app.Devices,
		Link:      bridge,
	}

	if cfg.Mod.Offload {
		controller = offload.NewController(bridge, log)
		deps.Offload = controller
	}

	if conn, closer, err := bluez.Connect(); err != nil {
		log.Warn().Err(err).Msg("[a2dp] service discovery disabled")
	} else {
		closeBus = closer
		discovery = bluez.NewDiscovery(conn, cfg.Mod.Adapter, log)
		deps.Discovery = discovery
		deps.Audio = bluez.NewAudio(conn, sc.Role, log)
	}

	machine = stream.NewMachine(sc, deps, cfg.Mod.Slots, log)
	machine.OnOutcome = subscribers.broadcast

	if discovery != nil {
		discovery.OnResult = func(handle uint8, found bool, version uint16) {
			_ = machine.Post(handle, stream.SDPResult{Found: found, Version: version})
		}
	}

	if controller != nil {
		controller.Notify = func(handle uint8, ok bool) {
			_ = machine.Post(handle, stream.OffloadResult{OK: ok})
		}
	}

	api.HandleFunc("api/a2dp", apiA2DP)
	api.HandleFunc("api/a2dp/codec", apiCodec)

	ws.HandleFunc("a2dp/bridge", wsBridge)
	ws.HandleFunc("a2dp/event", wsEvent)
	ws.HandleFunc("a2dp/vendor", wsVendor)
	ws.HandleFunc("a2dp/link", wsLink)
	ws.HandleFunc("a2dp/subscribe", wsSubscribe)

	log.Info().Msgf("[a2dp] role=%s slots=%d offload=%t", sc.Role, cfg.Mod.Slots, cfg.Mod.Offload)
}

// Run processes stream events until the context is done
func Run(ctx context.Context) error {
	if machine == nil {
		<-ctx.Done()
		return nil
	}

	if closeBus != nil {
		defer closeBus()
	}

	err := machine.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

var (
	log zerolog.Logger

	registry   *a2dp.Registry
	machine    *stream.Machine
	bridge     *Bridge
	controller *offload.Controller
	discovery  *bluez.Discovery
	closeBus   func()

	subscribers = &hub{}
)

func defaultConfig() Config {
	d := stream.DefaultConfig()

	cfg := Config{
		Role:       "source",
		Adapter:    "/org/bluez/hci0",
		Slots:      2,
		MediaQueue: d.MediaQueue,
	}
	cfg.Timers.RoleSwitch = d.RoleSwitchTimeout
	cfg.Timers.Collision = d.CollisionTimeout
	cfg.Timers.Close = d.CloseTimeout
	return cfg
}

func streamConfig(cfg Config) (stream.Config, error) {
	sc := stream.DefaultConfig()

	switch cfg.Role {
	case "", "source":
		sc.Role = a2dp.RoleSource
	case "sink":
		sc.Role = a2dp.RoleSink
	default:
		return sc, errors.New("a2dp: unknown role " + cfg.Role)
	}

	if err := sc.SuspendPolicy.UnmarshalText([]byte(cfg.SuspendPolicy)); err != nil {
		return sc, err
	}

	if cfg.Slots <= 0 || cfg.Slots > 255 {
		return sc, errors.New("a2dp: slots must be 1..255")
	}

	if cfg.Timers.RoleSwitch > 0 {
		sc.RoleSwitchTimeout = cfg.Timers.RoleSwitch
	}
	if cfg.Timers.Collision > 0 {
		sc.CollisionTimeout = cfg.Timers.Collision
	}
	if cfg.Timers.Close > 0 {
		sc.CloseTimeout = cfg.Timers.Close
	}

	sc.Offload = cfg.Offload
	sc.OffloadV2 = cfg.OffloadV2
	sc.MaxLatency = cfg.MaxLatency
	sc.MediaQueue = cfg.MediaQueue

	if cfg.SCMST {
		sc.SCMST = [2]byte{0x01, 0x00}
	}

	return sc, nil
}
