package a2dp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/AlexxIT/go2a2dp/internal/api"
	"github.com/AlexxIT/go2a2dp/internal/app"
	"github.com/AlexxIT/go2a2dp/pkg/a2dp"
	"github.com/AlexxIT/go2a2dp/pkg/stream"
)

var (
	ErrNoSession     = errors.New("a2dp: no session for peer")
	ErrNoFreeSession = errors.New("a2dp: no free session")
)

func apiA2DP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		info := map[string]any{
			"sessions": machine.Sessions(),
			"codecs":   registry.Ordered(),
			"devices":  app.Devices.All(),
			"bridge":   bridge.Attached(),
		}
		if discovery != nil {
			peers, err := discovery.Devices(registry.Role().Peer())
			if err != nil {
				log.Warn().Err(err).Msg("[a2dp] devices")
			}
			info["peers"] = peers
		}
		if controller != nil {
			h, ok := controller.Started()
			p, waiting := controller.Pending()
			info["offload"] = map[string]any{"handle": h, "running": ok, "pending": p, "waiting": waiting}
		}
		api.ResponsePrettyJSON(w, info)

	case "POST":
		query := r.URL.Query()

		handle, ev, err := action(query.Get("peer"), query.Get("action"), query.Get("codec"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err = machine.Post(handle, ev); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}

		api.ResponseJSON(w, map[string]any{"handle": handle})

	default:
		http.Error(w, "", http.StatusMethodNotAllowed)
	}
}

// action - session and event for the API action on the peer
func action(peer, name, codec string) (uint8, stream.Event, error) {
	if peer == "" {
		return 0, nil, errors.New("a2dp: empty peer")
	}

	if name == "open" {
		handle, ok := machine.Acquire(peer)
		if !ok {
			return 0, nil, ErrNoFreeSession
		}
		return handle, stream.APIOpen{Peer: peer}, nil
	}

	s, ok := sessionOf(peer)
	if !ok {
		return 0, nil, ErrNoSession
	}

	switch name {
	case "close":
		return s.Handle, stream.APIClose{}, nil
	case "start":
		return s.Handle, stream.APIStart{}, nil
	case "stop":
		return s.Handle, stream.APIStop{}, nil
	case "suspend":
		return s.Handle, stream.APIStop{Suspend: true}, nil
	case "reconfig":
		d, ok := registry.Find(codec)
		if !ok {
			return 0, nil, fmt.Errorf("%w: %s", a2dp.ErrUnknownCodec, codec)
		}
		ep, ok := s.EndpointFor(d.Plugin.ID())
		if !ok {
			return 0, nil, fmt.Errorf("%w: %s", a2dp.ErrNoPeerCaps, d.Name)
		}
		config, err := registry.Configure(ep.Caps)
		if err != nil {
			return 0, nil, err
		}
		return s.Handle, stream.APIReconfig{SEID: ep.SEID, Config: config, Suspend: true}, nil
	}

	return 0, nil, fmt.Errorf("a2dp: unknown action %q", name)
}

func sessionOf(peer string) (stream.Session, bool) {
	for _, s := range machine.Sessions() {
		if s.State != stream.StateInit && strings.EqualFold(s.Peer, peer) {
			return s, true
		}
	}
	return stream.Session{}, false
}

func apiCodec(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		a2dp.UserConfig
		Audio *a2dp.Preference `json:"audio"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var res a2dp.Result
	var err error
	if req.Audio != nil {
		res, err = setAudioConfig(*req.Audio)
	} else {
		res, err = setUserConfig(req.UserConfig)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	api.ResponseJSON(w, res)
}

// setUserConfig applies the user config and reconfigures open sessions
// when the output must restart
func setUserConfig(user a2dp.UserConfig) (a2dp.Result, error) {
	res, err := registry.SetUserConfig(user, nil)
	if err != nil {
		return res, err
	}

	if user.Codec != "" {
		var priority any
		if user.Priority > 0 {
			priority = user.Priority
		}
		path := []string{"a2dp", "codecs", strings.ToLower(user.Codec), "priority"}
		if err = app.PatchConfig(path, priority); err != nil && !errors.Is(err, app.ErrConfigDisabled) {
			log.Warn().Err(err).Msg("[a2dp] save codec priority")
		}
	}

	if res.RestartOutput {
		reconfigure(res.Config)
	}

	return res, nil
}

// setAudioConfig applies the audio back-end preference to the current codec
func setAudioConfig(audio a2dp.Preference) (a2dp.Result, error) {
	res, err := registry.SetAudioConfig(audio, nil)
	if err != nil {
		return res, err
	}

	if res.RestartOutput {
		reconfigure(res.Config)
	}

	return res, nil
}

func reconfigure(config []byte) {
	for handle, ev := range reconfigs(config) {
		if err := machine.Post(handle, ev); err != nil {
			log.Warn().Err(err).Msgf("[a2dp] reconfig handle=%d", handle)
		}
	}
}

// reconfigs - open sessions moved to the peer endpoint of the config codec
func reconfigs(config []byte) map[uint8]stream.Event {
	if config == nil {
		return nil
	}

	events := map[uint8]stream.Event{}
	for _, s := range machine.Sessions() {
		if s.State != stream.StateOpen {
			continue
		}
		ep, ok := s.EndpointOf(config)
		if !ok {
			log.Warn().Msgf("[a2dp] reconfig handle=%d: no endpoint for %s", s.Handle, a2dp.DescribeConfig(config))
			continue
		}
		events[s.Handle] = stream.APIReconfig{SEID: ep.SEID, Config: config, Suspend: true}
	}
	return events
}
