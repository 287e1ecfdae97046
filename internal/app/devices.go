package app

import (
	"errors"
	"sync"
)

// Device - persisted properties of a remote device, `devices:` section
type Device struct {
	AVDTPVersion uint16 `yaml:"avdtp_version" json:"avdtp_version,omitempty"`
}

type DeviceStore struct {
	items map[string]Device
	mu    sync.Mutex
}

var Devices = &DeviceStore{items: map[string]Device{}}

func initDevices() {
	var cfg struct {
		Devices map[string]Device `yaml:"devices"`
	}

	LoadConfig(&cfg)

	Devices.mu.Lock()
	for addr, dev := range cfg.Devices {
		Devices.items[addr] = dev
	}
	Devices.mu.Unlock()
}

func (s *DeviceStore) Get(addr string) (dev Device, ok bool) {
	s.mu.Lock()
	dev, ok = s.items[addr]
	s.mu.Unlock()
	return
}

func (s *DeviceStore) All() map[string]Device {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make(map[string]Device, len(s.items))
	for addr, dev := range s.items {
		items[addr] = dev
	}
	return items
}

// SetAVDTPVersion keeps the version in memory even without a config file
func (s *DeviceStore) SetAVDTPVersion(addr string, version uint16) error {
	s.mu.Lock()
	dev := s.items[addr]
	changed := dev.AVDTPVersion != version
	dev.AVDTPVersion = version
	s.items[addr] = dev
	s.mu.Unlock()

	if !changed {
		return nil
	}

	err := PatchConfig([]string{"devices", addr, "avdtp_version"}, version)
	if errors.Is(err, ErrConfigDisabled) {
		return nil
	}
	return err
}
