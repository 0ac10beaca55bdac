package mock

import (
	"fmt"
	"os"
	"strconv"

	"github.com/Borislavv/fd-metrics/pkg/peer"
	"github.com/Borislavv/fd-metrics/pkg/peer/registry"
	"gopkg.in/yaml.v3"
)

// Fixture describes a peer table to preload into a registry.
type Fixture struct {
	Limits registry.Limits `yaml:"limits"`
	Peers  []FixturePeer   `yaml:"peers"`
}

type FixturePeer struct {
	Identity     string             `yaml:"identity"`
	State        string             `yaml:"state"`
	Applications []peer.Application `yaml:"applications"`
}

// LoadFixture reads a YAML fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture file %s: %w", path, err)
	}

	var f Fixture
	if err = yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal yaml from %s: %w", path, err)
	}

	for i, p := range f.Peers {
		if p.State == "" {
			continue
		}
		if _, ok := peer.ParseState(p.State); !ok {
			return nil, fmt.Errorf("fixture %s: peer #%d (%q) has unknown state %q", path, i, p.Identity, p.State)
		}
	}

	return &f, nil
}

// NewRegistry builds a registry with the fixture's limits and peers.
func (f *Fixture) NewRegistry() (*registry.Registry, error) {
	reg := registry.New(f.Limits)
	if err := f.Populate(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// Populate adds the fixture's peers to reg in file order.
func (f *Fixture) Populate(reg *registry.Registry) error {
	for _, p := range f.Peers {
		if _, err := reg.Add(p.Identity, p.Applications...); err != nil {
			return err
		}
		if p.Identity == "" || p.State == "" {
			continue
		}
		state, _ := peer.ParseState(p.State)
		if err := reg.SetState(p.Identity, state); err != nil {
			return err
		}
	}
	return nil
}

// well-known Diameter application ids
var applications = []uint32{
	0,        // common messages
	3,        // base accounting
	4,        // credit control
	16777238, // 3GPP Gx
	16777251, // 3GPP S6a
	16777236, // 3GPP Rx
}

// GeneratePeers adds num peers named nasN.example.com, all in state open.
func GeneratePeers(reg *registry.Registry, num int) error {
	for i := 1; i <= num; i++ {
		id := "nas" + strconv.Itoa(i) + ".example.com"
		app := applications[i%len(applications)]
		if _, err := reg.Add(id, peer.Application{ID: app, Auth: true, Acct: i%2 == 0}); err != nil {
			return err
		}
		if err := reg.SetState(id, peer.StateOpen); err != nil {
			return err
		}
	}
	return nil
}
