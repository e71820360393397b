// Package replay drives a congestion-control strategy through a scripted
// sequence of host events.
package replay

import (
	"os"
	"time"

	"github.com/sagernet/sing-ente/congestion_ente"
	E "github.com/sagernet/sing/common/exceptions"

	"gopkg.in/yaml.v3"
)

// DefaultInitialCongestionWindow is the initial window of a TCP host.
const DefaultInitialCongestionWindow = 10

// Action is a host event replayed by a step.
type Action string

const (
	ActionAck     Action = "ack"
	ActionLoss    Action = "loss"
	ActionRTO     Action = "rto"
	ActionUndo    Action = "undo"
	ActionRestart Action = "restart"
	ActionState   Action = "state"
)

// Scenario is a replay script.
type Scenario struct {
	Strategy                string `yaml:"strategy"`
	InitialCongestionWindow uint32 `yaml:"initial_congestion_window"`
	// SlowStartThreshold is the host threshold the strategy is initialized
	// with. It is restored on the host after Init.
	SlowStartThreshold    uint32 `yaml:"slow_start_threshold"`
	CongestionWindowClamp uint32 `yaml:"congestion_window_clamp"`
	Steps                 []Step `yaml:"steps"`
}

// Step is one host event, applied Repeat times.
type Step struct {
	Action Action `yaml:"action"`
	// RTT is the smoothed RTT reported with an ack.
	RTT time.Duration `yaml:"rtt"`
	// Acked is the number of segments newly acknowledged by an ack.
	Acked      uint32 `yaml:"acked"`
	AppLimited bool   `yaml:"app_limited"`
	// State is the congestion state entered by a state step.
	State  string `yaml:"state"`
	Repeat int    `yaml:"repeat"`
}

func DefaultScenario() *Scenario {
	return &Scenario{
		Strategy:                congestion_ente.Name,
		InitialCongestionWindow: DefaultInitialCongestionWindow,
	}
}

// Load reads a YAML scenario from path.
func Load(path string) (*Scenario, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, E.Cause(err, "read scenario")
	}
	return Parse(content)
}

// Parse decodes a YAML scenario over the defaults and validates it.
func Parse(content []byte) (*Scenario, error) {
	scenario := DefaultScenario()
	err := yaml.Unmarshal(content, scenario)
	if err != nil {
		return nil, E.Cause(err, "parse scenario")
	}
	for i := range scenario.Steps {
		step := &scenario.Steps[i]
		if step.Repeat == 0 {
			step.Repeat = 1
		}
		if step.Action == ActionAck && step.Acked == 0 {
			step.Acked = 1
		}
	}
	err = scenario.Validate()
	if err != nil {
		return nil, err
	}
	return scenario, nil
}

func (s *Scenario) Validate() error {
	_, err := congestion_ente.New(s.Strategy)
	if err != nil {
		return err
	}
	if s.InitialCongestionWindow == 0 {
		return E.New("initial congestion window must be positive")
	}
	if s.CongestionWindowClamp != 0 && s.CongestionWindowClamp < s.InitialCongestionWindow {
		return E.New("congestion window clamp below initial congestion window")
	}
	if len(s.Steps) == 0 {
		return E.New("missing steps")
	}
	for i, step := range s.Steps {
		err = step.validate()
		if err != nil {
			return E.Cause(err, "step ", i)
		}
	}
	return nil
}

func (s Step) validate() error {
	if s.Repeat < 1 {
		return E.New("repeat must be positive")
	}
	switch s.Action {
	case ActionAck:
		if s.RTT < 0 {
			return E.New("negative rtt")
		}
	case ActionLoss, ActionRTO, ActionUndo, ActionRestart:
	case ActionState:
		_, err := parseCAState(s.State)
		if err != nil {
			return err
		}
	default:
		return E.New("unknown action: ", string(s.Action))
	}
	return nil
}

func parseCAState(name string) (congestion_ente.CAState, error) {
	for state := congestion_ente.CAStateOpen; state <= congestion_ente.CAStateLoss; state++ {
		if state.String() == name {
			return state, nil
		}
	}
	return 0, E.New("unknown congestion state: ", name)
}
