package replay

import (
	"github.com/sagernet/sing-ente/congestion_ente"
	"github.com/sagernet/sing/common/logger"
)

// Record is the host and strategy state after a step.
type Record struct {
	Step               int                            `json:"step"`
	Action             Action                         `json:"action"`
	CongestionWindow   uint32                         `json:"cwnd"`
	SlowStartThreshold uint32                         `json:"ssthresh"`
	Phase              congestion_ente.Phase          `json:"-"`
	Classification     congestion_ente.Classification `json:"classification"`
	Entropy            uint16                         `json:"entropy"`
	Samples            uint16                         `json:"samples"`
	// HasInfo is false for strategies without entropy diagnostics.
	HasInfo bool `json:"has_info"`
}

type Options struct {
	Logger logger.Logger
}

// Run replays scenario against a fresh strategy the way a TCP host drives it.
func Run(scenario *Scenario, options Options) ([]Record, error) {
	err := scenario.Validate()
	if err != nil {
		return nil, err
	}
	if options.Logger == nil {
		options.Logger = logger.NOP()
	}
	strategy, err := congestion_ente.New(scenario.Strategy)
	if err != nil {
		return nil, err
	}
	h := &host{
		strategy:      strategy,
		socket:        congestion_ente.NewSocket(scenario.InitialCongestionWindow),
		restartWindow: scenario.InitialCongestionWindow,
	}
	if scenario.CongestionWindowClamp != 0 {
		h.socket.CwndClamp = scenario.CongestionWindowClamp
	}
	if scenario.SlowStartThreshold != 0 {
		h.socket.SlowStartThreshold = scenario.SlowStartThreshold
	}
	strategy.Init(&h.socket)
	// the override stays in effect on the host after the strategy lifts it
	if scenario.SlowStartThreshold != 0 {
		h.socket.SlowStartThreshold = scenario.SlowStartThreshold
	}
	records := make([]Record, 0, len(scenario.Steps))
	for i, step := range scenario.Steps {
		for n := 0; n < step.Repeat; n++ {
			h.apply(step)
		}
		record := h.record(i, step.Action)
		options.Logger.Debug("step ", i, " ", string(step.Action), ": cwnd ", record.CongestionWindow, ", ssthresh ", record.SlowStartThreshold, ", ", record.Classification)
		records = append(records, record)
	}
	return records, nil
}

type host struct {
	strategy      congestion_ente.Strategy
	socket        congestion_ente.Socket
	restartWindow uint32
	ackSequence   uint32
}

func (h *host) apply(step Step) {
	switch step.Action {
	case ActionAck:
		h.socket.SmoothedRTT = congestion_ente.DurationMicros(step.RTT)
		h.socket.AppLimited = step.AppLimited
		h.ackSequence += step.Acked
		h.strategy.CongestionAvoid(&h.socket, h.ackSequence, step.Acked)
	case ActionLoss:
		h.strategy.SetState(&h.socket, congestion_ente.CAStateRecovery)
		h.reduce()
	case ActionRTO:
		h.strategy.SetState(&h.socket, congestion_ente.CAStateLoss)
		h.strategy.CwndEvent(&h.socket, congestion_ente.EventLoss)
		h.reduce()
		h.socket.Cwnd = 1
	case ActionUndo:
		h.strategy.UndoCwnd(&h.socket)
		h.strategy.SetState(&h.socket, congestion_ente.CAStateOpen)
	case ActionRestart:
		h.strategy.CwndEvent(&h.socket, congestion_ente.EventCwndRestart)
		h.socket.Cwnd = congestion_ente.Min(h.socket.Cwnd, h.restartWindow)
		h.socket.CwndCount = 0
	case ActionState:
		state, _ := parseCAState(step.State)
		h.strategy.SetState(&h.socket, state)
	}
}

func (h *host) reduce() {
	ssthresh := h.strategy.SlowStartThreshold(&h.socket)
	h.socket.SlowStartThreshold = ssthresh
	h.socket.Cwnd = ssthresh
	h.socket.CwndCount = 0
}

func (h *host) record(index int, action Action) Record {
	record := Record{
		Step:               index,
		Action:             action,
		CongestionWindow:   h.socket.Cwnd,
		SlowStartThreshold: h.socket.SlowStartThreshold,
		Phase:              congestion_ente.PhaseCongestionAvoidance,
	}
	if h.socket.InSlowStart() {
		record.Phase = congestion_ente.PhaseSlowStart
	}
	info, hasInfo := h.strategy.GetInfo(congestion_ente.InfoRequestVegas)
	if hasInfo {
		record.HasInfo = true
		record.Classification = info.Classification
		record.Entropy = info.Entropy
		record.Samples = info.Samples
	}
	return record
}
