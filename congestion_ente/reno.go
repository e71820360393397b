package congestion_ente

// RenoName is the token the Reno fallback is registered under.
const RenoName = "reno"

// Reno is the classic additive-increase/multiplicative-decrease strategy.
// ENTE falls back to the same behavior until it has scored an RTT window.
type Reno struct {
	priorCwnd uint32
}

var _ Strategy = (*Reno)(nil)

// NewReno returns a Strategy for one Reno connection.
func NewReno() Strategy {
	return &Reno{}
}

func (r *Reno) Name() string {
	return RenoName
}

func (r *Reno) Init(sk *Socket) {
	r.priorCwnd = sk.Cwnd
	sk.SlowStartThreshold = InfiniteSlowStartThreshold
}

func (r *Reno) SlowStartThreshold(sk *Socket) uint32 {
	r.priorCwnd = sk.Cwnd
	return Max(sk.Cwnd/CongestionReductionFactor, MinSlowStartThreshold)
}

func (r *Reno) CongestionAvoid(sk *Socket, ack uint32, acked uint32) {
	sk.RenoCongAvoid(acked)
}

func (r *Reno) UndoCwnd(sk *Socket) uint32 {
	sk.Cwnd = Max(sk.Cwnd, r.priorCwnd)
	return sk.Cwnd
}

func (r *Reno) CwndEvent(sk *Socket, event Event) {}

func (r *Reno) GetInfo(ext InfoRequest) (Info, bool) {
	return Info{}, false
}

func (r *Reno) SetState(sk *Socket, state CAState) {}
