package peers

import (
	"math"
	"math/rand"
	"time"

	"github.com/mosaicnetworks/blocksim/src/config"
	"github.com/mosaicnetworks/blocksim/src/net"
	"github.com/sirupsen/logrus"
)

//Brahms is the Byzantine-resilient peer-sampling protocol. Every round a node
//pushes its id to a few members of its view and pulls the views of a few
//others. The next view mixes pushed ids, pulled ids and the output of
//min-wise samplers fed with everything seen so far. A round whose push
//buffer is suspiciously large, or which saw no pull reply, keeps the old
//view.
type Brahms struct {
	self  int
	nodes int
	trans net.Transport
	rng   *rand.Rand

	l            int
	alpha        float64
	beta         float64
	gamma        float64
	lookahead    time.Duration
	period       time.Duration
	stablePeriod time.Duration
	fastUntil    time.Duration
	stopAt       time.Duration

	view     *IDSet
	push     *IDSet
	pull     *IDSet
	samplers []*Sampler

	listener Listener
	logger   *logrus.Entry
}

//NewBrahms ...
func NewBrahms(trans net.Transport,
	conf *config.Config,
	rng *rand.Rand,
	listener Listener,
	logger *logrus.Entry) *Brahms {

	b := &Brahms{
		self:         trans.LocalAddr(),
		nodes:        conf.Nodes,
		trans:        trans,
		rng:          rng,
		l:            conf.BrahmsViewSize(),
		alpha:        conf.Alpha,
		beta:         conf.Beta,
		gamma:        conf.Gamma(),
		lookahead:    conf.Lookahead,
		period:       conf.BrahmsPeriod,
		stablePeriod: conf.BrahmsStablePeriod,
		fastUntil:    conf.BrahmsFastUntil,
		stopAt:       conf.BrahmsStopAt,
		listener:     listener,
		logger:       logger,
	}

	b.samplers = make([]*Sampler, b.l)
	for i := range b.samplers {
		b.samplers[i] = NewSampler(rng.Uint64())
	}
	b.view = NewIDSet()
	b.push = NewIDSet()
	b.pull = NewIDSet()

	return b
}

//Start implements the Membership interface. The bootstrap view is made of
//the two preceding nodes on the id ring.
func (b *Brahms) Start() {
	for _, c := range b.Contacts() {
		b.AddCandidate(c)
	}
	b.trans.Schedule(net.ViewRound{}, b.period)
}

//Contacts returns the bootstrap contacts (i-1, i-2) mod n
func (b *Brahms) Contacts() []int {
	res := []int{}
	for _, d := range []int{1, 2} {
		c := ((b.self-d)%b.nodes + b.nodes) % b.nodes
		if c != b.self {
			res = append(res, c)
		}
	}
	return res
}

//Process implements the Membership interface
func (b *Brahms) Process(msg net.MembershipMessage) {
	m, ok := msg.(*net.BrahmsMessage)
	if !ok {
		b.logger.WithField("from", msg.From()).Debug("Brahms ignoring message")
		return
	}

	switch m.Type {
	case net.Push:
		if m.Sender != b.self {
			b.push.Add(m.Sender)
		}
	case net.Pull:
		b.trans.Send(m.Sender, &net.BrahmsMessage{
			Type:   net.PullReply,
			View:   b.view.Slice(),
			Sender: b.self,
		}, b.lookahead)
	case net.PullReply:
		for _, id := range m.View {
			if id != b.self {
				b.pull.Add(id)
			}
		}
	}
}

//Tick implements the Membership interface
func (b *Brahms) Tick(timer interface{}) {
	if _, ok := timer.(net.ViewRound); !ok {
		return
	}
	b.round()

	now := b.trans.Now()
	if now < b.fastUntil {
		b.trans.Schedule(net.ViewRound{}, b.period)
	} else if b.stopAt == 0 || now < b.stopAt {
		b.trans.Schedule(net.ViewRound{}, b.stablePeriod)
	}
}

func (b *Brahms) round() {
	pushes := int(math.Ceil(b.alpha * float64(b.l)))
	pulls := int(math.Floor(b.beta * float64(b.l)))
	samples := int(math.Ceil(b.gamma * float64(b.l)))

	if b.push.Len() > 0 && b.push.Len() <= pushes && b.pull.Len() > 0 {
		next := NewIDSet()
		for _, id := range b.push.Sample(b.rng, pushes) {
			next.Add(id)
		}
		for _, id := range b.pull.Sample(b.rng, pulls) {
			next.Add(id)
		}
		for _, id := range Sample(b.rng, b.Samples(), samples) {
			next.Add(id)
		}
		b.view = next

		b.logger.WithFields(logrus.Fields{
			"push": b.push.Len(),
			"pull": b.pull.Len(),
			"view": b.view.Len(),
		}).Debug("Brahms view update")

		b.listener.ViewChanged(b.view.Slice())
	}

	b.updateSamplers(b.push.IDs)
	b.updateSamplers(b.pull.IDs)
	b.push.Clear()
	b.pull.Clear()

	if b.view.Len() == 0 {
		return
	}
	for i := 0; i < int(math.Floor(b.alpha*float64(b.l))); i++ {
		b.send(net.Push)
	}
	for i := 0; i < pulls; i++ {
		b.send(net.Pull)
	}
}

func (b *Brahms) send(t net.BrahmsType) {
	target := b.view.IDs[b.rng.Intn(b.view.Len())]
	b.trans.Send(target, &net.BrahmsMessage{Type: t, Sender: b.self}, b.lookahead)
}

func (b *Brahms) updateSamplers(ids []int) {
	for _, id := range ids {
		for _, s := range b.samplers {
			s.Next(id)
		}
	}
}

//Samples returns the distinct ids currently retained by the samplers
func (b *Brahms) Samples() []int {
	set := NewIDSet()
	for _, s := range b.samplers {
		if id, ok := s.Sample(); ok && id != b.self {
			set.Add(id)
		}
	}
	return set.IDs
}

//AddCandidate implements the Membership interface. The id is shown to the
//samplers and joins the view while it is smaller than l.
func (b *Brahms) AddCandidate(id int) {
	if id == b.self {
		return
	}
	b.updateSamplers([]int{id})
	if b.view.Len() >= b.l {
		return
	}
	if b.view.Add(id) {
		b.listener.ViewChanged(b.view.Slice())
	}
}

//Evict implements the Membership interface. Samplers holding the id are
//re-initialised with a fresh key.
func (b *Brahms) Evict(id int) {
	b.push.Remove(id)
	b.pull.Remove(id)
	for _, s := range b.samplers {
		if q, ok := s.Sample(); ok && q == id {
			s.Init(b.rng.Uint64())
		}
	}
	if b.view.Remove(id) {
		b.listener.PeerDown(id)
		b.listener.ViewChanged(b.view.Slice())
	}
}

//View implements the Membership interface
func (b *Brahms) View() []int {
	return b.view.Slice()
}

//Contains implements the Membership interface
func (b *Brahms) Contains(id int) bool {
	return b.view.Contains(id)
}

//Reset implements the Membership interface
func (b *Brahms) Reset() {
	b.view.Clear()
	b.push.Clear()
	b.pull.Clear()
	for _, s := range b.samplers {
		s.Init(b.rng.Uint64())
	}
}
