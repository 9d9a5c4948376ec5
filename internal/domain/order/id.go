package order

import (
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	// IDPrefix starts every order id.
	IDPrefix = "CR"

	idAlphabet   = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	idSuffixLen  = 4
	idMaxDraws   = 8
	idDayCap     = 50_000
	idBloomFPR   = 0.001
	idDateLayout = "20060102"
)

// IDGenerator issues human-readable order ids of the form
// CR-YYYYMMDD-XXXX. The date is UTC. Ids already issued today are tracked in
// a Bloom filter and a probable repeat re-draws the suffix, so duplicates
// within one process are rare but not impossible.
type IDGenerator struct {
	mu   sync.Mutex
	now  func() time.Time
	intn func(n int) int
	day  string
	seen *bloom.BloomFilter
}

// IDOption configures an IDGenerator.
type IDOption func(*IDGenerator)

// WithIDClock overrides the clock used for the date component.
func WithIDClock(now func() time.Time) IDOption {
	return func(g *IDGenerator) { g.now = now }
}

// WithIDRandom overrides the random source used for the suffix. intn must
// return a value in [0, n).
func WithIDRandom(intn func(n int) int) IDOption {
	return func(g *IDGenerator) { g.intn = intn }
}

// NewIDGenerator creates a generator using the wall clock and math/rand/v2.
func NewIDGenerator(opts ...IDOption) *IDGenerator {
	g := &IDGenerator{
		now:  time.Now,
		intn: rand.IntN,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Next returns a new order id.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	day := g.now().UTC().Format(idDateLayout)
	if day != g.day || g.seen == nil {
		g.day = day
		g.seen = bloom.NewWithEstimates(idDayCap, idBloomFPR)
	}

	var id string
	for range idMaxDraws {
		id = IDPrefix + "-" + day + "-" + g.suffix()
		if !g.seen.TestOrAddString(id) {
			return id
		}
	}
	// Give up and accept a probable duplicate.
	return id
}

func (g *IDGenerator) suffix() string {
	var b strings.Builder
	b.Grow(idSuffixLen)
	for range idSuffixLen {
		b.WriteByte(idAlphabet[g.intn(len(idAlphabet))])
	}
	return b.String()
}
