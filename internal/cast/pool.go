package cast

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrBlockReleased = errors.New("cast: block already released")
	ErrForeignBlock  = errors.New("cast: block belongs to another pool")
)

// Pool recycles cast blocks. It is shared by every caster of an arena and is
// safe for concurrent use.
type Pool struct {
	mu          sync.Mutex
	free        []*Block
	outstanding int
	acquired    uint64
	released    uint64
}

type PoolStats struct {
	Outstanding int    `json:"outstanding"`
	Free        int    `json:"free"`
	Acquired    uint64 `json:"acquired"`
	Released    uint64 `json:"released"`
}

func NewPool() *Pool {
	return &Pool{}
}

// Acquire hands out a cleared block stamped with a fresh cast id.
func (p *Pool) Acquire() *Block {
	p.mu.Lock()
	var b *Block
	if n := len(p.free); n > 0 {
		b = p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
	} else {
		b = &Block{pool: p}
	}
	p.outstanding++
	p.acquired++
	p.mu.Unlock()

	b.castID = uuid.NewString()
	b.live = true
	return b
}

// Release returns b to the pool. Each acquired block must be released
// exactly once.
func (p *Pool) Release(b *Block) error {
	if b == nil {
		return nil
	}
	if b.pool != p {
		return ErrForeignBlock
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !b.live {
		return ErrBlockReleased
	}
	b.reset()
	p.free = append(p.free, b)
	p.outstanding--
	p.released++
	return nil
}

func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Outstanding: p.outstanding,
		Free:        len(p.free),
		Acquired:    p.acquired,
		Released:    p.released,
	}
}
