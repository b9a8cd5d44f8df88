package expiry

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"mural-backend/internal/board"
	"mural-backend/internal/store"
)

// Policy decides when a room stops being joinable. Two triggers, both
// terminal: the creator explicitly leaving, and prolonged inactivity.
type Policy struct {
	store *store.Store
}

func NewPolicy(st *store.Store) *Policy {
	return &Policy{store: st}
}

// CreatorLeft records an explicit leave and expires the board when the
// leaver is its creator. Returns whether the board transitioned to expired.
// Non-creators are only marked in leftParticipants and may rejoin while the
// room stays active.
func (p *Policy) CreatorLeft(roomID, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}

	meta, err := p.store.GetBoard(roomID)
	if err != nil {
		return false, err
	}
	if meta == nil {
		return false, nil
	}

	if err := p.store.MarkLeft(roomID, userID); err != nil {
		return false, err
	}

	if meta.CreatorID != userID || meta.Status != board.StatusActive {
		return false, nil
	}

	if err := p.store.ExpireBoard(roomID); err != nil {
		return false, err
	}
	return true, nil
}

// Config tunes the inactivity sweeper.
type Config struct {
	// TTL is the inactivity window after which a board is deleted.
	TTL time.Duration

	// Interval between sweeps.
	Interval time.Duration
}

func DefaultConfig() Config {
	return Config{
		TTL:      30 * time.Minute,
		Interval: time.Minute,
	}
}

// Sweeper deletes boards whose last activity fell out of the TTL window.
// It stands in for a document store's own time-to-live mechanism: same
// observable behavior, a board idle past the window simply disappears.
type Sweeper struct {
	store  *store.Store
	config Config
	stop   chan struct{}
	wg     sync.WaitGroup
}

func NewSweeper(st *store.Store, config Config) *Sweeper {
	return &Sweeper{
		store:  st,
		config: config,
		stop:   make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	s.wg.Add(1)
	go s.run()
	log.Info().Dur("ttl", s.config.TTL).Dur("interval", s.config.Interval).
		Msg("expiry sweeper started")
}

func (s *Sweeper) Stop() {
	close(s.stop)
	s.wg.Wait()
	log.Info().Msg("expiry sweeper stopped")
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.SweepNow()
		}
	}
}

// SweepNow runs one sweep immediately.
func (s *Sweeper) SweepNow() {
	cutoff := time.Now().Add(-s.config.TTL)
	n, err := s.store.DeleteInactiveBefore(cutoff)
	if err != nil {
		log.Warn().Err(err).Msg("expiry sweep failed")
		return
	}
	if n > 0 {
		log.Info().Int64("boards", n).Msg("swept inactive boards")
	}
}
