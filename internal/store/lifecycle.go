package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Mount dispatches the initial dataset and history loads. Only the first call
// does anything; it reports whether this call was the one that mounted.
func (s *Store) Mount() bool {
	mounted := false
	s.mountOnce.Do(func() {
		mounted = true
		s.Go(s.LoadLatest)
		s.Go(s.LoadHistory)
	})
	return mounted
}

// Go runs an action in the background under the store's context.
func (s *Store) Go(action func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("panic", fmt.Sprint(r)).Msg("store action panicked")
			}
		}()
		action(s.baseCtx)
	}()
}

// Wait blocks until every action started with Go has returned.
func (s *Store) Wait() {
	s.wg.Wait()
}
