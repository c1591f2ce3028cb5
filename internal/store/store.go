// Package store holds the dashboard state: the current dataset, upload history
// and the loading, error and success flags the view is rendered from.
//
// Dataset and history are a cache of backend state. Each fetch is tagged with a
// sequence number when it starts; a response is applied only if no newer fetch
// of the same kind has been applied already, so the newest request wins no
// matter which response arrives last.
package store

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/chemviz/dashboard/internal/models"
	"github.com/chemviz/dashboard/internal/transport"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultSuccessDuration is how long the upload success banner stays up.
const DefaultSuccessDuration = 3 * time.Second

// ReportFileName is the name the report is saved under.
const ReportFileName = "equipment_report.pdf"

// Backend is the subset of the transport client the store needs.
type Backend interface {
	FetchLatest(ctx context.Context) (*models.Dataset, error)
	Upload(ctx context.Context, name string, r io.Reader) (*models.Dataset, error)
	FetchHistory(ctx context.Context) []models.HistoryEntry
	FetchReport(ctx context.Context) ([]byte, error)
}

// Saver persists a downloaded report on the user's side.
type Saver interface {
	Save(name string, data []byte) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(name string, data []byte) error

// Save implements Saver
func (f SaverFunc) Save(name string, data []byte) error { return f(name, data) }

// Snapshot is an immutable copy of the state at one instant.
type Snapshot struct {
	Dataset       *models.Dataset       `json:"dataset"`
	History       []models.HistoryEntry `json:"history"`
	Loading       bool                  `json:"loading"`
	Error         string                `json:"error,omitempty"`
	UploadSuccess bool                  `json:"upload_success"`
	// InputGeneration increments whenever the file input must be cleared so
	// the same file name can be selected again.
	InputGeneration uint64 `json:"input_generation"`
	// Version increments on every state change.
	Version uint64 `json:"version"`
}

// Store is the single source of truth for the view. It is safe for concurrent use.
type Store struct {
	backend         Backend
	scheduler       Scheduler
	successDuration time.Duration
	baseCtx         context.Context

	mu       sync.Mutex
	dataset  *models.Dataset
	history  []models.HistoryEntry
	pending  int
	errMsg   string
	success  bool
	inputGen uint64
	version  uint64

	// Upload success banner owned by one upload attempt.
	successAttempt string
	stopSuccess    func() bool

	datasetIssued  uint64
	datasetApplied uint64
	historyIssued  uint64
	historyApplied uint64

	subs    map[int]chan struct{}
	nextSub int

	mountOnce sync.Once
	wg        sync.WaitGroup
}

// Option customises a Store.
type Option func(*Store)

// WithScheduler replaces the clock used for the success banner.
func WithScheduler(s Scheduler) Option {
	return func(st *Store) { st.scheduler = s }
}

// WithSuccessDuration sets how long the success banner stays up.
func WithSuccessDuration(d time.Duration) Option {
	return func(st *Store) {
		if d > 0 {
			st.successDuration = d
		}
	}
}

// WithContext sets the context dispatched actions run under.
func WithContext(ctx context.Context) Option {
	return func(st *Store) { st.baseCtx = ctx }
}

// New creates an empty store backed by b.
func New(b Backend, opts ...Option) *Store {
	s := &Store{
		backend:         b,
		scheduler:       SystemScheduler{},
		successDuration: DefaultSuccessDuration,
		baseCtx:         context.Background(),
		history:         []models.HistoryEntry{},
		subs:            make(map[int]chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]models.HistoryEntry, len(s.history))
	copy(history, s.history)
	return Snapshot{
		Dataset:         s.dataset,
		History:         history,
		Loading:         s.pending > 0,
		Error:           s.errMsg,
		UploadSuccess:   s.success,
		InputGeneration: s.inputGen,
		Version:         s.version,
	}
}

// LoadLatest fetches the latest dataset. "No dataset yet" leaves the dataset
// untouched and is not an error.
func (s *Store) LoadLatest(ctx context.Context) {
	s.mu.Lock()
	s.datasetIssued++
	seq := s.datasetIssued
	s.pending++
	s.errMsg = ""
	s.changedLocked()
	s.mu.Unlock()

	ds, err := s.backend.FetchLatest(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending--
	defer s.changedLocked()

	if seq <= s.datasetApplied {
		log.Debug().Uint64("seq", seq).Msg("discarding stale latest dataset")
		return
	}
	s.datasetApplied = seq
	if err != nil {
		s.failLocked(err, transport.MsgFetchFailed)
		return
	}
	if ds != nil {
		s.dataset = ds
	}
}

// LoadHistory replaces the upload history. Failures yield an empty history
// and are never surfaced.
func (s *Store) LoadHistory(ctx context.Context) {
	s.mu.Lock()
	s.historyIssued++
	seq := s.historyIssued
	s.mu.Unlock()

	entries := s.backend.FetchHistory(ctx)
	if entries == nil {
		entries = []models.HistoryEntry{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.historyApplied {
		return
	}
	s.historyApplied = seq
	s.history = entries
	s.changedLocked()
}

// UploadAttempt is an upload that has been marked in flight but not sent yet.
type UploadAttempt struct {
	store *Store
	id    string
	seq   uint64
	name  string
}

// ID identifies the attempt in logs and owns its success banner.
func (a *UploadAttempt) ID() string { return a.id }

// BeginUpload validates name and marks an upload in flight: loading is set
// and any banner is cleared before it returns. A name without the .csv
// extension sets the validation error, clears the file input and yields nil.
func (s *Store) BeginUpload(name string) *UploadAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !transport.HasCSVExtension(name) {
		s.errMsg = transport.MsgNotCSV
		s.clearSuccessLocked()
		s.inputGen++
		s.changedLocked()
		return nil
	}

	s.datasetIssued++
	a := &UploadAttempt{store: s, id: uuid.New().String(), seq: s.datasetIssued, name: name}
	s.pending++
	s.errMsg = ""
	s.clearSuccessLocked()
	s.changedLocked()
	return a
}

// Run sends the file and applies the outcome. On success the dataset is
// replaced, the history is refreshed and the success banner is shown for the
// configured duration. The file input is cleared whatever the outcome.
func (a *UploadAttempt) Run(ctx context.Context, r io.Reader) {
	s := a.store
	logger := log.With().Str("attempt", a.id).Str("file", a.name).Logger()

	logger.Info().Msg("upload started")
	ds, err := s.backend.Upload(ctx, a.name, r)

	s.mu.Lock()
	s.pending--
	s.inputGen++
	if a.seq > s.datasetApplied {
		s.datasetApplied = a.seq
		if err != nil {
			s.failLocked(err, transport.MsgUploadFailed)
		} else {
			s.dataset = ds
			s.showSuccessLocked(a.id)
		}
	} else {
		logger.Debug().Msg("discarding stale upload response")
	}
	s.changedLocked()
	s.mu.Unlock()

	if err != nil {
		logger.Warn().Err(err).Msg("upload failed")
		return
	}
	logger.Info().Int64("total_equipment", ds.Stats.TotalEquipment).Msg("upload complete")
	s.LoadHistory(ctx)
}

// SubmitUpload is BeginUpload followed by Run.
func (s *Store) SubmitUpload(ctx context.Context, name string, r io.Reader) {
	if a := s.BeginUpload(name); a != nil {
		a.Run(ctx, r)
	}
}

// DownloadReport fetches the PDF report and hands it to saver. It does not
// touch the dataset or the loading flag. The returned error carries the
// message that was also put into the error state.
func (s *Store) DownloadReport(ctx context.Context, saver Saver) error {
	data, err := s.backend.FetchReport(ctx)
	if err == nil {
		if saveErr := saver.Save(ReportFileName, data); saveErr != nil {
			err = &transport.Error{
				Op:      transport.OpFetchReport,
				Kind:    transport.KindNetwork,
				Message: transport.MsgDownloadFailed,
				Err:     saveErr,
			}
		}
	}
	if err == nil {
		log.Info().Int("bytes", len(data)).Msg("report downloaded")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLocked(err, transport.MsgDownloadFailed)
	s.changedLocked()
	return err
}

// failLocked records err as the visible error and drops any success banner.
func (s *Store) failLocked(err error, fallback string) {
	msg := fallback
	if te, ok := transport.AsError(err); ok {
		msg = te.Message
		log.Debug().Str("detail", te.Detail()).Msg("action failed")
	}
	s.errMsg = msg
	s.clearSuccessLocked()
}

func (s *Store) showSuccessLocked(attempt string) {
	s.clearSuccessLocked()
	s.success = true
	s.successAttempt = attempt
	s.stopSuccess = s.scheduler.AfterFunc(s.successDuration, func() {
		s.expireSuccess(attempt)
	})
}

// clearSuccessLocked hides the banner and cancels its pending expiry.
func (s *Store) clearSuccessLocked() {
	if s.stopSuccess != nil {
		s.stopSuccess()
		s.stopSuccess = nil
	}
	s.success = false
	s.successAttempt = ""
}

// expireSuccess hides the banner if it still belongs to attempt.
func (s *Store) expireSuccess(attempt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.successAttempt != attempt {
		return
	}
	s.success = false
	s.successAttempt = ""
	s.stopSuccess = nil
	s.changedLocked()
}

// Subscribe returns a channel that receives a signal after state changes.
// Signals are coalesced; read Snapshot to get the state. Call cancel to stop.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
}

func (s *Store) changedLocked() {
	s.version++
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
