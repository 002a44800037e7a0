// Package indexer maintains a local, reorg-safe view of the channel topology
// by consuming ledger events. Events are buffered until they are confirmed by
// a configurable number of blocks, then applied to persistent storage in
// event order; events the chain head already buries deep enough are applied
// on arrival.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ef-ds/deque"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/probanet/proba-go/engine/notifier"
	"github.com/probanet/proba-go/ledger"
	"github.com/probanet/proba-go/model/proba"
	"github.com/probanet/proba-go/module/metrics"
	"github.com/probanet/proba-go/storage"
)

const (
	statusStopped uint32 = iota
	statusStarted
	statusStopping
)

const eventChanCapacity = 64

// Config holds the injected indexer parameters.
type Config struct {

	// ConfirmationDepth is the number of blocks an event must be buried under
	// before it is applied.
	ConfirmationDepth uint64
}

// Indexer consumes ledger events through an internal queue and a single
// consumer routine, so all state transitions are applied sequentially.
type Indexer struct {
	log      zerolog.Logger
	conf     Config
	client   ledger.Client
	channels storage.Channels
	progress storage.Progress
	metrics  metrics.Collector

	mu     sync.Mutex // guards lifecycle transitions
	status *atomic.Uint32
	cancel context.CancelFunc
	done   chan struct{}
	subs   []ledger.Subscription

	queueMu sync.Mutex
	queue   *deque.Deque
	notify  notifier.Notifier

	// unconfirmed events, ordered by event key, deduplicated by event ID;
	// only the consumer routine touches these while running
	pending []pendingEvent
	seen    map[proba.Hash]struct{}

	// latest confirmed commitment per account, in event order
	secretsMu sync.RWMutex
	secrets   map[proba.Address]secretRecord

	// latest confirmed height, seeded from the chain head on Start so
	// events that are already buried apply without waiting for a header
	confirmed    uint64
	hasConfirmed bool

	// last persisted watermark; only moves when an event is applied
	watermark    uint64
	hasWatermark bool
}

type pendingEvent struct {
	id    proba.Hash
	key   proba.EventKey
	kind  proba.EventKind
	apply func() error
}

type secretRecord struct {
	hash    proba.Hash
	counter uint64
	key     proba.EventKey
}

func New(
	log zerolog.Logger,
	conf Config,
	client ledger.Client,
	channels storage.Channels,
	progress storage.Progress,
	collector metrics.Collector,
) *Indexer {
	return &Indexer{
		log:      log.With().Str("component", "indexer").Logger(),
		conf:     conf,
		client:   client,
		channels: channels,
		progress: progress,
		metrics:  collector,
		status:   atomic.NewUint32(statusStopped),
		queue:    deque.New(),
		notify:   notifier.NewNotifier(),
		seen:     make(map[proba.Hash]struct{}),
		secrets:  make(map[proba.Address]secretRecord),
	}
}

// Start subscribes to the ledger and launches the consumer routine. Calling
// Start on a started indexer is a no-op; starting while a stop is in progress
// is an error.
func (i *Indexer) Start() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	switch i.status.Load() {
	case statusStarted:
		return nil
	case statusStopping:
		return fmt.Errorf("cannot start indexer while it is stopping")
	}

	from, err := i.resumeHeight()
	if err != nil {
		return fmt.Errorf("could not determine resume height: %w", err)
	}

	head, err := i.client.HeadHeight(context.Background())
	if err != nil {
		return fmt.Errorf("could not fetch chain head: %w", err)
	}
	i.hasConfirmed = head >= i.conf.ConfirmationDepth
	if i.hasConfirmed {
		i.confirmed = head - i.conf.ConfirmationDepth
	}

	ctx, cancel := context.WithCancel(context.Background())

	blocks := make(chan ledger.Block, eventChanCapacity)
	opened := make(chan proba.ChannelOpened, eventChanCapacity)
	closed := make(chan proba.ChannelClosed, eventChanCapacity)
	secrets := make(chan proba.SecretHashSet, eventChanCapacity)

	// pumps run before subscribing, so subscriptions that replay history
	// synchronously cannot block
	go pump(ctx, blocks, i.push)
	go pump(ctx, opened, i.push)
	go pump(ctx, closed, i.push)
	go pump(ctx, secrets, i.push)

	subs := make([]ledger.Subscription, 0, 4)
	subscribe := func(sub ledger.Subscription, err error) error {
		if err != nil {
			return err
		}
		subs = append(subs, sub)
		return nil
	}
	err = subscribe(i.client.SubscribeBlocks(ctx, blocks))
	if err == nil {
		err = subscribe(i.client.SubscribeChannelOpened(ctx, from, opened))
	}
	if err == nil {
		err = subscribe(i.client.SubscribeChannelClosed(ctx, from, closed))
	}
	if err == nil {
		err = subscribe(i.client.SubscribeSecretHashSet(ctx, from, secrets))
	}
	if err != nil {
		cancel()
		for _, sub := range subs {
			_ = sub.Unsubscribe()
		}
		return fmt.Errorf("could not subscribe to ledger: %w", err)
	}

	i.cancel = cancel
	i.subs = subs
	i.done = make(chan struct{})
	go i.loop(ctx)

	i.status.Store(statusStarted)
	i.log.Info().Uint64("from_height", from).Msg("indexer started")
	return nil
}

// Stop cancels all subscriptions, waits for the consumer routine to exit and
// drops all unconfirmed events. Stopping a stopped indexer is a no-op.
func (i *Indexer) Stop() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.status.Load() != statusStarted {
		return nil
	}
	i.status.Store(statusStopping)

	var result *multierror.Error
	for _, sub := range i.subs {
		err := sub.Unsubscribe()
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	i.subs = nil

	i.cancel()
	<-i.done

	// unconfirmed events do not survive a stop; they are replayed from the
	// watermark on the next start
	i.pending = nil
	i.seen = make(map[proba.Hash]struct{})
	i.hasConfirmed = false
	i.hasWatermark = false
	i.queueMu.Lock()
	i.queue = deque.New()
	i.queueMu.Unlock()

	i.status.Store(statusStopped)
	i.log.Info().Msg("indexer stopped")
	return result.ErrorOrNil()
}

// resumeHeight computes the replay start: confirmation depth blocks before
// the watermark, so events the watermark already covers are re-delivered and
// deduplicated rather than missed.
func (i *Indexer) resumeHeight() (uint64, error) {
	watermark, err := i.progress.ConfirmedHeight()
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	i.watermark = watermark
	i.hasWatermark = true
	if watermark <= i.conf.ConfirmationDepth {
		return 0, nil
	}
	return watermark - i.conf.ConfirmationDepth, nil
}

func pump[E any](ctx context.Context, events <-chan E, push func(interface{})) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			push(ev)
		}
	}
}

func (i *Indexer) push(item interface{}) {
	i.queueMu.Lock()
	i.queue.PushBack(item)
	i.queueMu.Unlock()
	i.notify.Notify()
}

func (i *Indexer) pop() (interface{}, bool) {
	i.queueMu.Lock()
	defer i.queueMu.Unlock()
	return i.queue.PopFront()
}

func (i *Indexer) loop(ctx context.Context) {
	defer close(i.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-i.notify.Channel():
			for {
				item, ok := i.pop()
				if !ok {
					break
				}
				i.process(item)
			}
		}
	}
}

func (i *Indexer) process(item interface{}) {
	switch ev := item.(type) {
	case ledger.Block:
		i.onBlock(ev.Number)
	case proba.ChannelOpened:
		i.bufferEvent(ev.ID(), ev.Log.Key(), proba.EventChannelOpened, func() error {
			return i.applyOpened(ev)
		})
	case proba.ChannelClosed:
		i.bufferEvent(ev.ID(), ev.Log.Key(), proba.EventChannelClosed, func() error {
			return i.applyClosed(ev)
		})
	case proba.SecretHashSet:
		i.bufferEvent(ev.ID(), ev.Log.Key(), proba.EventSecretHashSet, func() error {
			i.applySecret(ev)
			return nil
		})
	default:
		i.log.Error().Msgf("unknown queue item (%T)", item)
	}
}

// bufferEvent applies the event at once when the chain head already buries it
// under the confirmation depth; otherwise it is inserted into the unconfirmed
// buffer in event order. Redelivered events are dropped by their composite
// identifier.
func (i *Indexer) bufferEvent(id proba.Hash, key proba.EventKey, kind proba.EventKind, apply func() error) {
	if _, ok := i.seen[id]; ok {
		i.log.Debug().
			Str("kind", kind.String()).
			Str("key", key.String()).
			Msg("duplicate event dropped")
		return
	}

	if i.hasConfirmed && key.BlockNumber <= i.confirmed {
		i.applyConfirmed(pendingEvent{id: id, key: key, kind: kind, apply: apply})
		return
	}
	i.seen[id] = struct{}{}

	pos := len(i.pending)
	for pos > 0 && i.pending[pos-1].key.After(key) {
		pos--
	}
	i.pending = append(i.pending, pendingEvent{})
	copy(i.pending[pos+1:], i.pending[pos:])
	i.pending[pos] = pendingEvent{id: id, key: key, kind: kind, apply: apply}

	i.metrics.BufferedEvents(len(i.pending))
}

// onBlock advances the confirmed height and applies every buffered event the
// new head confirms.
func (i *Indexer) onBlock(height uint64) {
	if height < i.conf.ConfirmationDepth {
		return
	}
	confirmed := height - i.conf.ConfirmationDepth
	if i.hasConfirmed && confirmed <= i.confirmed {
		return
	}
	i.confirmed = confirmed
	i.hasConfirmed = true

	applied := 0
	for applied < len(i.pending) && i.pending[applied].key.BlockNumber <= confirmed {
		ev := i.pending[applied]
		delete(i.seen, ev.id)
		i.applyConfirmed(ev)
		applied++
	}
	if applied > 0 {
		i.pending = append(i.pending[:0], i.pending[applied:]...)
	}
	i.metrics.BufferedEvents(len(i.pending))
}

// applyConfirmed applies one confirmed event and moves the watermark to its
// block. Tying the watermark to applied events keeps events that are still in
// flight on another subscription inside the replay window of the next start.
func (i *Indexer) applyConfirmed(ev pendingEvent) {
	err := ev.apply()
	if err != nil {
		i.log.Error().Err(err).
			Str("kind", ev.kind.String()).
			Str("key", ev.key.String()).
			Msg("could not apply confirmed event")
		return
	}
	i.advanceWatermark(ev.key.BlockNumber)
}

func (i *Indexer) advanceWatermark(height uint64) {
	if i.hasWatermark && height <= i.watermark {
		return
	}
	err := i.progress.SetConfirmedHeight(height)
	if err != nil {
		i.log.Error().Err(err).Uint64("height", height).Msg("could not persist watermark")
		return
	}
	i.watermark = height
	i.hasWatermark = true
	i.metrics.ConfirmedHeight(height)
}

func (i *Indexer) applyOpened(ev proba.ChannelOpened) error {
	entry := proba.NewChannelEntry(ev.Opener, ev.Counterparty, ev.Log, proba.ChannelOpen)

	existing, err := i.channels.ByParties(entry.PartyA, entry.PartyB)
	if err == nil {
		if !entry.EventKey().After(existing.EventKey()) {
			i.log.Debug().Str("key", entry.EventKey().String()).Msg("stale open event dropped")
			return nil
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	err = i.channels.Upsert(entry)
	if err != nil {
		return err
	}
	i.log.Debug().
		Str("party_a", entry.PartyA.String()).
		Str("party_b", entry.PartyB.String()).
		Msg("channel indexed")
	return nil
}

func (i *Indexer) applyClosed(ev proba.ChannelClosed) error {
	existing, err := i.channels.ByParties(ev.Closer, ev.Counterparty)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !ev.Log.Key().After(existing.EventKey()) {
		i.log.Debug().Str("key", ev.Log.Key().String()).Msg("stale close event dropped")
		return nil
	}

	err = i.channels.Remove(existing.PartyA, existing.PartyB)
	if err != nil {
		return err
	}
	i.log.Debug().
		Str("party_a", existing.PartyA.String()).
		Str("party_b", existing.PartyB.String()).
		Msg("channel removed")
	return nil
}

func (i *Indexer) applySecret(ev proba.SecretHashSet) {
	i.secretsMu.Lock()
	defer i.secretsMu.Unlock()

	existing, ok := i.secrets[ev.Account]
	if ok && !ev.Log.Key().After(existing.key) {
		return
	}
	i.secrets[ev.Account] = secretRecord{
		hash:    ev.SecretHash,
		counter: ev.Counter,
		key:     ev.Log.Key(),
	}
}

// Has returns true if a confirmed open channel between the two parties is
// indexed.
func (i *Indexer) Has(a, b proba.Address) (bool, error) {
	_, err := i.channels.ByParties(a, b)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Channels returns all indexed channels.
func (i *Indexer) Channels() ([]proba.ChannelEntry, error) {
	return i.channels.All()
}

// ChannelsOf returns all indexed channels the given address is a party of.
func (i *Indexer) ChannelsOf(party proba.Address) ([]proba.ChannelEntry, error) {
	return i.channels.ByParty(party)
}

// SecretOf returns the latest confirmed commitment of the given account.
func (i *Indexer) SecretOf(account proba.Address) (proba.Hash, bool) {
	i.secretsMu.RLock()
	defer i.secretsMu.RUnlock()
	record, ok := i.secrets[account]
	return record.hash, ok
}
