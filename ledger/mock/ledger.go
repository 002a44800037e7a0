// Package mock provides an in-memory settlement ledger implementing the
// ledger.Client interface. It keeps one shared world of accounts and
// channels; every bound client acts on that world under its own caller
// address. Tests drive block progression explicitly via AdvanceBlocks.
package mock

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	"github.com/probanet/proba-go/ledger"
	"github.com/probanet/proba-go/model/proba"
)

// Ledger is the shared in-memory ledger state.
type Ledger struct {
	mu sync.Mutex

	height        uint64
	closureWindow uint64

	accounts map[proba.Address]*accountRecord
	channels map[proba.Hash]*channelRecord
	tokens   map[proba.Address]*big.Int
	natives  map[proba.Address]*big.Int

	opened  []proba.ChannelOpened
	closed  []proba.ChannelClosed
	secrets []proba.SecretHashSet

	nextSubID  int
	blockSubs  map[int]chan<- ledger.Block
	openedSubs map[int]chan<- proba.ChannelOpened
	closedSubs map[int]chan<- proba.ChannelClosed
	secretSubs map[int]chan<- proba.SecretHashSet
}

type accountRecord struct {
	secretHash  proba.Hash
	ticketEpoch uint64
	counter     uint64
}

type channelRecord struct {
	partyA        proba.Address
	partyB        proba.Address
	deposit       *big.Int
	partyABalance *big.Int
	closureTime   uint64
	stateCounter  uint64
}

func (r *channelRecord) status() proba.ChannelStatus {
	return proba.ChannelStatus(r.stateCounter % 10)
}

func (r *channelRecord) snapshot() proba.ChannelSnapshot {
	return proba.ChannelSnapshot{
		Deposit:       (*proba.Balance)(new(big.Int).Set(r.deposit)),
		PartyABalance: (*proba.Balance)(new(big.Int).Set(r.partyABalance)),
		ClosureTime:   r.closureTime,
		StateCounter:  r.stateCounter,
	}
}

// NewLedger creates an empty ledger with the given closure window, measured
// in blocks.
func NewLedger(closureWindow uint64) *Ledger {
	return &Ledger{
		closureWindow: closureWindow,
		accounts:      make(map[proba.Address]*accountRecord),
		channels:      make(map[proba.Hash]*channelRecord),
		tokens:        make(map[proba.Address]*big.Int),
		natives:       make(map[proba.Address]*big.Int),
		blockSubs:     make(map[int]chan<- ledger.Block),
		openedSubs:    make(map[int]chan<- proba.ChannelOpened),
		closedSubs:    make(map[int]chan<- proba.ChannelClosed),
		secretSubs:    make(map[int]chan<- proba.SecretHashSet),
	}
}

// Bind returns a client acting on this ledger under the given caller
// address.
func (l *Ledger) Bind(caller proba.Address) *Client {
	return &Client{ledger: l, caller: caller}
}

// MintToken credits the address with the given token amount.
func (l *Ledger) MintToken(addr proba.Address, amount *proba.Balance) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokenOf(addr).Add(l.tokenOf(addr), amount.Int())
}

// MintNative credits the address with the given native amount.
func (l *Ledger) MintNative(addr proba.Address, amount *proba.NativeBalance) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nativeOf(addr).Add(l.nativeOf(addr), amount.Int())
}

// AdvanceBlocks advances the head by n blocks, notifying block subscribers
// for each new head.
func (l *Ledger) AdvanceBlocks(n uint64) {
	for i := uint64(0); i < n; i++ {
		l.mu.Lock()
		l.height++
		block := ledger.Block{Number: l.height}
		subs := make([]chan<- ledger.Block, 0, len(l.blockSubs))
		for _, sub := range l.blockSubs {
			subs = append(subs, sub)
		}
		l.mu.Unlock()
		for _, sub := range subs {
			sub <- block
		}
	}
}

// Height returns the current head height.
func (l *Ledger) Height() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.height
}

// EmitChannelOpened injects a raw channel-opened event with caller-chosen
// log metadata, without touching channel state. Used to exercise indexing
// under reordering and duplication.
func (l *Ledger) EmitChannelOpened(ev proba.ChannelOpened) {
	l.mu.Lock()
	l.opened = append(l.opened, ev)
	subs := make([]chan<- proba.ChannelOpened, 0, len(l.openedSubs))
	for _, sub := range l.openedSubs {
		subs = append(subs, sub)
	}
	l.mu.Unlock()
	for _, sub := range subs {
		sub <- ev
	}
}

// EmitChannelClosed injects a raw channel-closed event.
func (l *Ledger) EmitChannelClosed(ev proba.ChannelClosed) {
	l.mu.Lock()
	l.closed = append(l.closed, ev)
	subs := make([]chan<- proba.ChannelClosed, 0, len(l.closedSubs))
	for _, sub := range l.closedSubs {
		subs = append(subs, sub)
	}
	l.mu.Unlock()
	for _, sub := range subs {
		sub <- ev
	}
}

// EmitSecretHashSet injects a raw commitment event.
func (l *Ledger) EmitSecretHashSet(ev proba.SecretHashSet) {
	l.mu.Lock()
	l.secrets = append(l.secrets, ev)
	subs := make([]chan<- proba.SecretHashSet, 0, len(l.secretSubs))
	for _, sub := range l.secretSubs {
		subs = append(subs, sub)
	}
	l.mu.Unlock()
	for _, sub := range subs {
		sub <- ev
	}
}

func (l *Ledger) accountOf(addr proba.Address) *accountRecord {
	account, ok := l.accounts[addr]
	if !ok {
		account = &accountRecord{}
		l.accounts[addr] = account
	}
	return account
}

func (l *Ledger) channelOf(a, b proba.Address) *channelRecord {
	partyA, partyB := proba.CanonicalPair(a, b)
	id := proba.ChannelID(partyA, partyB)
	record, ok := l.channels[id]
	if !ok {
		record = &channelRecord{
			partyA:        partyA,
			partyB:        partyB,
			deposit:       new(big.Int),
			partyABalance: new(big.Int),
		}
		l.channels[id] = record
	}
	return record
}

func (l *Ledger) tokenOf(addr proba.Address) *big.Int {
	balance, ok := l.tokens[addr]
	if !ok {
		balance = new(big.Int)
		l.tokens[addr] = balance
	}
	return balance
}

func (l *Ledger) nativeOf(addr proba.Address) *big.Int {
	balance, ok := l.natives[addr]
	if !ok {
		balance = new(big.Int)
		l.natives[addr] = balance
	}
	return balance
}

// stamp includes the pending call in a fresh block and returns its log
// metadata. The lock must be held; block subscribers are notified by the
// caller after unlocking.
func (l *Ledger) stamp() (proba.EventLog, []chan<- ledger.Block) {
	l.height++
	var txHash proba.Hash
	_, _ = rand.Read(txHash[:])
	log := proba.EventLog{
		BlockNumber:      l.height,
		TxHash:           txHash,
		TransactionIndex: 0,
		LogIndex:         0,
	}
	subs := make([]chan<- ledger.Block, 0, len(l.blockSubs))
	for _, sub := range l.blockSubs {
		subs = append(subs, sub)
	}
	return log, subs
}

func notifyBlocks(subs []chan<- ledger.Block, number uint64) {
	for _, sub := range subs {
		sub <- ledger.Block{Number: number}
	}
}

type subscription struct {
	once        sync.Once
	unsubscribe func()
	errs        chan error
}

func (s *subscription) Unsubscribe() error {
	s.once.Do(s.unsubscribe)
	return nil
}

func (s *subscription) Err() <-chan error {
	return s.errs
}

// Client is a view on the ledger bound to one caller address.
type Client struct {
	ledger *Ledger
	caller proba.Address
}

var _ ledger.Client = (*Client)(nil)

func (c *Client) HeadHeight(ctx context.Context) (uint64, error) {
	return c.ledger.Height(), nil
}

func (c *Client) SubscribeBlocks(ctx context.Context, blocks chan<- ledger.Block) (ledger.Subscription, error) {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextSubID
	l.nextSubID++
	l.blockSubs[id] = blocks
	return &subscription{
		errs: make(chan error, 1),
		unsubscribe: func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.blockSubs, id)
		},
	}, nil
}

// SubscribeChannelOpened replays historical events from the given height
// synchronously into the channel before going live, so the delivery channel
// must be buffered or actively consumed.
func (c *Client) SubscribeChannelOpened(ctx context.Context, from uint64, events chan<- proba.ChannelOpened) (ledger.Subscription, error) {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ev := range l.opened {
		if ev.Log.BlockNumber >= from {
			events <- ev
		}
	}
	id := l.nextSubID
	l.nextSubID++
	l.openedSubs[id] = events
	return &subscription{
		errs: make(chan error, 1),
		unsubscribe: func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.openedSubs, id)
		},
	}, nil
}

func (c *Client) SubscribeChannelClosed(ctx context.Context, from uint64, events chan<- proba.ChannelClosed) (ledger.Subscription, error) {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ev := range l.closed {
		if ev.Log.BlockNumber >= from {
			events <- ev
		}
	}
	id := l.nextSubID
	l.nextSubID++
	l.closedSubs[id] = events
	return &subscription{
		errs: make(chan error, 1),
		unsubscribe: func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.closedSubs, id)
		},
	}, nil
}

func (c *Client) SubscribeSecretHashSet(ctx context.Context, from uint64, events chan<- proba.SecretHashSet) (ledger.Subscription, error) {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ev := range l.secrets {
		if ev.Log.BlockNumber >= from {
			events <- ev
		}
	}
	id := l.nextSubID
	l.nextSubID++
	l.secretSubs[id] = events
	return &subscription{
		errs: make(chan error, 1),
		unsubscribe: func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.secretSubs, id)
		},
	}, nil
}

func (c *Client) Account(ctx context.Context, addr proba.Address) (proba.AccountState, error) {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	account := l.accountOf(addr)
	return proba.AccountState{
		SecretHash:  account.secretHash,
		TicketEpoch: account.ticketEpoch,
	}, nil
}

func (c *Client) Channel(ctx context.Context, channelID proba.Hash) (proba.ChannelSnapshot, error) {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.channels[channelID]
	if !ok {
		return proba.ChannelSnapshot{
			Deposit:       proba.ZeroBalance(),
			PartyABalance: proba.ZeroBalance(),
		}, nil
	}
	return record.snapshot(), nil
}

func (c *Client) TokenBalance(ctx context.Context, addr proba.Address) (*proba.Balance, error) {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	return (*proba.Balance)(new(big.Int).Set(l.tokenOf(addr))), nil
}

func (c *Client) NativeBalance(ctx context.Context, addr proba.Address) (*proba.NativeBalance, error) {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	return (*proba.NativeBalance)(new(big.Int).Set(l.nativeOf(addr))), nil
}

func (c *Client) SetSecretHash(ctx context.Context, secretHash proba.Hash) error {
	l := c.ledger
	l.mu.Lock()
	account := l.accountOf(c.caller)
	account.secretHash = secretHash
	account.counter++
	log, blockSubs := l.stamp()
	ev := proba.SecretHashSet{
		Account:    c.caller,
		SecretHash: secretHash,
		Counter:    account.counter,
		Log:        log,
	}
	l.secrets = append(l.secrets, ev)
	subs := make([]chan<- proba.SecretHashSet, 0, len(l.secretSubs))
	for _, sub := range l.secretSubs {
		subs = append(subs, sub)
	}
	l.mu.Unlock()

	notifyBlocks(blockSubs, log.BlockNumber)
	for _, sub := range subs {
		sub <- ev
	}
	return nil
}

func (c *Client) FundChannel(ctx context.Context, counterparty proba.Address, amount *proba.Balance) error {
	l := c.ledger
	l.mu.Lock()
	token := l.tokenOf(c.caller)
	if token.Cmp(amount.Int()) < 0 {
		l.mu.Unlock()
		return fmt.Errorf("insufficient token balance: have %s, need %s", token, amount)
	}
	record := l.channelOf(c.caller, counterparty)
	switch record.status() {
	case proba.ChannelUninitialised:
		record.stateCounter++
	case proba.ChannelFunding:
		// additional funding is allowed before open
	default:
		l.mu.Unlock()
		return fmt.Errorf("cannot fund channel in status %s", record.status())
	}
	token.Sub(token, amount.Int())
	record.deposit.Add(record.deposit, amount.Int())
	if record.partyA == c.caller {
		record.partyABalance.Add(record.partyABalance, amount.Int())
	}
	log, blockSubs := l.stamp()
	l.mu.Unlock()

	notifyBlocks(blockSubs, log.BlockNumber)
	return nil
}

func (c *Client) OpenChannel(ctx context.Context, counterparty proba.Address) error {
	l := c.ledger
	l.mu.Lock()
	record := l.channelOf(c.caller, counterparty)
	if record.status() != proba.ChannelFunding {
		l.mu.Unlock()
		return fmt.Errorf("cannot open channel in status %s", record.status())
	}
	record.stateCounter++
	log, blockSubs := l.stamp()
	ev := proba.ChannelOpened{
		Opener:       c.caller,
		Counterparty: counterparty,
		Log:          log,
	}
	l.opened = append(l.opened, ev)
	subs := make([]chan<- proba.ChannelOpened, 0, len(l.openedSubs))
	for _, sub := range l.openedSubs {
		subs = append(subs, sub)
	}
	l.mu.Unlock()

	notifyBlocks(blockSubs, log.BlockNumber)
	for _, sub := range subs {
		sub <- ev
	}
	return nil
}

func (c *Client) InitiateChannelClosure(ctx context.Context, counterparty proba.Address) error {
	l := c.ledger
	l.mu.Lock()
	record := l.channelOf(c.caller, counterparty)
	if record.status() != proba.ChannelOpen {
		l.mu.Unlock()
		return fmt.Errorf("cannot initiate closure in status %s", record.status())
	}
	record.stateCounter++
	record.closureTime = l.height + l.closureWindow
	log, blockSubs := l.stamp()
	l.mu.Unlock()

	notifyBlocks(blockSubs, log.BlockNumber)
	return nil
}

func (c *Client) ClaimChannelClosure(ctx context.Context, counterparty proba.Address) error {
	l := c.ledger
	l.mu.Lock()
	record := l.channelOf(c.caller, counterparty)
	if record.status() != proba.ChannelPendingClosure {
		l.mu.Unlock()
		return fmt.Errorf("cannot claim closure in status %s", record.status())
	}
	if l.height < record.closureTime {
		l.mu.Unlock()
		return fmt.Errorf("%w: closure time %d, height %d", proba.ErrNotClaimable, record.closureTime, l.height)
	}

	// pay out the split and move the channel to the next iteration
	balanceB := new(big.Int).Sub(record.deposit, record.partyABalance)
	l.tokenOf(record.partyA).Add(l.tokenOf(record.partyA), record.partyABalance)
	l.tokenOf(record.partyB).Add(l.tokenOf(record.partyB), balanceB)
	record.deposit = new(big.Int)
	record.partyABalance = new(big.Int)
	record.closureTime = 0
	record.stateCounter = (record.stateCounter/10 + 1) * 10

	log, blockSubs := l.stamp()
	ev := proba.ChannelClosed{
		Closer:       c.caller,
		Counterparty: counterparty,
		Log:          log,
	}
	l.closed = append(l.closed, ev)
	subs := make([]chan<- proba.ChannelClosed, 0, len(l.closedSubs))
	for _, sub := range l.closedSubs {
		subs = append(subs, sub)
	}
	l.mu.Unlock()

	notifyBlocks(blockSubs, log.BlockNumber)
	for _, sub := range subs {
		sub <- ev
	}
	return nil
}

func (c *Client) RedeemTicket(ctx context.Context, preimage, response proba.Hash, epoch uint64, amount *proba.Balance, winProb proba.Hash, sig proba.Signature) error {
	l := c.ledger
	l.mu.Lock()

	account := l.accountOf(c.caller)
	if proba.HashOf(preimage.Bytes()) != account.secretHash {
		l.mu.Unlock()
		return fmt.Errorf("preimage does not match account commitment")
	}
	if epoch != account.ticketEpoch {
		l.mu.Unlock()
		return fmt.Errorf("ticket epoch %d does not match account epoch %d", epoch, account.ticketEpoch)
	}

	// reconstruct the ticket the issuer signed
	ticket := proba.Ticket{
		Counterparty: c.caller,
		Challenge:    proba.HashOf(response.Bytes()),
		Epoch:        epoch,
		Amount:       amount,
		WinProb:      winProb,
	}
	ticketHash := ticket.Hash()
	issuer, err := proba.RecoverSigner(ticketHash, sig)
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("could not recover ticket issuer: %w", err)
	}
	if issuer == c.caller {
		l.mu.Unlock()
		return fmt.Errorf("cannot redeem own ticket")
	}
	if !proba.IsWinning(ticketHash, response, preimage, winProb) {
		l.mu.Unlock()
		return proba.ErrTicketNotWinning
	}

	record := l.channelOf(c.caller, issuer)
	status := record.status()
	if status != proba.ChannelOpen && status != proba.ChannelPendingClosure {
		l.mu.Unlock()
		return fmt.Errorf("cannot redeem ticket in channel status %s", status)
	}

	// move the amount towards the caller's side of the split
	if record.partyA == c.caller {
		moved := new(big.Int).Add(record.partyABalance, amount.Int())
		if moved.Cmp(record.deposit) > 0 {
			l.mu.Unlock()
			return fmt.Errorf("ticket amount exceeds channel deposit")
		}
		record.partyABalance = moved
	} else {
		if record.partyABalance.Cmp(amount.Int()) < 0 {
			l.mu.Unlock()
			return fmt.Errorf("ticket amount exceeds channel deposit")
		}
		record.partyABalance.Sub(record.partyABalance, amount.Int())
	}

	// disclosing the preimage rolls the commitment back one step and starts a
	// new ticket epoch
	account.secretHash = preimage
	account.ticketEpoch++

	log, blockSubs := l.stamp()
	l.mu.Unlock()

	notifyBlocks(blockSubs, log.BlockNumber)
	return nil
}
