// Package ticket implements the probabilistic micropayment protocol: issuing
// signed tickets, verifying and acknowledging received ones, and submitting
// winners for on-chain redemption.
package ticket

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/probanet/proba-go/channel"
	"github.com/probanet/proba-go/commitment"
	"github.com/probanet/proba-go/ledger"
	"github.com/probanet/proba-go/model/proba"
	"github.com/probanet/proba-go/module/metrics"
	"github.com/probanet/proba-go/storage"
)

// Protocol issues and redeems tickets on behalf of one identity.
type Protocol struct {
	log         zerolog.Logger
	identity    *ledger.Identity
	client      ledger.Client
	commitments *commitment.Manager
	tickets     storage.Tickets
	metrics     metrics.Collector
}

func NewProtocol(
	log zerolog.Logger,
	identity *ledger.Identity,
	client ledger.Client,
	commitments *commitment.Manager,
	tickets storage.Tickets,
	collector metrics.Collector,
) *Protocol {
	return &Protocol{
		log:         log.With().Str("component", "ticket").Logger(),
		identity:    identity,
		client:      client,
		commitments: commitments,
		tickets:     tickets,
		metrics:     collector,
	}
}

// Create issues a signed ticket over the given channel. The ticket is bound
// to the counterparty's current ticket epoch, so it expires when any earlier
// ticket of theirs is redeemed first.
func (p *Protocol) Create(
	ctx context.Context,
	ch *channel.Channel,
	amount *proba.Balance,
	challenge proba.Hash,
	winProb proba.Hash,
) (proba.SignedTicket, error) {

	account, err := p.client.Account(ctx, ch.Counterparty())
	if err != nil {
		return proba.SignedTicket{}, fmt.Errorf("could not load counterparty account: %w", err)
	}

	ticket := proba.Ticket{
		Counterparty: ch.Counterparty(),
		Challenge:    challenge,
		Epoch:        account.TicketEpoch,
		Amount:       amount,
		WinProb:      winProb,
	}
	sig, err := p.identity.Sign(ticket.Hash())
	if err != nil {
		return proba.SignedTicket{}, fmt.Errorf("could not sign ticket: %w", err)
	}

	p.metrics.TicketIssued()
	p.log.Debug().
		Str("amount", amount.String()).
		Uint64("epoch", ticket.Epoch).
		Msg("ticket issued")
	return proba.SignedTicket{Ticket: ticket, Signature: sig}, nil
}

// Verify checks a received ticket: the signature nonce must be fresh for the
// channel, the signer must be the expected issuer, and the ticket must be
// made out to us. The nonce is consumed first, so a replayed ticket fails
// with ErrReplayedNonce regardless of its other properties.
func (p *Protocol) Verify(ch *channel.Channel, signed proba.SignedTicket, issuer proba.Address) error {
	err := ch.TestAndSetNonce(signed.Signature)
	if err != nil {
		return err
	}

	signer, err := signed.Signer()
	if err != nil {
		return fmt.Errorf("%s: %w", err, proba.ErrInvalidSignature)
	}
	if signer != issuer {
		return fmt.Errorf("ticket signed by %s, expected %s: %w", signer, issuer, proba.ErrInvalidSignature)
	}
	if signed.Ticket.Counterparty != p.identity.Address() {
		return fmt.Errorf("ticket made out to %s, not us: %w", signed.Ticket.Counterparty, proba.ErrInvalidSignature)
	}
	return nil
}

// Acknowledge pairs a verified ticket with the response solving its
// challenge and stores it for later redemption.
func (p *Protocol) Acknowledge(ch *channel.Channel, signed proba.SignedTicket, response proba.Hash) (proba.AcknowledgedTicket, error) {
	if proba.HashOf(response.Bytes()) != signed.Ticket.Challenge {
		return proba.AcknowledgedTicket{}, fmt.Errorf("challenge %s: %w", signed.Ticket.Challenge, proba.ErrInvalidResponse)
	}

	ack := proba.AcknowledgedTicket{
		Ticket:   signed,
		Response: response,
	}
	err := p.tickets.Store(ch.ID(), ack)
	if err != nil {
		return proba.AcknowledgedTicket{}, fmt.Errorf("could not store acknowledged ticket: %w", err)
	}
	return ack, nil
}

// Submit redeems an acknowledged ticket on-chain. The luck of the ticket is
// decided here, against the preimage of our current on-chain commitment; a
// losing ticket fails with ErrTicketNotWinning and discloses nothing.
func (p *Protocol) Submit(ctx context.Context, ch *channel.Channel, ack proba.AcknowledgedTicket) error {
	if ack.Redeemed {
		return fmt.Errorf("ticket already redeemed")
	}

	ticket := ack.Ticket.Ticket
	if proba.HashOf(ack.Response.Bytes()) != ticket.Challenge {
		return fmt.Errorf("response does not match challenge: %w", proba.ErrInvalidResponse)
	}

	account, err := p.client.Account(ctx, p.identity.Address())
	if err != nil {
		return fmt.Errorf("could not load own account: %w", err)
	}
	preimage, index, err := p.commitments.FindPreimage(account.SecretHash)
	if err != nil {
		return fmt.Errorf("could not find commitment preimage: %w", err)
	}

	ticketHash := ticket.Hash()
	if !proba.IsWinning(ticketHash, ack.Response, preimage, ticket.WinProb) {
		p.metrics.TicketLosing()
		return proba.ErrTicketNotWinning
	}

	err = p.client.RedeemTicket(ctx, preimage, ack.Response, ticket.Epoch, ticket.Amount, ticket.WinProb, ack.Ticket.Signature)
	if err != nil {
		return fmt.Errorf("could not redeem ticket: %w", err)
	}

	// the redemption disclosed the preimage, our commitment moved back one
	// step
	err = p.commitments.MarkDisclosed(index)
	if err != nil {
		return fmt.Errorf("could not update chain head: %w", err)
	}

	ack.Redeemed = true
	err = p.tickets.Store(ch.ID(), ack)
	if err != nil {
		return fmt.Errorf("could not mark ticket redeemed: %w", err)
	}

	p.metrics.TicketRedeemed()
	p.log.Info().
		Str("amount", ticket.Amount.String()).
		Uint64("chain_index", index).
		Msg("winning ticket redeemed")
	return nil
}

// Stored returns the acknowledged ticket with the given challenge.
// Error returns:
//   - storage.ErrNotFound if no such ticket is stored for the channel
func (p *Protocol) Stored(ch *channel.Channel, challenge proba.Hash) (proba.AcknowledgedTicket, error) {
	return p.tickets.ByChallenge(ch.ID(), challenge)
}
