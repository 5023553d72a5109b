package token

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yieldvault/internal/types"
)

type entryKind int

const (
	entryMove    entryKind = iota // amount moved from a to b
	entrySpend                    // amount of a's allowance to b consumed
	entryApprove                  // allowance a->b overwritten, amount holds the previous value
)

type journalEntry struct {
	kind        entryKind
	a, b        types.Address
	amount      sdkmath.Int
	hadPrevious bool
}

// journal is an undo log of the ledger writes made on behalf of one account.
type journal struct {
	account        types.Address
	counterparties map[types.Address]struct{}
	entries        []journalEntry
}

// coversMove reports whether a transfer belongs to the journaled account:
// funds leaving it, funds it pulls with an allowance, or funds returned to it
// by one of its counterparties.
func (j *journal) coversMove(spender, from, to types.Address) bool {
	if from == j.account || spender == j.account {
		return true
	}
	if to != j.account {
		return false
	}
	_, ok := j.counterparties[from]
	return ok
}

// Journal starts recording the writes that belong to account and returns two
// functions. revert undoes exactly those writes, newest first, and stops
// recording. release stops recording and keeps the writes. Only the first of
// the two calls has an effect. Writes by other accounts, mints included, are
// never recorded and survive a revert.
func (l *Ledger) Journal(account types.Address, counterparties ...types.Address) (revert func() error, release func()) {
	j := &journal{
		account:        account,
		counterparties: make(map[types.Address]struct{}, len(counterparties)),
	}
	for _, c := range counterparties {
		j.counterparties[c] = struct{}{}
	}

	l.mu.Lock()
	l.journals = append(l.journals, j)
	l.mu.Unlock()

	revert = func() error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if !l.detach(j) {
			return nil
		}
		return l.undo(j)
	}
	release = func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.detach(j)
	}
	return revert, release
}

// recordMove must be called with l.mu held, after the write.
func (l *Ledger) recordMove(spender, from, to types.Address, amount sdkmath.Int, spent bool) {
	for _, j := range l.journals {
		if !j.coversMove(spender, from, to) {
			continue
		}
		j.entries = append(j.entries, journalEntry{kind: entryMove, a: from, b: to, amount: amount})
		if spent {
			j.entries = append(j.entries, journalEntry{kind: entrySpend, a: from, b: spender, amount: amount})
		}
	}
}

// recordApprove must be called with l.mu held, before the write.
func (l *Ledger) recordApprove(owner, spender types.Address) {
	for _, j := range l.journals {
		if owner != j.account {
			continue
		}
		previous, ok := l.allowances[owner][spender]
		j.entries = append(j.entries, journalEntry{kind: entryApprove, a: owner, b: spender, amount: previous, hadPrevious: ok})
	}
}

// detach reports whether j was still recording.
func (l *Ledger) detach(j *journal) bool {
	for i, active := range l.journals {
		if active == j {
			l.journals = append(l.journals[:i], l.journals[i+1:]...)
			return true
		}
	}
	return false
}

// undo reverses j's entries against the current state. Balances move back by
// their recorded amount, so unrelated writes made in between are kept.
func (l *Ledger) undo(j *journal) error {
	var errs []error
	for i := len(j.entries) - 1; i >= 0; i-- {
		e := j.entries[i]
		switch e.kind {
		case entryMove:
			held := l.balanceOf(e.b)
			if held.LT(e.amount) {
				errs = append(errs, errors.Join(ErrInsufficientFunds, fmt.Errorf("cannot return %s from %s to %s, it holds %s", e.amount, e.b, e.a, held)))
				continue
			}
			l.balances[e.b] = held.Sub(e.amount)
			l.balances[e.a] = l.balanceOf(e.a).Add(e.amount)
		case entrySpend:
			current := l.allowances[e.a][e.b]
			if current.IsNil() {
				current = sdkmath.ZeroInt()
			}
			if types.IsUnlimited(current) {
				continue
			}
			restored, err := current.SafeAdd(e.amount)
			if err != nil {
				restored = types.UnlimitedAllowance()
			}
			l.setAllowance(e.a, e.b, restored)
		case entryApprove:
			if e.hadPrevious {
				l.setAllowance(e.a, e.b, e.amount)
			} else {
				delete(l.allowances[e.a], e.b)
			}
		}
	}

	l.logger.Debug().
		Str("account", string(j.account)).
		Int("writes", len(j.entries)).
		Msg("Reverted journaled ledger writes")
	return errors.Join(errs...)
}
