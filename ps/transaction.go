package ps

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/plumbing/storer"
)

// Transaction is one saved snapshot.
type Transaction struct {
	Id      string    `json:"id"`
	When    time.Time `json:"when"`
	Author  string    `json:"author"` // "Name <email>" format
	Message string    `json:"message"`
}

func (transaction Transaction) String() string {
	return fmt.Sprintf("Transaction{Id: %s, When: %s, Author: %s}", transaction.Id, transaction.When, transaction.Author)
}

// Short is the abbreviated id shown to users.
func (transaction Transaction) Short() string {
	if len(transaction.Id) > 8 {
		return transaction.Id[:8]
	}
	return transaction.Id
}

func newTransaction(hash plumbing.Hash, commit *object.Commit) Transaction {
	author := ""
	if commit.Author.Name != "" || commit.Author.Email != "" {
		author = fmt.Sprintf("%s <%s>", commit.Author.Name, commit.Author.Email)
	}
	return Transaction{
		Id:      hash.String(),
		When:    commit.Committer.When,
		Author:  author,
		Message: strings.TrimSpace(commit.Message),
	}
}

// LatestTransaction returns the newest snapshot, or the zero Transaction
// when nothing was saved yet.
func (p *Persistence) LatestTransaction() Transaction {
	if !p.IsInitialized() {
		return Transaction{}
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	headRef, err := p.repo.Head()
	if err != nil || headRef == nil {
		return Transaction{}
	}

	commit, err := p.repo.CommitObject(headRef.Hash())
	if err != nil {
		return Transaction{}
	}
	return newTransaction(headRef.Hash(), commit)
}

// History lists snapshots newest first. A limit of zero or less returns
// all of them.
func (p *Persistence) History(limit int) ([]Transaction, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	if _, err := p.repo.Head(); err != nil {
		return nil, nil
	}

	cIter, err := p.repo.Log(&git.LogOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	defer cIter.Close()

	var transactions []Transaction
	err = cIter.ForEach(func(c *object.Commit) error {
		if limit > 0 && len(transactions) == limit {
			return storer.ErrStop
		}
		transactions = append(transactions, newTransaction(c.Hash, c))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

// TransactionsSince lists snapshots committed at or after asof, newest first.
func (p *Persistence) TransactionsSince(asof time.Time) []Transaction {
	transactions, err := p.History(0)
	if err != nil {
		return nil
	}
	var since []Transaction
	for _, transaction := range transactions {
		if !transaction.When.Before(asof) {
			since = append(since, transaction)
		}
	}
	return since
}
