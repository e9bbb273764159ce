package ps

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"

	"github.com/nickyhof/SchemaDB/core"
)

const manifestPath = "manifest.json"

// manifest keeps declaration order, which git trees do not.
type manifest struct {
	Tables []string `json:"tables"`
	Views  []string `json:"views,omitempty"`
}

func objectPath(kind string, key core.TableKey) string {
	return path.Join(kind, url.PathEscape(key.Schema), url.PathEscape(key.Name)+".json")
}

// SaveSnapshot commits the whole model, rows included. Every snapshot is a
// complete tree; tables unchanged since an earlier snapshot share its blobs.
func (p *Persistence) SaveSnapshot(model *core.Model, identity core.Identity, message string) (Transaction, error) {
	if err := p.ensureInitialized(); err != nil {
		return Transaction{}, err
	}
	if message == "" {
		message = "Snapshot"
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var (
		m       manifest
		changes []TreeChange
	)
	add := func(filePath string, value any) error {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", filePath, err)
		}
		hash, err := p.createBlob(data)
		if err != nil {
			return fmt.Errorf("failed to create blob for %s: %w", filePath, err)
		}
		changes = append(changes, TreeChange{Path: filePath, BlobHash: hash})
		return nil
	}

	for _, table := range model.Tables {
		filePath := objectPath("tables", table.Key())
		m.Tables = append(m.Tables, filePath)
		if err := add(filePath, table); err != nil {
			return Transaction{}, err
		}
	}
	for _, view := range model.Views {
		filePath := objectPath("views", view.Key())
		m.Views = append(m.Views, filePath)
		if err := add(filePath, view); err != nil {
			return Transaction{}, err
		}
	}
	if err := add(manifestPath, m); err != nil {
		return Transaction{}, err
	}

	tree, err := p.batchUpdateTree(plumbing.ZeroHash, changes)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to update tree: %w", err)
	}
	return p.createCommitDirect(tree, identity, message)
}

// LoadSnapshot rebuilds the model saved by a snapshot. revision is a
// transaction id, a tag name, or empty for the latest snapshot.
func (p *Persistence) LoadSnapshot(revision string) (*core.Model, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	commit, err := p.resolve(revision)
	if err != nil {
		return nil, err
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}

	var m manifest
	if err := readJSON(tree, manifestPath, &m); err != nil {
		return nil, err
	}

	model := core.NewModel()
	for _, filePath := range m.Tables {
		var table core.Table
		if err := readJSON(tree, filePath, &table); err != nil {
			return nil, err
		}
		model.Tables = append(model.Tables, &table)
	}
	for _, filePath := range m.Views {
		var view core.View
		if err := readJSON(tree, filePath, &view); err != nil {
			return nil, err
		}
		model.Views = append(model.Views, &view)
	}
	return model, nil
}

// Tag names a snapshot. A nil asof tags the latest one.
func (p *Persistence) Tag(name string, asof *Transaction) error {
	if err := p.ensureInitialized(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var hash plumbing.Hash
	if asof != nil {
		hash = plumbing.NewHash(asof.Id)
	} else {
		headRef, err := p.repo.Head()
		if err != nil {
			return fmt.Errorf("%w: nothing saved yet", ErrSnapshotNotFound)
		}
		hash = headRef.Hash()
	}

	_, err := p.repo.CreateTag(name, hash, nil)
	return err
}

func (p *Persistence) resolve(revision string) (*object.Commit, error) {
	if revision == "" {
		revision = "HEAD"
	}
	hash, err := p.repo.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, revision)
	}
	commit, err := p.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, revision)
	}
	return commit, nil
}

func readJSON(tree *object.Tree, filePath string, value any) error {
	data, err := readFile(tree, filePath)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, value); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filePath, err)
	}
	return nil
}
