// Package ps keeps versioned snapshots of Schema Models.
//
// Snapshots are commits in an in-memory git repository built with go-git:
// each table and view is a JSON blob, and a manifest keeps declaration
// order. Nothing is written to disk.
//
//	persistence, err := ps.NewMemoryPersistence()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	txn, _ := persistence.SaveSnapshot(model, identity, "before cleanup")
//	restored, _ := persistence.LoadSnapshot(txn.Id)
//
// Snapshots can be tagged and loaded by tag name:
//
//	persistence.Tag("v1", nil)
//	restored, _ = persistence.LoadSnapshot("v1")
package ps
