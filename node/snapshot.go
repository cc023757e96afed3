package node

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"github.com/golang/snappy"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/types"
)

// ---------------------------------------------------------------------------
// StateSync
// ---------------------------------------------------------------------------

// Raw record bytes per chunk before compression.
const snapshotChunkSize = 64 * 1024

// snapshotMeta travels in SnapshotDescriptor.Metadata.
type snapshotMeta struct {
	Head    types.BlockRef `cramberry:"1"`
	AppHash types.AppHash  `cramberry:"2"`
}

// chunkBody is the payload of one chunk before compression.
type chunkBody struct {
	Records []types.SnapshotRecord `cramberry:"1"`
}

// snapshot is the committed object set at one height, cut into chunks.
type snapshot struct {
	desc   types.SnapshotDescriptor
	chunks [][]byte
}

// currentSnapshot builds, or returns the cached, snapshot of the
// committed state. The caller holds app.mu.
func (app *App) currentSnapshot() (*snapshot, error) {
	if app.snap != nil && app.snap.desc.Height == app.committed.Height {
		return app.snap, nil
	}
	h, err := app.chain.AppHash()
	if err != nil {
		return nil, err
	}
	meta, err := cramberry.Marshal(&snapshotMeta{Head: app.committed, AppHash: h})
	if err != nil {
		return nil, errors.Internal.Wrap(err)
	}

	snap := &snapshot{}
	hasher := sha256.New()
	var body chunkBody
	var raw int
	flush := func() error {
		if len(body.Records) == 0 {
			return nil
		}
		data, err := cramberry.Marshal(&body)
		if err != nil {
			return errors.Internal.Wrap(err)
		}
		chunk := snappy.Encode(nil, data)
		hasher.Write(chunk)
		snap.chunks = append(snap.chunks, chunk)
		body.Records, raw = nil, 0
		return nil
	}
	err = app.store.ForEachCommitted(func(id types.ObjectID, data []byte) error {
		body.Records = append(body.Records, types.SnapshotRecord{ID: id, Data: data})
		raw += len(data)
		if raw >= snapshotChunkSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		return nil, err
	}

	snap.desc = types.SnapshotDescriptor{
		Height:   app.committed.Height,
		Format:   types.SnapshotFormatObjects,
		Chunks:   uint32(len(snap.chunks)),
		Metadata: meta,
	}
	copy(snap.desc.Hash[:], hasher.Sum(nil))
	app.snap = snap
	return snap, nil
}

// AvailableSnapshots offers the committed state. Nothing is offered
// before the first block.
func (app *App) AvailableSnapshots(_ context.Context) ([]types.SnapshotDescriptor, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.committed.Height == 0 {
		return nil, nil
	}
	snap, err := app.currentSnapshot()
	if err != nil {
		return nil, err
	}
	return []types.SnapshotDescriptor{snap.desc}, nil
}

func (app *App) ExportSnapshot(ctx context.Context, height uint64, format uint32) (<-chan types.SnapshotChunk, *types.SnapshotDescriptor, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	if format != types.SnapshotFormatObjects {
		return nil, nil, errors.NotSupported.WithFormat("unsupported snapshot format %d", format)
	}
	if height != app.committed.Height || height == 0 {
		return nil, nil, errors.NotFound.WithFormat("snapshot at height %d not available (current: %d)", height, app.committed.Height)
	}
	snap, err := app.currentSnapshot()
	if err != nil {
		return nil, nil, err
	}
	desc := snap.desc

	ch := make(chan types.SnapshotChunk, len(snap.chunks))
	go func() {
		defer close(ch)
		for i, data := range snap.chunks {
			select {
			case ch <- types.SnapshotChunk{Index: uint32(i), Data: data}:
			case <-ctx.Done():
				return
			}
		}
	}()
	snapshotsExported.Inc()
	return ch, &desc, nil
}

func (app *App) ImportSnapshot(ctx context.Context, descriptor types.SnapshotDescriptor, chunks <-chan types.SnapshotChunk) (types.ImportResult, error) {
	if descriptor.Format != types.SnapshotFormatObjects {
		return reject(fmt.Sprintf("unsupported format %d", descriptor.Format)), nil
	}
	var meta snapshotMeta
	if err := cramberry.Unmarshal(descriptor.Metadata, &meta); err != nil {
		return reject(fmt.Sprintf("decode metadata: %v", err)), nil
	}
	if meta.Head.Height != descriptor.Height {
		return reject("metadata height does not match the descriptor"), nil
	}

	received := make(map[uint32][]byte)
collect:
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				break collect
			}
			if chunk.Index < descriptor.Chunks {
				received[chunk.Index] = chunk.Data
			}
		case <-ctx.Done():
			return types.ImportResult{}, errors.Timeout.Wrap(ctx.Err())
		}
	}
	if uint32(len(received)) != descriptor.Chunks {
		var missing []uint32
		for i := uint32(0); i < descriptor.Chunks; i++ {
			if _, ok := received[i]; !ok {
				missing = append(missing, i)
			}
		}
		return types.ImportResult{Status: types.ImportRetryChunks, RetryIndices: missing}, nil
	}

	hasher := sha256.New()
	for i := uint32(0); i < descriptor.Chunks; i++ {
		hasher.Write(received[i])
	}
	var sum types.Hash
	copy(sum[:], hasher.Sum(nil))
	if sum != descriptor.Hash {
		return reject("snapshot hash mismatch"), nil
	}

	var objects []types.Object
	for i := uint32(0); i < descriptor.Chunks; i++ {
		data, err := snappy.Decode(nil, received[i])
		if err != nil {
			return reject(fmt.Sprintf("chunk %d: %v", i, err)), nil
		}
		var body chunkBody
		if err := cramberry.Unmarshal(data, &body); err != nil {
			return reject(fmt.Sprintf("chunk %d: %v", i, err)), nil
		}
		for _, rec := range body.Records {
			obj, err := store.DecodeObject(rec.ID, rec.Data)
			if err != nil {
				return reject(fmt.Sprintf("chunk %d: %v", i, err)), nil
			}
			objects = append(objects, obj)
		}
	}
	if reason := checkHead(objects, meta.Head); reason != "" {
		return reject(reason), nil
	}

	app.mu.Lock()
	defer app.mu.Unlock()
	if err := app.chain.ImportState(objects, meta.AppHash); err != nil {
		return types.ImportResult{}, err
	}
	app.committed = meta.Head
	app.snap = nil
	app.clearCallbacks()
	snapshotsImported.Inc()

	h := meta.AppHash
	return types.ImportResult{Status: types.ImportOK, AppHash: &h}, nil
}

func reject(reason string) types.ImportResult {
	return types.ImportResult{Status: types.ImportReject, Reason: reason}
}

// checkHead verifies that objects hold a chain whose head is head.
func checkHead(objects []types.Object, head types.BlockRef) string {
	var gpo, dgp bool
	for _, obj := range objects {
		switch o := obj.(type) {
		case *types.GlobalPropertyObject:
			gpo = true
		case *types.DynamicGlobalPropertyObject:
			dgp = true
			if uint64(o.HeadBlockNumber) != head.Height || o.HeadBlockID != head.ID {
				return fmt.Sprintf("snapshot state is at block %d, metadata names %d", o.HeadBlockNumber, head.Height)
			}
		}
	}
	if !gpo || !dgp {
		return "snapshot holds no chain properties"
	}
	return ""
}
