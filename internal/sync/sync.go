// Package sync implements the on-demand half of the workspace sync
// collaborator described in SPEC_FULL.md §3 SUPPLEMENT: directory listing,
// chunked file transfer, and last-write-wins/client-wins conflict
// resolution. It is deliberately independent of internal/transport (only a
// narrow Pusher interface is required) so internal/transport can wire these
// helpers into its handler table without an import cycle, grounded on
// original_source's crates/server/src/sync/ondemand.rs.
package sync

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nextlevelbuilder/polyglotgw/internal/protocol"
)

// chunkSize matches original_source sync/mod.rs's transfer chunk size.
const chunkSize = 64 * 1024

// Pusher is the subset of transport.Session that file-transfer helpers need.
type Pusher interface {
	Send(tag string, payload interface{}) error
}

// FileMeta describes one file under a synced root.
type FileMeta struct {
	RelPath string
	Size    int64
}

// ListDirectory walks root and returns every regular file beneath it,
// relative to root, for SyncRequest's directory enumeration.
func ListDirectory(root string) ([]FileMeta, error) {
	var out []FileMeta
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out = append(out, FileMeta{RelPath: rel, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sync: list %s: %w", root, err)
	}
	return out, nil
}

// SendFile streams path to the peer as a sequence of FileChunk messages,
// the last one carrying Final: true. relPath is what's reported on the wire
// (typically the path relative to the session's sync root).
func SendFile(p Pusher, absPath, relPath string) error {
	f, err := os.Open(absPath)
	if err != nil {
		return fmt.Errorf("sync: open %s: %w", absPath, err)
	}
	defer f.Close()

	buf := make([]byte, chunkSize)
	var offset int64
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			final := readErr == io.EOF
			chunk := protocol.FileChunk{
				Path:   relPath,
				Offset: offset,
				Data:   append([]byte(nil), buf[:n]...),
				Final:  final,
			}
			if err := p.Send(protocol.TagFileChunk, chunk); err != nil {
				return err
			}
			offset += int64(n)
			if final {
				return nil
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				// EOF on a read that returned no data (how *os.File reports
				// end of file): emit an empty Final chunk at the current
				// offset so the peer knows the transfer completed.
				return p.Send(protocol.TagFileChunk, protocol.FileChunk{Path: relPath, Offset: offset, Final: true})
			}
			return fmt.Errorf("sync: read %s: %w", absPath, readErr)
		}
	}
}

// Receiver accumulates incoming FileChunk messages for one in-flight upload
// (the client pushing a locally-modified file back to the server, the
// "client-wins" half of conflict resolution).
type Receiver struct {
	f *os.File
}

// OpenReceiver truncates/creates absPath for an incoming chunk sequence.
func OpenReceiver(absPath string) (*Receiver, error) {
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("sync: mkdir for %s: %w", absPath, err)
	}
	f, err := os.OpenFile(absPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sync: create %s: %w", absPath, err)
	}
	return &Receiver{f: f}, nil
}

// Write applies one chunk at its declared offset, closing the file when
// Final is set.
func (r *Receiver) Write(chunk protocol.FileChunk) (done bool, err error) {
	if _, err := r.f.WriteAt(chunk.Data, chunk.Offset); err != nil {
		r.f.Close()
		return false, fmt.Errorf("sync: write chunk at offset %d: %w", chunk.Offset, err)
	}
	if chunk.Final {
		return true, r.f.Close()
	}
	return false, nil
}
