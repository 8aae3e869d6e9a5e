// Package regionmap maps very large files region by region.
//
// A file is split into fixed-size, power-of-two regions. A Mapper keeps a
// small ring of region slots; moving a cursor to a position maps the region
// that contains it into the slot selected by the region index, unmapping
// whatever that slot held before. Sequential movement is detected and the
// following regions are mapped ahead of the caller.
//
// # Quick Start
//
// Writing a file that grows as it is written:
//
//	m, _ := regionmap.OpenExpandable("data.bin", filemap.ReadWrite, 1<<20)
//	defer m.Close()
//
//	cur := m.NewMapping()
//	for pos := int64(0); pos < total; pos += 8 {
//	    if !cur.MoveTo(pos) {
//	        return cur.Err()
//	    }
//	    binary.LittleEndian.PutUint64(cur.Buffer(), value(pos))
//	}
//
// Reading it from another process while it is being written:
//
//	m, _ := regionmap.OpenReadOnly("data.bin", 1<<20)
//	for !cur.MoveTo(pos) && regionmap.IsRetryable(cur.Err()) {
//	    _ = m.WaitReadable(ctx, pos)
//	}
//
// # Synchronous and Asynchronous Mapping
//
// By default regions are mapped inline on the caller's goroutine. WithAsync
// moves map and unmap system calls onto async.Runtime goroutines, each
// locked to an OS thread. The caller then waits for a region according to a
// wait.Policy and a timeout handler decides what happens if it expires:
//
//	rt := async.New(idle.BusySpin{})
//	defer rt.Stop(false)
//	m, _ := regionmap.OpenRolled("stream", 64<<20, filemap.ReadWrite, 1<<20,
//	    regionmap.WithAsync(rt, nil, wait.Spin(time.Second)),
//	)
//
// # Buffers and Generations
//
// A Mapping's Buffer is only valid while its slot still holds the region.
// Buffer returns nil once another move recycled the slot, so stale memory
// is never handed out.
//
// # Rolled Files and Archiving
//
// OpenRolled spreads one logical stream over files named <prefix>_<index>.
// A writer seals a file when its last region is unmapped; with WithArchive
// each sealed file is uploaded to a blobstore.Store (local, MinIO or S3).
package regionmap
