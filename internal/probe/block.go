package probe

import (
	"context"
	"fmt"
)

// DefaultChunkSize is the block read size used when a session has no preference.
const DefaultChunkSize = 4096

// ProgressFunc receives the number of bytes read so far out of total.
type ProgressFunc func(done, total uint32)

// ReadBlock reads the whole region from the session, chunk by chunk, and
// guarantees the returned buffer is exactly region.Length bytes long.
func ReadBlock(ctx context.Context, s Session, region Region, progress ProgressFunc) ([]byte, error) {
	chunk := uint32(DefaultChunkSize)
	if cs, ok := s.(ChunkSizer); ok {
		chunk = cs.PreferredChunkSize()
	}
	if chunk == 0 || chunk > region.Length {
		chunk = region.Length
	}

	data := make([]byte, 0, region.Length)
	if progress != nil {
		progress(0, region.Length)
	}

	for offset := uint32(0); offset < region.Length; {
		if err := ctx.Err(); err != nil {
			return nil, &MemoryReadError{Address: region.Start + offset, Length: region.Length - offset, Err: err}
		}

		n := chunk
		if remaining := region.Length - offset; remaining < n {
			n = remaining
		}
		addr := region.Start + offset

		buf, err := s.ReadMemory(ctx, addr, n)
		if err != nil {
			return nil, err
		}
		if uint32(len(buf)) != n {
			return nil, &MemoryReadError{
				Address: addr,
				Length:  n,
				Err:     fmt.Errorf("probe returned %d bytes", len(buf)),
			}
		}

		data = append(data, buf...)
		offset += n
		if progress != nil {
			progress(offset, region.Length)
		}
	}

	return data, nil
}
