package books

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustlibrary/dust/pkg/errcodes"
	"github.com/dustlibrary/dust/pkg/models"
	"github.com/pkg/errors"
)

// streamChunkSize is the fixed copy buffer for streaming responses. The file
// is never buffered whole.
const streamChunkSize = 64 * 1024

// OpenStream resolves a visible book to an open file handle. The stored path
// must canonicalize to a location under a configured library root; anything
// else reports NotFound so the response never confirms the file exists. The
// caller owns the returned file.
func (svc *Service) OpenStream(ctx context.Context, user *models.User, id int) (*models.Book, *os.File, int64, error) {
	book, err := svc.Retrieve(ctx, user, id)
	if err != nil {
		return nil, nil, 0, err
	}

	abs, err := filepath.Abs(book.FilePath)
	if err != nil {
		return nil, nil, 0, errcodes.NotFound("Book")
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	if _, ok := svc.rootFor(abs); !ok {
		return nil, nil, 0, errcodes.NotFound("Book")
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, nil, 0, errcodes.NotFound("Book")
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, 0, errors.WithStack(err)
	}

	return book, f, info.Size(), nil
}

// parseRange interprets a Range header against a file of the given size. Only
// a single range is supported, in the forms bytes=a-b, bytes=a-, and
// bytes=-n. Both malformed and unsatisfiable ranges report 416; start and end
// are inclusive byte offsets.
func parseRange(header string, size int64) (int64, int64, error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return 0, 0, errcodes.RangeNotSatisfiable()
	}

	startStr, endStr, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok {
		return 0, 0, errcodes.RangeNotSatisfiable()
	}

	if startStr == "" {
		// bytes=-n: the final n bytes
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, errcodes.RangeNotSatisfiable()
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 || start >= size {
		return 0, 0, errcodes.RangeNotSatisfiable()
	}

	if endStr == "" {
		return start, size - 1, nil
	}

	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < start {
		return 0, 0, errcodes.RangeNotSatisfiable()
	}
	if end >= size {
		end = size - 1
	}
	return start, end, nil
}

// copyChunks copies n bytes in fixed-size chunks, checking for cancellation
// between chunks so an abandoned stream unwinds promptly.
func copyChunks(ctx context.Context, dst io.Writer, src io.Reader, n int64) error {
	buf := make([]byte, streamChunkSize)
	for n > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk := int64(len(buf))
		if n < chunk {
			chunk = n
		}
		read, err := src.Read(buf[:chunk])
		if read > 0 {
			if _, werr := dst.Write(buf[:read]); werr != nil {
				return errors.WithStack(werr)
			}
			n -= int64(read)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return errors.WithStack(err)
		}
	}
	return nil
}
