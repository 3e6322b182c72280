package storage

import (
	"io"
)

// progressReader reports how much of body has been consumed. The SDK may
// rewind the body to compute checksums, so progress only ever moves forward.
type progressReader struct {
	body     io.ReadSeeker
	size     int64
	read     int64
	reported int
	report   ProgressFunc
}

func newProgressReader(body io.ReadSeeker, size int64, report ProgressFunc) *progressReader {
	return &progressReader{body: body, size: size, reported: -1, report: report}
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.body.Read(p)
	r.read += int64(n)
	r.emit()
	return n, err
}

func (r *progressReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := r.body.Seek(offset, whence)
	if err == nil {
		r.read = pos
	}
	return pos, err
}

func (r *progressReader) emit() {
	if r.report == nil || r.size <= 0 {
		return
	}
	pct := int(r.read * 100 / r.size)
	if pct > 99 {
		// 100 is reserved for a completed PutObject
		pct = 99
	}
	if pct > r.reported {
		r.reported = pct
		r.report(pct)
	}
}

func (r *progressReader) finish() {
	if r.report != nil && r.reported < 100 {
		r.reported = 100
		r.report(100)
	}
}
