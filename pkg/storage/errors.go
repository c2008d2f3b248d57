package storage

import "errors"

// Sentinel errors naming the buffer pool's refusal conditions (§7 of
// SPEC_FULL.md). The buffer pool operations themselves report these
// conditions by returning false and do not return these values.
var (
	// ErrBufferPoolFull names the case where every frame in an instance is
	// pinned and no victim can be produced.
	ErrBufferPoolFull = errors.New("buffer pool: no free frame available")

	// ErrPageNotFound names the case where an operation addresses a page id
	// that is not resident and cannot be fetched.
	ErrPageNotFound = errors.New("buffer pool: page not found")

	// ErrPagePinned names the case where DeletePage is called on a page
	// whose pin count is still above zero.
	ErrPagePinned = errors.New("buffer pool: page is pinned")
)
