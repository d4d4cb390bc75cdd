package pagepool

import (
	"github.com/cockroachdb/errors"
	"github.com/pagekit/undo/internal/utils"
	"github.com/pagekit/undo/memutils"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific pool behaviors to activate or deactivate
type CreateFlags uint32

const (
	// CreateSynchronized guards every pool operation with a mutex. Pools are not thread-safe
	// by default: consumers are expected to confine a pool to one goroutine or to serialize
	// access to it themselves. Buffers, allocators and histories built on a pool are never
	// synchronized, regardless of this flag.
	CreateSynchronized CreateFlags = 1 << iota
)

var createFlagsMapping = map[CreateFlags]string{
	CreateSynchronized: "CreateSynchronized",
}

func (f CreateFlags) String() string {
	if f == 0 {
		return "None"
	}
	if str, ok := createFlagsMapping[f]; ok {
		return str
	}
	return "Unknown"
}

const (
	// DefaultPageSizeMinBits is the minimum page size class used when CreateOptions does not
	// provide one. It is equal to 4KB pages.
	DefaultPageSizeMinBits uint8 = 12

	// MaxSizeClasses is the number of distinct page sizes a single pool can manage
	MaxSizeClasses = 16
)

// CreateOptions contains optional settings when creating a Pool
type CreateOptions struct {
	// Flags indicates specific pool behaviors to activate or deactivate
	Flags CreateFlags
	// PageSizeMinBits is the base two logarithm of the smallest page size the pool will
	// hand out. It may not be greater than the logarithm of the page source's page size.
	// If it is left at 0, DefaultPageSizeMinBits is used, capped at the page source's page size.
	PageSizeMinBits uint8
}

// New creates a new Pool drawing leaf blocks from source. The largest page size the pool can
// hand out is source.PageSize().
//
// logger - The logger that pool diagnostics will be written to
//
// source - The PageSource that leaf blocks will be obtained from
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, source PageSource, options CreateOptions) (*Pool, error) {
	if source == nil {
		return nil, errors.New("a page source is required to create a pool")
	}

	leafSize := source.PageSize()
	err := memutils.CheckPow2(leafSize, "source.PageSize()")
	if err != nil {
		return nil, err
	}
	maxBits := memutils.Log2(leafSize)

	minBits := options.PageSizeMinBits
	if minBits == 0 {
		minBits = DefaultPageSizeMinBits
		if minBits > maxBits {
			minBits = maxBits
		}
	}

	err = memutils.CheckRange(minBits, 0, maxBits, "PageSizeMinBits")
	if err != nil {
		return nil, err
	}

	sizeClasses := int(maxBits-minBits) + 1
	if sizeClasses > MaxSizeClasses {
		return nil, errors.Errorf("a pool can manage at most %d page sizes, but page sizes from 2^%d to 2^%d were requested", MaxSizeClasses, minBits, maxBits)
	}

	tagMask := uint64(memutils.BitCeil(sizeClasses) - 1)
	if tagMask >= uint64(memutils.SizeFromBits(minBits)) {
		return nil, errors.Errorf("the minimum page size 2^%d is too small to encode %d page sizes in page handles", minBits, sizeClasses)
	}

	return &Pool{
		logger:  logger,
		mutex:   utils.OptionalMutex{UseMutex: options.Flags&CreateSynchronized != 0},
		source:  source,
		flags:   options.Flags,
		minBits: minBits,
		maxBits: maxBits,
		tagMask: tagMask,
	}, nil
}
