package dataset

import (
	"fmt"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/drift-ml/drift/internal/tensor"
)

// LoaderConfig controls batching and prefetch.
type LoaderConfig struct {
	BatchSize int
	Prefetch  int   // batches staged ahead of the consumer
	Seed      int64 // shuffle seed
}

// DefaultLoaderConfig returns the training defaults.
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		BatchSize: 16,
		Prefetch:  2,
		Seed:      1,
	}
}

// Loader assembles shuffled clip batches. Each epoch reshuffles with
// the loader's own RNG, so a fixed seed gives a reproducible epoch
// sequence.
type Loader[B tensor.Backend] struct {
	dataset   *Dataset
	batchSize int
	prefetch  int
	rng       *rand.Rand
	backend   B
}

// NewLoader creates a batch loader over prepared clips.
func NewLoader[B tensor.Backend](dataset *Dataset, cfg LoaderConfig, backend B) (*Loader[B], error) {
	if dataset.Len() == 0 {
		return nil, fmt.Errorf("dataset: no clips to load")
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("dataset: batch size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.Prefetch < 0 {
		return nil, fmt.Errorf("dataset: prefetch depth must not be negative, got %d", cfg.Prefetch)
	}

	return &Loader[B]{
		dataset:   dataset,
		batchSize: cfg.BatchSize,
		prefetch:  cfg.Prefetch,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		backend:   backend,
	}, nil
}

// Batches returns the number of batches per epoch. The final batch may
// be short; it is never empty.
func (l *Loader[B]) Batches() int {
	return (l.dataset.Len() + l.batchSize - 1) / l.batchSize
}

// Epoch shuffles the clip order and starts a producer goroutine that
// stages batches ahead of the consumer. The returned iterator yields
// the whole dataset exactly once.
func (l *Loader[B]) Epoch() *Iterator[B] {
	indices := l.rng.Perm(l.dataset.Len())

	it := &Iterator[B]{
		batches: make(chan *tensor.Tensor[float32, B], l.prefetch),
		group:   new(errgroup.Group),
	}

	it.group.Go(func() error {
		defer close(it.batches)
		for start := 0; start < len(indices); start += l.batchSize {
			end := min(start+l.batchSize, len(indices))
			batch, err := l.assemble(indices[start:end])
			if err != nil {
				return err
			}
			it.batches <- batch
		}
		return nil
	})

	return it
}

// assemble copies the selected clips into one [batch, C, F, H, W]
// tensor.
func (l *Loader[B]) assemble(indices []int) (*tensor.Tensor[float32, B], error) {
	shape := append(tensor.Shape{len(indices)}, l.dataset.clip...)
	raw, err := tensor.NewRaw(shape, tensor.Float32, l.backend.Device())
	if err != nil {
		return nil, fmt.Errorf("dataset: failed to assemble batch: %w", err)
	}

	data := raw.AsFloat32()
	vol := l.dataset.clip.NumElements()
	for bi, idx := range indices {
		copy(data[bi*vol:(bi+1)*vol], l.dataset.clipAt(idx))
	}

	return tensor.New[float32](raw, l.backend), nil
}

// Iterator walks the batches of one epoch in order. Next blocks until
// the producer has a batch staged.
type Iterator[B tensor.Backend] struct {
	batches chan *tensor.Tensor[float32, B]
	group   *errgroup.Group
	err     error
}

// Next returns the next batch, or false when the epoch is exhausted or
// the producer failed. After false, Err reports what ended the epoch.
func (it *Iterator[B]) Next() (*tensor.Tensor[float32, B], bool) {
	batch, ok := <-it.batches
	if !ok {
		it.err = it.group.Wait()
		return nil, false
	}
	return batch, true
}

// Err returns the producer error that terminated the epoch, if any.
// Only meaningful after Next has returned false.
func (it *Iterator[B]) Err() error {
	return it.err
}
