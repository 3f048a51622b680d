package program

import "github.com/google/uuid"

/**
 * @brief Anything that can be bound to a resource range of a parameter block.
 */
type Resource interface {
	ResourceID() uuid.UUID
	ResourceName() string
}

/**
 * @brief A GPU buffer. The address is what gets bound for a root descriptor.
 */
type Buffer struct {
	ID   uuid.UUID
	Name string
	Size uint64
	/** @brief GPU virtual address, 0 when the backend has none. */
	Address uint64
	/** @brief Backend specific handle. */
	Native interface{}
}

func NewBuffer(name string, size uint64) *Buffer {
	return &Buffer{ID: uuid.New(), Name: name, Size: size}
}

func (b *Buffer) ResourceID() uuid.UUID { return b.ID }
func (b *Buffer) ResourceName() string  { return b.Name }

// GPUAddress returns the buffer device address, 0 for a nil buffer.
func (b *Buffer) GPUAddress() uint64 {
	if b == nil {
		return 0
	}
	return b.Address
}

/** @brief A texture view. */
type Texture struct {
	ID     uuid.UUID
	Name   string
	Native interface{}
}

func NewTexture(name string) *Texture {
	return &Texture{ID: uuid.New(), Name: name}
}

func (t *Texture) ResourceID() uuid.UUID { return t.ID }
func (t *Texture) ResourceName() string  { return t.Name }

/** @brief A sampler state object. */
type Sampler struct {
	ID     uuid.UUID
	Name   string
	Native interface{}
}

func NewSampler(name string) *Sampler {
	return &Sampler{ID: uuid.New(), Name: name}
}

func (s *Sampler) ResourceID() uuid.UUID { return s.ID }
func (s *Sampler) ResourceName() string  { return s.Name }
