package ioreader

import (
	"io"
	"os"
	"sync"

	"github.com/gnames/gmlas/internal/ioresource"
)

// HandlePool recycles the file handle of a document between reading
// passes. It keeps at most one idle handle.
type HandlePool struct {
	mu   sync.Mutex
	path string
	idle *os.File
}

// NewHandlePool creates a pool for the document at path.
func NewHandlePool(path string) *HandlePool {
	return &HandlePool{path: path}
}

// Get returns the idle handle rewound to the start, or opens a new one.
func (p *HandlePool) Get() (*os.File, error) {
	p.mu.Lock()
	f := p.idle
	p.idle = nil
	p.mu.Unlock()

	if f != nil {
		if _, err := f.Seek(0, io.SeekStart); err == nil {
			return f, nil
		}
		f.Close()
	}
	f, err := os.Open(p.path)
	if err != nil {
		return nil, ioresource.ResourceOpenError(p.path, err)
	}
	return f, nil
}

// Put returns a handle to the pool. It is closed if another handle is
// already idle.
func (p *HandlePool) Put(f *os.File) {
	if f == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.idle != nil {
		f.Close()
		return
	}
	p.idle = f
}

// Close closes the idle handle.
func (p *HandlePool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.idle == nil {
		return nil
	}
	err := p.idle.Close()
	p.idle = nil
	return err
}
