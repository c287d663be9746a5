package embed

import (
	"sync"
)

// Loading an embedding model (or even just probing a provider) is expensive,
// so the whole process shares one embedder. Configure is called once at
// startup; every session's matcher then pulls the same instance via Shared.

var (
	sharedOnce     sync.Once
	sharedEmbedder Embedder
	sharedErr      error
	sharedConfig   *Config
	sharedMu       sync.Mutex
)

// Configure records the provider configuration the shared embedder will use.
// Must be called before the first Shared() call; later calls are ignored
// once the embedder has been built. A nil config disables embeddings.
func Configure(config *Config) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	sharedConfig = config
}

// Shared returns the process-wide embedder, building it on first call from
// the config recorded by Configure. Returns nil if no provider is configured
// or construction failed; callers treat nil as "embedding tier unavailable"
// and degrade to exact/normalized matching.
func Shared() Embedder {
	sharedOnce.Do(func() {
		sharedMu.Lock()
		config := sharedConfig
		sharedMu.Unlock()

		if config == nil || config.Provider == "" || config.Provider == "none" {
			return
		}

		base, err := NewEmbedder(config)
		if err != nil {
			sharedErr = err
			return
		}
		sharedEmbedder = NewCached(base, 10000)
	})
	return sharedEmbedder
}

// SharedErr reports why the shared embedder failed to build, if it did.
func SharedErr() error {
	return sharedErr
}

// resetShared is a test hook that tears down the singleton.
func resetShared() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	sharedOnce = sync.Once{}
	sharedEmbedder = nil
	sharedErr = nil
	sharedConfig = nil
}
