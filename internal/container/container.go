// Package container is the composition root: it builds the services in
// dependency order and owns their shutdown.
package container

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/parley-ai/parley/internal/chat"
	"github.com/parley-ai/parley/internal/config"
	"github.com/parley-ai/parley/internal/docstore"
	"github.com/parley-ai/parley/internal/events"
	"github.com/parley-ai/parley/internal/model"
	"github.com/parley-ai/parley/internal/pipeline"
	"github.com/parley-ai/parley/internal/provider"
	"github.com/parley-ai/parley/internal/repository"
	"github.com/parley-ai/parley/pkg/logger"
)

// ServiceKey identifies a service in the container.
type ServiceKey string

const (
	KeyDocumentStore     ServiceKey = "document_store"
	KeySessionRepository ServiceKey = "session_repository"
	KeyMessagePipeline   ServiceKey = "message_pipeline"
	KeyProviderRegistry  ServiceKey = "provider_registry"
	KeyEventPublisher    ServiceKey = "event_publisher"
	KeyChatService       ServiceKey = "chat_service"
)

// Container wires the services together. Construct one per process and pass
// it by reference; there is no ambient global instance.
type Container struct {
	cfg *config.Config
	log *logger.Logger

	mu       sync.Mutex
	services map[ServiceKey]any
	ready    bool

	store     *docstore.Store
	sessions  *repository.SessionRepository
	pipe      *pipeline.Pipeline
	registry  *provider.Registry
	publisher *events.Publisher
	chat      *chat.Service
}

// New creates an uninitialized container.
func New(cfg *config.Config, log *logger.Logger) *Container {
	return &Container{
		cfg:      cfg,
		log:      log,
		services: make(map[ServiceKey]any),
	}
}

// Initialize builds every service in strict dependency order: document
// store, session repository, message pipeline, provider registry, then the
// optional event publisher and the chat service. A stage failure aborts the
// remaining stages; services built by earlier stages stay addressable for
// diagnostics but the container reports itself not ready.
func (c *Container) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.log.Info("initializing service container")

	if err := c.initStore(); err != nil {
		return err
	}
	c.initRepository()
	c.initPipeline()
	c.initProviders(ctx)
	c.initEvents()
	c.initChat()

	c.ready = true
	c.log.Info("service container initialized")
	return nil
}

// Ready reports whether every stage completed.
func (c *Container) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Get returns the service registered under key, or nil.
func (c *Container) Get(key ServiceKey) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.services[key]
}

// Store returns the document store.
func (c *Container) Store() *docstore.Store { return c.store }

// Sessions returns the session repository.
func (c *Container) Sessions() *repository.SessionRepository { return c.sessions }

// Pipeline returns the message pipeline.
func (c *Container) Pipeline() *pipeline.Pipeline { return c.pipe }

// Providers returns the provider registry.
func (c *Container) Providers() *provider.Registry { return c.registry }

// Events returns the event publisher; nil when publishing is disabled.
func (c *Container) Events() *events.Publisher { return c.publisher }

// Chat returns the chat service.
func (c *Container) Chat() *chat.Service { return c.chat }

// Shutdown closes the document store, drains the event publisher and clears
// the service registry. Calling it again is safe.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready && len(c.services) == 0 {
		return nil
	}
	c.log.Info("shutting down service container")

	var firstErr error
	if c.store != nil {
		if err := c.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.publisher != nil {
		c.publisher.Close()
	}

	c.services = make(map[ServiceKey]any)
	c.ready = false
	c.log.Info("service container stopped")
	return firstErr
}

func (c *Container) initStore() error {
	store, err := docstore.Open(c.cfg.StoragePath, c.log)
	if err != nil {
		c.log.Error("failed to open document store",
			zap.String("path", c.cfg.StoragePath),
			zap.Error(err),
		)
		return err
	}
	c.store = store
	c.services[KeyDocumentStore] = store
	return nil
}

func (c *Container) initRepository() {
	defaults := model.DefaultModelConfig()
	defaults.Provider = c.cfg.DefaultProvider
	defaults.ModelName = c.cfg.ModelName
	defaults.Temperature = c.cfg.Temperature
	defaults.MaxTokens = c.cfg.MaxTokens
	defaults.Timeout = int(c.cfg.ModelTimeout.Seconds())

	c.sessions = repository.NewSessionRepository(c.store, defaults, c.log)
	c.services[KeySessionRepository] = c.sessions
}

func (c *Container) initPipeline() {
	c.pipe = pipeline.New(c.log)
	c.services[KeyMessagePipeline] = c.pipe
}

func (c *Container) initProviders(ctx context.Context) {
	c.registry = provider.NewRegistry(c.log)

	configs := make(map[string]map[string]string)
	if c.cfg.AnthropicAPIKey != "" {
		c.registry.Register("anthropic", provider.NewAnthropicProvider(provider.NewAnthropicParams{APIKey: c.cfg.AnthropicAPIKey}))
		configs["anthropic"] = map[string]string{"api_key": c.cfg.AnthropicAPIKey}
	}
	if c.cfg.OpenAIAPIKey != "" {
		c.registry.Register("openai", provider.NewOpenAIProvider(provider.NewOpenAIParams{APIKey: c.cfg.OpenAIAPIKey}))
		configs["openai"] = map[string]string{"api_key": c.cfg.OpenAIAPIKey}
	}
	// The echo provider keeps the system answering without credentials.
	c.registry.Register("echo", provider.NewEchoProvider())

	if !c.registry.SetDefault(c.cfg.DefaultProvider) {
		c.log.Warn("configured default provider unavailable, keeping first registered",
			zap.String("provider", c.cfg.DefaultProvider),
		)
	}

	// Partial success is expected; a failed provider is simply absent from
	// generation until re-initialized.
	results := c.registry.InitializeAll(ctx, configs)
	for name, ok := range results {
		if !ok {
			c.log.Warn("provider unavailable", zap.String("provider", name))
		}
	}

	c.services[KeyProviderRegistry] = c.registry
}

func (c *Container) initEvents() {
	if c.cfg.NATSURL == "" {
		return
	}
	publisher, err := events.Connect(events.Config{
		URL:   c.cfg.NATSURL,
		Token: c.cfg.NATSToken,
	}, c.log)
	if err != nil {
		// Event publishing is an optional collaborator; persistence does
		// not depend on it.
		c.log.Warn("event publisher unavailable", zap.Error(err))
		return
	}
	c.publisher = publisher
	c.services[KeyEventPublisher] = publisher
}

func (c *Container) initChat() {
	c.chat = chat.NewService(chat.Params{
		Sessions:     c.sessions,
		Pipeline:     c.pipe,
		Registry:     c.registry,
		Events:       c.publisher,
		SystemPrompt: c.cfg.SystemPrompt,
		MaxHistory:   c.cfg.MaxHistory,
	}, c.log)
	c.services[KeyChatService] = c.chat
}
