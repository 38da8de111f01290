package components_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"radar/internal/components"
	"radar/internal/config"
	"radar/internal/server/feed"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeComponent struct {
	name    string
	deps    []string
	initErr error
	events  *[]string
}

func (f *fakeComponent) Name() string           { return f.name }
func (f *fakeComponent) Dependencies() []string { return f.deps }
func (f *fakeComponent) Validate() error        { return nil }

func (f *fakeComponent) Initialize(ctx context.Context) error {
	if f.initErr != nil {
		return f.initErr
	}
	*f.events = append(*f.events, "init:"+f.name)
	return nil
}

func (f *fakeComponent) Close(ctx context.Context) error {
	*f.events = append(*f.events, "close:"+f.name)
	return nil
}

func TestRegistry_InitializeInDependencyOrder(t *testing.T) {
	var events []string
	r := components.NewRegistry(nil)
	require.NoError(t, r.Register(&fakeComponent{name: "server", deps: []string{"redis", "storage"}, events: &events}))
	require.NoError(t, r.Register(&fakeComponent{name: "storage", events: &events}))
	require.NoError(t, r.Register(&fakeComponent{name: "redis", events: &events}))
	assert.Error(t, r.Register(&fakeComponent{name: "redis", events: &events}))

	require.NoError(t, r.InitializeAll(context.Background()))
	r.CloseAll(context.Background())

	assert.Equal(t, []string{
		"init:redis", "init:storage", "init:server",
		"close:server", "close:storage", "close:redis",
	}, events)
}

func TestRegistry_FailedInitClosesStarted(t *testing.T) {
	var events []string
	r := components.NewRegistry(nil)
	require.NoError(t, r.Register(&fakeComponent{name: "a", events: &events}))
	require.NoError(t, r.Register(&fakeComponent{name: "b", deps: []string{"a"}, initErr: errors.New("boom"), events: &events}))

	err := r.InitializeAll(context.Background())
	assert.ErrorContains(t, err, "component b initialization failed")
	assert.Equal(t, []string{"init:a", "close:a"}, events)
}

func TestRegistry_MissingDependency(t *testing.T) {
	var events []string
	r := components.NewRegistry(nil)
	require.NoError(t, r.Register(&fakeComponent{name: "server", deps: []string{"redis"}, events: &events}))

	assert.ErrorContains(t, r.InitializeAll(context.Background()), "does not exist")
	assert.Panics(t, func() { r.Get("redis") })
}

func TestRedisComponent(t *testing.T) {
	mr := miniredis.RunT(t)

	c := components.NewRedisComponent("redis://" + mr.Addr() + "/0")
	require.NoError(t, c.Validate())
	require.NoError(t, c.Initialize(context.Background()))
	defer c.Close(context.Background())

	require.NoError(t, c.Client().Set(context.Background(), "k", "v", 0).Err())
	assert.Equal(t, "v", mr.Get("k"))

	assert.Error(t, components.NewRedisComponent("").Validate())
	assert.Error(t, components.NewRedisComponent("not-a-url://x").Validate())
}

func TestPlatformComponent_Providers(t *testing.T) {
	ollama := components.NewPlatformComponent(config.LLMConfig{Provider: "ollama", Model: "qwen2.5:7b", BaseURL: "http://localhost:11434"}, nil)
	require.NoError(t, ollama.Validate())
	require.NoError(t, ollama.Initialize(context.Background()))
	assert.NotNil(t, ollama.LLM())

	openai := components.NewPlatformComponent(config.LLMConfig{Provider: "openai", Model: "gpt-4o-mini"}, nil)
	assert.Error(t, openai.Validate(), "openai without key or base url")

	unknown := components.NewPlatformComponent(config.LLMConfig{Provider: "llamafile"}, nil)
	assert.Error(t, unknown.Validate())
}

func TestServerComponent_StartsOnSharedResources(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	r := components.NewRegistry(nil)
	require.NoError(t, r.Register(components.NewRedisComponent("redis://"+mr.Addr())))
	require.NoError(t, r.Register(components.NewStorageComponent(config.StorageConfig{
		Type: "sqlite", Path: filepath.Join(t.TempDir(), "radar.db"),
	})))
	require.NoError(t, r.Register(components.NewServerComponent(r, feed.Config{Port: "0"}, nil)))

	require.NoError(t, r.InitializeAll(ctx))
	defer r.CloseAll(ctx)

	srv := r.Get(components.ServerComponentName).(*components.ServerComponent).Server()
	require.NotNil(t, srv)
	srv.InvalidateFeeds()
}
