package registry

import (
	"errors"
	"fmt"
	"sort"
)

// WireDialect tags the JSON layout and model-name convention an upstream
// provider speaks. The set is closed; each tag has a codec in the dialect
// package.
type WireDialect string

const (
	DialectOpenAI WireDialect = "openai" // DeepSeek and other OpenAI-compatible APIs
	DialectQwen   WireDialect = "qwen"   // Tongyi / Qwen
	DialectYuan   WireDialect = "yuan"   // Yuanbao / Yuan
)

var (
	// ErrUnknownModel is returned when a model ID is not in the static table.
	// This is a client error.
	ErrUnknownModel = errors.New("unknown model")

	// ErrMissingCredential is returned when a provider has no API key
	// configured. This is a configuration error, not a client error.
	ErrMissingCredential = errors.New("provider credential not configured")
)

// Descriptor holds the upstream connection facts for one exposed model ID.
// Descriptors are loaded once at process start and never mutated.
type Descriptor struct {
	ModelID       string
	Dialect       WireDialect
	UpstreamURL   string
	UpstreamModel string // fixed model name sent upstream; empty means forward ModelID
	CredentialRef string // key into the credential table, e.g. "deepseek"
}

// ImageDescriptor holds the upstream facts for one image-generation provider.
type ImageDescriptor struct {
	Provider      string
	UpstreamURL   string
	UpstreamModel string // empty when the upstream picks its own default
	CredentialRef string
}

// Registry maps exposed model IDs to descriptors and credential refs to
// secrets. Read-only after New.
type Registry struct {
	models map[string]Descriptor
	images map[string]ImageDescriptor
	creds  map[string]string
}

// New builds the static registry. Credentials are captured once here;
// a missing or empty secret surfaces lazily on first use of that provider.
func New(creds map[string]string) *Registry {
	return NewCustom(defaultModels(), defaultImageProviders(), creds)
}

// NewCustom builds a registry from explicit tables. Used by deployments that
// override the builtin model set, and by tests.
func NewCustom(descriptors []Descriptor, images []ImageDescriptor, creds map[string]string) *Registry {
	r := &Registry{
		models: make(map[string]Descriptor, len(descriptors)),
		images: make(map[string]ImageDescriptor, len(images)),
		creds:  make(map[string]string, len(creds)),
	}
	for ref, secret := range creds {
		r.creds[ref] = secret
	}
	for _, d := range descriptors {
		r.models[d.ModelID] = d
	}
	for _, d := range images {
		r.images[d.Provider] = d
	}
	return r
}

func defaultModels() []Descriptor {
	const deepseekURL = "https://api.deepseek.com/v1/chat/completions"
	return []Descriptor{
		{ModelID: "deepseek-chat", Dialect: DialectOpenAI, UpstreamURL: deepseekURL, CredentialRef: "deepseek"},
		{ModelID: "deepseek-v3", Dialect: DialectOpenAI, UpstreamURL: deepseekURL, CredentialRef: "deepseek"},
		{ModelID: "deepseek-r1", Dialect: DialectOpenAI, UpstreamURL: deepseekURL, CredentialRef: "deepseek"},
		{ModelID: "tongyi", Dialect: DialectQwen, UpstreamURL: "https://api.tongyi.aliyun.com/v1/chat/completions", UpstreamModel: "qwen-max", CredentialRef: "tongyi"},
		{ModelID: "yuanbao", Dialect: DialectYuan, UpstreamURL: "https://api.yuanbao.ai/v1/chat/completions", UpstreamModel: "Yuan2.0", CredentialRef: "yuanbao"},
	}
}

func defaultImageProviders() []ImageDescriptor {
	return []ImageDescriptor{
		{Provider: "deepseek", UpstreamURL: "https://api.deepseek.com/v1/images/generations", CredentialRef: "deepseek"},
		{Provider: "tongyi", UpstreamURL: "https://api.tongyi.aliyun.com/v1/images/generations", UpstreamModel: "wanx-v1", CredentialRef: "tongyi"},
	}
}

// Resolve looks up the descriptor for an exposed model ID.
func (r *Registry) Resolve(modelID string) (Descriptor, error) {
	d, ok := r.models[modelID]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownModel, modelID)
	}
	return d, nil
}

// ResolveImage looks up the descriptor for an image-generation provider.
func (r *Registry) ResolveImage(provider string) (ImageDescriptor, error) {
	d, ok := r.images[provider]
	if !ok {
		return ImageDescriptor{}, fmt.Errorf("%w: %s", ErrUnknownModel, provider)
	}
	return d, nil
}

// Credential returns the secret for a descriptor's credential ref. An empty
// or absent secret is a configuration error; the ref itself is never placed
// in the returned error.
func (r *Registry) Credential(ref string) (string, error) {
	secret, ok := r.creds[ref]
	if !ok || secret == "" {
		return "", ErrMissingCredential
	}
	return secret, nil
}

// Models returns the sorted list of exposed model IDs.
func (r *Registry) Models() []string {
	ids := make([]string, 0, len(r.models))
	for id := range r.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CredentialStatus reports, per credential ref, whether a secret is
// configured. Used by the health endpoint; secrets themselves never leave
// the registry.
func (r *Registry) CredentialStatus() map[string]bool {
	status := make(map[string]bool)
	seen := func(ref string) {
		if _, ok := status[ref]; ok {
			return
		}
		secret, exists := r.creds[ref]
		status[ref] = exists && secret != ""
	}
	for _, d := range r.models {
		seen(d.CredentialRef)
	}
	for _, d := range r.images {
		seen(d.CredentialRef)
	}
	return status
}
