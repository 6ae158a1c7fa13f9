package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/poiesic/capsearch/core"
	"github.com/poiesic/capsearch/registrar"
	"github.com/poiesic/capsearch/search"
	"github.com/poiesic/capsearch/storage"
)

var (
	// ErrRepositoryRequired is returned when NewServer is called without a repository.
	ErrRepositoryRequired = errors.New("repository required")

	// ErrEngineRequired is returned when NewServer is called without a search engine.
	ErrEngineRequired = errors.New("search engine required")

	// ErrRegistrarRequired is returned when NewServer is called without a registrar.
	ErrRegistrarRequired = errors.New("registrar required")
)

// Server serves capability search and registration over MCP.
type Server struct {
	server    *mcp.Server
	repo      storage.CapabilityRepository
	engine    *search.Engine
	registrar *registrar.Registrar
	logger    *slog.Logger
}

// Option configures a Server.
type Option func(*Server) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewServer creates an MCP server named name and registers the capability tools.
// The caller keeps ownership of repo, engine and reg.
func NewServer(name, version string, repo storage.CapabilityRepository, engine *search.Engine, reg *registrar.Registrar, opts ...Option) (*Server, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if engine == nil {
		return nil, ErrEngineRequired
	}
	if reg == nil {
		return nil, ErrRegistrarRequired
	}

	s := &Server{
		repo:      repo,
		engine:    engine,
		registrar: reg,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "mcpserver")

	s.server = mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)
	s.registerTools()
	return s, nil
}

// Run serves requests on transport until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "capability_search",
		Description: "Find tools, knowledge sources, database tables and remembered facts relevant to a natural language request. Results are ranked by a weighted blend of semantic, functional and contextual similarity plus a boost for shared key elements.",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "capability_register",
		Description: "Register or update one capability. The record uses the same fields as a record file entry for its kind. Re-registering the same record is idempotent.",
	}, s.handleRegister)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "capability_get",
		Description: "Fetch a stored capability by id, including disabled ones.",
	}, s.handleGet)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "capability_disable",
		Description: "Disable a capability so it no longer appears in search results. The record is kept.",
	}, s.handleDisable)
}

// WeightsInput sets per-dimension search weights.
type WeightsInput struct {
	Semantic   float64 `json:"semantic" jsonschema:"Weight of what the capability is"`
	Functional float64 `json:"functional" jsonschema:"Weight of how the capability is invoked"`
	Contextual float64 `json:"contextual" jsonschema:"Weight of when and why the capability is used"`
}

// SearchInput defines the input of capability_search.
type SearchInput struct {
	Query     string        `json:"query" jsonschema:"Natural language description of what is needed"`
	Weights   *WeightsInput `json:"weights,omitempty" jsonschema:"Per-dimension weights. Omitted or all zero means equal weights"`
	Threshold float64       `json:"threshold,omitempty" jsonschema:"Minimum combined score. Default: 0"`
	Limit     int           `json:"limit,omitempty" jsonschema:"Maximum number of results. Default: 10, at most 100"`
	Kinds     []string      `json:"kinds,omitempty" jsonschema:"Restrict results to these kinds: tool, knowledge_source, database_table, conversation_fact"`
}

// SearchOutput is the JSON body of a capability_search result.
type SearchOutput struct {
	Count   int          `json:"count"`
	Results []ResultView `json:"results"`
}

func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, any, error) {
	kinds, err := ParseKinds(input.Kinds)
	if err != nil {
		return toolError(err), nil, nil
	}
	q := search.Query{
		Text:      input.Query,
		Threshold: input.Threshold,
		Limit:     input.Limit,
		Kinds:     kinds,
	}
	if w := input.Weights; w != nil {
		q.Weights = core.SearchWeights{Semantic: w.Semantic, Functional: w.Functional, Contextual: w.Contextual}
	}

	results, err := s.engine.Search(ctx, q)
	if err != nil {
		s.logger.Warn("search failed", "query", input.Query, "err", err)
		return toolError(err), nil, nil
	}

	out := SearchOutput{Count: len(results), Results: make([]ResultView, len(results))}
	for i, r := range results {
		out.Results[i] = NewResultView(r)
	}
	return jsonResult(out)
}

// RegisterInput defines the input of capability_register.
type RegisterInput struct {
	Kind   string         `json:"kind" jsonschema:"One of tool, knowledge_source, database_table, conversation_fact"`
	Record map[string]any `json:"record" jsonschema:"Record fields for the kind, e.g. name, description, key_elements, example_phrases"`
}

// RegisterOutput is the JSON body of a capability_register result.
type RegisterOutput struct {
	ID string `json:"id"`
}

func (s *Server) handleRegister(ctx context.Context, req *mcp.CallToolRequest, input RegisterInput) (*mcp.CallToolResult, any, error) {
	kind, err := core.ParseKind(strings.ToLower(strings.TrimSpace(input.Kind)))
	if err != nil {
		return toolError(fmt.Errorf("%w: %q", err, input.Kind)), nil, nil
	}
	id, err := s.registrar.Register(ctx, kind, input.Record)
	if err != nil {
		return toolError(err), nil, nil
	}
	return jsonResult(RegisterOutput{ID: id})
}

// IDInput identifies one capability.
type IDInput struct {
	ID string `json:"id" jsonschema:"Capability id, e.g. tool_weather_api"`
}

func (s *Server) handleGet(ctx context.Context, req *mcp.CallToolRequest, input IDInput) (*mcp.CallToolResult, any, error) {
	c, err := s.repo.GetCapability(ctx, input.ID)
	if err != nil {
		return toolError(err), nil, nil
	}
	return jsonResult(NewCapabilityView(c))
}

// DisableOutput is the JSON body of a capability_disable result.
type DisableOutput struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (s *Server) handleDisable(ctx context.Context, req *mcp.CallToolRequest, input IDInput) (*mcp.CallToolResult, any, error) {
	if err := s.registrar.Disable(ctx, input.ID); err != nil {
		return toolError(err), nil, nil
	}
	return jsonResult(DisableOutput{ID: input.ID, Status: core.StatusDisabled.String()})
}

// ParseKinds converts kind names to kinds. Empty names are ignored.
func ParseKinds(names []string) ([]core.Kind, error) {
	var kinds []core.Kind
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		k, err := core.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", err, name)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}

func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: err.Error()},
		},
	}
}
