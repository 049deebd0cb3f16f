// Package crm implements the remote case gateway: authenticated CRUD over
// case records held in a remote CRM behind an API-management gateway, with
// response caching, local sort/pagination, and schema transformation.
//
// The remote API cannot filter, sort, or paginate server-side, so the
// gateway always fetches the whole collection and shapes it in-process
// (bulk-then-filter). This avoids per-record rate limiting on the provider.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"case-gateway/internal/circuitbreaker"
	"case-gateway/internal/common/errors"
	"case-gateway/internal/common/logging"
	"case-gateway/internal/token"
)

// mediaType is the provider's JSON media type for both directions.
const mediaType = "application/vnd.api+json"

// Filter is one abstract query predicate. Only equality is supported by
// the provider; other operators degrade to equality (see TransliterateFilters).
type Filter struct {
	Field    string
	Value    string
	Operator string
}

// Sort is a single local sort instruction.
type Sort struct {
	Field string
	Desc  bool
}

// QueryScope bundles the caller's query parameters. Sort and pagination are
// applied locally after retrieval; the provider never sees them.
type QueryScope struct {
	Filters []Filter
	Sort    *Sort
	Start   int
	Length  int
}

// Outcome is the result kind of a save operation.
type Outcome string

const (
	// OutcomeCreated means the save issued a create and the provider
	// assigned identifiers
	OutcomeCreated Outcome = "created"
	// OutcomeUpdated means the save patched an existing remote record
	OutcomeUpdated Outcome = "updated"
)

// Reporter receives classified read-path failures. Query absorbs provider
// errors into an empty result; the reporter is the side channel that keeps
// them visible to operators and the UI.
type Reporter interface {
	Report(err *errors.AppError)
}

// logReporter is the default Reporter, writing to the structured log.
type logReporter struct {
	logger logging.Logger
}

func (r *logReporter) Report(err *errors.AppError) {
	switch err.Type {
	case errors.ErrTypeNotFound:
		r.logger.Warn("Case fetch returned not found", logging.Field{Key: "error", Value: err.Error()})
	default:
		r.logger.Error("Case fetch failed", err, logging.Field{Key: "type", Value: string(err.Type)})
	}
}

// Config holds the gateway's provider endpoints and static parameters.
type Config struct {
	// ListEndpoint serves reads; PushEndpoint serves create/update/delete
	ListEndpoint string
	PushEndpoint string
	// StaticParams are merged under caller filters on every list call
	StaticParams map[string]string
	// SubscriptionKey is the API-management credential, distinct from the
	// bearer token
	SubscriptionKey string
}

// Gateway issues authenticated HTTP calls against the CRM and exposes
// CRUD-like operations over the flattened case set. Read failures are
// absorbed and reported; write failures propagate.
type Gateway struct {
	config      Config
	tokens      *token.Service
	cache       *ResponseCache
	transformer *Transformer
	httpClient  *http.Client
	breaker     *circuitbreaker.GoBreakerAdapter
	reporter    Reporter
	logger      logging.Logger
}

// NewGateway creates a case gateway. A nil reporter defaults to logging.
func NewGateway(config Config, tokens *token.Service, responseCache *ResponseCache, transformer *Transformer, httpClient *http.Client, reporter Reporter, logger logging.Logger) *Gateway {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if reporter == nil {
		reporter = &logReporter{logger: logger}
	}
	return &Gateway{
		config:      config,
		tokens:      tokens,
		cache:       responseCache,
		transformer: transformer,
		httpClient:  httpClient,
		breaker:     circuitbreaker.NewGoBreaker("crm-api", circuitbreaker.HTTPConfig, logger),
		reporter:    reporter,
		logger:      logger,
	}
}

// Query returns the case set shaped by the scope: cache-or-fetch, then
// local sort, then local pagination. Provider failures never surface as
// errors here; the caller gets an empty set and the failure goes to the
// reporter, because a broken read must not break page rendering.
func (g *Gateway) Query(ctx context.Context, scope QueryScope) *RecordSet {
	base := g.cache.Get(ctx)
	if base == nil {
		fetched, err := g.fetchAll(ctx, scope.Filters)
		if err != nil {
			g.reporter.Report(errors.AsAppError(err))
			return NewRecordSet()
		}
		g.cache.Set(ctx, fetched)
		base = fetched
	}

	if scope.Sort != nil {
		base = base.SortBy(scope.Sort.Field, scope.Sort.Desc,
			g.transformer.IsNumeric(scope.Sort.Field))
	}
	return base.Slice(scope.Start, scope.Length)
}

// Count returns the size of the case set for the given filters, served from
// cache when warm.
func (g *Gateway) Count(ctx context.Context, filters []Filter) int {
	return g.Query(ctx, QueryScope{Filters: filters}).Len()
}

// Load returns the record for a business id, nil if absent. Lookups share
// the cached full set, so successive lookups within the cache TTL cost one
// fetch at most (bulk-then-filter). A failed fetch is never retained:
// the next lookup retries the provider.
func (g *Gateway) Load(ctx context.Context, id string) *Record {
	return g.Query(ctx, QueryScope{}).Get(id)
}

// LoadMultiple returns the records for the given ids, in the order given,
// silently omitting missing ones. Nil ids means everything.
func (g *Gateway) LoadMultiple(ctx context.Context, ids []string) *RecordSet {
	all := g.Query(ctx, QueryScope{})
	if ids == nil {
		return all
	}
	return all.Filter(ids)
}

// Save creates or updates a record at the provider. A record resolving to a
// known uuid is patched; otherwise a create is issued and the provider's
// assigned identifiers are written back onto the record. The cache is
// invalidated once the remote call returns, success or not. Provider errors
// propagate: a lost write must be visible.
func (g *Gateway) Save(ctx context.Context, record *Record) (Outcome, error) {
	update := record.UUID != ""
	if !update && record.ID != "" {
		if existing := g.Load(ctx, record.ID); existing != nil {
			record.UUID = existing.UUID
			update = true
		}
	}

	envelope := g.transformer.WireEnvelope(record, update)
	body, err := json.Marshal(envelope)
	if err != nil {
		return "", errors.InternalError("failed to encode case envelope", err)
	}

	method := http.MethodPost
	if update {
		method = http.MethodPatch
	}

	defer g.cache.Invalidate(ctx)

	respBody, err := g.do(ctx, method, g.config.PushEndpoint, nil, body)
	if err != nil {
		return "", err
	}

	if update {
		g.logger.Info("Case updated",
			logging.Field{Key: "id", Value: record.ID},
			logging.Field{Key: "uuid", Value: record.UUID})
		return OutcomeUpdated, nil
	}

	// Write the provider-assigned identifiers back onto the new record.
	var created wireEnvelope
	if err := json.Unmarshal(respBody, &created); err == nil && created.Data.ID != "" {
		assigned := g.transformer.Flatten(created.Data)
		record.UUID = assigned.UUID
		if assigned.ID != "" {
			record.ID = assigned.ID
		}
	}
	g.logger.Info("Case created",
		logging.Field{Key: "id", Value: record.ID},
		logging.Field{Key: "uuid", Value: record.UUID})
	return OutcomeCreated, nil
}

// Delete removes the record for a business id at the provider. The remote
// uuid is resolved first; without it the delete cannot be targeted and a
// local error is returned before any network call. Provider errors propagate.
func (g *Gateway) Delete(ctx context.Context, id string) error {
	record := g.Load(ctx, id)
	if record == nil || record.UUID == "" {
		return errors.InvariantError(
			fmt.Sprintf("cannot delete case '%s': no remote identifier resolvable", id))
	}

	envelope := wireEnvelope{Data: wireResource{
		Type: g.transformer.resourceType,
		ID:   record.UUID,
	}}
	body, err := json.Marshal(envelope)
	if err != nil {
		return errors.InternalError("failed to encode delete envelope", err)
	}

	defer g.cache.Invalidate(ctx)

	if _, err := g.do(ctx, http.MethodDelete, g.config.PushEndpoint, nil, body); err != nil {
		return err
	}

	g.logger.Info("Case deleted",
		logging.Field{Key: "id", Value: id},
		logging.Field{Key: "uuid", Value: record.UUID})
	return nil
}

// fetchAll issues the authenticated list call and flattens the response.
func (g *Gateway) fetchAll(ctx context.Context, filters []Filter) (*RecordSet, error) {
	params := g.buildListParams(filters)

	body, err := g.do(ctx, http.MethodGet, g.config.ListEndpoint, params, nil)
	if err != nil {
		return nil, err
	}

	var response listResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.InternalError("failed to decode case list response", err)
	}

	set := g.transformer.FlattenAll(response)
	g.logger.Debug("Fetched case set", logging.Field{Key: "count", Value: set.Len()})
	return set, nil
}

// buildListParams merges static configured parameters with the caller's
// transliterated filters. Pagination and sort keys never reach the provider;
// it rejects or ignores them, so they are stripped here and handled locally.
func (g *Gateway) buildListParams(filters []Filter) url.Values {
	params := TransliterateFilters(filters)
	for key, value := range g.config.StaticParams {
		if isLocalOnlyParam(key) {
			continue
		}
		if params.Get(key) == "" {
			params.Set(key, value)
		}
	}

	for key := range params {
		if isLocalOnlyParam(key) {
			params.Del(key)
		}
	}
	return params
}

func isLocalOnlyParam(key string) bool {
	return key == "offset" || key == "length" || strings.HasPrefix(key, "sort")
}

// TransliterateFilters maps abstract filters onto the provider's bracketed
// query-parameter convention. The provider only implements equality, so any
// other requested operator degrades to equality rather than being sent and
// silently ignored remotely.
func TransliterateFilters(filters []Filter) url.Values {
	params := url.Values{}
	for _, f := range filters {
		if f.Field == "" {
			continue
		}
		params.Set(fmt.Sprintf("filter[%s][eq]", f.Field), f.Value)
	}
	return params
}

// do issues one authenticated call through the circuit breaker and returns
// the response body. Non-2xx statuses come back as classified errors.
func (g *Gateway) do(ctx context.Context, method, endpoint string, params url.Values, body []byte) ([]byte, error) {
	requestURL := endpoint
	if len(params) > 0 {
		requestURL = endpoint + "?" + params.Encode()
	}

	var responseBody []byte
	err := g.breaker.Execute(ctx, func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
		if err != nil {
			return errors.InternalError("failed to build CRM request", err)
		}
		g.setHeaders(ctx, req, body != nil)

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return errors.ConnectionError("CRM endpoint unreachable", err)
		}
		defer resp.Body.Close()

		responseBody, err = io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		if err != nil {
			return errors.ConnectionError("failed to read CRM response", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return errors.FromStatusCode(resp.StatusCode, extractErrorDetail(responseBody))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return responseBody, nil
}

// setHeaders attaches auth and content negotiation headers. Missing
// credentials do not abort the call; the provider's rejection is the
// authoritative outcome, but the gap is logged so operators see it.
func (g *Gateway) setHeaders(ctx context.Context, req *http.Request, hasBody bool) {
	if accessToken := g.tokens.AccessToken(ctx); accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	} else {
		g.logger.Warn("No access token available for CRM call",
			logging.Field{Key: "url", Value: req.URL.Path})
	}

	if g.config.SubscriptionKey != "" {
		req.Header.Set("Ocp-Apim-Subscription-Key", g.config.SubscriptionKey)
	} else {
		g.logger.Warn("No gateway subscription key configured")
	}

	req.Header.Set("Accept", mediaType)
	if hasBody {
		req.Header.Set("Content-Type", mediaType)
	}
}

// extractErrorDetail pulls a human-readable message out of a provider error
// body, best effort.
func extractErrorDetail(body []byte) string {
	var parsed struct {
		Errors []struct {
			Detail string `json:"detail"`
			Title  string `json:"title"`
		} `json:"errors"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if len(parsed.Errors) > 0 {
		if parsed.Errors[0].Detail != "" {
			return parsed.Errors[0].Detail
		}
		return parsed.Errors[0].Title
	}
	return parsed.Message
}
