package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/metrics"
	"github.com/hyperledger-archives/composer-sub008/internal/model"
	"github.com/hyperledger-archives/composer-sub008/internal/network"
	"github.com/hyperledger-archives/composer-sub008/internal/script"
	"github.com/hyperledger-archives/composer-sub008/internal/store"
)

// Engine is the single-writer transaction processor.
//
// Submit runs one transaction at a time against a store transaction:
// relationships of the submitted transaction are resolved, CREATE access
// is checked, the transaction processor functions run, and the
// transaction is recorded in its registry. Any failure rolls back every
// write the functions made.
//
// Thread-safety model:
//   - Submit(), AddResources(), Deploy(): serialized by an internal mutex
//   - Query(), Registry(), LookupParticipant(): safe from any goroutine, but
//     block while a submission holds the store's single connection
type Engine struct {
	mu        sync.Mutex
	store     *store.Store
	clock     Clock
	ids       IDGenerator
	metrics   *metrics.Metrics
	requester script.Requester
}

// TransactionResult describes a committed transaction.
type TransactionResult struct {
	TransactionID string
	Seq           int64
	Timestamp     string
	Executed      int
	ReturnValues  []ir.Value
	Events        []ir.Object
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithIDGenerator sets the transaction ID generator.
//
// Default: UUIDv7Generator
// Use WithIDGenerator(NewFixedGenerator(...)) for golden tests.
func WithIDGenerator(g IDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithClock sets the clock that orders and timestamps transactions.
func WithClock(c Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithMetrics records submitted transactions in m.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithRequester enables the post API method.
func WithRequester(r script.Requester) EngineOption {
	return func(e *Engine) {
		e.requester = r
	}
}

// New creates an Engine over s.
func New(s *store.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store: s,
		clock: NewClock(),
		ids:   UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Deploy creates a registry for every concrete asset, participant and
// transaction type of net and applies the index definitions of its
// queries. Deploying the same network twice is a no-op.
func (e *Engine) Deploy(ctx context.Context, net *network.InstalledBusinessNetwork) error {
	if net == nil {
		return NewNoNetworkError()
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	created := 0
	for _, decl := range net.Definition().Models.Declarations() {
		registryType := decl.Kind.RegistryType()
		if decl.Abstract || registryType == "" {
			continue
		}
		r := store.Registry{Type: registryType, ID: decl.FullyQualifiedName(), Name: decl.Name}
		if err := e.store.AddRegistry(ctx, r); err != nil {
			return fmt.Errorf("deploy %s: %w", net.Definition().Identifier(), err)
		}
		created++
	}
	for _, idx := range net.Indexes() {
		if err := e.store.ApplyIndex(ctx, idx.Definition); err != nil {
			return fmt.Errorf("deploy %s: index for query %s: %w", net.Definition().Identifier(), idx.Query, err)
		}
	}

	slog.Info("business network deployed",
		"network", net.Definition().Identifier(),
		"hash", net.Hash(),
		"registries", created,
		"indexes", len(net.Indexes()),
	)
	return nil
}

// AddResources stores assets and participants without access checks.
// Each document goes to the registry of its own type. Either every
// document is stored or none is.
func (e *Engine) AddResources(ctx context.Context, net *network.InstalledBusinessNetwork, docs ...ir.Object) error {
	if net == nil {
		return NewNoNetworkError()
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	models := net.Definition().Models
	for _, doc := range docs {
		fqn := ir.ClassOf(doc)
		decl, err := models.GetType(fqn)
		if err != nil {
			return NewInvalidResourceError(err)
		}
		reg, err := openRegistry(ctx, tx, decl.Kind.RegistryType(), fqn, models, nil)
		if err != nil {
			return err
		}
		if err := reg.Add(ctx, doc); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Submit processes tx on behalf of participant. A nil participant submits
// as the system and bypasses access control.
func (e *Engine) Submit(ctx context.Context, net *network.InstalledBusinessNetwork, tx, participant ir.Object) (*TransactionResult, error) {
	if net == nil {
		return nil, NewNoNetworkError()
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	models := net.Definition().Models
	fqn := ir.ClassOf(tx)
	decl, err := models.GetType(fqn)
	if err != nil {
		return nil, NewInvalidResourceError(err)
	}
	if decl.Kind != ir.KindTransaction {
		return nil, NewInvalidResourceError(fmt.Errorf("cannot submit type: %s is not a transaction", fqn))
	}

	txID := e.ids.Generate()
	seq := e.clock.Next()
	timestamp := e.clock.Now().UTC().Format(time.RFC3339Nano)

	submitted := tx.Clone()
	submitted[model.TransactionIDField] = ir.String(txID)
	submitted[model.TimestampField] = ir.String(timestamp)

	result, err := e.process(ctx, net, submitted, participant)
	if err != nil {
		e.metrics.TransactionSubmitted(metrics.StatusRolledBack)
		slog.Info("transaction rolled back",
			"transaction", txID,
			"type", fqn,
			"seq", seq,
			"error", err,
		)
		return nil, withTransactionID(err, txID)
	}
	result.Seq = seq
	result.Timestamp = timestamp

	e.metrics.TransactionSubmitted(metrics.StatusCommitted)
	slog.Info("transaction committed",
		"transaction", txID,
		"type", fqn,
		"seq", seq,
		"functions", result.Executed,
		"events", len(result.Events),
	)
	return result, nil
}

// process runs one transaction inside a store transaction.
// CRITICAL: Called only with e.mu held.
func (e *Engine) process(ctx context.Context, net *network.InstalledBusinessNetwork, tx, participant ir.Object) (*TransactionResult, error) {
	models := net.Definition().Models
	if err := model.NewSerializer(models).Validate(tx); err != nil {
		return nil, NewInvalidResourceError(err)
	}

	dbtx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer dbtx.Rollback()

	tc := newTransactionContext(net, dbtx, participant, tx, e.requester)
	resolved := tc.resolver.Resolve(ctx, tx)
	if err := tc.access.Check(resolved, ir.OpCreate); err != nil {
		return nil, err
	}

	executed, err := net.ScriptBundle().Execute(ctx, tc, resolved)
	if err != nil {
		return nil, err
	}

	// The transaction itself is recorded by the system.
	reg, err := openRegistry(ctx, dbtx, ir.KindTransaction.RegistryType(), ir.ClassOf(tx), models, nil)
	if err != nil {
		return nil, err
	}
	if err := reg.Add(ctx, tx); err != nil {
		return nil, err
	}

	if err := dbtx.Commit(); err != nil {
		return nil, err
	}
	return &TransactionResult{
		TransactionID: tc.txID,
		Executed:      executed.Executed,
		ReturnValues:  executed.ReturnValues,
		Events:        tc.events,
	}, nil
}

// Query runs a named or built query as participant. Results the
// participant may not read are dropped.
func (e *Engine) Query(ctx context.Context, net *network.InstalledBusinessNetwork, participant ir.Object, nameOrID string, params map[string]any) ([]ir.Object, error) {
	if net == nil {
		return nil, NewNoNetworkError()
	}
	tc := newTransactionContext(net, e.store, participant, nil, nil)
	return tc.Query(ctx, nameOrID, params)
}

// Registry opens a registry as participant. A nil participant sees every
// resource.
func (e *Engine) Registry(ctx context.Context, net *network.InstalledBusinessNetwork, participant ir.Object, registryType, id string) (*Registry, error) {
	if net == nil {
		return nil, NewNoNetworkError()
	}
	models := net.Definition().Models
	access := NewAccessController(net.AclBundle(), models, participant, nil)
	return openRegistry(ctx, e.store, registryType, id, models, access)
}

// LookupParticipant reads the participant named by ref, either a
// relationship ("resource:org.acme.Person#alice") or its short form
// ("org.acme.Person#alice").
func (e *Engine) LookupParticipant(ctx context.Context, net *network.InstalledBusinessNetwork, ref string) (ir.Object, error) {
	if net == nil {
		return nil, NewNoNetworkError()
	}
	if !strings.HasPrefix(ref, ir.RelationshipPrefix) {
		ref = ir.RelationshipPrefix + ref
	}
	rel, err := ir.ParseRelationship(ref)
	if err != nil {
		return nil, fmt.Errorf("participant: %w", err)
	}
	decl, err := net.Definition().Models.GetType(rel.Type)
	if err != nil {
		return nil, fmt.Errorf("participant: %w", err)
	}
	if decl.Kind != ir.KindParticipant {
		return nil, fmt.Errorf("participant: %s is a %s, not a participant", rel.Type, decl.Kind)
	}
	reg, err := e.Registry(ctx, net, nil, ir.KindParticipant.RegistryType(), rel.Type)
	if err != nil {
		return nil, err
	}
	return reg.Get(ctx, rel.ID)
}

// withTransactionID stamps runtime errors with the failed transaction and
// wraps every other error.
func withTransactionID(err error, txID string) error {
	var re *RuntimeError
	if errors.As(err, &re) && re.TransactionID == "" {
		re.TransactionID = txID
		return err
	}
	return fmt.Errorf("transaction %s: %w", txID, err)
}
