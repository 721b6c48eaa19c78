package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/model"
	"github.com/hyperledger-archives/composer-sub008/internal/network"
	"github.com/hyperledger-archives/composer-sub008/internal/script"
)

// ErrRequestsDisabled is returned by post when the engine has no requester.
var ErrRequestsDisabled = errors.New("HTTP requests are not enabled")

// transactionContext is the runtime API of one transaction. It lives from
// the start of a submission until its commit or rollback.
type transactionContext struct {
	net         *network.InstalledBusinessNetwork
	db          storage
	models      *model.Manager
	factory     *model.Factory
	serializer  *model.Serializer
	access      *AccessController
	resolver    *resolver
	requester   script.Requester
	participant ir.Object
	txID        string
	timestamp   ir.String

	events []ir.Object
}

var _ script.API = (*transactionContext)(nil)

// newTransactionContext creates the context of tx, whose identifier and
// timestamp are already assigned.
func newTransactionContext(net *network.InstalledBusinessNetwork, db storage, participant, tx ir.Object, requester script.Requester) *transactionContext {
	models := net.Definition().Models
	txID, _ := tx.GetString(model.TransactionIDField)
	timestamp, _ := tx.GetString(model.TimestampField)
	tc := &transactionContext{
		net:         net,
		db:          db,
		models:      models,
		factory:     model.NewFactory(models),
		serializer:  model.NewSerializer(models),
		access:      NewAccessController(net.AclBundle(), models, participant, tx),
		requester:   requester,
		participant: participant,
		txID:        txID,
		timestamp:   ir.String(timestamp),
	}
	tc.resolver = newResolver(txID, models, tc.loadRelationship)
	return tc
}

// loadRelationship reads the target of rel as the participant.
func (tc *transactionContext) loadRelationship(ctx context.Context, rel ir.Relationship) (ir.Object, error) {
	decl, err := tc.models.GetType(rel.Type)
	if err != nil {
		return nil, err
	}
	reg, err := tc.registry(ctx, decl.Kind.RegistryType(), rel.Type)
	if err != nil {
		return nil, err
	}
	return reg.Get(ctx, rel.ID)
}

func (tc *transactionContext) registry(ctx context.Context, registryType, id string) (*Registry, error) {
	if registryType == "" {
		return nil, NewRegistryNotFoundError("(none)", id, nil)
	}
	return openRegistry(ctx, tc.db, registryType, id, tc.models, tc.access)
}

func (tc *transactionContext) GetFactory() *model.Factory { return tc.factory }

func (tc *transactionContext) GetSerializer() *model.Serializer { return tc.serializer }

func (tc *transactionContext) GetAssetRegistry(ctx context.Context, id string) (script.Registry, error) {
	return tc.registry(ctx, ir.KindAsset.RegistryType(), id)
}

func (tc *transactionContext) GetParticipantRegistry(ctx context.Context, id string) (script.Registry, error) {
	return tc.registry(ctx, ir.KindParticipant.RegistryType(), id)
}

func (tc *transactionContext) GetTransactionRegistry(ctx context.Context, id string) (script.Registry, error) {
	return tc.registry(ctx, ir.KindTransaction.RegistryType(), id)
}

// GetCurrentParticipant returns a copy of the submitting participant, or
// nil for system submissions.
func (tc *transactionContext) GetCurrentParticipant() ir.Object {
	if tc.participant == nil {
		return nil
	}
	return tc.participant.Clone()
}

// GetCurrentIdentity returns the identity the participant submitted
// with. Identities are not issued, so it only names the participant.
func (tc *transactionContext) GetCurrentIdentity() ir.Object {
	if tc.participant == nil {
		return nil
	}
	ref := ir.ClassOf(tc.participant)
	if id, err := tc.models.Identifier(tc.participant); err == nil {
		ref = ir.Relationship{Type: ref, ID: id}.String()
	}
	return ir.Object{"participant": ir.String(ref)}
}

func (tc *transactionContext) Post(ctx context.Context, url string, data ir.Value) (ir.Value, error) {
	if tc.requester == nil {
		return nil, fmt.Errorf("post %s: %w", url, ErrRequestsDisabled)
	}
	if obj, ok := data.(ir.Object); ok && ir.ClassOf(obj) != "" {
		serialized, err := tc.serializer.ToJSON(obj)
		if err != nil {
			return nil, NewInvalidResourceError(err)
		}
		data = serialized
	}
	return tc.requester.Do(ctx, "POST", url, data)
}

// Emit numbers the event <transactionId>#<n> and records it. Events are
// published only when the transaction commits.
func (tc *transactionContext) Emit(_ context.Context, event ir.Object) error {
	decl, err := tc.models.GetType(ir.ClassOf(event))
	if err != nil {
		return NewInvalidResourceError(err)
	}
	if decl.Kind != ir.KindEvent {
		return NewInvalidResourceError(fmt.Errorf("cannot emit type: %s", decl.FullyQualifiedName()))
	}

	numbered := event.Clone()
	numbered[model.EventIDField] = ir.String(tc.txID + "#" + strconv.Itoa(len(tc.events)))
	if _, ok := numbered[model.TimestampField]; !ok {
		numbered[model.TimestampField] = tc.timestamp
	}
	serialized, err := tc.serializer.ToJSON(numbered)
	if err != nil {
		return NewInvalidResourceError(err)
	}
	slog.Debug("event emitted", "event", ir.ClassOf(serialized), "transaction", tc.txID)
	tc.events = append(tc.events, serialized)
	return nil
}

func (tc *transactionContext) BuildQuery(text string) (string, error) {
	return tc.net.QueryBundle().BuildQuery(text)
}

// Query runs a named or built query. Results the participant may not
// read are dropped.
func (tc *transactionContext) Query(ctx context.Context, nameOrID string, params map[string]any) ([]ir.Object, error) {
	results, err := tc.net.QueryBundle().Execute(ctx, tc.db, nameOrID, params)
	if err != nil {
		return nil, err
	}
	visible := make([]ir.Object, 0, len(results))
	for _, doc := range results {
		if err := tc.access.Check(doc, ir.OpRead); err != nil {
			if IsAccessError(err) {
				continue
			}
			return nil, err
		}
		visible = append(visible, doc)
	}
	return visible, nil
}

// GetNativeAPI returns nil: there is no underlying ledger API.
func (tc *transactionContext) GetNativeAPI() any { return nil }
