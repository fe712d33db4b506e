package configmgr

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConfigDoc is a persisted strategy configuration, global or symbol-scoped,
// mirroring original_source's StrategyConfig model.
type ConfigDoc struct {
	StrategyID string                 `bson:"strategy_id"`
	Symbol     string                 `bson:"symbol,omitempty"`
	Parameters map[string]interface{} `bson:"parameters"`
	Version    int                    `bson:"version"`
	CreatedAt  time.Time              `bson:"created_at"`
	UpdatedAt  time.Time              `bson:"updated_at"`
	CreatedBy  string                 `bson:"created_by"`
}

// AuditRecord is one append-only configuration-change entry, mirroring
// original_source's StrategyConfigAudit model.
type AuditRecord struct {
	StrategyID    string                 `bson:"strategy_id"`
	Symbol        string                 `bson:"symbol,omitempty"`
	Action        string                 `bson:"action"` // CREATE, UPDATE, DELETE
	OldParameters map[string]interface{} `bson:"old_parameters,omitempty"`
	NewParameters map[string]interface{} `bson:"new_parameters,omitempty"`
	ChangedBy     string                 `bson:"changed_by"`
	ChangedAt     time.Time              `bson:"changed_at"`
	Reason        string                 `bson:"reason,omitempty"`
}

// Store is the persistence boundary the ConfigManager talks to. A
// mongo-backed implementation satisfies it in production; tests use an
// in-memory fake so the resolution/cache/audit logic is exercised without a
// live document store.
type Store interface {
	GetGlobalConfig(ctx context.Context, strategyID string) (*ConfigDoc, error)
	GetSymbolConfig(ctx context.Context, strategyID, symbol string) (*ConfigDoc, error)
	UpsertGlobalConfig(ctx context.Context, strategyID string, parameters map[string]interface{}, changedBy string) (*ConfigDoc, error)
	UpsertSymbolConfig(ctx context.Context, strategyID, symbol string, parameters map[string]interface{}, changedBy string) (*ConfigDoc, error)
	DeleteGlobalConfig(ctx context.Context, strategyID string) error
	DeleteSymbolConfig(ctx context.Context, strategyID, symbol string) error
	ListSymbolOverrides(ctx context.Context, strategyID string) ([]string, error)
	CreateAuditRecord(ctx context.Context, rec AuditRecord) error
	GetAuditTrail(ctx context.Context, strategyID, symbol string, limit int) ([]AuditRecord, error)
	Ping(ctx context.Context) error
}

// MongoStore persists configuration and audit records per the collection
// layout in spec §6: strategy_configs_global (unique on strategy_id),
// strategy_configs_symbol (unique on strategy_id+symbol),
// strategy_config_audit (append-only, indexed on strategy_id/symbol/changed_at).
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) globalColl() *mongo.Collection { return s.db.Collection("strategy_configs_global") }
func (s *MongoStore) symbolColl() *mongo.Collection { return s.db.Collection("strategy_configs_symbol") }
func (s *MongoStore) auditColl() *mongo.Collection  { return s.db.Collection("strategy_config_audit") }

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

func (s *MongoStore) GetGlobalConfig(ctx context.Context, strategyID string) (*ConfigDoc, error) {
	var doc ConfigDoc
	err := s.globalColl().FindOne(ctx, bson.M{"strategy_id": strategyID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *MongoStore) GetSymbolConfig(ctx context.Context, strategyID, symbol string) (*ConfigDoc, error) {
	var doc ConfigDoc
	err := s.symbolColl().FindOne(ctx, bson.M{"strategy_id": strategyID, "symbol": symbol}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *MongoStore) upsert(ctx context.Context, coll *mongo.Collection, filter bson.M, strategyID, symbol string, parameters map[string]interface{}, changedBy string, existing *ConfigDoc) (*ConfigDoc, error) {
	now := time.Now().UTC()
	version := 1
	createdAt := now
	if existing != nil {
		version = existing.Version + 1
		createdAt = existing.CreatedAt
	}
	doc := ConfigDoc{
		StrategyID: strategyID,
		Symbol:     symbol,
		Parameters: parameters,
		Version:    version,
		CreatedAt:  createdAt,
		UpdatedAt:  now,
		CreatedBy:  changedBy,
	}
	_, err := coll.UpdateOne(ctx, filter, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *MongoStore) UpsertGlobalConfig(ctx context.Context, strategyID string, parameters map[string]interface{}, changedBy string) (*ConfigDoc, error) {
	existing, err := s.GetGlobalConfig(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	return s.upsert(ctx, s.globalColl(), bson.M{"strategy_id": strategyID}, strategyID, "", parameters, changedBy, existing)
}

func (s *MongoStore) UpsertSymbolConfig(ctx context.Context, strategyID, symbol string, parameters map[string]interface{}, changedBy string) (*ConfigDoc, error) {
	existing, err := s.GetSymbolConfig(ctx, strategyID, symbol)
	if err != nil {
		return nil, err
	}
	return s.upsert(ctx, s.symbolColl(), bson.M{"strategy_id": strategyID, "symbol": symbol}, strategyID, symbol, parameters, changedBy, existing)
}

func (s *MongoStore) DeleteGlobalConfig(ctx context.Context, strategyID string) error {
	_, err := s.globalColl().DeleteOne(ctx, bson.M{"strategy_id": strategyID})
	return err
}

func (s *MongoStore) DeleteSymbolConfig(ctx context.Context, strategyID, symbol string) error {
	_, err := s.symbolColl().DeleteOne(ctx, bson.M{"strategy_id": strategyID, "symbol": symbol})
	return err
}

func (s *MongoStore) ListSymbolOverrides(ctx context.Context, strategyID string) ([]string, error) {
	cur, err := s.symbolColl().Find(ctx, bson.M{"strategy_id": strategyID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var symbols []string
	for cur.Next(ctx) {
		var doc ConfigDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		symbols = append(symbols, doc.Symbol)
	}
	return symbols, cur.Err()
}

func (s *MongoStore) CreateAuditRecord(ctx context.Context, rec AuditRecord) error {
	_, err := s.auditColl().InsertOne(ctx, rec)
	return err
}

func (s *MongoStore) GetAuditTrail(ctx context.Context, strategyID, symbol string, limit int) ([]AuditRecord, error) {
	filter := bson.M{"strategy_id": strategyID}
	if symbol != "" {
		filter["symbol"] = symbol
	}
	opts := options.Find().SetSort(bson.M{"changed_at": -1}).SetLimit(int64(limit))
	cur, err := s.auditColl().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var records []AuditRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}
