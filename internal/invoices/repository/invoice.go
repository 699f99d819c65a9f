package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	invoiceserrors "notafiscal/internal/invoices/errors"
	"notafiscal/pkg/config"
	"notafiscal/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Invoices"
)

type InvoiceRepository interface {
	Create(ctx context.Context, ext *model.Extraction) error
	FindByID(ctx context.Context, id string) (*model.Extraction, error)
	FindByInvoiceNumber(ctx context.Context, numeroFatura string, limit int) ([]*model.Extraction, error)
}

type mongoInvoiceRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoInvoiceRepository(cfg *config.Config) InvoiceRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoInvoiceRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

// withTimeout uses the shorter of the caller's remaining time and timeout.
func (r *mongoInvoiceRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline {
		if remaining := time.Until(deadline); remaining < timeout {
			return context.WithTimeout(ctx, remaining)
		}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoInvoiceRepository) Create(ctx context.Context, ext *model.Extraction) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.MongoConnTimeout)
	defer cancel()

	if ext.CreatedAt.IsZero() {
		ext.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	if ext.Invoice.LineItems == nil {
		ext.Invoice.LineItems = []model.LineItem{}
	}
	if ext.Invoice.Taxes == nil {
		ext.Invoice.Taxes = []model.Tax{}
	}

	result, err := r.collection.InsertOne(ctx, ext)
	if err != nil {
		return fmt.Errorf("failed to create invoice extraction: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		ext.ID = oid.Hex()
	}
	return nil
}

func (r *mongoInvoiceRepository) FindByID(ctx context.Context, id string) (*model.Extraction, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.MongoConnTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", invoiceserrors.ErrInvalidID, id)
	}

	var ext model.Extraction
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&ext)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", invoiceserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find invoice extraction: %w", err)
	}
	return &ext, nil
}

// FindByInvoiceNumber returns the newest extractions first.
func (r *mongoInvoiceRepository) FindByInvoiceNumber(ctx context.Context, numeroFatura string, limit int) ([]*model.Extraction, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.MongoConnTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"invoice.numero_fatura": numeroFatura}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice extractions: %w", err)
	}
	defer cursor.Close(ctx)

	extractions := []*model.Extraction{}
	if err := cursor.All(ctx, &extractions); err != nil {
		return nil, fmt.Errorf("failed to decode invoice extractions: %w", err)
	}
	return extractions, nil
}
