//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	invoiceserrors "notafiscal/internal/invoices/errors"
	"notafiscal/internal/invoices/repository"
	mongoMigration "notafiscal/internal/migrations/mongo"
	"notafiscal/pkg/client"
	"notafiscal/pkg/config"
	"notafiscal/pkg/logger"
	"notafiscal/pkg/model"
	"notafiscal/test/integration/testutil"
)

func newRepository(t *testing.T, helper *testutil.MongoHelper) repository.InvoiceRepository {
	t.Helper()
	cfg := &config.Config{
		MongoDatabaseName: helper.DBName,
		MongoConnTimeout:  testutil.ConnectionTimeout,
		Log:               logger.Discard(),
		Client:            &client.Client{Mongo: helper.Client},
	}
	return repository.NewMongoInvoiceRepository(cfg)
}

func validExtraction(numero string) *model.Extraction {
	return &model.Extraction{
		SourceFile: "nota.pdf",
		Mode:       model.ModeAgent,
		Invoice: model.Invoice{
			InvoiceNumber:      numero,
			Issuer:             model.Party{Name: "Emissora Ltda", TaxID: "11.222.333/0001-81"},
			LineItems:          []model.LineItem{{Description: "Serviço", Quantity: 1, UnitPriceCents: 1000, TotalCents: 1000}},
			Taxes:              []model.Tax{},
			ItemsSubtotalCents: 1000,
			InvoiceTotalCents:  1000,
		},
		CalculatedSubtotal: 1000,
		CreatedAt:          time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestRepository_RoundTripWithValidator(t *testing.T) {
	env := testutil.NewTestEnv()
	helper := env.SetupMongo(t)
	ctx := context.Background()

	if err := mongoMigration.RunMigration(ctx, helper.Database, logger.Discard()); err != nil {
		t.Fatalf("RunMigration() error = %v", err)
	}
	repo := newRepository(t, helper)

	ext := validExtraction("NF-100")
	if err := repo.Create(ctx, ext); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if ext.ID == "" {
		t.Fatal("expected ID to be set")
	}

	got, err := repo.FindByID(ctx, ext.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.Invoice.InvoiceNumber != "NF-100" || len(got.Invoice.LineItems) != 1 {
		t.Errorf("FindByID() = %+v", got)
	}

	found, err := repo.FindByInvoiceNumber(ctx, "NF-100", 10)
	if err != nil || len(found) != 1 {
		t.Errorf("FindByInvoiceNumber() = %d, %v", len(found), err)
	}

	if _, err := repo.FindByID(ctx, "65a1f0c2e4b0a1b2c3d4e5f6"); !errors.Is(err, invoiceserrors.ErrNotFound) {
		t.Errorf("missing id err = %v", err)
	}
	if _, err := repo.FindByID(ctx, "not-an-id"); !errors.Is(err, invoiceserrors.ErrInvalidID) {
		t.Errorf("bad id err = %v", err)
	}
}

func TestMigration_ValidatorRejectsUnknownInvoiceKeys(t *testing.T) {
	env := testutil.NewTestEnv()
	helper := env.SetupMongo(t)
	ctx := context.Background()

	if err := mongoMigration.RunMigration(ctx, helper.Database, logger.Discard()); err != nil {
		t.Fatalf("RunMigration() error = %v", err)
	}
	// Running twice must be harmless.
	if err := mongoMigration.RunMigration(ctx, helper.Database, logger.Discard()); err != nil {
		t.Fatalf("second RunMigration() error = %v", err)
	}

	doc := bson.M{
		"source_file":                  "x.pdf",
		"mode":                         "agent",
		"calculated_subtotal_centavos": int64(0),
		"subtotal_mismatch":            false,
		"created_at":                   time.Now(),
		"invoice": bson.M{
			"numero_fatura":               "1",
			"data_emissao":                "",
			"data_vencimento":             "",
			"empresa_emissora":            bson.M{"nome": "", "cnpj": "", "endereco": ""},
			"cliente":                     bson.M{"nome": "", "cnpj": "", "endereco": "", "telefone": "x"},
			"itens":                       bson.A{},
			"tributos":                    bson.A{},
			"subtotal_itens_centavos":     int64(0),
			"valor_total_fatura_centavos": int64(0),
		},
	}
	_, err := helper.Database.Collection(repository.CollectionName).InsertOne(ctx, doc)
	var writeErr mongo.WriteException
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected document validation failure, got %v", err)
	}
	if helper.CountDocuments(t, repository.CollectionName) != 0 {
		t.Error("invalid document was stored")
	}
}

func TestAPI_Sanitize(t *testing.T) {
	env := testutil.NewTestEnv()
	c := env.SetupServer(t)

	resp, err := c.Sanitize(context.Background(), []byte(`{"data":{"número fatura":"NF-1","itens":[{"valor_total_item_centavos":"12,5"}]}}`))
	if err != nil {
		t.Fatalf("Sanitize() error = %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var body struct {
		OK   bool           `json:"ok"`
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		t.Fatal(err)
	}
	if !body.OK || body.Data["numero_fatura"] != "NF-1" {
		t.Errorf("body = %+v", body)
	}
	if len(body.Data) != 9 {
		t.Errorf("expected 9 root keys, got %d", len(body.Data))
	}
}

func TestAPI_GetByID_NotFound(t *testing.T) {
	env := testutil.NewTestEnv()
	c := env.SetupServer(t)

	resp, err := c.GetByID(context.Background(), "65a1f0c2e4b0a1b2c3d4e5f6")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	testutil.AssertStatusCode(t, resp, http.StatusNotFound)
}
